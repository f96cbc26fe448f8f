package mock

import (
	"context"
	"math"
	"testing"
)

func TestEmbedDeterministic(t *testing.T) {
	e := New()

	a, err := e.Embed(context.Background(), "likes go")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	b, err := e.Embed(context.Background(), "likes go")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Equal texts produced different vectors at %d", i)
		}
	}

	c, err := e.Embed(context.Background(), "likes rust")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("Different texts produced identical vectors")
	}
}

func TestEmbedUnitNorm(t *testing.T) {
	e := NewWithDimensions(16)
	vec, err := e.Embed(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 16 {
		t.Fatalf("Expected 16 dimensions, got %d", len(vec))
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(norm)-1) > 1e-5 {
		t.Errorf("Expected unit vector, norm %v", math.Sqrt(norm))
	}
}

func TestEmbedFail(t *testing.T) {
	e := New()
	e.Fail = context.DeadlineExceeded
	if _, err := e.Embed(context.Background(), "x"); err == nil {
		t.Error("Expected configured failure")
	}
}
