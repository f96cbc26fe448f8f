// Package cli implements the mem command line tool. It opens the store
// directly, so it works without the daemon running (but must not run while
// the daemon holds the same data directory).
package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/membridge/membridge/app"
	"github.com/membridge/membridge/config"
	"github.com/membridge/membridge/httpapi"
	"github.com/membridge/membridge/memory"
)

var (
	project  string
	category string
	source   string
	ttlDays  int
	dryRun   bool
	quiet    bool

	searchLimit  int
	listLimit    int
	contextLimit int
)

// RootCmd is the base command.
var RootCmd = &cobra.Command{
	Use:   "mem",
	Short: "Personal memory bridge",
	Long: `mem stores short facts as vector embeddings and retrieves them by
semantic similarity. Facts carry a project, a category and an optional
time-to-live; expired facts disappear from reads and are removed by prune.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			log.SetOutput(io.Discard)
		}
	},
}

var addCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Store a fact",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(ctx context.Context, m *memory.Manager) error {
			req := memory.RecordRequest{
				Text:     strings.Join(args, " "),
				Project:  project,
				Category: category,
				Source:   source,
			}
			if cmd.Flags().Changed("ttl") {
				req.TTLDays = &ttlDays
			}
			fact, err := m.Record(ctx, req)
			if err != nil {
				return err
			}
			fmt.Printf("Stored %s [%s/%s]\n", fact.ID, fact.Project, fact.Category)
			if fact.ExpiresAt != nil {
				fmt.Printf("Expires %s\n", fact.ExpiresAt.Format(time.RFC3339))
			}
			return nil
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find facts by semantic similarity",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(ctx context.Context, m *memory.Manager) error {
			results, err := m.Search(ctx, memory.SearchRequest{
				Query:    strings.Join(args, " "),
				Limit:    searchLimit,
				Project:  project,
				Category: category,
			})
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("No matches.")
				return nil
			}
			for _, res := range results {
				printScored(res.Fact, res.Score)
			}
			return nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the most recent facts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(ctx context.Context, m *memory.Manager) error {
			facts, err := m.List(ctx, memory.ListRequest{
				Limit:   listLimit,
				Project: project,
			})
			if err != nil {
				return err
			}
			if len(facts) == 0 {
				fmt.Println("No facts stored.")
				return nil
			}
			for _, f := range facts {
				printFact(f)
			}
			return nil
		})
	},
}

var contextCmd = &cobra.Command{
	Use:   "context <project>",
	Short: "Print a project's context block",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(ctx context.Context, m *memory.Manager) error {
			results, err := m.Search(ctx, memory.SearchRequest{
				Query:   args[0],
				Limit:   contextLimit,
				Project: args[0],
			})
			if err != nil {
				return err
			}
			fmt.Print(httpapi.FormatContext(args[0], results))
			return nil
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a fact by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(ctx context.Context, m *memory.Manager) error {
			if err := m.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		})
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove expired facts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(ctx context.Context, m *memory.Manager) error {
			report, err := m.Prune(ctx, dryRun)
			if err != nil {
				return err
			}
			verb := "Pruned"
			if report.DryRun {
				verb = "Would prune"
			}
			fmt.Printf("%s %d of %d facts\n", verb, report.Pruned, report.TotalBefore)
			for cat, n := range report.ByCategory {
				fmt.Printf("  %s: %d\n", cat, n)
			}
			return nil
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show fact counts by category",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(ctx context.Context, m *memory.Manager) error {
			stats, err := m.ComputeStats(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Total facts: %d\n", stats.Total)
			for _, c := range stats.ByCategory {
				fmt.Printf("  %s: %d\n", c.Category, c.Count)
			}
			return nil
		})
	},
}

// Execute runs the CLI.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	RootCmd.AddCommand(addCmd, searchCmd, listCmd, contextCmd, deleteCmd, pruneCmd, statsCmd)

	RootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress log output")

	addCmd.Flags().StringVarP(&project, "project", "p", "", "Project namespace")
	addCmd.Flags().StringVarP(&category, "cat", "c", "", "Fact category")
	addCmd.Flags().StringVar(&source, "source", "cli", "Originating client tag")
	addCmd.Flags().IntVar(&ttlDays, "ttl", 0, "Days until expiry (overrides category default)")

	searchCmd.Flags().StringVarP(&project, "project", "p", "", "Restrict to a project")
	searchCmd.Flags().StringVarP(&category, "cat", "c", "", "Restrict to a category")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "Maximum results")

	listCmd.Flags().StringVarP(&project, "project", "p", "", "Restrict to a project")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "Maximum results")

	contextCmd.Flags().IntVarP(&contextLimit, "limit", "n", 10, "Maximum facts in the block")

	pruneCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report expired facts without deleting")
}

// withManager builds the manager from the environment, runs fn and tears
// everything down.
func withManager(fn func(context.Context, *memory.Manager) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	manager, cleanup, err := app.NewManager(cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(context.Background(), manager)
}

func printScored(f *memory.Fact, score float32) {
	fmt.Printf("%.3f  [%s/%s] %s\n", score, f.Project, f.Category, f.Text)
	fmt.Printf("       id=%s\n", f.ID)
}

func printFact(f *memory.Fact) {
	fmt.Printf("%s  [%s/%s] %s\n", f.CreatedAt.Format("2006-01-02 15:04"), f.Project, f.Category, f.Text)
	fmt.Printf("       id=%s\n", f.ID)
}
