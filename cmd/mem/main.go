// mem is the command line client for the memory bridge.
package main

import "github.com/membridge/membridge/cmd/mem/cli"

func main() {
	cli.Execute()
}
