// Command trio runs the pair-programming orchestrator: Architect plans,
// Driver implements, Navigator reviews.
package main

import (
	"fmt"
	"os"

	"github.com/trioagent/trio/cmd/trio/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
