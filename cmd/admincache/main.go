// Command admincache serves, queries and tests the normalized resource
// cache.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/admincache/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
