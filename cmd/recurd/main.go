package main

import (
	"fmt"
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/openvault/recur/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "recurd: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
