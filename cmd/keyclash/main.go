package main

import (
	"fmt"
	"os"

	"github.com/studiowebux/keyclash/internal/cli"
)

var (
	version = "0.1.0"
)

func main() {
	cli.Version = version
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
