package main

import (
	"os"

	"github.com/hexastack/agentic/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
