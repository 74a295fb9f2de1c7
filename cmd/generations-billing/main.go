package main

import (
	"os"

	"github.com/dvloznov/generations-billing/internal/commands"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := commands.NewRootCommand(commands.ProcessEnv(), version).Execute(); err != nil {
		os.Exit(1)
	}
}
