package commands

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/generations-billing/internal/config"
)

// Env is what the commands read from the process. Tests substitute it.
type Env struct {
	Getenv config.Getenv
	Now    func() time.Time
}

// ProcessEnv reads the real environment and clock.
func ProcessEnv() Env {
	return Env{Getenv: os.Getenv, Now: time.Now}
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand(env Env, version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "generations-billing",
		Short:   "Monthly Generations usage billing load",
		Version: version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newRunCommand(env),
		newLabelCommand(env),
		newEnsureTableCommand(env),
		newInspectCommand(),
	)

	return rootCmd
}
