package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dvloznov/generations-billing/internal/period"
)

func newLabelCommand(env Env) *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "label",
		Short: "Print the month-year label a run would load",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := period.ParseAsOf(asOf, env.Now())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), period.Label(t))
			return err
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "Reference date (YYYY-MM-DD)")
	return cmd
}
