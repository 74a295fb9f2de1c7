package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dvloznov/generations-billing/internal/archive"
	"github.com/dvloznov/generations-billing/internal/workbook"
)

func newInspectCommand() *cobra.Command {
	var sheet string

	cmd := &cobra.Command{
		Use:   "inspect FILE|gs://BUCKET/OBJECT",
		Short: "Print the rows of a backup workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readWorkbook(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if sheet == "" {
				sheets, err := workbook.Sheets(data)
				if err != nil {
					return err
				}
				if len(sheets) == 0 {
					return fmt.Errorf("%s has no sheets", args[0])
				}
				sheet = sheets[0]
			}

			rows, err := workbook.Decode(data, sheet)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Sheet: %s\n", sheet)
			for _, row := range rows {
				fmt.Fprintln(out, strings.Join(row, "\t"))
			}
			if len(rows) > 0 {
				fmt.Fprintf(out, "\n%d data rows\n", len(rows)-1)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to print (default: the first sheet)")
	return cmd
}

// readWorkbook reads a local file or an archived gs:// object.
func readWorkbook(ctx context.Context, src string) ([]byte, error) {
	if archive.IsURI(src) {
		return archive.Fetch(ctx, src)
	}
	return os.ReadFile(src)
}
