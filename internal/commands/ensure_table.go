package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dvloznov/generations-billing/internal/config"
	"github.com/dvloznov/generations-billing/internal/logger"
)

func newEnsureTableCommand(env Env) *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-table",
		Short: "Create the billing table if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.NewWithWriter(cmd.ErrOrStderr())
			ctx := logger.WithContext(cmd.Context(), log)

			cfg, err := config.WarehouseFromEnv(env.Getenv)
			if err != nil {
				return err
			}

			wh, err := openWarehouse(ctx, cfg)
			if err != nil {
				return fmt.Errorf("connect to warehouse: %w", err)
			}
			defer wh.Close()

			if err := wh.EnsureBillingTable(ctx); err != nil {
				return fmt.Errorf("ensure billing table: %w", err)
			}

			log.Info().
				Str("backend", cfg.Warehouse.Backend).
				Str("database", cfg.Warehouse.LoadDB).
				Str("table", cfg.Warehouse.BillingTable).
				Msg("Billing table ready")
			return nil
		},
	}
}
