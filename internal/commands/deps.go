package commands

import (
	"context"

	"github.com/dvloznov/generations-billing/internal/archive"
	"github.com/dvloznov/generations-billing/internal/config"
	"github.com/dvloznov/generations-billing/internal/domain"
	"github.com/dvloznov/generations-billing/internal/keypair"
	"github.com/dvloznov/generations-billing/internal/mail"
	"github.com/dvloznov/generations-billing/internal/pipeline"
	"github.com/dvloznov/generations-billing/internal/source/sqlserver"
	"github.com/dvloznov/generations-billing/internal/warehouse"
)

// sourceOptions maps the source settings onto the extractor.
func sourceOptions(c config.SourceConfig) sqlserver.Options {
	return sqlserver.Options{
		Host:     c.Host,
		Instance: c.Instance,
		Database: c.Database,
		User:     c.User,
		Password: c.Password,
		Table:    c.Table,
	}
}

func warehouseOptions(c config.WarehouseConfig) warehouse.Options {
	return warehouse.Options{
		Backend:      c.Backend,
		Account:      c.Account,
		User:         c.User,
		Role:         c.Role,
		Warehouse:    c.Warehouse,
		LookupDB:     c.LookupDB,
		LoadDB:       c.LoadDB,
		BillingTable: c.BillingTable,
	}
}

// openWarehouse loads the private key and connects to the configured backend.
func openWarehouse(ctx context.Context, cfg *config.Config) (warehouse.Warehouse, error) {
	key, err := keypair.LoadFile(cfg.KeyPair.Path, cfg.KeyPair.Passphrase)
	if err != nil {
		return nil, err
	}
	return warehouse.Open(ctx, warehouseOptions(cfg.Warehouse), key)
}

// newDeps wires the production implementations for a monthly run.
func newDeps(cfg *config.Config) pipeline.Deps {
	src := sourceOptions(cfg.Source)

	deps := pipeline.Deps{
		Source: pipeline.UsageSourceFunc(func(ctx context.Context, monthYear string) ([]domain.UsageRecord, error) {
			return sqlserver.ExtractMonth(ctx, src, monthYear)
		}),
		Connect: func(ctx context.Context) (pipeline.Warehouse, error) {
			wh, err := openWarehouse(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return wh, nil
		},
		Mailer: mail.NewGraphClient(mail.Credentials{
			Tenant:       cfg.Mail.Tenant,
			ClientID:     cfg.Mail.ClientID,
			ClientSecret: cfg.Mail.ClientSecret,
		}),
		Addresses: func() (string, []string, error) {
			from, err := cfg.Mail.Sender()
			if err != nil {
				return "", nil, err
			}
			to, err := cfg.Mail.Recipients()
			if err != nil {
				return "", nil, err
			}
			return from, to, nil
		},
	}
	if cfg.Archive.Enabled() {
		deps.Archiver = archive.NewGCSArchiver(cfg.Archive.Bucket, cfg.Archive.Prefix)
	}
	return deps
}
