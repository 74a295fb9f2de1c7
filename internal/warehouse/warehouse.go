package warehouse

import (
	"context"

	"github.com/dvloznov/generations-billing/internal/domain"
	"github.com/dvloznov/generations-billing/internal/keypair"
	"github.com/pkg/errors"
)

// Warehouse is the cloud warehouse holding the Salesforce account sync and
// the monthly billing table.
type Warehouse interface {
	// LookupAccounts returns every non-deleted account with a legacy id.
	LookupAccounts(ctx context.Context) ([]domain.AccountRecord, error)

	// AppendBillingRows appends one batch to the billing table.
	AppendBillingRows(ctx context.Context, rows []domain.ImportRow) error

	// EnsureBillingTable creates the billing table if it does not exist.
	EnsureBillingTable(ctx context.Context) error

	Close() error
}

// Options addresses the warehouse for either backend.
type Options struct {
	Backend      string // "snowflake" or "bigquery"
	Account      string // Snowflake account identifier, or GCP project for BigQuery
	User         string // Snowflake user, or service-account email for BigQuery
	Role         string
	Warehouse    string
	LookupDB     string
	LoadDB       string
	BillingTable string
}

// Open connects to the configured backend, authenticating with key.
func Open(ctx context.Context, opts Options, key *keypair.Key) (Warehouse, error) {
	switch opts.Backend {
	case "", "snowflake":
		sf, err := OpenSnowflake(opts, key)
		if err != nil {
			return nil, err
		}
		return sf, nil
	case "bigquery":
		bq, err := OpenBigQuery(ctx, opts, key)
		if err != nil {
			return nil, err
		}
		return bq, nil
	default:
		return nil, errors.Errorf("warehouse: unknown backend %q", opts.Backend)
	}
}
