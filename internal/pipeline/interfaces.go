package pipeline

import (
	"context"

	"github.com/dvloznov/generations-billing/internal/billing"
	"github.com/dvloznov/generations-billing/internal/domain"
	"github.com/dvloznov/generations-billing/internal/mail"
)

// UsageSource reads a month of usage records.
type UsageSource interface {
	Extract(ctx context.Context, monthYear string) ([]domain.UsageRecord, error)
}

// UsageSourceFunc adapts a function to UsageSource.
type UsageSourceFunc func(ctx context.Context, monthYear string) ([]domain.UsageRecord, error)

// Extract calls f.
func (f UsageSourceFunc) Extract(ctx context.Context, monthYear string) ([]domain.UsageRecord, error) {
	return f(ctx, monthYear)
}

// Warehouse is the subset of warehouse.Warehouse the run needs.
type Warehouse interface {
	LookupAccounts(ctx context.Context) ([]domain.AccountRecord, error)
	billing.Appender
	Close() error
}

// WarehouseConnector opens the warehouse. It runs inside the enrich stage so
// key and authentication failures are reported there.
type WarehouseConnector func(ctx context.Context) (Warehouse, error)

// Mailer sends a message.
type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}

// Archiver stores a copy of a generated file and returns where it went.
type Archiver interface {
	Archive(ctx context.Context, name, contentType string, data []byte) (string, error)
}
