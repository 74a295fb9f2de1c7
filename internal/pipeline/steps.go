package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/dvloznov/generations-billing/internal/billing"
	"github.com/dvloznov/generations-billing/internal/domain"
	"github.com/dvloznov/generations-billing/internal/logger"
	"github.com/dvloznov/generations-billing/internal/mail"
	"github.com/dvloznov/generations-billing/internal/workbook"
)

// PipelineStep represents a single step in the monthly billing run.
type PipelineStep interface {
	Stage() Stage
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	RunID     string
	MonthYear string

	Usage     []domain.UsageRecord
	Accounts  []domain.AccountRecord
	Warehouse Warehouse // opened by the enrich step, closed by Pipeline.Execute

	Result   billing.Result
	Workbook []byte

	RowsLoaded int
	ArchiveURI string
	ExportPath string
}

// ExtractUsageStep reads the month's usage rows from the source.
type ExtractUsageStep struct {
	Source UsageSource
}

func (s *ExtractUsageStep) Stage() Stage { return StageExtract }

func (s *ExtractUsageStep) Execute(ctx context.Context, state *PipelineState) error {
	usage, err := s.Source.Extract(ctx, state.MonthYear)
	if err != nil {
		return err
	}
	state.Usage = usage
	log := logger.FromContext(ctx)
	log.Debug().Int("rows", len(usage)).Msg("Extracted usage")
	return nil
}

// EnrichAccountsStep connects to the warehouse and fetches the account lookup.
type EnrichAccountsStep struct {
	Connect WarehouseConnector
}

func (s *EnrichAccountsStep) Stage() Stage { return StageEnrich }

func (s *EnrichAccountsStep) Execute(ctx context.Context, state *PipelineState) error {
	wh, err := s.Connect(ctx)
	if err != nil {
		return fmt.Errorf("connect to warehouse: %w", err)
	}
	state.Warehouse = wh

	accounts, err := wh.LookupAccounts(ctx)
	if err != nil {
		return err
	}
	state.Accounts = accounts
	log := logger.FromContext(ctx)
	log.Debug().Int("accounts", len(accounts)).Msg("Fetched account lookup")
	return nil
}

// TransformStep joins usage to accounts and builds both projections.
type TransformStep struct{}

func (s *TransformStep) Stage() Stage { return StageTransform }

func (s *TransformStep) Execute(ctx context.Context, state *PipelineState) error {
	res := billing.Transform(state.Usage, state.Accounts)
	if len(res.Import) != len(state.Usage) || len(res.Backup) != len(state.Usage) {
		return fmt.Errorf("transform produced %d import and %d backup rows for %d usage rows",
			len(res.Import), len(res.Backup), len(state.Usage))
	}
	state.Result = res

	log := logger.FromContext(ctx)
	if len(res.AmbiguousLegacyIDs) > 0 {
		log.Warn().Strs("legacy_ids", res.AmbiguousLegacyIDs).
			Msg("Legacy ids claimed by more than one account; smallest account id used")
	}
	log.Debug().Int("rows", len(res.Import)).Int("unmatched", res.Unmatched).Msg("Transformed usage")
	return nil
}

// BuildWorkbookStep renders the backup projection as an xlsx workbook.
type BuildWorkbookStep struct{}

func (s *BuildWorkbookStep) Stage() Stage { return StageTransform }

func (s *BuildWorkbookStep) Execute(ctx context.Context, state *PipelineState) error {
	rows := make([][]interface{}, 0, len(state.Result.Backup))
	for _, r := range state.Result.Backup {
		rows = append(rows, billing.BackupValues(r))
	}
	data, err := workbook.Encode(workbook.BackupSheet, billing.BackupColumns, rows)
	if err != nil {
		return err
	}
	state.Workbook = data
	return nil
}

// LoadStep appends the import projection to the billing table.
type LoadStep struct{}

func (s *LoadStep) Stage() Stage { return StageLoad }

func (s *LoadStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Warehouse == nil {
		return fmt.Errorf("no warehouse connection")
	}
	n, err := billing.Load(ctx, state.Warehouse, state.Result.Import)
	state.RowsLoaded = n
	if err != nil {
		return err
	}
	log := logger.FromContext(ctx)
	log.Debug().Int("rows", n).Msg("Loaded billing rows")
	return nil
}

// ArchiveStep stores a copy of the workbook.
type ArchiveStep struct {
	Archiver Archiver
}

func (s *ArchiveStep) Stage() Stage { return StageArchive }

func (s *ArchiveStep) Execute(ctx context.Context, state *PipelineState) error {
	uri, err := s.Archiver.Archive(ctx, workbook.FileName(state.MonthYear), workbook.MIMEType, state.Workbook)
	if err != nil {
		return err
	}
	state.ArchiveURI = uri
	log := logger.FromContext(ctx)
	log.Debug().Str("uri", uri).Msg("Archived backup workbook")
	return nil
}

// Addresses resolves the sender and recipients at send time.
type Addresses func() (from string, to []string, err error)

// NotifyStep emails the workbook.
type NotifyStep struct {
	Mailer    Mailer
	Addresses Addresses
}

func (s *NotifyStep) Stage() Stage { return StageNotify }

func (s *NotifyStep) Execute(ctx context.Context, state *PipelineState) error {
	from, to, err := s.Addresses()
	if err != nil {
		return err
	}
	if err := s.Mailer.Send(ctx, BackupMessage(from, to, state.MonthYear, state.Workbook)); err != nil {
		return err
	}
	log := logger.FromContext(ctx)
	log.Debug().Strs("to", to).Msg("Sent backup email")
	return nil
}

// BackupMessage builds the backup email for a month.
func BackupMessage(from string, to []string, monthYear string, data []byte) mail.Message {
	subject := "Generations Usage Backup File - " + monthYear
	return mail.Message{
		From:    from,
		To:      to,
		Subject: subject,
		Body:    subject,
		Attachments: []mail.Attachment{{
			Name:        workbook.FileName(monthYear),
			ContentType: workbook.MIMEType,
			Content:     data,
		}},
	}
}

// ExportStep writes the workbook to a local file instead of sending it.
type ExportStep struct {
	Path string
}

func (s *ExportStep) Stage() Stage { return StageExport }

func (s *ExportStep) Execute(ctx context.Context, state *PipelineState) error {
	path := s.Path
	if path == "" {
		path = workbook.FileName(state.MonthYear)
	}
	if err := os.WriteFile(path, state.Workbook, 0o644); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	state.ExportPath = path
	log := logger.FromContext(ctx)
	log.Debug().Str("path", path).Msg("Wrote backup workbook")
	return nil
}
