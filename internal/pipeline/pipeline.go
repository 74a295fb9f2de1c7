package pipeline

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/generations-billing/internal/logger"
)

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Stages lists the stage of each step, in order.
func (p *Pipeline) Stages() []Stage {
	out := make([]Stage, len(p.steps))
	for i, s := range p.steps {
		out[i] = s.Stage()
	}
	return out
}

// Execute runs all steps sequentially and stops at the first failure, which
// is returned as a *StageError. A warehouse opened by any step is closed
// before Execute returns.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)

	defer func() {
		if state.Warehouse == nil {
			return
		}
		if err := state.Warehouse.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close warehouse connection")
		}
		state.Warehouse = nil
	}()

	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return newStageError(step.Stage(), i+1, err)
		}
		log.Debug().Str("stage", string(step.Stage())).Int("step", i+1).Msg("Starting step")
		if err := step.Execute(ctx, state); err != nil {
			return newStageError(step.Stage(), i+1, err)
		}
	}
	return nil
}

// Deps are the external systems a monthly run talks to. Archiver may be nil.
type Deps struct {
	Source    UsageSource
	Connect   WarehouseConnector
	Mailer    Mailer
	Addresses Addresses
	Archiver  Archiver
}

// Options alter which steps run.
type Options struct {
	// DryRun skips the load, archive and notify steps and writes the
	// workbook to OutPath instead.
	DryRun  bool
	OutPath string
}

// NewMonthlyBillingPipeline creates the extract, enrich, transform, load,
// archive, notify pipeline.
func NewMonthlyBillingPipeline(deps Deps, opts Options) *Pipeline {
	steps := []PipelineStep{
		&ExtractUsageStep{Source: deps.Source},
		&EnrichAccountsStep{Connect: deps.Connect},
		&TransformStep{},
		&BuildWorkbookStep{},
	}
	if opts.DryRun {
		return NewPipeline(append(steps, &ExportStep{Path: opts.OutPath})...)
	}

	steps = append(steps, &LoadStep{})
	if deps.Archiver != nil {
		steps = append(steps, &ArchiveStep{Archiver: deps.Archiver})
	}
	steps = append(steps, &NotifyStep{Mailer: deps.Mailer, Addresses: deps.Addresses})
	return NewPipeline(steps...)
}

// NewState starts a run for monthYear with a fresh run id.
func NewState(monthYear string) *PipelineState {
	return &PipelineState{RunID: uuid.NewString(), MonthYear: monthYear}
}

// Run executes p for state with a logger carrying the run id and month
// attached to ctx, then reports the outcome on that logger.
func Run(ctx context.Context, p *Pipeline, state *PipelineState) error {
	log := logger.WithFields(logger.FromContext(ctx), map[string]interface{}{
		"run_id": state.RunID,
		"month":  state.MonthYear,
	})
	ctx = logger.WithContext(ctx, log)

	err := p.Execute(ctx, state)
	Report(log, state, err)
	return err
}

// Report writes the single outcome record for a run: an error with its stage
// and stack, or "Success".
func Report(log zerolog.Logger, state *PipelineState, err error) {
	if err != nil {
		log.Error().Stack().Err(err).
			Str("stage", string(StageOf(err))).
			Int("rows_loaded", state.RowsLoaded).
			Msg("Operation failed due to an error")
		return
	}
	ev := log.Info().Int("rows", len(state.Result.Import)).Int("rows_loaded", state.RowsLoaded)
	if state.ArchiveURI != "" {
		ev = ev.Str("archive_uri", state.ArchiveURI)
	}
	if state.ExportPath != "" {
		ev = ev.Str("export_path", state.ExportPath)
	}
	ev.Msg("Success")
}
