package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dvloznov/generations-billing/internal/config"
	"github.com/dvloznov/generations-billing/internal/logger"
	"github.com/dvloznov/generations-billing/internal/period"
	"github.com/dvloznov/generations-billing/internal/pipeline"
)

const defaultRunTimeout = 30 * time.Minute

type runOptions struct {
	asOf     string
	dryRun   bool
	out      string
	timeout  time.Duration
	failExit bool
}

func newRunCommand(env Env) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load last month's usage into the billing table and email the backup",
		Long: `Load last month's usage into the billing table and email the backup.

A failed run is written to the log file and exits 0 unless --fail-exit is
given. Usage errors are reported before the log file is opened and always
exit 1: invalid flags, a malformed --as-of, or a log file that cannot be
opened.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.out != "" && !opts.dryRun {
				return errors.New("--out requires --dry-run")
			}
			if opts.timeout <= 0 {
				return errors.New("--timeout must be positive")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			asOf, err := period.ParseAsOf(opts.asOf, env.Now())
			if err != nil {
				return err
			}

			log, closer, err := logger.NewFile(config.LogFilePath(env.Getenv), zerolog.InfoLevel, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, opts.timeout)
			defer cancel()
			ctx = logger.WithContext(ctx, log)

			return opts.finish(runMonth(ctx, env, period.Label(asOf), opts))
		},
	}

	cmd.Flags().StringVar(&opts.asOf, "as-of", "", "Reference date (YYYY-MM-DD); the run loads the month before it")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Skip load, archive and email; write the workbook locally")
	cmd.Flags().StringVar(&opts.out, "out", "", "Workbook path for --dry-run (default: the attachment file name)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", defaultRunTimeout, "Overall deadline for the run")
	cmd.Flags().BoolVar(&opts.failExit, "fail-exit", false, "Exit with status 1 when the run fails")

	return cmd
}

// runMonth loads configuration and runs the pipeline for monthYear. Every
// failure, configuration included, is logged once before it is returned.
func runMonth(ctx context.Context, env Env, monthYear string, opts runOptions) error {
	log := logger.FromContext(ctx)

	cfg, err := config.FromEnv(env.Getenv)
	if err != nil {
		log.Error().Stack().Err(errors.WithStack(err)).
			Str("stage", "config").
			Str("month", monthYear).
			Msg("Operation failed due to an error")
		return err
	}

	p := pipeline.NewMonthlyBillingPipeline(newDeps(cfg), pipeline.Options{
		DryRun:  opts.dryRun,
		OutPath: opts.out,
	})
	return pipeline.Run(ctx, p, pipeline.NewState(monthYear))
}

// finish applies the exit contract: a failed run has already been logged
// and exits 0 unless --fail-exit was given.
func (o runOptions) finish(err error) error {
	if err != nil && o.failExit {
		return err
	}
	return nil
}
