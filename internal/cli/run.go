package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"droste-effect/internal/config"
	"droste-effect/internal/journal"
	"droste-effect/internal/pipeline"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	params paramFlags
}

func newRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <image>...",
		Short: "Apply the effect to one or more images",
		Long: `Apply the recursive nesting effect to each image in turn.

Settings come from the configuration file (--config) and are overridden by
flags. With several images, compositing of the next image overlaps with the
video encoding of the previous one.

Example:
  droste run photo.jpg
  droste run -s 0.9 -a 10 --include-reverse --fps 30 a.png b.png`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if err := opts.params.apply(cmd, &cfg); err != nil {
				return err
			}
			return execute(cmd, opts.RootOptions, cfg, args)
		},
	}
	bindParamFlags(cmd, &opts.params)
	return cmd
}

// execute runs every source with cfg and prints the summary. It is shared
// by the run and interactive commands.
func execute(cmd *cobra.Command, opts *RootOptions, cfg config.Config, sources []string) error {
	logger := opts.log()
	out := cmd.OutOrStdout()

	var j *journal.Journal
	if cfg.Settings.JournalPath != "" {
		var err error
		if j, err = journal.Open(cfg.Settings.JournalPath); err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if err := j.Close(); err != nil {
				logger.WithError(err).Warn("error closing journal")
			}
		}()
	}

	ui := newProgressUI(cmd.ErrOrStderr(), opts.Quiet)
	runnerOpts := append([]pipeline.Option{
		pipeline.WithJournal(j),
		pipeline.WithHooks(ui.hooks()),
	}, opts.PipelineOptions...)
	runner := pipeline.NewRunner(logger, runnerOpts...)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reqs := make([]pipeline.Request, len(sources))
	for i, src := range sources {
		reqs[i] = pipeline.Request{Source: src, Config: cfg}
	}

	start := time.Now()
	results := runner.RunAll(ctx, reqs)

	printParams(out, cfg.Params)
	printResults(out, results, time.Since(start))

	var failed, inputErrors int
	for _, res := range results {
		if res.Err != nil {
			failed++
			if pipeline.IsInputError(res.Err) {
				inputErrors++
			}
		}
	}
	switch {
	case failed == 0:
		return nil
	case inputErrors == len(results):
		return NewExitError(ExitCommandError, fmt.Sprintf("%d of %d images could not be processed", failed, len(results)))
	default:
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d runs failed", failed, len(results)))
	}
}
