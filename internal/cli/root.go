package cli

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"droste-effect/internal/config"
	"droste-effect/internal/pipeline"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Debug      bool
	ConfigPath string
	Quiet      bool

	// PipelineOptions are appended to the runner options (for testing).
	PipelineOptions []pipeline.Option
	// Prompter replaces the readline prompt of the interactive command (for testing).
	Prompter LineReader

	logger *logrus.Logger
}

// NewRootCommand creates the droste command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "droste",
		Short: "Recursive nesting (Droste) effect for images",
		Long: `Droste repeatedly shrinks, rotates and pastes an image into its own centre,
saves the final composite and can assemble every iteration into a time-lapse
video, optionally with a reversed clip.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.logger = newLogger(opts.Debug, cmd.ErrOrStderr())
			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&opts.Debug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML configuration file")
	cmd.PersistentFlags().BoolVarP(&opts.Quiet, "quiet", "q", false, "no progress output")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newInteractiveCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))
	cmd.AddCommand(newConfigCommand(opts))

	return cmd
}

// newLogger mirrors the GUI entry point: text with timestamps when debugging,
// JSON otherwise.
func newLogger(debug bool, w io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	if debug {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return logger
	}
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})
	return logger
}

func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return cfg, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	return cfg, nil
}

func (o *RootOptions) log() *logrus.Logger {
	if o.logger == nil {
		o.logger = newLogger(o.Debug, io.Discard)
	}
	return o.logger
}

func usageError(format string, args ...any) error {
	return NewExitError(ExitCommandError, fmt.Sprintf(format, args...))
}
