package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"droste-effect/internal/algorithms"
	"droste-effect/internal/config"
	imageio "droste-effect/internal/io"
)

// ErrAborted is returned when the user ends the prompt session early.
var ErrAborted = errors.New("input aborted")

// LineReader is the subset of *readline.Instance the prompts use.
type LineReader interface {
	SetPrompt(prompt string)
	Readline() (string, error)
}

func newInteractiveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "interactive [image]",
		Short: "Ask for the image and every parameter, then run",
		Long: `Prompt for the source image and each parameter in turn. Pressing enter keeps
the value shown in brackets, which comes from the configuration file or the
built-in defaults. Invalid answers are explained and asked again.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}

			rl := rootOpts.Prompter
			if rl == nil {
				inst, err := readline.NewEx(&readline.Config{
					Stdin:           io.NopCloser(cmd.InOrStdin()),
					Stdout:          cmd.OutOrStdout(),
					Stderr:          cmd.ErrOrStderr(),
					InterruptPrompt: "^C",
					EOFPrompt:       "exit",
				})
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to start prompt", err)
				}
				defer inst.Close()
				rl = inst
			}

			p := &prompter{rl: rl, out: cmd.OutOrStdout()}
			source := ""
			if len(args) == 1 {
				source = args[0]
			}
			source, params, err := p.collect(source, cfg.Params)
			if errors.Is(err, ErrAborted) {
				pterm.Info.WithWriter(cmd.OutOrStdout()).Println("No image selected. Exiting.")
				return nil
			}
			if err != nil {
				return err
			}
			cfg.Params = params
			return execute(cmd, rootOpts, cfg, []string{source})
		},
	}
}

type prompter struct {
	rl  LineReader
	out io.Writer
}

// ask shows prompt with its default and keeps asking until parse accepts
// the answer. An empty answer selects def.
func (p *prompter) ask(label, def string, parse func(string) error) error {
	for {
		p.rl.SetPrompt(fmt.Sprintf("%s [%s]: ", label, def))
		line, err := p.rl.Readline()
		if err != nil {
			// io.EOF or readline.ErrInterrupt
			return ErrAborted
		}
		line = strings.TrimSpace(line)
		if line == "" {
			line = def
		}
		if err := parse(line); err != nil {
			pterm.Error.WithWriter(p.out).Println(strings.TrimPrefix(err.Error(), config.ErrInvalidParams.Error()+": "))
			continue
		}
		return nil
	}
}

// collect asks for the image path (unless given) and all parameters,
// validating each answer against the whole parameter record.
func (p *prompter) collect(source string, params config.Params) (string, config.Params, error) {
	loader := imageio.NewImageLoader(nil)
	if source == "" {
		err := p.ask("Image file", "", func(s string) error {
			if s == "" {
				return errors.New("please enter the path of an image")
			}
			if err := loader.ValidateImageFile(s); err != nil {
				return err
			}
			source = s
			return nil
		})
		if err != nil {
			return "", params, err
		}
	}

	// set applies one answer and rejects it if the record becomes invalid.
	set := func(apply func(*config.Params, string) error) func(string) error {
		return func(answer string) error {
			next := params
			if err := apply(&next, answer); err != nil {
				return err
			}
			if err := next.Validate(); err != nil {
				return err
			}
			params = next
			return nil
		}
	}

	steps := []struct {
		label string
		def   func() string
		apply func(*config.Params, string) error
		skip  func() bool
	}{
		{
			label: "Shrink factor (0 < s <= 1)",
			def:   func() string { return strconv.FormatFloat(params.ShrinkFactor, 'g', -1, 64) },
			apply: func(cp *config.Params, answer string) (err error) {
				cp.ShrinkFactor, err = parseFloat(answer, "shrink factor")
				return err
			},
		},
		{
			label: "Max iterations",
			def:   func() string { return strconv.Itoa(params.MaxIterations) },
			apply: func(cp *config.Params, answer string) (err error) {
				cp.MaxIterations, err = parseInt(answer, "max iterations")
				return err
			},
		},
		{
			label: "Save time-lapse video (yes/no)",
			def:   func() string { return config.FormatYesNo(params.SaveTimelapse) },
			apply: func(cp *config.Params, answer string) (err error) {
				if cp.SaveTimelapse, err = config.ParseYesNo(answer); err != nil {
					return err
				}
				if !cp.SaveTimelapse {
					cp.IncludeReverse, cp.SaveReversedClip = false, false
				}
				return nil
			},
		},
		{
			label: "FPS",
			def:   func() string { return strconv.Itoa(params.FPS) },
			apply: func(cp *config.Params, answer string) (err error) {
				cp.FPS, err = parseInt(answer, "FPS")
				return err
			},
			skip: func() bool { return !params.SaveTimelapse },
		},
		{
			label: "Include reverse in video (yes/no)",
			def:   func() string { return config.FormatYesNo(params.IncludeReverse) },
			apply: func(cp *config.Params, answer string) (err error) {
				cp.IncludeReverse, err = config.ParseYesNo(answer)
				return err
			},
			skip: func() bool { return !params.SaveTimelapse },
		},
		{
			label: "Save reversed clip (yes/no)",
			def:   func() string { return config.FormatYesNo(params.SaveReversedClip) },
			apply: func(cp *config.Params, answer string) (err error) {
				cp.SaveReversedClip, err = config.ParseYesNo(answer)
				return err
			},
			skip: func() bool { return !params.SaveTimelapse },
		},
		{
			label: "Resampling method (" + strings.Join(algorithms.Names(), ", ") + ")",
			def:   func() string { return params.Resampling },
			apply: func(cp *config.Params, answer string) error {
				cp.Resampling = strings.ToLower(answer)
				return nil
			},
		},
		{
			label: "Rotation angle (degrees)",
			def:   func() string { return strconv.FormatFloat(params.RotationAngle, 'g', -1, 64) },
			apply: func(cp *config.Params, answer string) (err error) {
				cp.RotationAngle, err = parseFloat(answer, "rotation angle")
				return err
			},
		},
		{
			label: "Output format (" + strings.Join(config.OutputFormats, ", ") + ")",
			def:   func() string { return params.OutputFormat },
			apply: func(cp *config.Params, answer string) error {
				cp.OutputFormat = strings.ToLower(answer)
				return nil
			},
		},
	}

	for _, st := range steps {
		if st.skip != nil && st.skip() {
			continue
		}
		if err := p.ask(st.label, st.def(), set(st.apply)); err != nil {
			return "", params, err
		}
	}
	return source, params, nil
}

func parseFloat(s, name string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	return v, nil
}

func parseInt(s, name string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}
