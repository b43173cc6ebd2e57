package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pterm/pterm"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"droste-effect/internal/config"
	"droste-effect/internal/core"
	"droste-effect/internal/journal"
	"droste-effect/internal/pipeline"
	"droste-effect/internal/video"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // every run succeeded
	ExitFailure      = 1 // at least one run failed
	ExitCommandError = 2 // bad flags, configuration or input files
)

// ExitError carries the process exit code for a command failure.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

var printer = message.NewPrinter(language.English)

// progressUI renders pipeline hooks as pterm progress bars. Hooks fire from
// both the compositing and the encoding goroutine.
type progressUI struct {
	mu      sync.Mutex
	w       io.Writer
	quiet   bool
	sources map[string]string
	bars    map[string]*pterm.ProgressbarPrinter
}

func newProgressUI(w io.Writer, quiet bool) *progressUI {
	return &progressUI{
		w:       w,
		quiet:   quiet,
		sources: map[string]string{},
		bars:    map[string]*pterm.ProgressbarPrinter{},
	}
}

func (p *progressUI) hooks() pipeline.Hooks {
	if p.quiet {
		return pipeline.Hooks{}
	}
	return pipeline.Hooks{
		OnStage:       p.stage,
		OnStep:        p.step,
		OnEncodeFrame: p.encodeFrame,
	}
}

func (p *progressUI) stage(runID, source, stage string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sources[runID] = filepath.Base(source)
	switch stage {
	case pipeline.StageDecode:
		pterm.Info.WithWriter(p.w).Printfln("%s: loading", p.sources[runID])
	case pipeline.StageFailed, pipeline.StageDone:
		for key, bar := range p.bars {
			if strings.HasPrefix(key, runID+"/") {
				bar.Stop()
				delete(p.bars, key)
			}
		}
	}
}

func (p *progressUI) step(runID string, s core.Step, planned int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance(runID+"/composite", "Compositing "+p.sources[runID], planned)
}

func (p *progressUI) encodeFrame(runID string, kind video.Kind, done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance(runID+"/"+string(kind), fmt.Sprintf("Encoding %s video", kind), total)
}

// advance starts the bar on first use and moves it one step. pterm stops a
// bar by itself once it reaches its total.
func (p *progressUI) advance(key, title string, total int) {
	bar, ok := p.bars[key]
	if !ok {
		started, err := pterm.DefaultProgressbar.
			WithTotal(total).
			WithTitle(title).
			WithWriter(p.w).
			WithShowElapsedTime(false).
			Start()
		if err != nil {
			return
		}
		bar = started
		p.bars[key] = bar
	}
	bar.Increment()
}

// printParams writes the parameter summary shown after every run.
func printParams(w io.Writer, params config.Params) {
	pterm.DefaultSection.WithWriter(w).Println("Chosen Parameters")
	rows := [][]string{
		{"Shrink factor", printer.Sprintf("%v", params.ShrinkFactor)},
		{"Max iterations", printer.Sprintf("%d", params.MaxIterations)},
		{"Save time-lapse", config.FormatYesNo(params.SaveTimelapse)},
		{"FPS", printer.Sprintf("%d", params.FPS)},
		{"Include reverse", config.FormatYesNo(params.IncludeReverse)},
		{"Save reversed clip", config.FormatYesNo(params.SaveReversedClip)},
		{"Resampling", params.Resampling},
		{"Rotation angle", printer.Sprintf("%v°", params.RotationAngle)},
		{"Output format", params.OutputFormat},
	}
	_ = pterm.DefaultTable.WithData(rows).WithWriter(w).Render()
}

// printResults writes one line per run and the batch timing.
func printResults(w io.Writer, results []pipeline.BatchResult, elapsed time.Duration) {
	for _, res := range results {
		name := filepath.Base(res.Source)
		if res.Err != nil {
			pterm.Error.WithWriter(w).Printfln("%s: %v", name, res.Err)
			continue
		}
		out := res.Outcome
		line := printer.Sprintf("%s: %d frames (%s) -> %s",
			name, out.Frames, out.Termination, out.Paths.Image)
		if out.Status() == journal.StatusOK {
			pterm.Success.WithWriter(w).Println(line)
		} else {
			pterm.Warning.WithWriter(w).Println(line)
		}
		if out.Artifacts != nil {
			for _, a := range out.Artifacts.All() {
				if a.OK() {
					pterm.Success.WithWriter(w).Printfln("  %s video: %s (%s)", a.Kind, a.Path, formatDuration(a.Duration))
				} else {
					pterm.Error.WithWriter(w).Printfln("  %s video failed: %v", a.Kind, a.Err)
				}
			}
		}
		if out.Metrics != nil {
			pterm.Info.WithWriter(w).Println(printer.Sprintf("  mean PSNR between frames: %.2f dB", out.Metrics.Mean("psnr")))
		}
	}
	pterm.Info.WithWriter(w).Println(printer.Sprintf("Total processing time: %.2f seconds", elapsed.Seconds()))
}

func formatDuration(d time.Duration) string {
	return printer.Sprintf("%.2fs", d.Seconds())
}
