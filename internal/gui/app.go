// Main application window: parameters, preview and run control
package gui

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"

	"droste-effect/internal/config"
	"droste-effect/internal/core"
	imageio "droste-effect/internal/io"
	"droste-effect/internal/journal"
	"droste-effect/internal/pipeline"
	"droste-effect/internal/video"
)

// Application is the main window.
type Application struct {
	app       fyne.App
	window    fyne.Window
	logger    logrus.FieldLogger
	debugMode bool

	cfg       config.Config
	imageData *core.ImageData
	loader    *imageio.ImageLoader
	journal   *journal.Journal
	runner    *pipeline.Runner

	form         *ParamsForm
	preview      *Preview
	menuHandler  *MenuHandler
	runButton    *widget.Button
	cancelButton *widget.Button
	progress     *widget.ProgressBar
	status       *StatusManager
	info         *InfoPanel

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewApplication(app fyne.App, logger logrus.FieldLogger, cfg config.Config, debugMode bool, opts ...pipeline.Option) *Application {
	window := app.NewWindow("Droste")
	window.Resize(fyne.NewSize(1200, 760))
	window.CenterOnScreen()

	a := &Application{
		app:       app,
		window:    window,
		logger:    logger,
		debugMode: debugMode,
		cfg:       cfg,
	}
	a.initializeCore(opts)
	a.initializeGUI()
	a.setupLayout()
	return a
}

func (a *Application) initializeCore(opts []pipeline.Option) {
	a.imageData = core.NewImageData()
	a.loader = imageio.NewImageLoader(a.logger)

	if path := a.cfg.Settings.JournalPath; path != "" {
		j, err := journal.Open(path)
		if err != nil {
			a.logger.WithError(err).Warn("Run journal unavailable")
		} else {
			a.journal = j
		}
	}

	hooks := pipeline.Hooks{
		OnStage:       a.onStage,
		OnStep:        a.onStep,
		OnEncodeFrame: a.onEncodeFrame,
	}
	base := []pipeline.Option{pipeline.WithJournal(a.journal), pipeline.WithHooks(hooks)}
	a.runner = pipeline.NewRunner(a.logger, append(base, opts...)...)
}

func (a *Application) initializeGUI() {
	a.form = NewParamsForm(a.cfg.Params)
	a.preview = NewPreview()
	a.menuHandler = NewMenuHandler(a.window, a.logger)
	a.menuHandler.SetCallbacks(a.openImage, a.startRun, a.cancelRun)

	a.runButton = widget.NewButton("Run", a.startRun)
	a.runButton.Importance = widget.HighImportance
	a.runButton.Disable()
	a.cancelButton = widget.NewButton("Cancel", a.cancelRun)
	a.cancelButton.Disable()

	a.progress = widget.NewProgressBar()
	a.status = NewStatusManager()
	a.info = NewInfoPanel()
}

func (a *Application) setupLayout() {
	controls := container.NewVBox(
		widget.NewCard("Parameters", "", a.form.GetContainer()),
		container.NewGridWithColumns(3,
			widget.NewButton("Open Image...", a.menuHandler.OpenImage),
			a.runButton,
			a.cancelButton,
		),
		a.progress,
		a.status.GetWidget(),
	)

	right := container.NewBorder(nil, nil, nil, container.NewVScroll(a.info.GetContainer()), a.preview.GetContainer())
	split := container.NewHSplit(container.NewVScroll(controls), right)
	split.SetOffset(0.3)

	a.window.SetMainMenu(a.menuHandler.GetMainMenu())
	a.window.SetContent(split)
}

// openImage loads path as the source image.
func (a *Application) openImage(path string) {
	img, format, err := a.loader.LoadImage(path)
	if err != nil {
		a.showError("Failed to Load Image", err)
		return
	}
	if err := a.imageData.SetOriginal(img, path); err != nil {
		a.showError("Invalid Image", err)
		return
	}
	meta := a.imageData.GetMetadata()
	a.logger.WithFields(logrus.Fields{"filepath": path, "format": format}).Info("Image selected")

	fyne.Do(func() {
		a.preview.SetSource(a.imageData.GetOriginal())
		a.preview.ClearResult()
		a.runButton.Enable()
		a.info.ShowImageInfo(path, meta)
		a.info.Clear()
		a.status.ShowInfo(fmt.Sprintf("Loaded %s (%dx%d)", filepath.Base(path), meta.Width, meta.Height))
	})
}

// startRun validates the form and runs the pipeline in the background.
func (a *Application) startRun() {
	if !a.imageData.HasImage() {
		a.showError("No Image", fmt.Errorf("no image selected"))
		return
	}
	params, err := a.form.Params()
	if err != nil {
		a.showError("Invalid Input", err)
		return
	}

	a.mu.Lock()
	if a.cancel != nil {
		a.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.mu.Unlock()

	cfg := a.cfg
	cfg.Params = params
	source := a.imageData.GetFilepath()

	a.runButton.Disable()
	a.cancelButton.Enable()
	a.progress.SetValue(0)

	go func() {
		out, err := a.runner.Run(ctx, pipeline.Request{Source: source, Config: cfg})
		a.finishRun(out, err)
	}()
}

func (a *Application) cancelRun() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.logger.Info("Run cancelled by user")
		a.cancel()
	}
}

func (a *Application) finishRun(out *pipeline.Outcome, err error) {
	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.mu.Unlock()

	var result *core.ImageData
	if err == nil {
		// reload the saved file so the preview shows what was written
		if img, _, lerr := a.loader.LoadImage(out.Paths.Image); lerr == nil {
			result = core.NewImageData()
			_ = result.SetOriginal(img, out.Paths.Image)
		}
	}

	fyne.Do(func() {
		a.runButton.Enable()
		a.cancelButton.Disable()
		if err != nil {
			a.progress.SetValue(0)
			a.showError("Processing Failed", err)
			return
		}
		a.progress.SetValue(1)
		if result != nil {
			a.preview.SetResult(result.GetOriginal())
		}
		a.info.ShowOutcome(out)
		if out.Status() == journal.StatusOK {
			a.status.ShowSuccess(fmt.Sprintf("Saved %s", filepath.Base(out.Paths.Image)))
		} else {
			a.status.ShowWarning("Image saved, some videos failed")
		}
		dialog.ShowInformation("Done", summary(out), a.window)
	})
}

func summary(out *pipeline.Outcome) string {
	msg := fmt.Sprintf("Saved %s\n%d frames (%s) in %.2f seconds",
		out.Paths.Image, out.Frames, out.Termination, out.Elapsed.Seconds())
	if out.Artifacts == nil {
		return msg
	}
	for _, art := range out.Artifacts.All() {
		if art.OK() {
			msg += fmt.Sprintf("\n%s video: %s", art.Kind, art.Path)
		} else {
			msg += fmt.Sprintf("\n%s video failed: %v", art.Kind, art.Err)
		}
	}
	return msg
}

func (a *Application) onStage(runID, source, stage string) {
	fyne.Do(func() {
		a.status.ShowInfo(fmt.Sprintf("%s: %s", filepath.Base(source), stage))
	})
}

func (a *Application) onStep(runID string, step core.Step, planned int) {
	if planned == 0 {
		return
	}
	// compositing fills the first half of the bar
	v := 0.5 * float64(step.Iteration+1) / float64(planned)
	fyne.Do(func() { a.progress.SetValue(v) })
}

func (a *Application) onEncodeFrame(runID string, kind video.Kind, done, total int) {
	if total == 0 {
		return
	}
	v := 0.5 + 0.5*float64(done)/float64(total)
	fyne.Do(func() { a.progress.SetValue(v) })
}

func (a *Application) ShowAndRun() {
	a.logger.Info("Showing main application window")
	a.window.SetCloseIntercept(func() {
		a.cleanup()
		a.app.Quit()
	})
	a.window.ShowAndRun()
}

func (a *Application) cleanup() {
	a.logger.Info("Cleaning up application resources")
	a.cancelRun()
	a.imageData.Clear()
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.WithError(err).Warn("error closing journal")
		}
	}
}

func (a *Application) showError(title string, err error) {
	a.logger.WithError(err).Error(title)
	fyne.Do(func() {
		dialog.ShowError(err, a.window)
		a.status.ShowError(err)
	})
}
