// Side panel with image details, run results and frame metrics
package gui

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"droste-effect/internal/core"
	"droste-effect/internal/metrics"
	"droste-effect/internal/pipeline"
)

// InfoPanel shows what is known about the current image and the last run.
type InfoPanel struct {
	container *fyne.Container

	imageContent   *fyne.Container
	runContent     *fyne.Container
	metricsContent *fyne.Container
}

func NewInfoPanel() *InfoPanel {
	panel := &InfoPanel{}
	panel.initializeUI()
	return panel
}

func (ip *InfoPanel) initializeUI() {
	ip.imageContent = container.NewVBox(widget.NewLabel("No image loaded."))
	ip.runContent = container.NewVBox(widget.NewLabel("No run yet."))
	ip.metricsContent = container.NewVBox(
		widget.NewLabel("Enable metrics in the settings to compare consecutive frames."),
	)

	ip.container = container.NewVBox(
		widget.NewCard("Image", "", ip.imageContent),
		widget.NewCard("Last Run", "", ip.runContent),
		widget.NewCard("Frame Metrics", "", ip.metricsContent),
	)
}

func (ip *InfoPanel) GetContainer() fyne.CanvasObject {
	return ip.container
}

// ShowImageInfo lists the source metadata.
func (ip *InfoPanel) ShowImageInfo(path string, meta core.ImageMetadata) {
	alpha := "yes"
	if meta.Opaque {
		alpha = "no"
	}
	ip.imageContent.RemoveAll()
	ip.imageContent.Add(widget.NewLabel(fmt.Sprintf("File: %s", filepath.Base(path))))
	ip.imageContent.Add(widget.NewLabel(fmt.Sprintf("Size: %dx%d", meta.Width, meta.Height)))
	ip.imageContent.Add(widget.NewLabel(fmt.Sprintf("Format: %s", meta.Format)))
	ip.imageContent.Add(widget.NewLabel(fmt.Sprintf("Transparency: %s", alpha)))
	ip.imageContent.Refresh()
}

// ShowOutcome lists the files and frame count of a finished run.
func (ip *InfoPanel) ShowOutcome(out *pipeline.Outcome) {
	ip.runContent.RemoveAll()
	ip.runContent.Add(widget.NewLabel(fmt.Sprintf("Frames: %d (%s)", out.Frames, out.Termination)))
	ip.runContent.Add(widget.NewLabel(fmt.Sprintf("Time: %.2f s", out.Elapsed.Seconds())))
	ip.runContent.Add(iconRow(theme.ConfirmIcon(), filepath.Base(out.Paths.Image)))
	if out.Artifacts != nil {
		for _, art := range out.Artifacts.All() {
			if art.OK() {
				ip.runContent.Add(iconRow(theme.ConfirmIcon(), fmt.Sprintf("%s: %s", art.Kind, filepath.Base(art.Path))))
			} else {
				ip.runContent.Add(iconRow(theme.ErrorIcon(), fmt.Sprintf("%s video failed", art.Kind)))
			}
		}
	}
	ip.runContent.Refresh()

	if out.Metrics != nil {
		ip.UpdateMetrics(*out.Metrics)
	}
}

// UpdateMetrics shows the mean frame-to-frame value of every metric.
func (ip *InfoPanel) UpdateMetrics(report metrics.SequenceReport) {
	ip.metricsContent.RemoveAll()
	if len(report.Deltas) == 0 {
		ip.metricsContent.Add(widget.NewLabel("Single frame, nothing to compare."))
		ip.metricsContent.Refresh()
		return
	}

	names := make([]string, 0, len(report.Deltas[0].Metrics))
	for name := range report.Deltas[0].Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ip.metricsContent.Add(metricWidget(name, report.Mean(name)))
	}
	if report.Converged >= 0 {
		ip.metricsContent.Add(widget.NewLabel(fmt.Sprintf("Unchanged from frame %d on", report.Converged)))
	}
	ip.metricsContent.Refresh()
}

func (ip *InfoPanel) Clear() {
	ip.runContent.RemoveAll()
	ip.runContent.Add(widget.NewLabel("No run yet."))
	ip.runContent.Refresh()
	ip.metricsContent.RemoveAll()
	ip.metricsContent.Refresh()
}

// rating grades the mean change between frames. Small changes per iteration
// mean the nested copies have become too small to matter.
func rating(name string, value float64) (string, fyne.Resource) {
	switch name {
	case "psnr":
		switch {
		case math.IsInf(value, 1) || value > 40:
			return "Negligible change", theme.WarningIcon()
		case value > 20:
			return "Moderate change", theme.InfoIcon()
		default:
			return "Strong change", theme.ConfirmIcon()
		}
	case "changed":
		switch {
		case value < 0.01:
			return "Negligible change", theme.WarningIcon()
		case value < 0.2:
			return "Moderate change", theme.InfoIcon()
		default:
			return "Strong change", theme.ConfirmIcon()
		}
	}
	return "", nil
}

func metricWidget(name string, value float64) fyne.CanvasObject {
	var text string
	switch name {
	case "psnr":
		text = fmt.Sprintf("PSNR: %.2f dB", value)
	case "ssim":
		text = fmt.Sprintf("SSIM: %.3f", value)
	case "mse":
		text = fmt.Sprintf("MSE: %.2f", value)
	case "changed":
		text = fmt.Sprintf("Changed pixels: %.1f%%", value*100)
	default:
		text = fmt.Sprintf("%s: %.3f", name, value)
	}

	label, icon := rating(name, value)
	if icon == nil {
		return widget.NewLabel(text)
	}
	return container.NewVBox(widget.NewLabel(text), iconRow(icon, label))
}

func iconRow(icon fyne.Resource, text string) fyne.CanvasObject {
	return container.NewHBox(widget.NewIcon(icon), widget.NewLabel(text))
}

// StatusManager shows one status line with an icon.
type StatusManager struct {
	widget    *widget.Card
	label     *widget.Label
	icon      *widget.Icon
	container *fyne.Container
}

func NewStatusManager() *StatusManager {
	sm := &StatusManager{
		label: widget.NewLabel("Open an image to start"),
		icon:  widget.NewIcon(theme.InfoIcon()),
	}
	sm.container = container.NewHBox(sm.icon, sm.label)
	sm.widget = widget.NewCard("", "", sm.container)
	return sm
}

func (sm *StatusManager) GetWidget() fyne.CanvasObject {
	return sm.widget
}

func (sm *StatusManager) Text() string {
	return sm.label.Text
}

func (sm *StatusManager) ShowInfo(message string) {
	sm.updateStatus(message, theme.InfoIcon())
}

func (sm *StatusManager) ShowSuccess(message string) {
	sm.updateStatus(message, theme.ConfirmIcon())
}

func (sm *StatusManager) ShowWarning(message string) {
	sm.updateStatus(message, theme.WarningIcon())
}

func (sm *StatusManager) ShowError(err error) {
	sm.updateStatus(fmt.Sprintf("Error: %s", err.Error()), theme.ErrorIcon())
}

func (sm *StatusManager) updateStatus(message string, icon fyne.Resource) {
	sm.icon.SetResource(icon)
	sm.label.SetText(message)
}
