// Parameter form equivalent to the run dialog
package gui

import (
	"fmt"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/widget"

	"droste-effect/internal/algorithms"
	"droste-effect/internal/config"
)

var yesNo = []string{"yes", "no"}

// ParamsForm edits a config.Params record.
type ParamsForm struct {
	shrink           *widget.Entry
	iterations       *widget.Entry
	timelapse        *widget.Select
	fps              *widget.Entry
	includeReverse   *widget.Select
	saveReversedClip *widget.Select
	resampling       *widget.Select
	rotation         *widget.Entry
	outputFormat     *widget.Select

	// fields the dialog does not show are carried through unchanged
	base config.Params

	form *widget.Form
}

func NewParamsForm(params config.Params) *ParamsForm {
	pf := &ParamsForm{base: params}
	pf.initializeUI()
	pf.SetParams(params)
	return pf
}

func (pf *ParamsForm) initializeUI() {
	pf.shrink = widget.NewEntry()
	pf.iterations = widget.NewEntry()
	pf.fps = widget.NewEntry()
	pf.rotation = widget.NewEntry()

	pf.includeReverse = widget.NewSelect(yesNo, nil)
	pf.saveReversedClip = widget.NewSelect(yesNo, nil)
	pf.timelapse = widget.NewSelect(yesNo, func(v string) {
		pf.updateVideoFields(v == "yes")
	})
	pf.resampling = widget.NewSelect(algorithms.Names(), nil)
	pf.outputFormat = widget.NewSelect(config.OutputFormats, nil)

	pf.form = widget.NewForm(
		widget.NewFormItem("Shrink Factor (0.1-1.0)", pf.shrink),
		widget.NewFormItem("Max Iterations", pf.iterations),
		widget.NewFormItem("Save Timelapse Video", pf.timelapse),
		widget.NewFormItem("FPS", pf.fps),
		widget.NewFormItem("Include Reverse in Video", pf.includeReverse),
		widget.NewFormItem("Save Reversed Clip", pf.saveReversedClip),
		widget.NewFormItem("Resampling Method", pf.resampling),
		widget.NewFormItem("Rotation Angle (degrees)", pf.rotation),
		widget.NewFormItem("Output Format", pf.outputFormat),
	)
}

// updateVideoFields greys out the video options when no time-lapse is saved.
func (pf *ParamsForm) updateVideoFields(timelapse bool) {
	for _, w := range []fyne.Disableable{pf.fps, pf.includeReverse, pf.saveReversedClip} {
		if timelapse {
			w.Enable()
		} else {
			w.Disable()
		}
	}
}

func (pf *ParamsForm) GetContainer() fyne.CanvasObject {
	return pf.form
}

// SetParams shows params in the form.
func (pf *ParamsForm) SetParams(p config.Params) {
	pf.base = p
	pf.shrink.SetText(strconv.FormatFloat(p.ShrinkFactor, 'g', -1, 64))
	pf.iterations.SetText(strconv.Itoa(p.MaxIterations))
	pf.fps.SetText(strconv.Itoa(p.FPS))
	pf.rotation.SetText(strconv.FormatFloat(p.RotationAngle, 'g', -1, 64))
	pf.includeReverse.SetSelected(config.FormatYesNo(p.IncludeReverse))
	pf.saveReversedClip.SetSelected(config.FormatYesNo(p.SaveReversedClip))
	pf.resampling.SetSelected(strings.ToLower(p.Resampling))
	pf.outputFormat.SetSelected(strings.ToLower(p.OutputFormat))
	pf.timelapse.SetSelected(config.FormatYesNo(p.SaveTimelapse))
}

// Params reads and validates the form. The error message is suitable for
// an error dialog.
func (pf *ParamsForm) Params() (config.Params, error) {
	p := pf.base
	var err error

	if p.ShrinkFactor, err = strconv.ParseFloat(strings.TrimSpace(pf.shrink.Text), 64); err != nil {
		return p, fmt.Errorf("%w: shrink factor must be a number", config.ErrInvalidParams)
	}
	if p.MaxIterations, err = strconv.Atoi(strings.TrimSpace(pf.iterations.Text)); err != nil {
		return p, fmt.Errorf("%w: max iterations must be a positive integer", config.ErrInvalidParams)
	}
	if p.RotationAngle, err = strconv.ParseFloat(strings.TrimSpace(pf.rotation.Text), 64); err != nil {
		return p, fmt.Errorf("%w: rotation angle must be a number", config.ErrInvalidParams)
	}
	if p.SaveTimelapse, err = config.ParseYesNo(pf.timelapse.Selected); err != nil {
		return p, fmt.Errorf("%w: %v", config.ErrInvalidParams, err)
	}
	if p.SaveTimelapse {
		if p.FPS, err = strconv.Atoi(strings.TrimSpace(pf.fps.Text)); err != nil {
			return p, fmt.Errorf("%w: FPS must be a positive integer", config.ErrInvalidParams)
		}
		if p.IncludeReverse, err = config.ParseYesNo(pf.includeReverse.Selected); err != nil {
			return p, fmt.Errorf("%w: %v", config.ErrInvalidParams, err)
		}
		if p.SaveReversedClip, err = config.ParseYesNo(pf.saveReversedClip.Selected); err != nil {
			return p, fmt.Errorf("%w: %v", config.ErrInvalidParams, err)
		}
	} else {
		p.IncludeReverse, p.SaveReversedClip = false, false
	}
	p.Resampling = pf.resampling.Selected
	p.OutputFormat = pf.outputFormat.Selected

	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}
