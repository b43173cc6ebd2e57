// Image difference metrics for frame sequences
package metrics

import (
	"context"
	"fmt"
	"image"
	"math"
	"sort"

	"droste-effect/internal/core"
)

// Metric defines the interface for image difference metrics
type Metric interface {
	// Calculate compares two images of identical size
	Calculate(original, processed *image.NRGBA) (float64, error)

	GetName() string
	GetDescription() string

	// GetRange returns the value range (min, max)
	GetRange() (float64, float64)

	// IsHigherBetter is true when higher values mean more similar images
	IsHigherBetter() bool
}

// Evaluator manages and calculates multiple metrics
type Evaluator struct {
	metrics map[string]Metric
}

// NewEvaluator creates an evaluator with the default metrics registered.
func NewEvaluator() *Evaluator {
	e := &Evaluator{
		metrics: make(map[string]Metric),
	}
	e.RegisterDefaultMetrics()
	return e
}

func (e *Evaluator) RegisterDefaultMetrics() {
	e.Register("mse", NewMSE())
	e.Register("psnr", NewPSNR())
	e.Register("ssim", NewSSIM())
	e.Register("changed", NewChangedRatio())
}

func (e *Evaluator) Register(name string, metric Metric) {
	e.metrics[name] = metric
}

// Names lists registered metric names, sorted.
func (e *Evaluator) Names() []string {
	names := make([]string, 0, len(e.metrics))
	for n := range e.metrics {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Calculate calculates a specific metric
func (e *Evaluator) Calculate(name string, original, processed *image.NRGBA) (float64, error) {
	metric, exists := e.metrics[name]
	if !exists {
		return 0, fmt.Errorf("metric not found: %s", name)
	}
	return metric.Calculate(original, processed)
}

// CalculateAll calculates all registered metrics, skipping those that fail.
func (e *Evaluator) CalculateAll(original, processed *image.NRGBA) map[string]float64 {
	results := make(map[string]float64)
	for name, metric := range e.metrics {
		if value, err := metric.Calculate(original, processed); err == nil {
			results[name] = value
		}
	}
	return results
}

// MetricInfo provides metadata about a metric
type MetricInfo struct {
	Name         string
	Description  string
	Range        [2]float64 // [min, max]
	HigherBetter bool
}

func (e *Evaluator) GetMetricInfo() map[string]MetricInfo {
	info := make(map[string]MetricInfo)
	for name, metric := range e.metrics {
		min, max := metric.GetRange()
		info[name] = MetricInfo{
			Name:         metric.GetName(),
			Description:  metric.GetDescription(),
			Range:        [2]float64{min, max},
			HigherBetter: metric.IsHigherBetter(),
		}
	}
	return info
}

// FrameDelta holds the metrics between frame Index-1 and frame Index.
type FrameDelta struct {
	Index   int
	Metrics map[string]float64
}

// SequenceReport summarises how much each iteration changed the canvas.
type SequenceReport struct {
	Frames int
	Deltas []FrameDelta
	// FinalVsSource compares the last frame with frame 0.
	FinalVsSource map[string]float64
	// Converged is the first index whose delta PSNR is infinite, or -1.
	Converged int
}

// Mean averages a metric over all deltas, ignoring infinite values.
func (r SequenceReport) Mean(name string) float64 {
	var sum float64
	var n int
	for _, d := range r.Deltas {
		v, ok := d.Metrics[name]
		if !ok || math.IsInf(v, 0) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// EvaluateSequence walks seq once, comparing each frame with its predecessor.
// ctx is checked per frame.
func (e *Evaluator) EvaluateSequence(ctx context.Context, seq core.FrameSequence) (SequenceReport, error) {
	report := SequenceReport{Frames: seq.Len(), Converged: -1}
	if seq.Len() == 0 {
		return report, nil
	}

	first, err := seq.Frame(0)
	if err != nil {
		return report, err
	}
	prev := first
	for i := 1; i < seq.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		cur, err := seq.Frame(i)
		if err != nil {
			return report, err
		}
		m := e.CalculateAll(prev, cur)
		report.Deltas = append(report.Deltas, FrameDelta{Index: i, Metrics: m})
		if report.Converged < 0 && math.IsInf(m["psnr"], 1) {
			report.Converged = i
		}
		prev = cur
	}
	report.FinalVsSource = e.CalculateAll(first, prev)
	return report, nil
}
