package core

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// StageStats accumulates per-stage timings of composite iterations.
type StageStats struct {
	mu        sync.Mutex
	logger    logrus.FieldLogger
	durations map[string][]time.Duration
	failures  map[string]int
}

func NewStageStats(logger logrus.FieldLogger) *StageStats {
	return &StageStats{
		logger:    logger,
		durations: make(map[string][]time.Duration),
		failures:  make(map[string]int),
	}
}

// Record stores the outcome of one stage of one iteration.
func (s *StageStats) Record(iteration int, stage string, duration time.Duration, err error) {
	s.mu.Lock()
	s.durations[stage] = append(s.durations[stage], duration)
	if err != nil {
		s.failures[stage]++
	}
	s.mu.Unlock()

	if s.logger == nil {
		return
	}
	entry := s.logger.WithFields(logrus.Fields{
		"iteration":   iteration,
		"stage":       stage,
		"duration_ms": float64(duration.Microseconds()) / 1000,
	})
	if err != nil {
		entry.WithError(err).Error("stage failed")
		return
	}
	entry.Trace("stage done")
}

// Average returns the mean duration recorded for stage.
func (s *StageStats) Average(stage string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return averageDuration(s.durations[stage])
}

// Count returns how many times stage ran.
func (s *StageStats) Count(stage string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.durations[stage])
}

// GetStats summarises the recorded timings, keyed by stage.
func (s *StageStats) GetStats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make(map[string]interface{}, len(s.durations))
	for stage, ds := range s.durations {
		var total time.Duration
		for _, d := range ds {
			total += d
		}
		stats[stage] = map[string]interface{}{
			"count":    len(ds),
			"failures": s.failures[stage],
			"total":    total,
			"average":  averageDuration(ds),
		}
	}
	return stats
}

func averageDuration(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range durations {
		total += d
	}
	return total / time.Duration(len(durations))
}
