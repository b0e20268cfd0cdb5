package usecase

import (
	"context"
	"sync"
	"time"
)

const responseWindow = 100

// servingStats tracks request accounting and a rolling window of the last
// 100 response times.
type servingStats struct {
	mu        sync.Mutex
	requests  uint64
	errors    uint64
	durations []float64 // milliseconds, oldest first
}

func newServingStats() *servingStats {
	return &servingStats{durations: make([]float64, 0, responseWindow)}
}

func (s *servingStats) record(took time.Duration, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
	if !ok {
		s.errors++
	}
	if len(s.durations) == responseWindow {
		s.durations = s.durations[1:]
	}
	s.durations = append(s.durations, float64(took.Microseconds())/1000)
}

func (s *servingStats) snapshot() (requests, errors uint64, avgMs float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	requests, errors = s.requests, s.errors
	if len(s.durations) > 0 {
		var sum float64
		for _, d := range s.durations {
			sum += d
		}
		avgMs = sum / float64(len(s.durations))
	}
	return requests, errors, avgMs
}

// ServiceHealth is the /health response body.
type ServiceHealth struct {
	Status               string  `json:"status"`
	ModelsLoaded         int     `json:"models_loaded"`
	CollaboratorHealthy  bool    `json:"collaborator_healthy"`
	Requests             uint64  `json:"requests"`
	Errors               uint64  `json:"errors"`
	SuccessRate          float64 `json:"success_rate"`
	AvgResponseTimeMs    float64 `json:"avg_response_time_ms"`
	ResponseWindowLength int     `json:"response_window_length"`
}

// Health reports serving readiness: zero loaded models is unhealthy, an
// unreachable collaborator degrades but does not fail the service.
func (s *PredictionService) Health(ctx context.Context) ServiceHealth {
	requests, errors, avgMs := s.stats.snapshot()

	h := ServiceHealth{
		Status:            "healthy",
		ModelsLoaded:      s.reg.Len(),
		Requests:          requests,
		Errors:            errors,
		AvgResponseTimeMs: avgMs,
	}
	if requests > 0 {
		h.SuccessRate = float64(requests-errors) / float64(requests)
	}
	if window := int(requests); window < responseWindow {
		h.ResponseWindowLength = window
	} else {
		h.ResponseWindowLength = responseWindow
	}

	if s.telemetry != nil {
		h.CollaboratorHealthy = s.telemetry.Reachable(ctx)
	}
	if h.ModelsLoaded == 0 {
		h.Status = "unhealthy"
	} else if !h.CollaboratorHealthy {
		h.Status = "degraded"
	}
	return h
}
