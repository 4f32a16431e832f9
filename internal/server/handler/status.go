package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

// EngineProbe reports live engine progress. Both methods are optional in
// the sense that a nil probe reports zeros.
type EngineProbe interface {
	LastCycle() uint64
	OpenPositions() int
}

// StatusHandler serves the engine summary for the dashboard.
type StatusHandler struct {
	mode        string
	instruments []string
	exchanges   []string
	startedAt   time.Time
	probe       EngineProbe
}

// NewStatusHandler creates a StatusHandler. probe may be nil.
func NewStatusHandler(mode string, instruments, exchanges []string, startedAt time.Time, probe EngineProbe) *StatusHandler {
	return &StatusHandler{
		mode:        mode,
		instruments: instruments,
		exchanges:   exchanges,
		startedAt:   startedAt,
		probe:       probe,
	}
}

// Status builds the current summary.
func (h *StatusHandler) Status() domain.EngineStatus {
	st := domain.EngineStatus{
		Mode:          h.mode,
		Instruments:   h.instruments,
		Exchanges:     h.exchanges,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
	}
	if st.UptimeSeconds < 0 {
		st.UptimeSeconds = 0
	}
	if h.probe != nil {
		st.LastCycle = h.probe.LastCycle()
		st.OpenPositions = h.probe.OpenPositions()
	}
	if st.Instruments == nil {
		st.Instruments = []string{}
	}
	if st.Exchanges == nil {
		st.Exchanges = []string{}
	}
	return st
}

// GetStatus responds with the engine summary.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Status())
}
