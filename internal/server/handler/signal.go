package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/mmsignal/internal/domain"
	"github.com/alanyoungcy/mmsignal/internal/strategy"
)

// SignalHistory reads persisted signals.
type SignalHistory interface {
	History(ctx context.Context, opts domain.ListOpts) ([]domain.SignalEvent, error)
}

// SignalEngine is the live engine view the signal handler needs.
type SignalEngine interface {
	RecentSignals(limit int) []domain.SignalEvent
	Positions() []strategy.PositionView
	ClosePosition(exchange, instrument string) error
}

// SignalHandler serves live signal endpoints.
type SignalHandler struct {
	history SignalHistory
	engine  SignalEngine
	logger  *slog.Logger
}

// NewSignalHandler creates a SignalHandler. Either dependency may be nil.
// Recent signals come from history when it is set and from the engine's
// in-memory ring otherwise.
func NewSignalHandler(history SignalHistory, engine SignalEngine, logger *slog.Logger) *SignalHandler {
	return &SignalHandler{history: history, engine: engine, logger: logHandler(logger, "signals")}
}

// ListRecent returns recent signals, newest first.
// GET /api/signals/recent?limit=50
func (h *SignalHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	var (
		events []domain.SignalEvent
		err    error
	)
	switch {
	case h.history != nil:
		events, err = h.history.History(r.Context(), opts)
	case h.engine != nil:
		events = h.engine.RecentSignals(opts.Limit)
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list signals failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list signals")
		return
	}
	if events == nil {
		events = []domain.SignalEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"signals": events})
}

// ListPositions returns the state of every (exchange, instrument) stream.
// GET /api/signals/positions
func (h *SignalHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	positions := []strategy.PositionView{}
	if h.engine != nil {
		positions = h.engine.Positions()
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": positions})
}

// ClosePosition flattens one stream.
// POST /api/signals/positions/close?exchange=binance&instrument=BTC/USDT
func (h *SignalHandler) ClosePosition(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "signal engine is not running")
		return
	}
	exchange := r.URL.Query().Get("exchange")
	instrument := r.URL.Query().Get("instrument")
	if exchange == "" || instrument == "" {
		writeError(w, http.StatusBadRequest, "exchange and instrument query parameters required")
		return
	}
	if err := h.engine.ClosePosition(exchange, instrument); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no such position")
			return
		}
		h.logger.ErrorContext(r.Context(), "close position failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to close position")
		return
	}
	h.logger.InfoContext(r.Context(), "position closed",
		slog.String("exchange", exchange),
		slog.String("instrument", instrument),
	)
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}
