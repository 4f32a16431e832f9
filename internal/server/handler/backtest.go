package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/mmsignal/internal/backtest"
	"github.com/alanyoungcy/mmsignal/internal/domain"
	"github.com/alanyoungcy/mmsignal/internal/service"
)

// BacktestRunner defines the methods that the backtest handler requires.
type BacktestRunner interface {
	Run(ctx context.Context, req service.BacktestRequest) (domain.BacktestReport, error)
	Compare(ctx context.Context, req service.BacktestRequest) ([]domain.BacktestReport, error)
	Get(ctx context.Context, id string) (domain.BacktestReport, error)
	List(ctx context.Context, opts domain.ListOpts) ([]domain.BacktestSummary, error)
	Strategies() []string
}

// BacktestHandler serves on-demand backtests and their reports.
type BacktestHandler struct {
	runner BacktestRunner
	logger *slog.Logger
}

// NewBacktestHandler creates a BacktestHandler.
func NewBacktestHandler(runner BacktestRunner, logger *slog.Logger) *BacktestHandler {
	return &BacktestHandler{runner: runner, logger: logHandler(logger, "backtests")}
}

type compareResponse struct {
	Reports    []domain.BacktestSummary    `json:"reports"`
	Comparison []domain.StrategyComparison `json:"comparison"`
}

// Run executes a backtest, or a comparison when "strategies" is set.
// POST /api/backtests
func (h *BacktestHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req service.BacktestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if len(req.Strategies) > 0 {
		reports, err := h.runner.Compare(r.Context(), req)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		summaries := make([]domain.BacktestSummary, len(reports))
		for i, rep := range reports {
			summaries[i] = rep.Summary()
		}
		writeJSON(w, http.StatusOK, compareResponse{
			Reports:    summaries,
			Comparison: backtest.Comparisons(reports),
		})
		return
	}

	report, err := h.runner.Run(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

// Get returns one full report.
// GET /api/backtests/{id}
func (h *BacktestHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing backtest id")
		return
	}
	report, err := h.runner.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// List returns report summaries, newest first.
// GET /api/backtests?limit=50&offset=0
func (h *BacktestHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.runner.List(r.Context(), parseListOpts(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []domain.BacktestSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"backtests": list})
}

// Strategies lists the strategy names a request may use.
// GET /api/backtests/strategies
func (h *BacktestHandler) Strategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"strategies": h.runner.Strategies()})
}

// fail maps domain errors onto HTTP statuses.
func (h *BacktestHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "backtest not found")
	case errors.Is(err, domain.ErrUnknownStrategy),
		errors.Is(err, domain.ErrEmptySeries),
		errors.Is(err, domain.ErrOutOfOrderSeries),
		errors.Is(err, domain.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "backtest request failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "backtest failed")
	}
}
