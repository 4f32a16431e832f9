package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/mmsignal/internal/arbitrage"
	"github.com/alanyoungcy/mmsignal/internal/domain"
)

// OpportunityService defines the methods that the opportunity handler requires.
type OpportunityService interface {
	Recent(ctx context.Context, limit int) ([]domain.ArbitrageOpportunity, error)
}

// LatestSource exposes the detector's most recent result per instrument.
type LatestSource interface {
	Latest() []arbitrage.LatestResult
}

// OpportunityHandler serves arbitrage opportunity endpoints.
type OpportunityHandler struct {
	opps   OpportunityService
	latest LatestSource
	logger *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler. latest may be nil when
// no detector runs in this process.
func NewOpportunityHandler(opps OpportunityService, latest LatestSource, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{opps: opps, latest: latest, logger: logHandler(logger, "opportunities")}
}

type listOpportunitiesResponse struct {
	Opportunities []domain.ArbitrageOpportunity `json:"opportunities"`
}

// ListRecent returns the most recent opportunities, newest first.
// GET /api/opportunities/recent?limit=20
func (h *OpportunityHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	opps, err := h.opps.Recent(r.Context(), parseLimit(r, 20, 200))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list opportunities failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}
	if opps == nil {
		opps = []domain.ArbitrageOpportunity{}
	}
	writeJSON(w, http.StatusOK, listOpportunitiesResponse{Opportunities: opps})
}

// Latest returns the last detector outcome for every instrument.
// GET /api/opportunities/latest
func (h *OpportunityHandler) Latest(w http.ResponseWriter, r *http.Request) {
	results := []arbitrage.LatestResult{}
	if h.latest != nil {
		results = h.latest.Latest()
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
