package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mmsignal/internal/arbitrage"
	"github.com/alanyoungcy/mmsignal/internal/domain"
	"github.com/alanyoungcy/mmsignal/internal/server/handler"
	"github.com/alanyoungcy/mmsignal/internal/service"
	"github.com/alanyoungcy/mmsignal/internal/strategy"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeOpps struct{ opps []domain.ArbitrageOpportunity }

func (f fakeOpps) Recent(_ context.Context, limit int) ([]domain.ArbitrageOpportunity, error) {
	if limit < len(f.opps) {
		return f.opps[:limit], nil
	}
	return f.opps, nil
}

type fakeLatest struct{}

func (fakeLatest) Latest() []arbitrage.LatestResult {
	return []arbitrage.LatestResult{{Instrument: "BTC/USDT", Reason: domain.ReasonNoEdge}}
}

type fakeEngine struct{ closed []string }

func (f *fakeEngine) RecentSignals(int) []domain.SignalEvent {
	return []domain.SignalEvent{{ID: "s1", Signal: domain.SignalBuy}}
}

func (f *fakeEngine) Positions() []strategy.PositionView {
	return []strategy.PositionView{{Exchange: "binance", Instrument: "BTC/USDT"}}
}

func (f *fakeEngine) ClosePosition(exchange, instrument string) error {
	if exchange != "binance" {
		return domain.ErrNotFound
	}
	f.closed = append(f.closed, exchange+"/"+instrument)
	return nil
}

func (f *fakeEngine) LastCycle() uint64  { return 7 }
func (f *fakeEngine) OpenPositions() int { return 1 }

type fakeRunner struct {
	reports map[string]domain.BacktestReport
}

func (f *fakeRunner) Run(_ context.Context, req service.BacktestRequest) (domain.BacktestReport, error) {
	if req.Strategy != "rsi" {
		return domain.BacktestReport{}, domain.ErrUnknownStrategy
	}
	r := domain.BacktestReport{ID: "bt-1", Strategy: "rsi", FinalEquity: decimal.NewFromInt(10100)}
	f.reports[r.ID] = r
	return r, nil
}

func (f *fakeRunner) Compare(_ context.Context, req service.BacktestRequest) ([]domain.BacktestReport, error) {
	out := make([]domain.BacktestReport, len(req.Strategies))
	for i, s := range req.Strategies {
		out[i] = domain.BacktestReport{ID: s, Strategy: s}
	}
	return out, nil
}

func (f *fakeRunner) Get(_ context.Context, id string) (domain.BacktestReport, error) {
	r, ok := f.reports[id]
	if !ok {
		return domain.BacktestReport{}, domain.ErrNotFound
	}
	return r, nil
}

func (f *fakeRunner) List(context.Context, domain.ListOpts) ([]domain.BacktestSummary, error) {
	out := make([]domain.BacktestSummary, 0, len(f.reports))
	for _, r := range f.reports {
		out = append(out, r.Summary())
	}
	return out, nil
}

func (f *fakeRunner) Strategies() []string { return []string{"ma_crossover", "rsi"} }

func newTestServer(t *testing.T, cfg Config) (*httptest.Server, *fakeEngine) {
	t.Helper()
	logger := quietLogger()
	engine := &fakeEngine{}
	handlers := Handlers{
		Health: handler.NewHealthHandler(nil, logger),
		Status: handler.NewStatusHandler("full", []string{"BTC/USDT"}, []string{"binance", "okx"}, time.Now(), engine),
		Opportunities: handler.NewOpportunityHandler(fakeOpps{opps: []domain.ArbitrageOpportunity{
			{ID: "a"}, {ID: "b"}, {ID: "c"},
		}}, fakeLatest{}, logger),
		Signals:   handler.NewSignalHandler(nil, engine, logger),
		Backtests: handler.NewBacktestHandler(&fakeRunner{reports: map[string]domain.BacktestReport{}}, logger),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			io.WriteString(w, "# metrics\n")
		}),
	}
	srv := httptest.NewServer(NewServer(cfg, handlers, nil, logger).Handler())
	t.Cleanup(srv.Close)
	return srv, engine
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthAndStatus(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	var health map[string]any
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/health", &health))
	assert.Equal(t, "ok", health["status"])

	var status domain.EngineStatus
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/status", &status))
	assert.Equal(t, "full", status.Mode)
	assert.Equal(t, []string{"binance", "okx"}, status.Exchanges)
	assert.Equal(t, uint64(7), status.LastCycle)
	assert.Equal(t, 1, status.OpenPositions)
}

func TestOpportunityRoutes(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	var recent struct {
		Opportunities []domain.ArbitrageOpportunity `json:"opportunities"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/opportunities/recent?limit=2", &recent))
	assert.Len(t, recent.Opportunities, 2)

	var latest struct {
		Results []arbitrage.LatestResult `json:"results"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/opportunities/latest", &latest))
	require.Len(t, latest.Results, 1)
	assert.Equal(t, domain.ReasonNoEdge, latest.Results[0].Reason)
}

func TestSignalRoutes(t *testing.T) {
	srv, engine := newTestServer(t, Config{})

	var recent struct {
		Signals []domain.SignalEvent `json:"signals"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/signals/recent", &recent))
	require.Len(t, recent.Signals, 1)
	assert.Equal(t, domain.SignalBuy, recent.Signals[0].Signal)

	resp, err := http.Post(srv.URL+"/api/signals/positions/close?exchange=binance&instrument=BTC/USDT", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"binance/BTC/USDT"}, engine.closed)

	resp, err = http.Post(srv.URL+"/api/signals/positions/close?exchange=okx&instrument=BTC/USDT", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBacktestRoutes(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	resp, err := http.Post(srv.URL+"/api/backtests", "application/json", strings.NewReader(`{"strategy":"rsi"}`))
	require.NoError(t, err)
	var report domain.BacktestReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "bt-1", report.ID)

	var got domain.BacktestReport
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/backtests/bt-1", &got))
	assert.Equal(t, "rsi", got.Strategy)
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/backtests/missing", nil))

	var list struct {
		Backtests []domain.BacktestSummary `json:"backtests"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/backtests", &list))
	assert.Len(t, list.Backtests, 1)

	var strategies struct {
		Strategies []string `json:"strategies"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/backtests/strategies", &strategies))
	assert.Equal(t, []string{"ma_crossover", "rsi"}, strategies.Strategies)
}

func TestBacktestBadRequests(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	for name, body := range map[string]string{
		"unknown strategy": `{"strategy":"nope"}`,
		"unknown field":    `{"strategy":"rsi","bogus":1}`,
		"empty body":       ``,
	} {
		t.Run(name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/backtests", "application/json", strings.NewReader(body))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestBacktestCompareRoute(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	resp, err := http.Post(srv.URL+"/api/backtests", "application/json",
		strings.NewReader(`{"strategies":["rsi","ma_crossover"]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Reports    []domain.BacktestSummary    `json:"reports"`
		Comparison []domain.StrategyComparison `json:"comparison"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Comparison, 2)
	assert.Equal(t, "rsi", out.Comparison[0].Strategy)
}

func TestAPIKeyRequired(t *testing.T) {
	srv, _ := newTestServer(t, Config{APIKey: "secret"})

	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/health", nil))
	assert.Equal(t, http.StatusUnauthorized, getJSON(t, srv.URL+"/api/status", nil))

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/status", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
