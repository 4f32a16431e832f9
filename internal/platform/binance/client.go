// Package binance fetches spot order books from the Binance public REST API.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/alanyoungcy/mmsignal/internal/domain"
	"github.com/alanyoungcy/mmsignal/internal/platform/rest"
)

// DefaultBaseURL is the public spot API root.
const DefaultBaseURL = "https://api.binance.com"

// depthLimits are the limit values /api/v3/depth accepts.
var depthLimits = []int{5, 10, 20, 50, 100, 500, 1000, 5000}

// Client is the Binance order-book adapter.
type Client struct {
	rest *rest.Client
	now  func() time.Time
}

var _ domain.Exchange = (*Client)(nil)

// New creates a Binance adapter.
func New(cfg rest.Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Client{rest: rest.New(cfg), now: time.Now}
}

// Name returns "binance".
func (c *Client) Name() string { return "binance" }

// Symbol converts "BTC/USDT" to "BTCUSDT".
func Symbol(instrument string) (string, error) {
	base, quote, err := rest.SplitInstrument(instrument)
	if err != nil {
		return "", err
	}
	return base + quote, nil
}

type depthResponse struct {
	LastUpdateID int64               `json:"lastUpdateId"`
	Bids         [][]json.RawMessage `json:"bids"`
	Asks         [][]json.RawMessage `json:"asks"`
}

// FetchOrderBook implements domain.Exchange.
func (c *Client) FetchOrderBook(ctx context.Context, instrument string, depth int) (domain.OrderBookSnapshot, error) {
	symbol, err := Symbol(instrument)
	if err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("binance: %w", err)
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("limit", strconv.Itoa(limitFor(depth)))

	var resp depthResponse
	if err := c.rest.GetJSON(ctx, "/api/v3/depth", params, &resp); err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("binance: order book %s: %w", symbol, err)
	}

	bids, err := rest.ParseLevels(resp.Bids, depth)
	if err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("binance: bids: %w", err)
	}
	asks, err := rest.ParseLevels(resp.Asks, depth)
	if err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("binance: asks: %w", err)
	}
	return domain.OrderBookSnapshot{
		ExchangeID: c.Name(),
		Instrument: instrument,
		Bids:       bids,
		Asks:       asks,
		ObservedAt: c.now().UTC(),
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() error { return c.rest.Close() }

// limitFor rounds depth up to the nearest accepted limit.
func limitFor(depth int) int {
	for _, l := range depthLimits {
		if depth <= l {
			return l
		}
	}
	return depthLimits[len(depthLimits)-1]
}
