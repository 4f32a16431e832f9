// Package coinbase fetches level-2 order books from the Coinbase Exchange
// public REST API.
package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/alanyoungcy/mmsignal/internal/domain"
	"github.com/alanyoungcy/mmsignal/internal/platform/rest"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://api.exchange.coinbase.com"

// Client is the Coinbase order-book adapter.
type Client struct {
	rest *rest.Client
	now  func() time.Time
}

var _ domain.Exchange = (*Client)(nil)

// New creates a Coinbase adapter.
func New(cfg rest.Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Client{rest: rest.New(cfg), now: time.Now}
}

// Name returns "coinbase".
func (c *Client) Name() string { return "coinbase" }

// Symbol converts "BTC/USDT" to the product id "BTC-USDT".
func Symbol(instrument string) (string, error) {
	base, quote, err := rest.SplitInstrument(instrument)
	if err != nil {
		return "", err
	}
	return base + "-" + quote, nil
}

type bookResponse struct {
	Sequence int64               `json:"sequence"`
	Bids     [][]json.RawMessage `json:"bids"`
	Asks     [][]json.RawMessage `json:"asks"`
	Time     string              `json:"time"`
}

// FetchOrderBook implements domain.Exchange. Level 2 returns the top 50
// aggregated levels; the result is truncated to depth.
func (c *Client) FetchOrderBook(ctx context.Context, instrument string, depth int) (domain.OrderBookSnapshot, error) {
	product, err := Symbol(instrument)
	if err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("coinbase: %w", err)
	}

	params := url.Values{}
	params.Set("level", "2")

	var resp bookResponse
	if err := c.rest.GetJSON(ctx, "/products/"+url.PathEscape(product)+"/book", params, &resp); err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("coinbase: order book %s: %w", product, err)
	}

	bids, err := rest.ParseLevels(resp.Bids, depth)
	if err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("coinbase: bids: %w", err)
	}
	asks, err := rest.ParseLevels(resp.Asks, depth)
	if err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("coinbase: asks: %w", err)
	}

	observed := c.now().UTC()
	if t, err := time.Parse(time.RFC3339Nano, resp.Time); err == nil {
		observed = t.UTC()
	}
	return domain.OrderBookSnapshot{
		ExchangeID: c.Name(),
		Instrument: instrument,
		Bids:       bids,
		Asks:       asks,
		ObservedAt: observed,
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() error { return c.rest.Close() }
