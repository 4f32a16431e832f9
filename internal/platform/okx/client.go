// Package okx fetches spot order books from the OKX v5 public REST API.
package okx

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

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://www.okx.com"

// maxDepth is the largest sz /api/v5/market/books accepts.
const maxDepth = 400

// codeInstrumentNotFound is returned for unknown instIds.
const codeInstrumentNotFound = "51001"

// Client is the OKX order-book adapter.
type Client struct {
	rest *rest.Client
	now  func() time.Time
}

var _ domain.Exchange = (*Client)(nil)

// New creates an OKX adapter.
func New(cfg rest.Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Client{rest: rest.New(cfg), now: time.Now}
}

// Name returns "okx".
func (c *Client) Name() string { return "okx" }

// Symbol converts "BTC/USDT" to "BTC-USDT".
func Symbol(instrument string) (string, error) {
	base, quote, err := rest.SplitInstrument(instrument)
	if err != nil {
		return "", err
	}
	return base + "-" + quote, nil
}

type booksResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		Asks [][]json.RawMessage `json:"asks"`
		Bids [][]json.RawMessage `json:"bids"`
		Ts   string              `json:"ts"`
	} `json:"data"`
}

// FetchOrderBook implements domain.Exchange.
func (c *Client) FetchOrderBook(ctx context.Context, instrument string, depth int) (domain.OrderBookSnapshot, error) {
	instID, err := Symbol(instrument)
	if err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("okx: %w", err)
	}
	sz := depth
	if sz <= 0 || sz > maxDepth {
		sz = maxDepth
	}

	params := url.Values{}
	params.Set("instId", instID)
	params.Set("sz", strconv.Itoa(sz))

	var resp booksResponse
	if err := c.rest.GetJSON(ctx, "/api/v5/market/books", params, &resp); err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("okx: order book %s: %w", instID, err)
	}
	switch {
	case resp.Code == codeInstrumentNotFound:
		return domain.OrderBookSnapshot{}, fmt.Errorf("okx: order book %s: %s: %w", instID, resp.Msg, domain.ErrSymbolNotListed)
	case resp.Code != "0":
		return domain.OrderBookSnapshot{}, fmt.Errorf("okx: order book %s: code %s: %s", instID, resp.Code, resp.Msg)
	case len(resp.Data) == 0:
		return domain.OrderBookSnapshot{}, fmt.Errorf("okx: order book %s: empty data: %w", instID, domain.ErrSymbolNotListed)
	}

	book := resp.Data[0]
	bids, err := rest.ParseLevels(book.Bids, depth)
	if err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("okx: bids: %w", err)
	}
	asks, err := rest.ParseLevels(book.Asks, depth)
	if err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("okx: asks: %w", err)
	}

	observed := c.now().UTC()
	if ms, err := strconv.ParseInt(book.Ts, 10, 64); err == nil && ms > 0 {
		observed = time.UnixMilli(ms).UTC()
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
