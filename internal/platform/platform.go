// Package platform builds exchange adapters by name.
package platform

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/mmsignal/internal/domain"
	"github.com/alanyoungcy/mmsignal/internal/platform/binance"
	"github.com/alanyoungcy/mmsignal/internal/platform/coinbase"
	"github.com/alanyoungcy/mmsignal/internal/platform/okx"
	"github.com/alanyoungcy/mmsignal/internal/platform/rest"
)

// Options configures one adapter. Zero values fall back to the venue defaults.
type Options struct {
	BaseURL           string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

type constructor func(rest.Config) domain.Exchange

var constructors = map[string]constructor{
	"binance":  func(c rest.Config) domain.Exchange { return binance.New(c) },
	"okx":      func(c rest.Config) domain.Exchange { return okx.New(c) },
	"coinbase": func(c rest.Config) domain.Exchange { return coinbase.New(c) },
}

// New builds the adapter registered under name.
func New(name string, opts Options) (domain.Exchange, error) {
	ctor, ok := constructors[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("platform: %q: %w", name, domain.ErrUnknownExchange)
	}
	return ctor(rest.Config{
		BaseURL:           opts.BaseURL,
		RequestsPerSecond: opts.RequestsPerSecond,
		Burst:             opts.Burst,
		Timeout:           opts.Timeout,
	}), nil
}

// Supported returns the known exchange names, sorted.
func Supported() []string {
	names := make([]string, 0, len(constructors))
	for n := range constructors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
