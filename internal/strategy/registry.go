package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

// Factory builds a fresh, independent BarStrategy instance.
type Factory func() (BarStrategy, error)

// Registry maps strategy names to factories so every backtest gets its own
// instance. It is safe for concurrent use.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under the given name, replacing any existing one.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// New builds a strategy by name.
func (r *Registry) New(name string) (BarStrategy, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("strategy %q: %w", name, domain.ErrUnknownStrategy)
	}
	return f()
}

// Factory returns the factory registered under name.
func (r *Registry) Factory(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("strategy %q: %w", name, domain.ErrUnknownStrategy)
	}
	return f, nil
}

// List returns the names of all registered strategies in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// BarParams configures the built-in bar strategies.
type BarParams struct {
	ShortWindow   int
	LongWindow    int
	RSIWindow     int
	RSIOverbought decimal.Decimal
	RSIOversold   decimal.Decimal
}

// DefaultBarParams returns 10/50 crossover and 14-period 70/30 RSI.
func DefaultBarParams() BarParams {
	return BarParams{
		ShortWindow:   10,
		LongWindow:    50,
		RSIWindow:     14,
		RSIOverbought: decimal.NewFromInt(70),
		RSIOversold:   decimal.NewFromInt(30),
	}
}

// NewBarRegistry registers ma_crossover and rsi with the given parameters.
func NewBarRegistry(p BarParams) *Registry {
	r := NewRegistry()
	r.Register("ma_crossover", func() (BarStrategy, error) {
		return NewMovingAverageCrossover(p.ShortWindow, p.LongWindow)
	})
	r.Register("rsi", func() (BarStrategy, error) {
		return NewRSI(p.RSIWindow, p.RSIOverbought, p.RSIOversold)
	})
	return r
}
