package pagefetch

import (
	"context"
	"fmt"
	"time"
)

const (
	StrategyDirect  = "direct"
	StrategyBrowser = "browser"
)

// Request carries all parameters required to load one detail page.
type Request struct {
	URL           string
	Headless      bool
	ClickSelector string
	PageWait      time.Duration
}

// Strategy captures a single way of loading a page (plain HTTP, headless browser).
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, req Request) (string, error)
}

// Registry keeps a mapping from strategy names to their implementations.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: map[string]Strategy{}}
}

// Register adds or replaces a strategy implementation.
func (r *Registry) Register(strategy Strategy) {
	if r.strategies == nil {
		r.strategies = map[string]Strategy{}
	}
	r.strategies[strategy.Name()] = strategy
}

// Resolve returns a strategy by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Strategy, error) {
	if strategy, ok := r.strategies[name]; ok {
		return strategy, nil
	}
	return nil, fmt.Errorf("fetch strategy %s is not registered", name)
}
