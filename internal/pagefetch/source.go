package pagefetch

import (
	"context"
	"fmt"
	"log/slog"

	"CatalogPoster/internal/domain"
	"CatalogPoster/internal/ports"
)

// Source implements ports.PageFetcher by picking a registered strategy per job.
type Source struct {
	registry *Registry
	logger   *slog.Logger
}

var _ ports.PageFetcher = (*Source)(nil)

// NewSource wires the strategy registry.
func NewSource(reg *Registry, log *slog.Logger) *Source {
	return &Source{registry: reg, logger: log}
}

// Fetch loads url with the browser strategy when the job asks for it,
// otherwise with a direct request.
func (s *Source) Fetch(ctx context.Context, url string, opts domain.EnrichSpec) (string, error) {
	if s.registry == nil {
		return "", fmt.Errorf("fetch registry is not configured")
	}

	name := StrategyDirect
	if opts.UseBrowser {
		name = StrategyBrowser
	}
	strategy, err := s.registry.Resolve(name)
	if err != nil {
		return "", err
	}

	s.debug("fetch page", "strategy", name, "url", url)
	html, err := strategy.Fetch(ctx, Request{
		URL:           url,
		Headless:      opts.Headless,
		ClickSelector: opts.ClickSelector,
		PageWait:      opts.PageWait(),
	})
	if err != nil {
		return "", fmt.Errorf("%s fetch %s: %w", name, url, err)
	}
	s.debug("page fetched", "strategy", name, "bytes", len(html))
	return html, nil
}

func (s *Source) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
