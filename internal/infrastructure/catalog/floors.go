package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"

	"CatalogPoster/internal/domain"
)

type floorLister interface {
	FloorList(ctx context.Context) ([]domain.Floor, error)
}

type floorCacheFile struct {
	FetchedAt time.Time      `json:"fetched_at"`
	Floors    []domain.Floor `json:"floors"`
}

// FloorCache keeps the floor list on disk and refreshes it at most once per TTL.
type FloorCache struct {
	source floorLister
	path   string
	ttl    time.Duration
	now    func() time.Time
	log    *slog.Logger
}

// NewFloorCache wraps source with a disk cache at path.
func NewFloorCache(source floorLister, path string, ttl time.Duration, logger *slog.Logger) *FloorCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FloorCache{
		source: source,
		path:   path,
		ttl:    ttl,
		now:    time.Now,
		log:    logger.With("component", "floor-cache"),
	}
}

// Floors returns the cached list when fresh, otherwise fetches and stores it.
// A failed fetch falls back to any existing cache regardless of age.
func (f *FloorCache) Floors(ctx context.Context, useCache bool) ([]domain.Floor, error) {
	cached, cacheErr := f.read()
	if useCache && cacheErr == nil && f.now().Sub(cached.FetchedAt) <= f.ttl {
		return cached.Floors, nil
	}

	floors, err := f.source.FloorList(ctx)
	if err != nil {
		if cacheErr == nil {
			f.log.Warn("floor list fetch failed, using stale cache", "err", err, "fetched_at", cached.FetchedAt)
			return cached.Floors, nil
		}
		return nil, err
	}

	if err := f.write(floorCacheFile{FetchedAt: f.now(), Floors: floors}); err != nil {
		f.log.Warn("floor cache write failed", "path", f.path, "err", err)
	}
	return floors, nil
}

func (f *FloorCache) read() (floorCacheFile, error) {
	var cached floorCacheFile
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return cached, err
	}
	if err := json.Unmarshal(raw, &cached); err != nil {
		return cached, fmt.Errorf("parse floor cache: %w", err)
	}
	if cached.FetchedAt.IsZero() {
		return cached, errors.New("floor cache without timestamp")
	}
	return cached, nil
}

func (f *FloorCache) write(cached floorCacheFile) error {
	raw, err := json.MarshalIndent(cached, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	return atomic.WriteFile(f.path, bytes.NewReader(raw))
}
