// Package instance exposes deployment-wide settings stored by the admin
// surface, cached for a short TTL.
package instance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	bytesPerMB   = 1024 * 1024
	settingsKey  = "meta"
	queryTimeout = 5 * time.Second
)

// ErrNoSettings means no settings row has been written yet.
var ErrNoSettings = errors.New("instance settings not found")

var (
	settingsCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "godrive_instance_settings_cache_hits_total",
		Help: "Instance settings served from cache.",
	})
	settingsCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "godrive_instance_settings_cache_misses_total",
		Help: "Instance settings loaded from the database.",
	})
)

// Settings holds per-account-class drive capacities.
type Settings struct {
	LocalDriveCapacityMB  int64
	RemoteDriveCapacityMB int64
}

// LocalCapacityBytes converts the local ceiling to bytes.
func (s Settings) LocalCapacityBytes() int64 { return s.LocalDriveCapacityMB * bytesPerMB }

// RemoteCapacityBytes converts the remote ceiling to bytes.
func (s Settings) RemoteCapacityBytes() int64 { return s.RemoteDriveCapacityMB * bytesPerMB }

type loader interface {
	Load(ctx context.Context) (Settings, error)
}

// Repository reads the settings row.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a settings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Load returns the most recent settings row.
func (r *Repository) Load(ctx context.Context) (Settings, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
SELECT local_drive_capacity_mb, remote_drive_capacity_mb
FROM instance_settings
ORDER BY id DESC
LIMIT 1;`

	var s Settings
	if err := r.pool.QueryRow(ctx, query).Scan(&s.LocalDriveCapacityMB, &s.RemoteDriveCapacityMB); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Settings{}, ErrNoSettings
		}
		return Settings{}, fmt.Errorf("load instance settings: %w", err)
	}
	return s, nil
}

// Cache serves Settings with a TTL, falling back to defaults when no row exists.
// Values may be stale for up to ttl.
type Cache struct {
	cache    *expirable.LRU[string, Settings]
	loader   loader
	defaults Settings
}

// NewCache wraps loader with a single-entry expiring cache.
func NewCache(l loader, defaults Settings, ttl time.Duration) *Cache {
	return &Cache{
		cache:    expirable.NewLRU[string, Settings](1, nil, ttl),
		loader:   l,
		defaults: defaults,
	}
}

// Fetch returns the current settings.
func (c *Cache) Fetch(ctx context.Context) (Settings, error) {
	if s, ok := c.cache.Get(settingsKey); ok {
		settingsCacheHits.Inc()
		return s, nil
	}
	settingsCacheMisses.Inc()

	s, err := c.loader.Load(ctx)
	if errors.Is(err, ErrNoSettings) {
		s, err = c.defaults, nil
	}
	if err != nil {
		return Settings{}, err
	}
	c.cache.Add(settingsKey, s)
	return s, nil
}
