// Package services – GuildConfigService
//
// Read-through cache over the guild_configs table. Every transition needs
// the guild's settings, so reads are served from a bounded-TTL cache that is
// explicitly invalidated on write. The cache is an owned object, not ambient
// global state.
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/gatewarden/gatewarden/internal/domain"
	"github.com/gatewarden/gatewarden/internal/repo"
)

// DefaultConfigTTL bounds how stale a cached guild config may be.
const DefaultConfigTTL = 30 * time.Second

type cachedConfig struct {
	cfg     *domain.GuildConfig
	expires time.Time
}

// GuildConfigService serves per-guild settings with a TTL cache.
type GuildConfigService struct {
	// DB is the GORM handle for config reads and writes.
	DB *gorm.DB
	// TTL overrides DefaultConfigTTL when positive.
	TTL time.Duration

	mu    sync.Mutex
	cache map[string]cachedConfig
	// now is swapped in tests to control expiry.
	now func() time.Time
}

// NewGuildConfigService constructs a config service with an empty cache.
func NewGuildConfigService(db *gorm.DB) *GuildConfigService {
	return &GuildConfigService{DB: db, cache: make(map[string]cachedConfig), now: time.Now}
}

func (s *GuildConfigService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultConfigTTL
}

// Get returns the guild's configuration, from cache when fresh. A guild
// without a stored row yields (nil, nil): callers degrade feature by
// feature rather than failing the interaction.
func (s *GuildConfigService) Get(ctx context.Context, guildID string) (*domain.GuildConfig, error) {
	s.mu.Lock()
	if entry, ok := s.cache[guildID]; ok && s.now().Before(entry.expires) {
		cfg := entry.cfg
		s.mu.Unlock()
		return cfg, nil
	}
	s.mu.Unlock()

	cfg, err := repo.GetGuildConfig(ctx, s.DB, guildID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			cfg = nil
		} else {
			return nil, err
		}
	}

	s.mu.Lock()
	s.cache[guildID] = cachedConfig{cfg: cfg, expires: s.now().Add(s.ttl())}
	s.mu.Unlock()
	return cfg, nil
}

// Upsert applies a partial patch and invalidates the cached entry so the
// next read observes the write immediately.
func (s *GuildConfigService) Upsert(ctx context.Context, guildID string, patch map[string]any) error {
	if err := repo.UpsertGuildConfig(ctx, s.DB, guildID, patch); err != nil {
		return err
	}
	s.Invalidate(guildID)
	return nil
}

// Invalidate drops the cached entry for one guild.
func (s *GuildConfigService) Invalidate(guildID string) {
	s.mu.Lock()
	delete(s.cache, guildID)
	s.mu.Unlock()
}
