package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/taskforge/rewards/internal/monitoring"
	"github.com/taskforge/rewards/internal/types"
)

// CollaboratorSource fetches the repository membership roster.
type CollaboratorSource interface {
	Collaborators(ctx context.Context, repo string) ([]types.Participant, error)
}

// CollaboratorCache fronts the tracker's membership endpoint. Rosters
// change rarely relative to how often tasks close, and the roster fetch
// is on every run's critical path.
type CollaboratorCache struct {
	source CollaboratorSource
	cache  *Cache
	logger *monitoring.Logger
}

// NewCollaboratorCache creates a roster cache with the given TTL.
func NewCollaboratorCache(source CollaboratorSource, ttl time.Duration, logger *monitoring.Logger) *CollaboratorCache {
	return &CollaboratorCache{
		source: source,
		cache:  NewCache(ttl),
		logger: logger,
	}
}

// Collaborators returns the roster for repo, from cache when fresh.
func (c *CollaboratorCache) Collaborators(ctx context.Context, repo string) ([]types.Participant, error) {
	key := "collaborators:" + repo

	if data, ok := c.cache.Get(key); ok {
		var roster []types.Participant
		if err := json.Unmarshal(data, &roster); err == nil {
			c.logger.CacheLogger("get", key, true)
			return roster, nil
		}
		c.cache.Delete(key)
	}
	c.logger.CacheLogger("get", key, false)

	roster, err := c.source.Collaborators(ctx, repo)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(roster); err == nil {
		c.cache.Set(key, data)
	}
	return roster, nil
}
