package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"

	"github.com/your-org/facewatch/internal/models"
	"github.com/your-org/facewatch/internal/storage"
)

const (
	statsKey = "stats"
	statsTTL = 5 * time.Second
)

// StatsCache keeps the aggregate stats for a few seconds. Handlers that
// change persons or sightings invalidate it.
type StatsCache struct {
	store storage.Store
	cache *cache.Cache
}

func NewStatsCache(store storage.Store) *StatsCache {
	return &StatsCache{store: store, cache: cache.New(statsTTL, time.Minute)}
}

func (s *StatsCache) Get(ctx context.Context) (*models.Stats, error) {
	if v, ok := s.cache.Get(statsKey); ok {
		return v.(*models.Stats), nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(statsKey, stats)
	return stats, nil
}

func (s *StatsCache) Invalidate() {
	s.cache.Delete(statsKey)
}

type StatsHandler struct {
	stats *StatsCache
}

func NewStatsHandler(stats *StatsCache) *StatsHandler {
	return &StatsHandler{stats: stats}
}

func (h *StatsHandler) Get(c *gin.Context) {
	stats, err := h.stats.Get(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
