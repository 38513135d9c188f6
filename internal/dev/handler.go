// Package dev serves informational endpoints for developers.
package dev

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
)

const pingKey = "ping"

// PingResponse reports the deployment stage and when the answer was computed.
type PingResponse struct {
	Stage       string `json:"stage"`
	LastUpdated int64  `json:"last_updated"`
}

// Handler contains dependencies for handling dev endpoints.
type Handler struct {
	cache  *ttlcache.Cache[string, PingResponse]
	stage  string
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewHandler constructs a Handler whose ping answer is cached for ttl. The
// cache holds at most capacity entries.
func NewHandler(stage string, ttl time.Duration, capacity uint64, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	h := &Handler{stage: stage, logger: logger, now: time.Now}
	loader := ttlcache.LoaderFunc[string, PingResponse](
		func(c *ttlcache.Cache[string, PingResponse], key string) *ttlcache.Item[string, PingResponse] {
			return c.Set(key, PingResponse{Stage: h.stage, LastUpdated: h.now().UnixMilli()}, ttlcache.DefaultTTL)
		},
	)
	h.cache = ttlcache.New[string, PingResponse](
		ttlcache.WithTTL[string, PingResponse](ttl),
		ttlcache.WithCapacity[string, PingResponse](capacity),
		ttlcache.WithLoader[string, PingResponse](loader),
	)
	h.cache.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, PingResponse]) {
		logger.Debugw("cache entry evicted", "key", item.Key(), "reason", evictionReason(reason))
	})
	return h
}

// Start runs the expiry loop until Stop is called.
func (h *Handler) Start() { h.cache.Start() }

func (h *Handler) Stop() { h.cache.Stop() }

// Ping handles GET /dev/ping.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	item := h.cache.Get(pingKey)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(item.Value())
}

func evictionReason(r ttlcache.EvictionReason) string {
	switch r {
	case ttlcache.EvictionReasonDeleted:
		return "deleted"
	case ttlcache.EvictionReasonCapacityReached:
		return "capacity_reached"
	case ttlcache.EvictionReasonExpired:
		return "expired"
	}
	return "unknown"
}
