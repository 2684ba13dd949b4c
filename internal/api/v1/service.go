// Package v1 exposes the dashboard-facing HTTP API: fridge state reads,
// command dispatch, batch activation, rollup history and push subscription
// management.
package v1

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/craft-brew/queue-ingest/internal/cache"
	"github.com/craft-brew/queue-ingest/internal/protocol"
	"github.com/craft-brew/queue-ingest/internal/storage"
)

// CommandPublisher dispatches one validated command to the device and
// returns the generated command ID.
type CommandPublisher interface {
	Publish(ctx context.Context, cmd protocol.Command, value interface{}) (string, error)
}

// Service wires the HTTP handlers to the cache, the command ledger and the
// durable store.
type Service struct {
	cache   cache.Store
	ledger  CommandPublisher
	batches storage.BatchStore
	rollups storage.RollupStore
}

// NewService creates the API service.
func NewService(store cache.Store, ledger CommandPublisher, batches storage.BatchStore, rollups storage.RollupStore) *Service {
	return &Service{
		cache:   store,
		ledger:  ledger,
		batches: batches,
		rollups: rollups,
	}
}

// RegisterRoutes registers all API routes on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/fridge", s.HandleGetFridge)
	r.POST("/v1/fridge/commands", s.HandlePostCommand)
	r.PUT("/v1/fridge/batch", s.HandleActivateBatch)
	r.DELETE("/v1/fridge/batch", s.HandleClearBatch)
	r.GET("/v1/fridge/rollups", s.HandleListRollups)

	r.POST("/v1/notifications/subscribe", s.HandleSubscribe)
	r.DELETE("/v1/notifications/subscribe", s.HandleUnsubscribe)
}
