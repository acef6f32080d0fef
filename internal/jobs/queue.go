// Package jobs runs the background synchronization work: full catalog and
// order syncs plus targeted object re-fetches triggered by webhooks.
package jobs

import (
	"context"
	"time"
)

// Job types.
const (
	TypeCatalogSync   = "catalog_sync"
	TypeOrdersSync    = "orders_sync"
	TypeObjectRefetch = "object_refetch"
)

// Job is one unit of background work.
type Job struct {
	Type         string    `json:"type"`
	RestaurantID string    `json:"restaurant_id"`
	ObjectType   string    `json:"object_type,omitempty"`
	ObjectID     string    `json:"object_id,omitempty"`
	Since        time.Time `json:"since,omitempty"`
	Until        time.Time `json:"until,omitempty"`
	Attempt      int       `json:"attempt,omitempty"`
	EnqueuedAt   time.Time `json:"enqueued_at,omitempty"`
}

// Queue hands jobs from producers to the worker pool. Dequeue blocks until
// a job is available or the context is cancelled.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Dequeue(ctx context.Context) (Job, error)
	Close() error
}
