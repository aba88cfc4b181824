package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"verification-api/internal/events"
	"verification-api/internal/utils"
	"verification-api/internal/worker"
)

const publishTimeout = 5 * time.Second

// EventDispatcher hands domain events to the worker pool so publishing never
// blocks a request. A nil dispatcher drops events.
type EventDispatcher struct {
	pool      *worker.WorkerPool
	publisher events.Publisher
}

func NewEventDispatcher(pool *worker.WorkerPool, publisher events.Publisher) *EventDispatcher {
	return &EventDispatcher{pool: pool, publisher: publisher}
}

func (d *EventDispatcher) Dispatch(routingKey string, body interface{}) {
	if d == nil || d.pool == nil || d.publisher == nil {
		return
	}

	job := worker.Job{
		ID: fmt.Sprintf("event-%s-%d", routingKey, time.Now().UnixNano()),
		Task: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, publishTimeout)
			defer cancel()
			return d.publisher.Publish(ctx, routingKey, body)
		},
		RetryOn: func(err error) bool {
			return !errors.Is(err, context.Canceled)
		},
	}

	if err := d.pool.Submit(job); err != nil {
		utils.LogWarning("EventDispatcher", "Dropped %s event: %v", routingKey, err)
	}
}
