package queue

import "errors"

// Sentinel errors returned by EnqueueBatch.
var (
	ErrQueueClosed = errors.New("queue closed")
	ErrQueueFull   = errors.New("queue full")
)
