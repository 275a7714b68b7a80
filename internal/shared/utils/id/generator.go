package id

import (
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// NewLogID generates a sortable identifier for request logs.
func NewLogID() string {
	return "log-" + ksuid.New().String()
}

// NewIdempotencyKey generates a time-ordered key for submission dedup.
// Falls back to a random UUID if the v7 generator fails.
func NewIdempotencyKey() string {
	key, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return key.String()
}
