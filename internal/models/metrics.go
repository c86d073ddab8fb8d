package models

import "go.uber.org/atomic"

// Metrics counts domain-level events.
type Metrics struct {
	Hits        atomic.Int64
	Misses      atomic.Int64
	Sets        atomic.Int64
	Deletes     atomic.Int64
	Denials     atomic.Int64
	RateLimited atomic.Int64
}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}
