package models

import "time"

// Usage is an aggregate over a tenant's live entries.
type Usage struct {
	Count int64
	Size  int64
}

// TenantStats is the stored usage aggregate for a tenant. Between
// reconciliation passes it may drift from the true aggregate.
type TenantStats struct {
	TenantID      string
	Count         int64
	Size          int64
	LastUpdatedAt time.Time
}
