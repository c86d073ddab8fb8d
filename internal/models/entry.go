package models

import "time"

// Entry is a single cached value scoped to a tenant.
type Entry struct {
	TenantID   string
	Key        string
	Data       []byte // serialized JSON
	Size       int64
	Generation int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Expiration *time.Time // nil means the entry never expires
}

// IsExpired checks if the entry has expired. Entries without an
// expiration never expire.
func (e *Entry) IsExpired() bool {
	if e.Expiration == nil {
		return false
	}
	return time.Now().After(*e.Expiration)
}
