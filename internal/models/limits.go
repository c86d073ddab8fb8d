package models

// Limits are the per-tenant cache quotas. A zero field means the tenant
// has no override for it.
type Limits struct {
	MaxKeys      int64
	MaxSize      int64
	MaxEntrySize int64
}

// OrDefaults fills unset fields from the process-wide defaults.
func (l Limits) OrDefaults(defaults Limits) Limits {
	if l.MaxKeys <= 0 {
		l.MaxKeys = defaults.MaxKeys
	}
	if l.MaxSize <= 0 {
		l.MaxSize = defaults.MaxSize
	}
	if l.MaxEntrySize <= 0 {
		l.MaxEntrySize = defaults.MaxEntrySize
	}
	return l
}
