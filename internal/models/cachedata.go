package models

import "encoding/json"

// CacheData is the protocol shape of a cache entry: the deserialized
// value plus its bookkeeping fields, timestamps in epoch milliseconds.
type CacheData struct {
	Key        string          `json:"key"`
	Data       json.RawMessage `json:"data"`
	Size       int64           `json:"size"`
	Generation int64           `json:"generation"`
	CreatedAt  int64           `json:"createdAt"`
	UpdatedAt  int64           `json:"updatedAt"`
	ExpiresAt  *int64          `json:"expiresAt,omitempty"`
}

// CacheData converts the stored entry to its protocol shape.
func (e *Entry) CacheData() *CacheData {
	data := &CacheData{
		Key:        e.Key,
		Data:       json.RawMessage(e.Data),
		Size:       e.Size,
		Generation: e.Generation,
		CreatedAt:  e.CreatedAt.UnixMilli(),
		UpdatedAt:  e.UpdatedAt.UnixMilli(),
	}
	if e.Expiration != nil {
		expiresAt := e.Expiration.UnixMilli()
		data.ExpiresAt = &expiresAt
	}
	return data
}
