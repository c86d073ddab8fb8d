package tenant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestHTTPClientParsesOverrides(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/workspaces/a-team" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer service-token" {
			t.Errorf("authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"workspace": {
				"metadata": {
					"cacheMaxKeys": 10,
					"cacheMaxSize": 10000,
					"cacheMaxEntrySize": 5000
				}
			}
		}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "service-token", zap.NewNop())
	limits, err := client.GetLimits(context.Background(), "a-team")
	if err != nil {
		t.Fatalf("GetLimits: %v", err)
	}
	if limits.MaxKeys != 10 || limits.MaxSize != 10000 || limits.MaxEntrySize != 5000 {
		t.Errorf("limits = %+v", limits)
	}
}

func TestHTTPClientToleratesMissingMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"workspace": {"metadata": {}}}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "", zap.NewNop())
	limits, err := client.GetLimits(context.Background(), "a-team")
	if err != nil {
		t.Fatalf("GetLimits: %v", err)
	}
	if limits.MaxKeys != 0 || limits.MaxSize != 0 || limits.MaxEntrySize != 0 {
		t.Errorf("limits = %+v, want zeros", limits)
	}
}

func TestHTTPClientPropagatesErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "", zap.NewNop())
	if _, err := client.GetLimits(context.Background(), "a-team"); err == nil {
		t.Error("expected an error")
	}
}
