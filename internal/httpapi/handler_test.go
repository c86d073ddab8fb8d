package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/NodeScriptLang/cache-service/internal/auth"
	"github.com/NodeScriptLang/cache-service/internal/domain"
	"github.com/NodeScriptLang/cache-service/internal/models"
	"github.com/NodeScriptLang/cache-service/internal/ratelimit"
	"github.com/NodeScriptLang/cache-service/internal/storage"
	"github.com/NodeScriptLang/cache-service/internal/tenant"
)

var testKey = []byte("test-secret")

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	limiter := ratelimit.NewLimiter(
		ratelimit.NewMemoryCounter(),
		1000, 5*time.Second,
		ratelimit.PolicyHard, 0,
		zap.NewNop(),
	)
	d := domain.New(
		storage.NewMemoryStorage(),
		storage.NewMemoryStatsStorage(),
		limiter,
		tenant.StaticClient{},
		domain.Options{
			AccountingMode:      domain.AccountingApproximate,
			RetentionCapEnabled: true,
			MaxRetention:        24 * time.Hour,
			DefaultLimits:       models.Limits{MaxKeys: 10, MaxSize: 10_000, MaxEntrySize: 5_000},
		},
		zap.NewNop(),
	)
	handler := NewHandler(d, auth.NewJWTAuthenticator(testKey), zap.NewNop())
	server := httptest.NewServer(handler.Mux())
	t.Cleanup(server.Close)
	return server
}

func bearerToken(t *testing.T, workspaceID string, permissions ...string) string {
	t.Helper()
	perms := make([]any, len(permissions))
	for i, p := range permissions {
		perms[i] = p
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"workspaceId": workspaceID,
		"permissions": perms,
	}).SignedString(testKey)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func call(t *testing.T, server *httptest.Server, token, path string, body any) (*http.Response, []byte) {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, server.URL+path, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	return resp, buf.Bytes()
}

func TestSetAndLookup(t *testing.T) {
	server := newTestServer(t)
	token := bearerToken(t, "a-team", auth.PermissionCacheRead, auth.PermissionCacheWrite)

	resp, _ := call(t, server, token, "/Cache/set", map[string]any{
		"key":  "test1",
		"data": "Hello A",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set status = %d", resp.StatusCode)
	}

	resp, body := call(t, server, token, "/Cache/lookup", map[string]any{"key": "test1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("lookup status = %d", resp.StatusCode)
	}
	var res struct {
		Data *models.CacheData `json:"data"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if res.Data == nil {
		t.Fatal("expected data, got null")
	}
	if got, want := string(res.Data.Data), `"Hello A"`; got != want {
		t.Errorf("data = %s, want %s", got, want)
	}
	if res.Data.Size != 9 {
		t.Errorf("size = %d, want 9", res.Data.Size)
	}
	if res.Data.Generation != 1 {
		t.Errorf("generation = %d, want 1", res.Data.Generation)
	}
}

func TestLookupMissReturnsNull(t *testing.T) {
	server := newTestServer(t)
	token := bearerToken(t, "a-team", auth.PermissionCacheRead)

	resp, body := call(t, server, token, "/Cache/lookup", map[string]any{"key": "nope"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var res struct {
		Data *models.CacheData `json:"data"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if res.Data != nil {
		t.Errorf("expected null data, got %+v", res.Data)
	}
}

func TestDelete(t *testing.T) {
	server := newTestServer(t)
	token := bearerToken(t, "a-team", auth.PermissionCacheRead, auth.PermissionCacheWrite)

	call(t, server, token, "/Cache/set", map[string]any{"key": "test1", "data": "v"})
	resp, _ := call(t, server, token, "/Cache/delete", map[string]any{"key": "test1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp, body := call(t, server, token, "/Cache/lookup", map[string]any{"key": "test1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("lookup status = %d", resp.StatusCode)
	}
	var res struct {
		Data *models.CacheData `json:"data"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if res.Data != nil {
		t.Error("expected null data after delete")
	}
}

func TestUnauthorizedRequests(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		name  string
		token string
	}{
		{"invalid token", "garbage"},
		{"missing write permission", bearerToken(t, "a-team", auth.PermissionCacheRead)},
		{"no workspace scope", bearerToken(t, "", auth.PermissionCacheWrite)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := call(t, server, tt.token, "/Cache/set", map[string]any{"key": "k", "data": "v"})
			if resp.StatusCode != http.StatusForbidden {
				t.Fatalf("status = %d, want 403", resp.StatusCode)
			}
			var res struct {
				Name string `json:"name"`
			}
			if err := json.Unmarshal(body, &res); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if res.Name != "AccessDeniedError" {
				t.Errorf("error name = %q, want AccessDeniedError", res.Name)
			}
		})
	}
}

func TestMalformedBody(t *testing.T) {
	server := newTestServer(t)
	token := bearerToken(t, "a-team", auth.PermissionCacheWrite)

	req, err := http.NewRequest(http.MethodPost, server.URL+"/Cache/set", bytes.NewReader([]byte("{")))
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestStatus(t *testing.T) {
	server := newTestServer(t)
	resp, err := http.Get(server.URL + "/status")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
