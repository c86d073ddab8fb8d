// Package tenant resolves per-tenant cache limit overrides from the
// workspace metadata service. Lookups are cached with a bounded TTL
// cache so writes do not pay a network round trip each time.
package tenant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/NodeScriptLang/cache-service/internal/models"
)

// Client resolves a tenant's custom cache limits. Zero-valued fields
// mean the tenant has no override.
type Client interface {
	GetLimits(ctx context.Context, tenantID string) (models.Limits, error)
}

// StaticClient returns the same limits for every tenant. Used when no
// metadata service is configured and in tests.
type StaticClient struct {
	Limits models.Limits
}

// GetLimits returns the static limits.
func (c StaticClient) GetLimits(_ context.Context, _ string) (models.Limits, error) {
	return c.Limits, nil
}

// HTTPClient fetches workspace metadata over HTTP, guarded by a circuit
// breaker so a misbehaving metadata service cannot stall every write.
type HTTPClient struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// NewHTTPClient creates a new HTTPClient instance.
func NewHTTPClient(baseURL, authToken string, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:   baseURL,
		authToken: authToken,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: "workspace-metadata",
		}),
		logger: logger,
	}
}

type workspaceResponse struct {
	Workspace struct {
		Metadata struct {
			CacheMaxKeys      json.Number `json:"cacheMaxKeys"`
			CacheMaxSize      json.Number `json:"cacheMaxSize"`
			CacheMaxEntrySize json.Number `json:"cacheMaxEntrySize"`
		} `json:"metadata"`
	} `json:"workspace"`
}

// GetLimits fetches the workspace and extracts its cache limit
// overrides.
func (c *HTTPClient) GetLimits(ctx context.Context, tenantID string) (models.Limits, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		return c.fetchWorkspace(ctx, tenantID)
	})
	if err != nil {
		return models.Limits{}, fmt.Errorf("failed to fetch workspace %s: %w", tenantID, err)
	}
	res := result.(*workspaceResponse)
	return models.Limits{
		MaxKeys:      numberOrZero(res.Workspace.Metadata.CacheMaxKeys),
		MaxSize:      numberOrZero(res.Workspace.Metadata.CacheMaxSize),
		MaxEntrySize: numberOrZero(res.Workspace.Metadata.CacheMaxEntrySize),
	}, nil
}

func (c *HTTPClient) fetchWorkspace(ctx context.Context, tenantID string) (*workspaceResponse, error) {
	url := c.baseURL + "/workspaces/" + tenantID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var res workspaceResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("failed to decode workspace response: %w", err)
	}
	return &res, nil
}

// numberOrZero tolerates absent or malformed metadata values.
func numberOrZero(n json.Number) int64 {
	v, err := n.Int64()
	if err != nil {
		return 0
	}
	return v
}

var (
	_ Client = (*HTTPClient)(nil)
	_ Client = StaticClient{}
)
