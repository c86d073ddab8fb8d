package cacheservice

import (
	"github.com/NodeScriptLang/cache-service/internal/auth"
	"github.com/NodeScriptLang/cache-service/internal/ratelimit"
)

var (
	// ErrAccessDenied covers missing tenant scope, missing permissions
	// and exceeded quotas.
	ErrAccessDenied = auth.ErrAccessDenied

	// ErrRateLimitExceeded is returned under the hard rate limit
	// policy.
	ErrRateLimitExceeded = ratelimit.ErrRateLimitExceeded
)
