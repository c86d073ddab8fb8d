package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Authenticator turns a bearer credential into a Token.
type Authenticator interface {
	Authenticate(credential string) (Token, error)
}

// JWTAuthenticator validates HMAC-signed bearer tokens. Tenant scope is
// read from the "workspaceId" claim and granted permissions from the
// "permissions" claim.
type JWTAuthenticator struct {
	key []byte
}

// NewJWTAuthenticator creates a new JWTAuthenticator with the given
// signing key.
func NewJWTAuthenticator(key []byte) *JWTAuthenticator {
	return &JWTAuthenticator{key: key}
}

// Authenticate parses and validates the credential.
func (a *JWTAuthenticator) Authenticate(credential string) (Token, error) {
	if credential == "" {
		return Token{}, fmt.Errorf("%w: missing credentials", ErrAccessDenied)
	}
	parsed, err := jwt.Parse(credential, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return a.key, nil
	})
	if err != nil || !parsed.Valid {
		return Token{}, fmt.Errorf("%w: invalid token", ErrAccessDenied)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Token{}, fmt.Errorf("%w: malformed claims", ErrAccessDenied)
	}
	token := Token{}
	if workspaceID, ok := claims["workspaceId"].(string); ok {
		token.TenantID = workspaceID
	}
	if perms, ok := claims["permissions"].([]any); ok {
		for _, p := range perms {
			if s, ok := p.(string); ok {
				token.Permissions = append(token.Permissions, s)
			}
		}
	}
	return token, nil
}

var _ Authenticator = (*JWTAuthenticator)(nil)
