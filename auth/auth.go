// Package auth provides signed-token and opaque API-key authentication for
// the server interceptor chain, plus the role policy request dispatch is
// authorized against. Grounded on
// original_source/rpc-common/.../security/{JwtTokenProvider,ApiKeyValidator,
// AuthenticationManager,AuthContext,AuthResult}.java.
package auth

import (
	"strings"
	"time"
)

// Method names which credential produced an AuthContext.
type Method string

const (
	MethodSignedToken Method = "signed-token"
	MethodAPIKey      Method = "api-key"
)

// Context is the authenticated principal attached to a request, mirroring
// AuthContext.java.
type Context struct {
	Method    Method
	Principal string // userID for a signed token, serviceID for an API key
	Roles     []string
	ExpiresAt time.Time
}

// Expired reports whether the context's token/key has passed its
// expiration, mirroring AuthContext.isExpired().
func (c *Context) Expired() bool {
	return !c.ExpiresAt.IsZero() && time.Now().After(c.ExpiresAt)
}

// HasRole reports whether the principal carries role.
func (c *Context) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Result is the outcome of an authentication attempt, mirroring
// AuthResult.java's success()/failure() factories.
type Result struct {
	Authenticated bool
	Context       *Context
	Error         string
}

func success(ctx *Context) Result { return Result{Authenticated: true, Context: ctx} }
func failure(reason string) Result { return Result{Authenticated: false, Error: reason} }

// Failure codes the interceptor chain maps to RPC status errors.
const (
	CodeMissingToken            = "MISSING_TOKEN"
	CodeInvalidToken            = "INVALID_TOKEN"
	CodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
)

// Authorize applies the role policy: "admin" and "service" roles always
// pass; "read" passes for read-only looking methods (get/query/find/list/
// search prefixes, case-insensitive); everything else requires "write".
func Authorize(roles []string, method string) bool {
	for _, r := range roles {
		if r == "admin" || r == "service" {
			return true
		}
	}
	if isReadMethod(method) {
		for _, r := range roles {
			if r == "read" || r == "write" {
				return true
			}
		}
		return false
	}
	for _, r := range roles {
		if r == "write" {
			return true
		}
	}
	return false
}

var readPrefixes = []string{"get", "query", "find", "list", "search"}

func isReadMethod(method string) bool {
	lower := strings.ToLower(method)
	for _, p := range readPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
