package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrInvalidToken is returned for any malformed, unsigned, or expired token.
var ErrInvalidToken = errors.New("auth: invalid token")

// DefaultTokenTTL is JwtTokenProvider.java's defaultExpirationHours.
const DefaultTokenTTL = 24 * time.Hour

type tokenHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

type tokenPayload struct {
	Sub   string   `json:"sub"`
	Iat   int64    `json:"iat"`
	Exp   int64    `json:"exp"`
	Roles []string `json:"roles"`
}

// TokenProvider issues and validates signed tokens: a base64url header and
// payload joined with ".", signed with HMAC-SHA256 over "header.payload".
// This deliberately hand-rolls the JWT-shaped envelope the way
// JwtTokenProvider.java does rather than pulling in a JWT library — the
// pack's examples never reach for one, and the format here is intentionally
// narrower than full JWT (one algorithm, no header negotiation).
type TokenProvider struct {
	secret []byte
}

// NewTokenProvider builds a provider signing with secret. Callers own key
// management (rotation, storage) — the provider only signs and verifies.
func NewTokenProvider(secret []byte) *TokenProvider {
	return &TokenProvider{secret: secret}
}

func (p *TokenProvider) sign(data string) string {
	mac := hmac.New(sha256.New, p.secret)
	mac.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Generate issues a token for userID with the given roles, valid for ttl
// (DefaultTokenTTL if ttl is zero).
func (p *TokenProvider) Generate(userID string, roles []string, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	headerJSON, err := json.Marshal(tokenHeader{Alg: "HS256", Typ: "JWT"})
	if err != nil {
		return "", err
	}
	now := time.Now()
	payloadJSON, err := json.Marshal(tokenPayload{
		Sub:   userID,
		Iat:   now.Unix(),
		Exp:   now.Add(ttl).Unix(),
		Roles: roles,
	})
	if err != nil {
		return "", err
	}
	data := base64.RawURLEncoding.EncodeToString(headerJSON) + "." +
		base64.RawURLEncoding.EncodeToString(payloadJSON)
	return data + "." + p.sign(data), nil
}

// Validate verifies the signature and expiration and returns the decoded
// Context, or ErrInvalidToken.
func (p *TokenProvider) Validate(token string) (*Context, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidToken
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrInvalidToken
	}
	data := parts[0] + "." + parts[1]
	if !hmac.Equal([]byte(p.sign(data)), []byte(parts[2])) {
		return nil, ErrInvalidToken
	}
	payloadJSON, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrInvalidToken
	}
	var payload tokenPayload
	if err := json.Unmarshal(payloadJSON, &payload); err != nil {
		return nil, ErrInvalidToken
	}
	expiresAt := time.Unix(payload.Exp, 0)
	if time.Now().After(expiresAt) {
		return nil, ErrInvalidToken
	}
	return &Context{
		Method:    MethodSignedToken,
		Principal: payload.Sub,
		Roles:     payload.Roles,
		ExpiresAt: expiresAt,
	}, nil
}
