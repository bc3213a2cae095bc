package auth

import (
	"testing"
	"time"
)

func TestTokenProviderGenerateAndValidate(t *testing.T) {
	p := NewTokenProvider([]byte("test-secret"))
	token, err := p.Generate("user-1", []string{"read"}, time.Hour)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	ctx, err := p.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if ctx.Principal != "user-1" || !ctx.HasRole("read") {
		t.Fatalf("unexpected context: %+v", ctx)
	}
}

func TestTokenProviderRejectsTamperedSignature(t *testing.T) {
	p := NewTokenProvider([]byte("test-secret"))
	token, _ := p.Generate("user-1", []string{"read"}, time.Hour)
	tampered := token[:len(token)-1] + "x"
	if _, err := p.Validate(tampered); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for tampered signature, got %v", err)
	}
}

func TestTokenProviderRejectsWrongSecret(t *testing.T) {
	token, _ := NewTokenProvider([]byte("secret-a")).Generate("user-1", nil, time.Hour)
	if _, err := NewTokenProvider([]byte("secret-b")).Validate(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
}

func TestTokenProviderRejectsExpiredToken(t *testing.T) {
	p := NewTokenProvider([]byte("test-secret"))
	token, _ := p.Generate("user-1", nil, -time.Minute)
	if _, err := p.Validate(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestAPIKeyValidatorGenerateAndValidate(t *testing.T) {
	v := NewAPIKeyValidator()
	key, err := v.Generate("svc-a", []string{"service", "read"}, time.Hour)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	ctx := v.Validate(key, "svc-a")
	if ctx == nil || ctx.Principal != "svc-a" {
		t.Fatalf("expected successful validation, got %+v", ctx)
	}
	if v.Validate(key, "svc-b") != nil {
		t.Fatal("expected nil when serviceID mismatches")
	}
}

func TestAPIKeyValidatorDisableAndRemove(t *testing.T) {
	v := NewAPIKeyValidator()
	key, _ := v.Generate("svc-a", nil, time.Hour)
	if !v.Disable(key) {
		t.Fatal("expected Disable to succeed")
	}
	if v.Validate(key, "") != nil {
		t.Fatal("expected disabled key to fail validation")
	}
	if !v.Remove(key) {
		t.Fatal("expected Remove to succeed")
	}
	if v.Remove(key) {
		t.Fatal("expected second Remove to report not-found")
	}
}

func TestAuthorizeRolePolicy(t *testing.T) {
	cases := []struct {
		roles  []string
		method string
		want   bool
	}{
		{[]string{"admin"}, "WriteOrder", true},
		{[]string{"service"}, "DeleteOrder", true},
		{[]string{"read"}, "GetOrder", true},
		{[]string{"read"}, "DeleteOrder", false},
		{[]string{"write"}, "DeleteOrder", true},
		{nil, "ListOrders", false},
	}
	for _, c := range cases {
		if got := Authorize(c.roles, c.method); got != c.want {
			t.Errorf("Authorize(%v, %q) = %v, want %v", c.roles, c.method, got, c.want)
		}
	}
}

func TestManagerCachesSuccessfulTokenAuthentication(t *testing.T) {
	m := NewManager(NewTokenProvider([]byte("s")), NewAPIKeyValidator(), nil)
	defer m.Close()
	token, _ := m.tokens.Generate("user-1", []string{"read"}, time.Hour)

	r1 := m.AuthenticateToken(token)
	if !r1.Authenticated {
		t.Fatalf("expected success, got %+v", r1)
	}
	stats := m.CacheStats()
	if stats.Total != 1 {
		t.Fatalf("expected 1 cached entry, got %+v", stats)
	}

	r2 := m.AuthenticateToken(token)
	if !r2.Authenticated || r2.Context.Principal != "user-1" {
		t.Fatalf("expected cached hit to still authenticate, got %+v", r2)
	}
}

func TestManagerAuthenticateAPIKey(t *testing.T) {
	keys := NewAPIKeyValidator()
	key, _ := keys.Generate("svc-a", []string{"service"}, time.Hour)
	m := NewManager(NewTokenProvider([]byte("s")), keys, nil)
	defer m.Close()

	r := m.AuthenticateAPIKey(key, "svc-a")
	if !r.Authenticated {
		t.Fatalf("expected success, got %+v", r)
	}
	if r2 := m.AuthenticateAPIKey("bogus", "svc-a"); r2.Authenticated {
		t.Fatal("expected failure for unknown key")
	}
}

func TestManagerClearCache(t *testing.T) {
	m := NewManager(NewTokenProvider([]byte("s")), NewAPIKeyValidator(), nil)
	defer m.Close()
	token, _ := m.tokens.Generate("user-1", nil, time.Hour)
	m.AuthenticateToken(token)
	m.ClearCache(token)
	if m.CacheStats().Total != 0 {
		t.Fatal("expected ClearCache to evict the entry")
	}
}
