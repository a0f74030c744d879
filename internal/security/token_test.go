package security

import (
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestManager() (*TokenManager, *fakeClock) {
	clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return NewTokenManager("test-secret-not-for-production", clk), clk
}

func TestTokenRoundTrip(t *testing.T) {
	mgr, _ := newTestManager()

	token, err := mgr.Create(TokenAccess, "user-1", 15*time.Minute, &AccessClaims{
		Email:     "a@x.com",
		Role:      "admin1",
		SessionID: "sess-1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	claims, err := mgr.Verify(token, TokenAccess)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("subject = %q, want user-1", claims.Subject)
	}
	if claims.Email != "a@x.com" || claims.Role != "admin1" || claims.SessionID != "sess-1" {
		t.Errorf("extra claims not preserved: %+v", claims)
	}
	if claims.Kind != "access" {
		t.Errorf("kind = %q, want access", claims.Kind)
	}
}

func TestTokenKindMismatch(t *testing.T) {
	mgr, _ := newTestManager()

	kinds := []TokenKind{TokenAccess, TokenRefresh, TokenPasswordReset, TokenEmailVerification}
	for _, issued := range kinds {
		token, err := mgr.Create(issued, "user-1", time.Hour, nil)
		if err != nil {
			t.Fatalf("create %s: %v", issued, err)
		}
		for _, expected := range kinds {
			_, err := mgr.Verify(token, expected)
			if issued == expected {
				if err != nil {
					t.Errorf("verify %s as %s: unexpected error %v", issued, expected, err)
				}
				continue
			}
			if !errors.Is(err, ErrTokenKind) {
				t.Errorf("verify %s as %s: got %v, want ErrTokenKind", issued, expected, err)
			}
		}
	}
}

func TestTokenExpiry(t *testing.T) {
	mgr, clk := newTestManager()

	token, err := mgr.Create(TokenAccess, "user-1", 15*time.Minute, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := mgr.Verify(token, TokenAccess); err != nil {
		t.Fatalf("verify before expiry: %v", err)
	}

	clk.Advance(16 * time.Minute)
	if _, err := mgr.Verify(token, TokenAccess); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("verify after expiry: got %v, want ErrTokenExpired", err)
	}
}

func TestTokenTamperedSignature(t *testing.T) {
	mgr, _ := newTestManager()

	token, err := mgr.Create(TokenAccess, "user-1", time.Hour, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + "." + "AAAA" + parts[2][4:]
	if _, err := mgr.Verify(tampered, TokenAccess); !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("tampered token: got %v, want ErrTokenSignature", err)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	mgr, _ := newTestManager()
	other := NewTokenManager("different-secret", &fakeClock{now: time.Now()})

	token, err := other.Create(TokenAccess, "user-1", time.Hour, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := mgr.Verify(token, TokenAccess); !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("foreign token: got %v, want ErrTokenSignature", err)
	}
}

func TestTokenMalformedInput(t *testing.T) {
	mgr, _ := newTestManager()

	for _, input := range []string{"", "garbage", "a.b.c", strings.Repeat("x", 4096)} {
		if _, err := mgr.Verify(input, TokenAccess); !errors.Is(err, ErrTokenSignature) {
			t.Errorf("input %q: got %v, want ErrTokenSignature", input, err)
		}
	}
}

func TestRefreshTokenCarriesUniqueID(t *testing.T) {
	mgr, _ := newTestManager()

	first, err := mgr.Create(TokenRefresh, "user-1", time.Hour, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := mgr.Create(TokenRefresh, "user-1", time.Hour, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	c1, err := mgr.Verify(first, TokenRefresh)
	if err != nil {
		t.Fatalf("verify first: %v", err)
	}
	c2, err := mgr.Verify(second, TokenRefresh)
	if err != nil {
		t.Fatalf("verify second: %v", err)
	}

	if c1.ID == "" || c2.ID == "" {
		t.Fatal("refresh tokens must carry a jti")
	}
	if c1.ID == c2.ID {
		t.Fatal("jti must be unique per token")
	}
}

func TestAccessTokenHasNoJTI(t *testing.T) {
	mgr, _ := newTestManager()

	token, err := mgr.Create(TokenAccess, "user-1", time.Hour, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	claims, err := mgr.Verify(token, TokenAccess)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.ID != "" {
		t.Errorf("access token jti = %q, want empty", claims.ID)
	}
}
