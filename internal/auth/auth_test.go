package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"quizgenius-service/internal/domain"
)

func TestIssueAndParseRoundTrip(t *testing.T) {
	issuer := newTestIssuer(t)
	want := domain.Principal{Role: domain.RoleStudent, UserID: "u1", Username: "ada"}

	raw, err := issuer.Issue(want)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	got, err := issuer.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestParseRejectsExpiredAndForeignTokens(t *testing.T) {
	issuer := newTestIssuer(t)
	raw, _ := issuer.Issue(domain.Principal{Role: domain.RoleAdmin})

	later := issuer.now().Add(25 * time.Hour)
	issuer.now = func() time.Time { return later }
	if _, err := issuer.Parse(raw); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected expired token rejected, got %v", err)
	}

	other, _ := NewIssuer("another-secret", time.Hour)
	foreign, _ := other.Issue(domain.Principal{Role: domain.RoleAdmin})
	if _, err := newTestIssuer(t).Parse(foreign); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected foreign signature rejected, got %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"role": "admin"})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := newTestIssuer(t).Parse(unsigned); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected alg none rejected, got %v", err)
	}
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	if _, err := NewIssuer("", time.Hour); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestMiddlewareStatuses(t *testing.T) {
	issuer := newTestIssuer(t)
	studentToken, _ := issuer.Issue(domain.Principal{Role: domain.RoleStudent, UserID: "u1"})
	adminToken, _ := issuer.Issue(domain.Principal{Role: domain.RoleAdmin})

	var seen domain.Principal
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	userOnly := Authenticate(issuer)(RequireUser(ok))
	adminOnly := Authenticate(issuer)(RequireAdmin(ok))

	cases := []struct {
		name    string
		handler http.Handler
		target  string
		header  string
		status  int
		message string
	}{
		{"missing token", userOnly, "/", "", http.StatusUnauthorized, msgNoToken},
		{"garbage token", userOnly, "/", "Bearer nope", http.StatusBadRequest, msgInvalidToken},
		{"student header", userOnly, "/", "Bearer " + studentToken, http.StatusNoContent, ""},
		{"student query", userOnly, "/?token=" + studentToken, "", http.StatusNoContent, ""},
		{"student on admin route", adminOnly, "/", "Bearer " + studentToken, http.StatusForbidden, msgForbidden},
		{"admin on admin route", adminOnly, "/", "Bearer " + adminToken, http.StatusNoContent, ""},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.target, nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		tc.handler.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.status, rec.Code)
		}
		if tc.message != "" && !strings.Contains(rec.Body.String(), tc.message) {
			t.Fatalf("%s: expected message %q, got %s", tc.name, tc.message, rec.Body.String())
		}
	}
	if seen.Role != domain.RoleAdmin {
		t.Fatalf("expected admin principal in context, got %+v", seen)
	}
}

func TestAuthenticateLeavesAnonymousRequestsAlone(t *testing.T) {
	var seen domain.Principal
	h := Authenticate(newTestIssuer(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = PrincipalFromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if seen.Role != domain.RoleAnonymous {
		t.Fatalf("expected anonymous principal, got %+v", seen)
	}
}

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	issuer, err := NewIssuer("test-secret", 24*time.Hour)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return now }
	return issuer
}
