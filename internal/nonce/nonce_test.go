package nonce

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testKey = []byte("nonce-test-secret")

func newTestIssuer(now time.Time) *Issuer {
	return NewIssuer(jwt.SigningMethodHS256, testKey, time.Hour).WithClock(func() time.Time { return now })
}

func TestIssuer_RoundTrip(t *testing.T) {
	now := time.Now()
	iss := newTestIssuer(now)

	token, err := iss.Issue("user-a", "doc-1", ActionCancelEditLock)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Fatalf("expected a compact JWT, got %q", token)
	}

	if err := iss.Verify(token, "user-a", "doc-1", ActionCancelEditLock); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
}

func TestIssuer_UniqueTokens(t *testing.T) {
	iss := newTestIssuer(time.Now())

	a, _ := iss.Issue("user-a", "doc-1", ActionCancelEditLock)
	b, _ := iss.Issue("user-a", "doc-1", ActionCancelEditLock)
	if a == b {
		t.Error("expected tokens with distinct jti")
	}
}

func TestIssuer_Mismatch(t *testing.T) {
	iss := newTestIssuer(time.Now())
	token, err := iss.Issue("user-a", "doc-1", ActionCancelEditLock)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	tests := []struct {
		name   string
		actor  string
		doc    string
		action string
	}{
		{"other actor", "user-b", "doc-1", ActionCancelEditLock},
		{"other doc", "user-a", "doc-2", ActionCancelEditLock},
		{"other action", "user-a", "doc-1", "delete_doc"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := iss.Verify(token, tc.actor, tc.doc, tc.action)
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestIssuer_Expired(t *testing.T) {
	issued := time.Now().Add(-2 * time.Hour)
	token, err := newTestIssuer(issued).Issue("user-a", "doc-1", ActionCancelEditLock)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	err = newTestIssuer(time.Now()).Verify(token, "user-a", "doc-1", ActionCancelEditLock)
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestIssuer_WrongKey(t *testing.T) {
	token, err := newTestIssuer(time.Now()).Issue("user-a", "doc-1", ActionCancelEditLock)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	other := NewIssuer(jwt.SigningMethodHS256, []byte("another-secret"), time.Hour)
	if err := other.Verify(token, "user-a", "doc-1", ActionCancelEditLock); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestIssuer_RejectsOtherAlgorithm(t *testing.T) {
	token, err := NewIssuer(jwt.SigningMethodHS512, testKey, time.Hour).Issue("user-a", "doc-1", ActionCancelEditLock)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if err := newTestIssuer(time.Now()).Verify(token, "user-a", "doc-1", ActionCancelEditLock); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestIssuer_Garbage(t *testing.T) {
	iss := newTestIssuer(time.Now())
	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		if err := iss.Verify(token, "user-a", "doc-1", ActionCancelEditLock); !errors.Is(err, ErrInvalid) {
			t.Errorf("Verify(%q): expected ErrInvalid, got %v", token, err)
		}
	}
}

func TestIssuer_IssueRequiresFields(t *testing.T) {
	iss := newTestIssuer(time.Now())
	if _, err := iss.Issue("", "doc-1", ActionCancelEditLock); err == nil {
		t.Error("expected error for empty actor")
	}
	if _, err := iss.Issue("user-a", "", ActionCancelEditLock); err == nil {
		t.Error("expected error for empty doc")
	}
}

func TestNewIssuer_DefaultTTL(t *testing.T) {
	iss := NewIssuer(jwt.SigningMethodHS256, testKey, 0)
	if iss.ttl != DefaultTTL {
		t.Errorf("expected default ttl %v, got %v", DefaultTTL, iss.ttl)
	}
}
