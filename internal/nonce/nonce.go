// Package nonce issues and verifies signed, time-boxed, single-purpose action
// tokens. A token names the actor it was issued to, the document and the
// action, so a link copied out of one page cannot trigger anything else.
package nonce

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ActionCancelEditLock is the force-cancel action.
const ActionCancelEditLock = "cancel_edit_lock"

// DefaultTTL matches the lifetime of a nonce in the original docs UI.
const DefaultTTL = 12 * time.Hour

var (
	// ErrInvalid is returned for malformed, forged or mismatched tokens.
	ErrInvalid = errors.New("invalid action token")

	// ErrExpired is returned for tokens past their expiry.
	ErrExpired = errors.New("action token expired")
)

type claims struct {
	Action string `json:"act"`
	DocID  string `json:"doc"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies action tokens.
type Issuer struct {
	method jwt.SigningMethod
	key    interface{}
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an Issuer. key must match method: []byte for HS256,
// *crypto.KMSKey for KMS-HS256.
func NewIssuer(method jwt.SigningMethod, key interface{}, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{
		method: method,
		key:    key,
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock returns a copy of the issuer using now instead of time.Now.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	c := *i
	c.now = now
	return &c
}

// Issue returns a token allowing actorID to perform action on docID.
func (i *Issuer) Issue(actorID, docID, action string) (string, error) {
	if actorID == "" || docID == "" || action == "" {
		return "", fmt.Errorf("actor, doc and action are required")
	}

	now := i.now()
	token := jwt.NewWithClaims(i.method, claims{
		Action: action,
		DocID:  docID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   actorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	})

	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign action token: %w", err)
	}
	return signed, nil
}

// Verify checks that tokenString was issued by this issuer to actorID for
// action on docID and has not expired.
func (i *Issuer) Verify(tokenString, actorID, docID, action string) error {
	if tokenString == "" {
		return ErrInvalid
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{i.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)

	var c claims
	_, err := parser.ParseWithClaims(tokenString, &c, func(*jwt.Token) (interface{}, error) {
		return i.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpired
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if c.Subject != actorID || c.DocID != docID || c.Action != action {
		return ErrInvalid
	}
	return nil
}
