package admin

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ErrInvalidConfirmation indicates a missing, forged, expired or mismatched confirmation token.
var ErrInvalidConfirmation = errors.New("admin: invalid confirmation")

const (
	defaultConfirmTTL = 5 * time.Minute
	confirmKeyLabel   = "bloomcare/admin-confirm/v1"
)

// Action identifies a destructive operation that needs an explicit confirmation.
type Action string

const (
	ActionDeleteProduct Action = "product.delete"
	ActionDeleteAdmin   Action = "admin.delete"
)

// Prompt returns the question shown in the confirmation modal.
func (a Action) Prompt() string {
	switch a {
	case ActionDeleteProduct:
		return "¿Estás seguro de eliminar este producto?"
	case ActionDeleteAdmin:
		return "¿Estás seguro de que deseas eliminar a este administrador? Esta acción no se puede deshacer."
	default:
		return "¿Confirmas esta acción?"
	}
}

type confirmClaims struct {
	Session string `json:"sid"`
	jwt.RegisteredClaims
}

// Confirmer issues short-lived confirmation tokens bound to a device session, an action and a
// target id.
type Confirmer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewConfirmer builds a Confirmer. Tokens are signed with an HMAC subkey of secret, never with
// secret itself. A zero ttl uses five minutes.
func NewConfirmer(secret []byte, ttl time.Duration, now func() time.Time) (*Confirmer, error) {
	if len(secret) == 0 {
		return nil, errors.New("admin: confirmation key is required")
	}
	if ttl <= 0 {
		ttl = defaultConfirmTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Confirmer{key: deriveKey(secret), ttl: ttl, now: now}, nil
}

func deriveKey(secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(confirmKeyLabel))
	return mac.Sum(nil)
}

// Issue returns a token that Verify accepts for the same session, action and target.
func (c *Confirmer) Issue(sessionID string, action Action, targetID string) (string, error) {
	now := c.now()
	claims := confirmClaims{
		Session: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   targetID,
			Audience:  jwt.ClaimStrings{string(action)},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("admin: sign confirmation: %w", err)
	}
	return signed, nil
}

// Verify checks the token against the caller's session, action and target.
func (c *Confirmer) Verify(token, sessionID string, action Action, targetID string) error {
	if token == "" {
		return ErrInvalidConfirmation
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	claims := &confirmClaims{}
	if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.key, nil
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfirmation, err)
	}
	switch {
	case !claims.VerifyExpiresAt(c.now(), true):
		return fmt.Errorf("%w: expired", ErrInvalidConfirmation)
	case !claims.VerifyAudience(string(action), true):
		return fmt.Errorf("%w: action mismatch", ErrInvalidConfirmation)
	case claims.Subject != targetID || claims.Session != sessionID:
		return fmt.Errorf("%w: target mismatch", ErrInvalidConfirmation)
	}
	return nil
}
