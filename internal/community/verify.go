package community

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/intuitherm/pattern-core/internal/pattern"
)

// timeSince is swappable in tests.
var timeSince = time.Since

// VerifyEnvelope parses a signed submission envelope and returns its
// pattern records.
//
// The signature, signing method, and issue time are all checked; an
// envelope older than thirty days is rejected. Used when importing
// community pattern batches distributed back to installations.
func VerifyEnvelope(raw []byte, signingKey []byte) ([]pattern.SharedPatternRecord, error) {
	claims := &submissionClaims{}

	token, err := jwt.ParseWithClaims(string(raw), claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return signingKey, nil
		},
		jwt.WithIssuer(envelopeIssuer),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}
	if !token.Valid {
		return nil, ErrInvalidEnvelope
	}

	if claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing issue time", ErrInvalidEnvelope)
	}
	if age := timeSince(claims.IssuedAt.Time); age > maxEnvelopeAge {
		return nil, fmt.Errorf("%w: envelope is %v old", ErrInvalidEnvelope, age)
	}

	if len(claims.Patterns) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrInvalidEnvelope)
	}

	for i := range claims.Patterns {
		rec := &claims.Patterns[i]
		if rec.Brand == "" || !pattern.ValidRole(rec.Role) {
			return nil, fmt.Errorf("%w: record %d has invalid brand or role", ErrInvalidEnvelope, i)
		}
		if len(rec.Rules.Tokens) == 0 {
			return nil, fmt.Errorf("%w: record %d has no tokens", ErrInvalidEnvelope, i)
		}
	}

	return claims.Patterns, nil
}
