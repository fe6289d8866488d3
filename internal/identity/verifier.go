package identity

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"messaging-service/internal/apperrors"
)

// Verifier resolves a bearer token to a verified identity handle. The
// messaging service treats identity as opaque; everything behind the token is
// owned by the identity service that signed it.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// Normalize lower-cases and trims an identity handle. Handles are compared
// case-insensitively everywhere.
func Normalize(handle string) string {
	return strings.ToLower(strings.TrimSpace(handle))
}

// JWTVerifier validates HS256 tokens issued by the identity service.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier builds a verifier for the shared signing secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

var _ Verifier = (*JWTVerifier)(nil)

// Verify parses and validates the token, returning the normalized subject.
func (v *JWTVerifier) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", apperrors.New(apperrors.AuthenticationRequired, "missing token")
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return "", apperrors.Wrap(apperrors.AuthenticationRequired, "invalid token", err)
	}
	subject, err := parsed.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", apperrors.New(apperrors.AuthenticationRequired, "invalid token")
	}
	return Normalize(subject), nil
}

// VerifyWithTimeout bounds verification so a hang becomes a deterministic
// error instead of blocking the caller. Used for websocket upgrades.
func VerifyWithTimeout(parent context.Context, v Verifier, token string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	type result struct {
		identity string
		err      error
	}
	done := make(chan result, 1)
	go func() {
		identity, err := v.Verify(ctx, token)
		done <- result{identity, err}
	}()

	select {
	case res := <-done:
		return res.identity, res.err
	case <-ctx.Done():
		return "", apperrors.Wrap(apperrors.ServiceTimeout, "identity verification timed out", ctx.Err())
	}
}
