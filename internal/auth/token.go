// Package auth issues and verifies the HS256 session tokens that identify
// the commenting user.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"

	"graphreview/api/internal/mention"
	"graphreview/api/internal/util"
)

var ErrInvalidToken = errors.New("invalid token")

// Issuer signs and verifies session tokens.
type Issuer struct {
	ja  *jwtauth.JWTAuth
	ttl time.Duration
	now func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Issuer{
		ja:  jwtauth.New("HS256", []byte(secret), nil),
		ttl: ttl,
		now: time.Now,
	}
}

// Issue returns a signed token for user and its expiry.
func (i *Issuer) Issue(user mention.UserIdentity) (string, time.Time, error) {
	if user.ID == "" {
		return "", time.Time{}, fmt.Errorf("issue token: %w", ErrInvalidToken)
	}
	now := i.now()
	expires := now.Add(i.ttl)
	claims := map[string]interface{}{
		"sub":   user.ID,
		"name":  user.Name,
		"email": user.Email,
		"jti":   util.NewID("jti"),
	}
	jwtauth.SetIssuedAt(claims, now)
	jwtauth.SetExpiry(claims, expires)

	_, token, err := i.ja.Encode(claims)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("encode token: %w", err)
	}
	return token, expires, nil
}

// Parse verifies a raw token, expiry included, and returns its user.
func (i *Issuer) Parse(raw string) (mention.UserIdentity, error) {
	token, err := jwtauth.VerifyToken(i.ja, raw)
	if err != nil {
		return mention.UserIdentity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, err := token.AsMap(context.Background())
	if err != nil {
		return mention.UserIdentity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return userFromClaims(claims)
}

// Verifier finds a token in the Authorization header or the jwt cookie and
// stores the verification result in the request context. It never rejects a
// request on its own.
func (i *Issuer) Verifier() func(http.Handler) http.Handler {
	return jwtauth.Verify(i.ja, jwtauth.TokenFromHeader, jwtauth.TokenFromCookie)
}

// UserFromContext returns the verified user placed by Verifier.
func UserFromContext(ctx context.Context) (mention.UserIdentity, bool) {
	token, claims, err := jwtauth.FromContext(ctx)
	if err != nil || token == nil {
		return mention.UserIdentity{}, false
	}
	user, err := userFromClaims(claims)
	if err != nil {
		return mention.UserIdentity{}, false
	}
	return user, true
}

func userFromClaims(claims map[string]interface{}) (mention.UserIdentity, error) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return mention.UserIdentity{}, ErrInvalidToken
	}
	name, _ := claims["name"].(string)
	email, _ := claims["email"].(string)
	return mention.UserIdentity{ID: sub, Name: name, Email: email}, nil
}
