package session

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/sync/singleflight"

	"github.com/trezcool/masomo-portal/core/user"
)

// Verification is the outcome of asking the backend who a token belongs to.
type Verification struct {
	User user.User
	Err  error
}

// Verifier confirms restored tokens with the backend.
// Concurrent confirmations of the same token share one backend call,
// which runs detached from any caller so that one abandoned request does not fail the others.
type Verifier struct {
	auth    Authenticator
	timeout time.Duration
	group   singleflight.Group
}

func NewVerifier(auth Authenticator, timeout time.Duration) *Verifier {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Verifier{auth: auth, timeout: timeout}
}

// Verify starts (or joins) the confirmation of token. The channel receives exactly one value.
func (v *Verifier) Verify(token string) <-chan Verification {
	out := make(chan Verification, 1)
	res := v.group.DoChan(token, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
		defer cancel()
		return v.auth.Me(ctx, token)
	})
	go func() {
		r := <-res
		usr, _ := r.Val.(user.User)
		out <- Verification{User: usr, Err: r.Err}
	}()
	return out
}

// tokenExpired reports whether token is a JWT whose exp claim is before now.
// Opaque (non-JWT) tokens are never considered expired here; the backend decides.
func tokenExpired(token string, now time.Time) bool {
	claims := new(jwt.StandardClaims)
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return false
	}
	return claims.ExpiresAt != 0 && now.Unix() > claims.ExpiresAt
}
