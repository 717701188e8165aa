package echoportal

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-portal/core/session"
)

// cookieTokens is the TokenStorage of one request. The token cookie is read once; changes are recorded
// and written to the response just before its header goes out, on the request's goroutine.
// Changes made after that, by a confirmation outliving the request, are not sent.
type cookieTokens struct {
	name   string
	secure bool

	mu      sync.Mutex
	token   string
	pending *http.Cookie
	flushed bool
}

var _ session.TokenStorage = (*cookieTokens)(nil)

func newCookieTokens(ctx echo.Context, name string, secure bool) *cookieTokens {
	c := &cookieTokens{name: name, secure: secure}
	if cookie, err := ctx.Cookie(name); err == nil {
		c.token = cookie.Value
	}
	res := ctx.Response()
	res.Before(func() { c.flush(res) })
	return c
}

func (c *cookieTokens) Token() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, nil
}

func (c *cookieTokens) SetToken(token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.pending = newTokenCookie(c.name, token, c.secure, 0)
	return nil
}

func (c *cookieTokens) ClearToken() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.pending = newTokenCookie(c.name, "", c.secure, -1)
	return nil
}

func (c *cookieTokens) flush(w http.ResponseWriter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flushed {
		return
	}
	c.flushed = true
	if c.pending != nil {
		http.SetCookie(w, c.pending)
	}
}

func newTokenCookie(name, value string, secure bool, maxAge int) *http.Cookie {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge < 0 {
		cookie.Expires = time.Unix(0, 0)
	}
	return cookie
}

// expireTokenCookie drops the token cookie without going through a Store.
func expireTokenCookie(ctx echo.Context, name string, secure bool) {
	ctx.SetCookie(newTokenCookie(name, "", secure, -1))
}
