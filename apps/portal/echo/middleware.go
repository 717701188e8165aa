package echoportal

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/guard"
	"github.com/trezcool/masomo-portal/core/nav"
	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/services/gateway"
)

const (
	contextStoreKey = "session"
	contextAPIKey   = "api"
)

var errNoStoreInCtx = errors.New("session store not found in echo.Context")

// sessionMiddleware restores the session of the request from its token cookie.
// It waits up to Server.RestoreWait for the backend to confirm the token; past that the request goes on Pending.
func (s *server) sessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		tokens := newCookieTokens(ctx, s.conf.Session.CookieName, s.conf.Server.SecureCookies)

		store := session.NewStore(s.opts.Gateway, session.Options{
			Tokens:   tokens,
			Profiles: s.opts.Profiles,
			Verifier: s.opts.Verifier,
			Logger:   s.opts.Logger,
		})
		reqCtx := ctx.Request().Context()
		if snap := store.Restore(reqCtx); snap.State == session.Pending {
			wctx, cancel := context.WithTimeout(reqCtx, s.restoreWait())
			_, _ = store.Wait(wctx)
			cancel()
		}

		ctx.Set(contextStoreKey, store)
		ctx.Set(contextAPIKey, s.opts.Gateway.WithTokens(tokens))

		err := next(ctx)
		if err != nil && store.HandleAuthFailure(reqCtx, err) {
			s.opts.Logger.Info("session expired, signed out", requestExtras(ctx))
			return ctx.Redirect(http.StatusSeeOther, guard.LoginLocation(requested(ctx)))
		}
		return err
	}
}

// guardMiddleware runs the subtree's guard, then the route's.
func (s *server) guardMiddleware(st nav.Subtree, r nav.Route) echo.MiddlewareFunc {
	specs := []guard.Spec{st.Guard, r.Guard(st)}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			store, err := contextStore(ctx)
			if err != nil {
				return err
			}
			snap := store.Snapshot()
			for _, spec := range specs {
				d := guard.Evaluate(spec, snap, requested(ctx))
				switch d.Outcome {
				case guard.Loading:
					return renderLoading(ctx)
				case guard.RedirectLogin, guard.RedirectHome:
					return ctx.Redirect(http.StatusSeeOther, d.Location)
				}
			}
			return next(ctx)
		}
	}
}

func contextStore(ctx echo.Context) (*session.Store, error) {
	if store, ok := ctx.Get(contextStoreKey).(*session.Store); ok {
		return store, nil
	}
	return nil, errNoStoreInCtx
}

func contextAPI(ctx echo.Context) *gateway.Client {
	api, _ := ctx.Get(contextAPIKey).(*gateway.Client)
	return api
}

// contextSession returns the authenticated session of the request. Guarded handlers always have one.
func contextSession(ctx echo.Context) (session.Session, error) {
	store, err := contextStore(ctx)
	if err != nil {
		return session.Session{}, err
	}
	snap := store.Snapshot()
	if snap.State != session.Authenticated {
		return session.Session{}, errors.Wrap(core.ErrAuthExpired, "no authenticated session")
	}
	return *snap.Session, nil
}

// requested is the path and query the user asked for.
func requested(ctx echo.Context) string {
	return ctx.Request().URL.RequestURI()
}

func requestExtras(ctx echo.Context) map[string]interface{} {
	return map[string]interface{}{
		"method":    ctx.Request().Method,
		"path":      requested(ctx),
		"requestID": ctx.Response().Header().Get(echo.HeaderXRequestID),
	}
}
