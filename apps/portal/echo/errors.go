package echoportal

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/guard"
	"github.com/trezcool/masomo-portal/core/user"
	"github.com/trezcool/masomo-portal/services/gateway"
)

const msgNetwork = "Could not reach the server. Please try again."

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that renders our errors as pages.
// An expired session that reached it is dropped and the user sent to sign in again.
func newAppHTTPErrorHandler(logger core.Logger, cookieName string, secureCookies bool) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		if ctx.Response().Committed {
			return
		}

		if errors.Is(err, core.ErrAuthExpired) {
			expireTokenCookie(ctx, cookieName, secureCookies)
			if rErr := ctx.Redirect(http.StatusSeeOther, guard.LoginLocation(requested(ctx))); rErr != nil {
				ctx.Echo().Logger.Error(rErr)
			}
			return
		}

		var code int
		var message string
		var apiErr *gateway.APIError
		var httpErr *echo.HTTPError
		var vErr *core.ValidationError

		switch {
		case errors.As(err, &httpErr):
			if herr, ok := httpErr.Internal.(*echo.HTTPError); ok {
				httpErr = herr
			}
			code = httpErr.Code
			message = http.StatusText(code)
			if m, ok := httpErr.Message.(string); ok {
				message = m
			}
		case errors.As(err, &vErr):
			code = http.StatusBadRequest
			message = vErr.Error()
		case errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError:
			code = apiErr.Status
			message = apiErr.Message
			if message == "" {
				message = http.StatusText(code)
			}
		case errors.Is(err, core.ErrNetwork):
			code = http.StatusBadGateway
			message = core.ErrorMessage(err)
			if message == "" {
				message = msgNetwork
			}
			logger.Warn(message, err, requestExtras(ctx), sessionUser(ctx))
		default: // any other error is a server error
			code = http.StatusInternalServerError
			message = http.StatusText(code)
			logger.Error(message, errors.Wrap(err, message), requestExtras(ctx), sessionUser(ctx))
		}

		v := view{Title: http.StatusText(code), Alert: message, Code: code}
		if ctx.Echo().Debug {
			v.Detail = err.Error()
		}

		if ctx.Request().Method == http.MethodHead { // Issue #608
			err = ctx.NoContent(code)
		} else {
			err = ctx.Render(code, "error", v)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}

// sessionUser is the user the request was made by, zero if none.
func sessionUser(ctx echo.Context) user.User {
	if store, err := contextStore(ctx); err == nil {
		usr, _ := store.Snapshot().User()
		return usr
	}
	return user.User{}
}
