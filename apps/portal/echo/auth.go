package echoportal

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/guard"
	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/core/user"
)

const msgPasswordReset = "If the email address supplied is associated with an active account on this system, " +
	"an email will arrive in your inbox shortly with instructions to reset your password."

type credentialsView struct {
	Email  string
	Next   string
	Errors map[string]string
}

// home sends the user to their role's landing route, or to sign in.
func (s *server) home(ctx echo.Context) error {
	store, err := contextStore(ctx)
	if err != nil {
		return err
	}
	snap := store.Snapshot()
	switch snap.State {
	case session.Pending:
		return renderLoading(ctx)
	case session.Authenticated:
		role, _ := snap.Role()
		return ctx.Redirect(http.StatusSeeOther, role.Home())
	}
	return ctx.Redirect(http.StatusSeeOther, guard.LoginPath)
}

func (s *server) loginPage(ctx echo.Context) error {
	store, err := contextStore(ctx)
	if err != nil {
		return err
	}
	snap := store.Snapshot()
	next := guard.SafeNext(ctx.QueryParam(guard.NextParam))
	switch snap.State {
	case session.Pending:
		return renderLoading(ctx)
	case session.Authenticated:
		role, _ := snap.Role()
		return ctx.Redirect(http.StatusSeeOther, s.destination(role, next))
	}
	return s.renderLogin(ctx, http.StatusOK, credentialsView{Next: next}, "")
}

func (s *server) login(ctx echo.Context) error {
	store, err := contextStore(ctx)
	if err != nil {
		return err
	}

	var form LoginForm
	if err := bindForm(ctx, &form); err != nil {
		return s.loginFailed(ctx, form, err)
	}
	form.Next = guard.SafeNext(form.Next)
	if err := form.Validate(); err != nil {
		return s.loginFailed(ctx, form, err)
	}

	sess, err := store.Login(ctx.Request().Context(), form.Email, form.Password)
	if err != nil {
		return s.loginFailed(ctx, form, err)
	}
	s.opts.Logger.Info("signed in", requestExtras(ctx), sess.User)
	return ctx.Redirect(http.StatusSeeOther, s.destination(sess.User.Role, form.Next))
}

// loginFailed re-renders the login form with the email kept and an inline alert.
func (s *server) loginFailed(ctx echo.Context, form LoginForm, err error) error {
	v := credentialsView{Email: form.Email, Next: form.Next}

	fields, alert, err := formErrors(err)
	if err == nil {
		v.Errors = fields
		return s.renderLogin(ctx, http.StatusBadRequest, v, alert)
	}

	code := http.StatusBadGateway
	if errors.Is(err, core.ErrInvalidCredentials) {
		code = http.StatusUnauthorized
	}
	msg := core.ErrorMessage(err)
	if msg == "" {
		msg = "Login failed"
	}
	return s.renderLogin(ctx, code, v, msg)
}

func (s *server) renderLogin(ctx echo.Context, code int, v credentialsView, alert string) error {
	return ctx.Render(code, "login", view{Title: "Sign in", Alert: alert, CSRF: csrfToken(ctx), Data: v})
}

// destination is where a freshly signed in role lands: the remembered route when the role may see it, home otherwise.
func (s *server) destination(role user.Role, next string) string {
	if next != "" && s.opts.Routes.Permits(role, next) {
		return next
	}
	return role.Home()
}

// logout is client-side only: the backend keeps no session to revoke.
func (s *server) logout(ctx echo.Context) error {
	store, err := contextStore(ctx)
	if err != nil {
		return err
	}
	usr, _ := store.Snapshot().User()
	if err := store.Logout(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "logging out")
	}
	if !usr.IsZero() {
		s.opts.Logger.Info("signed out", requestExtras(ctx), usr)
	}
	return ctx.Redirect(http.StatusSeeOther, guard.LoginPath)
}

func (s *server) forgotPasswordPage(ctx echo.Context) error {
	return s.renderForgot(ctx, http.StatusOK, credentialsView{}, "", "")
}

func (s *server) forgotPassword(ctx echo.Context) error {
	var form PasswordResetForm
	err := bindForm(ctx, &form)
	if err == nil {
		err = form.Validate()
	}
	if err != nil {
		fields, alert, err := formErrors(err)
		if err != nil {
			return err
		}
		return s.renderForgot(ctx, http.StatusBadRequest, credentialsView{Email: form.Email, Errors: fields}, alert, "")
	}

	if err := contextAPI(ctx).RequestPasswordReset(ctx.Request().Context(), form.Email); err != nil {
		if errors.Is(err, core.ErrNetwork) {
			return s.renderForgot(ctx, http.StatusBadGateway, credentialsView{Email: form.Email}, core.ErrorMessage(err), "")
		}
		// do not tell who has an account
		s.opts.Logger.Warn("requesting password reset", err, requestExtras(ctx))
	}
	return s.renderForgot(ctx, http.StatusOK, credentialsView{}, "", msgPasswordReset)
}

func (s *server) renderForgot(ctx echo.Context, code int, v credentialsView, alert, notice string) error {
	return ctx.Render(code, "forgot", view{Title: "Forgot password", Alert: alert, Notice: notice, CSRF: csrfToken(ctx), Data: v})
}
