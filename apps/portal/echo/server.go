package echoportal

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/nav"
	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/services/gateway"
)

var errMissingHandler = errors.New("route has no handler")

type (
	Options struct {
		Address        string
		DisableReqLogs bool
		DisableCSRF    bool
		Gateway        *gateway.Client
		Profiles       session.ProfileCache
		Verifier       *session.Verifier
		Logger         core.Logger

		// Menu and Routes default to nav.DefaultTable and nav.DefaultRoutes.
		Menu   nav.Table
		Routes nav.RouteTable
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
	}

	server struct {
		opts  *Options
		app   *echo.Echo
		conf  *core.Config
		pages *pages
	}
)

var _ Server = (*server)(nil)

// NewServer builds the portal. It fails when the route table and the page handlers disagree.
func NewServer(opts *Options) (Server, error) {
	if opts.Menu == nil {
		opts.Menu = nav.DefaultTable
	}
	if opts.Routes == nil {
		opts.Routes = nav.DefaultRoutes
	}
	if opts.Logger == nil {
		opts.Logger = core.NopLogger()
	}
	if opts.Verifier == nil {
		opts.Verifier = session.NewVerifier(opts.Gateway, core.Conf.API.Timeout)
	}

	rdr, err := newRenderer()
	if err != nil {
		return nil, errors.Wrap(err, "parsing templates")
	}

	s := &server{
		opts: opts,
		app:  echo.New(),
		conf: core.Conf,
	}
	s.pages = &pages{menu: opts.Menu, routes: opts.Routes}
	s.app.Renderer = rdr
	if err := s.setup(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *server) setup() error {
	debug := s.conf.Debug

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if !s.opts.DisableCSRF {
		s.app.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
			TokenLookup:    "form:" + csrfField,
			CookieName:     csrfCookie,
			CookiePath:     "/",
			CookieHTTPOnly: true,
			CookieSecure:   s.conf.Server.SecureCookies,
			CookieSameSite: http.SameSiteLaxMode,
		}))
	}
	s.app.Use(s.sessionMiddleware)

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.conf.Session.CookieName, s.conf.Server.SecureCookies)
	s.app.Debug = debug

	s.app.GET("/", s.home)
	s.app.GET("/login", s.loginPage)
	s.app.POST("/login", s.login)
	s.app.POST("/logout", s.logout)
	s.app.GET("/forgot-password", s.forgotPasswordPage)
	s.app.POST("/forgot-password", s.forgotPassword)

	return s.registerRoutes(s.pages.handlers())
}

// registerRoutes mounts every route of the table with its guards.
// handlers is keyed by route path for GET, and by "POST <path>" for form submissions.
func (s *server) registerRoutes(handlers map[string]echo.HandlerFunc) error {
	used := make(map[string]bool, len(handlers))
	for _, st := range s.opts.Routes {
		st := st
		s.app.GET(st.Prefix, func(ctx echo.Context) error {
			return ctx.Redirect(http.StatusSeeOther, st.Index)
		}, s.guardMiddleware(st, nav.Route{Path: st.Index}))

		for _, r := range st.Routes {
			h, ok := handlers[r.Path]
			if !ok {
				return errors.Wrapf(errMissingHandler, "GET %s", r.Path)
			}
			used[r.Path] = true
			s.app.GET(r.Path, h, s.guardMiddleware(st, r))

			if post, ok := handlers[http.MethodPost+" "+r.Path]; ok {
				used[http.MethodPost+" "+r.Path] = true
				s.app.POST(r.Path, post, s.guardMiddleware(st, r))
			}
		}
	}

	var unknown []string
	for key := range handlers {
		if !used[key] {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return errors.Errorf("handlers for routes missing from the route table: %s", strings.Join(unknown, ", "))
	}
	return nil
}

func (s *server) restoreWait() time.Duration {
	if w := s.conf.Server.RestoreWait; w > 0 {
		return w
	}
	return 2 * time.Second
}

// Start blocks serving requests until Stop is called.
func (s *server) Start() {
	if err := s.app.Start(s.opts.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.app.Logger.Fatal(err)
	}
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}
