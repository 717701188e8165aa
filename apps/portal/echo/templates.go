package echoportal

import (
	"embed"
	"html/template"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

// form field and cookie carrying the CSRF token
const (
	csrfField  = "_csrf"
	csrfCookie = "_csrf"
)

var templateFuncs = template.FuncMap{
	"csrfField": func() string { return csrfField },
}

// page templates per layout
var layouts = map[string][]string{
	"shell":  {"dashboard", "table", "record", "form", "scores"},
	"public": {"login", "forgot", "loading", "error"},
}

type renderer struct {
	pages map[string]*template.Template
}

var _ echo.Renderer = (*renderer)(nil)

func newRenderer() (*renderer, error) {
	r := &renderer{pages: make(map[string]*template.Template)}
	for layout, pages := range layouts {
		for _, page := range pages {
			t, err := template.New(layout).Funcs(templateFuncs).ParseFS(templateFS, "templates/"+layout+".gohtml", "templates/"+page+".gohtml")
			if err != nil {
				return nil, errors.Wrapf(err, "parsing %s/%s", layout, page)
			}
			r.pages[page] = t
		}
	}
	return r, nil
}

func (r *renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	t, ok := r.pages[name]
	if !ok {
		return errors.Errorf("unknown template %q", name)
	}
	return t.ExecuteTemplate(w, "layout", data)
}

// view is the data every template renders.
type view struct {
	Title  string
	Shell  *shell // nil on public pages
	Alert  string
	Notice string
	CSRF   string
	Code   int
	Detail string // debug only
	Data   interface{}
}

type (
	link struct {
		Label string
		Path  string
	}

	tableView struct {
		Columns []string
		Rows    []tableRow
		Empty   string
		Actions []link
	}

	tableRow struct {
		Link  string
		Cells []string
	}

	field struct {
		Label string
		Value string
	}

	recordView struct {
		Intro   string
		Fields  []field
		Actions []link
		Delete  string // form action of the delete button, if any
	}

	formField struct {
		Name     string
		Label    string
		Type     string
		Value    string
		Error    string
		Required bool
	}

	formView struct {
		Action string
		Fields []formField
		Submit string
		Cancel string
	}
)

const msgSessionPending = "Your session is still being confirmed. Please submit again in a moment."

// renderLoading renders the placeholder shown while the session is still being confirmed.
// It reloads the same URL until the session resolves. A reload would drop a submitted form,
// so other methods get a 503 asking to retry instead.
func renderLoading(ctx echo.Context) error {
	if m := ctx.Request().Method; m != http.MethodGet && m != http.MethodHead {
		return echo.NewHTTPError(http.StatusServiceUnavailable, msgSessionPending)
	}
	ctx.Response().Header().Set("Cache-Control", "no-store")
	return ctx.Render(http.StatusOK, "loading", view{Title: "Loading", Data: requested(ctx)})
}

func csrfToken(ctx echo.Context) string {
	token, _ := ctx.Get("csrf").(string)
	return token
}
