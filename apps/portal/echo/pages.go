package echoportal

import (
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/nav"
	"github.com/trezcool/masomo-portal/core/user"
	"github.com/trezcool/masomo-portal/services/gateway"
)

const msgBackendFailed = "The server could not complete the request."

type (
	pages struct {
		menu   nav.Table
		routes nav.RouteTable
	}

	fetchList func(ctx echo.Context, api *gateway.Client, usr user.User) ([]gateway.Record, error)
)

func (p *pages) handlers() map[string]echo.HandlerFunc {
	return map[string]echo.HandlerFunc{
		"/admin/dashboard":   p.dashboard,
		"/teacher/dashboard": p.dashboard,
		"/student/dashboard": p.dashboard,

		// super-admin
		"/admin/campuses": p.list(campuses, "No campuses yet.", "/admin/campuses/",
			link{Label: "Add Campus", Path: "/admin/campuses/new"}),
		"/admin/campuses/new":           p.newCampus,
		"POST /admin/campuses/new":      p.createCampus,
		"/admin/campuses/:id":           p.campus,
		"POST /admin/campuses/:id":      p.deleteCampus,
		"/admin/campuses/:id/edit":      p.editCampus,
		"POST /admin/campuses/:id/edit": p.updateCampus,
		"/admin/users":                  p.list(usersByQuery, "No users found.", ""),

		// campus-admin
		"/admin/teachers": p.list(usersWithRole(user.Teacher), "No teachers yet.", ""),
		"/admin/students": p.list(usersWithRole(user.Student), "No students yet.", ""),
		"/admin/classes":  p.list(classes, "No classes yet.", "/admin/classes/",
			link{Label: "Add Class", Path: "/admin/classes/new"}),
		"/admin/classes/new":      p.newClass,
		"POST /admin/classes/new": p.createClass,
		"/admin/classes/:id":      p.class,
		"/admin/subjects":         p.list(subjects, "No subjects yet.", ""),

		// teacher
		"/teacher/attendance":            p.list(attendance, "No attendance records.", ""),
		"/teacher/exams":                 p.exams,
		"/teacher/exams/:id/scores":      p.examScores,
		"POST /teacher/exams/:id/scores": p.addScore,
		"/teacher/marks":                 p.list(marks, "No marks recorded.", ""),

		// student
		"/student/my-attendance":      p.list(attendance, "No attendance records.", ""),
		"/student/my-marksheets":      p.list(marksheets, "No marksheets published yet.", ""),
		"/student/ai-recommendations": p.list(recommendations, "No recommendations yet.", ""),
	}
}

// render renders a shell page titled after the matched route.
func (p *pages) render(ctx echo.Context, code int, name string, v view) error {
	sess, err := contextSession(ctx)
	if err != nil {
		return err
	}
	if v.Title == "" {
		if _, r, ok := p.routes.Match(ctx.Request().URL.Path); ok {
			v.Title = r.Title
		}
	}
	v.Shell = newShell(p.menu, sess.User, ctx.Request().URL)
	v.CSRF = csrfToken(ctx)
	return ctx.Render(code, name, v)
}

// failure turns a failed backend call into an inline alert. Expired sessions and unexpected errors are returned.
func failure(err error) (string, error) {
	if errors.Is(err, core.ErrAuthExpired) {
		return "", err
	}
	if msg := core.ErrorMessage(err); msg != "" {
		return msg, nil
	}
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) {
		return msgBackendFailed, nil
	}
	return "", err
}

func (p *pages) dashboard(ctx echo.Context) error {
	sess, err := contextSession(ctx)
	if err != nil {
		return err
	}
	v := view{}
	data := recordView{Intro: "Welcome back, " + sess.User.Name + "."}

	stats, err := contextAPI(ctx).DashboardStats(ctx.Request().Context(), sess.User.Role)
	if err != nil {
		if v.Alert, err = failure(err); err != nil {
			return errors.Wrap(err, "loading dashboard stats")
		}
	}
	data.Fields = fields(stats)
	v.Data = data
	return p.render(ctx, http.StatusOK, "dashboard", v)
}

// list renders the records fetch returns as a table. Rows link to detailPrefix+id when detailPrefix is set.
func (p *pages) list(fetch fetchList, empty, detailPrefix string, actions ...link) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		sess, err := contextSession(ctx)
		if err != nil {
			return err
		}
		v := view{}
		records, err := fetch(ctx, contextAPI(ctx), sess.User)
		if err != nil {
			if v.Alert, err = failure(err); err != nil {
				return errors.Wrap(err, "listing records")
			}
		}
		v.Data = table(records, empty, detailPrefix, actions)
		return p.render(ctx, http.StatusOK, "table", v)
	}
}

// Campuses

func (p *pages) campus(ctx echo.Context) error {
	id := ctx.Param("id")
	rec, err := contextAPI(ctx).Campus(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "loading campus")
	}
	return p.render(ctx, http.StatusOK, "record", view{
		Title: orDefault(rec.String("name"), "Campus Details"),
		Data: recordView{
			Fields:  fields(rec),
			Actions: []link{{Label: "Edit", Path: "/admin/campuses/" + id + "/edit"}, {Label: "Back", Path: "/admin/campuses"}},
			Delete:  "/admin/campuses/" + id,
		},
	})
}

func (p *pages) newCampus(ctx echo.Context) error {
	return p.render(ctx, http.StatusOK, "form", view{Data: campusForm("/admin/campuses/new", "Create", CampusForm{}, nil)})
}

func (p *pages) createCampus(ctx echo.Context) error {
	var form CampusForm
	err := bindForm(ctx, &form)
	if err == nil {
		err = form.Validate()
	}
	if err == nil {
		err = contextAPI(ctx).CreateCampus(ctx.Request().Context(), form)
	}
	if err != nil {
		return p.formFailed(ctx, err, campusForm("/admin/campuses/new", "Create", form, nil))
	}
	return ctx.Redirect(http.StatusSeeOther, "/admin/campuses")
}

func (p *pages) editCampus(ctx echo.Context) error {
	id := ctx.Param("id")
	rec, err := contextAPI(ctx).Campus(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "loading campus")
	}
	form := CampusForm{Name: rec.String("name"), Address: rec.String("address"), Phone: rec.String("phone")}
	return p.render(ctx, http.StatusOK, "form", view{Data: campusForm("/admin/campuses/"+id+"/edit", "Save", form, nil)})
}

func (p *pages) updateCampus(ctx echo.Context) error {
	id := ctx.Param("id")
	action := "/admin/campuses/" + id + "/edit"

	var form CampusForm
	err := bindForm(ctx, &form)
	if err == nil {
		err = form.Validate()
	}
	if err == nil {
		err = contextAPI(ctx).UpdateCampus(ctx.Request().Context(), id, form)
	}
	if err != nil {
		return p.formFailed(ctx, err, campusForm(action, "Save", form, nil))
	}
	return ctx.Redirect(http.StatusSeeOther, "/admin/campuses/"+id)
}

func (p *pages) deleteCampus(ctx echo.Context) error {
	if err := contextAPI(ctx).DeleteCampus(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting campus")
	}
	return ctx.Redirect(http.StatusSeeOther, "/admin/campuses")
}

func campusForm(action, submit string, form CampusForm, errs map[string]string) formView {
	return formView{
		Action: action,
		Submit: submit,
		Cancel: "/admin/campuses",
		Fields: []formField{
			{Name: "name", Label: "Name", Type: "text", Value: form.Name, Error: errs["name"], Required: true},
			{Name: "address", Label: "Address", Type: "text", Value: form.Address, Error: errs["address"]},
			{Name: "phone", Label: "Phone", Type: "tel", Value: form.Phone, Error: errs["phone"]},
		},
	}
}

// Classes

func (p *pages) class(ctx echo.Context) error {
	rec, err := contextAPI(ctx).Class(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "loading class")
	}
	return p.render(ctx, http.StatusOK, "record", view{
		Title: orDefault(rec.String("name"), "Class Details"),
		Data:  recordView{Fields: fields(rec), Actions: []link{{Label: "Back", Path: "/admin/classes"}}},
	})
}

func (p *pages) newClass(ctx echo.Context) error {
	return p.render(ctx, http.StatusOK, "form", view{Data: classForm(ClassForm{}, nil)})
}

func (p *pages) createClass(ctx echo.Context) error {
	sess, err := contextSession(ctx)
	if err != nil {
		return err
	}
	var form ClassForm
	err = bindForm(ctx, &form)
	if err == nil {
		err = form.Validate()
	}
	if err == nil {
		form.Campus = sess.User.Campus
		err = contextAPI(ctx).CreateClass(ctx.Request().Context(), form)
	}
	if err != nil {
		return p.formFailed(ctx, err, classForm(form, nil))
	}
	return ctx.Redirect(http.StatusSeeOther, "/admin/classes")
}

func classForm(form ClassForm, errs map[string]string) formView {
	return formView{
		Action: "/admin/classes/new",
		Submit: "Create",
		Cancel: "/admin/classes",
		Fields: []formField{
			{Name: "name", Label: "Name", Type: "text", Value: form.Name, Error: errs["name"], Required: true},
			{Name: "section", Label: "Section", Type: "text", Value: form.Section, Error: errs["section"]},
		},
	}
}

// Assessment

func (p *pages) exams(ctx echo.Context) error {
	v := view{}
	records, err := contextAPI(ctx).Exams(ctx.Request().Context())
	if err != nil {
		if v.Alert, err = failure(err); err != nil {
			return errors.Wrap(err, "listing exams")
		}
	}
	data := table(records, "No exams scheduled.", "", nil)
	for i, rec := range records {
		if id := rec.ID(); id != "" {
			data.Rows[i].Link = "/teacher/exams/" + id + "/scores"
		}
	}
	v.Data = data
	return p.render(ctx, http.StatusOK, "table", v)
}

func (p *pages) examScores(ctx echo.Context) error {
	return p.renderScores(ctx, http.StatusOK, ScoreForm{}, nil, "")
}

func (p *pages) addScore(ctx echo.Context) error {
	form := ScoreForm{}
	err := bindForm(ctx, &form)
	if err == nil {
		err = form.Validate()
	}
	if err == nil {
		form.Exam = ctx.Param("id")
		err = contextAPI(ctx).AddScore(ctx.Request().Context(), form)
	}
	if err != nil {
		errs, alert, err := formErrors(err)
		if err != nil {
			if alert, err = failure(err); err != nil {
				return errors.Wrap(err, "adding score")
			}
		}
		return p.renderScores(ctx, http.StatusBadRequest, form, errs, alert)
	}
	return ctx.Redirect(http.StatusSeeOther, "/teacher/exams/"+ctx.Param("id")+"/scores")
}

// renderScores renders the scores of an exam followed by the score entry form.
func (p *pages) renderScores(ctx echo.Context, code int, form ScoreForm, errs map[string]string, alert string) error {
	id := ctx.Param("id")
	records, err := contextAPI(ctx).ExamScores(ctx.Request().Context(), id)
	if err != nil {
		msg, err := failure(err)
		if err != nil {
			return errors.Wrap(err, "listing exam scores")
		}
		if alert == "" {
			alert = msg
		}
	}

	score := ""
	if form.Student != "" {
		score = strconv.FormatFloat(form.Score, 'f', -1, 64)
	}
	return p.render(ctx, code, "scores", view{
		Alert: alert,
		Data: scoresView{
			formView: formView{
				Action: "/teacher/exams/" + id + "/scores",
				Submit: "Add Score",
				Cancel: "/teacher/exams",
				Fields: []formField{
					{Name: "studentId", Label: "Student", Type: "text", Value: form.Student, Error: errs["studentId"], Required: true},
					{Name: "score", Label: "Score", Type: "number", Value: score, Error: errs["score"], Required: true},
				},
			},
			Scores: table(records, "No scores recorded yet.", "", nil),
		},
	})
}

type scoresView struct {
	formView
	Scores tableView
}

// formFailed re-renders a form with its errors inline. Backend rejections become the form's alert.
func (p *pages) formFailed(ctx echo.Context, err error, form formView) error {
	errs, alert, err := formErrors(err)
	if err != nil {
		if alert, err = failure(err); err != nil {
			return errors.Wrap(err, "submitting form")
		}
	}
	for i := range form.Fields {
		form.Fields[i].Error = errs[form.Fields[i].Name]
	}
	return p.render(ctx, http.StatusBadRequest, "form", view{Alert: alert, Data: form})
}

// Fetchers

func campuses(ctx echo.Context, api *gateway.Client, _ user.User) ([]gateway.Record, error) {
	return api.Campuses(ctx.Request().Context())
}

// classes honours the page query param.
func classes(ctx echo.Context, api *gateway.Client, _ user.User) ([]gateway.Record, error) {
	page, _ := strconv.Atoi(ctx.QueryParam("page"))
	return api.Classes(ctx.Request().Context(), gateway.Page{Number: page})
}

func subjects(ctx echo.Context, api *gateway.Client, _ user.User) ([]gateway.Record, error) {
	return api.Subjects(ctx.Request().Context())
}

func attendance(ctx echo.Context, api *gateway.Client, _ user.User) ([]gateway.Record, error) {
	return api.Attendance(ctx.Request().Context())
}

func marks(ctx echo.Context, api *gateway.Client, _ user.User) ([]gateway.Record, error) {
	return api.Marks(ctx.Request().Context())
}

func marksheets(ctx echo.Context, api *gateway.Client, _ user.User) ([]gateway.Record, error) {
	return api.Marksheets(ctx.Request().Context())
}

func recommendations(ctx echo.Context, api *gateway.Client, usr user.User) ([]gateway.Record, error) {
	return api.Recommendations(ctx.Request().Context(), usr.ID)
}

func usersWithRole(role user.Role) fetchList {
	return func(ctx echo.Context, api *gateway.Client, _ user.User) ([]gateway.Record, error) {
		return api.Users(ctx.Request().Context(), role)
	}
}

// usersByQuery lists every user; a known role in the role query param narrows the list.
func usersByQuery(ctx echo.Context, api *gateway.Client, _ user.User) ([]gateway.Record, error) {
	role, _ := user.ParseRole(ctx.QueryParam("role"))
	return api.Users(ctx.Request().Context(), role)
}

// View helpers

func table(records []gateway.Record, empty, detailPrefix string, actions []link) tableView {
	cols := gateway.Columns(records)
	t := tableView{Empty: empty, Actions: actions, Rows: make([]tableRow, 0, len(records))}
	for _, c := range cols {
		t.Columns = append(t.Columns, humanize(c))
	}
	for _, rec := range records {
		row := tableRow{Cells: make([]string, 0, len(cols))}
		for _, c := range cols {
			row.Cells = append(row.Cells, rec.String(c))
		}
		if detailPrefix != "" && rec.ID() != "" {
			row.Link = detailPrefix + rec.ID()
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func fields(rec gateway.Record) []field {
	if rec == nil {
		return nil
	}
	cols := gateway.Columns([]gateway.Record{rec})
	out := make([]field, 0, len(cols))
	for _, c := range cols {
		out = append(out, field{Label: humanize(c), Value: rec.String(c)})
	}
	return out
}

// humanize turns a backend field name such as "createdAt" or "total_students" into "Created At" / "Total Students".
func humanize(name string) string {
	var b strings.Builder
	prev := ' '
	for i, r := range name {
		switch {
		case r == '_' || r == '-':
			r = ' '
		case i > 0 && unicode.IsUpper(r) && unicode.IsLower(prev):
			b.WriteRune(' ')
		}
		if prev == ' ' {
			r = unicode.ToUpper(r)
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
