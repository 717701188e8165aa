package echoportal

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPages(t *testing.T) {
	app := newTestServer(t, newBackend(t))

	runHTTPTests(t, app, []httpTest{
		{
			name: "super-admin dashboard", path: "/admin/dashboard", token: superToken, wantCode: http.StatusOK,
			wantBody: []string{"Welcome back, Ada Admin.", "Total Campuses", "Total Users", "42", "Super Admin"},
		},
		{
			name: "campuses", path: "/admin/campuses", token: superToken, wantCode: http.StatusOK,
			wantBody: []string{"<th>City</th>", "<th>Name</th>", "North Campus", `href="/admin/campuses/c1"`, `href="/admin/campuses/new"`},
		},
		{
			name: "campus detail", path: "/admin/campuses/c1", token: superToken, wantCode: http.StatusOK,
			wantBody: []string{"<title>North Campus | Masomo</title>", "1 Lake Rd", `href="/admin/campuses/c1/edit"`, `action="/admin/campuses/c1"`},
		},
		{
			name: "campus edit form", path: "/admin/campuses/c1/edit", token: superToken, wantCode: http.StatusOK,
			wantBody: []string{`value="North Campus"`, `action="/admin/campuses/c1/edit"`},
		},
		{
			name: "users", path: "/admin/users", token: superToken, wantCode: http.StatusOK,
			wantBody: []string{"Tim Teacher"},
		},
		{
			name: "users filtered by role", path: "/admin/users?role=teacher", token: superToken, wantCode: http.StatusOK,
			wantBody: []string{"<td>teacher</td>"},
		},
		{
			name: "teachers", path: "/admin/teachers", token: campusToken, wantCode: http.StatusOK,
			wantBody: []string{"<td>teacher</td>", "<title>Teachers | Masomo</title>"},
		},
		{
			name: "classes page param", path: "/admin/classes?page=3", token: campusToken, wantCode: http.StatusOK,
			wantBody: []string{"6A", "<td>3</td>", `href="/admin/classes/k1"`},
		},
		{
			name: "exams link to score entry", path: "/teacher/exams", token: teacherToken, wantCode: http.StatusOK,
			wantBody:  []string{"Midterm", `href="/teacher/exams/e1/scores"`, "Draft"},
			notInBody: []string{"/teacher/exams//scores"},
		},
		{
			name: "exam scores", path: "/teacher/exams/e1/scores", token: teacherToken, wantCode: http.StatusOK,
			wantBody: []string{"<th>Student Id</th>", "88", `action="/teacher/exams/e1/scores"`},
		},
		{
			name: "empty list", path: "/student/my-marksheets", token: studentToken, wantCode: http.StatusOK,
			wantBody: []string{"No marksheets published yet."},
		},
		{
			name: "backend failure is inline", path: "/admin/campuses/broken", token: superToken, wantCode: http.StatusInternalServerError,
		},
	})
}

func TestPages_Forms(t *testing.T) {
	app := newTestServer(t, newBackend(t))

	runHTTPTests(t, app, []httpTest{
		{
			name: "campus name required", method: http.MethodPost, path: "/admin/campuses/new", token: superToken,
			form: url.Values{"name": {"  "}}, wantCode: http.StatusBadRequest, wantBody: []string{"this field is required"},
		},
		{
			name: "campus rejected by backend", method: http.MethodPost, path: "/admin/campuses/new", token: superToken,
			form: url.Values{"name": {"Dup"}}, wantCode: http.StatusBadRequest, wantBody: []string{"Campus already exists", `value="Dup"`},
		},
		{
			name: "campus created", method: http.MethodPost, path: "/admin/campuses/new", token: superToken,
			form: url.Values{"name": {"South"}}, wantCode: http.StatusSeeOther, wantLocation: "/admin/campuses",
		},
		{
			name: "campus updated", method: http.MethodPost, path: "/admin/campuses/c1/edit", token: superToken,
			form: url.Values{"name": {"North"}}, wantCode: http.StatusSeeOther, wantLocation: "/admin/campuses/c1",
		},
		{
			name: "campus deleted", method: http.MethodPost, path: "/admin/campuses/c1", token: superToken,
			form: url.Values{}, wantCode: http.StatusSeeOther, wantLocation: "/admin/campuses",
		},
		{
			name: "campus forms are super-admin only", method: http.MethodPost, path: "/admin/campuses/new", token: campusToken,
			form: url.Values{"name": {"South"}}, wantCode: http.StatusSeeOther, wantLocation: "/admin/dashboard",
		},
		{
			name: "class created", method: http.MethodPost, path: "/admin/classes/new", token: campusToken,
			form: url.Values{"name": {"6B"}}, wantCode: http.StatusSeeOther, wantLocation: "/admin/classes",
		},
		{
			name: "score out of range", method: http.MethodPost, path: "/teacher/exams/e1/scores", token: teacherToken,
			form: url.Values{"studentId": {"u4"}, "score": {"120"}}, wantCode: http.StatusBadRequest,
			wantBody: []string{`value="u4"`, `value="120"`},
		},
		{
			name: "score not a number", method: http.MethodPost, path: "/teacher/exams/e1/scores", token: teacherToken,
			form: url.Values{"studentId": {"u4"}, "score": {"lots"}}, wantCode: http.StatusBadRequest,
			wantBody: []string{"invalid form data"},
		},
		{
			name: "score added", method: http.MethodPost, path: "/teacher/exams/e1/scores", token: teacherToken,
			form: url.Values{"studentId": {"u4"}, "score": {"75.5"}}, wantCode: http.StatusSeeOther, wantLocation: "/teacher/exams/e1/scores",
		},
	})
}

func TestPages_AuthExpiredMidSession(t *testing.T) {
	app := newTestServer(t, newBackend(t))

	req, rec := newAuthRequest(http.MethodGet, "/admin/campuses/revoked", superToken, nil)
	app.ServeHTTP(rec, req)

	checkResponse(t, httpTest{
		wantCode:     http.StatusSeeOther,
		wantLocation: "/login?next=%2Fadmin%2Fcampuses%2Frevoked",
	}, rec)
	cookie := tokenCookie(rec)
	if assert.NotNil(t, cookie) {
		assert.Empty(t, cookie.Value)
	}
}

func TestHumanize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "name", want: "Name"},
		{in: "createdAt", want: "Created At"},
		{in: "total_students", want: "Total Students"},
		{in: "student-id", want: "Student Id"},
		{in: "GPA", want: "GPA"},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, humanize(tc.in))
		})
	}
}
