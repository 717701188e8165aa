package echoportal

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/nav"
	"github.com/trezcool/masomo-portal/core/user"
	"github.com/trezcool/masomo-portal/services/gateway"
)

func TestNewServer_RouteHandlerDrift(t *testing.T) {
	b := newBackend(t)

	_, err := NewServer(&Options{Gateway: b.client(), Routes: nav.DefaultRoutes[:2]})
	require.Error(t, err, "student pages have handlers but no routes")
	assert.Contains(t, err.Error(), "/student/dashboard")

	routes := append(nav.RouteTable{}, nav.DefaultRoutes...)
	teacher := routes[1]
	teacher.Routes = append(append([]nav.Route{}, teacher.Routes...), nav.Route{Path: "/teacher/reports", Title: "Reports"})
	routes[1] = teacher
	_, err = NewServer(&Options{Gateway: b.client(), Routes: routes})
	require.Error(t, err)
	assert.ErrorIs(t, err, errMissingHandler)
}

func TestGuards(t *testing.T) {
	app := newTestServer(t, newBackend(t))

	runHTTPTests(t, app, []httpTest{
		{name: "home anonymous", path: "/", wantCode: http.StatusSeeOther, wantLocation: "/login"},
		{name: "home super-admin", path: "/", token: superToken, wantCode: http.StatusSeeOther, wantLocation: "/admin/dashboard"},
		{name: "home student", path: "/", token: studentToken, wantCode: http.StatusSeeOther, wantLocation: "/student/dashboard"},
		{
			name: "anonymous remembers requested route", path: "/admin/campuses?city=Goma",
			wantCode: http.StatusSeeOther, wantLocation: "/login?next=%2Fadmin%2Fcampuses%3Fcity%3DGoma",
		},
		{
			name: "foreign subtree goes home", path: "/admin/campuses", token: teacherToken,
			wantCode: http.StatusSeeOther, wantLocation: "/teacher/dashboard",
		},
		{
			name: "narrowed route goes home", path: "/admin/teachers", token: superToken,
			wantCode: http.StatusSeeOther, wantLocation: "/admin/dashboard",
		},
		{
			name: "super-admin only route", path: "/admin/campuses", token: campusToken,
			wantCode: http.StatusSeeOther, wantLocation: "/admin/dashboard",
		},
		{name: "bare prefix", path: "/teacher", token: teacherToken, wantCode: http.StatusSeeOther, wantLocation: "/teacher/dashboard"},
		{name: "bare prefix foreign", path: "/student", token: teacherToken, wantCode: http.StatusSeeOther, wantLocation: "/teacher/dashboard"},
		{name: "trailing slash", path: "/teacher/dashboard/", token: teacherToken, wantCode: http.StatusOK, wantBody: []string{"Tim Teacher"}},
		{
			name: "stale token", path: "/student/dashboard", token: staleToken,
			wantCode: http.StatusSeeOther, wantLocation: "/login?next=%2Fstudent%2Fdashboard",
		},
		{name: "unknown route", path: "/admin/nope", token: superToken, wantCode: http.StatusNotFound},
		{name: "not found", path: "/library", wantCode: http.StatusNotFound, wantBody: []string{"404"}},
	})
}

func TestGuards_StaleTokenDropsCookie(t *testing.T) {
	app := newTestServer(t, newBackend(t))

	req, rec := newAuthRequest(http.MethodGet, "/admin/dashboard", staleToken, nil)
	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	cookie := tokenCookie(rec)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.True(t, cookie.MaxAge < 0)
}

func TestGuards_PendingRestore(t *testing.T) {
	b := newBackend(t)
	app, cache := newTestServerWithCache(t, b)

	wait := core.Conf.Server.RestoreWait
	core.Conf.Server.RestoreWait = 20 * time.Millisecond
	defer func() { core.Conf.Server.RestoreWait = wait }()

	req, rec := newAuthRequest(http.MethodGet, "/student/dashboard", slowToken, nil)
	app.ServeHTTP(rec, req)
	checkResponse(t, httpTest{
		wantCode:  http.StatusOK,
		wantBody:  []string{`http-equiv="refresh"`, "Loading"},
		notInBody: []string{"Slow Student"},
	}, rec)
	assert.Nil(t, tokenCookie(rec), "an unresolved session must not touch the cookie")

	// a second poll joins the confirmation already in flight
	req, rec = newAuthRequest(http.MethodGet, "/student/dashboard", slowToken, nil)
	app.ServeHTTP(rec, req)
	assert.Contains(t, rec.Body.String(), "Loading")

	close(b.release)
	assert.Eventually(t, func() bool {
		_, err := cache.Get(context.Background(), slowToken)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond, "the confirmation fills the profile cache")

	req, rec = newAuthRequest(http.MethodGet, "/student/dashboard", slowToken, nil)
	app.ServeHTTP(rec, req)
	checkResponse(t, httpTest{wantCode: http.StatusOK, wantBody: []string{"Slow Student"}, notInBody: []string{"Loading"}}, rec)
	assert.EqualValues(t, 1, atomic.LoadInt32(&b.meCalls))
}

func TestGuards_PendingRestore_Submit(t *testing.T) {
	b := newBackend(t)
	app := newTestServer(t, b)

	wait := core.Conf.Server.RestoreWait
	core.Conf.Server.RestoreWait = 20 * time.Millisecond
	defer func() { core.Conf.Server.RestoreWait = wait }()

	req, rec := newAuthRequest(http.MethodPost, "/teacher/exams/e1/scores", slowToken, url.Values{"studentId": {"u4"}, "score": {"90"}})
	app.ServeHTTP(rec, req)
	checkResponse(t, httpTest{
		wantCode:  http.StatusServiceUnavailable,
		wantBody:  []string{"Please submit again in a moment."},
		notInBody: []string{`http-equiv="refresh"`},
	}, rec)
	assert.Nil(t, tokenCookie(rec))
}

func TestGuards_PendingRestore_Login(t *testing.T) {
	b := newBackend(t)
	app := newTestServer(t, b)

	wait := core.Conf.Server.RestoreWait
	core.Conf.Server.RestoreWait = 20 * time.Millisecond
	defer func() { core.Conf.Server.RestoreWait = wait }()

	form := url.Values{"email": {"teacher@school.test"}, "password": {"correct"}}
	req, rec := newAuthRequest(http.MethodPost, "/login", slowToken, form)
	app.ServeHTTP(rec, req)

	checkResponse(t, httpTest{wantCode: http.StatusSeeOther, wantLocation: "/teacher/dashboard"}, rec)
	cookie := tokenCookie(rec)
	require.NotNil(t, cookie, "signing in over an unconfirmed session sets the new token")
	assert.Equal(t, teacherToken, cookie.Value)

	// the stale confirmation resolving later must not undo the sign-in
	close(b.release)
	time.Sleep(50 * time.Millisecond)
	req, rec = newAuthRequest(http.MethodGet, "/teacher/dashboard", cookie.Value, nil)
	app.ServeHTTP(rec, req)
	checkResponse(t, httpTest{wantCode: http.StatusOK, wantBody: []string{"Tim Teacher"}}, rec)
}

func TestGuards_PendingRestore_Logout(t *testing.T) {
	b := newBackend(t)
	app := newTestServer(t, b)

	wait := core.Conf.Server.RestoreWait
	core.Conf.Server.RestoreWait = 20 * time.Millisecond
	defer func() { core.Conf.Server.RestoreWait = wait }()

	req, rec := newAuthRequest(http.MethodPost, "/logout", slowToken, nil)
	app.ServeHTTP(rec, req)

	checkResponse(t, httpTest{wantCode: http.StatusSeeOther, wantLocation: "/login"}, rec)
	cookie := tokenCookie(rec)
	require.NotNil(t, cookie, "signing out of an unconfirmed session drops the cookie")
	assert.Empty(t, cookie.Value)
	assert.True(t, cookie.MaxAge < 0)
}

func TestGuards_ConfirmedProfileIsCached(t *testing.T) {
	b := newBackend(t)
	app := newTestServer(t, b)

	for i := 0; i < 3; i++ {
		req, rec := newAuthRequest(http.MethodGet, "/teacher/dashboard", teacherToken, nil)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&b.meCalls))
}

func TestLogin(t *testing.T) {
	app := newTestServer(t, newBackend(t))
	form := func(email, pwd, next string) url.Values {
		v := url.Values{"email": {email}, "password": {pwd}}
		if next != "" {
			v.Set("next", next)
		}
		return v
	}

	runHTTPTests(t, app, []httpTest{
		{name: "login page", path: "/login", wantCode: http.StatusOK, wantBody: []string{"Sign in", `name="email"`}},
		{
			name: "login page keeps next", path: "/login?next=%2Fadmin%2Fcampuses",
			wantCode: http.StatusOK, wantBody: []string{`name="next" value="/admin/campuses"`},
		},
		{
			name: "login page drops unsafe next", path: "/login?next=https%3A%2F%2Fevil.test",
			wantCode: http.StatusOK, notInBody: []string{"evil.test"},
		},
		{
			name: "authenticated login page goes home", path: "/login", token: teacherToken,
			wantCode: http.StatusSeeOther, wantLocation: "/teacher/dashboard",
		},
		{
			name: "authenticated login page honours next", path: "/login?next=%2Fteacher%2Fmarks", token: teacherToken,
			wantCode: http.StatusSeeOther, wantLocation: "/teacher/marks",
		},
		{
			name: "required fields", method: http.MethodPost, path: "/login", form: form("", "", ""),
			wantCode: http.StatusBadRequest, wantBody: []string{"this field is required"},
		},
		{
			name: "invalid email", method: http.MethodPost, path: "/login", form: form("nope", "x", ""),
			wantCode: http.StatusBadRequest, wantBody: []string{"enter a valid email address", `value="nope"`},
		},
		{
			name: "wrong password keeps email", method: http.MethodPost, path: "/login", form: form("Admin@School.test ", "wrong", ""),
			wantCode: http.StatusUnauthorized, wantBody: []string{"Invalid email or password", `value="admin@school.test"`},
			notInBody: []string{`value="wrong"`},
		},
		{
			name: "success goes home", method: http.MethodPost, path: "/login", form: form("admin@school.test", "correct", ""),
			wantCode: http.StatusSeeOther, wantLocation: "/admin/dashboard",
		},
		{
			name: "success returns to next", method: http.MethodPost, path: "/login",
			form:     form("admin@school.test", "correct", "/admin/campuses/c1"),
			wantCode: http.StatusSeeOther, wantLocation: "/admin/campuses/c1",
		},
		{
			name: "next outside role goes home", method: http.MethodPost, path: "/login",
			form:     form("teacher@school.test", "correct", "/admin/campuses"),
			wantCode: http.StatusSeeOther, wantLocation: "/teacher/dashboard",
		},
		{
			name: "unsafe next goes home", method: http.MethodPost, path: "/login",
			form:     form("teacher@school.test", "correct", "//evil.test/teacher/marks"),
			wantCode: http.StatusSeeOther, wantLocation: "/teacher/dashboard",
		},
	})
}

func TestLogin_SetsCookie(t *testing.T) {
	app := newTestServer(t, newBackend(t))

	req, rec := newRequest(http.MethodPost, "/login", url.Values{"email": {"teacher@school.test"}, "password": {"correct"}})
	app.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	cookie := tokenCookie(rec)
	require.NotNil(t, cookie)
	assert.Equal(t, teacherToken, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)
}

func TestLogin_NetworkError(t *testing.T) {
	api := gateway.New("http://127.0.0.1:1/api", 200*time.Millisecond, nil)
	app, err := NewServer(&Options{DisableReqLogs: true, DisableCSRF: true, Gateway: api})
	require.NoError(t, err)

	req, rec := newRequest(http.MethodPost, "/login", url.Values{"email": {"admin@school.test"}, "password": {"correct"}})
	app.ServeHTTP(rec, req)

	checkResponse(t, httpTest{
		wantCode: http.StatusBadGateway,
		wantBody: []string{"Could not reach the server. Please try again.", `value="admin@school.test"`},
	}, rec)
	assert.Nil(t, tokenCookie(rec))
}

func TestLogin_CSRF(t *testing.T) {
	b := newBackend(t)
	app, err := NewServer(&Options{DisableReqLogs: true, Gateway: b.client()})
	require.NoError(t, err)

	req, rec := newRequest(http.MethodPost, "/login", url.Values{"email": {"admin@school.test"}, "password": {"correct"}})
	app.ServeHTTP(rec, req)
	assert.Contains(t, []int{http.StatusBadRequest, http.StatusForbidden}, rec.Code)
	assert.Nil(t, tokenCookie(rec))
}

func TestLogin_CSRFRoundTrip(t *testing.T) {
	b := newBackend(t)
	app, err := NewServer(&Options{DisableReqLogs: true, Gateway: b.client()})
	require.NoError(t, err)

	req, rec := newRequest(http.MethodGet, "/login", nil)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	match := regexp.MustCompile(`name="` + csrfField + `" value="([^"]+)"`).FindStringSubmatch(rec.Body.String())
	require.Len(t, match, 2, "the login form carries the CSRF token")
	var csrf *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == csrfCookie {
			csrf = c
		}
	}
	require.NotNil(t, csrf)
	assert.Equal(t, csrf.Value, match[1])

	form := url.Values{"email": {"admin@school.test"}, "password": {"correct"}, csrfField: {match[1]}}
	req, rec = newRequest(http.MethodPost, "/login", form)
	req.AddCookie(csrf)
	app.ServeHTTP(rec, req)
	checkResponse(t, httpTest{wantCode: http.StatusSeeOther, wantLocation: "/admin/dashboard"}, rec)
	assert.NotNil(t, tokenCookie(rec))
}

func TestLogout(t *testing.T) {
	b := newBackend(t)
	app := newTestServer(t, b)

	runHTTPTests(t, app, []httpTest{
		{name: "authenticated", method: http.MethodPost, path: "/logout", token: superToken, wantCode: http.StatusSeeOther, wantLocation: "/login"},
		{name: "anonymous is a no-op", method: http.MethodPost, path: "/logout", wantCode: http.StatusSeeOther, wantLocation: "/login"},
	})

	req, rec := newAuthRequest(http.MethodPost, "/logout", superToken, nil)
	app.ServeHTTP(rec, req)
	cookie := tokenCookie(rec)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.True(t, cookie.MaxAge < 0)
}

func TestForgotPassword(t *testing.T) {
	app := newTestServer(t, newBackend(t))

	runHTTPTests(t, app, []httpTest{
		{name: "page", path: "/forgot-password", wantCode: http.StatusOK, wantBody: []string{"Reset your password"}},
		{
			name: "invalid email", method: http.MethodPost, path: "/forgot-password", form: url.Values{"email": {"nope"}},
			wantCode: http.StatusBadRequest, wantBody: []string{"enter a valid email address"},
		},
		{
			name: "sent", method: http.MethodPost, path: "/forgot-password", form: url.Values{"email": {"someone@school.test"}},
			wantCode: http.StatusOK, wantBody: []string{"an email will arrive in your inbox shortly"},
		},
	})
}

func TestDestination(t *testing.T) {
	s := &server{opts: &Options{Routes: nav.DefaultRoutes}}

	tests := []struct {
		name string
		role string
		next string
		want string
	}{
		{name: "no next", role: "student", next: "", want: "/student/dashboard"},
		{name: "permitted", role: "student", next: "/student/my-marksheets", want: "/student/my-marksheets"},
		{name: "permitted with query", role: "campus-admin", next: "/admin/classes?page=2", want: "/admin/classes?page=2"},
		{name: "narrowed", role: "campus-admin", next: "/admin/campuses", want: "/admin/dashboard"},
		{name: "unknown path", role: "teacher", next: "/teacher/nope", want: "/teacher/dashboard"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			role, err := user.ParseRole(tc.role)
			require.NoError(t, err)
			assert.Equal(t, tc.want, s.destination(role, tc.next))
		})
	}
}
