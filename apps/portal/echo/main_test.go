package echoportal

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/services/gateway"
	"github.com/trezcool/masomo-portal/storage/profile"
)

const (
	superToken   = "tok-super"
	campusToken  = "tok-campus"
	teacherToken = "tok-teacher"
	studentToken = "tok-student"
	slowToken    = "tok-slow"
	staleToken   = "tok-stale"
)

var backendUsers = map[string]string{
	superToken:   `{"id":"u1","name":"Ada Admin","email":"admin@school.test","role":"super-admin"}`,
	campusToken:  `{"id":"u2","name":"Cam Pus","email":"campus@school.test","role":"campus_admin","campus":"c1"}`,
	teacherToken: `{"id":"u3","name":"Tim Teacher","email":"teacher@school.test","role":"Teacher","campus":"c1"}`,
	studentToken: `{"id":"u4","name":"Sue Student","email":"student@school.test","role":"student","campus":"c1"}`,
	slowToken:    `{"id":"u5","name":"Slow Student","role":"student"}`,
}

var backendLogins = map[string]string{
	"admin@school.test":   superToken,
	"teacher@school.test": teacherToken,
}

type backend struct {
	*httptest.Server
	meCalls int32
	release chan struct{} // gates /auth/me for slowToken
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{release: make(chan struct{})}
	write := func(w http.ResponseWriter, code int, body string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	}
	authed := func(r *http.Request) bool {
		tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		_, ok := backendUsers[tok]
		return ok
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		tok, ok := backendLogins[body["email"]]
		if !ok || body["password"] != "correct" {
			write(w, http.StatusUnauthorized, `{"message":"Invalid email or password"}`)
			return
		}
		write(w, http.StatusOK, `{"user":`+backendUsers[tok]+`,"token":"`+tok+`"}`)
	})
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.meCalls, 1)
		tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if tok == slowToken {
			<-b.release
		}
		usr, ok := backendUsers[tok]
		if !ok {
			write(w, http.StatusUnauthorized, `{"message":"jwt expired"}`)
			return
		}
		write(w, http.StatusOK, `{"user":`+usr+`}`)
	})
	mux.HandleFunc("/api/auth/forgot-password", func(w http.ResponseWriter, r *http.Request) {
		write(w, http.StatusOK, `{}`)
	})
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			write(w, http.StatusUnauthorized, `{"message":"Unauthorized"}`)
			return
		}
		path := strings.TrimPrefix(r.URL.Path, "/api")
		switch {
		case strings.HasPrefix(path, "/dashboard/"):
			write(w, http.StatusOK, `{"totalCampuses":3,"total_users":42}`)
		case path == "/campuses" && r.Method == http.MethodGet:
			write(w, http.StatusOK, `{"data":[{"_id":"c1","name":"North Campus","city":"Goma"}]}`)
		case path == "/campuses" && r.Method == http.MethodPost:
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["name"] == "Dup" {
				write(w, http.StatusConflict, `{"message":"Campus already exists"}`)
				return
			}
			write(w, http.StatusCreated, `{"_id":"c2"}`)
		case path == "/campuses/c1" && r.Method == http.MethodGet:
			write(w, http.StatusOK, `{"_id":"c1","name":"North Campus","address":"1 Lake Rd"}`)
		case path == "/campuses/c1" && r.Method == http.MethodPatch:
			w.WriteHeader(http.StatusNoContent)
		case path == "/campuses/c1/delete":
			w.WriteHeader(http.StatusNoContent)
		case path == "/campuses/revoked":
			write(w, http.StatusUnauthorized, `{"message":"jwt expired"}`)
		case path == "/campuses/broken":
			write(w, http.StatusInternalServerError, `{}`)
		case path == "/auth/users":
			role := r.URL.Query().Get("role")
			write(w, http.StatusOK, `[{"id":"u3","name":"Tim Teacher","role":"teacher"},{"id":"u9","name":"`+role+`","role":"x"}]`)
		case path == "/classes":
			write(w, http.StatusOK, `{"items":[{"id":"k1","name":"6A","page":"`+r.URL.Query().Get("page")+`"}]}`)
		case path == "/classes/k1":
			write(w, http.StatusOK, `{"data":{"_id":"k1","name":"6A","section":"Blue"}}`)
		case path == "/exams":
			write(w, http.StatusOK, `[{"_id":"e1","title":"Midterm"},{"title":"Draft"}]`)
		case path == "/score/examScores":
			write(w, http.StatusOK, `[{"_id":"s1","studentId":"u4","score":88}]`)
		case path == "/score/addScore":
			write(w, http.StatusCreated, `{}`)
		default:
			write(w, http.StatusOK, `[]`)
		}
	})

	b.Server = httptest.NewServer(mux)
	t.Cleanup(func() {
		select {
		case <-b.release:
		default:
			close(b.release)
		}
		b.Server.Close()
	})
	return b
}

func (b *backend) client() *gateway.Client {
	return gateway.New(b.URL+"/api", 2*time.Second, nil)
}

func newTestServer(t *testing.T, b *backend) Server {
	t.Helper()
	app, _ := newTestServerWithCache(t, b)
	return app
}

func newTestServerWithCache(t *testing.T, b *backend) (Server, *profile.Memory) {
	t.Helper()
	api := b.client()
	cache := profile.NewMemory(time.Hour)
	app, err := NewServer(&Options{
		DisableReqLogs: true,
		DisableCSRF:    true,
		Gateway:        api,
		Profiles:       cache,
		Verifier:       session.NewVerifier(api, 5*time.Second),
	})
	require.NoError(t, err)
	return app, cache
}

type httpTest struct {
	name         string
	method       string
	path         string
	form         url.Values
	token        string
	wantCode     int
	wantLocation string
	wantBody     []string
	notInBody    []string
}

func newAuthRequest(method, path, token string, form url.Values) (*http.Request, *httptest.ResponseRecorder) {
	if method == "" {
		method = http.MethodGet
	}
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: core.Conf.Session.CookieName, Value: token})
	}
	return req, httptest.NewRecorder()
}

func newRequest(method, path string, form url.Values) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", form)
}

func checkResponse(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantLocation != "" {
		if got := rec.Header().Get("Location"); got != tt.wantLocation {
			t.Errorf("failed! location = %q; wantLocation %q", got, tt.wantLocation)
		}
	}
	body := rec.Body.String()
	for _, want := range tt.wantBody {
		if !strings.Contains(body, want) {
			t.Errorf("failed! body does not contain %q:\n%s", want, body)
		}
	}
	for _, unwanted := range tt.notInBody {
		if strings.Contains(body, unwanted) {
			t.Errorf("failed! body contains %q", unwanted)
		}
	}
}

func runHTTPTests(t *testing.T, app Server, tests []httpTest) {
	t.Helper()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, rec := newAuthRequest(tc.method, tc.path, tc.token, tc.form)
			app.ServeHTTP(rec, req)
			checkResponse(t, tc, rec)
		})
	}
}

// tokenCookie returns the token cookie set by rec, nil if none.
func tokenCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == core.Conf.Session.CookieName {
			return c
		}
	}
	return nil
}
