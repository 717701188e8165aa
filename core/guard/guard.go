// Package guard decides what happens when someone navigates to a role-scoped route.
//
// Decisions are not errors: a missing session or a foreign role ends in a silent redirect.
package guard

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/core/user"
)

const (
	LoginPath = "/login"
	NextParam = "next"
)

// ErrUnconfigured is reported for a guarded route that carries no allowed-roles configuration.
var ErrUnconfigured = errors.New("guarded route has no allowed-roles configuration")

// Spec is the allowed-roles configuration of a guarded route or subtree.
// Build it with Allow or AnyAuthenticated; the zero Spec is unconfigured.
type Spec struct {
	Name         string
	AllowedRoles []user.Role
	configured   bool
}

// Allow permits the given roles only.
func Allow(name string, roles ...user.Role) Spec {
	return Spec{Name: name, AllowedRoles: roles, configured: true}
}

// AnyAuthenticated requires a session but no particular role.
func AnyAuthenticated(name string) Spec {
	return Spec{Name: name, configured: true}
}

func (s Spec) Configured() bool { return s.configured }

// Validate reports ErrUnconfigured for the zero Spec and invalid roles otherwise.
func (s Spec) Validate() error {
	if !s.configured {
		return errors.Wrapf(ErrUnconfigured, "guard %q", s.Name)
	}
	for _, r := range s.AllowedRoles {
		if !r.Valid() {
			return errors.Wrapf(user.ErrUnknownRole, "guard %q", s.Name)
		}
	}
	return nil
}

// Permits reports whether role may enter. An empty (or unconfigured) role set permits every role.
func (s Spec) Permits(role user.Role) bool {
	if len(s.AllowedRoles) == 0 {
		return role.Valid()
	}
	for _, r := range s.AllowedRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Outcome is what the guard wants done with a navigation.
type Outcome int

const (
	Render Outcome = iota
	Loading
	RedirectLogin
	RedirectHome
)

func (o Outcome) String() string {
	switch o {
	case Render:
		return "render"
	case Loading:
		return "loading"
	case RedirectLogin:
		return "redirect-login"
	case RedirectHome:
		return "redirect-home"
	}
	return "unknown"
}

type Decision struct {
	Outcome  Outcome
	Location string // redirect target, for RedirectLogin and RedirectHome
}

// Evaluate decides the navigation to requested (path plus optional query) under spec, given the session snapshot.
func Evaluate(spec Spec, snap session.Snapshot, requested string) Decision {
	switch snap.State {
	case session.Pending:
		return Decision{Outcome: Loading}
	case session.Authenticated:
		role, _ := snap.Role()
		if !spec.Permits(role) {
			return Decision{Outcome: RedirectHome, Location: role.Home()}
		}
		return Decision{Outcome: Render}
	default:
		return Decision{Outcome: RedirectLogin, Location: LoginLocation(requested)}
	}
}

// LoginLocation is the login route remembering requested for the post-login return.
func LoginLocation(requested string) string {
	next := SafeNext(requested)
	if next == "" {
		return LoginPath
	}
	return LoginPath + "?" + url.Values{NextParam: {next}}.Encode()
}

// SafeNext returns raw if it is a local absolute path worth returning to after login, "" otherwise.
func SafeNext(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, `\`) {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return ""
	}
	if u.Path == LoginPath || u.Path == "/" {
		return ""
	}
	return raw
}
