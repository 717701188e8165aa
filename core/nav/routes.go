package nav

import (
	"strings"

	"github.com/trezcool/masomo-portal/core/guard"
	"github.com/trezcool/masomo-portal/core/user"
)

// Route is one screen of a guarded subtree. Path segments starting with ":" match any single segment.
type Route struct {
	Path  string
	Title string
	// Roles narrows the subtree's guard for this route. Empty means the subtree's guard alone decides.
	Roles []user.Role
	// ActionOnly routes are reached through an in-page action (a button or a row link), never from the menu.
	ActionOnly bool
}

// Guard returns the route-level guard, falling back to the subtree's.
func (r Route) Guard(st Subtree) guard.Spec {
	if len(r.Roles) == 0 {
		return st.Guard
	}
	return guard.Allow(st.Guard.Name+":"+r.Path, r.Roles...)
}

// Subtree is a role-scoped route prefix with its guard. Index is where the bare prefix leads.
type Subtree struct {
	Prefix string
	Guard  guard.Spec
	Index  string
	Routes []Route
}

// Permits reports whether role passes both the subtree's and the route's guard.
func (st Subtree) Permits(role user.Role, r Route) bool {
	return st.Guard.Permits(role) && r.Guard(st).Permits(role)
}

type RouteTable []Subtree

// Match finds the subtree and route serving path (query string ignored).
// The bare subtree prefix resolves to its Index route.
// Routes are tried in table order, so literal routes go before their parameterised siblings.
func (rt RouteTable) Match(path string) (Subtree, Route, bool) {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimRight(path, "/")
	for _, st := range rt {
		if path == st.Prefix {
			path = st.Index
		}
		if !strings.HasPrefix(path, st.Prefix+"/") {
			continue
		}
		for _, r := range st.Routes {
			if matchPattern(r.Path, path) {
				return st, r, true
			}
		}
	}
	return Subtree{}, Route{}, false
}

// Permits reports whether role may reach path. Paths outside the table are not permitted.
func (rt RouteTable) Permits(role user.Role, path string) bool {
	st, r, ok := rt.Match(path)
	return ok && st.Permits(role, r)
}

// Reachable returns every route role can reach, in table order.
func (rt RouteTable) Reachable(role user.Role) []Route {
	var routes []Route
	for _, st := range rt {
		for _, r := range st.Routes {
			if st.Permits(role, r) {
				routes = append(routes, r)
			}
		}
	}
	return routes
}

// matchPattern reports whether path matches pattern segment by segment.
func matchPattern(pattern, path string) bool {
	ps := strings.Split(strings.Trim(pattern, "/"), "/")
	xs := strings.Split(strings.Trim(path, "/"), "/")
	if len(ps) != len(xs) {
		return false
	}
	for i, p := range ps {
		if strings.HasPrefix(p, ":") {
			if xs[i] == "" {
				return false
			}
			continue
		}
		if p != xs[i] {
			return false
		}
	}
	return true
}

// underPath reports whether location is path or below it, on segment boundaries.
func underPath(location, path string) bool {
	return location == path || strings.HasPrefix(location, strings.TrimRight(path, "/")+"/")
}
