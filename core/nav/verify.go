package nav

import (
	"fmt"

	"github.com/trezcool/masomo-portal/core/user"
)

// Drift is one inconsistency between the menus and the route table.
type Drift struct {
	Role    user.Role
	Path    string
	Problem string
}

func (d Drift) String() string {
	if d.Path == "" {
		return fmt.Sprintf("%s: %s", d.Role, d.Problem)
	}
	return fmt.Sprintf("%s: %s: %s", d.Role, d.Path, d.Problem)
}

// Verify checks the menus against the route table:
//   - every role has a menu made of well-formed entries
//   - every menu link leads to a route the role can reach
//   - every reachable route is in the role's menu unless it is ActionOnly
//   - every role's home is reachable by that role, so guard redirects cannot loop
//   - every guard is explicitly configured
func Verify(table Table, routes RouteTable) []Drift {
	var drifts []Drift

	for _, st := range routes {
		if err := st.Guard.Validate(); err != nil {
			drifts = append(drifts, Drift{Path: st.Prefix, Problem: err.Error()})
		}
		if _, r, ok := routes.Match(st.Index); !ok || r.Path != st.Index {
			drifts = append(drifts, Drift{Path: st.Prefix, Problem: "index " + st.Index + " is not a route of the subtree"})
		}
	}

	for _, role := range user.AllRoles {
		entries := table.EntriesFor(role)
		if len(entries) == 0 {
			drifts = append(drifts, Drift{Role: role, Problem: "no menu"})
			continue
		}
		drifts = append(drifts, verifyEntries(role, entries)...)

		linked := make(map[string]bool)
		for _, path := range table.Leaves(role) {
			if path == "" {
				continue
			}
			linked[path] = true
			if !routes.Permits(role, path) {
				drifts = append(drifts, Drift{Role: role, Path: path, Problem: "menu links to a route the role cannot reach"})
			}
		}
		for _, r := range routes.Reachable(role) {
			if !r.ActionOnly && !linked[r.Path] {
				drifts = append(drifts, Drift{Role: role, Path: r.Path, Problem: "reachable route missing from the menu"})
			}
		}

		if home := role.Home(); !routes.Permits(role, home) {
			drifts = append(drifts, Drift{Role: role, Path: home, Problem: "home is not reachable by the role"})
		}
	}
	return drifts
}

func verifyEntries(role user.Role, entries []Entry) []Drift {
	var drifts []Drift
	seen := make(map[string]bool)
	for _, e := range entries {
		if e.Label == "" {
			drifts = append(drifts, Drift{Role: role, Path: e.Path, Problem: "entry without label"})
		}
		if !e.IsGroup() {
			if e.Path == "" {
				drifts = append(drifts, Drift{Role: role, Problem: fmt.Sprintf("leaf %q without path", e.Label)})
			}
			if seen[e.Path] {
				drifts = append(drifts, Drift{Role: role, Path: e.Path, Problem: "duplicate menu link"})
			}
			seen[e.Path] = true
			continue
		}
		if e.Path != "" {
			drifts = append(drifts, Drift{Role: role, Path: e.Path, Problem: fmt.Sprintf("group %q has its own path", e.Label)})
		}
		for _, c := range e.Children {
			if c.IsGroup() {
				drifts = append(drifts, Drift{Role: role, Problem: fmt.Sprintf("group %q nested in group %q", c.Label, e.Label)})
				continue
			}
			if c.Path == "" {
				drifts = append(drifts, Drift{Role: role, Problem: fmt.Sprintf("leaf %q without path", c.Label)})
			}
			if seen[c.Path] {
				drifts = append(drifts, Drift{Role: role, Path: c.Path, Problem: "duplicate menu link"})
			}
			seen[c.Path] = true
		}
	}
	return drifts
}
