package echoportal

import (
	"net/url"

	"github.com/trezcool/masomo-portal/core/nav"
	"github.com/trezcool/masomo-portal/core/user"
)

// Query params holding the shell's UI state. It lives in the URL so every link can carry or drop it.
const (
	menuParam = "menu" // "open" shows the mobile sidebar overlay
	openParam = "open" // label of a menu group expanded by the user, repeatable
)

// shell is the view model of the authenticated layout: sidebar, topbar and mobile overlay.
type shell struct {
	User      user.User
	RoleLabel string
	Menu      []nav.MenuItem
	MenuOpen  bool

	// GroupLinks maps a group label to the URL toggling it.
	GroupLinks   map[string]string
	OpenMenuURL  string
	CloseMenuURL string
}

func newShell(table nav.Table, usr user.User, u *url.URL) *shell {
	q := u.Query()
	open := make(map[string]bool, len(q[openParam]))
	for _, label := range q[openParam] {
		open[label] = true
	}

	sh := &shell{
		User:       usr,
		RoleLabel:  usr.Role.Label(),
		Menu:       nav.Menu(table, usr.Role, u.Path, open),
		MenuOpen:   q.Get(menuParam) == "open",
		GroupLinks: make(map[string]string),
	}

	for _, item := range sh.Menu {
		if !item.IsGroup() {
			continue
		}
		toggled := cloneQuery(q)
		toggled.Del(openParam)
		seen := make(map[string]bool, len(open))
		for _, label := range q[openParam] {
			if label != item.Label && !seen[label] {
				toggled.Add(openParam, label)
				seen[label] = true
			}
		}
		if !open[item.Label] {
			toggled.Add(openParam, item.Label)
		}
		sh.GroupLinks[item.Label] = withQuery(u.Path, toggled)
	}

	opened := cloneQuery(q)
	opened.Set(menuParam, "open")
	sh.OpenMenuURL = withQuery(u.Path, opened)

	closed := cloneQuery(q)
	closed.Del(menuParam)
	sh.CloseMenuURL = withQuery(u.Path, closed)
	return sh
}

func cloneQuery(q url.Values) url.Values {
	c := make(url.Values, len(q))
	for k, v := range q {
		c[k] = append([]string(nil), v...)
	}
	return c
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
