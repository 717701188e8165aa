package nav

import (
	"strings"

	"github.com/trezcool/masomo-portal/core/user"
)

// MenuItem is an Entry prepared for rendering at a given location.
type MenuItem struct {
	Label    string
	Icon     Icon
	Path     string
	Active   bool
	Open     bool // groups only
	Children []MenuItem
}

func (m MenuItem) IsGroup() bool { return len(m.Children) > 0 }

// Menu builds role's menu for location. The active leaf is the one whose path is the longest
// segment prefix of location. Groups are open when they hold the active leaf or their label is in open.
// open is per-render UI state owned by the caller.
func Menu(table Table, role user.Role, location string, open map[string]bool) []MenuItem {
	if i := strings.IndexAny(location, "?#"); i >= 0 {
		location = location[:i]
	}
	active := activePath(table.Leaves(role), location)

	entries := table.EntriesFor(role)
	items := make([]MenuItem, 0, len(entries))
	for _, e := range entries {
		item := MenuItem{Label: e.Label, Icon: e.Icon, Path: e.Path, Active: e.Path != "" && e.Path == active}
		for _, c := range e.Children {
			child := MenuItem{Label: c.Label, Icon: c.Icon, Path: c.Path, Active: c.Path == active}
			if child.Active {
				item.Active = true
			}
			item.Children = append(item.Children, child)
		}
		if item.IsGroup() {
			item.Open = item.Active || open[e.Label]
		}
		items = append(items, item)
	}
	return items
}

// ActivePath returns the menu link role's menu highlights at location, "" if none.
func ActivePath(table Table, role user.Role, location string) string {
	return activePath(table.Leaves(role), location)
}

func activePath(paths []string, location string) string {
	var best string
	for _, p := range paths {
		if p != "" && underPath(location, p) && len(p) > len(best) {
			best = p
		}
	}
	return best
}
