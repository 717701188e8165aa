// Package nav holds the per-role side menus and the route table they point into.
package nav

import (
	"github.com/trezcool/masomo-portal/core/user"
)

// Icon is a symbolic icon name; the shell maps it to a glyph.
type Icon string

const (
	IconHome          Icon = "home"
	IconBuilding      Icon = "building"
	IconUsers         Icon = "users"
	IconGraduationCap Icon = "graduation-cap"
	IconCalendar      Icon = "calendar"
	IconFileText      Icon = "file-text"
	IconBrain         Icon = "brain"
	IconBarChart      Icon = "bar-chart"
	IconBook          Icon = "book"
)

// Entry is one item of a side menu: a leaf with a Path, or a group with Children and no Path.
type Entry struct {
	Label    string
	Icon     Icon
	Path     string
	Children []Entry
}

func (e Entry) IsGroup() bool { return len(e.Children) > 0 }

// Leaf builds a menu link.
func Leaf(label string, icon Icon, path string) Entry {
	return Entry{Label: label, Icon: icon, Path: path}
}

// Group builds an expandable menu group.
func Group(label string, icon Icon, children ...Entry) Entry {
	return Entry{Label: label, Icon: icon, Children: children}
}

// Table maps each role onto its menu, in on-screen order.
type Table map[user.Role][]Entry

// EntriesFor returns role's menu; unknown roles get nil.
func (t Table) EntriesFor(role user.Role) []Entry {
	return t[role]
}

// Leaves returns the paths of every leaf in role's menu, groups flattened, in order.
func (t Table) Leaves(role user.Role) []string {
	var paths []string
	for _, e := range t.EntriesFor(role) {
		if e.IsGroup() {
			for _, c := range e.Children {
				paths = append(paths, c.Path)
			}
			continue
		}
		paths = append(paths, e.Path)
	}
	return paths
}
