package user

import (
	"strings"

	"github.com/pkg/errors"
)

// Role is the permission class of an authenticated user.
type Role int

// Roles
const (
	// Admin
	SuperAdmin Role = iota + 1
	CampusAdmin

	// Teacher
	Teacher

	// Student
	Student
)

var (
	ErrUnknownRole = errors.New("unknown role")

	// AllRoles lists every Role, highest priority first.
	AllRoles   = []Role{SuperAdmin, CampusAdmin, Teacher, Student}
	AdminRoles = []Role{SuperAdmin, CampusAdmin}

	roleNames = map[Role]string{
		SuperAdmin:  "super-admin",
		CampusAdmin: "campus-admin",
		Teacher:     "teacher",
		Student:     "student",
	}

	rolePriorities = map[Role]int{
		// Admins: 30 - 21
		SuperAdmin:  30,
		CampusAdmin: 21,

		// Teachers: 20 - 11
		Teacher: 11,

		// Students: 10 - 1
		Student: 1,
	}

	roleHomes = map[Role]string{
		SuperAdmin:  "/admin/dashboard",
		CampusAdmin: "/admin/dashboard",
		Teacher:     "/teacher/dashboard",
		Student:     "/student/dashboard",
	}
)

// ParseRole maps a role name as sent by the backend onto a Role.
// Casing, underscores and spaces are normalised: "Super_Admin" and "super admin" are both SuperAdmin.
func ParseRole(s string) (Role, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", "-", " ", "-").Replace(norm)
	for role, name := range roleNames {
		if name == norm {
			return role, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownRole, "parsing %q", s)
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// Label is the human-readable role name, eg. "Campus Admin".
func (r Role) Label() string {
	parts := strings.Split(r.String(), "-")
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// Home is the role's default landing route.
func (r Role) Home() string {
	return roleHomes[r]
}

func (r Role) Priority() int {
	return rolePriorities[r]
}

func (r Role) IsAdmin() bool {
	return r == SuperAdmin || r == CampusAdmin
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, errors.Wrapf(ErrUnknownRole, "marshalling %d", int(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// User is the profile of an authenticated user as returned by the backend.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Role   Role   `json:"role"`
	Campus string `json:"campus,omitempty"` // campus-scoped roles only
}

func (u User) IsZero() bool { return u.ID == "" }
