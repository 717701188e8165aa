package nav

import (
	"github.com/trezcool/masomo-portal/core/guard"
	"github.com/trezcool/masomo-portal/core/user"
)

// DefaultTable is the portal's side menu per role.
var DefaultTable = Table{
	user.SuperAdmin: {
		Leaf("Dashboard", IconHome, "/admin/dashboard"),
		Leaf("Campuses", IconBuilding, "/admin/campuses"),
		Leaf("Users", IconUsers, "/admin/users"),
	},
	user.CampusAdmin: {
		Leaf("Dashboard", IconHome, "/admin/dashboard"),
		Group("People", IconUsers,
			Leaf("Teachers", IconUsers, "/admin/teachers"),
			Leaf("Students", IconGraduationCap, "/admin/students"),
		),
		Group("Academics", IconBook,
			Leaf("Classes", IconCalendar, "/admin/classes"),
			Leaf("Subjects", IconFileText, "/admin/subjects"),
		),
	},
	user.Teacher: {
		Leaf("Dashboard", IconHome, "/teacher/dashboard"),
		Leaf("Attendance", IconCalendar, "/teacher/attendance"),
		Group("Assessment", IconFileText,
			Leaf("Exams", IconFileText, "/teacher/exams"),
			Leaf("Marks", IconGraduationCap, "/teacher/marks"),
		),
	},
	user.Student: {
		Leaf("Dashboard", IconHome, "/student/dashboard"),
		Leaf("Attendance", IconCalendar, "/student/my-attendance"),
		Leaf("Marksheets", IconFileText, "/student/my-marksheets"),
		Leaf("AI Recommendations", IconBrain, "/student/ai-recommendations"),
	},
}

var (
	superAdminOnly  = []user.Role{user.SuperAdmin}
	campusAdminOnly = []user.Role{user.CampusAdmin}
)

// DefaultRoutes is the portal's guarded route surface.
var DefaultRoutes = RouteTable{
	{
		Prefix: "/admin",
		Guard:  guard.Allow("admin", user.AdminRoles...),
		Index:  "/admin/dashboard",
		Routes: []Route{
			{Path: "/admin/dashboard", Title: "Dashboard"},
			{Path: "/admin/campuses", Title: "Campuses", Roles: superAdminOnly},
			{Path: "/admin/campuses/new", Title: "Add Campus", Roles: superAdminOnly, ActionOnly: true},
			{Path: "/admin/campuses/:id", Title: "Campus Details", Roles: superAdminOnly, ActionOnly: true},
			{Path: "/admin/campuses/:id/edit", Title: "Edit Campus", Roles: superAdminOnly, ActionOnly: true},
			{Path: "/admin/users", Title: "Users", Roles: superAdminOnly},
			{Path: "/admin/teachers", Title: "Teachers", Roles: campusAdminOnly},
			{Path: "/admin/students", Title: "Students", Roles: campusAdminOnly},
			{Path: "/admin/classes", Title: "Classes", Roles: campusAdminOnly},
			{Path: "/admin/classes/new", Title: "Add Class", Roles: campusAdminOnly, ActionOnly: true},
			{Path: "/admin/classes/:id", Title: "Class Details", Roles: campusAdminOnly, ActionOnly: true},
			{Path: "/admin/subjects", Title: "Subjects", Roles: campusAdminOnly},
		},
	},
	{
		Prefix: "/teacher",
		Guard:  guard.Allow("teacher", user.Teacher),
		Index:  "/teacher/dashboard",
		Routes: []Route{
			{Path: "/teacher/dashboard", Title: "Dashboard"},
			{Path: "/teacher/attendance", Title: "Attendance"},
			{Path: "/teacher/exams", Title: "Exams"},
			{Path: "/teacher/exams/:id/scores", Title: "Add Scores", ActionOnly: true},
			{Path: "/teacher/marks", Title: "Marks"},
		},
	},
	{
		Prefix: "/student",
		Guard:  guard.Allow("student", user.Student),
		Index:  "/student/dashboard",
		Routes: []Route{
			{Path: "/student/dashboard", Title: "Dashboard"},
			{Path: "/student/my-attendance", Title: "My Attendance"},
			{Path: "/student/my-marksheets", Title: "My Marksheets"},
			{Path: "/student/ai-recommendations", Title: "AI Study Recommendations"},
		},
	},
}
