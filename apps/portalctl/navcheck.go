package main

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/masomo-portal/core/nav"
	"github.com/trezcool/masomo-portal/core/user"
)

// listRoutes prints the routes each role can reach, or only role's when set.
func (cli *commandLine) listRoutes(role string) error {
	roles := user.AllRoles
	if role != "" {
		r, err := user.ParseRole(role)
		if err != nil {
			return err
		}
		roles = []user.Role{r}
	}

	for _, r := range roles {
		fmt.Fprintf(cli.out, "%s (home %s)\n", r, r.Home())
		for _, route := range cli.routes.Reachable(r) {
			kind := "menu"
			if route.ActionOnly {
				kind = "action"
			}
			fmt.Fprintf(cli.out, "  %-32s %-7s %s\n", route.Path, kind, route.Title)
		}
	}
	return nil
}

// navcheck reports every inconsistency between the menus and the route table.
// For each role it diffs the reachable menu routes against the menu links.
func (cli *commandLine) navcheck() error {
	drifts := nav.Verify(cli.menu, cli.routes)

	for _, role := range user.AllRoles {
		diff, err := menuDiff(cli.menu, cli.routes, role)
		if err != nil {
			return err
		}
		if diff != "" {
			fmt.Fprint(cli.out, diff)
		}
	}
	for _, d := range drifts {
		fmt.Fprintln(cli.out, d)
	}

	if len(drifts) > 0 {
		return errors.Errorf("navigation drift: %d problem(s)", len(drifts))
	}
	fmt.Fprintln(cli.out, "menus and routes agree")
	return nil
}

// menuDiff returns a unified diff from the routes role reaches from its menu to the links the menu has, "" when they match.
func menuDiff(table nav.Table, routes nav.RouteTable, role user.Role) (string, error) {
	var want []string
	for _, r := range routes.Reachable(role) {
		if !r.ActionOnly {
			want = append(want, r.Path+"\n")
		}
	}
	var got []string
	for _, path := range table.Leaves(role) {
		got = append(got, path+"\n")
	}
	sort.Strings(want)
	sort.Strings(got)

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        want,
		B:        got,
		FromFile: "routes/" + role.String(),
		ToFile:   "menu/" + role.String(),
		Context:  1,
	})
	return diff, errors.Wrapf(err, "diffing %s menu", role)
}
