package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core/nav"
	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/core/user"
)

func (cli *commandLine) login(email, pwd string) error {
	sess, err := cli.store().Login(context.Background(), email, pwd)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Logged in as %s (%s)\n", sess.User.Name, sess.User.Role.Label())
	return nil
}

func (cli *commandLine) logout() error {
	if err := cli.store().Logout(context.Background()); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "Logged out")
	return nil
}

// whoami restores the stored session and prints the user with the menu they would see.
func (cli *commandLine) whoami(refresh bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), cli.waitTime)
	defer cancel()

	if refresh {
		tok, err := cli.tokens.Token()
		if err != nil {
			return err
		}
		if err := cli.tokens.Delete(ctx, tok); err != nil {
			return err
		}
	}

	store := cli.store()
	store.Restore(ctx)
	snap, err := store.Wait(ctx)
	if err != nil {
		return errors.Wrap(err, "waiting for the backend to confirm the session")
	}
	if snap.State != session.Authenticated {
		return errNotLoggedIn
	}

	usr := snap.Session.User
	fmt.Fprintf(cli.out, "%s <%s>\n", usr.Name, usr.Email)
	fmt.Fprintf(cli.out, "Role:   %s\n", usr.Role.Label())
	if usr.Campus != "" {
		fmt.Fprintf(cli.out, "Campus: %s\n", usr.Campus)
	}
	fmt.Fprintf(cli.out, "Home:   %s\n", usr.Role.Home())
	fmt.Fprintln(cli.out, "Menu:")
	cli.printMenu(usr.Role)
	return nil
}

func (cli *commandLine) printMenu(role user.Role) {
	all := make(map[string]bool)
	for _, e := range cli.menu.EntriesFor(role) {
		all[e.Label] = true
	}
	for _, item := range nav.Menu(cli.menu, role, role.Home(), all) {
		if !item.IsGroup() {
			fmt.Fprintf(cli.out, "  %-24s %s\n", item.Label, item.Path)
			continue
		}
		fmt.Fprintf(cli.out, "  %s\n", item.Label)
		for _, c := range item.Children {
			fmt.Fprintf(cli.out, "    %-22s %s\n", c.Label, c.Path)
		}
	}
}
