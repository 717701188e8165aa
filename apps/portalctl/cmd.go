package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/nav"
	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/storage/token"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp        = errors.New("help provided")
	errNotLoggedIn = errors.New("not logged in")
)

type commandLine struct {
	out      io.Writer
	auth     session.Authenticator
	tokens   *token.File
	logger   core.Logger
	menu     nav.Table
	routes   nav.RouteTable
	waitTime time.Duration // how long whoami waits for the backend to confirm the token
}

// store returns a session store over the token file. The file doubles as the profile cache.
func (cli *commandLine) store() *session.Store {
	return session.NewStore(cli.auth, session.Options{
		Tokens:   cli.tokens,
		Profiles: cli.tokens,
		Verifier: session.NewVerifier(cli.auth, cli.waitTime),
		Logger:   cli.logger,
	})
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  login -email EMAIL        - sign in; the password is prompted next")
	fmt.Fprintln(cli.out, "  logout                    - forget the stored session")
	fmt.Fprintln(cli.out, "  whoami [-refresh]         - show the signed-in user and their menu")
	fmt.Fprintln(cli.out, "  routes [-role ROLE]       - list the routes each role can reach")
	fmt.Fprintln(cli.out, "  navcheck                  - check the menus against the route table")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	loginCmd := flag.NewFlagSet("login", flag.ContinueOnError)
	loginEmail := loginCmd.String("email", "", "The account's email. The password will be prompted next.")

	whoamiCmd := flag.NewFlagSet("whoami", flag.ContinueOnError)
	whoamiRefresh := whoamiCmd.Bool("refresh", false, "Drop the cached profile and ask the backend who the token belongs to.")

	routesCmd := flag.NewFlagSet("routes", flag.ContinueOnError)
	routesRole := routesCmd.String("role", "", "Only list the routes of this role.")

	for _, fs := range []*flag.FlagSet{loginCmd, whoamiCmd, routesCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "login":
		if err := loginCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		email := core.CleanString(*loginEmail, true /* lower */)
		if email == "" {
			loginCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			loginCmd.Usage()
			return errHelp
		}
		return cli.login(email, string(pwd))
	case "logout":
		return cli.logout()
	case "whoami":
		if err := whoamiCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.whoami(*whoamiRefresh)
	case "routes":
		if err := routesCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.listRoutes(*routesRole)
	case "navcheck":
		return cli.navcheck()
	default:
		cli.printUsage()
		return errHelp
	}
}
