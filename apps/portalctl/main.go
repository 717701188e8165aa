package main

import (
	"log"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/nav"
	"github.com/trezcool/masomo-portal/services/gateway"
	logsvc "github.com/trezcool/masomo-portal/services/logger"
	"github.com/trezcool/masomo-portal/storage/token"
)

func main() {
	conf := core.Conf
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stderr, "PORTALCTL : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// start CLI
	cli := commandLine{
		out:      os.Stdout,
		auth:     gateway.New(conf.API.BaseURL, conf.API.Timeout, logger),
		tokens:   token.NewFile(conf.Session.TokenFile),
		logger:   logger,
		menu:     nav.DefaultTable,
		routes:   nav.DefaultRoutes,
		waitTime: conf.API.Timeout,
	}
	if err := cli.run(os.Args); err != nil {
		if !errors.Is(err, errHelp) {
			msg := core.ErrorMessage(err)
			if msg == "" {
				msg = err.Error()
			}
			log.New(os.Stderr, "", 0).Printf("error: %s", msg)
		}
		os.Exit(1)
	}
}
