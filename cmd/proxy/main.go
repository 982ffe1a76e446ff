// Command proxy runs the HTTPS CONNECT tunnelling proxy collaborator
// described in spec.md §1/§4.6: `./proxy PORT [TELEMETRY {0|1}
// [BLACKLIST_PATH [LOG_LEVEL]]]`.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/mprokhorov/jobsched"
	"github.com/mprokhorov/jobsched/internal/proxy"
)

func main() {
	app := &cli.App{
		Name:      "proxy",
		Usage:     "HTTPS CONNECT tunnelling proxy",
		ArgsUsage: "PORT [TELEMETRY {0|1} [BLACKLIST_PATH [LOG_LEVEL]]]",
		Action:    run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg := &proxy.Config{}
	if c.Args().Len() > 0 {
		if p, err := strconv.Atoi(c.Args().Get(0)); err == nil {
			cfg.Port = p
		}
	}
	if c.Args().Len() > 1 {
		cfg.Telemetry = c.Args().Get(1) == "1"
	}
	if c.Args().Len() > 2 {
		cfg.BlacklistPath = c.Args().Get(2)
	}
	if c.Args().Len() > 3 {
		cfg.LogLevel = c.Args().Get(3)
	}
	cfg.Finalize()

	log, err := jobsched.NewLogger(os.Stdout, cfg.LogLevel)
	if err != nil {
		return cli.Exit(err, 1)
	}

	var blacklist *jobsched.Blacklist
	if cfg.BlacklistPath != "" {
		blacklist, err = jobsched.LoadBlacklistFile(cfg.BlacklistPath)
		if err != nil {
			return cli.Exit(err, 1)
		}
	}

	pctx := proxy.NewContext(log, blacklist, cfg.Telemetry)
	srv := proxy.NewServer(pctx, cfg.Port, 0)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return srv.Run(ctx)
}
