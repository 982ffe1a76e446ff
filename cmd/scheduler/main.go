// Command scheduler runs the size-aware job-dispatch scheduler side of
// the control socket protocol (§6): it dials a dispatcher, receives the
// greeting line of server names, and drives requests to completion
// until interrupted.
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
	"github.com/mprokhorov/jobsched/internal/dashboard"
)

// schedulerConfig mirrors the teacher's reflection-driven config
// convention for the scheduler's CLI surface:
// `./scheduler PORT [DASHBOARD_PORT [LOG_LEVEL]]`.
type schedulerConfig struct {
	Port          int `validate:"required"`
	DashboardPort int
	LogLevel      string `default:"info"`
}

func (c *schedulerConfig) finalize() {
	jobsched.SetDefaultValues(c)
	jobsched.Validate(c)
}

func main() {
	app := &cli.App{
		Name:      "scheduler",
		Usage:     "size-aware job-dispatch scheduler",
		ArgsUsage: "PORT [DASHBOARD_PORT [LOG_LEVEL]]",
		Action:    run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg := &schedulerConfig{}
	if c.Args().Len() > 0 {
		if p, err := strconv.Atoi(c.Args().Get(0)); err == nil {
			cfg.Port = p
		}
	}
	if c.Args().Len() > 1 {
		if p, err := strconv.Atoi(c.Args().Get(1)); err == nil {
			cfg.DashboardPort = p
		}
	}
	if c.Args().Len() > 2 {
		cfg.LogLevel = c.Args().Get(2)
	}
	cfg.finalize()

	log, err := jobsched.NewLogger(os.Stdout, cfg.LogLevel)
	if err != nil {
		return cli.Exit(err, 1)
	}

	cs, err := jobsched.Dial(strconv.Itoa(cfg.Port), log)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer cs.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.DashboardPort > 0 {
		dash := dashboard.New(cs.Scheduler(), cfg.DashboardPort)
		go dash.Run(ctx)
	}

	cs.Run(ctx)

	fmt.Println(cs.Scheduler().DebugDump())
	return nil
}
