package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"optionwatch/internal/broker"
	"optionwatch/internal/config"
	"optionwatch/internal/marketdata"
	"optionwatch/internal/monitor"
	"optionwatch/internal/notify"
	"optionwatch/internal/observ"
	"optionwatch/internal/outbox"
	"optionwatch/internal/positions"
	"optionwatch/internal/sessions"
)

func main() {
	app := &cli.App{
		Name:  "optionwatch",
		Usage: "Monitor brokerage option positions and push threshold alerts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config/config.yaml",
				Usage:   "path to the YAML configuration",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "dotenv file with secrets (missing file is fine)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run the monitoring loop until interrupted",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "evaluate and log alerts without pushing notifications",
					},
				},
				Action: runMonitor,
			},
			{
				Name:   "positions",
				Usage:  "Print the monitored position set and exit",
				Action: showPositions,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runtime bundles everything a command needs after bootstrap.
type runtime struct {
	cfg      config.Root
	log      *logrus.Logger
	disp     *broker.Dispatcher
	registry *marketdata.Registry
	oracle   *sessions.Oracle
	machine  *sessions.Machine
	source   *positions.Source
	cancel   context.CancelFunc
}

func bootstrap(c *cli.Context) (*runtime, error) {
	_ = godotenv.Load(c.String("env-file"))

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := observ.NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	client := newClient(cfg)
	observ.Component(log, "broker").WithFields(logrus.Fields{
		"host":      cfg.Connection.Host,
		"port":      cfg.Connection.Port,
		"client_id": cfg.Connection.ClientID,
	}).Info("broker transport configured")
	disp := broker.NewDispatcher(client, observ.Component(log, "broker"))

	ctx, cancel := context.WithCancel(context.Background())
	disp.Start(ctx)
	if err := disp.AwaitReady(15 * time.Second); err != nil {
		cancel()
		return nil, fmt.Errorf("broker session not ready: %w", err)
	}

	registry := marketdata.NewRegistry(disp, observ.Component(log, "marketdata"))
	oracle := sessions.NewOracle(disp, observ.Component(log, "sessions"))
	machine := sessions.NewMachine(sessions.Config{
		ReferenceSymbol: cfg.Session.ReferenceSymbol,
		StickyGrace:     time.Duration(cfg.Session.StickyGraceMinutes) * time.Minute,
		CloseDebounce:   time.Duration(cfg.Session.CloseDebounceMinute) * time.Minute,
	}, oracle, disp, observ.Component(log, "sessions"))
	source := positions.NewSource(disp,
		time.Duration(cfg.Intervals.PositionRefreshMinutes)*time.Minute,
		observ.Component(log, "positions"))

	return &runtime{
		cfg:      cfg,
		log:      log,
		disp:     disp,
		registry: registry,
		oracle:   oracle,
		machine:  machine,
		source:   source,
		cancel:   cancel,
	}, nil
}

// newClient returns the broker transport. The simulated client stands in
// until a TWS wire client is plugged in; it serves the same event stream.
func newClient(cfg config.Root) broker.Client {
	return broker.NewSim()
}

func runMonitor(c *cli.Context) error {
	rt, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer rt.cancel()

	var notifier monitor.Notifier = notify.NewPusher(notify.Config{
		Endpoint:   rt.cfg.Notify.Endpoint,
		Token:      rt.cfg.Notify.Token,
		MaxTextLen: rt.cfg.Notify.MaxTextLen,
	}, observ.Component(rt.log, "notify"))
	if c.Bool("dry-run") {
		notifier = dryRunNotifier{log: observ.Component(rt.log, "notify")}
	}

	rule := monitor.Rule{
		DeltaUpper:      rt.cfg.Strategy.DeltaUpper,
		DeltaLower:      rt.cfg.Strategy.DeltaLower,
		ProfitTarget:    rt.cfg.Strategy.ProfitTarget,
		ProfitShortOnly: rt.cfg.Strategy.ProfitShortOnlyValue(),
		MinDTE:          rt.cfg.Strategy.MinDTE,
		GapThreshold:    rt.cfg.Strategy.GapThreshold,
	}
	var journal *outbox.Journal
	if rt.cfg.Journal.Path != "" {
		journal, err = outbox.New(rt.cfg.Journal.Path)
		if err != nil {
			return err
		}
	}

	mon := monitor.New(monitor.Config{
		CheckInterval:    time.Duration(rt.cfg.Intervals.CheckSeconds) * time.Second,
		ClosedMultiplier: rt.cfg.Intervals.ClosedMultiplier,
		Journal:          journal,
	}, rule, rt.registry, rt.machine, rt.source, notifier, observ.Component(rt.log, "monitor"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = mon.Run(ctx)
	if ctx.Err() != nil {
		observ.Component(rt.log, "monitor").Info("shutdown requested, stopping")
		return nil
	}
	return err
}

func showPositions(c *cli.Context) error {
	rt, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer rt.cancel()

	if _, _, err := rt.source.Refresh(true); err != nil {
		return err
	}
	fmt.Println(rt.source.Summary())
	return nil
}

// dryRunNotifier logs alert text instead of delivering it.
type dryRunNotifier struct {
	log *logrus.Entry
}

func (d dryRunNotifier) Push(text string) error {
	d.log.WithField("text", text).Info("dry-run alert")
	return nil
}
