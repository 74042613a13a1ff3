package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"neembleeat/internal/app"
	"neembleeat/internal/config"
	"neembleeat/internal/logging"
	"neembleeat/internal/notify"
	"neembleeat/internal/session"
	"neembleeat/internal/tui"
)

var (
	configFile = flag.String("config", "configs/config.yaml", "Path to configuration file")
	slug       = flag.String("restaurant", "", "Restaurant slug")
	table      = flag.Int("table", 0, "Table number")
	menuID     = flag.String("menu", "", "Menu to order from")
	logFile    = flag.String("log", "neembleeat-diner.log", "Log file (the terminal is used by the UI)")
)

func main() {
	flag.Parse()
	if *slug == "" || *table < 1 || *menuID == "" {
		fmt.Fprintln(os.Stderr, "usage: diner -restaurant <slug> -table <n> -menu <id>")
		os.Exit(2)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel)
	f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()
	log.SetOutput(f)

	if err := run(cfg, log); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	toasts := notify.NewChannel(8)
	a, err := app.New(cfg, log, notify.Multi{toasts, notify.Log{Logger: log}})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.SignIn(ctx); err != nil {
		log.WithError(err).Warn("Continuing without a signed-in user")
	}
	a.Start(ctx)

	opts := []session.WatcherOption{
		session.WithInterval(cfg.Session.PollInterval),
		session.WithCartPurger(a.Carts),
		session.WithWatcherLogger(log),
	}
	loadCtx, loadCancel := context.WithTimeout(ctx, 15*time.Second)
	first, err := a.View.Load(loadCtx, *slug, *table)
	loadCancel()
	if err != nil {
		return fmt.Errorf("load table %d at %s: %w", *table, *slug, err)
	}
	signals, unsubscribe := a.TableEvents(first.Restaurant.ID, *table)
	defer unsubscribe()
	if signals != nil {
		opts = append(opts, session.WithEvents(signals))
	}

	model := tui.New(tui.Deps{
		View:      a.View,
		Snapshots: session.NewWatcher(a.View, *slug, *table, opts...).Watch(ctx),
		Toasts:    toasts.C,
		Redirects: a.Redirect.C,
		Carts:     a.Carts,
		Checkout:  a.Checkout,
		Menus:     a.Dashboard,
		Slug:      *slug,
		Table:     *table,
		MenuID:    *menuID,
	})

	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}
