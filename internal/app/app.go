package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"neembleeat/internal/api"
	"neembleeat/internal/auth"
	"neembleeat/internal/cache"
	"neembleeat/internal/cart"
	"neembleeat/internal/checkout"
	"neembleeat/internal/config"
	"neembleeat/internal/dashboard"
	"neembleeat/internal/database"
	"neembleeat/internal/models"
	"neembleeat/internal/monitoring"
	"neembleeat/internal/notify"
	"neembleeat/internal/realtime"
	"neembleeat/internal/session"
	"neembleeat/internal/storage"
)

// App is the wired set of client services shared by the HTTP server and
// the terminal client.
type App struct {
	Config   *config.Config
	Log      logrus.FieldLogger
	Metrics  *monitoring.Metrics
	Notifier notify.Notifier

	Store     storage.Store
	API       *api.Client
	Auth      *auth.Session
	Redirect  *auth.Redirector
	Cache     *cache.Cache
	Carts     *cart.Manager
	View      *session.View
	Checkout  *checkout.Service
	Dashboard *dashboard.Service

	Realtime *realtime.Client
	Hub      *realtime.Hub

	usesDB bool
}

// New builds every service from cfg. Toasts go to n, or to the log when
// n is nil.
func New(cfg *config.Config, log logrus.FieldLogger, n notify.Notifier) (*App, error) {
	if n == nil {
		n = notify.Log{Logger: log}
	}
	mergePolicy, err := cart.ParseMergePolicy(cfg.Cart.MergePolicy)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:   cfg,
		Log:      log,
		Metrics:  monitoring.NewMetrics(),
		Notifier: n,
		Redirect: auth.NewRedirector(),
	}

	if err := a.openStore(); err != nil {
		return nil, err
	}

	a.API = api.New(cfg.API.BaseURL,
		api.WithTimeout(cfg.API.Timeout),
		api.WithLoginRoute(cfg.Auth.LoginPath),
		api.WithNavigator(a.Redirect),
		api.WithLogger(log),
		api.WithMetrics(a.Metrics),
	)
	a.Auth = auth.NewSession(a.API, auth.WithSkew(cfg.Auth.Skew), auth.WithLogger(log))
	a.API.SetTokenSource(a.Auth)
	a.API.SetSignOut(a.Auth)

	a.Cache = cache.New(
		cache.WithStaleTime(cfg.Cache.StaleTime),
		cache.WithLogger(log),
		cache.WithMetrics(a.Metrics),
	)
	a.Carts = cart.NewManager(a.Store,
		cart.WithMergePolicy(mergePolicy),
		cart.WithLogger(log),
		cart.WithMetrics(a.Metrics),
	)
	a.View = session.NewView(a.API, a.Cache, session.WithNotifier(n), session.WithLogger(log))
	a.Checkout = checkout.NewService(a.API, a.Cache, n, log)
	a.Dashboard = dashboard.NewService(a.API, a.Cache, n, log)

	if cfg.Session.RealtimeURL != "" {
		a.Realtime = realtime.NewClient(cfg.Session.RealtimeURL, realtime.WithLogger(log))
		a.Hub = realtime.NewHub()
	}
	return a, nil
}

func (a *App) openStore() error {
	driver := a.Config.Storage.Driver
	if driver == "" || driver == "memory" {
		a.Store = storage.NewMemoryStore()
		return nil
	}
	if err := database.InitDB(driver, a.Config.Storage.DSN); err != nil {
		return fmt.Errorf("failed to open cart storage: %w", err)
	}
	a.Store = storage.NewGormStore(database.GetDB())
	a.usesDB = true
	a.Log.WithField("driver", driver).Info("cart storage opened")
	return nil
}

// SignIn logs in with the configured credentials. Without credentials
// the client runs unauthenticated.
func (a *App) SignIn(ctx context.Context) error {
	if a.Config.Auth.Email == "" {
		return nil
	}
	_, err := a.Auth.Login(ctx, models.Credentials{
		Email:    a.Config.Auth.Email,
		Password: a.Config.Auth.Password,
	})
	if err != nil {
		return fmt.Errorf("sign in as %s: %w", a.Config.Auth.Email, err)
	}
	return nil
}

// Start runs the realtime feed until ctx ends. It is a no-op when no
// realtime URL is configured.
func (a *App) Start(ctx context.Context) {
	if a.Hub == nil {
		return
	}
	go a.Hub.Run(ctx, a.Realtime.Subscribe(ctx))
}

// TableEvents subscribes to change signals for one table. It returns a
// nil channel when realtime is off, which leaves watchers on polling.
func (a *App) TableEvents(restaurantID string, tableNumber int) (<-chan struct{}, func()) {
	if a.Hub == nil {
		return nil, func() {}
	}
	return a.Hub.Subscribe(realtime.ForTable(restaurantID, tableNumber))
}

// Close releases the storage connection
func (a *App) Close() error {
	if a.usesDB {
		return database.CloseDB()
	}
	return nil
}
