package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"neembleeat/internal/auth"
	"neembleeat/internal/cart"
	"neembleeat/internal/checkout"
	"neembleeat/internal/logging"
	"neembleeat/internal/models"
	"neembleeat/internal/session"
)

// ItemSource looks up menu items for cart adds
type ItemSource interface {
	Item(ctx context.Context, itemID string) (*models.MenuItem, error)
}

// EventSource subscribes to change signals for one table. The returned
// function ends the subscription.
type EventSource func(restaurantID string, tableNumber int) (<-chan struct{}, func())

// Deps are the services the HTTP layer drives
type Deps struct {
	View     *session.View
	Carts    *cart.Manager
	Checkout *checkout.Service
	Items    ItemSource
	Redirect *auth.Redirector
	Events   EventSource
}

// Config holds the HTTP-level settings
type Config struct {
	AllowedOrigins []string
	PollInterval   time.Duration
	Debug          bool
}

// Server is the diner-facing HTTP API
type Server struct {
	router   *gin.Engine
	view     *session.View
	carts    *cart.Manager
	checkout *checkout.Service
	items    ItemSource
	redirect *auth.Redirector
	events   EventSource
	poll     time.Duration
	log      logrus.FieldLogger
}

// New creates a server and registers its routes
func New(deps Deps, cfg Config, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if deps.Redirect == nil {
		deps.Redirect = auth.NewRedirector()
	}

	var router *gin.Engine
	if cfg.Debug {
		router = gin.Default()
	} else {
		router = gin.New()
		router.Use(gin.Recovery(), logging.GinLogger(log))
	}

	corsCfg := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
		corsCfg.AllowCredentials = true
	}
	corsCfg.AddExposeHeaders("X-Redirect-To")
	router.Use(cors.New(corsCfg))

	s := &Server{
		router:   router,
		view:     deps.View,
		carts:    deps.Carts,
		checkout: deps.Checkout,
		items:    deps.Items,
		redirect: deps.Redirect,
		events:   deps.Events,
		poll:     cfg.PollInterval,
		log:      log,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures the diner endpoints
func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		ok(c, http.StatusOK, "neembleeat is running", gin.H{"status": "ok"})
	})

	table := s.router.Group("/r/:slug/t/:table", s.tableParams)
	{
		table.GET("/session", s.handleSession)
		table.POST("/session/bill", s.handleRequestBill)

		table.GET("/cart", s.handleGetCart)
		table.POST("/cart/items", s.handleAddItem)
		table.POST("/cart/items/:index/increment", s.handleIncrement)
		table.POST("/cart/items/:index/decrement", s.handleDecrement)
		table.DELETE("/cart/items/:index", s.handleDeleteItem)
		table.DELETE("/cart", s.handleClearCart)

		table.POST("/checkout", s.handleCheckout)
		table.GET("/ws", s.handleWebSocket)
	}
}

// Router returns the Gin router
func (s *Server) Router() *gin.Engine {
	return s.router
}
