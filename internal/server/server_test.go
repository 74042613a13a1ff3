package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neembleeat/internal/api"
	"neembleeat/internal/auth"
	"neembleeat/internal/cache"
	"neembleeat/internal/cart"
	"neembleeat/internal/checkout"
	"neembleeat/internal/dashboard"
	"neembleeat/internal/logging"
	"neembleeat/internal/models"
	"neembleeat/internal/session"
	"neembleeat/internal/storage"
)

// upstream is an in-memory stand-in for the backend REST API
type upstream struct {
	mu              sync.Mutex
	session         *models.TableSession
	orders          []models.Order
	idempotencyKeys []string
	unauthorized    bool
}

func envelope(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"status": status, "success": status < 400, "message": "", "data": data, "error": nil})
}

func failure(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"status": status, "success": false, "data": nil, "error": gin.H{"message": msg}})
}

func (u *upstream) router() *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		u.mu.Lock()
		unauthorized := u.unauthorized
		u.mu.Unlock()
		if unauthorized && !strings.HasPrefix(c.Request.URL.Path, "/api/v1/auth") {
			failure(c, http.StatusUnauthorized, "expired")
			c.Abort()
		}
	})
	v1 := r.Group("/api/v1")
	v1.GET("/restaurants/slug/:slug", func(c *gin.Context) {
		if c.Param("slug") != "casa-lola" {
			failure(c, http.StatusNotFound, "Restaurant not found")
			return
		}
		envelope(c, http.StatusOK, models.Restaurant{ID: "r1", Slug: "casa-lola", Name: "Casa Lola"})
	})
	v1.GET("/sessions/active", func(c *gin.Context) {
		u.mu.Lock()
		defer u.mu.Unlock()
		if u.session == nil || c.Query("tableNumber") != "4" {
			envelope(c, http.StatusOK, nil)
			return
		}
		envelope(c, http.StatusOK, u.session)
	})
	v1.POST("/sessions/:id/needs-bill", func(c *gin.Context) {
		u.mu.Lock()
		defer u.mu.Unlock()
		u.session.Status = models.SessionStatusNeedsBill
		envelope(c, http.StatusOK, nil)
	})
	v1.GET("/orders", func(c *gin.Context) {
		u.mu.Lock()
		defer u.mu.Unlock()
		envelope(c, http.StatusOK, u.orders)
	})
	v1.POST("/orders", func(c *gin.Context) {
		var req api.CreateOrdersRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failure(c, http.StatusBadRequest, err.Error())
			return
		}
		u.mu.Lock()
		defer u.mu.Unlock()
		u.idempotencyKeys = append(u.idempotencyKeys, c.GetHeader("Idempotency-Key"))
		created := make([]models.Order, 0, len(req.Orders))
		for _, o := range req.Orders {
			order := models.Order{
				ID:         "o" + o.ItemID,
				SessionID:  o.SessionID,
				ItemID:     o.ItemID,
				Quantity:   o.Quantity,
				UnitPrice:  o.UnitPrice,
				Total:      o.UnitPrice.Mul(decimal.NewFromInt(int64(o.Quantity))),
				PrepStatus: models.PrepStatusQueued,
			}
			created = append(created, order)
			u.orders = append(u.orders, order)
		}
		envelope(c, http.StatusCreated, created)
	})
	v1.GET("/items/:id", func(c *gin.Context) {
		if c.Param("id") != "burger" {
			failure(c, http.StatusNotFound, "Item not found")
			return
		}
		envelope(c, http.StatusOK, models.MenuItem{
			ID:          "burger",
			Name:        "Smash Burger",
			Price:       decimal.NewFromInt(900),
			IsAvailable: true,
			Customizations: []models.CustomizationRule{
				{Name: "Doneness", Min: 1, Max: 1, Options: []models.SelectedCustomization{
					{Name: "medium", Price: decimal.Zero}, {Name: "well", Price: decimal.Zero},
				}},
				{Name: "Extras", Min: 0, Max: 2, Options: []models.SelectedCustomization{
					{Name: "cheddar", Price: decimal.NewFromInt(100)}, {Name: "bacon", Price: decimal.NewFromInt(200)},
				}},
			},
		})
	})
	v1.POST("/auth/logout", func(c *gin.Context) { envelope(c, http.StatusOK, nil) })
	return r
}

type fixture struct {
	up     *upstream
	server *Server
	carts  *cart.Manager
	store  *storage.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	up := &upstream{session: &models.TableSession{
		ID: "s1", RestaurantID: "r1", TableNumber: 4, Status: models.SessionStatusActive,
	}}
	backend := httptest.NewServer(up.router())
	t.Cleanup(backend.Close)

	log := logging.Discard()
	redirect := auth.NewRedirector()
	client := api.New(backend.URL, api.WithLogger(log), api.WithNavigator(redirect))
	client.SetSignOut(auth.NewSession(client, auth.WithLogger(log)))

	qc := cache.New(cache.WithLogger(log), cache.WithStaleTime(time.Minute))
	store := storage.NewMemoryStore()
	carts := cart.NewManager(store, cart.WithLogger(log))

	srv := New(Deps{
		View:     session.NewView(client, qc, session.WithLogger(log)),
		Carts:    carts,
		Checkout: checkout.NewService(client, qc, nil, log),
		Items:    dashboard.NewService(client, qc, nil, log),
		Redirect: redirect,
	}, Config{PollInterval: 20 * time.Millisecond}, log)

	return &fixture{up: up, server: srv, carts: carts, store: store}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, api.Envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.server.Router().ServeHTTP(w, req)

	var env api.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func decode[T any](t *testing.T, env api.Envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

const base = "/r/casa-lola/t/4"

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w, env := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
}

func TestSessionSnapshot(t *testing.T) {
	f := newFixture(t)
	f.up.orders = []models.Order{
		{ID: "o1", Total: decimal.NewFromInt(500), PrepStatus: models.PrepStatusQueued},
		{ID: "o2", Total: decimal.NewFromInt(300), PrepStatus: models.PrepStatusCancelled},
	}

	w, env := f.do(t, http.MethodGet, base+"/session", nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decode[session.Snapshot](t, env)
	assert.True(t, snap.Started)
	assert.True(t, snap.RunningTotal.Equal(decimal.NewFromInt(500)))
	assert.True(t, snap.CanRequestBill)
}

func TestBadTable(t *testing.T) {
	f := newFixture(t)
	w, env := f.do(t, http.MethodGet, "/r/casa-lola/t/zero/session", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "bad_table", env.Error.Code)
}

func TestUnknownRestaurantPassesThrough(t *testing.T) {
	f := newFixture(t)
	w, env := f.do(t, http.MethodGet, "/r/nowhere/t/4/session", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Restaurant not found", env.Error.Message)
}

func TestTableWithoutSession(t *testing.T) {
	f := newFixture(t)
	w, env := f.do(t, http.MethodGet, "/r/casa-lola/t/9/session", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[session.Snapshot](t, env).Started)

	w, env = f.do(t, http.MethodGet, "/r/casa-lola/t/9/cart?menu=m1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "no_session", env.Error.Code)
}

func TestCartFlow(t *testing.T) {
	f := newFixture(t)
	add := AddItemRequest{
		MenuID:   "m1",
		ItemID:   "burger",
		Quantity: 2,
		Options:  map[string][]string{"Doneness": {"medium"}, "Extras": {"cheddar"}},
	}

	w, env := f.do(t, http.MethodPost, base+"/cart/items", add)
	require.Equal(t, http.StatusCreated, w.Code, env.Error)
	view := decode[CartView](t, env)
	require.Len(t, view.Items, 1)
	assert.True(t, view.Items[0].Price.Equal(decimal.NewFromInt(1000)))
	assert.True(t, view.TotalValue.Equal(decimal.NewFromInt(2000)))

	add.Quantity = 1
	add.Options = map[string][]string{"Doneness": {"well"}}
	_, env = f.do(t, http.MethodPost, base+"/cart/items", add)
	view = decode[CartView](t, env)
	require.Len(t, view.Items, 1, "same item merges")
	assert.Equal(t, 3, view.NumberOfItems)

	_, env = f.do(t, http.MethodPost, base+"/cart/items/0/decrement?menu=m1", nil)
	assert.Equal(t, 2, decode[CartView](t, env).NumberOfItems)

	w, env = f.do(t, http.MethodPost, base+"/cart/items/5/increment?menu=m1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "no_line", env.Error.Code)

	_, ok, err := f.store.Get(cart.Key{RestaurantSlug: "casa-lola", SessionID: "s1", MenuID: "m1"}.String())
	require.NoError(t, err)
	assert.True(t, ok, "cart persisted under its key")

	_, env = f.do(t, http.MethodDelete, base+"/cart?menu=m1", nil)
	assert.Zero(t, decode[CartView](t, env).NumberOfItems)
}

func TestAddItemValidation(t *testing.T) {
	f := newFixture(t)

	w, env := f.do(t, http.MethodPost, base+"/cart/items", gin.H{"itemId": "burger", "quantity": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", env.Error.Code)

	w, env = f.do(t, http.MethodPost, base+"/cart/items", AddItemRequest{
		MenuID: "m1", ItemID: "burger", Quantity: 1,
		Options: map[string][]string{"Extras": {"cheddar"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_options", env.Error.Code)

	w, _ = f.do(t, http.MethodPost, base+"/cart/items", AddItemRequest{MenuID: "m1", ItemID: "tofu", Quantity: 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckout(t *testing.T) {
	f := newFixture(t)
	_, _ = f.do(t, http.MethodPost, base+"/cart/items", AddItemRequest{
		MenuID: "m1", ItemID: "burger", Quantity: 2,
		Options: map[string][]string{"Doneness": {"medium"}},
	})

	w, env := f.do(t, http.MethodPost, base+"/checkout", CheckoutRequest{MenuID: "m1", CustomerName: "Ana"})
	require.Equal(t, http.StatusCreated, w.Code, env.Error)
	orders := decode[[]models.Order](t, env)
	require.Len(t, orders, 1)
	assert.Equal(t, 2, orders[0].Quantity)
	f.up.mu.Lock()
	keys := append([]string(nil), f.up.idempotencyKeys...)
	f.up.mu.Unlock()
	require.Len(t, keys, 1)
	assert.NotEmpty(t, keys[0])

	_, env = f.do(t, http.MethodGet, base+"/cart?menu=m1", nil)
	view := decode[CartView](t, env)
	assert.Zero(t, view.NumberOfItems)
	assert.Equal(t, "Ana", view.CustomerName)

	_, env = f.do(t, http.MethodGet, base+"/session", nil)
	snap := decode[session.Snapshot](t, env)
	require.Len(t, snap.Orders, 1, "orders refetched after checkout")
	assert.True(t, snap.RunningTotal.Equal(decimal.NewFromInt(1800)))

	w, env = f.do(t, http.MethodPost, base+"/checkout", CheckoutRequest{MenuID: "m1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "empty_cart", env.Error.Code)
}

func TestRequestBill(t *testing.T) {
	f := newFixture(t)

	w, env := f.do(t, http.MethodPost, base+"/session/bill", nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decode[session.Snapshot](t, env)
	assert.True(t, snap.BillRequested)
	assert.False(t, snap.CanRequestBill)

	w, env = f.do(t, http.MethodPost, base+"/session/bill", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "bill_unavailable", env.Error.Code)
}

func TestUnauthorizedUpstream(t *testing.T) {
	f := newFixture(t)
	f.up.unauthorized = true

	w, env := f.do(t, http.MethodGet, base+"/session", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", env.Error.Code)
	assert.Equal(t, "/auth/login", w.Header().Get("X-Redirect-To"))
}

func TestWebSocketPushesSnapshots(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.server.Router())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + base + "/ws"
	conn, _, err := websocket.DefaultDialer.DialContext(context.Background(), url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var snap session.Snapshot
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, "s1", snap.SessionID())

	f.up.mu.Lock()
	f.up.session.Status = models.SessionStatusNeedsBill
	f.up.mu.Unlock()

	for snap.Status.Label != "Bill requested" {
		require.NoError(t, conn.ReadJSON(&snap))
	}
	assert.True(t, snap.BillRequested)
}
