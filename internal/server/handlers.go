package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"neembleeat/internal/cart"
	"neembleeat/internal/models"
	"neembleeat/internal/session"
)

const (
	ctxSlug  = "slug"
	ctxTable = "table"
)

// AddItemRequest adds a menu item with chosen options to the cart
type AddItemRequest struct {
	MenuID   string              `json:"menuId" binding:"required"`
	ItemID   string              `json:"itemId" binding:"required"`
	Quantity int                 `json:"quantity" binding:"required,min=1,max=99"`
	Options  map[string][]string `json:"options"`
	Notes    string              `json:"notes" binding:"max=280"`
}

// CheckoutRequest submits the cart of one menu
type CheckoutRequest struct {
	MenuID       string `json:"menuId" binding:"required"`
	CustomerName string `json:"customerName" binding:"max=60"`
}

// CartView is the cart with its derived values
type CartView struct {
	Items         []models.CartItem `json:"items"`
	NumberOfItems int               `json:"numberOfItems"`
	TotalValue    decimal.Decimal   `json:"totalValue"`
	CustomerName  string            `json:"customerName,omitempty"`
}

func (s *Server) tableParams(c *gin.Context) {
	table, err := strconv.Atoi(c.Param("table"))
	if err != nil || table < 1 {
		fail(c, http.StatusBadRequest, "bad_table", "Table number must be a positive integer.")
		return
	}
	c.Set(ctxSlug, c.Param("slug"))
	c.Set(ctxTable, table)
	c.Next()
}

func (s *Server) handleSession(c *gin.Context) {
	snap, err := s.view.Load(c.Request.Context(), c.GetString(ctxSlug), c.GetInt(ctxTable))
	if err != nil {
		s.failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "", snap)
}

func (s *Server) handleRequestBill(c *gin.Context) {
	snap, err := s.view.RequestBill(c.Request.Context(), c.GetString(ctxSlug), c.GetInt(ctxTable))
	if err != nil {
		s.failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "A waiter will bring the bill shortly", snap)
}

// openCart resolves the table's session and returns the cart of the
// menu named by menuID.
func (s *Server) openCart(c *gin.Context, menuID string) (*cart.Cart, *session.Snapshot, bool) {
	if menuID == "" {
		fail(c, http.StatusBadRequest, "bad_menu", "A menu is required.")
		return nil, nil, false
	}
	snap, err := s.view.Load(c.Request.Context(), c.GetString(ctxSlug), c.GetInt(ctxTable))
	if err != nil {
		s.failErr(c, err)
		return nil, nil, false
	}
	if !snap.Started {
		s.failErr(c, session.ErrNoSession)
		return nil, nil, false
	}
	return s.carts.Open(cart.Key{
		RestaurantSlug: c.GetString(ctxSlug),
		SessionID:      snap.SessionID(),
		MenuID:         menuID,
	}), snap, true
}

func (s *Server) cartView(cr *cart.Cart) CartView {
	return CartView{
		Items:         cr.Items(),
		NumberOfItems: cr.NumberOfItems(),
		TotalValue:    cr.TotalValue(),
		CustomerName:  s.carts.CustomerName(cr.Key().RestaurantSlug),
	}
}

func (s *Server) handleGetCart(c *gin.Context) {
	cr, _, found := s.openCart(c, c.Query("menu"))
	if !found {
		return
	}
	ok(c, http.StatusOK, "", s.cartView(cr))
}

func (s *Server) handleAddItem(c *gin.Context) {
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	cr, _, found := s.openCart(c, req.MenuID)
	if !found {
		return
	}

	item, err := s.items.Item(c.Request.Context(), req.ItemID)
	if err != nil {
		s.failErr(c, err)
		return
	}
	if !item.IsAvailable {
		fail(c, http.StatusConflict, "unavailable", item.Name+" is not available right now.")
		return
	}
	customisations, err := item.ValidateSelection(req.Options)
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid_options", err.Error())
		return
	}

	cr.Add(models.CartItem{
		ID:              item.ID,
		Name:            item.Name,
		Price:           models.UnitPrice(item.Price, customisations),
		Quantity:        req.Quantity,
		Image:           item.Image,
		AdditionalNotes: req.Notes,
		Customisations:  customisations,
	})
	ok(c, http.StatusCreated, item.Name+" added to your cart", s.cartView(cr))
}

func (s *Server) lineOp(op func(cr *cart.Cart, index int) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		index, err := strconv.Atoi(c.Param("index"))
		if err != nil {
			fail(c, http.StatusBadRequest, "bad_index", "Line index must be an integer.")
			return
		}
		cr, _, found := s.openCart(c, c.Query("menu"))
		if !found {
			return
		}
		if !op(cr, index) {
			fail(c, http.StatusNotFound, "no_line", "That cart line does not exist.")
			return
		}
		ok(c, http.StatusOK, "", s.cartView(cr))
	}
}

func (s *Server) handleIncrement(c *gin.Context) {
	s.lineOp((*cart.Cart).Increment)(c)
}

func (s *Server) handleDecrement(c *gin.Context) {
	s.lineOp((*cart.Cart).Decrement)(c)
}

func (s *Server) handleDeleteItem(c *gin.Context) {
	s.lineOp((*cart.Cart).Delete)(c)
}

func (s *Server) handleClearCart(c *gin.Context) {
	cr, _, found := s.openCart(c, c.Query("menu"))
	if !found {
		return
	}
	cr.Clear()
	ok(c, http.StatusOK, "Cart cleared", s.cartView(cr))
}

func (s *Server) handleCheckout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	cr, snap, found := s.openCart(c, req.MenuID)
	if !found {
		return
	}

	slug := c.GetString(ctxSlug)
	name := req.CustomerName
	if name == "" {
		name = s.carts.CustomerName(slug)
	} else if err := s.carts.SetCustomerName(slug, name); err != nil {
		s.log.WithError(err).Warn("could not remember customer name")
	}

	orders, err := s.checkout.Submit(c.Request.Context(), cr, snap.Session, name)
	if err != nil {
		s.failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, "Your order is on its way to the kitchen", orders)
}
