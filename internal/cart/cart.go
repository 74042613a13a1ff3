package cart

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"neembleeat/internal/models"
	"neembleeat/internal/monitoring"
	"neembleeat/internal/storage"
)

// MergePolicy decides when an added item joins an existing line.
type MergePolicy int

const (
	// MergeByItem merges on item id alone. The merged line takes the
	// customisations of the most recent add.
	MergeByItem MergePolicy = iota
	// MergeBySignature merges only when item id and chosen
	// customisations both match.
	MergeBySignature
)

// ParseMergePolicy maps the config value to a policy
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch s {
	case "", "item":
		return MergeByItem, nil
	case "signature":
		return MergeBySignature, nil
	}
	return MergeByItem, fmt.Errorf("unknown merge policy: %s", s)
}

// Key scopes a cart to one table session and menu of a restaurant.
type Key struct {
	RestaurantSlug string
	SessionID      string
	MenuID         string
}

// String returns the storage key for the cart
func (k Key) String() string {
	return fmt.Sprintf("neembleeat_cart_%s_%s_%s", k.RestaurantSlug, k.SessionID, k.MenuID)
}

// Cart is a diner's pre-submission item list. Every mutation is written
// through to the store before it returns; write failures are logged and
// otherwise ignored.
type Cart struct {
	key     Key
	store   storage.Store
	policy  MergePolicy
	log     logrus.FieldLogger
	metrics *monitoring.Metrics

	mu    sync.Mutex
	items []models.CartItem
}

// Option configures a Cart
type Option func(*Cart)

// WithMergePolicy overrides the default MergeByItem policy
func WithMergePolicy(p MergePolicy) Option {
	return func(c *Cart) { c.policy = p }
}

// WithLogger sets the logger used for storage failures
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Cart) { c.log = l }
}

// WithMetrics records mutations and storage failures
func WithMetrics(m *monitoring.Metrics) Option {
	return func(c *Cart) { c.metrics = m }
}

// Load reads the cart stored under key. A missing or unreadable payload
// yields an empty cart.
func Load(store storage.Store, key Key, opts ...Option) *Cart {
	c := &Cart{
		key:   key,
		store: store,
		log:   logrus.StandardLogger(),
		items: []models.CartItem{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithField("cart", key.String())

	raw, ok, err := store.Get(key.String())
	if err != nil {
		c.log.WithError(err).Warn("cart read failed, starting empty")
		return c
	}
	if !ok || raw == "" {
		return c
	}
	var items []models.CartItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		c.log.WithError(err).Warn("stored cart is not valid JSON, starting empty")
		return c
	}
	if items != nil {
		c.items = items
	}
	return c
}

// Key returns the cart's scope
func (c *Cart) Key() Key {
	return c.key
}

// Add appends item or merges it into a matching line. Items with a
// non-positive quantity are ignored.
func (c *Cart) Add(item models.CartItem) {
	if item.Quantity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.match(item); i >= 0 {
		merged := item
		merged.Quantity = c.items[i].Quantity + item.Quantity
		c.items[i] = merged
	} else {
		c.items = append(c.items, item)
	}
	c.persist("add")
}

// Increment raises the quantity of line index by one. It reports false
// when index is out of range.
func (c *Cart) Increment(index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.inRange(index) {
		return false
	}
	c.items[index].Quantity++
	c.persist("increment")
	return true
}

// Decrement lowers the quantity of line index by one, removing the line
// when it reaches zero. It reports false when index is out of range.
func (c *Cart) Decrement(index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.inRange(index) {
		return false
	}
	if c.items[index].Quantity <= 1 {
		c.remove(index)
		c.persist("delete")
		return true
	}
	c.items[index].Quantity--
	c.persist("decrement")
	return true
}

// Delete removes line index. It reports false, and changes nothing,
// when index is out of range.
func (c *Cart) Delete(index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.inRange(index) {
		return false
	}
	c.remove(index)
	c.persist("delete")
	return true
}

// Clear empties the cart and persists the empty list.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = []models.CartItem{}
	c.persist("clear")
}

// RemoveSubmitted subtracts the quantities of submitted from the lines
// they match under the cart's merge policy, dropping lines that reach
// zero. Lines added or raised since submitted was read are kept.
func (c *Cart) RemoveSubmitted(submitted []models.CartItem) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, it := range submitted {
		i := c.match(it)
		if i < 0 {
			continue
		}
		if c.items[i].Quantity <= it.Quantity {
			c.remove(i)
			continue
		}
		c.items[i].Quantity -= it.Quantity
	}
	c.persist("remove_submitted")
}

// Purge empties the cart and removes its storage entry.
func (c *Cart) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = []models.CartItem{}
	if err := c.store.Delete(c.key.String()); err != nil {
		c.metrics.StorageError()
		c.log.WithError(err).Warn("cart purge failed")
	}
	c.metrics.CartMutation("purge")
}

// Items returns a copy of the current lines
func (c *Cart) Items() []models.CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.CartItem, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of lines
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// NumberOfItems returns the sum of quantities across all lines
func (c *Cart) NumberOfItems() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

// TotalValue returns the sum of price * quantity across all lines
func (c *Cart) TotalValue() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := decimal.Zero
	for _, it := range c.items {
		total = total.Add(it.LineTotal())
	}
	return total
}

func (c *Cart) match(item models.CartItem) int {
	for i, existing := range c.items {
		switch c.policy {
		case MergeBySignature:
			if existing.Signature() == item.Signature() {
				return i
			}
		default:
			if existing.ID == item.ID {
				return i
			}
		}
	}
	return -1
}

func (c *Cart) inRange(index int) bool {
	return index >= 0 && index < len(c.items)
}

func (c *Cart) remove(index int) {
	c.items = append(c.items[:index], c.items[index+1:]...)
}

// persist must be called with c.mu held.
func (c *Cart) persist(op string) {
	c.metrics.CartMutation(op)

	data, err := json.Marshal(c.items)
	if err != nil {
		c.metrics.StorageError()
		c.log.WithError(err).Warn("cart encode failed")
		return
	}
	if err := c.store.Set(c.key.String(), string(data)); err != nil {
		c.metrics.StorageError()
		c.log.WithError(err).Warn("cart write failed")
	}
}
