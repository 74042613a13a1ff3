package cart

import (
	"fmt"
	"sync"

	"neembleeat/internal/storage"
)

// Manager hands out one live Cart per key so concurrent callers share
// the same in-memory state instead of racing on load-modify-store.
type Manager struct {
	store storage.Store
	opts  []Option

	mu    sync.Mutex
	carts map[Key]*Cart
}

// NewManager creates a manager whose carts all use store and opts
func NewManager(store storage.Store, opts ...Option) *Manager {
	return &Manager{
		store: store,
		opts:  opts,
		carts: make(map[Key]*Cart),
	}
}

// Open returns the cart for key, loading it from the store on first use
func (m *Manager) Open(key Key) *Cart {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.carts[key]; ok {
		return c
	}
	c := Load(m.store, key, m.opts...)
	m.carts[key] = c
	return c
}

// PurgeSession drops every open cart of the session and removes their
// storage entries. Carts never opened through this manager are not seen.
func (m *Manager) PurgeSession(restaurantSlug, sessionID string) int {
	m.mu.Lock()
	var doomed []*Cart
	for k, c := range m.carts {
		if k.RestaurantSlug == restaurantSlug && k.SessionID == sessionID {
			doomed = append(doomed, c)
			delete(m.carts, k)
		}
	}
	m.mu.Unlock()

	for _, c := range doomed {
		c.Purge()
	}
	return len(doomed)
}

// CustomerNameKey is the storage key of the diner's display name
func CustomerNameKey(restaurantSlug string) string {
	return fmt.Sprintf("neembleeat_customer_name_%s", restaurantSlug)
}

// CustomerName returns the remembered display name, if any
func (m *Manager) CustomerName(restaurantSlug string) string {
	v, ok, err := m.store.Get(CustomerNameKey(restaurantSlug))
	if err != nil || !ok {
		return ""
	}
	return v
}

// SetCustomerName remembers the diner's display name
func (m *Manager) SetCustomerName(restaurantSlug, name string) error {
	return m.store.Set(CustomerNameKey(restaurantSlug), name)
}
