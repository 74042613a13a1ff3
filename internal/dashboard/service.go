package dashboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"neembleeat/internal/api"
	"neembleeat/internal/cache"
	"neembleeat/internal/models"
	"neembleeat/internal/notify"
)

// Backend is the operator part of the API
type Backend interface {
	ListCategories(ctx context.Context, restaurantID string) ([]models.Category, error)
	DeleteCategory(ctx context.Context, categoryID string) error
	ListMenus(ctx context.Context, restaurantID string) ([]models.Menu, error)
	GetMenu(ctx context.Context, menuID string) (*models.Menu, error)
	ListItems(ctx context.Context, categoryID string) ([]models.MenuItem, error)
	GetItem(ctx context.Context, itemID string) (*models.MenuItem, error)
	ListStockItems(ctx context.Context, restaurantID string) ([]models.StockItem, error)
	CreateMovement(ctx context.Context, m models.Movement) (*models.Movement, error)
	ListSuppliers(ctx context.Context, restaurantID string) ([]models.Supplier, error)
	ListBookings(ctx context.Context, restaurantID string, r models.DateRange) ([]models.Booking, error)
	ListInvoices(ctx context.Context, restaurantID string, page int) ([]models.Invoice, *api.Meta, error)
	GetSalesSummary(ctx context.Context, restaurantID string, r models.DateRange) (*models.SalesSummary, error)
}

// InvoicePage is one page of invoices
type InvoicePage struct {
	Invoices []models.Invoice `json:"invoices"`
	Meta     *api.Meta        `json:"meta,omitempty"`
}

// Service serves dashboard reads through the query cache and keeps it
// consistent after writes.
type Service struct {
	backend  Backend
	cache    *cache.Cache
	notifier notify.Notifier
	log      logrus.FieldLogger
}

// NewService creates a dashboard service
func NewService(backend Backend, c *cache.Cache, n notify.Notifier, log logrus.FieldLogger) *Service {
	if n == nil {
		n = notify.Nop{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{backend: backend, cache: c, notifier: n, log: log}
}

func (s *Service) Categories(ctx context.Context, restaurantID string) ([]models.Category, error) {
	return cache.Query(ctx, s.cache, cache.Categories(restaurantID), func(ctx context.Context) ([]models.Category, error) {
		return s.backend.ListCategories(ctx, restaurantID)
	})
}

// DeleteCategory removes the category from the cached list at once and
// puts it back if the backend refuses.
func (s *Service) DeleteCategory(ctx context.Context, restaurantID, categoryID string) error {
	key := cache.Categories(restaurantID)
	rollback := cache.SetQueryData(s.cache, key, func(old []models.Category, _ bool) []models.Category {
		out := make([]models.Category, 0, len(old))
		for _, c := range old {
			if c.ID != categoryID {
				out = append(out, c)
			}
		}
		return out
	})

	err := notify.Promise(ctx, s.notifier, notify.Messages{
		Loading:   "Deleting category...",
		Success:   "Category deleted",
		ErrorText: errorText,
	}, func(ctx context.Context) error {
		_, err := cache.Mutate(ctx, s.cache, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.backend.DeleteCategory(ctx, categoryID)
		}, key, cache.Menus(restaurantID))
		return err
	})
	if err != nil {
		rollback()
		s.log.WithFields(logrus.Fields{"category": categoryID}).WithError(err).Warn("category delete failed")
		return err
	}
	return nil
}

func (s *Service) Menus(ctx context.Context, restaurantID string) ([]models.Menu, error) {
	return cache.Query(ctx, s.cache, cache.Menus(restaurantID), func(ctx context.Context) ([]models.Menu, error) {
		return s.backend.ListMenus(ctx, restaurantID)
	})
}

func (s *Service) Menu(ctx context.Context, menuID string) (*models.Menu, error) {
	return cache.Query(ctx, s.cache, cache.Menu(menuID), func(ctx context.Context) (*models.Menu, error) {
		return s.backend.GetMenu(ctx, menuID)
	})
}

func (s *Service) Items(ctx context.Context, categoryID string) ([]models.MenuItem, error) {
	return cache.Query(ctx, s.cache, cache.Items(categoryID), func(ctx context.Context) ([]models.MenuItem, error) {
		return s.backend.ListItems(ctx, categoryID)
	})
}

func (s *Service) Item(ctx context.Context, itemID string) (*models.MenuItem, error) {
	return cache.Query(ctx, s.cache, cache.Item(itemID), func(ctx context.Context) (*models.MenuItem, error) {
		return s.backend.GetItem(ctx, itemID)
	})
}

func (s *Service) StockItems(ctx context.Context, restaurantID string) ([]models.StockItem, error) {
	return cache.Query(ctx, s.cache, cache.StockItems(restaurantID), func(ctx context.Context) ([]models.StockItem, error) {
		return s.backend.ListStockItems(ctx, restaurantID)
	})
}

// LowStock returns the stock items at or below their minimum level
func (s *Service) LowStock(ctx context.Context, restaurantID string) ([]models.StockItem, error) {
	items, err := s.StockItems(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	low := []models.StockItem{}
	for i := range items {
		if items[i].IsLow() {
			low = append(low, items[i])
		}
	}
	return low, nil
}

// CreateMovement records a stock movement and refetches the stock list
func (s *Service) CreateMovement(ctx context.Context, restaurantID string, m models.Movement) (*models.Movement, error) {
	if err := validateMovement(m); err != nil {
		return nil, err
	}

	var created *models.Movement
	err := notify.Promise(ctx, s.notifier, notify.Messages{
		Loading:   "Saving movement...",
		Success:   "Stock updated",
		ErrorText: errorText,
	}, func(ctx context.Context) error {
		var err error
		created, err = cache.Mutate(ctx, s.cache, func(ctx context.Context) (*models.Movement, error) {
			return s.backend.CreateMovement(ctx, m)
		}, cache.StockItems(restaurantID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) Suppliers(ctx context.Context, restaurantID string) ([]models.Supplier, error) {
	return cache.Query(ctx, s.cache, cache.Suppliers(restaurantID), func(ctx context.Context) ([]models.Supplier, error) {
		return s.backend.ListSuppliers(ctx, restaurantID)
	})
}

func (s *Service) Bookings(ctx context.Context, restaurantID string, r models.DateRange) ([]models.Booking, error) {
	if err := validateRange(r); err != nil {
		return nil, err
	}
	return cache.Query(ctx, s.cache, cache.Bookings(restaurantID, r), func(ctx context.Context) ([]models.Booking, error) {
		return s.backend.ListBookings(ctx, restaurantID, r)
	})
}

func (s *Service) Invoices(ctx context.Context, restaurantID string, page int) (*InvoicePage, error) {
	return cache.Query(ctx, s.cache, cache.Invoices(restaurantID, page), func(ctx context.Context) (*InvoicePage, error) {
		invoices, meta, err := s.backend.ListInvoices(ctx, restaurantID, page)
		if err != nil {
			return nil, err
		}
		return &InvoicePage{Invoices: invoices, Meta: meta}, nil
	})
}

func (s *Service) SalesSummary(ctx context.Context, restaurantID string, r models.DateRange) (*models.SalesSummary, error) {
	if err := validateRange(r); err != nil {
		return nil, err
	}
	return cache.Query(ctx, s.cache, cache.SalesSummary(restaurantID, r), func(ctx context.Context) (*models.SalesSummary, error) {
		return s.backend.GetSalesSummary(ctx, restaurantID, r)
	})
}

func validateMovement(m models.Movement) error {
	if m.StockItemID == "" {
		return errors.New("dashboard: movement needs a stock item")
	}
	switch m.Type {
	case models.MovementIn, models.MovementOut:
		if !m.Quantity.IsPositive() {
			return fmt.Errorf("dashboard: %s movement quantity must be positive", m.Type)
		}
	case models.MovementAdjustment:
	default:
		return fmt.Errorf("dashboard: unknown movement type %q", m.Type)
	}
	return nil
}

func validateRange(r models.DateRange) error {
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return fmt.Errorf("dashboard: range ends before it starts")
	}
	return nil
}

func errorText(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return api.DefaultErrorMessage
}
