package checkout

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"neembleeat/internal/api"
	"neembleeat/internal/cache"
	"neembleeat/internal/cart"
	"neembleeat/internal/models"
	"neembleeat/internal/notify"
)

var (
	// ErrEmptyCart is returned when there is nothing to submit
	ErrEmptyCart = errors.New("checkout: cart is empty")

	// ErrSessionEnded is returned when the session no longer takes orders
	ErrSessionEnded = errors.New("checkout: session is not open")
)

// OrderCreator submits orders to the backend
type OrderCreator interface {
	CreateOrders(ctx context.Context, idempotencyKey string, orders []models.NewOrder) ([]models.Order, error)
}

// Service turns carts into orders
type Service struct {
	orders   OrderCreator
	cache    *cache.Cache
	notifier notify.Notifier
	log      logrus.FieldLogger
}

// NewService creates a checkout service
func NewService(orders OrderCreator, c *cache.Cache, n notify.Notifier, log logrus.FieldLogger) *Service {
	if n == nil {
		n = notify.Nop{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{orders: orders, cache: c, notifier: n, log: log}
}

// Submit sends every line of c as an order in sess. On success the
// submitted lines are taken out of the cart and the session's orders are
// refetched on next read. Lines added while the request was in flight
// stay in the cart. On failure the cart is left as it was so the diner
// can retry.
func (s *Service) Submit(ctx context.Context, c *cart.Cart, sess *models.TableSession, customerName string) ([]models.Order, error) {
	if sess == nil || sess.Status.IsTerminal() {
		return nil, ErrSessionEnded
	}
	items := c.Items()
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	key := c.Key()
	orders := make([]models.NewOrder, 0, len(items))
	for _, it := range items {
		orders = append(orders, models.NewOrder{
			SessionID:      sess.ID,
			MenuID:         key.MenuID,
			ItemID:         it.ID,
			Quantity:       it.Quantity,
			UnitPrice:      it.Price,
			Customisations: it.Customisations,
			AdditionalNote: it.AdditionalNotes,
			TableNumber:    sess.TableNumber,
			CustomerName:   customerName,
		})
	}

	idempotencyKey := uuid.NewString()
	log := s.log.WithFields(logrus.Fields{
		"session":         sess.ID,
		"lines":           len(orders),
		"idempotency_key": idempotencyKey,
	})

	var created []models.Order
	err := notify.Promise(ctx, s.notifier, notify.Messages{
		Loading:   "Sending your order...",
		Success:   "Your order is on its way to the kitchen",
		ErrorText: errorText,
	}, func(ctx context.Context) error {
		var err error
		created, err = cache.Mutate(ctx, s.cache, func(ctx context.Context) ([]models.Order, error) {
			return s.orders.CreateOrders(ctx, idempotencyKey, orders)
		}, cache.SessionOrders(sess.ID))
		return err
	})
	if err != nil {
		log.WithError(err).Warn("order submission failed, cart kept")
		return nil, err
	}

	c.RemoveSubmitted(items)
	log.WithField("orders", len(created)).Info("orders submitted")
	return created, nil
}

func errorText(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return "Your order could not be sent. Please try again."
}
