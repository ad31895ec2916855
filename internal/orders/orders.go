package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/shopspring/decimal"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/repository"
	"go.uber.org/zap"
)

// Publisher receives order events once the change is committed.
type Publisher interface {
	Publish(topic string, args ...interface{})
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, ...interface{}) {}

// LineInput is one requested line of a new order.
type LineInput struct {
	ProductID int64
	Quantity  int
}

type PlaceInput struct {
	Items           []LineInput
	ShippingAddress string
	Notes           string
}

func (in *PlaceInput) Validate() error {
	in.ShippingAddress = strings.TrimSpace(in.ShippingAddress)
	in.Notes = strings.TrimSpace(in.Notes)

	var verr domain.ValidationError
	if len(in.Items) == 0 {
		verr.Add("items", "an order needs at least one item")
	}
	for i, it := range in.Items {
		if it.ProductID == 0 {
			verr.Add(fmt.Sprintf("items[%d].product_id", i), "product id is required")
		}
		if it.Quantity <= 0 {
			verr.Add(fmt.Sprintf("items[%d].quantity", i), "quantity must be greater than zero")
		}
	}
	switch n := len([]rune(in.ShippingAddress)); {
	case n == 0:
		verr.Add("shipping_address", "shipping address is required")
	case n > 500:
		verr.Add("shipping_address", "shipping address must be at most 500 characters")
	}
	if len([]rune(in.Notes)) > 1000 {
		verr.Add("notes", "notes must be at most 1000 characters")
	}
	return verr.Err()
}

// ListFilter narrows an order listing. Since accepts any layout dateparse understands.
type ListFilter struct {
	Status string
	Since  string
	Limit  int
}

func (f ListFilter) query() (repository.OrderQuery, error) {
	var q repository.OrderQuery
	var verr domain.ValidationError
	if s := strings.TrimSpace(f.Status); s != "" {
		st, ok := domain.ParseOrderStatus(s)
		if !ok {
			verr.Add("status", "unknown order status %q", s)
		}
		q.Status = st
	}
	if s := strings.TrimSpace(f.Since); s != "" {
		t, err := dateparse.ParseAny(s)
		if err != nil {
			verr.Add("since", "cannot parse date %q", s)
		}
		q.Since = t
	}
	if f.Limit < 0 {
		verr.Add("limit", "limit cannot be negative")
	}
	q.Limit = f.Limit
	return q, verr.Err()
}

// Workflow applies the order business rules on top of the store.
type Workflow struct {
	store repository.Store
	bus   Publisher
}

func NewWorkflow(store repository.Store, bus Publisher) *Workflow {
	if bus == nil {
		bus = nopPublisher{}
	}
	return &Workflow{store: store, bus: bus}
}

// Place reserves stock for every line and records a Pending order. Nothing is
// written unless every line can be satisfied.
func (w *Workflow) Place(ctx context.Context, userID int64, in PlaceInput) (*domain.OrderView, error) {
	if userID == 0 {
		return nil, domain.ErrUnauthorized
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var order *domain.Order
	err := w.store.Transaction(ctx, func(tx repository.Store) error {
		o := &domain.Order{
			UserID:          userID,
			Status:          domain.OrderPending,
			ShippingAddress: in.ShippingAddress,
			Notes:           in.Notes,
			TotalAmount:     decimal.Zero,
			Items:           make([]domain.OrderItem, 0, len(in.Items)),
		}
		requested := make(map[int64]int, len(in.Items))
		for _, line := range in.Items {
			p, err := tx.Products().GetByID(ctx, line.ProductID)
			if err != nil {
				return err
			}
			if !p.IsActive {
				return fmt.Errorf("%s: %w", p.Name, domain.ErrProductUnavailable)
			}
			requested[p.ID] += line.Quantity
			if requested[p.ID] > p.StockQuantity {
				return &domain.StockError{ProductID: p.ID, Name: p.Name, Requested: requested[p.ID], Available: p.StockQuantity}
			}
			item := domain.OrderItem{
				ProductID:   p.ID,
				ProductName: p.Name,
				Quantity:    line.Quantity,
				UnitPrice:   p.Price,
			}
			o.TotalAmount = o.TotalAmount.Add(item.LineTotal())
			o.Items = append(o.Items, item)
		}
		// rows are locked in product id order so concurrent orders cannot deadlock
		for _, it := range byProduct(o.Items) {
			if _, err := tx.Products().AdjustStock(ctx, it.ProductID, -it.Quantity); err != nil {
				return err
			}
		}
		now := time.Now()
		o.CreatedAt = now
		o.UpdatedAt = now
		if err := tx.Orders().Create(ctx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := order.View()
	zap.L().Info("order placed",
		zap.Int64("order", order.ID),
		zap.Int64("user", userID),
		zap.String("total", order.TotalAmount.StringFixed(2)))
	w.publish(domain.TopicOrderPlaced, order)
	return &view, nil
}

// byProduct returns a copy of items sorted by product id.
func byProduct(items []domain.OrderItem) []domain.OrderItem {
	sorted := make([]domain.OrderItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ProductID < sorted[j].ProductID
	})
	return sorted
}

// Cancel returns the reserved stock of a Pending or Processing order owned by userID.
func (w *Workflow) Cancel(ctx context.Context, userID, orderID int64) (*domain.OrderView, error) {
	if userID == 0 {
		return nil, domain.ErrUnauthorized
	}
	return w.cancel(ctx, func(tx repository.Store) (*domain.Order, error) {
		return tx.Orders().GetForUser(ctx, userID, orderID)
	})
}

func (w *Workflow) cancel(ctx context.Context, load func(tx repository.Store) (*domain.Order, error)) (*domain.OrderView, error) {
	var order *domain.Order
	err := w.store.Transaction(ctx, func(tx repository.Store) error {
		o, err := load(tx)
		if err != nil {
			return err
		}
		if !o.Status.Cancellable() {
			return fmt.Errorf("order %d is %s: %w", o.ID, o.Status, domain.ErrInvalidTransition)
		}
		for _, it := range byProduct(o.Items) {
			_, err := tx.Products().AdjustStock(ctx, it.ProductID, it.Quantity)
			if errors.Is(err, domain.ErrNotFound) {
				zap.L().Warn("cancel: product no longer exists, stock not restored",
					zap.Int64("order", o.ID),
					zap.Int64("product", it.ProductID),
					zap.String("name", it.ProductName),
					zap.Int("quantity", it.Quantity))
				continue
			}
			if err != nil {
				return err
			}
		}
		if err := tx.Orders().UpdateStatus(ctx, o.ID, o.Status, domain.OrderCancelled); err != nil {
			return err
		}
		o.Status = domain.OrderCancelled
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := order.View()
	zap.L().Info("order cancelled", zap.Int64("order", order.ID), zap.Int64("user", order.UserID))
	w.publish(domain.TopicOrderCancelled, order)
	return &view, nil
}

// Get returns one of the user's orders.
func (w *Workflow) Get(ctx context.Context, userID, orderID int64) (*domain.OrderView, error) {
	if userID == 0 {
		return nil, domain.ErrUnauthorized
	}
	o, err := w.store.Orders().GetForUser(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	view := o.View()
	return &view, nil
}

// List returns the user's orders, newest first.
func (w *Workflow) List(ctx context.Context, userID int64, f ListFilter) ([]domain.OrderView, error) {
	if userID == 0 {
		return nil, domain.ErrUnauthorized
	}
	q, err := f.query()
	if err != nil {
		return nil, err
	}
	q.UserID = userID
	return w.list(ctx, q)
}

// ListAll returns orders of every user.
func (w *Workflow) ListAll(ctx context.Context, f ListFilter) ([]domain.OrderView, error) {
	q, err := f.query()
	if err != nil {
		return nil, err
	}
	return w.list(ctx, q)
}

func (w *Workflow) list(ctx context.Context, q repository.OrderQuery) ([]domain.OrderView, error) {
	rows, err := w.store.Orders().List(ctx, q)
	if err != nil {
		return nil, err
	}
	views := make([]domain.OrderView, 0, len(rows))
	for i := range rows {
		views = append(views, rows[i].View())
	}
	return views, nil
}

// UpdateStatus moves any order forward along the state machine. Cancelled goes
// through the cancel path so stock is restored.
func (w *Workflow) UpdateStatus(ctx context.Context, orderID int64, next domain.OrderStatus) (*domain.OrderView, error) {
	if next == domain.OrderCancelled {
		return w.cancel(ctx, func(tx repository.Store) (*domain.Order, error) {
			return tx.Orders().GetByID(ctx, orderID)
		})
	}

	var order *domain.Order
	err := w.store.Transaction(ctx, func(tx repository.Store) error {
		o, err := tx.Orders().GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.Status.CanTransition(next) {
			return fmt.Errorf("order %d from %s to %s: %w", o.ID, o.Status, next, domain.ErrInvalidTransition)
		}
		if err := tx.Orders().UpdateStatus(ctx, o.ID, o.Status, next); err != nil {
			return err
		}
		o.Status = next
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := order.View()
	zap.L().Info("order status changed", zap.Int64("order", orderID), zap.String("status", string(next)))
	w.publish(domain.TopicOrderStatus, order)
	return &view, nil
}

func (w *Workflow) publish(topic string, o *domain.Order) {
	v := o.View()
	w.bus.Publish(topic, domain.OrderEvent{
		OrderID: o.ID,
		UserID:  o.UserID,
		Status:  o.Status,
		Total:   o.TotalAmount,
		Items:   v.Items,
		At:      time.Now(),
	})
}
