package orders

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/repository"
	"github.com/talkincode/storefront/internal/repository/repotest"
	"gorm.io/gorm"
)

type recorder struct {
	mu     sync.Mutex
	topics []string
	events []domain.OrderEvent
}

func (r *recorder) Publish(topic string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	if len(args) > 0 {
		if ev, ok := args[0].(domain.OrderEvent); ok {
			r.events = append(r.events, ev)
		}
	}
}

type WorkflowTestSuite struct {
	suite.Suite
	db  *gorm.DB
	bus *recorder
	wf  *Workflow
	ctx context.Context
}

func TestWorkflowTestSuite(t *testing.T) {
	suite.Run(t, new(WorkflowTestSuite))
}

func (s *WorkflowTestSuite) SetupTest() {
	s.db = repotest.NewDB(s.T())
	s.bus = &recorder{}
	s.wf = NewWorkflow(repository.NewGormStore(s.db), s.bus)
	s.ctx = context.Background()
}

func (s *WorkflowTestSuite) place(userID int64, lines ...LineInput) (*domain.OrderView, error) {
	return s.wf.Place(s.ctx, userID, PlaceInput{Items: lines, ShippingAddress: "1 Main St", Notes: "ring twice"})
}

func (s *WorkflowTestSuite) TestPlaceWorkedExample() {
	p1 := repotest.SeedProduct(s.T(), s.db, "Keyboard", "10.00", 5)
	p2 := repotest.SeedProduct(s.T(), s.db, "Mouse", "2.50", 0)

	view, err := s.place(7, LineInput{ProductID: p1.ID, Quantity: 2})
	s.Require().NoError(err)
	s.Equal("Pending", view.Status)
	s.Equal("20.00", view.TotalAmount.StringFixed(2))
	s.Equal("1 Main St", view.ShippingAddress)
	s.False(view.CreatedAt.IsZero())
	s.Require().Len(view.Items, 1)
	s.Equal("Keyboard", view.Items[0].ProductName)
	s.Equal("20.00", view.Items[0].LineTotal.StringFixed(2))
	s.Equal(3, repotest.Stock(s.T(), s.db, p1.ID))

	_, err = s.place(7, LineInput{ProductID: p2.ID, Quantity: 1})
	s.ErrorIs(err, domain.ErrInsufficientStock)
	var serr *domain.StockError
	s.Require().True(errors.As(err, &serr))
	s.Equal(1, serr.Requested)
	s.Equal(0, serr.Available)

	cancelled, err := s.wf.Cancel(s.ctx, 7, view.ID)
	s.Require().NoError(err)
	s.Equal("Cancelled", cancelled.Status)
	s.Equal(5, repotest.Stock(s.T(), s.db, p1.ID))
	s.Equal(0, repotest.Stock(s.T(), s.db, p2.ID))

	s.Equal([]string{domain.TopicOrderPlaced, domain.TopicOrderCancelled}, s.bus.topics)
	s.Equal(view.ID, s.bus.events[0].OrderID)
	s.Equal(domain.OrderCancelled, s.bus.events[1].Status)
}

func (s *WorkflowTestSuite) TestPlaceIsAllOrNothing() {
	p1 := repotest.SeedProduct(s.T(), s.db, "Lamp", "15.00", 4)
	p2 := repotest.SeedProduct(s.T(), s.db, "Bulb", "1.00", 1)

	_, err := s.place(3, LineInput{ProductID: p1.ID, Quantity: 2}, LineInput{ProductID: p2.ID, Quantity: 2})
	s.ErrorIs(err, domain.ErrInsufficientStock)
	s.Equal(4, repotest.Stock(s.T(), s.db, p1.ID))
	s.Equal(1, repotest.Stock(s.T(), s.db, p2.ID))

	var count int64
	s.Require().NoError(s.db.Model(&domain.Order{}).Count(&count).Error)
	s.Zero(count)
	s.Empty(s.bus.topics)

	_, err = s.place(3, LineInput{ProductID: p1.ID, Quantity: 1}, LineInput{ProductID: 4242, Quantity: 1})
	s.ErrorIs(err, domain.ErrNotFound)
	s.Equal(4, repotest.Stock(s.T(), s.db, p1.ID))
}

func (s *WorkflowTestSuite) TestPlaceRejectsInactiveProduct() {
	p := repotest.SeedProduct(s.T(), s.db, "Old Phone", "99.00", 10)
	s.Require().NoError(s.db.Model(p).Update("is_active", false).Error)

	_, err := s.place(3, LineInput{ProductID: p.ID, Quantity: 1})
	s.ErrorIs(err, domain.ErrProductUnavailable)
	s.Equal(10, repotest.Stock(s.T(), s.db, p.ID))
}

func (s *WorkflowTestSuite) TestPlaceValidation() {
	_, err := s.wf.Place(s.ctx, 0, PlaceInput{})
	s.ErrorIs(err, domain.ErrUnauthorized)

	_, err = s.wf.Place(s.ctx, 1, PlaceInput{
		Items:           []LineInput{{ProductID: 0, Quantity: 0}},
		ShippingAddress: "  ",
		Notes:           strings.Repeat("n", 1001),
	})
	var verr *domain.ValidationError
	s.Require().True(errors.As(err, &verr))
	s.Contains(verr.Fields, "items[0].product_id")
	s.Contains(verr.Fields, "items[0].quantity")
	s.Contains(verr.Fields, "shipping_address")
	s.Contains(verr.Fields, "notes")

	_, err = s.wf.Place(s.ctx, 1, PlaceInput{ShippingAddress: "x"})
	s.Require().True(errors.As(err, &verr))
	s.Contains(verr.Fields, "items")
}

func (s *WorkflowTestSuite) TestPlaceCapturesPrice() {
	p := repotest.SeedProduct(s.T(), s.db, "Book", "12.00", 10)
	view, err := s.place(5, LineInput{ProductID: p.ID, Quantity: 3})
	s.Require().NoError(err)

	s.Require().NoError(s.db.Model(p).Update("price", "20.00").Error)
	got, err := s.wf.Get(s.ctx, 5, view.ID)
	s.Require().NoError(err)
	s.Equal("12.00", got.Items[0].UnitPrice.StringFixed(2))
	s.Equal("36.00", got.TotalAmount.StringFixed(2))
}

func (s *WorkflowTestSuite) TestCancelRules() {
	p := repotest.SeedProduct(s.T(), s.db, "Desk", "100.00", 3)
	view, err := s.place(9, LineInput{ProductID: p.ID, Quantity: 1})
	s.Require().NoError(err)

	_, err = s.wf.Cancel(s.ctx, 10, view.ID)
	s.ErrorIs(err, domain.ErrNotFound, "another user's order")
	_, err = s.wf.Cancel(s.ctx, 0, view.ID)
	s.ErrorIs(err, domain.ErrUnauthorized)

	_, err = s.wf.UpdateStatus(s.ctx, view.ID, domain.OrderProcessing)
	s.Require().NoError(err)
	_, err = s.wf.UpdateStatus(s.ctx, view.ID, domain.OrderShipped)
	s.Require().NoError(err)
	s.Equal(2, repotest.Stock(s.T(), s.db, p.ID))

	_, err = s.wf.Cancel(s.ctx, 9, view.ID)
	s.ErrorIs(err, domain.ErrInvalidTransition)
	s.Equal(2, repotest.Stock(s.T(), s.db, p.ID), "stock untouched")

	_, err = s.wf.UpdateStatus(s.ctx, view.ID, domain.OrderDelivered)
	s.Require().NoError(err)
	_, err = s.wf.Cancel(s.ctx, 9, view.ID)
	s.ErrorIs(err, domain.ErrInvalidTransition)

	other, err := s.place(9, LineInput{ProductID: p.ID, Quantity: 1})
	s.Require().NoError(err)
	_, err = s.wf.Cancel(s.ctx, 9, other.ID)
	s.Require().NoError(err)
	_, err = s.wf.Cancel(s.ctx, 9, other.ID)
	s.ErrorIs(err, domain.ErrInvalidTransition)
	s.Equal(2, repotest.Stock(s.T(), s.db, p.ID))
}

func (s *WorkflowTestSuite) TestCancelRestoresInactiveAndSkipsDeleted() {
	keep := repotest.SeedProduct(s.T(), s.db, "Chair", "40.00", 5)
	gone := repotest.SeedProduct(s.T(), s.db, "Stool", "20.00", 5)
	view, err := s.place(4, LineInput{ProductID: keep.ID, Quantity: 2}, LineInput{ProductID: gone.ID, Quantity: 1})
	s.Require().NoError(err)

	s.Require().NoError(s.db.Model(keep).Update("is_active", false).Error)
	s.Require().NoError(s.db.Delete(&domain.Product{}, gone.ID).Error)

	got, err := s.wf.Cancel(s.ctx, 4, view.ID)
	s.Require().NoError(err)
	s.Equal("Cancelled", got.Status)
	s.Equal(5, repotest.Stock(s.T(), s.db, keep.ID))
	s.Equal("Stool", got.Items[1].ProductName)
}

func (s *WorkflowTestSuite) TestUpdateStatusTransitions() {
	p := repotest.SeedProduct(s.T(), s.db, "Tent", "150.00", 2)
	view, err := s.place(2, LineInput{ProductID: p.ID, Quantity: 2})
	s.Require().NoError(err)

	_, err = s.wf.UpdateStatus(s.ctx, view.ID, domain.OrderDelivered)
	s.ErrorIs(err, domain.ErrInvalidTransition)
	_, err = s.wf.UpdateStatus(s.ctx, view.ID, domain.OrderPending)
	s.ErrorIs(err, domain.ErrInvalidTransition)
	_, err = s.wf.UpdateStatus(s.ctx, 777, domain.OrderProcessing)
	s.ErrorIs(err, domain.ErrNotFound)

	got, err := s.wf.UpdateStatus(s.ctx, view.ID, domain.OrderProcessing)
	s.Require().NoError(err)
	s.Equal("Processing", got.Status)
	s.Equal(0, repotest.Stock(s.T(), s.db, p.ID))

	got, err = s.wf.UpdateStatus(s.ctx, view.ID, domain.OrderCancelled)
	s.Require().NoError(err)
	s.Equal("Cancelled", got.Status)
	s.Equal(2, repotest.Stock(s.T(), s.db, p.ID))
	s.Contains(s.bus.topics, domain.TopicOrderStatus)
}

func (s *WorkflowTestSuite) TestListScopedAndFiltered() {
	p := repotest.SeedProduct(s.T(), s.db, "Pen", "1.00", 100)
	first, err := s.place(1, LineInput{ProductID: p.ID, Quantity: 1})
	s.Require().NoError(err)
	second, err := s.place(1, LineInput{ProductID: p.ID, Quantity: 2})
	s.Require().NoError(err)
	_, err = s.place(2, LineInput{ProductID: p.ID, Quantity: 3})
	s.Require().NoError(err)
	_, err = s.wf.Cancel(s.ctx, 1, first.ID)
	s.Require().NoError(err)

	mine, err := s.wf.List(s.ctx, 1, ListFilter{})
	s.Require().NoError(err)
	s.Require().Len(mine, 2)
	s.Equal(second.ID, mine[0].ID, "newest first")
	s.Equal(first.ID, mine[1].ID)

	pending, err := s.wf.List(s.ctx, 1, ListFilter{Status: "pending"})
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(second.ID, pending[0].ID)

	recent, err := s.wf.List(s.ctx, 1, ListFilter{Since: "2000-01-02"})
	s.Require().NoError(err)
	s.Len(recent, 2)
	future, err := s.wf.List(s.ctx, 1, ListFilter{Since: "2999-01-01"})
	s.Require().NoError(err)
	s.Empty(future)

	_, err = s.wf.List(s.ctx, 1, ListFilter{Since: "yesterday-ish"})
	var verr *domain.ValidationError
	s.True(errors.As(err, &verr))
	_, err = s.wf.List(s.ctx, 1, ListFilter{Status: "Lost"})
	s.True(errors.As(err, &verr))
	_, err = s.wf.List(s.ctx, 0, ListFilter{})
	s.ErrorIs(err, domain.ErrUnauthorized)

	all, err := s.wf.ListAll(s.ctx, ListFilter{})
	s.Require().NoError(err)
	s.Len(all, 3)

	_, err = s.wf.Get(s.ctx, 2, second.ID)
	s.ErrorIs(err, domain.ErrNotFound)
}

func TestConcurrentPlacementNeverOversells(t *testing.T) {
	db := repotest.NewDB(t)
	wf := NewWorkflow(repository.NewGormStore(db), nil)
	p := repotest.SeedProduct(t, db, "Limited Print", "30.00", 5)

	var wg sync.WaitGroup
	var mu sync.Mutex
	placed, rejected := 0, 0
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(user int64) {
			defer wg.Done()
			_, err := wf.Place(context.Background(), user, PlaceInput{
				Items:           []LineInput{{ProductID: p.ID, Quantity: 1}},
				ShippingAddress: "somewhere",
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				placed++
			} else if errors.Is(err, domain.ErrInsufficientStock) {
				rejected++
			}
		}(int64(i + 1))
	}
	wg.Wait()

	assert.Equal(t, 5, placed)
	assert.Equal(t, 7, rejected)
	require.Equal(t, 0, repotest.Stock(t, db, p.ID))
}

func (s *WorkflowTestSuite) TestPlaceKeepsLineOrderAndSumsRepeatedLines() {
	first := repotest.SeedProduct(s.T(), s.db, "Anvil", "12.00", 5)
	second := repotest.SeedProduct(s.T(), s.db, "Bellows", "3.00", 4)
	s.Require().Less(first.ID, second.ID)

	view, err := s.place(9, LineInput{ProductID: second.ID, Quantity: 1}, LineInput{ProductID: first.ID, Quantity: 2})
	s.Require().NoError(err)
	s.Require().Len(view.Items, 2)
	s.Equal("Bellows", view.Items[0].ProductName)
	s.Equal("Anvil", view.Items[1].ProductName)
	s.Equal(3, repotest.Stock(s.T(), s.db, first.ID))
	s.Equal(3, repotest.Stock(s.T(), s.db, second.ID))

	_, err = s.place(9, LineInput{ProductID: first.ID, Quantity: 2}, LineInput{ProductID: first.ID, Quantity: 2})
	var serr *domain.StockError
	s.Require().True(errors.As(err, &serr))
	s.Equal(4, serr.Requested)
	s.Equal(3, serr.Available)
	s.Equal(3, repotest.Stock(s.T(), s.db, first.ID))
}

func TestByProductSortsCopy(t *testing.T) {
	items := []domain.OrderItem{{ProductID: 30}, {ProductID: 10}, {ProductID: 20}}
	sorted := byProduct(items)
	assert.Equal(t, []int64{10, 20, 30}, []int64{sorted[0].ProductID, sorted[1].ProductID, sorted[2].ProductID})
	assert.Equal(t, int64(30), items[0].ProductID)
}
