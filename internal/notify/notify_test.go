package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/repository"
	"github.com/talkincode/storefront/internal/repository/repotest"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *fakeMailer) Send(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to+"|"+subject)
	return nil
}

func TestSubscriberHandlesOrderEvents(t *testing.T) {
	db := repotest.NewDB(t)
	store := repository.NewGormStore(db)
	ctx := context.Background()

	u := &domain.User{Email: "buyer@example.com", PasswordHash: "x", Roles: domain.RoleUser}
	require.NoError(t, store.Users().Create(ctx, u))

	mailer := &fakeMailer{}
	sub := NewSubscriber(store.AuditLogs(), store.Users(), mailer)
	bus := EventBus.New()
	require.NoError(t, sub.Subscribe(bus))

	ev := domain.OrderEvent{
		OrderID: 11,
		UserID:  u.ID,
		Status:  domain.OrderPending,
		Total:   decimal.RequireFromString("20.00"),
		Items: []domain.OrderItemView{{
			ProductName: "Keyboard",
			Quantity:    2,
			UnitPrice:   decimal.RequireFromString("10.00"),
			LineTotal:   decimal.RequireFromString("20.00"),
		}},
		At: time.Now(),
	}
	bus.Publish(domain.TopicOrderPlaced, ev)
	bus.WaitAsync()
	ev.Status = domain.OrderCancelled
	bus.Publish(domain.TopicOrderCancelled, ev)
	bus.WaitAsync()

	logs, err := store.AuditLogs().List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	actions := []string{logs[0].Action, logs[1].Action}
	assert.ElementsMatch(t, []string{"order_placed", "order_cancelled"}, actions)

	assert.ElementsMatch(t, []string{
		"buyer@example.com|Order 11 received",
		"buyer@example.com|Order 11 cancelled",
	}, mailer.sent)
}

func TestSubscriberWithoutMailer(t *testing.T) {
	db := repotest.NewDB(t)
	store := repository.NewGormStore(db)
	sub := NewSubscriber(store.AuditLogs(), store.Users(), nil)

	sub.OnStatus(domain.OrderEvent{OrderID: 5, UserID: 404, Status: domain.OrderShipped, At: time.Now()})

	logs, err := store.AuditLogs().List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "order 5 is now Shipped", logs[0].Detail)
}

func TestPlacedBody(t *testing.T) {
	body := placedBody(domain.OrderEvent{
		OrderID: 3,
		Total:   decimal.RequireFromString("5"),
		Items:   []domain.OrderItemView{{ProductName: "Pen", Quantity: 5, LineTotal: decimal.RequireFromString("5")}},
	})
	assert.Contains(t, body, "order 3")
	assert.Contains(t, body, "Pen")
	assert.Contains(t, body, "Total: 5.00")
}

type countingPool struct {
	mu    sync.Mutex
	tasks int
}

func (p *countingPool) Submit(task func()) error {
	p.mu.Lock()
	p.tasks++
	p.mu.Unlock()
	task()
	return nil
}

func TestSubscriberMailThroughPool(t *testing.T) {
	db := repotest.NewDB(t)
	store := repository.NewGormStore(db)
	u := &domain.User{Email: "pool@example.com", PasswordHash: "x", Roles: domain.RoleUser}
	require.NoError(t, store.Users().Create(context.Background(), u))

	mailer := &fakeMailer{}
	pool := &countingPool{}
	sub := NewSubscriber(nil, store.Users(), mailer)
	sub.UsePool(pool)
	sub.OnStatus(domain.OrderEvent{OrderID: 9, UserID: u.ID, Status: domain.OrderShipped})

	assert.Equal(t, 1, pool.tasks)
	assert.Equal(t, []string{"pool@example.com|Order 9 is shipped"}, mailer.sent)
}
