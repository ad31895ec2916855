// Package notify reacts to committed order events: audit trail, metrics and customer mail.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/repository"
	"github.com/talkincode/storefront/pkg/metrics"
	"go.uber.org/zap"
)

const handlerTimeout = 10 * time.Second

// Submitter runs tasks on a worker pool, such as an ants.Pool.
type Submitter interface {
	Submit(task func()) error
}

// Subscriber handles order events published on the bus.
type Subscriber struct {
	audit  repository.AuditLogRepository
	users  repository.UserRepository
	mailer Mailer
	pool   Submitter
}

// NewSubscriber builds a subscriber. mailer may be nil when smtp is disabled.
func NewSubscriber(audit repository.AuditLogRepository, users repository.UserRepository, mailer Mailer) *Subscriber {
	return &Subscriber{audit: audit, users: users, mailer: mailer}
}

// UsePool moves mail delivery off the bus goroutines onto pool.
func (s *Subscriber) UsePool(pool Submitter) {
	s.pool = pool
}

// Subscribe registers the async handlers for every order topic.
func (s *Subscriber) Subscribe(bus EventBus.Bus) error {
	handlers := map[string]func(domain.OrderEvent){
		domain.TopicOrderPlaced:    s.OnPlaced,
		domain.TopicOrderCancelled: s.OnCancelled,
		domain.TopicOrderStatus:    s.OnStatus,
	}
	for topic, fn := range handlers {
		if err := bus.SubscribeAsync(topic, fn, false); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	return nil
}

func (s *Subscriber) OnPlaced(ev domain.OrderEvent) {
	defer recoverHandler("order placed")
	metrics.Inc(metrics.OrderPlaced)
	metrics.Add(metrics.OrderRevenueCents, ev.Total.Shift(2).IntPart())
	s.record(ev, "order_placed", fmt.Sprintf("order %d placed, %d items, total %s",
		ev.OrderID, len(ev.Items), ev.Total.StringFixed(2)))
	s.mail(ev, fmt.Sprintf("Order %d received", ev.OrderID), placedBody(ev))
}

func (s *Subscriber) OnCancelled(ev domain.OrderEvent) {
	defer recoverHandler("order cancelled")
	metrics.Inc(metrics.OrderCancelled)
	s.record(ev, "order_cancelled", fmt.Sprintf("order %d cancelled", ev.OrderID))
	s.mail(ev, fmt.Sprintf("Order %d cancelled", ev.OrderID),
		fmt.Sprintf("Your order %d has been cancelled. Reserved items were returned to stock.\n", ev.OrderID))
}

func (s *Subscriber) OnStatus(ev domain.OrderEvent) {
	defer recoverHandler("order status")
	s.record(ev, "order_status", fmt.Sprintf("order %d is now %s", ev.OrderID, ev.Status))
	s.mail(ev, fmt.Sprintf("Order %d is %s", ev.OrderID, strings.ToLower(string(ev.Status))),
		fmt.Sprintf("Your order %d is now %s.\n", ev.OrderID, ev.Status))
}

func (s *Subscriber) record(ev domain.OrderEvent, action, detail string) {
	if s.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	err := s.audit.Create(ctx, &domain.AuditLog{
		Actor:  fmt.Sprintf("user:%d", ev.UserID),
		Action: action,
		Detail: detail,
		At:     ev.At,
	})
	if err != nil {
		zap.L().Error("write audit log", zap.String("action", action), zap.Error(err))
	}
}

func (s *Subscriber) mail(ev domain.OrderEvent, subject, body string) {
	if s.mailer == nil || s.users == nil {
		return
	}
	if s.pool != nil {
		err := s.pool.Submit(func() {
			defer recoverHandler("order mail")
			s.deliver(ev, subject, body)
		})
		if err == nil {
			return
		}
		zap.L().Warn("order mail: pool rejected task, sending inline", zap.Error(err))
	}
	s.deliver(ev, subject, body)
}

func (s *Subscriber) deliver(ev domain.OrderEvent, subject, body string) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	u, err := s.users.GetByID(ctx, ev.UserID)
	if err != nil {
		zap.L().Warn("order mail: user lookup", zap.Int64("user", ev.UserID), zap.Error(err))
		return
	}
	if err := s.mailer.Send(u.Email, subject, body); err != nil {
		zap.L().Error("order mail: send", zap.String("to", u.Email), zap.Error(err))
	}
}

func placedBody(ev domain.OrderEvent) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Thank you for your order %d.\n\n", ev.OrderID)
	for _, it := range ev.Items {
		fmt.Fprintf(&sb, "%3d x %-40s %10s\n", it.Quantity, it.ProductName, it.LineTotal.StringFixed(2))
	}
	fmt.Fprintf(&sb, "\nTotal: %s\n", ev.Total.StringFixed(2))
	return sb.String()
}

func recoverHandler(name string) {
	if err := recover(); err != nil {
		zap.S().Errorf("%s handler panic: %v", name, err)
	}
}
