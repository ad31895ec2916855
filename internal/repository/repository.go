package repository

import (
	"context"
	"time"

	"github.com/talkincode/storefront/internal/domain"
	"gorm.io/gorm"
)

// ProductQuery selects catalog rows. Zero value lists every product.
type ProductQuery struct {
	ActiveOnly bool
	Category   domain.Category
	Term       string
}

// OrderQuery selects orders. UserID 0 means all users.
type OrderQuery struct {
	UserID int64
	Status domain.OrderStatus
	Since  time.Time
	Limit  int
}

// ProductRepository interface for catalog data access
type ProductRepository interface {
	// GetByID retrieves a product, ErrNotFound when missing
	GetByID(ctx context.Context, id int64) (*domain.Product, error)

	// List returns matching products ordered by name
	List(ctx context.Context, q ProductQuery) ([]domain.Product, error)

	Create(ctx context.Context, p *domain.Product) error

	// Update writes every mutable field except the stock counter
	Update(ctx context.Context, p *domain.Product) error

	Delete(ctx context.Context, id int64) error

	// AdjustStock applies delta atomically and returns the new quantity
	AdjustStock(ctx context.Context, id int64, delta int) (int, error)

	// LowStock lists active products whose stock is at or below threshold
	LowStock(ctx context.Context, threshold int) ([]domain.Product, error)
}

// OrderRepository interface for order data access
type OrderRepository interface {
	// Create inserts the order together with its items
	Create(ctx context.Context, o *domain.Order) error

	// GetByID retrieves an order with items
	GetByID(ctx context.Context, id int64) (*domain.Order, error)

	// GetForUser retrieves an order only when it belongs to userID
	GetForUser(ctx context.Context, userID, id int64) (*domain.Order, error)

	// List returns orders with items, newest first
	List(ctx context.Context, q OrderQuery) ([]domain.Order, error)

	// UpdateStatus moves the order from one status to another, ErrInvalidTransition when it is no longer in from
	UpdateStatus(ctx context.Context, id int64, from, to domain.OrderStatus) error
}

// UserRepository interface for user data access
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
	Update(ctx context.Context, u *domain.User) error
}

// AuditLogRepository handles the admin audit trail
type AuditLogRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
	List(ctx context.Context, limit int) ([]domain.AuditLog, error)
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// Store groups the repositories bound to one connection or transaction.
type Store interface {
	Products() ProductRepository
	Orders() OrderRepository
	Users() UserRepository
	AuditLogs() AuditLogRepository

	// Transaction runs fn with a Store bound to a single database transaction.
	// The transaction is rolled back when fn returns an error.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

// GormStore is the GORM implementation of Store
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) DB() *gorm.DB {
	return s.db
}

func (s *GormStore) Products() ProductRepository {
	return NewGormProductRepository(s.db)
}

func (s *GormStore) Orders() OrderRepository {
	return NewGormOrderRepository(s.db)
}

func (s *GormStore) Users() UserRepository {
	return NewGormUserRepository(s.db)
}

func (s *GormStore) AuditLogs() AuditLogRepository {
	return NewGormAuditLogRepository(s.db)
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}
