package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/repository/repotest"
	"gorm.io/gorm"
)

type StoreTestSuite struct {
	suite.Suite
	db    *gorm.DB
	store *GormStore
	ctx   context.Context
}

func (s *StoreTestSuite) SetupTest() {
	s.db = repotest.NewDB(s.T())
	s.store = NewGormStore(s.db)
	s.ctx = context.Background()
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (s *StoreTestSuite) TestProductCRUD() {
	products := s.store.Products()
	p := &domain.Product{
		Name:          "Desk Lamp",
		Price:         decimal.RequireFromString("24.50"),
		Category:      domain.CategoryHomeGarden,
		StockQuantity: 4,
		IsActive:      true,
	}
	require.NoError(s.T(), products.Create(s.ctx, p))
	require.NotZero(s.T(), p.ID)
	require.False(s.T(), p.CreatedAt.IsZero())

	got, err := products.GetByID(s.ctx, p.ID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), "Desk Lamp", got.Name)
	require.True(s.T(), got.Price.Equal(decimal.RequireFromString("24.5")))

	got.Name = "Desk Lamp XL"
	got.IsActive = false
	got.StockQuantity = 999
	got.UpdatedAt = time.Now()
	require.NoError(s.T(), products.Update(s.ctx, got))

	again, err := products.GetByID(s.ctx, p.ID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), "Desk Lamp XL", again.Name)
	require.False(s.T(), again.IsActive)
	require.Equal(s.T(), 4, again.StockQuantity, "update must not touch the stock counter")

	require.NoError(s.T(), products.Delete(s.ctx, p.ID))
	_, err = products.GetByID(s.ctx, p.ID)
	require.ErrorIs(s.T(), err, domain.ErrNotFound)
	require.ErrorIs(s.T(), products.Delete(s.ctx, p.ID), domain.ErrNotFound)
	require.ErrorIs(s.T(), products.Update(s.ctx, got), domain.ErrNotFound)
}

func (s *StoreTestSuite) TestProductListFilters() {
	repotest.SeedProduct(s.T(), s.db, "Zebra Plush", "9.99", 3)
	repotest.SeedProduct(s.T(), s.db, "alpha Phone", "199.00", 1)
	inactive := repotest.SeedProduct(s.T(), s.db, "Middle Cable", "4.00", 10)
	require.NoError(s.T(), s.db.Model(inactive).Update("is_active", false).Error)
	book := repotest.SeedProduct(s.T(), s.db, "Go Book", "30.00", 2)
	require.NoError(s.T(), s.db.Model(book).Update("category", domain.CategoryBooks).Error)

	all, err := s.store.Products().List(s.ctx, ProductQuery{})
	require.NoError(s.T(), err)
	require.Len(s.T(), all, 4)

	active, err := s.store.Products().List(s.ctx, ProductQuery{ActiveOnly: true})
	require.NoError(s.T(), err)
	require.Len(s.T(), active, 3)

	books, err := s.store.Products().List(s.ctx, ProductQuery{ActiveOnly: true, Category: domain.CategoryBooks})
	require.NoError(s.T(), err)
	require.Len(s.T(), books, 1)
	require.Equal(s.T(), "Go Book", books[0].Name)

	byDesc, err := s.store.Products().List(s.ctx, ProductQuery{ActiveOnly: true, Term: "PLUSH DESC"})
	require.NoError(s.T(), err)
	require.Len(s.T(), byDesc, 1)

	byCategory, err := s.store.Products().List(s.ctx, ProductQuery{ActiveOnly: true, Term: "electro"})
	require.NoError(s.T(), err)
	require.Len(s.T(), byCategory, 2)
}

func (s *StoreTestSuite) TestAdjustStock() {
	p := repotest.SeedProduct(s.T(), s.db, "Widget", "1.00", 5)
	products := s.store.Products()

	n, err := products.AdjustStock(s.ctx, p.ID, -3)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 2, n)

	n, err = products.AdjustStock(s.ctx, p.ID, -3)
	require.ErrorIs(s.T(), err, domain.ErrInsufficientStock)
	var stockErr *domain.StockError
	require.True(s.T(), errors.As(err, &stockErr))
	require.Equal(s.T(), 2, stockErr.Available)
	require.Equal(s.T(), 3, stockErr.Requested)
	require.Equal(s.T(), 2, n)
	require.Equal(s.T(), 2, repotest.Stock(s.T(), s.db, p.ID))

	n, err = products.AdjustStock(s.ctx, p.ID, 10)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 12, n)

	_, err = products.AdjustStock(s.ctx, 42, 1)
	require.ErrorIs(s.T(), err, domain.ErrNotFound)
}

func (s *StoreTestSuite) TestTransactionRollsBack() {
	p := repotest.SeedProduct(s.T(), s.db, "Widget", "1.00", 5)
	boom := errors.New("boom")
	err := s.store.Transaction(s.ctx, func(tx Store) error {
		if _, err := tx.Products().AdjustStock(s.ctx, p.ID, -5); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(s.T(), err, boom)
	require.Equal(s.T(), 5, repotest.Stock(s.T(), s.db, p.ID))
}

func (s *StoreTestSuite) TestOrderLifecycle() {
	p := repotest.SeedProduct(s.T(), s.db, "Widget", "2.50", 5)
	orders := s.store.Orders()

	first := &domain.Order{
		UserID:          7,
		Status:          domain.OrderPending,
		TotalAmount:     decimal.RequireFromString("5.00"),
		ShippingAddress: "1 Main St",
		Items: []domain.OrderItem{
			{ProductID: p.ID, ProductName: p.Name, Quantity: 2, UnitPrice: p.Price},
		},
	}
	require.NoError(s.T(), orders.Create(s.ctx, first))
	second := &domain.Order{
		UserID:          7,
		Status:          domain.OrderPending,
		TotalAmount:     decimal.RequireFromString("2.50"),
		ShippingAddress: "1 Main St",
		Items: []domain.OrderItem{
			{ProductID: p.ID, ProductName: p.Name, Quantity: 1, UnitPrice: p.Price},
		},
	}
	require.NoError(s.T(), orders.Create(s.ctx, second))
	other := &domain.Order{UserID: 8, Status: domain.OrderPending, TotalAmount: decimal.Zero, ShippingAddress: "x"}
	require.NoError(s.T(), orders.Create(s.ctx, other))

	got, err := orders.GetForUser(s.ctx, 7, first.ID)
	require.NoError(s.T(), err)
	require.Len(s.T(), got.Items, 1)
	require.Equal(s.T(), 2, got.Items[0].Quantity)

	_, err = orders.GetForUser(s.ctx, 8, first.ID)
	require.ErrorIs(s.T(), err, domain.ErrNotFound)

	list, err := orders.List(s.ctx, OrderQuery{UserID: 7})
	require.NoError(s.T(), err)
	require.Len(s.T(), list, 2)
	require.Equal(s.T(), second.ID, list[0].ID, "newest first")

	require.NoError(s.T(), orders.UpdateStatus(s.ctx, first.ID, domain.OrderPending, domain.OrderProcessing))
	err = orders.UpdateStatus(s.ctx, first.ID, domain.OrderPending, domain.OrderCancelled)
	require.ErrorIs(s.T(), err, domain.ErrInvalidTransition)

	processing, err := orders.List(s.ctx, OrderQuery{Status: domain.OrderProcessing})
	require.NoError(s.T(), err)
	require.Len(s.T(), processing, 1)
}

func (s *StoreTestSuite) TestUsersAndAudit() {
	u := &domain.User{Email: " Alice@Example.com ", PasswordHash: "x", Roles: domain.RoleUser}
	require.NoError(s.T(), s.store.Users().Create(s.ctx, u))

	dup := &domain.User{Email: "alice@example.com", PasswordHash: "y", Roles: domain.RoleUser}
	require.ErrorIs(s.T(), s.store.Users().Create(s.ctx, dup), domain.ErrConflict)

	got, err := s.store.Users().GetByEmail(s.ctx, "alice@example.COM")
	require.NoError(s.T(), err)
	require.Equal(s.T(), u.ID, got.ID)

	now := time.Now()
	require.NoError(s.T(), s.store.Users().UpdateLastLogin(s.ctx, u.ID, now))
	got, err = s.store.Users().GetByID(s.ctx, u.ID)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), got.LastLoginAt)

	audit := s.store.AuditLogs()
	require.NoError(s.T(), audit.Create(s.ctx, &domain.AuditLog{Actor: "a", Action: "old", At: now.AddDate(-2, 0, 0)}))
	require.NoError(s.T(), audit.Create(s.ctx, &domain.AuditLog{Actor: "a", Action: "new"}))
	n, err := audit.DeleteOlderThan(s.ctx, now.AddDate(-1, 0, 0))
	require.NoError(s.T(), err)
	require.Equal(s.T(), int64(1), n)
	logs, err := audit.List(s.ctx, 10)
	require.NoError(s.T(), err)
	require.Len(s.T(), logs, 1)
	require.Equal(s.T(), "new", logs[0].Action)
}
