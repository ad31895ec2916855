package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgerr "github.com/pkg/errors"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/pkg/common"
	"gorm.io/gorm"
)

// GormOrderRepository is the GORM implementation of OrderRepository
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func preloadItems(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

func (r *GormOrderRepository) Create(ctx context.Context, o *domain.Order) error {
	if o.ID == 0 {
		o.ID = common.UUIDint64()
	}
	for i := range o.Items {
		if o.Items[i].ID == 0 {
			o.Items[i].ID = common.UUIDint64()
		}
		o.Items[i].OrderID = o.ID
	}
	return pkgerr.Wrap(r.db.WithContext(ctx).Create(o).Error, "create order")
}

func (r *GormOrderRepository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	var o domain.Order
	err := r.db.WithContext(ctx).Preload("Items", preloadItems).Where("id = ?", id).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("order %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, pkgerr.Wrapf(err, "query order %d", id)
	}
	return &o, nil
}

func (r *GormOrderRepository) GetForUser(ctx context.Context, userID, id int64) (*domain.Order, error) {
	var o domain.Order
	err := r.db.WithContext(ctx).Preload("Items", preloadItems).
		Where("id = ? AND user_id = ?", id, userID).
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("order %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, pkgerr.Wrapf(err, "query order %d", id)
	}
	return &o, nil
}

func (r *GormOrderRepository) List(ctx context.Context, q OrderQuery) ([]domain.Order, error) {
	query := r.db.WithContext(ctx).Preload("Items", preloadItems)
	if q.UserID != 0 {
		query = query.Where("user_id = ?", q.UserID)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if !q.Since.IsZero() {
		query = query.Where("created_at >= ?", q.Since)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var orders []domain.Order
	if err := query.Order("created_at DESC").Order("id DESC").Find(&orders).Error; err != nil {
		return nil, pkgerr.Wrap(err, "query orders")
	}
	return orders, nil
}

func (r *GormOrderRepository) UpdateStatus(ctx context.Context, id int64, from, to domain.OrderStatus) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return pkgerr.Wrapf(res.Error, "update order %d status", id)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order %d is no longer %s: %w", id, from, domain.ErrInvalidTransition)
	}
	return nil
}
