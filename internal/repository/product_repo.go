package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pkgerr "github.com/pkg/errors"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/pkg/common"
	"gorm.io/gorm"
)

// GormProductRepository is the GORM implementation of ProductRepository
type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, pkgerr.Wrapf(err, "query product %d", id)
	}
	return &p, nil
}

func (r *GormProductRepository) List(ctx context.Context, q ProductQuery) ([]domain.Product, error) {
	db := r.db.WithContext(ctx).Model(&domain.Product{})
	if q.ActiveOnly {
		db = db.Where("is_active = ?", true)
	}
	if q.Category != "" {
		db = db.Where("category = ?", q.Category)
	}
	if term := strings.TrimSpace(q.Term); term != "" {
		if strings.EqualFold(db.Dialector.Name(), "postgres") {
			like := "%" + term + "%"
			db = db.Where("name ILIKE ? OR description ILIKE ? OR category ILIKE ?", like, like, like)
		} else {
			like := "%" + strings.ToLower(term) + "%"
			db = db.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(category) LIKE ?", like, like, like)
		}
	}

	var rows []domain.Product
	if err := db.Order("name ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, pkgerr.Wrap(err, "query products")
	}
	return rows, nil
}

func (r *GormProductRepository) Create(ctx context.Context, p *domain.Product) error {
	if p.ID == 0 {
		p.ID = common.UUIDint64()
	}
	return pkgerr.Wrap(r.db.WithContext(ctx).Create(p).Error, "create product")
}

func (r *GormProductRepository) Update(ctx context.Context, p *domain.Product) error {
	res := r.db.WithContext(ctx).Model(&domain.Product{}).
		Where("id = ?", p.ID).
		Select("name", "description", "price", "category", "is_active", "image_url", "updated_at").
		Updates(p)
	if res.Error != nil {
		return pkgerr.Wrapf(res.Error, "update product %d", p.ID)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product %d: %w", p.ID, domain.ErrNotFound)
	}
	return nil
}

func (r *GormProductRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Product{})
	if res.Error != nil {
		return pkgerr.Wrapf(res.Error, "delete product %d", id)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// AdjustStock is a conditional update, the row only changes when the result stays non-negative.
func (r *GormProductRepository) AdjustStock(ctx context.Context, id int64, delta int) (int, error) {
	db := r.db.WithContext(ctx)
	res := db.Model(&domain.Product{}).
		Where("id = ? AND stock_quantity + ? >= 0", id, delta).
		Updates(map[string]interface{}{
			"stock_quantity": gorm.Expr("stock_quantity + ?", delta),
			"updated_at":     time.Now(),
		})
	if res.Error != nil {
		return 0, pkgerr.Wrapf(res.Error, "adjust stock of product %d", id)
	}
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if res.RowsAffected == 0 {
		return p.StockQuantity, &domain.StockError{
			ProductID: p.ID,
			Name:      p.Name,
			Requested: -delta,
			Available: p.StockQuantity,
		}
	}
	return p.StockQuantity, nil
}

func (r *GormProductRepository) LowStock(ctx context.Context, threshold int) ([]domain.Product, error) {
	var rows []domain.Product
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND stock_quantity <= ?", true, threshold).
		Order("stock_quantity ASC").
		Order("name ASC").
		Find(&rows).Error
	return rows, pkgerr.Wrap(err, "query low stock products")
}
