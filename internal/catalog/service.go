package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/repository"
	"go.uber.org/zap"
)

type FilterKind int

const (
	FilterAll FilterKind = iota
	FilterActiveOnly
	FilterCategory
	FilterSearch
)

// Filter selects which products List returns.
type Filter struct {
	Kind     FilterKind
	Category string
	Term     string
}

func All() Filter { return Filter{Kind: FilterAll} }
func ActiveOnly() Filter { return Filter{Kind: FilterActiveOnly} }
func ByCategory(c string) Filter { return Filter{Kind: FilterCategory, Category: c} }
func Search(term string) Filter { return Filter{Kind: FilterSearch, Term: term} }

var (
	minPrice = decimal.RequireFromString("0.01")
	maxPrice = decimal.RequireFromString("999999.99")
)

// ProductInput carries the mutable product fields for create and full update.
type ProductInput struct {
	Name          string
	Description   string
	Price         decimal.Decimal
	Category      string
	StockQuantity int
	IsActive      bool
	ImageURL      string
}

// Validate trims the input and reports every failing field.
func (in *ProductInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.ImageURL = strings.TrimSpace(in.ImageURL)

	var verr domain.ValidationError
	switch n := len([]rune(in.Name)); {
	case n == 0:
		verr.Add("name", "name is required")
	case n > 100:
		verr.Add("name", "name must be at most 100 characters")
	}
	if len([]rune(in.Description)) > 1000 {
		verr.Add("description", "description must be at most 1000 characters")
	}
	if in.Price.LessThan(minPrice) || in.Price.GreaterThan(maxPrice) {
		verr.Add("price", "price must be between %s and %s", minPrice.StringFixed(2), maxPrice.StringFixed(2))
	}
	if in.StockQuantity < 0 {
		verr.Add("stock_quantity", "stock quantity cannot be negative")
	}
	if c, ok := domain.ParseCategory(in.Category); ok {
		in.Category = string(c)
	} else {
		verr.Add("category", "category must be one of the catalog categories")
	}
	if len(in.ImageURL) > 500 {
		verr.Add("image_url", "image url must be at most 500 characters")
	}
	return verr.Err()
}

// Service is the product catalog.
type Service struct {
	store repository.Store
}

func NewService(store repository.Store) *Service {
	return &Service{store: store}
}

// Categories returns the fixed category enumeration.
func (s *Service) Categories() []domain.Category {
	out := make([]domain.Category, len(domain.Categories))
	copy(out, domain.Categories)
	return out
}

// List returns products ordered by name. A blank search term lists active products.
func (s *Service) List(ctx context.Context, f Filter) ([]domain.Product, error) {
	var q repository.ProductQuery
	switch f.Kind {
	case FilterAll:
	case FilterActiveOnly:
		q.ActiveOnly = true
	case FilterCategory:
		c, ok := domain.ParseCategory(f.Category)
		if !ok {
			verr := &domain.ValidationError{}
			verr.Add("category", "unknown category %q", f.Category)
			return nil, verr
		}
		q.ActiveOnly = true
		q.Category = c
	case FilterSearch:
		q.ActiveOnly = true
		q.Term = strings.TrimSpace(f.Term)
	default:
		return nil, fmt.Errorf("unsupported product filter %d", f.Kind)
	}
	rows, err := s.store.Products().List(ctx, q)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []domain.Product{}
	}
	return rows, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Product, error) {
	return s.store.Products().GetByID(ctx, id)
}

func (s *Service) Create(ctx context.Context, in ProductInput) (*domain.Product, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	now := time.Now()
	p := &domain.Product{
		Name:          in.Name,
		Description:   in.Description,
		Price:         in.Price.Round(2),
		Category:      domain.Category(in.Category),
		StockQuantity: in.StockQuantity,
		IsActive:      in.IsActive,
		ImageURL:      in.ImageURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Products().Create(ctx, p); err != nil {
		return nil, err
	}
	zap.L().Info("product created", zap.Int64("id", p.ID), zap.String("name", p.Name))
	return p, nil
}

// Update replaces the mutable fields. The stock change is applied as a delta through AdjustStock
// so it composes with concurrent reservations.
func (s *Service) Update(ctx context.Context, id int64, in ProductInput) (*domain.Product, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var updated *domain.Product
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		p, err := tx.Products().GetByID(ctx, id)
		if err != nil {
			return err
		}
		delta := in.StockQuantity - p.StockQuantity
		p.Name = in.Name
		p.Description = in.Description
		p.Price = in.Price.Round(2)
		p.Category = domain.Category(in.Category)
		p.IsActive = in.IsActive
		p.ImageURL = in.ImageURL
		p.UpdatedAt = time.Now()
		if err := tx.Products().Update(ctx, p); err != nil {
			return err
		}
		if delta != 0 {
			if p.StockQuantity, err = tx.Products().AdjustStock(ctx, id, delta); err != nil {
				return err
			}
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	zap.L().Info("product updated", zap.Int64("id", id))
	return updated, nil
}

// Delete removes the product. Order items keep their own name and price snapshot.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.Products().Delete(ctx, id); err != nil {
		return err
	}
	zap.L().Info("product deleted", zap.Int64("id", id))
	return nil
}

// AdjustStock applies a signed delta, failing with ErrInsufficientStock when the result would be negative.
func (s *Service) AdjustStock(ctx context.Context, id int64, delta int) (*domain.Product, error) {
	if _, err := s.store.Products().AdjustStock(ctx, id, delta); err != nil {
		return nil, err
	}
	return s.store.Products().GetByID(ctx, id)
}

// LowStock lists active products at or below threshold.
func (s *Service) LowStock(ctx context.Context, threshold int) ([]domain.Product, error) {
	return s.store.Products().LowStock(ctx, threshold)
}
