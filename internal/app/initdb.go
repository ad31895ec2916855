package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/talkincode/storefront/internal/catalog"
	"github.com/talkincode/storefront/internal/domain"
	"go.uber.org/zap"
)

// checkSuper makes sure the configured administrator can log in.
func (a *Application) checkSuper() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	admin := a.appConfig.Admin
	u, err := a.auth.EnsureAdmin(ctx, admin.Email, admin.Password)
	if err != nil {
		zap.L().Error("failed to ensure default admin account", zap.String("email", admin.Email), zap.Error(err))
		return
	}
	zap.L().Info("default admin account ready", zap.String("email", u.Email))
}

// checkProducts seeds a demo catalog into an empty products table
func (a *Application) checkProducts() {
	var count int64
	if err := a.gormDB.Model(&domain.Product{}).Count(&count).Error; err != nil {
		zap.L().Error("failed to count products", zap.Error(err))
		return
	}
	if count > 0 {
		return
	}

	defaultProducts := []catalog.ProductInput{
		{Name: "Wireless Headphones", Price: decimal.RequireFromString("89.99"), Category: string(domain.CategoryElectronics), StockQuantity: 40},
		{Name: "Organic Cotton T-Shirt", Price: decimal.RequireFromString("19.50"), Category: string(domain.CategoryClothing), StockQuantity: 120},
		{Name: "The Go Programming Language", Price: decimal.RequireFromString("39.00"), Category: string(domain.CategoryBooks), StockQuantity: 25},
		{Name: "Ceramic Plant Pot", Price: decimal.RequireFromString("14.25"), Category: string(domain.CategoryHomeGarden), StockQuantity: 60},
		{Name: "Yoga Mat", Price: decimal.RequireFromString("29.90"), Category: string(domain.CategorySports), StockQuantity: 35},
		{Name: "Wooden Puzzle", Price: decimal.RequireFromString("12.00"), Category: string(domain.CategoryToys), StockQuantity: 4},
		{Name: "Single Origin Coffee Beans", Price: decimal.RequireFromString("16.80"), Category: string(domain.CategoryFoodBeverages), StockQuantity: 80},
		{Name: "Herbal Face Cream", Price: decimal.RequireFromString("24.00"), Category: string(domain.CategoryHealthBeauty), StockQuantity: 3},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, in := range defaultProducts {
		in.Description = "Demo product: " + in.Name
		in.IsActive = true
		if _, err := a.catalog.Create(ctx, in); err != nil {
			zap.L().Error("failed to create default product", zap.String("name", in.Name), zap.Error(err))
		}
	}
	zap.L().Info("initialized demo catalog", zap.Int("products", len(defaultProducts)))
}
