// Package repotest opens throwaway in-memory databases for package tests.
package repotest

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/pkg/common"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory sqlite database. A single connection keeps
// every statement on the same memory database.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(domain.Tables...))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// SeedProduct inserts an active product with the given price and stock.
func SeedProduct(t testing.TB, db *gorm.DB, name, price string, stock int) *domain.Product {
	t.Helper()
	p := &domain.Product{
		ID:            common.UUIDint64(),
		Name:          name,
		Description:   name + " description",
		Price:         decimal.RequireFromString(price),
		Category:      domain.CategoryElectronics,
		StockQuantity: stock,
		IsActive:      true,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

// Stock reads the current stock counter straight from the table.
func Stock(t testing.TB, db *gorm.DB, id int64) int {
	t.Helper()
	var p domain.Product
	require.NoError(t, db.Where("id = ?", id).First(&p).Error)
	return p.StockQuantity
}
