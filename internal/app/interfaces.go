package app

import (
	"github.com/asaskevich/EventBus"
	"github.com/robfig/cron/v3"
	"github.com/talkincode/storefront/config"
	"github.com/talkincode/storefront/internal/auth"
	"github.com/talkincode/storefront/internal/catalog"
	"github.com/talkincode/storefront/internal/orders"
	"github.com/talkincode/storefront/internal/repository"
	"gorm.io/gorm"
)

// DBProvider provides database access
type DBProvider interface {
	DB() *gorm.DB
}

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// StoreProvider provides the repository store
type StoreProvider interface {
	Store() repository.Store
}

// CatalogProvider provides the product catalog service
type CatalogProvider interface {
	Catalog() *catalog.Service
}

// OrdersProvider provides the order workflow
type OrdersProvider interface {
	Orders() *orders.Workflow
}

// AuthProvider provides registration, login and token verification
type AuthProvider interface {
	Auth() *auth.Service
}

// SchedulerProvider provides task scheduling capability
type SchedulerProvider interface {
	Scheduler() *cron.Cron
}

// BusProvider provides the order event bus
type BusProvider interface {
	Bus() EventBus.Bus
}

// AppContext combines all provider interfaces for full application context
// Handlers should depend on specific providers or this combined interface
type AppContext interface {
	DBProvider
	ConfigProvider
	StoreProvider
	CatalogProvider
	OrdersProvider
	AuthProvider
	SchedulerProvider
	BusProvider

	MigrateDB(track bool) error
	InitDb()
	// RunLowStockScan runs the low stock job immediately and returns the flagged products
	RunLowStockScan() (int, error)
}
