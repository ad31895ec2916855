package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/storefront/config"
	"github.com/talkincode/storefront/internal/catalog"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/orders"
	"github.com/talkincode/storefront/internal/repository/repotest"
)

func newTestApp(t *testing.T) *Application {
	cfg := *config.DefaultAppConfig
	cfg.Admin.Email = "root@shop.test"
	cfg.Admin.Password = "root-password"
	a := NewApplication(&cfg)
	a.OverrideDB(repotest.NewDB(t))
	t.Cleanup(func() { a.Bus().WaitAsync() })
	return a
}

func TestSeedAdminAndCatalog(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	a.checkSuper()
	a.checkSuper()
	u, err := a.Store().Users().GetByEmail(ctx, "root@shop.test")
	require.NoError(t, err)
	assert.True(t, u.HasRole(domain.RoleAdmin))

	a.checkProducts()
	a.checkProducts()
	all, err := a.Catalog().List(ctx, catalog.All())
	require.NoError(t, err)
	assert.Len(t, all, len(domain.Categories), "one demo product per category, seeded once")
}

func TestRunLowStockScan(t *testing.T) {
	a := newTestApp(t)
	a.checkProducts()

	n, err := a.RunLowStockScan()
	require.NoError(t, err)
	assert.Equal(t, 2, n, "puzzle and face cream start below the default threshold")
}

func TestOrderEventsReachAuditLog(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	p := repotest.SeedProduct(t, a.DB(), "Globe", "30.00", 3)

	_, err := a.Orders().Place(ctx, 77, orders.PlaceInput{
		Items:           []orders.LineInput{{ProductID: p.ID, Quantity: 1}},
		ShippingAddress: "3 Hill Rd",
	})
	require.NoError(t, err)
	a.Bus().WaitAsync()

	logs, err := a.Store().AuditLogs().List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "order_placed", logs[0].Action)
	assert.Equal(t, "user:77", logs[0].Actor)
}

func TestClearAuditLog(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, a.Store().AuditLogs().Create(ctx, &domain.AuditLog{Action: "old", At: time.Now().Add(-400 * 24 * time.Hour)}))
	require.NoError(t, a.Store().AuditLogs().Create(ctx, &domain.AuditLog{Action: "fresh"}))

	a.SchedClearAuditLog()

	logs, err := a.Store().AuditLogs().List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "fresh", logs[0].Action)
}

func TestSqlitePath(t *testing.T) {
	assert.Equal(t, "/w/data/storefront.db", sqlitePath("", "/w"))
	assert.Equal(t, "/w/data/shop.db", sqlitePath("shop", "/w"))
	assert.Equal(t, "file::memory:", sqlitePath("file::memory:", "/w"))
	assert.Equal(t, "/tmp/x.db", sqlitePath("/tmp/x.db", "/w"))
}

func TestInitDbRecreatesTables(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	a.checkProducts()

	a.InitDb()
	all, err := a.Catalog().List(ctx, catalog.All())
	require.NoError(t, err)
	assert.Empty(t, all)

	a.checkProducts()
	all, err = a.Catalog().List(ctx, catalog.All())
	require.NoError(t, err)
	assert.Len(t, all, len(domain.Categories))
}
