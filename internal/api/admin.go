package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/montanaflynn/stats"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/orders"
	"github.com/talkincode/storefront/internal/webserver"
	"github.com/talkincode/storefront/pkg/metrics"
	"go.uber.org/zap"
)

const orderStatsSample = 200

type statusPayload struct {
	Status string `json:"status" validate:"required"`
}

// registerAdminRoutes registers back office order, audit and metrics endpoints
func registerAdminRoutes() {
	webserver.ApiGET("/admin/orders", listAllOrders, requireAdmin)
	webserver.ApiPUT("/admin/orders/:id/status", updateOrderStatus, requireAdmin)
	webserver.ApiGET("/admin/metrics", getMetrics, requireAdmin)
	webserver.ApiGET("/admin/audit", listAuditLog, requireAdmin)
	webserver.ApiPOST("/admin/jobs/low-stock", runLowStock, requireAdmin)
}

// @Summary list all orders
// @Tags Admin
// @Param status query string false "Order status"
// @Param since query string false "Created since"
// @Param limit query int false "Max rows"
// @Success 200 {array} domain.OrderView
// @Router /api/admin/orders [get]
func listAllOrders(c echo.Context) error {
	views, err := GetAppContext(c).Orders().ListAll(requestContext(c), orderFilter(c))
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, views)
}

// @Summary change an order status
// @Tags Admin
// @Param id path string true "Order ID"
// @Param body body statusPayload true "Status"
// @Success 200 {object} domain.OrderView
// @Failure 400 {object} errorBody
// @Router /api/admin/orders/{id}/status [put]
func updateOrderStatus(c echo.Context) error {
	id, valid := parseID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
	}
	var payload statusPayload
	if err := bindJSON(c, &payload); err != nil {
		return failErr(c, err)
	}
	next, known := domain.ParseOrderStatus(payload.Status)
	if !known {
		verr := &domain.ValidationError{}
		verr.Add("status", "unknown order status %q", payload.Status)
		return failErr(c, verr)
	}
	view, err := GetAppContext(c).Orders().UpdateStatus(requestContext(c), id, next)
	if err != nil {
		return failErr(c, err)
	}
	audit(c, "order_status", fmt.Sprintf("order %d set to %s", id, next))
	return ok(c, view)
}

type orderValueStats struct {
	Sample int     `json:"sample"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
	Max    float64 `json:"max"`
}

// @Summary shop metrics of the last 24 hours
// @Tags Admin
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/metrics [get]
func getMetrics(c echo.Context) error {
	since := time.Now().Add(-24 * time.Hour)
	result := map[string]interface{}{"window": "24h"}
	for _, name := range []string{metrics.OrderPlaced, metrics.OrderCancelled, metrics.OrderRevenueCents} {
		v, err := metrics.Sum(name, since)
		if err != nil {
			zap.L().Warn("read metric", zap.String("name", name), zap.Error(err))
		}
		result[name] = v
	}
	for _, name := range []string{metrics.LowStockProducts, metrics.ProcessCPUUse, metrics.ProcessMemUse} {
		v, err := metrics.Gauge(name, since)
		if err != nil {
			zap.L().Warn("read metric", zap.String("name", name), zap.Error(err))
		}
		result[name] = v
	}

	views, err := GetAppContext(c).Orders().ListAll(requestContext(c), orders.ListFilter{Limit: orderStatsSample})
	if err != nil {
		return failErr(c, err)
	}
	result["order_value"] = summarize(views)
	return ok(c, result)
}

// summarize computes order value statistics over non cancelled orders.
func summarize(views []domain.OrderView) orderValueStats {
	data := make(stats.Float64Data, 0, len(views))
	for _, v := range views {
		if v.Status == string(domain.OrderCancelled) {
			continue
		}
		data = append(data, v.TotalAmount.InexactFloat64())
	}
	out := orderValueStats{Sample: len(data)}
	if len(data) == 0 {
		return out
	}
	out.Mean, _ = stats.Round(orZero(data.Mean()), 2)
	out.Median, _ = stats.Round(orZero(data.Median()), 2)
	out.P90, _ = stats.Round(orZero(data.Percentile(90)), 2)
	out.Max = orZero(data.Max())
	return out
}

func orZero(v float64, err error) float64 {
	if err != nil {
		return 0
	}
	return v
}

// @Summary recent audit log entries
// @Tags Admin
// @Param limit query int false "Max rows"
// @Success 200 {array} domain.AuditLog
// @Router /api/admin/audit [get]
func listAuditLog(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	logs, err := GetAppContext(c).Store().AuditLogs().List(requestContext(c), limit)
	if err != nil {
		return failErr(c, err)
	}
	if logs == nil {
		logs = []domain.AuditLog{}
	}
	return ok(c, logs)
}

// @Summary run the low stock scan now
// @Tags Admin
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/jobs/low-stock [post]
func runLowStock(c echo.Context) error {
	n, err := GetAppContext(c).RunLowStockScan()
	if err != nil {
		return failErr(c, err)
	}
	audit(c, "job_low_stock", fmt.Sprintf("low stock scan flagged %d products", n))
	return ok(c, map[string]interface{}{
		"low_stock_products": n,
		"threshold":          GetAppContext(c).Config().Catalog.LowStockThreshold,
	})
}
