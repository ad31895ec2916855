package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/storefront/internal/orders"
	"github.com/talkincode/storefront/internal/webserver"
)

// flexID accepts ids as JSON strings, which is how they are rendered, or as numbers.
type flexID int64

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", b)
	}
	*f = flexID(n)
	return nil
}

type orderLinePayload struct {
	ProductID flexID `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type orderPayload struct {
	Items           []orderLinePayload `json:"items"`
	ShippingAddress string             `json:"shipping_address"`
	Notes           string             `json:"notes"`
}

func (p orderPayload) input() orders.PlaceInput {
	in := orders.PlaceInput{ShippingAddress: p.ShippingAddress, Notes: p.Notes}
	for _, it := range p.Items {
		in.Items = append(in.Items, orders.LineInput{ProductID: int64(it.ProductID), Quantity: it.Quantity})
	}
	return in
}

func orderFilter(c echo.Context) orders.ListFilter {
	f := orders.ListFilter{
		Status: c.QueryParam("status"),
		Since:  c.QueryParam("since"),
	}
	if limit, err := strconv.Atoi(c.QueryParam("limit")); err == nil {
		f.Limit = limit
	}
	return f
}

// registerOrderRoutes registers the customer order endpoints
func registerOrderRoutes() {
	webserver.ApiGET("/orders", listOrders, requireAuth)
	webserver.ApiGET("/orders/:id", getOrder, requireAuth)
	webserver.ApiPOST("/orders", placeOrder, requireAuth)
	webserver.ApiPOST("/orders/:id/cancel", cancelOrder, requireAuth)
}

// @Summary list own orders
// @Tags Orders
// @Param status query string false "Order status"
// @Param since query string false "Created since"
// @Param limit query int false "Max rows"
// @Success 200 {array} domain.OrderView
// @Router /api/orders [get]
func listOrders(c echo.Context) error {
	views, err := GetAppContext(c).Orders().List(requestContext(c), currentIdentity(c).UserID, orderFilter(c))
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, views)
}

// @Summary get an own order
// @Tags Orders
// @Param id path string true "Order ID"
// @Success 200 {object} domain.OrderView
// @Failure 404 {object} errorBody
// @Router /api/orders/{id} [get]
func getOrder(c echo.Context) error {
	id, valid := parseID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
	}
	view, err := GetAppContext(c).Orders().Get(requestContext(c), currentIdentity(c).UserID, id)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, view)
}

// @Summary place an order
// @Tags Orders
// @Param body body orderPayload true "Order"
// @Success 201 {object} domain.OrderView
// @Failure 400 {object} errorBody
// @Router /api/orders [post]
func placeOrder(c echo.Context) error {
	var payload orderPayload
	if err := bindJSON(c, &payload); err != nil {
		return failErr(c, err)
	}
	view, err := GetAppContext(c).Orders().Place(requestContext(c), currentIdentity(c).UserID, payload.input())
	if err != nil {
		return failErr(c, err)
	}
	return created(c, fmt.Sprintf("/api/orders/%d", view.ID), view)
}

// @Summary cancel an own order
// @Tags Orders
// @Param id path string true "Order ID"
// @Success 200 {object} domain.OrderView
// @Failure 400 {object} errorBody
// @Router /api/orders/{id}/cancel [post]
func cancelOrder(c echo.Context) error {
	id, valid := parseID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
	}
	view, err := GetAppContext(c).Orders().Cancel(requestContext(c), currentIdentity(c).UserID, id)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, view)
}
