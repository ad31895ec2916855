package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{OrderPending, OrderProcessing, true},
		{OrderProcessing, OrderShipped, true},
		{OrderShipped, OrderDelivered, true},
		{OrderPending, OrderCancelled, true},
		{OrderProcessing, OrderCancelled, true},
		{OrderShipped, OrderCancelled, false},
		{OrderDelivered, OrderCancelled, false},
		{OrderCancelled, OrderCancelled, false},
		{OrderPending, OrderShipped, false},
		{OrderDelivered, OrderPending, false},
		{OrderCancelled, OrderPending, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
	assert.True(t, OrderPending.Cancellable())
	assert.False(t, OrderShipped.Cancellable())
}

func TestParseCategoryAndStatus(t *testing.T) {
	c, ok := ParseCategory("home & garden")
	require.True(t, ok)
	assert.Equal(t, CategoryHomeGarden, c)
	_, ok = ParseCategory("Weapons")
	assert.False(t, ok)

	st, ok := ParseOrderStatus("shipped")
	require.True(t, ok)
	assert.Equal(t, OrderShipped, st)
}

func TestOrderViewComputesLineTotals(t *testing.T) {
	o := Order{
		ID:     1,
		Status: OrderPending,
		Items: []OrderItem{
			{ProductID: 10, ProductName: "Lamp", Quantity: 3, UnitPrice: decimal.RequireFromString("19.99")},
			{ProductID: 11, ProductName: "Book", Quantity: 1, UnitPrice: decimal.RequireFromString("5.50")},
		},
	}
	v := o.View()
	require.Len(t, v.Items, 2)
	assert.Equal(t, "Pending", v.Status)
	assert.Equal(t, "59.97", v.Items[0].LineTotal.StringFixed(2))
	assert.Equal(t, "5.50", v.Items[1].LineTotal.StringFixed(2))
}

func TestValidationErrorAggregates(t *testing.T) {
	var verr ValidationError
	require.NoError(t, verr.Err())
	verr.Add("name", "is required")
	verr.Add("name", "ignored second message")
	verr.Add("price", "must be at least %s", "0.01")
	err := verr.Err()
	require.Error(t, err)
	var target *ValidationError
	require.True(t, errors.As(err, &target))
	assert.Equal(t, "is required", target.Fields["name"])
	assert.Equal(t, "validation failed: name: is required; price: must be at least 0.01", err.Error())
}

func TestStockErrorUnwraps(t *testing.T) {
	err := error(&StockError{ProductID: 1, Name: "Lamp", Requested: 3, Available: 1})
	assert.True(t, errors.Is(err, ErrInsufficientStock))
}

func TestUserRoles(t *testing.T) {
	u := User{}
	u.SetRoles(RoleAdmin, RoleUser)
	assert.True(t, u.HasRole("admin"))
	assert.Equal(t, []string{RoleAdmin, RoleUser}, u.RoleList())
}
