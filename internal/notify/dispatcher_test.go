package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"food-order-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrders struct {
	orders      map[string][]models.Order
	items       map[int64][]models.OrderItem
	restaurants map[int64][]models.OrderRestaurant
}

func (f *fakeOrders) GetOrdersByGroupID(ctx context.Context, groupID string) ([]models.Order, error) {
	return f.orders[groupID], nil
}

func (f *fakeOrders) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	return f.items[orderID], nil
}

func (f *fakeOrders) GetOrderRestaurants(ctx context.Context, orderID int64) ([]models.OrderRestaurant, error) {
	return f.restaurants[orderID], nil
}

type sentTicket struct {
	restaurantID int64
	ticket       KitchenTicket
}

type fakeBroadcaster struct {
	mu      sync.Mutex
	sent    []sentTicket
	failFor int64
}

func (f *fakeBroadcaster) NotifyRestaurant(ctx context.Context, restaurantID int64, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if restaurantID == f.failFor {
		return errors.New("redis down")
	}
	var t KitchenTicket
	if err := json.Unmarshal(payload, &t); err != nil {
		return err
	}
	f.sent = append(f.sent, sentTicket{restaurantID: restaurantID, ticket: t})
	return nil
}

type fakeEmail struct {
	sent []*Confirmation
	err  error
}

func (f *fakeEmail) SendOrderConfirmation(ctx context.Context, c *Confirmation) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, c)
	return nil
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func twoKitchenGroup() *fakeOrders {
	method := models.PaymentMethodCard
	variant := "Large"
	return &fakeOrders{
		orders: map[string][]models.Order{
			"grp-1": {{
				ID: 1, OrderNumber: "LG2601010001", GroupID: "grp-1",
				CustomerName: "Ayse", CustomerPhone: "5551234567", CustomerEmail: "ayse@example.com",
				CustomerAddress: "Main St 1", Notes: "no onions",
				SubTotal: amount("150.00"), DiscountAmount: amount("15.00"), TotalAmount: amount("135.00"),
				PaymentStatus: models.PaymentStatusPaid, PaymentMethod: &method,
			}},
		},
		items: map[int64][]models.OrderItem{
			1: {
				{OrderID: 1, ProductName: "Burger", Price: amount("60.00"), Quantity: 2, Subtotal: amount("120.00"), VariantName: &variant, RestaurantID: 10},
				{OrderID: 1, ProductName: "Pide", Price: amount("30.00"), Quantity: 1, Subtotal: amount("30.00"), RestaurantID: 20},
			},
		},
		restaurants: map[int64][]models.OrderRestaurant{
			1: {
				{OrderID: 1, RestaurantID: 10, RestaurantName: "Burger House", Subtotal: amount("120.00"), ItemCount: 2},
				{OrderID: 1, RestaurantID: 20, RestaurantName: "Pide Salonu", Subtotal: amount("30.00"), ItemCount: 1},
			},
		},
	}
}

func TestOrderSettledSendsTicketsAndEmail(t *testing.T) {
	b := &fakeBroadcaster{}
	e := &fakeEmail{}
	disp := NewDispatcher(twoKitchenGroup(), b, e)

	err := disp.OrderSettled(context.Background(), &models.OrderSettledEvent{GroupID: "grp-1", OrderID: 1})
	require.NoError(t, err)

	require.Len(t, b.sent, 2)
	burger := b.sent[0]
	assert.Equal(t, int64(10), burger.restaurantID)
	assert.Equal(t, TicketNewOrder, burger.ticket.Type)
	assert.Equal(t, "Burger House", burger.ticket.RestaurantName)
	assert.Equal(t, "no onions", burger.ticket.Notes)
	assert.Equal(t, models.PaymentMethodCard, burger.ticket.PaymentMethod)
	require.Len(t, burger.ticket.Items, 1)
	assert.Equal(t, "Burger", burger.ticket.Items[0].Name)
	assert.Equal(t, "Large", burger.ticket.Items[0].Variant)

	pide := b.sent[1]
	require.Len(t, pide.ticket.Items, 1)
	assert.Equal(t, "Pide", pide.ticket.Items[0].Name)

	require.Len(t, e.sent, 1)
	c := e.sent[0]
	assert.Equal(t, "ayse@example.com", c.To)
	assert.Equal(t, "135.00", c.TotalAmount.StringFixed(2))
	assert.Len(t, c.Restaurants, 2)
}

func TestOrderSettledSkipsEmailWithoutAddress(t *testing.T) {
	orders := twoKitchenGroup()
	o := orders.orders["grp-1"][0]
	o.CustomerEmail = ""
	orders.orders["grp-1"][0] = o
	e := &fakeEmail{}

	err := NewDispatcher(orders, &fakeBroadcaster{}, e).OrderSettled(context.Background(), &models.OrderSettledEvent{GroupID: "grp-1"})
	require.NoError(t, err)
	assert.Empty(t, e.sent)
}

func TestOrderSettledReportsPartialFailures(t *testing.T) {
	b := &fakeBroadcaster{failFor: 20}
	e := &fakeEmail{err: errors.New("smtp refused")}

	err := NewDispatcher(twoKitchenGroup(), b, e).OrderSettled(context.Background(), &models.OrderSettledEvent{GroupID: "grp-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "restaurant 20")
	assert.Contains(t, err.Error(), "smtp refused")
	assert.Len(t, b.sent, 1)
}

func TestOrderPlacedBroadcastsWithoutCustomerDetails(t *testing.T) {
	b := &fakeBroadcaster{}
	e := &fakeEmail{}

	err := NewDispatcher(twoKitchenGroup(), b, e).OrderPlaced(context.Background(), &models.OrderPlacedEvent{GroupID: "grp-1", OrderIDs: []int64{1}})
	require.NoError(t, err)

	require.Len(t, b.sent, 2)
	for _, s := range b.sent {
		assert.Equal(t, TicketOrderPlaced, s.ticket.Type)
		assert.Empty(t, s.ticket.CustomerPhone)
		assert.Empty(t, s.ticket.Items)
	}
	assert.Empty(t, e.sent)
}

func TestUnknownGroupIsIgnored(t *testing.T) {
	b := &fakeBroadcaster{}

	err := NewDispatcher(&fakeOrders{}, b, nil).OrderSettled(context.Background(), &models.OrderSettledEvent{GroupID: "missing"})
	assert.NoError(t, err)
	assert.Empty(t, b.sent)
}
