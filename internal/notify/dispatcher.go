package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"food-order-service/internal/models"
	"food-order-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Kitchen ticket types
const (
	TicketOrderPlaced = "order_placed"
	TicketNewOrder    = "new_order"
)

// Broadcaster pushes a payload to the restaurant's kitchen screens
type Broadcaster interface {
	NotifyRestaurant(ctx context.Context, restaurantID int64, payload []byte) error
}

// EmailSender delivers the customer confirmation
type EmailSender interface {
	SendOrderConfirmation(ctx context.Context, c *Confirmation) error
}

// OrderReader loads a group's orders with their lines
type OrderReader interface {
	GetOrdersByGroupID(ctx context.Context, groupID string) ([]models.Order, error)
	GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	GetOrderRestaurants(ctx context.Context, orderID int64) ([]models.OrderRestaurant, error)
}

// TicketItem is one line printed on a kitchen ticket
type TicketItem struct {
	Name     string          `json:"name"`
	Variant  string          `json:"variant,omitempty"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// KitchenTicket is the message a restaurant receives for its part of an order
type KitchenTicket struct {
	Type            string               `json:"type"`
	OrderID         int64                `json:"orderId"`
	OrderNumber     string               `json:"orderNumber"`
	GroupID         string               `json:"groupId"`
	RestaurantID    int64                `json:"restaurantId"`
	RestaurantName  string               `json:"restaurantName"`
	CustomerName    string               `json:"customerName,omitempty"`
	CustomerPhone   string               `json:"customerPhone,omitempty"`
	CustomerAddress string               `json:"customerAddress,omitempty"`
	Notes           string               `json:"notes,omitempty"`
	PaymentMethod   string               `json:"paymentMethod,omitempty"`
	PaymentStatus   models.PaymentStatus `json:"paymentStatus"`
	Subtotal        decimal.Decimal      `json:"subtotal"`
	ItemCount       int                  `json:"itemCount"`
	Items           []TicketItem         `json:"items,omitempty"`
	CreatedAt       time.Time            `json:"createdAt"`
}

// Confirmation is the data rendered into the customer email
type Confirmation struct {
	To             string
	CustomerName   string
	OrderNumber    string
	PaymentMethod  string
	PaymentStatus  models.PaymentStatus
	SubTotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal
	Restaurants    []ConfirmationRestaurant
}

type ConfirmationRestaurant struct {
	Name     string
	Subtotal decimal.Decimal
	Items    []TicketItem
}

// Dispatcher turns settlement events into emails and kitchen broadcasts.
// Failures are returned so the event is redelivered; settlement is never touched.
type Dispatcher struct {
	orders      OrderReader
	broadcaster Broadcaster
	email       EmailSender
	logger      *zap.Logger
}

// NewDispatcher creates a dispatcher. email may be nil when SMTP is not configured.
func NewDispatcher(orders OrderReader, broadcaster Broadcaster, email EmailSender) *Dispatcher {
	return &Dispatcher{
		orders:      orders,
		broadcaster: broadcaster,
		email:       email,
		logger:      util.GetLogger(),
	}
}

type loadedOrder struct {
	order       models.Order
	items       []models.OrderItem
	restaurants []models.OrderRestaurant
}

// OrderPlaced sends a lightweight heads-up to every restaurant in the group
func (d *Dispatcher) OrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	ctx, span := util.StartSpan(ctx, "Dispatcher.OrderPlaced")
	defer span.End()

	orders, err := d.loadGroup(ctx, event.GroupID, false)
	if err != nil {
		return err
	}

	var errs []error
	for _, o := range orders {
		for _, r := range o.restaurants {
			ticket := newTicket(TicketOrderPlaced, o.order, r)
			errs = append(errs, d.broadcast(ctx, ticket))
		}
	}
	return errors.Join(errs...)
}

// OrderSettled emails the customer and sends full kitchen tickets
func (d *Dispatcher) OrderSettled(ctx context.Context, event *models.OrderSettledEvent) error {
	ctx, span := util.StartSpan(ctx, "Dispatcher.OrderSettled")
	defer span.End()

	orders, err := d.loadGroup(ctx, event.GroupID, true)
	if err != nil {
		return err
	}

	var errs []error
	for _, o := range orders {
		for _, r := range o.restaurants {
			ticket := newTicket(TicketNewOrder, o.order, r)
			ticket.CustomerName = o.order.CustomerName
			ticket.CustomerPhone = o.order.CustomerPhone
			ticket.CustomerAddress = o.order.CustomerAddress
			ticket.Notes = o.order.Notes
			ticket.Items = ticketItems(o.items, r.RestaurantID)
			errs = append(errs, d.broadcast(ctx, ticket))
		}

		if o.order.CustomerEmail == "" || d.email == nil {
			continue
		}
		if err := d.email.SendOrderConfirmation(ctx, confirmationFor(o)); err != nil {
			util.NotificationsDispatchedTotal.WithLabelValues("email", "error").Inc()
			d.logger.Error("Failed to send order confirmation",
				zap.Int64("order_id", o.order.ID),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("email order %d: %w", o.order.ID, err))
			continue
		}
		util.NotificationsDispatchedTotal.WithLabelValues("email", "sent").Inc()
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) loadGroup(ctx context.Context, groupID string, withItems bool) ([]loadedOrder, error) {
	orders, err := d.orders.GetOrdersByGroupID(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load group %s: %w", groupID, err)
	}
	if len(orders) == 0 {
		d.logger.Warn("Notification for unknown group", zap.String("group_id", groupID))
		return nil, nil
	}

	loaded := make([]loadedOrder, 0, len(orders))
	for _, order := range orders {
		lo := loadedOrder{order: order}
		if lo.restaurants, err = d.orders.GetOrderRestaurants(ctx, order.ID); err != nil {
			return nil, fmt.Errorf("failed to load restaurants of order %d: %w", order.ID, err)
		}
		if withItems {
			if lo.items, err = d.orders.GetOrderItems(ctx, order.ID); err != nil {
				return nil, fmt.Errorf("failed to load items of order %d: %w", order.ID, err)
			}
		}
		loaded = append(loaded, lo)
	}
	return loaded, nil
}

func (d *Dispatcher) broadcast(ctx context.Context, ticket KitchenTicket) error {
	payload, err := json.Marshal(ticket)
	if err != nil {
		return fmt.Errorf("failed to marshal kitchen ticket: %w", err)
	}
	if err := d.broadcaster.NotifyRestaurant(ctx, ticket.RestaurantID, payload); err != nil {
		util.NotificationsDispatchedTotal.WithLabelValues("kitchen", "error").Inc()
		d.logger.Error("Failed to notify restaurant",
			zap.Int64("order_id", ticket.OrderID),
			zap.Int64("restaurant_id", ticket.RestaurantID),
			zap.Error(err))
		return fmt.Errorf("notify restaurant %d: %w", ticket.RestaurantID, err)
	}
	util.NotificationsDispatchedTotal.WithLabelValues("kitchen", "sent").Inc()
	return nil
}

func newTicket(kind string, order models.Order, r models.OrderRestaurant) KitchenTicket {
	t := KitchenTicket{
		Type:           kind,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		GroupID:        order.GroupID,
		RestaurantID:   r.RestaurantID,
		RestaurantName: r.RestaurantName,
		PaymentStatus:  order.PaymentStatus,
		Subtotal:       r.Subtotal,
		ItemCount:      r.ItemCount,
		CreatedAt:      order.CreatedAt,
	}
	if order.PaymentMethod != nil {
		t.PaymentMethod = *order.PaymentMethod
	}
	return t
}

func ticketItems(items []models.OrderItem, restaurantID int64) []TicketItem {
	var out []TicketItem
	for _, item := range items {
		if item.RestaurantID != restaurantID {
			continue
		}
		ti := TicketItem{
			Name:     item.ProductName,
			Quantity: item.Quantity,
			Price:    item.Price,
			Subtotal: item.Subtotal,
		}
		if item.VariantName != nil {
			ti.Variant = *item.VariantName
		}
		out = append(out, ti)
	}
	return out
}

func confirmationFor(o loadedOrder) *Confirmation {
	c := &Confirmation{
		To:             o.order.CustomerEmail,
		CustomerName:   o.order.CustomerName,
		OrderNumber:    o.order.OrderNumber,
		PaymentStatus:  o.order.PaymentStatus,
		SubTotal:       o.order.SubTotal,
		DiscountAmount: o.order.DiscountAmount,
		TotalAmount:    o.order.TotalAmount,
	}
	if o.order.PaymentMethod != nil {
		c.PaymentMethod = *o.order.PaymentMethod
	}
	for _, r := range o.restaurants {
		c.Restaurants = append(c.Restaurants, ConfirmationRestaurant{
			Name:     r.RestaurantName,
			Subtotal: r.Subtotal,
			Items:    ticketItems(o.items, r.RestaurantID),
		})
	}
	return c
}
