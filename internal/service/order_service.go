package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"food-order-service/internal/apperr"
	"food-order-service/internal/coupon"
	"food-order-service/internal/models"
	"food-order-service/internal/store"
	"food-order-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderTx is everything the order builder writes inside its transaction
type OrderTx interface {
	CatalogReader
	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	RedeemCoupon(ctx context.Context, couponID int64) (bool, error)
	InsertCouponUsage(ctx context.Context, usage *models.CouponUsage) error
	InsertOrder(ctx context.Context, order *models.Order) error
	InsertOrderItems(ctx context.Context, items []models.OrderItem) error
	InsertOrderRestaurants(ctx context.Context, rows []models.OrderRestaurant) error
	InsertOutboxEvent(ctx context.Context, event *models.OutboxEvent) error
}

// OrderRepository is the persistence the order service depends on
type OrderRepository interface {
	InTx(ctx context.Context, fn func(OrderTx) error) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, customerID int64, key string) (*models.Order, error)
	GetOrdersByGroupID(ctx context.Context, groupID string) ([]models.Order, error)
	GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	GetOrderRestaurants(ctx context.Context, orderID int64) ([]models.OrderRestaurant, error)
}

type sqlOrderRepository struct {
	*store.Store
}

func (r sqlOrderRepository) InTx(ctx context.Context, fn func(OrderTx) error) error {
	return r.Store.WithTx(ctx, func(tx *store.Tx) error { return fn(tx) })
}

// OrderService builds orders from carts
type OrderService struct {
	repo              OrderRepository
	splitByRestaurant bool
	now               func() time.Time
	logger            *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(st *store.Store, splitByRestaurant bool) *OrderService {
	return newOrderService(sqlOrderRepository{st}, splitByRestaurant)
}

func newOrderService(repo OrderRepository, splitByRestaurant bool) *OrderService {
	return &OrderService{
		repo:              repo,
		splitByRestaurant: splitByRestaurant,
		now:               time.Now,
		logger:            util.GetLogger(),
	}
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	CustomerID      int64              `json:"customerId"`
	CustomerName    string             `json:"customerName" binding:"required,max=200"`
	CustomerPhone   string             `json:"customerPhone" binding:"required,max=32"`
	CustomerEmail   string             `json:"customerEmail" binding:"omitempty,email"`
	CustomerAddress string             `json:"customerAddress" binding:"required,max=500"`
	Notes           string             `json:"notes" binding:"max=1000"`
	Items           []OrderLineRequest `json:"items" binding:"required,min=1,dive"`
	CouponCode      string             `json:"couponCode"`
	IdempotencyKey  string             `json:"-"`
}

// OrderLineRequest is one cart line. Prices are always taken from the catalog.
type OrderLineRequest struct {
	ProductID int64  `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1,max=100"`
	VariantID *int64 `json:"variantId"`
}

// RestaurantSummary is the per-kitchen slice of a created order
type RestaurantSummary struct {
	RestaurantID   int64           `json:"restaurantId"`
	RestaurantName string          `json:"restaurantName"`
	ItemCount      int             `json:"itemCount"`
	Subtotal       decimal.Decimal `json:"subtotal"`
}

// OrderSummary describes one persisted order of a split checkout
type OrderSummary struct {
	OrderID        int64           `json:"orderId"`
	OrderNumber    string          `json:"orderNumber"`
	RestaurantID   int64           `json:"restaurantId"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
}

// CreateOrderResponse carries server-computed amounts for the whole checkout
type CreateOrderResponse struct {
	OrderID        int64               `json:"orderId"`
	OrderNumber    string              `json:"orderNumber"`
	GroupID        string              `json:"groupId"`
	Subtotal       decimal.Decimal     `json:"subtotal"`
	DiscountAmount decimal.Decimal     `json:"discountAmount"`
	TotalAmount    decimal.Decimal     `json:"totalAmount"`
	CreatedAt      time.Time           `json:"createdAt"`
	Restaurants    []RestaurantSummary `json:"restaurants"`
	Orders         []OrderSummary      `json:"orders,omitempty"`
}

// OrderDetails is an order with its items and kitchens
type OrderDetails struct {
	Order       *models.Order            `json:"order"`
	Items       []models.OrderItem       `json:"items"`
	Restaurants []models.OrderRestaurant `json:"restaurants"`
}

// CreateOrder re-prices the cart, applies the coupon and persists the order
// (or one order per restaurant) in a single transaction.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if req.CustomerID <= 0 {
		util.OrdersFailedTotal.WithLabelValues("unauthenticated").Inc()
		return nil, apperr.Auth("customer must be authenticated")
	}
	if len(req.Items) == 0 {
		return nil, apperr.Validation("order must contain at least one item")
	}

	if req.IdempotencyKey != "" {
		existing, err := s.repo.GetOrderByIdempotencyKey(ctx, req.CustomerID, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency: %w", err)
		}
		if existing != nil {
			s.logger.Info("Duplicate order request detected",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.Int64("order_id", existing.ID))
			return s.replay(ctx, existing)
		}
	}

	var (
		orders      []models.Order
		restaurants [][]models.OrderRestaurant
	)
	err := s.repo.InTx(ctx, func(tx OrderTx) error {
		var err error
		orders, restaurants, err = s.build(ctx, tx, req)
		return err
	})
	if err != nil {
		if req.IdempotencyKey != "" && store.IsUniqueViolation(err) {
			if existing, lookupErr := s.repo.GetOrderByIdempotencyKey(ctx, req.CustomerID, req.IdempotencyKey); lookupErr == nil && existing != nil {
				return s.replay(ctx, existing)
			}
		}
		util.OrdersFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", orders[0].ID),
		zap.String("group_id", orders[0].GroupID),
		zap.Int("orders", len(orders)),
		zap.String("total", sumTotals(orders).StringFixed(2)))

	return buildResponse(orders, restaurants), nil
}

func (s *OrderService) build(ctx context.Context, tx OrderTx, req *CreateOrderRequest) ([]models.Order, [][]models.OrderRestaurant, error) {
	cart, err := priceCart(ctx, tx, req.Items)
	if err != nil {
		return nil, nil, err
	}

	var (
		applied  *models.Coupon
		discount = decimal.Zero
	)
	if code := coupon.NormalizeCode(req.CouponCode); code != "" {
		c, err := tx.GetCouponByCode(ctx, code)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load coupon: %w", err)
		}
		if c == nil {
			util.CouponRedemptionsTotal.WithLabelValues("rejected").Inc()
			return nil, nil, coupon.Reject(code, coupon.NotFound)
		}
		discount, err = coupon.Evaluate(c, cart.subTotal, s.now())
		if err != nil {
			util.CouponRedemptionsTotal.WithLabelValues("rejected").Inc()
			return nil, nil, err
		}
		ok, err := tx.RedeemCoupon(ctx, c.ID)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			util.CouponRedemptionsTotal.WithLabelValues("exhausted").Inc()
			return nil, nil, coupon.Reject(code, coupon.UsageLimitReached)
		}
		util.CouponRedemptionsTotal.WithLabelValues("redeemed").Inc()
		applied = c
	}

	groupID := uuid.New().String()
	base := models.Order{
		GroupID:         groupID,
		CustomerID:      req.CustomerID,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerEmail:   req.CustomerEmail,
		CustomerAddress: req.CustomerAddress,
		Notes:           req.Notes,
		Status:          models.OrderStatusPending,
		PaymentStatus:   models.PaymentStatusPending,
	}
	if applied != nil {
		id, code := applied.ID, applied.Code
		base.CouponID = &id
		base.CouponCode = &code
	}

	type part struct {
		items       []models.OrderItem
		restaurants []models.OrderRestaurant
		subTotal    decimal.Decimal
		discount    decimal.Decimal
	}

	var parts []part
	if s.splitByRestaurant && len(cart.restaurants) > 1 {
		subtotals := make([]decimal.Decimal, len(cart.restaurants))
		for i, r := range cart.restaurants {
			subtotals[i] = r.Subtotal
		}
		shares := coupon.Allocate(discount, subtotals)
		for i, r := range cart.restaurants {
			parts = append(parts, part{
				items:       cart.itemsFor(r.RestaurantID),
				restaurants: []models.OrderRestaurant{r},
				subTotal:    r.Subtotal,
				discount:    shares[i],
			})
		}
	} else {
		parts = []part{{
			items:       cart.items,
			restaurants: cart.restaurants,
			subTotal:    cart.subTotal,
			discount:    discount,
		}}
	}

	now := s.now()
	orders := make([]models.Order, 0, len(parts))
	restaurants := make([][]models.OrderRestaurant, 0, len(parts))
	for i, p := range parts {
		order := base
		order.OrderNumber = GenerateOrderNumber(now)
		order.SubTotal = p.subTotal
		order.DiscountAmount = p.discount
		order.TotalAmount = p.subTotal.Sub(p.discount)
		if i == 0 && req.IdempotencyKey != "" {
			key := req.IdempotencyKey
			order.IdempotencyKey = &key
		}

		if err := tx.InsertOrder(ctx, &order); err != nil {
			return nil, nil, fmt.Errorf("failed to create order: %w", err)
		}

		items := make([]models.OrderItem, len(p.items))
		for j, item := range p.items {
			item.OrderID = order.ID
			items[j] = item
		}
		if err := tx.InsertOrderItems(ctx, items); err != nil {
			return nil, nil, err
		}

		rows := make([]models.OrderRestaurant, len(p.restaurants))
		for j, r := range p.restaurants {
			r.OrderID = order.ID
			rows[j] = r
		}
		if err := tx.InsertOrderRestaurants(ctx, rows); err != nil {
			return nil, nil, err
		}

		orders = append(orders, order)
		restaurants = append(restaurants, rows)
	}

	if applied != nil {
		usage := &models.CouponUsage{
			CouponID:       applied.ID,
			CustomerID:     req.CustomerID,
			OrderID:        orders[0].ID,
			DiscountAmount: discount,
		}
		if err := tx.InsertCouponUsage(ctx, usage); err != nil {
			return nil, nil, fmt.Errorf("failed to record coupon usage: %w", err)
		}
	}

	event, err := orderPlacedEvent(groupID, orders, now)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.InsertOutboxEvent(ctx, event); err != nil {
		return nil, nil, err
	}

	return orders, restaurants, nil
}

// GetOrder retrieves an order with its items and restaurants
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*OrderDetails, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, notFoundOr(err, "order %d not found", orderID)
	}

	items, err := s.repo.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}

	restaurants, err := s.repo.GetOrderRestaurants(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return &OrderDetails{Order: order, Items: items, Restaurants: restaurants}, nil
}

// replay rebuilds the original response of an idempotent retry
func (s *OrderService) replay(ctx context.Context, first *models.Order) (*CreateOrderResponse, error) {
	orders, err := s.repo.GetOrdersByGroupID(ctx, first.GroupID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		orders = []models.Order{*first}
	}

	restaurants := make([][]models.OrderRestaurant, len(orders))
	for i := range orders {
		if restaurants[i], err = s.repo.GetOrderRestaurants(ctx, orders[i].ID); err != nil {
			return nil, err
		}
	}
	return buildResponse(orders, restaurants), nil
}

func buildResponse(orders []models.Order, restaurants [][]models.OrderRestaurant) *CreateOrderResponse {
	first := orders[0]
	resp := &CreateOrderResponse{
		OrderID:        first.ID,
		OrderNumber:    first.OrderNumber,
		GroupID:        first.GroupID,
		Subtotal:       decimal.Zero,
		DiscountAmount: decimal.Zero,
		TotalAmount:    decimal.Zero,
		CreatedAt:      first.CreatedAt,
	}

	for i, order := range orders {
		resp.Subtotal = resp.Subtotal.Add(order.SubTotal)
		resp.DiscountAmount = resp.DiscountAmount.Add(order.DiscountAmount)
		resp.TotalAmount = resp.TotalAmount.Add(order.TotalAmount)

		for _, r := range restaurants[i] {
			resp.Restaurants = append(resp.Restaurants, RestaurantSummary{
				RestaurantID:   r.RestaurantID,
				RestaurantName: r.RestaurantName,
				ItemCount:      r.ItemCount,
				Subtotal:       r.Subtotal,
			})
		}

		if len(orders) > 1 {
			var restaurantID int64
			if len(restaurants[i]) > 0 {
				restaurantID = restaurants[i][0].RestaurantID
			}
			resp.Orders = append(resp.Orders, OrderSummary{
				OrderID:        order.ID,
				OrderNumber:    order.OrderNumber,
				RestaurantID:   restaurantID,
				Subtotal:       order.SubTotal,
				DiscountAmount: order.DiscountAmount,
				TotalAmount:    order.TotalAmount,
			})
		}
	}
	return resp
}

func orderPlacedEvent(groupID string, orders []models.Order, now time.Time) (*models.OutboxEvent, error) {
	ids := make([]int64, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}

	event := models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: now,
		},
		GroupID:  groupID,
		OrderIDs: ids,
	}
	return newOutboxEvent(event.BaseEvent, groupID, event)
}

func newOutboxEvent(base models.BaseEvent, aggregateID string, payload any) (*models.OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", base.EventType, err)
	}
	return &models.OutboxEvent{
		EventID:     base.EventID,
		AggregateID: aggregateID,
		EventType:   base.EventType,
		Payload:     string(data),
		Status:      models.OutboxStatusPending,
	}, nil
}

// GenerateOrderNumber returns LG + YYMMDD + four random digits.
// Numbers are human readable and may collide.
func GenerateOrderNumber(now time.Time) string {
	return fmt.Sprintf("LG%s%04d", now.Format("060102"), rand.Intn(10000))
}

func sumTotals(orders []models.Order) decimal.Decimal {
	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(o.TotalAmount)
	}
	return total
}

func failureReason(err error) string {
	var couponErr *coupon.Error
	if errors.As(err, &couponErr) {
		return "coupon_rejected"
	}
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return "invalid_items"
	case apperr.KindValidation:
		return "validation"
	}
	return "db_error"
}
