package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"food-order-service/internal/gateway"
	"food-order-service/internal/models"
	"food-order-service/internal/store"

	"github.com/shopspring/decimal"
)

// memStore is an in-memory stand-in for the Postgres store. Transactions are
// serialized and rolled back by restoring a snapshot.
type memStore struct {
	mu          sync.Mutex
	products    map[int64]models.Product
	variants    map[int64]models.ProductVariant
	coupons     map[string]models.Coupon
	orders      map[int64]models.Order
	items       map[int64][]models.OrderItem
	restaurants map[int64][]models.OrderRestaurant
	usages      []models.CouponUsage
	outbox      []models.OutboxEvent
	nextID      int64
}

func newMemStore() *memStore {
	return &memStore{
		products:    map[int64]models.Product{},
		variants:    map[int64]models.ProductVariant{},
		coupons:     map[string]models.Coupon{},
		orders:      map[int64]models.Order{},
		items:       map[int64][]models.OrderItem{},
		restaurants: map[int64][]models.OrderRestaurant{},
	}
}

func (m *memStore) addProduct(id, restaurantID int64, restaurant, name, price string) {
	m.products[id] = models.Product{
		ID: id, RestaurantID: restaurantID, RestaurantName: restaurant, Name: name,
		Price: decimal.RequireFromString(price), IsActive: true,
	}
}

func (m *memStore) addCoupon(c models.Coupon) {
	m.coupons[strings.ToUpper(c.Code)] = c
}

// addOrder stores a Pending order and returns its id
func (m *memStore) addOrder(groupID, total string, status models.PaymentStatus) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	amount := decimal.RequireFromString(total)
	m.orders[m.nextID] = models.Order{
		ID: m.nextID, OrderNumber: fmt.Sprintf("LG260101%04d", m.nextID), GroupID: groupID,
		CustomerID: 1, SubTotal: amount, DiscountAmount: decimal.Zero, TotalAmount: amount,
		Status: models.OrderStatusPending, PaymentStatus: status,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	return m.nextID
}

func (m *memStore) order(id int64) models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id]
}

func (m *memStore) setUpdatedAt(id int64, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[id]
	o.UpdatedAt = at
	m.orders[id] = o
}

func (m *memStore) events(eventType string) []models.OutboxEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.OutboxEvent
	for _, e := range m.outbox {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

type memSnapshot struct {
	coupons     map[string]models.Coupon
	orders      map[int64]models.Order
	items       map[int64][]models.OrderItem
	restaurants map[int64][]models.OrderRestaurant
	usages      []models.CouponUsage
	outbox      []models.OutboxEvent
	nextID      int64
}

func (m *memStore) snapshot() memSnapshot {
	s := memSnapshot{
		coupons:     map[string]models.Coupon{},
		orders:      map[int64]models.Order{},
		items:       map[int64][]models.OrderItem{},
		restaurants: map[int64][]models.OrderRestaurant{},
		usages:      append([]models.CouponUsage(nil), m.usages...),
		outbox:      append([]models.OutboxEvent(nil), m.outbox...),
		nextID:      m.nextID,
	}
	for k, v := range m.coupons {
		s.coupons[k] = v
	}
	for k, v := range m.orders {
		s.orders[k] = v
	}
	for k, v := range m.items {
		s.items[k] = v
	}
	for k, v := range m.restaurants {
		s.restaurants[k] = v
	}
	return s
}

func (m *memStore) restore(s memSnapshot) {
	m.coupons, m.orders, m.items, m.restaurants = s.coupons, s.orders, s.items, s.restaurants
	m.usages, m.outbox, m.nextID = s.usages, s.outbox, s.nextID
}

// OrderRepository

func (m *memStore) InTx(ctx context.Context, fn func(OrderTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.snapshot()
	if err := fn(memTx{m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, store.ErrNotFound)
	}
	return &o, nil
}

func (m *memStore) GetOrderByIdempotencyKey(ctx context.Context, customerID int64, key string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.CustomerID == customerID && o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			return &o, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetOrdersByGroupID(ctx context.Context, groupID string) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for id := int64(1); id <= m.nextID; id++ {
		if o, ok := m.orders[id]; ok && o.GroupID == groupID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memStore) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[orderID], nil
}

func (m *memStore) GetOrderRestaurants(ctx context.Context, orderID int64) ([]models.OrderRestaurant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.restaurants[orderID], nil
}

// memTx runs with memStore.mu held
type memTx struct{ m *memStore }

func (t memTx) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	p, ok := t.m.products[productID]
	if !ok || !p.IsActive {
		return nil, fmt.Errorf("product %d: %w", productID, store.ErrNotFound)
	}
	return &p, nil
}

func (t memTx) GetVariant(ctx context.Context, productID, variantID int64) (*models.ProductVariant, error) {
	v, ok := t.m.variants[variantID]
	if !ok || !v.IsActive || v.ProductID != productID {
		return nil, fmt.Errorf("variant %d: %w", variantID, store.ErrNotFound)
	}
	return &v, nil
}

func (t memTx) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	c, ok := t.m.coupons[strings.ToUpper(code)]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (t memTx) RedeemCoupon(ctx context.Context, couponID int64) (bool, error) {
	for k, c := range t.m.coupons {
		if c.ID != couponID {
			continue
		}
		if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
			return false, nil
		}
		c.UsedCount++
		t.m.coupons[k] = c
		return true, nil
	}
	return false, nil
}

func (t memTx) InsertCouponUsage(ctx context.Context, usage *models.CouponUsage) error {
	usage.ID = int64(len(t.m.usages) + 1)
	t.m.usages = append(t.m.usages, *usage)
	return nil
}

func (t memTx) InsertOrder(ctx context.Context, order *models.Order) error {
	if order.IdempotencyKey != nil {
		for _, o := range t.m.orders {
			if o.CustomerID == order.CustomerID && o.IdempotencyKey != nil && *o.IdempotencyKey == *order.IdempotencyKey {
				return errors.New("duplicate idempotency key")
			}
		}
	}
	t.m.nextID++
	order.ID = t.m.nextID
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	t.m.orders[order.ID] = *order
	return nil
}

func (t memTx) InsertOrderItems(ctx context.Context, items []models.OrderItem) error {
	for _, item := range items {
		t.m.items[item.OrderID] = append(t.m.items[item.OrderID], item)
	}
	return nil
}

func (t memTx) InsertOrderRestaurants(ctx context.Context, rows []models.OrderRestaurant) error {
	for _, r := range rows {
		t.m.restaurants[r.OrderID] = append(t.m.restaurants[r.OrderID], r)
	}
	return nil
}

func (t memTx) InsertOutboxEvent(ctx context.Context, event *models.OutboxEvent) error {
	event.ID = int64(len(t.m.outbox) + 1)
	t.m.outbox = append(t.m.outbox, *event)
	return nil
}

// PaymentRepository

func (m *memStore) GetOrderByTransactionID(ctx context.Context, transactionID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.PaymentTransactionID != nil && *o.PaymentTransactionID == transactionID {
			return &o, nil
		}
	}
	return nil, fmt.Errorf("transaction %s: %w", transactionID, store.ErrNotFound)
}

func (m *memStore) FindPendingByEnrollmentID(ctx context.Context, verifyID string) (*models.Order, error) {
	o, err := m.FindByEnrollmentID(ctx, verifyID)
	if err != nil || o == nil || o.PaymentStatus != models.PaymentStatusPending {
		return nil, err
	}
	return o, nil
}

func (m *memStore) FindByEnrollmentID(ctx context.Context, verifyID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.VerifyEnrollmentRequestID != nil && *o.VerifyEnrollmentRequestID == verifyID {
			return &o, nil
		}
	}
	return nil, nil
}

func (m *memStore) GroupPayableTotal(ctx context.Context, groupID string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for _, o := range m.orders {
		if o.GroupID == groupID {
			total = total.Add(o.TotalAmount)
		}
	}
	return total, nil
}

func (m *memStore) SaveEnrollment(ctx context.Context, orderID int64, verifyID, metadata string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.PaymentStatus != models.PaymentStatusPending {
		return false, nil
	}
	method := models.PaymentMethodCard
	o.VerifyEnrollmentRequestID = &verifyID
	o.PaymentResponse = &metadata
	o.PaymentMethod = &method
	o.UpdatedAt = time.Now()
	m.orders[orderID] = o
	return true, nil
}

// SettlementRepository

func (m *memStore) Settle(ctx context.Context, st models.Settlement, event *models.OutboxEvent) (models.SettleResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res models.SettleResult
	if err := st.Validate(); err != nil {
		return res, err
	}
	primary, ok := m.orders[st.OrderID]
	if !ok || !models.CanTransition(primary.PaymentStatus, st.Status) {
		return res, nil
	}
	m.orders[st.OrderID] = applySettlement(primary, st, true)
	res.Primary = 1
	res.Siblings = m.propagateLocked(st, st.OrderID)
	if event != nil {
		event.ID = int64(len(m.outbox) + 1)
		m.outbox = append(m.outbox, *event)
	}
	return res, nil
}

func (m *memStore) PropagateGroup(ctx context.Context, st models.Settlement) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := st.Validate(); err != nil {
		return 0, err
	}
	return m.propagateLocked(st, 0), nil
}

func (m *memStore) propagateLocked(st models.Settlement, excludeID int64) int64 {
	var n int64
	for id, o := range m.orders {
		if id == excludeID || o.GroupID != st.GroupID || !slices.Contains(models.PropagationSourcesFor(st.Status), o.PaymentStatus) {
			continue
		}
		m.orders[id] = applySettlement(o, st, false)
		n++
	}
	return n
}

func applySettlement(o models.Order, st models.Settlement, primary bool) models.Order {
	o.PaymentStatus = st.Status
	if st.Method != "" {
		method := st.Method
		o.PaymentMethod = &method
	}
	if st.TransactionID != "" {
		tx := st.TransactionID
		o.PaymentTransactionID = &tx
	}
	if primary && st.PaymentResponse != "" {
		resp := st.PaymentResponse
		o.PaymentResponse = &resp
	}
	o.PaymentError = nil
	if st.PaymentError != "" {
		msg := st.PaymentError
		o.PaymentError = &msg
	}
	o.PaidAt = st.PaidAt
	o.UpdatedAt = time.Now()
	return o
}

func (m *memStore) ExpireStaleGroup(ctx context.Context, groupID string, cutoff time.Time, reason string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.GroupID == groupID && o.PaymentStatus == models.PaymentStatusPending &&
			o.VerifyEnrollmentRequestID != nil && !o.UpdatedAt.Before(cutoff) {
			return 0, nil
		}
	}
	var n int64
	for id, o := range m.orders {
		if o.GroupID != groupID || o.PaymentStatus != models.PaymentStatusPending {
			continue
		}
		m.orders[id] = applySettlement(o, models.Settlement{
			GroupID: groupID, Status: models.PaymentStatusFailed, PaymentError: reason,
		}, false)
		n++
	}
	return n, nil
}

// StaleGroupLister

func (m *memStore) ListStalePendingGroups(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	var groups []string
	for _, o := range m.orders {
		if o.PaymentStatus == models.PaymentStatusPending && o.VerifyEnrollmentRequestID != nil &&
			o.UpdatedAt.Before(cutoff) && !seen[o.GroupID] && len(groups) < limit {
			seen[o.GroupID] = true
			groups = append(groups, o.GroupID)
		}
	}
	return groups, nil
}

// fakeGateway records every bank call
type fakeGateway struct {
	mu             sync.Mutex
	enrollment     *gateway.EnrollmentResult
	enrollErr      error
	provision      *gateway.ProvisionResult
	provisionErr   error
	enrollCalls    []gateway.EnrollmentRequest
	nonSecureCalls []gateway.ProvisionRequest
	secureCalls    []gateway.ProvisionRequest
}

func (f *fakeGateway) CheckEnrollment(ctx context.Context, req gateway.EnrollmentRequest) (*gateway.EnrollmentResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enrollCalls = append(f.enrollCalls, req)
	if f.enrollErr != nil {
		return nil, f.enrollErr
	}
	res := *f.enrollment
	res.VerifyEnrollmentRequestID = req.VerifyEnrollmentRequestID
	return &res, nil
}

func (f *fakeGateway) ProvisionNonSecure(ctx context.Context, req gateway.ProvisionRequest) (*gateway.ProvisionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonSecureCalls = append(f.nonSecureCalls, req)
	return f.provisionResult()
}

func (f *fakeGateway) Provision3DSecure(ctx context.Context, req gateway.ProvisionRequest) (*gateway.ProvisionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.secureCalls = append(f.secureCalls, req)
	return f.provisionResult()
}

func (f *fakeGateway) provisionResult() (*gateway.ProvisionResult, error) {
	if f.provisionErr != nil {
		return nil, f.provisionErr
	}
	res := *f.provision
	return &res, nil
}

// fakeLocker grants each key to one holder at a time
type fakeLocker struct {
	mu   sync.Mutex
	held map[string]string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]string{}}
}

func (l *fakeLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return "", false, nil
	}
	token := fmt.Sprintf("tok-%d", len(l.held)+1)
	l.held[key] = token
	return token, true, nil
}

func (l *fakeLocker) ReleaseLock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}
