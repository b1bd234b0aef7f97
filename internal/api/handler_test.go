package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"food-order-service/internal/apperr"
	"food-order-service/internal/coupon"
	"food-order-service/internal/models"
	"food-order-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type fakeOrders struct {
	lastCreate *service.CreateOrderRequest
	createErr  error
	details    *service.OrderDetails
}

func (f *fakeOrders) CreateOrder(ctx context.Context, req *service.CreateOrderRequest) (*service.CreateOrderResponse, error) {
	f.lastCreate = req
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &service.CreateOrderResponse{
		OrderID:     1,
		OrderNumber: "LG2601010001",
		GroupID:     "grp-1",
		TotalAmount: decimal.RequireFromString("90.00"),
	}, nil
}

func (f *fakeOrders) GetOrder(ctx context.Context, orderID int64) (*service.OrderDetails, error) {
	if f.details == nil || f.details.Order.ID != orderID {
		return nil, apperr.NotFound("order %d not found", orderID)
	}
	return f.details, nil
}

type fakePayments struct {
	lastInit     *service.InitializeRequest
	initErr      error
	lastCallback service.CallbackParams
	lastOffline  *service.OfflinePaymentRequest
}

func (f *fakePayments) Initialize(ctx context.Context, req *service.InitializeRequest) (*service.InitializeResponse, error) {
	f.lastInit = req
	if f.initErr != nil {
		return nil, f.initErr
	}
	return &service.InitializeResponse{Enrolled: true, Requires3DSecure: true, ACSURL: "https://acs.example"}, nil
}

func (f *fakePayments) HandleCallback(ctx context.Context, cb service.CallbackParams) string {
	f.lastCallback = cb
	return "https://shop.example/payment/success?orderId=1"
}

func (f *fakePayments) OfflinePayment(ctx context.Context, req *service.OfflinePaymentRequest) (*service.OfflinePaymentResponse, error) {
	f.lastOffline = req
	return &service.OfflinePaymentResponse{
		Success: true, OrderID: req.OrderID, PaymentMethod: req.Method,
		PaymentStatus: models.PaymentStatusAwaitingPayment,
	}, nil
}

func (f *fakePayments) GetPaymentStatus(ctx context.Context, transactionID string) (*service.PaymentStatusResponse, error) {
	if transactionID != "tx-1" {
		return nil, apperr.NotFound("payment %s not found", transactionID)
	}
	return &service.PaymentStatusResponse{OrderID: 1, PaymentStatus: models.PaymentStatusPaid}, nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

func newTestRouter(orders *fakeOrders, payments *fakePayments, deps map[string]Pinger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(orders, payments, testSecret, deps).SetupRoutes(router)
	return router
}

func doJSON(router *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func bearer(t *testing.T, sub string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func orderBody() map[string]any {
	return map[string]any{
		"customerId":      7,
		"customerName":    "Ayse",
		"customerPhone":   "5551234567",
		"customerAddress": "Main St 1",
		"items":           []map[string]any{{"productId": 1, "quantity": 2}},
		"couponCode":      "PERC10",
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestCreateOrder(t *testing.T) {
	orders := &fakeOrders{}
	router := newTestRouter(orders, &fakePayments{}, nil)

	w := doJSON(router, http.MethodPost, "/api/v1/orders", orderBody(), map[string]string{"Idempotency-Key": "abc"})

	require.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.Equal(t, "LG2601010001", body["orderNumber"])
	assert.Equal(t, "90", body["totalAmount"])
	require.NotNil(t, orders.lastCreate)
	assert.Equal(t, int64(7), orders.lastCreate.CustomerID)
	assert.Equal(t, "abc", orders.lastCreate.IdempotencyKey)
	assert.Equal(t, "PERC10", orders.lastCreate.CouponCode)
}

func TestCreateOrderTakesCustomerFromToken(t *testing.T) {
	orders := &fakeOrders{}
	router := newTestRouter(orders, &fakePayments{}, nil)

	w := doJSON(router, http.MethodPost, "/api/v1/orders", orderBody(), map[string]string{"Authorization": bearer(t, "42")})

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, int64(42), orders.lastCreate.CustomerID)
}

func TestCreateOrderRejectsBadToken(t *testing.T) {
	orders := &fakeOrders{}
	router := newTestRouter(orders, &fakePayments{}, nil)

	w := doJSON(router, http.MethodPost, "/api/v1/orders", orderBody(), map[string]string{"Authorization": "Bearer not-a-jwt"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/orders", orderBody(), map[string]string{"Authorization": bearer(t, "guest")})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, orders.lastCreate)
}

func TestCreateOrderValidation(t *testing.T) {
	router := newTestRouter(&fakeOrders{}, &fakePayments{}, nil)

	body := orderBody()
	body["items"] = []map[string]any{}
	w := doJSON(router, http.MethodPost, "/api/v1/orders", body, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body = orderBody()
	body["items"] = []map[string]any{{"productId": 1, "quantity": 0}}
	w = doJSON(router, http.MethodPost, "/api/v1/orders", body, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateOrderErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"missing customer", apperr.Auth("customer is required"), http.StatusUnauthorized, ""},
		{"missing product", apperr.NotFound("product 9 not found"), http.StatusNotFound, ""},
		{"coupon minimum", coupon.Reject("min50", coupon.MinimumNotMet), http.StatusUnprocessableEntity, "MinimumNotMet"},
		{"coupon exhausted", coupon.Reject("once", coupon.UsageLimitReached), http.StatusConflict, "UsageLimitReached"},
		{"wrapped coupon", errors.Join(errors.New("tx"), coupon.Reject("old", coupon.Expired)), http.StatusUnprocessableEntity, "Expired"},
		{"internal", errors.New("connection reset"), http.StatusInternalServerError, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(&fakeOrders{createErr: tc.err}, &fakePayments{}, nil)

			w := doJSON(router, http.MethodPost, "/api/v1/orders", orderBody(), nil)
			assert.Equal(t, tc.status, w.Code)
			body := decode(t, w)
			if tc.code != "" {
				assert.Equal(t, tc.code, body["errorCode"])
			}
			assert.NotContains(t, body["error"], "connection reset")
		})
	}
}

func TestGetOrder(t *testing.T) {
	orders := &fakeOrders{details: &service.OrderDetails{Order: &models.Order{ID: 5, CustomerID: 42, OrderNumber: "LG2601010005"}}}
	router := newTestRouter(orders, &fakePayments{}, nil)

	w := doJSON(router, http.MethodGet, "/api/v1/orders/5", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "LG2601010005")

	w = doJSON(router, http.MethodGet, "/api/v1/orders/5", nil, map[string]string{"Authorization": bearer(t, "99")})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/orders/6", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/orders/abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func initBody(card string) map[string]any {
	return map[string]any{
		"orderId":     1,
		"amount":      "90.00",
		"cardNumber":  card,
		"expiryMonth": 12,
		"expiryYear":  2030,
		"cvv":         "123",
	}
}

func TestInitializePayment(t *testing.T) {
	payments := &fakePayments{}
	router := newTestRouter(&fakeOrders{}, payments, nil)

	w := doJSON(router, http.MethodPost, "/api/v1/payment/initialize", initBody("4111 1111 1111 1111"), nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["requires3DSecure"])
	assert.Equal(t, "https://acs.example", body["acsUrl"])
	require.NotNil(t, payments.lastInit)
	assert.Equal(t, "90", payments.lastInit.Amount.String())
	assert.NotEmpty(t, payments.lastInit.ClientIP)
}

func TestInitializePaymentRejectsInvalidCard(t *testing.T) {
	payments := &fakePayments{}
	router := newTestRouter(&fakeOrders{}, payments, nil)

	w := doJSON(router, http.MethodPost, "/api/v1/payment/initialize", initBody("4111111111111112"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, payments.lastInit)
}

func TestInitializePaymentGatewayError(t *testing.T) {
	payments := &fakePayments{initErr: apperr.Gateway("0051", "payment declined", nil)}
	router := newTestRouter(&fakeOrders{}, payments, nil)

	w := doJSON(router, http.MethodPost, "/api/v1/payment/initialize", initBody("4111111111111111"), nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "0051", body["errorCode"])
	assert.Equal(t, "payment declined", body["error"])
}

func TestPaymentCallbackRedirects(t *testing.T) {
	payments := &fakePayments{}
	router := newTestRouter(&fakeOrders{}, payments, nil)

	form := url.Values{
		"Status":                    {"Y"},
		"VerifyEnrollmentRequestId": {"abc123"},
		"PurchAmount":               {"90.00"},
		"Eci":                       {"05"},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/callback/3d-secure?cbt=tok", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://shop.example/payment/success?orderId=1", w.Header().Get("Location"))
	cb := payments.lastCallback
	assert.Equal(t, "tok", cb.Token)
	assert.Equal(t, "Y", cb.Status)
	assert.Equal(t, "abc123", cb.VerifyEnrollmentRequestID)
	assert.Equal(t, "90.00", cb.PurchAmount)
	assert.Equal(t, "05", cb.Eci)
	assert.NotEmpty(t, cb.ClientIP)
}

func TestPaymentCallbackAcceptsGet(t *testing.T) {
	payments := &fakePayments{}
	router := newTestRouter(&fakeOrders{}, payments, nil)

	w := doJSON(router, http.MethodGet, "/api/v1/payment/callback/3d-secure?cbt=tok&Status=N&VerifyEnrollmentRequestId=abc", nil, nil)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "N", payments.lastCallback.Status)
	assert.Equal(t, "tok", payments.lastCallback.Token)
}

func TestPaymentStatus(t *testing.T) {
	router := newTestRouter(&fakeOrders{}, &fakePayments{}, nil)

	w := doJSON(router, http.MethodGet, "/api/v1/payment/status/tx-1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Paid", decode(t, w)["paymentStatus"])

	w = doJSON(router, http.MethodGet, "/api/v1/payment/status/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOfflinePayment(t *testing.T) {
	payments := &fakePayments{}
	router := newTestRouter(&fakeOrders{}, payments, nil)

	w := doJSON(router, http.MethodPost, "/api/v1/payment/offline", map[string]any{"orderId": 3, "method": "pickup"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "AwaitingPayment", body["paymentStatus"])

	w = doJSON(router, http.MethodPost, "/api/v1/payment/offline", map[string]any{"orderId": 3, "method": "bitcoin"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReadiness(t *testing.T) {
	router := newTestRouter(&fakeOrders{}, &fakePayments{}, map[string]Pinger{
		"postgres": fakePinger{},
		"redis":    fakePinger{},
	})
	w := doJSON(router, http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	router = newTestRouter(&fakeOrders{}, &fakePayments{}, map[string]Pinger{
		"postgres": fakePinger{},
		"redis":    fakePinger{err: errors.New("refused")},
	})
	w = doJSON(router, http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	checks := decode(t, w)["checks"].(map[string]any)
	assert.Equal(t, "down", checks["redis"])
	assert.Equal(t, "up", checks["postgres"])
}

func TestHealth(t *testing.T) {
	router := newTestRouter(&fakeOrders{}, &fakePayments{}, nil)

	w := doJSON(router, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
