package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"food-order-service/internal/apperr"
	"food-order-service/internal/gateway"
	"food-order-service/internal/models"
	"food-order-service/internal/store"
	"food-order-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var amountTolerance = decimal.RequireFromString("0.005")

// Sanitized messages shown to the browser. Gateway details stay server-side.
const (
	msgInvalidCallback  = "invalid callback"
	msgInProgress       = "payment is being processed"
	msgNotFound         = "payment not found"
	msgAlreadyProcessed = "payment already processed"
	msgAuthFailed       = "3D Secure authentication failed"
	msgDeclined         = "payment declined"
	msgGatewayError     = "payment could not be completed"
	msgSessionExpired   = "payment session expired"

	callbackPath          = "/api/v1/payment/callback/3d-secure"
	callbackLockKeyFormat = "payment:callback:%s"
)

// PaymentGateway is the bank client
type PaymentGateway interface {
	CheckEnrollment(ctx context.Context, req gateway.EnrollmentRequest) (*gateway.EnrollmentResult, error)
	ProvisionNonSecure(ctx context.Context, req gateway.ProvisionRequest) (*gateway.ProvisionResult, error)
	Provision3DSecure(ctx context.Context, req gateway.ProvisionRequest) (*gateway.ProvisionResult, error)
}

// PaymentRepository is the order state the payment flow reads and binds
type PaymentRepository interface {
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByTransactionID(ctx context.Context, transactionID string) (*models.Order, error)
	FindPendingByEnrollmentID(ctx context.Context, verifyID string) (*models.Order, error)
	FindByEnrollmentID(ctx context.Context, verifyID string) (*models.Order, error)
	GroupPayableTotal(ctx context.Context, groupID string) (decimal.Decimal, error)
	SaveEnrollment(ctx context.Context, orderID int64, verifyID, metadata string) (bool, error)
}

// Locker serializes concurrent callback deliveries. It is best-effort.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// PaymentOptions configures callback and redirect URLs
type PaymentOptions struct {
	PublicBaseURL string
	SuccessURL    string
	FailureURL    string
	LockTTL       time.Duration
}

// PaymentService drives an order from Pending to a terminal settlement
type PaymentService struct {
	repo    PaymentRepository
	gateway PaymentGateway
	sync    *GroupSynchronizer
	locker  Locker
	opts    PaymentOptions
	now     func() time.Time
	logger  *zap.Logger
}

// NewPaymentService creates a new payment service. locker may be nil.
func NewPaymentService(repo PaymentRepository, gw PaymentGateway, sync *GroupSynchronizer, locker Locker, opts PaymentOptions) *PaymentService {
	if opts.LockTTL <= 0 {
		opts.LockTTL = time.Minute
	}
	opts.PublicBaseURL = strings.TrimRight(opts.PublicBaseURL, "/")
	return &PaymentService{
		repo:    repo,
		gateway: gw,
		sync:    sync,
		locker:  locker,
		opts:    opts,
		now:     time.Now,
		logger:  util.GetLogger(),
	}
}

// InitializeRequest starts a card payment for an order's whole group
type InitializeRequest struct {
	OrderID          int64           `json:"orderId" binding:"required"`
	Amount           decimal.Decimal `json:"amount"`
	CardNumber       string          `json:"cardNumber" binding:"required,luhn"`
	ExpiryMonth      int             `json:"expiryMonth" binding:"required,min=1,max=12"`
	ExpiryYear       int             `json:"expiryYear" binding:"required"`
	CVV              string          `json:"cvv" binding:"required,min=3,max=4,numeric"`
	ClientIP         string          `json:"clientIp"`
	InstallmentCount int             `json:"installmentCount" binding:"omitempty,min=1,max=12"`
}

// PaymentResult is returned when the card was charged without 3D Secure
type PaymentResult struct {
	TransactionID string `json:"transactionId"`
	Rrn           string `json:"rrn,omitempty"`
	AuthCode      string `json:"authCode,omitempty"`
}

// InitializeResponse is either an ACS redirect or a completed payment
type InitializeResponse struct {
	Enrolled                  bool           `json:"enrolled"`
	Requires3DSecure          bool           `json:"requires3DSecure,omitempty"`
	ACSURL                    string         `json:"acsUrl,omitempty"`
	PaReq                     string         `json:"paReq,omitempty"`
	TermURL                   string         `json:"termUrl,omitempty"`
	MD                        string         `json:"md,omitempty"`
	VerifyEnrollmentRequestID string         `json:"verifyEnrollmentRequestId,omitempty"`
	PaymentResult             *PaymentResult `json:"paymentResult,omitempty"`
}

// CallbackParams are the fields the bank posts back after ACS authentication
type CallbackParams struct {
	Token                     string `form:"cbt"`
	Status                    string `form:"Status"`
	VerifyEnrollmentRequestID string `form:"VerifyEnrollmentRequestId"`
	Xid                       string `form:"Xid"`
	PurchAmount               string `form:"PurchAmount"`
	PurchCurrency             string `form:"PurchCurrency"`
	Pan                       string `form:"Pan"`
	ExpiryDate                string `form:"ExpiryDate"`
	Eci                       string `form:"Eci"`
	Cavv                      string `form:"Cavv"`
	MdStatus                  string `form:"MdStatus"`
	InstallmentCount          string `form:"InstallmentCount"`
	ErrorCode                 string `form:"ErrorCode"`
	ErrorMessage              string `form:"ErrorMessage"`
	ClientIP                  string `form:"-"`
}

// OfflinePaymentRequest defers settlement to delivery or pickup
type OfflinePaymentRequest struct {
	OrderID int64  `json:"orderId" binding:"required"`
	Method  string `json:"method" binding:"required,oneof=cash_on_delivery card_on_delivery pickup"`
}

type OfflinePaymentResponse struct {
	Success       bool                 `json:"success"`
	OrderID       int64                `json:"orderId"`
	PaymentMethod string               `json:"paymentMethod"`
	PaymentStatus models.PaymentStatus `json:"paymentStatus"`
}

type PaymentStatusResponse struct {
	OrderID              int64                `json:"orderId"`
	OrderNumber          string               `json:"orderNumber"`
	PaymentStatus        models.PaymentStatus `json:"paymentStatus"`
	PaymentTransactionID *string              `json:"paymentTransactionId"`
	PaidAt               *time.Time           `json:"paidAt"`
	PaymentError         *string              `json:"paymentError"`
}

// Initialize checks 3D enrollment and either returns the ACS redirect or,
// for non-enrolled cards, charges the card directly.
func (s *PaymentService) Initialize(ctx context.Context, req *InitializeRequest) (*InitializeResponse, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.Initialize")
	defer span.End()

	order, err := s.repo.GetOrderByID(ctx, req.OrderID)
	if err != nil {
		return nil, notFoundOr(err, "order %d not found", req.OrderID)
	}
	if order.PaymentStatus != models.PaymentStatusPending {
		return nil, apperr.Conflict("order %d payment is %s", order.ID, order.PaymentStatus)
	}

	total, err := s.repo.GroupPayableTotal(ctx, order.GroupID)
	if err != nil {
		return nil, err
	}
	if req.Amount.Sub(total).Abs().GreaterThan(amountTolerance) {
		return nil, apperr.Validation("amount %s does not match payable total %s",
			req.Amount.StringFixed(2), total.StringFixed(2))
	}

	card := gateway.Card{
		Number:      req.CardNumber,
		ExpiryMonth: req.ExpiryMonth,
		ExpiryYear:  req.ExpiryYear,
		CVV:         req.CVV,
	}.Normalize()
	if err := card.Validate(s.now()); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	installments := req.InstallmentCount
	if installments < 1 {
		installments = 1
	}

	token, err := newCallbackToken()
	if err != nil {
		return nil, err
	}
	verifyID := strings.ReplaceAll(uuid.New().String(), "-", "")
	callbackURL := s.opts.PublicBaseURL + callbackPath + "?cbt=" + url.QueryEscape(token)

	enrollment, err := s.gateway.CheckEnrollment(ctx, gateway.EnrollmentRequest{
		VerifyEnrollmentRequestID: verifyID,
		Card:                      card,
		Amount:                    total,
		SuccessURL:                callbackURL,
		FailureURL:                callbackURL,
		SessionInfo:               order.OrderNumber,
		InstallmentCount:          installments,
	})
	if err != nil {
		util.PaymentAttemptsTotal.WithLabelValues("enrollment_error").Inc()
		return nil, err
	}
	if enrollment.Kind == gateway.KindError {
		util.PaymentAttemptsTotal.WithLabelValues("enrollment_error").Inc()
		s.logger.Warn("Enrollment rejected by bank",
			zap.Int64("order_id", order.ID),
			zap.String("error_code", enrollment.ErrorCode),
			zap.String("error_message", enrollment.ErrorMessage))
		return nil, apperr.Gateway(enrollment.ErrorCode, enrollment.ErrorMessage, nil)
	}

	brand := gateway.DetectBrand(card.Number)
	meta := models.PaymentMetadata{
		VerifyEnrollmentRequestID: verifyID,
		CallbackToken:             token,
		GroupID:                   order.GroupID,
		CardBrand:                 string(brand),
		MaskedPan:                 gateway.MaskPAN(card.Number),
		Amount:                    total,
		InstallmentCount:          installments,
		Enrolled:                  enrollment.Kind == gateway.KindEnrolled,
		InitiatedAt:               s.now(),
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment metadata: %w", err)
	}
	saved, err := s.repo.SaveEnrollment(ctx, order.ID, verifyID, string(raw))
	if err != nil {
		return nil, err
	}
	if !saved {
		return nil, apperr.Conflict("order %d is no longer pending", order.ID)
	}

	s.logger.Info("Payment initialized",
		zap.Int64("order_id", order.ID),
		zap.String("group_id", order.GroupID),
		zap.String("verify_enrollment_request_id", verifyID),
		zap.String("pan", meta.MaskedPan),
		zap.Bool("enrolled", meta.Enrolled))

	if meta.Enrolled {
		util.PaymentAttemptsTotal.WithLabelValues("3d_secure").Inc()
		return &InitializeResponse{
			Enrolled:                  true,
			Requires3DSecure:          true,
			ACSURL:                    enrollment.ACSURL,
			PaReq:                     enrollment.PaReq,
			TermURL:                   enrollment.TermURL,
			MD:                        enrollment.MD,
			VerifyEnrollmentRequestID: verifyID,
		}, nil
	}

	util.PaymentAttemptsTotal.WithLabelValues("non_secure").Inc()
	result, err := s.gateway.ProvisionNonSecure(ctx, gateway.ProvisionRequest{
		TransactionID:    verifyID,
		Amount:           total,
		Pan:              card.Number,
		Expiry:           card.ExpiryYYYYMM(),
		CVV:              card.CVV,
		ClientIP:         req.ClientIP,
		InstallmentCount: installments,
	})
	if err != nil {
		s.fail(ctx, order, meta, nil, msgGatewayError)
		return nil, err
	}

	if !result.Approved {
		s.fail(ctx, order, meta, result, result.ResultDetail)
		return nil, apperr.Gateway(result.ResultCode, msgDeclined, nil)
	}

	if err := s.pay(ctx, order, meta, result); err != nil {
		return nil, err
	}
	return &InitializeResponse{
		Enrolled: false,
		PaymentResult: &PaymentResult{
			TransactionID: result.TransactionID,
			Rrn:           result.Rrn,
			AuthCode:      result.AuthCode,
		},
	}, nil
}

// HandleCallback processes the bank's ACS redirect and returns the URL the
// browser is sent to. A delivery for an order that already left Pending
// changes nothing.
func (s *PaymentService) HandleCallback(ctx context.Context, cb CallbackParams) string {
	ctx, span := util.StartSpan(ctx, "PaymentService.HandleCallback")
	defer span.End()

	if cb.Status == "" || cb.VerifyEnrollmentRequestID == "" {
		util.PaymentCallbacksTotal.WithLabelValues("invalid").Inc()
		return s.failureURL(nil, msgInvalidCallback)
	}

	if s.locker != nil {
		key := fmt.Sprintf(callbackLockKeyFormat, cb.VerifyEnrollmentRequestID)
		lockToken, ok, err := s.locker.AcquireLock(ctx, key, s.opts.LockTTL)
		switch {
		case err != nil:
			s.logger.Warn("Callback lock unavailable, relying on status guard", zap.Error(err))
		case !ok:
			util.PaymentCallbacksTotal.WithLabelValues("locked").Inc()
			return s.failureURL(nil, msgInProgress)
		default:
			defer func() {
				if err := s.locker.ReleaseLock(context.Background(), key, lockToken); err != nil {
					s.logger.Warn("Failed to release callback lock", zap.Error(err))
				}
			}()
		}
	}

	order, err := s.repo.FindPendingByEnrollmentID(ctx, cb.VerifyEnrollmentRequestID)
	if err != nil {
		s.logger.Error("Callback lookup failed", zap.Error(err))
		return s.failureURL(nil, msgGatewayError)
	}
	if order == nil {
		return s.redirectForSettled(ctx, cb)
	}

	meta, err := paymentMetadata(order)
	if err != nil {
		s.logger.Error("Order has no readable payment metadata", zap.Int64("order_id", order.ID), zap.Error(err))
		return s.failureURL(order, msgGatewayError)
	}
	if !s.tokenMatches(order, meta, cb.Token) {
		return s.failureURL(nil, msgInvalidCallback)
	}

	total, err := s.repo.GroupPayableTotal(ctx, order.GroupID)
	if err != nil {
		s.logger.Error("Failed to load payable total", zap.Int64("order_id", order.ID), zap.Error(err))
		return s.failureURL(order, msgGatewayError)
	}
	purchased, err := decimal.NewFromString(strings.TrimSpace(cb.PurchAmount))
	if err != nil || purchased.Sub(total).Abs().GreaterThan(amountTolerance) {
		util.PaymentCallbacksTotal.WithLabelValues("tamper_amount").Inc()
		s.logger.Warn("Callback amount mismatch",
			zap.Int64("order_id", order.ID),
			zap.String("reported", cb.PurchAmount),
			zap.String("expected", total.StringFixed(2)),
			zap.Error(apperr.Tamper("callback amount mismatch")))
		s.fail(ctx, order, meta, nil, "amount mismatch")
		return s.failureURL(order, msgDeclined)
	}

	status := strings.ToUpper(strings.TrimSpace(cb.Status))
	if status != "Y" && status != "A" {
		util.PaymentCallbacksTotal.WithLabelValues("auth_failed").Inc()
		detail := "3D status " + status
		if cb.ErrorCode != "" {
			detail += " (" + cb.ErrorCode + ")"
		}
		s.fail(ctx, order, meta, nil, detail)
		return s.failureURL(order, msgAuthFailed)
	}

	eci := cb.Eci
	if eci == "" {
		eci = gateway.ECIFor(gateway.Brand(meta.CardBrand), status)
	}

	installments := meta.InstallmentCount
	if n, err := strconv.Atoi(cb.InstallmentCount); err == nil && n > 0 {
		installments = n
	}

	result, err := s.gateway.Provision3DSecure(ctx, gateway.ProvisionRequest{
		TransactionID:    cb.VerifyEnrollmentRequestID,
		Amount:           total,
		Pan:              cb.Pan,
		Expiry:           provisionExpiry(cb.ExpiryDate),
		ECI:              eci,
		CAVV:             cb.Cavv,
		MpiTransactionID: cb.VerifyEnrollmentRequestID,
		ClientIP:         cb.ClientIP,
		InstallmentCount: installments,
	})
	if err != nil {
		util.PaymentCallbacksTotal.WithLabelValues("gateway_error").Inc()
		s.fail(ctx, order, meta, nil, msgGatewayError)
		return s.failureURL(order, msgGatewayError)
	}
	if !result.Approved {
		util.PaymentCallbacksTotal.WithLabelValues("declined").Inc()
		s.fail(ctx, order, meta, result, result.ResultDetail)
		return s.failureURL(order, msgDeclined)
	}

	if err := s.pay(ctx, order, meta, result); err != nil {
		s.logger.Error("Failed to record successful payment",
			zap.Int64("order_id", order.ID),
			zap.String("transaction_id", result.TransactionID),
			zap.Error(err))
		return s.failureURL(order, msgGatewayError)
	}
	util.PaymentCallbacksTotal.WithLabelValues("paid").Inc()
	return s.successURL(order)
}

// OfflinePayment marks the group AwaitingPayment so kitchens start preparing
func (s *PaymentService) OfflinePayment(ctx context.Context, req *OfflinePaymentRequest) (*OfflinePaymentResponse, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.OfflinePayment")
	defer span.End()

	if !models.IsOfflineMethod(req.Method) {
		return nil, apperr.Validation("unsupported payment method %q", req.Method)
	}

	order, err := s.repo.GetOrderByID(ctx, req.OrderID)
	if err != nil {
		return nil, notFoundOr(err, "order %d not found", req.OrderID)
	}
	if !models.CanTransition(order.PaymentStatus, models.PaymentStatusAwaitingPayment) {
		return nil, apperr.Conflict("order %d payment is already %s", order.ID, order.PaymentStatus)
	}

	util.PaymentAttemptsTotal.WithLabelValues("offline").Inc()
	res, err := s.sync.Settle(ctx, models.Settlement{
		OrderID: order.ID,
		GroupID: order.GroupID,
		Status:  models.PaymentStatusAwaitingPayment,
		Method:  req.Method,
	}, order.PaymentStatus == models.PaymentStatusPending)
	if err != nil {
		return nil, err
	}
	if !res.Applied() {
		return nil, apperr.Conflict("order %d was settled concurrently", order.ID)
	}

	return &OfflinePaymentResponse{
		Success:       true,
		OrderID:       order.ID,
		PaymentMethod: req.Method,
		PaymentStatus: models.PaymentStatusAwaitingPayment,
	}, nil
}

// GetPaymentStatus looks an order up by bank transaction id, falling back to
// the order id for numeric identifiers.
func (s *PaymentService) GetPaymentStatus(ctx context.Context, transactionID string) (*PaymentStatusResponse, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.GetPaymentStatus")
	defer span.End()

	order, err := s.repo.GetOrderByTransactionID(ctx, transactionID)
	if errors.Is(err, store.ErrNotFound) {
		if id, convErr := strconv.ParseInt(transactionID, 10, 64); convErr == nil {
			order, err = s.repo.GetOrderByID(ctx, id)
		}
	}
	if err != nil {
		return nil, notFoundOr(err, "payment %s not found", transactionID)
	}

	return &PaymentStatusResponse{
		OrderID:              order.ID,
		OrderNumber:          order.OrderNumber,
		PaymentStatus:        order.PaymentStatus,
		PaymentTransactionID: order.PaymentTransactionID,
		PaidAt:               order.PaidAt,
		PaymentError:         order.PaymentError,
	}, nil
}

func (s *PaymentService) pay(ctx context.Context, order *models.Order, meta models.PaymentMetadata, result *gateway.ProvisionResult) error {
	meta.Gateway = outcomeOf(result)
	paidAt := s.now()
	_, err := s.sync.Settle(ctx, models.Settlement{
		OrderID:         order.ID,
		GroupID:         order.GroupID,
		Status:          models.PaymentStatusPaid,
		Method:          models.PaymentMethodCard,
		TransactionID:   result.TransactionID,
		PaymentResponse: marshalMetadata(meta),
		PaidAt:          &paidAt,
	}, true)
	return err
}

// fail marks the order and its group Failed. Errors are logged; the caller
// already has a failure to report.
func (s *PaymentService) fail(ctx context.Context, order *models.Order, meta models.PaymentMetadata, result *gateway.ProvisionResult, reason string) {
	if result != nil {
		meta.Gateway = outcomeOf(result)
	}
	if reason == "" {
		reason = msgDeclined
	}
	_, err := s.sync.Settle(ctx, models.Settlement{
		OrderID:         order.ID,
		GroupID:         order.GroupID,
		Status:          models.PaymentStatusFailed,
		Method:          models.PaymentMethodCard,
		PaymentResponse: marshalMetadata(meta),
		PaymentError:    reason,
	}, false)
	if err != nil {
		s.logger.Error("Failed to record payment failure",
			zap.Int64("order_id", order.ID),
			zap.String("reason", reason),
			zap.Error(err))
	}
}

// redirectForSettled answers a callback whose order is no longer Pending.
// The token is checked before the outcome is revealed.
func (s *PaymentService) redirectForSettled(ctx context.Context, cb CallbackParams) string {
	order, err := s.repo.FindByEnrollmentID(ctx, cb.VerifyEnrollmentRequestID)
	if err != nil || order == nil {
		util.PaymentCallbacksTotal.WithLabelValues("unknown").Inc()
		return s.failureURL(nil, msgNotFound)
	}
	meta, err := paymentMetadata(order)
	if err != nil || !s.tokenMatches(order, meta, cb.Token) {
		return s.failureURL(nil, msgInvalidCallback)
	}

	util.PaymentCallbacksTotal.WithLabelValues("duplicate").Inc()
	s.logger.Info("Duplicate callback ignored",
		zap.Int64("order_id", order.ID),
		zap.String("payment_status", string(order.PaymentStatus)))
	if order.PaymentStatus == models.PaymentStatusPaid {
		return s.successURL(order)
	}
	return s.failureURL(order, msgAlreadyProcessed)
}

// tokenMatches compares the callback token in constant time
func (s *PaymentService) tokenMatches(order *models.Order, meta models.PaymentMetadata, token string) bool {
	if meta.CallbackToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(meta.CallbackToken)) == 1 {
		return true
	}
	util.PaymentCallbacksTotal.WithLabelValues("tamper_token").Inc()
	s.logger.Warn("Callback token mismatch",
		zap.Int64("order_id", order.ID),
		zap.String("payment_status", string(order.PaymentStatus)),
		zap.Error(apperr.Tamper("callback token mismatch")))
	return false
}

func paymentMetadata(order *models.Order) (models.PaymentMetadata, error) {
	var meta models.PaymentMetadata
	if order.PaymentResponse == nil {
		return meta, fmt.Errorf("order %d has no payment metadata", order.ID)
	}
	if err := json.Unmarshal([]byte(*order.PaymentResponse), &meta); err != nil {
		return meta, fmt.Errorf("order %d payment metadata: %w", order.ID, err)
	}
	return meta, nil
}

func (s *PaymentService) successURL(order *models.Order) string {
	return withQuery(s.opts.SuccessURL, url.Values{
		"orderId":     {strconv.FormatInt(order.ID, 10)},
		"orderNumber": {order.OrderNumber},
	})
}

func (s *PaymentService) failureURL(order *models.Order, message string) string {
	q := url.Values{"error": {message}}
	if order != nil {
		q.Set("orderId", strconv.FormatInt(order.ID, 10))
	}
	return withQuery(s.opts.FailureURL, q)
}

func withQuery(base string, q url.Values) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	existing := u.Query()
	for k, v := range q {
		existing[k] = v
	}
	u.RawQuery = existing.Encode()
	return u.String()
}

func outcomeOf(result *gateway.ProvisionResult) *models.GatewayOutcome {
	return &models.GatewayOutcome{
		ResultCode:    result.ResultCode,
		ResultDetail:  result.ResultDetail,
		TransactionID: result.TransactionID,
		Rrn:           result.Rrn,
		AuthCode:      result.AuthCode,
		Eci:           result.ECI,
		Raw:           result.Raw,
	}
}

func marshalMetadata(meta models.PaymentMetadata) string {
	raw, err := json.Marshal(meta)
	if err != nil {
		return ""
	}
	return string(raw)
}

// provisionExpiry turns the bank's YYMM echo into the YYYYMM provisioning format
func provisionExpiry(expiry string) string {
	expiry = gateway.DigitsOnly(expiry)
	if len(expiry) == 4 {
		return "20" + expiry
	}
	return expiry
}

func newCallbackToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate callback token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
