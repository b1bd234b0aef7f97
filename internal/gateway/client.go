// Package gateway talks to the bank's MPI enrollment and VPOS provisioning
// endpoints. Responses are normalized once, in normalize.go.
package gateway

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"food-order-service/internal/apperr"
	"food-order-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxResponseBytes = 1 << 20

type Config struct {
	EnrollmentURL    string
	ProvisionURL     string
	MerchantID       string
	MerchantPassword string
	TerminalNo       string
	CurrencyCode     string
	Timeout          time.Duration
}

// Client is safe for concurrent use
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a gateway client. A nil httpClient gets a client with cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		cfg:    cfg,
		http:   httpClient,
		logger: util.GetLogger(),
	}
}

type EnrollmentRequest struct {
	VerifyEnrollmentRequestID string
	Card                      Card
	Amount                    decimal.Decimal
	SuccessURL                string
	FailureURL                string
	SessionInfo               string
	InstallmentCount          int
}

type ProvisionRequest struct {
	TransactionID    string
	Amount           decimal.Decimal
	Pan              string
	Expiry           string // YYYYMM
	CVV              string
	ECI              string
	CAVV             string
	MpiTransactionID string
	ClientIP         string
	InstallmentCount int
}

// CheckEnrollment asks the card network whether the card participates in 3D Secure.
// The returned error is non-nil only for transport or decoding failures.
func (c *Client) CheckEnrollment(ctx context.Context, req EnrollmentRequest) (*EnrollmentResult, error) {
	ctx, span := util.StartSpan(ctx, "Gateway.CheckEnrollment")
	defer span.End()

	form := url.Values{}
	form.Set("MerchantId", c.cfg.MerchantID)
	form.Set("MerchantPassword", c.cfg.MerchantPassword)
	form.Set("VerifyEnrollmentRequestId", req.VerifyEnrollmentRequestID)
	form.Set("Pan", req.Card.Number)
	form.Set("ExpiryDate", req.Card.ExpiryYYMM())
	form.Set("PurchaseAmount", FormatAmount(req.Amount))
	form.Set("Currency", c.cfg.CurrencyCode)
	form.Set("BrandName", DetectBrand(req.Card.Number).Code())
	form.Set("SuccessUrl", req.SuccessURL)
	form.Set("FailureUrl", req.FailureURL)
	if req.SessionInfo != "" {
		form.Set("SessionInfo", req.SessionInfo)
	}
	if req.InstallmentCount > 1 {
		form.Set("InstallmentCount", strconv.Itoa(req.InstallmentCount))
	}

	body, err := c.post(ctx, "enrollment", c.cfg.EnrollmentURL, form)
	if err != nil {
		return nil, err
	}

	res, err := NormalizeEnrollment(body)
	if err != nil {
		return nil, apperr.Gateway("", "unreadable enrollment response", err)
	}

	c.logger.Info("Enrollment checked",
		zap.String("verify_enrollment_request_id", req.VerifyEnrollmentRequestID),
		zap.String("pan", MaskPAN(req.Card.Number)),
		zap.String("result", res.Kind.String()),
		zap.String("status", res.Status))
	return res, nil
}

// ProvisionNonSecure charges a card that is not enrolled in 3D Secure.
func (c *Client) ProvisionNonSecure(ctx context.Context, req ProvisionRequest) (*ProvisionResult, error) {
	ctx, span := util.StartSpan(ctx, "Gateway.ProvisionNonSecure")
	defer span.End()

	req.ECI, req.CAVV, req.MpiTransactionID = "", "", ""
	return c.provision(ctx, "provision_nonsecure", req)
}

// Provision3DSecure charges a card after a successful ACS authentication.
func (c *Client) Provision3DSecure(ctx context.Context, req ProvisionRequest) (*ProvisionResult, error) {
	ctx, span := util.StartSpan(ctx, "Gateway.Provision3DSecure")
	defer span.End()

	if req.MpiTransactionID == "" {
		return nil, apperr.Gateway("", "3D provisioning requires an MPI transaction id", nil)
	}
	return c.provision(ctx, "provision_3d", req)
}

func (c *Client) provision(ctx context.Context, op string, req ProvisionRequest) (*ProvisionResult, error) {
	vr := vposRequest{
		MerchantID:              c.cfg.MerchantID,
		Password:                c.cfg.MerchantPassword,
		TerminalNo:              c.cfg.TerminalNo,
		TransactionType:         "Sale",
		TransactionID:           req.TransactionID,
		CurrencyAmount:          FormatAmount(req.Amount),
		CurrencyCode:            c.cfg.CurrencyCode,
		Pan:                     req.Pan,
		Cvv:                     req.CVV,
		Expiry:                  req.Expiry,
		ECI:                     req.ECI,
		CAVV:                    req.CAVV,
		MpiTransactionID:        req.MpiTransactionID,
		ClientIP:                req.ClientIP,
		TransactionDeviceSource: "0",
	}
	if req.InstallmentCount > 1 {
		vr.NumberOfInstallments = strconv.Itoa(req.InstallmentCount)
	}

	raw, err := xml.Marshal(vr)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal provision request: %w", err)
	}

	body, err := c.post(ctx, op, c.cfg.ProvisionURL, url.Values{"prmstr": {string(raw)}})
	if err != nil {
		return nil, err
	}

	res, err := NormalizeProvision(body)
	if err != nil {
		return nil, apperr.Gateway("", "unreadable provision response", err)
	}

	c.logger.Info("Provision completed",
		zap.String("operation", op),
		zap.String("pan", MaskPAN(req.Pan)),
		zap.Bool("approved", res.Approved),
		zap.String("result_code", res.ResultCode),
		zap.String("transaction_id", res.TransactionID))
	return res, nil
}

func (c *Client) post(ctx context.Context, op, endpoint string, form url.Values) ([]byte, error) {
	start := time.Now()
	outcome := "ok"
	defer func() {
		util.GatewayRequestLatency.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		outcome = "error"
		return nil, fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/xml, text/xml")

	resp, err := c.http.Do(req)
	if err != nil {
		outcome = "transport_error"
		c.logger.Error("Gateway request failed", zap.String("operation", op), zap.Error(err))
		return nil, apperr.Gateway("", "payment gateway unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		outcome = "transport_error"
		return nil, apperr.Gateway("", "payment gateway response truncated", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		outcome = "http_" + strconv.Itoa(resp.StatusCode)
		return nil, apperr.Gateway("", "payment gateway returned an error status",
			fmt.Errorf("%s: status %d", op, resp.StatusCode))
	}
	return body, nil
}

// FormatAmount renders an amount the way both endpoints expect it: "90.00"
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
