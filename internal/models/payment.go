package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the settlement lifecycle of an order
type PaymentStatus string

const (
	PaymentStatusPending         PaymentStatus = "Pending"
	PaymentStatusAwaitingPayment PaymentStatus = "AwaitingPayment"
	PaymentStatusPaid            PaymentStatus = "Paid"
	PaymentStatusFailed          PaymentStatus = "Failed"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:         {PaymentStatusAwaitingPayment, PaymentStatusPaid, PaymentStatusFailed},
	PaymentStatusAwaitingPayment: {PaymentStatusAwaitingPayment, PaymentStatusPaid, PaymentStatusFailed},
}

// IsTerminal reports whether no further settlement transition is allowed
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusPaid || s == PaymentStatusFailed
}

// CanTransition reports whether from -> to is a legal settlement transition
func CanTransition(from, to PaymentStatus) bool {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SourcesFor returns every status that may legally move to the target.
// Guarded updates use it as their WHERE payment_status = ANY(...) set.
func SourcesFor(to PaymentStatus) []PaymentStatus {
	var from []PaymentStatus
	for _, s := range []PaymentStatus{PaymentStatusPending, PaymentStatusAwaitingPayment} {
		if CanTransition(s, to) {
			from = append(from, s)
		}
	}
	return from
}

// PropagationSourcesFor returns the sibling statuses a group update may move
// to the target. A failure only reaches siblings that are still Pending.
func PropagationSourcesFor(to PaymentStatus) []PaymentStatus {
	if to == PaymentStatusFailed {
		return []PaymentStatus{PaymentStatusPending}
	}
	return SourcesFor(to)
}

// Offline payment methods
const (
	PaymentMethodCard           = "credit_card"
	PaymentMethodCashOnDelivery = "cash_on_delivery"
	PaymentMethodCardOnDelivery = "card_on_delivery"
	PaymentMethodPickup         = "pickup"
)

// IsOfflineMethod reports whether method settles at delivery or pickup
func IsOfflineMethod(method string) bool {
	switch method {
	case PaymentMethodCashOnDelivery, PaymentMethodCardOnDelivery, PaymentMethodPickup:
		return true
	}
	return false
}

// PaymentMetadata is persisted in orders.payment_response. It is written at
// enrollment time and is the only state the bank callback can be joined against.
type PaymentMetadata struct {
	VerifyEnrollmentRequestID string          `json:"verifyEnrollmentRequestId"`
	CallbackToken             string          `json:"callbackToken"`
	GroupID                   string          `json:"groupId"`
	CardBrand                 string          `json:"cardBrand,omitempty"`
	MaskedPan                 string          `json:"maskedPan,omitempty"`
	Amount                    decimal.Decimal `json:"amount"`
	InstallmentCount          int             `json:"installmentCount,omitempty"`
	Enrolled                  bool            `json:"enrolled"`
	InitiatedAt               time.Time       `json:"initiatedAt"`
	Gateway                   *GatewayOutcome `json:"gateway,omitempty"`
}

// GatewayOutcome keeps the raw provisioning answer for audit
type GatewayOutcome struct {
	ResultCode    string `json:"resultCode"`
	ResultDetail  string `json:"resultDetail,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
	Rrn           string `json:"rrn,omitempty"`
	AuthCode      string `json:"authCode,omitempty"`
	Eci           string `json:"eci,omitempty"`
	Raw           string `json:"raw,omitempty"`
}

// Settlement describes one outcome applied to an order and its group
type Settlement struct {
	OrderID         int64
	GroupID         string
	Status          PaymentStatus
	Method          string
	TransactionID   string
	PaymentResponse string
	PaymentError    string
	PaidAt          *time.Time
}

// Validate rejects outcomes that no source state may reach
func (s Settlement) Validate() error {
	if len(SourcesFor(s.Status)) == 0 {
		return fmt.Errorf("no settlement transition leads to %s", s.Status)
	}
	if s.GroupID == "" {
		return fmt.Errorf("settlement for order %d has no group", s.OrderID)
	}
	return nil
}

// SettleResult counts the rows a settlement actually moved
type SettleResult struct {
	Primary  int64
	Siblings int64
}

// Applied reports whether the primary order changed state
func (r SettleResult) Applied() bool {
	return r.Primary == 1
}
