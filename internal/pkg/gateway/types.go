package gateway

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/invobr/paysync/app/models"
)

// PreferenceItem describes a single line of a checkout preference.
type PreferenceItem struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	CurrencyID  string          `json:"currency_id"`
}

// PreferenceRequest is the payload for POST /checkout/preferences.
type PreferenceRequest struct {
	Items             []PreferenceItem  `json:"items"`
	ExternalReference string            `json:"external_reference"`
	NotificationURL   string            `json:"notification_url,omitempty"`
	AutoReturn        string            `json:"auto_return,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// Preference is the gateway-side checkout object returned on creation.
type Preference struct {
	ID                string `json:"id"`
	InitPoint         string `json:"init_point"`
	SandboxInitPoint  string `json:"sandbox_init_point"`
	ExternalReference string `json:"external_reference"`
}

// PaymentSnapshot is the authoritative payment state as reported by the
// gateway. Webhooks are pointers; this is the payload.
type PaymentSnapshot struct {
	ID                int64           `json:"id"`
	Status            string          `json:"status"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	CurrencyID        string          `json:"currency_id"`
	PaymentMethodID   string          `json:"payment_method_id"`
	ExternalReference string          `json:"external_reference"`
	PreferenceID      string          `json:"preference_id"`
	DateCreated       *time.Time      `json:"date_created"`
	DateApproved      *time.Time      `json:"date_approved"`
}

// GatewayID returns the payment id in the string form used for local records
// and request paths.
func (s *PaymentSnapshot) GatewayID() string {
	return strconv.FormatInt(s.ID, 10)
}

// OrderPayment is a payment entry inside a merchant order snapshot.
type OrderPayment struct {
	ID                int64           `json:"id"`
	Status            string          `json:"status"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
}

// GatewayID returns the payment id in string form.
func (p *OrderPayment) GatewayID() string {
	return strconv.FormatInt(p.ID, 10)
}

// MerchantOrderSnapshot is the authoritative merchant order state.
type MerchantOrderSnapshot struct {
	ID                int64           `json:"id"`
	Status            string          `json:"status"`
	ExternalReference string          `json:"external_reference"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	Payments          []OrderPayment  `json:"payments"`
}

// GatewayID returns the order id in string form.
func (s *MerchantOrderSnapshot) GatewayID() string {
	return strconv.FormatInt(s.ID, 10)
}

// RefundResult is the outcome of POST /v1/payments/{id}/refunds.
type RefundResult struct {
	ID        int64           `json:"id"`
	PaymentID int64           `json:"payment_id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
}

// MapPaymentStatus folds the gateway's raw payment statuses onto the local
// lattice. Unknown statuses are treated as pending, matching how the upstream
// processor introduces new intermediate states without notice.
func MapPaymentStatus(raw string) string {
	switch raw {
	case "approved":
		return models.PaymentStatusApproved
	case "pending", "authorized", "in_mediation":
		return models.PaymentStatusPending
	case "in_process":
		return models.PaymentStatusInProcess
	case "rejected":
		return models.PaymentStatusRejected
	case "cancelled":
		return models.PaymentStatusCancelled
	case "refunded", "charged_back":
		return models.PaymentStatusRefunded
	default:
		return models.PaymentStatusPending
	}
}

// MapOrderStatus folds the gateway's merchant order statuses.
func MapOrderStatus(raw string) string {
	switch raw {
	case "closed":
		return models.MerchantOrderStatusClosed
	case "expired":
		return models.MerchantOrderStatusExpired
	default:
		return models.MerchantOrderStatusOpened
	}
}
