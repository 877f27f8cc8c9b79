package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusApproved  = "approved"
	PaymentStatusRejected  = "rejected"
	PaymentStatusCancelled = "cancelled"
	PaymentStatusRefunded  = "refunded"
	PaymentStatusInProcess = "in_process"
)

// Payment mirrors a gateway payment for one tenant. The gateway payment id is
// only unique per tenant, never globally. Rows are never hard-deleted; terminal
// statuses (cancelled/refunded/rejected) are the soft end of the lifecycle.
type Payment struct {
	ID                        uint            `gorm:"primaryKey" json:"id"`
	TenantID                  uint            `gorm:"not null;index:ux_payments_tenant_gateway,unique,priority:1;index" json:"tenant_id"`
	GatewayPaymentID          string          `gorm:"type:varchar(64);not null;index:ux_payments_tenant_gateway,unique,priority:2" json:"gateway_payment_id"`
	Status                    string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Amount                    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency                  string          `gorm:"type:varchar(3);not null;default:'BRL'" json:"currency"`
	PaymentMethod             string          `gorm:"type:varchar(40)" json:"payment_method"`
	RelatedInvoiceID          *string         `gorm:"type:varchar(64);default:null" json:"related_invoice_id,omitempty"`
	RelatedPlanSubscriptionID *uint           `gorm:"default:null" json:"related_plan_subscription_id,omitempty"`
	CreatedAt                 time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                 time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	LastSyncedAt              *time.Time      `gorm:"type:timestamp;default:null" json:"last_synced_at,omitempty"`
}

// IsTerminal reports whether no further transition is permitted from the
// payment's current status.
func (p *Payment) IsTerminal() bool {
	return PaymentStatusIsTerminal(p.Status)
}

// PaymentStatusIsKnown reports whether status is part of the lifecycle.
func PaymentStatusIsKnown(status string) bool {
	switch status {
	case PaymentStatusPending, PaymentStatusApproved, PaymentStatusRejected,
		PaymentStatusCancelled, PaymentStatusRefunded, PaymentStatusInProcess:
		return true
	default:
		return false
	}
}

func PaymentStatusIsTerminal(status string) bool {
	switch status {
	case PaymentStatusRejected, PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	default:
		return false
	}
}
