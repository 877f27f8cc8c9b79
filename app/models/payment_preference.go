package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentPreference is the audit record of a checkout preference created at
// the gateway. The gateway payment id does not exist yet at this point, so
// the Payment row itself is created at first webhook sighting; the preference
// row carries the external reference that later correlates the two.
type PaymentPreference struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	TenantID          uint            `gorm:"not null;index" json:"tenant_id"`
	PreferenceID      string          `gorm:"type:varchar(128);not null;uniqueIndex" json:"preference_id"`
	ExternalReference string          `gorm:"type:varchar(191);not null;index" json:"external_reference"`
	Purpose           string          `gorm:"type:varchar(30);not null" json:"purpose"`
	PurposeRef        string          `gorm:"type:varchar(64)" json:"purpose_ref"`
	Amount            decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency          string          `gorm:"type:varchar(3);not null;default:'BRL'" json:"currency"`
	ExpiredAt         *time.Time      `gorm:"type:timestamp;default:null" json:"expired_at,omitempty"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

const (
	PreferencePurposeInvoice = "invoice"
	PreferencePurposePlan    = "plan"
	PreferencePurposeGeneric = "generic"
)
