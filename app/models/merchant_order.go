package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	MerchantOrderStatusOpened  = "opened"
	MerchantOrderStatusClosed  = "closed"
	MerchantOrderStatusExpired = "expired"
)

// GatewayIDSet is an unordered set of gateway payment ids stored as JSON.
type GatewayIDSet []string

func (s GatewayIDSet) Value() (driver.Value, error) {
	if s == nil {
		s = GatewayIDSet{}
	}
	return json.Marshal(s)
}

func (s *GatewayIDSet) Scan(value interface{}) error {
	if value == nil {
		*s = GatewayIDSet{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("unsupported type for GatewayIDSet")
	}
	return json.Unmarshal(raw, s)
}

// Contains reports membership; order is irrelevant.
func (s GatewayIDSet) Contains(id string) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

// MerchantOrder mirrors the gateway aggregate grouping one or more payments
// against a single checkout. Never deleted; close is terminal.
type MerchantOrder struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	TenantID       uint            `gorm:"not null;index:ux_merchant_orders_tenant_gateway,unique,priority:1;index" json:"tenant_id"`
	GatewayOrderID string          `gorm:"type:varchar(64);not null;index:ux_merchant_orders_tenant_gateway,unique,priority:2" json:"gateway_order_id"`
	Status         string          `gorm:"type:varchar(20);not null;default:'opened';index" json:"status"`
	PaymentIDs     GatewayIDSet    `gorm:"type:json" json:"payment_ids"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	PaidAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"paid_amount"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the order can no longer change.
func (o *MerchantOrder) IsTerminal() bool {
	return o.Status == MerchantOrderStatusClosed || o.Status == MerchantOrderStatusExpired
}
