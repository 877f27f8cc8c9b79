package models

import "time"

// ProviderCredential holds one tenant's gateway credentials. GatewayUserID is
// the gateway-side account id reported in webhook bodies; it is the fast path
// for tenant resolution before falling back to external_reference parsing.
type ProviderCredential struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	TenantID      uint      `gorm:"not null;uniqueIndex" json:"tenant_id"`
	GatewayUserID string    `gorm:"type:varchar(64);index" json:"gateway_user_id"`
	AccessToken   string    `gorm:"type:varchar(255);not null" json:"-"`
	WebhookSecret string    `gorm:"type:varchar(255)" json:"-"`
	NotifyEmail   string    `gorm:"type:varchar(255)" json:"notify_email"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
