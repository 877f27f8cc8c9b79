package models

import "time"

const (
	WebhookTopicPayment       = "payment"
	WebhookTopicMerchantOrder = "merchant_order"
)

const (
	WebhookStateProcessing = "processing"
	WebhookStateCommitted  = "committed"
	WebhookStateReleased   = "released"
)

// WebhookEvent is the idempotency record for a gateway notification. The
// (tenant_id, notification_id) pair is write-once: the first deliverer wins
// the processing slot, later duplicates short-circuit on the unique index.
type WebhookEvent struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	TenantID       uint       `gorm:"not null;index:ux_webhook_events_tenant_notification,unique,priority:1;index" json:"tenant_id"`
	NotificationID string     `gorm:"type:varchar(191);not null;index:ux_webhook_events_tenant_notification,unique,priority:2" json:"notification_id"`
	Topic          string     `gorm:"type:varchar(30);not null;index" json:"topic"`
	ResourceID     string     `gorm:"type:varchar(64);not null" json:"resource_id"`
	State          string     `gorm:"type:varchar(12);not null;default:'processing';index" json:"state"`
	Outcome        string     `gorm:"type:varchar(40)" json:"outcome"`
	ProcessedAt    *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
