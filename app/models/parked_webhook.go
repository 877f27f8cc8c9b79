package models

import "time"

// ParkedWebhook stores deliveries whose tenant could not be resolved. They
// are kept for manual inspection; the delivery itself is answered with a
// failure so the gateway keeps redelivering while an operator investigates.
type ParkedWebhook struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Topic       string     `gorm:"type:varchar(30);not null" json:"topic"`
	ResourceID  string     `gorm:"type:varchar(64);not null;index" json:"resource_id"`
	PayloadJSON string     `gorm:"type:longtext;not null" json:"payload_json"`
	Reason      string     `gorm:"type:varchar(255)" json:"reason"`
	ResolvedAt  *time.Time `gorm:"type:timestamp;default:null" json:"resolved_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}
