package idempotency

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/invobr/paysync/app/models"
)

// A processing row older than this belongs to an instance that died between
// acquiring the slot and settling it. Redeliveries may take it over.
const staleProcessingAge = 15 * time.Minute

type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates the database-backed idempotency store. The atomic
// acquisition is a single conditional insert on the (tenant_id,
// notification_id) unique index.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) TryBegin(ctx context.Context, tenantID uint, notificationID, topic, resourceID string) (Begin, error) {
	event := &models.WebhookEvent{
		TenantID:       tenantID,
		NotificationID: notificationID,
		Topic:          topic,
		ResourceID:     resourceID,
		State:          models.WebhookStateProcessing,
	}
	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "tenant_id"},
			{Name: "notification_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return Begin{}, tx.Error
	}
	if tx.RowsAffected > 0 {
		return Begin{State: Acquired}, nil
	}

	var stored models.WebhookEvent
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND notification_id = ?", tenantID, notificationID).
		First(&stored).Error; err != nil {
		return Begin{}, err
	}

	switch stored.State {
	case models.WebhookStateCommitted:
		return Begin{State: AlreadyProcessed, Outcome: stored.Outcome}, nil
	case models.WebhookStateReleased:
		// Re-acquire a released slot; the conditional update loses
		// against a concurrent re-acquirer.
		res := s.db.WithContext(ctx).Model(&models.WebhookEvent{}).
			Where("tenant_id = ? AND notification_id = ? AND state = ?",
				tenantID, notificationID, models.WebhookStateReleased).
			Update("state", models.WebhookStateProcessing)
		if res.Error != nil {
			return Begin{}, res.Error
		}
		if res.RowsAffected > 0 {
			return Begin{State: Acquired}, nil
		}
		return Begin{State: InFlight}, nil
	default:
		cutoff := time.Now().Add(-staleProcessingAge)
		if stored.UpdatedAt.Before(cutoff) {
			res := s.db.WithContext(ctx).Model(&models.WebhookEvent{}).
				Where("tenant_id = ? AND notification_id = ? AND state = ? AND updated_at < ?",
					tenantID, notificationID, models.WebhookStateProcessing, cutoff).
				Update("updated_at", time.Now())
			if res.Error != nil {
				return Begin{}, res.Error
			}
			if res.RowsAffected > 0 {
				return Begin{State: Acquired}, nil
			}
		}
		return Begin{State: InFlight}, nil
	}
}

func (s *gormStore) Commit(ctx context.Context, tenantID uint, notificationID, outcome string) error {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("tenant_id = ? AND notification_id = ? AND state <> ?",
			tenantID, notificationID, models.WebhookStateCommitted).
		Updates(map[string]interface{}{
			"state":        models.WebhookStateCommitted,
			"outcome":      outcome,
			"processed_at": &now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("idempotency commit: no processing record for tenant %d notification %s", tenantID, notificationID)
	}
	return nil
}

func (s *gormStore) Release(ctx context.Context, tenantID uint, notificationID string) error {
	return s.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("tenant_id = ? AND notification_id = ? AND state = ?",
			tenantID, notificationID, models.WebhookStateProcessing).
		Update("state", models.WebhookStateReleased).Error
}
