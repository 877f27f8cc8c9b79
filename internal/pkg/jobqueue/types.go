package jobqueue

import (
	"encoding/json"
	"time"

	"github.com/invobr/paysync/internal/pkg/reconcile"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeReconcileWebhook JobType = "reconcile_webhook"
	JobTypeOrderResync      JobType = "order_resync"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// MarkAsProcessing marks the job as currently being worked on.
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.ProcessedAt = &now
	j.UpdatedAt = now
}

// MarkAsCompleted marks the job as successfully finished.
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// MarkAsFailed records a failure and bumps the retry counter.
func (j *Job) MarkAsFailed(errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMsg = errMsg
	j.RetryCount++
	j.UpdatedAt = time.Now()
}

// MarkAsRetrying marks the job as awaiting another attempt.
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}

// IsRetryable reports whether the job has retry budget left.
func (j *Job) IsRetryable() bool {
	return j.RetryCount <= j.MaxRetries
}

// ReconcileJobPayload carries one resolved webhook event through Redis.
type ReconcileJobPayload struct {
	NotificationID string    `json:"notification_id"`
	Topic          string    `json:"topic"`
	ResourceID     string    `json:"resource_id"`
	TenantID       uint      `json:"tenant_id"`
	ReceivedAt     time.Time `json:"received_at"`
}

// ToMap converts the payload to a map for storage
func (p ReconcileJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"notification_id": p.NotificationID,
		"topic":           p.Topic,
		"resource_id":     p.ResourceID,
		"tenant_id":       p.TenantID,
		"received_at":     p.ReceivedAt.Format(time.RFC3339Nano),
	}
}

// ReconcileJobPayloadFromMap creates a payload from a stored map.
func ReconcileJobPayloadFromMap(data map[string]interface{}) (*ReconcileJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload ReconcileJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// Event converts the payload back into an engine event.
func (p *ReconcileJobPayload) Event() reconcile.Event {
	return reconcile.Event{
		NotificationID: p.NotificationID,
		Topic:          p.Topic,
		ResourceID:     p.ResourceID,
		TenantID:       p.TenantID,
		ReceivedAt:     p.ReceivedAt,
	}
}

// PayloadForEvent builds the job payload for an engine event.
func PayloadForEvent(ev reconcile.Event) ReconcileJobPayload {
	return ReconcileJobPayload{
		NotificationID: ev.NotificationID,
		Topic:          ev.Topic,
		ResourceID:     ev.ResourceID,
		TenantID:       ev.TenantID,
		ReceivedAt:     ev.ReceivedAt,
	}
}
