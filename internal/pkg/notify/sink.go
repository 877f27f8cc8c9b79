package notify

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
)

const (
	KindPaymentApproved  = "payment_approved"
	KindPaymentRejected  = "payment_rejected"
	KindPaymentCancelled = "payment_cancelled"
	KindPaymentRefunded  = "payment_refunded"
	KindOrderClosed      = "order_closed"
	KindOrderExpired     = "order_expired"
)

// Event describes a reconciliation outcome worth telling someone about.
type Event struct {
	TenantID   uint
	Kind       string
	ResourceID string
	Amount     decimal.Decimal
	Currency   string
	OccurredAt time.Time
}

// Sink receives terminal-state events for downstream delivery (email, log).
type Sink interface {
	Dispatch(ctx context.Context, ev Event) error
}

// LogSink writes events to the application log. Default sink when no SMTP
// host is configured.
type LogSink struct{}

func (LogSink) Dispatch(_ context.Context, ev Event) error {
	log.Infof("[Notify] tenant=%d kind=%s resource=%s amount=%s %s",
		ev.TenantID, ev.Kind, ev.ResourceID, ev.Amount.StringFixed(2), ev.Currency)
	return nil
}
