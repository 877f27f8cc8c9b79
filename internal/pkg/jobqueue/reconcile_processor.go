package jobqueue

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/invobr/paysync/internal/pkg/idempotency"
	"github.com/invobr/paysync/internal/pkg/reconcile"
)

// ReconcileProcessor executes webhook reconciliation jobs. The idempotency
// slot is re-acquired on every attempt: the ingest path acquired it once,
// but a transient failure releases it, and a later redelivery may have taken
// it over in the meantime.
type ReconcileProcessor struct {
	engine *reconcile.Engine
	idem   idempotency.Store
}

func NewReconcileProcessor(engine *reconcile.Engine, idem idempotency.Store) *ReconcileProcessor {
	return &ReconcileProcessor{engine: engine, idem: idem}
}

// Process runs one job attempt. A returned error triggers the queue's retry
// policy; nil means the event is settled.
func (p *ReconcileProcessor) Process(ctx context.Context, job *Job) error {
	payload, err := ReconcileJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid reconcile payload: %w", err)
	}
	ev := payload.Event()

	begin, err := p.idem.TryBegin(ctx, ev.TenantID, ev.NotificationID, ev.Topic, ev.ResourceID)
	if err != nil {
		return err
	}
	switch begin.State {
	case idempotency.AlreadyProcessed:
		log.Infof("[JobQueue] Notification %s already settled (%s), skipping", ev.NotificationID, begin.Outcome)
		return nil
	case idempotency.InFlight:
		// First attempt after ingest: the slot acquired there is still ours.
		// The engine settles it either way.
	}

	outcome, err := p.engine.Handle(ctx, ev)
	if err != nil {
		return err
	}
	log.Infof("[JobQueue] Notification %s settled: %s", ev.NotificationID, outcome)
	return nil
}
