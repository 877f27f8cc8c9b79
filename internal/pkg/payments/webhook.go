package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/invobr/paysync/app/models"
	"github.com/invobr/paysync/internal/pkg/gateway"
	"github.com/invobr/paysync/internal/pkg/idempotency"
	"github.com/invobr/paysync/internal/pkg/reconcile"
	"github.com/invobr/paysync/internal/pkg/tenant"
)

// WebhookInput carries everything a controller extracts from an inbound
// gateway notification. RawBody is kept verbatim so unresolvable deliveries
// can be parked for inspection.
type WebhookInput struct {
	Topic           string
	ResourceID      string
	NotificationID  string
	GatewayUserID   string
	TenantParam     string
	SignatureHeader string
	RequestID       string
	RawBody         []byte
	ReceivedAt      time.Time
}

// Enqueuer hands an acquired event to the async queue. A nil Enqueuer makes
// the ingest path process inline, which the tests rely on.
type Enqueuer interface {
	EnqueueReconcile(ctx context.Context, ev reconcile.Event) error
}

// WebhookService ingests gateway notifications for both topics: resolve the
// tenant, verify the signature, acquire the idempotency slot, then process
// or enqueue.
type WebhookService struct {
	repo     Repository
	resolver *tenant.Resolver
	idem     idempotency.Store
	engine   *reconcile.Engine
	queue    Enqueuer
}

func NewWebhookService(repo Repository, resolver *tenant.Resolver, idem idempotency.Store, engine *reconcile.Engine, queue Enqueuer) *WebhookService {
	return &WebhookService{repo: repo, resolver: resolver, idem: idem, engine: engine, queue: queue}
}

// Ingest processes one delivery end to end and returns the envelope the
// controller translates into a response code. Success means the gateway may
// stop redelivering.
func (s *WebhookService) Ingest(ctx context.Context, in WebhookInput) Result {
	topic, ok := normalizeTopic(in.Topic)
	if !ok {
		return failure(KindValidation, "unsupported webhook topic: "+in.Topic)
	}
	resourceID := strings.TrimSpace(in.ResourceID)
	if resourceID == "" {
		return failure(KindValidation, "webhook carries no resource id")
	}

	tenantID, err := s.resolver.Resolve(ctx, tenant.ResolveInput{
		Topic:         topic,
		ResourceID:    resourceID,
		GatewayUserID: in.GatewayUserID,
		TenantParam:   in.TenantParam,
	})
	if err != nil {
		s.park(ctx, topic, resourceID, in.RawBody, err)
		return classify(err)
	}

	if res, ok := s.verifySignature(ctx, tenantID, resourceID, in); !ok {
		return res
	}

	notificationID := strings.TrimSpace(in.NotificationID)
	if notificationID == "" {
		notificationID = idempotency.FallbackKey(topic, resourceID, tenantID)
	}

	begin, err := s.idem.TryBegin(ctx, tenantID, notificationID, topic, resourceID)
	if err != nil {
		return classify(err)
	}
	switch begin.State {
	case idempotency.AlreadyProcessed:
		return Result{Success: true, Kind: KindDuplicate, Message: begin.Outcome}
	case idempotency.InFlight:
		// Another deliverer owns the slot. Not acknowledged: if that
		// deliverer died before settling, redelivery is the only path
		// back to the event, and the stale slot is re-acquirable.
		return failure(KindInFlight, "delivery already in flight")
	}

	ev := reconcile.Event{
		NotificationID: notificationID,
		Topic:          topic,
		ResourceID:     resourceID,
		TenantID:       tenantID,
		ReceivedAt:     receivedAtOrNow(in.ReceivedAt),
	}

	if s.queue != nil {
		if err := s.queue.EnqueueReconcile(ctx, ev); err != nil {
			log.Errorf("[Webhook] enqueue failed for notification %s: %v", notificationID, err)
			s.release(ctx, tenantID, notificationID)
			return failure(KindInternal, "could not enqueue event")
		}
		return Result{Success: true, Kind: KindQueued}
	}

	outcome, err := s.engine.Handle(ctx, ev)
	if err != nil {
		return classify(err)
	}
	return Result{Success: true, Kind: KindOK, Message: outcome}
}

func (s *WebhookService) verifySignature(ctx context.Context, tenantID uint, resourceID string, in WebhookInput) (Result, bool) {
	cred, err := s.repo.CredentialByTenant(ctx, tenantID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Result{}, true
	}
	if err != nil {
		return classify(err), false
	}
	if cred.WebhookSecret == "" {
		return Result{}, true
	}
	if !gateway.VerifyWebhookSignature(in.SignatureHeader, in.RequestID, resourceID, cred.WebhookSecret) {
		log.Warnf("[Webhook] signature rejected for tenant %d resource %s", tenantID, resourceID)
		return failure(KindBadSignature, "invalid webhook signature"), false
	}
	return Result{}, true
}

func (s *WebhookService) park(ctx context.Context, topic, resourceID string, rawBody []byte, cause error) {
	if !errors.Is(cause, tenant.ErrAmbiguousTenant) {
		return
	}
	// The gateway redelivers an unacknowledged event for days; one open
	// row per resource is enough for the operator.
	if existing, err := s.repo.UnresolvedParkedWebhook(ctx, topic, resourceID); err == nil && existing != nil {
		return
	}
	parked := &models.ParkedWebhook{
		Topic:       topic,
		ResourceID:  resourceID,
		PayloadJSON: string(rawBody),
		Reason:      cause.Error(),
	}
	if err := s.repo.ParkWebhook(ctx, parked); err != nil {
		log.Errorf("[Webhook] could not park delivery for %s %s: %v", topic, resourceID, err)
	}
}

func (s *WebhookService) release(ctx context.Context, tenantID uint, notificationID string) {
	if err := s.idem.Release(ctx, tenantID, notificationID); err != nil {
		log.Errorf("[Webhook] release failed for tenant %d notification %s: %v", tenantID, notificationID, err)
	}
}

// normalizeTopic accepts the topic spellings the gateway uses across its
// webhook versions.
func normalizeTopic(topic string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(topic)) {
	case "payment", "payments":
		return models.WebhookTopicPayment, true
	case "merchant_order", "merchant_orders", "topic_merchant_order_wh":
		return models.WebhookTopicMerchantOrder, true
	default:
		return "", false
	}
}

func receivedAtOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
