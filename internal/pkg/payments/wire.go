package payments

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/invobr/paysync/app/models"
	"github.com/invobr/paysync/internal/pkg/env"
	"github.com/invobr/paysync/internal/pkg/gateway"
	"github.com/invobr/paysync/internal/pkg/idempotency"
	"github.com/invobr/paysync/internal/pkg/notify"
	"github.com/invobr/paysync/internal/pkg/reconcile"
	"github.com/invobr/paysync/internal/pkg/tenant"
)

// Services bundles the constructed facades for the HTTP layer.
type Services struct {
	Payments *PaymentService
	Orders   *MerchantOrderService
	Webhooks *WebhookService
	Engine   *reconcile.Engine
	Idem     idempotency.Store
}

// NewServicesFromDB wires the full stack from a GORM handle. queue may be
// nil, in which case webhook ingest processes inline.
func NewServicesFromDB(db *gorm.DB, queue Enqueuer) *Services {
	repo := NewRepository(db)
	gw := gateway.NewClient(&credentialSource{repo: repo})
	idem := idempotency.NewGormStore(db)
	var sink notify.Sink = notify.LogSink{}
	if env.GetEnv("NOTIFY_SINK", "log") == "mail" {
		sink = notify.NewMailSink(repo)
	}
	engine := reconcile.NewEngine(gw, repo, repo, idem, sink)
	engine.SetPreferenceStore(repo)
	resolver := tenant.NewResolver(repo, &referenceLookup{gw: gw})

	return &Services{
		Payments: NewPaymentService(repo, gw, engine),
		Orders:   NewMerchantOrderService(repo, engine),
		Webhooks: NewWebhookService(repo, resolver, idem, engine, queue),
		Engine:   engine,
		Idem:     idem,
	}
}

// credentialSource adapts the repository to the gateway's token lookup.
// Tenant 0 is the platform account configured via environment.
type credentialSource struct {
	repo Repository
}

func (s *credentialSource) AccessToken(ctx context.Context, tenantID uint) (string, error) {
	if tenantID == 0 {
		tok := env.GetEnv("GATEWAY_PLATFORM_TOKEN", "")
		if tok == "" {
			return "", errors.New("GATEWAY_PLATFORM_TOKEN is not configured")
		}
		return tok, nil
	}
	cred, err := s.repo.CredentialByTenant(ctx, tenantID)
	if err != nil {
		return "", err
	}
	return cred.AccessToken, nil
}

// referenceLookup fetches a resource with platform credentials purely to
// read its external_reference during tenant resolution.
type referenceLookup struct {
	gw *gateway.Client
}

func (l *referenceLookup) ExternalReference(ctx context.Context, topic, resourceID string) (string, error) {
	switch topic {
	case models.WebhookTopicMerchantOrder:
		snap, err := l.gw.FetchMerchantOrder(ctx, 0, resourceID)
		if err != nil {
			return "", err
		}
		return snap.ExternalReference, nil
	default:
		snap, err := l.gw.FetchPayment(ctx, 0, resourceID)
		if err != nil {
			return "", err
		}
		return snap.ExternalReference, nil
	}
}
