package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"

	"github.com/invobr/paysync/app/models"
	"github.com/invobr/paysync/internal/pkg/gateway"
	"github.com/invobr/paysync/internal/pkg/reconcile"
	"github.com/invobr/paysync/internal/pkg/tenant"
)

// Gateway is the full client surface the facades need: the engine's
// reconciliation calls plus preference creation.
type Gateway interface {
	reconcile.Gateway
	CreatePreference(ctx context.Context, tenantID uint, req gateway.PreferenceRequest) (*gateway.Preference, error)
}

// CreatePreferenceInput describes one checkout to open at the gateway.
type CreatePreferenceInput struct {
	TenantID    uint            `json:"tenant_id" validate:"required,gt=0"`
	Title       string          `json:"title" validate:"required,max=256"`
	Description string          `json:"description" validate:"max=600"`
	Quantity    int             `json:"quantity" validate:"required,gt=0"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Currency    string          `json:"currency" validate:"omitempty,len=3"`
	Purpose     string          `json:"purpose" validate:"required,oneof=invoice plan generic"`
	PurposeRef  string          `json:"purpose_ref" validate:"max=64"`
	NotifyURL   string          `json:"notification_url" validate:"omitempty,url"`
}

// PreferenceOutput is returned to the caller so they can redirect the payer.
type PreferenceOutput struct {
	PreferenceID      string `json:"preference_id"`
	InitPoint         string `json:"init_point"`
	SandboxInitPoint  string `json:"sandbox_init_point,omitempty"`
	ExternalReference string `json:"external_reference"`
}

// PaymentService exposes the payment-side operations: preference creation,
// status checks, cancellation and refunds. All calls take an explicit tenant
// id; nothing is read from ambient state.
type PaymentService struct {
	repo     Repository
	gw       Gateway
	engine   *reconcile.Engine
	validate *validator.Validate
}

func NewPaymentService(repo Repository, gw Gateway, engine *reconcile.Engine) *PaymentService {
	return &PaymentService{
		repo:     repo,
		gw:       gw,
		engine:   engine,
		validate: validator.New(),
	}
}

// CreatePaymentPreference opens a checkout at the gateway and records the
// audit row. The local Payment record appears only at first webhook
// sighting, because the gateway payment id does not exist yet.
func (s *PaymentService) CreatePaymentPreference(ctx context.Context, in CreatePreferenceInput) Result {
	if err := s.validate.Struct(in); err != nil {
		return failure(KindValidation, err.Error())
	}
	if !in.UnitPrice.IsPositive() {
		return failure(KindValidation, "unit_price must be positive")
	}
	if in.Purpose != models.PreferencePurposeGeneric && strings.TrimSpace(in.PurposeRef) == "" {
		return failure(KindValidation, "purpose_ref is required for purpose "+in.Purpose)
	}

	currency := in.Currency
	if currency == "" {
		currency = "BRL"
	}
	extRef := tenant.FormatExternalReference(in.TenantID, in.Purpose, in.PurposeRef)

	pref, err := s.gw.CreatePreference(ctx, in.TenantID, gateway.PreferenceRequest{
		Items: []gateway.PreferenceItem{{
			ID:          fmt.Sprintf("%s-%s", in.Purpose, in.PurposeRef),
			Title:       in.Title,
			Description: in.Description,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			CurrencyID:  currency,
		}},
		ExternalReference: extRef,
		NotificationURL:   in.NotifyURL,
		AutoReturn:        "approved",
	})
	if err != nil {
		return classify(err)
	}

	total := in.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity)))
	audit := &models.PaymentPreference{
		TenantID:          in.TenantID,
		PreferenceID:      pref.ID,
		ExternalReference: extRef,
		Purpose:           in.Purpose,
		PurposeRef:        in.PurposeRef,
		Amount:            total,
		Currency:          currency,
	}
	if err := s.repo.CreatePreference(ctx, audit); err != nil {
		// The gateway object exists; losing the audit row is recoverable
		// via external_reference, so the checkout is still returned.
		log.Errorf("[Payments] could not persist preference %s: %v", pref.ID, err)
	}

	return ok(PreferenceOutput{
		PreferenceID:      pref.ID,
		InitPoint:         pref.InitPoint,
		SandboxInitPoint:  pref.SandboxInitPoint,
		ExternalReference: extRef,
	})
}

// GetPreference returns the audit record of a checkout preference.
func (s *PaymentService) GetPreference(ctx context.Context, preferenceID string) Result {
	if strings.TrimSpace(preferenceID) == "" {
		return failure(KindValidation, "preference_id is required")
	}
	pref, err := s.repo.PreferenceByID(ctx, preferenceID)
	if err != nil {
		return classify(err)
	}
	return ok(pref)
}

// CheckPaymentStatus fetches the authoritative snapshot, reconciles local
// state and returns the stored record.
func (s *PaymentService) CheckPaymentStatus(ctx context.Context, tenantID uint, gatewayPaymentID string) Result {
	if tenantID == 0 || strings.TrimSpace(gatewayPaymentID) == "" {
		return failure(KindValidation, "tenant_id and payment_id are required")
	}
	p, err := s.engine.SyncPaymentStatus(ctx, tenantID, gatewayPaymentID)
	if err != nil {
		return classify(err)
	}
	return ok(p)
}

// CancelPayment cancels a non-terminal payment at the gateway and applies
// the result locally.
func (s *PaymentService) CancelPayment(ctx context.Context, tenantID uint, gatewayPaymentID string) Result {
	if tenantID == 0 || strings.TrimSpace(gatewayPaymentID) == "" {
		return failure(KindValidation, "tenant_id and payment_id are required")
	}
	p, err := s.engine.CancelPayment(ctx, tenantID, gatewayPaymentID)
	if err != nil {
		return classify(err)
	}
	return ok(p)
}

// RefundPayment refunds an approved payment, fully when amount is nil.
func (s *PaymentService) RefundPayment(ctx context.Context, tenantID uint, gatewayPaymentID string, amount *decimal.Decimal) Result {
	if tenantID == 0 || strings.TrimSpace(gatewayPaymentID) == "" {
		return failure(KindValidation, "tenant_id and payment_id are required")
	}
	if amount != nil && !amount.IsPositive() {
		return failure(KindValidation, "refund amount must be positive")
	}
	p, refund, err := s.engine.RefundPayment(ctx, tenantID, gatewayPaymentID, amount)
	if err != nil {
		return classify(err)
	}
	return ok(map[string]interface{}{
		"payment": p,
		"refund":  refund,
	})
}

// ListPayments returns a tenant's payments, optionally filtered by status.
func (s *PaymentService) ListPayments(ctx context.Context, tenantID uint, status string, limit, offset int) Result {
	if tenantID == 0 {
		return failure(KindValidation, "tenant_id is required")
	}
	if status != "" && !models.PaymentStatusIsKnown(status) {
		return failure(KindValidation, "unknown payment status: "+status)
	}
	limit = clampLimit(limit)
	payments, total, err := s.repo.ListPayments(ctx, tenantID, status, limit, maxInt(offset, 0))
	if err != nil {
		return classify(err)
	}
	return ok(map[string]interface{}{
		"payments": payments,
		"total":    total,
	})
}

// ListParkedWebhooks returns unresolved parked deliveries for operators.
func (s *PaymentService) ListParkedWebhooks(ctx context.Context, limit, offset int) Result {
	parked, total, err := s.repo.ListParkedWebhooks(ctx, clampLimit(limit), maxInt(offset, 0))
	if err != nil {
		return classify(err)
	}
	return ok(map[string]interface{}{
		"parked": parked,
		"total":  total,
	})
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 200 {
		return 200
	}
	return limit
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
