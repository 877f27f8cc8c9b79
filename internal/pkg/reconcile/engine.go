package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/invobr/paysync/app/models"
	"github.com/invobr/paysync/internal/pkg/gateway"
	"github.com/invobr/paysync/internal/pkg/idempotency"
	"github.com/invobr/paysync/internal/pkg/notify"
	"github.com/invobr/paysync/internal/pkg/tenant"
)

// Outcomes recorded against the idempotency record once an event is
// resolved.
const (
	OutcomeApplied        = "applied"
	OutcomeCreated        = "created"
	OutcomeNoChange       = "no_change"
	OutcomeAnomalyIgnored = "anomaly_ignored"
	OutcomeStaleIgnored   = "stale_ignored"
	OutcomeTenantMismatch = "tenant_mismatch"
	OutcomeOrderSynced    = "order_synced"
)

// Event is one webhook delivery after tenant resolution. It is a pointer to
// remote state, never a payload: the engine always fetches the authoritative
// snapshot before mutating anything.
type Event struct {
	NotificationID string
	Topic          string
	ResourceID     string
	TenantID       uint
	ReceivedAt     time.Time
}

// PaymentStore is the narrow persistence surface the engine needs for
// payments. Lookups miss with gorm.ErrRecordNotFound.
type PaymentStore interface {
	PaymentByGatewayID(ctx context.Context, tenantID uint, gatewayPaymentID string) (*models.Payment, error)
	CreatePayment(ctx context.Context, p *models.Payment) error
	UpdatePayment(ctx context.Context, p *models.Payment) error
}

// OrderStore is the merchant-order counterpart of PaymentStore.
type OrderStore interface {
	OrderByGatewayID(ctx context.Context, tenantID uint, gatewayOrderID string) (*models.MerchantOrder, error)
	CreateOrder(ctx context.Context, o *models.MerchantOrder) error
	UpdateOrder(ctx context.Context, o *models.MerchantOrder) error
}

// PreferenceStore marks checkout audit rows once their preference has been
// expired at the gateway. Optional; see Engine.SetPreferenceStore.
type PreferenceStore interface {
	MarkPreferenceExpired(ctx context.Context, preferenceID string) error
}

// Gateway is the subset of the gateway client the engine drives.
type Gateway interface {
	FetchPayment(ctx context.Context, tenantID uint, paymentID string) (*gateway.PaymentSnapshot, error)
	FetchMerchantOrder(ctx context.Context, tenantID uint, orderID string) (*gateway.MerchantOrderSnapshot, error)
	CancelPayment(ctx context.Context, tenantID uint, paymentID string) error
	RefundPayment(ctx context.Context, tenantID uint, paymentID string, amount *decimal.Decimal) (*gateway.RefundResult, error)
	ExpirePreference(ctx context.Context, tenantID uint, preferenceID string) error
}

// Engine drives the payment and merchant-order state machines under
// idempotency and tenant-isolation guarantees.
type Engine struct {
	gw       Gateway
	payments PaymentStore
	orders   OrderStore
	idem     idempotency.Store
	locks    *KeyedLock
	sink     notify.Sink
	prefs    PreferenceStore
}

func NewEngine(gw Gateway, payments PaymentStore, orders OrderStore, idem idempotency.Store, sink notify.Sink) *Engine {
	if sink == nil {
		sink = notify.LogSink{}
	}
	return &Engine{
		gw:       gw,
		payments: payments,
		orders:   orders,
		idem:     idem,
		locks:    NewKeyedLock(),
		sink:     sink,
	}
}

// SetPreferenceStore enables audit-row expiry alongside gateway preference
// expiry.
func (e *Engine) SetPreferenceStore(s PreferenceStore) {
	e.prefs = s
}

// Handle processes one acquired event and settles its idempotency record:
// resolved events (including anomalies) commit with their outcome, transient
// failures release the slot so a redelivery or queue retry can reprocess.
func (e *Engine) Handle(ctx context.Context, ev Event) (string, error) {
	outcome, err := e.ProcessEvent(ctx, ev)
	if err != nil && !resolved(err) {
		if relErr := e.idem.Release(ctx, ev.TenantID, ev.NotificationID); relErr != nil {
			log.Errorf("[Reconcile] release failed for tenant %d notification %s: %v",
				ev.TenantID, ev.NotificationID, relErr)
		}
		return "", err
	}
	if err != nil {
		log.Warnf("[Reconcile] anomaly for tenant %d %s %s: %v", ev.TenantID, ev.Topic, ev.ResourceID, err)
	}
	if commitErr := e.idem.Commit(ctx, ev.TenantID, ev.NotificationID, outcome); commitErr != nil {
		// A slot stuck in processing would swallow every redelivery, so
		// free it and let the next delivery reprocess. Reprocessing a
		// settled event converges to no_change.
		if relErr := e.idem.Release(ctx, ev.TenantID, ev.NotificationID); relErr != nil {
			log.Errorf("[Reconcile] release after failed commit for tenant %d notification %s: %v",
				ev.TenantID, ev.NotificationID, relErr)
		}
		return "", commitErr
	}
	return outcome, nil
}

// ProcessEvent applies one webhook event to local state and returns the
// outcome. It does not touch the idempotency record; see Handle.
func (e *Engine) ProcessEvent(ctx context.Context, ev Event) (string, error) {
	switch ev.Topic {
	case models.WebhookTopicPayment:
		return e.reconcilePayment(ctx, ev.TenantID, ev.ResourceID)
	case models.WebhookTopicMerchantOrder:
		return e.reconcileOrder(ctx, ev.TenantID, ev.ResourceID)
	default:
		return OutcomeAnomalyIgnored, fmt.Errorf("%w: unsupported topic %q", ErrValidation, ev.Topic)
	}
}

func (e *Engine) reconcilePayment(ctx context.Context, tenantID uint, gatewayPaymentID string) (string, error) {
	key := paymentKey(tenantID, gatewayPaymentID)
	e.locks.Lock(key)
	defer e.locks.Unlock(key)

	snap, err := e.gw.FetchPayment(ctx, tenantID, gatewayPaymentID)
	if errors.Is(err, gateway.ErrNotFound) {
		log.Warnf("[Reconcile] payment %s not queryable at gateway yet for tenant %d", gatewayPaymentID, tenantID)
		return "", fmt.Errorf("%w: payment %s", ErrResourceMissing, gatewayPaymentID)
	}
	if err != nil {
		return "", err
	}

	if !snapshotBelongsToTenant(snap.ExternalReference, tenantID) {
		log.Errorf("[Reconcile] payment %s external reference %q does not belong to tenant %d",
			gatewayPaymentID, snap.ExternalReference, tenantID)
		return OutcomeTenantMismatch, nil
	}

	return e.applyPaymentSnapshot(ctx, tenantID, gatewayPaymentID, snap)
}

// applyPaymentSnapshot runs the payment state machine against an
// authoritative snapshot. Caller holds the payment lock.
func (e *Engine) applyPaymentSnapshot(ctx context.Context, tenantID uint, gatewayPaymentID string, snap *gateway.PaymentSnapshot) (string, error) {
	reported := gateway.MapPaymentStatus(snap.Status)

	p, err := e.payments.PaymentByGatewayID(ctx, tenantID, gatewayPaymentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		created, cerr := e.createPaymentFromSnapshot(ctx, tenantID, gatewayPaymentID, snap, reported)
		if cerr != nil {
			return "", cerr
		}
		e.notifyPayment(ctx, created)
		return OutcomeCreated, nil
	}
	if err != nil {
		return "", err
	}

	if p.Status == reported {
		return OutcomeNoChange, nil
	}
	if !ValidPaymentTransition(p.Status, reported) {
		return OutcomeAnomalyIgnored, fmt.Errorf("%w: payment %s is %s, gateway reports %s",
			ErrInvalidTransition, gatewayPaymentID, p.Status, reported)
	}

	p.Status = reported
	if !snap.TransactionAmount.IsZero() {
		p.Amount = snap.TransactionAmount
	}
	if snap.PaymentMethodID != "" {
		p.PaymentMethod = snap.PaymentMethodID
	}
	now := time.Now()
	p.LastSyncedAt = &now
	if err := e.payments.UpdatePayment(ctx, p); err != nil {
		return "", err
	}

	if reported == models.PaymentStatusApproved && snap.PreferenceID != "" {
		// Close any checkout tab still pointing at the preference.
		if err := e.gw.ExpirePreference(ctx, tenantID, snap.PreferenceID); err != nil {
			log.Warnf("[Reconcile] could not expire preference %s: %v", snap.PreferenceID, err)
		} else if e.prefs != nil {
			if err := e.prefs.MarkPreferenceExpired(ctx, snap.PreferenceID); err != nil {
				log.Warnf("[Reconcile] could not mark preference %s expired: %v", snap.PreferenceID, err)
			}
		}
	}

	e.notifyPayment(ctx, p)
	return OutcomeApplied, nil
}

func (e *Engine) createPaymentFromSnapshot(ctx context.Context, tenantID uint, gatewayPaymentID string, snap *gateway.PaymentSnapshot, status string) (*models.Payment, error) {
	now := time.Now()
	p := &models.Payment{
		TenantID:         tenantID,
		GatewayPaymentID: gatewayPaymentID,
		Status:           status,
		Amount:           snap.TransactionAmount,
		Currency:         currencyOrDefault(snap.CurrencyID),
		PaymentMethod:    snap.PaymentMethodID,
		LastSyncedAt:     &now,
	}
	if _, purpose, purposeRef, err := tenant.ParseExternalReference(snap.ExternalReference); err == nil {
		switch purpose {
		case models.PreferencePurposeInvoice:
			p.RelatedInvoiceID = &purposeRef
		case models.PreferencePurposePlan:
			if id, perr := strconv.ParseUint(purposeRef, 10, 32); perr == nil {
				sub := uint(id)
				p.RelatedPlanSubscriptionID = &sub
			}
		}
	}
	if err := e.payments.CreatePayment(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (e *Engine) reconcileOrder(ctx context.Context, tenantID uint, gatewayOrderID string) (string, error) {
	key := orderKey(tenantID, gatewayOrderID)
	e.locks.Lock(key)
	defer e.locks.Unlock(key)

	snap, err := e.gw.FetchMerchantOrder(ctx, tenantID, gatewayOrderID)
	if errors.Is(err, gateway.ErrNotFound) {
		log.Warnf("[Reconcile] merchant order %s not queryable at gateway yet for tenant %d", gatewayOrderID, tenantID)
		return "", fmt.Errorf("%w: merchant order %s", ErrResourceMissing, gatewayOrderID)
	}
	if err != nil {
		return "", err
	}

	if !snapshotBelongsToTenant(snap.ExternalReference, tenantID) {
		log.Errorf("[Reconcile] order %s external reference %q does not belong to tenant %d",
			gatewayOrderID, snap.ExternalReference, tenantID)
		return OutcomeTenantMismatch, nil
	}

	reported := gateway.MapOrderStatus(snap.Status)

	o, err := e.orders.OrderByGatewayID(ctx, tenantID, gatewayOrderID)
	outcome := OutcomeOrderSynced
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		o = &models.MerchantOrder{
			TenantID:       tenantID,
			GatewayOrderID: gatewayOrderID,
			Status:         reported,
			PaymentIDs:     snapshotPaymentIDs(snap),
			TotalAmount:    snap.TotalAmount,
			PaidAmount:     snap.PaidAmount,
		}
		if o.Status == models.MerchantOrderStatusOpened && o.PaidAmount.GreaterThanOrEqual(o.TotalAmount) && !o.TotalAmount.IsZero() {
			o.Status = models.MerchantOrderStatusClosed
		}
		if err := e.orders.CreateOrder(ctx, o); err != nil {
			return "", err
		}
		outcome = OutcomeCreated
	case err != nil:
		return "", err
	default:
		updated, stale := mergeOrderSnapshot(o, snap, reported)
		if stale {
			log.Warnf("[Reconcile] stale order snapshot ignored for tenant %d order %s (paid %s < %s)",
				tenantID, gatewayOrderID, snap.PaidAmount.StringFixed(2), o.PaidAmount.StringFixed(2))
			return OutcomeStaleIgnored, nil
		}
		if !updated {
			outcome = OutcomeNoChange
		} else if err := e.orders.UpdateOrder(ctx, o); err != nil {
			return "", err
		}
	}

	// Every payment the order references must exist locally, fetched from
	// the gateway when unseen.
	for _, op := range snap.Payments {
		if err := e.ensurePayment(ctx, tenantID, op.GatewayID()); err != nil {
			return "", err
		}
	}

	if outcome != OutcomeNoChange {
		e.notifyOrder(ctx, o)
	}
	return outcome, nil
}

// mergeOrderSnapshot applies a snapshot to a stored order. It reports
// whether anything changed and whether the snapshot is stale. paid_amount is
// monotonic: once reached, and especially once closed, a lower figure is a
// reordered delivery, not a truth.
func mergeOrderSnapshot(o *models.MerchantOrder, snap *gateway.MerchantOrderSnapshot, reported string) (updated, stale bool) {
	if snap.PaidAmount.LessThan(o.PaidAmount) {
		return false, true
	}
	if o.IsTerminal() && reported != o.Status {
		return false, true
	}

	if snap.PaidAmount.GreaterThan(o.PaidAmount) {
		o.PaidAmount = snap.PaidAmount
		updated = true
	}
	if !snap.TotalAmount.IsZero() && !snap.TotalAmount.Equal(o.TotalAmount) {
		o.TotalAmount = snap.TotalAmount
		updated = true
	}
	for _, op := range snap.Payments {
		id := op.GatewayID()
		if !o.PaymentIDs.Contains(id) {
			o.PaymentIDs = append(o.PaymentIDs, id)
			updated = true
		}
	}

	next := reported
	if next == models.MerchantOrderStatusOpened &&
		!o.TotalAmount.IsZero() && o.PaidAmount.GreaterThanOrEqual(o.TotalAmount) {
		next = models.MerchantOrderStatusClosed
	}
	if next != o.Status && ValidOrderTransition(o.Status, next) {
		o.Status = next
		updated = true
	}
	return updated, false
}

// ensurePayment guarantees a local record for a payment referenced by a
// merchant order. Lock ordering is always order -> payment, never the
// reverse, so the nested acquisition cannot deadlock with payment webhooks.
func (e *Engine) ensurePayment(ctx context.Context, tenantID uint, gatewayPaymentID string) error {
	_, err := e.payments.PaymentByGatewayID(ctx, tenantID, gatewayPaymentID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	_, err = e.reconcilePayment(ctx, tenantID, gatewayPaymentID)
	return err
}

/// CancelPayment orchestrates a local-initiated cancellation: snapshot first
// so stale local state cannot trigger a bad call, then the gateway, then an
// optimistic local apply. The confirming webhook later is a no-op.
func (e *Engine) CancelPayment(ctx context.Context, tenantID uint, gatewayPaymentID string) (*models.Payment, error) {
	key := paymentKey(tenantID, gatewayPaymentID)
	e.locks.Lock(key)
	defer e.locks.Unlock(key)

	snap, err := e.gw.FetchPayment(ctx, tenantID, gatewayPaymentID)
	if err != nil {
		return nil, err
	}
	if models.PaymentStatusIsTerminal(gateway.MapPaymentStatus(snap.Status)) {
		return nil, fmt.Errorf("%w: gateway reports %s", ErrAlreadyTerminal, snap.Status)
	}

	if err := e.gw.CancelPayment(ctx, tenantID, gatewayPaymentID); err != nil {
		if errors.Is(err, gateway.ErrAlreadyTerminal) {
			return nil, fmt.Errorf("%w: cancel rejected by gateway", ErrAlreadyTerminal)
		}
		return nil, err
	}

	snap.Status = "cancelled"
	if _, err := e.applyPaymentSnapshot(ctx, tenantID, gatewayPaymentID, snap); err != nil {
		return nil, err
	}
	return e.payments.PaymentByGatewayID(ctx, tenantID, gatewayPaymentID)
}

// RefundPayment orchestrates a refund (full when amount is nil) with the
// same snapshot-first rule as CancelPayment.
func (e *Engine) RefundPayment(ctx context.Context, tenantID uint, gatewayPaymentID string, amount *decimal.Decimal) (*models.Payment, *gateway.RefundResult, error) {
	key := paymentKey(tenantID, gatewayPaymentID)
	e.locks.Lock(key)
	defer e.locks.Unlock(key)

	snap, err := e.gw.FetchPayment(ctx, tenantID, gatewayPaymentID)
	if err != nil {
		return nil, nil, err
	}
	switch mapped := gateway.MapPaymentStatus(snap.Status); {
	case models.PaymentStatusIsTerminal(mapped):
		return nil, nil, fmt.Errorf("%w: gateway reports %s", ErrAlreadyTerminal, snap.Status)
	case mapped != models.PaymentStatusApproved:
		return nil, nil, fmt.Errorf("%w: gateway reports %s", ErrNotRefundable, snap.Status)
	}

	result, err := e.gw.RefundPayment(ctx, tenantID, gatewayPaymentID, amount)
	if err != nil {
		if errors.Is(err, gateway.ErrAlreadyTerminal) {
			return nil, nil, fmt.Errorf("%w: refund rejected by gateway", ErrAlreadyTerminal)
		}
		return nil, nil, err
	}

	snap.Status = "refunded"
	if _, err := e.applyPaymentSnapshot(ctx, tenantID, gatewayPaymentID, snap); err != nil {
		return nil, nil, err
	}
	p, err := e.payments.PaymentByGatewayID(ctx, tenantID, gatewayPaymentID)
	if err != nil {
		return nil, nil, err
	}
	return p, result, nil
}

// SyncPaymentStatus fetches the authoritative snapshot and reconciles it,
// serving explicit status checks from internal callers.
func (e *Engine) SyncPaymentStatus(ctx context.Context, tenantID uint, gatewayPaymentID string) (*models.Payment, error) {
	if _, err := e.reconcilePayment(ctx, tenantID, gatewayPaymentID); err != nil {
		if !errors.Is(err, ErrInvalidTransition) {
			return nil, err
		}
	}
	return e.payments.PaymentByGatewayID(ctx, tenantID, gatewayPaymentID)
}

// SyncOrderStatus is the merchant-order counterpart of SyncPaymentStatus.
func (e *Engine) SyncOrderStatus(ctx context.Context, tenantID uint, gatewayOrderID string) (*models.MerchantOrder, error) {
	if _, err := e.reconcileOrder(ctx, tenantID, gatewayOrderID); err != nil {
		return nil, err
	}
	return e.orders.OrderByGatewayID(ctx, tenantID, gatewayOrderID)
}

func (e *Engine) notifyPayment(ctx context.Context, p *models.Payment) {
	var kind string
	switch p.Status {
	case models.PaymentStatusApproved:
		kind = notify.KindPaymentApproved
	case models.PaymentStatusRejected:
		kind = notify.KindPaymentRejected
	case models.PaymentStatusCancelled:
		kind = notify.KindPaymentCancelled
	case models.PaymentStatusRefunded:
		kind = notify.KindPaymentRefunded
	default:
		return
	}
	e.dispatch(ctx, notify.Event{
		TenantID:   p.TenantID,
		Kind:       kind,
		ResourceID: p.GatewayPaymentID,
		Amount:     p.Amount,
		Currency:   p.Currency,
		OccurredAt: time.Now(),
	})
}

func (e *Engine) notifyOrder(ctx context.Context, o *models.MerchantOrder) {
	var kind string
	switch o.Status {
	case models.MerchantOrderStatusClosed:
		kind = notify.KindOrderClosed
	case models.MerchantOrderStatusExpired:
		kind = notify.KindOrderExpired
	default:
		return
	}
	e.dispatch(ctx, notify.Event{
		TenantID:   o.TenantID,
		Kind:       kind,
		ResourceID: o.GatewayOrderID,
		Amount:     o.PaidAmount,
		Currency:   "BRL",
		OccurredAt: time.Now(),
	})
}

func (e *Engine) dispatch(ctx context.Context, ev notify.Event) {
	if err := e.sink.Dispatch(ctx, ev); err != nil {
		log.Errorf("[Reconcile] notification dispatch failed: %v", err)
	}
}

// resolved reports whether an error is settled at the engine boundary:
// anomalies and validation failures commit their outcome instead of
// releasing the idempotency slot.
func resolved(err error) bool {
	return errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrValidation)
}

// snapshotBelongsToTenant enforces isolation: a snapshot whose external
// reference names another tenant is never applied, even if the resolver was
// fooled. An unparseable reference is tolerated (legacy preferences).
func snapshotBelongsToTenant(externalReference string, tenantID uint) bool {
	refTenant, _, _, err := tenant.ParseExternalReference(externalReference)
	if err != nil {
		return true
	}
	return refTenant == tenantID
}

func snapshotPaymentIDs(snap *gateway.MerchantOrderSnapshot) models.GatewayIDSet {
	ids := make(models.GatewayIDSet, 0, len(snap.Payments))
	for _, p := range snap.Payments {
		ids = append(ids, p.GatewayID())
	}
	return ids
}

func currencyOrDefault(c string) string {
	if c == "" {
		return "BRL"
	}
	return c
}
