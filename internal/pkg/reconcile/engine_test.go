package reconcile

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/invobr/paysync/app/models"
	"github.com/invobr/paysync/internal/pkg/gateway"
	"github.com/invobr/paysync/internal/pkg/idempotency"
	"github.com/invobr/paysync/internal/pkg/notify"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

type fakeGateway struct {
	payments map[string]*gateway.PaymentSnapshot
	orders   map[string]*gateway.MerchantOrderSnapshot

	fetchErr error

	cancelled []string
	refunded  []string
	expired   []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		payments: make(map[string]*gateway.PaymentSnapshot),
		orders:   make(map[string]*gateway.MerchantOrderSnapshot),
	}
}

func gwKey(tenantID uint, id string) string { return fmt.Sprintf("%d/%s", tenantID, id) }

func (g *fakeGateway) setPayment(tenantID uint, id string, snap *gateway.PaymentSnapshot) {
	g.payments[gwKey(tenantID, id)] = snap
}

func (g *fakeGateway) setOrder(tenantID uint, id string, snap *gateway.MerchantOrderSnapshot) {
	g.orders[gwKey(tenantID, id)] = snap
}

func (g *fakeGateway) FetchPayment(_ context.Context, tenantID uint, id string) (*gateway.PaymentSnapshot, error) {
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	snap, ok := g.payments[gwKey(tenantID, id)]
	if !ok {
		return nil, gateway.ErrNotFound
	}
	cp := *snap
	return &cp, nil
}

func (g *fakeGateway) FetchMerchantOrder(_ context.Context, tenantID uint, id string) (*gateway.MerchantOrderSnapshot, error) {
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	snap, ok := g.orders[gwKey(tenantID, id)]
	if !ok {
		return nil, gateway.ErrNotFound
	}
	cp := *snap
	return &cp, nil
}

func (g *fakeGateway) CancelPayment(_ context.Context, tenantID uint, id string) error {
	g.cancelled = append(g.cancelled, gwKey(tenantID, id))
	if snap, ok := g.payments[gwKey(tenantID, id)]; ok {
		snap.Status = "cancelled"
	}
	return nil
}

func (g *fakeGateway) RefundPayment(_ context.Context, tenantID uint, id string, _ *decimal.Decimal) (*gateway.RefundResult, error) {
	g.refunded = append(g.refunded, gwKey(tenantID, id))
	if snap, ok := g.payments[gwKey(tenantID, id)]; ok {
		snap.Status = "refunded"
	}
	return &gateway.RefundResult{Status: "approved"}, nil
}

func (g *fakeGateway) ExpirePreference(_ context.Context, _ uint, preferenceID string) error {
	g.expired = append(g.expired, preferenceID)
	return nil
}

type memPaymentStore struct {
	rows    map[string]*models.Payment
	updates int
}

func newMemPaymentStore() *memPaymentStore {
	return &memPaymentStore{rows: make(map[string]*models.Payment)}
}

func (s *memPaymentStore) PaymentByGatewayID(_ context.Context, tenantID uint, id string) (*models.Payment, error) {
	p, ok := s.rows[gwKey(tenantID, id)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *memPaymentStore) CreatePayment(_ context.Context, p *models.Payment) error {
	s.rows[gwKey(p.TenantID, p.GatewayPaymentID)] = p
	return nil
}

func (s *memPaymentStore) UpdatePayment(_ context.Context, p *models.Payment) error {
	s.updates++
	s.rows[gwKey(p.TenantID, p.GatewayPaymentID)] = p
	return nil
}

type memOrderStore struct {
	rows    map[string]*models.MerchantOrder
	updates int
}

func newMemOrderStore() *memOrderStore {
	return &memOrderStore{rows: make(map[string]*models.MerchantOrder)}
}

func (s *memOrderStore) OrderByGatewayID(_ context.Context, tenantID uint, id string) (*models.MerchantOrder, error) {
	o, ok := s.rows[gwKey(tenantID, id)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *memOrderStore) CreateOrder(_ context.Context, o *models.MerchantOrder) error {
	s.rows[gwKey(o.TenantID, o.GatewayOrderID)] = o
	return nil
}

func (s *memOrderStore) UpdateOrder(_ context.Context, o *models.MerchantOrder) error {
	s.updates++
	s.rows[gwKey(o.TenantID, o.GatewayOrderID)] = o
	return nil
}

type recordingSink struct {
	events []notify.Event
}

func (s *recordingSink) Dispatch(_ context.Context, ev notify.Event) error {
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) kinds() []string {
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Kind)
	}
	return out
}

type engineFixture struct {
	gw       *fakeGateway
	payments *memPaymentStore
	orders   *memOrderStore
	idem     *idempotency.MemoryStore
	sink     *recordingSink
	engine   *Engine
}

func newEngineFixture() *engineFixture {
	f := &engineFixture{
		gw:       newFakeGateway(),
		payments: newMemPaymentStore(),
		orders:   newMemOrderStore(),
		idem:     idempotency.NewMemoryStore(),
		sink:     &recordingSink{},
	}
	f.engine = NewEngine(f.gw, f.payments, f.orders, f.idem, f.sink)
	return f
}

func paymentEvent(tenantID uint, resourceID string) Event {
	return Event{
		NotificationID: "notif-" + resourceID,
		Topic:          models.WebhookTopicPayment,
		ResourceID:     resourceID,
		TenantID:       tenantID,
		ReceivedAt:     time.Now(),
	}
}

func TestPaymentCreatedOnFirstSighting(t *testing.T) {
	f := newEngineFixture()
	f.gw.setPayment(42, "1001", &gateway.PaymentSnapshot{
		ID:                1001,
		Status:            "approved",
		TransactionAmount: d("100.00"),
		CurrencyID:        "BRL",
		PaymentMethodID:   "pix",
		ExternalReference: "tenant:42:invoice:7",
	})

	outcome, err := f.engine.ProcessEvent(context.Background(), paymentEvent(42, "1001"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	p, err := f.payments.PaymentByGatewayID(context.Background(), 42, "1001")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusApproved, p.Status)
	assert.True(t, p.Amount.Equal(d("100.00")))
	assert.Equal(t, "BRL", p.Currency)
	require.NotNil(t, p.RelatedInvoiceID)
	assert.Equal(t, "7", *p.RelatedInvoiceID)
	assert.NotNil(t, p.LastSyncedAt)
	assert.Equal(t, []string{notify.KindPaymentApproved}, f.sink.kinds())
}

func TestHandleCommitsAndReplayIsNoop(t *testing.T) {
	f := newEngineFixture()
	f.gw.setPayment(42, "1001", &gateway.PaymentSnapshot{
		ID: 1001, Status: "approved", TransactionAmount: d("100.00"),
		ExternalReference: "tenant:42:invoice:7",
	})
	ev := paymentEvent(42, "1001")
	ctx := context.Background()

	begin, err := f.idem.TryBegin(ctx, ev.TenantID, ev.NotificationID, ev.Topic, ev.ResourceID)
	require.NoError(t, err)
	require.Equal(t, idempotency.Acquired, begin.State)

	outcome, err := f.engine.Handle(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	// A redelivery of the same notification finds the committed record.
	begin, err = f.idem.TryBegin(ctx, ev.TenantID, ev.NotificationID, ev.Topic, ev.ResourceID)
	require.NoError(t, err)
	assert.Equal(t, idempotency.AlreadyProcessed, begin.State)
	assert.Equal(t, OutcomeCreated, begin.Outcome)
}

func TestDuplicateSnapshotDoesNotWrite(t *testing.T) {
	f := newEngineFixture()
	f.gw.setPayment(42, "1001", &gateway.PaymentSnapshot{
		ID: 1001, Status: "approved", TransactionAmount: d("100.00"),
		ExternalReference: "tenant:42:invoice:7",
	})
	ctx := context.Background()

	_, err := f.engine.ProcessEvent(ctx, paymentEvent(42, "1001"))
	require.NoError(t, err)

	outcome, err := f.engine.ProcessEvent(ctx, paymentEvent(42, "1001"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoChange, outcome)
	assert.Zero(t, f.payments.updates, "a same-status snapshot must not touch the row")
}

func TestBackwardTransitionIgnoredAsAnomaly(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	f.gw.setPayment(42, "1001", &gateway.PaymentSnapshot{
		ID: 1001, Status: "approved", TransactionAmount: d("100.00"),
		ExternalReference: "tenant:42:invoice:7",
	})
	_, err := f.engine.ProcessEvent(ctx, paymentEvent(42, "1001"))
	require.NoError(t, err)

	// A stale snapshot arrives claiming the payment is still pending.
	f.gw.setPayment(42, "1001", &gateway.PaymentSnapshot{
		ID: 1001, Status: "pending", TransactionAmount: d("100.00"),
		ExternalReference: "tenant:42:invoice:7",
	})
	outcome, err := f.engine.ProcessEvent(ctx, paymentEvent(42, "1001"))
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, OutcomeAnomalyIgnored, outcome)

	p, err := f.payments.PaymentByGatewayID(ctx, 42, "1001")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusApproved, p.Status, "anomaly must not mutate local state")

	// Handle settles the anomaly instead of leaving it for redelivery.
	ev := paymentEvent(42, "1001")
	_, err = f.idem.TryBegin(ctx, ev.TenantID, ev.NotificationID, ev.Topic, ev.ResourceID)
	require.NoError(t, err)
	outcome, err = f.engine.Handle(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAnomalyIgnored, outcome)
}

func TestTenantIsolationWithCollidingGatewayIDs(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	f.gw.setPayment(1, "1001", &gateway.PaymentSnapshot{
		ID: 1001, Status: "approved", TransactionAmount: d("10.00"),
		ExternalReference: "tenant:1:invoice:5",
	})
	f.gw.setPayment(2, "1001", &gateway.PaymentSnapshot{
		ID: 1001, Status: "rejected", TransactionAmount: d("20.00"),
		ExternalReference: "tenant:2:invoice:9",
	})

	_, err := f.engine.ProcessEvent(ctx, paymentEvent(1, "1001"))
	require.NoError(t, err)
	_, err = f.engine.ProcessEvent(ctx, paymentEvent(2, "1001"))
	require.NoError(t, err)

	p1, err := f.payments.PaymentByGatewayID(ctx, 1, "1001")
	require.NoError(t, err)
	p2, err := f.payments.PaymentByGatewayID(ctx, 2, "1001")
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusApproved, p1.Status)
	assert.Equal(t, models.PaymentStatusRejected, p2.Status)
	assert.True(t, p1.Amount.Equal(d("10.00")))
	assert.True(t, p2.Amount.Equal(d("20.00")))
}

func TestSnapshotForForeignTenantRejected(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	f.gw.setPayment(1, "1001", &gateway.PaymentSnapshot{
		ID: 1001, Status: "approved", TransactionAmount: d("10.00"),
		ExternalReference: "tenant:2:invoice:9",
	})

	outcome, err := f.engine.ProcessEvent(ctx, paymentEvent(1, "1001"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeTenantMismatch, outcome)

	_, err = f.payments.PaymentByGatewayID(ctx, 1, "1001")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestMissingResourceReleasedForRetry(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	ev := paymentEvent(42, "1001")

	begin, err := f.idem.TryBegin(ctx, ev.TenantID, ev.NotificationID, ev.Topic, ev.ResourceID)
	require.NoError(t, err)
	require.Equal(t, idempotency.Acquired, begin.State)

	// The gateway notifies moments before the payment is queryable.
	_, err = f.engine.Handle(ctx, ev)
	assert.ErrorIs(t, err, ErrResourceMissing)

	// The slot is released, so the redelivery finds the payment and
	// settles the event.
	f.gw.setPayment(42, "1001", &gateway.PaymentSnapshot{
		ID: 1001, Status: "approved", TransactionAmount: d("100.00"),
		ExternalReference: "tenant:42:invoice:7",
	})
	begin, err = f.idem.TryBegin(ctx, ev.TenantID, ev.NotificationID, ev.Topic, ev.ResourceID)
	require.NoError(t, err)
	require.Equal(t, idempotency.Acquired, begin.State)

	outcome, err := f.engine.Handle(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)
}

// flakyCommitStore fails a configured number of Commit calls before
// delegating to the wrapped store.
type flakyCommitStore struct {
	idempotency.Store
	commitFailures int
}

func (s *flakyCommitStore) Commit(ctx context.Context, tenantID uint, notificationID, outcome string) error {
	if s.commitFailures > 0 {
		s.commitFailures--
		return fmt.Errorf("storage unavailable")
	}
	return s.Store.Commit(ctx, tenantID, notificationID, outcome)
}

func TestCommitFailureDoesNotWedgeSlot(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	flaky := &flakyCommitStore{Store: f.idem, commitFailures: 1}
	engine := NewEngine(f.gw, f.payments, f.orders, flaky, f.sink)
	f.gw.setPayment(42, "1001", &gateway.PaymentSnapshot{
		ID: 1001, Status: "approved", TransactionAmount: d("100.00"),
		ExternalReference: "tenant:42:invoice:7",
	})
	ev := paymentEvent(42, "1001")

	begin, err := flaky.TryBegin(ctx, ev.TenantID, ev.NotificationID, ev.Topic, ev.ResourceID)
	require.NoError(t, err)
	require.Equal(t, idempotency.Acquired, begin.State)

	_, err = engine.Handle(ctx, ev)
	require.Error(t, err)

	// The failed commit released the slot instead of leaving it stuck in
	// processing, so the redelivery re-acquires and converges.
	begin, err = flaky.TryBegin(ctx, ev.TenantID, ev.NotificationID, ev.Topic, ev.ResourceID)
	require.NoError(t, err)
	require.Equal(t, idempotency.Acquired, begin.State)

	outcome, err := engine.Handle(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoChange, outcome)

	begin, err = flaky.TryBegin(ctx, ev.TenantID, ev.NotificationID, ev.Topic, ev.ResourceID)
	require.NoError(t, err)
	assert.Equal(t, idempotency.AlreadyProcessed, begin.State)
	assert.Equal(t, OutcomeNoChange, begin.Outcome)
}

func TestGatewayUnavailableReleasesSlot(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	f.gw.fetchErr = gateway.ErrUnavailable
	ev := paymentEvent(42, "1001")

	begin, err := f.idem.TryBegin(ctx, ev.TenantID, ev.NotificationID, ev.Topic, ev.ResourceID)
	require.NoError(t, err)
	require.Equal(t, idempotency.Acquired, begin.State)

	_, err = f.engine.Handle(ctx, ev)
	assert.ErrorIs(t, err, gateway.ErrUnavailable)

	// The released slot is acquirable again by a redelivery.
	begin, err = f.idem.TryBegin(ctx, ev.TenantID, ev.NotificationID, ev.Topic, ev.ResourceID)
	require.NoError(t, err)
	assert.Equal(t, idempotency.Acquired, begin.State)
}

func TestOrderPaidAmountMonotonic(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	f.gw.setOrder(42, "5", &gateway.MerchantOrderSnapshot{
		ID: 5, Status: "opened", ExternalReference: "tenant:42:invoice:7",
		TotalAmount: d("100.00"), PaidAmount: d("60.00"),
	})
	ev := Event{Topic: models.WebhookTopicMerchantOrder, ResourceID: "5", TenantID: 42, NotificationID: "n1"}

	outcome, err := f.engine.ProcessEvent(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	// A reordered delivery reports less money than already recorded.
	f.gw.setOrder(42, "5", &gateway.MerchantOrderSnapshot{
		ID: 5, Status: "opened", ExternalReference: "tenant:42:invoice:7",
		TotalAmount: d("100.00"), PaidAmount: d("40.00"),
	})
	outcome, err = f.engine.ProcessEvent(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeStaleIgnored, outcome)

	o, err := f.orders.OrderByGatewayID(ctx, 42, "5")
	require.NoError(t, err)
	assert.True(t, o.PaidAmount.Equal(d("60.00")))
}

func TestOrderClosesWhenFullyPaidAndSyncsPayments(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	f.gw.setPayment(42, "1001", &gateway.PaymentSnapshot{
		ID: 1001, Status: "approved", TransactionAmount: d("100.00"),
		ExternalReference: "tenant:42:invoice:7",
	})
	f.gw.setOrder(42, "5", &gateway.MerchantOrderSnapshot{
		ID: 5, Status: "opened", ExternalReference: "tenant:42:invoice:7",
		TotalAmount: d("100.00"), PaidAmount: d("100.00"),
		Payments:    []gateway.OrderPayment{{ID: 1001, Status: "approved", TransactionAmount: d("100.00")}},
	})

	outcome, err := f.engine.ProcessEvent(ctx, Event{
		Topic: models.WebhookTopicMerchantOrder, ResourceID: "5", TenantID: 42, NotificationID: "n1",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	o, err := f.orders.OrderByGatewayID(ctx, 42, "5")
	require.NoError(t, err)
	assert.Equal(t, models.MerchantOrderStatusClosed, o.Status)
	assert.True(t, o.PaymentIDs.Contains("1001"))

	// The referenced payment was fetched and recorded too.
	p, err := f.payments.PaymentByGatewayID(ctx, 42, "1001")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusApproved, p.Status)

	assert.Contains(t, f.sink.kinds(), notify.KindOrderClosed)
	assert.Contains(t, f.sink.kinds(), notify.KindPaymentApproved)
}

func TestClosedOrderStaysClosed(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	f.gw.setOrder(42, "5", &gateway.MerchantOrderSnapshot{
		ID: 5, Status: "closed", ExternalReference: "tenant:42",
		TotalAmount: d("100.00"), PaidAmount: d("100.00"),
	})
	ev := Event{Topic: models.WebhookTopicMerchantOrder, ResourceID: "5", TenantID: 42}
	_, err := f.engine.ProcessEvent(ctx, ev)
	require.NoError(t, err)

	f.gw.setOrder(42, "5", &gateway.MerchantOrderSnapshot{
		ID: 5, Status: "opened", ExternalReference: "tenant:42",
		TotalAmount: d("100.00"), PaidAmount: d("100.00"),
	})
	outcome, err := f.engine.ProcessEvent(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeStaleIgnored, outcome)

	o, err := f.orders.OrderByGatewayID(ctx, 42, "5")
	require.NoError(t, err)
	assert.Equal(t, models.MerchantOrderStatusClosed, o.Status)
}

func TestCancelThenWebhookConverges(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	f.gw.setPayment(42, "1001", &gateway.PaymentSnapshot{
		ID: 1001, Status: "pending", TransactionAmount: d("100.00"),
		ExternalReference: "tenant:42:invoice:7",
	})
	_, err := f.engine.ProcessEvent(ctx, paymentEvent(42, "1001"))
	require.NoError(t, err)

	p, err := f.engine.CancelPayment(ctx, 42, "1001")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCancelled, p.Status)
	assert.Equal(t, []string{gwKey(42, "1001")}, f.gw.cancelled)

	// The confirming webhook arrives later and finds nothing to do.
	outcome, err := f.engine.ProcessEvent(ctx, paymentEvent(42, "1001"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoChange, outcome)
}

func TestCancelAlreadyTerminal(t *testing.T) {
	f := newEngineFixture()
	f.gw.setPayment(42, "1001", &gateway.PaymentSnapshot{
		ID: 1001, Status: "refunded", TransactionAmount: d("100.00"),
		ExternalReference: "tenant:42:invoice:7",
	})
	_, err := f.engine.CancelPayment(context.Background(), 42, "1001")
	assert.ErrorIs(t, err, ErrAlreadyTerminal)
	assert.Empty(t, f.gw.cancelled, "terminal snapshot must short-circuit before the gateway call")
}

func TestRefundRequiresApproved(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	f.gw.setPayment(42, "1001", &gateway.PaymentSnapshot{
		ID: 1001, Status: "pending", TransactionAmount: d("100.00"),
		ExternalReference: "tenant:42:invoice:7",
	})
	_, _, err := f.engine.RefundPayment(ctx, 42, "1001", nil)
	assert.ErrorIs(t, err, ErrNotRefundable)
	assert.Empty(t, f.gw.refunded)
}

func TestRefundApprovedPayment(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	f.gw.setPayment(42, "1001", &gateway.PaymentSnapshot{
		ID: 1001, Status: "approved", TransactionAmount: d("100.00"),
		ExternalReference: "tenant:42:invoice:7",
	})
	_, err := f.engine.ProcessEvent(ctx, paymentEvent(42, "1001"))
	require.NoError(t, err)

	p, refund, err := f.engine.RefundPayment(ctx, 42, "1001", nil)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, p.Status)
	assert.Equal(t, "approved", refund.Status)
	assert.Equal(t, []string{gwKey(42, "1001")}, f.gw.refunded)
	assert.Contains(t, f.sink.kinds(), notify.KindPaymentRefunded)

	// A second refund attempt fails on the terminal snapshot.
	_, _, err = f.engine.RefundPayment(ctx, 42, "1001", nil)
	assert.ErrorIs(t, err, ErrAlreadyTerminal)
}

func TestApprovalExpiresPreference(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	f.gw.setPayment(42, "1001", &gateway.PaymentSnapshot{
		ID: 1001, Status: "pending", TransactionAmount: d("100.00"),
		ExternalReference: "tenant:42:invoice:7", PreferenceID: "pref-1",
	})
	_, err := f.engine.ProcessEvent(ctx, paymentEvent(42, "1001"))
	require.NoError(t, err)
	assert.Empty(t, f.gw.expired)

	f.gw.setPayment(42, "1001", &gateway.PaymentSnapshot{
		ID: 1001, Status: "approved", TransactionAmount: d("100.00"),
		ExternalReference: "tenant:42:invoice:7", PreferenceID: "pref-1",
	})
	outcome, err := f.engine.ProcessEvent(ctx, paymentEvent(42, "1001"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, []string{"pref-1"}, f.gw.expired)
}
