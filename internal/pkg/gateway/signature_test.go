package gateway

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/invobr/paysync/app/models"
)

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}

func TestVerifyWebhookSignature(t *testing.T) {
	secret := "whsec-test"
	ts := "1718900000"
	requestID := "req-abc"
	resourceID := "1001"

	v1 := SignWebhookManifest(ts, requestID, resourceID, secret)
	header := "ts=" + ts + ",v1=" + v1

	if !VerifyWebhookSignature(header, requestID, resourceID, secret) {
		t.Fatal("expected valid signature to verify")
	}
	if VerifyWebhookSignature(header, requestID, resourceID, "other-secret") {
		t.Fatal("wrong secret must not verify")
	}
	if VerifyWebhookSignature(header, "req-other", resourceID, secret) {
		t.Fatal("different request id must not verify")
	}
	if VerifyWebhookSignature(header, requestID, "2002", secret) {
		t.Fatal("different resource id must not verify")
	}
}

func TestVerifyWebhookSignatureMalformedHeaders(t *testing.T) {
	secret := "whsec-test"
	cases := []string{
		"",
		"ts=123",
		"v1=deadbeef",
		"ts=123,v1=notahexstring!",
		"garbage",
	}
	for _, header := range cases {
		if VerifyWebhookSignature(header, "rid", "1", secret) {
			t.Fatalf("header %q must not verify", header)
		}
	}
	valid := "ts=1,v1=" + SignWebhookManifest("1", "rid", "1", secret)
	if VerifyWebhookSignature(valid, "rid", "1", "") {
		t.Fatal("empty secret must never verify")
	}
}

func TestMapPaymentStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "approved", want: models.PaymentStatusApproved},
		{in: "pending", want: models.PaymentStatusPending},
		{in: "authorized", want: models.PaymentStatusPending},
		{in: "in_mediation", want: models.PaymentStatusPending},
		{in: "in_process", want: models.PaymentStatusInProcess},
		{in: "rejected", want: models.PaymentStatusRejected},
		{in: "cancelled", want: models.PaymentStatusCancelled},
		{in: "refunded", want: models.PaymentStatusRefunded},
		{in: "charged_back", want: models.PaymentStatusRefunded},
		{in: "some_future_status", want: models.PaymentStatusPending},
	}
	for _, tt := range tests {
		if got := MapPaymentStatus(tt.in); got != tt.want {
			t.Fatalf("MapPaymentStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMapOrderStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "opened", want: models.MerchantOrderStatusOpened},
		{in: "closed", want: models.MerchantOrderStatusClosed},
		{in: "expired", want: models.MerchantOrderStatusExpired},
		{in: "anything_else", want: models.MerchantOrderStatusOpened},
	}
	for _, tt := range tests {
		if got := MapOrderStatus(tt.in); got != tt.want {
			t.Fatalf("MapOrderStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSnapshotGatewayIDs(t *testing.T) {
	p := &PaymentSnapshot{ID: 1001}
	if p.GatewayID() != "1001" {
		t.Fatalf("payment GatewayID = %q", p.GatewayID())
	}
	o := &MerchantOrderSnapshot{ID: 5, Payments: []OrderPayment{{ID: 1001}}}
	if o.GatewayID() != "5" || o.Payments[0].GatewayID() != "1001" {
		t.Fatal("order snapshot ids not rendered as strings")
	}
}
