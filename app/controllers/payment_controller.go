package controllers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/invobr/paysync/internal/pkg/payments"
)

const apiTimeout = 30 * time.Second

// HandleCreatePreference opens a checkout at the gateway.
// POST /api/v1/preferences
func HandleCreatePreference(c *fiber.Ctx) error {
	var in payments.CreatePreferenceInput
	if err := c.BodyParser(&in); err != nil {
		return respondAPI(c, payments.Result{Success: false, Kind: payments.KindValidation, Message: "invalid request body"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()
	return respondAPI(c, services.Payments.CreatePaymentPreference(ctx, in))
}

// HandleGetPreference returns the audit record of a checkout preference.
// GET /api/v1/preferences/:preference_id
func HandleGetPreference(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()
	return respondAPI(c, services.Payments.GetPreference(ctx, c.Params("preference_id")))
}

// HandlePaymentStatus reconciles one payment against the gateway and returns
// the stored record.
// GET /api/v1/tenants/:tenant_id/payments/:payment_id
func HandlePaymentStatus(c *fiber.Ctx) error {
	tenantID, ok := tenantIDFromCtx(c)
	if !ok {
		return respondAPI(c, payments.Result{Success: false, Kind: payments.KindValidation, Message: "tenant_id is required"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()
	return respondAPI(c, services.Payments.CheckPaymentStatus(ctx, tenantID, c.Params("payment_id")))
}

// HandleCancelPayment cancels a non-terminal payment.
// POST /api/v1/tenants/:tenant_id/payments/:payment_id/cancel
func HandleCancelPayment(c *fiber.Ctx) error {
	tenantID, ok := tenantIDFromCtx(c)
	if !ok {
		return respondAPI(c, payments.Result{Success: false, Kind: payments.KindValidation, Message: "tenant_id is required"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()
	return respondAPI(c, services.Payments.CancelPayment(ctx, tenantID, c.Params("payment_id")))
}

// HandleRefundPayment refunds an approved payment, fully unless an amount is
// given.
// POST /api/v1/tenants/:tenant_id/payments/:payment_id/refund
func HandleRefundPayment(c *fiber.Ctx) error {
	tenantID, ok := tenantIDFromCtx(c)
	if !ok {
		return respondAPI(c, payments.Result{Success: false, Kind: payments.KindValidation, Message: "tenant_id is required"})
	}

	var body struct {
		Amount string `json:"amount"`
	}
	_ = c.BodyParser(&body)

	var amount *decimal.Decimal
	if s := strings.TrimSpace(body.Amount); s != "" {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return respondAPI(c, payments.Result{Success: false, Kind: payments.KindValidation, Message: "invalid refund amount"})
		}
		amount = &d
	}

	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()
	return respondAPI(c, services.Payments.RefundPayment(ctx, tenantID, c.Params("payment_id"), amount))
}

// HandleListPayments lists a tenant's payments.
// GET /api/v1/tenants/:tenant_id/payments
func HandleListPayments(c *fiber.Ctx) error {
	tenantID, ok := tenantIDFromCtx(c)
	if !ok {
		return respondAPI(c, payments.Result{Success: false, Kind: payments.KindValidation, Message: "tenant_id is required"})
	}

	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()
	return respondAPI(c, services.Payments.ListPayments(ctx, tenantID, c.Query("status"), limit, offset))
}

// HandleListParkedWebhooks lists deliveries parked for manual inspection.
// GET /api/v1/parked-webhooks
func HandleListParkedWebhooks(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()
	return respondAPI(c, services.Payments.ListParkedWebhooks(ctx, limit, offset))
}
