package controllers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/invobr/paysync/internal/pkg/payments"
)

// HandleOrderSync reconciles one merchant order and its payments.
// POST /api/v1/tenants/:tenant_id/orders/:order_id/sync
func HandleOrderSync(c *fiber.Ctx) error {
	tenantID, ok := tenantIDFromCtx(c)
	if !ok {
		return respondAPI(c, payments.Result{Success: false, Kind: payments.KindValidation, Message: "tenant_id is required"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()
	return respondAPI(c, services.Orders.SyncMerchantOrderStatus(ctx, tenantID, c.Params("order_id")))
}

// HandleOrderCancel cancels the payable payments of an opened order.
// POST /api/v1/tenants/:tenant_id/orders/:order_id/cancel
func HandleOrderCancel(c *fiber.Ctx) error {
	tenantID, ok := tenantIDFromCtx(c)
	if !ok {
		return respondAPI(c, payments.Result{Success: false, Kind: payments.KindValidation, Message: "tenant_id is required"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()
	return respondAPI(c, services.Orders.CancelMerchantOrder(ctx, tenantID, c.Params("order_id")))
}

// HandleListOrders lists a tenant's merchant orders.
// GET /api/v1/tenants/:tenant_id/orders
func HandleListOrders(c *fiber.Ctx) error {
	tenantID, ok := tenantIDFromCtx(c)
	if !ok {
		return respondAPI(c, payments.Result{Success: false, Kind: payments.KindValidation, Message: "tenant_id is required"})
	}

	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()
	return respondAPI(c, services.Orders.ListMerchantOrders(ctx, tenantID, c.Query("status"), limit, offset))
}
