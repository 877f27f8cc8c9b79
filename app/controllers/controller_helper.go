package controllers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/invobr/paysync/internal/pkg/payments"
)

var services *payments.Services

// Initialize injects the service bundle. Called once from the router setup.
func Initialize(s *payments.Services) {
	services = s
}

func tenantIDFromCtx(c *fiber.Ctx) (uint, bool) {
	raw := strings.TrimSpace(c.Params("tenant_id"))
	if raw == "" {
		raw = strings.TrimSpace(c.Query("tenant_id"))
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// respondAPI maps a service result onto a status code for internal callers.
func respondAPI(c *fiber.Ctx, res payments.Result) error {
	status := fiber.StatusOK
	switch res.Kind {
	case payments.KindValidation:
		status = fiber.StatusBadRequest
	case payments.KindNotFound:
		status = fiber.StatusNotFound
	case payments.KindAlreadyTerminal, payments.KindNotRefundable, payments.KindInvalidTransition:
		status = fiber.StatusConflict
	case payments.KindGatewayUnavailable:
		status = fiber.StatusServiceUnavailable
	case payments.KindAmbiguousTenant, payments.KindInternal:
		status = fiber.StatusInternalServerError
	}
	return c.Status(status).JSON(res)
}
