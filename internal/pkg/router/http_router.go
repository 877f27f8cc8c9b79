package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/invobr/paysync/app/controllers"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"service": "paysync", "status": "ok"})
	})

	// Gateway webhooks (no rate limit, signature-verified in the service)
	app.Post("/payments/webhook", controllers.HandlePaymentWebhook)
	app.Post("/merchant-orders/webhook", controllers.HandleMerchantOrderWebhook)
	app.Post("/webhooks/gateway", controllers.HandleGatewayWebhook)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
