package router

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"

	"github.com/invobr/paysync/app/controllers"
	"github.com/invobr/paysync/internal/pkg/cache"
	"github.com/invobr/paysync/internal/pkg/env"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		Storage:    limiterStorage(),
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "paysync api",
		})
	})

	v1 := api.Group("/v1")
	v1.Post("/preferences", controllers.HandleCreatePreference)
	v1.Get("/preferences/:preference_id", controllers.HandleGetPreference)
	v1.Get("/parked-webhooks", controllers.HandleListParkedWebhooks)
	v1.Get("/queue/stats", controllers.HandleQueueStats)

	tenants := v1.Group("/tenants/:tenant_id")
	tenants.Get("/payments", controllers.HandleListPayments)
	tenants.Get("/payments/:payment_id", controllers.HandlePaymentStatus)
	tenants.Post("/payments/:payment_id/cancel", controllers.HandleCancelPayment)
	tenants.Post("/payments/:payment_id/refund", controllers.HandleRefundPayment)
	tenants.Get("/orders", controllers.HandleListOrders)
	tenants.Post("/orders/:order_id/sync", controllers.HandleOrderSync)
	tenants.Post("/orders/:order_id/cancel", controllers.HandleOrderCancel)
}

// limiterStorage backs the rate limiter with Redis so limits hold across
// instances. Falls back to in-memory storage when no cache client exists.
func limiterStorage() fiber.Storage {
	client := cache.GetClient()
	if client == nil {
		return nil
	}

	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	addr := client.Options().Addr
	if h, p, err := net.SplitHostPort(addr); err == nil {
		host = h
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}
	if p := client.Options().Password; p != "" {
		password = p
	}

	// Database 1 keeps limiter keys away from the job queue (DB 0)
	return redisstorage.New(redisstorage.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1,
		Reset:    false,
	})
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
