package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/invobr/paysync/app/controllers"
	"github.com/invobr/paysync/internal/pkg/cache"
	"github.com/invobr/paysync/internal/pkg/database"
	"github.com/invobr/paysync/internal/pkg/env"
	"github.com/invobr/paysync/internal/pkg/jobqueue"
	"github.com/invobr/paysync/internal/pkg/payments"
	"github.com/invobr/paysync/internal/pkg/router"
)

func main() {
	app := NewApplication()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		jobqueue.GetManager().Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	// Wire services, then the queue that processes their events.
	manager := jobqueue.GetManager()
	services := payments.NewServicesFromDB(database.GetDB(), manager)
	manager.Attach(services.Engine, services.Idem)
	manager.Start()
	controllers.Initialize(services)

	app := fiber.New(fiber.Config{
		AppName: "paysync",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", monitor.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app)

	return app
}
