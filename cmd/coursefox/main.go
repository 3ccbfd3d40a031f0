package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/ManuelReschke/CourseFox/app/controllers"
	"github.com/ManuelReschke/CourseFox/internal/pkg/cache"
	"github.com/ManuelReschke/CourseFox/internal/pkg/database"
	"github.com/ManuelReschke/CourseFox/internal/pkg/env"
	"github.com/ManuelReschke/CourseFox/internal/pkg/router"
	"github.com/ManuelReschke/CourseFox/internal/pkg/scheduler"
)

func main() {
	app, services := NewApplication()

	var manager *scheduler.Manager
	if env.GetEnvBool("SCHEDULER_ENABLED", false) {
		manager = scheduler.NewManager(services.Processor, services.Notifications, scheduler.ConfigFromEnv())
		manager.Start()
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info("Shutting down")
		if manager != nil {
			manager.Stop()
		}
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Errorf("Shutdown failed: %v", err)
		}
	}()

	if err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))); err != nil {
		log.Fatal(err)
	}

	// background confirmation sends started by the reconciliation path
	services.Notifications.Wait()
}

func NewApplication() (*fiber.App, *controllers.Services) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	if env.IsDev() {
		log.SetLevel(log.LevelDebug)
	}

	app := fiber.New(fiber.Config{
		AppName:   "CourseFox",
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), requestid.New(), logger.New(logger.Config{
		Format: "[${time}] ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))

	services := controllers.NewServicesFromDB(database.GetDB())
	pc := controllers.NewPaymentController(services, controllers.PaymentControllerConfigFromEnv())

	// ROUTER
	router.InstallRouter(app, router.NewApiRouter(pc))

	return app, services
}
