package router

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/CourseFox/app/controllers"
	"github.com/ManuelReschke/CourseFox/internal/pkg/cache"
	"github.com/ManuelReschke/CourseFox/internal/pkg/constants"
	"github.com/ManuelReschke/CourseFox/internal/pkg/env"
	"github.com/ManuelReschke/CourseFox/internal/pkg/middleware"
	"github.com/ManuelReschke/CourseFox/internal/pkg/usercontext"
)

type ApiRouter struct {
	payments   *controllers.PaymentController
	cronSecret string
	jwtSecret  string
	// nil keeps limiter state in memory
	limiterStorage fiber.Storage
	orderLimit     int
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group(constants.ApiRoute)
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// gateway callbacks authenticate by signature, not by user
	api.Post(constants.WebhookRoute, h.payments.HandleRazorpayWebhook)

	cron := api.Group(constants.CronRoute, middleware.RequireCronSecret(h.cronSecret))
	cron.Get(constants.CronReprocessWebhooksRoute, h.payments.HandleReprocessWebhooks)
	cron.Get(constants.CronRetryNotificationsRoute, h.payments.HandleRetryNotifications)
	cron.Get(constants.CronStatsRoute, controllers.HandleCronStats)

	orders := api.Group(constants.OrdersRoute, middleware.RequireUser(h.jwtSecret))
	orders.Post("/", limiter.New(limiter.Config{
		Max:        h.orderLimit,
		Expiration: time.Minute,
		Storage:    h.limiterStorage,
		// RequireUser ran first, so limits are per user rather than per IP
		KeyGenerator: func(c *fiber.Ctx) string {
			return "orders:" + strconv.FormatUint(uint64(usercontext.GetUserID(c)), 10)
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited"})
		},
	}), h.payments.HandleCreateOrder)
	orders.Get("/:id", h.payments.HandleGetOrder)
}

func NewApiRouter(pc *controllers.PaymentController) *ApiRouter {
	return &ApiRouter{
		payments:       pc,
		cronSecret:     env.GetEnv("CRON_SECRET", ""),
		jwtSecret:      env.GetEnv("JWT_SECRET", ""),
		limiterStorage: newLimiterStorage(),
		orderLimit:     env.GetEnvInt("ORDER_RATE_LIMIT_PER_MINUTE", 10),
	}
}

// newLimiterStorage shares rate-limit windows across instances through the
// cache Redis, on a separate database.
func newLimiterStorage() fiber.Storage {
	client := cache.GetClient()
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warnf("[Router] redis unavailable, order rate limit is per instance: %v", err)
		return nil
	}
	return redis.New(redis.Config{
		Host:     env.GetEnv("CACHE_HOST", "localhost"),
		Port:     cache.Port(),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		Database: env.GetEnvInt("LIMITER_CACHE_DB", 1),
		Reset:    false,
	})
}
