package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sahayata/sahayata-api/internal/config"
	"github.com/sahayata/sahayata-api/internal/handler"
	"github.com/sahayata/sahayata-api/internal/middleware"
	"github.com/sahayata/sahayata-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	UserHandler         *handler.UserHandler
	MessageHandler      *handler.MessageHandler
	ConversationHandler *handler.ConversationHandler
	GroupHandler        *handler.GroupHandler
	RealtimeHandler     *handler.RealtimeHandler
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.UserHandler != nil {
		users := api.Group("/users", jwtMiddleware)
		deps.UserHandler.Register(users)
	}

	if deps.MessageHandler != nil {
		posts := api.Group("/posts", jwtMiddleware)
		deps.MessageHandler.RegisterPostRoutes(posts)

		messages := api.Group("/messages", jwtMiddleware)
		deps.MessageHandler.RegisterMessageRoutes(messages)
	}

	if deps.ConversationHandler != nil {
		conversations := api.Group("/conversations", jwtMiddleware)
		// Opening conversations is cheap to spam, so the start route gets its
		// own cap on top of the per-sender message limits.
		deps.ConversationHandler.Register(conversations,
			middleware.RateLimit("conversation-start", 30, time.Minute))
	}

	if deps.GroupHandler != nil {
		groups := api.Group("/groups", jwtMiddleware)
		deps.GroupHandler.Register(groups)
	}

	if deps.RealtimeHandler != nil {
		realtime := api.Group("/realtime", jwtMiddleware)
		deps.RealtimeHandler.Register(realtime)
	}
}
