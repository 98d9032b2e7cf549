package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mitcstore/mitc-api/internal/config"
	"github.com/mitcstore/mitc-api/internal/handler"
	"github.com/mitcstore/mitc-api/internal/middleware"
	"github.com/mitcstore/mitc-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler      *handler.AuthHandler
	AccountHandler   *handler.AccountHandler
	ProductHandler   *handler.ProductHandler
	ReviewHandler    *handler.ReviewHandler
	ChatHandler      *handler.ChatHandler
	UploadHandler    *handler.UploadHandler
	AnalyticsHandler *handler.AnalyticsHandler
	LeadHandler      *handler.LeadHandler
	HealthChecks     map[string]handler.Pinger
	// JWTMiddleware binds the caller when a token is present. Route guards decide access.
	JWTMiddleware fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks))

	api.Use(jwtMiddleware)

	if deps.AuthHandler != nil {
		auth := api.Group("/auth", middleware.RateLimit("auth", 20, time.Minute))
		deps.AuthHandler.RegisterPublic(auth)
		deps.AuthHandler.RegisterSession(auth)
		deps.AuthHandler.RegisterMe(api.Group("/me"))
	}
	if deps.AccountHandler != nil {
		deps.AccountHandler.RegisterMe(api.Group("/me"))
	}
	if deps.ReviewHandler != nil {
		deps.ReviewHandler.Register(api.Group("/reviews"))
		deps.ReviewHandler.RegisterMine(api.Group("/me/reviews"))
	}
	if deps.ProductHandler != nil {
		deps.ProductHandler.Register(api.Group("/products"))
	}
	if deps.ChatHandler != nil {
		deps.ChatHandler.Register(api.Group("/chat"))
	}
	if deps.AnalyticsHandler != nil {
		deps.AnalyticsHandler.RegisterVisits(api.Group("/visits", middleware.RateLimit("visits", 60, time.Minute)))
	}
	if deps.LeadHandler != nil {
		deps.LeadHandler.Register(api.Group("/leads", middleware.RateLimit("leads", 5, time.Minute)))
	}

	admin := api.Group("/admin", middleware.RequireRole(middleware.AuthRoleAdmin))
	if deps.ProductHandler != nil {
		deps.ProductHandler.RegisterAdmin(admin.Group("/products"))
	}
	if deps.ReviewHandler != nil {
		deps.ReviewHandler.RegisterAdmin(admin.Group("/reviews"))
	}
	if deps.ChatHandler != nil {
		deps.ChatHandler.RegisterAdmin(admin.Group("/chat"))
	}
	if deps.UploadHandler != nil {
		deps.UploadHandler.Register(admin.Group("/images"))
	}
	if deps.AccountHandler != nil {
		deps.AccountHandler.RegisterAdmin(admin.Group("/users"))
	}
	if deps.AnalyticsHandler != nil {
		deps.AnalyticsHandler.RegisterAdmin(admin.Group("/analytics"))
	}
	if deps.LeadHandler != nil {
		deps.LeadHandler.RegisterAdmin(admin.Group("/leads"))
	}
}
