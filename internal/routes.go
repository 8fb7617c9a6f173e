package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	"linkpulse/internal/config"
	"linkpulse/internal/http"
	"linkpulse/internal/metrics"
)

// apiCORSConfig is the CORS setup shared by the JSON API so dashboards hosted
// on another origin can consume it.
var apiCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,GET,DELETE,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Authorization",
}

// MountAppRoutes mounts all application routes using cartridge's route API
func MountAppRoutes(srv *cartridge.Server) {
	cfg := config.GetConfig()

	// Rate limiting only in production; in development and test it would
	// interfere with exercising the API
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	// Mutations trigger full recalculations, so they get a tighter budget
	// than reads
	readRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(120),
		cartridgemiddleware.WithDuration(time.Minute),
	))
	writeRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(30),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	readConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		CORSConfig:       apiCORSConfig,
		CustomMiddleware: []fiber.Handler{readRateLimiter},
	}
	writeConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		WriteConcurrency: false,
		CORSConfig:       apiCORSConfig,
		CustomMiddleware: []fiber.Handler{writeRateLimiter},
	}

	// === OPERATIONAL ENDPOINTS ===
	srv.Get("/_health", http.HealthIndexAction)
	srv.Head("/_health", http.HealthIndexAction)

	metricsHandler := adaptor.HTTPHandler(metrics.Handler())
	srv.Get("/metrics", func(ctx *cartridge.Context) error {
		return metricsHandler(ctx.Ctx)
	})

	// === LINKS ===
	srv.Get("/api/v1/links", http.LinksIndexAction, readConfig)
	srv.Post("/api/v1/links", http.LinkCreateAction, writeConfig)
	srv.Get("/api/v1/links/:id/series", http.LinkTimeSeriesAction, readConfig)
	srv.Get("/api/v1/links/:id/associations", http.LinkAssociationsListAction, readConfig)
	srv.Post("/api/v1/links/:id/recalculate", http.RecalculateLinkAction, writeConfig)

	// === EVENTS ===
	srv.Get("/api/v1/events", http.EventsIndexAction, readConfig)
	srv.Post("/api/v1/events", http.EventCreateAction, writeConfig)
	srv.Delete("/api/v1/events/:id", http.EventDeleteAction, writeConfig)
	srv.Get("/api/v1/events/:id/associations", http.EventAssociationsListAction, readConfig)

	// Association lifecycle lives under the event because that is how the
	// admin surface reasons about it
	srv.Post("/api/v1/events/:id/links/:linkId", http.AssociateAction, writeConfig)
	srv.Delete("/api/v1/events/:id/links/:linkId", http.DisassociateAction, writeConfig)

	// === SETTINGS ===
	srv.Get("/api/v1/settings", http.SettingsShowAction, readConfig)
	srv.Post("/api/v1/settings", http.SettingsUpdateAction, writeConfig)
}
