package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/identity-profile-api/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/identity-profile-api/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/identity-profile-api/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// Options tune the route setup. A nil Storage keeps limiter state in memory.
type Options struct {
	Storage       fiber.Storage
	APILimit      int
	AuthLimit     int
	LimitInterval time.Duration
}

func DefaultOptions() Options {
	return Options{
		APILimit:      60,
		AuthLimit:     10,
		LimitInterval: time.Minute,
	}
}

func Setup(
	app *fiber.App,
	opts Options,
	tokens *services.TokenManager,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
	docsHandler *handlers.DocsHandler,
) {
	// Interactive API docs
	app.Get("/api-docs", docsHandler.UI)
	app.Get(handlers.OpenAPISpecPath, docsHandler.Spec)

	api := app.Group("/api")

	// General API rate limiter: per IP
	api.Use(newLimiter(opts, "api", opts.APILimit))

	api.Get("/health", healthHandler.Check)

	v1 := api.Group("/v1/auth")

	// Stricter limit on credential endpoints
	public := newLimiter(opts, "auth", opts.AuthLimit)
	v1.Post("/register", public, authHandler.Register)
	v1.Post("/login", public, authHandler.Login)

	authenticate := middleware.Authenticate(tokens)
	v1.Get("/user/profile", authenticate, authHandler.GetProfile)
	v1.Put("/user/profile", authenticate, authHandler.UpdateProfile)
}

// newLimiter keys counters by name and client IP so limiters sharing one
// storage do not collide.
func newLimiter(opts Options, name string, max int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               max,
		Expiration:        opts.LimitInterval,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return "limiter:" + name + ":" + c.IP() },
		Storage:           opts.Storage,
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "Too many requests")
		},
	})
}
