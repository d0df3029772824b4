// Package httpserver exposes the catalog, exchange and auth services over HTTP.
package httpserver

import (
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/and161185/bookswap/internal/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Options configures transport-level behaviour.
type Options struct {
	CORSOrigins  []string
	CookieSecure bool
	SessionTTL   time.Duration
}

// Handler wires services into fiber handlers.
type Handler struct {
	auth     service.AuthService
	catalog  service.CatalogService
	exchange service.ExchangeService
	log      *zap.Logger
	opts     Options
	validate *validator.Validate
}

// NewHandler constructs a Handler with injected services.
func NewHandler(auth service.AuthService, catalog service.CatalogService, exchange service.ExchangeService, log *zap.Logger, opts Options) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		auth:     auth,
		catalog:  catalog,
		exchange: exchange,
		log:      log,
		opts:     opts,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// New builds the fiber app with middleware and every route mounted.
func New(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		DisableStartupMessage: true,
		ErrorHandler:          h.errorHandler,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           90 * time.Second,
	})

	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e any) {
			h.log.Error("panic",
				zap.Any("reason", e),
				zap.ByteString("stack", debug.Stack()),
				zap.String("path", c.Path()),
			)
		},
	}))
	app.Use(requestid.New())
	app.Use(h.requestLog)
	if len(h.opts.CORSOrigins) > 0 {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     strings.Join(h.opts.CORSOrigins, ","),
			AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
			AllowHeaders:     "Origin, Content-Type, Accept",
			AllowCredentials: true,
		}))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	api := app.Group("/api")

	books := api.Group("/books")
	books.Get("/", h.listAvailable)
	books.Post("/", h.createBook)
	books.Post("/exchange", h.proposeExchange)
	books.Put("/exchange/:requestId", h.resolveExchange)
	books.Get("/exchange-requests/:bookId", h.listBookRequests)
	books.Get("/user-exchanges/:userId", h.userExchanges)
	books.Get("/user/:userId", h.listUserBooks)
	books.Get("/:bookId", h.getBook)
	books.Put("/:bookId", h.updateBook)
	books.Delete("/:bookId", h.deleteBook)

	auth := api.Group("/user/auth")
	auth.Post("/register", h.register)
	auth.Post("/login", h.login)
	auth.Get("/logout", h.logout)
	auth.Get("/refetch", h.refetch)
	auth.Get("/info/:userId", h.info)

	return app
}

// requestLog records one line per request; bodies are never logged.
func (h *Handler) requestLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		// the error handler has not run yet
		status = statusFor(err)
	}
	rid, _ := c.Locals("requestid").(string)
	h.log.Info("http",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Duration("dur", time.Since(start)),
		zap.String("ip", c.IP()),
		zap.String("request_id", rid),
	)
	return err
}
