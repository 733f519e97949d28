package server

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/ytsprites/api/internal/handler"
	"github.com/ytsprites/api/internal/middleware"
	"github.com/ytsprites/api/internal/service"
	ws "github.com/ytsprites/api/internal/websocket"
	"github.com/ytsprites/api/pkg/response"
)

// Deps are the collaborators the HTTP layer is built from
type Deps struct {
	Service       *service.SpriteService
	Hub           *ws.Hub
	RateLimiter   *middleware.RateLimiter
	SubmitPerHour int
	BodyLimit     int
	Version       string
	Port          string
	Labels        map[string]string
	AccessLog     bool
	Debug         bool
	Logger        *zap.Logger
}

// New builds the fiber app with every route registered
func New(d Deps) *fiber.App {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		BodyLimit:             d.BodyLimit,
		DisableStartupMessage: true,
	})

	// Global middleware
	app.Use(recover.New())
	if d.AccessLog {
		logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
		if d.Debug {
			logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${reqHeaders}\n"
		}
		app.Use(logger.New(logger.Config{
			Format: logFormat,
		}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	validate := validator.New()
	spritesHandler := handler.NewSpritesHandler(d.Service, validate, log)
	var watchers func() int
	if d.Hub != nil {
		watchers = func() int { return d.Hub.WatcherCount("") }
	}
	infoHandler := handler.NewInfoHandler(d.Service, d.Version, d.Port, d.Labels, watchers)

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	app.Get("/health", infoHandler.Health)
	app.Get("/info", infoHandler.Info)

	// Sprite routes
	sprites := app.Group("/api/sprites")
	sprites.Post("/submit", d.RateLimiter.SubmitLimit(d.SubmitPerHour), spritesHandler.Submit)
	sprites.Get("/status/:jobId", spritesHandler.Status)
	sprites.Get("/result/:jobId", spritesHandler.Result)
	sprites.Get("/result/:jobId/vtt", spritesHandler.VTT)
	sprites.Get("/result/:jobId/sprites/:name", spritesHandler.Sprite)
	sprites.Post("/cancel/:jobId", spritesHandler.Cancel)

	// WebSocket routes
	if d.Hub != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})

		app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
			d.Hub.HandleConnection(c, c.Params("jobId"))
		}))
	}

	return app
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	switch code {
	case fiber.StatusRequestEntityTooLarge:
		return response.PayloadTooLarge(c, message)
	case fiber.StatusNotFound:
		return response.NotFound(c, message)
	}

	return response.Error(c, code, response.CodeServiceError, message, nil)
}
