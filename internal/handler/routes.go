package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	ws "github.com/mediagrab/api/internal/websocket"
	"github.com/mediagrab/api/pkg/response"
)

// Routes wires the handlers into an app. Auth and SubmitLimit are optional.
type Routes struct {
	Downloads *DownloadHandler
	Health    *HealthHandler
	Files     *FilesHandler
	Hub       *ws.Hub

	Auth        fiber.Handler
	SubmitLimit fiber.Handler
}

// NewApp creates the fiber app with the global middleware stack.
func NewApp(log *logrus.Logger, accessLog bool) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    1 * 1024 * 1024,
	})

	app.Use(recover.New())
	if accessLog {
		logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
		if log.IsLevelEnabled(logrus.DebugLevel) {
			logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body}\n"
		}
		app.Use(logger.New(logger.Config{
			Format: logFormat,
			Output: log.Out,
		}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "authorization, x-client-info, apikey, content-type",
		MaxAge:       86400,
	}))

	return app
}

// Register mounts every route on app.
func Register(app *fiber.App, r Routes) {
	app.Get("/", r.Health.Root)
	app.Get("/health", r.Health.Health)

	if r.Files != nil {
		app.Get("/files/*", r.Files.Get)
	}

	chain := func(h fiber.Handler, extra ...fiber.Handler) []fiber.Handler {
		var handlers []fiber.Handler
		if r.Auth != nil {
			handlers = append(handlers, r.Auth)
		}
		handlers = append(handlers, extra...)
		return append(handlers, h)
	}

	var limit []fiber.Handler
	if r.SubmitLimit != nil {
		limit = append(limit, r.SubmitLimit)
	}

	submit := chain(r.Downloads.Submit, limit...)
	signedURL := chain(r.Downloads.DownloadURL)

	api := app.Group("/api")
	api.Post("/downloads", submit...)
	api.Get("/downloads/:id", chain(r.Downloads.Status)...)
	api.Post("/download-url", signedURL...)

	// Serverless-style entry points
	functions := app.Group("/functions/v1")
	functions.Post("/process-download", submit...)
	functions.Post("/get-download-url", signedURL...)

	if r.Hub != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})

		app.Get("/ws/downloads/:id", websocket.New(func(c *websocket.Conn) {
			r.Hub.HandleConnection(c, c.Params("id"))
		}))
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	errCode := response.CodeServiceError
	switch {
	case code == fiber.StatusNotFound:
		errCode = response.CodeNotFound
	case code < 500:
		errCode = strings.ToUpper(strings.ReplaceAll(message, " ", "_"))
	}

	return response.Error(c, code, errCode, message)
}
