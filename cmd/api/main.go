package main

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"

	config "github.com/servimarket/api/configs"
	"github.com/servimarket/api/database"
	"github.com/servimarket/api/handlers"
	"github.com/servimarket/api/jobs"
	"github.com/servimarket/api/logger"
	"github.com/servimarket/api/routes"
	"github.com/servimarket/api/services"
	chatws "github.com/servimarket/api/websocket"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.App.Env, cfg.App.LogLevel)

	database.Connect(cfg.DB)
	database.Migrate()
	database.SeedAdmin(cfg.Seed)

	dir := services.NewDirectoryService(database.DB, log)
	chat := services.NewChatService(database.DB, dir, log)
	hub := chatws.NewHub(log)

	authHandler := handlers.NewAuthHandler(database.DB, cfg.JWT)
	chatHandler := handlers.NewChatHandler(chat, dir, hub, cfg.JWT.Secret, log)
	dirHandler := handlers.NewDirectoryHandler(dir)

	c := cron.New()
	c.AddFunc("*/5 * * * *", jobs.SweepPresence(hub, log))
	go c.Start()

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorHandler: func(ctx *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			log.Error().Err(err).Str("path", ctx.Path()).Str("method", ctx.Method()).Msg("request failed")
			return ctx.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
	}))
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/health", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{"status": "ok"})
	})

	routes.AuthRoutes(app, authHandler)
	routes.MessagingRoutes(app, chatHandler, cfg.JWT.Secret)
	routes.AdminRoutes(app, dirHandler, cfg.JWT.Secret)

	log.Info().Str("addr", cfg.HTTP.Addr).Msg("✅ Server is running")
	if err := app.Listen(cfg.HTTP.Addr); err != nil {
		log.Fatal().Err(err).Msg("🔥 Server failed to start")
	}
}
