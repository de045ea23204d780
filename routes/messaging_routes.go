package routes

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/servimarket/api/handlers"
	"github.com/servimarket/api/middleware"
)

func MessagingRoutes(app *fiber.App, h *handlers.ChatHandler, jwtSecret string) {
	api := app.Group("/api/v1")

	conversations := api.Group("/conversations", middleware.Protected(jwtSecret))
	conversations.Get("", h.ListConversations)
	conversations.Post("", h.StartConversation)
	conversations.Get("/:conversationId/messages", h.ListMessages)

	messages := api.Group("/messages", middleware.Protected(jwtSecret))
	messages.Put("/:messageId/read", h.MarkRead)

	api.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	})
	api.Get("/ws/chat", websocket.New(h.ServeWs))
}
