package router

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"room_relay_service/internal/relay/app"
)

// RegisterRoutes register the relay routes.
func RegisterRoutes(r *fiber.App, ws *app.RelayWebsocketHandler, rooms *app.RoomHTTPHandler) {
	r.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		ws.HandleConnection(context.Background(), c)
	}))

	r.Post("/rooms", rooms.CreateRoom)
	r.Get("/room/:code/messages", rooms.ListMessages)
	r.Post("/room/:code/messages", rooms.SendMessage)
	r.Get("/room/:code/occupancy", rooms.Occupancy)
	r.Delete("/room/:code", rooms.DestroyRoom)
}
