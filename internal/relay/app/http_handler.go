package app

import (
	"github.com/gofiber/fiber/v2"

	"room_relay_service/internal/relay/domain"
)

// RoomHTTPHandler REST mirror of the relay operations, for thin clients
// and smoke testing. The websocket endpoint is the primary surface.
type RoomHTTPHandler struct {
	roomUC    *RoomUseCase
	messageUC *SendMessageUseCase
	baseURL   string
}

// NewRoomHTTPHandler create RoomHTTPHandler
func NewRoomHTTPHandler(roomUC *RoomUseCase, messageUC *SendMessageUseCase, baseURL string) *RoomHTTPHandler {
	return &RoomHTTPHandler{
		roomUC:    roomUC,
		messageUC: messageUC,
		baseURL:   baseURL,
	}
}

// CreateRoom POST /rooms — mint a fresh code. Rooms are implicit: nothing
// is stored until the first message or presence entry arrives.
func (h *RoomHTTPHandler) CreateRoom(c *fiber.Ctx) error {
	code := domain.GenerateRoomCode()
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"room_code": code,
		"share_url": domain.ShareURL(h.baseURL, code),
	})
}

// ListMessages GET /room/:code/messages — active messages, newest first.
// Reading a room fires the retention sweeper as a side effect.
func (h *RoomHTTPHandler) ListMessages(c *fiber.Ctx) error {
	msgs, err := h.roomUC.ListActive(c.Context(), c.Params("code"))
	if err != nil {
		return errorJSON(c, err)
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return c.JSON(fiber.Map{"messages": msgs})
}

type sendMessageRequest struct {
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

// SendMessage POST /room/:code/messages
func (h *RoomHTTPHandler) SendMessage(c *fiber.Ctx) error {
	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed body"})
	}
	msg, err := h.messageUC.Execute(c.Context(), c.Params("code"), domain.Kind(req.Kind), req.Content)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// DestroyRoom DELETE /room/:code — broadcast room_destroyed, then wipe.
func (h *RoomHTTPHandler) DestroyRoom(c *fiber.Ctx) error {
	if err := h.roomUC.Destroy(c.Context(), c.Params("code")); err != nil {
		return errorJSON(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Occupancy GET /room/:code/occupancy
func (h *RoomHTTPHandler) Occupancy(c *fiber.Ctx) error {
	n, err := h.roomUC.Occupancy(c.Context(), c.Params("code"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(fiber.Map{"occupancy": n})
}

// errorJSON map validation errors to 400, everything else is a transient
// backend failure surfaced as 502. No automatic retry on either.
func errorJSON(c *fiber.Ctx, err error) error {
	status := fiber.StatusBadGateway
	if domain.IsValidationError(err) {
		status = fiber.StatusBadRequest
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
