package credential

import (
	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

type putRequest struct {
	Credential string `json:"credential"`
}

// HandlePut validates and stores a credential. The value is never echoed back.
func (h *Handler) HandlePut(c *fiber.Ctx) error {
	var req putRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid body"})
	}
	if err := h.store.Set(req.Credential); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"success": false, "error": err.Error()})
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *Handler) HandleGet(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "configured": h.store.Has()})
}

func (h *Handler) HandleDelete(c *fiber.Ctx) error {
	h.store.Clear()
	return c.JSON(fiber.Map{"success": true})
}
