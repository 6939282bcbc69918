package batch

import (
	"bufio"
	"context"
	"errors"
	"fmt"

	rds "reelscribe/internal/platform/redis"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

type Handler struct {
	proc  *Processor
	redis *rds.Service
}

func NewHandler(proc *Processor, redis *rds.Service) *Handler {
	return &Handler{proc: proc, redis: redis}
}

type createRequest struct {
	URLs []string `json:"urls"`
}

func (h *Handler) HandleCreate(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid body"})
	}

	snap, err := h.proc.StartBatch(req.URLs)
	switch {
	case errors.Is(err, ErrNoValidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": err.Error()})
	case errors.Is(err, ErrCredentialMissing):
		// needs_credential tells the UI to open the settings prompt.
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success":          false,
			"error":            err.Error(),
			"needs_credential": true,
		})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": err.Error()})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"success": true, "batch": snap})
}

func (h *Handler) HandleGetCurrent(c *fiber.Ctx) error {
	snap, err := h.proc.Snapshot()
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "no batch"})
	}
	return c.JSON(fiber.Map{"success": true, "batch": snap})
}

func (h *Handler) HandleClear(c *fiber.Ctx) error {
	h.proc.Clear()
	return c.JSON(fiber.Map{"success": true})
}

// HandleEvents streams batch events over SSE, forwarded from the redis
// channel the processor's notifier publishes to.
func (h *Handler) HandleEvents(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	sub := h.redis.Client().Subscribe(context.Background(), EventsChannel)
	ch := sub.Channel()

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer sub.Close()
		for msg := range ch {
			if _, err := fmt.Fprintf(w, "data: %s\n\n", msg.Payload); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	}))
	return nil
}
