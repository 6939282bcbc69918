package export

import (
	"reelscribe/internal/core/batch"

	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	service *Service
	proc    *batch.Processor
}

func NewHandler(service *Service, proc *batch.Processor) *Handler {
	return &Handler{service: service, proc: proc}
}

// HandleArchive returns the combined ZIP of all completed results, or with
// ?upload=true stores it and returns the location instead.
func (h *Handler) HandleArchive(c *fiber.Ctx) error {
	results := h.proc.CompletedResults()
	if len(results) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": ErrNoResults.Error()})
	}

	if c.Query("upload") == "true" {
		path, url, err := h.service.SaveArchive(results)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": err.Error()})
		}
		return c.JSON(fiber.Map{"success": true, "path": path, "url": url})
	}

	data, err := h.service.Archive(results)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": err.Error()})
	}
	c.Set("Content-Type", "application/zip")
	c.Set("Content-Disposition", `attachment; filename="transcripts.zip"`)
	return c.Send(data)
}

// HandleSingle returns one completed job's transcript (?format=txt, default)
// or subtitle block (?format=srt).
func (h *Handler) HandleSingle(c *fiber.Ctx) error {
	id, err := c.ParamsInt("jobID")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid job id"})
	}
	res, err := h.proc.JobResult(id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": err.Error()})
	}

	name, data, err := h.service.SingleFile(*res, c.Query("format", "txt"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": err.Error()})
	}
	c.Set("Content-Type", "text/plain; charset=utf-8")
	c.Set("Content-Disposition", `attachment; filename="`+name+`"`)
	return c.Send(data)
}
