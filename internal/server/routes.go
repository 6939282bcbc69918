package server

import (
	"reelscribe/internal/core/batch"
	"reelscribe/internal/core/export"
	"reelscribe/internal/credential"
	"reelscribe/internal/health"
	"reelscribe/internal/platform/redis"

	"github.com/gofiber/fiber/v2"
)

type Dependencies struct {
	Processor   *batch.Processor
	Export      *export.Service
	Credentials credential.Store
	Redis       *redis.Service
}

func RegisterRoutes(app *fiber.App, d Dependencies) *health.HealthHandler {
	// Health endpoints
	healthHandler := health.NewHealthHandler(d.Redis)
	app.Get("/v1/health", health.HealthLimiter(), healthHandler.HandleHealth)

	api := app.Group("/v1")

	batchHandler := batch.NewHandler(d.Processor, d.Redis)
	api.Post("/batches", batchHandler.HandleCreate)
	api.Get("/batches/current", batchHandler.HandleGetCurrent)
	api.Delete("/batches/current", batchHandler.HandleClear)
	api.Get("/batches/events", batchHandler.HandleEvents)

	exportHandler := export.NewHandler(d.Export, d.Processor)
	api.Get("/exports/archive", exportHandler.HandleArchive)
	api.Get("/exports/:jobID", exportHandler.HandleSingle)

	credentialHandler := credential.NewHandler(d.Credentials)
	api.Put("/credential", credentialHandler.HandlePut)
	api.Get("/credential", credentialHandler.HandleGet)
	api.Delete("/credential", credentialHandler.HandleDelete)

	return healthHandler
}
