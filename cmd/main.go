package main

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"

	"reelscribe/internal/config"
	"reelscribe/internal/core/batch"
	"reelscribe/internal/core/export"
	"reelscribe/internal/core/resolve"
	"reelscribe/internal/core/transcribe"
	"reelscribe/internal/credential"
	"reelscribe/internal/logger"
	rds "reelscribe/internal/platform/redis"
	"reelscribe/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log.Printf("[reelscribe] starting at %s (env=%s)\n", cfg.HTTPAddr, cfg.AppEnv)

	logr := logger.New("main")

	// Redis client
	redisSvc, err := rds.New(rds.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer redisSvc.Close()

	// Collaborators
	credStore := credential.NewRedis(redisSvc)
	resolver := resolve.New(resolve.Options{
		Endpoint:  cfg.ResolverEndpoint,
		Platforms: cfg.Platforms,
	})
	downloader := resolve.NewDownloader(cfg.MaxUploadBytes, nil)
	transcriber := transcribe.New(transcribe.Options{
		Endpoint:       cfg.TranscribeEndpoint,
		Model:          cfg.TranscribeModel,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	// Core services
	processor := batch.NewProcessor(batch.Options{
		Resolver:    resolver,
		Fetcher:     downloader,
		Transcriber: transcriber,
		Credentials: credStore,
		Notifier:    batch.NewRedisNotifier(redisSvc),
		JobDelay:    time.Duration(cfg.JobDelayMillis) * time.Millisecond,
	})
	exportSvc, err := export.New(cfg, nil)
	if err != nil {
		log.Fatal(err)
	}

	// HTTP server
	app := fiber.New(fiber.Config{
		AppName: "Reelscribe Engine",
		JSONEncoder: func(v interface{}) ([]byte, error) {
			var buf bytes.Buffer
			encoder := json.NewEncoder(&buf)
			encoder.SetEscapeHTML(false)
			if err := encoder.Encode(v); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
	})
	// Serve saved export archives from DATA_DIR under /files
	app.Static("/files", cfg.DataDir)

	deps := server.Dependencies{
		Processor:   processor,
		Export:      exportSvc,
		Credentials: credStore,
		Redis:       redisSvc,
	}
	healthHandler := server.RegisterRoutes(app, deps)
	healthHandler.SetReady()

	// Graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		logr.LogInfo("Shutting down...")
		processor.Clear()
		_ = app.ShutdownWithTimeout(5 * time.Second)
	}()

	if err := app.Listen(cfg.HTTPAddr); err != nil {
		log.Fatalf("server listen: %v", err)
	}
}
