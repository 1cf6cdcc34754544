package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"imagebatch/internal/app"
	"imagebatch/internal/config"
	"imagebatch/internal/handlers"
)

func main() {
	// Set up logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.SetPrefix("[ImageBatch] ")
	log.Println("🚀 Starting Image Batch API...")

	// Load configuration
	cfg := config.Load()
	log.Printf("⚙️  GOMAXPROCS=%d, concurrent jobs=%d", runtime.GOMAXPROCS(0), cfg.MaxConcurrentJobs)

	// Assemble pools, tools, log and registry
	stack, err := app.New(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize: %v", err)
	}

	jobHandler := handlers.NewJobHandler(
		stack.Registry,
		stack.Recorder,
		stack.Processor,
		stack.Runner,
		stack.WorkerPool,
		stack.BufferPool,
		stack.Archive,
	)

	// Create Fiber app
	server := fiber.New(fiber.Config{
		ServerHeader: "ImageBatch",
		AppName:      "Image Batch Processing API",
		BodyLimit:    cfg.BodyLimit,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		ErrorHandler: func(c fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "Internal Server Error"

			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				message = e.Message
			}

			return c.Status(code).JSON(fiber.Map{
				"success":   false,
				"error":     message,
				"timestamp": time.Now().Unix(),
			})
		},
	})

	// Middleware
	server.Use(recover.New())

	if cfg.EnableCORS {
		server.Use(cors.New(cors.Config{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET", "POST", "DELETE", "HEAD", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		}))
	}

	if cfg.EnablePerformanceLogs {
		server.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		}))
	}

	// Routes
	jobHandler.Register(server.Group("/api"), cfg.EnableHealthCheck)

	// Root endpoint
	server.Get("/", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "Image Batch Processing API",
			"version": "1.0.0",
			"status":  "running",
			"endpoints": []string{
				"POST   /api/processing/start",
				"GET    /api/processing/:id/status",
				"GET    /api/processing/:id/history",
				"POST   /api/jobs",
				"GET    /api/jobs",
				"POST   /api/jobs/:id/start",
				"POST   /api/jobs/:id/cancel",
				"GET    /api/logs",
				"GET    /api/logs/daily",
				"DELETE /api/logs",
				"GET    /api/health",
			},
		})
	})

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("🛑 Shutting down gracefully...")

		if err := server.Shutdown(); err != nil {
			log.Printf("⚠️  Error during shutdown: %v", err)
		}

		// Cancel running jobs and stop the pools
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := stack.Close(ctx); err != nil {
			log.Printf("⚠️  Jobs did not stop cleanly: %v", err)
		}

		log.Println("👋 Goodbye!")
		os.Exit(0)
	}()

	// Start server
	log.Printf("🌐 Server starting on port %s", cfg.Port)
	log.Printf("🎯 Environment: %s", cfg.AppEnv)
	log.Printf("🧰 Tools: %s (%s)", stack.Tools.Dir, stack.Tools.Platform)
	log.Printf("📒 Processing log: %s", stack.Recorder.Path())
	log.Println("✅ Ready to process images!")

	if err := server.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
