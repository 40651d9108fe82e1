package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/clipsight/api/internal/client"
	"github.com/clipsight/api/internal/config"
	"github.com/clipsight/api/internal/handler"
	"github.com/clipsight/api/internal/middleware"
	"github.com/clipsight/api/internal/service"
	"github.com/clipsight/api/internal/store"
	"github.com/clipsight/api/internal/worker"
	ws "github.com/clipsight/api/internal/websocket"
	"github.com/clipsight/api/pkg/response"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Asset store
	assetStore := store.NewRedisStore(redisClient)

	// R2 storage client (optional - continues if not configured)
	var storageClient client.StorageClient
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		r2Client, err := client.NewR2Client(&cfg.R2)
		if err != nil {
			log.Printf("Warning: R2 client not initialized: %v", err)
		} else {
			storageClient = r2Client
		}
	} else {
		log.Println("Info: R2 storage not configured, still URLs disabled")
	}

	// Vision label worker client. Falls back to the mock labeler so the
	// pipeline stays exercisable without an API key
	var visionClient client.VisionLabeler
	realVision := client.NewVisionClient(&cfg.Vision)
	if realVision.IsConfigured() {
		visionClient = realVision
	} else {
		log.Println("Info: vision worker not configured, using mock labeler")
		visionClient = client.NewMockVisionClient(assetStore)
	}

	// Initialize services
	materializer := service.NewMaterializerService(assetStore, storageClient, asynqClient)
	dispatcher := service.NewDispatcherService(assetStore, visionClient, hub, cfg.Labeling.DispatchConcurrency)
	evaluator := service.NewEvaluatorService(assetStore, visionClient, hub, cfg.Labeling.CompletionThreshold)

	// Initialize handlers
	keyframeHandler := handler.NewKeyframeHandler(materializer, assetStore, storageClient, validate)
	labelingHandler := handler.NewLabelingHandler(evaluator, assetStore, validate)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    10 * 1024 * 1024, // 10MB
	})

	// Global middleware
	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"vision": visionClient.IsConfigured(),
				"r2":     storageClient != nil,
				"redis":  redisClient.Ping(c.Context()).Err() == nil,
			},
		})
	})

	// API routes
	api := app.Group("/api", authMiddleware.Authenticate())

	// Video / keyframe routes
	videos := api.Group("/videos")
	videos.Post("/:videoId/keyframes", rateLimiter.MaterializeLimit(cfg.RateLimit.MaterializePerHour), keyframeHandler.Materialize)
	videos.Get("/:videoId/keyframes", keyframeHandler.List)
	videos.Get("/:videoId", labelingHandler.GetVideo)
	api.Get("/keyframes/:keyframeId", keyframeHandler.Get)

	// Labeling routes
	labeling := api.Group("/labeling", rateLimiter.EvaluateLimit(cfg.RateLimit.EvaluatePerMin))
	labeling.Post("/evaluate", labelingHandler.Evaluate)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/videos/:videoId", websocket.New(func(c *websocket.Conn) {
		videoID := c.Params("videoId")
		hub.HandleConnection(c, videoID)
	}))

	// Start Asynq worker server and sweep scheduler
	go startWorkerServer(cfg, redisOpt, dispatcher, evaluator)
	go startSweepScheduler(cfg, redisOpt)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(
	cfg *config.Config,
	redisOpt asynq.RedisClientOpt,
	dispatcher *service.DispatcherService,
	evaluator *service.EvaluatorService,
) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"labeling": 10,
			},
			LogLevel: asynqLogLevel,
		},
	)

	labelingWorker := worker.NewLabelingWorker(dispatcher)
	sweepWorker := worker.NewSweepWorker(evaluator)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeLabelDispatch, labelingWorker.ProcessTask)
	mux.HandleFunc(service.TaskTypeLabelSweep, sweepWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return response.Error(c, code, response.CodeServiceError, message, nil)
}

func startSweepScheduler(cfg *config.Config, redisOpt asynq.RedisClientOpt) {
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{})

	_, err := scheduler.Register(
		cfg.Labeling.SweepInterval,
		asynq.NewTask(service.TaskTypeLabelSweep, nil),
		asynq.Queue("labeling"),
	)
	if err != nil {
		log.Printf("Failed to register labeling sweep: %v", err)
		return
	}

	if err := scheduler.Run(); err != nil {
		log.Printf("Sweep scheduler error: %v", err)
	}
}
