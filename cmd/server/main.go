package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/mediagrab/api/internal/auth"
	"github.com/mediagrab/api/internal/client"
	"github.com/mediagrab/api/internal/config"
	"github.com/mediagrab/api/internal/handler"
	"github.com/mediagrab/api/internal/logging"
	"github.com/mediagrab/api/internal/middleware"
	"github.com/mediagrab/api/internal/resolver"
	"github.com/mediagrab/api/internal/service"
	"github.com/mediagrab/api/internal/store"
	"github.com/mediagrab/api/internal/worker"
	ws "github.com/mediagrab/api/internal/websocket"
)

const localQueueSize = 100

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log := logging.New(cfg.Server.LogLevel, cfg.Server.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	redisUp := true
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisUp = false
		log.WithError(err).Warn("Redis not available")
	}

	// Download records
	var downloads store.DownloadStore
	if cfg.Store.Driver == "memory" {
		log.Info("Using in-memory download store")
		downloads = store.NewMemoryStore()
	} else {
		downloads = store.NewRedisStore(redisClient, cfg.Download.RecordTTL)
	}

	// Blob storage (in-memory when no bucket credentials are configured)
	var (
		storage      client.StorageClient
		memory       *client.MemoryStorage
		storageLabel = "memory"
	)
	if cfg.Storage.AccessKeyID != "" && cfg.Storage.SecretAccessKey != "" {
		s3Storage, err := client.NewS3Storage(&cfg.Storage)
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize blob storage")
		}
		storage = s3Storage
		storageLabel = "s3"
	} else {
		log.Info("Blob storage not configured, using in-memory storage")
		memory = client.NewMemoryStorage(publicBaseURL(cfg) + "/files")
		storage = memory
	}

	// Initialize WebSocket hub
	hub := ws.NewHub(log)
	go hub.Run(ctx)

	// Pipeline
	httpClient := &http.Client{Timeout: cfg.Download.NetworkTimeout}
	res := resolver.New(&cfg.Platforms, httpClient, cfg.Download.NetworkTimeout, log)
	fetcher := client.NewStreamFetcher(nil, cfg.Download.NetworkTimeout, cfg.Download.MaxBytes)
	downloadWorker := worker.NewDownloadWorker(downloads, res, fetcher, storage, hub, worker.Options{
		ProcessingDelay: cfg.Download.ProcessingDelay,
		UploadTimeout:   cfg.Download.UploadTimeout,
	}, log)

	var (
		dispatcher service.Dispatcher
		pool       *worker.Pool
	)
	switch cfg.Queue.Driver {
	case "local":
		pool = worker.NewPool(cfg.Queue.Concurrency, localQueueSize, downloadWorker.Run, log)
		pool.Start()
		dispatcher = pool
	default:
		asynqClient := asynq.NewClient(redisOpt(cfg))
		defer asynqClient.Close()
		dispatcher = service.NewAsynqDispatcher(asynqClient, cfg.Queue.QueueName)

		// Start Asynq worker server
		srv := newWorkerServer(cfg, log)
		go startWorkerServer(srv, downloadWorker, log)
		defer srv.Shutdown()
	}

	downloadService := service.NewDownloadService(downloads, storage, dispatcher, cfg.Download.SignedURLExpiry, log)

	routes := handler.Routes{
		Downloads: handler.NewDownloadHandler(downloadService, log),
		Hub:       hub,
	}
	if memory != nil {
		routes.Files = handler.NewFilesHandler(memory)
	}

	if cfg.Auth.Enabled {
		verifier, err := auth.NewVerifier(&cfg.Auth)
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize token verifier")
		}
		defer verifier.Close()
		routes.Auth = middleware.NewAuthMiddleware(verifier).Authenticate()
	}

	var healthRedis *redis.Client
	if cfg.Store.Driver != "memory" || cfg.Queue.Driver != "local" {
		healthRedis = redisClient
	}
	routes.Health = handler.NewHealthHandler(healthRedis, handler.HealthInfo{
		Storage:     storageLabel,
		Queue:       cfg.Queue.Driver,
		AuthEnabled: cfg.Auth.Enabled,
	})

	if redisUp && cfg.RateLimit.SubmitPerHour > 0 {
		routes.SubmitLimit = middleware.NewRateLimiter(redisClient, log).SubmitLimit(cfg.RateLimit.SubmitPerHour)
	}

	app := handler.NewApp(log, true)
	handler.Register(app, routes)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.WithError(err).Error("Server shutdown error")
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.WithFields(logrus.Fields{
		"addr":    addr,
		"queue":   cfg.Queue.Driver,
		"store":   cfg.Store.Driver,
		"storage": storageLabel,
	}).Info("Server starting")
	if err := app.Listen(addr); err != nil {
		log.WithError(err).Error("Server error")
	}

	if pool != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		pool.Stop(stopCtx)
		stopCancel()
	}
}

func publicBaseURL(cfg *config.Config) string {
	if cfg.Server.ApiDomain != "" {
		return "https://" + cfg.Server.ApiDomain
	}
	return "http://localhost:" + cfg.Server.Port
}

func redisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}

func newWorkerServer(cfg *config.Config, log *logrus.Logger) *asynq.Server {
	return asynq.NewServer(
		redisOpt(cfg),
		asynq.Config{
			Concurrency: cfg.Queue.Concurrency,
			Queues: map[string]int{
				cfg.Queue.QueueName: 1,
			},
			Logger:   logging.NewAsynqLogger(log),
			LogLevel: logging.AsynqLevel(cfg.Server.LogLevel),
		},
	)
}

func startWorkerServer(srv *asynq.Server, downloadWorker *worker.DownloadWorker, log *logrus.Logger) {
	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeDownload, downloadWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.WithError(err).Error("Asynq worker error")
	}
}
