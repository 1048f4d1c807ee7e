// Package main runs the live classroom HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-classroom/backend/config"
	"github.com/aura-classroom/backend/internal/archive"
	"github.com/aura-classroom/backend/internal/classroom"
	"github.com/aura-classroom/backend/internal/middleware"
	"github.com/aura-classroom/backend/internal/realtime"
	"github.com/aura-classroom/backend/pkg/database"
	"github.com/aura-classroom/backend/pkg/queue"
	"github.com/aura-classroom/backend/pkg/redis"
	"github.com/aura-classroom/backend/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		newLogger(zapcore.InfoLevel).Fatal("load config", zap.Error(err))
	}
	logger := newLogger(cfg.Log.ZapLevel())
	defer logger.Sync()

	ctx := context.Background()
	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()
	var bg sync.WaitGroup

	var (
		mirror  realtime.Mirror
		reports archive.ReportEnqueuer
		journal classroom.Journal
		reader  archive.Reader
		linker  archive.ReportLinker
	)

	// Redis: event mirror and report queue (optional)
	if cfg.Redis.Enabled() {
		rdb, err := redis.NewClient(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()

		pubsub := realtime.NewRedisPubSub(rdb.Client, logger.Named("mirror"))
		bg.Add(1)
		go func() {
			defer bg.Done()
			pubsub.Run(bgCtx)
		}()
		mirror = pubsub
		reports = queue.NewQueue(rdb.Client, logger)
	} else {
		logger.Info("REDIS_ADDR not set, event mirror and report queue disabled")
	}

	// PostgreSQL: write-only audit archive (optional)
	if cfg.Database.Enabled() {
		pool, err := database.NewPostgresPool(ctx, cfg.Database.URL, cfg.Database.MaxConns, logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()

		if err := database.Migrate(ctx, pool); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}

		repo := archive.NewRepository(pool)
		recorder := archive.NewRecorder(repo, reports, logger.Named("archive"))
		bg.Add(1)
		go func() {
			defer bg.Done()
			recorder.Run(bgCtx)
		}()
		journal = recorder
		reader = repo

		if reports != nil {
			s3Client, err := storage.NewS3(ctx, storage.S3Config{
				Region:               cfg.AWS.Region,
				AccessKeyID:          cfg.AWS.AccessKeyID,
				SecretAccessKey:      cfg.AWS.SecretAccessKey,
				ReportsBucket:        cfg.AWS.ReportsBucket,
				PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
			}, logger)
			if err != nil {
				logger.Warn("s3 disabled, report links unavailable", zap.Error(err))
			} else {
				linker = s3Client
			}
		}
	} else {
		logger.Info("DATABASE_URL not set, archive disabled")
	}

	hub := realtime.NewHub(logger.Named("hub"), mirror)
	opts := []classroom.Option{
		classroom.WithLogger(logger.Named("classroom")),
		classroom.WithStrictRoles(cfg.Classroom.StrictRoles),
	}
	if journal != nil {
		opts = append(opts, classroom.WithJournal(journal))
	}
	session := classroom.NewSession(hub, opts...)

	classroomHandler := classroom.NewHandler(session)
	archiveHandler := archive.NewHandler(reader, linker)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins()))
	router.Use(middleware.Logger(logger))

	router.GET("/health", classroomHandler.Health)

	api := router.Group("/api")
	{
		api.GET("/session", classroomHandler.Snapshot)
		api.GET("/polls/history", classroomHandler.History)

		api.GET("/archive/polls", archiveHandler.ListPolls)
		api.GET("/archive/polls/:id", archiveHandler.GetPoll)
		api.GET("/archive/polls/:id/report", archiveHandler.ReportURL)
		api.GET("/archive/attendance", archiveHandler.ListAttendance)
	}

	router.GET("/ws", realtime.ServeWs(session, logger.Named("ws"), realtime.Options{
		PingInterval:   cfg.WebSocket.PingInterval,
		PongWait:       cfg.WebSocket.PongWait,
		WriteWait:      cfg.WebSocket.WriteWait,
		ReadLimit:      cfg.WebSocket.ReadLimit,
		SendBuffer:     cfg.WebSocket.SendBuffer,
		AllowedOrigins: cfg.Server.AllowedOrigins(),
	}))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening",
			zap.String("port", cfg.Server.Port),
			zap.Bool("strict_roles", cfg.Classroom.StrictRoles),
			zap.Bool("archive", reader != nil),
			zap.Bool("mirror", mirror != nil),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	// Hijacked WebSocket connections are not closed by Shutdown.
	hub.CloseAll()

	bgCancel()
	bg.Wait()
	logger.Info("server stopped")
}

func newLogger(level zapcore.Level) *zap.Logger {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
