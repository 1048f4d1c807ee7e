// Package main tails the classroom event mirror on Redis and logs every broadcast.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-classroom/backend/config"
	"github.com/aura-classroom/backend/internal/realtime"
	"github.com/aura-classroom/backend/pkg/redis"
)

func main() {
	withData := flag.Bool("data", false, "include event payloads in the log")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		newLogger(zapcore.InfoLevel).Fatal("load config", zap.Error(err))
	}
	logger := newLogger(cfg.Log.ZapLevel())
	defer logger.Sync()

	if !cfg.Redis.Enabled() {
		logger.Fatal("monitor needs REDIS_ADDR")
	}

	rdb, err := redis.NewClient(context.Background(), redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
	stop, err := pubsub.Subscribe(func(ev realtime.MirrorEvent) {
		fields := []zap.Field{
			zap.String("event", ev.Event),
			zap.Time("at", time.UnixMilli(ev.At)),
		}
		if *withData && len(ev.Data) > 0 {
			fields = append(fields, zap.ByteString("data", ev.Data))
		}
		logger.Info("classroom event", fields...)
	})
	if err != nil {
		logger.Fatal("subscribe", zap.Error(err))
	}
	defer stop()
	logger.Info("monitor subscribed", zap.String("channel", realtime.EventsChannel))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("monitor stopped")
}

func newLogger(level zapcore.Level) *zap.Logger {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
