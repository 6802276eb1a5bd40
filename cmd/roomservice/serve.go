package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/roomservice/gateway"
	"github.com/example/roomservice/pkg/config"
	"github.com/example/roomservice/pkg/discovery"
	"github.com/example/roomservice/pkg/grpc"
	"github.com/example/roomservice/pkg/notify"
	"github.com/example/roomservice/pkg/orders"
	"github.com/example/roomservice/pkg/repository"
	"go.uber.org/zap"
)

func serve(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting room service",
		zap.String("name", cfg.Server.Name),
		zap.String("http", cfg.Server.Addr()),
		zap.String("database", cfg.Database.Driver))

	db, err := repository.OpenDatabase(&cfg.Database, logger)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	ctx := context.Background()
	deps := orders.Deps{}

	// Redis: per-order lock and guest status cache
	if cfg.Redis.Enabled {
		redisRepo := repository.NewRedisRepository(&cfg.Redis)
		if err := redisRepo.Ping(ctx); err != nil {
			logger.Warn("Redis connection failed, using in-process lock and cache", zap.Error(err))
			redisRepo.Close()
		} else {
			logger.Info("Redis connected successfully")
			defer redisRepo.Close()
			deps.Locker = redisRepo
			deps.Cache = redisRepo
		}
	}

	// MongoDB: audit log
	if cfg.MongoDB.Enabled {
		mongoRepo, err := repository.NewMongoRepository(&cfg.MongoDB)
		if err != nil {
			logger.Warn("MongoDB connection failed, audit entries go to the log", zap.Error(err))
		} else {
			defer mongoRepo.Close(context.Background())
			deps.Auditor = mongoRepo
		}
	}

	// RabbitMQ: guest notifications
	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.RabbitMQ.Enabled {
		amqpNotifier, err := notify.DialAMQP(&cfg.RabbitMQ)
		if err != nil {
			logger.Warn("RabbitMQ connection failed, notifications go to the log", zap.Error(err))
		} else {
			defer amqpNotifier.Close()
			notifier = amqpNotifier
		}
	}
	dispatcher := notify.NewDispatcher(notifier, cfg.Notify, logger)
	deps.Dispatcher = dispatcher

	service := orders.NewService(db, deps, logger)

	gw := gateway.NewGateway(cfg, service, logger)
	gw.SetupRoutes()

	errCh := make(chan error, 2)
	go func() {
		if err := gw.Start(); err != nil {
			errCh <- fmt.Errorf("gateway: %w", err)
		}
	}()

	var boardServer *grpc.BoardServer
	if cfg.GRPC.Enabled {
		boardServer = grpc.NewBoardServer(&cfg.GRPC, cfg.Auth.JWTSecret, service, logger)
		go func() {
			if err := boardServer.Start(); err != nil {
				errCh <- fmt.Errorf("grpc: %w", err)
			}
		}()
	}

	// Service discovery
	var sd *discovery.ServiceDiscovery
	instance := &discovery.ServiceInstance{
		Name: cfg.Server.Name + "-grpc",
		Host: cfg.GRPC.Host,
		Port: cfg.GRPC.Port,
	}
	if cfg.Etcd.Enabled && cfg.GRPC.Enabled {
		sd, err = discovery.NewServiceDiscovery(&cfg.Etcd, logger)
		if err != nil {
			logger.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
		} else if err := sd.Register(ctx, instance); err != nil {
			logger.Warn("Failed to register service", zap.Error(err))
		}
	}

	logger.Info("Room service started")

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigCh:
		logger.Info("Received shutdown signal")
	case runErr = <-errCh:
		logger.Error("Server error", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if sd != nil {
		if err := sd.Deregister(shutdownCtx, instance); err != nil {
			logger.Error("Failed to deregister service", zap.Error(err))
		}
		sd.Close()
	}
	if err := gw.Shutdown(shutdownCtx); err != nil {
		logger.Error("Gateway shutdown failed", zap.Error(err))
	}
	if boardServer != nil {
		boardServer.Stop()
	}
	if err := dispatcher.Close(); err != nil {
		logger.Error("Notification queue did not drain", zap.Error(err))
	}
	delivered, failed := dispatcher.Stats()
	logger.Info("Room service stopped",
		zap.Int64("notifications_delivered", delivered),
		zap.Int64("notifications_failed", failed))
	return runErr
}
