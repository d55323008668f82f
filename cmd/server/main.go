package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"oureat/internal/config"
	"oureat/internal/credential"
	"oureat/internal/events"
	"oureat/internal/genesis"
	"oureat/internal/infrastructure/logger"
	"oureat/internal/infrastructure/mysql"
	"oureat/internal/ledger"
	"oureat/internal/ledger/usecase"
	"oureat/internal/server"
	"oureat/internal/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("creating logger: %v", err)
	}
	defer zapLogger.Sync()

	db, err := mysql.NewConnection(cfg.Database)
	if err != nil {
		zapLogger.Fatal("connecting to database", zap.Error(err))
	}
	defer db.Close()
	zapLogger.Info("database connected")

	genesisCtx, cancelGenesis := context.WithTimeout(context.Background(), 30*time.Second)
	if err := genesis.Run(genesisCtx, db, cfg.Ledger, zapLogger); err != nil {
		cancelGenesis()
		zapLogger.Fatal("running genesis", zap.Error(err))
	}
	cancelGenesis()

	var publisher usecase.EventPublisher
	if cfg.Events.AMQPURL != "" {
		amqpPublisher, err := events.NewPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange, zapLogger)
		if err != nil {
			zapLogger.Warn("event broker unavailable, continuing without events", zap.Error(err))
		} else {
			defer amqpPublisher.Close()
			publisher = amqpPublisher
			zapLogger.Info("event broker connected", zap.String("exchange", cfg.Events.Exchange))
		}
	}

	tokenModule := token.NewModule(db, cfg, zapLogger)
	credentialModule := credential.NewModule(db, zapLogger)
	orderCtrl := ledger.NewModule(db, cfg, credentialModule.Service, publisher, zapLogger)

	router := server.NewRouter(cfg, orderCtrl, tokenModule.Controller, credentialModule.Controller, zapLogger)

	srv := server.New(cfg.Server.Port, router, zapLogger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil {
			zapLogger.Fatal("server error", zap.Error(err))
		}
	}()

	<-quit
	zapLogger.Info("received shutdown signal")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("server shutdown failed", zap.Error(err))
	}

	zapLogger.Info("server stopped gracefully")
}
