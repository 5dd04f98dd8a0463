package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"wisefido-risk/internal/config"
	"wisefido-risk/internal/service"
	"wisefido-risk/owl-common/logger"

	"go.uber.org/zap"
)

func main() {
	// 1. config
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. logger
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "wisefido-risk")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	// 3. service
	riskService, err := service.NewRiskService(cfg, log)
	if err != nil {
		log.Fatal("Failed to create risk service", zap.Error(err))
	}
	defer riskService.Stop()

	// 4. context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 5. serve
	serviceErrChan := make(chan error, 1)
	go func() {
		serviceErrChan <- riskService.Start(ctx)
	}()

	// 6. wait for a signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
		// Start returns once the server has drained; Stop must not run before.
		if err := <-serviceErrChan; err != nil {
			log.Error("Shutdown error", zap.Error(err))
		}
	case err := <-serviceErrChan:
		if err != nil {
			log.Error("Service error", zap.Error(err))
		}
	}

	log.Info("Risk service stopped")
}
