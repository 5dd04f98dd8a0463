package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"wisefido-risk/internal/cache"
	"wisefido-risk/internal/config"
	"wisefido-risk/internal/httpapi"
	"wisefido-risk/internal/lock"
	"wisefido-risk/internal/metrics"
	"wisefido-risk/internal/notify"
	"wisefido-risk/internal/profile"
	"wisefido-risk/internal/repository"
	"wisefido-risk/internal/risk"
	"wisefido-risk/owl-common/database"
	owlmqtt "wisefido-risk/owl-common/mqtt"
	owlredis "wisefido-risk/owl-common/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RiskService wires storage, locking, notification fan-out and the HTTP API
// around the risk engine.
type RiskService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *owlmqtt.Client
	kafka       *notify.KafkaPublisher
	logger      *zap.Logger

	engine  *risk.Engine
	metrics *metrics.Metrics
	server  *http.Server
}

// NewRiskService connects to Postgres and Redis unless cfg.DBEnabled is
// false, in which case everything runs in memory.
func NewRiskService(cfg *config.Config, logger *zap.Logger) (*RiskService, error) {
	s := &RiskService{
		config:  cfg,
		logger:  logger,
		metrics: metrics.New(),
	}
	ctx := context.Background()

	// 1. storage + subject locks
	var (
		signals     repository.SignalRepository
		alerts      repository.AlertRepository
		assessments repository.AssessmentRepository
		locker      lock.SubjectLocker
	)
	if cfg.DBEnabled {
		db, err := database.NewPostgresDB(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		s.db = db

		s.redisClient = owlredis.NewRedisClient(&cfg.Redis)
		if err := owlredis.Ping(ctx, s.redisClient); err != nil {
			s.Stop()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}

		signals = repository.NewPostgresSignalRepository(db, logger)
		alerts = repository.NewPostgresAlertRepository(db, logger)
		assessments = repository.NewPostgresAssessmentRepository(db, logger)
		locker = lock.NewRedisLocker(s.redisClient, cfg.Risk.LockTTL, logger)
	} else {
		logger.Warn("DB_ENABLED=false, using in-memory repositories")
		store := repository.NewMemoryStore()
		signals, alerts, assessments = store, store, store
		locker = lock.NewMemoryLocker()
	}

	// 2. display names
	var names profile.NameResolver = profile.NewHTTPResolver(cfg.Profile.BaseURL, cfg.Profile.Timeout, logger)
	var invalidator httpapi.NameInvalidator
	if s.redisClient != nil && cfg.Risk.NameCacheTTL > 0 {
		nameCache := cache.NewNameCache(s.redisClient, names, cfg.Risk.NameCacheTTL, logger)
		names, invalidator = nameCache, nameCache
	}

	// 3. notification fan-out
	publisher, err := s.buildPublisher()
	if err != nil {
		s.Stop()
		return nil, err
	}

	// 4. engine
	engine, err := risk.NewEngine(risk.Deps{
		Signals:     signals,
		Alerts:      alerts,
		Assessments: assessments,
		Locker:      locker,
		Names:       names,
		Publisher:   publisher,
		Metrics:     s.metrics,
	}, Settings(cfg), logger)
	if err != nil {
		s.Stop()
		return nil, fmt.Errorf("failed to create risk engine: %w", err)
	}
	s.engine = engine

	// 5. HTTP
	router := httpapi.NewRouter(httpapi.NewRiskHandler(engine, invalidator, logger), s.metrics.Handler(), logger)
	s.server = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}
	return s, nil
}

func (s *RiskService) buildPublisher() (notify.Publisher, error) {
	var publishers notify.Multi
	if s.config.Notify.RedisStream && s.redisClient != nil {
		publishers = append(publishers, notify.NewRedisStreamPublisher(s.redisClient, s.config.Notify.StreamName, s.config.Notify.StreamMaxLen, s.logger))
	}
	if s.config.Notify.MQTT {
		client, err := owlmqtt.NewClient(&s.config.MQTT)
		if err != nil {
			return nil, err
		}
		s.mqttClient = client
		publishers = append(publishers, notify.NewMQTTPublisher(client, s.config.Notify.MQTTTopicPrefix))
	}
	if s.config.Notify.Kafka {
		s.kafka = notify.NewKafkaPublisher(notify.NewKafkaWriter(&s.config.Kafka))
		publishers = append(publishers, s.kafka)
	}
	if len(publishers) == 0 {
		s.logger.Info("No alert publishers enabled")
		return notify.Nop{}, nil
	}
	return publishers, nil
}

// Settings maps config.Risk onto engine settings.
func Settings(cfg *config.Config) risk.Settings {
	return risk.Settings{
		AlertCoolDown:       cfg.Risk.AlertCoolDown,
		EmergencyWindowDays: cfg.Risk.EmergencyWindowDays,
		AdherenceWindowDays: cfg.Risk.AdherenceWindowDays,
		DefaultPeriodDays:   cfg.Risk.DefaultPeriodDays,
		MaxPeriodDays:       cfg.Risk.MaxPeriodDays,
		SweepWorkers:        cfg.Risk.SweepWorkers,
		RepositoryTimeout:   cfg.Risk.RepositoryTimeout,
		Location:            cfg.Location(),
	}
}

func (s *RiskService) Engine() *risk.Engine {
	return s.engine
}

func (s *RiskService) Handler() http.Handler {
	return s.server.Handler
}

// Start serves HTTP until ctx is cancelled, then shuts the server down.
func (s *RiskService) Start(ctx context.Context) error {
	s.logger.Info("Starting risk service",
		zap.String("addr", s.server.Addr),
		zap.Bool("db_enabled", s.config.DBEnabled),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down http server: %w", err)
		}
		return nil
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	}
}

// Stop releases connections; safe on a partially built service.
func (s *RiskService) Stop() error {
	s.logger.Info("Stopping risk service")

	if s.kafka != nil {
		if err := s.kafka.Close(); err != nil {
			s.logger.Error("Failed to close kafka writer", zap.Error(err))
		}
	}
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	if s.redisClient != nil {
		if err := owlredis.Close(s.redisClient); err != nil {
			s.logger.Error("Failed to close redis", zap.Error(err))
		}
	}
	if err := database.Close(s.db); err != nil {
		s.logger.Error("Failed to close database", zap.Error(err))
	}
	return nil
}
