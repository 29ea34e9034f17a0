// Command portal runs the agent onboarding portal: the visitor-facing HTTP
// service together with the self-hosted auth, record and storage backend.
//
// @title        Agent Onboarding Portal API
// @version      1.0
// @description  Agent sign-up, approval and role-based access for the onboarding portal.
// @BasePath     /
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ree-portal/agent-onboarding/internal/api"
	"github.com/ree-portal/agent-onboarding/internal/api/handler"
	"github.com/ree-portal/agent-onboarding/internal/api/metrics"
	"github.com/ree-portal/agent-onboarding/internal/core/ports"
	"github.com/ree-portal/agent-onboarding/internal/infrastructure/backend"
	"github.com/ree-portal/agent-onboarding/internal/infrastructure/config"
	mongostore "github.com/ree-portal/agent-onboarding/internal/infrastructure/db/mongo"
	pgstore "github.com/ree-portal/agent-onboarding/internal/infrastructure/db/postgres"
	redisstore "github.com/ree-portal/agent-onboarding/internal/infrastructure/db/redis"
	"github.com/ree-portal/agent-onboarding/internal/infrastructure/events"
	"github.com/ree-portal/agent-onboarding/internal/infrastructure/queue"
	"github.com/ree-portal/agent-onboarding/internal/portal"
	"github.com/ree-portal/agent-onboarding/pkg/logger"
)

const (
	serviceName     = "agent-onboarding"
	startupTimeout  = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.Development(),
		Service: serviceName,
		Env:     cfg.Env,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("portal stopped")
	}
	log.Info().Msg("portal stopped")
}

// stores bundles the record repositories of the configured driver.
type stores struct {
	credentials ports.CredentialRepository
	profiles    ports.ProfileRepository
	objects     ports.ObjectRepository
	check       handler.Checker
	close       func(context.Context)
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	log := logger.Component("store")

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := pgstore.Connect(ctx, pgstore.Config{DSN: cfg.Postgres.DSN})
		if err != nil {
			return nil, err
		}
		if err := pgstore.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info().Str("driver", cfg.StoreDriver).Msg("postgres connected")
		return &stores{
			credentials: pgstore.NewCredentialRepository(pool),
			profiles:    pgstore.NewProfileRepository(pool),
			objects:     pgstore.NewObjectStore(pool),
			check:       func(ctx context.Context) error { return pool.Ping(ctx) },
			close:       func(context.Context) { pool.Close() },
		}, nil

	default:
		client, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		if err := mongostore.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		log.Info().Str("driver", cfg.StoreDriver).Str("database", cfg.Mongo.Database).Msg("mongodb connected")
		return &stores{
			credentials: mongostore.NewCredentialRepository(db),
			profiles:    mongostore.NewProfileRepository(db),
			objects:     mongostore.NewObjectStore(db),
			check:       func(ctx context.Context) error { return client.Ping(ctx, nil) },
			close:       func(ctx context.Context) { disconnectMongo(ctx, client) },
		}, nil
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	st, err := openStores(startCtx, cfg)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	defer st.close(context.Background())

	rdb, err := redisstore.Connect(startCtx, redisstore.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer closeRedis(rdb)

	checks := map[string]handler.Checker{
		cfg.StoreDriver: st.check,
		"redis":         func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}

	// --- Lifecycle events ---
	var publisher ports.LifecyclePublisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		producer := events.NewProducer(cfg.Kafka.Brokers, events.Topics{
			AgentRegistered:    cfg.Kafka.TopicRegistered,
			AgentStatusChanged: cfg.Kafka.TopicStatusChanged,
		}, logger.Component("events"))
		defer func() {
			if err := producer.Close(); err != nil {
				log.Warn().Err(err).Msg("closing kafka producer")
			}
		}()
		publisher = producer
		brokers := cfg.Kafka.Brokers
		checks["kafka"] = func(ctx context.Context) error { return events.Ping(ctx, brokers) }
	} else {
		log.Warn().Msg("KAFKA_BROKERS not set, lifecycle events are discarded")
	}

	// Workers outlive the signal context so queued events drain on Stop.
	dispatcher := queue.NewDispatcher(cfg.Kafka.PublishWorkers, publisher, logger.Component("dispatcher"))
	dispatcher.Start(context.Background())
	defer dispatcher.Stop()

	// --- Backend ---
	hub := backend.NewHub(backend.Deps{
		Credentials: st.credentials,
		Profiles:    st.profiles,
		Objects:     st.objects,
		Sessions:    redisstore.NewSessionRepository(rdb),
		Bus:         redisstore.NewSessionBus(rdb, logger.Component("session-bus")),
		Lifecycle:   dispatcher,
		Tokens:      backend.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL),
	}, backend.Config{PublicBaseURL: cfg.Portal.PublicBaseURL}, logger.Component("backend"))

	if cfg.Auth.AdminEmail != "" {
		if err := hub.EnsureSuperAdmin(startCtx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword, cfg.Auth.AdminName); err != nil {
			return err
		}
	} else {
		log.Warn().Msg("SUPER_ADMIN_EMAIL not set, no admin account is bootstrapped")
	}

	// --- Visitors ---
	registry := portal.NewRegistry(hub, portal.Options{
		IdleTTL:         cfg.Portal.VisitorIdleTTL,
		EventWait:       cfg.Portal.SessionEventWait,
		MaxReceiptBytes: cfg.Portal.MaxReceiptBytes,
	}, logger.Component("portal"))
	go registry.Run(ctx)
	defer func() {
		if err := registry.Close(); err != nil {
			log.Warn().Err(err).Msg("closing visitors")
		}
	}()
	metrics.RegisterActiveVisitors(registry.Len)

	// --- HTTP ---
	e := api.NewRouter(api.Deps{
		Visitors: registry,
		Objects:  hub,
		Checks:   checks,
		Log:      logger.Component("http"),
	}, api.Options{
		MaxReceiptBytes: cfg.Portal.MaxReceiptBytes,
		SecureCookie:    cfg.Portal.CookieSecure,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("portal listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	// Deferred: registry, dispatcher, producer, redis, stores.
	return nil
}

func disconnectMongo(ctx context.Context, client *mongo.Client) {
	if err := client.Disconnect(ctx); err != nil {
		log := logger.Get()
		log.Warn().Err(err).Msg("disconnecting mongodb")
	}
}

func closeRedis(rdb *goredis.Client) {
	if err := rdb.Close(); err != nil {
		log := logger.Get()
		log.Warn().Err(err).Msg("closing redis")
	}
}
