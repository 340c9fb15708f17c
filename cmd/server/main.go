// Package main wires the provisioning service: configuration, stores, the
// directory adapter, the saga orchestrator, background workers, and the
// HTTP transport. Every external system is optional; anything not
// configured falls back to an in-memory implementation so a bare binary
// still runs end to end.
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

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"provisor/internal/audit"
	"provisor/internal/audit/consumer"
	"provisor/internal/audit/relay"
	auditmem "provisor/internal/audit/store/memory"
	auditpg "provisor/internal/audit/store/postgres"
	"provisor/internal/authn"
	"provisor/internal/directory"
	memorydir "provisor/internal/directory/memory"
	restdir "provisor/internal/directory/rest"
	"provisor/internal/notify"
	"provisor/internal/notify/smtp"
	"provisor/internal/platform/config"
	"provisor/internal/platform/httpserver"
	"provisor/internal/platform/kafka"
	"provisor/internal/platform/logger"
	"provisor/internal/platform/metrics"
	"provisor/internal/platform/middleware"
	"provisor/internal/platform/postgres"
	"provisor/internal/platform/redis"
	"provisor/internal/provisioning/dispatch"
	"provisor/internal/provisioning/saga"
	sagametrics "provisor/internal/provisioning/saga/metrics"
	requeststore "provisor/internal/provisioning/store/request"
	"provisor/internal/schedule"
	reclaimstore "provisor/internal/schedule/store/reclaim"
	httptransport "provisor/internal/transport/http"
	"provisor/pkg/platform/circuit"
)

const (
	tokenIssuer   = "provisor"
	tokenAudience = "provisor-api"

	auditBufferSize     = 256
	auditRelayInterval  = time.Second
	auditTopicPartition = 3

	shutdownTimeout = 15 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "provisor:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("PROVISOR_CONFIG"))
	if err != nil {
		return err
	}
	log := logger.Setup(cfg.Logging.Format, cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Stores. Postgres carries both the request ledger and the audit
	// outbox; without it everything materializes in memory.
	var (
		requestStore saga.RequestStore
		auditStore   audit.Store
		auditRelay   *relay.Relay
		auditTail    *consumer.Consumer
	)
	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()

		if err := requeststore.EnsureSchema(ctx, db); err != nil {
			return err
		}
		if err := auditpg.EnsureSchema(ctx, db); err != nil {
			return err
		}

		pgAudit := auditpg.New(db)
		requestStore = requeststore.NewPostgres(db)
		auditStore = pgAudit
		log.Info("using postgres stores")

		if len(cfg.Kafka.Brokers) > 0 {
			producer, err := kafka.NewProducer(cfg.Kafka)
			if err != nil {
				return err
			}
			defer producer.Close()
			if err := kafka.EnsureTopic(ctx, producer, cfg.Kafka.AuditTopic, auditTopicPartition); err != nil {
				return err
			}

			consumerClient, err := kafka.NewGroupConsumer(cfg.Kafka, cfg.Kafka.AuditTopic)
			if err != nil {
				return err
			}
			defer consumerClient.Close()

			auditRelay = relay.New(pgAudit, relay.NewKafkaSink(producer, cfg.Kafka.AuditTopic), log, auditRelayInterval)
			auditTail = consumer.New(consumerClient, pgAudit, log)
			log.Info("audit pipeline publishing to kafka", "topic", cfg.Kafka.AuditTopic)
		} else {
			// No brokers: the relay materializes the outbox locally so
			// audit queries still converge.
			auditRelay = relay.New(pgAudit, relay.NewLocalSink(pgAudit, log), log, auditRelayInterval)
			log.Info("audit pipeline materializing locally")
		}
	} else {
		requestStore = requeststore.NewInMemory()
		auditStore = auditmem.NewInMemoryStore()
		log.Warn("database.url not set, using in-memory stores")
	}

	// Reclaim schedule store.
	var reclaimStore schedule.Store
	rdb, err := redis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if rdb != nil {
		defer rdb.Close()
		reclaimStore = reclaimstore.NewRedis(rdb.Client)
		log.Info("using redis reclaim store")
	} else {
		reclaimStore = reclaimstore.NewInMemory()
		log.Warn("redis.url not set, using in-memory reclaim store")
	}

	// Directory adapter.
	var dir directory.Client
	if cfg.Directory.BaseURL != "" {
		dir = restdir.New(cfg.Directory)
		log.Info("using remote directory", "base_url", cfg.Directory.BaseURL)
	} else {
		dir = memorydir.New()
		log.Warn("directory.base_url not set, using in-memory directory")
	}

	// Notifications. With SMTP configured, a tripped breaker degrades
	// delivery to the service log instead of losing escalations.
	emitterOpts := []notify.EmitterOption{notify.WithMetrics(notify.NewMetrics())}
	var sender notify.Sender
	if cfg.SMTP.Host != "" {
		sender = smtp.NewMailer(cfg.SMTP)
		emitterOpts = append(emitterOpts, notify.WithFallback(notify.NewLogSender(log), circuit.New("smtp")))
		log.Info("sending notifications via smtp", "host", cfg.SMTP.Host)
	} else {
		sender = notify.NewLogSender(log)
		log.Warn("smtp.host not set, notifications are log-only")
	}
	emitter := notify.NewEmitter(sender, log, emitterOpts...)
	defer emitter.Close()

	publisher := audit.NewPublisher(auditStore, log, audit.WithAsyncBuffer(auditBufferSize))
	defer publisher.Close()

	// Core orchestration.
	orch := saga.New(dir, requestStore, publisher, emitter, reclaimStore,
		config.NewProvider(cfg.Provisioning),
		saga.WithLogger(log),
		saga.WithMetrics(sagametrics.New()),
		saga.WithCallTimeout(cfg.Directory.CallTimeout),
	)
	dispatcher := dispatch.New(orch, cfg.Server.MaxConcurrentRuns, dispatch.WithLogger(log))

	reclaimer := schedule.NewWorker(reclaimStore, dir, publisher, log,
		schedule.WithInterval(cfg.Provisioning.ReclaimInterval),
		schedule.WithMetrics(schedule.NewMetrics()),
	)

	// Transport.
	var (
		jwtValidator middleware.JWTValidator
		apiKeys      middleware.APIKeyValidator
		opts         []httptransport.Option
	)
	if cfg.Server.JWTSigningKey != "" {
		jwtValidator = authn.NewJWTService(cfg.Server.JWTSigningKey, tokenIssuer, tokenAudience)
	}
	if len(cfg.Server.APIClients) > 0 {
		apiKeys = authn.NewAPIKeyChecker(cfg.Server.APIClients)
	}
	if jwtValidator != nil || apiKeys != nil {
		opts = append(opts, httptransport.WithAuth(jwtValidator, apiKeys))
	} else {
		log.Warn("no jwt signing key or api clients configured, api authentication is disabled")
	}

	handler := httptransport.New(dispatcher, orch, auditStore, log, m, opts...)
	router := chi.NewRouter()
	handler.Register(router)
	srv := httpserver.New(cfg.Server, router)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		if err := reclaimer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("reclaim worker: %w", err)
		}
		return nil
	})
	if auditRelay != nil {
		g.Go(func() error {
			if err := auditRelay.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("audit relay: %w", err)
			}
			return nil
		})
	}
	if auditTail != nil {
		g.Go(func() error {
			if err := auditTail.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("audit consumer: %w", err)
			}
			return nil
		})
	}

	waitErr := g.Wait()

	// Flush whatever the outbox still holds so a clean shutdown does not
	// strand audit entries.
	if auditRelay != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := auditRelay.Drain(flushCtx); err != nil {
			log.Error("final audit outbox drain failed", "error", err)
		}
	}

	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		return waitErr
	}
	log.Info("shutdown complete")
	return nil
}
