package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"tracker/internal/affiliation"
	affiliationhandler "tracker/internal/affiliation/handler"
	"tracker/internal/audit"
	"tracker/internal/domains"
	domainshandler "tracker/internal/domains/handler"
	"tracker/internal/mutate"
	"tracker/internal/organization"
	organizationhandler "tracker/internal/organization/handler"
	"tracker/internal/platform/config"
	"tracker/internal/platform/httpserver"
	"tracker/internal/platform/kafka"
	"tracker/internal/platform/logger"
	"tracker/internal/platform/metrics"
	"tracker/internal/platform/middleware"
	"tracker/internal/platform/postgres"
	"tracker/internal/platform/redis"
	"tracker/internal/user"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps
// the server lifecycle small. Business logic lives in internal services
// packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	db, err := postgres.Open(cfg.Postgres.DSN)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := postgres.Migrate(cfg.Postgres.DSN); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	m := metrics.New()

	affiliationStore := affiliation.NewPostgres(db)
	organizationStore := organization.NewPostgres(db)
	domainStore := domains.NewPostgres(db)
	userStore := user.NewPostgres(db)
	auditStore := audit.NewPostgres(db)

	resolverOpts := []affiliation.ResolverOption{}
	var rankCache affiliation.RankCache
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		cache := affiliation.NewRedisRankCache(redisClient.Client, cfg.Redis.RankTTL, log)
		rankCache = cache
		resolverOpts = append(resolverOpts, affiliation.WithRankCache(cache))
	}
	resolver := affiliation.NewResolver(affiliationStore, resolverOpts...)

	inbox := audit.NewInbox()
	publisher := audit.NewPublisher(inbox, log)

	var sink audit.Sink
	producer, err := kafka.NewProducer(cfg.Kafka)
	if err != nil {
		log.Error("kafka connection failed", "error", err)
		os.Exit(1)
	}
	if producer != nil {
		defer producer.Close()
		sink = producer
	}
	worker := audit.NewWorker(auditStore, sink, inbox, log)

	exec := mutate.New(postgres.NewTxRunner(db),
		mutate.WithLogger(log),
		mutate.WithRecorder(m),
	)

	affiliationSvc := affiliation.NewService(affiliationStore, resolver, exec,
		affiliation.WithAuditPublisher(publisher),
		affiliation.WithServiceLogger(log),
		affiliation.WithCacheInvalidation(rankCache),
	)
	organizationSvc := organization.NewService(organizationStore, affiliationStore, resolver, exec,
		organization.WithAuditPublisher(publisher),
		organization.WithServiceLogger(log),
	)
	domainSvc := domains.NewService(domainStore, organizationStore, resolver, exec,
		domains.WithAuditPublisher(publisher),
		domains.WithServiceLogger(log),
	)

	router := chi.NewRouter()
	router.Use(chimw.Recoverer)
	router.Use(middleware.RequestMeta)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	validator := middleware.NewJWTValidator(cfg.Server.JWTSigningKey)
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(validator, log))
		organizationhandler.New(organizationSvc, log).Register(r)
		affiliationhandler.New(affiliationSvc, userStore, log).Register(r)
		domainshandler.New(domainSvc, log).Register(r)
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		worker.Run(ctx)
		return nil
	})
	g.Go(func() error {
		log.Info("starting tracker", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
