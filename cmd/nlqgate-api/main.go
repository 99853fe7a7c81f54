package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nlqgate/nlqgate/internal/api"
	"github.com/nlqgate/nlqgate/internal/auth"
	"github.com/nlqgate/nlqgate/internal/config"
	"github.com/nlqgate/nlqgate/internal/gateway"
	"github.com/nlqgate/nlqgate/internal/migrations"
	"github.com/nlqgate/nlqgate/internal/nl2sql"
	"github.com/nlqgate/nlqgate/internal/observability"
	"github.com/nlqgate/nlqgate/internal/query"
	"github.com/nlqgate/nlqgate/internal/schema"
	schemapostgres "github.com/nlqgate/nlqgate/internal/schema/postgres"
	"github.com/nlqgate/nlqgate/internal/session"
	"github.com/nlqgate/nlqgate/internal/sqlguard"
	s3store "github.com/nlqgate/nlqgate/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("nlqgate-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	db, err := schemapostgres.Open(context.Background(), schemapostgres.DBConfig{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	validator := sqlguard.NewValidator(db, sqlguard.Options{
		DryRun: cfg.Gateway.DryRun,
		Logger: logger,
	})
	executor, err := query.NewExecutor(db, validator, query.Config{
		Timeout:    cfg.Gateway.QueryTimeout,
		ReadOnlyTx: cfg.Gateway.ReadOnlyTx,
		MaxRows:    cfg.Gateway.MaxResultRows,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize query executor", slog.Any("error", err))
		os.Exit(1)
	}

	introspector, err := schemapostgres.NewIntrospector(db, schemapostgres.Options{
		Schema:  cfg.Database.SchemaName,
		Exclude: []string{migrations.MigrationTable},
	})
	if err != nil {
		logger.Error("failed to initialize schema introspection", slog.Any("error", err))
		os.Exit(1)
	}
	schemaCache := schema.NewCache(introspector, cfg.Schema.CacheTTL)
	if cfg.Schema.CheckAllowlist {
		checkCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := schema.CheckAllowlist(checkCtx, schemaCache, sqlguard.AllowedTables)
		cancel()
		if err != nil {
			logger.Error("table allowlist does not match the database", slog.Any("error", err))
			os.Exit(1)
		}
	}

	var archiver *session.Archiver
	if cfg.Sessions.Archive {
		objectStore, err := s3store.New(context.Background(), s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		archiver, err = session.NewArchiver(objectStore, session.ArchiverOptions{
			Formats: cfg.Sessions.ArchiveFormats,
		}, logger)
		if err != nil {
			logger.Error("failed to initialize transcript archiver", slog.Any("error", err))
			os.Exit(1)
		}
	}

	sessionOptions := session.MemoryOptions{
		Shards:      cfg.Sessions.Shards,
		MaxPerShard: cfg.Sessions.MaxPerShard,
		TTL:         cfg.Sessions.TTL,
	}
	if archiver != nil {
		sessionOptions.OnEvict = func(s session.Session) { archiver.Enqueue(s) }
	}
	sessions := session.NewMemoryStore(sessionOptions)

	gatewayDeps := gateway.Dependencies{
		Translator:   nl2sql.NewRuleTranslator(),
		Validator:    validator,
		Executor:     executor,
		Schema:       schemaCache,
		Sessions:     sessions,
		Logger:       logger,
		QueryTimeout: cfg.Gateway.QueryTimeout,
	}
	if archiver != nil {
		gatewayDeps.Archive = archiver
	}
	service, err := gateway.New(gatewayDeps)
	if err != nil {
		logger.Error("failed to initialize gateway", slog.Any("error", err))
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger:  logger,
		Gateway: service,
		Readiness: api.CombineReadinessChecks(
			api.CheckDatabase(db.PingContext),
			api.CheckObjectStoreConfig(cfg),
		),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		keyValidator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, keyValidator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	archiverCtx, stopArchiver := context.WithCancel(context.Background())
	archiverDone := make(chan struct{})
	go func() {
		defer close(archiverDone)
		if archiver == nil {
			return
		}
		if err := archiver.Run(archiverCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("transcript archiver stopped", slog.Any("error", err))
		}
	}()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	shutdownErr := server.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", shutdownErr))
		_ = server.Close()
	}

	// Live sessions go to the archive queue before the archiver drains.
	sessions.Flush()
	stopArchiver()
	<-archiverDone
	if shutdownErr != nil {
		os.Exit(1)
	}
}
