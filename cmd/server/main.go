// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Server is the entry point for the Yomira user-and-session core.

It wires the document store, the per-user-database authority, the
session-token store, and the account service together, then serves them
behind the reference HTTP adapter in internal/httpapi. Swapping any one
collaborator — a different document store, a Redis-backed session store,
a real transactional mailer — never touches this file's neighbors: it is
strictly a composition root.

Usage:

	go run cmd/server/main.go

The flags/environment variables are documented alongside
[config.Config] and its nested sections.

Startup Sequence:

 1. Logger: initialize structured JSON logging (slog).
 2. Config: load and validate environment variables.
 3. Storage: connect to Postgres, run migrations, select a session store.
 4. Wiring: construct DBAuth, the account service, and the HTTP adapter.
 5. Server: bind the HTTP listener and handle graceful shutdown.

No business logic lives here.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/taibuivan/yomira/internal/authstrategies"
	"github.com/taibuivan/yomira/internal/dbauth"
	"github.com/taibuivan/yomira/internal/docstore"
	"github.com/taibuivan/yomira/internal/events"
	"github.com/taibuivan/yomira/internal/httpapi"
	"github.com/taibuivan/yomira/internal/mailer"
	"github.com/taibuivan/yomira/internal/platform/config"
	"github.com/taibuivan/yomira/internal/platform/constants"
	"github.com/taibuivan/yomira/internal/platform/migration"
	pgstore "github.com/taibuivan/yomira/internal/platform/postgres"
	redisstore "github.com/taibuivan/yomira/internal/platform/redis"
	"github.com/taibuivan/yomira/internal/sessionstore"
	"github.com/taibuivan/yomira/internal/userservice"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application_startup_failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	// # 1. Logger
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)
	log.Info("service_initializing")

	// # 2. Configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("session_adapter", cfg.Session.Adapter),
	)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// # 3. PostgreSQL
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	// # 4. Migrations
	if err := migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	// # 5. Session Store
	sessions, closeSessions, err := newSessionStore(startupCtx, cfg, log)
	if err != nil {
		return fmt.Errorf("initialize session store: %w", err)
	}
	if closeSessions != nil {
		defer closeSessions()
	}

	// # 6. Document Store & DB-Auth
	store := docstore.NewPostgresStore(pool)
	dbAuth := dbauth.New(
		dbAuthConfigFrom(cfg),
		dbauth.NewPostgresProvisioner(pool),
		dbauth.NewPostgresAuthStore(pool),
		log,
	)

	// # 7. Events, Mailer, Account Service
	bus := events.NewBus()
	mail := mailer.NewLogMailer(log, cfg.TestMode.NoEmail)

	users := userservice.New(
		store, sessions, dbAuth, bus, mail, log,
		userserviceConfigFrom(cfg),
		userservice.NewRetryLimiter(),
	)

	// # 8. Authentication Strategies & HTTP Adapter
	strategies := authstrategies.New(sessions, users, cfg.DBServer.PublicURL, log)
	jwtIssuer := httpapi.NewJWTIssuer(cfg.HTTPAPI.JWTSecret)

	liveness, readiness := httpapi.NewHealthHandlers(httpapi.HealthDependencies{
		CheckDatabase: func() error { return pgstore.Ping(context.Background(), pool) },
	}, log)

	handlers := httpapi.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Session:   httpapi.NewSessionHandler(users, strategies, jwtIssuer),
		Account:   httpapi.NewAccountHandler(users),
	}

	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	server := httpapi.NewServer(appCtx, cfg, log, jwtIssuer, strategies, handlers)

	// # 9. Lifecycle Handling
	shutdownErr := make(chan error, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdownErr <- fmt.Errorf("http_server_crash: %w", err)
		}
	}()

	log.Info("yomira_server_running", slog.String("port", cfg.ServerPort))

	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-shutdownErr:
		return err
	}

	appCancel()

	log.Info("shutting_down_server", slog.Duration("timeout", constants.ShutdownTimeout))
	if err := server.Shutdown(constants.ShutdownTimeout); err != nil {
		return fmt.Errorf("server_shutdown_failed: %w", err)
	}

	log.Info("graceful_shutdown_complete")
	return nil
}

// newSessionStore selects the session.adapter backing [sessionstore.Store]
// (spec.md §6 session.adapter). The returned closer is nil when the
// adapter owns no external connection to release.
func newSessionStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (sessionstore.Store, func(), error) {
	switch cfg.Session.Adapter {
	case "file":
		store, err := sessionstore.NewFileStore(cfg.Session.FileSessionsRoot)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil

	case "redis":
		redisURL := redisURLFrom(cfg.Session)
		client, err := redisstore.NewClient(ctx, redisURL, log)
		if err != nil {
			return nil, nil, err
		}
		return sessionstore.NewRedisStore(client), func() {
			log.Info("closing redis client")
			if cerr := client.Close(); cerr != nil {
				log.Error("redis close error", slog.Any("error", cerr))
			}
		}, nil

	default:
		return sessionstore.NewMemoryStore(), nil, nil
	}
}

// redisURLFrom builds a redis:// URL from the session config's
// discrete host/password/db fields, since [redisstore.NewClient] only
// accepts a connection URL.
func redisURLFrom(cfg config.SessionConfig) string {
	u := url.URL{Scheme: "redis", Host: cfg.RedisAddr, Path: "/" + strconv.Itoa(cfg.RedisDB)}
	if cfg.RedisPassword != "" {
		u.User = url.UserPassword("", cfg.RedisPassword)
	}
	return u.String()
}

// dbAuthConfigFrom projects the platform config tree into [dbauth.Config].
func dbAuthConfigFrom(cfg *config.Config) dbauth.Config {
	model := make(map[string]dbauth.ModelConfig, len(cfg.UserDBs.Model))
	for name, entry := range cfg.UserDBs.Model {
		model[name] = dbauth.ModelConfig{
			Permissions: entry.Permissions,
			AdminRoles:  entry.AdminRoles,
			MemberRoles: entry.MemberRoles,
			DesignDocs:  entry.DesignDocs,
		}
	}

	out := dbauth.Config{
		Model:             model,
		DefaultPrivateDBs: cfg.UserDBs.DefaultDBsPrivate,
		DefaultSharedDBs:  cfg.UserDBs.DefaultDBsShared,
		PrivatePrefix:     cfg.UserDBs.PrivatePrefix,
		DesignDocDir:      cfg.UserDBs.DesignDocDir,
	}
	out.DefaultSecurityRoles.Admins = cfg.UserDBs.DefaultSecurityRoles.Admins
	out.DefaultSecurityRoles.Members = cfg.UserDBs.DefaultSecurityRoles.Members
	return out
}

// userserviceConfigFrom projects the platform config tree into the
// narrower [userservice.Config] the account service actually consumes.
func userserviceConfigFrom(cfg *config.Config) userservice.Config {
	return userservice.Config{
		Security: userservice.SecurityConfig{
			DefaultRoles:           cfg.Security.DefaultRoles,
			UserActivityLogSize:    cfg.Security.UserActivityLogSize,
			InviteOnlyRegistration: cfg.Security.InviteOnlyRegistration,
			MaxFailedLogins:        cfg.Security.MaxFailedLogins,
			LockoutTime:            cfg.Security.LockoutTime,
			SoftLock:               cfg.Security.SoftLock,
			TokenLife:              cfg.Security.TokenLife,
			SessionLife:            cfg.Security.SessionLife,
		},
		Local: userservice.LocalConfig{
			UsernameKeys:        cfg.Local.UsernameKeys,
			UsernameField:       cfg.Local.UsernameField,
			SendConfirmEmail:    cfg.Local.SendConfirmEmail,
			RequireEmailConfirm: cfg.Local.RequireEmailConfirm,
			UUIDAsID:            cfg.Local.UUIDAsID,
			PhoneRegexp:         cfg.Local.PhoneRegexp,
		},
		DBServer: userservice.DBServerConfig{
			PublicURL: cfg.DBServer.PublicURL,
			TypeField: cfg.DBServer.TypeField,
		},
		Session: userservice.SessionConfig{
			ProfileMapping: cfg.Session.ProfileMapping,
		},
		UserDBs: userservice.UserDBsConfig{
			DefaultDBsPrivate: cfg.UserDBs.DefaultDBsPrivate,
			DefaultDBsShared:  cfg.UserDBs.DefaultDBsShared,
		},
	}
}
