// Command appserver runs the actor control plane HTTP API described in
// spec.md: actor lifecycle, messaging intake, worker provisioning, and
// authorization, over either an in-memory or PostgreSQL-backed store set.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	app "github.com/tacc-cloud/abaco/internal/app"
	"github.com/tacc-cloud/abaco/internal/app/httpapi"
	"github.com/tacc-cloud/abaco/internal/app/storage"
	"github.com/tacc-cloud/abaco/internal/app/storage/postgres"
	"github.com/tacc-cloud/abaco/internal/platform/database"
	"github.com/tacc-cloud/abaco/internal/platform/migrations"
	"github.com/tacc-cloud/abaco/pkg/config"
	"github.com/tacc-cloud/abaco/pkg/logger"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (defaults to config or :8080)")
	dsn := flag.String("dsn", "", "PostgreSQL DSN (overrides config/env; in-memory storage when empty)")
	configPath := flag.String("config", "", "path to a YAML configuration file")
	runMigrations := flag.Bool("migrate", true, "run embedded database migrations on startup (ignored for in-memory storage)")
	apiTokensFlag := flag.String("api-tokens", "", "comma-separated bearer tokens for HTTP authentication")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	appLog := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})

	stores := storage.Stores{}
	dsnVal := resolveDSN(*dsn, cfg)

	var closeDB func()
	if dsnVal != "" {
		rootCtx := context.Background()
		sqlDB, err := database.Open(rootCtx, dsnVal)
		if err != nil {
			log.Fatalf("connect to postgres: %v", err)
		}
		configurePool(sqlDB, cfg)
		if *runMigrations {
			if err := migrations.Apply(rootCtx, sqlDB); err != nil {
				log.Fatalf("apply migrations: %v", err)
			}
		}
		stores = postgres.NewStores(sqlDB)
		closeDB = func() { sqlDB.Close() }
	} else {
		appLog.Warn("DATABASE_DSN not set; using in-memory storage (state is lost on restart)")
	}

	application, err := app.New(stores, appLog, app.WithRuntimeConfig(app.RuntimeConfig{
		WebCase:         cfg.Web.Case,
		ChannelBackend:  cfg.Channel.Backend,
		RedisURL:        cfg.Channel.RedisURL,
		RedisPrefix:     cfg.Channel.RedisPrefix,
		WorkerSweepCron: cfg.Worker.SweepCron,
		DisableSweep:    cfg.Worker.SweepDisabled,
	}))
	if err != nil {
		log.Fatalf("initialise application: %v", err)
	}

	listenAddr := determineAddr(*addr, cfg)
	tokens := resolveAPITokens(*apiTokensFlag, cfg)

	httpService := httpapi.NewService(application.Actors, httpapi.Options{
		Addr:           listenAddr,
		Tokens:         tokens,
		JWTSecret:      cfg.Auth.JWTSecret,
		RateLimitRPS:   50,
		RateLimitBurst: 100,
	}, appLog)
	application.Attach(httpService)

	ctx := context.Background()
	if err := application.Start(ctx); err != nil {
		log.Fatalf("start application: %v", err)
	}
	appLog.Infof("actor control plane listening on %s", listenAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := application.Stop(shutdownCtx); err != nil {
		appLog.WithError(err).Error("shutdown")
	}
	if closeDB != nil {
		closeDB()
	}
}

func loadConfig(path string) (*config.Config, error) {
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		return config.LoadFile(trimmed)
	}
	return config.Load()
}

func determineAddr(flagAddr string, cfg *config.Config) string {
	if addr := strings.TrimSpace(flagAddr); addr != "" {
		return addr
	}
	host := strings.TrimSpace(cfg.Server.Host)
	port := cfg.Server.Port
	if port == 0 {
		return ":8080"
	}
	if host == "" {
		host = "0.0.0.0"
	}
	return host + ":" + strconv.Itoa(port)
}

func configurePool(db interface {
	SetMaxOpenConns(int)
	SetMaxIdleConns(int)
	SetConnMaxLifetime(time.Duration)
}, cfg *config.Config) {
	if cfg.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)
	}
}

func resolveDSN(flagDSN string, cfg *config.Config) string {
	if trimmed := strings.TrimSpace(flagDSN); trimmed != "" {
		return trimmed
	}
	if envDSN := strings.TrimSpace(os.Getenv("DATABASE_URL")); envDSN != "" {
		return envDSN
	}
	if cfg.Database.DSN != "" {
		return strings.TrimSpace(cfg.Database.DSN)
	}
	if cfg.Database.Host != "" && cfg.Database.Name != "" {
		return cfg.Database.ConnectionString()
	}
	return ""
}

func resolveAPITokens(flagTokens string, cfg *config.Config) []string {
	var tokens []string
	tokens = append(tokens, splitTokens(flagTokens)...)
	tokens = append(tokens, splitTokens(os.Getenv("API_TOKENS"))...)
	if token := strings.TrimSpace(os.Getenv("API_TOKEN")); token != "" {
		tokens = append(tokens, token)
	}
	tokens = append(tokens, cfg.Auth.Tokens...)
	return tokens
}

func splitTokens(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	trimmed := make([]string, 0, len(parts))
	for _, part := range parts {
		if p := strings.TrimSpace(part); p != "" {
			trimmed = append(trimmed, p)
		}
	}
	return trimmed
}
