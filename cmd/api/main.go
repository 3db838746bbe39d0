package main

import (
	"context"
	"database/sql"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "hotel_pricesheet/internal/adapters/http_server"
	"hotel_pricesheet/internal/adapters/observability"
	redisad "hotel_pricesheet/internal/adapters/redis"
	"hotel_pricesheet/internal/adapters/xlsx"
	"hotel_pricesheet/internal/app"
	"hotel_pricesheet/internal/domain"
	"hotel_pricesheet/internal/shared"
	mysqlrepo "hotel_pricesheet/internal/storage/mysql"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	observability.Serve(cfg.MetricsAddr)

	// run history is optional
	var runs domain.RunRepository
	if cfg.MySQLDSN != "" {
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("sql.Open failed")
		}
		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		defer db.Close()
		log.Info().Msg("database connection ok")
		runs = mysqlrepo.New(db)
	}

	var cache domain.Cache = app.NopCache{}
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, caching disabled")
		} else {
			defer rc.Close()
			cache = rc
		}
	}

	aliases := app.NewAliasService(xlsx.AliasReader{}, cache, cfg.AliasTablePath, cfg.CacheTTL)
	svc := app.NewReconcileService(
		xlsx.NewGateway(cfg.SaveAttempts, cfg.SaveDelay),
		runs, aliases, cache,
		app.ReconcileConfig{
			TemplatePath: cfg.TemplatePath,
			Sheet:        cfg.TemplateSheet,
			OutputMode:   cfg.OutputMode,
			OutputDir:    cfg.OutputDir,
			UpdateMode:   cfg.UpdateMode,
			ForceRefresh: cfg.ForceRefresh,
		},
		log.Logger,
	)
	q := app.NewQueryService(runs, cache, cfg.CacheTTL)

	// http
	srv := server.New()
	srv.Mount("/metrics", observability.MetricsHandler(observability.InitRegistry()))
	srv.MountHandlers(&server.Handlers{R: svc, Q: q, A: aliases})

	log.Info().Str("addr", cfg.HTTPAddr).Str("template", cfg.TemplatePath).Msg("API listening")
	if err := srv.Serve(ctx, cfg.HTTPAddr, 30*time.Second); err != nil {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
