package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"hotel_pricesheet/internal/adapters/observability"
	redisad "hotel_pricesheet/internal/adapters/redis"
	"hotel_pricesheet/internal/adapters/scraper"
	"hotel_pricesheet/internal/adapters/xlsx"
	"hotel_pricesheet/internal/app"
	"hotel_pricesheet/internal/domain"
	"hotel_pricesheet/internal/shared"
	mysqlrepo "hotel_pricesheet/internal/storage/mysql"
)

// job is one batch to reconcile: a local JSON file or a scraper batch id.
type job struct {
	file    string
	batchID string
}

func (j job) String() string {
	if j.file != "" {
		return j.file
	}
	return "batch:" + j.batchID
}

func readFile(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p map[string]any
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return p, nil
}

func main() {
	batchIDs := flag.String("batch-id", "", "comma-separated scraper batch ids to fetch and reconcile")
	updateMode := flag.Bool("update", false, "overwrite prices only when they changed")
	force := flag.Bool("force-refresh", false, "rewrite date labels of blocks that already have them")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: reconciler [flags] [batch.json ...]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cfg := shared.Load()
	if *updateMode {
		cfg.UpdateMode = true
	}
	if *force {
		cfg.ForceRefresh = true
	}

	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	var jobs []job
	for _, f := range flag.Args() {
		jobs = append(jobs, job{file: f})
	}
	for _, id := range strings.Split(*batchIDs, ",") {
		if id = strings.TrimSpace(id); id != "" {
			jobs = append(jobs, job{batchID: id})
		}
	}
	if len(jobs) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	log.Info().
		Str("template", cfg.TemplatePath).
		Str("output_mode", cfg.OutputMode).
		Int("workers", cfg.Workers).
		Int("batches", len(jobs)).
		Msg("reconciler starting")

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
		runs = mysqlrepo.New(db)
	}

	var cache domain.Cache = app.NopCache{}
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := rc.Ping(ctx); err == nil {
			defer rc.Close()
			cache = rc
		} else {
			log.Warn().Err(err).Msg("redis unreachable, caching disabled")
		}
	}

	var source domain.BatchSource
	if strings.TrimSpace(*batchIDs) != "" {
		c, err := scraper.New(cfg.ScraperBase, cfg.ScraperKey, cfg.ScraperRPS)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize scraper client")
		}
		source = c
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

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup
	var failed atomic.Int32

	for _, j := range jobs {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Error().Err(err).Msg("stopping before all batches were started")
			failed.Add(1)
			break
		}
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			defer sem.Release(1)

			var payload map[string]any
			var err error
			if j.file != "" {
				payload, err = readFile(j.file)
			} else {
				payload, err = source.GetBatch(ctx, j.batchID)
			}
			if err != nil {
				failed.Add(1)
				log.Error().Err(err).Str("batch", j.String()).Msg("batch unavailable")
				return
			}

			b, rejects, err := app.MapBatch(payload)
			if err != nil {
				failed.Add(1)
				log.Error().Err(err).Str("batch", j.String()).Msg("batch malformed")
				return
			}
			for _, r := range rejects {
				log.Warn().Str("batch", j.String()).Int("index", r.Index).Str("hotel", r.Hotel).
					Str("reason", r.Reason).Msg("offer rejected")
			}

			res := svc.Reconcile(ctx, b)
			if !res.Success {
				failed.Add(1)
				log.Error().Str("batch", j.String()).Str("run_id", res.RunID).Msg(res.Message)
				return
			}
			log.Info().Str("batch", j.String()).Str("run_id", res.RunID).Str("path", res.FilePath).Msg(res.Message)
		}(j)
	}

	wg.Wait()
	if n := failed.Load(); n > 0 {
		log.Error().Int32("failed", n).Int("batches", len(jobs)).Msg("reconciliation finished with failures")
		os.Exit(1)
	}
	log.Info().Int("batches", len(jobs)).Msg("reconciliation completed")
}
