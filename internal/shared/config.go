package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	OutputInPlace     = "inplace"
	OutputTimestamped = "timestamped"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string

	TemplatePath   string
	TemplateSheet  string
	OutputMode     string
	OutputDir      string
	AliasTablePath string
	SaveAttempts   int
	SaveDelay      time.Duration
	UpdateMode     bool
	ForceRefresh   bool

	ScraperBase string
	ScraperKey  string
	ScraperRPS  int
	Workers     int
	CacheTTL    time.Duration
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	flag := func(k string, def bool) bool {
		if v := os.Getenv(k); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				return b
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MySQLDSN:    os.Getenv("MYSQL_DSN"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),

		TemplatePath:   env("TEMPLATE_PATH", "template.xlsx"),
		TemplateSheet:  env("TEMPLATE_SHEET", ""),
		OutputMode:     strings.ToLower(env("OUTPUT_MODE", OutputTimestamped)),
		OutputDir:      env("OUTPUT_DIR", "."),
		AliasTablePath: env("ALIAS_TABLE_PATH", ""),
		SaveAttempts:   atoi("SAVE_ATTEMPTS", 10),
		SaveDelay:      time.Duration(atoi("SAVE_DELAY_SECONDS", 5)) * time.Second,
		UpdateMode:     flag("UPDATE_MODE", false),
		ForceRefresh:   flag("FORCE_REFRESH", false),

		ScraperBase: env("SCRAPER_BASE_URL", "http://localhost:3000"),
		ScraperKey:  env("SCRAPER_API_KEY", ""),
		ScraperRPS:  atoi("SCRAPER_RPS", 5),
		Workers:     atoi("WORKERS", 4),
		CacheTTL:    time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
	}
	if c.OutputMode != OutputInPlace && c.OutputMode != OutputTimestamped {
		log.Warn().Str("mode", c.OutputMode).Msg("unknown OUTPUT_MODE, using timestamped")
		c.OutputMode = OutputTimestamped
	}
	if c.MySQLDSN == "" {
		log.Warn().Msg("MYSQL_DSN is empty, run history disabled")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
