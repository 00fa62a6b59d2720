package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	DB          DBConfig          `mapstructure:"db"`
	Cron        CronConfig        `mapstructure:"cron"`
	Refresh     RefreshConfig     `mapstructure:"refresh"`
	Fetch       FetchConfig       `mapstructure:"fetch"`
	Sources     SourcesConfig     `mapstructure:"sources"`
	StatusCache StatusCacheConfig `mapstructure:"status_cache"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	Timezone string `mapstructure:"timezone"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Refresh    string `mapstructure:"refresh"`
	RunOnStart bool   `mapstructure:"run_on_start"`
}

type RefreshConfig struct {
	CycleTimeout time.Duration `mapstructure:"cycle_timeout"`
	Parallel     bool          `mapstructure:"parallel"`
	RunHistory   int           `mapstructure:"run_history"`
}

// FetchConfig is shared by every source adapter.
type FetchConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	WarmupTimeout     time.Duration `mapstructure:"warmup_timeout"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	InitialBackoff    time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	UserAgent         string        `mapstructure:"user_agent"`
	AcceptLanguage    string        `mapstructure:"accept_language"`
}

type SourcesConfig struct {
	Teater  SourceConfig `mapstructure:"teater"`
	Concert SourceConfig `mapstructure:"concert"`
}

type SourceConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	URL       string `mapstructure:"url"`
	HomeURL   string `mapstructure:"home_url"`
	MaxEvents int    `mapstructure:"max_events"`
}

type StatusCacheConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	Key           string        `mapstructure:"key"`
	TTL           time.Duration `mapstructure:"ttl"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("KV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.timezone", "Europe/Tallinn")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.dsn", "postgres://vpk@localhost:5432/kultuurivoog?sslmode=disable")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 2)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "Europe/Tallinn")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.refresh", "@every 6h")
	v.SetDefault("cron.run_on_start", true)
	v.SetDefault("refresh.cycle_timeout", "5m")
	v.SetDefault("refresh.parallel", false)
	v.SetDefault("refresh.run_history", 50)

	v.SetDefault("fetch.timeout", "20s")
	v.SetDefault("fetch.warmup_timeout", "10s")
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.initial_backoff", "2s")
	v.SetDefault("fetch.max_backoff", "8s")
	v.SetDefault("fetch.requests_per_second", 1.0)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("fetch.accept_language", "et-EE,et;q=0.9,en-US;q=0.8,en;q=0.7")

	v.SetDefault("sources.teater.enabled", true)
	v.SetDefault("sources.teater.url", "https://teater.ee/teatriinfo/mangukava/")
	v.SetDefault("sources.teater.home_url", "https://teater.ee/")
	v.SetDefault("sources.teater.max_events", 50)
	v.SetDefault("sources.concert.enabled", true)
	v.SetDefault("sources.concert.url", "https://concert.ee/")
	v.SetDefault("sources.concert.home_url", "")
	v.SetDefault("sources.concert.max_events", 40)

	// Empty redis_addr keeps the status cache in process memory.
	v.SetDefault("status_cache.redis_addr", "")
	v.SetDefault("status_cache.redis_db", 0)
	v.SetDefault("status_cache.key", "kultuurivoog:cycle_status")
	v.SetDefault("status_cache.ttl", "0s")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
