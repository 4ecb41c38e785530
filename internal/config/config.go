package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	LogSource LogSourceConfig
	Influx    InfluxConfig
	AI        AIConfig
	Slack     SlackConfig
	Postgres  PostgresConfig
	Pipeline  PipelineConfig
}

type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

type AuthConfig struct {
	JWTSecret string
}

type LogSourceConfig struct {
	BaseURL      string
	APIToken     string
	FetchTimeout time.Duration
	MaxPages     int
}

type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

type AIConfig struct {
	APIKey        string
	EmbedModel    string
	GenerateModel string
}

type SlackConfig struct {
	BotToken  string
	ChannelID string
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

// PipelineConfig - 파이프라인 동작 파라미터
// 기본값은 스펙의 고정 윈도우/타임아웃을 따른다
type PipelineConfig struct {
	FreshnessWindow   time.Duration // 이 안에 lastSeen이 있으면 재수집 생략
	LookbackWindow    time.Duration // 워터마크가 없을 때 최초 수집 범위
	MetricWindow      time.Duration // 리포트/예측에 사용할 메트릭 조회 범위
	EnrichmentWorkers int
	EmbedTimeout      time.Duration
	GenerateTimeout   time.Duration
}

func Load() Config {
	return Config{
		Server: ServerConfig{
			Addr:           getenv("SERVER_ADDR", ":8080"),
			AllowedOrigins: splitCSV(os.Getenv("ALLOWED_ORIGINS")),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
		},
		LogSource: LogSourceConfig{
			BaseURL:      getenv("LOG_SOURCE_URL", "http://log-store.pulsewatch.svc:9428"),
			APIToken:     os.Getenv("LOG_SOURCE_TOKEN"),
			FetchTimeout: getenvDuration("LOG_FETCH_TIMEOUT", 30*time.Second),
			MaxPages:     getenvInt("LOG_FETCH_MAX_PAGES", 10),
		},
		Influx: InfluxConfig{
			URL:    getenv("INFLUX_URL", "http://influxdb.pulsewatch.svc:8086"),
			Token:  os.Getenv("INFLUX_TOKEN"),
			Org:    getenv("INFLUX_ORG", "pulsewatch"),
			Bucket: getenv("INFLUX_BUCKET", "infra-metrics"),
		},
		AI: AIConfig{
			APIKey:        os.Getenv("AI_API_KEY"),
			EmbedModel:    getenv("AI_EMBED_MODEL", "text-embedding-004"),
			GenerateModel: getenv("AI_GENERATE_MODEL", "gemini-2.0-flash"),
		},
		Slack: SlackConfig{
			BotToken:  os.Getenv("SLACK_BOT_TOKEN"),
			ChannelID: os.Getenv("SLACK_CHANNEL_ID"),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
		Pipeline: PipelineConfig{
			FreshnessWindow:   getenvDuration("FRESHNESS_WINDOW", 2*time.Hour),
			LookbackWindow:    getenvDuration("LOOKBACK_WINDOW", 24*time.Hour),
			MetricWindow:      getenvDuration("METRIC_WINDOW", 12*time.Hour),
			EnrichmentWorkers: getenvInt("ENRICHMENT_WORKERS", 5),
			EmbedTimeout:      getenvDuration("EMBED_TIMEOUT", 30*time.Second),
			GenerateTimeout:   getenvDuration("GENERATE_TIMEOUT", 90*time.Second),
		},
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func splitCSV(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
