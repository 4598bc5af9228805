package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string
	Port   string

	// DatabaseURL is optional; when set, finished batch jobs are mirrored
	// into Postgres for history queries.
	DatabaseURL string

	ReplicateAPIToken string
	ReplicateBaseURL  string
	ReplicateModel    string

	StoragePath     string
	DownloadBaseURL string

	BatchWorkers      int
	QueueCapacity     int
	BatchTaskTimeout  time.Duration
	PollInterval      time.Duration
	PredictionTimeout time.Duration

	ZipRetention  time.Duration
	JobRetention  time.Duration
	SweepInterval time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	CORSOrigins      []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		ReplicateAPIToken: os.Getenv("REPLICATE_API_TOKEN"),
		ReplicateBaseURL:  getEnv("REPLICATE_BASE_URL", "https://api.replicate.com/v1"),
		ReplicateModel:    os.Getenv("REPLICATE_MODEL"),
		StoragePath:       getEnv("STORAGE_PATH", "./storage"),
		DownloadBaseURL:   getEnv("DOWNLOAD_BASE_URL", "/downloads"),
		BatchWorkers:      getEnvInt("BATCH_WORKERS", 3),
		QueueCapacity:     getEnvInt("QUEUE_CAPACITY", 64),
		BatchTaskTimeout:  getEnvDuration("BATCH_TASK_TIMEOUT", 30*time.Minute),
		PollInterval:      getEnvDuration("PREDICTION_POLL_INTERVAL", 2*time.Second),
		PredictionTimeout: getEnvDuration("PREDICTION_TIMEOUT", 5*time.Minute),
		ZipRetention:      getEnvDuration("ZIP_RETENTION", 6*time.Hour),
		JobRetention:      getEnvDuration("JOB_RETENTION", time.Hour),
		SweepInterval:     getEnvDuration("SWEEP_INTERVAL", 15*time.Minute),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSOrigins:       splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
	}

	if cfg.BatchWorkers < 1 {
		return nil, fmt.Errorf("BATCH_WORKERS must be at least 1")
	}
	if cfg.QueueCapacity < 1 {
		return nil, fmt.Errorf("QUEUE_CAPACITY must be at least 1")
	}
	if cfg.StoragePath == "" {
		return nil, fmt.Errorf("STORAGE_PATH is required")
	}

	return cfg, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
