package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	AllowedOrigins  []string
	DatabaseURL     string
	DatabaseDriver  string
	FetchCooldown   time.Duration
	FetchRate       float64
	FetchBurst      int
	CacheSize       int
	MaxRows         int
	Separator       string
	WatchURLs       []string
	RefreshInterval time.Duration
	SeqURL          string
	LogLevel        slog.Level
	Artifact        ArtifactConfig
}

// ArtifactConfig points at the S3-compatible bucket CSV exports are copied
// to. Exports stay local when Enabled is false.
type ArtifactConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Load reads the environment, after loading .env from the working
// directory if there is one.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port := firstNonEmpty(os.Getenv("PORT"), "8080")

	driver := firstNonEmpty(os.Getenv("DATABASE_DRIVER"), "postgres")
	if driver != "postgres" && driver != "pgx" {
		return nil, fmt.Errorf("DATABASE_DRIVER must be postgres or pgx, got %q", driver)
	}

	cooldown, err := durationEnv("FETCH_COOLDOWN", time.Second)
	if err != nil {
		return nil, err
	}
	interval, err := durationEnv("REFRESH_INTERVAL", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		return nil, fmt.Errorf("REFRESH_INTERVAL must be positive, got %v", interval)
	}

	rate := 1.0
	if raw := strings.TrimSpace(os.Getenv("FETCH_RATE")); raw != "" {
		rate, err = strconv.ParseFloat(raw, 64)
		if err != nil || rate <= 0 {
			return nil, fmt.Errorf("FETCH_RATE must be a positive number, got %q", raw)
		}
	}
	burst, err := intEnv("FETCH_BURST", 5)
	if err != nil {
		return nil, err
	}
	cacheSize, err := intEnv("CACHE_SIZE", 128)
	if err != nil {
		return nil, err
	}
	maxRows, err := intEnv("MAX_ROWS", 100_000)
	if err != nil {
		return nil, err
	}
	var level slog.Level
	if raw := strings.TrimSpace(os.Getenv("LOG_LEVEL")); raw != "" {
		if err := level.UnmarshalText([]byte(raw)); err != nil {
			return nil, fmt.Errorf("LOG_LEVEL: %w", err)
		}
	}

	return &Config{
		Port:            port,
		AllowedOrigins:  splitList(firstNonEmpty(os.Getenv("ALLOWED_ORIGINS"), "http://localhost:8080")),
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DatabaseDriver:  driver,
		FetchCooldown:   cooldown,
		FetchRate:       rate,
		FetchBurst:      burst,
		CacheSize:       cacheSize,
		MaxRows:         maxRows,
		Separator:       firstNonEmpty(os.Getenv("SEPARATOR"), "."),
		WatchURLs:       splitList(os.Getenv("WATCH_URLS")),
		RefreshInterval: interval,
		SeqURL:          strings.TrimSpace(os.Getenv("SEQ_URL")),
		LogLevel:        level,
		Artifact:        loadArtifactConfig(),
	}, nil
}

func loadArtifactConfig() ArtifactConfig {
	endpoint := strings.TrimSpace(os.Getenv("ARTIFACT_S3_ENDPOINT"))
	useSSL := true
	if raw := strings.TrimSpace(os.Getenv("ARTIFACT_S3_USE_SSL")); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			useSSL = v
		}
	}
	return ArtifactConfig{
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(os.Getenv("ARTIFACT_S3_REGION"), "us-east-1"),
		AccessKey: firstNonEmpty(os.Getenv("ARTIFACT_S3_ACCESS_KEY"), os.Getenv("MINIO_ROOT_USER")),
		SecretKey: firstNonEmpty(os.Getenv("ARTIFACT_S3_SECRET_KEY"), os.Getenv("MINIO_ROOT_PASSWORD")),
		Bucket:    firstNonEmpty(os.Getenv("ARTIFACT_S3_BUCKET"), "restable-exports"),
		UseSSL:    useSSL,
	}
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s must be a non-negative duration, got %q", key, raw)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, raw)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
