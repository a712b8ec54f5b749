package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	AnalysisTimeout time.Duration

	// Remote engine.
	EngineBaseURL           string
	EngineProject           string
	EngineCredentialsJSON   []byte
	EngineCredentialsFile   string
	EngineTimeout           time.Duration
	EngineMaxConcurrency    int
	EngineMaxVectorFeatures int

	// In-process result cache, optionally backed by Redis.
	CacheSize     int
	CacheTTL      time.Duration
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Report publishing to Kafka.
	PublishEnabled bool
	KafkaBrokers   []string
	ReportTopic    string

	// Report archive in MinIO / S3.
	ArchiveEnabled bool
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioSecure    bool
	ArchiveBucket  string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	engineTimeout, err := parsePositiveDuration("ENGINE_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	analysisTimeout, err := parsePositiveDuration("ANALYSIS_TIMEOUT", "5m")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parsePositiveDuration("CACHE_TTL", "1h")
	if err != nil {
		return nil, err
	}

	maxConcurrency, err := parseIntInRange("ENGINE_MAX_CONCURRENCY", 4, 1, 64)
	if err != nil {
		return nil, err
	}
	maxVectors, err := parseIntInRange("ENGINE_MAX_VECTOR_FEATURES", 500, 0, 100000)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseIntInRange("CACHE_SIZE", 256, 1, 1000000)
	if err != nil {
		return nil, err
	}
	redisDB, err := parseIntInRange("REDIS_DB", 0, 0, 15)
	if err != nil {
		return nil, err
	}

	credentials, err := decodeCredentials(os.Getenv("ENGINE_CREDENTIALS_JSON"))
	if err != nil {
		return nil, err
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	reportTopic := os.Getenv("REPORT_TOPIC")
	minioEndpoint := os.Getenv("MINIO_ENDPOINT")

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		AnalysisTimeout: analysisTimeout,

		EngineBaseURL:           strings.TrimRight(sharedcfg.EnvOrDefault("ENGINE_BASE_URL", "https://earthengine.googleapis.com"), "/"),
		EngineProject:           os.Getenv("ENGINE_PROJECT"),
		EngineCredentialsJSON:   credentials,
		EngineCredentialsFile:   os.Getenv("ENGINE_CREDENTIALS_FILE"),
		EngineTimeout:           engineTimeout,
		EngineMaxConcurrency:    maxConcurrency,
		EngineMaxVectorFeatures: maxVectors,

		CacheSize:     cacheSize,
		CacheTTL:      cacheTTL,
		RedisEnabled:  redisAddr != "",
		RedisAddr:     redisAddr,
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		PublishEnabled: reportTopic != "",
		KafkaBrokers:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		ReportTopic:    reportTopic,

		ArchiveEnabled: minioEndpoint != "",
		MinioEndpoint:  minioEndpoint,
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioSecure:    os.Getenv("MINIO_SECURE") == "true",
		ArchiveBucket:  sharedcfg.EnvOrDefault("ARCHIVE_BUCKET", "burn-severity-reports"),
	}

	if cfg.EngineProject == "" {
		return nil, errors.New("ENGINE_PROJECT is required")
	}
	if len(cfg.EngineCredentialsJSON) > 0 && cfg.EngineCredentialsFile != "" {
		return nil, errors.New("set only one of ENGINE_CREDENTIALS_JSON and ENGINE_CREDENTIALS_FILE")
	}
	if cfg.PublishEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when REPORT_TOPIC is set")
	}
	if cfg.ArchiveEnabled && (cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "") {
		return nil, errors.New("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when MINIO_ENDPOINT is set")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseIntInRange(key string, def, lo, hi int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be %d-%d", key, lo, hi)
	}
	return n, nil
}

// decodeCredentials accepts a service-account key as raw JSON or base64.
func decodeCredentials(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if strings.HasPrefix(s, "{") {
		return []byte(s), nil
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.New("invalid ENGINE_CREDENTIALS_JSON: expected JSON or base64")
	}
	return data, nil
}
