// Package config loads service configuration from the environment, an
// optional .env file and an optional YAML category file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	apperrors "github.com/GriffinCanCode/adscan/internal/errors"
	"github.com/GriffinCanCode/adscan/internal/similarity"
)

// Reference sources.
const (
	SourceDir  = "dir"
	SourceHTTP = "http"
	SourceS3   = "s3"
)

// S3 addresses the reference bucket when REFERENCE_SOURCE=s3.
type S3 struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type Config struct {
	HTTPAddr string `validate:"required"`
	GRPCAddr string `validate:"required"`

	ReferenceSource string   `validate:"oneof=dir http s3"`
	ReferenceRoot   string   `validate:"required"`
	Advertisers     []string `validate:"unique,dive,required,excludesall=/\\"`
	CategoriesFile  string

	NormalThreshold  float64            `validate:"gte=0,lte=1"`
	DefaultThreshold float64            `validate:"gte=0,lte=1"`
	Thresholds       map[string]float64 `validate:"dive,gte=0,lte=1"`
	Weights          similarity.Weights

	SampleInterval     time.Duration `validate:"gt=0"`
	SampleDeadline     time.Duration `validate:"gt=0"`
	SampleSkipDistance int           `validate:"gte=-1,lte=64"`

	LoadConcurrency int           `validate:"gte=1,lte=64"`
	CacheSize       int           `validate:"gte=0"`
	RedisURL        string        `validate:"omitempty,url"`
	CacheTTL        time.Duration `validate:"gte=0"`

	S3 S3

	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=text json"`
	LogFile   string
}

// Load reads .env if present, then the environment, then CATEGORIES_FILE,
// and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8000"),
		GRPCAddr:        getEnv("GRPC_ADDR", ":50051"),
		ReferenceSource: getEnv("REFERENCE_SOURCE", SourceDir),
		ReferenceRoot:   getEnv("REFERENCE_ROOT", "image_database"),
		Advertisers:     getEnvList("ADVERTISERS", []string{"stake"}),
		CategoriesFile:  getEnv("CATEGORIES_FILE", ""),

		NormalThreshold:  getEnvFloat("NORMAL_THRESHOLD", 0.25),
		DefaultThreshold: getEnvFloat("DEFAULT_THRESHOLD", 0.25),
		Thresholds:       map[string]float64{"stake": 0.35},
		Weights: similarity.Weights{
			Pixel:      getEnvFloat("WEIGHT_PIXEL", similarity.DefaultPixelWeight),
			Structural: getEnvFloat("WEIGHT_STRUCTURAL", similarity.DefaultStructuralWeight),
			Color:      getEnvFloat("WEIGHT_COLOR", similarity.DefaultColorWeight),
		},

		SampleInterval:     getEnvMillis("SAMPLE_INTERVAL_MS", 2000),
		SampleDeadline:     getEnvMillis("SAMPLE_DEADLINE_MS", 5000),
		SampleSkipDistance: getEnvInt("SAMPLE_SKIP_DISTANCE", -1),

		LoadConcurrency: getEnvInt("LOAD_CONCURRENCY", 4),
		CacheSize:       getEnvInt("CACHE_SIZE", 1024),
		RedisURL:        getEnv("REDIS_URL", ""),
		CacheTTL:        time.Duration(getEnvInt("CACHE_TTL_SEC", 3600)) * time.Second,

		S3: S3{
			Endpoint:  getEnv("S3_ENDPOINT", ""),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
			Bucket:    getEnv("S3_BUCKET", ""),
			UseSSL:    getEnvBool("S3_USE_SSL", false),
		},

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
		LogFile:   getEnv("LOG_FILE", ""),
	}

	if cfg.CategoriesFile != "" {
		if err := cfg.applyCategoriesFile(cfg.CategoriesFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return apperrors.Wrap(err, apperrors.ConfigInvalid, "invalid configuration")
	}
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	for _, a := range c.Advertisers {
		if a == "." || a == ".." {
			return apperrors.Newf(apperrors.ConfigInvalid, "advertiser %q is not a category name", a)
		}
	}
	if c.ReferenceSource == SourceS3 && (c.S3.Endpoint == "" || c.S3.Bucket == "") {
		return apperrors.New(apperrors.ConfigInvalid, "REFERENCE_SOURCE=s3 requires S3_ENDPOINT and S3_BUCKET")
	}
	if c.ReferenceSource == SourceHTTP && !strings.HasPrefix(c.ReferenceRoot, "http://") && !strings.HasPrefix(c.ReferenceRoot, "https://") {
		return apperrors.New(apperrors.ConfigInvalid, "REFERENCE_SOURCE=http requires an http(s) REFERENCE_ROOT")
	}
	return nil
}

// CategoryThresholds returns the explicit per-category thresholds, including
// the normal category.
func (c *Config) CategoryThresholds() map[string]float64 {
	out := make(map[string]float64, len(c.Thresholds)+1)
	for k, v := range c.Thresholds {
		out[k] = v
	}
	out["normal"] = c.NormalThreshold
	return out
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvMillis(key string, def int) time.Duration {
	return time.Duration(getEnvInt(key, def)) * time.Millisecond
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}
