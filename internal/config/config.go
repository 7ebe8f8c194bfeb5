package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"httpupload/internal/domain/policy"
	"httpupload/internal/domain/slot"
	"httpupload/internal/pkg/validator"
	"httpupload/internal/storage/blob"
)

const (
	defaultAppEnv          = "dev"
	defaultHTTPAddr        = ":8080"
	defaultDatabaseURL     = "httpupload.db"
	defaultUploadRoot      = "./media/http_upload"
	defaultPutTimeout      = "360s"
	defaultShareTimeout    = "720h"
	defaultCleanupSchedule = "@every 10m"
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
	defaultPolicyCacheSize = "1024"
)

// Config is the complete service configuration. It is loaded once and passed
// to every component.
type Config struct {
	AppEnv      string `validate:"required"`
	HTTPAddr    string `validate:"required"`
	DatabaseURL string `validate:"required"`

	// UploadRoot is where blobs are stored, one directory per token.
	UploadRoot    string `validate:"required"`
	MaxPathLength int    `validate:"gt=0"`

	URLBase           string `validate:"omitempty,url"`
	ForceHTTPS        bool
	WebserverDownload bool
	MediaURL          string `validate:"required"`
	AddContentLength  bool

	PutTimeout   time.Duration `validate:"gt=0"`
	ShareTimeout time.Duration `validate:"gt=0"`

	// CleanupSchedule is a cron spec; empty disables scheduled cleanup.
	CleanupSchedule string

	AccessFile      string
	PolicyCacheSize int `validate:"gte=0"`

	CORSAllowedOrigins []string

	LogLevel  string `validate:"oneof=trace debug info warn error fatal panic disabled"`
	LogFormat string `validate:"oneof=json console text"`

	// Rules are loaded from AccessFile, or deny everything when unset.
	Rules []policy.Rule `validate:"-"`
}

// Load reads the configuration from the environment, after loading a .env
// file from the working directory if there is one.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads the configuration from the environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	var err error

	cfg.AppEnv = strings.ToLower(strings.TrimSpace(getEnv("APP_ENV", defaultAppEnv)))
	cfg.HTTPAddr = strings.TrimSpace(getEnv("HTTP_ADDR", defaultHTTPAddr))
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))

	cfg.UploadRoot = strings.TrimSpace(getEnv("UPLOAD_ROOT", defaultUploadRoot))
	cfg.MaxPathLength, err = parseIntEnv("UPLOAD_MAX_PATH_LENGTH", strconv.Itoa(blob.DefaultMaxPathLength))
	if err != nil {
		return nil, err
	}

	cfg.URLBase = strings.TrimSpace(getEnv("UPLOAD_URL_BASE", ""))
	cfg.ForceHTTPS = parseBoolEnv("UPLOAD_FORCE_HTTPS", "false")
	cfg.WebserverDownload = parseBoolEnv("UPLOAD_WEBSERVER_DOWNLOAD", "false")
	cfg.MediaURL = strings.TrimSpace(getEnv("UPLOAD_MEDIA_URL", slot.DefaultMediaURL))
	cfg.AddContentLength = parseBoolEnv("UPLOAD_ADD_CONTENT_LENGTH", "false")

	cfg.PutTimeout, err = parseDurationEnv("UPLOAD_PUT_TIMEOUT", defaultPutTimeout)
	if err != nil {
		return nil, err
	}
	cfg.ShareTimeout, err = parseDurationEnv("UPLOAD_SHARE_TIMEOUT", defaultShareTimeout)
	if err != nil {
		return nil, err
	}

	cfg.CleanupSchedule = strings.TrimSpace(getEnvAllowEmpty("CLEANUP_SCHEDULE", defaultCleanupSchedule))
	cfg.AccessFile = strings.TrimSpace(getEnv("UPLOAD_ACCESS_FILE", ""))
	cfg.PolicyCacheSize, err = parseIntEnv("UPLOAD_POLICY_CACHE_SIZE", defaultPolicyCacheSize)
	if err != nil {
		return nil, err
	}

	if extra := getEnv("CORS_ALLOWED_ORIGINS", ""); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
			}
		}
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", defaultLogLevel)))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(getEnv("LOG_FORMAT", defaultLogFormat)))

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	if cfg.AccessFile == "" {
		log.Warn().Msg("UPLOAD_ACCESS_FILE is not set, every slot request will be denied")
		cfg.Rules = policy.DenyAll()
	} else {
		cfg.Rules, err = policy.LoadFile(cfg.AccessFile)
		if err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// SlotSettings returns the settings consumed by the slot engine.
func (c *Config) SlotSettings() slot.Settings {
	return slot.Settings{
		URLBase:           c.URLBase,
		ForceHTTPS:        c.ForceHTTPS,
		WebserverDownload: c.WebserverDownload,
		MediaURL:          c.MediaURL,
		PutTimeout:        c.PutTimeout,
		ShareTimeout:      c.ShareTimeout,
		AddContentLength:  c.AddContentLength,
	}
}

// IsProduction reports whether APP_ENV names a production-like environment.
func (c *Config) IsProduction() bool {
	return isProdLike(c.AppEnv)
}

func validateConfig(cfg *Config) error {
	if err := validator.Check(cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.ShareTimeout <= cfg.PutTimeout {
		return fmt.Errorf("UPLOAD_SHARE_TIMEOUT must be greater than UPLOAD_PUT_TIMEOUT")
	}
	if isProdLike(cfg.AppEnv) && cfg.AccessFile == "" {
		return fmt.Errorf("in prod/release UPLOAD_ACCESS_FILE must be set")
	}
	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

// parseDurationEnv accepts Go durations ("6m") or plain seconds ("360").
func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name, fallback string) (int, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// getEnvAllowEmpty distinguishes an unset variable from one set to "".
func getEnvAllowEmpty(name, fallback string) string {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	return fallback
}
