package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	aliases []string // extra env vars, checked after env
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

// account is the secret store account name for a secret key.
func (s keySpec) account() string {
	return strings.ReplaceAll(s.key, ".", "_")
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "ELECTROSCHEMATIC_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "gemini.base_url", typ: kString, env: "ELECTROSCHEMATIC_GEMINI_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.BaseURL },
	},
	{
		key: "gemini.analysis_model", typ: kString, env: "ELECTROSCHEMATIC_GEMINI_ANALYSIS_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.AnalysisModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.AnalysisModel },
	},
	{
		key: "gemini.image_model", typ: kString, env: "ELECTROSCHEMATIC_GEMINI_IMAGE_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.ImageModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.ImageModel },
	},
	{
		key: "gemini.api_key", typ: kString, env: "ELECTROSCHEMATIC_GEMINI_API_KEY",
		aliases: []string{"GEMINI_API_KEY", "API_KEY"},
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Gemini.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.APIKey },
	},
	{
		key: "storage.backend", typ: kString, env: "ELECTROSCHEMATIC_STORAGE_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Storage.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Backend },
	},
	{
		key: "storage.data_dir", typ: kString, env: "ELECTROSCHEMATIC_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.max_items", typ: kInt, env: "ELECTROSCHEMATIC_STORAGE_MAX_ITEMS",
		apply:   func(cfg *Config, v any) { cfg.Storage.MaxItems = v.(int) },
		extract: func(cfg Config) any { return cfg.Storage.MaxItems },
	},
	{
		key: "storage.redis_addr", typ: kString, env: "ELECTROSCHEMATIC_STORAGE_REDIS_ADDR",
		apply:   func(cfg *Config, v any) { cfg.Storage.RedisAddr = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.RedisAddr },
	},
	{
		key: "storage.redis_password", typ: kString, env: "ELECTROSCHEMATIC_STORAGE_REDIS_PASSWORD",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Storage.RedisPassword = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.RedisPassword },
	},
	{
		key: "storage.redis_db", typ: kInt, env: "ELECTROSCHEMATIC_STORAGE_REDIS_DB",
		apply:   func(cfg *Config, v any) { cfg.Storage.RedisDB = v.(int) },
		extract: func(cfg Config) any { return cfg.Storage.RedisDB },
	},
	{
		key: "storage.redis_prefix", typ: kString, env: "ELECTROSCHEMATIC_STORAGE_REDIS_PREFIX",
		apply:   func(cfg *Config, v any) { cfg.Storage.RedisPrefix = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.RedisPrefix },
	},
	{
		key: "storage.minio_endpoint", typ: kString, env: "ELECTROSCHEMATIC_STORAGE_MINIO_ENDPOINT",
		apply:   func(cfg *Config, v any) { cfg.Storage.MinioEndpoint = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.MinioEndpoint },
	},
	{
		key: "storage.minio_bucket", typ: kString, env: "ELECTROSCHEMATIC_STORAGE_MINIO_BUCKET",
		apply:   func(cfg *Config, v any) { cfg.Storage.MinioBucket = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.MinioBucket },
	},
	{
		key: "storage.minio_region", typ: kString, env: "ELECTROSCHEMATIC_STORAGE_MINIO_REGION",
		apply:   func(cfg *Config, v any) { cfg.Storage.MinioRegion = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.MinioRegion },
	},
	{
		key: "storage.minio_access_key", typ: kString, env: "ELECTROSCHEMATIC_STORAGE_MINIO_ACCESS_KEY",
		apply:   func(cfg *Config, v any) { cfg.Storage.MinioAccessKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.MinioAccessKey },
	},
	{
		key: "storage.minio_secret_key", typ: kString, env: "ELECTROSCHEMATIC_STORAGE_MINIO_SECRET_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Storage.MinioSecretKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.MinioSecretKey },
	},
	{
		key: "storage.minio_use_ssl", typ: kBool, env: "ELECTROSCHEMATIC_STORAGE_MINIO_USE_SSL",
		apply:   func(cfg *Config, v any) { cfg.Storage.MinioUseSSL = v.(bool) },
		extract: func(cfg Config) any { return cfg.Storage.MinioUseSSL },
	},
	{
		key: "api.allowed_origins", typ: kString, env: "ELECTROSCHEMATIC_API_ALLOWED_ORIGINS",
		apply:   func(cfg *Config, v any) { cfg.API.AllowedOrigins = v.(string) },
		extract: func(cfg Config) any { return cfg.API.AllowedOrigins },
	},
	{
		key: "log.level", typ: kString, env: "ELECTROSCHEMATIC_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.format", typ: kString, env: "ELECTROSCHEMATIC_LOG_FORMAT",
		apply:   func(cfg *Config, v any) { cfg.Log.Format = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Format },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func lookupEnv(s keySpec) (name, raw string) {
	for _, name := range append([]string{s.env}, s.aliases...) {
		if name == "" {
			continue
		}
		if raw := os.Getenv(name); raw != "" {
			return name, raw
		}
	}
	return "", ""
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		name, raw := lookupEnv(s)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", name, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", name, raw, err)
			}
		}
	}
}
