package config

import (
	"fmt"
	"strings"
)

type Config struct {
	Server  ServerConfig
	Gemini  GeminiConfig
	Storage StorageConfig
	API     APIConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

type GeminiConfig struct {
	BaseURL       string
	AnalysisModel string
	ImageModel    string
	APIKey        string
}

type StorageConfig struct {
	Backend  string
	DataDir  string
	MaxItems int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	MinioEndpoint  string
	MinioBucket    string
	MinioRegion    string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
}

type APIConfig struct {
	// AllowedOrigins is a comma-separated list of CORS origins.
	AllowedOrigins string
}

// Origins splits AllowedOrigins into trimmed, non-empty entries.
func (c APIConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

type LogConfig struct {
	Level  string
	Format string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Gemini: GeminiConfig{
			AnalysisModel: "gemini-2.5-flash",
			ImageModel:    "gemini-2.5-flash-image",
		},
		Storage: StorageConfig{
			Backend:     "sqlite",
			DataDir:     defaultDataDir(),
			RedisAddr:   "localhost:6379",
			RedisPrefix: "electroschematic:history:",
			MinioBucket: "electroschematic",
		},
		API: APIConfig{
			AllowedOrigins: "http://localhost:5173,http://127.0.0.1:5173",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// secretService is the keychain service name secrets are stored under.
const secretService = "electroschematic"

// Load reads configuration from the config file, environment variables, and
// platform secret store, and fails when the Gemini API key is missing.
//
// The config file is a flat YAML map at
// $XDG_CONFIG_HOME/electroschematic/config.yaml. Environment variables
// (ELECTROSCHEMATIC_*) override file values. Secrets not set in the
// environment are looked up in macOS Keychain (service: electroschematic)
// or, elsewhere, in a secrets.yaml file in the data directory.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{}, true)
}

// LoadLocal is Load without the API key requirement, for commands that
// never call the generative service.
func LoadLocal() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{}, false)
}

// keychain abstracts secret store access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain, requireAPIKey bool) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	applySecrets(&cfg, kc)

	if requireAPIKey && strings.TrimSpace(cfg.Gemini.APIKey) == "" {
		msg := "missing required config: Gemini API key. " +
			"Set it via environment variable ELECTROSCHEMATIC_GEMINI_API_KEY (or GEMINI_API_KEY)" +
			apiKeyHint()
		return Config{}, fmt.Errorf("%s", msg)
	}

	return cfg, nil
}

// applySecrets fills secrets still empty after env overrides from the
// platform secret store.
func applySecrets(cfg *Config, kc keychain) {
	for _, s := range specs {
		if !s.secret {
			continue
		}
		if v, _ := s.extract(*cfg).(string); v != "" {
			continue
		}
		if v, err := kc.Get(secretService, s.account()); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
