package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5001,
			Environment:     EnvDevelopment,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    90 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			Backend:        StoreMongo,
			MongoURI:       "mongodb://localhost:27017/movie_app",
			MongoDatabase:  "movie_app",
			DynamoPrefix:   "movie_app_",
			ConnectTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			JWTSecret:       DefaultJWTSecret,
			ExpirationHours: 24,
		},
		Gemini: GeminiConfig{
			BaseURL:        "https://generativelanguage.googleapis.com",
			Model:          "gemini-2.5-flash",
			EmbeddingModel: "text-embedding-004",
			Timeout:        60 * time.Second,
		},
		Vector: VectorConfig{
			Backend:          VectorWeaviate,
			TopK:             5,
			WeaviateURL:      "http://localhost:8080",
			WeaviateClass:    "Movies",
			MilvusCollection: "movies",
			MilvusVectorName: "embedding",
		},
		Breaker: BreakerConfig{
			FailureThreshold: 3,
			OpenTimeout:      30 * time.Second,
			Interval:         time.Minute,
		},
		Security: SecurityConfig{
			CORSOrigins:      []string{"http://localhost:8000", "http://localhost:5000"},
			LoginRateLimit:   10,
			LoginRateWindow:  time.Minute,
			RateLimitEnabled: true,
		},
	}
}

// Load reads .env (if present), then defaults, config file and environment,
// and validates the result.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	if err := splitSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envMappings maps environment variable names (lower-cased) to config keys.
var envMappings = map[string]string{
	"api_host":             "server.host",
	"api_port":             "server.port",
	"environment":          "server.environment",
	"read_timeout":         "server.read_timeout",
	"write_timeout":        "server.write_timeout",
	"shutdown_timeout":     "server.shutdown_timeout",
	"log_level":            "logging.level",
	"log_format":           "logging.format",
	"log_caller":           "logging.caller",
	"store_backend":        "store.backend",
	"mongo_uri":            "store.mongo_uri",
	"mongo_db":             "store.mongo_database",
	"dynamo_prefix":        "store.dynamo_table_prefix",
	"jwt_secret_key":       "auth.jwt_secret",
	"jwt_expiration_hours": "auth.expiration_hours",
	"gemini_api_key":       "gemini.api_key",
	"gemini_base_url":      "gemini.base_url",
	"gemini_model":         "gemini.model",
	"gemini_embed_model":   "gemini.embedding_model",
	"gemini_timeout":       "gemini.timeout",
	"vector_backend":       "vector.backend",
	"vector_top_k":         "vector.top_k",
	"weaviate_url":         "vector.weaviate_url",
	"weaviate_api_key":     "vector.weaviate_api_key",
	"weaviate_class":       "vector.weaviate_class",
	"milvus_address":       "vector.milvus_address",
	"milvus_collection":    "vector.milvus_collection",
	"breaker_failures":     "breaker.failure_threshold",
	"breaker_open_timeout": "breaker.open_timeout",
	"secrets_param_prefix": "secrets.param_prefix",
	"cors_origins":         "security.cors_origins",
	"login_rate_limit":     "security.login_rate_limit",
	"login_rate_window":    "security.login_rate_window",
	"rate_limit_enabled":   "security.rate_limit_enabled",
}

// envTransform returns the config key for a known variable and "" to skip the rest.
func envTransform(s string) string {
	return envMappings[strings.ToLower(s)]
}

var sliceConfigPaths = []string{"security.cors_origins"}

// splitSliceFields turns comma-separated strings from the environment into slices.
func splitSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("config: set %s: %w", path, err)
		}
	}
	return nil
}
