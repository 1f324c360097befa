// Package config loads service configuration from struct defaults, an
// optional YAML file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTesting     = "testing"

	StoreMongo    = "mongo"
	StoreDynamoDB = "dynamodb"
	StoreMemory   = "memory"

	VectorWeaviate = "weaviate"
	VectorMilvus   = "milvus"
	VectorNone     = "none"

	// DefaultJWTSecret is only acceptable outside production.
	DefaultJWTSecret = "jwt-secret-key-change-in-production"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
	Store    StoreConfig    `koanf:"store"`
	Auth     AuthConfig     `koanf:"auth"`
	Gemini   GeminiConfig   `koanf:"gemini"`
	Vector   VectorConfig   `koanf:"vector"`
	Breaker  BreakerConfig  `koanf:"breaker"`
	Secrets  SecretsConfig  `koanf:"secrets"`
	Security SecurityConfig `koanf:"security"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Environment     string        `koanf:"environment"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

type StoreConfig struct {
	Backend        string        `koanf:"backend"`
	MongoURI       string        `koanf:"mongo_uri"`
	MongoDatabase  string        `koanf:"mongo_database"`
	DynamoPrefix   string        `koanf:"dynamo_table_prefix"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
}

type AuthConfig struct {
	JWTSecret       string `koanf:"jwt_secret"`
	ExpirationHours int    `koanf:"expiration_hours"`
}

// TokenTTL is the lifetime of issued bearer tokens.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.ExpirationHours) * time.Hour
}

type GeminiConfig struct {
	APIKey         string        `koanf:"api_key"`
	BaseURL        string        `koanf:"base_url"`
	Model          string        `koanf:"model"`
	EmbeddingModel string        `koanf:"embedding_model"`
	Timeout        time.Duration `koanf:"timeout"`
}

type VectorConfig struct {
	Backend          string `koanf:"backend"`
	TopK             int    `koanf:"top_k"`
	WeaviateURL      string `koanf:"weaviate_url"`
	WeaviateAPIKey   string `koanf:"weaviate_api_key"`
	WeaviateClass    string `koanf:"weaviate_class"`
	MilvusAddress    string `koanf:"milvus_address"`
	MilvusCollection string `koanf:"milvus_collection"`
	MilvusVectorName string `koanf:"milvus_vector_field"`
}

type BreakerConfig struct {
	FailureThreshold uint32        `koanf:"failure_threshold"`
	OpenTimeout      time.Duration `koanf:"open_timeout"`
	Interval         time.Duration `koanf:"interval"`
}

type SecretsConfig struct {
	// ParamPrefix enables AWS SSM lookup of secrets when non-empty.
	ParamPrefix string `koanf:"param_prefix"`
}

type SecurityConfig struct {
	CORSOrigins      []string      `koanf:"cors_origins"`
	LoginRateLimit   int           `koanf:"login_rate_limit"`
	LoginRateWindow  time.Duration `koanf:"login_rate_window"`
	RateLimitEnabled bool          `koanf:"rate_limit_enabled"`
}

// Validate checks the loaded configuration for values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Server.Environment {
	case EnvDevelopment, EnvProduction, EnvTesting:
	default:
		errs = append(errs, fmt.Errorf("server.environment %q is not one of development, production, testing", c.Server.Environment))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range", c.Server.Port))
	}

	switch c.Store.Backend {
	case StoreMongo:
		if strings.TrimSpace(c.Store.MongoURI) == "" {
			errs = append(errs, errors.New("store.mongo_uri is required for the mongo backend"))
		}
		if strings.TrimSpace(c.Store.MongoDatabase) == "" {
			errs = append(errs, errors.New("store.mongo_database is required for the mongo backend"))
		}
	case StoreDynamoDB, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("store.backend %q is not one of mongo, dynamodb, memory", c.Store.Backend))
	}

	switch c.Vector.Backend {
	case VectorWeaviate:
		if strings.TrimSpace(c.Vector.WeaviateURL) == "" {
			errs = append(errs, errors.New("vector.weaviate_url is required for the weaviate backend"))
		}
	case VectorMilvus:
		if strings.TrimSpace(c.Vector.MilvusAddress) == "" {
			errs = append(errs, errors.New("vector.milvus_address is required for the milvus backend"))
		}
	case VectorNone:
	default:
		errs = append(errs, fmt.Errorf("vector.backend %q is not one of weaviate, milvus, none", c.Vector.Backend))
	}
	if c.Vector.TopK <= 0 {
		errs = append(errs, errors.New("vector.top_k must be positive"))
	}

	if c.Auth.ExpirationHours <= 0 {
		errs = append(errs, errors.New("auth.expiration_hours must be positive"))
	}
	if c.Secrets.ParamPrefix == "" {
		if c.Auth.JWTSecret == "" {
			errs = append(errs, errors.New("auth.jwt_secret is required"))
		}
		if c.Server.Environment == EnvProduction && c.Auth.JWTSecret == DefaultJWTSecret {
			errs = append(errs, errors.New("auth.jwt_secret must be changed in production"))
		}
	}

	return errors.Join(errs...)
}
