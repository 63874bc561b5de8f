package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	// Database backing the commerce connector
	DatabaseURL string `validate:"required"`
	// Create the commerce tables on start; for local sqlite only
	DatabaseAutoMigrate bool

	// Echo guard store, memory:// or redis://
	IgnoreStoreURL string `validate:"required"`

	// Kafka
	KafkaBrokers string
	KafkaTopic   string
	KafkaGroupID string

	// API Configuration
	APIPort string `validate:"required"`
	APIHost string

	// Strapi connection
	StrapiProtocol string `validate:"oneof=http https"`
	StrapiHost     string `validate:"required"`
	StrapiPort     string `validate:"required"`

	// Strapi super admin
	SuperUserEmail     string `validate:"omitempty,email"`
	SuperUserPassword  string
	SuperUserFirstname string
	SuperUserLastname  string

	// Default per-tenant service account
	DefaultUserEmail    string `validate:"omitempty,email"`
	DefaultUserUsername string
	DefaultUserPassword string

	// Token protection, only "none" is supported
	EncryptionAlgorithm string `validate:"oneof=none"`

	IgnoreTTL          time.Duration `validate:"gt=0"`
	HealthPollInterval time.Duration `validate:"gt=0"`
	HealthCacheTTL     time.Duration `validate:"gt=0"`
	TokenReuseWindow   time.Duration `validate:"gte=0"`
	RequestTimeout     time.Duration `validate:"gt=0"`
	EventTimeout       time.Duration `validate:"gt=0"`
	MaxRetries         int           `validate:"gte=0"`

	// Bulk synchronisation trigger
	BulkSyncPath     string        `validate:"required,startswith=/"`
	BulkSyncTimeout  time.Duration `validate:"gt=0"`
	MedusaBackendURL string

	// kind -> domain field -> remote field
	FieldOverrides map[string]map[string]string

	// Comma separated CORS origins for the HTTP API
	CORSAllowedOrigins string

	// Environment
	Env       string
	LogLevel  string
	LogFormat string
}

func Load() (*Config, error) {
	// Load .env file
	godotenv.Load()

	overrides, err := ParseFieldOverrides(getEnv("STRAPI_FIELD_OVERRIDES", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:         getEnv("DATABASE_URL", "sqlite://medusa.db"),
		DatabaseAutoMigrate: getEnvAsBool("DATABASE_AUTO_MIGRATE", false),
		IgnoreStoreURL:      getEnv("IGNORE_STORE_URL", "memory://"),
		KafkaBrokers:        getEnv("KAFKA_BROKERS", ""),
		KafkaTopic:          getEnv("KAFKA_TOPIC", "commerce-events"),
		KafkaGroupID:        getEnv("KAFKA_GROUP_ID", "strapisync-worker"),
		APIPort:             getEnv("API_PORT", "8080"),
		APIHost:             getEnv("API_HOST", "0.0.0.0"),
		StrapiProtocol:      getEnv("STRAPI_PROTOCOL", "http"),
		StrapiHost:          getEnv("STRAPI_HOST", "localhost"),
		StrapiPort:          getEnv("STRAPI_PORT", "1337"),
		SuperUserEmail:      getEnv("STRAPI_SUPER_USER_EMAIL", ""),
		SuperUserPassword:   getEnv("STRAPI_SUPER_USER_PASSWORD", ""),
		SuperUserFirstname:  getEnv("STRAPI_SUPER_USER_FIRSTNAME", "medusa"),
		SuperUserLastname:   getEnv("STRAPI_SUPER_USER_LASTNAME", "admin"),
		DefaultUserEmail:    getEnv("STRAPI_DEFAULT_USER_EMAIL", ""),
		DefaultUserUsername: getEnv("STRAPI_DEFAULT_USER_USERNAME", "medusa_user"),
		DefaultUserPassword: getEnv("STRAPI_DEFAULT_USER_PASSWORD", ""),
		EncryptionAlgorithm: getEnv("STRAPI_ENCRYPTION_ALGORITHM", "none"),
		IgnoreTTL:           getEnvAsDuration("STRAPI_IGNORE_TTL", 3*time.Second),
		HealthPollInterval:  getEnvAsDuration("STRAPI_HEALTH_CHECK_INTERVAL", time.Second),
		HealthCacheTTL:      getEnvAsDuration("STRAPI_HEALTH_CACHE_TTL", 120*time.Second),
		TokenReuseWindow:    getEnvAsDuration("STRAPI_TOKEN_REUSE_WINDOW", time.Minute),
		RequestTimeout:      getEnvAsDuration("STRAPI_REQUEST_TIMEOUT", 30*time.Second),
		EventTimeout:        getEnvAsDuration("STRAPI_EVENT_TIMEOUT", 5*time.Minute),
		MaxRetries:          getEnvAsInt("STRAPI_MAX_RETRIES", 100),
		BulkSyncPath:        getEnv("STRAPI_BULK_SYNC_PATH", "/strapi-plugin-medusa/synchronise-medusa-tables"),
		BulkSyncTimeout:     getEnvAsDuration("STRAPI_BULK_SYNC_TIMEOUT", time.Hour),
		MedusaBackendURL:    getEnv("MEDUSA_BACKEND_URL", "http://localhost:9000"),
		FieldOverrides:      overrides,
		CORSAllowedOrigins:  getEnv("CORS_ALLOWED_ORIGINS", "*"),
		Env:                 getEnv("ENV", "development"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "console"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags on Config.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// StrapiURL is the base URL of the remote service, without a trailing slash.
func (c *Config) StrapiURL() string {
	return fmt.Sprintf("%s://%s:%s", c.StrapiProtocol, c.StrapiHost, c.StrapiPort)
}

// KafkaEnabled reports whether a broker list was configured.
func (c *Config) KafkaEnabled() bool {
	return strings.TrimSpace(c.KafkaBrokers) != ""
}

// AllowedOrigins splits CORSAllowedOrigins on commas.
func (c *Config) AllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

// BrokerList splits KafkaBrokers on commas.
func (c *Config) BrokerList() []string {
	return splitList(c.KafkaBrokers)
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ParseFieldOverrides reads "kind.field=remote" pairs separated by commas,
// e.g. "product.title=name,region.name=label".
func ParseFieldOverrides(raw string) (map[string]map[string]string, error) {
	out := map[string]map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		lhs, remote, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid field override %q: missing '='", pair)
		}
		kind, field, ok := strings.Cut(strings.TrimSpace(lhs), ".")
		remote = strings.TrimSpace(remote)
		if !ok || kind == "" || field == "" || remote == "" {
			return nil, fmt.Errorf("invalid field override %q: want kind.field=remote", pair)
		}
		if out[kind] == nil {
			out[kind] = map[string]string{}
		}
		out[kind][field] = remote
	}
	return out, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("3s") or a bare number of
// milliseconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
