package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Backend names accepted by IDENTITY_PROVIDER and DOCUMENT_STORE.
const (
	BackendPostgres  = "postgres"
	BackendFirebase  = "firebase"
	BackendFirestore = "firestore"
	BackendMongo     = "mongo"
	BackendMemory    = "memory"
)

type Config struct {
	// Backends
	IdentityProvider string `env:"IDENTITY_PROVIDER" envDefault:"postgres"`
	DocumentStore    string `env:"DOCUMENT_STORE" envDefault:"postgres"`
	UsersCollection  string `env:"USERS_COLLECTION" envDefault:"Users"`

	// Database
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME" envDefault:"identity_db"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`

	// Firebase (identity provider + firestore)
	FirebaseProjectID       string `env:"FIREBASE_PROJECT_ID"`
	FirebaseCredentialsFile string `env:"FIREBASE_CREDENTIALS_FILE" envDefault:"service.json"`
	FirebaseDatabaseURL     string `env:"FIREBASE_DATABASE_URL"`

	// Mongo
	MongoURL            string        `env:"MONGODB_URL"`
	MongoDatabase       string        `env:"MONGODB_DATABASE" envDefault:"identity"`
	MongoConnectTimeout time.Duration `env:"MONGODB_CONNECT_TIMEOUT" envDefault:"10s"`
	MongoRetryAttempts  int           `env:"MONGODB_RETRY_ATTEMPTS" envDefault:"3"`
	MongoRetryInterval  time.Duration `env:"MONGODB_RETRY_INTERVAL" envDefault:"5s"`

	// Redis (rate limiter storage, optional)
	RedisURL            string        `env:"REDIS_URL"`
	RedisConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"10s"`

	// JWT
	JWTSecret string        `env:"JWT_SECRET"`
	JWTExpiry time.Duration `env:"JWT_EXPIRY" envDefault:"1h"`

	// Password hashing
	BcryptCost int `env:"BCRYPT_COST" envDefault:"10"`

	// Logging
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	LogRetentionDays int    `env:"LOG_RETENTION_DAYS" envDefault:"30"`

	// Server
	Port        string `env:"PORT" envDefault:"8080"`
	CORSOrigins string `env:"CORS_ORIGINS" envDefault:"*"`
	BodyLimit   int    `env:"BODY_LIMIT" envDefault:"1048576"`

	// Error tracking
	SentryDSN string `env:"SENTRY_DSN"`
	AppEnv    string `env:"APP_ENV" envDefault:"development"`
}

// Load reads an optional .env file and parses the environment into a Config.
func Load() (*Config, error) {
	// Missing .env is fine outside local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.IdentityProvider = strings.ToLower(strings.TrimSpace(cfg.IdentityProvider))
	cfg.DocumentStore = strings.ToLower(strings.TrimSpace(cfg.DocumentStore))
	return cfg, nil
}

// Validate checks that every setting the selected backends rely on is present.
func (c *Config) Validate() error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET environment variable is required"))
	}

	switch c.IdentityProvider {
	case BackendPostgres, BackendMemory:
	case BackendFirebase:
		if c.FirebaseCredentialsFile == "" {
			errs = append(errs, errors.New("FIREBASE_CREDENTIALS_FILE is required for the firebase identity provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown IDENTITY_PROVIDER %q", c.IdentityProvider))
	}

	switch c.DocumentStore {
	case BackendPostgres, BackendMemory:
	case BackendFirestore:
		if c.FirebaseCredentialsFile == "" {
			errs = append(errs, errors.New("FIREBASE_CREDENTIALS_FILE is required for the firestore document store"))
		}
	case BackendMongo:
		if c.MongoURL == "" {
			errs = append(errs, errors.New("MONGODB_URL is required for the mongo document store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DOCUMENT_STORE %q", c.DocumentStore))
	}

	if c.UsesPostgres() && c.DBPassword == "" {
		errs = append(errs, errors.New("DB_PASSWORD environment variable is required"))
	}

	return errors.Join(errs...)
}

// UsesPostgres reports whether any backend needs a Postgres connection.
func (c *Config) UsesPostgres() bool {
	return c.IdentityProvider == BackendPostgres || c.DocumentStore == BackendPostgres
}

// UsesFirebase reports whether a Firebase app has to be initialised.
func (c *Config) UsesFirebase() bool {
	return c.IdentityProvider == BackendFirebase || c.DocumentStore == BackendFirestore
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}
