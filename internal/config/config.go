package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env          string // application environment (e.g. "dev", "prod")
	Port         string // HTTP port to listen on
	StoreDriver  string // "mysql" or "memory"
	DBUser       string // database username
	DBPass       string // database password (optional)
	DBHost       string // database host address
	DBPort       string // database port number
	DBName       string // database name
	JWTSecret    string // secret used to sign JWTs
	AccessTTLMin int    // access token time-to-live in minutes
	BcryptCost   int    // bcrypt cost for password hashing
	AMQPURL      string // RabbitMQ URL; empty disables events
	LogDir       string // where the settlement consumer writes its log
	Ledger       LedgerConfig
	Lock         LockConfig
}

// LedgerConfig selects how money is valued and settled.
type LedgerConfig struct {
	ChipValueMode    string // "live" or "frozen"
	SettlementPolicy string // "simple" or "payment_aware"
}

// LockConfig tunes the Redis session lock used when several API
// instances share one database.
type LockConfig struct {
	Redis  bool
	TTL    time.Duration
	Wait   time.Duration
	Prefix string
}

// Load reads a .env file when one exists, then the environment.
// Required variables are enforced by must(); the memory store needs no
// database settings.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Env:          envStr("APP_ENV", "dev"),
		Port:         envStr("APP_PORT", "8080"),
		StoreDriver:  strings.ToLower(envStr("STORE_DRIVER", "mysql")),
		JWTSecret:    must("JWT_SECRET"),
		AccessTTLMin: envInt("ACCESS_TOKEN_TTL_MIN", 60*24),
		BcryptCost:   envInt("BCRYPT_COST", 10),
		AMQPURL:      amqpURL(),
		LogDir:       envStr("LOG_DIR", "logs"),
		Ledger: LedgerConfig{
			ChipValueMode:    envStr("LEDGER_CHIP_VALUE_MODE", "live"),
			SettlementPolicy: envStr("SETTLEMENT_POLICY", "simple"),
		},
		Lock: LockConfig{
			Redis:  envBool("LOCK_REDIS", false),
			TTL:    envDur("LOCK_TTL", 10*time.Second),
			Wait:   envDur("LOCK_WAIT", 5*time.Second),
			Prefix: envStr("LOCK_PREFIX", "lock:session"),
		},
	}
	switch cfg.StoreDriver {
	case "mysql":
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS")
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = envStr("DB_PORT", "3306")
		cfg.DBName = must("DB_NAME")
	case "memory":
	default:
		log.Fatalf("invalid STORE_DRIVER %q (want mysql or memory)", cfg.StoreDriver)
	}
	return cfg
}

// amqpURL accepts RABBITMQ_URL or AMQP_URL.  Events are off when
// neither is set.
func amqpURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
