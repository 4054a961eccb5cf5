package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	JWTSecret          string        `env:"JWT_SECRET"`
	RefreshTokenSecret string        `env:"REFRESH_TOKEN_SECRET"`
	AccessTokenTTL     time.Duration `env:"ACCESS_TOKEN_TTL,  default=1h"`
	RefreshTokenTTL    time.Duration `env:"REFRESH_TOKEN_TTL, default=168h"`

	Mongo     MongoConfig
	Redis     RedisConfig
	Ledger    LedgerConfig
	Admin     AdminConfig
	Reconcile ReconcileConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=libretyverse"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

type LedgerConfig struct {
	RPCURL          string        `env:"LEDGER_RPC_URL, default=http://localhost:8545"`
	ContractAddress string        `env:"LEDGER_CONTRACT_ADDRESS"`
	AdminPrivateKey string        `env:"LEDGER_ADMIN_PRIVATE_KEY"`
	ChainID         int64         `env:"LEDGER_CHAIN_ID, default=31337"`
	ConfirmTimeout  time.Duration `env:"LEDGER_CONFIRM_TIMEOUT, default=90s"`
	LockTTL         time.Duration `env:"LEDGER_LOCK_TTL, default=2m"`
}

// AdminConfig describes the bootstrap DEFAULT_ADMIN identity. The password is
// optional: the bootstrap admin may be wallet-only.
type AdminConfig struct {
	Wallet   string `env:"DEFAULT_ADMIN_WALLET"`
	Email    string `env:"DEFAULT_ADMIN_EMAIL, default=admin@libretyverse.io"`
	Password string `env:"DEFAULT_ADMIN_PASSWORD"`
}

type ReconcileConfig struct {
	// Interval between periodic drift sweeps. Zero disables the background
	// loop; the on-demand endpoint still works.
	Interval time.Duration `env:"RECONCILE_INTERVAL, default=0"`
	Workers  int           `env:"RECONCILE_WORKERS,  default=4"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
