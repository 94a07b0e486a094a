package config

import (
	"fmt"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	WorkerCount         int `env:"WORKER_COUNT" envDefault:"8"`
	PersistTimeoutS     int `env:"PERSIST_TIMEOUT_S" envDefault:"5"`
	MaxDeliveryAttempts int `env:"MAX_DELIVERY_ATTEMPTS" envDefault:"3"`
	CorrelationTTLHours int `env:"CORRELATION_TTL_HOURS" envDefault:"24"`

	CardBIN            string `env:"CARD_BIN" envDefault:"422462"`
	CardVaultKey       string `env:"CARD_VAULT_KEY,required"`
	CardValidityMonths int    `env:"CARD_VALIDITY_MONTHS" envDefault:"48"`
	IssuanceRetries    int    `env:"ISSUANCE_RETRIES" envDefault:"5"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}
