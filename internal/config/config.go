package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

type Config struct {
	AppEnv       string `env:"APP_ENV"       envDefault:"development" validate:"oneof=development production"`
	StoreBackend string `env:"STORE_BACKEND" envDefault:"memory"      validate:"oneof=memory redis postgres"`

	RedisAuctionsHost string `env:"REDIS_AUCTIONS_HOST" envDefault:"localhost"`
	RedisAuctionsPort uint16 `env:"REDIS_AUCTIONS_PORT" envDefault:"6379"   validate:"min=1000,max=65535"`

	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"auction_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"auction_password"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"auction_db"`

	TcpServerPort  uint16 `env:"TCP_SERVER_PORT"  envDefault:"8080" validate:"min=1000,max=65535"`
	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"8085" validate:"min=1000,max=65535"`

	// Upper bound for a single inbound command line.
	MaxLineBytes int `env:"MAX_LINE_BYTES" envDefault:"65536" validate:"min=1024"`
	// Deadline for one write to one session.
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s" validate:"min=100ms"`
	// Deadline for one broadcast round's store read.
	BroadcastTimeout time.Duration `env:"BROADCAST_TIMEOUT" envDefault:"5s" validate:"min=100ms"`

	ExpirySweepSpec string `env:"EXPIRY_SWEEP_SPEC" envDefault:"@every 5s" validate:"required"`
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	// Parse config from environment variables
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config
	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
