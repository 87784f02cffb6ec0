// Package config loads service settings from defaults, an optional YAML
// file and BANKMESH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	Log       LogConfig       `mapstructure:"log"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Banks     []BankConfig    `mapstructure:"banks"`
	Users     []UserConfig    `mapstructure:"users"`
}

type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	AllowOrigins []string      `mapstructure:"allow_origins"`
}

type GRPCConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type AuthConfig struct {
	Secret     string        `mapstructure:"secret"`
	Issuer     string        `mapstructure:"issuer"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

type LedgerConfig struct {
	PromoBalance int64 `mapstructure:"promo_balance"`
	DepositRate  uint8 `mapstructure:"deposit_rate"`
}

type SchedulerConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval"`
}

// PostgresConfig enables snapshot persistence when DSN is set.
type PostgresConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// KafkaConfig enables transfer event forwarding when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type RateLimitConfig struct {
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

type BankConfig struct {
	BIK     uint32 `mapstructure:"bik"`
	Name    string `mapstructure:"name"`
	Address string `mapstructure:"address"`
}

type UserConfig struct {
	Login    string `mapstructure:"login"`
	Password string `mapstructure:"password"`
	Role     string `mapstructure:"role"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.allow_origins", []string{"*"})
	v.SetDefault("grpc.addr", ":9090")
	v.SetDefault("log.level", "info")
	// Keys without a default are invisible to AutomaticEnv during Unmarshal.
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "bankmesh")
	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("ledger.promo_balance", 1334)
	v.SetDefault("ledger.deposit_rate", 5)
	v.SetDefault("scheduler.interval", time.Minute)
	v.SetDefault("scheduler.snapshot_interval", 5*time.Minute)
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "bankmesh.transfers")
	v.SetDefault("ratelimit.per_second", 50.0)
	v.SetDefault("ratelimit.burst", 100)
	v.SetDefault("banks", []map[string]any{
		{"bik": 1003004, "name": "Belarusbank", "address": "Nezalezhnasci pr, 4"},
	})
	v.SetDefault("users", []map[string]any{
		{"login": "mng", "password": "mng", "role": "manager"},
		{"login": "cli", "password": "cli", "role": "client"},
		{"login": "opr", "password": "opr", "role": "operator"},
		{"login": "ent", "password": "ent", "role": "enterprise"},
		{"login": "adm", "password": "adm", "role": "administrator"},
	})
}

// Load reads configuration. path may be empty, in which case only defaults
// and the environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("BANKMESH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http addr cannot be empty")
	}
	if len(c.Auth.Secret) < 16 {
		return errors.New("auth secret must be at least 16 bytes (set BANKMESH_AUTH_SECRET)")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth token ttl must be positive, got %s", c.Auth.TokenTTL)
	}
	if c.Ledger.PromoBalance < 0 {
		return fmt.Errorf("promo balance cannot be negative, got %d", c.Ledger.PromoBalance)
	}
	if c.Ledger.DepositRate == 0 || c.Ledger.DepositRate > 100 {
		return fmt.Errorf("deposit rate must be in 1..100, got %d", c.Ledger.DepositRate)
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive, got %s", c.Scheduler.Interval)
	}
	if c.RateLimit.PerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return errors.New("rate limit per_second and burst must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}

	if len(c.Banks) == 0 {
		return errors.New("at least one bank must be configured")
	}
	seen := make(map[uint32]bool, len(c.Banks))
	for _, b := range c.Banks {
		if b.BIK == 0 {
			return fmt.Errorf("bank %q: bik cannot be zero", b.Name)
		}
		if seen[b.BIK] {
			return fmt.Errorf("bank %d configured twice", b.BIK)
		}
		seen[b.BIK] = true
	}
	for _, u := range c.Users {
		if u.Login == "" || u.Password == "" {
			return errors.New("seed users need login and password")
		}
	}
	return nil
}
