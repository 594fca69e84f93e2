package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`

	JWTSecret string        `mapstructure:"jwt_secret"`
	JWTExpiry time.Duration `mapstructure:"jwt_expiry"`

	// StoreDriver selects the persistence backend: memory, redis or sqlite.
	StoreDriver string `mapstructure:"store_driver"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	RedisURL    string `mapstructure:"redis_url"`
	RedisPass   string `mapstructure:"redis_pass"`
	RedisDB     int    `mapstructure:"redis_db"`

	BotInterval      time.Duration `mapstructure:"bot_interval"`
	BotChance        float64       `mapstructure:"bot_chance"`
	CleanupInterval  time.Duration `mapstructure:"cleanup_interval"`
	SessionMaxIdle   time.Duration `mapstructure:"session_max_idle"`
	SeedLobbyOnStart bool          `mapstructure:"seed_lobby"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("port", "8080")
	v.SetDefault("jwt_secret", "change-me")
	v.SetDefault("jwt_expiry", 24*time.Hour)
	v.SetDefault("store_driver", "memory")
	v.SetDefault("sqlite_path", "data/cashbattle.db")
	v.SetDefault("redis_url", "localhost:6379")
	v.SetDefault("redis_pass", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("bot_interval", 4*time.Second)
	v.SetDefault("bot_chance", 0.5)
	v.SetDefault("cleanup_interval", 5*time.Minute)
	v.SetDefault("session_max_idle", 10*time.Minute)
	v.SetDefault("seed_lobby", true)
}

// Load reads an optional .env file and then the process environment.
// Every key can be overridden by its upper-case variable, e.g. STORE_DRIVER.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case "memory", "redis", "sqlite":
	default:
		return fmt.Errorf("unknown store driver: %s", c.StoreDriver)
	}
	if c.BotChance < 0 || c.BotChance > 1 {
		return fmt.Errorf("bot chance must be within [0,1], got %v", c.BotChance)
	}
	if c.BotInterval <= 0 {
		return fmt.Errorf("bot interval must be positive")
	}
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("cleanup interval must be positive")
	}
	if c.SessionMaxIdle <= 0 {
		return fmt.Errorf("session max idle must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
