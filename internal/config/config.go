package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Game     GameConfig     `mapstructure:"game"`
}

// ServerConfig holds HTTP/WebSocket listener settings.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds the postgres connection settings for the user store.
// When Enabled is false the server falls back to an in-memory user store.
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// AuthConfig holds token verification settings. An empty JWTSecret disables
// authentication entirely; sessions can still connect but cannot queue.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GameConfig holds the tunable rule constants.
type GameConfig struct {
	HeroHealth  int `mapstructure:"hero_health"`
	ManaPerTurn int `mapstructure:"mana_per_turn"`
	InitialDraw int `mapstructure:"initial_draw"`
	MaxHandSize int `mapstructure:"max_hand_size"`
}

// Load reads configuration from the given file path, applying defaults and
// TCG_* environment variable overrides. A missing file is not an error; the
// defaults produce a runnable server.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.address", ":8765")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("game.hero_health", 50)
	v.SetDefault("game.mana_per_turn", 10)
	v.SetDefault("game.initial_draw", 5)
	v.SetDefault("game.max_hand_size", 10)

	v.SetEnvPrefix("TCG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Game.HeroHealth <= 0 {
		return fmt.Errorf("game.hero_health must be positive")
	}
	if c.Game.ManaPerTurn <= 0 {
		return fmt.Errorf("game.mana_per_turn must be positive")
	}
	if c.Game.MaxHandSize <= 0 {
		return fmt.Errorf("game.max_hand_size must be positive")
	}
	if c.Database.Enabled && c.Database.URL == "" {
		return fmt.Errorf("database.url is required when database.enabled is true")
	}
	return nil
}
