// Package config loads server configuration from an optional YAML file,
// a .env file and the environment, in that order of increasing precedence.
//
// Environment keys are the upper-cased config keys with dots replaced by
// underscores: DATABASE_URL, REDIS_ADDR, STORE_MILK_PRICE_PER_LITRE, ...
package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/warp/kirana-ledger/settings"
)

const DefaultConfigFile = "configs/config.yaml"

type Config struct {
	Server struct {
		Port               int      `mapstructure:"port"`
		CorsAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
	} `mapstructure:"server"`

	Database struct {
		Driver string `mapstructure:"driver"` // sqlite or postgres
		Path   string `mapstructure:"path"`
		URL    string `mapstructure:"url"`
	} `mapstructure:"database"`

	Redis struct {
		Enabled  bool          `mapstructure:"enabled"`
		Addr     string        `mapstructure:"addr"`
		Password string        `mapstructure:"password"`
		TTL      time.Duration `mapstructure:"ttl"`
	} `mapstructure:"redis"`

	Store struct {
		Timezone          string `mapstructure:"timezone"`
		MilkPricePerLitre string `mapstructure:"milk_price_per_litre"`
		FreeGift          struct {
			Enabled   bool   `mapstructure:"enabled"`
			Threshold string `mapstructure:"threshold"`
			ProductID int64  `mapstructure:"product_id"`
			VariantID string `mapstructure:"variant_id"`
			Name      string `mapstructure:"name"`
			Price     string `mapstructure:"price"`
		} `mapstructure:"free_gift"`
	} `mapstructure:"store"`

	Scheduler struct {
		Enabled      bool          `mapstructure:"enabled"`
		Interval     time.Duration `mapstructure:"interval"`
		AutoMigrate  bool          `mapstructure:"auto_migrate"`
		AutoMilkLogs bool          `mapstructure:"auto_milk_logs"`
	} `mapstructure:"scheduler"`
}

// Load reads configuration. An empty path means DefaultConfigFile; a missing
// file is not an error (the binary runs on defaults).
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	if path == "" {
		path = DefaultConfigFile
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_allowed_origins", []string{"http://localhost:5173", "http://localhost:8080"})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "kirana.db")
	v.SetDefault("database.url", "")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.ttl", 5*time.Minute)
	v.SetDefault("store.timezone", "Asia/Kolkata")
	v.SetDefault("store.milk_price_per_litre", "60")
	v.SetDefault("store.free_gift.enabled", false)
	v.SetDefault("store.free_gift.threshold", "0")
	v.SetDefault("store.free_gift.product_id", 0)
	v.SetDefault("store.free_gift.variant_id", "")
	v.SetDefault("store.free_gift.name", "")
	v.SetDefault("store.free_gift.price", "0")
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", time.Hour)
	v.SetDefault("scheduler.auto_migrate", true)
	v.SetDefault("scheduler.auto_milk_logs", false)

	if err := v.ReadInConfig(); err != nil {
		log.Printf("[Config] No config file at %s, using defaults", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	if _, err := c.StoreDefaults(); err != nil {
		return err
	}
	return nil
}

// StoreDefaults converts the store section into settings used until an
// operator saves their own.
func (c *Config) StoreDefaults() (settings.Settings, error) {
	price, err := decimal.NewFromString(c.Store.MilkPricePerLitre)
	if err != nil {
		return settings.Settings{}, fmt.Errorf("store.milk_price_per_litre: %w", err)
	}
	threshold, err := decimal.NewFromString(c.Store.FreeGift.Threshold)
	if err != nil {
		return settings.Settings{}, fmt.Errorf("store.free_gift.threshold: %w", err)
	}
	giftPrice, err := decimal.NewFromString(c.Store.FreeGift.Price)
	if err != nil {
		return settings.Settings{}, fmt.Errorf("store.free_gift.price: %w", err)
	}
	return settings.Settings{
		MilkPricePerLitre: price,
		FreeGift: settings.FreeGift{
			Enabled:   c.Store.FreeGift.Enabled,
			Threshold: threshold,
			ProductID: c.Store.FreeGift.ProductID,
			VariantID: c.Store.FreeGift.VariantID,
			Name:      c.Store.FreeGift.Name,
			Price:     giftPrice,
		},
	}, nil
}
