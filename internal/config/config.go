// Package config loads the shop configuration from defaults, an optional
// YAML file and CHAOS_SHOP_* environment variables, in that precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fjod/chaos-shop/internal/orders"
	"github.com/fjod/chaos-shop/internal/repository"
	"github.com/spf13/viper"
)

const EnvPrefix = "CHAOS_SHOP"

// Settlement trigger modes.
const (
	TriggerRead  = "read"
	TriggerEvent = "event"
)

type Config struct {
	HTTP       HTTPConfig       `mapstructure:"http"`
	GRPC       GRPCConfig       `mapstructure:"grpc"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Mongo      MongoConfig      `mapstructure:"mongo"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Assets     AssetsConfig     `mapstructure:"assets"`
	Log        LogConfig        `mapstructure:"log"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type GRPCConfig struct {
	Addr          string        `mapstructure:"addr"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	DBName         string `mapstructure:"dbname"`
	SSLMode        string `mapstructure:"sslmode"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

func (p PostgresConfig) Credentials() *repository.Credentials {
	return &repository.Credentials{
		Host:              p.Host,
		Port:              p.Port,
		User:              p.User,
		Password:          p.Password,
		DBName:            p.DBName,
		SSLMode:           p.SSLMode,
		MigrationsDirPath: p.MigrationsPath,
	}
}

type CatalogConfig struct {
	DBPath         string `mapstructure:"db_path"`
	MigrationsPath string `mapstructure:"migrations_path"`
	ImageDir       string `mapstructure:"image_dir"`
	SeedFile       string `mapstructure:"seed_file"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CartTTL  time.Duration `mapstructure:"cart_ttl"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type SettlementConfig struct {
	Trigger     string        `mapstructure:"trigger"`
	SuccessRate float64       `mapstructure:"success_rate"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

func (s SettlementConfig) Settings() orders.Settings {
	return orders.Settings{
		SuccessRate: s.SuccessRate,
		MinDelay:    s.MinDelay,
		MaxDelay:    s.MaxDelay,
	}
}

type AssetsConfig struct {
	SlowDelay time.Duration `mapstructure:"slow_delay"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.request_timeout", 20*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("grpc.addr", ":50051")
	v.SetDefault("grpc.check_interval", 10*time.Second)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "postgres")
	v.SetDefault("postgres.dbname", "chaos_shop")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.migrations_path", "./internal/repository/migrations")

	v.SetDefault("catalog.db_path", "./data/catalog.db")
	v.SetDefault("catalog.migrations_path", "./internal/catalog/migrations")
	v.SetDefault("catalog.image_dir", "./static/images/products")
	v.SetDefault("catalog.seed_file", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cart_ttl", 24*time.Hour)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "chaos_shop")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "order-events")

	def := orders.DefaultSettings()
	v.SetDefault("settlement.trigger", TriggerRead)
	v.SetDefault("settlement.success_rate", def.SuccessRate)
	v.SetDefault("settlement.min_delay", def.MinDelay)
	v.SetDefault("settlement.max_delay", def.MaxDelay)

	v.SetDefault("assets.slow_delay", 3*time.Second)

	v.SetDefault("log.level", "info")
}

// New returns a viper instance with defaults and environment binding in
// place. Callers may bind command flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (when non-empty) into v and decodes the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Settlement.Trigger {
	case TriggerRead, TriggerEvent:
	default:
		return fmt.Errorf("settlement.trigger must be %q or %q, got %q", TriggerRead, TriggerEvent, c.Settlement.Trigger)
	}
	if c.Settlement.SuccessRate < 0 || c.Settlement.SuccessRate > 1 {
		return fmt.Errorf("settlement.success_rate must be within [0, 1], got %v", c.Settlement.SuccessRate)
	}
	if c.Settlement.MinDelay < 0 || c.Settlement.MaxDelay < c.Settlement.MinDelay {
		return fmt.Errorf("settlement delay bounds are invalid: min %s, max %s", c.Settlement.MinDelay, c.Settlement.MaxDelay)
	}
	if c.Settlement.Trigger == TriggerEvent && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("settlement.trigger %q requires kafka.brokers", TriggerEvent)
	}
	return nil
}
