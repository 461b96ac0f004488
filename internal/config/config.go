package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Redis       RedisConfig       `mapstructure:"redis"`
	MySQL       MySQLConfig       `mapstructure:"mysql"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Leader      LeaderConfig      `mapstructure:"leader"`
	Instance    InstanceConfig    `mapstructure:"instance"`
	Bidding     BiddingConfig     `mapstructure:"bidding"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	Port       int    `mapstructure:"port"`
	Host       string `mapstructure:"host"`
	EventsPort int    `mapstructure:"events_port"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// StorageConfig selects the entity store: "mysql" or "memory".
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type LeaderConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

type BiddingConfig struct {
	SerializeSubmissions bool          `mapstructure:"serialize_submissions"`
	LockExpiry           time.Duration `mapstructure:"lock_expiry"`
	NotifyOutbid         bool          `mapstructure:"notify_outbid"`
}

type CacheConfig struct {
	ViewTTL time.Duration `mapstructure:"view_ttl"`
}

type MaintenanceConfig struct {
	PruneSchedule         string        `mapstructure:"prune_schedule"`
	NotificationRetention time.Duration `mapstructure:"notification_retention"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.events_port", 8081)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("mysql.dsn", "market_user:market_pass@tcp(localhost:3306)/marketplace?parseTime=true")
	v.SetDefault("mysql.max_open_conns", 25)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("storage.driver", "mysql")
	v.SetDefault("leader.ttl", 30*time.Second)
	v.SetDefault("instance.id", "bidding-api-1")
	v.SetDefault("bidding.serialize_submissions", true)
	v.SetDefault("bidding.lock_expiry", 8*time.Second)
	v.SetDefault("bidding.notify_outbid", false)
	v.SetDefault("cache.view_ttl", 10*time.Minute)
	v.SetDefault("maintenance.prune_schedule", "@every 1h")
	v.SetDefault("maintenance.notification_retention", 30*24*time.Hour)
	v.SetDefault("log.level", "info")
}

func bindEnv(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Environment variable mappings
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.host", "SERVER_HOST")
	v.BindEnv("server.events_port", "SERVER_EVENTS_PORT")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")
	v.BindEnv("mysql.dsn", "MYSQL_DSN")
	v.BindEnv("mysql.max_open_conns", "MYSQL_MAX_OPEN_CONNS")
	v.BindEnv("mysql.max_idle_conns", "MYSQL_MAX_IDLE_CONNS")
	v.BindEnv("mysql.conn_max_lifetime", "MYSQL_CONN_MAX_LIFETIME")
	v.BindEnv("storage.driver", "STORAGE_DRIVER")
	v.BindEnv("leader.ttl", "LEADER_TTL")
	v.BindEnv("instance.id", "INSTANCE_ID")
	v.BindEnv("bidding.serialize_submissions", "BIDDING_SERIALIZE_SUBMISSIONS")
	v.BindEnv("bidding.lock_expiry", "BIDDING_LOCK_EXPIRY")
	v.BindEnv("bidding.notify_outbid", "BIDDING_NOTIFY_OUTBID")
	v.BindEnv("cache.view_ttl", "CACHE_VIEW_TTL")
	v.BindEnv("maintenance.prune_schedule", "MAINTENANCE_PRUNE_SCHEDULE")
	v.BindEnv("maintenance.notification_retention", "MAINTENANCE_NOTIFICATION_RETENTION")
	v.BindEnv("log.level", "LOG_LEVEL")
}

func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Configuration file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/marketplace/")

	bindEnv(v)

	// Read configuration file (optional - will use defaults/env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	return unmarshal(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "mysql", "memory":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Bidding.SerializeSubmissions && c.Bidding.LockExpiry <= 0 {
		return fmt.Errorf("config: bidding.lock_expiry must be positive")
	}
	return nil
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Server: %s:%d, Redis: %s, Storage: %s, Instance: %s, SerializeBids: %t",
		c.Server.Host,
		c.Server.Port,
		c.Redis.Address,
		c.Storage.Driver,
		c.Instance.ID,
		c.Bidding.SerializeSubmissions,
	)
}
