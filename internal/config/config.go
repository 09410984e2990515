package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"service-auction/internal/services"

	"github.com/spf13/viper"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreMySQL  = "mysql"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	MySQL     MySQLConfig     `mapstructure:"mysql"`
	Leader    LeaderConfig    `mapstructure:"leader"`
	Instance  InstanceConfig  `mapstructure:"instance"`
	Store     StoreConfig     `mapstructure:"store"`
	Auction   AuctionConfig   `mapstructure:"auction"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Authority AuthorityConfig `mapstructure:"authority"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Events    EventsConfig    `mapstructure:"events"`
	Log       LogConfig       `mapstructure:"log"`
	Agents    []AgentConfig   `mapstructure:"agents"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
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

type LeaderConfig struct {
	Key string        `mapstructure:"key"`
	TTL time.Duration `mapstructure:"ttl"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

// StoreConfig picks the auction store backend: memory, redis or mysql.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type AuctionConfig struct {
	MinPaymentAmount   uint64        `mapstructure:"min_payment_amount"`
	MaxPaymentAmount   uint64        `mapstructure:"max_payment_amount"`
	MinBidIncrement    uint64        `mapstructure:"min_bid_increment"`
	MinDuration        time.Duration `mapstructure:"min_duration"`
	MaxDuration        time.Duration `mapstructure:"max_duration"`
	AntiSnipeWindow    time.Duration `mapstructure:"anti_snipe_window"`
	AntiSnipeExtension time.Duration `mapstructure:"anti_snipe_extension"`
	MaxExtensions      int           `mapstructure:"max_extensions"`
	ExcessiveBids      uint32        `mapstructure:"excessive_bids"`
	AmountDecimals     int32         `mapstructure:"amount_decimals"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// AuthorityConfig lists the accounts allowed to finalize any auction. The
// scheduler acts as the first one.
type AuthorityConfig struct {
	IDs []string `mapstructure:"ids"`
}

type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
}

type SchedulerConfig struct {
	Spec string `mapstructure:"spec"`
}

type EventsConfig struct {
	Channel    string `mapstructure:"channel"`
	BufferSize int    `mapstructure:"buffer_size"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// AgentConfig seeds the in-memory agent directory.
type AgentConfig struct {
	ID     string `mapstructure:"id"`
	Owner  string `mapstructure:"owner"`
	Active bool   `mapstructure:"active"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("mysql.dsn", "auction_user:auction_pass@tcp(localhost:3306)/auction_db?parseTime=true&loc=UTC")
	v.SetDefault("mysql.max_open_conns", 25)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("leader.key", "auction_leader")
	v.SetDefault("leader.ttl", 30*time.Second)
	v.SetDefault("instance.id", "auction-service-1")
	v.SetDefault("store.driver", StoreRedis)

	limits := services.DefaultLimits()
	policy := services.DefaultAntiSnipePolicy()
	v.SetDefault("auction.min_payment_amount", limits.MinPaymentAmount)
	v.SetDefault("auction.max_payment_amount", limits.MaxPaymentAmount)
	v.SetDefault("auction.min_bid_increment", limits.MinBidIncrement)
	v.SetDefault("auction.min_duration", limits.MinAuctionDuration)
	v.SetDefault("auction.max_duration", limits.MaxAuctionDuration)
	v.SetDefault("auction.anti_snipe_window", policy.Window)
	v.SetDefault("auction.anti_snipe_extension", policy.Extension)
	v.SetDefault("auction.max_extensions", policy.MaxExtensions)
	v.SetDefault("auction.excessive_bids", 10)
	v.SetDefault("auction.amount_decimals", 9)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("authority.ids", []string{"protocol-authority"})
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.limit", 30)
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("scheduler.spec", "@every 10s")
	v.SetDefault("events.channel", "auction_events")
	v.SetDefault("events.buffer_size", 1024)
	v.SetDefault("log.level", "info")
}

func bindEnv(v *viper.Viper) {
	// Environment variable support
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Environment variable mappings
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.host", "SERVER_HOST")
	_ = v.BindEnv("redis.address", "REDIS_ADDRESS")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("mysql.dsn", "MYSQL_DSN")
	_ = v.BindEnv("mysql.max_open_conns", "MYSQL_MAX_OPEN_CONNS")
	_ = v.BindEnv("mysql.max_idle_conns", "MYSQL_MAX_IDLE_CONNS")
	_ = v.BindEnv("mysql.conn_max_lifetime", "MYSQL_CONN_MAX_LIFETIME")
	_ = v.BindEnv("leader.ttl", "LEADER_TTL")
	_ = v.BindEnv("instance.id", "INSTANCE_ID")
	_ = v.BindEnv("store.driver", "STORE_DRIVER")
	_ = v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	_ = v.BindEnv("log.level", "LOG_LEVEL")
}

func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Configuration file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/service-auction/")

	bindEnv(v)

	// Read configuration file (optional - will use defaults/env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
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
	switch c.Store.Driver {
	case StoreMemory, StoreRedis, StoreMySQL:
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Auction.MinPaymentAmount == 0 || c.Auction.MinPaymentAmount > c.Auction.MaxPaymentAmount {
		return fmt.Errorf("config: invalid payment bounds [%d, %d]",
			c.Auction.MinPaymentAmount, c.Auction.MaxPaymentAmount)
	}
	if c.Auction.MinDuration <= 0 || c.Auction.MinDuration > c.Auction.MaxDuration {
		return fmt.Errorf("config: invalid duration bounds [%s, %s]",
			c.Auction.MinDuration, c.Auction.MaxDuration)
	}
	if c.Auction.AmountDecimals < 0 || c.Auction.AmountDecimals > 18 {
		return fmt.Errorf("config: amount_decimals %d out of range", c.Auction.AmountDecimals)
	}
	if c.Leader.TTL < 3*time.Second {
		return fmt.Errorf("config: leader ttl %s too short", c.Leader.TTL)
	}
	return nil
}

func (a AuctionConfig) Limits() services.Limits {
	return services.Limits{
		MinPaymentAmount:   a.MinPaymentAmount,
		MaxPaymentAmount:   a.MaxPaymentAmount,
		MinBidIncrement:    a.MinBidIncrement,
		MinAuctionDuration: a.MinDuration,
		MaxAuctionDuration: a.MaxDuration,
	}
}

func (a AuctionConfig) AntiSnipePolicy() services.AntiSnipePolicy {
	return services.AntiSnipePolicy{
		Window:        a.AntiSnipeWindow,
		Extension:     a.AntiSnipeExtension,
		MaxExtensions: a.MaxExtensions,
	}
}

// SchedulerIdentity is the authority the scheduler finalizes as.
func (a AuthorityConfig) SchedulerIdentity() string {
	if len(a.IDs) == 0 {
		return ""
	}
	return a.IDs[0]
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Server: %s:%d, Store: %s, Redis: %s, Instance: %s",
		c.Server.Host,
		c.Server.Port,
		c.Store.Driver,
		c.Redis.Address,
		c.Instance.ID,
	)
}
