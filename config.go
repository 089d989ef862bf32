package tenantstore

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the connection and pool settings for a provider.
type Config struct {
	// URI, when set, is used verbatim and overrides Host/Port/DB/User/Pass.
	URI string `mapstructure:"uri"`

	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	DB   string `mapstructure:"db"`
	User string `mapstructure:"user"`
	Pass string `mapstructure:"pass"`

	// Max bounds the number of concurrently leased connections.
	Max int `mapstructure:"max"`

	// Min is the number of connections created eagerly at startup and
	// never evicted for idleness.
	Min int `mapstructure:"min"`

	// ConnectTimeout bounds establishing a single connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`

	// KeepAlive is the TCP keep-alive period for store sockets.
	KeepAlive time.Duration `mapstructure:"keep_alive"`

	// AcquireTimeout is the pool wait limit for a free connection.
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`

	// IdleTimeout evicts idle connections above Min. Zero disables eviction.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:           "localhost",
		Port:           27017,
		DB:             "test",
		Max:            100,
		Min:            1,
		ConnectTimeout: 30 * time.Second,
		KeepAlive:      300 * time.Second,
		AcquireTimeout: 30 * time.Second,
	}
}

// ConnectionURI builds the MongoDB connection string. An explicit URI wins;
// otherwise credentials are embedded when both user and pass are set.
func (c Config) ConnectionURI() string {
	if c.URI != "" {
		return c.URI
	}
	u := url.URL{
		Scheme: "mongodb",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.DB,
	}
	if c.User != "" && c.Pass != "" {
		u.User = url.UserPassword(c.User, c.Pass)
	}
	return u.String()
}

// Validate checks the pool bounds.
func (c Config) Validate() error {
	if c.Max <= 0 {
		return fmt.Errorf("%w: max must be positive, got %d", ErrInvalidConfig, c.Max)
	}
	if c.Min < 0 || c.Min > c.Max {
		return fmt.Errorf("%w: min must be within [0, max], got %d", ErrInvalidConfig, c.Min)
	}
	if c.URI == "" && c.Host == "" {
		return fmt.Errorf("%w: host or uri is required", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads configuration from an optional file and TENANTSTORE_*
// environment variables on top of DefaultConfig. An empty path searches
// for tenantstore.{yaml,json,toml} in the working directory and
// /etc/tenantstore; a missing file is not an error.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix("TENANTSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("tenantstore: read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("tenantstore")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/tenantstore")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("tenantstore: read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("tenantstore: decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can bind it during
// Unmarshal.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("uri", d.URI)
	v.SetDefault("host", d.Host)
	v.SetDefault("port", d.Port)
	v.SetDefault("db", d.DB)
	v.SetDefault("user", d.User)
	v.SetDefault("pass", d.Pass)
	v.SetDefault("max", d.Max)
	v.SetDefault("min", d.Min)
	v.SetDefault("connect_timeout", d.ConnectTimeout)
	v.SetDefault("keep_alive", d.KeepAlive)
	v.SetDefault("acquire_timeout", d.AcquireTimeout)
	v.SetDefault("idle_timeout", d.IdleTimeout)
}
