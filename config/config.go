// Package config loads service configuration from a YAML file, environment
// variables (prefix MSG_) and command-line flag overrides, in that order of
// precedence, lowest first.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	HTTP struct {
		Addr            string        `mapstructure:"addr" validate:"required"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"http"`

	Auth struct {
		// HS256 secret for verifying client bearer tokens. Token issuance
		// lives in the auth service, not here.
		Secret           string        `mapstructure:"secret" validate:"required,min=16"`
		HandshakeTimeout time.Duration `mapstructure:"handshake_timeout" validate:"required"`
	} `mapstructure:"auth"`

	Hub struct {
		MailboxSize      int           `mapstructure:"mailbox_size" validate:"gt=0"`
		ConnectionBuffer int           `mapstructure:"connection_buffer" validate:"gt=0"`
		SendTimeout      time.Duration `mapstructure:"send_timeout" validate:"gt=0"`
		EvictionInterval time.Duration `mapstructure:"eviction_interval"`
		IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
	} `mapstructure:"hub"`

	Guard struct {
		CacheSize int           `mapstructure:"cache_size" validate:"gt=0"`
		CacheTTL  time.Duration `mapstructure:"cache_ttl" validate:"gt=0"`
	} `mapstructure:"guard"`

	AMQP struct {
		// Empty URL disables the bus: notifications stay local-only.
		URL string `mapstructure:"url"`
	} `mapstructure:"amqp"`

	Store struct {
		Path string `mapstructure:"path" validate:"required"`
	} `mapstructure:"store"`

	Log struct {
		Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	} `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8090")
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	// Keys without a usable default still need registering, otherwise
	// AutomaticEnv never surfaces them to Unmarshal.
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.handshake_timeout", 5*time.Second)
	v.SetDefault("amqp.url", "")
	v.SetDefault("hub.mailbox_size", 1024)
	v.SetDefault("hub.connection_buffer", 256)
	v.SetDefault("hub.send_timeout", 500*time.Millisecond)
	v.SetDefault("hub.eviction_interval", 15*time.Minute)
	v.SetDefault("hub.idle_timeout", 30*time.Minute)
	v.SetDefault("guard.cache_size", 4096)
	v.SetDefault("guard.cache_ttl", 30*time.Second)
	v.SetDefault("store.path", "data/messaging")
	v.SetDefault("log.level", "info")
}

// LoadConfig reads the file at path (optional), applies MSG_* environment
// overrides and validates the result. When flags is non-nil its values win
// over both.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MSG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("config: bind flags: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	// Hot-reload is observability only: a restart is still required for the
	// new values to take effect, but the operator sees the drift.
	if path != "" {
		v.OnConfigChange(func(e fsnotify.Event) {
			slog.Info("config file changed on disk, restart to apply", "file", e.Name)
		})
		v.WatchConfig()
	}

	return cfg, nil
}
