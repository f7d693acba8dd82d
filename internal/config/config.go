package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"parking-lpr-service/internal/domain/parking"
)

type ServerConfig struct {
	Addr         string   `mapstructure:"addr"`
	CORSOrigins  []string `mapstructure:"cors_origins"`
	GinDebugMode bool     `mapstructure:"gin_debug"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // postgres or sqlite
	DSN    string `mapstructure:"dsn"`
}

// UserConfig is one operator account. Role "admin" may edit tariffs.
type UserConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Role     string `mapstructure:"role"`
}

type AuthConfig struct {
	JWTSecret   string       `mapstructure:"jwt_secret"`
	TokenTTLMin int          `mapstructure:"token_ttl_minutes"`
	Users       []UserConfig `mapstructure:"users"`
}

type SessionConfig struct {
	// Scope of the "last event" lookup used for IN/OUT alternation and for
	// matching an OUT to its IN. One value drives both lookups.
	Scope parking.Scope `mapstructure:"scope"`
}

type CaptureConfig struct {
	RunDir string `mapstructure:"run_dir"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Session  SessionConfig  `mapstructure:"session"`
	Capture  CaptureConfig  `mapstructure:"capture"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "parking.db")
	v.SetDefault("auth.token_ttl_minutes", 480)
	v.SetDefault("session.scope", string(parking.ScopeGlobal))
	v.SetDefault("capture.run_dir", "runs")

	v.SetDefault("tariff.grace_minutes", 10)
	v.SetDefault("tariff.rates.motorbike.first_hour_fee", 5000)
	v.SetDefault("tariff.rates.motorbike.hourly_fee", 2000)
	v.SetDefault("tariff.rates.motorbike.daily_cap", 20000)
	v.SetDefault("tariff.rates.car.first_hour_fee", 20000)
	v.SetDefault("tariff.rates.car.hourly_fee", 10000)
	v.SetDefault("tariff.rates.car.daily_cap", 100000)
}

// Load reads config.yml plus PARKING_* env overrides. The returned viper
// instance stays alive so the tariff holder can watch it for edits.
func Load(path string) (*Config, *viper.Viper, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath("/etc/parking-lpr")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PARKING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, nil, err
		}
		// No config file is fine, defaults plus env cover a dev run.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, err
	}
	if err := validate(&cfg); err != nil {
		return nil, nil, err
	}
	return &cfg, v, nil
}

func validate(cfg *Config) error {
	if cfg.Database.Driver != "postgres" && cfg.Database.Driver != "sqlite" {
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", cfg.Database.Driver)
	}
	if !cfg.Session.Scope.Valid() {
		return fmt.Errorf("session.scope must be global or day, got %q", cfg.Session.Scope)
	}
	for _, u := range cfg.Auth.Users {
		if u.Username == "" || u.Password == "" {
			return fmt.Errorf("auth.users entries need username and password")
		}
	}
	return nil
}
