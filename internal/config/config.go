package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sessiongate/backend/internal/session"
)

// Duration accepts "30s"-style values in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

type Config struct {
	Server   ServerConfig     `yaml:"server"`
	Session  SessionConfig    `yaml:"session"`
	Stages   []string         `yaml:"stages"`
	Settings session.Settings `yaml:"settings"`
	Redis    RedisConfig      `yaml:"redis"`
	Admin    AdminConfig      `yaml:"admin"`
}

type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// SessionConfig mirrors session.Config with YAML-friendly durations.
type SessionConfig struct {
	HeartbeatTimeout Duration `yaml:"heartbeat_timeout"`
	MaxAge           Duration `yaml:"max_age"`
	PendingMaxAge    Duration `yaml:"pending_max_age"`
	TransitionGrace  Duration `yaml:"transition_grace"`
	SweepInterval    Duration `yaml:"sweep_interval"`
}

// RedisConfig selects the Redis-backed ban store when Addr is set;
// otherwise bans live in memory.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AdminConfig struct {
	Token          string   `yaml:"token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

func defaults() *Config {
	d := session.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Session: SessionConfig{
			HeartbeatTimeout: Duration(d.HeartbeatTimeout),
			MaxAge:           Duration(d.MaxAge),
			PendingMaxAge:    Duration(d.PendingMaxAge),
			TransitionGrace:  Duration(d.TransitionGrace),
			SweepInterval:    Duration(d.SweepInterval),
		},
		Stages:   []string{"Gate", "Loading", "Review", "Confirm", "Complete"},
		Settings: session.DefaultSettings(),
	}
}

// Load reads the YAML config file over the built-in defaults and then
// applies environment overrides (which a .env file may have populated).
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// SessionSettings converts the YAML thresholds into the registry's config.
func (c *Config) SessionSettings() session.Config {
	return session.Config{
		HeartbeatTimeout: time.Duration(c.Session.HeartbeatTimeout),
		MaxAge:           time.Duration(c.Session.MaxAge),
		PendingMaxAge:    time.Duration(c.Session.PendingMaxAge),
		TransitionGrace:  time.Duration(c.Session.TransitionGrace),
		SweepInterval:    time.Duration(c.Session.SweepInterval),
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		c.Admin.Token = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	}
	if v := os.Getenv("REDIRECT_URL"); v != "" {
		c.Settings.RedirectURL = v
	}
}
