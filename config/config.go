package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Push      PushConfig      `yaml:"push"`
	Email     EmailConfig     `yaml:"email"`
	Chat      ChatConfig      `yaml:"chat"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// EmailConfig holds the SMTP transport configuration for the email channel.
// The channel is treated as unconfigured when Host is empty.
type EmailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// ChatConfig holds the bot credentials for the chat-transport channel.
// The channel is treated as unconfigured when Token is empty.
type ChatConfig struct {
	Token string `yaml:"token"`
}

// SchedulerConfig controls the background sweeps.
type SchedulerConfig struct {
	SweepIntervalSeconds int           `yaml:"sweep_interval_seconds"`
	SweepInterval        time.Duration `yaml:"-"` // Ignored by YAML parser
	BatchLimit           int           `yaml:"batch_limit"`
	MissedGraceMinutes   int           `yaml:"missed_grace_minutes"`
	MissedGrace          time.Duration `yaml:"-"`
	ChannelTimeoutSecs   int           `yaml:"channel_timeout_seconds"`
	ChannelTimeout       time.Duration `yaml:"-"`
	StaleClaimMinutes    int           `yaml:"stale_claim_minutes"`
	StaleClaim           time.Duration `yaml:"-"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills in defaults for unset or invalid values and derives
// the duration fields from their integer counterparts.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 60
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.Email.Port <= 0 {
		cfg.Email.Port = 587
	}

	if cfg.Scheduler.SweepIntervalSeconds <= 0 {
		cfg.Scheduler.SweepIntervalSeconds = 60
	}
	cfg.Scheduler.SweepInterval = time.Duration(cfg.Scheduler.SweepIntervalSeconds) * time.Second

	if cfg.Scheduler.BatchLimit <= 0 {
		log.Printf("scheduler.batch_limit is not set or invalid; defaulting to 50")
		cfg.Scheduler.BatchLimit = 50
	}

	if cfg.Scheduler.MissedGraceMinutes <= 0 {
		cfg.Scheduler.MissedGraceMinutes = 30
	}
	cfg.Scheduler.MissedGrace = time.Duration(cfg.Scheduler.MissedGraceMinutes) * time.Minute

	if cfg.Scheduler.ChannelTimeoutSecs <= 0 {
		cfg.Scheduler.ChannelTimeoutSecs = 10
	}
	cfg.Scheduler.ChannelTimeout = time.Duration(cfg.Scheduler.ChannelTimeoutSecs) * time.Second

	if cfg.Scheduler.StaleClaimMinutes <= 0 {
		cfg.Scheduler.StaleClaimMinutes = 15
	}
	cfg.Scheduler.StaleClaim = time.Duration(cfg.Scheduler.StaleClaimMinutes) * time.Minute
}
