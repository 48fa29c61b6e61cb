// Package config loads service settings from an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FallbackSalt is used when no salt is configured. Fingerprints made with it
// are only as private as this source file.
const FallbackSalt = "fallback_salt_change_this"

type Config struct {
	Server struct {
		Port        string   `mapstructure:"port"`
		Upstream    string   `mapstructure:"upstream"`
		TLSDomains  []string `mapstructure:"tls_domains"`
		ACMEEmail   string   `mapstructure:"acme_email"`
		ACMEStaging bool     `mapstructure:"acme_staging"`
		TrustProxy  bool     `mapstructure:"trust_proxy"`
	} `mapstructure:"server"`
	Log struct {
		Level string `mapstructure:"level"`
		Path  string `mapstructure:"path"`
	} `mapstructure:"log"`
	Salt        string `mapstructure:"salt"`
	DatabaseURL string `mapstructure:"database_url"`
	RedisURL    string `mapstructure:"redis_url"`
	Kafka       struct {
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"kafka"`
	GeoIP struct {
		ASNPath string `mapstructure:"asn_path"`
	} `mapstructure:"geoip"`
	RulesFile string `mapstructure:"rules_file"`
	Admin     struct {
		Token string `mapstructure:"token"`
	} `mapstructure:"admin"`
	Ingest struct {
		Workers   int           `mapstructure:"workers"`
		QueueSize int           `mapstructure:"queue_size"`
		Timeout   time.Duration `mapstructure:"timeout"`
		Rate      float64       `mapstructure:"rate"`
		Burst     int           `mapstructure:"burst"`
	} `mapstructure:"ingest"`
	Verify struct {
		Timeout    time.Duration `mapstructure:"timeout"`
		Nameserver string        `mapstructure:"nameserver"`
		CacheTTL   time.Duration `mapstructure:"cache_ttl"`
		CacheSize  int           `mapstructure:"cache_size"`
		Rate       float64       `mapstructure:"rate"`
		Burst      int           `mapstructure:"burst"`
	} `mapstructure:"verify"`
	Analysis struct {
		Lookback            time.Duration `mapstructure:"lookback"`
		SessionGap          time.Duration `mapstructure:"session_gap"`
		BatchGap            time.Duration `mapstructure:"batch_gap"`
		LinkFollowThreshold float64       `mapstructure:"link_follow_threshold"`
	} `mapstructure:"analysis"`
}

// UsesFallbackSalt reports whether no salt was configured.
func (c *Config) UsesFallbackSalt() bool {
	return c.Salt == FallbackSalt
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.upstream", "")
	v.SetDefault("server.tls_domains", []string{})
	v.SetDefault("server.acme_email", "")
	v.SetDefault("server.acme_staging", false)
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.path", "")
	v.SetDefault("salt", FallbackSalt)
	v.SetDefault("database_url", "")
	v.SetDefault("redis_url", "")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "geo-shock.access-logs")
	v.SetDefault("geoip.asn_path", "")
	v.SetDefault("rules_file", "")
	v.SetDefault("admin.token", "")
	v.SetDefault("ingest.workers", 4)
	v.SetDefault("ingest.queue_size", 1024)
	v.SetDefault("ingest.timeout", 5*time.Second)
	v.SetDefault("ingest.rate", 10.0)
	v.SetDefault("ingest.burst", 30)
	v.SetDefault("verify.timeout", 3*time.Second)
	v.SetDefault("verify.nameserver", "")
	v.SetDefault("verify.cache_ttl", 24*time.Hour)
	v.SetDefault("verify.cache_size", 4096)
	v.SetDefault("verify.rate", 20.0)
	v.SetDefault("verify.burst", 40)
	v.SetDefault("analysis.lookback", 7*24*time.Hour)
	v.SetDefault("analysis.session_gap", 30*time.Minute)
	v.SetDefault("analysis.batch_gap", 60*time.Second)
	v.SetDefault("analysis.link_follow_threshold", 0.4)
}

// Load reads path (or ./config.yaml when path is empty and the file exists)
// and applies GEO_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GEO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range map[string]string{
		"salt":         "LOG_SALT",
		"database_url": "DATABASE_URL",
		"redis_url":    "REDIS_URL",
		"server.port":  "PORT",
	} {
		if err := v.BindEnv(key, "GEO_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Salt == "" {
		cfg.Salt = FallbackSalt
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the analyzers cannot work with.
func (c *Config) Validate() error {
	durations := map[string]time.Duration{
		"analysis.lookback":    c.Analysis.Lookback,
		"analysis.session_gap": c.Analysis.SessionGap,
		"analysis.batch_gap":   c.Analysis.BatchGap,
		"verify.timeout":       c.Verify.Timeout,
		"ingest.timeout":       c.Ingest.Timeout,
	}
	for key, d := range durations {
		if d <= 0 {
			return fmt.Errorf("config: %s must be positive, got %s", key, d)
		}
	}
	if t := c.Analysis.LinkFollowThreshold; t < 0 || t > 1 {
		return fmt.Errorf("config: analysis.link_follow_threshold must be within [0,1], got %v", t)
	}
	if c.Ingest.Workers <= 0 {
		return fmt.Errorf("config: ingest.workers must be positive, got %d", c.Ingest.Workers)
	}
	return nil
}
