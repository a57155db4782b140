package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gridwatch/sentinel/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Processing ProcessingConfig `yaml:"processing" mapstructure:"processing"`
	Detection  DetectionConfig  `yaml:"detection" mapstructure:"detection"`
	Rules      RulesConfig      `yaml:"rules" mapstructure:"rules"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Notify     NotifyConfig     `yaml:"notify" mapstructure:"notify"`
	Sources    []SourceConfig   `yaml:"sources" mapstructure:"sources"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// ProcessingConfig controls the scheduler cadence.
type ProcessingConfig struct {
	BatchIntervalMS int `yaml:"batch_interval_ms" mapstructure:"batch_interval_ms"`
	FallbackDelayMS int `yaml:"fallback_delay_ms" mapstructure:"fallback_delay_ms"`
}

// BatchInterval returns the normal delay between detection cycles.
func (p ProcessingConfig) BatchInterval() time.Duration {
	return time.Duration(p.BatchIntervalMS) * time.Millisecond
}

// FallbackDelay returns the reschedule delay after a failed cycle.
func (p ProcessingConfig) FallbackDelay() time.Duration {
	return time.Duration(p.FallbackDelayMS) * time.Millisecond
}

// DetectionConfig enables and tunes the statistical detectors.
type DetectionConfig struct {
	ZScore ZScoreConfig `yaml:"zscore" mapstructure:"zscore"`
	Grubbs GrubbsConfig `yaml:"grubbs" mapstructure:"grubbs"`
	IQR    IQRConfig    `yaml:"iqr" mapstructure:"iqr"`
}

// ZScoreConfig tunes the plain and modified Z-score detectors.
// UseModifiedOnly switches the Z slot to the MAD-based variant exclusively;
// by default both run.
type ZScoreConfig struct {
	Enabled         bool    `yaml:"enabled" mapstructure:"enabled"`
	Threshold       float64 `yaml:"threshold" mapstructure:"threshold"`
	UseModifiedOnly bool    `yaml:"use_modified_only" mapstructure:"use_modified_only"`
	MADThreshold    float64 `yaml:"mad_threshold" mapstructure:"mad_threshold"`
}

// GrubbsConfig tunes Grubbs' test.
type GrubbsConfig struct {
	Enabled           bool    `yaml:"enabled" mapstructure:"enabled"`
	SignificanceLevel float64 `yaml:"significance_level" mapstructure:"significance_level"`
}

// IQRConfig tunes interquartile-range fencing.
type IQRConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Multiplier float64 `yaml:"multiplier" mapstructure:"multiplier"`
}

// RulesConfig supplies business rules, either inline or from a yaml file.
type RulesConfig struct {
	Path   string       `yaml:"path" mapstructure:"path"`
	Inline []model.Rule `yaml:"inline" mapstructure:"inline"`
}

// StoreConfig configures the anomaly store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// NotifyConfig configures the event bus and webhook notifier.
type NotifyConfig struct {
	WebhookURL string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	Buffer     int     `yaml:"buffer" mapstructure:"buffer"`
	RatePerSec float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// SourceConfig declares one registered data source.
type SourceConfig struct {
	Name string `yaml:"name" mapstructure:"name"`
	Type string `yaml:"type" mapstructure:"type"` // file | http | ftp
	Path string `yaml:"path" mapstructure:"path"`
	URL  string `yaml:"url" mapstructure:"url"`
}

// ServerConfig configures the read/ack HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. Provided keys merge
// over defaults; unrecognized keys are ignored.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("sentinel")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/sentinel")

	// Environment
	v.SetEnvPrefix("SENTINEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("processing.batch_interval_ms", 30000)
	v.SetDefault("processing.fallback_delay_ms", 5000)
	v.SetDefault("detection.zscore.enabled", true)
	v.SetDefault("detection.zscore.threshold", 3.0)
	v.SetDefault("detection.zscore.use_modified_only", false)
	v.SetDefault("detection.zscore.mad_threshold", 3.5)
	v.SetDefault("detection.grubbs.enabled", true)
	v.SetDefault("detection.grubbs.significance_level", 0.05)
	v.SetDefault("detection.iqr.enabled", true)
	v.SetDefault("detection.iqr.multiplier", 1.5)
	v.SetDefault("store.driver", "jsonfile")
	v.SetDefault("store.path", "anomalies.json")
	v.SetDefault("notify.buffer", 64)
	v.SetDefault("notify.rate_per_sec", 5.0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
