package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	S3       S3Config       `mapstructure:"s3"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Planner  PlannerConfig  `mapstructure:"planner"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

// StorageConfig selects where plans and conversations live.
type StorageConfig struct {
	Backend string `mapstructure:"backend"` // "mongo" or "memory"
}

// S3Config locates the bucket that archives committed plan versions.
// An empty BucketName disables archiving.
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// PlannerConfig configures the OpenAI-backed modification planner.
type PlannerConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	Model           string        `mapstructure:"model"`
	MaxOutputTokens int64         `mapstructure:"max_output_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// EngineConfig tunes the conversation engine.
type EngineConfig struct {
	PreviewTTL      time.Duration `mapstructure:"preview_ttl"`
	TranscriptTail  int           `mapstructure:"transcript_tail"`
	DefaultTimezone string        `mapstructure:"default_timezone"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Location returns the configured default time zone, UTC if unset or unknown.
func (e EngineConfig) Location() *time.Location {
	if e.DefaultTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(e.DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Nested keys map to env vars, e.g. planner.api_key -> PLANNER_API_KEY
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	v.SetDefault("server.address", ":8080")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "run_coach")
	v.SetDefault("storage.backend", "mongo")
	v.SetDefault("s3.use_ssl", true)
	// AutomaticEnv only sees keys viper already knows about.
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.bucket_name", "")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("planner.api_key", "")
	v.SetDefault("planner.model", "gpt-4o-mini")
	v.SetDefault("planner.max_output_tokens", 2000)
	v.SetDefault("planner.timeout", "60s")
	v.SetDefault("engine.preview_ttl", "15m")
	v.SetDefault("engine.transcript_tail", 20)
	v.SetDefault("engine.default_timezone", "UTC")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	err = v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// Defaults and env vars are enough to run.
		err = nil
	} else if err != nil {
		return
	}

	// Duration strings ("15m", "60s") decode straight into time.Duration fields.
	err = v.Unmarshal(&config)
	if err != nil {
		return
	}
	return config, nil
}
