// Package config loads service settings from the environment and an optional .env file.
// Variables already set in the environment win over the file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// DefaultEnvFile is read when present in the working directory.
const DefaultEnvFile = ".env"

type Config struct {
	Port          int    `mapstructure:"port" validate:"min=1,max=65535"`
	DBDSN         string `mapstructure:"db_dsn" validate:"required"`
	DBAutoMigrate bool   `mapstructure:"db_auto_migrate"`

	S3Bucket    string `mapstructure:"s3_bucket" validate:"required"`
	S3Prefix    string `mapstructure:"s3_prefix" validate:"required"`
	SNSTopicARN string `mapstructure:"sns_topic_arn" validate:"required,startswith=arn:"`
	SQSURL      string `mapstructure:"sqs_url" validate:"required,url"`

	AWSRegion          string `mapstructure:"aws_region" validate:"required"`
	AWSAccessKeyID     string `mapstructure:"aws_access_key_id" validate:"required_with=AWSSecretAccessKey"`
	AWSSecretAccessKey string `mapstructure:"aws_secret_access_key" validate:"required_with=AWSAccessKeyID"`
	AWSEndpointURL     string `mapstructure:"aws_endpoint_url" validate:"omitempty,url"`

	LambdaFunction string `mapstructure:"lambda_function" validate:"required"`

	RelayEnabled     bool          `mapstructure:"relay_enabled"`
	RelayInterval    time.Duration `mapstructure:"relay_interval" validate:"min=1s"`
	RelayBatchSize   int           `mapstructure:"relay_batch_size" validate:"min=1,max=10"`
	RelayWaitSeconds int           `mapstructure:"relay_wait_seconds" validate:"min=0,max=20"`

	PublicURL   string `mapstructure:"public_url" validate:"omitempty,url"`
	MaxUploadMB int64  `mapstructure:"max_upload_mb" validate:"min=1"`
	CORSOrigins string `mapstructure:"cors_origins"`

	LogLevel  string `mapstructure:"log_level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	LogPretty bool   `mapstructure:"log_pretty"`
}

var defaults = map[string]any{
	"port":                  8081,
	"db_dsn":                "",
	"db_auto_migrate":       true,
	"s3_bucket":             "",
	"s3_prefix":             "image_upload",
	"sns_topic_arn":         "",
	"sqs_url":               "",
	"aws_region":            "eu-west-3",
	"aws_access_key_id":     "",
	"aws_secret_access_key": "",
	"aws_endpoint_url":      "",
	"lambda_function":       "Task9-uploads-batch-notifier",
	"relay_enabled":         true,
	"relay_interval":        "120s",
	"relay_batch_size":      10,
	"relay_wait_seconds":    0,
	"public_url":            "",
	"max_upload_mb":         32,
	"cors_origins":          "*",
	"log_level":             "info",
	"log_pretty":            false,
}

// MaxUploadBytes is the multipart memory limit handed to gin.
func (c *Config) MaxUploadBytes() int64 { return c.MaxUploadMB << 20 }

// Warnings lists settings that load fine but are likely a deployment mistake.
func (c *Config) Warnings() []string {
	var out []string
	if c.PublicURL == "" {
		out = append(out, "PUBLIC_URL is empty; notification emails will quote a relative /delete path")
	}
	return out
}

// Origins splits CORSOrigins on commas.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

type Loader struct {
	v       *viper.Viper
	file    string
	hasFile bool
}

// NewLoader prepares a loader reading envFile when it exists. An empty path means
// DefaultEnvFile.
func NewLoader(envFile string) *Loader {
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	l := &Loader{v: v, file: envFile}
	if _, err := os.Stat(envFile); err == nil {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		l.hasFile = true
	}
	return l
}

// Load reads the file (if any) and returns the validated settings.
func (l *Loader) Load() (*Config, error) {
	if l.hasFile {
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read %s: %w", l.file, err)
		}
	}
	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Watch calls onChange with the re-read settings every time the .env file is written.
// Invalid edits are passed to onError and otherwise ignored. Without a file there is
// nothing to watch and Watch returns false.
func (l *Loader) Watch(onChange func(*Config), onError func(error)) bool {
	if !l.hasFile {
		return false
	}
	l.v.OnConfigChange(func(fsnotify.Event) {
		cfg, err := l.decode()
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	l.v.WatchConfig()
	return true
}
