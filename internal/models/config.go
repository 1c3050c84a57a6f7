package models

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	ServerAddr      string `yaml:"server_addr"`
	DatabaseURL     string `yaml:"database_url"`
	KafkaBroker     string `yaml:"kafka_broker"`
	KafkaTopic      string `yaml:"kafka_topic"`
	KafkaGroup      string `yaml:"kafka_group"`
	StoragePath     string `yaml:"storage_path"`
	PreferencesPath string `yaml:"preferences_path"`
	MaxUploadMB     int64  `yaml:"max_upload_mb"`
	LogLevel        string `yaml:"log_level"`
	SentryDSN       string `yaml:"sentry_dsn"`
	Environment     string `yaml:"environment"`
	ConvertOnStart  bool   `yaml:"convert_on_start"`
	Minio           Minio  `yaml:"minio"`
}

type Minio struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

func (m Minio) Enabled() bool { return m.Endpoint != "" }

// LoadConfig reads the yaml file at path (a missing file is fine), applies
// FA_* environment overrides (a .env file in the working directory is loaded
// first when present) and fills defaults.
func LoadConfig(path string) (*Config, error) {
	const op = "models.LoadConfig"

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"FA_SERVER_ADDR":      &c.ServerAddr,
		"FA_DATABASE_URL":     &c.DatabaseURL,
		"FA_KAFKA_BROKER":     &c.KafkaBroker,
		"FA_KAFKA_TOPIC":      &c.KafkaTopic,
		"FA_KAFKA_GROUP":      &c.KafkaGroup,
		"FA_STORAGE_PATH":     &c.StoragePath,
		"FA_PREFERENCES_PATH": &c.PreferencesPath,
		"FA_LOG_LEVEL":        &c.LogLevel,
		"FA_SENTRY_DSN":       &c.SentryDSN,
		"FA_ENVIRONMENT":      &c.Environment,
		"FA_MINIO_ENDPOINT":   &c.Minio.Endpoint,
		"FA_MINIO_ACCESS_KEY": &c.Minio.AccessKey,
		"FA_MINIO_SECRET_KEY": &c.Minio.SecretKey,
		"FA_MINIO_BUCKET":     &c.Minio.Bucket,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv("FA_MAX_UPLOAD_MB"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("FA_MAX_UPLOAD_MB: %w", err)
		}
		c.MaxUploadMB = n
	}
	if v, ok := os.LookupEnv("FA_MINIO_USE_SSL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("FA_MINIO_USE_SSL: %w", err)
		}
		c.Minio.UseSSL = b
	}
	if v, ok := os.LookupEnv("FA_CONVERT_ON_START"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("FA_CONVERT_ON_START: %w", err)
		}
		c.ConvertOnStart = b
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.KafkaTopic == "" {
		c.KafkaTopic = "filealchemist-jobs"
	}
	if c.KafkaGroup == "" {
		c.KafkaGroup = "filealchemist-converter"
	}
	if c.StoragePath == "" {
		c.StoragePath = "data"
	}
	if c.PreferencesPath == "" {
		c.PreferencesPath = "preferences.yaml"
	}
	if c.MaxUploadMB <= 0 {
		c.MaxUploadMB = 64
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Minio.Bucket == "" {
		c.Minio.Bucket = "filealchemist"
	}
}
