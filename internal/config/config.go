package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	NATS        NATSConfig        `yaml:"nats"`
	MinIO       MinIOConfig       `yaml:"minio"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Reconciler  ReconcilerConfig  `yaml:"reconciler"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// RecognitionConfig selects and tunes the face index backend.
// Backend is "rekognition" (AWS) or "local" (pgvector + embedding sidecar).
type RecognitionConfig struct {
	Backend            string        `yaml:"backend"`
	AWSRegion          string        `yaml:"aws_region"`
	AWSAccessKeyID     string        `yaml:"aws_access_key_id"`
	AWSSecretAccessKey string        `yaml:"aws_secret_access_key"`
	DefaultCollection  string        `yaml:"default_collection"`
	CollectionPrefix   string        `yaml:"collection_prefix"`
	MatchThreshold     float64       `yaml:"match_threshold"`
	MaxFaces           int           `yaml:"max_faces"`
	CallTimeout        time.Duration `yaml:"call_timeout"`
	EmbedderURL        string        `yaml:"embedder_url"`
}

type ReconcilerConfig struct {
	WindowMinutes int           `yaml:"window_minutes"`
	Interval      time.Duration `yaml:"interval"`
	EvictOnRevoke bool          `yaml:"evict_on_revoke"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Recognition.Backend == "" {
		cfg.Recognition.Backend = "rekognition"
	}
	if cfg.Recognition.AWSRegion == "" {
		cfg.Recognition.AWSRegion = "us-east-2"
	}
	if cfg.Recognition.DefaultCollection == "" {
		cfg.Recognition.DefaultCollection = "memento_users"
	}
	if cfg.Recognition.CollectionPrefix == "" {
		cfg.Recognition.CollectionPrefix = "memento_event_"
	}
	if cfg.Recognition.MatchThreshold == 0 {
		cfg.Recognition.MatchThreshold = 80
	}
	if cfg.Recognition.MaxFaces == 0 {
		cfg.Recognition.MaxFaces = 5
	}
	if cfg.Recognition.CallTimeout == 0 {
		cfg.Recognition.CallTimeout = 10 * time.Second
	}
	if cfg.Reconciler.WindowMinutes == 0 {
		cfg.Reconciler.WindowMinutes = 20
	}
	if cfg.Reconciler.Interval == 0 {
		cfg.Reconciler.Interval = 5 * time.Minute
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MEMENTO_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MEMENTO_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("MEMENTO_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("MEMENTO_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("MEMENTO_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("MEMENTO_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("MEMENTO_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("MEMENTO_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("MEMENTO_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("MEMENTO_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("MEMENTO_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("MEMENTO_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("MEMENTO_RECOGNITION_BACKEND"); v != "" {
		cfg.Recognition.Backend = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Recognition.AWSRegion = v
	}
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		cfg.Recognition.AWSAccessKeyID = v
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		cfg.Recognition.AWSSecretAccessKey = v
	}
	if v := os.Getenv("MEMENTO_DEFAULT_COLLECTION"); v != "" {
		cfg.Recognition.DefaultCollection = v
	}
	if v := os.Getenv("MEMENTO_COLLECTION_PREFIX"); v != "" {
		cfg.Recognition.CollectionPrefix = v
	}
	if v := os.Getenv("MEMENTO_MATCH_THRESHOLD"); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Recognition.MatchThreshold = t
		}
	}
	if v := os.Getenv("MEMENTO_EMBEDDER_URL"); v != "" {
		cfg.Recognition.EmbedderURL = v
	}
	if v := os.Getenv("MEMENTO_RECONCILE_WINDOW_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Reconciler.WindowMinutes = n
		}
	}
	if v := os.Getenv("MEMENTO_EVICT_ON_REVOKE"); v != "" {
		cfg.Reconciler.EvictOnRevoke = v == "true" || v == "1"
	}
}
