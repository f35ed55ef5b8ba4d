package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            int           `yaml:"port"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	} `yaml:"server"`

	Database struct {
		// Driver: mysql | postgres | memory
		Driver   string `yaml:"driver"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
		Migrate  bool   `yaml:"migrate"`
	} `yaml:"database"`

	Minio struct {
		Enabled    bool   `yaml:"enabled"`
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	AI struct {
		APIKey  string        `yaml:"apiKey"`
		BaseURL string        `yaml:"baseURL"`
		Model   string        `yaml:"model"`
		Timeout time.Duration `yaml:"timeout"`
		// requests per minute ke provider, 0 = tanpa limit
		RPM   int `yaml:"rpm"`
		Burst int `yaml:"burst"`
	} `yaml:"ai"`

	Insights struct {
		TxTimeout    time.Duration `yaml:"txTimeout"`
		RefreshAfter time.Duration `yaml:"refreshAfter"`
	} `yaml:"insights"`

	Refresher struct {
		Enabled     bool          `yaml:"enabled"`
		Interval    time.Duration `yaml:"interval"`
		BatchSize   int           `yaml:"batchSize"`
		Concurrency int           `yaml:"concurrency"`
	} `yaml:"refresher"`

	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`

	Auth struct {
		// user id -> api key
		APIKeys map[string]string `yaml:"apiKeys"`
	} `yaml:"auth"`

	RateLimit struct {
		Capacity   int `yaml:"capacity"`
		RefillRate int `yaml:"refillRate"`
	} `yaml:"rateLimit"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"cors"`
}

// Load baca file config.yaml, lalu env override dan default
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return &cfg, nil
}

// secrets boleh datang dari environment supaya tidak perlu ditulis di file
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.AI.APIKey = key
	}
	if pw := os.Getenv("DATABASE_PASSWORD"); pw != "" {
		c.Database.Password = pw
	}
	if secret := os.Getenv("MINIO_SECRET_KEY"); secret != "" {
		c.Minio.SecretKey = secret
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Port == 0 {
		switch c.Database.Driver {
		case "postgres":
			c.Database.Port = 5432
		default:
			c.Database.Port = 3306
		}
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.AI.Model == "" {
		c.AI.Model = "gpt-4o-mini"
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = 60 * time.Second
	}
	if c.AI.Burst <= 0 {
		c.AI.Burst = 1
	}
	if c.Insights.TxTimeout <= 0 {
		c.Insights.TxTimeout = 10 * time.Second
	}
	if c.Insights.RefreshAfter <= 0 {
		c.Insights.RefreshAfter = 7 * 24 * time.Hour
	}
	if c.Refresher.Interval <= 0 {
		c.Refresher.Interval = time.Hour
	}
	if c.Refresher.BatchSize <= 0 {
		c.Refresher.BatchSize = 20
	}
	if c.Refresher.Concurrency <= 0 {
		c.Refresher.Concurrency = 2
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.RateLimit.Capacity <= 0 {
		c.RateLimit.Capacity = 60
	}
	if c.RateLimit.RefillRate <= 0 {
		c.RateLimit.RefillRate = 1
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// Helper untuk build DSN Postgres (lib/pq key=value)
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s timezone=UTC",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
