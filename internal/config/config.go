package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config top-level struct
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Outbox    OutboxConfig    `yaml:"outbox"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
	// MetricsPort exposes /metrics from the worker; 0 disables it.
	MetricsPort int `yaml:"metrics_port"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type RateLimitConfig struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

// OutboxConfig drives the poller, the worker pool and the dispatch queue.
type OutboxConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
	Workers      int           `yaml:"workers"`
	JobAttempts  int           `yaml:"job_attempts"`
	JobBackoff   time.Duration `yaml:"job_backoff"`
	// JobLease is how long a dequeued job may run before it is requeued.
	JobLease      time.Duration `yaml:"job_lease"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	// MaxAttempts > 0 moves exhausted events to DEAD; 0 retries forever.
	MaxAttempts int    `yaml:"max_attempts"`
	QueueDriver string `yaml:"queue_driver"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads yaml file
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	// override DSN password from env if present
	if pw := os.Getenv("POSTGRES_PASSWORD"); pw != "" {
		c.Postgres.DSN = c.Postgres.DSN + " password=" + pw
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.Kafka.Brokers = strings.Split(brokers, ",")
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.RateLimit.RPS == 0 {
		c.RateLimit.RPS = 50
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 100
	}
	o := &c.Outbox
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Second
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.JobAttempts <= 0 {
		o.JobAttempts = 5
	}
	if o.JobBackoff <= 0 {
		o.JobBackoff = 5 * time.Second
	}
	if o.JobLease <= 0 {
		o.JobLease = 5 * time.Minute
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = 30 * time.Second
	}
	if o.MaxAttempts < 0 {
		o.MaxAttempts = 0
	}
	if o.QueueDriver == "" {
		o.QueueDriver = "redis"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}
