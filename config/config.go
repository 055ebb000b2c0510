package config

import (
	"fmt"
	"os"

	env "github.com/caarlos0/env/v11"
	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	Storage    StorageConfig    `yaml:"storage"`
	Reference  ReferenceConfig  `yaml:"reference"`
	CustomsBox CustomsBoxConfig `yaml:"customsbox"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ConnString returns a pgx connection URL; ssl_mode defaults to disable.
func (d DatabaseConfig) ConnString() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.DBName, sslMode)
}

type KafkaConfig struct {
	Host                    string `yaml:"host"`
	Port                    int    `yaml:"port"`
	CustomsUpdatedTopicName string `yaml:"customs_updated_topic_name"`
	ShipmentEventsTopicName string `yaml:"shipment_events_topic_name"`
}

func (k KafkaConfig) Brokers() []string {
	return []string{fmt.Sprintf("%s:%d", k.Host, k.Port)}
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // "postgres" | "memory"
}

type ReferenceConfig struct {
	// RestrictionsPath points to a YAML file with restriction and HS code tables.
	// Empty means built-in defaults.
	RestrictionsPath string `yaml:"restrictions_path"`
}

type CustomsBoxConfig struct {
	HTTPAddr                string `yaml:"http_addr"`
	KafkaConsumerGroup      string `yaml:"kafka_consumer_group"`
	CurrentStatusTTLSeconds int    `yaml:"current_status_ttl_seconds"`
	LockTTLSeconds          int    `yaml:"lock_ttl_seconds"`

	WorkerPollIntervalSeconds int              `yaml:"worker_poll_interval_seconds"`
	WorkerBatchSize           int              `yaml:"worker_batch_size"`
	WorkerConcurrency         int              `yaml:"worker_concurrency"`
	WorkerLeaseSeconds        int              `yaml:"worker_lease_seconds"`
	WorkerPublishAttempts     int              `yaml:"worker_publish_attempts"`
	WorkerRateLimitPerMinute  int              `yaml:"worker_rate_limit_per_minute"`
	WorkerCountryRateLimits   map[string]int64 `yaml:"worker_country_rate_limits"`

	WorkerHTTPAddr string `yaml:"worker_http_addr"`

	// Worker scheduling (optional). Defaults: in_process 30..60 minutes, requires_additional_info
	// 4 hours, detained 6 hours, unknown 60 minutes, backoff 5/15/30/60 minutes.
	WorkerNextCheckInProcessMinSeconds  int `yaml:"worker_next_check_in_process_min_seconds"`
	WorkerNextCheckInProcessMaxSeconds  int `yaml:"worker_next_check_in_process_max_seconds"`
	WorkerNextCheckInfoRequestedSeconds int `yaml:"worker_next_check_info_requested_seconds"`
	WorkerNextCheckDetainedSeconds      int `yaml:"worker_next_check_detained_seconds"`
	WorkerNextCheckUnknownSeconds       int `yaml:"worker_next_check_unknown_seconds"`
	WorkerBackoff1Seconds               int `yaml:"worker_backoff_1_seconds"`
	WorkerBackoff2Seconds               int `yaml:"worker_backoff_2_seconds"`
	WorkerBackoff3Seconds               int `yaml:"worker_backoff_3_seconds"`
	WorkerBackoff4Seconds               int `yaml:"worker_backoff_4_seconds"`

	BrokerMode    string `yaml:"broker_mode"` // "fake" | "http"
	BrokerBaseURL string `yaml:"broker_base_url"`
	BrokerAPIKey  string `yaml:"broker_api_key"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}

// Env is the process environment both binaries start from.
type Env struct {
	ConfigPath  string `env:"configPath,required"`
	SwaggerPath string `env:"swaggerPath"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`
}

func LoadEnv() (*Env, error) {
	e, err := env.ParseAs[Env]()
	if err != nil {
		return nil, fmt.Errorf("config.LoadEnv: %w", err)
	}
	return &e, nil
}
