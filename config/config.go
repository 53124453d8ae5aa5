package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	BusNoti   BusNotiConfig   `yaml:"busnoti"`
	Providers ProvidersConfig `yaml:"providers"`
	Channels  ChannelsConfig  `yaml:"channels"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host" validate:"required"`
	Port     int    `yaml:"port" validate:"gte=1,lte=65535"`
	Username string `yaml:"username" validate:"required"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name" validate:"required"`
	SSLMode  string `yaml:"ssl_mode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
}

// KafkaConfig: при пустом host kafka-канал уведомлений выключен.
type KafkaConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port" validate:"required_with=Host,gte=0,lte=65535"`
	ArrivalAlertsTopicName string `yaml:"arrival_alerts_topic_name"`
	PublishAttempts        int    `yaml:"publish_attempts" validate:"gte=0"`
}

// RedisConfig: при пустом host кэш и rate limit живут в памяти процесса.
type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port" validate:"required_with=Host,gte=0,lte=65535"`
}

type BusNotiConfig struct {
	WorkerHTTPAddr string `yaml:"worker_http_addr"`

	PollIntervalSeconds int `yaml:"poll_interval_seconds" validate:"gte=0"`
	Concurrency         int `yaml:"concurrency" validate:"gte=0"`
	// Timezone, в котором читаются окна активности подписок (по умолчанию Asia/Seoul).
	Timezone string `yaml:"timezone" validate:"omitempty,timezone"`

	DedupWindowMinutes         int `yaml:"dedup_window_minutes" validate:"gte=0"`
	ArrivalsCacheTTLSeconds    int `yaml:"arrivals_cache_ttl_seconds" validate:"gte=0"`
	ArrivalsCacheSize          int `yaml:"arrivals_cache_size" validate:"gte=0"`
	UpstreamRateLimitPerMinute int `yaml:"upstream_rate_limit_per_minute" validate:"gte=0"`

	DefaultRegion string `yaml:"default_region" validate:"omitempty,oneof=GG SEOUL"`
}

type ProvidersConfig struct {
	Gyeonggi ProviderConfig `yaml:"gyeonggi"`
	Seoul    ProviderConfig `yaml:"seoul"`
	// UseFake: офлайн-провайдеры для локального запуска без ключей data.go.kr.
	UseFake bool `yaml:"use_fake"`
}

type ProviderConfig struct {
	BaseURL        string `yaml:"base_url" validate:"omitempty,url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"gte=0"`
}

type ChannelsConfig struct {
	Push  PushConfig  `yaml:"push"`
	Email EmailConfig `yaml:"email"`
}

type PushConfig struct {
	VAPIDPublicKey  string `yaml:"vapid_public_key"`
	VAPIDPrivateKey string `yaml:"vapid_private_key" validate:"required_with=VAPIDPublicKey"`
	Subject         string `yaml:"subject"`
	TTLSeconds      int    `yaml:"ttl_seconds" validate:"gte=0"`
}

type EmailConfig struct {
	SMTPHost string `yaml:"smtp_host"`
	SMTPPort int    `yaml:"smtp_port" validate:"gte=0,lte=65535"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from" validate:"omitempty,email"`
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

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
