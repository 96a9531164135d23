package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Delivery DeliveryConfig
	Liveness LivenessConfig
	Signal   SignalConfig
	Dispatch DispatchConfig
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type DeliveryConfig struct {
	MaxRetries    int           `mapstructure:"max_retries"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type LivenessConfig struct {
	// PingCron is a wall-clock cron spec for the daily ping pass.
	PingCron           string        `mapstructure:"ping_cron"`
	StalenessThreshold time.Duration `mapstructure:"staleness_threshold"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval"`
}

type SignalConfig struct {
	FeedURL           string        `mapstructure:"feed_url"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	SeverityThreshold int           `mapstructure:"severity_threshold"`
}

type DispatchConfig struct {
	DrainInterval time.Duration `mapstructure:"drain_interval"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("delivery.max_retries", 3)
	viper.SetDefault("delivery.retry_delay", 5*time.Second)
	viper.SetDefault("delivery.sweep_interval", 5*time.Second)
	viper.SetDefault("liveness.ping_cron", "0 10 * * *")
	viper.SetDefault("liveness.staleness_threshold", 2*time.Hour)
	viper.SetDefault("liveness.sweep_interval", 15*time.Minute)
	viper.SetDefault("signal.poll_interval", 5*time.Minute)
	viper.SetDefault("dispatch.drain_interval", time.Minute)
}

// Channels holds provider credentials, sourced from the environment so
// secrets stay out of config files.
type Channels struct {
	ChatBaseURL   string        `envconfig:"CHAT_API_BASE_URL"`
	ChatToken     string        `envconfig:"CHAT_API_TOKEN"`
	ChatRate      float64       `envconfig:"CHAT_API_RATE" default:"10"`
	ChatBurst     int           `envconfig:"CHAT_API_BURST" default:"5"`
	ChatTimeout   time.Duration `envconfig:"CHAT_API_TIMEOUT" default:"10s"`
	SMTPHost      string        `envconfig:"SMTP_HOST"`
	SMTPPort      int           `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername  string        `envconfig:"SMTP_USERNAME"`
	SMTPPassword  string        `envconfig:"SMTP_PASSWORD"`
	EmailFrom     string        `envconfig:"EMAIL_FROM"`
	EmailTimeout  time.Duration `envconfig:"EMAIL_TIMEOUT" default:"15s"`
	PushEndpoint  string        `envconfig:"PUSH_ENDPOINT"`
	PushServerKey string        `envconfig:"PUSH_SERVER_KEY"`
	PushTimeout   time.Duration `envconfig:"PUSH_TIMEOUT" default:"15s"`
}

func LoadChannels() (*Channels, error) {
	var channels Channels
	if err := envconfig.Process("", &channels); err != nil {
		return nil, fmt.Errorf("failed to load channel config: %w", err)
	}
	return &channels, nil
}
