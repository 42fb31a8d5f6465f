package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the scheduler
type Config struct {
	Project    ProjectConfig    `mapstructure:"project"`
	Google     GoogleConfig     `mapstructure:"google"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Server     ServerConfig     `mapstructure:"server"`
}

// ProjectConfig identifies the Cloud project and the push topic/subscription
type ProjectConfig struct {
	ID           string `mapstructure:"id"`
	Topic        string `mapstructure:"topic"`
	Subscription string `mapstructure:"subscription"`
}

// GoogleConfig holds credential locations and API settings
type GoogleConfig struct {
	ClientSecretFile   string   `mapstructure:"client_secret_file"`
	TokenFile          string   `mapstructure:"token_file"`
	ServiceAccountFile string   `mapstructure:"service_account_file"`
	Timezone           string   `mapstructure:"timezone"`
	Scopes             []string `mapstructure:"scopes"`
}

// FetchConfig controls the unread-mail fetch and its retry behaviour
type FetchConfig struct {
	Limit        int64         `mapstructure:"limit"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
}

// ClassifierConfig points at the optional local text-generation endpoint.
// An empty endpoint disables AI classification entirely.
type ClassifierConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig holds the optional DSN for the durable dedup store.
// When empty, processed ids live in memory and are lost on restart.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// ServerConfig holds the health/metrics HTTP server settings
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// LoadConfig loads configuration from environment variables and config file
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Environment variables override config file
	viper.AutomaticEnv()
	bindEnvVars()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("project.topic", "gmail-push-topic")
	viper.SetDefault("project.subscription", "gmail-push-topic-sub")

	viper.SetDefault("google.client_secret_file", "client_secret.json")
	viper.SetDefault("google.token_file", "token.json")
	viper.SetDefault("google.service_account_file", "service-account-key.json")
	viper.SetDefault("google.timezone", "Asia/Kolkata")
	viper.SetDefault("google.scopes", []string{
		"https://www.googleapis.com/auth/gmail.readonly",
		"https://www.googleapis.com/auth/calendar",
		"https://www.googleapis.com/auth/pubsub",
	})

	viper.SetDefault("fetch.limit", 5)
	viper.SetDefault("fetch.max_attempts", 3)
	viper.SetDefault("fetch.initial_delay", "2s")

	viper.SetDefault("classifier.endpoint", "")
	viper.SetDefault("classifier.model", "flan-t5-small")
	viper.SetDefault("classifier.timeout", "10s")

	viper.SetDefault("database.dsn", "")

	viper.SetDefault("server.port", "8080")
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars() {
	viper.BindEnv("project.id", "PROJECT_ID")
	viper.BindEnv("project.topic", "TOPIC_NAME")
	viper.BindEnv("project.subscription", "SUBSCRIPTION_ID")

	viper.BindEnv("google.client_secret_file", "CLIENT_SECRET_FILE")
	viper.BindEnv("google.token_file", "TOKEN_FILE")
	viper.BindEnv("google.service_account_file", "GOOGLE_APPLICATION_CREDENTIALS")
	viper.BindEnv("google.timezone", "TIMEZONE")

	viper.BindEnv("fetch.limit", "FETCH_LIMIT")
	viper.BindEnv("fetch.max_attempts", "FETCH_MAX_ATTEMPTS")
	viper.BindEnv("fetch.initial_delay", "FETCH_INITIAL_DELAY")

	viper.BindEnv("classifier.endpoint", "CLASSIFIER_ENDPOINT")
	viper.BindEnv("classifier.model", "CLASSIFIER_MODEL")
	viper.BindEnv("classifier.timeout", "CLASSIFIER_TIMEOUT")

	viper.BindEnv("database.dsn", "DATABASE_DSN")

	viper.BindEnv("server.port", "SERVER_PORT")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Project.ID == "" {
		return fmt.Errorf("project id is required (set PROJECT_ID)")
	}

	if c.Project.Topic == "" || c.Project.Subscription == "" {
		return fmt.Errorf("notification topic and subscription are required")
	}

	if c.Google.Timezone == "" {
		return fmt.Errorf("timezone is required")
	}

	if c.Fetch.Limit <= 0 {
		return fmt.Errorf("fetch limit must be greater than 0")
	}

	if c.Fetch.MaxAttempts <= 0 {
		return fmt.Errorf("fetch max attempts must be greater than 0")
	}

	return nil
}

// TopicName returns the fully qualified Pub/Sub topic name
func (c *ProjectConfig) TopicName() string {
	return fmt.Sprintf("projects/%s/topics/%s", c.ID, c.Topic)
}
