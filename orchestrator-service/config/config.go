package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/draftea/payment-hub/orchestrator-service/domain"
	"github.com/spf13/viper"
)

type Config struct {
	ServiceName string       `mapstructure:"service_name"`
	Env         string       `mapstructure:"env"`
	Port        string       `mapstructure:"port"`
	Database    Database     `mapstructure:"database"`
	AWS         AWS          `mapstructure:"aws"`
	Telemetry   Telemetry    `mapstructure:"telemetry"`
	Sweep       Sweep        `mapstructure:"sweep"`
	Definitions []Definition `mapstructure:"definitions"`
}

type Telemetry struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

type Database struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type AWS struct {
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Region          string `mapstructure:"region"`
	EndpointSNS     string `mapstructure:"endpoint_sns"`
	EndpointSQS     string `mapstructure:"endpoint_sqs"`
	SNSTopicArn     string `mapstructure:"sns_topic_arn"`
	SQSQueueURL     string `mapstructure:"sqs_queue_url"`
}

// Sweep configures the step timeout sweep
type Sweep struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
}

// Definition is the configuration form of a saga definition
type Definition struct {
	SagaType    string `mapstructure:"saga_type"`
	TenantID    string `mapstructure:"tenant_id"`
	PaymentType string `mapstructure:"payment_type"`
	Steps       []Step `mapstructure:"steps"`
}

// Step is the configuration form of a step definition
type Step struct {
	Name                    string `mapstructure:"name"`
	Command                 string `mapstructure:"command"`
	Compensation            string `mapstructure:"compensation"`
	TimeoutSeconds          int    `mapstructure:"timeout_seconds"`
	MaxAttempts             int    `mapstructure:"max_attempts"`
	MaxCompensationAttempts int    `mapstructure:"max_compensation_attempts"`
}

// ToDomain converts a configured definition into its domain form
func (d Definition) ToDomain() *domain.SagaDefinition {
	steps := make([]domain.StepDefinition, len(d.Steps))
	for i, s := range d.Steps {
		steps[i] = domain.StepDefinition{
			Name:                    s.Name,
			Command:                 s.Command,
			Compensation:            s.Compensation,
			Timeout:                 time.Duration(s.TimeoutSeconds) * time.Second,
			MaxAttempts:             s.MaxAttempts,
			MaxCompensationAttempts: s.MaxCompensationAttempts,
		}
	}

	return &domain.SagaDefinition{
		SagaType:    d.SagaType,
		TenantID:    d.TenantID,
		PaymentType: d.PaymentType,
		Steps:       steps,
	}
}

func ReadConfig() (*Config, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return nil, fmt.Errorf("unable to get current file")
	}

	configDir := filepath.Join(filepath.Dir(filename))
	viper.SetConfigName(getConfigName())
	viper.SetConfigType("json")
	viper.AddConfigPath(configDir)

	// Allow environment variables to override config
	viper.AutomaticEnv()
	viper.SetEnvPrefix("ORCHESTRATOR")

	setDefaults()

	err := viper.ReadInConfig()
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	err = viper.Unmarshal(&config)
	if err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

func getConfigName() string {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		return "local"
	}
	return env
}

func setDefaults() {
	viper.SetDefault("service_name", "orchestrator-service")
	viper.SetDefault("env", getEnv("ENV", "local"))
	viper.SetDefault("port", getEnv("PORT", "8081"))

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5433)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "password")
	viper.SetDefault("database.database", "payment_hub")
	viper.SetDefault("database.ssl_mode", "disable")

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		viper.Set("database.url", dbURL)
	}

	viper.SetDefault("aws.access_key_id", getEnv("AWS_ACCESS_KEY_ID", "test"))
	viper.SetDefault("aws.secret_access_key", getEnv("AWS_SECRET_ACCESS_KEY", "test"))
	viper.SetDefault("aws.region", getEnv("AWS_DEFAULT_REGION", "us-east-1"))
	viper.SetDefault("aws.endpoint_sns", getEnv("AWS_ENDPOINT_URL_SNS", "http://localhost:4566"))
	viper.SetDefault("aws.endpoint_sqs", getEnv("AWS_ENDPOINT_URL_SQS", "http://localhost:4566"))
	viper.SetDefault("aws.sns_topic_arn", getEnv("SNS_TOPIC_ARN", "arn:aws:sns:us-east-1:000000000000:payment-hub-events"))
	viper.SetDefault("aws.sqs_queue_url", getEnv("SQS_QUEUE_URL", "http://localhost:4566/000000000000/orchestrator-events"))

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.otlp_endpoint", getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"))

	viper.SetDefault("sweep.interval_seconds", 10)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetDatabaseURL constructs database URL from config
func (c *Config) GetDatabaseURL() string {
	if url := viper.GetString("database.url"); url != "" {
		return url
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}
