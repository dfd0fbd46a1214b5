package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	ServerPort   string
	ServerHost   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis (broker transport, result backend and progress bus)
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka (platform lifecycle events)
	KafkaBrokers      []string
	KafkaEventsTopic  string
	KafkaEventsSource string

	// Worker broker
	BrokerQueue           string
	BrokerTaskName        string
	BrokerLookupTimeout   time.Duration
	ProgressChannelPrefix string

	// Progress relay
	RelayPollInterval time.Duration
	RelayWriteTimeout time.Duration

	// Pipeline catalog
	CatalogDir string

	// Prediction serving
	ModelCacheSize int
}

func Load() *Config {
	return &Config{
		ServerPort:   getEnv("SERVER_PORT", "8000"),
		ServerHost:   getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout: getDuration("WRITE_TIMEOUT", 30*time.Second),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "azuraforge"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "azuraforge123"),
		PostgresDB:       getEnv("POSTGRES_DB", "azuraforge"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:      getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaEventsTopic:  getEnv("KAFKA_EVENTS_TOPIC", "platform.experiments"),
		KafkaEventsSource: getEnv("KAFKA_EVENTS_SOURCE", "api-server"),

		BrokerQueue:           getEnv("BROKER_QUEUE", "celery"),
		BrokerTaskName:        getEnv("BROKER_TASK_NAME", "worker.tasks.start_training_pipeline"),
		BrokerLookupTimeout:   getDuration("BROKER_LOOKUP_TIMEOUT", 3*time.Second),
		ProgressChannelPrefix: getEnv("PROGRESS_CHANNEL_PREFIX", "task-progress"),

		RelayPollInterval: getDuration("RELAY_POLL_INTERVAL", 500*time.Millisecond),
		RelayWriteTimeout: getDuration("RELAY_WRITE_TIMEOUT", 10*time.Second),

		CatalogDir: getEnv("PIPELINE_CATALOG_DIR", "./pipelines"),

		ModelCacheSize: getIntEnv("MODEL_CACHE_SIZE", 128),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return []string{value}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
