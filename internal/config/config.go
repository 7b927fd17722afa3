package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all configuration for the service
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Keycloak     KeycloakConfig
	Redis        RedisConfig
	MQTT         MQTTConfig
	Monitoring   MonitoringConfig
	FileStore    FileStoreConfig
	Verification VerificationConfig
	Anomaly      AnomalyConfig
	Notification NotificationConfig
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver        string         `mapstructure:"driver"`
	Postgres      PostgresConfig `mapstructure:"postgres"`
	AutoMigrate   bool           `mapstructure:"auto_migrate"`
	MaxOpenConns  int            `mapstructure:"max_open_conns"`
	MaxIdleConns  int            `mapstructure:"max_idle_conns"`
	ConnMaxLifeMs int            `mapstructure:"conn_max_life_ms"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type KeycloakConfig struct {
	URL          string `mapstructure:"url"`
	Realm        string `mapstructure:"realm"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// MQTTConfig configures the telemetry bridge. An empty broker disables it.
type MQTTConfig struct {
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	QoS         byte   `mapstructure:"qos"`
}

type MonitoringConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
}

type FileStoreConfig struct {
	BasePath      string `mapstructure:"base_path"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type VerificationConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Referer string        `mapstructure:"referer"`
	Title   string        `mapstructure:"title"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type AnomalyConfig struct {
	Variant        string            `mapstructure:"variant"`
	NodeA          string            `mapstructure:"node_a"`
	NodeB          string            `mapstructure:"node_b"`
	Labels         map[string]string `mapstructure:"labels"`
	MinConsecutive int               `mapstructure:"min_consecutive"`
}

type NotificationConfig struct {
	Channel string      `mapstructure:"channel"`
	SMTP    SMTPConfig  `mapstructure:"smtp"`
	Kafka   KafkaConfig `mapstructure:"kafka"`
}

type SMTPConfig struct {
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// Load initializes configuration from environment variables and config file
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LEAKWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Load config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// comma separated lists from the environment
	config.Server.AllowedOrigins = splitList(config.Server.AllowedOrigins)
	config.Notification.SMTP.To = splitList(config.Notification.SMTP.To)
	config.Notification.Kafka.Brokers = splitList(config.Notification.Kafka.Brokers)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_life_ms", 300000)
	v.SetDefault("database.postgres.host", "")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "leakwatch")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.dbname", "leakwatch")
	v.SetDefault("database.postgres.sslmode", "disable")

	// Keycloak defaults
	v.SetDefault("keycloak.url", "")
	v.SetDefault("keycloak.realm", "hydrozen")
	v.SetDefault("keycloak.client_id", "leakwatch")
	v.SetDefault("keycloak.client_secret", "")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "telemetry:node:")

	// MQTT defaults
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "leakwatch-hub")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic_prefix", "hydrozen/nodes")
	v.SetDefault("mqtt.qos", 1)

	// Monitoring defaults
	v.SetDefault("monitoring.log_level", "info")
	v.SetDefault("monitoring.metrics_enabled", true)

	// FileStore defaults
	v.SetDefault("filestore.base_path", "./data/images")
	v.SetDefault("filestore.public_base_url", "http://localhost:8080/images")

	// Verification defaults
	v.SetDefault("verification.api_key", "")
	v.SetDefault("verification.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("verification.model", "google/gemini-2.0-flash-001")
	v.SetDefault("verification.referer", "https://hydrozen.vercel.app")
	v.SetDefault("verification.title", "HydroZen")
	v.SetDefault("verification.timeout", "60s")

	// Anomaly defaults
	v.SetDefault("anomaly.variant", "humidity_pressure")
	v.SetDefault("anomaly.node_a", "node1")
	v.SetDefault("anomaly.node_b", "node2")
	v.SetDefault("anomaly.min_consecutive", 1)

	// Notification defaults
	v.SetDefault("notification.channel", "log")
	v.SetDefault("notification.smtp.host", "smtp.gmail.com")
	v.SetDefault("notification.smtp.port", 587)
	v.SetDefault("notification.smtp.username", "")
	v.SetDefault("notification.smtp.password", "")
	v.SetDefault("notification.smtp.from", "")
	v.SetDefault("notification.smtp.to", []string{})
	v.SetDefault("notification.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("notification.kafka.topic", "leak-alerts")
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func validateConfig(config *Config) error {
	switch config.Database.Driver {
	case DriverPostgres:
		if config.Database.Postgres.Host == "" {
			return fmt.Errorf("postgres host is required")
		}
		if config.Keycloak.URL == "" {
			return fmt.Errorf("keycloak URL is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown database driver %q", config.Database.Driver)
	}

	switch config.Anomaly.Variant {
	case "humidity_pressure", "flow_rate":
	default:
		return fmt.Errorf("unknown anomaly variant %q", config.Anomaly.Variant)
	}
	if config.Anomaly.NodeA == "" || config.Anomaly.NodeB == "" || config.Anomaly.NodeA == config.Anomaly.NodeB {
		return fmt.Errorf("anomaly needs two distinct nodes")
	}

	switch config.Notification.Channel {
	case "email":
		if len(config.Notification.SMTP.To) == 0 || config.Notification.SMTP.From == "" {
			return fmt.Errorf("email notification needs a sender and at least one recipient")
		}
	case "kafka":
		if len(config.Notification.Kafka.Brokers) == 0 || config.Notification.Kafka.Topic == "" {
			return fmt.Errorf("kafka notification needs brokers and a topic")
		}
	case "log":
	default:
		return fmt.Errorf("unknown notification channel %q", config.Notification.Channel)
	}
	return nil
}
