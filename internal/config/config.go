// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/smartdevs17/event-indexer/pkg/utils"
)

// Config holds all configuration for the application
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Node      NodeConfig      `mapstructure:"node"`
	Contract  ContractConfig  `mapstructure:"contract"`
	Listener  ListenerConfig  `mapstructure:"listener"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// NodeConfig contains blockchain node connection configuration
type NodeConfig struct {
	URL            string        `mapstructure:"url"`
	NetworkID      uint64        `mapstructure:"network_id"` // 0 skips the network check
	BackupURLs     []string      `mapstructure:"backup_urls"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RetryAttempts  int           `mapstructure:"retry_attempts"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	PollInterval   time.Duration `mapstructure:"poll_interval"` // filter polling over HTTP
}

// ContractConfig identifies the contract whose events are indexed
type ContractConfig struct {
	Address string `mapstructure:"address"`
}

// ListenerConfig contains subscription configuration
type ListenerConfig struct {
	ResubscribeDelay time.Duration `mapstructure:"resubscribe_delay"`
}

// StorageConfig contains database configuration
type StorageConfig struct {
	Type             string        `mapstructure:"type"` // memory, sqlite, postgres
	ConnectionString string        `mapstructure:"connection_string"`
	MaxConnections   int           `mapstructure:"max_connections"`
	MaxIdleTime      time.Duration `mapstructure:"max_idle_time"`
}

// PublisherConfig configures optional publication of saved records
type PublisherConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

// KafkaConfig configures the Kafka record publisher; no brokers disables it
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Enabled reports whether records should be published to Kafka
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port          int           `mapstructure:"port"`
	Host          string        `mapstructure:"host"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	EnableMetrics bool          `mapstructure:"enable_metrics"`
	EnableHealth  bool          `mapstructure:"enable_health"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
	Output string `mapstructure:"output"` // stdout, file
	File   string `mapstructure:"file"`
}

// Load loads configuration from file, .env and environment variables
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	// EVENT_INDEXER_CONTRACT_ADDRESS overrides contract.address, and so on
	v.SetEnvPrefix("EVENT_INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Bind keys that have no default so AutomaticEnv can see them on Unmarshal
	_ = v.BindEnv("contract.address", "EVENT_INDEXER_CONTRACT_ADDRESS", "CONTRACT_ADDRESS")
	_ = v.BindEnv("node.url", "EVENT_INDEXER_NODE_URL", "NODE_URL")
	_ = v.BindEnv("storage.connection_string", "EVENT_INDEXER_STORAGE_CONNECTION_STRING", "DATABASE_URL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		utils.GetLogger().Debug("Config file not found, using defaults and environment variables")
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "event-indexer")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)

	// Node defaults
	v.SetDefault("node.url", "ws://127.0.0.1:8546")
	v.SetDefault("node.network_id", 0)
	v.SetDefault("node.request_timeout", "30s")
	v.SetDefault("node.retry_attempts", 3)
	v.SetDefault("node.retry_delay", "5s")
	v.SetDefault("node.poll_interval", "2s")

	// Listener defaults
	v.SetDefault("listener.resubscribe_delay", "5s")

	// Storage defaults
	v.SetDefault("storage.type", "sqlite")
	v.SetDefault("storage.connection_string", "./data/events.db")
	v.SetDefault("storage.max_connections", 10)
	v.SetDefault("storage.max_idle_time", "15m")

	// Publisher defaults
	v.SetDefault("publisher.kafka.topic", "contract-events")
	v.SetDefault("publisher.kafka.write_timeout", "10s")

	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.enable_metrics", true)
	v.SetDefault("server.enable_health", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Contract.Address == "" {
		return utils.NewAppError(utils.ErrCodeConfiguration, "Contract address is required")
	}
	if !utils.IsValidAddress(c.Contract.Address) {
		return utils.NewAppError(utils.ErrCodeConfiguration, "Invalid contract address", c.Contract.Address)
	}
	if c.Node.URL == "" {
		return utils.NewAppError(utils.ErrCodeConfiguration, "Node URL is required")
	}
	for _, raw := range append([]string{c.Node.URL}, c.Node.BackupURLs...) {
		if err := validateNodeURL(raw); err != nil {
			return err
		}
	}
	if c.Listener.ResubscribeDelay <= 0 {
		return utils.NewAppError(utils.ErrCodeConfiguration, "Resubscribe delay must be positive")
	}
	if c.Node.PollInterval <= 0 {
		return utils.NewAppError(utils.ErrCodeConfiguration, "Node poll interval must be positive")
	}
	switch strings.ToLower(c.Storage.Type) {
	case "memory":
	case "sqlite", "postgres", "postgresql":
		if c.Storage.ConnectionString == "" {
			return utils.NewAppError(utils.ErrCodeConfiguration, "Storage connection string is required")
		}
	default:
		return utils.NewAppError(utils.ErrCodeConfiguration, "Unsupported storage type", c.Storage.Type)
	}
	if c.Publisher.Kafka.Enabled() && c.Publisher.Kafka.Topic == "" {
		return utils.NewAppError(utils.ErrCodeConfiguration, "Kafka topic is required when brokers are set")
	}
	return nil
}

func validateNodeURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeConfiguration, "Invalid node URL", err.Error())
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
		return nil
	default:
		return utils.NewAppError(utils.ErrCodeConfiguration, "Unsupported node URL scheme", raw)
	}
}
