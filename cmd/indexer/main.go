package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/smartdevs17/event-indexer/internal/config"
	"github.com/smartdevs17/event-indexer/internal/connection"
	"github.com/smartdevs17/event-indexer/internal/metrics"
	"github.com/smartdevs17/event-indexer/internal/monitor"
	"github.com/smartdevs17/event-indexer/internal/publisher"
	"github.com/smartdevs17/event-indexer/internal/server"
	"github.com/smartdevs17/event-indexer/internal/storage"
	"github.com/smartdevs17/event-indexer/pkg/utils"
)

// AppVersion contains the application version
const AppVersion = "1.0.0"

// Application represents the main application
type Application struct {
	config     *config.Config
	logger     *logrus.Entry
	metrics    *metrics.Manager
	connection *connection.ConnectionManager
	storage    storage.Storage
	monitor    *monitor.EventMonitor
	server     *server.HTTPServer
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewApplication creates a new application instance
func NewApplication(cfg *config.Config) (*Application, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &Application{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := app.initializeLogger(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := app.initializeComponents(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	return app, nil
}

// initializeLogger initializes the application logger
func (app *Application) initializeLogger() error {
	logCfg := app.config.Logging

	if err := utils.InitLogger(logCfg.Level, logCfg.Format, logCfg.Output, logCfg.File); err != nil {
		return err
	}

	app.logger = utils.ComponentLogger("app")
	app.logger.WithFields(logrus.Fields{
		"level":  logCfg.Level,
		"format": logCfg.Format,
		"output": logCfg.Output,
	}).Info("Logger initialized")

	return nil
}

// initializeComponents initializes all application components
func (app *Application) initializeComponents() error {
	app.logger.Info("Initializing application components")

	app.metrics = metrics.NewManager()

	app.connection = connection.NewConnectionManager(&app.config.Node)
	app.connection.SetMetricsManager(app.metrics)

	if err := app.initializeStorage(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	nodeClient := connection.NewNodeClient(app.connection, app.config.Node.PollInterval)
	nodeClient.SetMetricsManager(app.metrics)

	app.monitor = monitor.NewEventMonitorWithOptions(nodeClient, app.storage, &monitor.MonitorConfig{
		ContractAddress:  common.HexToAddress(app.config.Contract.Address),
		ResubscribeDelay: app.config.Listener.ResubscribeDelay,
	}, app.metrics)

	server.Version = AppVersion
	app.server = server.NewHTTPServer(&app.config.Server, app.storage, app.monitor, app.connection, app.metrics)

	app.logger.Info("All components initialized successfully")
	return nil
}

// initializeStorage opens the configured sink and wraps it with metrics and publishing
func (app *Application) initializeStorage() error {
	app.logger.WithField("type", app.config.Storage.Type).Info("Initializing storage layer")

	store, err := storage.Open(&app.config.Storage)
	if err != nil {
		return err
	}

	var wrapped storage.Storage = storage.NewStorageWithMetrics(store, app.metrics)

	if kafkaCfg := app.config.Publisher.Kafka; kafkaCfg.Enabled() {
		pub, err := publisher.NewKafkaPublisher(kafkaCfg)
		if err != nil {
			store.Close()
			return fmt.Errorf("failed to create kafka publisher: %w", err)
		}
		wrapped = storage.NewStorageWithPublisher(wrapped, pub, app.metrics)
	}

	app.storage = wrapped
	app.logger.Info("Storage layer initialized successfully")
	return nil
}

// Start starts the application
func (app *Application) Start() error {
	app.logger.WithFields(logrus.Fields{
		"version":     AppVersion,
		"environment": app.config.App.Environment,
	}).Info("Starting event indexer")

	// An unreachable node is not fatal; subscriptions retry until it answers
	if err := app.connection.HealthCheck(app.ctx); err != nil {
		app.logger.WithError(err).Warn("Node is not reachable yet")
	}

	if err := app.server.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if err := app.monitor.Start(app.ctx); err != nil {
		return fmt.Errorf("failed to start event monitor: %w", err)
	}

	app.logger.WithFields(logrus.Fields{
		"server_address": fmt.Sprintf("%s:%d", app.config.Server.Host, app.config.Server.Port),
		"node_url":       app.config.Node.URL,
		"contract":       utils.NormalizeAddress(app.config.Contract.Address),
	}).Info("Event indexer started successfully")

	return nil
}

// Stop stops the application gracefully
func (app *Application) Stop() error {
	app.logger.Info("Stopping event indexer")

	app.cancel()

	if err := app.monitor.Stop(); err != nil {
		app.logger.WithError(err).Error("Failed to stop event monitor")
	}
	if err := app.server.Stop(); err != nil {
		app.logger.WithError(err).Error("Failed to stop HTTP server")
	}
	if err := app.storage.Close(); err != nil {
		app.logger.WithError(err).Error("Failed to close storage")
	}
	if err := app.connection.Close(); err != nil {
		app.logger.WithError(err).Error("Failed to close connection")
	}

	app.logger.Info("Event indexer stopped successfully")
	return nil
}

// loadConfig loads and validates the configuration named by --config
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if level := viper.GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "event-indexer",
	Short:   "Contract event indexer",
	Long:    `Subscribes to Deposit, Withdraw and OwnershipTransferred events of one contract, stores them and serves them over HTTP.`,
	Version: AppVersion,
	RunE:    runIndexer,
}

// runIndexer is the main command to run the indexer
func runIndexer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	app, err := NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	if err := app.Start(); err != nil {
		app.Stop()
		return fmt.Errorf("failed to start application: %w", err)
	}

	<-signalChan
	app.logger.Info("Received shutdown signal")

	return app.Stop()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("event-indexer %s\n", AppVersion)
	},
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

// validateConfigCmd validates the configuration
var validateConfigCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}

		fmt.Printf("Configuration is valid!\n")
		fmt.Printf("Environment: %s\n", cfg.App.Environment)
		fmt.Printf("Node: %s\n", cfg.Node.URL)
		fmt.Printf("Contract: %s\n", utils.NormalizeAddress(cfg.Contract.Address))
		fmt.Printf("Storage: %s\n", cfg.Storage.Type)
		fmt.Printf("Kafka publishing: %t\n", cfg.Publisher.Kafka.Enabled())
		return nil
	},
}

// testCmd checks node and storage connectivity
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test connectivity and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		fmt.Printf("Testing node connection to %s...\n", cfg.Node.URL)
		conn := connection.NewConnectionManager(&cfg.Node)
		defer conn.Close()
		if err := conn.HealthCheck(ctx); err != nil {
			return fmt.Errorf("failed to connect to node: %w", err)
		}
		fmt.Printf("Node connection successful (network %d)\n", conn.Stats().NetworkID)

		fmt.Printf("Testing storage connection (%s)...\n", cfg.Storage.Type)
		store, err := storage.Open(&cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer store.Close()
		fmt.Println("Storage connection successful")

		fmt.Println("All connectivity tests passed")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringP("log-level", "l", "", "log level (debug, info, warn, error)")

	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(testCmd)
	configCmd.AddCommand(validateConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
