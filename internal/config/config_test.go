package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdevs17/event-indexer/pkg/utils"
)

const testContract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "contract:\n  address: "+testContract+"\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, testContract, cfg.Contract.Address)
	assert.Equal(t, 5*time.Second, cfg.Listener.ResubscribeDelay)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "ws://127.0.0.1:8546", cfg.Node.URL)
	assert.False(t, cfg.Publisher.Kafka.Enabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileValues(t *testing.T) {
	path := writeConfig(t, `
node:
  url: https://rpc.example.org
  backup_urls:
    - wss://backup.example.org
  poll_interval: 500ms
contract:
  address: `+testContract+`
listener:
  resubscribe_delay: 1s
storage:
  type: memory
publisher:
  kafka:
    brokers: ["localhost:9092"]
    topic: deposits
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://rpc.example.org", cfg.Node.URL)
	assert.Equal(t, []string{"wss://backup.example.org"}, cfg.Node.BackupURLs)
	assert.Equal(t, 500*time.Millisecond, cfg.Node.PollInterval)
	assert.Equal(t, time.Second, cfg.Listener.ResubscribeDelay)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.True(t, cfg.Publisher.Kafka.Enabled())
	assert.Equal(t, "deposits", cfg.Publisher.Kafka.Topic)
	assert.NoError(t, cfg.Validate())
}

func TestEnvironmentOverridesContract(t *testing.T) {
	t.Setenv("EVENT_INDEXER_CONTRACT_ADDRESS", testContract)
	t.Setenv("EVENT_INDEXER_LISTENER_RESUBSCRIBE_DELAY", "3s")
	path := writeConfig(t, "app:\n  name: indexer-test\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, testContract, cfg.Contract.Address)
	assert.Equal(t, 3*time.Second, cfg.Listener.ResubscribeDelay)
	assert.Equal(t, "indexer-test", cfg.App.Name)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		path := writeConfig(t, "contract:\n  address: "+testContract+"\n")
		cfg, err := Load(path)
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing contract", func(c *Config) { c.Contract.Address = "" }},
		{"invalid contract", func(c *Config) { c.Contract.Address = "0x1234" }},
		{"missing node url", func(c *Config) { c.Node.URL = "" }},
		{"bad node scheme", func(c *Config) { c.Node.URL = "ftp://node" }},
		{"bad backup scheme", func(c *Config) { c.Node.BackupURLs = []string{"tcp://node"} }},
		{"zero resubscribe delay", func(c *Config) { c.Listener.ResubscribeDelay = 0 }},
		{"zero poll interval", func(c *Config) { c.Node.PollInterval = 0 }},
		{"unknown storage", func(c *Config) { c.Storage.Type = "mongo" }},
		{"sqlite without path", func(c *Config) { c.Storage.ConnectionString = "" }},
		{"kafka without topic", func(c *Config) {
			c.Publisher.Kafka.Brokers = []string{"localhost:9092"}
			c.Publisher.Kafka.Topic = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, utils.HasCode(err, utils.ErrCodeConfiguration))
		})
	}

	memory := valid()
	memory.Storage.Type = "memory"
	memory.Storage.ConnectionString = ""
	assert.NoError(t, memory.Validate())
}
