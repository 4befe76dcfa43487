package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const yamlConfig = `
rpc:
  url: wss://bsc-testnet.example.org/ws
  retry:
    max_attempts: 3
contracts:
  - name: staking
    address: "0x1234567890AbcdEF1234567890aBcdef12345678"
    deployment_block: 41000000
    events:
      - "Deposited(address indexed user, uint256 amount)"
      - "Withdrawn(address indexed user, uint256 amount)"
crawler:
  max_blocks_per_query: 2000
  interval: 2m
db:
  path: ./stakewatch.db
api:
  enabled: true
`

const jsonConfig = `{
  "rpc": {"url": "https://bsc-testnet.example.org"},
  "contracts": [
    {
      "name": "staking",
      "address": "0x1234567890AbcdEF1234567890aBcdef12345678",
      "deployment_block": 41000000,
      "events": ["Deposited(address indexed user, uint256 amount)"]
    }
  ],
  "db": {"path": "./stakewatch.db"}
}`

const tomlConfig = `
[rpc]
url = "https://bsc-testnet.example.org"

[[contracts]]
name = "staking"
address = "0x1234567890AbcdEF1234567890aBcdef12345678"
deployment_block = 41000000
events = ["Deposited(address indexed user, uint256 amount)"]

[crawler]
interval = "10m"

[db]
path = "./stakewatch.db"
`

func writeTempConfig(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// validateConfig checks that the loaded config has expected values and defaults applied.
func validateConfig(t *testing.T, cfg *Config, format string) {
	t.Helper()

	require.NotEmpty(t, cfg.RPC.URL, "[%s] rpc.url should not be empty", format)
	require.NotEmpty(t, cfg.DB.Path, "[%s] db.path should not be empty", format)

	// Defaults applied
	require.NotZero(t, cfg.Crawler.MaxBlocksPerQuery, "[%s] crawler.max_blocks_per_query should have default", format)
	require.NotZero(t, cfg.Crawler.Interval.Duration, "[%s] crawler.interval should have default", format)
	require.NotEmpty(t, cfg.DB.JournalMode, "[%s] db.journal_mode should have default value", format)
	require.NotEmpty(t, cfg.DB.Synchronous, "[%s] db.synchronous should have default value", format)

	require.NotEmpty(t, cfg.Contracts, "[%s] there should be at least one contract configured", format)
	for i, contract := range cfg.Contracts {
		require.NotEmpty(t, contract.Name, "[%s] contract[%d].name should not be empty", format, i)
		require.NotEmpty(t, contract.Address, "[%s] contract[%d].address should not be empty", format, i)
		require.NotZero(t, contract.DeploymentBlock, "[%s] contract[%d].deployment_block should be set", format, i)
		require.NotEmpty(t, contract.Events, "[%s] contract[%d] should have at least one event", format, i)
	}
}

func TestLoadFromYAML(t *testing.T) {
	cfg, err := LoadFromYAML(writeTempConfig(t, "config.yaml", yamlConfig))
	require.NoError(t, err)

	validateConfig(t, cfg, "YAML")
	require.Equal(t, uint64(2000), cfg.Crawler.MaxBlocksPerQuery)
	require.Equal(t, 2*time.Minute, cfg.Crawler.Interval.Duration)
	require.Equal(t, 3, cfg.RPC.Retry.MaxAttempts)
	require.True(t, cfg.API.Enabled)
	require.Equal(t, ":8080", cfg.API.ListenAddress)
}

func TestLoadFromJSON(t *testing.T) {
	cfg, err := LoadFromJSON(writeTempConfig(t, "config.json", jsonConfig))
	require.NoError(t, err)

	validateConfig(t, cfg, "JSON")
}

func TestLoadFromTOML(t *testing.T) {
	cfg, err := LoadFromTOML(writeTempConfig(t, "config.toml", tomlConfig))
	require.NoError(t, err)

	validateConfig(t, cfg, "TOML")
	require.Equal(t, 10*time.Minute, cfg.Crawler.Interval.Duration)
}

func TestLoadFromFile_AutoDetect(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"yaml", "config.yaml", yamlConfig},
		{"yml", "config.yml", yamlConfig},
		{"json", "config.json", jsonConfig},
		{"toml", "config.toml", tomlConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFromFile(writeTempConfig(t, tt.file, tt.content))
			require.NoError(t, err)
			validateConfig(t, cfg, tt.name)
		})
	}
}

func TestLoadFromFile_UnsupportedFormat(t *testing.T) {
	_, err := LoadFromFile("config.txt")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported config file format")
}

func TestLoadFromFile_InvalidConfig(t *testing.T) {
	// Missing rpc.url must fail validation
	const missingRPC = `
contracts:
  - name: staking
    address: "0x1234567890AbcdEF1234567890aBcdef12345678"
    deployment_block: 41000000
    events: ["Deposited(address indexed user, uint256 amount)"]
db:
  path: ./stakewatch.db
`
	_, err := LoadFromFile(writeTempConfig(t, "config.yaml", missingRPC))
	require.Error(t, err)
	require.Contains(t, err.Error(), "rpc.url is required")
}
