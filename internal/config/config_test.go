package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validBaseConfig() *Config {
	return &Config{
		RPC: RPCConfig{URL: "https://rpc.example.org"},
		Contracts: []ContractConfig{
			{
				Name:            "staking",
				Address:         "0x1234567890AbcdEF1234567890aBcdef12345678",
				DeploymentBlock: 1000,
				Events:          []string{"Deposited(address indexed user, uint256 amount)"},
			},
		},
		DB: DatabaseConfig{Path: "./test.db"},
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := validBaseConfig()
	cfg.API = &APIConfig{Enabled: true, CORS: CORSConfig{Enabled: true}}
	cfg.Metrics = &MetricsConfig{Enabled: true}
	cfg.Logging = &LoggingConfig{}
	cfg.RPC.Retry = &RetryConfig{}

	cfg.ApplyDefaults()

	require.Equal(t, uint64(5000), cfg.Crawler.MaxBlocksPerQuery)
	require.Equal(t, 5*time.Minute, cfg.Crawler.Interval.Duration)
	require.Equal(t, 30*time.Second, cfg.Crawler.RequestTimeout.Duration)

	require.Equal(t, "WAL", cfg.DB.JournalMode)
	require.Equal(t, "NORMAL", cfg.DB.Synchronous)
	require.Equal(t, 5000, cfg.DB.BusyTimeout)
	require.Equal(t, 25, cfg.DB.MaxOpenConnections)

	require.Equal(t, ":8080", cfg.API.ListenAddress)
	require.Equal(t, []string{"*"}, cfg.API.CORS.AllowedOrigins)

	require.Equal(t, ":9090", cfg.Metrics.ListenAddress)
	require.Equal(t, "/metrics", cfg.Metrics.Path)

	require.Equal(t, "info", cfg.Logging.DefaultLevel)

	require.Equal(t, 5, cfg.RPC.Retry.MaxAttempts)
	require.Equal(t, time.Second, cfg.RPC.Retry.InitialBackoff.Duration)
	require.Equal(t, 30*time.Second, cfg.RPC.Retry.MaxBackoff.Duration)
	require.Equal(t, 2.0, cfg.RPC.Retry.BackoffMultiplier)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing rpc url",
			mutate:  func(c *Config) { c.RPC.URL = "" },
			wantErr: "rpc.url is required",
		},
		{
			name:    "missing db path",
			mutate:  func(c *Config) { c.DB.Path = "" },
			wantErr: "db.path is required",
		},
		{
			name:    "no contracts",
			mutate:  func(c *Config) { c.Contracts = nil },
			wantErr: "at least one contract",
		},
		{
			name:    "contract without name",
			mutate:  func(c *Config) { c.Contracts[0].Name = "" },
			wantErr: "name is required",
		},
		{
			name: "duplicate contract name",
			mutate: func(c *Config) {
				c.Contracts = append(c.Contracts, c.Contracts[0])
			},
			wantErr: "duplicate contract name",
		},
		{
			name:    "invalid contract address",
			mutate:  func(c *Config) { c.Contracts[0].Address = "not-an-address" },
			wantErr: "invalid address",
		},
		{
			name:    "missing deployment block",
			mutate:  func(c *Config) { c.Contracts[0].DeploymentBlock = 0 },
			wantErr: "deployment_block is required",
		},
		{
			name:    "contract without events",
			mutate:  func(c *Config) { c.Contracts[0].Events = nil },
			wantErr: "at least one event",
		},
		{
			name: "invalid journal mode",
			mutate: func(c *Config) {
				c.DB.JournalMode = "BANANA"
			},
			wantErr: "journal_mode must be one of",
		},
		{
			name: "invalid log level",
			mutate: func(c *Config) {
				c.Logging = &LoggingConfig{DefaultLevel: "loud"}
			},
			wantErr: "logging.default_level",
		},
		{
			name: "unknown log component",
			mutate: func(c *Config) {
				c.Logging = &LoggingConfig{
					DefaultLevel:    "info",
					ComponentLevels: map[string]string{"reactor": "debug"},
				}
			},
			wantErr: "unknown component",
		},
		{
			name: "invalid metrics path",
			mutate: func(c *Config) {
				c.Metrics = &MetricsConfig{Enabled: true, ListenAddress: ":9090", Path: "metrics"}
			},
			wantErr: "path must start with",
		},
		{
			name: "invalid wal checkpoint mode",
			mutate: func(c *Config) {
				c.Maintenance = &MaintenanceConfig{WALCheckpointMode: "AGGRESSIVE"}
			},
			wantErr: "wal_checkpoint_mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBaseConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				require.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoggingConfig_GetComponentLevel(t *testing.T) {
	cfg := &LoggingConfig{
		DefaultLevel:    "INFO ",
		ComponentLevels: map[string]string{"crawler": "debug"},
	}

	require.Equal(t, "debug", cfg.GetComponentLevel("crawler"))
	require.Equal(t, "info", cfg.GetComponentLevel("api"))
	require.Equal(t, "info", cfg.GetDefaultLevel())
}

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)
	require.Contains(t, string(data), "stakewatch configuration")
	require.Contains(t, string(data), "max_blocks_per_query")
}
