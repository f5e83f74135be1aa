package config_test

import (
	"os"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"

	"github.com/babylonlabs-io/btc-staking/config"
)

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	valid := config.DefaultConfigWithHome("/tmp/stakecli")

	tests := []struct {
		name    string
		mutate  func(cfg *config.Config)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(*config.Config) {},
			wantErr: "",
		},
		{
			name:    "unknown log level",
			mutate:  func(cfg *config.Config) { cfg.LogLevel = "verbose" },
			wantErr: "invalid log level",
		},
		{
			name:    "unknown log format",
			mutate:  func(cfg *config.Config) { cfg.LogFormat = "xml" },
			wantErr: `unsupported log format "xml"`,
		},
		{
			name:    "unknown network",
			mutate:  func(cfg *config.Config) { cfg.BTCNetwork = "testnet4" },
			wantErr: `unsupported btc network "testnet4"`,
		},
		{
			name:    "empty params file",
			mutate:  func(cfg *config.Config) { cfg.ParamsFile = "" },
			wantErr: "params file must be set",
		},
		{
			name:    "zero fee rate",
			mutate:  func(cfg *config.Config) { cfg.FeeRate = 0 },
			wantErr: "fee rate must be positive, got 0",
		},
		{
			name:    "withdrawal fee rate above maximum",
			mutate:  func(cfg *config.Config) { cfg.WithdrawalFeeRate = config.MaxFeeRate + 1 },
			wantErr: "withdrawal fee rate must not exceed 1000, got 1001",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tc.wantErr)
		})
	}

	var nilCfg *config.Config
	require.ErrorContains(t, nilCfg.Validate(), "config cannot be nil")
}

func TestNetParamsFromName(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]*chaincfg.Params{
		"mainnet":  &chaincfg.MainNetParams,
		"testnet3": &chaincfg.TestNet3Params,
		"signet":   &chaincfg.SigNetParams,
		"regtest":  &chaincfg.RegressionNetParams,
		"simnet":   &chaincfg.SimNetParams,
	} {
		got, err := config.NetParamsFromName(name)
		require.NoError(t, err)
		require.Equal(t, want.Name, got.Name)
	}

	_, err := config.NetParamsFromName("")
	require.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	homePath := t.TempDir()

	_, err := config.LoadConfig(homePath)
	require.ErrorContains(t, err, "specified config file does not exist")

	cfg := config.DefaultConfigWithHome(homePath)
	cfg.BTCNetwork = "regtest"
	cfg.FeeRate = 7
	require.NoError(t, config.WriteConfigFile(homePath, &cfg))

	loaded, err := config.LoadConfig(homePath)
	require.NoError(t, err)
	require.Equal(t, cfg, *loaded)

	net, err := loaded.NetParams()
	require.NoError(t, err)
	require.Equal(t, chaincfg.RegressionNetParams.Name, net.Name)

	require.NoError(t, os.WriteFile(config.CfgFile(homePath), []byte("[Application Options]\nfeerate=0\n"), 0600))
	_, err = config.LoadConfig(homePath)
	require.ErrorContains(t, err, "fee rate must be positive")
}
