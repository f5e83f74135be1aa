package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/babylonlabs-io/btc-staking/config"
	"github.com/babylonlabs-io/btc-staking/log"
	"github.com/babylonlabs-io/btc-staking/params"
	"github.com/babylonlabs-io/btc-staking/staker"
	"github.com/babylonlabs-io/btc-staking/types"
	"github.com/babylonlabs-io/btc-staking/util"
	"github.com/babylonlabs-io/btc-staking/version"
)

const (
	homeFlag       = "home"
	btcNetworkFlag = "btc-network"
	paramsFileFlag = "params-file"
	forceFlag      = "force"

	stakerAddressFlag = "staker-address"
	stakerPkFlag      = "staker-pk"
	fpPkFlag          = "fp-pk"
	stakingTimeFlag   = "staking-time"
	paramsVersionFlag = "params-version"
	btcHeightFlag     = "btc-height"
	observableFlag    = "observable"

	amountFlag    = "amount"
	utxosFileFlag = "utxos-file"
	feeRateFlag   = "fee-rate"
	stakingTxFlag = "staking-tx"
	txFlag        = "tx"
	kindFlag      = "kind"
)

// cliEnv is what every command needs once the home directory is resolved.
type cliEnv struct {
	cfg    *config.Config
	net    *chaincfg.Params
	params *params.VersionedParams
	logger *zap.Logger
}

func getHomePath(cmd *cobra.Command) (string, error) {
	rawHomePath, err := cmd.Flags().GetString(homeFlag)
	if err != nil {
		return "", err
	}

	homePath, err := filepath.Abs(rawHomePath)
	if err != nil {
		return "", err
	}

	return util.CleanAndExpandPath(homePath), nil
}

// loadEnv loads the config of the home directory, falling back to the
// defaults when no config file exists. Flags override the config.
func loadEnv(cmd *cobra.Command) (*cliEnv, error) {
	homePath, err := getHomePath(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to load home flag: %w", err)
	}

	var cfg *config.Config
	initialized := util.FileExists(config.CfgFile(homePath))
	if initialized {
		cfg, err = config.LoadConfig(homePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config at %s: %w", homePath, err)
		}
	} else {
		defaultCfg := config.DefaultConfigWithHome(homePath)
		cfg = &defaultCfg
	}

	if network, _ := cmd.Flags().GetString(btcNetworkFlag); network != "" {
		cfg.BTCNetwork = network
	}
	if paramsFile, _ := cmd.Flags().GetString(paramsFileFlag); paramsFile != "" {
		cfg.ParamsFile = util.CleanAndExpandPath(paramsFile)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	net, err := cfg.NetParams()
	if err != nil {
		return nil, err
	}

	// stdout carries the JSON responses, logs go to stderr and, once the
	// home directory is initialized, to its log file
	var logger *zap.Logger
	if initialized {
		logger, err = log.NewRootLoggerWithFile(cmd.ErrOrStderr(), config.LogFile(homePath), cfg.LogFormat, cfg.LogLevel)
	} else {
		logger, err = log.NewRootLogger(cfg.LogFormat, cfg.LogLevel, cmd.ErrOrStderr())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	vp, err := params.LoadFromFile(cfg.ParamsFile)
	if err != nil {
		return nil, err
	}

	logger.Info("loaded staking params",
		zap.String("version", version.String()),
		zap.String("network", net.Name),
		zap.Int("num_versions", len(vp.Versions())),
	)

	return &cliEnv{
		cfg:    cfg,
		net:    net,
		params: vp,
		logger: logger,
	}, nil
}

func addDelegationFlags(cmd *cobra.Command) {
	cmd.Flags().String(stakerAddressFlag, "", "The BTC address of the staker receiving change and withdrawals")
	cmd.Flags().String(stakerPkFlag, "", "The hex encoded x-only public key of the staker")
	cmd.Flags().String(fpPkFlag, "", "The hex encoded x-only public key of the finality provider")
	cmd.Flags().Uint16(stakingTimeFlag, 0, "The staking timelock in BTC blocks")
	cmd.Flags().Uint32(paramsVersionFlag, 0, "The version of the staking params to use")
	cmd.Flags().Uint32(btcHeightFlag, 0, "Use the staking params in force at this BTC height instead of a version")
	cmd.Flags().Bool(observableFlag, false, "Build observable staking transactions carrying the data embed output")

	_ = cmd.MarkFlagRequired(stakerAddressFlag)
	_ = cmd.MarkFlagRequired(stakerPkFlag)
	_ = cmd.MarkFlagRequired(fpPkFlag)
	_ = cmd.MarkFlagRequired(stakingTimeFlag)
}

// stakingFromFlags builds the staking facade of the delegation described by
// the delegation flags.
func stakingFromFlags(cmd *cobra.Command, env *cliEnv) (*staker.Staking, error) {
	flags := cmd.Flags()

	stakerAddress, err := flags.GetString(stakerAddressFlag)
	if err != nil {
		return nil, err
	}
	stakerPk, err := flags.GetString(stakerPkFlag)
	if err != nil {
		return nil, err
	}
	fpPk, err := flags.GetString(fpPkFlag)
	if err != nil {
		return nil, err
	}
	stakingTime, err := flags.GetUint16(stakingTimeFlag)
	if err != nil {
		return nil, err
	}
	observable, err := flags.GetBool(observableFlag)
	if err != nil {
		return nil, err
	}

	p, err := paramsFromFlags(cmd, env)
	if err != nil {
		return nil, err
	}

	variant := staker.PlainVariant()
	if observable {
		variant = staker.ObservableVariant(p.Tag, p.BtcActivationHeight)
	}

	return staker.NewStaking(
		env.net,
		types.StakerInfo{Address: stakerAddress, PublicKeyNoCoordHex: stakerPk},
		p, fpPk, stakingTime, variant, env.logger,
	)
}

func paramsFromFlags(cmd *cobra.Command, env *cliEnv) (*types.StakingParams, error) {
	if cmd.Flags().Changed(btcHeightFlag) {
		height, err := cmd.Flags().GetUint32(btcHeightFlag)
		if err != nil {
			return nil, err
		}
		return env.params.ParamsForHeight(height)
	}

	if cmd.Flags().Changed(paramsVersionFlag) {
		paramsVersion, err := cmd.Flags().GetUint32(paramsVersionFlag)
		if err != nil {
			return nil, err
		}
		return env.params.ParamsForVersion(paramsVersion)
	}

	return env.params.Latest(), nil
}

// feeRateFromFlags returns the fee rate flag when set and fallback
// otherwise.
func feeRateFromFlags(cmd *cobra.Command, fallback int64) (int64, error) {
	if !cmd.Flags().Changed(feeRateFlag) {
		return fallback, nil
	}

	rate, err := cmd.Flags().GetInt64(feeRateFlag)
	if err != nil {
		return 0, err
	}
	if rate <= 0 || rate > config.MaxFeeRate {
		return 0, fmt.Errorf("fee rate must be in [1, %d], got %d", config.MaxFeeRate, rate)
	}

	return rate, nil
}

// utxoJSON is one entry of the utxos file.
type utxoJSON struct {
	TxID         string `json:"txid"`
	Vout         uint32 `json:"vout"`
	Value        int64  `json:"value"`
	ScriptPubKey string `json:"script_pub_key"`
	RawTxHex     string `json:"raw_tx_hex,omitempty"`
}

func loadUTXOs(path string) ([]types.UTXO, error) {
	bz, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read utxos file %s: %w", path, err)
	}

	var raw []utxoJSON
	if err := json.Unmarshal(bz, &raw); err != nil {
		return nil, fmt.Errorf("malformed utxos file %s: %w", path, err)
	}

	utxos := make([]types.UTXO, 0, len(raw))
	for i, u := range raw {
		hash, err := chainhash.NewHashFromStr(u.TxID)
		if err != nil {
			return nil, fmt.Errorf("utxo %d: invalid txid: %w", i, err)
		}

		script, err := decodeHexFlag("script_pub_key", u.ScriptPubKey)
		if err != nil {
			return nil, fmt.Errorf("utxo %d: %w", i, err)
		}

		utxos = append(utxos, types.UTXO{
			OutPoint:     *wire.NewOutPoint(hash, u.Vout),
			Value:        u.Value,
			ScriptPubKey: script,
			RawTxHex:     u.RawTxHex,
		})
	}

	return utxos, nil
}

func printRespJSON(cmd *cobra.Command, resp interface{}) error {
	jsonBytes, err := json.MarshalIndent(resp, "", "    ")
	if err != nil {
		return fmt.Errorf("unable to encode response: %w", err)
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", jsonBytes)

	return err
}

func decodeHexFlag(name, value string) ([]byte, error) {
	bz, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%s is not valid hex: %w", name, err)
	}
	return bz, nil
}
