package main

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
	"github.com/spf13/cobra"

	"github.com/babylonlabs-io/btc-staking/config"
	"github.com/babylonlabs-io/btc-staking/staker"
	"github.com/babylonlabs-io/btc-staking/staking"
	"github.com/babylonlabs-io/btc-staking/util"
)

const (
	withdrawKindExpired  = "expired"
	withdrawKindUnbonded = "unbonded"
	withdrawKindSlashed  = "slashed"
)

type ScriptsResponse struct {
	TimelockScript          string `json:"timelock_script"`
	UnbondingScript         string `json:"unbonding_script"`
	SlashingScript          string `json:"slashing_script"`
	UnbondingTimelockScript string `json:"unbonding_timelock_script"`
	DataEmbedScript         string `json:"data_embed_script,omitempty"`
}

type AddressResponse struct {
	StakingAddress        string `json:"staking_address"`
	StakingPkScript       string `json:"staking_pk_script"`
	UnbondingAddress      string `json:"unbonding_address"`
	SlashingChangeAddress string `json:"slashing_change_address"`
}

type StakingTxResponse struct {
	StakingTxHex       string `json:"staking_tx_hex"`
	StakingTxHash      string `json:"staking_tx_hash"`
	StakingPsbtHex     string `json:"staking_psbt_hex"`
	StakingOutputIndex uint32 `json:"staking_output_index"`
	FeeSat             int64  `json:"fee_sat"`
	ParamsVersion      uint32 `json:"params_version"`
}

type UnbondingTxResponse struct {
	UnbondingTxHex           string `json:"unbonding_tx_hex"`
	UnbondingTxHash          string `json:"unbonding_tx_hash"`
	UnbondingPsbtHex         string `json:"unbonding_psbt_hex"`
	StakingSlashingPsbtHex   string `json:"staking_slashing_psbt_hex"`
	UnbondingSlashingPsbtHex string `json:"unbonding_slashing_psbt_hex"`
}

type WithdrawTxResponse struct {
	Kind          string `json:"kind"`
	WithdrawPsbt  string `json:"withdraw_psbt_hex"`
	WithdrawValue int64  `json:"withdraw_value_sat"`
}

// CommandInit returns the init command that creates the home directory with
// a default config.
func CommandInit() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "init",
		Short:   "Initialize a stakecli home directory.",
		Long:    `Creates a new stakecli home directory with default config`,
		Example: fmt.Sprintf(`%s init --home /home/user/.stakecli --force`, BinaryName),
		Args:    cobra.NoArgs,
		RunE:    runInitCmd,
	}
	cmd.Flags().Bool(forceFlag, false, "Override existing configuration")

	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	homePath, err := getHomePath(cmd)
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool(forceFlag)
	if err != nil {
		return fmt.Errorf("failed to read flag %s: %w", forceFlag, err)
	}

	if util.FileExists(config.CfgFile(homePath)) && !force {
		return fmt.Errorf("config file %s already exists", config.CfgFile(homePath))
	}

	if err := util.MakeDirectory(homePath); err != nil {
		return err
	}
	if err := util.MakeDirectory(config.LogDir(homePath)); err != nil {
		return err
	}

	defaultConfig := config.DefaultConfigWithHome(homePath)

	return config.WriteConfigFile(homePath, &defaultConfig)
}

func CommandScripts() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scripts",
		Short: "Prints the tapscript leaves of a delegation.",
		Example: fmt.Sprintf(`%s scripts --staker-address tb1p... --staker-pk <hex> --fp-pk <hex> --staking-time 64000`,
			BinaryName),
		Args: cobra.NoArgs,
		RunE: runScriptsCmd,
	}
	addDelegationFlags(cmd)

	return cmd
}

func runScriptsCmd(cmd *cobra.Command, _ []string) error {
	env, err := loadEnv(cmd)
	if err != nil {
		return err
	}

	s, err := stakingFromFlags(cmd, env)
	if err != nil {
		return err
	}

	scripts, err := s.BuildScripts()
	if err != nil {
		return err
	}

	return printRespJSON(cmd, ScriptsResponse{
		TimelockScript:          hex.EncodeToString(scripts.TimelockScript),
		UnbondingScript:         hex.EncodeToString(scripts.UnbondingScript),
		SlashingScript:          hex.EncodeToString(scripts.SlashingScript),
		UnbondingTimelockScript: hex.EncodeToString(scripts.UnbondingTimelockScript),
		DataEmbedScript:         hex.EncodeToString(scripts.DataEmbedScript),
	})
}

func CommandAddress() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Prints the taproot addresses of the staking, unbonding and slashing change outputs.",
		Args:  cobra.NoArgs,
		RunE:  runAddressCmd,
	}
	addDelegationFlags(cmd)

	return cmd
}

func runAddressCmd(cmd *cobra.Command, _ []string) error {
	env, err := loadEnv(cmd)
	if err != nil {
		return err
	}

	s, err := stakingFromFlags(cmd, env)
	if err != nil {
		return err
	}

	scripts, err := s.BuildScripts()
	if err != nil {
		return err
	}

	stakingOutput, err := staking.DeriveStakingOutput(scripts, env.net)
	if err != nil {
		return err
	}
	unbondingOutput, err := staking.DeriveUnbondingOutput(scripts, env.net)
	if err != nil {
		return err
	}
	slashingChangeOutput, err := staking.DeriveSlashingChangeOutput(scripts, env.net)
	if err != nil {
		return err
	}

	return printRespJSON(cmd, AddressResponse{
		StakingAddress:        stakingOutput.Address.EncodeAddress(),
		StakingPkScript:       hex.EncodeToString(stakingOutput.PkScript),
		UnbondingAddress:      unbondingOutput.Address.EncodeAddress(),
		SlashingChangeAddress: slashingChangeOutput.Address.EncodeAddress(),
	})
}

func CommandStakingTx() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staking-tx",
		Short: "Builds the unsigned staking transaction and its PSBT.",
		Long: `Selects utxos from the utxos file to fund the stake. The utxos file is a JSON list
of {"txid", "vout", "value", "script_pub_key", "raw_tx_hex"} objects.`,
		Args: cobra.NoArgs,
		RunE: runStakingTxCmd,
	}
	addDelegationFlags(cmd)
	cmd.Flags().Int64(amountFlag, 0, "The staking amount in satoshis")
	cmd.Flags().String(utxosFileFlag, "", "Path to the JSON file listing the utxos of the staker")
	cmd.Flags().Int64(feeRateFlag, 0, "Fee rate in sat/vB, overrides the config")
	_ = cmd.MarkFlagRequired(amountFlag)
	_ = cmd.MarkFlagRequired(utxosFileFlag)

	return cmd
}

func runStakingTxCmd(cmd *cobra.Command, _ []string) error {
	env, err := loadEnv(cmd)
	if err != nil {
		return err
	}

	s, err := stakingFromFlags(cmd, env)
	if err != nil {
		return err
	}

	amount, err := cmd.Flags().GetInt64(amountFlag)
	if err != nil {
		return err
	}
	utxosFile, err := cmd.Flags().GetString(utxosFileFlag)
	if err != nil {
		return err
	}
	feeRate, err := feeRateFromFlags(cmd, env.cfg.FeeRate)
	if err != nil {
		return err
	}

	utxos, err := loadUTXOs(utxosFile)
	if err != nil {
		return err
	}

	stakingTx, err := s.CreateStakingTransaction(amount, utxos, feeRate)
	if err != nil {
		return err
	}

	packet, err := s.CreateStakingPsbt(stakingTx.Tx, stakingTx.SelectedUTXOs)
	if err != nil {
		return err
	}

	txHex, psbtHex, err := encodeTxAndPsbt(stakingTx.Tx, packet)
	if err != nil {
		return err
	}

	return printRespJSON(cmd, StakingTxResponse{
		StakingTxHex:       txHex,
		StakingTxHash:      stakingTx.Tx.TxHash().String(),
		StakingPsbtHex:     psbtHex,
		StakingOutputIndex: stakingTx.StakingOutputIndex,
		FeeSat:             stakingTx.Fee,
		ParamsVersion:      s.Params().Version,
	})
}

func CommandUnbondingTx() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unbonding-tx",
		Short: "Builds the unbonding transaction and the slashing PSBTs of a staking transaction.",
		Args:  cobra.NoArgs,
		RunE:  runUnbondingTxCmd,
	}
	addDelegationFlags(cmd)
	cmd.Flags().String(stakingTxFlag, "", "The hex encoded staking transaction")
	_ = cmd.MarkFlagRequired(stakingTxFlag)

	return cmd
}

func runUnbondingTxCmd(cmd *cobra.Command, _ []string) error {
	env, err := loadEnv(cmd)
	if err != nil {
		return err
	}

	s, err := stakingFromFlags(cmd, env)
	if err != nil {
		return err
	}

	stakingTxHex, err := cmd.Flags().GetString(stakingTxFlag)
	if err != nil {
		return err
	}
	stakingTx, err := staking.DeserializeTxHex(stakingTxHex)
	if err != nil {
		return err
	}

	unbondingTx, err := s.CreateUnbondingTransaction(stakingTx)
	if err != nil {
		return err
	}

	unbondingPacket, err := s.ToUnbondingPsbt(unbondingTx, stakingTx)
	if err != nil {
		return err
	}
	stakingSlashingPacket, err := s.CreateStakingOutputSlashingPsbt(stakingTx)
	if err != nil {
		return err
	}
	unbondingSlashingPacket, err := s.CreateUnbondingOutputSlashingPsbt(unbondingTx)
	if err != nil {
		return err
	}

	unbondingTxHex, unbondingPsbtHex, err := encodeTxAndPsbt(unbondingTx, unbondingPacket)
	if err != nil {
		return err
	}
	stakingSlashingHex, err := staking.PsbtToHex(stakingSlashingPacket)
	if err != nil {
		return err
	}
	unbondingSlashingHex, err := staking.PsbtToHex(unbondingSlashingPacket)
	if err != nil {
		return err
	}

	return printRespJSON(cmd, UnbondingTxResponse{
		UnbondingTxHex:           unbondingTxHex,
		UnbondingTxHash:          unbondingTx.TxHash().String(),
		UnbondingPsbtHex:         unbondingPsbtHex,
		StakingSlashingPsbtHex:   stakingSlashingHex,
		UnbondingSlashingPsbtHex: unbondingSlashingHex,
	})
}

func CommandWithdrawTx() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdraw-tx",
		Short: "Builds the PSBT withdrawing a stake back to the staker address.",
		Long: fmt.Sprintf(`The kind selects the spent output:
  %s: the staking output of --tx once the staking timelock expired
  %s: the unbonding output of --tx once the unbonding time passed
  %s: the change output of the slashing transaction --tx`,
			withdrawKindExpired, withdrawKindUnbonded, withdrawKindSlashed),
		Args: cobra.NoArgs,
		RunE: runWithdrawTxCmd,
	}
	addDelegationFlags(cmd)
	cmd.Flags().String(kindFlag, withdrawKindExpired, "The kind of withdrawal: expired, unbonded or slashed")
	cmd.Flags().String(txFlag, "", "The hex encoded transaction holding the spent output")
	cmd.Flags().Int64(feeRateFlag, 0, "Fee rate in sat/vB, overrides the config")
	_ = cmd.MarkFlagRequired(txFlag)

	return cmd
}

func runWithdrawTxCmd(cmd *cobra.Command, _ []string) error {
	env, err := loadEnv(cmd)
	if err != nil {
		return err
	}

	s, err := stakingFromFlags(cmd, env)
	if err != nil {
		return err
	}

	kind, err := cmd.Flags().GetString(kindFlag)
	if err != nil {
		return err
	}
	txHex, err := cmd.Flags().GetString(txFlag)
	if err != nil {
		return err
	}
	feeRate, err := feeRateFromFlags(cmd, env.cfg.WithdrawalFeeRate)
	if err != nil {
		return err
	}

	tx, err := staking.DeserializeTxHex(txHex)
	if err != nil {
		return err
	}

	packet, err := withdrawPsbt(s, kind, tx, feeRate)
	if err != nil {
		return err
	}

	packetHex, err := staking.PsbtToHex(packet)
	if err != nil {
		return err
	}

	return printRespJSON(cmd, WithdrawTxResponse{
		Kind:          kind,
		WithdrawPsbt:  packetHex,
		WithdrawValue: packet.UnsignedTx.TxOut[0].Value,
	})
}

func withdrawPsbt(s *staker.Staking, kind string, tx *wire.MsgTx, feeRate int64) (*psbt.Packet, error) {
	switch kind {
	case withdrawKindExpired:
		return s.CreateWithdrawStakingExpiredPsbt(tx, feeRate)
	case withdrawKindUnbonded:
		return s.CreateWithdrawEarlyUnbondedPsbt(tx, feeRate)
	case withdrawKindSlashed:
		return s.CreateWithdrawSlashingPsbt(tx, feeRate)
	default:
		return nil, fmt.Errorf("unknown withdrawal kind %q", kind)
	}
}

func encodeTxAndPsbt(tx *wire.MsgTx, packet *psbt.Packet) (string, string, error) {
	txBytes, err := staking.SerializeTx(tx)
	if err != nil {
		return "", "", err
	}

	packetHex, err := staking.PsbtToHex(packet)
	if err != nil {
		return "", "", err
	}

	return hex.EncodeToString(txBytes), packetHex, nil
}
