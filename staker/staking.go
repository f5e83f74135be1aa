package staker

import (
	"encoding/hex"

	errorsmod "cosmossdk.io/errors"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"go.uber.org/zap"

	"github.com/babylonlabs-io/btc-staking/staking"
	"github.com/babylonlabs-io/btc-staking/types"
)

// Staking builds every transaction of one delegation: the staker, the
// finality provider, the staking timelock and the parameter set are fixed
// at construction.
type Staking struct {
	network         *chaincfg.Params
	stakerInfo      types.StakerInfo
	stakerPk        *btcec.PublicKey
	fpPk            *btcec.PublicKey
	params          *types.StakingParams
	stakingTimelock uint16
	variant         StakingVariant

	logger *zap.Logger
}

// NewStaking validates the staker, the finality provider key and the
// parameters. A nil logger disables logging.
func NewStaking(
	network *chaincfg.Params,
	stakerInfo types.StakerInfo,
	params *types.StakingParams,
	fpPkHex string,
	stakingTimelock uint16,
	variant StakingVariant,
	logger *zap.Logger,
) (*Staking, error) {
	if network == nil {
		return nil, errorsmod.Wrap(types.ErrInvalidInput, "network must be set")
	}

	if _, err := staking.DecodeAddress(stakerInfo.Address, network); err != nil {
		return nil, errorsmod.Wrap(err, "invalid staker address")
	}

	stakerPk, err := staking.ParseXOnlyPubKeyHex(stakerInfo.PublicKeyNoCoordHex)
	if err != nil {
		return nil, errorsmod.Wrap(err, "invalid staker public key")
	}

	fpPk, err := staking.ParseXOnlyPubKeyHex(fpPkHex)
	if err != nil {
		return nil, errorsmod.Wrap(err, "invalid finality provider public key")
	}

	if err := staking.ValidateParams(params); err != nil {
		return nil, err
	}

	if err := staking.ValidateStakingTimelock(stakingTimelock, params); err != nil {
		return nil, err
	}

	if err := variant.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Staking{
		network:         network,
		stakerInfo:      stakerInfo,
		stakerPk:        stakerPk,
		fpPk:            fpPk,
		params:          params,
		stakingTimelock: stakingTimelock,
		variant:         variant,
		logger:          logger.With(zap.String("variant", variant.Kind.String())),
	}, nil
}

func (s *Staking) Params() *types.StakingParams {
	return s.params
}

func (s *Staking) Variant() StakingVariant {
	return s.variant
}

// BuildScripts builds the scripts of the delegation. Observable stakes also
// get the data embed script.
func (s *Staking) BuildScripts() (*staking.StakingScripts, error) {
	data, err := staking.NewStakingScriptData(
		s.stakerPk,
		[]*btcec.PublicKey{s.fpPk},
		s.params.CovenantPks,
		s.params.CovenantQuorum,
		s.stakingTimelock,
		s.params.UnbondingTime,
	)
	if err != nil {
		return nil, err
	}

	return s.variant.buildScripts(data)
}

// CreateStakingTransaction funds a stake of amount from utxos, sending the
// change back to the staker address.
func (s *Staking) CreateStakingTransaction(amount int64, utxos []types.UTXO, feeRate int64) (*staking.StakingTx, error) {
	if err := staking.ValidateStakingAmount(amount, s.params); err != nil {
		return nil, err
	}

	if len(utxos) == 0 {
		return nil, errorsmod.Wrap(types.ErrInvalidInput, "no utxos provided")
	}

	if feeRate <= 0 {
		return nil, errorsmod.Wrapf(types.ErrInvalidInput, "fee rate must be positive, got %d", feeRate)
	}

	scripts, err := s.BuildScripts()
	if err != nil {
		return nil, err
	}

	stakingTx, err := staking.BuildStakingTransaction(
		scripts, amount, s.stakerInfo.Address, utxos, s.network, feeRate, s.variant.lockHeight(),
	)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("built staking transaction",
		zap.String("txid", stakingTx.Tx.TxHash().String()),
		zap.Int64("amount", amount),
		zap.Int64("fee", stakingTx.Fee),
		zap.Uint32("locktime", stakingTx.Tx.LockTime),
	)

	return stakingTx, nil
}

// CreateStakingPsbt wraps an unsigned staking transaction for the staker's
// wallet. Taproot inputs get the staker key as internal key.
func (s *Staking) CreateStakingPsbt(stakingTx *wire.MsgTx, utxos []types.UTXO) (*psbt.Packet, error) {
	return staking.StakingPsbt(stakingTx, utxos, schnorr.SerializePubKey(s.stakerPk))
}

// CreateUnbondingTransaction builds the unbonding transaction spending the
// staking output of stakingTx.
func (s *Staking) CreateUnbondingTransaction(stakingTx *wire.MsgTx) (*wire.MsgTx, error) {
	scripts, idx, err := s.stakingOutputOf(stakingTx)
	if err != nil {
		return nil, err
	}

	unbondingTx, err := staking.BuildUnbondingTransaction(
		scripts, stakingTx, idx, int64(s.params.UnbondingFee), s.network,
	)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("built unbonding transaction",
		zap.String("txid", unbondingTx.TxHash().String()),
		zap.String("staking_txid", stakingTx.TxHash().String()),
	)

	return unbondingTx, nil
}

// ToUnbondingPsbt wraps unbondingTx for the staker's signature along the
// unbonding path.
func (s *Staking) ToUnbondingPsbt(unbondingTx, stakingTx *wire.MsgTx) (*psbt.Packet, error) {
	scripts, err := s.BuildScripts()
	if err != nil {
		return nil, err
	}

	return staking.UnbondingPsbt(scripts, unbondingTx, stakingTx, s.network)
}

// CreateWithdrawEarlyUnbondedPsbt withdraws the unbonding output of
// unbondingTx to the staker address once the unbonding time passed.
func (s *Staking) CreateWithdrawEarlyUnbondedPsbt(unbondingTx *wire.MsgTx, feeRate int64) (*psbt.Packet, error) {
	scripts, err := s.BuildScripts()
	if err != nil {
		return nil, err
	}

	packet, err := staking.BuildWithdrawEarlyUnbondedPsbt(scripts, unbondingTx, s.stakerInfo.Address, s.network, feeRate)
	if err != nil {
		return nil, err
	}

	s.logWithdrawal("early unbonded", packet)

	return packet, nil
}

// CreateWithdrawStakingExpiredPsbt withdraws the staking output of
// stakingTx once the staking timelock expired.
func (s *Staking) CreateWithdrawStakingExpiredPsbt(stakingTx *wire.MsgTx, feeRate int64) (*psbt.Packet, error) {
	scripts, idx, err := s.stakingOutputOf(stakingTx)
	if err != nil {
		return nil, err
	}

	packet, err := staking.BuildWithdrawTimelockUnbondedPsbt(scripts, stakingTx, idx, s.stakerInfo.Address, s.network, feeRate)
	if err != nil {
		return nil, err
	}

	s.logWithdrawal("staking expired", packet)

	return packet, nil
}

// CreateWithdrawSlashingPsbt withdraws the staker's change of a slashing
// transaction once the unbonding time passed.
func (s *Staking) CreateWithdrawSlashingPsbt(slashingTx *wire.MsgTx, feeRate int64) (*psbt.Packet, error) {
	scripts, err := s.BuildScripts()
	if err != nil {
		return nil, err
	}

	changeOutput, err := staking.DeriveSlashingChangeOutput(scripts, s.network)
	if err != nil {
		return nil, errorsmod.Wrap(types.ErrBuildTransaction, err.Error())
	}

	idx, err := staking.FindOutputIndex(slashingTx, changeOutput.Address, s.network)
	if err != nil {
		return nil, err
	}

	packet, err := staking.BuildWithdrawSlashingPsbt(scripts, slashingTx, idx, s.stakerInfo.Address, s.network, feeRate)
	if err != nil {
		return nil, err
	}

	s.logWithdrawal("slashing", packet)

	return packet, nil
}

// CreateStakingOutputSlashingPsbt builds the slashing PSBT spending the
// staking output of stakingTx.
func (s *Staking) CreateStakingOutputSlashingPsbt(stakingTx *wire.MsgTx) (*psbt.Packet, error) {
	scripts, idx, err := s.stakingOutputOf(stakingTx)
	if err != nil {
		return nil, err
	}

	return staking.BuildSlashingPsbtFromStake(
		scripts, stakingTx, idx, s.params.SlashingPkScript, s.params.SlashingRate,
		int64(s.params.MinSlashingTxFeeSat), s.network,
	)
}

// CreateUnbondingOutputSlashingPsbt builds the slashing PSBT spending the
// unbonding output of unbondingTx.
func (s *Staking) CreateUnbondingOutputSlashingPsbt(unbondingTx *wire.MsgTx) (*psbt.Packet, error) {
	scripts, err := s.BuildScripts()
	if err != nil {
		return nil, err
	}

	return staking.BuildSlashingPsbtFromUnbonding(
		scripts, unbondingTx, s.params.SlashingPkScript, s.params.SlashingRate,
		int64(s.params.MinSlashingTxFeeSat), s.network,
	)
}

// stakingOutputOf returns the scripts of the delegation and the index of
// its staking output inside stakingTx.
func (s *Staking) stakingOutputOf(stakingTx *wire.MsgTx) (*staking.StakingScripts, uint32, error) {
	if stakingTx == nil {
		return nil, 0, errorsmod.Wrap(types.ErrInvalidInput, "staking transaction must not be nil")
	}

	scripts, err := s.BuildScripts()
	if err != nil {
		return nil, 0, err
	}

	stakingOutput, err := staking.DeriveStakingOutput(scripts, s.network)
	if err != nil {
		return nil, 0, errorsmod.Wrap(types.ErrBuildTransaction, err.Error())
	}

	idx, err := staking.FindOutputIndex(stakingTx, stakingOutput.Address, s.network)
	if err != nil {
		return nil, 0, err
	}

	return scripts, idx, nil
}

func (s *Staking) logWithdrawal(kind string, packet *psbt.Packet) {
	s.logger.Debug("built withdrawal psbt",
		zap.String("kind", kind),
		zap.String("txid", packet.UnsignedTx.TxHash().String()),
		zap.String("spent_outpoint", packet.UnsignedTx.TxIn[0].PreviousOutPoint.String()),
		zap.Int64("value", packet.UnsignedTx.TxOut[0].Value),
	)
}

func (s *Staking) stakerPkHex() string {
	return hex.EncodeToString(schnorr.SerializePubKey(s.stakerPk))
}
