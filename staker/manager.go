package staker

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	bbntypes "github.com/babylonlabs-io/babylon/v3/types"
	bstypes "github.com/babylonlabs-io/babylon/v3/x/btcstaking/types"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"go.uber.org/zap"

	"github.com/babylonlabs-io/btc-staking/metrics"
	"github.com/babylonlabs-io/btc-staking/staking"
	"github.com/babylonlabs-io/btc-staking/types"
)

// BabylonAddressPrefix is the bech32 prefix of delegation chain addresses.
const BabylonAddressPrefix = "bbn"

// Manager drives the staking flow against the staker's bitcoin wallet and
// the delegation chain signer. Signing requests are sent one at a time
// since each signed artifact feeds the next step.
type Manager struct {
	network         *chaincfg.Params
	params          ParamsLookup
	btcProvider     BtcProvider
	babylonProvider BabylonProvider
	popSigningType  types.MessageSigningType

	metrics *metrics.StakerMetrics
	logger  *zap.Logger
}

func NewManager(
	network *chaincfg.Params,
	params ParamsLookup,
	btcProvider BtcProvider,
	babylonProvider BabylonProvider,
	logger *zap.Logger,
) (*Manager, error) {
	if network == nil {
		return nil, errorsmod.Wrap(types.ErrInvalidInput, "network must be set")
	}

	if params == nil {
		return nil, errorsmod.Wrap(types.ErrInvalidParams, "params lookup must be set")
	}

	if btcProvider == nil || babylonProvider == nil {
		return nil, errorsmod.Wrap(types.ErrInvalidInput, "both btc and babylon providers are required")
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		network:         network,
		params:          params,
		btcProvider:     btcProvider,
		babylonProvider: babylonProvider,
		popSigningType:  types.MessageSigningTypeECDSA,
		metrics:         metrics.NewStakerMetrics(),
		logger:          logger,
	}, nil
}

// WithPoPSigningType sets the message signing scheme used for the proof of
// possession. ECDSA is used by default.
func (m *Manager) WithPoPSigningType(signingType types.MessageSigningType) *Manager {
	m.popSigningType = signingType
	return m
}

// DelegationRegistration is the result of preparing a delegation: the
// unsigned staking transaction to fund once the delegation is accepted and
// the signed delegation chain transaction registering it.
type DelegationRegistration struct {
	StakingTx       *wire.MsgTx
	StakingTxFee    int64
	Msg             *bstypes.MsgCreateBTCDelegation
	SignedBabylonTx []byte
}

// PreStakeRegistrationBabylonTransaction builds the staking transaction and
// the pre-signed slashing transactions of a new delegation and returns the
// signed registration transaction for the delegation chain. The parameters
// in force at btcTipHeight are used.
func (m *Manager) PreStakeRegistrationBabylonTransaction(
	ctx context.Context,
	stakerInfo types.StakerInfo,
	input types.StakingInput,
	btcTipHeight uint32,
	utxos []types.UTXO,
	feeRate int64,
	babylonAddress string,
) (*DelegationRegistration, error) {
	if btcTipHeight == 0 {
		return nil, errorsmod.Wrap(types.ErrInvalidInput, "btc tip height must be positive")
	}

	if err := ValidateBabylonAddress(babylonAddress); err != nil {
		return nil, err
	}

	params, err := m.params.ParamsForHeight(btcTipHeight)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidParams, "no params for btc height %d: %v", btcTipHeight, err)
	}

	s, err := m.newStaking(stakerInfo, input, params)
	if err != nil {
		return nil, err
	}

	stakingTx, err := s.CreateStakingTransaction(input.StakingAmountSat, utxos, feeRate)
	if err != nil {
		return nil, err
	}

	msg, err := m.createBtcDelegationMsg(ctx, s, input, stakingTx.Tx, babylonAddress)
	if err != nil {
		return nil, err
	}

	signedTx, err := m.signBabylonTx(ctx, types.SigningStepCreateBTCDelegationMsg, msg)
	if err != nil {
		return nil, err
	}

	m.metrics.RecordDelegation(stakingTx.Fee)
	m.logger.Info("prepared delegation registration",
		zap.String("staking_txid", stakingTx.Tx.TxHash().String()),
		zap.String("staker_pk", s.stakerPkHex()),
		zap.Uint32("params_version", params.Version),
		zap.Int64("staking_fee", stakingTx.Fee),
	)

	return &DelegationRegistration{
		StakingTx:       stakingTx.Tx,
		StakingTxFee:    stakingTx.Fee,
		Msg:             msg,
		SignedBabylonTx: signedTx,
	}, nil
}

// CreateSignedBtcStakingTransaction has the staker sign a staking
// transaction built earlier and returns it ready to broadcast.
func (m *Manager) CreateSignedBtcStakingTransaction(
	ctx context.Context,
	stakerInfo types.StakerInfo,
	input types.StakingInput,
	unsignedStakingTx *wire.MsgTx,
	utxos []types.UTXO,
	paramsVersion uint32,
) (*wire.MsgTx, error) {
	s, err := m.stakingForVersion(stakerInfo, input, paramsVersion)
	if err != nil {
		return nil, err
	}

	// the transaction must fund the stake described by input
	if _, _, err := s.stakingOutputOf(unsignedStakingTx); err != nil {
		return nil, err
	}

	packet, err := s.CreateStakingPsbt(unsignedStakingTx, utxos)
	if err != nil {
		return nil, err
	}

	return m.signAndFinalize(ctx, types.SigningStepStakingTransaction, packet)
}

// CreateSignedBtcUnbondingTransaction has the staker sign the unbonding
// transaction and completes its witness with the covenant signatures.
func (m *Manager) CreateSignedBtcUnbondingTransaction(
	ctx context.Context,
	stakerInfo types.StakerInfo,
	input types.StakingInput,
	stakingTx *wire.MsgTx,
	unsignedUnbondingTx *wire.MsgTx,
	covenantSigs []types.CovenantSignature,
	paramsVersion uint32,
) (*wire.MsgTx, error) {
	s, err := m.stakingForVersion(stakerInfo, input, paramsVersion)
	if err != nil {
		return nil, err
	}

	expected, err := s.CreateUnbondingTransaction(stakingTx)
	if err != nil {
		return nil, err
	}

	if unsignedUnbondingTx == nil || expected.TxHash() != unsignedUnbondingTx.TxHash() {
		return nil, errorsmod.Wrap(types.ErrInvalidInput,
			"unbonding transaction does not match the one computed from the delegation")
	}

	params := s.Params()
	if !params.CovenantQuorumMet(len(covenantSigs)) {
		return nil, errorsmod.Wrapf(types.ErrInvalidCovenantSignature,
			"got %d covenant signatures, quorum is %d", len(covenantSigs), params.CovenantQuorum)
	}

	packet, err := s.ToUnbondingPsbt(unsignedUnbondingTx, stakingTx)
	if err != nil {
		return nil, err
	}

	signedTx, err := m.signAndFinalize(ctx, types.SigningStepUnbondingTransaction, packet)
	if err != nil {
		return nil, err
	}

	witness, err := staking.CreateCovenantWitness(
		signedTx.TxIn[0].Witness, params.CovenantPks, covenantSigs, params.CovenantQuorum,
	)
	if err != nil {
		return nil, err
	}
	signedTx.TxIn[0].Witness = witness

	return signedTx, nil
}

// CreateSignedBtcWithdrawEarlyUnbondedTransaction withdraws an unbonded
// stake once the unbonding time passed.
func (m *Manager) CreateSignedBtcWithdrawEarlyUnbondedTransaction(
	ctx context.Context,
	stakerInfo types.StakerInfo,
	input types.StakingInput,
	unbondingTx *wire.MsgTx,
	feeRate int64,
	paramsVersion uint32,
) (*wire.MsgTx, error) {
	s, err := m.stakingForVersion(stakerInfo, input, paramsVersion)
	if err != nil {
		return nil, err
	}

	packet, err := s.CreateWithdrawEarlyUnbondedPsbt(unbondingTx, feeRate)
	if err != nil {
		return nil, err
	}

	return m.signAndFinalize(ctx, types.SigningStepWithdrawEarlyUnbonded, packet)
}

// CreateSignedBtcWithdrawStakingExpiredTransaction withdraws a stake whose
// staking timelock expired.
func (m *Manager) CreateSignedBtcWithdrawStakingExpiredTransaction(
	ctx context.Context,
	stakerInfo types.StakerInfo,
	input types.StakingInput,
	stakingTx *wire.MsgTx,
	feeRate int64,
	paramsVersion uint32,
) (*wire.MsgTx, error) {
	s, err := m.stakingForVersion(stakerInfo, input, paramsVersion)
	if err != nil {
		return nil, err
	}

	packet, err := s.CreateWithdrawStakingExpiredPsbt(stakingTx, feeRate)
	if err != nil {
		return nil, err
	}

	return m.signAndFinalize(ctx, types.SigningStepWithdrawStakingExpired, packet)
}

// CreateSignedBtcWithdrawSlashingTransaction withdraws what is left to the
// staker after a slashing.
func (m *Manager) CreateSignedBtcWithdrawSlashingTransaction(
	ctx context.Context,
	stakerInfo types.StakerInfo,
	input types.StakingInput,
	slashingTx *wire.MsgTx,
	feeRate int64,
	paramsVersion uint32,
) (*wire.MsgTx, error) {
	s, err := m.stakingForVersion(stakerInfo, input, paramsVersion)
	if err != nil {
		return nil, err
	}

	packet, err := s.CreateWithdrawSlashingPsbt(slashingTx, feeRate)
	if err != nil {
		return nil, err
	}

	return m.signAndFinalize(ctx, types.SigningStepWithdrawSlashing, packet)
}

// CreateProofOfPossession proves the staker owns the key of btcAddress by
// signing the bytes of the delegation chain address.
func (m *Manager) CreateProofOfPossession(
	ctx context.Context,
	babylonAddress string,
	btcAddress string,
) (*bstypes.ProofOfPossessionBTC, error) {
	addrBytes, err := sdk.GetFromBech32(babylonAddress, BabylonAddressPrefix)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidInput, "invalid babylon address %q: %v", babylonAddress, err)
	}

	m.metrics.RecordSigningRequest(types.SigningStepProofOfPossession)
	sigBase64, err := m.btcProvider.SignMessage(
		ctx, types.SigningStepProofOfPossession, hex.EncodeToString(addrBytes), m.popSigningType,
	)
	if err != nil {
		m.metrics.RecordSigningFailure(types.SigningStepProofOfPossession)
		return nil, fmt.Errorf("failed to sign proof of possession: %w", err)
	}

	sig, err := base64.StdEncoding.DecodeString(sigBase64)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidInput, "proof of possession signature is not base64: %v", err)
	}

	switch m.popSigningType {
	case types.MessageSigningTypeECDSA:
		return &bstypes.ProofOfPossessionBTC{
			BtcSigType: bstypes.BTCSigType_ECDSA,
			BtcSig:     sig,
		}, nil
	case types.MessageSigningTypeBIP322:
		bip322Sig := &bstypes.BIP322Sig{
			Address: btcAddress,
			Sig:     sig,
		}
		sigBytes, err := bip322Sig.Marshal()
		if err != nil {
			return nil, fmt.Errorf("failed to marshal bip322 signature: %w", err)
		}
		return &bstypes.ProofOfPossessionBTC{
			BtcSigType: bstypes.BTCSigType_BIP322,
			BtcSig:     sigBytes,
		}, nil
	default:
		return nil, errorsmod.Wrapf(types.ErrInvalidInput, "unsupported message signing type %s", m.popSigningType)
	}
}

func (m *Manager) createBtcDelegationMsg(
	ctx context.Context,
	s *Staking,
	input types.StakingInput,
	stakingTx *wire.MsgTx,
	babylonAddress string,
) (*bstypes.MsgCreateBTCDelegation, error) {
	unbondingTx, err := s.CreateUnbondingTransaction(stakingTx)
	if err != nil {
		return nil, err
	}

	slashingPacket, err := s.CreateStakingOutputSlashingPsbt(stakingTx)
	if err != nil {
		return nil, err
	}

	unbondingSlashingPacket, err := s.CreateUnbondingOutputSlashingPsbt(unbondingTx)
	if err != nil {
		return nil, err
	}

	slashingTx, slashingSig, err := m.signSlashingPsbt(ctx, types.SigningStepStakingSlashing, slashingPacket)
	if err != nil {
		return nil, err
	}

	unbondingSlashingTx, unbondingSlashingSig, err := m.signSlashingPsbt(
		ctx, types.SigningStepUnbondingSlashing, unbondingSlashingPacket,
	)
	if err != nil {
		return nil, err
	}

	pop, err := m.CreateProofOfPossession(ctx, babylonAddress, s.stakerInfo.Address)
	if err != nil {
		return nil, err
	}

	stakingTxBytes, err := staking.SerializeTx(stakingTx)
	if err != nil {
		return nil, err
	}

	unbondingTxBytes, err := staking.SerializeTx(unbondingTx)
	if err != nil {
		return nil, err
	}

	return &bstypes.MsgCreateBTCDelegation{
		StakerAddr:                    babylonAddress,
		Pop:                           pop,
		BtcPk:                         bbntypes.NewBIP340PubKeyFromBTCPK(s.stakerPk),
		FpBtcPkList:                   []bbntypes.BIP340PubKey{*bbntypes.NewBIP340PubKeyFromBTCPK(s.fpPk)},
		StakingTime:                   uint32(input.StakingTimelock),
		StakingValue:                  input.StakingAmountSat,
		StakingTx:                     stakingTxBytes,
		SlashingTx:                    slashingTx,
		DelegatorSlashingSig:          slashingSig,
		UnbondingTx:                   unbondingTxBytes,
		UnbondingTime:                 uint32(s.Params().UnbondingTime),
		UnbondingValue:                unbondingTx.TxOut[0].Value,
		UnbondingSlashingTx:           unbondingSlashingTx,
		DelegatorUnbondingSlashingSig: unbondingSlashingSig,
	}, nil
}

// signSlashingPsbt has the staker sign a slashing PSBT and returns the
// slashing transaction without any signature data together with the
// staker's signature.
func (m *Manager) signSlashingPsbt(
	ctx context.Context,
	step types.SigningStep,
	packet *psbt.Packet,
) (*bstypes.BTCSlashingTx, *bbntypes.BIP340Signature, error) {
	signed, err := m.signPsbt(ctx, step, packet)
	if err != nil {
		return nil, nil, err
	}

	sigBytes, err := staking.ExtractSchnorrSignature(signed)
	if err != nil {
		return nil, nil, errorsmod.Wrapf(err, "step %s", step)
	}

	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return nil, nil, errorsmod.Wrapf(types.ErrSignatureNotFound, "malformed signature at step %s: %v", step, err)
	}

	tx := signed.UnsignedTx.Copy()
	clearTxSignatures(tx)

	slashingTx, err := bstypes.NewBTCSlashingTxFromMsgTx(tx)
	if err != nil {
		return nil, nil, errorsmod.Wrapf(types.ErrBuildTransaction, "failed to encode slashing tx: %v", err)
	}

	return slashingTx, bbntypes.NewBIP340SignatureFromBTCSig(sig), nil
}

func (m *Manager) signPsbt(ctx context.Context, step types.SigningStep, packet *psbt.Packet) (*psbt.Packet, error) {
	packetHex, err := staking.PsbtToHex(packet)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("requesting psbt signature", zap.String("step", step.String()))
	m.metrics.RecordSigningRequest(step)

	signedHex, err := m.btcProvider.SignPsbt(ctx, step, packetHex)
	if err != nil {
		m.metrics.RecordSigningFailure(step)
		return nil, fmt.Errorf("failed to sign psbt at step %s: %w", step, err)
	}

	signed, err := staking.PsbtFromHex(signedHex)
	if err != nil {
		return nil, errorsmod.Wrapf(err, "signed psbt of step %s", step)
	}

	if signed.UnsignedTx.TxHash() != packet.UnsignedTx.TxHash() {
		return nil, errorsmod.Wrapf(types.ErrInvalidInput, "signer altered the transaction at step %s", step)
	}

	return signed, nil
}

func (m *Manager) signAndFinalize(ctx context.Context, step types.SigningStep, packet *psbt.Packet) (*wire.MsgTx, error) {
	signed, err := m.signPsbt(ctx, step, packet)
	if err != nil {
		return nil, err
	}

	tx, err := staking.ExtractFinalizedTx(signed)
	if err != nil {
		return nil, err
	}

	m.logger.Info("signed btc transaction",
		zap.String("step", step.String()),
		zap.String("txid", tx.TxHash().String()),
	)

	return tx, nil
}

func (m *Manager) signBabylonTx(ctx context.Context, step types.SigningStep, msg sdk.Msg) ([]byte, error) {
	m.metrics.RecordSigningRequest(step)

	signed, err := m.babylonProvider.SignTransaction(ctx, step, msg)
	if err != nil {
		m.metrics.RecordSigningFailure(step)
		return nil, fmt.Errorf("failed to sign babylon transaction: %w", err)
	}

	return signed, nil
}

func (m *Manager) stakingForVersion(
	stakerInfo types.StakerInfo,
	input types.StakingInput,
	version uint32,
) (*Staking, error) {
	params, err := m.params.ParamsForVersion(version)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidParams, "no params of version %d: %v", version, err)
	}

	return m.newStaking(stakerInfo, input, params)
}

func (m *Manager) newStaking(stakerInfo types.StakerInfo, input types.StakingInput, params *types.StakingParams) (*Staking, error) {
	return NewStaking(
		m.network, stakerInfo, params,
		input.FinalityProviderPkNoCoordHex, input.StakingTimelock,
		PlainVariant(), m.logger,
	)
}

// ValidateBabylonAddress checks addr is a bech32 delegation chain address.
func ValidateBabylonAddress(addr string) error {
	if _, err := sdk.GetFromBech32(addr, BabylonAddressPrefix); err != nil {
		return errorsmod.Wrapf(types.ErrInvalidInput, "invalid babylon address %q: %v", addr, err)
	}
	return nil
}

// clearTxSignatures drops every signature script and witness of tx.
func clearTxSignatures(tx *wire.MsgTx) {
	for _, in := range tx.TxIn {
		in.SignatureScript = nil
		in.Witness = nil
	}
}
