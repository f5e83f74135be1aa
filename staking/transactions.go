package staking

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/mempool"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/babylonlabs-io/btc-staking/types"
)

const (
	// TxVersion is the version of every transaction built here.
	TxVersion = 2

	// LockTimeHeightCutoff is the BIP-113 threshold above which a locktime
	// is read as a unix timestamp instead of a block height.
	LockTimeHeightCutoff = 500000000

	// StakingInputSequence leaves the staking transaction non replaceable
	// while still enforcing its locktime.
	StakingInputSequence = wire.MaxTxInSequenceNum - 1
)

// StakingTx is an unsigned staking transaction together with the fee it
// pays and the outputs it was built from.
type StakingTx struct {
	Tx                 *wire.MsgTx
	Fee                int64
	StakingOutputIndex uint32
	SelectedUTXOs      []types.UTXO
}

// BuildStakingTransaction funds a staking output of amount from utxos. The
// optional data embed script is added as a zero valued second output and a
// change output is added when the leftover exceeds dust. lockHeight of zero
// leaves the transaction without locktime.
func BuildStakingTransaction(
	scripts *StakingScripts,
	amount int64,
	changeAddress string,
	utxos []types.UTXO,
	net *chaincfg.Params,
	feeRate int64,
	lockHeight uint32,
) (*StakingTx, error) {
	if amount <= 0 || feeRate <= 0 {
		return nil, errorsmod.Wrapf(types.ErrInvalidInput,
			"amount %d and fee rate %d must be positive", amount, feeRate)
	}

	if lockHeight >= LockTimeHeightCutoff {
		return nil, errorsmod.Wrapf(types.ErrInvalidInput,
			"lock height %d is interpreted as a timestamp", lockHeight)
	}

	changeAddr, err := DecodeAddress(changeAddress, net)
	if err != nil {
		return nil, err
	}

	stakingOutput, err := DeriveStakingOutput(scripts, net)
	if err != nil {
		return nil, errorsmod.Wrap(types.ErrBuildTransaction, err.Error())
	}

	outputs := []*wire.TxOut{stakingOutput.TxOut(amount)}
	if len(scripts.DataEmbedScript) > 0 {
		outputs = append(outputs, wire.NewTxOut(0, scripts.DataEmbedScript))
	}

	if mempool.IsDust(outputs[0], mempool.DefaultMinRelayTxFee) {
		return nil, errorsmod.Wrapf(types.ErrDustOutput, "staking amount %d", amount)
	}

	selection, err := SelectUTXOs(utxos, amount, feeRate, outputs)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(TxVersion)
	for _, u := range selection.Selected {
		outpoint := u.OutPoint
		in := wire.NewTxIn(&outpoint, nil, nil)
		in.Sequence = StakingInputSequence
		tx.AddTxIn(in)
	}

	for _, out := range outputs {
		tx.AddTxOut(out)
	}

	change := selection.TotalValue() - (amount + selection.Fee)
	if change > DustSat {
		changeScript, err := txscript.PayToAddrScript(changeAddr)
		if err != nil {
			return nil, errorsmod.Wrapf(types.ErrBuildTransaction, "change script: %v", err)
		}
		tx.AddTxOut(wire.NewTxOut(change, changeScript))
	}

	tx.LockTime = lockHeight

	return &StakingTx{
		Tx:                 tx,
		Fee:                selection.Fee,
		StakingOutputIndex: 0,
		SelectedUTXOs:      selection.Selected,
	}, nil
}

// BuildUnbondingTransaction spends the staking output at outputIndex along
// its unbonding path into the unbonding output, paying unbondingFee.
func BuildUnbondingTransaction(
	scripts *StakingScripts,
	stakingTx *wire.MsgTx,
	outputIndex uint32,
	unbondingFee int64,
	net *chaincfg.Params,
) (*wire.MsgTx, error) {
	if unbondingFee <= 0 {
		return nil, errorsmod.Wrapf(types.ErrInvalidInput, "unbonding fee must be positive, got %d", unbondingFee)
	}

	stakingOut, err := outputAt(stakingTx, outputIndex)
	if err != nil {
		return nil, err
	}

	unbondingOutput, err := DeriveUnbondingOutput(scripts, net)
	if err != nil {
		return nil, errorsmod.Wrap(types.ErrBuildTransaction, err.Error())
	}

	value := stakingOut.Value - unbondingFee
	if value < DustSat {
		return nil, errorsmod.Wrapf(types.ErrDustOutput,
			"unbonding output value %d is below dust limit", value)
	}

	tx := wire.NewMsgTx(TxVersion)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(txHashPtr(stakingTx), outputIndex), nil, nil))
	tx.AddTxOut(unbondingOutput.TxOut(value))

	if err := checkPreSignedTxSanity(tx, 1, 1); err != nil {
		return nil, err
	}

	return tx, nil
}

// BuildWithdrawEarlyUnbondedPsbt spends the unbonding output of unbondingTx
// along its timelock path to withdrawalAddress.
func BuildWithdrawEarlyUnbondedPsbt(
	scripts *StakingScripts,
	unbondingTx *wire.MsgTx,
	withdrawalAddress string,
	net *chaincfg.Params,
	feeRate int64,
) (*psbt.Packet, error) {
	out, err := DeriveUnbondingOutput(scripts, net)
	if err != nil {
		return nil, errorsmod.Wrap(types.ErrBuildTransaction, err.Error())
	}

	return buildWithdrawalPsbt(out.TaprootOutput, scripts.UnbondingTimelockScript,
		unbondingTx, 0, withdrawalAddress, net, feeRate)
}

// BuildWithdrawTimelockUnbondedPsbt spends an expired staking output along
// its timelock path to withdrawalAddress.
func BuildWithdrawTimelockUnbondedPsbt(
	scripts *StakingScripts,
	stakingTx *wire.MsgTx,
	outputIndex uint32,
	withdrawalAddress string,
	net *chaincfg.Params,
	feeRate int64,
) (*psbt.Packet, error) {
	out, err := DeriveStakingOutput(scripts, net)
	if err != nil {
		return nil, errorsmod.Wrap(types.ErrBuildTransaction, err.Error())
	}

	return buildWithdrawalPsbt(out.TaprootOutput, scripts.TimelockScript,
		stakingTx, outputIndex, withdrawalAddress, net, feeRate)
}

// BuildWithdrawSlashingPsbt spends the change output of a slashing
// transaction once the unbonding timelock expired.
func BuildWithdrawSlashingPsbt(
	scripts *StakingScripts,
	slashingTx *wire.MsgTx,
	outputIndex uint32,
	withdrawalAddress string,
	net *chaincfg.Params,
	feeRate int64,
) (*psbt.Packet, error) {
	out, err := DeriveSlashingChangeOutput(scripts, net)
	if err != nil {
		return nil, errorsmod.Wrap(types.ErrBuildTransaction, err.Error())
	}

	return buildWithdrawalPsbt(out.TaprootOutput, scripts.UnbondingTimelockScript,
		slashingTx, outputIndex, withdrawalAddress, net, feeRate)
}

func buildWithdrawalPsbt(
	output *TaprootOutput,
	timelockScript []byte,
	fundingTx *wire.MsgTx,
	outputIndex uint32,
	withdrawalAddress string,
	net *chaincfg.Params,
	feeRate int64,
) (*psbt.Packet, error) {
	if feeRate <= 0 {
		return nil, errorsmod.Wrapf(types.ErrInvalidInput, "fee rate must be positive, got %d", feeRate)
	}

	fundingOut, err := outputAt(fundingTx, outputIndex)
	if err != nil {
		return nil, err
	}

	addr, err := DecodeAddress(withdrawalAddress, net)
	if err != nil {
		return nil, err
	}

	timelock, err := ReadTimelockValue(timelockScript)
	if err != nil {
		return nil, errorsmod.Wrap(types.ErrBuildTransaction, err.Error())
	}

	value := fundingOut.Value - WithdrawalTxFee(feeRate)
	if value < DustSat {
		return nil, errorsmod.Wrapf(types.ErrDustOutput,
			"withdrawal output value %d is below dust limit", value)
	}

	withdrawalScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrBuildTransaction, "withdrawal script: %v", err)
	}

	return buildScriptSpendPsbt(
		output, timelockScript,
		wire.NewOutPoint(txHashPtr(fundingTx), outputIndex), fundingOut, uint32(timelock),
		[]*wire.TxOut{wire.NewTxOut(value, withdrawalScript)},
	)
}

// BuildSlashingPsbtFromStake spends the staking output along its slashing
// path.
func BuildSlashingPsbtFromStake(
	scripts *StakingScripts,
	stakingTx *wire.MsgTx,
	outputIndex uint32,
	slashingPkScript []byte,
	slashingRate sdkmath.LegacyDec,
	minFee int64,
	net *chaincfg.Params,
) (*psbt.Packet, error) {
	out, err := DeriveStakingOutput(scripts, net)
	if err != nil {
		return nil, errorsmod.Wrap(types.ErrBuildTransaction, err.Error())
	}

	return buildSlashingPsbt(out.TaprootOutput, scripts, stakingTx, outputIndex,
		slashingPkScript, slashingRate, minFee, net)
}

// BuildSlashingPsbtFromUnbonding spends the unbonding output along its
// slashing path.
func BuildSlashingPsbtFromUnbonding(
	scripts *StakingScripts,
	unbondingTx *wire.MsgTx,
	slashingPkScript []byte,
	slashingRate sdkmath.LegacyDec,
	minFee int64,
	net *chaincfg.Params,
) (*psbt.Packet, error) {
	out, err := DeriveUnbondingOutput(scripts, net)
	if err != nil {
		return nil, errorsmod.Wrap(types.ErrBuildTransaction, err.Error())
	}

	return buildSlashingPsbt(out.TaprootOutput, scripts, unbondingTx, 0,
		slashingPkScript, slashingRate, minFee, net)
}

// buildSlashingPsbt splits the funding output into floor(value * rate) to
// slashingPkScript and the rest minus minFee to the slashing change output.
func buildSlashingPsbt(
	output *TaprootOutput,
	scripts *StakingScripts,
	fundingTx *wire.MsgTx,
	outputIndex uint32,
	slashingPkScript []byte,
	slashingRate sdkmath.LegacyDec,
	minFee int64,
	net *chaincfg.Params,
) (*psbt.Packet, error) {
	if !IsSlashingRateInRange(slashingRate) {
		return nil, errorsmod.Wrapf(types.ErrInvalidInput,
			"slashing rate %s must be between 0 and 1", slashingRate)
	}

	if minFee <= 0 {
		return nil, errorsmod.Wrapf(types.ErrInvalidInput, "minimum fee must be positive, got %d", minFee)
	}

	if len(slashingPkScript) == 0 {
		return nil, errorsmod.Wrap(types.ErrInvalidInput, "slashing pk script must not be empty")
	}

	fundingOut, err := outputAt(fundingTx, outputIndex)
	if err != nil {
		return nil, err
	}

	slashingAmount, changeAmount := SlashingSplit(fundingOut.Value, slashingRate, minFee)
	if slashingAmount <= DustSat {
		return nil, errorsmod.Wrapf(types.ErrDustOutput,
			"slashing amount %d is below dust limit", slashingAmount)
	}

	if changeAmount <= DustSat {
		return nil, errorsmod.Wrapf(types.ErrDustOutput,
			"user funds %d are below dust limit", changeAmount)
	}

	changeOutput, err := DeriveSlashingChangeOutput(scripts, net)
	if err != nil {
		return nil, errorsmod.Wrap(types.ErrBuildTransaction, err.Error())
	}

	packet, err := buildScriptSpendPsbt(
		output, scripts.SlashingScript,
		wire.NewOutPoint(txHashPtr(fundingTx), outputIndex), fundingOut, wire.MaxTxInSequenceNum,
		[]*wire.TxOut{
			wire.NewTxOut(slashingAmount, slashingPkScript),
			changeOutput.TxOut(changeAmount),
		},
	)
	if err != nil {
		return nil, err
	}

	if err := checkPreSignedTxSanity(packet.UnsignedTx, 1, 2); err != nil {
		return nil, err
	}

	return packet, nil
}

// SlashingSplit returns the slashed amount and the staker's change for a
// funding output of value. The rate is rounded to two decimals first.
func SlashingSplit(value int64, slashingRate sdkmath.LegacyDec, minFee int64) (int64, int64) {
	rate := RoundSlashingRate(slashingRate)
	slashingAmount := sdkmath.LegacyNewDec(value).Mul(rate).TruncateInt64()
	return slashingAmount, value - slashingAmount - minFee
}

// RoundSlashingRate rounds a positive rate half up to two decimals.
func RoundSlashingRate(rate sdkmath.LegacyDec) sdkmath.LegacyDec {
	half := sdkmath.LegacyNewDecWithPrec(5, 1)
	return sdkmath.LegacyNewDecFromInt(rate.MulInt64(100).Add(half).TruncateInt()).QuoInt64(100)
}

// buildScriptSpendPsbt builds a version 2 PSBT with a single input spending
// fundingOut along the leaf holding leafScript.
func buildScriptSpendPsbt(
	output *TaprootOutput,
	leafScript []byte,
	prevOut *wire.OutPoint,
	fundingOut *wire.TxOut,
	sequence uint32,
	outputs []*wire.TxOut,
) (*psbt.Packet, error) {
	spendInfo, err := output.SpendInfo(leafScript)
	if err != nil {
		return nil, errorsmod.Wrap(types.ErrBuildTransaction, err.Error())
	}

	leaf, err := spendInfo.TaprootLeafScript()
	if err != nil {
		return nil, errorsmod.Wrap(types.ErrBuildTransaction, err.Error())
	}

	packet, err := psbt.New([]*wire.OutPoint{prevOut}, outputs, TxVersion, 0, []uint32{sequence})
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrBuildTransaction, "failed to create psbt: %v", err)
	}

	internalKey := UnspendableKeyPathInternalPubKey()
	packet.Inputs[0].WitnessUtxo = wire.NewTxOut(fundingOut.Value, fundingOut.PkScript)
	packet.Inputs[0].TaprootInternalKey = schnorr.SerializePubKey(&internalKey)
	packet.Inputs[0].TaprootLeafScript = []*psbt.TaprootTapLeafScript{leaf}

	return packet, nil
}

// DecodeAddress decodes addr and checks it belongs to net.
func DecodeAddress(addr string, net *chaincfg.Params) (btcutil.Address, error) {
	if net == nil {
		return nil, errorsmod.Wrap(types.ErrInvalidInput, "network params must not be nil")
	}

	decoded, err := btcutil.DecodeAddress(addr, net)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidInput, "invalid address %q: %v", addr, err)
	}

	if !decoded.IsForNet(net) {
		return nil, errorsmod.Wrapf(types.ErrInvalidInput, "address %q is not for network %s", addr, net.Name)
	}

	return decoded, nil
}

func outputAt(tx *wire.MsgTx, index uint32) (*wire.TxOut, error) {
	if tx == nil {
		return nil, errorsmod.Wrap(types.ErrInvalidInput, "funding transaction must not be nil")
	}

	if int(index) >= len(tx.TxOut) {
		return nil, errorsmod.Wrapf(types.ErrInvalidInput,
			"output index %d out of range for tx with %d outputs", index, len(tx.TxOut))
	}

	return tx.TxOut[index], nil
}

func txHashPtr(tx *wire.MsgTx) *chainhash.Hash {
	h := tx.TxHash()
	return &h
}

// checkPreSignedTxSanity checks a transaction pre-signed by the staker obeys
// the consensus sanity rules and has the expected shape.
func checkPreSignedTxSanity(tx *wire.MsgTx, numInputs, numOutputs int) error {
	if err := blockchain.CheckTransactionSanity(btcutil.NewTx(tx)); err != nil {
		return errorsmod.Wrapf(types.ErrBuildTransaction, "tx does not obey btc rules: %v", err)
	}

	if len(tx.TxIn) != numInputs || len(tx.TxOut) != numOutputs {
		return errorsmod.Wrapf(types.ErrBuildTransaction,
			"tx must have %d inputs and %d outputs", numInputs, numOutputs)
	}

	if tx.LockTime != 0 {
		return errorsmod.Wrap(types.ErrBuildTransaction, "pre-signed tx must not have locktime")
	}

	for _, in := range tx.TxIn {
		if in.Sequence != wire.MaxTxInSequenceNum {
			return errorsmod.Wrap(types.ErrBuildTransaction, "pre-signed tx must not be replaceable")
		}
	}

	return nil
}
