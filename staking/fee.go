package staking

import (
	"sort"

	errorsmod "cosmossdk.io/errors"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txsizes"

	"github.com/babylonlabs-io/btc-staking/types"
)

const (
	// DustSat is the minimum value of a non OP_RETURN output the builders
	// produce.
	DustSat = 546

	// Estimated virtual sizes of inputs by the type of the spent script.
	DefaultInputSize = 180
	P2WPKHInputSize  = 68
	P2TRInputSize    = 58

	// TxBufferSizeOverhead covers version, locktime, input/output counts
	// and the segwit marker.
	TxBufferSizeOverhead = 11

	// Fee rates at or below WalletRelayFeeRateThreshold get a fixed extra
	// LowRateEstimationAccuracyBuffer sats so the transaction still relays
	// when the size estimate is slightly short.
	LowRateEstimationAccuracyBuffer = 30
	WalletRelayFeeRateThreshold     = 2

	// WithdrawTxBufferSize is the extra room given to withdrawal
	// transactions for the script path witness.
	WithdrawTxBufferSize = 17

	opReturnOutputValueSize    = 8
	opReturnValueSerializeSize = 1
	maxNonLegacyOutputSize     = opReturnOutputValueSize + opReturnValueSerializeSize + txsizes.P2TRPkScriptSize
)

// UTXOSelection is the result of selecting the inputs of a staking
// transaction.
type UTXOSelection struct {
	Selected []types.UTXO
	Fee      int64
}

// TotalValue returns the sum of the values of the selected inputs.
func (s *UTXOSelection) TotalValue() int64 {
	var total int64
	for _, u := range s.Selected {
		total += u.Value
	}
	return total
}

// SelectUTXOs picks inputs largest first until they cover amount plus the
// fee of a transaction holding the selected inputs and the given outputs.
// A change output is accounted for once the leftover exceeds dust.
func SelectUTXOs(utxos []types.UTXO, amount int64, feeRate int64, outputs []*wire.TxOut) (*UTXOSelection, error) {
	if len(utxos) == 0 {
		return nil, errorsmod.Wrap(types.ErrInsufficientFunds, "no utxos available")
	}

	if amount <= 0 {
		return nil, errorsmod.Wrapf(types.ErrInvalidInput, "amount must be positive, got %d", amount)
	}

	if feeRate <= 0 {
		return nil, errorsmod.Wrapf(types.ErrInvalidInput, "fee rate must be positive, got %d", feeRate)
	}

	valid := make([]types.UTXO, 0, len(utxos))
	for _, u := range utxos {
		if checkScriptParses(u.ScriptPubKey) != nil {
			continue
		}
		valid = append(valid, u)
	}

	if len(valid) == 0 {
		return nil, errorsmod.Wrap(types.ErrInsufficientFunds, "no valid utxos available for staking")
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Value > valid[j].Value
	})

	var (
		selected    []types.UTXO
		accumulated int64
		fee         int64
	)
	for _, u := range valid {
		selected = append(selected, u)
		accumulated += u.Value

		fee = EstimateTxSize(selected, outputs)*feeRate + rateBasedTxBufferFee(feeRate)
		if accumulated-(amount+fee) > DustSat {
			fee += EstimateChangeOutputSize() * feeRate
		}

		if accumulated >= amount+fee {
			return &UTXOSelection{Selected: selected, Fee: fee}, nil
		}
	}

	return nil, errorsmod.Wrapf(types.ErrInsufficientFunds,
		"unable to cover amount %d and fee %d with %d sats", amount, fee, accumulated)
}

// EstimateTxSize estimates the virtual size of a transaction spending inputs
// into outputs. OP_RETURN outputs are sized exactly, any other output is
// charged as a taproot output.
func EstimateTxSize(inputs []types.UTXO, outputs []*wire.TxOut) int64 {
	var size int64
	for _, in := range inputs {
		if checkScriptParses(in.ScriptPubKey) != nil {
			continue
		}
		size += InputSizeByScript(in.ScriptPubKey)
	}

	for _, out := range outputs {
		if isOPReturn(out.PkScript) {
			size += int64(len(out.PkScript)) + opReturnOutputValueSize + opReturnValueSerializeSize
			continue
		}
		size += maxNonLegacyOutputSize
	}

	return size + TxBufferSizeOverhead
}

// InputSizeByScript returns the estimated size of an input spending script.
func InputSizeByScript(script []byte) int64 {
	switch txscript.GetScriptClass(script) {
	case txscript.WitnessV0PubKeyHashTy:
		return P2WPKHInputSize
	case txscript.WitnessV1TaprootTy:
		return P2TRInputSize
	default:
		return DefaultInputSize
	}
}

func EstimateChangeOutputSize() int64 {
	return maxNonLegacyOutputSize
}

// WithdrawalTxFee is the fee of a transaction spending one taproot script
// path input into one output.
func WithdrawalTxFee(feeRate int64) int64 {
	size := int64(P2TRInputSize + maxNonLegacyOutputSize + TxBufferSizeOverhead + WithdrawTxBufferSize)
	return feeRate*size + rateBasedTxBufferFee(feeRate)
}

func rateBasedTxBufferFee(feeRate int64) int64 {
	if feeRate <= WalletRelayFeeRateThreshold {
		return LowRateEstimationAccuracyBuffer
	}
	return 0
}

func isOPReturn(script []byte) bool {
	return len(script) > 0 && script[0] == txscript.OP_RETURN
}
