package staking

import (
	"bytes"
	"encoding/hex"

	errorsmod "cosmossdk.io/errors"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/babylonlabs-io/btc-staking/types"
)

const (
	// bounds applied when decoding a finalized witness
	maxWitnessItems    = 1000
	maxWitnessItemSize = 4_000_000
)

// StakingPsbt converts an unsigned staking transaction into a PSBT the
// staker's wallet can sign. Every input must be found in utxos.
// publicKeyNoCoord is set as taproot internal key of P2TR inputs.
func StakingPsbt(tx *wire.MsgTx, utxos []types.UTXO, publicKeyNoCoord []byte) (*psbt.Packet, error) {
	if tx == nil {
		return nil, errorsmod.Wrap(types.ErrInvalidInput, "staking transaction must not be nil")
	}

	if publicKeyNoCoord != nil && len(publicKeyNoCoord) != schnorr.PubKeyBytesLen {
		return nil, errorsmod.Wrapf(types.ErrInvalidInput,
			"public key must be %d bytes, got %d", schnorr.PubKeyBytesLen, len(publicKeyNoCoord))
	}

	packet, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrBuildTransaction, "failed to create psbt: %v", err)
	}

	byOutpoint := make(map[wire.OutPoint]types.UTXO, len(utxos))
	for _, u := range utxos {
		byOutpoint[u.OutPoint] = u
	}

	for i, in := range tx.TxIn {
		u, ok := byOutpoint[in.PreviousOutPoint]
		if !ok {
			return nil, errorsmod.Wrapf(types.ErrInvalidInput,
				"no utxo found for input %d spending %s", i, in.PreviousOutPoint)
		}

		pin := &packet.Inputs[i]
		if u.RawTxHex != "" {
			prevTx, err := DeserializeTxHex(u.RawTxHex)
			if err != nil {
				return nil, err
			}

			outpoint := in.PreviousOutPoint
			if prevTx.TxHash() != outpoint.Hash {
				return nil, errorsmod.Wrapf(types.ErrInvalidInput,
					"raw tx of input %d hashes to %s, want %s", i, prevTx.TxHash(), outpoint.Hash)
			}
			if int(outpoint.Index) >= len(prevTx.TxOut) {
				return nil, errorsmod.Wrapf(types.ErrInvalidInput,
					"input %d spends output %d of a raw tx with %d outputs", i, outpoint.Index, len(prevTx.TxOut))
			}

			pin.NonWitnessUtxo = prevTx

			// segwit signers commit to the spent output itself
			prevOut := prevTx.TxOut[outpoint.Index]
			if txscript.IsWitnessProgram(prevOut.PkScript) {
				pin.WitnessUtxo = wire.NewTxOut(prevOut.Value, prevOut.PkScript)
			}
		} else {
			pin.WitnessUtxo = wire.NewTxOut(u.Value, u.ScriptPubKey)
		}

		if len(u.RedeemScript) > 0 {
			pin.RedeemScript = u.RedeemScript
		}
		if len(u.WitnessScript) > 0 {
			pin.WitnessScript = u.WitnessScript
		}

		if publicKeyNoCoord != nil && txscript.IsPayToTaproot(u.ScriptPubKey) {
			pin.TaprootInternalKey = publicKeyNoCoord
		}
	}

	return packet, nil
}

// UnbondingPsbt wraps the unbonding transaction for signing along the
// unbonding leaf of the staking output it spends.
func UnbondingPsbt(
	scripts *StakingScripts,
	unbondingTx *wire.MsgTx,
	stakingTx *wire.MsgTx,
	net *chaincfg.Params,
) (*psbt.Packet, error) {
	if unbondingTx == nil || stakingTx == nil {
		return nil, errorsmod.Wrap(types.ErrInvalidInput, "transactions must not be nil")
	}

	if len(unbondingTx.TxIn) != 1 || len(unbondingTx.TxOut) != 1 {
		return nil, errorsmod.Wrap(types.ErrInvalidInput,
			"unbonding transaction must have exactly one input and one output")
	}

	prevOut := unbondingTx.TxIn[0].PreviousOutPoint
	if prevOut.Hash != stakingTx.TxHash() {
		return nil, errorsmod.Wrapf(types.ErrInvalidInput,
			"unbonding transaction does not spend staking transaction %s", stakingTx.TxHash())
	}

	stakingOut, err := outputAt(stakingTx, prevOut.Index)
	if err != nil {
		return nil, err
	}

	output, err := DeriveStakingOutput(scripts, net)
	if err != nil {
		return nil, errorsmod.Wrap(types.ErrBuildTransaction, err.Error())
	}

	if !bytes.Equal(output.PkScript, stakingOut.PkScript) {
		return nil, errorsmod.Wrap(types.ErrInvalidInput, "spent output is not the staking output of the scripts")
	}

	return buildScriptSpendPsbt(
		output.TaprootOutput, scripts.UnbondingScript,
		&prevOut, stakingOut, unbondingTx.TxIn[0].Sequence,
		unbondingTx.TxOut,
	)
}

// ExtractSchnorrSignature returns the first 64 bytes schnorr signature of
// the first input of a signed PSBT. Both script spend signatures and a
// finalized witness are searched.
func ExtractSchnorrSignature(packet *psbt.Packet) ([]byte, error) {
	if packet == nil || len(packet.Inputs) == 0 {
		return nil, errorsmod.Wrap(types.ErrSignatureNotFound, "psbt has no inputs")
	}

	in := packet.Inputs[0]
	for _, sig := range in.TaprootScriptSpendSig {
		if len(sig.Signature) == schnorr.SignatureSize {
			return sig.Signature, nil
		}
	}

	if len(in.FinalScriptWitness) > 0 {
		witness, err := ParseWitness(in.FinalScriptWitness)
		if err != nil {
			return nil, errorsmod.Wrap(types.ErrSignatureNotFound, err.Error())
		}

		for _, item := range witness {
			if len(item) == schnorr.SignatureSize {
				return item, nil
			}
		}
	}

	return nil, errorsmod.Wrap(types.ErrSignatureNotFound, "no schnorr signature in first input")
}

// ParseWitness decodes a serialized witness stack as stored in
// PSBT_IN_FINAL_SCRIPTWITNESS.
func ParseWitness(serialized []byte) (wire.TxWitness, error) {
	r := bytes.NewReader(serialized)

	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, err
	}

	if count > maxWitnessItems {
		return nil, errorsmod.Wrapf(types.ErrInvalidInput, "too many witness items: %d", count)
	}

	witness := make(wire.TxWitness, 0, count)
	for i := uint64(0); i < count; i++ {
		item, err := wire.ReadVarBytes(r, 0, maxWitnessItemSize, "witness item")
		if err != nil {
			return nil, err
		}
		witness = append(witness, item)
	}

	return witness, nil
}

// ExtractFinalizedTx finalizes every input of a signed packet and returns
// the network ready transaction.
func ExtractFinalizedTx(packet *psbt.Packet) (*wire.MsgTx, error) {
	if packet == nil {
		return nil, errorsmod.Wrap(types.ErrInvalidInput, "psbt must not be nil")
	}

	if err := psbt.MaybeFinalizeAll(packet); err != nil {
		return nil, errorsmod.Wrapf(types.ErrBuildTransaction, "failed to finalize psbt: %v", err)
	}

	tx, err := psbt.Extract(packet)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrBuildTransaction, "failed to extract tx: %v", err)
	}

	return tx, nil
}

func PsbtToHex(packet *psbt.Packet) (string, error) {
	var buf bytes.Buffer
	if err := packet.Serialize(&buf); err != nil {
		return "", errorsmod.Wrapf(types.ErrBuildTransaction, "failed to serialize psbt: %v", err)
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

func PsbtFromHex(psbtHex string) (*psbt.Packet, error) {
	raw, err := hex.DecodeString(psbtHex)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidInput, "psbt is not hex: %v", err)
	}

	packet, err := psbt.NewFromRawBytes(bytes.NewReader(raw), false)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidInput, "malformed psbt: %v", err)
	}

	return packet, nil
}

// SerializeTx returns the witness serialization of tx.
func SerializeTx(tx *wire.MsgTx) ([]byte, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, errorsmod.Wrapf(types.ErrBuildTransaction, "failed to serialize tx: %v", err)
	}
	return buf.Bytes(), nil
}

func DeserializeTxHex(txHex string) (*wire.MsgTx, error) {
	raw, err := hex.DecodeString(txHex)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidInput, "tx is not hex: %v", err)
	}

	tx := &wire.MsgTx{}
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidInput, "malformed tx: %v", err)
	}

	return tx, nil
}
