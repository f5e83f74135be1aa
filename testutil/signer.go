package testutil

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/babylonlabs-io/btc-staking/types"
)

const messageSignatureHeader = "Bitcoin Signed Message:\n"

// BtcSigner is an in-memory wallet holding a single key. It signs taproot
// script path inputs, key path inputs of its own key and messages.
type BtcSigner struct {
	sk *btcec.PrivateKey

	// Steps records every signing step requested, in order
	Steps []types.SigningStep
}

func NewBtcSigner(sk *btcec.PrivateKey) *BtcSigner {
	return &BtcSigner{sk: sk}
}

func (s *BtcSigner) PublicKey() *btcec.PublicKey {
	return s.sk.PubKey()
}

func (s *BtcSigner) SignPsbt(_ context.Context, step types.SigningStep, psbtHex string) (string, error) {
	s.Steps = append(s.Steps, step)

	raw, err := hex.DecodeString(psbtHex)
	if err != nil {
		return "", err
	}

	packet, err := psbt.NewFromRawBytes(bytes.NewReader(raw), false)
	if err != nil {
		return "", err
	}

	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	prevOuts := make([]*wire.TxOut, len(packet.Inputs))
	for i, in := range packet.Inputs {
		outpoint := packet.UnsignedTx.TxIn[i].PreviousOutPoint
		switch {
		case in.WitnessUtxo != nil:
			prevOuts[i] = in.WitnessUtxo
		case in.NonWitnessUtxo != nil:
			prevOuts[i] = in.NonWitnessUtxo.TxOut[outpoint.Index]
		default:
			return "", fmt.Errorf("input %d has no utxo information", i)
		}
		fetcher.AddPrevOut(outpoint, prevOuts[i])
	}

	sigHashes := txscript.NewTxSigHashes(packet.UnsignedTx, fetcher)
	xOnly := schnorr.SerializePubKey(s.sk.PubKey())

	for i := range packet.Inputs {
		in := &packet.Inputs[i]

		if len(in.TaprootLeafScript) > 0 {
			leafScript := in.TaprootLeafScript[0]
			leaf := txscript.NewTapLeaf(leafScript.LeafVersion, leafScript.Script)
			sig, err := txscript.RawTxInTapscriptSignature(
				packet.UnsignedTx, sigHashes, i, prevOuts[i].Value,
				prevOuts[i].PkScript, leaf, txscript.SigHashDefault, s.sk,
			)
			if err != nil {
				return "", err
			}

			leafHash := leaf.TapHash()
			in.TaprootScriptSpendSig = append(in.TaprootScriptSpendSig, &psbt.TaprootScriptSpendSig{
				XOnlyPubKey: xOnly,
				LeafHash:    leafHash[:],
				Signature:   sig,
				SigHash:     txscript.SigHashDefault,
			})
			continue
		}

		if txscript.IsPayToTaproot(prevOuts[i].PkScript) {
			sig, err := txscript.RawTxInTaprootSignature(
				packet.UnsignedTx, sigHashes, i, prevOuts[i].Value,
				prevOuts[i].PkScript, nil, txscript.SigHashDefault, s.sk,
			)
			if err != nil {
				return "", err
			}
			in.TaprootKeySpendSig = sig
		}
	}

	var buf bytes.Buffer
	if err := packet.Serialize(&buf); err != nil {
		return "", err
	}

	return hex.EncodeToString(buf.Bytes()), nil
}

// SignMessage returns the base64 encoded compact ECDSA signature of message
// in the format of the Bitcoin Core signmessage RPC.
func (s *BtcSigner) SignMessage(
	_ context.Context,
	step types.SigningStep,
	message string,
	signingType types.MessageSigningType,
) (string, error) {
	s.Steps = append(s.Steps, step)

	if signingType != types.MessageSigningTypeECDSA {
		return "", fmt.Errorf("unsupported message signing type %s", signingType)
	}

	hash, err := MessageHash(message)
	if err != nil {
		return "", err
	}

	sig, err := ecdsa.SignCompact(s.sk, hash, true)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(sig), nil
}

// MessageHash is the double sha256 of the message prefixed with the
// Bitcoin signed message header.
func MessageHash(message string) ([]byte, error) {
	var buf bytes.Buffer
	if err := wire.WriteVarString(&buf, 0, messageSignatureHeader); err != nil {
		return nil, err
	}
	if err := wire.WriteVarString(&buf, 0, message); err != nil {
		return nil, err
	}

	return chainhash.DoubleHashB(buf.Bytes()), nil
}

// SignTapscriptSpend signs the single input of tx spending fundingOut along
// the base version leaf holding leafScript.
func SignTapscriptSpend(
	sk *btcec.PrivateKey,
	tx *wire.MsgTx,
	fundingOut *wire.TxOut,
	leafScript []byte,
) ([]byte, error) {
	if len(tx.TxIn) != 1 {
		return nil, fmt.Errorf("tx must have exactly one input, got %d", len(tx.TxIn))
	}

	fetcher := txscript.NewCannedPrevOutputFetcher(fundingOut.PkScript, fundingOut.Value)
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	return txscript.RawTxInTapscriptSignature(
		tx, sigHashes, 0, fundingOut.Value, fundingOut.PkScript,
		txscript.NewBaseTapLeaf(leafScript), txscript.SigHashDefault, sk,
	)
}
