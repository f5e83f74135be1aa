package staking

import (
	"encoding/hex"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/babylonlabs-io/btc-staking/types"
)

// unspendableKeyPathKeyHex is the NUMS point H = lift_x(SHA256(G)) from BIP-341.
// Nobody knows its discrete logarithm so the key path of every output built
// with it as internal key is unspendable.
const unspendableKeyPathKeyHex = "0250929b74c1a04954b78b4b6035e97a5e078a5a0f28ec96d547bfee9ace803ac0"

var unspendableKeyPathKey = mustParseInternalKey(unspendableKeyPathKeyHex)

func mustParseInternalKey(keyHex string) btcec.PublicKey {
	keyBytes, err := hex.DecodeString(keyHex)
	if err != nil {
		panic(fmt.Sprintf("unexpected error decoding internal key hex: %v", err))
	}

	key, err := btcec.ParsePubKey(keyBytes)
	if err != nil {
		panic(fmt.Sprintf("unexpected error parsing internal key: %v", err))
	}

	return *key
}

// UnspendableKeyPathInternalPubKey returns a copy of the internal key shared
// by every taproot output of the protocol.
func UnspendableKeyPathInternalPubKey() btcec.PublicKey {
	return unspendableKeyPathKey
}

// SpendInfo is everything needed to spend a taproot output along one of its
// script leaves.
type SpendInfo struct {
	RevealedLeaf txscript.TapLeaf
	ControlBlock txscript.ControlBlock
}

func (si *SpendInfo) GetPkScriptPath() []byte {
	return si.RevealedLeaf.Script
}

func (si *SpendInfo) ControlBlockBytes() ([]byte, error) {
	return si.ControlBlock.ToBytes()
}

// TaprootLeafScript returns the leaf in the form PSBT inputs carry it.
func (si *SpendInfo) TaprootLeafScript() (*psbt.TaprootTapLeafScript, error) {
	cb, err := si.ControlBlockBytes()
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidOutput, "failed to serialize control block: %v", err)
	}

	return &psbt.TaprootTapLeafScript{
		ControlBlock: cb,
		Script:       si.RevealedLeaf.Script,
		LeafVersion:  si.RevealedLeaf.LeafVersion,
	}, nil
}

// TaprootOutput is a script path only taproot output committing to a fixed
// script tree.
type TaprootOutput struct {
	Address  btcutil.Address
	PkScript []byte

	tree *txscript.IndexedTapScriptTree
}

// TxOut returns the output paying value to this taproot output.
func (o *TaprootOutput) TxOut(value int64) *wire.TxOut {
	return wire.NewTxOut(value, o.PkScript)
}

// SpendInfo returns the spend info of the leaf holding the given script.
func (o *TaprootOutput) SpendInfo(script []byte) (*SpendInfo, error) {
	leaf := txscript.NewBaseTapLeaf(script)
	leafHash := leaf.TapHash()

	proofIdx, ok := o.tree.LeafProofIndex[leafHash]
	if !ok {
		return nil, errorsmod.Wrapf(types.ErrInvalidOutput, "script %x is not a leaf of the output", script)
	}

	internalKey := UnspendableKeyPathInternalPubKey()
	proof := o.tree.LeafMerkleProofs[proofIdx]

	return &SpendInfo{
		RevealedLeaf: leaf,
		ControlBlock: proof.ToControlBlock(&internalKey),
	}, nil
}

// deriveTaprootOutput assembles the script tree from the given leaves in
// order and computes the output key over the unspendable internal key.
func deriveTaprootOutput(net *chaincfg.Params, scripts ...[]byte) (*TaprootOutput, error) {
	if net == nil {
		return nil, errorsmod.Wrap(types.ErrInvalidOutput, "network params must not be nil")
	}

	if len(scripts) == 0 {
		return nil, errorsmod.Wrap(types.ErrInvalidOutput, "cannot build tree with no scripts")
	}

	leaves := make([]txscript.TapLeaf, 0, len(scripts))
	for i, s := range scripts {
		if err := checkScriptParses(s); err != nil {
			return nil, errorsmod.Wrapf(types.ErrInvalidOutput, "leaf %d: %v", i, err)
		}
		leaves = append(leaves, txscript.NewBaseTapLeaf(s))
	}

	tree := txscript.AssembleTaprootScriptTree(leaves...)
	rootHash := tree.RootNode.TapHash()

	internalKey := UnspendableKeyPathInternalPubKey()
	outputKey := txscript.ComputeTaprootOutputKey(&internalKey, rootHash[:])

	address, err := btcutil.NewAddressTaproot(schnorr.SerializePubKey(outputKey), net)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidOutput, "failed to derive taproot address: %v", err)
	}

	pkScript, err := txscript.PayToAddrScript(address)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidOutput, "failed to build pk script: %v", err)
	}

	return &TaprootOutput{
		Address:  address,
		PkScript: pkScript,
		tree:     tree,
	}, nil
}

// StakingOutput is the output locking the stake. Its tree is
// {slashing} vs {timelock, unbonding}.
type StakingOutput struct {
	*TaprootOutput
	scripts *StakingScripts
}

func DeriveStakingOutput(scripts *StakingScripts, net *chaincfg.Params) (*StakingOutput, error) {
	if scripts == nil {
		return nil, errorsmod.Wrap(types.ErrInvalidOutput, "scripts must not be nil")
	}

	out, err := deriveTaprootOutput(net, scripts.TimelockScript, scripts.UnbondingScript, scripts.SlashingScript)
	if err != nil {
		return nil, err
	}

	return &StakingOutput{TaprootOutput: out, scripts: scripts}, nil
}

func (o *StakingOutput) TimeLockPathSpendInfo() (*SpendInfo, error) {
	return o.SpendInfo(o.scripts.TimelockScript)
}

func (o *StakingOutput) UnbondingPathSpendInfo() (*SpendInfo, error) {
	return o.SpendInfo(o.scripts.UnbondingScript)
}

func (o *StakingOutput) SlashingPathSpendInfo() (*SpendInfo, error) {
	return o.SpendInfo(o.scripts.SlashingScript)
}

// UnbondingOutput is the output of the unbonding transaction. Its tree is
// {slashing} vs {unbonding timelock}.
type UnbondingOutput struct {
	*TaprootOutput
	scripts *StakingScripts
}

func DeriveUnbondingOutput(scripts *StakingScripts, net *chaincfg.Params) (*UnbondingOutput, error) {
	if scripts == nil {
		return nil, errorsmod.Wrap(types.ErrInvalidOutput, "scripts must not be nil")
	}

	out, err := deriveTaprootOutput(net, scripts.SlashingScript, scripts.UnbondingTimelockScript)
	if err != nil {
		return nil, err
	}

	return &UnbondingOutput{TaprootOutput: out, scripts: scripts}, nil
}

func (o *UnbondingOutput) TimeLockPathSpendInfo() (*SpendInfo, error) {
	return o.SpendInfo(o.scripts.UnbondingTimelockScript)
}

func (o *UnbondingOutput) SlashingPathSpendInfo() (*SpendInfo, error) {
	return o.SpendInfo(o.scripts.SlashingScript)
}

// SlashingChangeOutput is the change output of a slashing transaction, a
// single leaf tree holding the unbonding timelock script.
type SlashingChangeOutput struct {
	*TaprootOutput
	scripts *StakingScripts
}

func DeriveSlashingChangeOutput(scripts *StakingScripts, net *chaincfg.Params) (*SlashingChangeOutput, error) {
	if scripts == nil {
		return nil, errorsmod.Wrap(types.ErrInvalidOutput, "scripts must not be nil")
	}

	out, err := deriveTaprootOutput(net, scripts.UnbondingTimelockScript)
	if err != nil {
		return nil, err
	}

	return &SlashingChangeOutput{TaprootOutput: out, scripts: scripts}, nil
}

func (o *SlashingChangeOutput) TimeLockPathSpendInfo() (*SpendInfo, error) {
	return o.SpendInfo(o.scripts.UnbondingTimelockScript)
}

// FindOutputIndex returns the index of the first output of tx paying to
// address.
func FindOutputIndex(tx *wire.MsgTx, address btcutil.Address, net *chaincfg.Params) (uint32, error) {
	if tx == nil || address == nil {
		return 0, errorsmod.Wrap(types.ErrInvalidOutput, "transaction and address must not be nil")
	}

	expected := address.EncodeAddress()
	for i, out := range tx.TxOut {
		_, addrs, _, err := txscript.ExtractPkScriptAddrs(out.PkScript, net)
		if err != nil || len(addrs) != 1 {
			continue
		}

		if addrs[0].EncodeAddress() == expected {
			return uint32(i), nil
		}
	}

	return 0, errorsmod.Wrapf(types.ErrInvalidOutput, "output paying to %s not found in tx %s",
		expected, tx.TxHash())
}

func checkScriptParses(script []byte) error {
	if len(script) == 0 {
		return fmt.Errorf("empty script")
	}

	tokenizer := txscript.MakeScriptTokenizer(0, script)
	for tokenizer.Next() {
	}

	return tokenizer.Err()
}
