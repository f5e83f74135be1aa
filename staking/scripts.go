package staking

import (
	"bytes"
	"encoding/binary"
	"sort"

	errorsmod "cosmossdk.io/errors"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"

	"github.com/babylonlabs-io/btc-staking/types"
	"github.com/babylonlabs-io/btc-staking/util"
)

const (
	// MagicBytesLen is the length of the tag prefixing the data-embed payload
	MagicBytesLen = 4

	// dataEmbedPayloadLen is magic(4) || version(1) || staker pk(32) ||
	// finality provider pk(32) || staking timelock(2)
	dataEmbedPayloadLen = MagicBytesLen + 1 + schnorr.PubKeyBytesLen*2 + 2
)

// StakingScripts are the script fragments committed to by the staking,
// unbonding and slashing outputs. They are never mutated once built.
type StakingScripts struct {
	TimelockScript          []byte
	UnbondingScript         []byte
	SlashingScript          []byte
	UnbondingTimelockScript []byte
	// DataEmbedScript is only set for observable staking
	DataEmbedScript []byte
}

// StakingScriptData holds the keys and timelocks all staking scripts are
// derived from.
type StakingScriptData struct {
	StakerKey            *btcec.PublicKey
	FinalityProviderKeys []*btcec.PublicKey
	CovenantKeys         []*btcec.PublicKey
	CovenantQuorum       uint32
	StakingTimelock      uint16
	UnbondingTimelock    uint16
}

// NewStakingScriptData validates the keys and timelocks of a delegation.
// Exactly one finality provider key is supported.
func NewStakingScriptData(
	stakerKey *btcec.PublicKey,
	fpKeys []*btcec.PublicKey,
	covenantKeys []*btcec.PublicKey,
	covenantQuorum uint32,
	stakingTimelock uint16,
	unbondingTimelock uint16,
) (*StakingScriptData, error) {
	if stakerKey == nil {
		return nil, errorsmod.Wrap(types.ErrScriptFailure, "staker key must not be nil")
	}

	if len(fpKeys) != 1 {
		return nil, errorsmod.Wrapf(types.ErrScriptFailure,
			"exactly one finality provider key is supported, got %d", len(fpKeys))
	}

	if len(covenantKeys) == 0 {
		return nil, errorsmod.Wrap(types.ErrScriptFailure, "covenant keys must not be empty")
	}

	if covenantQuorum == 0 || int(covenantQuorum) > len(covenantKeys) {
		return nil, errorsmod.Wrapf(types.ErrScriptFailure,
			"covenant quorum %d must be in [1, %d]", covenantQuorum, len(covenantKeys))
	}

	if stakingTimelock == 0 {
		return nil, errorsmod.Wrap(types.ErrScriptFailure, "staking timelock must be positive")
	}

	if unbondingTimelock == 0 {
		return nil, errorsmod.Wrap(types.ErrScriptFailure, "unbonding timelock must be positive")
	}

	allKeys := make([]*btcec.PublicKey, 0, 2+len(covenantKeys))
	allKeys = append(allKeys, stakerKey)
	allKeys = append(allKeys, fpKeys...)
	allKeys = append(allKeys, covenantKeys...)
	if err := checkForDuplicateKeys(allKeys); err != nil {
		return nil, errorsmod.Wrap(types.ErrScriptFailure, err.Error())
	}

	return &StakingScriptData{
		StakerKey:            stakerKey,
		FinalityProviderKeys: fpKeys,
		CovenantKeys:         covenantKeys,
		CovenantQuorum:       covenantQuorum,
		StakingTimelock:      stakingTimelock,
		UnbondingTimelock:    unbondingTimelock,
	}, nil
}

// BuildScripts builds the timelock, unbonding, slashing and unbonding
// timelock scripts. The result is a pure function of the script data.
func (d *StakingScriptData) BuildScripts() (*StakingScripts, error) {
	timelockScript, err := BuildTimelockScript(d.StakerKey, d.StakingTimelock)
	if err != nil {
		return nil, err
	}

	unbondingTimelockScript, err := BuildTimelockScript(d.StakerKey, d.UnbondingTimelock)
	if err != nil {
		return nil, err
	}

	unbondingScript, err := d.buildUnbondingScript()
	if err != nil {
		return nil, err
	}

	slashingScript, err := d.buildSlashingScript()
	if err != nil {
		return nil, err
	}

	return &StakingScripts{
		TimelockScript:          timelockScript,
		UnbondingScript:         unbondingScript,
		SlashingScript:          slashingScript,
		UnbondingTimelockScript: unbondingTimelockScript,
	}, nil
}

// buildUnbondingScript: <staker_pk> OP_CHECKSIGVERIFY followed by the
// covenant multisig at quorum threshold.
func (d *StakingScriptData) buildUnbondingScript() ([]byte, error) {
	stakerScript, err := BuildSingleKeyScript(d.StakerKey, true)
	if err != nil {
		return nil, err
	}

	covenantScript, err := BuildMultiKeyScript(d.CovenantKeys, d.CovenantQuorum, false)
	if err != nil {
		return nil, err
	}

	return aggregateScripts(stakerScript, covenantScript), nil
}

func (d *StakingScriptData) buildSlashingScript() ([]byte, error) {
	stakerScript, err := BuildSingleKeyScript(d.StakerKey, true)
	if err != nil {
		return nil, err
	}

	fpScript, err := BuildMultiKeyScript(d.FinalityProviderKeys, 1, true)
	if err != nil {
		return nil, err
	}

	covenantScript, err := BuildMultiKeyScript(d.CovenantKeys, d.CovenantQuorum, false)
	if err != nil {
		return nil, err
	}

	return aggregateScripts(stakerScript, fpScript, covenantScript), nil
}

// BuildDataEmbedScript builds the OP_RETURN script tagging an observable
// staking transaction:
// OP_RETURN <magic(4) || version(1) || staker_pk(32) || fp_pk(32) || staking_timelock(2)>
func (d *StakingScriptData) BuildDataEmbedScript(magicBytes []byte, version byte) ([]byte, error) {
	if len(magicBytes) != MagicBytesLen {
		return nil, errorsmod.Wrapf(types.ErrScriptFailure,
			"magic bytes must be %d bytes, got %d", MagicBytesLen, len(magicBytes))
	}

	if len(d.FinalityProviderKeys) != 1 {
		return nil, errorsmod.Wrap(types.ErrScriptFailure,
			"data embed script supports exactly one finality provider key")
	}

	payload := make([]byte, 0, dataEmbedPayloadLen)
	payload = append(payload, magicBytes...)
	payload = append(payload, version)
	payload = append(payload, schnorr.SerializePubKey(d.StakerKey)...)
	payload = append(payload, schnorr.SerializePubKey(d.FinalityProviderKeys[0])...)
	payload = binary.BigEndian.AppendUint16(payload, d.StakingTimelock)

	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_RETURN).
		AddData(payload).
		Script()
	if err != nil {
		return nil, errorsmod.Wrap(types.ErrScriptFailure, err.Error())
	}

	return script, nil
}

// BuildSingleKeyScript builds <pk> OP_CHECKSIG, or <pk> OP_CHECKSIGVERIFY
// when withVerify is set.
func BuildSingleKeyScript(pk *btcec.PublicKey, withVerify bool) ([]byte, error) {
	if pk == nil {
		return nil, errorsmod.Wrap(types.ErrScriptFailure, "public key must not be nil")
	}

	builder := txscript.NewScriptBuilder()
	builder.AddData(schnorr.SerializePubKey(pk))
	if withVerify {
		builder.AddOp(txscript.OP_CHECKSIGVERIFY)
	} else {
		builder.AddOp(txscript.OP_CHECKSIG)
	}

	script, err := builder.Script()
	if err != nil {
		return nil, errorsmod.Wrap(types.ErrScriptFailure, err.Error())
	}

	return script, nil
}

// BuildMultiKeyScript builds a threshold multisig over the given keys:
// <pk1> OP_CHECKSIG <pk2> OP_CHECKSIGADD ... <pkN> OP_CHECKSIGADD <threshold> OP_NUMEQUAL[VERIFY]
// Keys are sorted by their x-only serialization so the script does not depend
// on the order the keys are given in. A single key degrades to the single key
// script.
func BuildMultiKeyScript(pks []*btcec.PublicKey, threshold uint32, withVerify bool) ([]byte, error) {
	if len(pks) == 0 {
		return nil, errorsmod.Wrap(types.ErrScriptFailure, "no keys provided")
	}

	if int(threshold) > len(pks) {
		return nil, errorsmod.Wrapf(types.ErrScriptFailure,
			"required number of valid signers %d is greater than number of provided keys %d", threshold, len(pks))
	}

	if len(pks) == 1 {
		return BuildSingleKeyScript(pks[0], withVerify)
	}

	if err := checkForDuplicateKeys(pks); err != nil {
		return nil, errorsmod.Wrap(types.ErrScriptFailure, err.Error())
	}

	sortedKeys := sortKeys(pks)

	builder := txscript.NewScriptBuilder()
	for i, key := range sortedKeys {
		builder.AddData(key)
		if i == 0 {
			builder.AddOp(txscript.OP_CHECKSIG)
		} else {
			builder.AddOp(txscript.OP_CHECKSIGADD)
		}
	}

	builder.AddInt64(int64(threshold))
	if withVerify {
		builder.AddOp(txscript.OP_NUMEQUALVERIFY)
	} else {
		builder.AddOp(txscript.OP_NUMEQUAL)
	}

	script, err := builder.Script()
	if err != nil {
		return nil, errorsmod.Wrap(types.ErrScriptFailure, err.Error())
	}

	return script, nil
}

// BuildTimelockScript builds <pk> OP_CHECKSIGVERIFY <timelock> OP_CHECKSEQUENCEVERIFY
func BuildTimelockScript(pk *btcec.PublicKey, timelock uint16) ([]byte, error) {
	if pk == nil {
		return nil, errorsmod.Wrap(types.ErrScriptFailure, "public key must not be nil")
	}

	script, err := txscript.NewScriptBuilder().
		AddData(schnorr.SerializePubKey(pk)).
		AddOp(txscript.OP_CHECKSIGVERIFY).
		AddInt64(int64(timelock)).
		AddOp(txscript.OP_CHECKSEQUENCEVERIFY).
		Script()
	if err != nil {
		return nil, errorsmod.Wrap(types.ErrScriptFailure, err.Error())
	}

	return script, nil
}

// ReadTimelockValue extracts the relative timelock from a script built by
// BuildTimelockScript.
func ReadTimelockValue(script []byte) (uint16, error) {
	tokenizer := txscript.MakeScriptTokenizer(0, script)

	var ops []byte
	var datas [][]byte
	for tokenizer.Next() {
		ops = append(ops, tokenizer.Opcode())
		datas = append(datas, tokenizer.Data())
	}
	if err := tokenizer.Err(); err != nil {
		return 0, errorsmod.Wrapf(types.ErrScriptFailure, "malformed timelock script: %v", err)
	}

	if len(ops) != 4 ||
		len(datas[0]) != schnorr.PubKeyBytesLen ||
		ops[1] != txscript.OP_CHECKSIGVERIFY ||
		ops[3] != txscript.OP_CHECKSEQUENCEVERIFY {
		return 0, errorsmod.Wrap(types.ErrScriptFailure, "script is not a timelock script")
	}

	var value int64
	switch op := ops[2]; {
	case op >= txscript.OP_1 && op <= txscript.OP_16:
		value = int64(op - (txscript.OP_1 - 1))
	case datas[2] != nil:
		n, err := decodeScriptNum(datas[2])
		if err != nil {
			return 0, err
		}
		value = n
	default:
		return 0, errorsmod.Wrap(types.ErrScriptFailure, "timelock value is missing")
	}

	if value <= 0 || value > int64(^uint16(0)) {
		return 0, errorsmod.Wrapf(types.ErrScriptFailure, "timelock %d out of range", value)
	}

	return uint16(value), nil
}

// decodeScriptNum decodes a minimally encoded little endian script number
// of at most 4 bytes.
func decodeScriptNum(b []byte) (int64, error) {
	if len(b) == 0 || len(b) > 4 {
		return 0, errorsmod.Wrapf(types.ErrScriptFailure, "invalid script number length %d", len(b))
	}

	var result int64
	for i, v := range b {
		result |= int64(v) << uint8(8*i)
	}

	// the most significant bit of the last byte is the sign
	if b[len(b)-1]&0x80 != 0 {
		result &= ^(int64(0x80) << uint8(8*(len(b)-1)))
		return -result, nil
	}

	return result, nil
}

func aggregateScripts(scripts ...[]byte) []byte {
	return bytes.Join(scripts, nil)
}

// sortKeys returns the x-only serializations of the keys in ascending
// lexicographic order. The input slice is left untouched.
func sortKeys(keys []*btcec.PublicKey) [][]byte {
	sorted := make([][]byte, 0, len(keys))
	for _, k := range keys {
		sorted = append(sorted, schnorr.SerializePubKey(k))
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i], sorted[j]) < 0
	})

	return sorted
}

func checkForDuplicateKeys(keys []*btcec.PublicKey) error {
	return util.ValidateNoDuplicateKeys(keys)
}
