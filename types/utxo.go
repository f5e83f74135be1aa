package types

import (
	"github.com/btcsuite/btcd/wire"
)

// UTXO is an unspent output owned by the staker that can fund a staking
// transaction. It is never mutated by the builders.
type UTXO struct {
	OutPoint     wire.OutPoint
	Value        int64
	ScriptPubKey []byte

	// RawTxHex is the full hex encoded transaction holding the output.
	// Optional, used as non-witness utxo data for legacy inputs.
	RawTxHex string
	// RedeemScript and WitnessScript are optional spend data for P2SH and
	// P2WSH inputs.
	RedeemScript  []byte
	WitnessScript []byte
}

// CovenantSignature is a signature provided by one covenant committee member.
type CovenantSignature struct {
	// BtcPk is the 32 bytes x-only public key of the covenant member
	BtcPk []byte
	// Sig is the 64 bytes BIP-340 signature
	Sig []byte
}

// StakerInfo identifies the staker of a delegation.
type StakerInfo struct {
	// Address is the BTC address receiving change and withdrawn funds
	Address string
	// PublicKeyNoCoordHex is the hex encoded x-only public key of the staker
	PublicKeyNoCoordHex string
}

// StakingInput describes the stake of one delegation.
type StakingInput struct {
	FinalityProviderPkNoCoordHex string
	StakingAmountSat             int64
	StakingTimelock              uint16
}
