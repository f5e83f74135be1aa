package types

import (
	sdkmath "cosmossdk.io/math"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
)

// StakingParams is one versioned parameter set of the staking protocol. It is
// read-only for the duration of a construction call.
type StakingParams struct {
	// Version of the parameter set
	Version uint32

	// Bitcoin public keys of the covenant committee
	CovenantPks []*btcec.PublicKey

	// Minimum number of signatures needed for the covenant multisignature
	CovenantQuorum uint32

	// The exact block time for unbonding transaction timelock in BTC blocks
	UnbondingTime uint16

	// Fee required by unbonding transaction
	UnbondingFee btcutil.Amount

	// Minimum and maximum staking value accepted by the delegation chain
	MinStakingValue btcutil.Amount
	MaxStakingValue btcutil.Amount

	// Minimum and maximum staking timelock in BTC blocks
	MinStakingTime uint16
	MaxStakingTime uint16

	// The pk_script expected in slashing output i.e., the first
	// output of slashing transaction
	SlashingPkScript []byte

	// Minimum amount of tx fee (quantified in Satoshi) needed for the pre-signed slashing tx
	MinSlashingTxFeeSat btcutil.Amount

	// The staked amount to be slashed, expressed as a decimal (e.g., 0.5 for 50%).
	SlashingRate sdkmath.LegacyDec

	// BTC height from which this parameter set applies
	BtcActivationHeight uint32

	// Magic bytes tagging the data-embed output of observable staking
	Tag []byte
}

// CovenantQuorumMet returns whether the number of provided signatures reaches
// the quorum of this parameter set.
func (p *StakingParams) CovenantQuorumMet(numSigs int) bool {
	return uint32(numSigs) >= p.CovenantQuorum
}
