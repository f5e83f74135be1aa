package types

// SigningStep tags every request sent to the signer providers so a wallet can
// show the user what is being signed.
type SigningStep string

const (
	SigningStepStakingSlashing        SigningStep = "staking-slashing"
	SigningStepUnbondingSlashing      SigningStep = "unbonding-slashing"
	SigningStepProofOfPossession      SigningStep = "proof-of-possession"
	SigningStepCreateBTCDelegationMsg SigningStep = "create-btc-delegation-msg"
	SigningStepStakingTransaction     SigningStep = "staking-transaction"
	SigningStepUnbondingTransaction   SigningStep = "unbonding-transaction"
	SigningStepWithdrawStakingExpired SigningStep = "withdraw-staking-expired"
	SigningStepWithdrawEarlyUnbonded  SigningStep = "withdraw-early-unbonded"
	SigningStepWithdrawSlashing       SigningStep = "withdraw-slashing"
)

func (s SigningStep) String() string {
	return string(s)
}

// MessageSigningType is the signing scheme requested for a message signature.
type MessageSigningType string

const (
	MessageSigningTypeECDSA  MessageSigningType = "ecdsa"
	MessageSigningTypeBIP322 MessageSigningType = "bip322-simple"
)
