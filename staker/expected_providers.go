package staker

import (
	"context"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/babylonlabs-io/btc-staking/types"
)

// BtcProvider is the staker's bitcoin wallet. Private keys never leave it.
type BtcProvider interface {
	// SignPsbt signs the inputs of the hex encoded PSBT the wallet owns and
	// returns the signed PSBT hex. The PSBT may be returned finalized.
	SignPsbt(ctx context.Context, step types.SigningStep, psbtHex string) (string, error)

	// SignMessage signs message and returns the base64 encoded signature.
	SignMessage(ctx context.Context, step types.SigningStep, message string, signingType types.MessageSigningType) (string, error)
}

// BabylonProvider signs transactions for the delegation chain.
type BabylonProvider interface {
	// SignTransaction signs msg inside a delegation chain transaction and
	// returns the serialized signed transaction.
	SignTransaction(ctx context.Context, step types.SigningStep, msg sdk.Msg) ([]byte, error)
}

// ParamsLookup returns versioned staking parameters.
type ParamsLookup interface {
	ParamsForHeight(btcHeight uint32) (*types.StakingParams, error)
	ParamsForVersion(version uint32) (*types.StakingParams, error)
}
