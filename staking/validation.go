package staking

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	bbntypes "github.com/babylonlabs-io/babylon/v3/types"
	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/babylonlabs-io/btc-staking/types"
)

// ValidateParams checks a parameter set is usable to build delegations.
func ValidateParams(p *types.StakingParams) error {
	if p == nil {
		return errorsmod.Wrap(types.ErrInvalidParams, "params must not be nil")
	}

	if len(p.CovenantPks) == 0 {
		return errorsmod.Wrap(types.ErrInvalidParams, "covenant public keys are missing")
	}

	if err := checkForDuplicateKeys(p.CovenantPks); err != nil {
		return errorsmod.Wrapf(types.ErrInvalidParams, "covenant public keys: %v", err)
	}

	if p.CovenantQuorum == 0 || int(p.CovenantQuorum) > len(p.CovenantPks) {
		return errorsmod.Wrapf(types.ErrInvalidParams,
			"covenant quorum %d must be in [1, %d]", p.CovenantQuorum, len(p.CovenantPks))
	}

	if p.UnbondingTime == 0 {
		return errorsmod.Wrap(types.ErrInvalidParams, "unbonding time must be positive")
	}

	if p.UnbondingFee <= 0 {
		return errorsmod.Wrap(types.ErrInvalidParams, "unbonding fee must be positive")
	}

	if p.MinStakingValue <= 0 || p.MaxStakingValue < p.MinStakingValue {
		return errorsmod.Wrapf(types.ErrInvalidParams,
			"invalid staking value bounds [%d, %d]", p.MinStakingValue, p.MaxStakingValue)
	}

	if p.MinStakingTime == 0 || p.MaxStakingTime < p.MinStakingTime {
		return errorsmod.Wrapf(types.ErrInvalidParams,
			"invalid staking time bounds [%d, %d]", p.MinStakingTime, p.MaxStakingTime)
	}

	if int64(p.MinStakingValue) <= int64(p.UnbondingFee)+DustSat {
		return errorsmod.Wrapf(types.ErrInvalidParams,
			"min staking value %d must exceed unbonding fee %d plus dust %d",
			p.MinStakingValue, p.UnbondingFee, DustSat)
	}

	if len(p.SlashingPkScript) == 0 {
		return errorsmod.Wrap(types.ErrInvalidParams, "slashing pk script is missing")
	}

	if p.MinSlashingTxFeeSat <= 0 {
		return errorsmod.Wrap(types.ErrInvalidParams, "min slashing tx fee must be positive")
	}

	if p.SlashingRate.IsNil() || !IsSlashingRateInRange(p.SlashingRate) {
		return errorsmod.Wrap(types.ErrInvalidParams, "slashing rate must be in (0, 1)")
	}

	if len(p.Tag) != 0 && len(p.Tag) != MagicBytesLen {
		return errorsmod.Wrapf(types.ErrInvalidParams, "tag must be %d bytes, got %d", MagicBytesLen, len(p.Tag))
	}

	return nil
}

// ValidateStakingTimelock checks timelock is within the bounds of p.
func ValidateStakingTimelock(timelock uint16, p *types.StakingParams) error {
	if timelock < p.MinStakingTime || timelock > p.MaxStakingTime {
		return errorsmod.Wrapf(types.ErrInvalidInput,
			"staking timelock %d must be in [%d, %d]", timelock, p.MinStakingTime, p.MaxStakingTime)
	}
	return nil
}

// ValidateStakingAmount checks amount is within the bounds of p.
func ValidateStakingAmount(amount int64, p *types.StakingParams) error {
	if amount < int64(p.MinStakingValue) || amount > int64(p.MaxStakingValue) {
		return errorsmod.Wrapf(types.ErrInvalidInput,
			"staking amount %d must be in [%d, %d]", amount, p.MinStakingValue, p.MaxStakingValue)
	}
	return nil
}

// IsSlashingRateInRange reports whether rate lies strictly between 0 and 1.
func IsSlashingRateInRange(rate sdkmath.LegacyDec) bool {
	if rate.IsNil() {
		return false
	}
	return rate.GT(sdkmath.LegacyZeroDec()) && rate.LT(sdkmath.LegacyOneDec())
}

// ParseXOnlyPubKeyHex parses a hex encoded 32 bytes x-only public key.
func ParseXOnlyPubKeyHex(pkHex string) (*btcec.PublicKey, error) {
	bip340Pk, err := bbntypes.NewBIP340PubKeyFromHex(pkHex)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidInput, "invalid public key %q: %v", pkHex, err)
	}

	pk, err := bip340Pk.ToBTCPK()
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidInput, "invalid public key %q: %v", pkHex, err)
	}

	return pk, nil
}
