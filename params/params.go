package params

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"

	"github.com/babylonlabs-io/btc-staking/staking"
	"github.com/babylonlabs-io/btc-staking/types"
)

// versionedParamsJSON is one entry of the global parameters file. Entries
// without an explicit version take their position in the list.
type versionedParamsJSON struct {
	Version              *uint32  `json:"version,omitempty"`
	CovenantPks          []string `json:"covenant_pks"`
	CovenantQuorum       uint32   `json:"covenant_quorum"`
	MinStakingValueSat   int64    `json:"min_staking_value_sat"`
	MaxStakingValueSat   int64    `json:"max_staking_value_sat"`
	MinStakingTimeBlocks uint32   `json:"min_staking_time_blocks"`
	MaxStakingTimeBlocks uint32   `json:"max_staking_time_blocks"`
	SlashingPkScript     []byte   `json:"slashing_pk_script"`
	MinSlashingTxFeeSat  int64    `json:"min_slashing_tx_fee_sat"`
	SlashingRate         string   `json:"slashing_rate"`
	UnbondingTimeBlocks  uint32   `json:"unbonding_time_blocks"`
	UnbondingFeeSat      int64    `json:"unbonding_fee_sat"`
	BtcActivationHeight  uint32   `json:"btc_activation_height"`
	Tag                  string   `json:"tag,omitempty"`
}

// VersionedParams holds every parameter set of the protocol ordered by
// version. Activation heights never decrease with the version.
type VersionedParams struct {
	versions []*types.StakingParams
}

// LoadFromFile reads the JSON parameter list at path.
func LoadFromFile(path string) (*VersionedParams, error) {
	bz, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read params file %s: %w", path, err)
	}

	return Parse(bz)
}

// Parse decodes a JSON list of parameter sets.
func Parse(bz []byte) (*VersionedParams, error) {
	var raw []versionedParamsJSON
	if err := json.Unmarshal(bz, &raw); err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidParams, "malformed params json: %v", err)
	}

	versions := make([]*types.StakingParams, 0, len(raw))
	for i, r := range raw {
		p, err := r.toStakingParams(uint32(i))
		if err != nil {
			return nil, errorsmod.Wrapf(err, "params entry %d", i)
		}
		versions = append(versions, p)
	}

	return NewVersionedParams(versions)
}

// NewVersionedParams validates every parameter set and their ordering.
func NewVersionedParams(versions []*types.StakingParams) (*VersionedParams, error) {
	if len(versions) == 0 {
		return nil, errorsmod.Wrap(types.ErrInvalidParams, "no parameter sets given")
	}

	sorted := make([]*types.StakingParams, len(versions))
	copy(sorted, versions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Version < sorted[j].Version
	})

	for i, p := range sorted {
		if err := staking.ValidateParams(p); err != nil {
			return nil, errorsmod.Wrapf(err, "params version %d", p.Version)
		}

		if i == 0 {
			continue
		}

		prev := sorted[i-1]
		if p.Version == prev.Version {
			return nil, errorsmod.Wrapf(types.ErrInvalidParams, "duplicate params version %d", p.Version)
		}
		if p.BtcActivationHeight < prev.BtcActivationHeight {
			return nil, errorsmod.Wrapf(types.ErrInvalidParams,
				"params version %d activates at %d, before version %d at %d",
				p.Version, p.BtcActivationHeight, prev.Version, prev.BtcActivationHeight)
		}
	}

	return &VersionedParams{versions: sorted}, nil
}

// ParamsForHeight returns the last parameter set activated at or before
// btcHeight.
func (vp *VersionedParams) ParamsForHeight(btcHeight uint32) (*types.StakingParams, error) {
	for i := len(vp.versions) - 1; i >= 0; i-- {
		if vp.versions[i].BtcActivationHeight <= btcHeight {
			return vp.versions[i], nil
		}
	}

	return nil, errorsmod.Wrapf(types.ErrInvalidParams,
		"no params activated at btc height %d, first activation is %d",
		btcHeight, vp.versions[0].BtcActivationHeight)
}

func (vp *VersionedParams) ParamsForVersion(version uint32) (*types.StakingParams, error) {
	for _, p := range vp.versions {
		if p.Version == version {
			return p, nil
		}
	}

	return nil, errorsmod.Wrapf(types.ErrInvalidParams, "params version %d not found", version)
}

// Versions returns the parameter sets ordered by version.
func (vp *VersionedParams) Versions() []*types.StakingParams {
	return vp.versions
}

func (vp *VersionedParams) Latest() *types.StakingParams {
	return vp.versions[len(vp.versions)-1]
}

func (r *versionedParamsJSON) toStakingParams(position uint32) (*types.StakingParams, error) {
	version := position
	if r.Version != nil {
		version = *r.Version
	}

	covenantPks := make([]*btcec.PublicKey, 0, len(r.CovenantPks))
	for _, pkHex := range r.CovenantPks {
		pk, err := staking.ParseXOnlyPubKeyHex(pkHex)
		if err != nil {
			return nil, errorsmod.Wrapf(types.ErrInvalidParams, "covenant key: %v", err)
		}
		covenantPks = append(covenantPks, pk)
	}

	minStakingTime, err := toBlocks16("min_staking_time_blocks", r.MinStakingTimeBlocks)
	if err != nil {
		return nil, err
	}
	maxStakingTime, err := toBlocks16("max_staking_time_blocks", r.MaxStakingTimeBlocks)
	if err != nil {
		return nil, err
	}
	unbondingTime, err := toBlocks16("unbonding_time_blocks", r.UnbondingTimeBlocks)
	if err != nil {
		return nil, err
	}

	slashingRate, err := sdkmath.LegacyNewDecFromStr(r.SlashingRate)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidParams, "slashing rate %q: %v", r.SlashingRate, err)
	}

	var tag []byte
	if r.Tag != "" {
		tag, err = hex.DecodeString(r.Tag)
		if err != nil {
			return nil, errorsmod.Wrapf(types.ErrInvalidParams, "tag %q is not hex: %v", r.Tag, err)
		}
	}

	return &types.StakingParams{
		Version:             version,
		CovenantPks:         covenantPks,
		CovenantQuorum:      r.CovenantQuorum,
		UnbondingTime:       unbondingTime,
		UnbondingFee:        btcutil.Amount(r.UnbondingFeeSat),
		MinStakingValue:     btcutil.Amount(r.MinStakingValueSat),
		MaxStakingValue:     btcutil.Amount(r.MaxStakingValueSat),
		MinStakingTime:      minStakingTime,
		MaxStakingTime:      maxStakingTime,
		SlashingPkScript:    r.SlashingPkScript,
		MinSlashingTxFeeSat: btcutil.Amount(r.MinSlashingTxFeeSat),
		SlashingRate:        slashingRate,
		BtcActivationHeight: r.BtcActivationHeight,
		Tag:                 tag,
	}, nil
}

// toBlocks16 checks a block count fits the 16 bits of a CSV timelock.
func toBlocks16(field string, blocks uint32) (uint16, error) {
	if blocks > 0xffff {
		return 0, errorsmod.Wrapf(types.ErrInvalidParams, "%s %d exceeds %d", field, blocks, 0xffff)
	}
	return uint16(blocks), nil
}
