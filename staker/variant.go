package staker

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"

	"github.com/babylonlabs-io/btc-staking/staking"
	"github.com/babylonlabs-io/btc-staking/types"
)

// ObservableDataVersion is the version byte of the data embed payload.
const ObservableDataVersion byte = 0

type VariantKind int

const (
	VariantPlain VariantKind = iota
	VariantObservable
)

func (k VariantKind) String() string {
	switch k {
	case VariantPlain:
		return "plain"
	case VariantObservable:
		return "observable"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// StakingVariant selects how staking transactions are built. Observable
// stakes carry an OP_RETURN output tagged with Tag and are only valid from
// ActivationHeight on.
type StakingVariant struct {
	Kind             VariantKind
	Tag              []byte
	ActivationHeight uint32
}

func PlainVariant() StakingVariant {
	return StakingVariant{Kind: VariantPlain}
}

func ObservableVariant(tag []byte, activationHeight uint32) StakingVariant {
	return StakingVariant{
		Kind:             VariantObservable,
		Tag:              tag,
		ActivationHeight: activationHeight,
	}
}

// Validate checks the variant carries what its kind needs.
func (v StakingVariant) Validate() error {
	switch v.Kind {
	case VariantPlain:
		return nil
	case VariantObservable:
		if len(v.Tag) != staking.MagicBytesLen {
			return errorsmod.Wrapf(types.ErrInvalidParams,
				"observable tag must be %d bytes, got %d", staking.MagicBytesLen, len(v.Tag))
		}
		if v.ActivationHeight == 0 {
			return errorsmod.Wrap(types.ErrInvalidParams, "observable activation height must be positive")
		}
		return nil
	default:
		return errorsmod.Wrapf(types.ErrInvalidParams, "unknown staking variant %s", v.Kind)
	}
}

// lockHeight is the absolute locktime of staking transactions. Observable
// stakes are locked until the block before activation so they are mined no
// earlier than ActivationHeight.
func (v StakingVariant) lockHeight() uint32 {
	if v.Kind == VariantObservable {
		return v.ActivationHeight - 1
	}
	return 0
}

func (v StakingVariant) buildScripts(data *staking.StakingScriptData) (*staking.StakingScripts, error) {
	scripts, err := data.BuildScripts()
	if err != nil {
		return nil, err
	}

	if v.Kind != VariantObservable {
		return scripts, nil
	}

	scripts.DataEmbedScript, err = data.BuildDataEmbedScript(v.Tag, ObservableDataVersion)
	if err != nil {
		return nil, err
	}

	return scripts, nil
}
