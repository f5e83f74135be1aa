package staker_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/babylonlabs-io/btc-staking/staker"
	"github.com/babylonlabs-io/btc-staking/types"
)

func TestStakingVariantValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		variant staker.StakingVariant
		err     error
	}{
		{"plain", staker.PlainVariant(), nil},
		{"observable", staker.ObservableVariant([]byte("bbt4"), 200_000), nil},
		{"observable short tag", staker.ObservableVariant([]byte("bbt"), 200_000), types.ErrInvalidParams},
		{"observable without tag", staker.ObservableVariant(nil, 200_000), types.ErrInvalidParams},
		{"observable zero activation", staker.ObservableVariant([]byte("bbt4"), 0), types.ErrInvalidParams},
		{"unknown kind", staker.StakingVariant{Kind: staker.VariantKind(7)}, types.ErrInvalidParams},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := tc.variant.Validate()
			if tc.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestVariantKindString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "plain", staker.VariantPlain.String())
	require.Equal(t, "observable", staker.VariantObservable.String())
	require.Equal(t, "unknown(9)", staker.VariantKind(9).String())
}
