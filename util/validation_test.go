//nolint:revive
package util_test

import (
	"math/rand"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/stretchr/testify/require"

	"github.com/babylonlabs-io/btc-staking/util"
)

func genKeys(t *testing.T, r *rand.Rand, n int) []*btcec.PublicKey {
	keys := make([]*btcec.PublicKey, 0, n)
	for len(keys) < n {
		b := make([]byte, 32)
		r.Read(b)
		if util.ValidatePrivKeyBytes(b) != nil {
			continue
		}
		_, pk := btcec.PrivKeyFromBytes(b)
		keys = append(keys, pk)
	}
	require.Len(t, keys, n)

	return keys
}

func TestHasDuplicateKeys(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(10))
	keys := genKeys(t, r, 4)

	tests := []struct {
		name      string
		keys      []*btcec.PublicKey
		expectDup bool
		dupKey    []byte
	}{
		{
			name:      "no duplicates",
			keys:      keys,
			expectDup: false,
		},
		{
			name:      "duplicate at start",
			keys:      []*btcec.PublicKey{keys[0], keys[0], keys[1]},
			expectDup: true,
			dupKey:    schnorr.SerializePubKey(keys[0]),
		},
		{
			name:      "duplicate at end",
			keys:      []*btcec.PublicKey{keys[0], keys[1], keys[2], keys[2]},
			expectDup: true,
			dupKey:    schnorr.SerializePubKey(keys[2]),
		},
		{
			name:      "empty slice",
			keys:      []*btcec.PublicKey{},
			expectDup: false,
		},
		{
			name:      "single element",
			keys:      []*btcec.PublicKey{keys[3]},
			expectDup: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			hasDup, dupKey := util.HasDuplicateKeys(tt.keys)
			require.Equal(t, tt.expectDup, hasDup)
			if tt.expectDup {
				require.Equal(t, tt.dupKey, dupKey)
			} else {
				require.Nil(t, dupKey)
			}
		})
	}
}

func TestValidateNoDuplicateKeys(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(11))
	keys := genKeys(t, r, 3)

	tests := []struct {
		name      string
		keys      []*btcec.PublicKey
		expectErr string
	}{
		{
			name: "valid unique keys",
			keys: keys,
		},
		{
			name:      "invalid with duplicates",
			keys:      []*btcec.PublicKey{keys[0], keys[1], keys[1]},
			expectErr: "duplicate key detected",
		},
		{
			name:      "nil key",
			keys:      []*btcec.PublicKey{keys[0], nil},
			expectErr: "is nil",
		},
		{
			name: "empty is valid",
			keys: []*btcec.PublicKey{},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := util.ValidateNoDuplicateKeys(tt.keys)
			if tt.expectErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tt.expectErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidatePrivKeyBytes(t *testing.T) {
	t.Parallel()

	require.Error(t, util.ValidatePrivKeyBytes(make([]byte, 32)))

	overflow := make([]byte, 32)
	for i := range overflow {
		overflow[i] = 0xff
	}
	require.Error(t, util.ValidatePrivKeyBytes(overflow))

	one := make([]byte, 32)
	one[31] = 1
	require.NoError(t, util.ValidatePrivKeyBytes(one))
}
