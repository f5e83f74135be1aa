package staking_test

import (
	"math/rand"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/babylonlabs-io/btc-staking/staking"
	"github.com/babylonlabs-io/btc-staking/testutil"
	"github.com/babylonlabs-io/btc-staking/types"
)

func genP2WPKHAddress(t *testing.T, r *rand.Rand) btcutil.Address {
	addr, err := btcutil.NewAddressWitnessPubKeyHash(testutil.GenRandomByteArray(r, 20), net)
	require.NoError(t, err)
	return addr
}

func TestSelectUTXOsTwoInputs(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(30))
	_, addr := testutil.GenTaprootAddress(r, t, net)

	small := testutil.GenUTXO(r, t, addr, 500_000)
	large := testutil.GenUTXO(r, t, addr, 600_000)
	outputs := []*wire.TxOut{wire.NewTxOut(1_000_000, make([]byte, 34))}

	selection, err := staking.SelectUTXOs([]types.UTXO{small, large}, 1_000_000, 5, outputs)
	require.NoError(t, err)

	// the largest utxo is taken first
	require.Len(t, selection.Selected, 2)
	require.Equal(t, large.OutPoint, selection.Selected[0].OutPoint)
	require.Equal(t, small.OutPoint, selection.Selected[1].OutPoint)

	// 2 p2tr inputs + 1 output + overhead = 170 vB, plus a change output of
	// 43 vB since 1.1M - 1M - 850 is above dust
	require.Equal(t, int64(170*5+43*5), selection.Fee)
	require.Equal(t, int64(1_100_000), selection.TotalValue())
}

func TestSelectUTXOsSingleInputNoChange(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(31))
	_, addr := testutil.GenTaprootAddress(r, t, net)

	// 58 + 43 + 11 = 112 vB at 2 sat/vB plus the low rate buffer
	fee := int64(112*2 + staking.LowRateEstimationAccuracyBuffer)
	utxo := testutil.GenUTXO(r, t, addr, 100_000+fee+100)
	outputs := []*wire.TxOut{wire.NewTxOut(100_000, make([]byte, 34))}

	selection, err := staking.SelectUTXOs([]types.UTXO{utxo}, 100_000, 2, outputs)
	require.NoError(t, err)
	require.Equal(t, fee, selection.Fee)
}

func TestSelectUTXOsFailures(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(32))
	_, addr := testutil.GenTaprootAddress(r, t, net)
	outputs := []*wire.TxOut{wire.NewTxOut(1_000_000, make([]byte, 34))}

	malformed := testutil.GenUTXO(r, t, addr, 5_000_000)
	malformed.ScriptPubKey = []byte{txscript.OP_DATA_20, 0x00}

	tests := []struct {
		name      string
		utxos     []types.UTXO
		amount    int64
		feeRate   int64
		expectErr error
	}{
		{"no utxos", nil, 1_000_000, 5, types.ErrInsufficientFunds},
		{"only malformed utxos", []types.UTXO{malformed}, 1_000_000, 5, types.ErrInsufficientFunds},
		{"not enough value", []types.UTXO{testutil.GenUTXO(r, t, addr, 1_000_000)}, 1_000_000, 5, types.ErrInsufficientFunds},
		{"zero amount", []types.UTXO{testutil.GenUTXO(r, t, addr, 1_000_000)}, 0, 5, types.ErrInvalidInput},
		{"zero fee rate", []types.UTXO{testutil.GenUTXO(r, t, addr, 1_000_000)}, 1000, 0, types.ErrInvalidInput},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := staking.SelectUTXOs(tc.utxos, tc.amount, tc.feeRate, outputs)
			require.ErrorIs(t, err, tc.expectErr)
		})
	}
}

func TestSelectUTXOsCoversAmountAndFee(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(33))
	_, trAddr := testutil.GenTaprootAddress(r, t, net)
	wpkhAddr := genP2WPKHAddress(t, r)

	for i := 0; i < 50; i++ {
		var (
			utxos []types.UTXO
			total int64
		)
		numUTXOs := r.Intn(8) + 1
		for j := 0; j < numUTXOs; j++ {
			addr := trAddr
			if r.Intn(2) == 0 {
				addr = wpkhAddr
			}
			u := testutil.GenUTXO(r, t, addr, int64(r.Intn(1_000_000)+1000))
			utxos = append(utxos, u)
			total += u.Value
		}

		amount := int64(r.Intn(int(total))) + 1
		feeRate := int64(r.Intn(20) + 1)
		outputs := []*wire.TxOut{wire.NewTxOut(amount, make([]byte, 34))}

		selection, err := staking.SelectUTXOs(utxos, amount, feeRate, outputs)
		if err != nil {
			require.ErrorIs(t, err, types.ErrInsufficientFunds)
			continue
		}
		require.GreaterOrEqual(t, selection.TotalValue(), amount+selection.Fee)
		require.LessOrEqual(t, staking.EstimateTxSize(selection.Selected, outputs)*feeRate, selection.Fee)
	}
}

func TestEstimateTxSize(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(34))
	_, trAddr := testutil.GenTaprootAddress(r, t, net)

	inputs := []types.UTXO{
		testutil.GenUTXO(r, t, trAddr, 1000),
		testutil.GenUTXO(r, t, genP2WPKHAddress(t, r), 1000),
		{Value: 1000, ScriptPubKey: []byte{txscript.OP_TRUE}},
	}
	opReturn := make([]byte, 73)
	opReturn[0] = txscript.OP_RETURN
	outputs := []*wire.TxOut{
		wire.NewTxOut(1000, make([]byte, 22)),
		wire.NewTxOut(0, opReturn),
	}

	require.Equal(t, int64(58+68+180+43+(73+9)+11), staking.EstimateTxSize(inputs, outputs))
}

func TestWithdrawalTxFee(t *testing.T) {
	t.Parallel()

	require.Equal(t, int64(129*10), staking.WithdrawalTxFee(10))
	require.Equal(t, int64(129*2+30), staking.WithdrawalTxFee(2))
	require.Equal(t, int64(129+30), staking.WithdrawalTxFee(1))
}
