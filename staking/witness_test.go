package staking_test

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/babylonlabs-io/btc-staking/staking"
	"github.com/babylonlabs-io/btc-staking/testutil"
	"github.com/babylonlabs-io/btc-staking/types"
)

type unbondingFixture struct {
	del         *testDelegation
	stakingTx   *wire.MsgTx
	unbondingTx *wire.MsgTx
	stakingOut  *wire.TxOut
	spendInfo   *staking.SpendInfo
}

func genUnbondingFixture(t *testing.T, r *rand.Rand, numCovenants int, quorum uint32) *unbondingFixture {
	del := genTestDelegation(t, r, numCovenants, quorum)
	_, addr := testutil.GenTaprootAddress(r, t, net)

	stakingTx, err := staking.BuildStakingTransaction(
		del.scripts, 1_000_000, addr.EncodeAddress(),
		[]types.UTXO{testutil.GenUTXO(r, t, addr, 2_000_000)}, net, 2, 0,
	)
	require.NoError(t, err)

	unbondingTx, err := staking.BuildUnbondingTransaction(
		del.scripts, stakingTx.Tx, 0, int64(del.params.UnbondingFee), net,
	)
	require.NoError(t, err)

	stakingOutput, err := staking.DeriveStakingOutput(del.scripts, net)
	require.NoError(t, err)
	spendInfo, err := stakingOutput.UnbondingPathSpendInfo()
	require.NoError(t, err)

	return &unbondingFixture{
		del:         del,
		stakingTx:   stakingTx.Tx,
		unbondingTx: unbondingTx,
		stakingOut:  stakingTx.Tx.TxOut[0],
		spendInfo:   spendInfo,
	}
}

func (f *unbondingFixture) stakerWitness(t *testing.T) wire.TxWitness {
	sig, err := testutil.SignTapscriptSpend(f.del.stakerSk, f.unbondingTx, f.stakingOut, f.del.scripts.UnbondingScript)
	require.NoError(t, err)
	cb, err := f.spendInfo.ControlBlockBytes()
	require.NoError(t, err)

	return wire.TxWitness{sig, f.del.scripts.UnbondingScript, cb}
}

func (f *unbondingFixture) covenantSigs(t *testing.T, sks []*btcec.PrivateKey) []types.CovenantSignature {
	sigs := make([]types.CovenantSignature, 0, len(sks))
	for _, sk := range sks {
		sig, err := testutil.SignTapscriptSpend(sk, f.unbondingTx, f.stakingOut, f.del.scripts.UnbondingScript)
		require.NoError(t, err)
		sigs = append(sigs, types.CovenantSignature{
			BtcPk: schnorr.SerializePubKey(sk.PubKey()),
			Sig:   sig,
		})
	}
	return sigs
}

func (f *unbondingFixture) execute(witness wire.TxWitness) error {
	tx := f.unbondingTx.Copy()
	tx.TxIn[0].Witness = witness

	fetcher := txscript.NewCannedPrevOutputFetcher(f.stakingOut.PkScript, f.stakingOut.Value)
	vm, err := txscript.NewEngine(
		f.stakingOut.PkScript, tx, 0, txscript.StandardVerifyFlags, nil,
		txscript.NewTxSigHashes(tx, fetcher), f.stakingOut.Value, fetcher,
	)
	if err != nil {
		return err
	}

	return vm.Execute()
}

func TestCreateCovenantWitnessSpendsUnbondingPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		numCovenants int
		quorum       uint32
		numSigners   int
	}{
		{"single covenant", 1, 1, 1},
		{"exact quorum", 5, 3, 3},
		{"all members sign", 5, 3, 5},
		{"quorum equals committee", 4, 4, 4},
	}

	for i, tc := range tests {
		i, tc := i, tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := rand.New(rand.NewSource(int64(40 + i)))
			f := genUnbondingFixture(t, r, tc.numCovenants, tc.quorum)

			signers := f.del.covenantSks[:tc.numSigners]
			original := f.stakerWitness(t)
			witness, err := staking.CreateCovenantWitness(
				original, f.del.params.CovenantPks, f.covenantSigs(t, signers), tc.quorum,
			)
			require.NoError(t, err)
			require.Len(t, witness, tc.numCovenants+len(original))

			nonEmpty := 0
			for _, item := range witness[:tc.numCovenants] {
				if len(item) > 0 {
					nonEmpty++
				}
			}
			require.Equal(t, int(tc.quorum), nonEmpty)
			require.Equal(t, original, witness[tc.numCovenants:])

			require.NoError(t, f.execute(witness))
		})
	}
}

func TestCreateCovenantWitnessOrder(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(50))
	f := genUnbondingFixture(t, r, 4, 4)

	sigs := f.covenantSigs(t, f.del.covenantSks)
	witness, err := staking.CreateCovenantWitness(nil, f.del.params.CovenantPks, sigs, 4)
	require.NoError(t, err)
	require.Len(t, witness, 4)

	sigByKey := make(map[string][]byte)
	for _, s := range sigs {
		sigByKey[string(s.BtcPk)] = s.Sig
	}

	// keys sorted descending
	keys := make([][]byte, 0, 4)
	for _, pk := range f.del.params.CovenantPks {
		keys = append(keys, schnorr.SerializePubKey(pk))
	}
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			if bytes.Compare(keys[i], keys[j]) < 0 {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}

	for i, key := range keys {
		require.Equal(t, sigByKey[string(key)], witness[i])
	}
}

func TestCreateCovenantWitnessFailures(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(51))
	f := genUnbondingFixture(t, r, 3, 2)
	original := f.stakerWitness(t)

	outsider, _ := testutil.GenRandomBTCKeyPair(r)

	t.Run("below quorum", func(t *testing.T) {
		t.Parallel()
		_, err := staking.CreateCovenantWitness(
			original, f.del.params.CovenantPks, f.covenantSigs(t, f.del.covenantSks[:1]), 2,
		)
		require.ErrorIs(t, err, types.ErrInvalidCovenantSignature)
	})

	t.Run("quorum out of range", func(t *testing.T) {
		t.Parallel()
		for _, quorum := range []uint32{0, 4} {
			_, err := staking.CreateCovenantWitness(
				original, f.del.params.CovenantPks, f.covenantSigs(t, f.del.covenantSks), quorum,
			)
			require.ErrorIs(t, err, types.ErrInvalidParams)
		}
	})

	t.Run("signer outside committee", func(t *testing.T) {
		t.Parallel()
		sigs := f.covenantSigs(t, []*btcec.PrivateKey{f.del.covenantSks[0], outsider})
		_, err := staking.CreateCovenantWitness(original, f.del.params.CovenantPks, sigs, 2)
		require.ErrorIs(t, err, types.ErrInvalidCovenantSignature)
	})

	t.Run("malformed signature", func(t *testing.T) {
		t.Parallel()
		sigs := f.covenantSigs(t, f.del.covenantSks[:2])
		sigs[1].Sig = sigs[1].Sig[:10]
		_, err := staking.CreateCovenantWitness(original, f.del.params.CovenantPks, sigs, 2)
		require.ErrorIs(t, err, types.ErrInvalidCovenantSignature)
	})

	t.Run("too many signatures break the script when not truncated", func(t *testing.T) {
		t.Parallel()
		sigs := f.covenantSigs(t, f.del.covenantSks)
		witness, err := staking.CreateCovenantWitness(original, f.del.params.CovenantPks, sigs, 2)
		require.NoError(t, err)
		require.NoError(t, f.execute(witness))

		// put back the dropped signature
		full, err := staking.CreateCovenantWitness(original, f.del.params.CovenantPks, sigs, 3)
		require.NoError(t, err)
		require.Error(t, f.execute(full))
	})
}
