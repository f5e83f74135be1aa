package staker_test

import (
	"encoding/hex"
	"math/rand"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/babylonlabs-io/btc-staking/staker"
	"github.com/babylonlabs-io/btc-staking/testutil"
	"github.com/babylonlabs-io/btc-staking/types"
)

var net = &chaincfg.SigNetParams

type stakerFixture struct {
	stakerSk    *btcec.PrivateKey
	stakerAddr  btcutil.Address
	stakerInfo  types.StakerInfo
	fpSk        *btcec.PrivateKey
	covenantSks []*btcec.PrivateKey
	params      *types.StakingParams
	input       types.StakingInput
	utxos       []types.UTXO
	bbnAddr     string
}

func genStakerFixture(t *testing.T, r *rand.Rand) *stakerFixture {
	stakerSk, stakerAddr := testutil.GenTaprootAddress(r, t, net)
	fpSk, fpPk := testutil.GenRandomBTCKeyPair(r)
	covenantSks, covenantPks := testutil.GenCovenantCommittee(r, 5)
	params := testutil.GenStakingParams(r, t, covenantPks, 3)

	stakingTime := params.MinStakingTime + uint16(r.Intn(int(params.MaxStakingTime-params.MinStakingTime)))

	return &stakerFixture{
		stakerSk:   stakerSk,
		stakerAddr: stakerAddr,
		stakerInfo: types.StakerInfo{
			Address:             stakerAddr.EncodeAddress(),
			PublicKeyNoCoordHex: hex.EncodeToString(schnorr.SerializePubKey(stakerSk.PubKey())),
		},
		fpSk:        fpSk,
		covenantSks: covenantSks,
		params:      params,
		input: types.StakingInput{
			FinalityProviderPkNoCoordHex: hex.EncodeToString(schnorr.SerializePubKey(fpPk)),
			StakingAmountSat:             500_000,
			StakingTimelock:              stakingTime,
		},
		utxos: []types.UTXO{
			testutil.GenUTXO(r, t, stakerAddr, 300_000),
			testutil.GenUTXO(r, t, stakerAddr, 700_000),
		},
		bbnAddr: sdk.MustBech32ifyAddressBytes(staker.BabylonAddressPrefix, testutil.GenRandomByteArray(r, 20)),
	}
}

func (f *stakerFixture) newStaking(t *testing.T, variant staker.StakingVariant) *staker.Staking {
	s, err := staker.NewStaking(
		net, f.stakerInfo, f.params, f.input.FinalityProviderPkNoCoordHex,
		f.input.StakingTimelock, variant, testutil.GetTestLogger(t),
	)
	require.NoError(t, err)

	return s
}

// executeInput runs input idx of tx through the script engine.
func executeInput(t *testing.T, tx *wire.MsgTx, idx int, prevOuts txscript.PrevOutputFetcher) {
	prevOut := prevOuts.FetchPrevOutput(tx.TxIn[idx].PreviousOutPoint)
	require.NotNil(t, prevOut)

	vm, err := txscript.NewEngine(
		prevOut.PkScript, tx, idx, txscript.StandardVerifyFlags, nil,
		txscript.NewTxSigHashes(tx, prevOuts), prevOut.Value, prevOuts,
	)
	require.NoError(t, err)
	require.NoError(t, vm.Execute())
}

// fetcherFor returns a fetcher holding output idx of each funding tx.
func fetcherFor(funding *wire.MsgTx, idx uint32) txscript.PrevOutputFetcher {
	hash := funding.TxHash()
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	fetcher.AddPrevOut(*wire.NewOutPoint(&hash, idx), funding.TxOut[idx])
	return fetcher
}
