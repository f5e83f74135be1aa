package staking_test

import (
	"math/rand"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"

	"github.com/babylonlabs-io/btc-staking/staking"
	"github.com/babylonlabs-io/btc-staking/testutil"
	"github.com/babylonlabs-io/btc-staking/types"
)

var net = &chaincfg.SigNetParams

type testDelegation struct {
	stakerSk    *btcec.PrivateKey
	stakerPk    *btcec.PublicKey
	fpSk        *btcec.PrivateKey
	fpPk        *btcec.PublicKey
	covenantSks []*btcec.PrivateKey
	params      *types.StakingParams
	stakingTime uint16
	scriptData  *staking.StakingScriptData
	scripts     *staking.StakingScripts
}

func genTestDelegation(t *testing.T, r *rand.Rand, numCovenants int, quorum uint32) *testDelegation {
	stakerSk, stakerPk := testutil.GenRandomBTCKeyPair(r)
	fpSk, fpPk := testutil.GenRandomBTCKeyPair(r)
	covenantSks, covenantPks := testutil.GenCovenantCommittee(r, numCovenants)
	params := testutil.GenStakingParams(r, t, covenantPks, quorum)
	stakingTime := uint16(r.Intn(int(params.MaxStakingTime-params.MinStakingTime))) + params.MinStakingTime

	data, err := staking.NewStakingScriptData(
		stakerPk, []*btcec.PublicKey{fpPk}, covenantPks, quorum, stakingTime, params.UnbondingTime,
	)
	require.NoError(t, err)

	scripts, err := data.BuildScripts()
	require.NoError(t, err)

	return &testDelegation{
		stakerSk:    stakerSk,
		stakerPk:    stakerPk,
		fpSk:        fpSk,
		fpPk:        fpPk,
		covenantSks: covenantSks,
		params:      params,
		stakingTime: stakingTime,
		scriptData:  data,
		scripts:     scripts,
	}
}
