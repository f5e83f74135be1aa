package staking_test

import (
	"encoding/hex"
	"math/rand"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/babylonlabs-io/btc-staking/staking"
	"github.com/babylonlabs-io/btc-staking/testutil"
	"github.com/babylonlabs-io/btc-staking/types"
)

func expectedAddress(t *testing.T, root txscript.TapNode) btcutil.Address {
	internalKey := staking.UnspendableKeyPathInternalPubKey()
	rootHash := root.TapHash()
	outputKey := txscript.ComputeTaprootOutputKey(&internalKey, rootHash[:])
	addr, err := btcutil.NewAddressTaproot(schnorr.SerializePubKey(outputKey), net)
	require.NoError(t, err)

	return addr
}

func TestUnspendableInternalKey(t *testing.T) {
	t.Parallel()

	key := staking.UnspendableKeyPathInternalPubKey()
	require.Equal(t,
		"50929b74c1a04954b78b4b6035e97a5e078a5a0f28ec96d547bfee9ace803ac0",
		hex.EncodeToString(schnorr.SerializePubKey(&key)),
	)
}

func TestTaprootTreeShapes(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(20))
	del := genTestDelegation(t, r, 3, 2)
	s := del.scripts

	timelockLeaf := txscript.NewBaseTapLeaf(s.TimelockScript)
	unbondingLeaf := txscript.NewBaseTapLeaf(s.UnbondingScript)
	slashingLeaf := txscript.NewBaseTapLeaf(s.SlashingScript)
	unbondingTimelockLeaf := txscript.NewBaseTapLeaf(s.UnbondingTimelockScript)

	stakingOut, err := staking.DeriveStakingOutput(s, net)
	require.NoError(t, err)
	require.Equal(t,
		expectedAddress(t, txscript.NewTapBranch(txscript.NewTapBranch(timelockLeaf, unbondingLeaf), slashingLeaf)).EncodeAddress(),
		stakingOut.Address.EncodeAddress(),
	)
	require.Equal(t, txscript.WitnessV1TaprootTy, txscript.GetScriptClass(stakingOut.PkScript))

	unbondingOut, err := staking.DeriveUnbondingOutput(s, net)
	require.NoError(t, err)
	require.Equal(t,
		expectedAddress(t, txscript.NewTapBranch(slashingLeaf, unbondingTimelockLeaf)).EncodeAddress(),
		unbondingOut.Address.EncodeAddress(),
	)

	changeOut, err := staking.DeriveSlashingChangeOutput(s, net)
	require.NoError(t, err)
	require.Equal(t, expectedAddress(t, unbondingTimelockLeaf).EncodeAddress(), changeOut.Address.EncodeAddress())

	require.NotEqual(t, stakingOut.Address.EncodeAddress(), unbondingOut.Address.EncodeAddress())
}

func TestSpendInfoCommitsToOutput(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(21))
	del := genTestDelegation(t, r, 4, 3)

	stakingOut, err := staking.DeriveStakingOutput(del.scripts, net)
	require.NoError(t, err)
	unbondingOut, err := staking.DeriveUnbondingOutput(del.scripts, net)
	require.NoError(t, err)
	changeOut, err := staking.DeriveSlashingChangeOutput(del.scripts, net)
	require.NoError(t, err)

	cases := []struct {
		name     string
		pkScript []byte
		info     func() (*staking.SpendInfo, error)
		script   []byte
	}{
		{"staking timelock", stakingOut.PkScript, stakingOut.TimeLockPathSpendInfo, del.scripts.TimelockScript},
		{"staking unbonding", stakingOut.PkScript, stakingOut.UnbondingPathSpendInfo, del.scripts.UnbondingScript},
		{"staking slashing", stakingOut.PkScript, stakingOut.SlashingPathSpendInfo, del.scripts.SlashingScript},
		{"unbonding timelock", unbondingOut.PkScript, unbondingOut.TimeLockPathSpendInfo, del.scripts.UnbondingTimelockScript},
		{"unbonding slashing", unbondingOut.PkScript, unbondingOut.SlashingPathSpendInfo, del.scripts.SlashingScript},
		{"slashing change timelock", changeOut.PkScript, changeOut.TimeLockPathSpendInfo, del.scripts.UnbondingTimelockScript},
	}

	for _, tc := range cases {
		info, err := tc.info()
		require.NoError(t, err, tc.name)
		require.Equal(t, tc.script, info.GetPkScriptPath(), tc.name)

		// witness program is the pk script without OP_1 OP_DATA_32
		err = txscript.VerifyTaprootLeafCommitment(&info.ControlBlock, tc.pkScript[2:], tc.script)
		require.NoError(t, err, tc.name)

		leaf, err := info.TaprootLeafScript()
		require.NoError(t, err, tc.name)
		require.Equal(t, tc.script, leaf.Script)
		require.Equal(t, txscript.BaseLeafVersion, leaf.LeafVersion)
	}

	_, err = unbondingOut.SpendInfo(del.scripts.TimelockScript)
	require.ErrorIs(t, err, types.ErrInvalidOutput)
}

func TestDeriveOutputFailures(t *testing.T) {
	t.Parallel()

	_, err := staking.DeriveStakingOutput(nil, net)
	require.ErrorIs(t, err, types.ErrInvalidOutput)

	_, err = staking.DeriveStakingOutput(&staking.StakingScripts{}, net)
	require.ErrorIs(t, err, types.ErrInvalidOutput)

	r := rand.New(rand.NewSource(22))
	del := genTestDelegation(t, r, 3, 2)
	malformed := *del.scripts
	// a push of 32 bytes with only one byte of data
	malformed.SlashingScript = []byte{txscript.OP_DATA_32, 0x01}
	_, err = staking.DeriveUnbondingOutput(&malformed, net)
	require.ErrorIs(t, err, types.ErrInvalidOutput)
}

func TestFindOutputIndexRoundTrip(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(23))
	del := genTestDelegation(t, r, 3, 2)

	stakingOut, err := staking.DeriveStakingOutput(del.scripts, net)
	require.NoError(t, err)

	_, otherAddr := testutil.GenTaprootAddress(r, t, net)
	otherScript, err := txscript.PayToAddrScript(otherAddr)
	require.NoError(t, err)

	tx := wire.NewMsgTx(2)
	tx.AddTxOut(wire.NewTxOut(1000, otherScript))
	tx.AddTxOut(wire.NewTxOut(0, []byte{txscript.OP_RETURN, 0x01, 0x01}))
	tx.AddTxOut(stakingOut.TxOut(50_000))

	idx, err := staking.FindOutputIndex(tx, stakingOut.Address, net)
	require.NoError(t, err)
	require.Equal(t, uint32(2), idx)

	rederived, err := staking.DeriveStakingOutput(del.scripts, net)
	require.NoError(t, err)
	idx2, err := staking.FindOutputIndex(tx, rederived.Address, net)
	require.NoError(t, err)
	require.Equal(t, idx, idx2)

	unbondingOut, err := staking.DeriveUnbondingOutput(del.scripts, net)
	require.NoError(t, err)
	_, err = staking.FindOutputIndex(tx, unbondingOut.Address, net)
	require.ErrorIs(t, err, types.ErrInvalidOutput)
}

func TestDeriveOutputNetworks(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(24))
	del := genTestDelegation(t, r, 3, 2)

	mainnetOut, err := staking.DeriveStakingOutput(del.scripts, &chaincfg.MainNetParams)
	require.NoError(t, err)
	signetOut, err := staking.DeriveStakingOutput(del.scripts, &chaincfg.SigNetParams)
	require.NoError(t, err)

	require.Equal(t, mainnetOut.PkScript, signetOut.PkScript)
	require.True(t, mainnetOut.Address.IsForNet(&chaincfg.MainNetParams))
	require.NotEqual(t, mainnetOut.Address.EncodeAddress(), signetOut.Address.EncodeAddress())
}
