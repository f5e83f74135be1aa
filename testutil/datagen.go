package testutil

import (
	"encoding/hex"
	"math/rand"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/babylonlabs-io/btc-staking/types"
	"github.com/babylonlabs-io/btc-staking/util"
)

func GenRandomByteArray(r *rand.Rand, length uint64) []byte {
	newHeaderBytes := make([]byte, length)
	r.Read(newHeaderBytes)

	return newHeaderBytes
}

func GenRandomHexStr(r *rand.Rand, length uint64) string {
	randBytes := GenRandomByteArray(r, length)

	return hex.EncodeToString(randBytes)
}

// GenRandomBTCKeyPair derives a key pair from the random source so tests
// are reproducible for a given seed.
func GenRandomBTCKeyPair(r *rand.Rand) (*btcec.PrivateKey, *btcec.PublicKey) {
	for {
		sk, pk, err := util.ParsePrivKeyBytes(GenRandomByteArray(r, 32))
		if err != nil {
			continue
		}

		return sk, pk
	}
}

func GenRandomXOnlyPubKeyHex(r *rand.Rand) string {
	_, pk := GenRandomBTCKeyPair(r)
	return hex.EncodeToString(schnorr.SerializePubKey(pk))
}

// GenCovenantCommittee generates n covenant members.
func GenCovenantCommittee(r *rand.Rand, n int) ([]*btcec.PrivateKey, []*btcec.PublicKey) {
	sks := make([]*btcec.PrivateKey, 0, n)
	pks := make([]*btcec.PublicKey, 0, n)
	for i := 0; i < n; i++ {
		sk, pk := GenRandomBTCKeyPair(r)
		sks = append(sks, sk)
		pks = append(pks, pk)
	}

	return sks, pks
}

func GenValidSlashingRate(r *rand.Rand) sdkmath.LegacyDec {
	return sdkmath.LegacyNewDecWithPrec(int64(r.Intn(41)+10), 2)
}

// GenStakingParams returns a consistent parameter set for the given
// covenant committee.
func GenStakingParams(r *rand.Rand, t *testing.T, covenantPks []*btcec.PublicKey, quorum uint32) *types.StakingParams {
	_, slashingPk := GenRandomBTCKeyPair(r)
	slashingAddr, err := btcutil.NewAddressTaproot(schnorr.SerializePubKey(slashingPk), &chaincfg.SigNetParams)
	require.NoError(t, err)
	slashingPkScript, err := txscript.PayToAddrScript(slashingAddr)
	require.NoError(t, err)

	return &types.StakingParams{
		Version:             uint32(r.Intn(10)),
		CovenantPks:         covenantPks,
		CovenantQuorum:      quorum,
		UnbondingTime:       uint16(r.Intn(100) + 100),
		UnbondingFee:        btcutil.Amount(r.Intn(1000) + 1000),
		MinStakingValue:     50_000,
		MaxStakingValue:     50_000_000,
		MinStakingTime:      1000,
		MaxStakingTime:      64000,
		SlashingPkScript:    slashingPkScript,
		MinSlashingTxFeeSat: btcutil.Amount(r.Intn(1000) + 1000),
		SlashingRate:        GenValidSlashingRate(r),
		BtcActivationHeight: uint32(r.Intn(1000) + 200_000),
		Tag:                 []byte("bbt4"),
	}
}

// GenTaprootAddress returns a key path taproot address owned by a random
// key together with that key.
func GenTaprootAddress(r *rand.Rand, t *testing.T, net *chaincfg.Params) (*btcec.PrivateKey, btcutil.Address) {
	sk, pk := GenRandomBTCKeyPair(r)
	addr, err := btcutil.NewAddressTaproot(schnorr.SerializePubKey(txscript.ComputeTaprootKeyNoScript(pk)), net)
	require.NoError(t, err)

	return sk, addr
}

// GenUTXO returns an output of value paying to address.
func GenUTXO(r *rand.Rand, t *testing.T, address btcutil.Address, value int64) types.UTXO {
	pkScript, err := txscript.PayToAddrScript(address)
	require.NoError(t, err)

	var hash chainhash.Hash
	copy(hash[:], GenRandomByteArray(r, chainhash.HashSize))

	return types.UTXO{
		OutPoint:     *wire.NewOutPoint(&hash, uint32(r.Intn(4))),
		Value:        value,
		ScriptPubKey: pkScript,
	}
}
