package staking

import (
	"bytes"
	"sort"

	errorsmod "cosmossdk.io/errors"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/wire"

	"github.com/babylonlabs-io/btc-staking/types"
)

// CreateCovenantWitness prepends the covenant signatures to the staker's
// witness of an unbonding path spend.
//
// The covenant multisig consumes signatures for keys in ascending order from
// the top of the stack, so the elements are laid out for the covenant keys
// sorted descending. Keys without a signature get an empty element, and no
// more than quorum signatures are placed since any extra signature fails
// OP_NUMEQUAL.
func CreateCovenantWitness(
	originalWitness wire.TxWitness,
	paramsCovenants []*btcec.PublicKey,
	covenantSigs []types.CovenantSignature,
	covenantQuorum uint32,
) (wire.TxWitness, error) {
	if len(paramsCovenants) == 0 {
		return nil, errorsmod.Wrap(types.ErrInvalidParams, "covenant keys must not be empty")
	}
	if covenantQuorum == 0 || int(covenantQuorum) > len(paramsCovenants) {
		return nil, errorsmod.Wrapf(types.ErrInvalidParams,
			"covenant quorum must be in [1, %d], got %d", len(paramsCovenants), covenantQuorum)
	}

	members := make(map[string]struct{}, len(paramsCovenants))
	for _, pk := range paramsCovenants {
		members[string(schnorr.SerializePubKey(pk))] = struct{}{}
	}

	sigsByKey := make(map[string][]byte, len(covenantSigs))
	for _, cs := range covenantSigs {
		if _, ok := members[string(cs.BtcPk)]; !ok {
			return nil, errorsmod.Wrapf(types.ErrInvalidCovenantSignature,
				"key %x is not a covenant member", cs.BtcPk)
		}

		if len(cs.Sig) != schnorr.SignatureSize {
			return nil, errorsmod.Wrapf(types.ErrInvalidCovenantSignature,
				"signature of %x must be %d bytes, got %d", cs.BtcPk, schnorr.SignatureSize, len(cs.Sig))
		}

		sigsByKey[string(cs.BtcPk)] = cs.Sig
	}

	if len(sigsByKey) < int(covenantQuorum) {
		return nil, errorsmod.Wrapf(types.ErrInvalidCovenantSignature,
			"not enough covenant signatures: got %d, quorum is %d", len(sigsByKey), covenantQuorum)
	}

	keys := sortKeys(paramsCovenants)
	sort.SliceStable(keys, func(i, j int) bool {
		return bytes.Compare(keys[i], keys[j]) > 0
	})

	witness := make(wire.TxWitness, 0, len(keys)+len(originalWitness))
	placed := 0
	for _, key := range keys {
		sig, ok := sigsByKey[string(key)]
		if ok && placed < int(covenantQuorum) {
			witness = append(witness, sig)
			placed++
			continue
		}
		witness = append(witness, []byte{})
	}

	return append(witness, originalWitness...), nil
}
