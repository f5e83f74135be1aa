//nolint:revive
package util

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// HasDuplicateKeys checks if the provided keys contain the same x-only key
// twice. Returns (true, duplicateKey) if a duplicate is found, (false, nil)
// otherwise.
//
// Keys are compared by their BIP-340 serialization, so two keys only
// differing in the parity of their y coordinate are duplicates.
func HasDuplicateKeys(keys []*btcec.PublicKey) (bool, []byte) {
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		serialized := schnorr.SerializePubKey(k)
		if _, exists := seen[string(serialized)]; exists {
			return true, serialized
		}
		seen[string(serialized)] = struct{}{}
	}

	return false, nil
}

// ValidateNoDuplicateKeys returns an error if nil or duplicate keys are found
// in the slice.
func ValidateNoDuplicateKeys(keys []*btcec.PublicKey) error {
	for i, k := range keys {
		if k == nil {
			return fmt.Errorf("public key %d is nil", i)
		}
	}

	if hasDup, dupKey := HasDuplicateKeys(keys); hasDup {
		return fmt.Errorf("duplicate key detected: %s", hex.EncodeToString(dupKey))
	}

	return nil
}
