//nolint:revive
package util

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
)

// ValidatePrivKeyBytes validates that the private key bytes are valid for secp256k1.
// It checks that:
// 1. The private key is less than the secp256k1 curve order (no overflow)
// 2. The private key is not zero
//
// btcd's PrivKeyFromBytes does not perform these checks.
func ValidatePrivKeyBytes(keyBytes []byte) error {
	if len(keyBytes) != btcec.PrivKeyBytesLen {
		return fmt.Errorf("private key must be %d bytes, got %d", btcec.PrivKeyBytesLen, len(keyBytes))
	}

	var keyInt btcec.ModNScalar
	overflow := keyInt.SetByteSlice(keyBytes)
	if overflow {
		return fmt.Errorf("private key is greater than or equal to the secp256k1 curve order")
	}
	if keyInt.IsZero() {
		return fmt.Errorf("private key cannot be zero")
	}

	return nil
}

// ParsePrivKeyBytes validates keyBytes and returns the key pair they encode.
func ParsePrivKeyBytes(keyBytes []byte) (*btcec.PrivateKey, *btcec.PublicKey, error) {
	if err := ValidatePrivKeyBytes(keyBytes); err != nil {
		return nil, nil, err
	}

	sk, pk := btcec.PrivKeyFromBytes(keyBytes)

	return sk, pk, nil
}
