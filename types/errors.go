package types

import (
	errorsmod "cosmossdk.io/errors"
)

// ModuleName is the codespace the staking construction errors are
// registered under.
const ModuleName = "btcstaking"

// Error kinds surfaced by every public construction operation. Lower level
// causes are wrapped with errorsmod.Wrap so errors.Is matches both the kind
// and the original cause.
var (
	ErrInvalidInput             = errorsmod.Register(ModuleName, 2, "invalid input")
	ErrInvalidOutput            = errorsmod.Register(ModuleName, 3, "invalid output")
	ErrScriptFailure            = errorsmod.Register(ModuleName, 4, "script failure")
	ErrBuildTransaction         = errorsmod.Register(ModuleName, 5, "failed to build transaction")
	ErrInvalidParams            = errorsmod.Register(ModuleName, 6, "invalid staking parameters")
	ErrInsufficientFunds        = errorsmod.Register(ModuleName, 7, "insufficient funds")
	ErrDustOutput               = errorsmod.Register(ModuleName, 8, "output value is below the dust threshold")
	ErrInvalidCovenantSignature = errorsmod.Register(ModuleName, 9, "invalid covenant signature")
	ErrSignatureNotFound        = errorsmod.Register(ModuleName, 10, "signature not found")
)
