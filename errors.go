package installcore

import "github.com/mcdex/installcore/internal/core"

// The error taxonomy callers pattern-match with errors.Is / errors.As. Each
// type maps to one failure kind: network, hash mismatch, bad manifest,
// blacklisted version, cancellation, processor failure, filesystem, and
// unsupported loader/Minecraft combination.
var ErrCancelled = core.ErrCancelled

type (
	NetworkError            = core.NetworkError
	HashMismatchError       = core.HashMismatchError
	BadManifestError        = core.BadManifestError
	BlacklistedVersionError = core.BlacklistedVersionError
	ProcessorError          = core.ProcessorError
	IOError                 = core.IOError
	UnsupportedComboError   = core.UnsupportedComboError
)
