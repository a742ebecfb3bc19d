package chainstore

import "errors"

// Error kinds from the chainstore error handling design. NotOpen,
// BadStorage, NoChainConstructor and MissingName are programmer errors
// returned synchronously; WrongNameStored and UnknownKeypair are surfaced
// through a chain's own error channel. UnknownKeypair means "not present on
// this node" and is suppressed from the engine's public Errors() channel.
var (
	ErrNotOpen            = errors.New("chainstore: store not open")
	ErrBadStorage         = errors.New("chainstore: storage argument must be a directory path or storage.Factory")
	ErrNoChainConstructor = errors.New("chainstore: Options.NewChain is required")
	ErrMissingName        = errors.New("chainstore: default:true requires a name")
	ErrWrongNameStored    = errors.New("chainstore: on-disk name does not hash to the expected discovery key")
	ErrUnknownKeypair     = errors.New("chainstore: no on-disk record for this discovery key")
)
