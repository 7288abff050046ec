package guardrail

import "errors"

// Sentinel errors for the guardrail package. Using sentinels instead of
// ad-hoc fmt.Errorf allows callers to match with errors.Is, the same
// convention the pool and ratchet packages in the teacher CLI use.
var (
	// ErrAlreadyRegistered is returned by Register when a Descriptor's ID
	// collides with one already in the registry.
	ErrAlreadyRegistered = errors.New("scanner already registered")

	// ErrUnknownScanner is returned by UpdateConfig for an id that has
	// never been registered.
	ErrUnknownScanner = errors.New("unknown scanner id")

	// ErrInvalidSeverity is returned when a config override names a
	// severity outside {block, warn, info}.
	ErrInvalidSeverity = errors.New("invalid severity")
)
