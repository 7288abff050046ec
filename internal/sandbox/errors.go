package sandbox

import "errors"

// ErrUnknownLanguage is returned when execute is asked to run a
// language not in the recognized set (spec §4.5).
var ErrUnknownLanguage = errors.New("sandbox: unknown language")
