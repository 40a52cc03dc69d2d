package common

import "errors"

// ErrConfiguration is the parent of every fatal setup failure: invalid frame counts,
// unknown programs, incomplete framebuffers and rejected presets. It is never retried.
var ErrConfiguration = errors.New("configuration error")

// ErrStateInvariant marks a call issued before the state it depends on was established,
// such as a draw without a bound program.
var ErrStateInvariant = errors.New("state invariant violation")

// ErrResourceMismatch marks a resource requested through a descriptor that does not carry it.
var ErrResourceMismatch = errors.New("resource mismatch")
