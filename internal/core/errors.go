package core

import "errors"

var (
	// ErrUnknownMember is returned for a member index outside the group.
	ErrUnknownMember = errors.New("unknown member")
	// ErrTransport wraps every failure of the transport collaborator.
	ErrTransport = errors.New("transport failed")
	// ErrNoTransport is returned when a signature is requested from a manager
	// built without transport.
	ErrNoTransport = errors.New("no transport configured")
	// ErrNoStepOutSource is returned by ReloadStepOut when no source is set.
	ErrNoStepOutSource = errors.New("no step-out source configured")
	// ErrSchemeMismatch is returned for data of another scheme than the group.
	ErrSchemeMismatch = errors.New("scheme does not match the group")
	// ErrStaleStepOut is returned for a step-out list older than the loaded one.
	ErrStaleStepOut = errors.New("step-out list epoch goes backwards")
	// ErrIndexMismatch is the reason a signature claiming another member than
	// the requested one is invalid.
	ErrIndexMismatch = errors.New("signature index does not match the member")
	// ErrNotVerified is returned when persisting a signature that did not verify.
	ErrNotVerified = errors.New("signature is not verified")
	// ErrUnknownOperation is returned by Execute for an unknown operation.
	ErrUnknownOperation = errors.New("unknown operation")
)
