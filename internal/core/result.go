package core

import (
	"fmt"
	"time"

	"github.com/drand/stepout/common/signature"
)

// Result is the outcome of verifying a signature.
type Result int

const (
	// Verified means every equation holds and the member is not stepped out.
	Verified Result = iota
	// Invalid means the signature is malformed or an equation fails.
	Invalid
	// Revoked means the signature tag matches a published revocation token.
	// It is reported even when the signature is otherwise valid.
	Revoked
	// TransportFailed means no signature could be fetched.
	TransportFailed
)

func (r Result) String() string {
	switch r {
	case Verified:
		return "verified"
	case Invalid:
		return "invalid"
	case Revoked:
		return "revoked"
	case TransportFailed:
		return "transport_failed"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Verification reports the outcome of a request.
type Verification struct {
	Result Result
	// Index is the member the signature was requested for.
	Index uint32
	// Signature is set unless the transport failed or the bytes were
	// malformed.
	Signature *signature.Signature
	// Reason explains an Invalid or TransportFailed result.
	Reason error
	// RevokedBy is the position of the matching token in the step-out list,
	// -1 unless the result is Revoked.
	RevokedBy int
	// Epoch of the step-out list the signature was checked against.
	Epoch uint64
	// RequestID identifies the request in logs.
	RequestID string
	// Took is the time spent on the request.
	Took time.Duration
}

// OK is true only for Verified results.
func (v *Verification) OK() bool {
	return v != nil && v.Result == Verified
}

func (v *Verification) String() string {
	switch {
	case v.Reason != nil:
		return fmt.Sprintf("member %d: %s: %v", v.Index, v.Result, v.Reason)
	case v.Result == Revoked:
		return fmt.Sprintf("member %d: %s by token %d of epoch %d", v.Index, v.Result, v.RevokedBy, v.Epoch)
	default:
		return fmt.Sprintf("member %d: %s", v.Index, v.Result)
	}
}
