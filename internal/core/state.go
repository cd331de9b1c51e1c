package core

import (
	"fmt"

	"github.com/drand/stepout/common/log"
)

// State is the stage a request is in.
type State int

// A request goes Idle -> Requesting -> Deserializing -> Verifying and ends in
// one of the terminal states. A transport failure ends it from Requesting, a
// malformed signature from Deserializing.
const (
	StateIdle State = iota
	StateRequesting
	StateDeserializing
	StateVerifying
	StateVerified
	StateInvalid
	StateRevoked
	StateTransportFailed
)

var stateNames = map[State]string{
	StateIdle:            "Idle",
	StateRequesting:      "Requesting",
	StateDeserializing:   "Deserializing",
	StateVerifying:       "Verifying",
	StateVerified:        "Verified",
	StateInvalid:         "Invalid",
	StateRevoked:         "Revoked",
	StateTransportFailed: "TransportFailed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal is true for the states a request ends in.
func (s State) Terminal() bool {
	return s >= StateVerified
}

func terminalState(r Result) State {
	switch r {
	case Verified:
		return StateVerified
	case Revoked:
		return StateRevoked
	case TransportFailed:
		return StateTransportFailed
	default:
		return StateInvalid
	}
}

// StateCallback is notified of every state change of a request. It is called
// synchronously from the request's goroutine.
type StateCallback func(requestID string, index uint32, s State)

// request tracks the state of one request.
type request struct {
	id    string
	index uint32
	state State
	cb    StateCallback
	log   log.Logger
}

func (r *request) enter(s State) {
	r.log.Debugw("request state", "request", r.id, "index", r.index, "from", r.state, "to", s)
	r.state = s
	if r.cb != nil {
		r.cb(r.id, r.index, s)
	}
}
