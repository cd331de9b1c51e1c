package core

import (
	"context"
	"fmt"

	"github.com/drand/stepout/common/key"
	"github.com/drand/stepout/common/signature"
)

// Operation is one of the actions a caller can run through Execute.
type Operation int

const (
	OpDeriveKey Operation = iota + 1
	OpRequestSignature
	OpVerify
	OpAcquireAndVerify
)

func (o Operation) String() string {
	switch o {
	case OpDeriveKey:
		return "derive-key"
	case OpRequestSignature:
		return "request-signature"
	case OpVerify:
		return "verify"
	case OpAcquireAndVerify:
		return "acquire-and-verify"
	default:
		return fmt.Sprintf("operation(%d)", int(o))
	}
}

// Request is the input of Execute. Signature is only read by OpVerify.
type Request struct {
	Op        Operation
	Index     uint32
	Signature *signature.Signature
}

// Response holds the output of the operation that ran: Key for OpDeriveKey,
// Signature for OpRequestSignature and Verification for the others.
type Response struct {
	Op           Operation
	Key          key.UserPublicKey
	Signature    *signature.Signature
	Verification *Verification
}

// Execute runs the operation described by req.
func (m *Manager) Execute(ctx context.Context, req Request) (*Response, error) {
	resp := &Response{Op: req.Op}
	var err error
	switch req.Op {
	case OpDeriveKey:
		resp.Key, err = m.DeriveUserPublicKey(req.Index)
	case OpRequestSignature:
		resp.Signature, err = m.RequestSignature(ctx, req.Index)
	case OpVerify:
		resp.Verification, err = m.VerifySignature(req.Signature, req.Index)
	case OpAcquireAndVerify:
		resp.Verification, err = m.AcquireAndVerify(ctx, req.Index)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, req.Op)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.Op, err)
	}
	return resp, nil
}
