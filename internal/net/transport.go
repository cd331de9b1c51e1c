// Package net holds the transports the client fetches raw signature bytes
// with, and the listener side of those transports used by test servers.
package net

import (
	"context"
	"errors"
)

// Transport fetches the encoded signature of a member from a signature
// server. Implementations are safe for concurrent use and never retry.
type Transport interface {
	// FetchSignature performs one round trip for member index. It returns
	// once ctx is done.
	FetchSignature(ctx context.Context, index uint32) ([]byte, error)
	// Name identifies the transport in logs and metrics.
	Name() string
	Close() error
}

// ErrServer is returned when the server answered with an error instead of a
// signature.
var ErrServer = errors.New("signature server error")
