package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/drand/stepout/common/log"
)

var defaultDialTimeout = 10 * time.Second

// TCPTransport speaks the raw TCP protocol, one connection per request.
type TCPTransport struct {
	addr   string
	dialer net.Dialer
	log    log.Logger
}

// NewTCPTransport returns a transport for the server at addr.
func NewTCPTransport(l log.Logger, addr string) *TCPTransport {
	return &TCPTransport{
		addr:   addr,
		dialer: net.Dialer{Timeout: defaultDialTimeout},
		log:    l.Named("tcp"),
	}
}

// Name implements Transport.
func (t *TCPTransport) Name() string {
	return "tcp"
}

// FetchSignature implements Transport.
func (t *TCPTransport) FetchSignature(ctx context.Context, index uint32) ([]byte, error) {
	conn, err := t.dialer.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", t.addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// unblock pending reads and writes when ctx is cancelled
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.SetDeadline(time.Now())
		case <-done:
		}
	}()

	t.log.Debugw("requesting signature", "addr", t.addr, "index", index)
	if err := WriteRequest(conn, index); err != nil {
		return nil, t.failed(ctx, err)
	}
	payload, err := ReadResponse(conn)
	if err != nil {
		return nil, t.failed(ctx, err)
	}
	return payload, nil
}

func (t *TCPTransport) failed(ctx context.Context, err error) error {
	// every deadline on conn comes from ctx
	if errors.Is(err, os.ErrDeadlineExceeded) {
		<-ctx.Done()
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", t.addr, ctx.Err())
	}
	return fmt.Errorf("%s: %w", t.addr, err)
}

// Close implements Transport. Connections don't outlive a request, so there is
// nothing to release.
func (t *TCPTransport) Close() error {
	return nil
}
