// Package mock provides signature servers for tests, over the raw TCP
// protocol and over gRPC.
package mock

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	snet "github.com/drand/stepout/internal/net"
	"github.com/drand/stepout/internal/test"
)

// Handler returns the bytes served for member index. ctx is cancelled when
// the server closes.
type Handler func(ctx context.Context, index uint32) ([]byte, error)

// IssuerHandler serves fresh signatures of iss members.
func IssuerHandler(t testing.TB, iss *test.Issuer) Handler {
	return func(_ context.Context, index uint32) ([]byte, error) {
		if int64(index) >= int64(iss.Group.Len()) {
			return nil, errors.New("unknown member")
		}
		return iss.SignBytes(t, index), nil
	}
}

// Static always serves buff.
func Static(buff []byte) Handler {
	return func(context.Context, uint32) ([]byte, error) {
		return buff, nil
	}
}

// Panic returns a handler that panics on every request.
func Panic() Handler {
	return func(context.Context, uint32) ([]byte, error) {
		panic("signature handler failure")
	}
}

// Stall never answers until the server closes.
func Stall() Handler {
	return func(ctx context.Context, _ uint32) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

type counter struct {
	requests atomic.Int64
}

// Requests returns how many requests were received.
func (c *counter) Requests() int64 {
	return c.requests.Load()
}

// TCPServer serves the raw TCP protocol on localhost.
type TCPServer struct {
	counter
	lis     net.Listener
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewTCPServer starts a server closed at the end of the test.
func NewTCPServer(t testing.TB, h Handler) *TCPServer {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	s := &TCPServer{lis: lis, handler: h, ctx: ctx, cancel: cancel}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.Close)
	return s
}

// Addr returns the address the server listens on.
func (s *TCPServer) Addr() string {
	return s.lis.Addr().String()
}

func (s *TCPServer) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.lis.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(conn)
		}()
	}
}

func (s *TCPServer) handle(conn net.Conn) {
	defer conn.Close()
	go func() {
		<-s.ctx.Done()
		conn.Close()
	}()
	index, err := snet.ReadRequest(conn)
	if err != nil {
		return
	}
	s.requests.Add(1)
	payload, err := s.handler(s.ctx, index)
	if err != nil {
		_ = snet.WriteResponse(conn, snet.StatusError, []byte(err.Error()))
		return
	}
	_ = snet.WriteResponse(conn, snet.StatusOK, payload)
}

// Close stops the server and waits for every connection to be done.
func (s *TCPServer) Close() {
	s.cancel()
	_ = s.lis.Close()
	s.wg.Wait()
}

// GRPCServer serves the gRPC signature service on localhost.
type GRPCServer struct {
	counter
	l       *snet.Listener
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
	once    sync.Once
}

// NewGRPCServer starts a server stopped at the end of the test.
func NewGRPCServer(t testing.TB, h Handler) *GRPCServer {
	ctx, cancel := context.WithCancel(context.Background())
	s := &GRPCServer{handler: h, ctx: ctx, cancel: cancel}
	l, err := snet.NewGRPCListener("127.0.0.1:0", s)
	require.NoError(t, err)
	s.l = l
	l.Start()
	t.Cleanup(s.Close)
	return s
}

// Addr returns the address the server listens on.
func (s *GRPCServer) Addr() string {
	return s.l.Addr()
}

// GetSignature implements net.SignatureServer.
func (s *GRPCServer) GetSignature(ctx context.Context, in *wrapperspb.UInt32Value) (*wrapperspb.BytesValue, error) {
	s.requests.Add(1)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.ctx.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	payload, err := s.handler(ctx, in.GetValue())
	if err != nil {
		return nil, status.Error(codes.NotFound, err.Error())
	}
	return wrapperspb.Bytes(payload), nil
}

// Close stops the server.
func (s *GRPCServer) Close() {
	s.once.Do(func() {
		s.cancel()
		s.l.Stop()
	})
}
