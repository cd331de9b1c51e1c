package net

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	grpcmiddleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpcrecovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/drand/stepout/common/log"
)

const getSignatureMethod = "/stepout.SignatureService/GetSignature"

// SignatureServer is the server side of the signature service.
type SignatureServer interface {
	GetSignature(ctx context.Context, in *wrapperspb.UInt32Value) (*wrapperspb.BytesValue, error)
}

func getSignatureHandler(srv interface{}, ctx context.Context, dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.UInt32Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SignatureServer).GetSignature(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: getSignatureMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SignatureServer).GetSignature(ctx, req.(*wrapperspb.UInt32Value))
	}
	return interceptor(ctx, in, info, handler)
}

var signatureServiceDesc = grpc.ServiceDesc{
	ServiceName: "stepout.SignatureService",
	HandlerType: (*SignatureServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetSignature",
			Handler:    getSignatureHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "stepout.proto",
}

// RegisterSignatureServer registers srv on s.
func RegisterSignatureServer(s *grpc.Server, srv SignatureServer) {
	s.RegisterService(&signatureServiceDesc, srv)
}

// ensure we implement all required interfaces
var _ Transport = (*GRPCTransport)(nil)

// GRPCTransport fetches signatures from the gRPC signature service over a
// single client connection.
type GRPCTransport struct {
	addr string
	conn *grpc.ClientConn
	log  log.Logger
}

// NewGRPCTransport dials addr. Without TLS the connection is plaintext and
// should only be used against local test servers. The connection is
// established lazily on the first request.
func NewGRPCTransport(l log.Logger, addr string, useTLS bool, opts ...grpc.DialOption) (*GRPCTransport, error) {
	creds := insecure.NewCredentials()
	if useTLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	gl := l.Named("grpc")
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithUnaryInterceptor(grpcmiddleware.ChainUnaryClient(
			grpcprometheus.UnaryClientInterceptor,
			logUnaryClient(gl),
		)),
	}, opts...)

	conn, err := grpc.Dial(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	l.Debugw("grpc transport ready", "to", addr, "tls", useTLS)
	return &GRPCTransport{addr: addr, conn: conn, log: gl}, nil
}

func logUnaryClient(l log.Logger) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{},
		cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		l.Debugw("grpc call", "method", method, "to", cc.Target(), "took", time.Since(start), "code", status.Code(err))
		return err
	}
}

// Name implements Transport.
func (g *GRPCTransport) Name() string {
	return "grpc"
}

// FetchSignature implements Transport.
func (g *GRPCTransport) FetchSignature(ctx context.Context, index uint32) ([]byte, error) {
	out := new(wrapperspb.BytesValue)
	err := g.conn.Invoke(ctx, getSignatureMethod, wrapperspb.UInt32(index), out)
	if err != nil {
		if st, ok := status.FromError(err); ok && (st.Code() == codes.NotFound || st.Code() == codes.InvalidArgument) {
			return nil, fmt.Errorf("%w: %s", ErrServer, st.Message())
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w: %v", g.addr, ctx.Err(), err)
		}
		return nil, fmt.Errorf("%s: %w", g.addr, err)
	}
	return out.GetValue(), nil
}

// Close implements Transport.
func (g *GRPCTransport) Close() error {
	return g.conn.Close()
}

// Listener serves the signature service over gRPC.
type Listener struct {
	grpcServer *grpc.Server
	lis        net.Listener
}

// NewGRPCListener listens on bindingAddr for the signature service.
func NewGRPCListener(bindingAddr string, srv SignatureServer, opts ...grpc.ServerOption) (*Listener, error) {
	lis, err := net.Listen("tcp", bindingAddr)
	if err != nil {
		return nil, err
	}
	opts = append(opts, grpc.UnaryInterceptor(
		grpcmiddleware.ChainUnaryServer(
			grpcprometheus.UnaryServerInterceptor,
			// a panicking handler fails the call with codes.Internal
			grpcrecovery.UnaryServerInterceptor(),
		),
	))
	s := grpc.NewServer(opts...)
	RegisterSignatureServer(s, srv)
	return &Listener{grpcServer: s, lis: lis}, nil
}

// Addr returns the address the listener is bound to.
func (g *Listener) Addr() string {
	return g.lis.Addr().String()
}

// Start serves in the background.
func (g *Listener) Start() {
	go func() {
		_ = g.grpcServer.Serve(g.lis)
	}()
}

// Stop stops the server and closes the listener.
func (g *Listener) Stop() {
	g.grpcServer.Stop()
	_ = g.lis.Close()
}
