package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/dmitrijs2005/gophgroups/internal/wire"
)

const (
	ServiceName = "gophgroups.Envelope"
	MethodName  = "Connect"
	FullMethod  = "/" + ServiceName + "/" + MethodName
)

// StreamServer is implemented by the server side of the Connect stream.
type StreamServer interface {
	Connect(stream grpc.ServerStream) error
}

func connectHandler(srv any, stream grpc.ServerStream) error {
	return srv.(StreamServer).Connect(stream)
}

// ServiceDesc describes the single bidirectional Connect method.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StreamServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    MethodName,
			Handler:       connectHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "envelope",
}

// Register adds srv to s.
func Register(s *grpc.Server, srv StreamServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// NewClient creates a client connection that speaks the envelope codec.
// The transport itself is plaintext; confidentiality comes from the session
// layer running inside the stream.
func NewClient(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.CallContentSubtype(CodecName),
			grpc.MaxCallRecvMsgSize(wire.MaxFrameSize),
		),
	}, opts...)
	cc, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc client %s: %w", addr, err)
	}
	return cc, nil
}

// Open starts a Connect stream on cc and returns it as a wire.Conn. Closing
// the Conn ends the stream.
func Open(ctx context.Context, cc grpc.ClientConnInterface) (wire.Conn, error) {
	ctx, cancel := context.WithCancel(ctx)
	stream, err := cc.NewStream(ctx, &ServiceDesc.Streams[0], FullMethod)
	if err != nil {
		cancel()
		return nil, err
	}
	return &streamConn{stream: stream, close: func() error {
		err := stream.CloseSend()
		cancel()
		return err
	}}, nil
}
