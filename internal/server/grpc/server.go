// Package grpc serves a connection handler over gRPC. Each Connect stream is
// one connection: its envelopes are handed to the handler as a wire.Conn.
package grpc

import (
	"context"
	"errors"
	"net"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/gophgroups/internal/logging"
	"github.com/dmitrijs2005/gophgroups/internal/rpc"
	"github.com/dmitrijs2005/gophgroups/internal/server/instrument"
	"github.com/dmitrijs2005/gophgroups/internal/server/services"
	"github.com/dmitrijs2005/gophgroups/internal/wire"
)

const (
	shutdownTimeout = 5 * time.Second
	limiterTTL      = 10 * time.Minute
)

type GRPCServer struct {
	address string
	handler services.Handler
	logger  logging.Logger
	metrics *instrument.Metrics
	limiter *peerLimiter
}

// NewGRPCServer builds a server for h. A non-positive limit disables the
// per-peer session limiter.
func NewGRPCServer(a string, h services.Handler, l logging.Logger, m *instrument.Metrics, limit rate.Limit, burst int) *GRPCServer {
	if limit <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &GRPCServer{
		address: a,
		handler: h,
		logger:  l.With("module", "grpc_server", "service", h.Name()),
		metrics: m,
		limiter: newPeerLimiter(limit, burst, limiterTTL),
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done. Streams still open
// after the shutdown timeout are cut.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(
		grpc.MaxRecvMsgSize(wire.MaxFrameSize),
		grpc.ChainStreamInterceptor(s.admissionInterceptor),
	)
	rpc.Register(srv, s)

	go func() {
		<-ctx.Done()
		s.logger.Info(context.Background(), "Stopping gRPC server...")

		stopped := make(chan struct{})
		go func() {
			srv.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(shutdownTimeout):
			srv.Stop()
		}
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Connect implements rpc.StreamServer.
func (s *GRPCServer) Connect(stream grpc.ServerStream) error {
	ctx := stream.Context()
	addr := peerAddress(ctx)

	s.metrics.ConnOpened(s.handler.Name())
	defer s.metrics.ConnClosed(s.handler.Name())

	err := s.handler.Serve(ctx, rpc.ServerConn(stream), addr)
	if err == nil || ctx.Err() != nil {
		return nil
	}
	s.logger.Error(ctx, "connection failed", "peer", addr, "error", err)
	return status.Error(codes.Internal, "connection failed")
}

func peerAddress(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	return p.Addr.String()
}

// peerHost strips the port so every connection from one host shares a
// limiter bucket.
func peerHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err == nil && host != "" {
		return host
	}
	return addr
}
