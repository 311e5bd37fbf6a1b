package grpc

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// admissionInterceptor refuses new streams from peers over their session
// rate before any handler work is done.
func (s *GRPCServer) admissionInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	ctx := ss.Context()
	addr := peerAddress(ctx)

	if !s.limiter.allow(peerHost(addr)) {
		s.metrics.RateLimited(s.handler.Name())
		s.logger.Warn(ctx, "session rate exceeded", "peer", addr, "method", info.FullMethod)
		return status.Error(codes.ResourceExhausted, "too many sessions")
	}

	return handler(srv, ss)
}
