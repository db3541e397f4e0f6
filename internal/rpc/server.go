// Package rpc exposes a recordstore.Store over gRPC as the
// drivesync.RecordStore service. Every call except Ping is authenticated
// with an access token and scoped to the token's owner.
package rpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/drivesync/internal/logging"
	"github.com/dmitrijs2005/drivesync/internal/recordstore"
	"go.opentelemetry.io/otel"
	"google.golang.org/grpc"
)

var tracer = otel.Tracer("drivesync-rpc")

type Server struct {
	address   string
	store     recordstore.Store
	logger    logging.Logger
	jwtSecret []byte
}

func NewServer(address string, store recordstore.Store, l logging.Logger, secretKey string) *Server {
	return &Server{
		address:   address,
		store:     store,
		logger:    logging.OrNop(l).With("module", "grpc_server"),
		jwtSecret: []byte(secretKey),
	}
}

// NewGRPCServer returns a grpc.Server with the service and its interceptors
// registered.
func (s *Server) NewGRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts,
		grpc.ChainUnaryInterceptor(s.tracingInterceptor, s.accessTokenInterceptor),
		grpc.ChainStreamInterceptor(s.streamAccessTokenInterceptor),
	)
	srv := grpc.NewServer(opts...)
	srv.RegisterService(&ServiceDesc, s)
	return srv
}

func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on l until ctx is cancelled, then stops
// gracefully. Live queries are closed by the stop.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := s.NewGRPCServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", l.Addr().String())

	if err := srv.Serve(l); err != nil {
		return err
	}
	return nil
}
