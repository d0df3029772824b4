package grpcserver

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health-check service name reported for the HTTP API.
const ServiceName = "bookswap.API"

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the ops listener.
type Options struct {
	// Creds enables TLS when non-nil.
	Creds      credentials.TransportCredentials
	Reflection bool
}

// Ops is a gRPC server exposing grpc.health.v1.Health.
type Ops struct {
	srv    *grpc.Server
	health *health.Server
	log    *zap.Logger
}

// NewOps builds the ops server with recovery and logging interceptors.
func NewOps(log *zap.Logger, opts Options) *Ops {
	sopts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			RecoverUnary(log),
			LoggingUnary(log),
		),
	}
	if opts.Creds != nil {
		sopts = append(sopts, grpc.Creds(opts.Creds))
	}
	s := grpc.NewServer(sopts...)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	if opts.Reflection {
		reflection.Register(s)
	}
	return &Ops{srv: s, health: hs, log: log}
}

// SetServing flips the reported status of ServiceName and the overall server.
func (o *Ops) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	o.health.SetServingStatus(ServiceName, st)
	o.health.SetServingStatus("", st)
}

// Monitor pings the store every interval and mirrors the result into the
// health status until ctx is done.
func (o *Ops) Monitor(ctx context.Context, p Pinger, interval time.Duration) {
	check := func() {
		pctx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()
		err := p.Ping(pctx)
		if err != nil {
			o.log.Warn("store ping failed", zap.Error(err))
		}
		o.SetServing(err == nil)
	}
	check()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			check()
		}
	}
}

// Serve blocks serving lis.
func (o *Ops) Serve(lis net.Listener) error {
	return o.srv.Serve(lis)
}

// Shutdown marks the server as not serving and stops it gracefully, forcing
// a stop when ctx expires first.
func (o *Ops) Shutdown(ctx context.Context) {
	o.health.Shutdown()
	done := make(chan struct{})
	go func() {
		o.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		o.srv.Stop()
	}
}
