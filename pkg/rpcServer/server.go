// Package rpcServer exposes liveness and readiness probes over HTTP and the
// standard gRPC health service.
package rpcServer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Layr-Labs/pricefeed-sidecar/pkg/aggregate"
	grpc_zap "github.com/grpc-ecosystem/go-grpc-middleware/logging/zap"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	defaultRefreshInterval = 5 * time.Second
	shutdownTimeout        = 5 * time.Second
)

type ReadinessChecker interface {
	IsReady(ctx context.Context) (bool, aggregate.ReadinessMetadata)
}

type RpcServerConfig struct {
	GrpcPort        int
	HttpPort        int
	RefreshInterval time.Duration
}

type RpcServer struct {
	Logger       *zap.Logger
	config       *RpcServerConfig
	readiness    ReadinessChecker
	healthServer *health.Server
}

func NewRpcServer(cfg *RpcServerConfig, rc ReadinessChecker, l *zap.Logger) *RpcServer {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = defaultRefreshInterval
	}
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return &RpcServer{
		Logger:       l,
		config:       cfg,
		readiness:    rc,
		healthServer: hs,
	}
}

// Handler serves the HTTP probes with permissive CORS.
func (rpc *RpcServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/live", rpc.handleLive)
	mux.HandleFunc("/ready", rpc.handleReady)
	return cors.AllowAll().Handler(mux)
}

func (rpc *RpcServer) RegisterGrpc(grpcServer *grpc.Server) {
	healthpb.RegisterHealthServer(grpcServer, rpc.healthServer)
}

// RefreshHealth copies the current readiness into the gRPC health status.
func (rpc *RpcServer) RefreshHealth(ctx context.Context) bool {
	ready, _ := rpc.readiness.IsReady(ctx)
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ready {
		status = healthpb.HealthCheckResponse_SERVING
	}
	rpc.healthServer.SetServingStatus("", status)
	return ready
}

func (rpc *RpcServer) runHealthRefresher(ctx context.Context) {
	ticker := time.NewTicker(rpc.config.RefreshInterval)
	defer ticker.Stop()

	rpc.RefreshHealth(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rpc.RefreshHealth(ctx)
		}
	}
}

// Start listens on both ports and serves until a value is received on shutdownChan.
func (rpc *RpcServer) Start(ctx context.Context, shutdownChan chan bool) error {
	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", rpc.config.GrpcPort))
	if err != nil {
		rpc.Logger.Sugar().Errorw("Failed to listen on grpc port", zap.Int("port", rpc.config.GrpcPort), zap.Error(err))
		return err
	}
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpc_recovery.UnaryServerInterceptor(),
			grpc_zap.UnaryServerInterceptor(rpc.Logger),
		),
		grpc.ChainStreamInterceptor(
			grpc_recovery.StreamServerInterceptor(),
			grpc_zap.StreamServerInterceptor(rpc.Logger),
		),
	)
	rpc.RegisterGrpc(grpcServer)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", rpc.config.HttpPort),
		Handler:           rpc.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	refreshCtx, cancel := context.WithCancel(ctx)
	go rpc.runHealthRefresher(refreshCtx)

	go func() {
		rpc.Logger.Sugar().Infow("Starting grpc server", zap.Int("port", rpc.config.GrpcPort))
		if err := grpcServer.Serve(grpcListener); err != nil {
			rpc.Logger.Sugar().Errorw("Grpc server stopped", zap.Error(err))
		}
	}()
	go func() {
		rpc.Logger.Sugar().Infow("Starting http server", zap.Int("port", rpc.config.HttpPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rpc.Logger.Sugar().Errorw("Http server stopped", zap.Error(err))
		}
	}()

	go func() {
		<-shutdownChan
		rpc.Logger.Sugar().Info("Shutting down rpc servers")
		cancel()
		rpc.healthServer.Shutdown()

		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			rpc.Logger.Sugar().Errorw("Failed to shutdown http server", zap.Error(err))
		}
		grpcServer.GracefulStop()
	}()
	return nil
}
