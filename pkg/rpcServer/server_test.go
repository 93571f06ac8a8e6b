package rpcServer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/Layr-Labs/pricefeed-sidecar/internal/config"
	"github.com/Layr-Labs/pricefeed-sidecar/internal/logger"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/aggregate"
	"github.com/stretchr/testify/assert"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type fakeReadiness struct {
	ready bool
	meta  aggregate.ReadinessMetadata
}

func (f *fakeReadiness) IsReady(ctx context.Context) (bool, aggregate.ReadinessMetadata) {
	return f.ready, f.meta
}

func Test_RpcServer(t *testing.T) {
	debug := os.Getenv(config.Debug) == "true"
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: debug})

	slot := uint64(10)
	readiness := &fakeReadiness{meta: aggregate.ReadinessMetadata{
		IsNotBehind:         true,
		LatestCompletedSlot: &slot,
	}}
	rpc := NewRpcServer(&RpcServerConfig{}, readiness, l)
	handler := rpc.Handler()

	t.Run("Live always succeeds", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
	t.Run("Ready returns 503 with metadata when not ready", func(t *testing.T) {
		readiness.ready = false
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var body map[string]interface{}
		assert.Nil(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, false, body["has_completed_recently"])
		assert.Equal(t, true, body["is_not_behind"])
		assert.Equal(t, float64(10), body["latest_completed_slot"])
		assert.Nil(t, body["latest_observed_slot"])
	})
	t.Run("Ready returns 200 when ready", func(t *testing.T) {
		readiness.ready = true
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	})
	t.Run("Allows cross origin requests", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/live", nil)
		req.Header.Set("Origin", "https://example.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})
	t.Run("Grpc health follows readiness", func(t *testing.T) {
		ctx := context.Background()

		readiness.ready = false
		assert.False(t, rpc.RefreshHealth(ctx))
		res, err := rpc.healthServer.Check(ctx, &healthpb.HealthCheckRequest{})
		assert.Nil(t, err)
		assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, res.Status)

		readiness.ready = true
		assert.True(t, rpc.RefreshHealth(ctx))
		res, err = rpc.healthServer.Check(ctx, &healthpb.HealthCheckRequest{})
		assert.Nil(t, err)
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, res.Status)
	})
}
