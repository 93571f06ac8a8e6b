package rpcServer

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

func (rpc *RpcServer) writeJson(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		rpc.Logger.Sugar().Errorw("Failed to write response", zap.Error(err))
	}
}

func (rpc *RpcServer) handleLive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// handleReady returns the readiness metadata, with 503 when not ready.
func (rpc *RpcServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ready, meta := rpc.readiness.IsReady(r.Context())
	if !ready {
		rpc.writeJson(w, http.StatusServiceUnavailable, meta)
		return
	}
	rpc.writeJson(w, http.StatusOK, meta)
}
