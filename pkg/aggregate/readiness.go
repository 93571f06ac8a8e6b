package aggregate

import (
	"context"

	"github.com/Layr-Labs/pricefeed-sidecar/internal/metrics/metricsTypes"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/types"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/types/numbers"
	"go.uber.org/zap"
)

type ReadinessMetadata struct {
	HasCompletedRecently         bool                 `json:"has_completed_recently"`
	IsNotBehind                  bool                 `json:"is_not_behind"`
	IsMetadataLoaded             bool                 `json:"is_metadata_loaded"`
	LatestCompletedSlot          *types.Slot          `json:"latest_completed_slot"`
	LatestObservedSlot           *types.Slot          `json:"latest_observed_slot"`
	LatestCompletedUnixTimestamp *types.UnixTimestamp `json:"latest_completed_unix_timestamp"`
	PriceFeedsMetadataLen        int                  `json:"price_feeds_metadata_len"`
}

// IsReady reports whether the service has completed an update recently, is not
// lagging behind the observed slot and knows about at least one feed. The metadata
// is returned even when not ready.
func (a *Aggregator) IsReady(ctx context.Context) (bool, ReadinessMetadata) {
	a.stateLock.RLock()
	var (
		latestCompletedSlot *types.Slot
		latestObservedSlot  *types.Slot
	)
	if a.state.latestCompletedSlot != nil {
		s := *a.state.latestCompletedSlot
		latestCompletedSlot = &s
	}
	if a.state.latestObservedSlot != nil {
		s := *a.state.latestObservedSlot
		latestObservedSlot = &s
	}
	latestCompletedUpdateTime := a.state.latestCompletedUpdateTime
	a.stateLock.RUnlock()

	metadataLen := 0
	feedsMetadata, err := a.metadata.RetrievePriceFeedsMetadata(ctx)
	if err != nil {
		a.logger.Sugar().Warnw("Failed to retrieve price feeds metadata", zap.Error(err))
	} else {
		metadataLen = len(feedsMetadata)
	}

	meta := ReadinessMetadata{
		LatestCompletedSlot:   latestCompletedSlot,
		LatestObservedSlot:    latestObservedSlot,
		IsMetadataLoaded:      metadataLen > 0,
		PriceFeedsMetadataLen: metadataLen,
	}

	if latestCompletedUpdateTime != nil {
		// A completion stamped in the future counts as just now.
		elapsed := a.clock.Now().Sub(*latestCompletedUpdateTime)
		if elapsed < 0 {
			elapsed = 0
		}
		meta.HasCompletedRecently = elapsed < a.config.ReadinessStalenessThreshold

		ts := latestCompletedUpdateTime.Unix()
		meta.LatestCompletedUnixTimestamp = &ts
	}

	if latestCompletedSlot != nil && latestObservedSlot != nil {
		lag := numbers.SaturatingSubUint64(*latestObservedSlot, *latestCompletedSlot)
		meta.IsNotBehind = lag <= a.config.ReadinessMaxAllowedSlotLag
	}

	ready := meta.HasCompletedRecently && meta.IsNotBehind && meta.IsMetadataLoaded
	readyGauge := 0.0
	if ready {
		readyGauge = 1
	}
	_ = a.metricsSink.Gauge(metricsTypes.Metric_Gauge_Ready, readyGauge, nil)

	return ready, meta
}
