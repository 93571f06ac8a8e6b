package sidecar

import (
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/eventBus/eventBusTypes"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/types"
	"go.uber.org/zap"
)

// watchAggregationEvents logs completions until the channel is closed.
func (s *Sidecar) watchAggregationEvents(events <-chan *eventBusTypes.Event) {
	for event := range events {
		switch event.Data.Kind {
		case types.AggregationEvent_OutOfOrder:
			s.Logger.Sugar().Warnw("Slot completed out of order", zap.Uint64("slot", event.Data.Slot))
		default:
			s.Logger.Sugar().Debugw("Slot completed", zap.Uint64("slot", event.Data.Slot))
		}
	}
}
