// Package aggregate assembles verified updates from their two independently
// delivered halves and serves price, TWAP and stake cap reads from the cache.
package aggregate

import (
	"context"
	"sync"
	"time"

	"github.com/Layr-Labs/pricefeed-sidecar/internal/clock"
	"github.com/Layr-Labs/pricefeed-sidecar/internal/metrics"
	"github.com/Layr-Labs/pricefeed-sidecar/internal/metrics/metricsTypes"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/cache"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/eventBus/eventBusTypes"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/messages"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/metadata"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/proofs/wormholeMerkle"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/types"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/wormhole"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var ErrUnknownUpdate = errors.New("unknown update kind")

// Benchmarks serves historical price feeds the cache no longer retains.
type Benchmarks interface {
	GetVerifiedPriceFeeds(ctx context.Context, ids []types.FeedId, publishTime types.UnixTimestamp) (*types.PriceFeedsWithUpdateData, error)
}

type AggregatorConfig struct {
	// CacheSize bounds how many completed slots are remembered to suppress
	// duplicate completion events.
	CacheSize                   int
	ReadinessStalenessThreshold time.Duration
	ReadinessMaxAllowedSlotLag  types.Slot
}

type aggregateState struct {
	latestCompletedSlot       *types.Slot
	latestObservedSlot        *types.Slot
	latestCompletedUpdateTime *time.Time
	completedSlots            *cache.BoundedSlotMap[struct{}]
}

type Aggregator struct {
	config      *AggregatorConfig
	cache       cache.AggregateCache
	eventBus    eventBusTypes.IEventBus
	metadata    metadata.PriceFeedMeta
	benchmarks  Benchmarks
	decoder     messages.Decoder
	clock       clock.Clock
	metricsSink *metrics.MetricsSink
	logger      *zap.Logger

	stateLock sync.RWMutex
	state     aggregateState
}

// NewAggregator wires the aggregator. benchmarks may be nil, in which case cache
// misses are returned as errors.
func NewAggregator(
	cfg *AggregatorConfig,
	c cache.AggregateCache,
	eb eventBusTypes.IEventBus,
	meta metadata.PriceFeedMeta,
	benchmarks Benchmarks,
	decoder messages.Decoder,
	clk clock.Clock,
	ms *metrics.MetricsSink,
	l *zap.Logger,
) *Aggregator {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1000
	}
	return &Aggregator{
		config:      cfg,
		cache:       c,
		eventBus:    eb,
		metadata:    meta,
		benchmarks:  benchmarks,
		decoder:     decoder,
		clock:       clk,
		metricsSink: ms,
		logger:      l,
		state: aggregateState{
			completedSlots: cache.NewBoundedSlotMap[struct{}](cfg.CacheSize),
		},
	}
}

// Subscribe returns a consumer of aggregation events. Events are a hint that the
// cache advanced; a consumer that falls behind misses events.
func (a *Aggregator) Subscribe(ctx context.Context, bufferSize int) *eventBusTypes.Consumer {
	return a.eventBus.Subscribe(ctx, bufferSize)
}

func (a *Aggregator) Unsubscribe(consumer *eventBusTypes.Consumer) {
	a.eventBus.Unsubscribe(consumer)
}

func eventLabel(event string) []metricsTypes.MetricsLabel {
	return []metricsTypes.MetricsLabel{{Name: metricsTypes.Label_Event, Value: event}}
}

const (
	event_Vaa                 = "vaa"
	event_AccumulatorMessages = "accumulator_messages"
	event_CompletedUpdate     = "completed_update"
)

// StoreUpdate stores one half of a slot's update and, once both halves are
// present, commits the verified message states of the slot to the cache.
// Redelivered halves are ignored.
func (a *Aggregator) StoreUpdate(ctx context.Context, update types.Update) error {
	var (
		slot  types.Slot
		event string
	)
	switch update.Kind {
	case types.Update_Vaa:
		event = event_Vaa
		vaa, root, err := wormhole.ParseMerkleRootVaa(update.Vaa)
		if err != nil {
			_ = a.metricsSink.Incr(metricsTypes.Metric_Incr_UpdateFailed, eventLabel(event), 1)
			return errors.Wrap(err, "failed to parse vaa")
		}
		isNew, err := a.cache.StoreWormholeMerkleState(ctx, &wormholeMerkle.WormholeMerkleState{
			Root: *root,
			Vaa:  update.Vaa,
		})
		if err != nil {
			return errors.Wrapf(err, "failed to store merkle state for slot %d", root.Slot)
		}
		if !isNew {
			a.logger.Sugar().Debugw("Ignoring duplicate vaa",
				zap.Uint64("slot", root.Slot),
				zap.Uint64("sequence", vaa.Sequence),
			)
			_ = a.metricsSink.Incr(metricsTypes.Metric_Incr_UpdateDuplicate, eventLabel(event), 1)
			return nil
		}
		a.logger.Sugar().Infow("Stored vaa merkle root", zap.Uint64("slot", root.Slot))
		slot = root.Slot

	case types.Update_AccumulatorMessages:
		event = event_AccumulatorMessages
		acc := update.AccumulatorMessages
		if acc == nil {
			return errors.Wrap(ErrUnknownUpdate, "accumulator messages update without messages")
		}
		isNew, err := a.cache.StoreAccumulatorMessages(ctx, acc)
		if err != nil {
			return errors.Wrapf(err, "failed to store accumulator messages for slot %d", acc.Slot)
		}
		if !isNew {
			a.logger.Sugar().Debugw("Ignoring duplicate accumulator messages", zap.Uint64("slot", acc.Slot))
			_ = a.metricsSink.Incr(metricsTypes.Metric_Incr_UpdateDuplicate, eventLabel(event), 1)
			return nil
		}
		a.logger.Sugar().Infow("Stored accumulator messages",
			zap.Uint64("slot", acc.Slot),
			zap.Int("messages", len(acc.RawMessages)),
		)
		slot = acc.Slot

	default:
		return errors.Wrapf(ErrUnknownUpdate, "kind %d", update.Kind)
	}
	_ = a.metricsSink.Incr(metricsTypes.Metric_Incr_UpdateObserved, eventLabel(event), 1)

	a.stateLock.Lock()
	a.state.latestObservedSlot = &slot
	a.stateLock.Unlock()
	_ = a.metricsSink.Gauge(metricsTypes.Metric_Gauge_LatestObservedSlot, float64(slot), nil)

	acc, err := a.cache.FetchAccumulatorMessages(ctx, slot)
	if err != nil {
		return err
	}
	merkleState, err := a.cache.FetchWormholeMerkleState(ctx, slot)
	if err != nil {
		return err
	}
	if acc == nil || merkleState == nil {
		return nil
	}

	startTime := time.Now()
	messageStates, err := a.buildMessageStates(acc, merkleState)
	if err != nil {
		_ = a.metricsSink.Incr(metricsTypes.Metric_Incr_UpdateFailed, eventLabel(event_CompletedUpdate), 1)
		a.logger.Sugar().Errorw("Failed to build message states",
			zap.Uint64("slot", slot),
			zap.Error(err),
		)
		return err
	}
	_ = a.metricsSink.Timing(metricsTypes.Metric_Timing_BuildMessageStatesDuration, time.Since(startTime), nil)

	messageStateKeys := make(map[cache.MessageStateKey]struct{}, len(messageStates))
	for _, s := range messageStates {
		messageStateKeys[s.Key()] = struct{}{}
	}

	a.logger.Sugar().Infow("Storing message states",
		zap.Uint64("slot", slot),
		zap.Int("count", len(messageStates)),
	)
	if err := a.cache.StoreMessageStates(ctx, messageStates); err != nil {
		return errors.Wrapf(err, "failed to store message states for slot %d", slot)
	}

	a.completeSlot(ctx, slot, messageStateKeys)
	return nil
}

// completeSlot classifies the slot and publishes its event. Classification and
// the publish happen under the state lock so each slot yields exactly one event.
func (a *Aggregator) completeSlot(ctx context.Context, slot types.Slot, keys map[cache.MessageStateKey]struct{}) {
	a.stateLock.Lock()
	defer a.stateLock.Unlock()

	if !a.state.completedSlots.Insert(slot, struct{}{}) {
		a.logger.Sugar().Debugw("Slot already completed", zap.Uint64("slot", slot))
		return
	}

	var event types.AggregationEvent
	if a.state.latestCompletedSlot == nil || slot > *a.state.latestCompletedSlot {
		a.cache.PruneRemovedKeys(ctx, keys)
		a.state.latestCompletedSlot = &slot
		event = types.NewAggregationEvent(slot)
	} else {
		event = types.OutOfOrderAggregationEvent(slot)
	}
	a.eventBus.PublishAggregation(event)

	now := a.clock.Now()
	a.state.latestCompletedUpdateTime = &now

	a.logger.Sugar().Infow("Completed update",
		zap.Uint64("slot", slot),
		zap.String("ordering", event.Kind.String()),
	)
	_ = a.metricsSink.Incr(metricsTypes.Metric_Incr_UpdateObserved, eventLabel(event_CompletedUpdate), 1)
	_ = a.metricsSink.Incr(metricsTypes.Metric_Incr_UpdateCompleted, []metricsTypes.MetricsLabel{
		{Name: metricsTypes.Label_Ordering, Value: event.Kind.String()},
	}, 1)
	_ = a.metricsSink.Gauge(metricsTypes.Metric_Gauge_LatestCompletedSlot, float64(*a.state.latestCompletedSlot), nil)
}

// buildMessageStates decodes and proves every raw message of a slot. Any failure
// aborts the whole slot.
func (a *Aggregator) buildMessageStates(acc *types.AccumulatorMessages, merkleState *wormholeMerkle.WormholeMerkleState) ([]*cache.MessageState, error) {
	proofs, err := wormholeMerkle.ConstructMessageStatesProofs(acc, merkleState)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to construct proofs for slot %d", acc.Slot)
	}
	if len(proofs) != len(acc.RawMessages) {
		return nil, errors.Errorf("expected %d proofs for slot %d, got %d", len(acc.RawMessages), acc.Slot, len(proofs))
	}

	receivedAt := clock.UnixSeconds(a.clock)
	states := make([]*cache.MessageState, 0, len(acc.RawMessages))
	for i, raw := range acc.RawMessages {
		msg, err := a.decoder.Decode(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to decode message %d of slot %d", i, acc.Slot)
		}
		states = append(states, &cache.MessageState{
			Slot:       acc.Slot,
			Message:    msg,
			RawMessage: raw,
			ProofSet:   cache.ProofSet{WormholeMerkleProof: proofs[i]},
			ReceivedAt: receivedAt,
		})
	}
	return states, nil
}
