package eventBus

import (
	"context"
	"sync"

	"github.com/Layr-Labs/pricefeed-sidecar/pkg/eventBus/eventBusTypes"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/types"
	"go.uber.org/zap"
)

const DefaultConsumerBufferSize = 1000

// EventBus broadcasts aggregation events to every subscribed consumer. Publishing
// never blocks: a consumer whose channel is full misses the event.
type EventBus struct {
	consumers *eventBusTypes.ConsumerList
	logger    *zap.Logger
	lock      sync.Mutex
}

func NewEventBus(l *zap.Logger) *EventBus {
	return &EventBus{
		consumers: eventBusTypes.NewConsumerList(),
		logger:    l,
	}
}

// Subscribe registers a new consumer. A bufferSize of zero or less uses
// DefaultConsumerBufferSize.
func (eb *EventBus) Subscribe(ctx context.Context, bufferSize int) *eventBusTypes.Consumer {
	if bufferSize <= 0 {
		bufferSize = DefaultConsumerBufferSize
	}
	consumer := eventBusTypes.NewConsumer(ctx, bufferSize)
	eb.consumers.Add(consumer)
	eb.logger.Sugar().Infow("Subscribed consumer",
		zap.String("consumerId", string(consumer.Id)),
		zap.Int("bufferSize", bufferSize),
	)
	return consumer
}

// Unsubscribe removes the consumer and closes its channel.
func (eb *EventBus) Unsubscribe(consumer *eventBusTypes.Consumer) {
	eb.lock.Lock()
	defer eb.lock.Unlock()
	if eb.consumers.Remove(consumer) {
		close(consumer.Channel)
	}
	eb.logger.Sugar().Infow("Unsubscribed consumer", zap.String("consumerId", string(consumer.Id)))
}

func (eb *EventBus) Publish(event *eventBusTypes.Event) {
	eb.lock.Lock()
	defer eb.lock.Unlock()

	eb.logger.Sugar().Debugw("Publishing event",
		zap.String("eventName", event.Name),
		zap.String("event", event.Data.String()),
	)
	for _, consumer := range eb.consumers.GetAll() {
		if consumer.Channel != nil {
			select {
			case consumer.Channel <- event:
				eb.logger.Sugar().Debugw("Published event to consumer",
					zap.String("consumerId", string(consumer.Id)),
					zap.String("eventName", event.Name),
				)
			default:
				eb.logger.Sugar().Debugw("No receiver available, or channel is full",
					zap.String("consumerId", string(consumer.Id)),
					zap.String("eventName", event.Name),
				)
			}
		} else {
			eb.logger.Sugar().Debugw("Consumer channel is nil", zap.String("consumerId", string(consumer.Id)))
		}
	}
}

// PublishAggregation wraps an aggregation event and publishes it.
func (eb *EventBus) PublishAggregation(event types.AggregationEvent) {
	eb.Publish(&eventBusTypes.Event{
		Name: eventBusTypes.Event_AggregationCompleted,
		Data: event,
	})
}

func (eb *EventBus) ConsumerCount() int {
	return eb.consumers.Len()
}
