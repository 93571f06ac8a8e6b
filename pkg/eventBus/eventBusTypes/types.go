package eventBusTypes

import (
	"context"
	"sync"

	"github.com/Layr-Labs/pricefeed-sidecar/pkg/types"
	"github.com/google/uuid"
)

const Event_AggregationCompleted = "aggregation_completed"

type Event struct {
	Name string
	Data types.AggregationEvent
}

type ConsumerId string

type Consumer struct {
	Id      ConsumerId
	Context context.Context
	Channel chan *Event
}

// NewConsumer creates a consumer with a random id and a channel buffering up to
// bufferSize events. Events published while the buffer is full are dropped.
func NewConsumer(ctx context.Context, bufferSize int) *Consumer {
	return &Consumer{
		Id:      ConsumerId(uuid.NewString()),
		Context: ctx,
		Channel: make(chan *Event, bufferSize),
	}
}

type ConsumerList struct {
	mu        sync.Mutex
	consumers []*Consumer
}

func NewConsumerList() *ConsumerList {
	return &ConsumerList{
		consumers: make([]*Consumer, 0),
	}
}

func (cl *ConsumerList) Add(consumer *Consumer) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.consumers = append(cl.consumers, consumer)
}

// Remove reports whether the consumer was subscribed.
func (cl *ConsumerList) Remove(consumer *Consumer) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	for i, c := range cl.consumers {
		if c.Id == consumer.Id {
			cl.consumers = append(cl.consumers[:i], cl.consumers[i+1:]...)
			return true
		}
	}
	return false
}

func (cl *ConsumerList) GetAll() []*Consumer {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	out := make([]*Consumer, len(cl.consumers))
	copy(out, cl.consumers)
	return out
}

func (cl *ConsumerList) Len() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.consumers)
}

type IEventBus interface {
	Subscribe(ctx context.Context, bufferSize int) *Consumer
	Unsubscribe(consumer *Consumer)
	Publish(event *Event)
	PublishAggregation(event types.AggregationEvent)
}
