package eventBus

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Layr-Labs/pricefeed-sidecar/internal/config"
	"github.com/Layr-Labs/pricefeed-sidecar/internal/logger"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/eventBus/eventBusTypes"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/types"
	"github.com/stretchr/testify/assert"
)

func Test_EventBus(t *testing.T) {
	debug := os.Getenv(config.Debug) == "true"
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: debug})

	t.Run("Consumer receives events until it unsubscribes", func(t *testing.T) {
		eb := NewEventBus(l)
		consumer := eb.Subscribe(context.Background(), 1000)

		receivedCount := atomic.Uint64{}
		wg := sync.WaitGroup{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case event, ok := <-consumer.Channel:
					if !ok {
						return
					}
					t.Logf("Received event: %v", event.Data)
					if receivedCount.Add(1) == 3 {
						eb.Unsubscribe(consumer)
						return
					}
				case <-consumer.Context.Done():
					return
				}
			}
		}()

		for i := 0; i < 10; i++ {
			eb.PublishAggregation(types.NewAggregationEvent(uint64(i)))
		}
		wg.Wait()

		assert.Equal(t, uint64(3), receivedCount.Load())
		assert.Equal(t, 0, eb.ConsumerCount())
	})
	t.Run("Every consumer sees events in publish order", func(t *testing.T) {
		eb := NewEventBus(l)
		first := eb.Subscribe(context.Background(), 10)
		second := eb.Subscribe(context.Background(), 10)
		assert.NotEqual(t, first.Id, second.Id)

		eb.PublishAggregation(types.NewAggregationEvent(101))
		eb.PublishAggregation(types.OutOfOrderAggregationEvent(100))

		for _, c := range []*eventBusTypes.Consumer{first, second} {
			e := <-c.Channel
			assert.Equal(t, types.NewAggregationEvent(101), e.Data)
			e = <-c.Channel
			assert.Equal(t, types.OutOfOrderAggregationEvent(100), e.Data)
		}
	})
	t.Run("A full consumer drops events without blocking the publisher", func(t *testing.T) {
		eb := NewEventBus(l)
		slow := eb.Subscribe(context.Background(), 2)

		for i := 0; i < 5; i++ {
			eb.PublishAggregation(types.NewAggregationEvent(uint64(i)))
		}
		assert.Equal(t, 2, len(slow.Channel))
		e := <-slow.Channel
		assert.Equal(t, uint64(0), e.Data.Slot)
	})
	t.Run("Unsubscribe closes the channel once", func(t *testing.T) {
		eb := NewEventBus(l)
		c := eb.Subscribe(context.Background(), 0)
		assert.Equal(t, DefaultConsumerBufferSize, cap(c.Channel))

		eb.Unsubscribe(c)
		eb.Unsubscribe(c)
		_, ok := <-c.Channel
		assert.False(t, ok)

		eb.PublishAggregation(types.NewAggregationEvent(1))
	})
}
