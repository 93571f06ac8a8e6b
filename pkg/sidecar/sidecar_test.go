package sidecar

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Layr-Labs/pricefeed-sidecar/internal/clock"
	"github.com/Layr-Labs/pricefeed-sidecar/internal/config"
	"github.com/Layr-Labs/pricefeed-sidecar/internal/logger"
	"github.com/Layr-Labs/pricefeed-sidecar/internal/metrics"
	"github.com/Layr-Labs/pricefeed-sidecar/internal/tests"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/aggregate"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/cache"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/eventBus"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/messages"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/metadata"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) *Sidecar {
	return setupWithCacheSize(t, 10)
}

func setupWithCacheSize(t *testing.T, cacheSize int) *Sidecar {
	cfg := config.NewConfig()
	cfg.Debug = os.Getenv(config.Debug) == "true"
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

	c, err := cache.NewInMemoryCache(cacheSize, l)
	require.Nil(t, err)
	meta := metadata.NewInMemoryMetadataStore(l)
	agg := aggregate.NewAggregator(
		&aggregate.AggregatorConfig{
			CacheSize:                   cacheSize,
			ReadinessStalenessThreshold: time.Minute,
			ReadinessMaxAllowedSlotLag:  10,
		},
		c,
		eventBus.NewEventBus(l),
		meta,
		nil,
		messages.NewWireCodec(),
		clock.NewSystemClock(),
		metrics.NewNoopMetricsSink(),
		l,
	)
	return NewSidecar(&SidecarConfig{IngestWorkers: 2}, cfg, agg, meta, l)
}

func Test_Sidecar(t *testing.T) {
	t.Run("Ingests submitted updates until shutdown", func(t *testing.T) {
		s := setup(t)
		ctx := context.Background()
		consumer := s.Aggregator.Subscribe(ctx, 10)

		done := make(chan struct{})
		go func() {
			s.Start(ctx)
			close(done)
		}()

		accUpdate, vaaUpdate, err := tests.UpdatesFor(7, tests.PriceFeedMessage(1, 70, 69))
		require.Nil(t, err)
		assert.Nil(t, s.Submit(ctx, accUpdate))
		assert.Nil(t, s.Submit(ctx, vaaUpdate))

		select {
		case e := <-consumer.Channel:
			assert.Equal(t, types.NewAggregationEvent(7), e.Data)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for the slot to complete")
		}

		res, err := s.Aggregator.GetPriceFeedsWithUpdateData(ctx, []types.FeedId{tests.FeedId(1)}, types.Latest())
		assert.Nil(t, err)
		assert.Equal(t, 1, len(res.PriceFeeds))

		s.ShutdownChan <- true
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for shutdown")
		}
		assert.ErrorIs(t, s.Submit(ctx, accUpdate), ErrShuttingDown)
	})
	t.Run("Drains queued updates when the context ends", func(t *testing.T) {
		s := setup(t)
		ctx, cancel := context.WithCancel(context.Background())

		accUpdate, vaaUpdate, err := tests.UpdatesFor(3, tests.PriceFeedMessage(2, 30, 29))
		require.Nil(t, err)
		assert.Nil(t, s.Submit(ctx, accUpdate))
		assert.Nil(t, s.Submit(ctx, vaaUpdate))

		cancel()
		s.Start(ctx)

		_, meta := s.Aggregator.IsReady(context.Background())
		assert.Equal(t, uint64(3), *meta.LatestCompletedSlot)
	})
	t.Run("Updates accepted while shutting down are still stored", func(t *testing.T) {
		s := setupWithCacheSize(t, 64)
		ctx := context.Background()

		done := make(chan struct{})
		go func() {
			s.Start(ctx)
			close(done)
		}()

		const slots = 40
		accepted := make([]bool, slots+1)
		var wg sync.WaitGroup
		for slot := 1; slot <= slots; slot++ {
			accUpdate, vaaUpdate, err := tests.UpdatesFor(types.Slot(slot), tests.PriceFeedMessage(1, types.UnixTimestamp(slot), types.UnixTimestamp(slot-1)))
			require.Nil(t, err)
			wg.Add(1)
			go func() {
				defer wg.Done()
				accErr := s.Submit(ctx, accUpdate)
				vaaErr := s.Submit(ctx, vaaUpdate)
				if accErr != nil {
					assert.ErrorIs(t, accErr, ErrShuttingDown)
				}
				if vaaErr != nil {
					assert.ErrorIs(t, vaaErr, ErrShuttingDown)
				}
				accepted[slot] = accErr == nil && vaaErr == nil
			}()
			if slot == slots/2 {
				s.ShutdownChan <- true
			}
		}
		wg.Wait()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for shutdown")
		}

		for slot := 1; slot <= slots; slot++ {
			if !accepted[slot] {
				continue
			}
			res, err := s.Aggregator.GetPriceFeedsWithUpdateData(ctx, []types.FeedId{tests.FeedId(1)}, types.AtSlot(types.Slot(slot)))
			assert.Nil(t, err, "slot %d was accepted but not stored", slot)
			if err == nil {
				assert.Equal(t, types.UnixTimestamp(slot), res.PriceFeeds[0].PriceFeed.Price.PublishTime)
			}
		}
	})
	t.Run("Loads metadata from the configured file", func(t *testing.T) {
		s := setup(t)
		ctx := context.Background()

		assert.Nil(t, s.LoadMetadata(ctx))
		all, err := s.Metadata.RetrievePriceFeedsMetadata(ctx)
		assert.Nil(t, err)
		assert.Empty(t, all)

		path := filepath.Join(t.TempDir(), "feeds.json")
		contents := `{"feeds": [{"id": "` + tests.FeedId(1).Hex() + `", "attributes": {"symbol": "Crypto.BTC/USD"}}]}`
		require.Nil(t, os.WriteFile(path, []byte(contents), 0o600))
		s.GlobalConfig.MetadataConfig.File = path

		assert.Nil(t, s.LoadMetadata(ctx))
		all, err = s.Metadata.RetrievePriceFeedsMetadata(ctx)
		assert.Nil(t, err)
		assert.Equal(t, 1, len(all))
		assert.Equal(t, "Crypto.BTC/USD", all[0].Attributes[metadata.Attribute_Symbol])
	})
}
