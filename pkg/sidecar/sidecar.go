package sidecar

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Layr-Labs/pricefeed-sidecar/internal/config"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/aggregate"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/metadata"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/rpcServer"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var ErrShuttingDown = errors.New("sidecar is shutting down")

const (
	defaultIngestWorkers   = 4
	defaultIngestQueueSize = 1000
)

type SidecarConfig struct {
	IngestWorkers   int
	IngestQueueSize int
}

type Sidecar struct {
	Logger       *zap.Logger
	Config       *SidecarConfig
	GlobalConfig *config.Config
	Aggregator   *aggregate.Aggregator
	Metadata     metadata.PriceFeedMeta
	ShutdownChan chan bool

	updates chan types.Update
	// intakeLock orders Submit sends against closing intake, so nothing is queued
	// after the final drain.
	intakeLock     sync.RWMutex
	stopping       chan struct{}
	stopOnce       sync.Once
	shouldShutdown *atomic.Bool
}

func NewSidecar(
	cfg *SidecarConfig,
	gCfg *config.Config,
	agg *aggregate.Aggregator,
	meta metadata.PriceFeedMeta,
	l *zap.Logger,
) *Sidecar {
	if cfg.IngestWorkers <= 0 {
		cfg.IngestWorkers = defaultIngestWorkers
	}
	if cfg.IngestQueueSize <= 0 {
		cfg.IngestQueueSize = defaultIngestQueueSize
	}
	shouldShutdown := &atomic.Bool{}
	shouldShutdown.Store(false)
	return &Sidecar{
		Logger:         l,
		Config:         cfg,
		GlobalConfig:   gCfg,
		Aggregator:     agg,
		Metadata:       meta,
		ShutdownChan:   make(chan bool),
		updates:        make(chan types.Update, cfg.IngestQueueSize),
		stopping:       make(chan struct{}),
		shouldShutdown: shouldShutdown,
	}
}

// LoadMetadata seeds the metadata store from the configured file, if any.
func (s *Sidecar) LoadMetadata(ctx context.Context) error {
	path := s.GlobalConfig.MetadataConfig.File
	if path == "" {
		return nil
	}
	feeds, err := metadata.LoadFromFile(path)
	if err != nil {
		return err
	}
	if err := s.Metadata.StorePriceFeedsMetadata(ctx, feeds); err != nil {
		return err
	}
	s.Logger.Sugar().Infow("Loaded price feeds metadata", zap.String("file", path), zap.Int("count", len(feeds)))
	return nil
}

// Submit queues one half of an update for ingestion. It blocks while the queue is full.
// An update accepted here is always stored, even when shutdown follows.
func (s *Sidecar) Submit(ctx context.Context, update types.Update) error {
	s.intakeLock.RLock()
	defer s.intakeLock.RUnlock()

	if s.shouldShutdown.Load() {
		return ErrShuttingDown
	}
	select {
	case s.updates <- update:
		return nil
	case <-s.stopping:
		return ErrShuttingDown
	case <-ctx.Done():
		return ctx.Err()
	}
}

// closeIntake stops Submit from accepting updates. Once it returns no sender can
// still be writing to the queue.
func (s *Sidecar) closeIntake() {
	s.stopOnce.Do(func() {
		close(s.stopping)
	})
	s.intakeLock.Lock()
	s.shouldShutdown.Store(true)
	s.intakeLock.Unlock()
}

func (s *Sidecar) WithRpcServer(ctx context.Context, rpcChannel chan bool) error {
	rpc := rpcServer.NewRpcServer(&rpcServer.RpcServerConfig{
		GrpcPort:        s.GlobalConfig.RpcConfig.GrpcPort,
		HttpPort:        s.GlobalConfig.RpcConfig.HttpPort,
		RefreshInterval: s.GlobalConfig.ReadinessConfig.RefreshInterval,
	}, s.Aggregator, s.Logger)
	return rpc.Start(ctx, rpcChannel)
}

// Start runs the ingestion workers until ctx is cancelled or a shutdown is signalled.
// Queued updates are drained before it returns.
func (s *Sidecar) Start(ctx context.Context) {
	s.Logger.Info("Starting price feed sidecar")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-s.ShutdownChan:
			s.Logger.Sugar().Infow("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	consumer := s.Aggregator.Subscribe(ctx, 0)
	go s.watchAggregationEvents(consumer.Channel)

	var wg sync.WaitGroup
	for i := 0; i < s.Config.IngestWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.ingest(ctx, i)
		}()
	}
	wg.Wait()

	s.closeIntake()
	s.drain()

	s.Aggregator.Unsubscribe(consumer)
	s.Logger.Info("Stopped price feed sidecar")
}

func (s *Sidecar) ingest(ctx context.Context, worker int) {
	for {
		select {
		case update := <-s.updates:
			s.storeUpdate(ctx, update, worker)
		case <-ctx.Done():
			return
		}
	}
}

// drain stores whatever is left in the queue after intake is closed.
func (s *Sidecar) drain() {
	drained := 0
	for {
		select {
		case update := <-s.updates:
			s.storeUpdate(context.Background(), update, -1)
			drained++
		default:
			if drained > 0 {
				s.Logger.Sugar().Infow("Drained queued updates", zap.Int("count", drained))
			}
			return
		}
	}
}

func (s *Sidecar) storeUpdate(ctx context.Context, update types.Update, worker int) {
	if err := s.Aggregator.StoreUpdate(ctx, update); err != nil {
		s.Logger.Sugar().Errorw("Failed to store update",
			zap.Int("worker", worker),
			zap.Error(err),
		)
	}
}
