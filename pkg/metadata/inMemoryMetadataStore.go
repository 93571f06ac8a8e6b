package metadata

import (
	"context"
	"maps"
	"sync"

	"go.uber.org/zap"
)

type InMemoryMetadataStore struct {
	lock     sync.RWMutex
	metadata []PriceFeedMetadata
	logger   *zap.Logger
}

func NewInMemoryMetadataStore(l *zap.Logger) *InMemoryMetadataStore {
	return &InMemoryMetadataStore{
		metadata: make([]PriceFeedMetadata, 0),
		logger:   l,
	}
}

func (s *InMemoryMetadataStore) RetrievePriceFeedsMetadata(ctx context.Context) ([]PriceFeedMetadata, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	out := make([]PriceFeedMetadata, len(s.metadata))
	copy(out, s.metadata)
	return out, nil
}

func (s *InMemoryMetadataStore) StorePriceFeedsMetadata(ctx context.Context, metadata []PriceFeedMetadata) error {
	stored := make([]PriceFeedMetadata, 0, len(metadata))
	for _, m := range metadata {
		stored = append(stored, PriceFeedMetadata{Id: m.Id, Attributes: maps.Clone(m.Attributes)})
	}
	sortById(stored)

	s.lock.Lock()
	defer s.lock.Unlock()
	s.metadata = stored
	s.logger.Sugar().Infow("Stored price feeds metadata", zap.Int("count", len(stored)))
	return nil
}

func (s *InMemoryMetadataStore) GetPriceFeedsMetadata(ctx context.Context, query string, assetType string) ([]PriceFeedMetadata, error) {
	all, err := s.RetrievePriceFeedsMetadata(ctx)
	if err != nil {
		return nil, err
	}
	return FilterPriceFeedsMetadata(all, query, assetType), nil
}
