package metadata

import (
	"context"
	"time"

	"github.com/Layr-Labs/pricefeed-sidecar/pkg/postgres/helpers"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type PriceFeed struct {
	Id        string `gorm:"primaryKey"`
	CreatedAt time.Time
}

type PriceFeedAttribute struct {
	FeedId string
	Name   string
	Value  string
}

// PostgresMetadataStore persists feed metadata so it survives restarts.
type PostgresMetadataStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewPostgresMetadataStore(db *gorm.DB, l *zap.Logger) *PostgresMetadataStore {
	return &PostgresMetadataStore{
		db:     db,
		logger: l,
	}
}

func (s *PostgresMetadataStore) RetrievePriceFeedsMetadata(ctx context.Context) ([]PriceFeedMetadata, error) {
	feeds := make([]PriceFeed, 0)
	if res := s.db.WithContext(ctx).Order("id asc").Find(&feeds); res.Error != nil {
		return nil, errors.Wrap(res.Error, "failed to retrieve price feeds")
	}

	attributes := make([]PriceFeedAttribute, 0)
	if res := s.db.WithContext(ctx).Find(&attributes); res.Error != nil {
		return nil, errors.Wrap(res.Error, "failed to retrieve price feed attributes")
	}
	byFeed := make(map[string]map[string]string, len(feeds))
	for _, a := range attributes {
		if _, ok := byFeed[a.FeedId]; !ok {
			byFeed[a.FeedId] = make(map[string]string)
		}
		byFeed[a.FeedId][a.Name] = a.Value
	}

	out := make([]PriceFeedMetadata, 0, len(feeds))
	for _, f := range feeds {
		id, err := types.ParseFeedId(f.Id)
		if err != nil {
			return nil, errors.Wrapf(err, "stored price feed")
		}
		attrs := byFeed[f.Id]
		if attrs == nil {
			attrs = make(map[string]string)
		}
		out = append(out, PriceFeedMetadata{Id: id, Attributes: attrs})
	}
	return out, nil
}

// StorePriceFeedsMetadata replaces the stored metadata in a single transaction.
func (s *PostgresMetadataStore) StorePriceFeedsMetadata(ctx context.Context, metadata []PriceFeedMetadata) error {
	_, err := helpers.WrapTxAndCommit(func(tx *gorm.DB) (interface{}, error) {
		// Attributes cascade.
		if res := tx.Where("1 = 1").Delete(&PriceFeed{}); res.Error != nil {
			return nil, res.Error
		}
		if len(metadata) == 0 {
			return nil, nil
		}

		feeds := make([]*PriceFeed, 0, len(metadata))
		attributes := make([]*PriceFeedAttribute, 0)
		for _, m := range metadata {
			id := m.Id.String()
			feeds = append(feeds, &PriceFeed{Id: id})
			for name, value := range m.Attributes {
				attributes = append(attributes, &PriceFeedAttribute{FeedId: id, Name: name, Value: value})
			}
		}
		if res := tx.Create(&feeds); res.Error != nil {
			return nil, res.Error
		}
		if len(attributes) > 0 {
			if res := tx.Create(&attributes); res.Error != nil {
				return nil, res.Error
			}
		}
		return nil, nil
	}, s.db.WithContext(ctx), nil)
	if err != nil {
		s.logger.Sugar().Errorw("Failed to store price feeds metadata", zap.Error(err))
		return errors.Wrap(err, "failed to store price feeds metadata")
	}
	s.logger.Sugar().Infow("Stored price feeds metadata", zap.Int("count", len(metadata)))
	return nil
}

func (s *PostgresMetadataStore) GetPriceFeedsMetadata(ctx context.Context, query string, assetType string) ([]PriceFeedMetadata, error) {
	all, err := s.RetrievePriceFeedsMetadata(ctx)
	if err != nil {
		return nil, err
	}
	return FilterPriceFeedsMetadata(all, query, assetType), nil
}
