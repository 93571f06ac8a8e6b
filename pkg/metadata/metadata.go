// Package metadata stores display attributes of price feeds (symbol, asset type,
// ...). Readiness requires at least one feed to be known.
package metadata

import (
	"context"
	"sort"
	"strings"

	"github.com/Layr-Labs/pricefeed-sidecar/pkg/types"
)

const (
	Attribute_AssetType = "asset_type"
	Attribute_Symbol    = "symbol"
)

type PriceFeedMetadata struct {
	Id         types.FeedId
	Attributes map[string]string
}

type PriceFeedMeta interface {
	RetrievePriceFeedsMetadata(ctx context.Context) ([]PriceFeedMetadata, error)
	// StorePriceFeedsMetadata replaces everything stored with metadata.
	StorePriceFeedsMetadata(ctx context.Context, metadata []PriceFeedMetadata) error
	// GetPriceFeedsMetadata filters by a case-insensitive symbol substring and by
	// asset type. Empty arguments do not filter.
	GetPriceFeedsMetadata(ctx context.Context, query string, assetType string) ([]PriceFeedMetadata, error)
}

// FilterPriceFeedsMetadata applies the GetPriceFeedsMetadata filters.
func FilterPriceFeedsMetadata(metadata []PriceFeedMetadata, query string, assetType string) []PriceFeedMetadata {
	query = strings.ToLower(query)
	out := make([]PriceFeedMetadata, 0, len(metadata))
	for _, m := range metadata {
		if query != "" && !strings.Contains(strings.ToLower(m.Attributes[Attribute_Symbol]), query) {
			continue
		}
		if assetType != "" && !strings.EqualFold(m.Attributes[Attribute_AssetType], assetType) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// OnlyKnownFeeds drops metadata for feeds that are not in ids.
func OnlyKnownFeeds(metadata []PriceFeedMetadata, ids []types.FeedId) []PriceFeedMetadata {
	known := make(map[types.FeedId]struct{}, len(ids))
	for _, id := range ids {
		known[id] = struct{}{}
	}
	out := make([]PriceFeedMetadata, 0, len(metadata))
	for _, m := range metadata {
		if _, ok := known[m.Id]; ok {
			out = append(out, m)
		}
	}
	return out
}

func sortById(metadata []PriceFeedMetadata) {
	sort.Slice(metadata, func(i, j int) bool {
		return metadata[i].Id.String() < metadata[j].Id.String()
	})
}
