package aggregate

import (
	"bytes"
	"context"
	"sort"

	"github.com/Layr-Labs/pricefeed-sidecar/pkg/cache"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/messages"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/proofs/wormholeMerkle"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/types"
	"github.com/btcsuite/btcutil/base58"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	ErrInvalidMessageState = errors.New("invalid message state type")
	ErrMissingUpdateData   = errors.New("missing update data for message")
)

func toRawMessageWithMerkleProof(s *cache.MessageState) wormholeMerkle.RawMessageWithMerkleProof {
	return wormholeMerkle.RawMessageWithMerkleProof{
		Slot:       s.Slot,
		RawMessage: s.RawMessage,
		Proof:      s.ProofSet.WormholeMerkleProof,
	}
}

func constructUpdateData(states []*cache.MessageState) ([][]byte, error) {
	msgs := make([]wormholeMerkle.RawMessageWithMerkleProof, 0, len(states))
	for _, s := range states {
		msgs = append(msgs, toRawMessageWithMerkleProof(s))
	}
	return wormholeMerkle.ConstructUpdateData(msgs)
}

// GetPriceFeedIds lists every feed with a retained state, sorted, excluding the
// reserved stake caps feed.
func (a *Aggregator) GetPriceFeedIds(ctx context.Context) []types.FeedId {
	seen := make(map[types.FeedId]struct{})
	ids := make([]types.FeedId, 0)
	for _, key := range a.cache.MessageStateKeys(ctx) {
		if key.FeedId == messages.PublisherStakeCapsFeedId {
			continue
		}
		if _, ok := seen[key.FeedId]; ok {
			continue
		}
		seen[key.FeedId] = struct{}{}
		ids = append(ids, key.FeedId)
	}
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
	return ids
}

// GetPriceFeedsWithUpdateData resolves price feeds from the cache. A FirstAfter
// request the cache cannot answer is forwarded to the benchmarks source.
func (a *Aggregator) GetPriceFeedsWithUpdateData(ctx context.Context, ids []types.FeedId, requestTime types.RequestTime) (*types.PriceFeedsWithUpdateData, error) {
	res, err := a.getVerifiedPriceFeeds(ctx, ids, requestTime)
	if err == nil {
		return res, nil
	}
	if requestTime.Kind == types.RequestTime_FirstAfter && a.benchmarks != nil {
		a.logger.Sugar().Debugw("Falling back to benchmarks",
			zap.Int64("publishTime", requestTime.Timestamp),
			zap.Error(err),
		)
		return a.benchmarks.GetVerifiedPriceFeeds(ctx, ids, requestTime.Timestamp)
	}
	return nil, err
}

func (a *Aggregator) getVerifiedPriceFeeds(ctx context.Context, ids []types.FeedId, requestTime types.RequestTime) (*types.PriceFeedsWithUpdateData, error) {
	states, err := a.cache.FetchMessageStates(ctx, ids, requestTime, cache.FilterOnly(messages.MessageType_PriceFeed))
	if err != nil {
		return nil, err
	}

	feeds := make([]types.PriceFeedUpdate, 0, len(states))
	for _, s := range states {
		msg, ok := s.Message.(*messages.PriceFeedMessage)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidMessageState, "%s", s.Message.Type())
		}
		updateData, err := constructUpdateData([]*cache.MessageState{s})
		if err != nil {
			return nil, err
		}
		if len(updateData) == 0 {
			return nil, ErrMissingUpdateData
		}

		slot := s.Slot
		receivedAt := s.ReceivedAt
		prevPublishTime := msg.PrevPublishTime
		feeds = append(feeds, types.PriceFeedUpdate{
			PriceFeed: types.PriceFeed{
				Id: msg.Id,
				Price: types.Price{
					Price:       msg.Price,
					Conf:        msg.Conf,
					Exponent:    msg.Exponent,
					PublishTime: msg.Time,
				},
				EmaPrice: types.Price{
					Price:       msg.EmaPrice,
					Conf:        msg.EmaConf,
					Exponent:    msg.Exponent,
					PublishTime: msg.Time,
				},
			},
			Slot:            &slot,
			ReceivedAt:      &receivedAt,
			UpdateData:      updateData[0],
			PrevPublishTime: &prevPublishTime,
		})
	}

	updateData, err := constructUpdateData(states)
	if err != nil {
		return nil, err
	}
	return &types.PriceFeedsWithUpdateData{
		PriceFeeds: feeds,
		UpdateData: updateData,
	}, nil
}

func (a *Aggregator) GetLatestPublisherStakeCapsWithUpdateData(ctx context.Context) (*types.PublisherStakeCapsWithUpdateData, error) {
	states, err := a.cache.FetchMessageStates(
		ctx,
		[]types.FeedId{messages.PublisherStakeCapsFeedId},
		types.Latest(),
		cache.FilterOnly(messages.MessageType_PublisherStakeCaps),
	)
	if err != nil {
		return nil, err
	}

	updates := make([]types.ParsedPublisherStakeCapsUpdate, 0, len(states))
	for _, s := range states {
		msg, ok := s.Message.(*messages.PublisherStakeCapsMessage)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidMessageState, "%s", s.Message.Type())
		}
		caps := make([]types.ParsedPublisherStakeCap, 0, len(msg.Caps))
		for _, c := range msg.Caps {
			caps = append(caps, types.ParsedPublisherStakeCap{
				Publisher: base58.Encode(c.Publisher[:]),
				Cap:       c.Cap,
			})
		}
		updates = append(updates, types.ParsedPublisherStakeCapsUpdate{PublisherStakeCaps: caps})
	}

	updateData, err := constructUpdateData(states)
	if err != nil {
		return nil, err
	}
	return &types.PublisherStakeCapsWithUpdateData{
		PublisherStakeCaps: updates,
		UpdateData:         updateData,
	}, nil
}
