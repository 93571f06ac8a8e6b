package aggregate

import (
	"context"
	"fmt"
	"math"

	"github.com/Layr-Labs/pricefeed-sidecar/pkg/cache"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/messages"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/types"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/types/numbers"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrUpdateDataNotFound = errors.New("update data not found for the specified timestamps")
	ErrInvalidWindow      = errors.New("twap window does not fit in a unix timestamp")

	ErrInvalidSlotOrder        = errors.New("end slot must be greater than start slot")
	ErrInvalidStartMessage     = errors.New("start message is not the first update for its timestamp")
	ErrInvalidEndMessage       = errors.New("end message is not the first update for its timestamp")
	ErrSlotDifferenceOverflow  = errors.New("slot difference overflow")
	ErrPriceDifferenceOverflow = errors.New("price difference overflow")
	ErrConfDifferenceOverflow  = errors.New("confidence difference overflow")
	ErrDownSlotsOverflow       = errors.New("down slots difference overflow")
	ErrTwapPriceOverflow       = errors.New("twap price overflow")
	ErrTwapConfidenceOverflow  = errors.New("twap confidence overflow")
)

// CalculateTwap averages the cumulative price and confidence over the slots between
// start and end. Both messages must be the first update for their publish time so
// the window is deterministic.
func CalculateTwap(start, end *messages.TwapMessage) (types.Price, error) {
	if end.PublishSlot <= start.PublishSlot {
		return types.Price{}, ErrInvalidSlotOrder
	}
	if start.PrevPublishTime >= start.Time {
		return types.Price{}, ErrInvalidStartMessage
	}
	if end.PrevPublishTime >= end.Time {
		return types.Price{}, ErrInvalidEndMessage
	}

	slotDiff, err := numbers.CheckedSubUint64(end.PublishSlot, start.PublishSlot)
	if err != nil {
		return types.Price{}, ErrSlotDifferenceOverflow
	}
	priceDiff, err := numbers.CheckedSubInt128(end.CumulativePrice, start.CumulativePrice)
	if err != nil {
		return types.Price{}, ErrPriceDifferenceOverflow
	}
	confDiff, err := numbers.CheckedSubUint128(end.CumulativeConf, start.CumulativeConf)
	if err != nil {
		return types.Price{}, ErrConfDifferenceOverflow
	}

	// Divide before narrowing to keep precision.
	price, err := numbers.QuoToInt64(priceDiff, slotDiff)
	if err != nil {
		return types.Price{}, ErrTwapPriceOverflow
	}
	conf, err := numbers.QuoToUint64(confDiff, slotDiff)
	if err != nil {
		return types.Price{}, ErrTwapConfidenceOverflow
	}

	return types.Price{
		Price:       price,
		Conf:        conf,
		Exponent:    end.Exponent,
		PublishTime: end.Time,
	}, nil
}

// DownSlotsRatio is the fraction of slots between start and end in which the
// network produced no update.
func DownSlotsRatio(start, end *messages.TwapMessage) (decimal.Decimal, error) {
	slotDiff, err := numbers.CheckedSubUint64(end.PublishSlot, start.PublishSlot)
	if err != nil {
		return decimal.Zero, ErrSlotDifferenceOverflow
	}
	downSlots, err := numbers.CheckedSubUint64(end.NumDownSlots, start.NumDownSlots)
	if err != nil {
		return decimal.Zero, ErrDownSlotsOverflow
	}
	if slotDiff == 0 {
		return decimal.Zero, ErrInvalidSlotOrder
	}
	return numbers.Ratio(downSlots, slotDiff)
}

func twapMessages(states []*cache.MessageState) ([]*messages.TwapMessage, error) {
	out := make([]*messages.TwapMessage, 0, len(states))
	for _, s := range states {
		m, ok := s.Message.(*messages.TwapMessage)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidMessageState, "%s", s.Message.Type())
		}
		out = append(out, m)
	}
	return out, nil
}

// GetTwapsWithUpdateData computes a TWAP per feed over the window of windowSeconds
// ending at endTime. The returned update data holds the start batch followed by
// the end batch.
func (a *Aggregator) GetTwapsWithUpdateData(
	ctx context.Context,
	ids []types.FeedId,
	windowSeconds uint64,
	endTime types.RequestTime,
) (*types.TwapsWithUpdateData, error) {
	if windowSeconds > math.MaxInt64 {
		return nil, errors.Wrapf(ErrInvalidWindow, "%d seconds", windowSeconds)
	}
	window := types.UnixTimestamp(windowSeconds)
	filter := cache.FilterOnly(messages.MessageType_Twap)

	endStates, err := a.cache.FetchMessageStates(ctx, ids, endTime, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpdateDataNotFound, err)
	}
	if len(endStates) == 0 {
		return nil, ErrUpdateDataNotFound
	}

	// Every feed shares the window anchored on the first end message.
	endTimestamp := endStates[0].Message.PublishTime()
	if endTimestamp < math.MinInt64+window {
		return nil, errors.Wrapf(ErrInvalidWindow, "%d seconds before %d", windowSeconds, endTimestamp)
	}
	startStates, err := a.cache.FetchMessageStates(ctx, ids, types.FirstAfter(endTimestamp-window), filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpdateDataNotFound, err)
	}
	if len(startStates) != len(endStates) {
		return nil, ErrUpdateDataNotFound
	}

	starts, err := twapMessages(startStates)
	if err != nil {
		return nil, err
	}
	ends, err := twapMessages(endStates)
	if err != nil {
		return nil, err
	}

	twaps := make([]types.PriceFeedTwap, 0, len(ends))
	for i := range ends {
		start, end := starts[i], ends[i]
		price, err := CalculateTwap(start, end)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to calculate twap for feed %s", end.Id)
		}
		ratio, err := DownSlotsRatio(start, end)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to calculate down slots ratio for feed %s", end.Id)
		}
		twaps = append(twaps, types.PriceFeedTwap{
			FeedId:         end.Id,
			StartTimestamp: start.Time,
			EndTimestamp:   end.Time,
			Twap:           price,
			DownSlotsRatio: ratio,
		})
	}

	startUpdateData, err := constructUpdateData(startStates)
	if err != nil {
		return nil, err
	}
	endUpdateData, err := constructUpdateData(endStates)
	if err != nil {
		return nil, err
	}

	return &types.TwapsWithUpdateData{
		Twaps:      twaps,
		UpdateData: append(startUpdateData, endUpdateData...),
	}, nil
}
