package types

import "github.com/shopspring/decimal"

type Price struct {
	Price       int64         `json:"price"`
	Conf        uint64        `json:"conf"`
	Exponent    int32         `json:"expo"`
	PublishTime UnixTimestamp `json:"publish_time"`
}

type PriceFeed struct {
	Id       FeedId `json:"id"`
	Price    Price  `json:"price"`
	EmaPrice Price  `json:"ema_price"`
}

// PriceFeedUpdate is a price feed plus the update data proving it. Slot and
// ReceivedAt are unknown for feeds served from the historical fallback.
type PriceFeedUpdate struct {
	PriceFeed       PriceFeed
	Slot            *Slot
	ReceivedAt      *UnixTimestamp
	UpdateData      []byte
	PrevPublishTime *UnixTimestamp
}

type PriceFeedsWithUpdateData struct {
	PriceFeeds []PriceFeedUpdate
	UpdateData [][]byte
}

type ParsedPublisherStakeCap struct {
	// Publisher is the base58 encoded publisher key.
	Publisher string
	Cap       uint64
}

type ParsedPublisherStakeCapsUpdate struct {
	PublisherStakeCaps []ParsedPublisherStakeCap
}

type PublisherStakeCapsWithUpdateData struct {
	PublisherStakeCaps []ParsedPublisherStakeCapsUpdate
	UpdateData         [][]byte
}

// PriceFeedTwap is derived on request and never stored.
type PriceFeedTwap struct {
	FeedId         FeedId
	StartTimestamp UnixTimestamp
	EndTimestamp   UnixTimestamp
	Twap           Price
	// DownSlotsRatio is the fraction of slots in the window without an update.
	DownSlotsRatio decimal.Decimal
}

type TwapsWithUpdateData struct {
	Twaps      []PriceFeedTwap
	UpdateData [][]byte
}
