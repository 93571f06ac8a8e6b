package messages

import (
	"fmt"
	"math/big"

	"github.com/Layr-Labs/pricefeed-sidecar/pkg/types"
)

type MessageType uint8

const (
	MessageType_PriceFeed          MessageType = 0
	MessageType_Twap               MessageType = 1
	MessageType_PublisherStakeCaps MessageType = 2
)

// AllMessageTypes lists every message type in discriminant order.
var AllMessageTypes = []MessageType{
	MessageType_PriceFeed,
	MessageType_Twap,
	MessageType_PublisherStakeCaps,
}

func (t MessageType) String() string {
	switch t {
	case MessageType_PriceFeed:
		return "price_feed"
	case MessageType_Twap:
		return "twap"
	case MessageType_PublisherStakeCaps:
		return "publisher_stake_caps"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// PublisherStakeCapsFeedId is the reserved feed id under which the stake caps
// message is cached. It is never reported as a price feed.
var PublisherStakeCapsFeedId = types.FeedId{
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
}

type Message interface {
	Type() MessageType
	FeedId() types.FeedId
	PublishTime() types.UnixTimestamp
}

type PriceFeedMessage struct {
	Id              types.FeedId
	Price           int64
	Conf            uint64
	Exponent        int32
	Time            types.UnixTimestamp
	PrevPublishTime types.UnixTimestamp
	EmaPrice        int64
	EmaConf         uint64
}

func (m *PriceFeedMessage) Type() MessageType { return MessageType_PriceFeed }
func (m *PriceFeedMessage) FeedId() types.FeedId { return m.Id }
func (m *PriceFeedMessage) PublishTime() types.UnixTimestamp { return m.Time }

// TwapMessage carries running sums over every slot since the feed started.
// CumulativePrice is a signed 128 bit integer, CumulativeConf an unsigned one.
type TwapMessage struct {
	Id              types.FeedId
	CumulativePrice *big.Int
	CumulativeConf  *big.Int
	NumDownSlots    uint64
	Exponent        int32
	Time            types.UnixTimestamp
	PrevPublishTime types.UnixTimestamp
	PublishSlot     types.Slot
}

func (m *TwapMessage) Type() MessageType { return MessageType_Twap }
func (m *TwapMessage) FeedId() types.FeedId { return m.Id }
func (m *TwapMessage) PublishTime() types.UnixTimestamp { return m.Time }

type PublisherStakeCap struct {
	Publisher [32]byte
	Cap       uint64
}

type PublisherStakeCapsMessage struct {
	Time types.UnixTimestamp
	Caps []PublisherStakeCap
}

func (m *PublisherStakeCapsMessage) Type() MessageType { return MessageType_PublisherStakeCaps }
func (m *PublisherStakeCapsMessage) FeedId() types.FeedId { return PublisherStakeCapsFeedId }
func (m *PublisherStakeCapsMessage) PublishTime() types.UnixTimestamp { return m.Time }
