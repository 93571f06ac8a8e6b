package messages

import (
	"math/big"
	"testing"

	"github.com/Layr-Labs/pricefeed-sidecar/pkg/types"
	"github.com/stretchr/testify/assert"
)

func feedId(seed byte) types.FeedId {
	var id types.FeedId
	for i := range id {
		id[i] = seed
	}
	return id
}

func Test_Codec(t *testing.T) {
	t.Run("Price feed message layout", func(t *testing.T) {
		msg := &PriceFeedMessage{
			Id:              feedId(100),
			Price:           -5,
			Conf:            7,
			Exponent:        -8,
			Time:            10,
			PrevPublishTime: 9,
			EmaPrice:        100,
			EmaConf:         1,
		}
		raw, err := Encode(msg)
		assert.Nil(t, err)
		// discriminant + id + price + conf + expo + time + prev + ema price + ema conf
		assert.Equal(t, 1+32+8+8+4+8+8+8+8, len(raw))
		assert.Equal(t, byte(0), raw[0])

		decoded, err := Decode(raw)
		assert.Nil(t, err)
		assert.Equal(t, msg, decoded)
		assert.Equal(t, feedId(100), decoded.FeedId())
		assert.Equal(t, int64(10), decoded.PublishTime())
	})
	t.Run("Twap message keeps negative 128 bit cumulative prices", func(t *testing.T) {
		huge, _ := new(big.Int).SetString("-85070591730234615865843651857942052864", 10) // -2^126
		msg := &TwapMessage{
			Id:              feedId(1),
			CumulativePrice: huge,
			CumulativeConf:  new(big.Int).Lsh(big.NewInt(1), 127),
			NumDownSlots:    50,
			Exponent:        -5,
			Time:            200,
			PrevPublishTime: 180,
			PublishSlot:     1100,
		}
		raw, err := Encode(msg)
		assert.Nil(t, err)

		decoded, err := Decode(raw)
		assert.Nil(t, err)
		twap, ok := decoded.(*TwapMessage)
		assert.True(t, ok)
		assert.Equal(t, 0, huge.Cmp(twap.CumulativePrice))
		assert.Equal(t, 0, msg.CumulativeConf.Cmp(twap.CumulativeConf))
		assert.Equal(t, uint64(1100), twap.PublishSlot)
	})
	t.Run("Twap message rejects values wider than 128 bits", func(t *testing.T) {
		_, err := Encode(&TwapMessage{
			CumulativePrice: new(big.Int).Lsh(big.NewInt(1), 127),
			CumulativeConf:  big.NewInt(0),
		})
		assert.NotNil(t, err)
	})
	t.Run("Publisher stake caps use the reserved feed id", func(t *testing.T) {
		msg := &PublisherStakeCapsMessage{
			Time: 42,
			Caps: []PublisherStakeCap{
				{Publisher: [32]byte{1}, Cap: 10},
				{Publisher: [32]byte{2}, Cap: 20},
			},
		}
		raw, err := Encode(msg)
		assert.Nil(t, err)

		decoded, err := Decode(raw)
		assert.Nil(t, err)
		assert.Equal(t, msg, decoded)
		assert.Equal(t, PublisherStakeCapsFeedId, decoded.FeedId())
	})
	t.Run("Fails on truncated input", func(t *testing.T) {
		raw, _ := Encode(&PriceFeedMessage{Id: feedId(3)})
		_, err := Decode(raw[:len(raw)-1])
		assert.ErrorIs(t, err, ErrUnexpectedEOF)

		_, err = Decode([]byte{})
		assert.ErrorIs(t, err, ErrUnexpectedEOF)
	})
	t.Run("Fails on trailing bytes", func(t *testing.T) {
		raw, _ := Encode(&PriceFeedMessage{Id: feedId(3)})
		_, err := Decode(append(raw, 0))
		assert.ErrorIs(t, err, ErrTrailingBytes)
	})
	t.Run("Fails on an unknown discriminant", func(t *testing.T) {
		_, err := Decode([]byte{9, 0, 0})
		assert.ErrorIs(t, err, ErrUnknownMessage)
	})
}
