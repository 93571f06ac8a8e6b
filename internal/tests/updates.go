package tests

import (
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/messages"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/proofs/wormholeMerkle"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/types"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/wormhole"
	"github.com/ethereum/go-ethereum/common"
)

const TestRingSize = 10000

var TestEmitterAddress = common.HexToHash("0xe101faedac5851e32b9b23b5f9411a8c2bac4aae3ed4dd7b811dd1a72ea4aa71")

func FeedId(seed byte) types.FeedId {
	var id types.FeedId
	for i := range id {
		id[i] = seed
	}
	return id
}

func PriceFeedMessage(seed byte, publishTime, prevPublishTime types.UnixTimestamp) *messages.PriceFeedMessage {
	return &messages.PriceFeedMessage{
		Id:              FeedId(seed),
		Price:           int64(seed),
		Conf:            uint64(seed) * 10,
		Exponent:        -8,
		Time:            publishTime,
		PrevPublishTime: prevPublishTime,
		EmaPrice:        int64(seed),
		EmaConf:         uint64(seed) * 10,
	}
}

// AccumulatorMessagesFor encodes msgs into the raw half of an update for slot.
func AccumulatorMessagesFor(slot types.Slot, msgs ...messages.Message) (*types.AccumulatorMessages, error) {
	raw := make([][]byte, 0, len(msgs))
	for _, m := range msgs {
		b, err := messages.Encode(m)
		if err != nil {
			return nil, err
		}
		raw = append(raw, b)
	}
	return &types.AccumulatorMessages{
		Magic:       wormhole.AccumulatorMagic,
		Slot:        slot,
		RingSize:    TestRingSize,
		RawMessages: raw,
	}, nil
}

// VaaFor builds a serialized VAA attesting the merkle root of acc. sequence only
// changes the envelope, not the attested root.
func VaaFor(acc *types.AccumulatorMessages, sequence uint64) ([]byte, error) {
	tree, err := wormholeMerkle.MerkleizeMessages(acc.RawMessages)
	if err != nil {
		return nil, err
	}
	root := wormhole.WormholeMerkleRoot{
		Slot:     acc.Slot,
		RingSize: acc.RingSize,
	}
	copy(root.Root[:], tree.Root())

	payload, err := wormhole.NewMerkleRootMessage(root).Encode()
	if err != nil {
		return nil, err
	}
	vaa := &wormhole.Vaa{
		Version:          wormhole.VaaVersion,
		GuardianSetIndex: 0,
		Signatures:       []wormhole.Signature{{Index: 0}},
		Timestamp:        uint32(acc.Slot),
		Nonce:            0,
		EmitterChain:     wormhole.ChainIdPythnet,
		EmitterAddress:   TestEmitterAddress,
		Sequence:         sequence,
		ConsistencyLevel: 1,
		Payload:          payload,
	}
	return vaa.Encode()
}

// UpdatesFor returns both halves of an update for slot carrying msgs.
func UpdatesFor(slot types.Slot, msgs ...messages.Message) (types.Update, types.Update, error) {
	acc, err := AccumulatorMessagesFor(slot, msgs...)
	if err != nil {
		return types.Update{}, types.Update{}, err
	}
	vaa, err := VaaFor(acc, slot)
	if err != nil {
		return types.Update{}, types.Update{}, err
	}
	return types.NewAccumulatorMessagesUpdate(acc), types.NewVaaUpdate(vaa), nil
}
