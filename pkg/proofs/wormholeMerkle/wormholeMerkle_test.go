package wormholeMerkle

import (
	"fmt"
	"testing"

	"github.com/Layr-Labs/pricefeed-sidecar/pkg/types"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/wormhole"
	"github.com/stretchr/testify/assert"
)

func rawMessages(count int, prefix string) [][]byte {
	raw := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		raw = append(raw, []byte(fmt.Sprintf("%s-message-%d", prefix, i)))
	}
	return raw
}

func stateFor(t *testing.T, acc *types.AccumulatorMessages) *WormholeMerkleState {
	tree, err := MerkleizeMessages(acc.RawMessages)
	assert.Nil(t, err)

	root := wormhole.WormholeMerkleRoot{Slot: acc.Slot, RingSize: acc.RingSize}
	copy(root.Root[:], tree.Root())
	payload, err := wormhole.NewMerkleRootMessage(root).Encode()
	assert.Nil(t, err)
	vaa, err := (&wormhole.Vaa{
		Version:      wormhole.VaaVersion,
		EmitterChain: wormhole.ChainIdPythnet,
		Sequence:     acc.Slot,
		Payload:      payload,
	}).Encode()
	assert.Nil(t, err)
	return &WormholeMerkleState{Root: root, Vaa: vaa}
}

func withProofs(acc *types.AccumulatorMessages, proofs []WormholeMerkleMessageProof) []RawMessageWithMerkleProof {
	out := make([]RawMessageWithMerkleProof, 0, len(proofs))
	for i, p := range proofs {
		out = append(out, RawMessageWithMerkleProof{Slot: acc.Slot, RawMessage: acc.RawMessages[i], Proof: p})
	}
	return out
}

func Test_WormholeMerkle(t *testing.T) {
	t.Run("Constructs one valid proof per message in order", func(t *testing.T) {
		acc := &types.AccumulatorMessages{Slot: 10, RingSize: 100, RawMessages: rawMessages(5, "a")}
		state := stateFor(t, acc)

		proofs, err := ConstructMessageStatesProofs(acc, state)
		assert.Nil(t, err)
		assert.Equal(t, 5, len(proofs))
		for i, p := range proofs {
			assert.Equal(t, uint64(i), p.Proof.Index)
			assert.Equal(t, state.Vaa, p.Vaa)

			ok, err := VerifyProof(state.Root.Root[:], p.Proof, acc.RawMessages[i])
			assert.Nil(t, err)
			assert.True(t, ok)
		}
	})
	t.Run("A single message proves against its own root", func(t *testing.T) {
		acc := &types.AccumulatorMessages{Slot: 3, RingSize: 100, RawMessages: rawMessages(1, "single")}
		proofs, err := ConstructMessageStatesProofs(acc, stateFor(t, acc))
		assert.Nil(t, err)
		assert.Equal(t, 1, len(proofs))
	})
	t.Run("Rejects a root that does not match the messages", func(t *testing.T) {
		acc := &types.AccumulatorMessages{Slot: 10, RingSize: 100, RawMessages: rawMessages(4, "a")}
		state := stateFor(t, acc)
		acc.RawMessages[2] = []byte("tampered")

		_, err := ConstructMessageStatesProofs(acc, state)
		assert.ErrorIs(t, err, ErrInvalidMerkleRoot)
	})
	t.Run("Rejects halves from different slots", func(t *testing.T) {
		acc := &types.AccumulatorMessages{Slot: 10, RingSize: 100, RawMessages: rawMessages(2, "a")}
		state := stateFor(t, acc)
		acc.Slot = 11

		_, err := ConstructMessageStatesProofs(acc, state)
		assert.ErrorIs(t, err, ErrSlotMismatch)
	})
	t.Run("Proofs do not verify other messages", func(t *testing.T) {
		acc := &types.AccumulatorMessages{Slot: 10, RingSize: 100, RawMessages: rawMessages(4, "a")}
		state := stateFor(t, acc)
		proofs, err := ConstructMessageStatesProofs(acc, state)
		assert.Nil(t, err)

		ok, err := VerifyProof(state.Root.Root[:], proofs[0].Proof, acc.RawMessages[1])
		assert.Nil(t, err)
		assert.False(t, ok)
	})
	t.Run("Update data is grouped by slot in ascending order", func(t *testing.T) {
		accHigh := &types.AccumulatorMessages{Slot: 20, RingSize: 100, RawMessages: rawMessages(2, "high")}
		accLow := &types.AccumulatorMessages{Slot: 7, RingSize: 100, RawMessages: rawMessages(3, "low")}
		proofsHigh, err := ConstructMessageStatesProofs(accHigh, stateFor(t, accHigh))
		assert.Nil(t, err)
		proofsLow, err := ConstructMessageStatesProofs(accLow, stateFor(t, accLow))
		assert.Nil(t, err)

		input := append(withProofs(accHigh, proofsHigh), withProofs(accLow, proofsLow)...)
		updateData, err := ConstructUpdateData(input)
		assert.Nil(t, err)
		assert.Equal(t, 2, len(updateData))

		first, err := DecodeUpdateData(updateData[0])
		assert.Nil(t, err)
		root, err := RootFromVaa(first.Vaa)
		assert.Nil(t, err)
		assert.Equal(t, uint64(7), root.Slot)
		assert.Equal(t, 3, len(first.Updates))
		for i, u := range first.Updates {
			assert.Equal(t, accLow.RawMessages[i], u.Message)
			ok, err := VerifyProof(root.Root[:], u.Proof, u.Message)
			assert.Nil(t, err)
			assert.True(t, ok)
		}

		second, err := DecodeUpdateData(updateData[1])
		assert.Nil(t, err)
		assert.Equal(t, 2, len(second.Updates))
	})
	t.Run("Update data is chunked at the per update message limit", func(t *testing.T) {
		acc := &types.AccumulatorMessages{Slot: 1, RingSize: 100, RawMessages: rawMessages(MaxMessagesPerUpdate+10, "bulk")}
		proofs, err := ConstructMessageStatesProofs(acc, stateFor(t, acc))
		assert.Nil(t, err)

		updateData, err := ConstructUpdateData(withProofs(acc, proofs))
		assert.Nil(t, err)
		assert.Equal(t, 2, len(updateData))

		first, err := DecodeUpdateData(updateData[0])
		assert.Nil(t, err)
		assert.Equal(t, MaxMessagesPerUpdate, len(first.Updates))
		second, err := DecodeUpdateData(updateData[1])
		assert.Nil(t, err)
		assert.Equal(t, 10, len(second.Updates))
	})
	t.Run("Update data construction rejects a proof for another message", func(t *testing.T) {
		acc := &types.AccumulatorMessages{Slot: 5, RingSize: 100, RawMessages: rawMessages(2, "a")}
		proofs, err := ConstructMessageStatesProofs(acc, stateFor(t, acc))
		assert.Nil(t, err)

		input := withProofs(acc, proofs)
		input[0].RawMessage = []byte("forged")
		_, err = ConstructUpdateData(input)
		assert.ErrorIs(t, err, ErrInvalidProof)
	})
	t.Run("Decoding rejects malformed update data", func(t *testing.T) {
		_, err := DecodeUpdateData([]byte("PNAU"))
		assert.ErrorIs(t, err, ErrInvalidUpdateData)

		_, err = DecodeUpdateData([]byte{'X', 'N', 'A', 'U', 1, 0, 0, 0, 0, 0, 0})
		assert.ErrorIs(t, err, ErrInvalidUpdateData)
	})
}
