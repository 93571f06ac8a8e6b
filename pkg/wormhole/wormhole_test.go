package wormhole

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
)

func testVaa(t *testing.T, root WormholeMerkleRoot) *Vaa {
	payload, err := NewMerkleRootMessage(root).Encode()
	assert.Nil(t, err)
	return &Vaa{
		Version:          VaaVersion,
		GuardianSetIndex: 4,
		Signatures: []Signature{
			{Index: 0, Signature: [65]byte{1}},
			{Index: 3, Signature: [65]byte{2}},
		},
		Timestamp:        1700000000,
		Nonce:            7,
		EmitterChain:     ChainIdPythnet,
		EmitterAddress:   common.HexToHash("0xe101faedac5851e32b9b23b5f9411a8c2bac4aae3ed4dd7b811dd1a72ea4aa71"),
		Sequence:         99,
		ConsistencyLevel: 1,
		Payload:          payload,
	}
}

func Test_Wormhole(t *testing.T) {
	root := WormholeMerkleRoot{
		Slot:     1234,
		RingSize: 10000,
		Root:     common.HexToHash("0x0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20"),
	}

	t.Run("Parses an encoded merkle root VAA", func(t *testing.T) {
		vaa := testVaa(t, root)
		raw, err := vaa.Encode()
		assert.Nil(t, err)

		parsed, merkle, err := ParseMerkleRootVaa(raw)
		assert.Nil(t, err)
		assert.Equal(t, vaa, parsed)
		assert.Equal(t, root, *merkle)
	})
	t.Run("Digest is the double keccak of the body", func(t *testing.T) {
		vaa := testVaa(t, root)
		raw, err := vaa.Encode()
		assert.Nil(t, err)

		// version + guardian set + signature count + signatures
		body := raw[6+2*66:]
		expected := crypto.Keccak256Hash(crypto.Keccak256(body))
		assert.Equal(t, expected, vaa.Digest())
	})
	t.Run("Rejects truncated VAAs", func(t *testing.T) {
		raw, _ := testVaa(t, root).Encode()
		_, err := ParseVaa(raw[:40])
		assert.ErrorIs(t, err, ErrInvalidVaa)

		_, err = ParseVaa([]byte{1})
		assert.ErrorIs(t, err, ErrInvalidVaa)
	})
	t.Run("Rejects unsupported VAA versions", func(t *testing.T) {
		vaa := testVaa(t, root)
		vaa.Version = 2
		raw, _ := vaa.Encode()
		_, err := ParseVaa(raw)
		assert.ErrorIs(t, err, ErrInvalidVaa)
	})
	t.Run("Rejects payloads without the accumulator magic", func(t *testing.T) {
		payload, _ := NewMerkleRootMessage(root).Encode()
		payload[0] = 'X'
		_, err := ParseWormholeMessage(payload)
		assert.ErrorIs(t, err, ErrInvalidPayloadMagic)
	})
	t.Run("Rejects unknown major versions and payload types", func(t *testing.T) {
		payload, _ := NewMerkleRootMessage(root).Encode()
		payload[4] = 2
		_, err := ParseWormholeMessage(payload)
		assert.ErrorIs(t, err, ErrUnsupportedVersion)

		payload, _ = NewMerkleRootMessage(root).Encode()
		payload[6] = 5
		_, err = ParseWormholeMessage(payload)
		assert.ErrorIs(t, err, ErrUnknownPayloadType)
	})
	t.Run("Accepts newer minor versions with trailing fields", func(t *testing.T) {
		payload, _ := NewMerkleRootMessage(root).Encode()
		payload[5] = 3
		payload = append(payload, 0xff, 0xff)
		msg, err := ParseWormholeMessage(payload)
		assert.Nil(t, err)
		assert.Equal(t, root, *msg.Merkle)
	})
}
