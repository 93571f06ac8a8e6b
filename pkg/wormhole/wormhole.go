// Package wormhole parses guardian signed VAA envelopes and the accumulator
// payload they carry. Guardian signatures are carried through untouched: verifying
// them happens before updates reach this service.
package wormhole

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/Layr-Labs/pricefeed-sidecar/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

const (
	VaaVersion = 1

	signatureLength = 65
	// guardian index + signature
	signatureEntryLength = 1 + signatureLength
	// timestamp, nonce, emitter chain, emitter address, sequence, consistency level
	bodyHeaderLength = 4 + 4 + 2 + 32 + 8 + 1

	ChainIdPythnet uint16 = 26
)

var (
	AccumulatorMagic = [4]byte{'A', 'U', 'W', 'V'}

	ErrInvalidVaa          = errors.New("invalid vaa")
	ErrInvalidPayload      = errors.New("invalid wormhole payload")
	ErrUnknownPayloadType  = errors.New("unknown wormhole payload type")
	ErrUnsupportedVersion  = errors.New("unsupported wormhole message version")
	ErrInvalidPayloadMagic = errors.New("invalid wormhole payload magic")
)

type Signature struct {
	Index     uint8
	Signature [signatureLength]byte
}

type Vaa struct {
	Version          uint8
	GuardianSetIndex uint32
	Signatures       []Signature

	Timestamp        uint32
	Nonce            uint32
	EmitterChain     uint16
	EmitterAddress   common.Hash
	Sequence         uint64
	ConsistencyLevel uint8
	Payload          []byte
}

// ParseVaa decodes the v1 VAA binary envelope.
func ParseVaa(data []byte) (*Vaa, error) {
	if len(data) < 6 {
		return nil, errors.Wrap(ErrInvalidVaa, "too short")
	}
	v := &Vaa{
		Version:          data[0],
		GuardianSetIndex: binary.BigEndian.Uint32(data[1:5]),
	}
	if v.Version != VaaVersion {
		return nil, errors.Wrapf(ErrInvalidVaa, "unsupported version %d", v.Version)
	}

	numSignatures := int(data[5])
	off := 6
	if len(data) < off+numSignatures*signatureEntryLength+bodyHeaderLength {
		return nil, errors.Wrap(ErrInvalidVaa, "too short for signatures and body")
	}
	v.Signatures = make([]Signature, 0, numSignatures)
	for i := 0; i < numSignatures; i++ {
		var s Signature
		s.Index = data[off]
		copy(s.Signature[:], data[off+1:off+signatureEntryLength])
		v.Signatures = append(v.Signatures, s)
		off += signatureEntryLength
	}

	v.Timestamp = binary.BigEndian.Uint32(data[off : off+4])
	v.Nonce = binary.BigEndian.Uint32(data[off+4 : off+8])
	v.EmitterChain = binary.BigEndian.Uint16(data[off+8 : off+10])
	copy(v.EmitterAddress[:], data[off+10:off+42])
	v.Sequence = binary.BigEndian.Uint64(data[off+42 : off+50])
	v.ConsistencyLevel = data[off+50]
	v.Payload = bytes.Clone(data[off+bodyHeaderLength:])
	return v, nil
}

func (v *Vaa) body() []byte {
	buf := make([]byte, 0, bodyHeaderLength+len(v.Payload))
	buf = binary.BigEndian.AppendUint32(buf, v.Timestamp)
	buf = binary.BigEndian.AppendUint32(buf, v.Nonce)
	buf = binary.BigEndian.AppendUint16(buf, v.EmitterChain)
	buf = append(buf, v.EmitterAddress[:]...)
	buf = binary.BigEndian.AppendUint64(buf, v.Sequence)
	buf = append(buf, v.ConsistencyLevel)
	return append(buf, v.Payload...)
}

// Digest is the double keccak256 of the body, the value guardians sign.
func (v *Vaa) Digest() common.Hash {
	return crypto.Keccak256Hash(crypto.Keccak256(v.body()))
}

func (v *Vaa) Encode() ([]byte, error) {
	if len(v.Signatures) > 255 {
		return nil, fmt.Errorf("too many signatures: %d", len(v.Signatures))
	}
	buf := []byte{v.Version}
	buf = binary.BigEndian.AppendUint32(buf, v.GuardianSetIndex)
	buf = append(buf, uint8(len(v.Signatures)))
	for _, s := range v.Signatures {
		buf = append(buf, s.Index)
		buf = append(buf, s.Signature[:]...)
	}
	return append(buf, v.body()...), nil
}

type PayloadType uint8

const (
	PayloadType_Merkle PayloadType = 0
)

// WormholeMerkleRoot is the accumulator root guardians attested to for a slot.
type WormholeMerkleRoot struct {
	Slot     types.Slot
	RingSize uint32
	Root     common.Hash
}

type WormholeMessage struct {
	MajorVersion uint8
	MinorVersion uint8
	Merkle       *WormholeMerkleRoot
}

func ParseWormholeMessage(payload []byte) (*WormholeMessage, error) {
	// magic + major + minor + payload type
	if len(payload) < 7 {
		return nil, errors.Wrap(ErrInvalidPayload, "too short")
	}
	if !bytes.Equal(payload[:4], AccumulatorMagic[:]) {
		return nil, ErrInvalidPayloadMagic
	}
	msg := &WormholeMessage{
		MajorVersion: payload[4],
		MinorVersion: payload[5],
	}
	if msg.MajorVersion != 1 {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "major version %d", msg.MajorVersion)
	}

	switch PayloadType(payload[6]) {
	case PayloadType_Merkle:
		body := payload[7:]
		// slot + ring size + root; newer minor versions may append fields.
		if len(body) < 8+4+32 {
			return nil, errors.Wrap(ErrInvalidPayload, "merkle root payload too short")
		}
		root := &WormholeMerkleRoot{
			Slot:     binary.BigEndian.Uint64(body[0:8]),
			RingSize: binary.BigEndian.Uint32(body[8:12]),
		}
		copy(root.Root[:], body[12:44])
		msg.Merkle = root
	default:
		return nil, errors.Wrapf(ErrUnknownPayloadType, "type %d", payload[6])
	}
	return msg, nil
}

func NewMerkleRootMessage(root WormholeMerkleRoot) *WormholeMessage {
	return &WormholeMessage{
		MajorVersion: 1,
		MinorVersion: 0,
		Merkle:       &root,
	}
}

func (m *WormholeMessage) Encode() ([]byte, error) {
	if m.Merkle == nil {
		return nil, ErrUnknownPayloadType
	}
	buf := append([]byte{}, AccumulatorMagic[:]...)
	buf = append(buf, m.MajorVersion, m.MinorVersion, byte(PayloadType_Merkle))
	buf = binary.BigEndian.AppendUint64(buf, m.Merkle.Slot)
	buf = binary.BigEndian.AppendUint32(buf, m.Merkle.RingSize)
	return append(buf, m.Merkle.Root[:]...), nil
}

// ParseMerkleRootVaa parses the envelope and extracts the merkle root it attests to.
func ParseMerkleRootVaa(data []byte) (*Vaa, *WormholeMerkleRoot, error) {
	vaa, err := ParseVaa(data)
	if err != nil {
		return nil, nil, err
	}
	msg, err := ParseWormholeMessage(vaa.Payload)
	if err != nil {
		return nil, nil, err
	}
	return vaa, msg.Merkle, nil
}
