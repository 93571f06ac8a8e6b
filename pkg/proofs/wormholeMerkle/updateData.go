package wormholeMerkle

import (
	"bytes"
	"encoding/binary"
	"math"
	"sort"

	"github.com/Layr-Labs/pricefeed-sidecar/pkg/types"
	"github.com/pkg/errors"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"github.com/wealdtech/go-merkletree/v2"
)

const (
	// MaxMessagesPerUpdate is bounded by the one byte update count on the wire.
	MaxMessagesPerUpdate = 255

	UpdateDataMajorVersion = 1
	UpdateDataMinorVersion = 0

	proofType_WormholeMerkle uint8 = 0
	merkleHashSize               = 32
)

var (
	UpdateDataMagic = [4]byte{'P', 'N', 'A', 'U'}

	ErrInvalidUpdateData = errors.New("invalid accumulator update data")
)

// MerkleUpdate is one message and its inclusion proof inside update data.
type MerkleUpdate struct {
	Message []byte
	Proof   *merkletree.Proof
}

// AccumulatorUpdateData is the client facing payload: a VAA plus the messages it
// proves. Clients submit it on chain to verify prices.
type AccumulatorUpdateData struct {
	MajorVersion uint8
	MinorVersion uint8
	Vaa          []byte
	Updates      []MerkleUpdate
}

// ConstructUpdateData groups messages by slot in ascending slot order and encodes
// each group, at most MaxMessagesPerUpdate messages at a time. Every proof is checked
// against the root carried by the group's VAA.
func ConstructUpdateData(msgs []RawMessageWithMerkleProof) ([][]byte, error) {
	sorted := make([]RawMessageWithMerkleProof, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Slot < sorted[j].Slot
	})

	om := orderedmap.New[types.Slot, []RawMessageWithMerkleProof]()
	for _, m := range sorted {
		existing, _ := om.Get(m.Slot)
		om.Set(m.Slot, append(existing, m))
	}

	updateData := make([][]byte, 0)
	for pair := om.Oldest(); pair != nil; pair = pair.Next() {
		group := pair.Value
		vaa := group[0].Proof.Vaa
		root, err := RootFromVaa(vaa)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse vaa for slot %d", pair.Key)
		}

		for start := 0; start < len(group); start += MaxMessagesPerUpdate {
			end := min(start+MaxMessagesPerUpdate, len(group))
			data := &AccumulatorUpdateData{
				MajorVersion: UpdateDataMajorVersion,
				MinorVersion: UpdateDataMinorVersion,
				Vaa:          vaa,
				Updates:      make([]MerkleUpdate, 0, end-start),
			}
			for _, m := range group[start:end] {
				if err := ensureValidProof(root, m); err != nil {
					return nil, err
				}
				data.Updates = append(data.Updates, MerkleUpdate{Message: m.RawMessage, Proof: m.Proof.Proof})
			}
			encoded, err := data.Encode()
			if err != nil {
				return nil, err
			}
			updateData = append(updateData, encoded)
		}
	}
	return updateData, nil
}

// Encode writes the big-endian update data layout:
//
//	magic[4] major u8 minor u8 trailing_len u8 proof_type u8
//	vaa_len u16 vaa
//	num_updates u8 { msg_len u16 msg proof_index u64 num_hashes u8 hashes[32]... }
func (d *AccumulatorUpdateData) Encode() ([]byte, error) {
	if len(d.Vaa) > math.MaxUint16 {
		return nil, errors.Wrap(ErrInvalidUpdateData, "vaa too long")
	}
	if len(d.Updates) > MaxMessagesPerUpdate {
		return nil, errors.Wrapf(ErrInvalidUpdateData, "too many updates: %d", len(d.Updates))
	}
	buf := append([]byte{}, UpdateDataMagic[:]...)
	buf = append(buf, d.MajorVersion, d.MinorVersion, 0, proofType_WormholeMerkle)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(d.Vaa)))
	buf = append(buf, d.Vaa...)
	buf = append(buf, uint8(len(d.Updates)))
	for _, u := range d.Updates {
		if len(u.Message) > math.MaxUint16 {
			return nil, errors.Wrap(ErrInvalidUpdateData, "message too long")
		}
		if u.Proof == nil || len(u.Proof.Hashes) > math.MaxUint8 {
			return nil, errors.Wrap(ErrInvalidUpdateData, "invalid proof")
		}
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(u.Message)))
		buf = append(buf, u.Message...)
		buf = binary.BigEndian.AppendUint64(buf, u.Proof.Index)
		buf = append(buf, uint8(len(u.Proof.Hashes)))
		for _, h := range u.Proof.Hashes {
			if len(h) != merkleHashSize {
				return nil, errors.Wrapf(ErrInvalidUpdateData, "proof hash of %d bytes", len(h))
			}
			buf = append(buf, h...)
		}
	}
	return buf, nil
}

type cursor struct {
	data []byte
	off  int
}

func (c *cursor) next(n int) ([]byte, error) {
	if c.off+n > len(c.data) {
		return nil, errors.Wrap(ErrInvalidUpdateData, "unexpected end of data")
	}
	b := c.data[c.off : c.off+n]
	c.off += n
	return b, nil
}

// DecodeUpdateData parses the output of AccumulatorUpdateData.Encode.
func DecodeUpdateData(data []byte) (*AccumulatorUpdateData, error) {
	c := &cursor{data: data}
	header, err := c.next(8)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(header[:4], UpdateDataMagic[:]) {
		return nil, errors.Wrap(ErrInvalidUpdateData, "bad magic")
	}
	d := &AccumulatorUpdateData{MajorVersion: header[4], MinorVersion: header[5]}
	if d.MajorVersion != UpdateDataMajorVersion {
		return nil, errors.Wrapf(ErrInvalidUpdateData, "unsupported major version %d", d.MajorVersion)
	}
	if _, err := c.next(int(header[6])); err != nil {
		return nil, err
	}
	if header[7] != proofType_WormholeMerkle {
		return nil, errors.Wrapf(ErrInvalidUpdateData, "unsupported proof type %d", header[7])
	}

	b, err := c.next(2)
	if err != nil {
		return nil, err
	}
	if d.Vaa, err = c.next(int(binary.BigEndian.Uint16(b))); err != nil {
		return nil, err
	}
	d.Vaa = bytes.Clone(d.Vaa)

	b, err = c.next(1)
	if err != nil {
		return nil, err
	}
	numUpdates := int(b[0])
	d.Updates = make([]MerkleUpdate, 0, numUpdates)
	for i := 0; i < numUpdates; i++ {
		if b, err = c.next(2); err != nil {
			return nil, err
		}
		msg, err := c.next(int(binary.BigEndian.Uint16(b)))
		if err != nil {
			return nil, err
		}
		if b, err = c.next(9); err != nil {
			return nil, err
		}
		proof := &merkletree.Proof{
			Index:  binary.BigEndian.Uint64(b[:8]),
			Hashes: make([][]byte, 0, b[8]),
		}
		for j := 0; j < int(b[8]); j++ {
			h, err := c.next(merkleHashSize)
			if err != nil {
				return nil, err
			}
			proof.Hashes = append(proof.Hashes, bytes.Clone(h))
		}
		d.Updates = append(d.Updates, MerkleUpdate{Message: bytes.Clone(msg), Proof: proof})
	}
	if c.off != len(data) {
		return nil, errors.Wrap(ErrInvalidUpdateData, "trailing bytes")
	}
	return d, nil
}
