package messages

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"

	"github.com/Layr-Labs/pricefeed-sidecar/pkg/types/numbers"
	"github.com/pkg/errors"
)

const int128Size = 16

var (
	ErrUnexpectedEOF  = errors.New("unexpected end of message")
	ErrTrailingBytes  = errors.New("trailing bytes after message")
	ErrUnknownMessage = errors.New("unknown message type")
)

// Decoder turns one raw accumulator message into a Message.
type Decoder interface {
	Decode(raw []byte) (Message, error)
}

// WireCodec implements the big-endian accumulator message layout: a one byte type
// discriminant followed by the fixed width fields of the message.
type WireCodec struct{}

func NewWireCodec() *WireCodec {
	return &WireCodec{}
}

func (WireCodec) Decode(raw []byte) (Message, error) {
	return Decode(raw)
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.buf) {
		return nil, ErrUnexpectedEOF
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) u8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) u64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *reader) i64() (int64, error) {
	v, err := r.u64()
	return int64(v), err
}

func (r *reader) i32() (int32, error) {
	v, err := r.u32()
	return int32(v), err
}

func (r *reader) bytes32() ([32]byte, error) {
	var out [32]byte
	b, err := r.take(32)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

func (r *reader) u128() (*big.Int, error) {
	b, err := r.take(int128Size)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}

// i128 reads a two's complement signed 128 bit integer.
func (r *reader) i128() (*big.Int, error) {
	v, err := r.u128()
	if err != nil {
		return nil, err
	}
	if v.Bit(127) == 1 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), 128))
	}
	return v, nil
}

func (r *reader) done() error {
	if r.off != len(r.buf) {
		return ErrTrailingBytes
	}
	return nil
}

func Decode(raw []byte) (Message, error) {
	r := &reader{buf: raw}
	discriminant, err := r.u8()
	if err != nil {
		return nil, err
	}

	var msg Message
	switch MessageType(discriminant) {
	case MessageType_PriceFeed:
		msg, err = decodePriceFeed(r)
	case MessageType_Twap:
		msg, err = decodeTwap(r)
	case MessageType_PublisherStakeCaps:
		msg, err = decodePublisherStakeCaps(r)
	default:
		return nil, errors.Wrapf(ErrUnknownMessage, "discriminant %d", discriminant)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s message", MessageType(discriminant))
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return msg, nil
}

func decodePriceFeed(r *reader) (*PriceFeedMessage, error) {
	var (
		m   PriceFeedMessage
		err error
	)
	if m.Id, err = r.bytes32(); err != nil {
		return nil, err
	}
	if m.Price, err = r.i64(); err != nil {
		return nil, err
	}
	if m.Conf, err = r.u64(); err != nil {
		return nil, err
	}
	if m.Exponent, err = r.i32(); err != nil {
		return nil, err
	}
	if m.Time, err = r.i64(); err != nil {
		return nil, err
	}
	if m.PrevPublishTime, err = r.i64(); err != nil {
		return nil, err
	}
	if m.EmaPrice, err = r.i64(); err != nil {
		return nil, err
	}
	if m.EmaConf, err = r.u64(); err != nil {
		return nil, err
	}
	return &m, nil
}

func decodeTwap(r *reader) (*TwapMessage, error) {
	var (
		m   TwapMessage
		err error
	)
	if m.Id, err = r.bytes32(); err != nil {
		return nil, err
	}
	if m.CumulativePrice, err = r.i128(); err != nil {
		return nil, err
	}
	if m.CumulativeConf, err = r.u128(); err != nil {
		return nil, err
	}
	if m.NumDownSlots, err = r.u64(); err != nil {
		return nil, err
	}
	if m.Exponent, err = r.i32(); err != nil {
		return nil, err
	}
	if m.Time, err = r.i64(); err != nil {
		return nil, err
	}
	if m.PrevPublishTime, err = r.i64(); err != nil {
		return nil, err
	}
	if m.PublishSlot, err = r.u64(); err != nil {
		return nil, err
	}
	return &m, nil
}

func decodePublisherStakeCaps(r *reader) (*PublisherStakeCapsMessage, error) {
	var (
		m   PublisherStakeCapsMessage
		err error
	)
	if m.Time, err = r.i64(); err != nil {
		return nil, err
	}
	count, err := r.u16()
	if err != nil {
		return nil, err
	}
	m.Caps = make([]PublisherStakeCap, 0, count)
	for i := 0; i < int(count); i++ {
		var c PublisherStakeCap
		if c.Publisher, err = r.bytes32(); err != nil {
			return nil, err
		}
		if c.Cap, err = r.u64(); err != nil {
			return nil, err
		}
		m.Caps = append(m.Caps, c)
	}
	return &m, nil
}

func putInt128(buf []byte, v *big.Int) []byte {
	out := make([]byte, int128Size)
	tmp := new(big.Int).Set(v)
	if tmp.Sign() < 0 {
		tmp.Add(tmp, new(big.Int).Lsh(big.NewInt(1), 128))
	}
	tmp.FillBytes(out)
	return append(buf, out...)
}

// Encode is the inverse of Decode.
func Encode(msg Message) ([]byte, error) {
	buf := []byte{byte(msg.Type())}
	switch m := msg.(type) {
	case *PriceFeedMessage:
		buf = append(buf, m.Id[:]...)
		buf = binary.BigEndian.AppendUint64(buf, uint64(m.Price))
		buf = binary.BigEndian.AppendUint64(buf, m.Conf)
		buf = binary.BigEndian.AppendUint32(buf, uint32(m.Exponent))
		buf = binary.BigEndian.AppendUint64(buf, uint64(m.Time))
		buf = binary.BigEndian.AppendUint64(buf, uint64(m.PrevPublishTime))
		buf = binary.BigEndian.AppendUint64(buf, uint64(m.EmaPrice))
		buf = binary.BigEndian.AppendUint64(buf, m.EmaConf)
	case *TwapMessage:
		if !numbers.FitsInt128(m.CumulativePrice) {
			return nil, fmt.Errorf("cumulative price does not fit in int128")
		}
		if !numbers.FitsUint128(m.CumulativeConf) {
			return nil, fmt.Errorf("cumulative conf does not fit in uint128")
		}
		buf = append(buf, m.Id[:]...)
		buf = putInt128(buf, m.CumulativePrice)
		buf = putInt128(buf, m.CumulativeConf)
		buf = binary.BigEndian.AppendUint64(buf, m.NumDownSlots)
		buf = binary.BigEndian.AppendUint32(buf, uint32(m.Exponent))
		buf = binary.BigEndian.AppendUint64(buf, uint64(m.Time))
		buf = binary.BigEndian.AppendUint64(buf, uint64(m.PrevPublishTime))
		buf = binary.BigEndian.AppendUint64(buf, m.PublishSlot)
	case *PublisherStakeCapsMessage:
		if len(m.Caps) > math.MaxUint16 {
			return nil, fmt.Errorf("too many publisher stake caps: %d", len(m.Caps))
		}
		buf = binary.BigEndian.AppendUint64(buf, uint64(m.Time))
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(m.Caps)))
		for _, c := range m.Caps {
			buf = append(buf, c.Publisher[:]...)
			buf = binary.BigEndian.AppendUint64(buf, c.Cap)
		}
	default:
		return nil, errors.Wrapf(ErrUnknownMessage, "%T", msg)
	}
	return buf, nil
}
