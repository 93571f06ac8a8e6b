package types

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Slot is the validator ledger sequence number an update originates from. It orders
// updates; it is not wall-clock time.
type Slot = uint64

// UnixTimestamp is seconds since the epoch. Always positive in practice but signed so
// durations can be computed by subtraction.
type UnixTimestamp = int64

type FeedId [32]byte

func (f FeedId) String() string {
	return hex.EncodeToString(f[:])
}

func (f FeedId) Hex() string {
	return hexutil.Encode(f[:])
}

func (f FeedId) Bytes() []byte {
	return f[:]
}

// ParseFeedId accepts a 32 byte hex string with or without the 0x prefix.
func ParseFeedId(s string) (FeedId, error) {
	var id FeedId
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid feed id '%s': %w", s, err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("invalid feed id '%s': expected %d bytes, got %d", s, len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

func FeedIdFromBytes(b []byte) (FeedId, error) {
	var id FeedId
	if len(b) != len(id) {
		return id, fmt.Errorf("invalid feed id length %d", len(b))
	}
	copy(id[:], b)
	return id, nil
}

type RequestTimeKind int

const (
	RequestTime_Latest RequestTimeKind = iota
	RequestTime_LatestTimeEarliestSlot
	RequestTime_FirstAfter
	RequestTime_AtSlot
)

// RequestTime selects which retained message state a query resolves to.
type RequestTime struct {
	Kind RequestTimeKind
	// Timestamp is set for RequestTime_FirstAfter.
	Timestamp UnixTimestamp
	// Slot is set for RequestTime_AtSlot.
	Slot Slot
}

func Latest() RequestTime {
	return RequestTime{Kind: RequestTime_Latest}
}

func LatestTimeEarliestSlot() RequestTime {
	return RequestTime{Kind: RequestTime_LatestTimeEarliestSlot}
}

func FirstAfter(ts UnixTimestamp) RequestTime {
	return RequestTime{Kind: RequestTime_FirstAfter, Timestamp: ts}
}

func AtSlot(slot Slot) RequestTime {
	return RequestTime{Kind: RequestTime_AtSlot, Slot: slot}
}

func (r RequestTime) String() string {
	switch r.Kind {
	case RequestTime_Latest:
		return "latest"
	case RequestTime_LatestTimeEarliestSlot:
		return "latest_time_earliest_slot"
	case RequestTime_FirstAfter:
		return fmt.Sprintf("first_after(%d)", r.Timestamp)
	case RequestTime_AtSlot:
		return fmt.Sprintf("at_slot(%d)", r.Slot)
	default:
		return "unknown"
	}
}

// AccumulatorMessages is the raw message batch half of an update for one slot.
type AccumulatorMessages struct {
	Magic       [4]byte
	Slot        Slot
	RingSize    uint32
	RawMessages [][]byte
}

func (a *AccumulatorMessages) RingIndex() uint32 {
	if a.RingSize == 0 {
		return 0
	}
	return uint32(a.Slot % uint64(a.RingSize))
}

type UpdateKind int

const (
	Update_Vaa UpdateKind = iota
	Update_AccumulatorMessages
)

// Update is one of the two independently delivered halves of a slot.
type Update struct {
	Kind                UpdateKind
	Vaa                 []byte
	AccumulatorMessages *AccumulatorMessages
}

func NewVaaUpdate(vaa []byte) Update {
	return Update{Kind: Update_Vaa, Vaa: vaa}
}

func NewAccumulatorMessagesUpdate(msgs *AccumulatorMessages) Update {
	return Update{Kind: Update_AccumulatorMessages, AccumulatorMessages: msgs}
}

type AggregationEventKind int

const (
	AggregationEvent_New AggregationEventKind = iota
	AggregationEvent_OutOfOrder
)

func (k AggregationEventKind) String() string {
	if k == AggregationEvent_New {
		return "new"
	}
	return "out_of_order"
}

// AggregationEvent is emitted once for every slot that completes assembly.
type AggregationEvent struct {
	Kind AggregationEventKind
	Slot Slot
}

func NewAggregationEvent(slot Slot) AggregationEvent {
	return AggregationEvent{Kind: AggregationEvent_New, Slot: slot}
}

func OutOfOrderAggregationEvent(slot Slot) AggregationEvent {
	return AggregationEvent{Kind: AggregationEvent_OutOfOrder, Slot: slot}
}

func (e AggregationEvent) String() string {
	return fmt.Sprintf("%s{slot: %d}", e.Kind, e.Slot)
}
