// Package cache holds verified message states and the two update halves they are
// assembled from.
package cache

import (
	"context"

	"github.com/Layr-Labs/pricefeed-sidecar/pkg/messages"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/proofs/wormholeMerkle"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/types"
	"github.com/pkg/errors"
)

var ErrMessageNotFound = errors.New("message not found")

type MessageStateKey struct {
	FeedId types.FeedId
	Type   messages.MessageType
}

// MessageStateTime orders states of one key: publish time first, slot second.
type MessageStateTime struct {
	PublishTime types.UnixTimestamp
	Slot        types.Slot
}

func (t MessageStateTime) Less(o MessageStateTime) bool {
	if t.PublishTime != o.PublishTime {
		return t.PublishTime < o.PublishTime
	}
	return t.Slot < o.Slot
}

type ProofSet struct {
	WormholeMerkleProof wormholeMerkle.WormholeMerkleMessageProof
}

// MessageState is one verified message as committed for a slot. It is never
// mutated after it is stored.
type MessageState struct {
	Slot    types.Slot
	Message messages.Message
	// RawMessage is kept because clients need the exact bytes the proof covers.
	RawMessage []byte
	ProofSet   ProofSet
	ReceivedAt types.UnixTimestamp
}

func (s *MessageState) Key() MessageStateKey {
	return MessageStateKey{FeedId: s.Message.FeedId(), Type: s.Message.Type()}
}

func (s *MessageState) Time() MessageStateTime {
	return MessageStateTime{PublishTime: s.Message.PublishTime(), Slot: s.Slot}
}

// MessageStateFilter selects which message types a fetch resolves.
type MessageStateFilter struct {
	all     bool
	msgType messages.MessageType
}

// FilterAll resolves every message type retained for a feed.
func FilterAll() MessageStateFilter {
	return MessageStateFilter{all: true}
}

func FilterOnly(t messages.MessageType) MessageStateFilter {
	return MessageStateFilter{msgType: t}
}

func (f MessageStateFilter) Matches(t messages.MessageType) bool {
	return f.all || f.msgType == t
}

// AggregateCache is everything the aggregator needs from a storage backend.
type AggregateCache interface {
	// StoreMessageStates applies the whole batch atomically.
	StoreMessageStates(ctx context.Context, states []*MessageState) error
	// FetchMessageStates fails with ErrMessageNotFound if any feed has no match.
	FetchMessageStates(ctx context.Context, ids []types.FeedId, requestTime types.RequestTime, filter MessageStateFilter) ([]*MessageState, error)
	MessageStateKeys(ctx context.Context) []MessageStateKey
	// PruneRemovedKeys drops retained keys missing from currentKeys, limited to
	// the message types present in currentKeys.
	PruneRemovedKeys(ctx context.Context, currentKeys map[MessageStateKey]struct{})

	// StoreAccumulatorMessages reports whether the slot was new.
	StoreAccumulatorMessages(ctx context.Context, acc *types.AccumulatorMessages) (bool, error)
	FetchAccumulatorMessages(ctx context.Context, slot types.Slot) (*types.AccumulatorMessages, error)
	// StoreWormholeMerkleState reports whether the slot was new.
	StoreWormholeMerkleState(ctx context.Context, state *wormholeMerkle.WormholeMerkleState) (bool, error)
	FetchWormholeMerkleState(ctx context.Context, slot types.Slot) (*wormholeMerkle.WormholeMerkleState, error)
}
