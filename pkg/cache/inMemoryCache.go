package cache

import (
	"context"
	"sync"

	"github.com/Layr-Labs/pricefeed-sidecar/pkg/messages"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/proofs/wormholeMerkle"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/types"
	"github.com/google/btree"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const btreeDegree = 8

// stateEntry carries the ordering key next to the state so lookups can pivot on a
// time alone.
type stateEntry struct {
	time  MessageStateTime
	state *MessageState
}

func lessStateEntry(a, b stateEntry) bool {
	return a.time.Less(b.time)
}

// InMemoryCache retains, per message state key, the size most recent states
// ordered by (publish time, slot).
type InMemoryCache struct {
	size   int
	logger *zap.Logger

	messageLock   sync.RWMutex
	messageStates map[MessageStateKey]*btree.BTreeG[stateEntry]

	accumulatorLock     sync.RWMutex
	accumulatorMessages *BoundedSlotMap[*types.AccumulatorMessages]

	wormholeLock         sync.RWMutex
	wormholeMerkleStates *BoundedSlotMap[*wormholeMerkle.WormholeMerkleState]
}

func NewInMemoryCache(size int, l *zap.Logger) (*InMemoryCache, error) {
	if size <= 0 {
		return nil, errors.Errorf("cache size must be positive, got %d", size)
	}
	return &InMemoryCache{
		size:                 size,
		logger:               l,
		messageStates:        make(map[MessageStateKey]*btree.BTreeG[stateEntry]),
		accumulatorMessages:  NewBoundedSlotMap[*types.AccumulatorMessages](size),
		wormholeMerkleStates: NewBoundedSlotMap[*wormholeMerkle.WormholeMerkleState](size),
	}, nil
}

func (c *InMemoryCache) Size() int {
	return c.size
}

// StoreMessageStates replaces any state with the same (publish time, slot) and evicts
// the oldest states beyond the retention size.
func (c *InMemoryCache) StoreMessageStates(ctx context.Context, states []*MessageState) error {
	c.messageLock.Lock()
	defer c.messageLock.Unlock()

	for _, state := range states {
		key := state.Key()
		tree, ok := c.messageStates[key]
		if !ok {
			tree = btree.NewG(btreeDegree, lessStateEntry)
			c.messageStates[key] = tree
		}
		tree.ReplaceOrInsert(stateEntry{time: state.Time(), state: state})
		for tree.Len() > c.size {
			tree.DeleteMin()
		}
	}
	return nil
}

func (c *InMemoryCache) MessageStateKeys(ctx context.Context) []MessageStateKey {
	c.messageLock.RLock()
	defer c.messageLock.RUnlock()

	keys := make([]MessageStateKey, 0, len(c.messageStates))
	for k := range c.messageStates {
		keys = append(keys, k)
	}
	return keys
}

func (c *InMemoryCache) PruneRemovedKeys(ctx context.Context, currentKeys map[MessageStateKey]struct{}) {
	writtenTypes := make(map[messages.MessageType]struct{})
	for k := range currentKeys {
		writtenTypes[k.Type] = struct{}{}
	}

	c.messageLock.Lock()
	defer c.messageLock.Unlock()

	for key := range c.messageStates {
		if _, ok := writtenTypes[key.Type]; !ok {
			continue
		}
		if _, ok := currentKeys[key]; !ok {
			c.logger.Sugar().Infow("Feed seems to be removed, removing it from cache",
				zap.String("feedId", key.FeedId.String()),
				zap.String("messageType", key.Type.String()),
			)
			delete(c.messageStates, key)
		}
	}
}

func (c *InMemoryCache) FetchMessageStates(
	ctx context.Context,
	ids []types.FeedId,
	requestTime types.RequestTime,
	filter MessageStateFilter,
) ([]*MessageState, error) {
	c.messageLock.RLock()
	defer c.messageLock.RUnlock()

	results := make([]*MessageState, 0, len(ids))
	for _, id := range ids {
		found := false
		for _, t := range messages.AllMessageTypes {
			if !filter.Matches(t) {
				continue
			}
			tree, ok := c.messageStates[MessageStateKey{FeedId: id, Type: t}]
			if !ok {
				if !filter.all {
					return nil, errors.Wrapf(ErrMessageNotFound, "feed %s", id)
				}
				continue
			}
			state := retrieveMessageState(tree, requestTime)
			if state == nil {
				return nil, errors.Wrapf(ErrMessageNotFound, "feed %s at %s", id, requestTime)
			}
			results = append(results, state)
			found = true
		}
		if !found {
			return nil, errors.Wrapf(ErrMessageNotFound, "feed %s", id)
		}
	}
	return results, nil
}

// firstAtOrAfter returns the lowest entry ordered at or after t.
func firstAtOrAfter(tree *btree.BTreeG[stateEntry], t MessageStateTime) *MessageState {
	var found *MessageState
	tree.AscendGreaterOrEqual(stateEntry{time: t}, func(e stateEntry) bool {
		found = e.state
		return false
	})
	return found
}

// retrieveMessageState resolves requestTime against states ordered by (publish time, slot).
func retrieveMessageState(tree *btree.BTreeG[stateEntry], requestTime types.RequestTime) *MessageState {
	latest, ok := tree.Max()
	if !ok {
		return nil
	}
	switch requestTime.Kind {
	case types.RequestTime_Latest:
		return latest.state
	case types.RequestTime_LatestTimeEarliestSlot:
		return firstAtOrAfter(tree, MessageStateTime{PublishTime: latest.time.PublishTime})
	case types.RequestTime_FirstAfter:
		oldest, _ := tree.Min()
		// Before the oldest retained state there is no telling what the closest one was.
		if requestTime.Timestamp < oldest.time.PublishTime {
			return nil
		}
		return firstAtOrAfter(tree, MessageStateTime{PublishTime: requestTime.Timestamp})
	case types.RequestTime_AtSlot:
		var found *MessageState
		tree.Descend(func(e stateEntry) bool {
			if e.state.Slot == requestTime.Slot {
				found = e.state
				return false
			}
			return true
		})
		return found
	default:
		return nil
	}
}

func (c *InMemoryCache) StoreAccumulatorMessages(ctx context.Context, acc *types.AccumulatorMessages) (bool, error) {
	c.accumulatorLock.Lock()
	defer c.accumulatorLock.Unlock()
	return c.accumulatorMessages.Insert(acc.Slot, acc), nil
}

// FetchAccumulatorMessages returns nil when the slot is not retained.
func (c *InMemoryCache) FetchAccumulatorMessages(ctx context.Context, slot types.Slot) (*types.AccumulatorMessages, error) {
	c.accumulatorLock.RLock()
	defer c.accumulatorLock.RUnlock()
	acc, _ := c.accumulatorMessages.Get(slot)
	return acc, nil
}

func (c *InMemoryCache) StoreWormholeMerkleState(ctx context.Context, state *wormholeMerkle.WormholeMerkleState) (bool, error) {
	c.wormholeLock.Lock()
	defer c.wormholeLock.Unlock()
	return c.wormholeMerkleStates.Insert(state.Root.Slot, state), nil
}

// FetchWormholeMerkleState returns nil when the slot is not retained.
func (c *InMemoryCache) FetchWormholeMerkleState(ctx context.Context, slot types.Slot) (*wormholeMerkle.WormholeMerkleState, error) {
	c.wormholeLock.RLock()
	defer c.wormholeLock.RUnlock()
	state, _ := c.wormholeMerkleStates.Get(slot)
	return state, nil
}
