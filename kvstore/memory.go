package kvstore

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

const subscriberBuffer = 64

// MemoryStore keeps values in process. Used by tests and single-node setups.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte

	subMu sync.RWMutex
	subs  map[chan Change]struct{}

	log logrus.FieldLogger
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string][]byte),
		subs:   make(map[chan Change]struct{}),
		log:    logrus.StandardLogger(),
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, origin string) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	// emit under mu so subscribers see changes in the order they were stored
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = stored
	s.emit(Change{Key: key, Value: stored, Origin: origin})
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string, origin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	s.emit(Change{Key: key, Deleted: true, Origin: origin})
	return nil
}

func (s *MemoryStore) Subscribe(ctx context.Context) (<-chan Change, error) {
	ch := make(chan Change, subscriberBuffer)

	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	go func() {
		<-ctx.Done()
		s.subMu.Lock()
		delete(s.subs, ch)
		close(ch)
		s.subMu.Unlock()
	}()

	return ch, nil
}

// SubscriberCount returns the number of live subscriptions.
func (s *MemoryStore) SubscriberCount() int {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	return len(s.subs)
}

func (s *MemoryStore) emit(c Change) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for ch := range s.subs {
		select {
		case ch <- c:
		default:
			s.log.WithField("key", c.Key).Warn("kvstore: subscriber buffer full, change dropped")
		}
	}
}
