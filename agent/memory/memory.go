// Package memory keeps per-thread conversation transcripts for agents
// that carry cross-turn memory.
package memory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"
)

var ErrInvalidThread = errors.New("thread id is empty")

// Store is the persistence contract used by memory-carrying agents.
// Load returns an empty transcript for unknown threads.
type Store interface {
	Load(ctx context.Context, threadID string) ([]*schema.Message, error)
	Save(ctx context.Context, threadID string, messages []*schema.Message) error
	Forget(ctx context.Context, threadID string) error
	// Clear drops every thread whose id starts with prefix; "" drops all.
	Clear(ctx context.Context, prefix string) error
}

// InProcessStore keeps transcripts in a map; contents die with the process.
type InProcessStore struct {
	mu      sync.RWMutex
	threads map[string][]*schema.Message
}

func NewInProcessStore() *InProcessStore {
	return &InProcessStore{threads: make(map[string][]*schema.Message)}
}

func (s *InProcessStore) Load(_ context.Context, threadID string) ([]*schema.Message, error) {
	if strings.TrimSpace(threadID) == "" {
		return nil, ErrInvalidThread
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.threads[threadID]
	copied := make([]*schema.Message, len(stored))
	copy(copied, stored)
	return copied, nil
}

func (s *InProcessStore) Save(_ context.Context, threadID string, messages []*schema.Message) error {
	if strings.TrimSpace(threadID) == "" {
		return ErrInvalidThread
	}
	copied := make([]*schema.Message, len(messages))
	copy(copied, messages)

	s.mu.Lock()
	s.threads[threadID] = copied
	s.mu.Unlock()
	return nil
}

func (s *InProcessStore) Forget(_ context.Context, threadID string) error {
	if strings.TrimSpace(threadID) == "" {
		return ErrInvalidThread
	}
	s.mu.Lock()
	delete(s.threads, threadID)
	s.mu.Unlock()
	return nil
}

func (s *InProcessStore) Clear(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for threadID := range s.threads {
		if strings.HasPrefix(threadID, prefix) {
			delete(s.threads, threadID)
		}
	}
	return nil
}

// Scoped partitions store so agents of different models never read each
// other's transcripts. Thread ids are stored as namespace + "/" + id.
func Scoped(store Store, namespace string) Store {
	return &scopedStore{inner: store, prefix: namespace + "/"}
}

type scopedStore struct {
	inner  Store
	prefix string
}

func (s *scopedStore) key(threadID string) (string, error) {
	if strings.TrimSpace(threadID) == "" {
		return "", ErrInvalidThread
	}
	return s.prefix + threadID, nil
}

func (s *scopedStore) Load(ctx context.Context, threadID string) ([]*schema.Message, error) {
	k, err := s.key(threadID)
	if err != nil {
		return nil, err
	}
	return s.inner.Load(ctx, k)
}

func (s *scopedStore) Save(ctx context.Context, threadID string, messages []*schema.Message) error {
	k, err := s.key(threadID)
	if err != nil {
		return err
	}
	return s.inner.Save(ctx, k, messages)
}

func (s *scopedStore) Forget(ctx context.Context, threadID string) error {
	k, err := s.key(threadID)
	if err != nil {
		return err
	}
	return s.inner.Forget(ctx, k)
}

func (s *scopedStore) Clear(ctx context.Context, prefix string) error {
	return s.inner.Clear(ctx, s.prefix+prefix)
}
