package management

import (
	"context"
	"sync"

	"injectionfilter/internal/kvstore"
)

// flakyStore fails every operation with err until failures reaches zero.
type flakyStore struct {
	kvstore.Store
	err      error
	failures int
	puts     int
}

func (s *flakyStore) fail() bool {
	if s.failures > 0 {
		s.failures--
		return true
	}
	return false
}

func (s *flakyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.fail() {
		return nil, false, s.err
	}
	return s.Store.Get(ctx, key)
}

func (s *flakyStore) Put(ctx context.Context, key string, value []byte) error {
	s.puts++
	if s.fail() {
		return s.err
	}
	return s.Store.Put(ctx, key, value)
}

func (s *flakyStore) Delete(ctx context.Context, key string) error {
	if s.fail() {
		return s.err
	}
	return s.Store.Delete(ctx, key)
}

func (s *flakyStore) FindAllWithKeyPrefix(ctx context.Context, prefix string) (map[string][]byte, error) {
	if s.fail() {
		return nil, s.err
	}
	return s.Store.FindAllWithKeyPrefix(ctx, prefix)
}

type publishedEvent struct {
	action  string
	key     string
	summary StoredFilterSummary
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) PublishFilterEvent(_ context.Context, action, key string, f StoredFilterSummary) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{action: action, key: key, summary: f})
	return p.err
}

func (p *recordingPublisher) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.action)
	}
	return out
}
