package services

import (
	"context"
	"sync"
	"time"

	"github.com/moneytrail/apiserver/internal/mail"
	"github.com/moneytrail/apiserver/types"
)

// recordingSender keeps every message it is asked to deliver.
type recordingSender struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (r *recordingSender) Send(ctx context.Context, msg mail.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingCache counts invalidations and serves whatever was set while the
// user's generation was unchanged.
type recordingCache struct {
	mu          sync.Mutex
	entries     map[string]types.DashboardSummary
	generations map[string]int64
	invalidated []string
}

func newRecordingCache() *recordingCache {
	return &recordingCache{
		entries:     make(map[string]types.DashboardSummary),
		generations: make(map[string]int64),
	}
}

func (c *recordingCache) Get(ctx context.Context, userID string) (types.DashboardSummary, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[userID]
	return s, ok, nil
}

func (c *recordingCache) Generation(ctx context.Context, userID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[userID], nil
}

func (c *recordingCache) Set(ctx context.Context, userID string, gen int64, summary types.DashboardSummary) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[userID] != gen {
		return nil
	}
	c.entries[userID] = summary
	return nil
}

func (c *recordingCache) Invalidate(ctx context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
	c.generations[userID]++
	c.invalidated = append(c.invalidated, userID)
	return nil
}
