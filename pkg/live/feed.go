// Package live delivers binding updates while a dashboard is in live mode.
package live

import (
	"context"
	"errors"
	"sync"

	"github.com/oakwood-commons/dashx/pkg/binding"
)

// ErrClosed is returned by Subscribe after Close.
var ErrClosed = errors.New("live: source closed")

type subscriber struct {
	ctx context.Context
	ch  chan binding.Update
}

// Feed is an in-memory source. Updates published for a dashboard reach every
// subscriber of that dashboard in publish order.
type Feed struct {
	buffer int

	mu     sync.Mutex
	subs   map[string][]*subscriber
	closed bool
}

// NewFeed returns a feed whose subscriber channels hold buffer updates.
func NewFeed(buffer int) *Feed {
	if buffer < 0 {
		buffer = 0
	}
	return &Feed{buffer: buffer, subs: make(map[string][]*subscriber)}
}

// Subscribe registers for updates to fullName until ctx is done.
func (f *Feed) Subscribe(ctx context.Context, fullName string) (<-chan binding.Update, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	sub := &subscriber{ctx: ctx, ch: make(chan binding.Update, f.buffer)}
	f.subs[fullName] = append(f.subs[fullName], sub)
	go func() {
		<-ctx.Done()
		f.remove(fullName, sub)
	}()
	return sub.ch, nil
}

func (f *Feed) remove(fullName string, sub *subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.subs[fullName]
	for i, s := range list {
		if s == sub {
			f.subs[fullName] = append(list[:i:i], list[i+1:]...)
			close(sub.ch)
			break
		}
	}
	if len(f.subs[fullName]) == 0 {
		delete(f.subs, fullName)
	}
}

// Publish sends u to the subscribers of fullName and returns how many
// received it. A send blocks until the subscriber reads or unsubscribes.
func (f *Feed) Publish(fullName string, u binding.Update) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	delivered := 0
	for _, sub := range f.subs[fullName] {
		select {
		case sub.ch <- u:
			delivered++
		case <-sub.ctx.Done():
		}
	}
	return delivered
}

// Close stops new subscriptions. Existing ones end with their contexts.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}
