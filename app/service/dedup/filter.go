package dedup

import (
	"context"
	"sync"
	"time"

	"salesbot/app/util/clock"
)

type OutboundRecord struct {
	Text string
	At   time.Time
}

// Filter suppresses repeated inbound and outbound traffic for one session.
type Filter struct {
	clk            clock.Clock
	inboundWindow  time.Duration
	outboundWindow time.Duration
	store          SignatureStore
	recent         *RecentIDs

	mu       sync.Mutex
	outbound map[string]OutboundRecord
}

func NewFilter(clk clock.Clock, inboundWindow, outboundWindow time.Duration, recentIDs int, store SignatureStore) *Filter {
	if store == nil {
		store = NewMemoryStore(clk)
	}

	return &Filter{
		clk:            clk,
		inboundWindow:  inboundWindow,
		outboundWindow: outboundWindow,
		store:          store,
		recent:         NewRecentIDs(recentIDs),
		outbound:       make(map[string]OutboundRecord),
	}
}

// SeenMessageID records a gateway message id and reports whether it was
// already processed. Empty ids are never considered seen.
func (f *Filter) SeenMessageID(id string) bool {
	if id == "" {
		return false
	}

	return f.recent.Add(id)
}

// AdmitInbound reports whether (chatID, text) was not accepted within the
// inbound window, and remembers it.
func (f *Filter) AdmitInbound(ctx context.Context, chatID, text string) bool {
	return f.store.Admit(ctx, "in:"+chatID+"\x00"+text, f.inboundWindow)
}

// ShouldSend is false when the same text went to chatID within the outbound
// window.
func (f *Filter) ShouldSend(chatID, text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	last, ok := f.outbound[chatID]
	if !ok || last.Text != text {
		return true
	}

	return f.clk.Now().Sub(last.At) >= f.outboundWindow
}

func (f *Filter) RecordSent(chatID, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.outbound[chatID] = OutboundRecord{Text: text, At: f.clk.Now()}
}

func (f *Filter) LastSent(chatID string) (OutboundRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.outbound[chatID]
	return rec, ok
}
