package service

import (
	"sync"

	"wasender/internal/models"
)

const subscriberBuffer = 64

// ProgressHub fans campaign progress entries out to observers (the UI event
// stream). Slow subscribers have entries dropped rather than blocking the
// dispatch pipeline.
type ProgressHub struct {
	mu   sync.Mutex
	subs map[string]map[chan models.ProgressEntry]struct{}
}

func NewProgressHub() *ProgressHub {
	return &ProgressHub{
		subs: make(map[string]map[chan models.ProgressEntry]struct{}),
	}
}

// Subscribe registers an observer for one campaign's progress entries. The
// returned cancel function must be called to release the subscription.
func (h *ProgressHub) Subscribe(campaignID string) (<-chan models.ProgressEntry, func()) {
	ch := make(chan models.ProgressEntry, subscriberBuffer)

	h.mu.Lock()
	if h.subs[campaignID] == nil {
		h.subs[campaignID] = make(map[chan models.ProgressEntry]struct{})
	}
	h.subs[campaignID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.subs[campaignID]; ok {
			if _, subscribed := set[ch]; subscribed {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(h.subs, campaignID)
			}
		}
	}

	return ch, cancel
}

// Publish delivers an entry to all subscribers of its campaign.
func (h *ProgressHub) Publish(entry models.ProgressEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[entry.CampaignID] {
		select {
		case ch <- entry:
		default:
			// Subscriber is not keeping up; drop the entry
		}
	}
}
