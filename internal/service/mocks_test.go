package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"wasender/internal/models"
)

// fakeDB is an in-memory stand-in for the sqlite layer, implementing both
// CampaignDatabase and PoolDatabase.
type fakeDB struct {
	mu        sync.Mutex
	campaigns map[string]*models.Campaign
	progress  map[string][]models.ProgressEntry
	numbers   map[string]*models.VirtualNumber
	seq       int
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		campaigns: make(map[string]*models.Campaign),
		progress:  make(map[string][]models.ProgressEntry),
		numbers:   make(map[string]*models.VirtualNumber),
	}
}

func (f *fakeDB) SaveCampaign(ctx context.Context, c *models.Campaign) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	f.campaigns[c.ID] = &cp
	return nil
}

func (f *fakeDB) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeDB) ListCampaignsByStatus(ctx context.Context, status models.CampaignStatus) ([]*models.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Campaign
	for _, c := range f.campaigns {
		if c.Status == status {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeDB) UpdateCampaignStatus(ctx context.Context, id string, from []models.CampaignStatus, to models.CampaignStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[id]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if c.Status == s {
			c.Status = to
			c.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDB) ClearCampaignDraft(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.campaigns[id]; ok {
		c.Message = ""
		c.Recipients = nil
	}
	return nil
}

func (f *fakeDB) AppendProgress(ctx context.Context, campaignID, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.progress[campaignID] = append(f.progress[campaignID], models.ProgressEntry{
		Seq:        f.seq,
		CampaignID: campaignID,
		Label:      label,
		CreatedAt:  time.Now(),
	})
	return nil
}

func (f *fakeDB) GetProgress(ctx context.Context, campaignID string) ([]models.ProgressEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.ProgressEntry, len(f.progress[campaignID]))
	copy(out, f.progress[campaignID])
	return out, nil
}

func (f *fakeDB) SaveVirtualNumber(ctx context.Context, n *models.VirtualNumber) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *n
	f.numbers[n.ID] = &cp
	return nil
}

func (f *fakeDB) ListVirtualNumbers(ctx context.Context) ([]*models.VirtualNumber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.VirtualNumber
	for _, n := range f.numbers {
		cp := *n
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeDB) UpdateNumberStatus(ctx context.Context, id string, status models.NumberStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.numbers[id]; ok {
		n.Status = status
	}
	return nil
}

func (f *fakeDB) DeleteVirtualNumber(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.numbers, id)
	return nil
}

func (f *fakeDB) progressLabels(campaignID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.progress[campaignID] {
		out = append(out, e.Label)
	}
	return out
}

// sentBatch records one delivery attempt seen by the fake sender.
type sentBatch struct {
	From       string
	Recipients []string
}

// fakeSender implements BatchSender with scripted per-call outcomes.
type fakeSender struct {
	mu      sync.Mutex
	calls   []sentBatch
	outcome func(call int, recipients []string) (int, error)
	onSend  func(call int)
}

func newFakeSender() *fakeSender {
	return &fakeSender{}
}

func (f *fakeSender) SendBatch(ctx context.Context, fromNumber string, campaign *models.Campaign, recipients []string) (int, error) {
	f.mu.Lock()
	call := len(f.calls)
	f.calls = append(f.calls, sentBatch{From: fromNumber, Recipients: recipients})
	outcome := f.outcome
	onSend := f.onSend
	f.mu.Unlock()

	if onSend != nil {
		onSend(call)
	}
	if outcome != nil {
		return outcome(call, recipients)
	}
	return len(recipients), nil
}

func (f *fakeSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
