package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"wasender/internal/errors"
	"wasender/internal/metrics"
	"wasender/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PoolDatabase is the persistence surface the pool needs for number records.
type PoolDatabase interface {
	SaveVirtualNumber(ctx context.Context, n *models.VirtualNumber) error
	ListVirtualNumbers(ctx context.Context) ([]*models.VirtualNumber, error)
	UpdateNumberStatus(ctx context.Context, id string, status models.NumberStatus) error
	DeleteVirtualNumber(ctx context.Context, id string) error
}

// NumberPool manages the shared set of virtual sender identities. All
// mutating operations are serialized by one mutex so that concurrent
// dispatches never receive overlapping numbers. Number records persist in the
// database; allocation bookkeeping and rolling failure windows are transient.
type NumberPool struct {
	mu        sync.Mutex
	db        PoolDatabase
	cfg       models.PoolConfig
	logger    *logrus.Logger
	numbers   map[string]*models.VirtualNumber
	allocated map[string]bool
	failures  map[string][]time.Time
	now       func() time.Time
}

func NewNumberPool(ctx context.Context, db PoolDatabase, cfg models.PoolConfig, logger *logrus.Logger) (*NumberPool, error) {
	stored, err := db.ListVirtualNumbers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load virtual numbers: %w", err)
	}

	numbers := make(map[string]*models.VirtualNumber, len(stored))
	for _, n := range stored {
		numbers[n.ID] = n
	}

	return &NumberPool{
		db:        db,
		cfg:       cfg,
		logger:    logger,
		numbers:   numbers,
		allocated: make(map[string]bool),
		failures:  make(map[string][]time.Time),
		now:       time.Now,
	}, nil
}

// Allocate reserves up to count ACTIVE numbers, preferring those with the
// longest remaining time-to-expiry. When fewer than count are available it
// returns the partial set together with a POOL_EXHAUSTED error; the caller is
// expected to degrade rather than block.
func (p *NumberPool) Allocate(ctx context.Context, count int, excludeCountries []string) ([]*models.VirtualNumber, error) {
	if count <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "allocation count must be positive")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.sweepExpiredLocked(ctx); err != nil {
		return nil, err
	}

	excluded := make(map[string]struct{}, len(excludeCountries))
	for _, c := range excludeCountries {
		excluded[c] = struct{}{}
	}

	candidates := make([]*models.VirtualNumber, 0, len(p.numbers))
	for _, n := range p.numbers {
		if n.Status != models.NumberStatusActive || p.allocated[n.ID] {
			continue
		}
		if _, skip := excluded[n.CountryCode]; skip {
			continue
		}
		candidates = append(candidates, n)
	}

	// Longest remaining time-to-expiry first, to reduce mid-campaign expiry
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].ExpiresAt.Equal(candidates[j].ExpiresAt) {
			return candidates[i].ExpiresAt.After(candidates[j].ExpiresAt)
		}
		return candidates[i].ID < candidates[j].ID
	})

	taken := candidates
	if len(taken) > count {
		taken = taken[:count]
	}
	for _, n := range taken {
		p.allocated[n.ID] = true
	}

	metrics.SetGauge("pool_allocated", float64(len(p.allocated)), nil, "Currently allocated virtual numbers")

	if len(taken) < count {
		return taken, errors.New(errors.ErrCodePoolExhausted,
			fmt.Sprintf("requested %d numbers, only %d available", count, len(taken)))
	}
	return taken, nil
}

// Release returns an allocated number to the available set. Numbers within
// the expiry safety margin are retired instead of re-released.
func (p *NumberPool) Release(ctx context.Context, numberID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	n, ok := p.numbers[numberID]
	if !ok {
		delete(p.allocated, numberID)
		return errors.New(errors.ErrCodeNotFound, "unknown virtual number: "+numberID)
	}

	delete(p.allocated, numberID)

	margin := time.Duration(p.cfg.ExpiryMarginMin) * time.Minute
	if p.now().Add(margin).After(n.ExpiresAt) {
		p.logger.WithFields(logrus.Fields{
			"number":    n.ID,
			"expiresAt": n.ExpiresAt,
		}).Info("Retiring virtual number nearing expiry")
		return p.removeLocked(ctx, n.ID)
	}

	metrics.SetGauge("pool_allocated", float64(len(p.allocated)), nil, "Currently allocated virtual numbers")
	return nil
}

// ReportFailure records a delivery failure for a number. Exceeding the ban
// threshold within the rolling window bans the number immediately and
// irrevocably.
func (p *NumberPool) ReportFailure(ctx context.Context, numberID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	n, ok := p.numbers[numberID]
	if !ok {
		return errors.New(errors.ErrCodeNotFound, "unknown virtual number: "+numberID)
	}
	if n.Status == models.NumberStatusBanned {
		return nil
	}

	now := p.now()
	window := time.Duration(p.cfg.BanWindowMin) * time.Minute
	recent := p.failures[numberID][:0]
	for _, ts := range p.failures[numberID] {
		if now.Sub(ts) < window {
			recent = append(recent, ts)
		}
	}
	recent = append(recent, now)
	p.failures[numberID] = recent

	if len(recent) >= p.cfg.BanThreshold {
		n.Status = models.NumberStatusBanned
		delete(p.allocated, numberID)
		delete(p.failures, numberID)
		if err := p.db.UpdateNumberStatus(ctx, numberID, models.NumberStatusBanned); err != nil {
			return err
		}
		metrics.IncrementCounter("numbers_banned_total", nil, "Virtual numbers banned for repeated delivery failures")
		p.logger.WithField("number", numberID).Warn("Virtual number banned after repeated failures")
	}

	return nil
}

// SweepExpired evicts numbers past their expiry regardless of status. It is
// idempotent and also runs implicitly before every allocation.
func (p *NumberPool) SweepExpired(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sweepExpiredLocked(ctx)
}

// Provision adds freshly generated numbers to the pool.
func (p *NumberPool) Provision(ctx context.Context, count int, countryCode string, source models.NumberSource) ([]*models.VirtualNumber, error) {
	if count <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "provision count must be positive")
	}
	if countryCode == "" {
		countryCode = "1"
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	lifetime := time.Duration(p.cfg.NumberLifetimeDays) * 24 * time.Hour
	out := make([]*models.VirtualNumber, 0, count)

	for i := 0; i < count; i++ {
		n := &models.VirtualNumber{
			ID:          uuid.NewString(),
			PhoneNumber: generatePhoneNumber(countryCode),
			CountryCode: countryCode,
			Status:      models.NumberStatusActive,
			Source:      source,
			ExpiresAt:   p.now().Add(lifetime),
			CreatedAt:   p.now(),
		}
		if err := p.db.SaveVirtualNumber(ctx, n); err != nil {
			return out, err
		}
		p.numbers[n.ID] = n
		out = append(out, n)
	}

	p.logger.WithFields(logrus.Fields{
		"count":   count,
		"country": countryCode,
	}).Info("Provisioned virtual numbers")
	return out, nil
}

// AddNumber registers an externally supplied number (manual entry or upload).
func (p *NumberPool) AddNumber(ctx context.Context, n *models.VirtualNumber) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Status == "" {
		n.Status = models.NumberStatusActive
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.db.SaveVirtualNumber(ctx, n); err != nil {
		return err
	}
	p.numbers[n.ID] = n
	return nil
}

// Stats returns a snapshot of pool occupancy.
func (p *NumberPool) Stats() models.PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	var s models.PoolStats
	for _, n := range p.numbers {
		switch n.Status {
		case models.NumberStatusActive:
			s.Active++
		case models.NumberStatusBanned:
			s.Banned++
		}
	}
	s.Allocated = len(p.allocated)
	return s
}

func (p *NumberPool) sweepExpiredLocked(ctx context.Context) error {
	now := p.now()
	for id, n := range p.numbers {
		if n.Expired(now) {
			p.logger.WithField("number", id).Debug("Evicting expired virtual number")
			if err := p.removeLocked(ctx, id); err != nil {
				return err
			}
		}
	}
	metrics.SetGauge("pool_active", float64(p.countActiveLocked()), nil, "ACTIVE virtual numbers in the pool")
	return nil
}

func (p *NumberPool) removeLocked(ctx context.Context, id string) error {
	if err := p.db.DeleteVirtualNumber(ctx, id); err != nil {
		return err
	}
	delete(p.numbers, id)
	delete(p.allocated, id)
	delete(p.failures, id)
	return nil
}

func (p *NumberPool) countActiveLocked() int {
	count := 0
	for _, n := range p.numbers {
		if n.Status == models.NumberStatusActive {
			count++
		}
	}
	return count
}

func generatePhoneNumber(countryCode string) string {
	digits := make([]byte, 10)
	for i := range digits {
		v, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			v = big.NewInt(int64(i % 10))
		}
		digits[i] = byte('0' + v.Int64())
	}
	return "+" + countryCode + string(digits)
}
