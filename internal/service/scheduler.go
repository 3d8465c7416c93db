package service

import (
	"context"
	"sync"
	"time"

	"wasender/internal/models"

	"github.com/sirupsen/logrus"
)

// SchedulePoller wakes periodically and dispatches SCHEDULED campaigns whose
// scheduled time has passed. Each due campaign is dispatched in its own
// goroutine so one slow campaign never delays the others.
type SchedulePoller struct {
	store    *CampaignStore
	pipeline *DispatchPipeline
	interval time.Duration
	logger   *logrus.Logger

	mu      sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

func NewSchedulePoller(store *CampaignStore, pipeline *DispatchPipeline, interval time.Duration, logger *logrus.Logger) *SchedulePoller {
	return &SchedulePoller{
		store:    store,
		pipeline: pipeline,
		interval: interval,
		logger:   logger,
	}
}

// Start begins polling. Safe to call once; subsequent calls are ignored
// until Stop.
func (s *SchedulePoller) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.WithField("interval", s.interval).Info("Schedule poller started")

		for {
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case <-ticker.C:
				s.dispatchDue(ctx)
			}
		}
	}()
}

// Stop halts polling and waits for the poll loop to exit. In-flight
// dispatches started by the poller keep running.
func (s *SchedulePoller) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Schedule poller stopped")
}

func (s *SchedulePoller) dispatchDue(ctx context.Context) {
	scheduled, err := s.store.ListByStatus(ctx, models.CampaignStatusScheduled)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list scheduled campaigns")
		return
	}

	now := time.Now()
	for _, c := range scheduled {
		if c.ScheduledAt == nil || c.ScheduledAt.After(now) {
			continue
		}

		campaignID := c.ID
		s.logger.WithFields(logrus.Fields{
			"campaign":    campaignID,
			"scheduledAt": c.ScheduledAt,
		}).Info("Dispatching scheduled campaign")

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if _, err := s.pipeline.Dispatch(ctx, campaignID); err != nil {
				s.logger.WithError(err).WithField("campaign", campaignID).Error("Scheduled dispatch failed")
			}
		}()
	}
}
