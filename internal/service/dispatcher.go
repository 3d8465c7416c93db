package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wasender/internal/errors"
	"wasender/internal/metrics"
	"wasender/internal/models"
	"wasender/internal/tracing"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// BatchSender delivers one batch of a campaign from one virtual number. The
// returned count is how many recipients were actually delivered to.
type BatchSender interface {
	SendBatch(ctx context.Context, fromNumber string, campaign *models.Campaign, recipients []string) (int, error)
}

// DispatchPipeline runs campaigns end to end: precondition checks, recipient
// partitioning, number allocation, batch delivery and final status resolution.
// One pipeline instance serves all campaigns; each dispatch run owns a
// cancellable context registered under the campaign ID.
type DispatchPipeline struct {
	store    *CampaignStore
	pool     *NumberPool
	identity *IdentityLinkManager
	sender   BatchSender
	cfg      models.DispatchConfig
	logger   *logrus.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewDispatchPipeline(store *CampaignStore, pool *NumberPool, identity *IdentityLinkManager, sender BatchSender, cfg models.DispatchConfig, logger *logrus.Logger) *DispatchPipeline {
	return &DispatchPipeline{
		store:    store,
		pool:     pool,
		identity: identity,
		sender:   sender,
		cfg:      cfg,
		logger:   logger,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// PartitionRecipients splits a recipient list into ordered slices of at most
// size entries. Partitioning is deterministic: the same list always yields the
// same batches.
func PartitionRecipients(recipients []string, size int) [][]string {
	if size <= 0 || len(recipients) == 0 {
		return nil
	}

	batches := make([][]string, 0, (len(recipients)+size-1)/size)
	for start := 0; start < len(recipients); start += size {
		end := start + size
		if end > len(recipients) {
			end = len(recipients)
		}
		batches = append(batches, recipients[start:end])
	}
	return batches
}

// Dispatch runs a campaign to completion. It blocks until the campaign
// reaches a final status, so interactive callers use StartAsync instead.
//
// Preconditions are checked before the campaign leaves PENDING or SCHEDULED:
// a verified identity must be linked, the draft must be complete and a
// SCHEDULED campaign must have reached its scheduled time. Failing a
// precondition leaves the campaign in its current status.
func (p *DispatchPipeline) Dispatch(ctx context.Context, campaignID string) (*models.DispatchResult, error) {
	c, err := p.prepare(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.registerCancel(c.ID, cancel)

	return p.execute(ctx, runCtx, c)
}

// StartAsync validates preconditions and moves the campaign to SENDING
// synchronously, then runs the batch loop in the background. Precondition
// failures are reported to the caller; delivery outcomes land in the progress
// log and final status.
func (p *DispatchPipeline) StartAsync(ctx context.Context, campaignID string) error {
	c, err := p.prepare(ctx, campaignID)
	if err != nil {
		return err
	}

	// Registered before returning: once the campaign is SENDING a Cancel
	// must find the run, even if the goroutine has not started yet
	runCtx, cancel := context.WithCancel(context.Background())
	p.registerCancel(c.ID, cancel)

	go func() {
		if _, err := p.execute(context.Background(), runCtx, c); err != nil {
			p.logger.WithError(err).WithField("campaign", c.ID).Warn("Dispatch ended with error")
		}
	}()
	return nil
}

func (p *DispatchPipeline) prepare(ctx context.Context, campaignID string) (*models.Campaign, error) {
	c, err := p.store.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	if !p.identity.IsAuthorized() {
		return nil, errors.New(errors.ErrCodeIdentityNotLinked,
			"dispatch requires a verified sender identity")
	}
	if c.Message == "" || len(c.Recipients) == 0 {
		return nil, errors.New(errors.ErrCodeIncompleteCampaign,
			"campaign is missing message or recipients")
	}
	if c.Status == models.CampaignStatusScheduled && c.ScheduledAt != nil && c.ScheduledAt.After(time.Now()) {
		return nil, errors.New(errors.ErrCodeIllegalStateTransition,
			"campaign is scheduled for "+c.ScheduledAt.Format(time.RFC3339))
	}

	if err := p.store.Transition(ctx, campaignID, models.CampaignStatusSending); err != nil {
		return nil, err
	}
	return c, nil
}

func (p *DispatchPipeline) execute(ctx, runCtx context.Context, c *models.Campaign) (*models.DispatchResult, error) {
	started := time.Now()

	ctx, span := tracing.StartSpan(ctx, "campaign_dispatch",
		attribute.String("campaign.id", c.ID),
		attribute.Int("campaign.recipients", c.RecipientCount),
	)
	defer span.End()
	defer p.unregisterCancel(c.ID)

	p.progress(ctx, c.ID, fmt.Sprintf("Initiating Campaign: %s", c.Name))

	result, err := p.run(runCtx, ctx, c)
	if err != nil {
		tracing.RecordError(ctx, err)
		return result, err
	}

	metrics.RecordTimer("dispatch_duration", time.Since(started), map[string]string{"status": string(result.Status)})
	return result, nil
}

// run executes the batch loop. runCtx carries operator cancellation; baseCtx
// survives it so bookkeeping writes still land after a cancel.
func (p *DispatchPipeline) run(runCtx, baseCtx context.Context, c *models.Campaign) (*models.DispatchResult, error) {
	batches := PartitionRecipients(c.Recipients, p.cfg.BatchSize)
	result := &models.DispatchResult{
		CampaignID:   c.ID,
		TotalBatches: len(batches),
	}

	numbers, allocErr := p.pool.Allocate(baseCtx, len(batches), nil)
	defer func() {
		for _, n := range numbers {
			if err := p.pool.Release(baseCtx, n.ID); err != nil {
				p.logger.WithError(err).WithField("number", n.ID).Warn("Failed to release virtual number")
			}
		}
	}()

	if allocErr != nil && !errors.HasCode(allocErr, errors.ErrCodePoolExhausted) {
		p.finish(baseCtx, c, result, models.CampaignStatusFailed, "Campaign failed: number pool unavailable")
		return result, allocErr
	}

	if len(numbers) == 0 {
		result.Undelivered = len(c.Recipients)
		p.finish(baseCtx, c, result, models.CampaignStatusFailed, "Campaign failed: no virtual numbers available")
		return result, errors.New(errors.ErrCodePoolExhausted, "no virtual numbers available for dispatch")
	}

	if len(numbers) < len(batches) {
		p.progress(baseCtx, c.ID, fmt.Sprintf(
			"Number pool exhausted: proceeding with %d of %d batches", len(numbers), len(batches)))
	}

	for i, batch := range batches {
		if i >= len(numbers) {
			// Degraded run: no number left for this batch
			result.Undelivered += len(batch)
			continue
		}

		select {
		case <-runCtx.Done():
			result.Undelivered += remaining(batches, i)
			p.finish(baseCtx, c, result, models.CampaignStatusFailed, "Cancelled by operator")
			return result, errors.New(errors.ErrCodeDispatchCancelled, "dispatch cancelled by operator")
		default:
		}

		if !p.identity.IsAuthorized() {
			result.Undelivered += remaining(batches, i)
			p.finish(baseCtx, c, result, models.CampaignStatusFailed, "Campaign failed: sender identity no longer linked")
			return result, errors.New(errors.ErrCodeIdentityNotLinked, "sender identity unlinked during dispatch")
		}

		number := numbers[i]
		p.progress(baseCtx, c.ID, fmt.Sprintf("Sending batch %d via Virtual Node #%s...", i+1, nodeTag(number)))

		delivered, err := p.sendBatch(runCtx, number, c, batch)
		if err != nil {
			if runCtx.Err() != nil && baseCtx.Err() == nil {
				result.Undelivered += remaining(batches, i)
				p.finish(baseCtx, c, result, models.CampaignStatusFailed, "Cancelled by operator")
				return result, errors.New(errors.ErrCodeDispatchCancelled, "dispatch cancelled by operator")
			}

			result.FailedBatches++
			result.Undelivered += len(batch)
			p.progress(baseCtx, c.ID, fmt.Sprintf("Batch %d failed: %v", i+1, err))
			if rfErr := p.pool.ReportFailure(baseCtx, number.ID); rfErr != nil {
				p.logger.WithError(rfErr).WithField("number", number.ID).Warn("Failed to record delivery failure")
			}
			metrics.IncrementCounter("batches_failed_total", nil, "Dispatch batches that failed delivery")
			continue
		}

		result.Delivered += delivered
		result.Undelivered += len(batch) - delivered
		metrics.IncrementCounter("batches_sent_total", nil, "Dispatch batches delivered successfully")
	}

	status, label := resolveOutcome(result)
	p.finish(baseCtx, c, result, status, label)

	if status == models.CampaignStatusFailed {
		return result, errors.New(errors.ErrCodeBatchDeliveryFailure,
			fmt.Sprintf("all %d batches failed", result.TotalBatches))
	}
	return result, nil
}

// Cancel stops a running dispatch cooperatively. The pipeline notices the
// cancellation at its next batch boundary.
func (p *DispatchPipeline) Cancel(campaignID string) error {
	p.mu.Lock()
	cancel, ok := p.cancels[campaignID]
	p.mu.Unlock()

	if !ok {
		return errors.New(errors.ErrCodeNotFound, "no dispatch in progress for campaign: "+campaignID)
	}

	cancel()
	p.logger.WithField("campaign", campaignID).Info("Dispatch cancellation requested")
	return nil
}

// RecoverStuck fails any campaign left in SENDING by an unclean shutdown.
// Called once at startup before the server accepts requests.
func (p *DispatchPipeline) RecoverStuck(ctx context.Context) error {
	stuck, err := p.store.ListByStatus(ctx, models.CampaignStatusSending)
	if err != nil {
		return err
	}

	for _, c := range stuck {
		if err := p.store.Transition(ctx, c.ID, models.CampaignStatusFailed); err != nil {
			return err
		}
		p.progress(ctx, c.ID, "Campaign failed: dispatch interrupted by restart")
		p.logger.WithField("campaign", c.ID).Warn("Recovered campaign stuck in SENDING")
	}
	return nil
}

func (p *DispatchPipeline) sendBatch(ctx context.Context, number *models.VirtualNumber, c *models.Campaign, batch []string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "batch_delivery",
		attribute.String("campaign.id", c.ID),
		attribute.Int("batch.size", len(batch)),
	)
	defer span.End()

	timeout := time.Duration(p.cfg.BatchTimeoutSec) * time.Second
	batchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	delivered, err := p.sender.SendBatch(batchCtx, number.PhoneNumber, c, batch)
	if err != nil {
		tracing.RecordError(ctx, err)
	}
	return delivered, err
}

func (p *DispatchPipeline) finish(ctx context.Context, c *models.Campaign, result *models.DispatchResult, status models.CampaignStatus, label string) {
	result.Status = status

	if err := p.store.Transition(ctx, c.ID, status); err != nil {
		p.logger.WithError(err).WithField("campaign", c.ID).Error("Failed to record final campaign status")
	}
	p.progress(ctx, c.ID, label)

	// Fully delivered campaigns cannot be resubmitted; FAILED and PARTIAL
	// keep their draft so a retry can re-enter PENDING
	if status == models.CampaignStatusSent {
		if err := p.store.ClearDraft(ctx, c.ID); err != nil {
			p.logger.WithError(err).WithField("campaign", c.ID).Warn("Failed to clear campaign draft")
		}
	}

	p.logger.WithFields(logrus.Fields{
		"campaign":    c.ID,
		"status":      status,
		"delivered":   result.Delivered,
		"undelivered": result.Undelivered,
	}).Info("Dispatch finished")
}

func (p *DispatchPipeline) progress(ctx context.Context, campaignID, label string) {
	if err := p.store.AppendProgress(ctx, campaignID, label); err != nil {
		p.logger.WithError(err).WithField("campaign", campaignID).Warn("Failed to append progress entry")
	}
}

func (p *DispatchPipeline) registerCancel(campaignID string, cancel context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancels[campaignID] = cancel
}

func (p *DispatchPipeline) unregisterCancel(campaignID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cancel, ok := p.cancels[campaignID]; ok {
		cancel()
		delete(p.cancels, campaignID)
	}
}

// resolveOutcome maps delivery counts to the campaign's final status.
func resolveOutcome(r *models.DispatchResult) (models.CampaignStatus, string) {
	switch {
	case r.Delivered == 0:
		return models.CampaignStatusFailed, "Campaign failed: no batches delivered"
	case r.Undelivered > 0:
		return models.CampaignStatusPartial,
			fmt.Sprintf("Campaign partially delivered: %d sent, %d undelivered", r.Delivered, r.Undelivered)
	default:
		return models.CampaignStatusSent,
			fmt.Sprintf("Campaign completed: %d messages sent", r.Delivered)
	}
}

func remaining(batches [][]string, from int) int {
	total := 0
	for _, b := range batches[from:] {
		total += len(b)
	}
	return total
}

func nodeTag(n *models.VirtualNumber) string {
	if len(n.ID) > 4 {
		return n.ID[len(n.ID)-4:]
	}
	return n.ID
}
