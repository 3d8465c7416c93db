package service

import (
	"context"
	"fmt"

	"wasender/internal/errors"
	"wasender/internal/models"
	"wasender/internal/validation"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CampaignDatabase is the persistence surface the store needs for campaigns.
type CampaignDatabase interface {
	SaveCampaign(ctx context.Context, c *models.Campaign) error
	GetCampaign(ctx context.Context, id string) (*models.Campaign, error)
	ListCampaignsByStatus(ctx context.Context, status models.CampaignStatus) ([]*models.Campaign, error)
	UpdateCampaignStatus(ctx context.Context, id string, from []models.CampaignStatus, to models.CampaignStatus) (bool, error)
	ClearCampaignDraft(ctx context.Context, id string) error
	AppendProgress(ctx context.Context, campaignID, label string) error
	GetProgress(ctx context.Context, campaignID string) ([]models.ProgressEntry, error)
}

// legalTransitions is the campaign state machine. Any transition not listed
// here fails with ILLEGAL_STATE_TRANSITION. SENT is terminal; FAILED and
// PARTIAL may be reset to PENDING for a retry.
var legalTransitions = map[models.CampaignStatus][]models.CampaignStatus{
	models.CampaignStatusPending:   {models.CampaignStatusScheduled, models.CampaignStatusSending},
	models.CampaignStatusScheduled: {models.CampaignStatusSending},
	models.CampaignStatusSending:   {models.CampaignStatusSent, models.CampaignStatusPartial, models.CampaignStatusFailed},
	models.CampaignStatusFailed:    {models.CampaignStatusPending},
	models.CampaignStatusPartial:   {models.CampaignStatusPending},
}

// CampaignStore owns campaign lifecycle and the append-only progress log. It
// validates drafts on creation, enforces the status state machine through
// conditional database updates, and fans progress entries out to subscribers.
type CampaignStore struct {
	db     CampaignDatabase
	hub    *ProgressHub
	logger *logrus.Logger
}

func NewCampaignStore(db CampaignDatabase, hub *ProgressHub, logger *logrus.Logger) *CampaignStore {
	return &CampaignStore{db: db, hub: hub, logger: logger}
}

// Create validates a draft and persists it as a new campaign. Drafts with a
// scheduled time start in SCHEDULED, all others in PENDING. Malformed and
// duplicate recipients are dropped silently; a draft left with no valid
// recipients, or with an empty message, is rejected as INCOMPLETE_CAMPAIGN.
func (s *CampaignStore) Create(ctx context.Context, draft *models.CampaignDraft) (*models.Campaign, error) {
	if err := validation.ValidateCampaignName(draft.Name); err != nil {
		return nil, err
	}
	if draft.Name == "" {
		return nil, errors.New(errors.ErrCodeIncompleteCampaign, "campaign name cannot be empty")
	}
	if err := validation.ValidateMessageBody(draft.Message); err != nil {
		return nil, err
	}

	recipients, dropped := validation.DedupeRecipients(draft.Recipients)
	if len(recipients) == 0 {
		return nil, errors.New(errors.ErrCodeIncompleteCampaign, "campaign has no valid recipients")
	}
	if dropped > 0 {
		s.logger.WithFields(logrus.Fields{
			"campaign": draft.Name,
			"dropped":  dropped,
		}).Warn("Dropped malformed recipients from campaign draft")
	}

	status := models.CampaignStatusPending
	if draft.ScheduledAt != nil {
		status = models.CampaignStatusScheduled
	}

	c := &models.Campaign{
		ID:             uuid.NewString(),
		Name:           draft.Name,
		Message:        draft.Message,
		Recipients:     recipients,
		LinkURL:        draft.LinkURL,
		CallNumber:     draft.CallNumber,
		MediaRef:       draft.MediaRef,
		Status:         status,
		ScheduledAt:    draft.ScheduledAt,
		RecipientCount: len(recipients),
	}

	if err := s.db.SaveCampaign(ctx, c); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"campaign":   c.ID,
		"name":       c.Name,
		"recipients": c.RecipientCount,
		"status":     c.Status,
	}).Info("Campaign created")
	return c, nil
}

// Get returns a campaign by ID, or a NOT_FOUND error.
func (s *CampaignStore) Get(ctx context.Context, id string) (*models.Campaign, error) {
	c, err := s.db.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errors.New(errors.ErrCodeNotFound, "campaign not found: "+id)
	}
	return c, nil
}

// ListByStatus returns all campaigns in the given status, oldest first.
func (s *CampaignStore) ListByStatus(ctx context.Context, status models.CampaignStatus) ([]*models.Campaign, error) {
	return s.db.ListCampaignsByStatus(ctx, status)
}

// Transition moves a campaign to a new status if the state machine allows it
// from the campaign's current status. The check-and-set is atomic in the
// database, so two concurrent dispatchers cannot both win the same transition.
func (s *CampaignStore) Transition(ctx context.Context, id string, to models.CampaignStatus) error {
	from := sourcesFor(to)
	if len(from) == 0 {
		return errors.New(errors.ErrCodeIllegalStateTransition,
			fmt.Sprintf("no transition leads to status %s", to))
	}

	ok, err := s.db.UpdateCampaignStatus(ctx, id, from, to)
	if err != nil {
		return err
	}
	if !ok {
		c, getErr := s.db.GetCampaign(ctx, id)
		if getErr != nil {
			return getErr
		}
		if c == nil {
			return errors.New(errors.ErrCodeNotFound, "campaign not found: "+id)
		}
		return errors.New(errors.ErrCodeIllegalStateTransition,
			fmt.Sprintf("cannot transition campaign from %s to %s", c.Status, to))
	}

	s.logger.WithFields(logrus.Fields{
		"campaign": id,
		"status":   to,
	}).Info("Campaign status changed")
	return nil
}

// AppendProgress persists a progress entry and publishes it to subscribers.
// Progress is append-only; entries are never rewritten or removed.
func (s *CampaignStore) AppendProgress(ctx context.Context, campaignID, label string) error {
	if err := s.db.AppendProgress(ctx, campaignID, label); err != nil {
		return err
	}

	entries, err := s.db.GetProgress(ctx, campaignID)
	if err != nil || len(entries) == 0 {
		// The entry is persisted; publishing is best effort
		s.hub.Publish(models.ProgressEntry{CampaignID: campaignID, Label: label})
		return nil
	}

	s.hub.Publish(entries[len(entries)-1])
	return nil
}

// Progress returns the full audit trail for a campaign, oldest first.
func (s *CampaignStore) Progress(ctx context.Context, campaignID string) ([]models.ProgressEntry, error) {
	return s.db.GetProgress(ctx, campaignID)
}

// ClearDraft removes the message body and recipient list after a finished
// dispatch.
func (s *CampaignStore) ClearDraft(ctx context.Context, id string) error {
	return s.db.ClearCampaignDraft(ctx, id)
}

// Subscribe exposes the progress hub for event streaming.
func (s *CampaignStore) Subscribe(campaignID string) (<-chan models.ProgressEntry, func()) {
	return s.hub.Subscribe(campaignID)
}

// sourcesFor inverts the transition table: which statuses may legally move to
// the target.
func sourcesFor(to models.CampaignStatus) []models.CampaignStatus {
	var from []models.CampaignStatus
	for src, dsts := range legalTransitions {
		for _, dst := range dsts {
			if dst == to {
				from = append(from, src)
			}
		}
	}
	return from
}
