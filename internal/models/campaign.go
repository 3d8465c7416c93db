package models

import (
	"time"
)

type CampaignStatus string

const (
	CampaignStatusPending   CampaignStatus = "PENDING"
	CampaignStatusScheduled CampaignStatus = "SCHEDULED"
	CampaignStatusSending   CampaignStatus = "SENDING"
	CampaignStatusSent      CampaignStatus = "SENT"
	CampaignStatusPartial   CampaignStatus = "PARTIAL"
	CampaignStatusFailed    CampaignStatus = "FAILED"
)

// Campaign is one bulk-message job targeting a recipient list.
type Campaign struct {
	ID             string         `json:"id" db:"id"`
	Name           string         `json:"name" db:"name"`
	Message        string         `json:"message" db:"message"`
	Recipients     []string       `json:"recipients" db:"recipients"`
	LinkURL        string         `json:"linkUrl,omitempty" db:"link_url"`
	CallNumber     string         `json:"callNumber,omitempty" db:"call_number"`
	MediaRef       string         `json:"mediaRef,omitempty" db:"media_ref"`
	Status         CampaignStatus `json:"status" db:"status"`
	ScheduledAt    *time.Time     `json:"scheduledAt,omitempty" db:"scheduled_at"`
	RecipientCount int            `json:"recipientCount" db:"recipient_count"`
	CreatedAt      time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time      `json:"updatedAt" db:"updated_at"`
}

// CampaignDraft is the operator-submitted composition form.
type CampaignDraft struct {
	Name        string     `json:"name"`
	Message     string     `json:"message"`
	Recipients  []string   `json:"recipients"`
	LinkURL     string     `json:"linkUrl,omitempty"`
	CallNumber  string     `json:"callNumber,omitempty"`
	MediaRef    string     `json:"mediaRef,omitempty"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
}

// ProgressEntry is one append-only line in a campaign's delivery audit trail.
type ProgressEntry struct {
	Seq        int       `json:"seq" db:"seq"`
	CampaignID string    `json:"campaignId" db:"campaign_id"`
	Label      string    `json:"label" db:"label"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

// DispatchResult summarizes a finished dispatch run.
type DispatchResult struct {
	CampaignID    string         `json:"campaignId"`
	Status        CampaignStatus `json:"status"`
	TotalBatches  int            `json:"totalBatches"`
	FailedBatches int            `json:"failedBatches"`
	Delivered     int            `json:"delivered"`
	Undelivered   int            `json:"undelivered"`
}
