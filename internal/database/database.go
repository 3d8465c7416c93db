package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"wasender/internal/migrations"
	"wasender/internal/models"
	"wasender/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	// Validate database path to prevent directory traversal
	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to read schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	encryptor, err := NewEncryptor()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize encryptor: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Database{db: db, encryptor: encryptor}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) SaveCampaign(ctx context.Context, c *models.Campaign) error {
	recipients, err := d.encodeRecipients(c.Recipients)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO campaigns (
			id, name, message, recipients, link_url, call_number,
			media_ref, status, scheduled_at, recipient_count, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err = d.db.ExecContext(ctx, query,
		c.ID, c.Name, c.Message, recipients, c.LinkURL, c.CallNumber,
		c.MediaRef, c.Status, c.ScheduledAt, c.RecipientCount, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save campaign: %w", err)
	}

	return nil
}

func (d *Database) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	query := `
		SELECT id, name, message, recipients, link_url, call_number,
			   media_ref, status, scheduled_at, recipient_count, created_at, updated_at
		FROM campaigns
		WHERE id = ?
	`

	c := &models.Campaign{}
	var recipients string
	var scheduledAt sql.NullTime

	err := d.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.Message, &recipients, &c.LinkURL, &c.CallNumber,
		&c.MediaRef, &c.Status, &scheduledAt, &c.RecipientCount, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	if scheduledAt.Valid {
		t := scheduledAt.Time
		c.ScheduledAt = &t
	}

	c.Recipients, err = d.decodeRecipients(recipients)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// ListCampaignsByStatus returns all campaigns in the given status, oldest first.
func (d *Database) ListCampaignsByStatus(ctx context.Context, status models.CampaignStatus) ([]*models.Campaign, error) {
	query := `
		SELECT id, name, message, recipients, link_url, call_number,
			   media_ref, status, scheduled_at, recipient_count, created_at, updated_at
		FROM campaigns
		WHERE status = ?
		ORDER BY created_at ASC
	`

	rows, err := d.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	var out []*models.Campaign
	for rows.Next() {
		c := &models.Campaign{}
		var recipients string
		var scheduledAt sql.NullTime

		if err := rows.Scan(
			&c.ID, &c.Name, &c.Message, &recipients, &c.LinkURL, &c.CallNumber,
			&c.MediaRef, &c.Status, &scheduledAt, &c.RecipientCount, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}

		if scheduledAt.Valid {
			t := scheduledAt.Time
			c.ScheduledAt = &t
		}

		c.Recipients, err = d.decodeRecipients(recipients)
		if err != nil {
			return nil, err
		}

		out = append(out, c)
	}

	return out, rows.Err()
}

// UpdateCampaignStatus transitions a campaign from one of the expected
// statuses to the new status. It returns false without modifying the record
// when the campaign is not currently in any of the expected statuses, which
// makes the transition check atomic under concurrent dispatches.
func (d *Database) UpdateCampaignStatus(ctx context.Context, id string, from []models.CampaignStatus, to models.CampaignStatus) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("no source statuses given")
	}

	query := `UPDATE campaigns SET status = ?, updated_at = ? WHERE id = ? AND status IN (?`
	args := []interface{}{to, time.Now().UTC(), id, from[0]}
	for _, s := range from[1:] {
		query += ", ?"
		args = append(args, s)
	}
	query += ")"

	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update campaign status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// ClearCampaignDraft removes the transient composition fields after dispatch
// so the draft cannot be accidentally resubmitted. The record itself remains.
func (d *Database) ClearCampaignDraft(ctx context.Context, id string) error {
	empty, err := d.encodeRecipients(nil)
	if err != nil {
		return err
	}

	query := `UPDATE campaigns SET message = '', recipients = ?, updated_at = ? WHERE id = ?`
	if _, err := d.db.ExecContext(ctx, query, empty, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to clear campaign draft: %w", err)
	}
	return nil
}

func (d *Database) AppendProgress(ctx context.Context, campaignID, label string) error {
	query := `INSERT INTO campaign_progress (campaign_id, label, created_at) VALUES (?, ?, ?)`
	if _, err := d.db.ExecContext(ctx, query, campaignID, label, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to append progress: %w", err)
	}
	return nil
}

func (d *Database) GetProgress(ctx context.Context, campaignID string) ([]models.ProgressEntry, error) {
	query := `
		SELECT seq, campaign_id, label, created_at
		FROM campaign_progress
		WHERE campaign_id = ?
		ORDER BY seq ASC
	`

	rows, err := d.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	defer rows.Close()

	var out []models.ProgressEntry
	for rows.Next() {
		var e models.ProgressEntry
		if err := rows.Scan(&e.Seq, &e.CampaignID, &e.Label, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan progress entry: %w", err)
		}
		out = append(out, e)
	}

	return out, rows.Err()
}

func (d *Database) SaveVirtualNumber(ctx context.Context, n *models.VirtualNumber) error {
	phone, err := d.encryptor.EncryptIfEnabled(n.PhoneNumber)
	if err != nil {
		return fmt.Errorf("failed to encrypt phone number: %w", err)
	}

	query := `
		INSERT INTO virtual_numbers (id, phone_number, country_code, status, source, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	_, err = d.db.ExecContext(ctx, query,
		n.ID, phone, n.CountryCode, n.Status, n.Source, n.ExpiresAt, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save virtual number: %w", err)
	}
	return nil
}

func (d *Database) ListVirtualNumbers(ctx context.Context) ([]*models.VirtualNumber, error) {
	query := `
		SELECT id, phone_number, country_code, status, source, expires_at, created_at
		FROM virtual_numbers
		ORDER BY created_at ASC
	`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list virtual numbers: %w", err)
	}
	defer rows.Close()

	var out []*models.VirtualNumber
	for rows.Next() {
		n := &models.VirtualNumber{}
		var phone string
		if err := rows.Scan(&n.ID, &phone, &n.CountryCode, &n.Status, &n.Source, &n.ExpiresAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan virtual number: %w", err)
		}

		n.PhoneNumber, err = d.encryptor.DecryptIfEnabled(phone)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt phone number: %w", err)
		}

		out = append(out, n)
	}

	return out, rows.Err()
}

func (d *Database) UpdateNumberStatus(ctx context.Context, id string, status models.NumberStatus) error {
	query := `UPDATE virtual_numbers SET status = ? WHERE id = ?`
	if _, err := d.db.ExecContext(ctx, query, status, id); err != nil {
		return fmt.Errorf("failed to update number status: %w", err)
	}
	return nil
}

func (d *Database) DeleteVirtualNumber(ctx context.Context, id string) error {
	query := `DELETE FROM virtual_numbers WHERE id = ?`
	if _, err := d.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete virtual number: %w", err)
	}
	return nil
}

func (d *Database) encodeRecipients(recipients []string) (string, error) {
	if recipients == nil {
		recipients = []string{}
	}
	raw, err := json.Marshal(recipients)
	if err != nil {
		return "", fmt.Errorf("failed to encode recipients: %w", err)
	}

	encoded, err := d.encryptor.EncryptIfEnabled(string(raw))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt recipients: %w", err)
	}
	return encoded, nil
}

func (d *Database) decodeRecipients(stored string) ([]string, error) {
	raw, err := d.encryptor.DecryptIfEnabled(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt recipients: %w", err)
	}

	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("failed to decode recipients: %w", err)
	}
	return out, nil
}
