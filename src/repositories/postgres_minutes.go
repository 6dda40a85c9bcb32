package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/khabaroff/meeting-minutes-webhooks/src/models"
)

const minutesColumns = `id, meeting_id, title, meeting_date, attendees, summary, topics, decisions, action_items, created_at`

// PostgresMinutesRepository stores minutes in PostgreSQL
type PostgresMinutesRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresMinutesRepository creates a new PostgreSQL minutes repository
func NewPostgresMinutesRepository(pool *pgxpool.Pool) *PostgresMinutesRepository {
	return &PostgresMinutesRepository{pool: pool}
}

// Save inserts the minutes row
func (r *PostgresMinutesRepository) Save(ctx context.Context, m *models.Minutes) error {
	if m == nil {
		return nil
	}

	attendees, err := json.Marshal(nonNilStrings(m.Attendees))
	if err != nil {
		return fmt.Errorf("failed to encode attendees: %w", err)
	}
	topics, err := json.Marshal(nonNilStrings(m.Topics))
	if err != nil {
		return fmt.Errorf("failed to encode topics: %w", err)
	}
	decisions, err := json.Marshal(nonNilStrings(m.Decisions))
	if err != nil {
		return fmt.Errorf("failed to encode decisions: %w", err)
	}
	items := m.ActionItems
	if items == nil {
		items = []models.ActionItem{}
	}
	actionItems, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode action items: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO minutes (`+minutesColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		m.ID, m.MeetingID, m.Title, m.Date, attendees, m.Summary, topics, decisions, actionItems, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert minutes: %w", err)
	}
	return nil
}

// GetLatestByMeetingID returns the most recently created minutes for a meeting
func (r *PostgresMinutesRepository) GetLatestByMeetingID(ctx context.Context, meetingID string) (*models.Minutes, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+minutesColumns+` FROM minutes
		 WHERE meeting_id = $1
		 ORDER BY created_at DESC
		 LIMIT 1`,
		meetingID,
	)

	m, err := scanMinutes(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMinutesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get minutes: %w", err)
	}
	return m, nil
}

// List returns minutes newest first
func (r *PostgresMinutesRepository) List(ctx context.Context, limit int) ([]*models.Minutes, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+minutesColumns+` FROM minutes
		 ORDER BY created_at DESC
		 LIMIT $1`,
		normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query minutes: %w", err)
	}
	defer rows.Close()

	out := []*models.Minutes{}
	for rows.Next() {
		m, err := scanMinutes(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan minutes: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteOlderThan removes minutes created before cutoff
func (r *PostgresMinutesRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM minutes WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old minutes: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanMinutes(row pgx.Row) (*models.Minutes, error) {
	var m models.Minutes
	var attendees, topics, decisions, actionItems []byte
	err := row.Scan(&m.ID, &m.MeetingID, &m.Title, &m.Date, &attendees, &m.Summary, &topics, &decisions, &actionItems, &m.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(attendees, &m.Attendees); err != nil {
		return nil, fmt.Errorf("failed to decode attendees: %w", err)
	}
	if err := json.Unmarshal(topics, &m.Topics); err != nil {
		return nil, fmt.Errorf("failed to decode topics: %w", err)
	}
	if err := json.Unmarshal(decisions, &m.Decisions); err != nil {
		return nil, fmt.Errorf("failed to decode decisions: %w", err)
	}
	if err := json.Unmarshal(actionItems, &m.ActionItems); err != nil {
		return nil, fmt.Errorf("failed to decode action items: %w", err)
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var _ MinutesRepository = (*PostgresMinutesRepository)(nil)
