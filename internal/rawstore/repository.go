package rawstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pulse/internal/feedback"
	apperrors "pulse/pkg/errors"
)

// Repository persists the unmodified feedback event. Upsert must succeed
// before the pipeline proceeds to enrichment.
type Repository interface {
	Upsert(ctx context.Context, event *feedback.Event, receivedAt time.Time) error
	GetByID(ctx context.Context, feedbackID string) (*StoredFeedback, error)
}

// StoredFeedback is a raw_feedback row as read back from the store.
type StoredFeedback struct {
	feedback.Event
	ReceivedAt time.Time `json:"received_at"`
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

// Upsert writes the raw event keyed by feedback_id. Re-applying the same
// event overwrites the row with identical content, so duplicate deliveries
// are a no-op rather than an error.
func (r *PostgresRepository) Upsert(ctx context.Context, event *feedback.Event, receivedAt time.Time) error {
	query := `
		INSERT INTO raw_feedback (feedback_id, user_id, feedback_timestamp, comment, received_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (feedback_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			feedback_timestamp = EXCLUDED.feedback_timestamp,
			comment = EXCLUDED.comment,
			received_at = EXCLUDED.received_at
	`

	_, err := r.db.ExecContext(ctx, query,
		event.FeedbackID,
		event.UserID,
		event.Timestamp,
		event.Comment,
		receivedAt,
	)
	if err != nil {
		return apperrors.Wrap(fmt.Errorf("failed to upsert raw feedback: %w", err), apperrors.ErrStorage)
	}

	return nil
}

// GetByID returns the stored event, or nil when no row exists.
func (r *PostgresRepository) GetByID(ctx context.Context, feedbackID string) (*StoredFeedback, error) {
	query := `
		SELECT feedback_id, user_id, feedback_timestamp, comment, received_at
		FROM raw_feedback
		WHERE feedback_id = $1
	`

	var stored StoredFeedback
	err := r.db.QueryRowContext(ctx, query, feedbackID).Scan(
		&stored.FeedbackID,
		&stored.UserID,
		&stored.Timestamp,
		&stored.Comment,
		&stored.ReceivedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(fmt.Errorf("failed to load raw feedback: %w", err), apperrors.ErrStorage)
	}

	return &stored, nil
}
