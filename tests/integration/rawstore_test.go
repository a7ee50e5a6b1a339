package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/feedback"
	"pulse/internal/rawstore"
)

func TestRawStoreUpsertRoundTrip(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := rawstore.NewRepository(infra.PostgresDB)

	event := &feedback.Event{
		FeedbackID: "fdbk-11111111",
		UserID:     "user-42",
		Timestamp:  "2026-08-25T09:30:00Z",
		Comment:    "the invoice totals are wrong",
	}
	receivedAt := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, repo.Upsert(ctx, event, receivedAt))

	var (
		userID    string
		timestamp string
		comment   string
	)
	row := infra.PostgresDB.QueryRowContext(ctx,
		`SELECT user_id, feedback_timestamp, comment FROM raw_feedback WHERE feedback_id = $1`,
		event.FeedbackID,
	)
	require.NoError(t, row.Scan(&userID, &timestamp, &comment))

	assert.Equal(t, "user-42", userID)
	assert.Equal(t, "2026-08-25T09:30:00Z", timestamp)
	assert.Equal(t, "the invoice totals are wrong", comment)
}

func TestRawStoreUpsertIsIdempotent(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := rawstore.NewRepository(infra.PostgresDB)

	event := &feedback.Event{
		FeedbackID: "fdbk-22222222",
		UserID:     "user-7",
		Timestamp:  "2026-08-25T09:31:00Z",
		Comment:    "redelivered twice",
	}

	require.NoError(t, repo.Upsert(ctx, event, time.Now().UTC()))
	require.NoError(t, repo.Upsert(ctx, event, time.Now().UTC()))

	var count int
	row := infra.PostgresDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM raw_feedback WHERE feedback_id = $1`,
		event.FeedbackID,
	)
	require.NoError(t, row.Scan(&count))

	assert.Equal(t, 1, count, "redelivery must not create a second row")
}

func TestRawStoreGetByID(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := rawstore.NewRepository(infra.PostgresDB)

	event := &feedback.Event{
		FeedbackID: "fdbk-44444444",
		UserID:     "user-3",
		Timestamp:  "2026-08-25T09:33:00Z",
		Comment:    "read me back",
	}
	require.NoError(t, repo.Upsert(ctx, event, time.Now().UTC()))

	stored, err := repo.GetByID(ctx, "fdbk-44444444")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "read me back", stored.Comment)
	assert.Equal(t, "user-3", stored.UserID)
	assert.False(t, stored.ReceivedAt.IsZero())

	missing, err := repo.GetByID(ctx, "fdbk-nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRawStoreUpsertOverwritesRow(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := rawstore.NewRepository(infra.PostgresDB)

	first := &feedback.Event{
		FeedbackID: "fdbk-33333333",
		UserID:     "user-1",
		Timestamp:  "2026-08-25T09:32:00Z",
		Comment:    "first version",
	}
	second := &feedback.Event{
		FeedbackID: "fdbk-33333333",
		UserID:     "user-1",
		Timestamp:  "2026-08-25T09:32:00Z",
		Comment:    "second version",
	}

	require.NoError(t, repo.Upsert(ctx, first, time.Now().UTC()))
	require.NoError(t, repo.Upsert(ctx, second, time.Now().UTC()))

	var comment string
	row := infra.PostgresDB.QueryRowContext(ctx,
		`SELECT comment FROM raw_feedback WHERE feedback_id = $1`,
		second.FeedbackID,
	)
	require.NoError(t, row.Scan(&comment))

	assert.Equal(t, "second version", comment)
}
