package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"pulse/internal/enrichedstore"
	"pulse/internal/feedback"
)

func TestEnrichedStoreAppend(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true, false)

	ctx := context.Background()
	repo := enrichedstore.NewRepository(infra.MongoDB, "feedback_analysis")

	result := feedback.EnrichmentResult{
		Sentiment: feedback.SentimentNegative,
		Topics:    []feedback.Topic{feedback.TopicBilling, feedback.TopicPerformance},
	}

	require.NoError(t, repo.Append(ctx, "fdbk-aaaa1111", result, time.Now().UTC()))

	var doc struct {
		FeedbackID string   `bson:"feedback_id"`
		Sentiment  string   `bson:"sentiment"`
		Topics     []string `bson:"topics"`
	}
	err := infra.MongoDB.Collection("feedback_analysis").
		FindOne(ctx, bson.M{"feedback_id": "fdbk-aaaa1111"}).
		Decode(&doc)
	require.NoError(t, err)

	assert.Equal(t, "NEGATIVE", doc.Sentiment)
	assert.Equal(t, []string{"BILLING", "PERFORMANCE"}, doc.Topics)
}

func TestEnrichedStoreAllowsDuplicateAppends(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true, false)

	ctx := context.Background()
	repo := enrichedstore.NewRepository(infra.MongoDB, "feedback_analysis")

	result := feedback.FallbackResult()

	require.NoError(t, repo.Append(ctx, "fdbk-bbbb2222", result, time.Now().UTC()))
	require.NoError(t, repo.Append(ctx, "fdbk-bbbb2222", result, time.Now().UTC()))

	count, err := infra.MongoDB.Collection("feedback_analysis").
		CountDocuments(ctx, bson.M{"feedback_id": "fdbk-bbbb2222"})
	require.NoError(t, err)

	assert.EqualValues(t, 2, count, "append is not deduplicated")
}
