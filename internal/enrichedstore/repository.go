package enrichedstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"pulse/internal/feedback"
	apperrors "pulse/pkg/errors"
)

// Repository persists the analytical record. Append is a plain insert with no
// dedup key: redelivered events that reach this stage twice produce duplicate
// rows, an accepted consequence of at-least-once delivery.
type Repository interface {
	Append(ctx context.Context, feedbackID string, result feedback.EnrichmentResult, analyzedAt time.Time) error
}

type analysisDocument struct {
	FeedbackID string             `bson:"feedback_id"`
	Sentiment  feedback.Sentiment `bson:"sentiment"`
	Topics     []feedback.Topic   `bson:"topics"`
	AnalyzedAt time.Time          `bson:"analyzed_at"`
}

type mongoRepository struct {
	collection *mongo.Collection
}

func NewRepository(db *mongo.Database, collection string) Repository {
	return &mongoRepository{
		collection: db.Collection(collection),
	}
}

func (r *mongoRepository) Append(ctx context.Context, feedbackID string, result feedback.EnrichmentResult, analyzedAt time.Time) error {
	doc := analysisDocument{
		FeedbackID: feedbackID,
		Sentiment:  result.Sentiment,
		Topics:     result.Topics,
		AnalyzedAt: analyzedAt,
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return apperrors.Wrap(fmt.Errorf("failed to append enriched feedback: %w", err), apperrors.ErrStorage)
	}

	return nil
}
