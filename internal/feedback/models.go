package feedback

import (
	"encoding/json"
	"fmt"

	"pulse/internal/constants"
)

// Event is the inbound payload produced by the feedback API. It is immutable
// once published and may be delivered more than once.
type Event struct {
	FeedbackID string `json:"feedback_id"`
	UserID     string `json:"user_id"`
	Timestamp  string `json:"timestamp"`
	Comment    string `json:"comment"`
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// DecodeEvent parses a queue payload into an Event. The feedback_id and
// comment fields are required; everything else is passed through as-is.
// The producer bounds comment length, but redelivered or foreign payloads
// may not honor that bound, so no length check happens here.
func DecodeEvent(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to decode feedback event: %w", err)
	}

	if event.FeedbackID == "" {
		return nil, &ValidationError{
			Field:   "feedback_id",
			Message: "feedback_id is required",
		}
	}

	if event.Comment == "" {
		return nil, &ValidationError{
			Field:   "comment",
			Message: "comment is required",
		}
	}

	return &event, nil
}

type Sentiment string

const (
	SentimentPositive Sentiment = "POSITIVE"
	SentimentNegative Sentiment = "NEGATIVE"
	SentimentNeutral  Sentiment = "NEUTRAL"
)

// NormalizeSentiment coerces anything outside the sentiment enum to NEUTRAL.
func NormalizeSentiment(s string) Sentiment {
	switch Sentiment(s) {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return Sentiment(s)
	default:
		return SentimentNeutral
	}
}

type Topic string

const (
	TopicBilling        Topic = "BILLING"
	TopicUIUX           Topic = "UI_UX"
	TopicPerformance    Topic = "PERFORMANCE"
	TopicFeatureRequest Topic = "FEATURE_REQUEST"
)

var allowedTopics = map[Topic]struct{}{
	TopicBilling:        {},
	TopicUIUX:           {},
	TopicPerformance:    {},
	TopicFeatureRequest: {},
}

// FilterTopics keeps the allowed topics in the order given, dropping unknown
// entries before truncating to the first MaxTopics survivors.
func FilterTopics(raw []string) []Topic {
	topics := make([]Topic, 0, constants.MaxTopics)
	for _, t := range raw {
		if _, ok := allowedTopics[Topic(t)]; !ok {
			continue
		}
		topics = append(topics, Topic(t))
		if len(topics) == constants.MaxTopics {
			break
		}
	}
	return topics
}

// EnrichmentResult is computed fresh per processing attempt and never
// persisted when enrichment fails; FallbackResult substitutes for it.
type EnrichmentResult struct {
	Sentiment Sentiment `json:"sentiment"`
	Topics    []Topic   `json:"topics"`
}

func FallbackResult() EnrichmentResult {
	return EnrichmentResult{
		Sentiment: SentimentNeutral,
		Topics:    []Topic{},
	}
}
