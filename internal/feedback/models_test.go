package feedback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantError bool
	}{
		{
			name:      "well-formed event",
			payload:   `{"feedback_id":"fdbk-123","user_id":"user-1","timestamp":"2024-05-01T10:00:00Z","comment":"slow dashboard"}`,
			wantError: false,
		},
		{
			name:      "not JSON",
			payload:   `this is not json`,
			wantError: true,
		},
		{
			name:      "missing feedback_id",
			payload:   `{"user_id":"user-1","comment":"slow dashboard"}`,
			wantError: true,
		},
		{
			name:      "missing comment",
			payload:   `{"feedback_id":"fdbk-123","user_id":"user-1"}`,
			wantError: true,
		},
		{
			name:      "empty comment",
			payload:   `{"feedback_id":"fdbk-123","comment":""}`,
			wantError: true,
		},
		{
			name:      "JSON but wrong shape",
			payload:   `[1,2,3]`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := DecodeEvent([]byte(tt.payload))
			if tt.wantError {
				assert.Error(t, err)
				assert.Nil(t, event)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "fdbk-123", event.FeedbackID)
				assert.Equal(t, "slow dashboard", event.Comment)
			}
		})
	}
}

func TestNormalizeSentiment(t *testing.T) {
	assert.Equal(t, SentimentPositive, NormalizeSentiment("POSITIVE"))
	assert.Equal(t, SentimentNegative, NormalizeSentiment("NEGATIVE"))
	assert.Equal(t, SentimentNeutral, NormalizeSentiment("NEUTRAL"))

	// Anything outside the enum coerces to NEUTRAL.
	assert.Equal(t, SentimentNeutral, NormalizeSentiment("ANGRY"))
	assert.Equal(t, SentimentNeutral, NormalizeSentiment("positive"))
	assert.Equal(t, SentimentNeutral, NormalizeSentiment(""))
}

func TestFilterTopics(t *testing.T) {
	tests := []struct {
		name string
		raw  []string
		want []Topic
	}{
		{
			name: "all valid, under limit",
			raw:  []string{"PERFORMANCE", "UI_UX"},
			want: []Topic{TopicPerformance, TopicUIUX},
		},
		{
			name: "truncated to three in model order",
			raw:  []string{"BILLING", "UI_UX", "PERFORMANCE", "FEATURE_REQUEST"},
			want: []Topic{TopicBilling, TopicUIUX, TopicPerformance},
		},
		{
			name: "unknown entries removed before truncation",
			raw:  []string{"SHIPPING", "BILLING", "WEATHER", "UI_UX", "PERFORMANCE", "FEATURE_REQUEST"},
			want: []Topic{TopicBilling, TopicUIUX, TopicPerformance},
		},
		{
			name: "nil input",
			raw:  nil,
			want: []Topic{},
		},
		{
			name: "no valid entries",
			raw:  []string{"foo", "bar"},
			want: []Topic{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterTopics(tt.raw))
		})
	}
}

func TestFallbackResult(t *testing.T) {
	result := FallbackResult()
	assert.Equal(t, SentimentNeutral, result.Sentiment)
	assert.Empty(t, result.Topics)
}
