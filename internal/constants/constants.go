package constants

import "time"

const (
	DefaultStream = "feedback-events"
	DefaultGroup  = "feedback-consumers"
)

const (
	// PayloadField is the stream entry field holding the raw event JSON.
	PayloadField = "payload"
)

const (
	MaxTopics        = 3
	MaxCommentLength = 5000
	FeedbackIDPrefix = "fdbk-"
	FeedbackIDHexLen = 8
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	RawFeedbackTable   = "raw_feedback"
	EnrichedCollection = "feedback_analysis"
)
