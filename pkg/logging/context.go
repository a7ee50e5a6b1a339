package logging

import (
	"context"
)

const (
	FeedbackIDKey  = "feedback_id"
	MessageIDKey   = "message_id"
	ServiceNameKey = "service_name"
)

func WithFeedbackID(ctx context.Context, feedbackID string) context.Context {
	return context.WithValue(ctx, FeedbackIDKey, feedbackID)
}

func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, MessageIDKey, messageID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, ServiceNameKey, serviceName)
}

func GetFeedbackID(ctx context.Context) string {
	if feedbackID, ok := ctx.Value(FeedbackIDKey).(string); ok {
		return feedbackID
	}
	return ""
}

func GetMessageID(ctx context.Context) string {
	if messageID, ok := ctx.Value(MessageIDKey).(string); ok {
		return messageID
	}
	return ""
}

func GetServiceName(ctx context.Context) string {
	if serviceName, ok := ctx.Value(ServiceNameKey).(string); ok {
		return serviceName
	}
	return ""
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 6)

	if feedbackID := GetFeedbackID(ctx); feedbackID != "" {
		fields = append(fields, "feedback_id", feedbackID)
	}

	if messageID := GetMessageID(ctx); messageID != "" {
		fields = append(fields, "message_id", messageID)
	}

	if serviceName := GetServiceName(ctx); serviceName != "" {
		fields = append(fields, "service_name", serviceName)
	}

	return fields
}
