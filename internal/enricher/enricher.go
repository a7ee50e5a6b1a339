package enricher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"pulse/internal/config"
	"pulse/internal/feedback"
	"pulse/internal/logger"
	"pulse/pkg/circuitbreaker"
	"pulse/pkg/metrics"
)

const promptTemplate = `Analyze the following customer feedback and return a JSON response with sentiment and topics.

Sentiment options: POSITIVE, NEGATIVE, NEUTRAL
Topic options: BILLING, UI_UX, PERFORMANCE, FEATURE_REQUEST

Input: %s

Output JSON format:
{
    "sentiment": "<POSITIVE|NEGATIVE|NEUTRAL>",
    "topics": ["<topic1>", "<topic2>", "<topic3>"]
}

Return only the JSON response, no additional text.`

// Analyzer turns a feedback comment into a validated EnrichmentResult. It
// never fails the caller: model errors, unparsable replies, and invalid field
// values all collapse into the fallback result.
type Analyzer struct {
	model   llms.Model
	breaker *circuitbreaker.Wrapper
	timeout time.Duration
	logger  logger.Logger
}

func New(cfg config.AIConfig, cbCfg *config.CircuitBreakerConfig, log logger.Logger) (*Analyzer, error) {
	token := cfg.Token
	if token == "" {
		// Local OpenAI-compatible endpoints accept any token.
		token = "none"
	}

	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	a := NewWithModel(client, cfg.RequestTimeout, log)

	if cbCfg != nil && cbCfg.Enabled {
		a.breaker = circuitbreaker.NewWrapper(circuitbreaker.Config{
			Name:         "enricher-model",
			MaxRequests:  cbCfg.MaxRequests,
			Interval:     cbCfg.Interval,
			Timeout:      cbCfg.Timeout,
			FailureRatio: cbCfg.FailureRatio,
			MinRequests:  cbCfg.MinRequests,
		})
	}

	return a, nil
}

// NewWithModel wires an Analyzer onto an existing model client. Tests use it
// to substitute a scripted model.
func NewWithModel(model llms.Model, timeout time.Duration, log logger.Logger) *Analyzer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Analyzer{
		model:   model,
		timeout: timeout,
		logger:  log,
	}
}

// Analyze formats the fixed prompt around the comment, calls the model once,
// and validates whatever comes back. Enrichment quality is best-effort; the
// returned result is always safe to persist.
func (a *Analyzer) Analyze(ctx context.Context, comment string) feedback.EnrichmentResult {
	reply, err := a.generate(ctx, comment)
	if err != nil {
		a.logger.ErrorwCtx(ctx, "Model call failed, substituting fallback result",
			"error", err,
		)
		metrics.EnrichmentFallbacksTotal.WithLabelValues("model_error").Inc()
		return feedback.FallbackResult()
	}

	return a.parseReply(ctx, reply)
}

func (a *Analyzer) generate(ctx context.Context, comment string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	prompt := fmt.Sprintf(promptTemplate, comment)
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(prompt),
			},
		},
	}

	start := time.Now()
	call := func() (interface{}, error) {
		return a.model.GenerateContent(callCtx, content, llms.WithTemperature(0.0))
	}

	var raw interface{}
	var err error
	if a.breaker != nil {
		raw, err = a.breaker.Execute(callCtx, call)
	} else {
		raw, err = call()
	}
	metrics.EnrichmentModelDuration.Observe(float64(time.Since(start).Milliseconds()))

	if err != nil {
		return "", err
	}

	response, ok := raw.(*llms.ContentResponse)
	if !ok || len(response.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}

	return response.Choices[0].Content, nil
}

// parseReply validates the untrusted reply field by field: an invalid
// sentiment coerces to NEUTRAL and a missing or non-sequence topics value is
// treated as empty. Only a reply that is not a JSON object at all produces
// the full fallback.
func (a *Analyzer) parseReply(ctx context.Context, reply string) feedback.EnrichmentResult {
	text := strings.TrimSpace(reply)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		a.logger.WarnwCtx(ctx, "Model reply is not a JSON object, substituting fallback result",
			"error", err,
		)
		metrics.EnrichmentFallbacksTotal.WithLabelValues("parse_error").Inc()
		return feedback.FallbackResult()
	}

	rawSentiment, _ := parsed["sentiment"].(string)
	sentiment := feedback.NormalizeSentiment(rawSentiment)
	if sentiment != feedback.Sentiment(rawSentiment) {
		a.logger.WarnwCtx(ctx, "Model returned invalid sentiment, coercing to NEUTRAL",
			"sentiment", parsed["sentiment"],
		)
	}

	var rawTopics []string
	if list, ok := parsed["topics"].([]interface{}); ok {
		for _, entry := range list {
			if topic, ok := entry.(string); ok {
				rawTopics = append(rawTopics, topic)
			}
		}
	}

	return feedback.EnrichmentResult{
		Sentiment: sentiment,
		Topics:    feedback.FilterTopics(rawTopics),
	}
}
