package producer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/feedback"
	"pulse/internal/logger"
	"pulse/internal/rawstore"
)

type fakePublisher struct {
	err      error
	payloads [][]byte
}

func (p *fakePublisher) Publish(ctx context.Context, payload []byte) error {
	if p.err != nil {
		return p.err
	}
	p.payloads = append(p.payloads, payload)
	return nil
}

type fakeStore struct {
	stored map[string]*rawstore.StoredFeedback
	err    error
}

func (s *fakeStore) Upsert(ctx context.Context, event *feedback.Event, receivedAt time.Time) error {
	return nil
}

func (s *fakeStore) GetByID(ctx context.Context, feedbackID string) (*rawstore.StoredFeedback, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.stored[feedbackID], nil
}

func newTestRouter(publisher *fakePublisher) *gin.Engine {
	return newTestRouterWithStore(publisher, nil)
}

func newTestRouterWithStore(publisher *fakePublisher, store rawstore.Repository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(publisher, store, logger.NopLogger())
	r := gin.New()
	r.POST("/v1/feedback", h.SubmitFeedback)
	r.GET("/v1/feedback/:id", h.GetFeedback)
	return r
}

func postFeedback(t *testing.T, r *gin.Engine, body map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/feedback", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSubmitFeedbackAccepted(t *testing.T) {
	publisher := &fakePublisher{}
	r := newTestRouter(publisher)

	w := postFeedback(t, r, map[string]string{
		"feedback_id": "fdbk-12345678",
		"user_id":     "user-9",
		"timestamp":   "2026-08-25T10:00:00Z",
		"comment":     "checkout flow is great",
	})

	assert.Equal(t, http.StatusAccepted, w.Code)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "fdbk-12345678", resp.FeedbackID)

	require.Len(t, publisher.payloads, 1)
	var event feedback.Event
	require.NoError(t, json.Unmarshal(publisher.payloads[0], &event))
	assert.Equal(t, "fdbk-12345678", event.FeedbackID)
	assert.Equal(t, "checkout flow is great", event.Comment)
}

func TestSubmitFeedbackGeneratesDefaults(t *testing.T) {
	publisher := &fakePublisher{}
	r := newTestRouter(publisher)

	w := postFeedback(t, r, map[string]string{
		"comment": "no id supplied",
	})

	assert.Equal(t, http.StatusAccepted, w.Code)

	require.Len(t, publisher.payloads, 1)
	var event feedback.Event
	require.NoError(t, json.Unmarshal(publisher.payloads[0], &event))
	assert.True(t, strings.HasPrefix(event.FeedbackID, "fdbk-"))
	assert.Len(t, event.FeedbackID, len("fdbk-")+8)
	assert.NotEmpty(t, event.Timestamp)
}

func TestSubmitFeedbackEmptyComment(t *testing.T) {
	publisher := &fakePublisher{}
	r := newTestRouter(publisher)

	w := postFeedback(t, r, map[string]string{
		"comment": "   ",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, publisher.payloads)
}

func TestSubmitFeedbackCommentTooLong(t *testing.T) {
	publisher := &fakePublisher{}
	r := newTestRouter(publisher)

	w := postFeedback(t, r, map[string]string{
		"comment": strings.Repeat("a", 5001),
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, publisher.payloads)
}

func TestSubmitFeedbackMalformedBody(t *testing.T) {
	publisher := &fakePublisher{}
	r := newTestRouter(publisher)

	req := httptest.NewRequest(http.MethodPost, "/v1/feedback", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, publisher.payloads)
}

func TestSubmitFeedbackPublishFailure(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("stream unavailable")}
	r := newTestRouter(publisher)

	w := postFeedback(t, r, map[string]string{
		"comment": "queue is down",
	})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
}

func TestGetFeedbackFound(t *testing.T) {
	store := &fakeStore{stored: map[string]*rawstore.StoredFeedback{
		"fdbk-12345678": {
			Event: feedback.Event{
				FeedbackID: "fdbk-12345678",
				UserID:     "user-9",
				Timestamp:  "2026-08-25T10:00:00Z",
				Comment:    "stored already",
			},
			ReceivedAt: time.Date(2026, 8, 25, 10, 0, 1, 0, time.UTC),
		},
	}}
	r := newTestRouterWithStore(&fakePublisher{}, store)

	req := httptest.NewRequest(http.MethodGet, "/v1/feedback/fdbk-12345678", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var stored rawstore.StoredFeedback
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stored))
	assert.Equal(t, "stored already", stored.Comment)
}

func TestGetFeedbackNotFound(t *testing.T) {
	store := &fakeStore{stored: map[string]*rawstore.StoredFeedback{}}
	r := newTestRouterWithStore(&fakePublisher{}, store)

	req := httptest.NewRequest(http.MethodGet, "/v1/feedback/fdbk-missing", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetFeedbackWithoutStore(t *testing.T) {
	r := newTestRouterWithStore(&fakePublisher{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/feedback/fdbk-12345678", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
