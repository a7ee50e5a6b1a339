package producer

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pulse/internal/constants"
	"pulse/internal/feedback"
	"pulse/internal/logger"
	"pulse/internal/queue"
	"pulse/internal/rawstore"
	apperrors "pulse/pkg/errors"
	"pulse/pkg/logging"
	"pulse/pkg/metrics"
)

// Handler accepts feedback submissions over HTTP and publishes them to the
// event stream for the consumer pipeline. The store is optional; without it
// the lookup endpoint reports the feature as unavailable.
type Handler struct {
	publisher queue.Publisher
	store     rawstore.Repository
	logger    logger.Logger
}

func NewHandler(publisher queue.Publisher, store rawstore.Repository, log logger.Logger) *Handler {
	return &Handler{
		publisher: publisher,
		store:     store,
		logger:    log,
	}
}

type submitRequest struct {
	FeedbackID string `json:"feedback_id"`
	UserID     string `json:"user_id"`
	Timestamp  string `json:"timestamp"`
	Comment    string `json:"comment"`
}

type submitResponse struct {
	Success    bool   `json:"success"`
	FeedbackID string `json:"feedback_id,omitempty"`
	Message    string `json:"message"`
}

// SubmitFeedback handles POST /v1/feedback. Missing feedback_id and timestamp
// are filled in server-side so callers only ever need to send a comment.
func (h *Handler) SubmitFeedback(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.ProducerRequestsTotal.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusBadRequest, submitResponse{
			Success: false,
			Message: "invalid request body: " + err.Error(),
		})
		return
	}

	req.Comment = strings.TrimSpace(req.Comment)
	if req.Comment == "" {
		metrics.ProducerRequestsTotal.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusBadRequest, submitResponse{
			Success: false,
			Message: "comment is required",
		})
		return
	}
	if len(req.Comment) > constants.MaxCommentLength {
		metrics.ProducerRequestsTotal.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusBadRequest, submitResponse{
			Success: false,
			Message: "comment exceeds maximum length",
		})
		return
	}

	if req.FeedbackID == "" {
		req.FeedbackID = constants.FeedbackIDPrefix + uuid.NewString()[:constants.FeedbackIDHexLen]
	}
	if req.Timestamp == "" {
		req.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	event := feedback.Event{
		FeedbackID: req.FeedbackID,
		UserID:     req.UserID,
		Timestamp:  req.Timestamp,
		Comment:    req.Comment,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		metrics.ProducerRequestsTotal.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, submitResponse{
			Success: false,
			Message: "failed to encode event",
		})
		return
	}

	ctx := logging.WithFeedbackID(c.Request.Context(), event.FeedbackID)
	if err := h.publisher.Publish(ctx, payload); err != nil {
		h.logger.ErrorwCtx(ctx, "Failed to publish feedback event",
			"error", err,
		)
		metrics.ProducerRequestsTotal.WithLabelValues("error").Inc()
		status := apperrors.ToHTTPStatus(err)
		if status == http.StatusInternalServerError {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, submitResponse{
			Success: false,
			Message: "failed to queue feedback",
		})
		return
	}

	h.logger.InfowCtx(ctx, "Feedback queued")
	metrics.ProducerRequestsTotal.WithLabelValues("accepted").Inc()
	c.JSON(http.StatusAccepted, submitResponse{
		Success:    true,
		FeedbackID: event.FeedbackID,
		Message:    "feedback accepted",
	})
}

// GetFeedback handles GET /v1/feedback/:id. A submission shows up here once
// the consumer has durably stored it, so a 404 can also mean "still queued".
func (h *Handler) GetFeedback(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, submitResponse{
			Success: false,
			Message: "feedback lookup is not available",
		})
		return
	}

	feedbackID := c.Param("id")
	ctx := logging.WithFeedbackID(c.Request.Context(), feedbackID)

	stored, err := h.store.GetByID(ctx, feedbackID)
	if err != nil {
		h.logger.ErrorwCtx(ctx, "Failed to load feedback",
			"error", err,
		)
		c.JSON(apperrors.ToHTTPStatus(err), submitResponse{
			Success: false,
			Message: "failed to load feedback",
		})
		return
	}

	if stored == nil {
		c.JSON(http.StatusNotFound, submitResponse{
			Success:    false,
			FeedbackID: feedbackID,
			Message:    "feedback not found or not yet processed",
		})
		return
	}

	c.JSON(http.StatusOK, stored)
}
