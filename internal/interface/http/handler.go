package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/ocean-insight/internal/domain/chat"
	"github.com/yanqian/ocean-insight/internal/domain/ocean"
	"github.com/yanqian/ocean-insight/internal/domain/query"
	"github.com/yanqian/ocean-insight/internal/infra/config"
	apperrors "github.com/yanqian/ocean-insight/pkg/errors"
	"github.com/yanqian/ocean-insight/pkg/metrics"
)

// Handler wires the HTTP transport to the chat service.
type Handler struct {
	chatSvc     chat.Service
	development bool
	logger      *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(cfg *config.Config, chatSvc chat.Service, logger *slog.Logger) *Handler {
	return &Handler{
		chatSvc:     chatSvc,
		development: cfg.App.Development(),
		logger:      logger.With("component", "http.handler"),
	}
}

type chatMetadata struct {
	Model          string              `json:"model"`
	Context        query.Mode          `json:"context"`
	Timestamp      time.Time           `json:"timestamp"`
	ConversationID string              `json:"conversationId"`
	References     []chat.Reference    `json:"references,omitempty"`
	TokenUsage     *metrics.TokenUsage `json:"tokenUsage,omitempty"`
}

type chatSuccess struct {
	Success   bool                     `json:"success"`
	Response  string                   `json:"response"`
	OceanData *ocean.AggregatedDataset `json:"oceanData"`
	Metadata  chatMetadata             `json:"metadata"`
}

type chatFailure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ChatStream answers over Server-Sent Events.
func (h *Handler) ChatStream(c *gin.Context) {
	var req chat.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	encoder, ok := newSSEEncoder(c.Writer, h.development)
	if !ok {
		h.fail(c, http.StatusInternalServerError, "streaming not supported", nil)
		return
	}

	events, err := h.chatSvc.Stream(c.Request.Context(), req)
	if err != nil {
		h.fail(c, statusFor(err), apperrors.MessageOf(err), err)
		return
	}

	encoder.Open(c.Writer)
	writeFailed := false
	for ev := range events {
		if writeFailed {
			continue
		}
		if err := encoder.Encode(ev); err != nil {
			// keep draining so the producer can finish and close
			writeFailed = true
			h.logger.Warn("stream write failed", "kind", ev.Kind, "error", err)
		}
	}
	if !encoder.Closed() && !writeFailed {
		h.logger.Error("stream ended without terminal event")
	}
}

// Chat answers in a single JSON response.
func (h *Handler) Chat(c *gin.Context) {
	var req chat.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	resp, err := h.chatSvc.Respond(c.Request.Context(), req)
	if err != nil {
		h.fail(c, statusFor(err), apperrors.MessageOf(err), err)
		return
	}

	c.JSON(http.StatusOK, chatSuccess{
		Success:   true,
		Response:  resp.Response,
		OceanData: resp.OceanData,
		Metadata: chatMetadata{
			Model:          resp.Model,
			Context:        resp.Mode,
			Timestamp:      resp.Timestamp,
			ConversationID: resp.ConversationID,
			References:     resp.References,
			TokenUsage:     resp.Usage,
		},
	})
}

// OceanQuery reports how a question is understood and the data it pulls,
// without generating an answer.
func (h *Handler) OceanQuery(c *gin.Context) {
	var req chat.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}

	resp, err := h.chatSvc.Inspect(c.Request.Context(), req)
	if err != nil {
		status := statusFor(err)
		code := "ocean_query_failed"
		if status == http.StatusBadRequest {
			code = "invalid_request"
		}
		abortWithError(c, NewHTTPError(status, code, apperrors.MessageOf(err), err))
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) fail(c *gin.Context, status int, reason string, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("chat request failed", "status", status, "path", c.Request.URL.Path, "error", err)
	} else {
		h.logger.Warn("chat request rejected", "status", status, "path", c.Request.URL.Path, "error", err)
	}
	body := chatFailure{Success: false, Error: reason}
	if h.development && err != nil {
		body.Details = err.Error()
	}
	c.AbortWithStatusJSON(status, body)
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
