// Package ops exposes the engine's operations to the web collaborator and to
// operator tooling. Every periodic pass is also invocable on demand here;
// overlap with a scheduled run is handled by the per-task in-flight guard.
package ops

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pawline/notify-api/internal/handler"
	"github.com/pawline/notify-api/internal/model"
	"github.com/pawline/notify-api/pkg/logger"
)

type Broadcaster interface {
	Broadcast(ctx context.Context, emergencyID uuid.UUID, hospitalIDs []uuid.UUID) ([]*model.Message, error)
}

type Deliverer interface {
	Submit(ctx context.Context, msg *model.Message) error
}

type ReplyHandler interface {
	HandleReply(ctx context.Context, hospitalID uuid.UUID, providerMessageID string, receivedAt time.Time) error
}

// Runner triggers one on-demand run of a periodic pass.
type Runner interface {
	RunOnce(ctx context.Context)
}

type Handler struct {
	broadcaster  Broadcaster
	delivery     Deliverer
	replies      ReplyHandler
	pingPass     Runner
	noReplySweep Runner
	signalCheck  Runner
	dispatch     Runner
	validate     *validator.Validate
	logger       *logger.Logger
}

func NewHandler(
	broadcaster Broadcaster,
	delivery Deliverer,
	replies ReplyHandler,
	pingPass Runner,
	noReplySweep Runner,
	signalCheck Runner,
	dispatch Runner,
	logger *logger.Logger,
) *Handler {
	return &Handler{
		broadcaster:  broadcaster,
		delivery:     delivery,
		replies:      replies,
		pingPass:     pingPass,
		noReplySweep: noReplySweep,
		signalCheck:  signalCheck,
		dispatch:     dispatch,
		validate:     validator.New(),
		logger:       logger,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/broadcasts", h.CreateBroadcast)
	r.POST("/messages", h.SubmitMessage)
	r.POST("/webhooks/chat", h.ChatWebhook)

	ops := r.Group("/ops")
	{
		ops.POST("/liveness-ping", h.runner(h.pingPass))
		ops.POST("/liveness-sweep", h.runner(h.noReplySweep))
		ops.POST("/signal-check", h.runner(h.signalCheck))
		ops.POST("/dispatch", h.runner(h.dispatch))
	}
}

type broadcastRequest struct {
	EmergencyID uuid.UUID   `json:"emergency_id" binding:"required"`
	HospitalIDs []uuid.UUID `json:"hospital_ids" binding:"required,min=1"`
}

func (h *Handler) CreateBroadcast(c *gin.Context) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	messages, err := h.broadcaster.Broadcast(c.Request.Context(), req.EmergencyID, req.HospitalIDs)
	if err != nil {
		h.logger.Error(err, "broadcast failed", "emergency_id", req.EmergencyID.String())
		c.JSON(http.StatusUnprocessableEntity, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(messages))
}

type submitMessageRequest struct {
	EmergencyID  uuid.UUID `json:"emergency_id"`
	HospitalID   uuid.UUID `json:"hospital_id" validate:"required"`
	Channel      string    `json:"channel" validate:"required,oneof=chat_template chat_freeform email"`
	Recipient    string    `json:"recipient" validate:"required"`
	Subject      string    `json:"subject"`
	Content      string    `json:"content"`
	TemplateName string    `json:"template_name"`
}

func (h *Handler) SubmitMessage(c *gin.Context) {
	var req submitMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	msg := &model.Message{
		EmergencyID:  req.EmergencyID,
		HospitalID:   req.HospitalID,
		Channel:      model.MessageChannel(req.Channel),
		Recipient:    req.Recipient,
		Subject:      req.Subject,
		Content:      req.Content,
		TemplateName: req.TemplateName,
	}
	if err := h.delivery.Submit(c.Request.Context(), msg); err != nil {
		c.JSON(http.StatusUnprocessableEntity, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(msg))
}

type chatWebhookRequest struct {
	HospitalID        uuid.UUID  `json:"hospital_id" validate:"required"`
	ProviderMessageID string     `json:"provider_message_id"`
	ReceivedAt        *time.Time `json:"received_at"`
}

// ChatWebhook receives inbound chat events from the provider. Only hospital
// replies matter to the engine; they feed the liveness state machine.
func (h *Handler) ChatWebhook(c *gin.Context) {
	var req chatWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	receivedAt := time.Now()
	if req.ReceivedAt != nil {
		receivedAt = *req.ReceivedAt
	}

	if err := h.replies.HandleReply(c.Request.Context(), req.HospitalID, req.ProviderMessageID, receivedAt); err != nil {
		h.logger.Error(err, "failed to handle chat reply", "hospital_id", req.HospitalID.String())
		c.JSON(http.StatusUnprocessableEntity, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

func (h *Handler) runner(r Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		r.RunOnce(c.Request.Context())
		c.JSON(http.StatusAccepted, handler.NewSuccessResponse(nil))
	}
}
