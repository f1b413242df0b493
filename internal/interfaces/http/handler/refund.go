package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	apprefund "github.com/storefront/backend/internal/application/refund"
	"github.com/storefront/backend/internal/interfaces/http/dto"
)

// RefundHandler handles refund session API endpoints
type RefundHandler struct {
	BaseHandler
	refundService *apprefund.Service
}

// NewRefundHandler creates a new RefundHandler
func NewRefundHandler(refundService *apprefund.Service) *RefundHandler {
	return &RefundHandler{
		refundService: refundService,
	}
}

// RegisterRoutes registers the refund session routes
func (h *RefundHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sessions := rg.Group("/refunds/sessions")
	{
		sessions.POST("", h.OpenSession)
		sessions.GET("/:id", h.GetSession)
		sessions.PATCH("/:id/selection", h.UpdateSelection)
		sessions.POST("/:id/submit", h.Submit)
		sessions.POST("/:id/confirm", h.ConfirmClientRefund)
		sessions.POST("/:id/cancel-confirmation", h.CancelClientRefund)
		sessions.DELETE("/:id", h.CloseSession)
	}
}

// OpenSession opens a refund session for an order
func (h *RefundHandler) OpenSession(c *gin.Context) {
	var req apprefund.OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	view, err := h.refundService.OpenSession(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, view)
}

// GetSession returns the current view of a refund session
func (h *RefundHandler) GetSession(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	view, err := h.refundService.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// UpdateSelection applies a batch of selection changes to a session
func (h *RefundHandler) UpdateSelection(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	var req apprefund.UpdateSelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	view, err := h.refundService.UpdateSelection(c.Request.Context(), sessionID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// Submit starts the refund submission for a session
func (h *RefundHandler) Submit(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	var req apprefund.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	result, err := h.refundService.Submit(c.Request.Context(), sessionID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ConfirmClientRefund reports that the card reader completed the refund
func (h *RefundHandler) ConfirmClientRefund(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	result, err := h.refundService.ConfirmClientRefund(c.Request.Context(), sessionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// CancelClientRefund abandons a refund waiting on the card reader
func (h *RefundHandler) CancelClientRefund(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	if err := h.refundService.CancelClientRefund(c.Request.Context(), sessionID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// CloseSession discards a refund session
func (h *RefundHandler) CloseSession(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	if err := h.refundService.CloseSession(c.Request.Context(), sessionID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// sessionID parses the session id path parameter, responding with 400 on failure
func (h *RefundHandler) sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid session id")
		return uuid.Nil, false
	}
	return id, true
}

// bindError renders a binding failure, listing field errors when available
func (h *RefundHandler) bindError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		details := make([]dto.ValidationDetail, 0, len(validationErrs))
		for _, fieldErr := range validationErrs {
			details = append(details, dto.ValidationDetail{
				Field:   fieldErr.Field(),
				Message: "failed on the '" + fieldErr.Tag() + "' rule",
			})
		}
		h.ValidationError(c, details)
		return
	}
	h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Invalid request body")
}
