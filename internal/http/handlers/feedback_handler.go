package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-tutor-backend/internal/services"
)

// RateMessageRequest rates a tutor reply.
type RateMessageRequest struct {
	// +1 helpful, -1 not helpful
	Value int `json:"value" binding:"required,oneof=-1 1" example:"1"`
	// Optional remark, at most 1000 characters
	Comment string `json:"comment,omitempty" example:"Clear explanation of the derivative"`
}

// RateMessage godoc
// @ID          rateMessage
// @Summary     Rate a tutor reply
// @Description Records +1 or -1 on an assistant reply in one of the caller's chats. Each reply can be rated once; failed replies cannot be rated.
// @Tags        Feedback
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Message ID (UUID)"      format(uuid)
// @Param       body       body    handlers.RateMessageRequest true "Rating"
// @Success     201  {object} domain.Feedback
// @Failure     400  {object} handlers.ErrorResponse "Invalid payload or message id"
// @Failure     403  {object} handlers.ErrorResponse "Reply cannot be rated by this user"
// @Failure     404  {object} handlers.ErrorResponse "Message not found"
// @Failure     409  {object} handlers.ErrorResponse "Already rated"
// @Failure     500  {object} handlers.ErrorResponse "Internal server error"
// @Router      /messages/{id}/feedback [post]
func (h *Handlers) RateMessage(c *gin.Context) {
	var req RateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "value must be -1 or 1")
		return
	}
	messageID, valid := pathUUID(c, "id", "message")
	if !valid {
		return
	}

	fb, err := h.fbSvc.Rate(c.Request.Context(), userID(c), messageID, services.FeedbackInput{
		Value:   req.Value,
		Comment: req.Comment,
	})
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, fb)
}

// GetFeedbackSummary godoc
// @ID          getFeedbackSummary
// @Summary     Rating totals for a chat
// @Tags        Feedback
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"
// @Param       id         path    string  true  "Chat ID (UUID)"  format(uuid)
// @Success     200  {object} services.FeedbackSummary
// @Failure     400  {object} handlers.ErrorResponse "Invalid chat id"
// @Failure     404  {object} handlers.ErrorResponse "Chat not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal server error"
// @Router      /chats/{id}/feedback [get]
func (h *Handlers) GetFeedbackSummary(c *gin.Context) {
	chatID, valid := pathUUID(c, "id", "chat")
	if !valid {
		return
	}
	sum, err := h.fbSvc.Summary(c.Request.Context(), userID(c), chatID)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, sum)
}
