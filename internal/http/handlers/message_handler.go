package handlers

// Message endpoints:
//
//	POST /chats/{id}/messages  send a turn, answered with the stored pair
//	GET  /chats/{id}/messages  transcript, oldest first (ETag)
//
// A send carrying an Idempotency-Key that was already answered gets the
// stored pair back with Idempotency-Replayed: true.

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-tutor-backend/internal/domain"
	"github.com/tbourn/go-tutor-backend/internal/http/middleware"
	"github.com/tbourn/go-tutor-backend/internal/repo"
	"github.com/tbourn/go-tutor-backend/internal/services"
)

// PostMessageRequest is the body of POST /chats/{id}/messages. Content may
// be empty when files are staged on the chat; they are then analyzed with
// the mode as context.
type PostMessageRequest struct {
	Content string `json:"content" example:"Explain the light-dependent reactions of photosynthesis"`
	// Mode is the tutoring style of this turn; empty means study.
	Mode string `json:"mode" enums:"study,reason,quiz,homeworkhelper" example:"study"`
}

// PostMessageResponse is the stored exchange.
type PostMessageResponse struct {
	User      *domain.Message `json:"user"`
	Assistant *domain.Message `json:"assistant"`
}

// ListMessagesResponse is one page of a transcript.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

var blankLinesRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent normalizes line endings to LF, keeps at most one blank
// line between paragraphs and trims the result.
func sanitizeContent(raw string) string {
	s := strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(raw)
	return strings.TrimSpace(blankLinesRE.ReplaceAllString(s, "\n\n"))
}

// idempotencyKey returns the key the middleware validated, or the raw
// header when the middleware is not mounted.
func idempotencyKey(c *gin.Context) string {
	if k, found := middleware.GetIdempotencyKey(c); found {
		return k
	}
	return strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotencyKey))
}

// PostMessage godoc
// @ID          postMessage
// @Summary     Ask the tutor
// @Description Stores the user turn, binds the files staged on the chat to it, asks the tutor and stores the reply. When the tutor is unavailable the reply is a stored apology with failed=true and the request still succeeds.
// @Description A retry with the same Idempotency-Key returns the first pair instead of asking again.
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Param       X-User-ID        header  string                        false  "Caller id when no bearer token is sent"
// @Param       Idempotency-Key  header  string                        false  "Client key that makes retries safe"
// @Param       id               path    string                        true   "Chat id"  format(uuid)
// @Param       body             body    handlers.PostMessageRequest  true   "Prompt"
// @Success     200  {object}  handlers.PostMessageResponse
// @Header      200  {string}  Idempotency-Replayed  "true when the pair comes from an earlier send"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     429  {object}  handlers.ErrorResponse  "Daily message quota used up"
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /chats/{id}/messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	chatID, valid := pathUUID(c, "id", "chat")
	if !valid {
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	res, err := h.msgSvc.Send(c.Request.Context(), userID(c), chatID, services.SendInput{
		Content:        sanitizeContent(req.Content),
		Mode:           strings.ToLower(strings.TrimSpace(req.Mode)),
		IdempotencyKey: idempotencyKey(c),
		Anonymous:      isAnonymous(c),
	})
	if err != nil {
		failService(c, err, ErrCodeAnswerFailed)
		return
	}
	if res.Replayed {
		c.Header("Idempotency-Replayed", "true")
	}
	ok(c, http.StatusOK, PostMessageResponse{User: res.User, Assistant: res.Assistant})
}

// ListMessages godoc
// @ID          listMessages
// @Summary     Read a chat transcript
// @Description Pages through the messages of one of the caller's chats in send order, each with the metadata of the files it carried. Answers 304 when If-None-Match carries the current weak ETag.
// @Tags        Messages
// @Produce     json
// @Param       X-User-ID      header  string  false  "Caller id when no bearer token is sent"
// @Param       If-None-Match  header  string  false  "ETag of a previous response"
// @Param       id             path    string  true   "Chat id"            format(uuid)
// @Param       page           query   int     false  "Page, from 1"       minimum(1) default(1)
// @Param       page_size      query   int     false  "Messages per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListMessagesResponse
// @Success     304  {string}  string
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /chats/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	chatID, valid := pathUUID(c, "id", "chat")
	if !valid {
		return
	}
	ctx, uid := c.Request.Context(), userID(c)

	// a foreign chat must 404 before any validator is computed
	if _, err := h.chatSvc.Get(ctx, uid, chatID); err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	if h.notModified(c, "messages", chatID, repo.MessagesStats) {
		return
	}

	page, size := pageParams(c)
	msgs, total, err := h.msgSvc.ListPage(ctx, uid, chatID, page, size)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListMessagesResponse{Messages: msgs, Pagination: newPagination(page, size, total)})
}
