package handlers

// Chat endpoints:
//
//	POST /chats             create
//	GET  /chats             list, most recently active first (ETag)
//	GET  /chats/{id}        fetch
//	PUT  /chats/{id}/title  rename
//	PUT  /chats/{id}/mode   switch tutoring mode

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-tutor-backend/internal/domain"
	"github.com/tbourn/go-tutor-backend/internal/repo"
)

// CreateChatRequest is the body of POST /chats.
type CreateChatRequest struct {
	// Title is optional; "New chat" is used when blank.
	Title string `json:"title" example:"Photosynthesis revision"`
}

// UpdateChatTitleRequest is the body of PUT /chats/{id}/title.
type UpdateChatTitleRequest struct {
	Title string `json:"title" binding:"required,min=1,max=255" example:"Algebra homework"`
}

// UpdateChatModeRequest is the body of PUT /chats/{id}/mode.
type UpdateChatModeRequest struct {
	Mode string `json:"mode" binding:"required" enums:"study,reason,quiz,homeworkhelper" example:"quiz"`
}

// ListChatsResponse is one page of the caller's chats.
type ListChatsResponse struct {
	Chats      []domain.Chat `json:"chats"`
	Pagination Pagination    `json:"pagination"`
}

// CreateChat godoc
// @ID          createChat
// @Summary     Start a chat
// @Description Opens an empty tutoring chat for the caller. The title is replaced by one derived from the first prompt while it is still a placeholder.
// @Tags        Chats
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string                      false  "Caller id when no bearer token is sent"
// @Param       body       body    handlers.CreateChatRequest  true   "Optional title"
// @Success     201  {object}  domain.Chat
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /chats [post]
func (h *Handlers) CreateChat(c *gin.Context) {
	var req CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	chat, err := h.chatSvc.Create(c.Request.Context(), userID(c), strings.TrimSpace(req.Title))
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, chat)
}

// ListChats godoc
// @ID          listChats
// @Summary     List chats
// @Description Pages through the caller's chats, most recently active first. Answers 304 when If-None-Match carries the current weak ETag.
// @Tags        Chats
// @Produce     json
// @Param       X-User-ID      header  string  false  "Caller id when no bearer token is sent"
// @Param       If-None-Match  header  string  false  "ETag of a previous response"
// @Param       page           query   int     false  "Page, from 1"        minimum(1) default(1)
// @Param       page_size      query   int     false  "Chats per page"     minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListChatsResponse
// @Header      200  {string}  ETag  "Weak validator of the chat list"
// @Success     304  {string}  string
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /chats [get]
func (h *Handlers) ListChats(c *gin.Context) {
	uid := userID(c)
	page, size := pageParams(c)
	if h.notModified(c, "chats", uid, repo.ChatsStats) {
		return
	}
	chats, total, err := h.chatSvc.ListPage(c.Request.Context(), uid, page, size)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListChatsResponse{Chats: chats, Pagination: newPagination(page, size, total)})
}

// GetChat godoc
// @ID          getChat
// @Summary     Fetch a chat
// @Tags        Chats
// @Produce     json
// @Param       X-User-ID  header  string  false  "Caller id when no bearer token is sent"
// @Param       id         path    string  true   "Chat id"  format(uuid)
// @Success     200  {object}  domain.Chat
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /chats/{id} [get]
func (h *Handlers) GetChat(c *gin.Context) {
	id, valid := pathUUID(c, "id", "chat")
	if !valid {
		return
	}
	chat, err := h.chatSvc.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, chat)
}

// UpdateChatTitle godoc
// @ID          updateChatTitle
// @Summary     Rename a chat
// @Description Sets the title of one of the caller's chats. Titles are clipped to 60 characters.
// @Tags        Chats
// @Accept      json
// @Param       X-User-ID  header  string                           false  "Caller id when no bearer token is sent"
// @Param       id         path    string                           true   "Chat id"  format(uuid)
// @Param       body       body    handlers.UpdateChatTitleRequest  true   "New title"
// @Success     204
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /chats/{id}/title [put]
func (h *Handlers) UpdateChatTitle(c *gin.Context) {
	id, valid := pathUUID(c, "id", "chat")
	if !valid {
		return
	}
	var req UpdateChatTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title required (1-255 chars)")
		return
	}
	if err := h.chatSvc.UpdateTitle(c.Request.Context(), userID(c), id, req.Title); err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	noContent(c)
}

// UpdateChatMode godoc
// @ID          updateChatMode
// @Summary     Switch tutoring mode
// @Tags        Chats
// @Accept      json
// @Param       X-User-ID  header  string                          false  "Caller id when no bearer token is sent"
// @Param       id         path    string                          true   "Chat id"  format(uuid)
// @Param       body       body    handlers.UpdateChatModeRequest  true   "Mode"
// @Success     204
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /chats/{id}/mode [put]
func (h *Handlers) UpdateChatMode(c *gin.Context) {
	id, valid := pathUUID(c, "id", "chat")
	if !valid {
		return
	}
	var req UpdateChatModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "mode required")
		return
	}
	if err := h.chatSvc.SetMode(c.Request.Context(), userID(c), id, req.Mode); err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	noContent(c)
}
