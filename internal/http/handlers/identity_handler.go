// Identity HTTP handlers.
//
// Clients obtain a bearer token either as an anonymous user or by verifying a
// user id against the AI backend. The token carries the user id and type that
// the auth middleware later puts on the request context.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// VerifyRequest names the user to verify.
type VerifyRequest struct {
	User string `json:"user" binding:"required" example:"student-42"`
}

// CreateAnonymousUser godoc
// @ID          createAnonymousUser
// @Summary     Mint an anonymous identity
// @Tags        Identity
// @Produce     json
// @Success     201  {object} services.Session
// @Router      /users/anonymous [post]
func (h *Handlers) CreateAnonymousUser(c *gin.Context) {
	s, err := h.idSvc.Anonymous(c.Request.Context())
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, s)
}

// VerifyUser godoc
// @ID          verifyUser
// @Summary     Verify a user with the AI backend
// @Description Issues a verified session token when the backend accepts the user.
// @Tags        Identity
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.VerifyRequest  true  "User to verify"
// @Success     200  {object} services.Session
// @Failure     400  {object} handlers.ErrorResponse "User missing"
// @Failure     401  {object} handlers.ErrorResponse "User rejected"
// @Failure     502  {object} handlers.ErrorResponse "Backend unavailable"
// @Router      /auth/verify [post]
func (h *Handlers) VerifyUser(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user required")
		return
	}
	s, err := h.idSvc.Verify(c.Request.Context(), req.User)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, s)
}

// GetUsage godoc
// @ID          getUsage
// @Summary     Message quota of the caller
// @Tags        Identity
// @Produce     json
// @Param       X-User-ID      header  string  false "User ID (demo header)"  example(user123)
// @Param       Authorization  header  string  false "Bearer session token"
// @Success     200  {object} services.UsageStatus
// @Router      /usage [get]
func (h *Handlers) GetUsage(c *gin.Context) {
	st, err := h.usageSvc.Get(c.Request.Context(), userID(c), isAnonymous(c))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, st)
}
