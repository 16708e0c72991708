// Account dashboard HTTP handlers: profile, settings, pricing, subscription
// and the contact form.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/tbourn/go-tutor-backend/internal/services"
)

// PlanView is a pricing entry with its yearly savings.
type PlanView struct {
	services.Plan
	YearlySavings decimal.Decimal `json:"yearly_savings" swaggertype:"string" example:"19.89"`
}

// ListPlansResponse is the pricing page.
type ListPlansResponse struct {
	Plans []PlanView `json:"plans"`
}

// ChangePlanRequest selects a plan and billing cycle.
type ChangePlanRequest struct {
	Plan  string `json:"plan"  binding:"required" enums:"free,pro,premium" example:"pro"`
	Cycle string `json:"cycle" enums:"monthly,yearly" example:"yearly"`
}

// ContactResponse acknowledges a stored contact submission.
type ContactResponse struct {
	ID        string `json:"id"`
	Delivered bool   `json:"delivered"`
}

// GetProfile godoc
// @ID          getProfile
// @Summary     Get the user's profile
// @Tags        Account
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Success     200  {object} domain.Profile
// @Router      /profile [get]
func (h *Handlers) GetProfile(c *gin.Context) {
	p, err := h.accountSvc.GetProfile(c.Request.Context(), userID(c))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, p)
}

// UpdatePersonalInfo godoc
// @ID          updatePersonalInfo
// @Summary     Update personal information
// @Tags        Account
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    services.PersonalInfo  true  "Personal section"
// @Success     200  {object} domain.Profile
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Router      /profile/personal [put]
func (h *Handlers) UpdatePersonalInfo(c *gin.Context) {
	var in services.PersonalInfo
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	p, err := h.accountSvc.UpdatePersonalInfo(c.Request.Context(), userID(c), in)
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, p)
}

// UpdateSocialMedia godoc
// @ID          updateSocialMedia
// @Summary     Update social links
// @Tags        Account
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    services.SocialMedia  true  "Links section"
// @Success     200  {object} domain.Profile
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Router      /profile/social [put]
func (h *Handlers) UpdateSocialMedia(c *gin.Context) {
	var in services.SocialMedia
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	p, err := h.accountSvc.UpdateSocialMedia(c.Request.Context(), userID(c), in)
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, p)
}

// GetSettings godoc
// @ID          getSettings
// @Summary     Get the user's settings
// @Tags        Account
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Success     200  {object} domain.Settings
// @Router      /settings [get]
func (h *Handlers) GetSettings(c *gin.Context) {
	s, err := h.accountSvc.GetSettings(c.Request.Context(), userID(c))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, s)
}

// UpdateSettings godoc
// @ID          updateSettings
// @Summary     Replace the user's settings
// @Tags        Account
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    services.SettingsInput  true  "Settings"
// @Success     200  {object} domain.Settings
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Router      /settings [put]
func (h *Handlers) UpdateSettings(c *gin.Context) {
	var in services.SettingsInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	s, err := h.accountSvc.UpdateSettings(c.Request.Context(), userID(c), in)
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, s)
}

// ListPlans godoc
// @ID          listPlans
// @Summary     Pricing plans
// @Tags        Subscription
// @Produce     json
// @Success     200  {object} handlers.ListPlansResponse
// @Router      /plans [get]
func (h *Handlers) ListPlans(c *gin.Context) {
	plans := h.subSvc.Plans()
	views := make([]PlanView, 0, len(plans))
	for _, p := range plans {
		views = append(views, PlanView{Plan: p, YearlySavings: p.YearlySavings()})
	}
	ok(c, http.StatusOK, ListPlansResponse{Plans: views})
}

// GetSubscription godoc
// @ID          getSubscription
// @Summary     Get the user's subscription
// @Tags        Subscription
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Success     200  {object} domain.Subscription
// @Router      /subscription [get]
func (h *Handlers) GetSubscription(c *gin.Context) {
	sub, err := h.subSvc.Get(c.Request.Context(), userID(c))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, sub)
}

// ChangePlan godoc
// @ID          changePlan
// @Summary     Switch plan or billing cycle
// @Description Returns the new subscription and the prorated credit of the unused paid period.
// @Tags        Subscription
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.ChangePlanRequest  true  "Target plan"
// @Success     200  {object} services.PlanChange
// @Failure     400  {object} handlers.ErrorResponse "Unknown plan or cycle"
// @Router      /subscription [put]
func (h *Handlers) ChangePlan(c *gin.Context) {
	var req ChangePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "plan required")
		return
	}
	change, err := h.subSvc.ChangePlan(c.Request.Context(), userID(c), req.Plan, req.Cycle)
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, change)
}

// CancelSubscription godoc
// @ID          cancelSubscription
// @Summary     Cancel at the end of the paid period
// @Tags        Subscription
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Success     200  {object} domain.Subscription
// @Failure     400  {object} handlers.ErrorResponse "Nothing to cancel"
// @Router      /subscription/cancel [post]
func (h *Handlers) CancelSubscription(c *gin.Context) {
	sub, err := h.subSvc.Cancel(c.Request.Context(), userID(c))
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, sub)
}

// ResumeSubscription godoc
// @ID          resumeSubscription
// @Summary     Undo a pending cancellation
// @Tags        Subscription
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Success     200  {object} domain.Subscription
// @Failure     409  {object} handlers.ErrorResponse "Subscription is not canceled"
// @Router      /subscription/resume [post]
func (h *Handlers) ResumeSubscription(c *gin.Context) {
	sub, err := h.subSvc.Resume(c.Request.Context(), userID(c))
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, sub)
}

// SubmitContact godoc
// @ID          submitContact
// @Summary     Send a contact form message
// @Description The message is stored before delivery; a delivery failure answers 502 but keeps the record.
// @Tags        Contact
// @Accept      json
// @Produce     json
// @Param       body  body  services.ContactInput  true  "Contact form"
// @Success     201  {object} handlers.ContactResponse
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Failure     502  {object} handlers.ErrorResponse "Delivery failed"
// @Router      /contact [post]
func (h *Handlers) SubmitContact(c *gin.Context) {
	var in services.ContactInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	msg, err := h.contactSvc.Submit(c.Request.Context(), in)
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, ContactResponse{ID: msg.ID, Delivered: msg.Delivered})
}
