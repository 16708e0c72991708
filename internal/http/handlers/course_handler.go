// Course wizard HTTP handlers.
//
// A course is built through a server-held draft that walks eight steps
// (name, subtopics, education level, country, school, curriculum, materials,
// review). Skill-development drafts skip country and school. Submitting a
// complete draft generates the course outline.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-tutor-backend/internal/domain"
	"github.com/tbourn/go-tutor-backend/internal/repo"
	"github.com/tbourn/go-tutor-backend/internal/services"
)

// ListCoursesResponse lists the user's generated courses.
type ListCoursesResponse struct {
	Courses []domain.Course `json:"courses"`
}

// CreateDraft godoc
// @ID          createDraft
// @Summary     Start a course draft
// @Tags        Courses
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     201  {object} domain.CourseDraft
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /courses/drafts [post]
func (h *Handlers) CreateDraft(c *gin.Context) {
	d, err := h.wizardSvc.Create(c.Request.Context(), userID(c))
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, d)
}

// GetDraft godoc
// @ID          getDraft
// @Summary     Get a course draft
// @Tags        Courses
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Draft ID (UUID)"        format(uuid)
//
// @Success     200  {object} domain.CourseDraft
// @Failure     404  {object} handlers.ErrorResponse "Draft not found"
// @Router      /courses/drafts/{id} [get]
func (h *Handlers) GetDraft(c *gin.Context) {
	id, valid := pathUUID(c, "id", "draft")
	if !valid {
		return
	}
	d, err := h.wizardSvc.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, d)
}

// UpdateDraft godoc
// @ID          updateDraft
// @Summary     Update course draft fields
// @Description Only the fields present in the body change; the current step is kept.
// @Tags        Courses
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Draft ID (UUID)"        format(uuid)
// @Param       body       body    services.DraftPatch  true  "Fields to change"
//
// @Success     200  {object} domain.CourseDraft
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Failure     404  {object} handlers.ErrorResponse "Draft not found"
// @Failure     409  {object} handlers.ErrorResponse "Draft already submitted"
// @Router      /courses/drafts/{id} [patch]
func (h *Handlers) UpdateDraft(c *gin.Context) {
	id, valid := pathUUID(c, "id", "draft")
	if !valid {
		return
	}
	var patch services.DraftPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	d, err := h.wizardSvc.Update(c.Request.Context(), userID(c), id, patch)
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, d)
}

// NextStep godoc
// @ID          nextDraftStep
// @Summary     Advance the wizard
// @Description Moves to the next step once the current step's field is filled in.
// @Tags        Courses
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Draft ID (UUID)"        format(uuid)
//
// @Success     200  {object} domain.CourseDraft
// @Failure     400  {object} handlers.ErrorResponse "Current step incomplete"
// @Failure     404  {object} handlers.ErrorResponse "Draft not found"
// @Failure     422  {object} handlers.ErrorResponse "Already on the last step"
// @Router      /courses/drafts/{id}/next [post]
func (h *Handlers) NextStep(c *gin.Context) {
	id, valid := pathUUID(c, "id", "draft")
	if !valid {
		return
	}
	d, err := h.wizardSvc.Next(c.Request.Context(), userID(c), id)
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, d)
}

// PrevStep godoc
// @ID          prevDraftStep
// @Summary     Go back one wizard step
// @Tags        Courses
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Draft ID (UUID)"        format(uuid)
//
// @Success     200  {object} domain.CourseDraft
// @Failure     404  {object} handlers.ErrorResponse "Draft not found"
// @Failure     422  {object} handlers.ErrorResponse "Already on the first step"
// @Router      /courses/drafts/{id}/prev [post]
func (h *Handlers) PrevStep(c *gin.Context) {
	id, valid := pathUUID(c, "id", "draft")
	if !valid {
		return
	}
	d, err := h.wizardSvc.Prev(c.Request.Context(), userID(c), id)
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, d)
}

// AttachDraftPDF godoc
// @ID          attachDraftPDF
// @Summary     Attach a reference PDF to a draft
// @Tags        Courses
// @Accept      multipart/form-data
// @Produce     json
//
// @Param       X-User-ID  header    string  false "User ID (demo header)"  example(user123)
// @Param       id         path      string  true  "Draft ID (UUID)"        format(uuid)
// @Param       file       formData  file    true  "PDF document"
//
// @Success     200  {object} domain.CourseDraft
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Draft not found"
// @Failure     413  {object} handlers.ErrorResponse "File too large"
// @Failure     415  {object} handlers.ErrorResponse "Not a PDF"
// @Router      /courses/drafts/{id}/pdf [post]
func (h *Handlers) AttachDraftPDF(c *gin.Context) {
	id, valid := pathUUID(c, "id", "draft")
	if !valid {
		return
	}
	files, found := uploadedFiles(c)
	if !found {
		return
	}
	fh := files[0]
	data, err := h.readUpload(fh)
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	d, err := h.wizardSvc.AttachPDF(c.Request.Context(), userID(c), id, fh.Filename, data)
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, d)
}

// SubmitDraft godoc
// @ID          submitDraft
// @Summary     Generate the course of a complete draft
// @Description Validates every required field, builds the course prompt and asks the backend for an outline.
// @Description Generation is retried with exponential backoff before failing with 502.
// @Tags        Courses
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Draft ID (UUID)"        format(uuid)
//
// @Success     201  {object} domain.Course
// @Failure     400  {object} handlers.ErrorResponse "Draft incomplete"
// @Failure     404  {object} handlers.ErrorResponse "Draft not found"
// @Failure     409  {object} handlers.ErrorResponse "Draft already submitted"
// @Failure     502  {object} handlers.ErrorResponse "Outline generation failed"
// @Router      /courses/drafts/{id}/submit [post]
func (h *Handlers) SubmitDraft(c *gin.Context) {
	id, valid := pathUUID(c, "id", "draft")
	if !valid {
		return
	}
	course, err := h.wizardSvc.Submit(c.Request.Context(), userID(c), id)
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, course)
}

// ListCourses godoc
// @ID          listCourses
// @Summary     List generated courses
// @Tags        Courses
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
//
// @Success     200  {object} handlers.ListCoursesResponse
// @Success     304  {string} string "Not Modified"
// @Router      /courses [get]
func (h *Handlers) ListCourses(c *gin.Context) {
	uid := userID(c)
	if h.notModified(c, "courses", uid, repo.CoursesStats) {
		return
	}
	items, err := h.wizardSvc.Courses(c.Request.Context(), uid)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListCoursesResponse{Courses: items})
}

// GetCourse godoc
// @ID          getCourse
// @Summary     Get a generated course
// @Tags        Courses
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Course ID (UUID)"       format(uuid)
//
// @Success     200  {object} domain.Course
// @Failure     404  {object} handlers.ErrorResponse "Course not found"
// @Router      /courses/{id} [get]
func (h *Handlers) GetCourse(c *gin.Context) {
	id, valid := pathUUID(c, "id", "course")
	if !valid {
		return
	}
	course, err := h.wizardSvc.Course(c.Request.Context(), userID(c), id)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, course)
}
