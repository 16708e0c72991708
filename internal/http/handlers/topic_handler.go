// Topic HTTP handlers.
//
// A topic set is generated for a subject; each of its topics can then have
// learning material generated per subtopic, which is stored and searchable.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-tutor-backend/internal/domain"
	"github.com/tbourn/go-tutor-backend/internal/repo"
	"github.com/tbourn/go-tutor-backend/internal/services"
	"github.com/tbourn/go-tutor-backend/internal/utils"
)

// ListTopicSetsResponse lists the user's topic sets.
type ListTopicSetsResponse struct {
	TopicSets []domain.TopicSet `json:"topic_sets"`
}

// ContentsResponse carries generated subtopic material in generation order.
// Items with failed=true carry the error instead of content.
type ContentsResponse struct {
	Contents []domain.TopicContent `json:"contents"`
}

// SearchResponse carries the passages matching a query.
type SearchResponse struct {
	Query string               `json:"query"`
	Hits  []services.SearchHit `json:"hits"`
}

// GenerateTopics godoc
// @ID          generateTopics
// @Summary     Generate the topics of a subject
// @Description Generation is retried a fixed number of times with a fixed delay before failing with 502.
// @Tags        Topics
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    services.TopicsInput  true  "Subject and shaping options"
//
// @Success     201  {object} domain.TopicSet
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Failure     404  {object} handlers.ErrorResponse "Course not found"
// @Failure     502  {object} handlers.ErrorResponse "Generation failed"
// @Router      /topics [post]
func (h *Handlers) GenerateTopics(c *gin.Context) {
	var in services.TopicsInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	set, err := h.topicSvc.Generate(c.Request.Context(), userID(c), in)
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, set)
}

// ListTopicSets godoc
// @ID          listTopicSets
// @Summary     List topic sets
// @Tags        Topics
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
//
// @Success     200  {object} handlers.ListTopicSetsResponse
// @Success     304  {string} string "Not Modified"
// @Router      /topics [get]
func (h *Handlers) ListTopicSets(c *gin.Context) {
	uid := userID(c)
	if h.notModified(c, "topics", uid, repo.TopicSetsStats) {
		return
	}
	sets, err := h.topicSvc.List(c.Request.Context(), uid)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListTopicSetsResponse{TopicSets: sets})
}

// GetTopicSet godoc
// @ID          getTopicSet
// @Summary     Get a topic set
// @Tags        Topics
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Topic set ID (UUID)"    format(uuid)
//
// @Success     200  {object} domain.TopicSet
// @Failure     404  {object} handlers.ErrorResponse "Topic set not found"
// @Router      /topics/{id} [get]
func (h *Handlers) GetTopicSet(c *gin.Context) {
	id, valid := pathUUID(c, "id", "topic set")
	if !valid {
		return
	}
	set, err := h.topicSvc.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, set)
}

// GenerateContent godoc
// @ID          generateTopicContent
// @Summary     Generate material for every subtopic of a topic
// @Description Subtopics are processed in order. A failing subtopic is recorded and the rest continue.
// @Tags        Topics
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Topic set ID (UUID)"    format(uuid)
// @Param       index      path    int     true  "Topic index within the set" minimum(0)
// @Param       body       body    services.ContentOptions  false  "Content type and language"
//
// @Success     200  {object} handlers.ContentsResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Topic set or topic not found"
// @Router      /topics/{id}/topics/{index}/content [post]
func (h *Handlers) GenerateContent(c *gin.Context) {
	id, valid := pathUUID(c, "id", "topic set")
	if !valid {
		return
	}
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil || idx < 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "index must be a non-negative integer")
		return
	}

	var opts services.ContentOptions
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&opts); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}

	items, err := h.topicSvc.GenerateContent(c.Request.Context(), userID(c), id, idx, opts)
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusOK, ContentsResponse{Contents: items})
}

// ListContents godoc
// @ID          listTopicContents
// @Summary     List generated material of a topic set
// @Tags        Topics
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Topic set ID (UUID)"    format(uuid)
//
// @Success     200  {object} handlers.ContentsResponse
// @Failure     404  {object} handlers.ErrorResponse "Topic set not found"
// @Router      /topics/{id}/contents [get]
func (h *Handlers) ListContents(c *gin.Context) {
	id, valid := pathUUID(c, "id", "topic set")
	if !valid {
		return
	}
	items, err := h.topicSvc.Contents(c.Request.Context(), userID(c), id)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ContentsResponse{Contents: items})
}

// SearchContents godoc
// @ID          searchTopicContents
// @Summary     Search generated material
// @Tags        Topics
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Topic set ID (UUID)"    format(uuid)
// @Param       q          query   string  true  "Search query"
// @Param       k          query   int     false "Maximum hits"  minimum(1) maximum(20) default(5)
//
// @Success     200  {object} handlers.SearchResponse
// @Failure     400  {object} handlers.ErrorResponse "Missing query"
// @Failure     404  {object} handlers.ErrorResponse "Topic set not found"
// @Router      /topics/{id}/search [get]
func (h *Handlers) SearchContents(c *gin.Context) {
	id, valid := pathUUID(c, "id", "topic set")
	if !valid {
		return
	}
	k := utils.ClampInt(utils.AtoiDefault(c.Query("k"), 5), 1, 20)
	q := c.Query("q")
	hits, err := h.topicSvc.Search(c.Request.Context(), userID(c), id, q, k)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, SearchResponse{Query: q, Hits: hits})
}
