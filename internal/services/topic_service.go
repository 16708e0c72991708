// Package services – TopicService
//
// TopicService generates the topic list of a subject and the learning
// material of each subtopic. Topic generation is retried a fixed number of
// times with a fixed delay before it fails for good; results are cached per
// normalized input and stored as a TopicSet.
//
// Content generation walks the subtopics of one topic in order. A failed
// subtopic is recorded with its error and the walk continues, so a batch
// may be partially successful.
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-tutor-backend/internal/config"
	"github.com/tbourn/go-tutor-backend/internal/domain"
	"github.com/tbourn/go-tutor-backend/internal/repo"
	"github.com/tbourn/go-tutor-backend/internal/search"
	"github.com/tbourn/go-tutor-backend/internal/upstream"
)

// TopicBackend generates topics and subtopic contents.
type TopicBackend interface {
	GenerateTopics(ctx context.Context, in upstream.TopicsRequest) ([]domain.Topic, error)
	GenerateContent(ctx context.Context, in upstream.ContentRequest) (string, error)
}

// TopicsInput selects the topics to generate.
type TopicsInput struct {
	Subject        string `json:"subject"         validate:"notblank,max=255"`
	Difficulty     string `json:"difficulty"      validate:"omitempty,max=64"`
	EducationLevel string `json:"education_level" validate:"omitempty,max=64"`
	Subtopics      string `json:"subtopics"       validate:"omitempty,max=4000"`
	Count          int    `json:"count"           validate:"omitempty,min=1,max=20"`
	CourseID       string `json:"course_id"       validate:"omitempty,uuid"`
}

// ContentOptions shape the generated material.
type ContentOptions struct {
	ContentType string `json:"content_type" validate:"omitempty,max=64"`
	Language    string `json:"language"     validate:"omitempty,max=64"`
}

// SearchHit is a matching passage of generated content.
type SearchHit struct {
	ContentID     string  `json:"content_id"`
	MainTopic     string  `json:"main_topic"`
	SubtopicTitle string  `json:"subtopic_title"`
	Snippet       string  `json:"snippet"`
	Score         float64 `json:"score"`
}

// TopicService implements topic and content generation.
type TopicService struct {
	DB      *gorm.DB
	Backend TopicBackend
	// Cache holds generated topic lists; nil disables caching.
	Cache *cache.Cache

	MaxRetries      int
	RetryDelay      time.Duration
	DefaultLanguage string
	DefaultCount    int

	Sleep SleepFunc
}

// NewTopicService wires a TopicService from the generation settings.
func NewTopicService(db *gorm.DB, backend TopicBackend, cfg config.GenerationConfig) *TopicService {
	return &TopicService{
		DB:              db,
		Backend:         backend,
		Cache:           cache.New(cfg.TopicCacheTTL, 2*cfg.TopicCacheTTL),
		MaxRetries:      cfg.TopicMaxRetries,
		RetryDelay:      cfg.TopicRetryDelay,
		DefaultLanguage: cfg.DefaultLanguage,
		DefaultCount:    5,
	}
}

// Generate produces the topics of a subject and stores them as a new set.
func (s *TopicService) Generate(ctx context.Context, userID string, in TopicsInput) (*domain.TopicSet, error) {
	tr := otel.Tracer("services/TopicService")
	ctx, span := tr.Start(ctx, "Generate",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("topic.subject", in.Subject),
		),
	)
	defer span.End()

	if err := validateStruct(in); err != nil {
		return nil, err
	}
	req := upstream.TopicsRequest{
		Subject:        strings.TrimSpace(in.Subject),
		Difficulty:     strings.TrimSpace(in.Difficulty),
		EducationLevel: strings.TrimSpace(in.EducationLevel),
		Subtopics:      strings.TrimSpace(in.Subtopics),
		Count:          in.Count,
	}
	if req.Count == 0 {
		req.Count = s.DefaultCount
	}

	var courseID *string
	if in.CourseID != "" {
		if _, err := repo.GetCourse(ctx, s.DB, in.CourseID, userID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, ErrCourseNotFound
			}
			return nil, err
		}
		courseID = &in.CourseID
	}

	key := topicsCacheKey(req)
	topics, cached := s.cached(key)
	span.SetAttributes(attribute.Bool("cache.hit", cached))
	if !cached {
		var err error
		if topics, err = s.generateTopics(ctx, req); err != nil {
			span.RecordError(err)
			return nil, err
		}
		if s.Cache != nil {
			s.Cache.SetDefault(key, topics)
		}
	}

	set := &domain.TopicSet{
		UserID:         userID,
		CourseID:       courseID,
		Subject:        req.Subject,
		Difficulty:     req.Difficulty,
		EducationLevel: req.EducationLevel,
		Topics:         datatypes.NewJSONSlice(topics),
	}
	if err := repo.CreateTopicSet(ctx, s.DB, set); err != nil {
		return nil, err
	}
	return set, nil
}

// generateTopics makes one call plus up to MaxRetries retries.
func (s *TopicService) generateTopics(ctx context.Context, req upstream.TopicsRequest) ([]domain.Topic, error) {
	retries := s.MaxRetries
	if retries < 0 {
		retries = 0
	}
	sleep := s.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		topics, err := s.Backend.GenerateTopics(ctx, req)
		if err == nil && len(topics) == 0 {
			err = errors.New("no topics returned")
		}
		if err == nil {
			return topics, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt+1).Str("subject", req.Subject).Msg("topic generation failed")

		if attempt < retries {
			generationRetries.WithLabelValues("topics").Inc()
			if err := sleep(ctx, s.RetryDelay); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, lastErr)
}

func (s *TopicService) cached(key string) ([]domain.Topic, bool) {
	if s.Cache == nil {
		return nil, false
	}
	v, ok := s.Cache.Get(key)
	if !ok {
		return nil, false
	}
	topics, ok := v.([]domain.Topic)
	return topics, ok
}

// topicsCacheKey normalizes the request so equivalent inputs share an entry.
func topicsCacheKey(req upstream.TopicsRequest) string {
	norm := func(s string) string { return strings.Join(strings.Fields(strings.ToLower(s)), " ") }
	return strings.Join([]string{
		norm(req.Subject),
		norm(req.Difficulty),
		norm(req.EducationLevel),
		norm(req.Subtopics),
		strconv.Itoa(req.Count),
	}, "\x1f")
}

// GenerateContent produces the material of every subtopic of the topic at
// topicIndex, in order, and stores the results.
func (s *TopicService) GenerateContent(ctx context.Context, userID, setID string, topicIndex int, opts ContentOptions) ([]domain.TopicContent, error) {
	tr := otel.Tracer("services/TopicService")
	ctx, span := tr.Start(ctx, "GenerateContent",
		trace.WithAttributes(
			attribute.String("topic_set.id", setID),
			attribute.Int("topic.index", topicIndex),
		),
	)
	defer span.End()

	if err := validateStruct(opts); err != nil {
		return nil, err
	}
	set, err := s.Get(ctx, userID, setID)
	if err != nil {
		return nil, err
	}
	topics := set.Topics
	if topicIndex < 0 || topicIndex >= len(topics) {
		return nil, ErrTopicIndex
	}
	topic := topics[topicIndex]

	contentType := strings.TrimSpace(opts.ContentType)
	if contentType == "" {
		contentType = "notes"
	}
	lang := strings.TrimSpace(opts.Language)
	if lang == "" {
		lang = s.DefaultLanguage
	}
	if lang == "" {
		lang = "English"
	}

	subtopics := topic.Subtopics
	if len(subtopics) == 0 {
		subtopics = []string{topic.Title}
	}

	items := make([]domain.TopicContent, 0, len(subtopics))
	failed := 0
	for i, sub := range subtopics {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		related := make([]string, 0, len(subtopics)-1)
		for j, other := range subtopics {
			if j != i {
				related = append(related, other)
			}
		}

		item := domain.TopicContent{MainTopic: topic.Title, SubtopicTitle: sub, ContentType: contentType}
		text, err := s.Backend.GenerateContent(ctx, upstream.ContentRequest{
			MainTopic:        topic.Title,
			SubtopicTitle:    sub,
			ContentType:      contentType,
			EducationLevel:   set.EducationLevel,
			Subject:          set.Subject,
			RelatedSubtopics: related,
			Difficulty:       set.Difficulty,
			Language:         lang,
		})
		if err != nil {
			failed++
			item.Failed = true
			item.Error = err.Error()
			generatedContents.WithLabelValues("failed").Inc()
			log.Warn().Err(err).Str("topic_set_id", set.ID).Str("subtopic", sub).Msg("content generation failed")
		} else {
			item.Content = text
			generatedContents.WithLabelValues("ok").Inc()
		}
		items = append(items, item)
	}
	span.SetAttributes(attribute.Int("contents.failed", failed))

	if err := repo.AppendTopicContents(ctx, s.DB, set.ID, items); err != nil {
		return nil, err
	}
	return items, nil
}

// Get returns a topic set owned by userID.
func (s *TopicService) Get(ctx context.Context, userID, id string) (*domain.TopicSet, error) {
	set, err := repo.GetTopicSet(ctx, s.DB, id, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrTopicSetNotFound
		}
		return nil, err
	}
	return set, nil
}

// List returns the user's topic sets, most recent first.
func (s *TopicService) List(ctx context.Context, userID string) ([]domain.TopicSet, error) {
	return repo.ListTopicSets(ctx, s.DB, userID)
}

// Contents returns the generated contents of a set in generation order.
func (s *TopicService) Contents(ctx context.Context, userID, id string) ([]domain.TopicContent, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	return repo.ListTopicContents(ctx, s.DB, id)
}

// Search returns the k passages of a set's generated content that best
// match q.
func (s *TopicService) Search(ctx context.Context, userID, id, q string, k int) ([]SearchHit, error) {
	if strings.TrimSpace(q) == "" {
		return nil, &ValidationError{Fields: map[string]string{"q": "q is a required field"}}
	}
	contents, err := s.Contents(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	docs := make([]search.Document, 0, len(contents))
	byID := make(map[string]*domain.TopicContent, len(contents))
	for i := range contents {
		c := &contents[i]
		if c.Failed || strings.TrimSpace(c.Content) == "" {
			continue
		}
		docs = append(docs, search.Document{ID: c.ID, Text: c.Content})
		byID[c.ID] = c
	}

	results := search.New(docs).TopK(q, k)
	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		c := byID[r.DocID]
		hits = append(hits, SearchHit{
			ContentID:     r.DocID,
			MainTopic:     c.MainTopic,
			SubtopicTitle: c.SubtopicTitle,
			Snippet:       r.Snippet,
			Score:         r.Score,
		})
	}
	return hits, nil
}
