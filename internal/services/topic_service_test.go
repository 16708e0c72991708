package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tbourn/go-tutor-backend/internal/config"
	"github.com/tbourn/go-tutor-backend/internal/domain"
	"github.com/tbourn/go-tutor-backend/internal/upstream"
)

var sampleTopics = []domain.Topic{
	{Title: "Cells", Subtopics: []string{"Membrane", "Nucleus", "Mitochondria"}},
	{Title: "Genetics", Subtopics: nil},
}

func newTopicService(t *testing.T, fb *fakeBackend) (*TopicService, *recordSleep) {
	t.Helper()
	rs := &recordSleep{}
	s := NewTopicService(newServiceDB(t), fb, config.GenerationConfig{
		TopicMaxRetries: 2,
		TopicRetryDelay: 2 * time.Second,
		TopicCacheTTL:   time.Minute,
		DefaultLanguage: "English",
	})
	s.Sleep = rs.Sleep
	return s, rs
}

func TestTopicService_GeneratePersistsAndCaches(t *testing.T) {
	fb := &fakeBackend{topics: func(int) ([]domain.Topic, error) { return sampleTopics, nil }}
	s, _ := newTopicService(t, fb)
	ctx := context.Background()

	set, err := s.Generate(ctx, "u1", TopicsInput{Subject: " Biology ", Difficulty: "easy"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if set.Subject != "Biology" || len(set.Topics) != 2 || set.UserID != "u1" {
		t.Fatalf("unexpected set: %+v", set)
	}
	if fb.topicCalls[0].Count != 5 {
		t.Fatalf("default count should be sent, got %d", fb.topicCalls[0].Count)
	}

	again, err := s.Generate(ctx, "u2", TopicsInput{Subject: "biology", Difficulty: "EASY"})
	if err != nil {
		t.Fatalf("generate again: %v", err)
	}
	if len(fb.topicCalls) != 1 {
		t.Fatalf("equivalent input should hit the cache, calls=%d", len(fb.topicCalls))
	}
	if again.ID == set.ID || again.UserID != "u2" {
		t.Fatalf("each request gets its own set")
	}

	got, err := s.Get(ctx, "u1", set.ID)
	if err != nil || got.Topics[0].Title != "Cells" {
		t.Fatalf("get: %+v %v", got, err)
	}
	if _, err := s.Get(ctx, "u2", set.ID); !errors.Is(err, ErrTopicSetNotFound) {
		t.Fatalf("foreign set: want ErrTopicSetNotFound, got %v", err)
	}
	list, _ := s.List(ctx, "u1")
	if len(list) != 1 {
		t.Fatalf("list: %d", len(list))
	}
}

func TestTopicService_GenerateRetriesTwiceThenFails(t *testing.T) {
	fb := &fakeBackend{topics: func(int) ([]domain.Topic, error) {
		return nil, &upstream.Error{Endpoint: upstream.EndpointGenerateTopics, Status: 500}
	}}
	s, rs := newTopicService(t, fb)
	before := testutil.ToFloat64(generationRetries.WithLabelValues("topics"))

	_, err := s.Generate(context.Background(), "u1", TopicsInput{Subject: "History"})
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("want ErrGenerationFailed, got %v", err)
	}
	if len(fb.topicCalls) != 3 {
		t.Fatalf("want 3 calls (2 retries), got %d", len(fb.topicCalls))
	}
	if len(rs.delays) != 2 || rs.delays[0] != 2*time.Second || rs.delays[1] != 2*time.Second {
		t.Fatalf("want fixed 2s delays, got %v", rs.delays)
	}
	if d := testutil.ToFloat64(generationRetries.WithLabelValues("topics")) - before; d != 2 {
		t.Fatalf("want 2 retries counted, got %v", d)
	}
	if list, _ := s.List(context.Background(), "u1"); len(list) != 0 {
		t.Fatalf("failed generation must not store a set")
	}
}

func TestTopicService_GenerateRecoversOnRetry(t *testing.T) {
	fb := &fakeBackend{topics: func(n int) ([]domain.Topic, error) {
		if n == 1 {
			return nil, nil
		}
		return sampleTopics, nil
	}}
	s, rs := newTopicService(t, fb)
	s.Cache = nil

	if _, err := s.Generate(context.Background(), "u1", TopicsInput{Subject: "Art"}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(fb.topicCalls) != 2 || len(rs.delays) != 1 {
		t.Fatalf("empty result should be retried once: calls=%d sleeps=%d", len(fb.topicCalls), len(rs.delays))
	}
}

func TestTopicService_GenerateValidates(t *testing.T) {
	s, _ := newTopicService(t, &fakeBackend{})
	ctx := context.Background()
	if _, err := s.Generate(ctx, "u1", TopicsInput{Subject: "  "}); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank subject: want ErrValidation, got %v", err)
	}
	if _, err := s.Generate(ctx, "u1", TopicsInput{Subject: "x", Count: 99}); !errors.Is(err, ErrValidation) {
		t.Fatalf("count: want ErrValidation, got %v", err)
	}
	missing := "3f2504e0-4f89-41d3-9a0c-0305e82c3301"
	fb := &fakeBackend{topics: func(int) ([]domain.Topic, error) { return sampleTopics, nil }}
	s.Backend = fb
	if _, err := s.Generate(ctx, "u1", TopicsInput{Subject: "x", CourseID: missing}); !errors.Is(err, ErrCourseNotFound) {
		t.Fatalf("unknown course: want ErrCourseNotFound, got %v", err)
	}
}

func TestTopicService_GenerateContentContinuesPastFailures(t *testing.T) {
	fb := &fakeBackend{
		topics: func(int) ([]domain.Topic, error) { return sampleTopics, nil },
		content: func(in upstream.ContentRequest) (string, error) {
			if in.SubtopicTitle == "Nucleus" {
				return "", errors.New("timeout")
			}
			return "## " + in.SubtopicTitle + "\n\nThe " + in.SubtopicTitle + " controls what enters and leaves the cell.", nil
		},
	}
	s, _ := newTopicService(t, fb)
	ctx := context.Background()
	set, err := s.Generate(ctx, "u1", TopicsInput{Subject: "Biology", Difficulty: "hard", EducationLevel: "university"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	items, err := s.GenerateContent(ctx, "u1", set.ID, 0, ContentOptions{ContentType: "quiz"})
	if err != nil {
		t.Fatalf("content: %v", err)
	}
	if len(items) != 3 || len(fb.contentCalls) != 3 {
		t.Fatalf("every subtopic must be attempted: items=%d calls=%d", len(items), len(fb.contentCalls))
	}
	for i, want := range []string{"Membrane", "Nucleus", "Mitochondria"} {
		if fb.contentCalls[i].SubtopicTitle != want || items[i].SubtopicTitle != want {
			t.Fatalf("order broken at %d: %+v", i, fb.contentCalls[i])
		}
	}
	if !items[1].Failed || items[1].Error == "" || items[0].Failed || items[2].Failed {
		t.Fatalf("only the second item should fail: %+v", items)
	}

	c := fb.contentCalls[0]
	if c.MainTopic != "Cells" || c.Subject != "Biology" || c.Difficulty != "hard" || c.EducationLevel != "university" ||
		c.ContentType != "quiz" || c.Language != "English" {
		t.Fatalf("unexpected request: %+v", c)
	}
	if len(c.RelatedSubtopics) != 2 || c.RelatedSubtopics[0] != "Nucleus" || c.RelatedSubtopics[1] != "Mitochondria" {
		t.Fatalf("related subtopics: %v", c.RelatedSubtopics)
	}

	stored, err := s.Contents(ctx, "u1", set.ID)
	if err != nil || len(stored) != 3 || stored[2].Position != 2 {
		t.Fatalf("contents: %+v %v", stored, err)
	}

	hits, err := s.Search(ctx, "u1", set.ID, "mitochondria cell", 1)
	if err != nil || len(hits) != 1 || hits[0].SubtopicTitle != "Mitochondria" {
		t.Fatalf("search: %+v %v", hits, err)
	}
	if _, err := s.Search(ctx, "u1", set.ID, " ", 1); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank query: want ErrValidation, got %v", err)
	}
}

func TestTopicService_GenerateContentEdgeCases(t *testing.T) {
	fb := &fakeBackend{
		topics:  func(int) ([]domain.Topic, error) { return sampleTopics, nil },
		content: func(in upstream.ContentRequest) (string, error) { return "text", nil },
	}
	s, _ := newTopicService(t, fb)
	ctx := context.Background()
	set, _ := s.Generate(ctx, "u1", TopicsInput{Subject: "Biology"})

	if _, err := s.GenerateContent(ctx, "u1", set.ID, 5, ContentOptions{}); !errors.Is(err, ErrTopicIndex) {
		t.Fatalf("want ErrTopicIndex, got %v", err)
	}
	if _, err := s.GenerateContent(ctx, "u2", set.ID, 0, ContentOptions{}); !errors.Is(err, ErrTopicSetNotFound) {
		t.Fatalf("want ErrTopicSetNotFound, got %v", err)
	}

	items, err := s.GenerateContent(ctx, "u1", set.ID, 1, ContentOptions{Language: "Swahili"})
	if err != nil || len(items) != 1 || items[0].SubtopicTitle != "Genetics" {
		t.Fatalf("topic without subtopics should use its title: %+v %v", items, err)
	}
	if c := fb.contentCalls[0]; c.ContentType != "notes" || c.Language != "Swahili" || len(c.RelatedSubtopics) != 0 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestTopicsCacheKey_Normalizes(t *testing.T) {
	a := topicsCacheKey(upstream.TopicsRequest{Subject: "World  History", Difficulty: "Easy", Count: 3})
	b := topicsCacheKey(upstream.TopicsRequest{Subject: "world history", Difficulty: "easy", Count: 3})
	c := topicsCacheKey(upstream.TopicsRequest{Subject: "world history", Difficulty: "easy", Count: 4})
	if a != b || a == c {
		t.Fatalf("keys: a=%q b=%q c=%q", a, b, c)
	}

	s := &TopicService{Cache: cache.New(time.Minute, 0)}
	s.Cache.SetDefault("k", "not topics")
	if _, ok := s.cached("k"); ok {
		t.Fatalf("foreign cache values must be ignored")
	}
}
