// Package services – WizardService
//
// WizardService drives the eight-step course creation form. A draft holds the
// form state and the index of the current step; Next validates that step's
// fields before advancing. Learners at the skill development level skip the
// country and school steps in both directions.
//
// Submit turns the draft into a natural-language prompt, asks the prompt
// backend for a course outline and stores the parsed result as a Course.
// Failed calls and unparseable replies are retried a bounded number of times
// with exponential backoff.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-tutor-backend/internal/domain"
	"github.com/tbourn/go-tutor-backend/internal/repo"
)

// Wizard step indexes.
const (
	StepCourseName = iota
	StepSubtopics
	StepEducationLevel
	StepCountry
	StepSchool
	StepCurriculum
	StepMaterials
	StepReview

	LastStep = StepReview
)

// CourseBackend generates a course outline from a prompt.
type CourseBackend interface {
	GeneratePrompt(ctx context.Context, prompt string) (string, error)
}

// DraftPatch is a partial update of the wizard form. Nil fields are left
// untouched.
type DraftPatch struct {
	CourseName     *string                   `json:"course_name"     validate:"omitempty,max=255"`
	Subtopics      *string                   `json:"subtopics"       validate:"omitempty,max=4000"`
	EducationLevel *string                   `json:"education_level" validate:"omitempty,max=64"`
	Country        *string                   `json:"country"         validate:"omitempty,max=128"`
	School         *string                   `json:"school"          validate:"omitempty,max=255"`
	Curriculum     *string                   `json:"curriculum"      validate:"omitempty,max=255"`
	Materials      *domain.LearningMaterials `json:"materials"`
}

// draftFields mirrors the form for required-field checks.
type draftFields struct {
	CourseName     string `json:"course_name"     validate:"notblank"`
	Subtopics      string `json:"subtopics"       validate:"notblank"`
	EducationLevel string `json:"education_level" validate:"notblank"`
	Country        string `json:"country"         validate:"notblank"`
	School         string `json:"school"          validate:"notblank"`
	Curriculum     string `json:"curriculum"      validate:"notblank"`
	Materials      bool   `json:"materials"       validate:"required"`
}

// stepFields maps a step to the draftFields it requires.
var stepFields = map[int]string{
	StepCourseName:     "CourseName",
	StepSubtopics:      "Subtopics",
	StepEducationLevel: "EducationLevel",
	StepCountry:        "Country",
	StepSchool:         "School",
	StepCurriculum:     "Curriculum",
	StepMaterials:      "Materials",
}

// WizardService implements the course creation wizard.
type WizardService struct {
	DB      *gorm.DB
	Backend CourseBackend

	// MaxAttempts bounds the prompt calls of one Submit (default 3).
	MaxAttempts int
	// BaseDelay is the first retry delay; it doubles up to MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// PDFMaxBytes caps the reference PDF; <= 0 disables the check.
	PDFMaxBytes int64

	Sleep SleepFunc
}

// NextStep returns the step after step for the given education level.
func NextStep(step int, level string) int {
	if step == StepEducationLevel && domain.IsSkillDevelopment(level) {
		return StepCurriculum
	}
	if step >= LastStep {
		return LastStep
	}
	if step < 0 {
		return 0
	}
	return step + 1
}

// PrevStep returns the step before step for the given education level.
func PrevStep(step int, level string) int {
	if step == StepCurriculum && domain.IsSkillDevelopment(level) {
		return StepEducationLevel
	}
	if step <= 0 {
		return 0
	}
	if step > LastStep {
		return LastStep
	}
	return step - 1
}

// Create starts a new draft on the first step.
func (s *WizardService) Create(ctx context.Context, userID string) (*domain.CourseDraft, error) {
	return repo.CreateDraft(ctx, s.DB, userID)
}

// Get returns a draft owned by userID.
func (s *WizardService) Get(ctx context.Context, userID, id string) (*domain.CourseDraft, error) {
	d, err := repo.GetDraft(ctx, s.DB, id, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrDraftNotFound
		}
		return nil, err
	}
	return d, nil
}

// Update applies p to an open draft.
func (s *WizardService) Update(ctx context.Context, userID, id string, p DraftPatch) (*domain.CourseDraft, error) {
	if err := validateStruct(p); err != nil {
		return nil, err
	}
	return s.mutate(ctx, userID, id, func(d *domain.CourseDraft) error {
		set := func(dst *string, v *string) {
			if v != nil {
				*dst = strings.TrimSpace(*v)
			}
		}
		set(&d.CourseName, p.CourseName)
		set(&d.Subtopics, p.Subtopics)
		set(&d.EducationLevel, p.EducationLevel)
		set(&d.Country, p.Country)
		set(&d.School, p.School)
		set(&d.Curriculum, p.Curriculum)
		if p.Materials != nil {
			d.Materials = datatypes.NewJSONType(*p.Materials)
		}
		return nil
	})
}

// Next validates the current step and advances. Calling it on the review
// step returns ErrInvalidStep; Submit finishes the wizard from there.
func (s *WizardService) Next(ctx context.Context, userID, id string) (*domain.CourseDraft, error) {
	return s.mutate(ctx, userID, id, func(d *domain.CourseDraft) error {
		if d.Step >= LastStep {
			return ErrInvalidStep
		}
		if f, ok := stepFields[d.Step]; ok {
			if err := validatePartial(fieldsOf(d), f); err != nil {
				return err
			}
		}
		d.Step = NextStep(d.Step, d.EducationLevel)
		return nil
	})
}

// Prev steps back. Calling it on the first step returns ErrInvalidStep.
func (s *WizardService) Prev(ctx context.Context, userID, id string) (*domain.CourseDraft, error) {
	return s.mutate(ctx, userID, id, func(d *domain.CourseDraft) error {
		if d.Step <= 0 {
			return ErrInvalidStep
		}
		d.Step = PrevStep(d.Step, d.EducationLevel)
		return nil
	})
}

// AttachPDF stores the optional reference document of the draft.
func (s *WizardService) AttachPDF(ctx context.Context, userID, id, name string, data []byte) (*domain.CourseDraft, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	if s.PDFMaxBytes > 0 && int64(len(data)) > s.PDFMaxBytes {
		return nil, ErrFileTooLarge
	}
	if !strings.HasPrefix(http.DetectContentType(data), "application/pdf") {
		return nil, ErrUnsupportedFile
	}
	return s.mutate(ctx, userID, id, func(d *domain.CourseDraft) error {
		d.PDFName = strings.TrimSpace(name)
		if d.PDFName == "" {
			d.PDFName = "document.pdf"
		}
		d.PDFData = data
		return nil
	})
}

// Submit generates the course outline for a complete draft, stores the
// course and closes the draft.
func (s *WizardService) Submit(ctx context.Context, userID, id string) (*domain.Course, error) {
	tr := otel.Tracer("services/WizardService")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(
			attribute.String("draft.id", id),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	d, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if d.Status == domain.DraftStatusSubmitted {
		return nil, ErrDraftSubmitted
	}
	if err := validateDraft(d); err != nil {
		return nil, err
	}

	outline, err := s.generateOutline(ctx, BuildCoursePrompt(d))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	name := strings.TrimSpace(d.CourseName)
	if name == "" {
		name = outline.Title
	}
	course := &domain.Course{
		UserID:         userID,
		DraftID:        d.ID,
		Name:           cases.Title(language.English, cases.NoLower).String(name),
		EducationLevel: d.EducationLevel,
		Curriculum:     d.Curriculum,
		Outline:        datatypes.NewJSONType(*outline),
	}
	if !d.SkipsInstitution() {
		course.Country = d.Country
		course.School = d.School
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.MarkDraftSubmitted(ctx, tx, d.ID, userID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrDraftSubmitted
			}
			return err
		}
		return repo.CreateCourse(ctx, tx, course)
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("course.id", course.ID))
	return course, nil
}

// generateOutline calls the prompt backend until a reply parses or the
// attempts run out.
func (s *WizardService) generateOutline(ctx context.Context, prompt string) (*domain.CourseOutline, error) {
	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	sleep := s.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	maxDelay := s.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		text, err := s.Backend.GeneratePrompt(ctx, prompt)
		if err == nil {
			var outline *domain.CourseOutline
			if outline, err = ParseOutline(text); err == nil {
				return outline, nil
			}
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt+1).Int("max_attempts", attempts).Msg("course outline generation failed")

		if attempt+1 < attempts {
			generationRetries.WithLabelValues("course_outline").Inc()
			if err := sleep(ctx, backoff(s.BaseDelay, maxDelay, attempt)); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, lastErr)
}

// Courses lists the user's generated courses.
func (s *WizardService) Courses(ctx context.Context, userID string) ([]domain.Course, error) {
	return repo.ListCourses(ctx, s.DB, userID)
}

// Course returns one generated course.
func (s *WizardService) Course(ctx context.Context, userID, id string) (*domain.Course, error) {
	c, err := repo.GetCourse(ctx, s.DB, id, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}
	return c, nil
}

// mutate loads an open draft, applies fn and saves the result in one
// transaction.
func (s *WizardService) mutate(ctx context.Context, userID, id string, fn func(*domain.CourseDraft) error) (*domain.CourseDraft, error) {
	var out *domain.CourseDraft
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, err := repo.GetDraft(ctx, tx, id, userID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrDraftNotFound
			}
			return err
		}
		if d.Status == domain.DraftStatusSubmitted {
			return ErrDraftSubmitted
		}
		if err := fn(d); err != nil {
			return err
		}
		if err := repo.SaveDraft(ctx, tx, d); err != nil {
			return err
		}
		out = d
		return nil
	})
	return out, err
}

func fieldsOf(d *domain.CourseDraft) *draftFields {
	return &draftFields{
		CourseName:     d.CourseName,
		Subtopics:      d.Subtopics,
		EducationLevel: d.EducationLevel,
		Country:        d.Country,
		School:         d.School,
		Curriculum:     d.Curriculum,
		Materials:      d.Materials.Data().Any(),
	}
}

// validateDraft checks every field a submission needs.
func validateDraft(d *domain.CourseDraft) error {
	fields := []string{"CourseName", "Subtopics", "EducationLevel", "Curriculum", "Materials"}
	if !d.SkipsInstitution() {
		fields = append(fields, "Country", "School")
	}
	return validatePartial(fieldsOf(d), fields...)
}

// BuildCoursePrompt renders the draft as the instruction sent to the prompt
// backend.
func BuildCoursePrompt(d *domain.CourseDraft) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a structured course named %q", strings.TrimSpace(d.CourseName))
	fmt.Fprintf(&b, " for a learner at the %s level.", strings.TrimSpace(d.EducationLevel))
	if !d.SkipsInstitution() {
		if c := strings.TrimSpace(d.Country); c != "" {
			fmt.Fprintf(&b, " The learner is in %s", c)
			if sc := strings.TrimSpace(d.School); sc != "" {
				fmt.Fprintf(&b, " and attends %s", sc)
			}
			b.WriteString(".")
		}
	}
	if cur := strings.TrimSpace(d.Curriculum); cur != "" {
		fmt.Fprintf(&b, " Follow the %s curriculum.", cur)
	}
	if sub := strings.TrimSpace(d.Subtopics); sub != "" {
		fmt.Fprintf(&b, " Cover these subtopics: %s.", sub)
	}
	if mats := materialNames(d.Materials.Data()); len(mats) > 0 {
		fmt.Fprintf(&b, " Include %s.", strings.Join(mats, ", "))
	}
	if d.PDFName != "" {
		fmt.Fprintf(&b, " Use the attached document %q as reference material.", d.PDFName)
	}
	b.WriteString(" Respond only with JSON of the form ")
	b.WriteString(`{"title": string, "description": string, "topics": [{"title": string, "subtopics": [string]}]}.`)
	return b.String()
}

func materialNames(m domain.LearningMaterials) []string {
	var out []string
	for _, it := range []struct {
		on   bool
		name string
	}{
		{m.Notes, "notes"},
		{m.Quizzes, "quizzes"},
		{m.Flashcards, "flashcards"},
		{m.Videos, "videos"},
		{m.Exercises, "exercises"},
	} {
		if it.on {
			out = append(out, it.name)
		}
	}
	return out
}

// StripCodeFences returns the body of the first markdown code fence in s, or
// s trimmed when it holds no fence.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	body := s[start+3:]
	// drop the info string ("json") up to the end of the fence line
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = strings.TrimLeft(body, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// ParseOutline decodes a course outline from a backend reply that may be
// wrapped in code fences or surrounded by prose.
func ParseOutline(s string) (*domain.CourseOutline, error) {
	body := StripCodeFences(s)
	var out domain.CourseOutline
	err := json.Unmarshal([]byte(body), &out)
	if err != nil {
		i, j := strings.IndexByte(body, '{'), strings.LastIndexByte(body, '}')
		if i < 0 || j <= i {
			return nil, fmt.Errorf("parse outline: %w", err)
		}
		if err := json.Unmarshal([]byte(body[i:j+1]), &out); err != nil {
			return nil, fmt.Errorf("parse outline: %w", err)
		}
	}

	out.Title = strings.TrimSpace(out.Title)
	out.Description = strings.TrimSpace(out.Description)
	topics := out.Topics[:0]
	for _, t := range out.Topics {
		t.Title = strings.TrimSpace(t.Title)
		if t.Title == "" {
			continue
		}
		subs := t.Subtopics[:0]
		for _, st := range t.Subtopics {
			if st = strings.TrimSpace(st); st != "" {
				subs = append(subs, st)
			}
		}
		t.Subtopics = subs
		topics = append(topics, t)
	}
	out.Topics = topics

	if out.Title == "" || len(out.Topics) == 0 {
		return nil, errors.New("parse outline: missing title or topics")
	}
	return &out, nil
}
