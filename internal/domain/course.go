package domain

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Draft lifecycle states.
const (
	DraftStatusDraft     = "draft"
	DraftStatusSubmitted = "submitted"
)

// EducationSkillDevelopment is the education level that skips the country
// and school steps of the wizard.
const EducationSkillDevelopment = "skill development"

// LearningMaterials are the material kinds a learner asks the course to include.
type LearningMaterials struct {
	Notes      bool `json:"notes"`
	Quizzes    bool `json:"quizzes"`
	Flashcards bool `json:"flashcards"`
	Videos     bool `json:"videos"`
	Exercises  bool `json:"exercises"`
}

// Any reports whether at least one material kind is selected.
func (m LearningMaterials) Any() bool {
	return m.Notes || m.Quizzes || m.Flashcards || m.Videos || m.Exercises
}

// CourseDraft is the in-progress state of the course creation wizard. Step is
// the index of the screen the learner is on (0..7).
type CourseDraft struct {
	ID             string                                `json:"id"              gorm:"type:char(36);primaryKey"`
	UserID         string                                `json:"user_id"         gorm:"type:varchar(64);not null;index"`
	Step           int                                   `json:"step"            gorm:"not null;default:0"`
	CourseName     string                                `json:"course_name"     gorm:"type:varchar(255)"`
	Subtopics      string                                `json:"subtopics"       gorm:"type:text"`
	EducationLevel string                                `json:"education_level" gorm:"type:varchar(64)"`
	Country        string                                `json:"country"         gorm:"type:varchar(128)"`
	School         string                                `json:"school"          gorm:"type:varchar(255)"`
	Curriculum     string                                `json:"curriculum"      gorm:"type:varchar(255)"`
	Materials      datatypes.JSONType[LearningMaterials] `json:"materials"`
	PDFName        string                                `json:"pdf_name,omitempty" gorm:"type:varchar(255)"`
	PDFData        []byte                                `json:"-"               gorm:"type:blob"`
	Status         string                                `json:"status"          gorm:"type:varchar(16);not null;default:'draft'"`
	CreatedAt      time.Time                             `json:"created_at"`
	UpdatedAt      time.Time                             `json:"updated_at"`
}

// TableName returns the database table name for CourseDraft.
func (CourseDraft) TableName() string { return "course_drafts" }

// SkipsInstitution reports whether the draft's education level bypasses the
// country and school steps.
func (d CourseDraft) SkipsInstitution() bool {
	return IsSkillDevelopment(d.EducationLevel)
}

// IsSkillDevelopment reports whether level is the skill development level,
// ignoring case and surrounding space.
func IsSkillDevelopment(level string) bool {
	return strings.EqualFold(strings.TrimSpace(level), EducationSkillDevelopment)
}

// OutlineTopic is a main topic of a generated course outline.
type OutlineTopic struct {
	Title     string   `json:"title"`
	Subtopics []string `json:"subtopics"`
}

// CourseOutline is the structured course returned by the prompt endpoint.
type CourseOutline struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Topics      []OutlineTopic `json:"topics"`
}

// Course is a submitted course together with its generated outline.
type Course struct {
	ID             string                            `json:"id"              gorm:"type:char(36);primaryKey"`
	UserID         string                            `json:"user_id"         gorm:"type:varchar(64);not null;index"`
	DraftID        string                            `json:"draft_id"        gorm:"type:char(36);index"`
	Name           string                            `json:"name"            gorm:"type:varchar(255);not null"`
	EducationLevel string                            `json:"education_level" gorm:"type:varchar(64)"`
	Country        string                            `json:"country,omitempty"    gorm:"type:varchar(128)"`
	School         string                            `json:"school,omitempty"     gorm:"type:varchar(255)"`
	Curriculum     string                            `json:"curriculum,omitempty" gorm:"type:varchar(255)"`
	Outline        datatypes.JSONType[CourseOutline] `json:"outline"`
	CreatedAt      time.Time                         `json:"created_at"`
	UpdatedAt      time.Time                         `json:"updated_at"`
}

// TableName returns the database table name for Course.
func (Course) TableName() string { return "courses" }

// Topic is one generated main topic with its subtopics.
type Topic struct {
	Title     string   `json:"title"`
	Subtopics []string `json:"subtopics"`
}

// TopicSet is a persisted batch of generated topics for a subject.
type TopicSet struct {
	ID             string                     `json:"id"              gorm:"type:char(36);primaryKey"`
	UserID         string                     `json:"user_id"         gorm:"type:varchar(64);not null;index"`
	CourseID       *string                    `json:"course_id,omitempty" gorm:"type:char(36);index"`
	Subject        string                     `json:"subject"         gorm:"type:varchar(255);not null"`
	Difficulty     string                     `json:"difficulty"      gorm:"type:varchar(64)"`
	EducationLevel string                     `json:"education_level" gorm:"type:varchar(64)"`
	Topics         datatypes.JSONSlice[Topic] `json:"topics"`
	CreatedAt      time.Time                  `json:"created_at"`
	UpdatedAt      time.Time                  `json:"updated_at"`
}

// TableName returns the database table name for TopicSet.
func (TopicSet) TableName() string { return "topic_sets" }

// TopicContent is the generated material for a single subtopic. Failed rows
// keep the error text so a partially successful batch is still inspectable.
type TopicContent struct {
	ID            string    `json:"id"             gorm:"type:char(36);primaryKey"`
	TopicSetID    string    `json:"topic_set_id"   gorm:"type:char(36);not null;index:idx_set_contents,priority:1"`
	MainTopic     string    `json:"main_topic"     gorm:"type:varchar(255);not null"`
	SubtopicTitle string    `json:"subtopic_title" gorm:"type:varchar(255);not null"`
	ContentType   string    `json:"content_type"   gorm:"type:varchar(64);not null"`
	Content       string    `json:"content"        gorm:"type:text"`
	Failed        bool      `json:"failed"         gorm:"not null;default:false"`
	Error         string    `json:"error,omitempty" gorm:"type:text"`
	Position      int       `json:"position"       gorm:"not null;index:idx_set_contents,priority:2"`
	CreatedAt     time.Time `json:"created_at"`

	TopicSet TopicSet `json:"-" gorm:"foreignKey:TopicSetID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for TopicContent.
func (TopicContent) TableName() string { return "topic_contents" }
