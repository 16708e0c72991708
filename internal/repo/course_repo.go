package repo

// Course wizard storage: drafts, submitted courses, generated topic sets and
// their per-subtopic contents.
//
// Lookups are always scoped to the owning user; a foreign or missing row
// yields ErrNotFound.

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-tutor-backend/internal/domain"
)

// CreateDraft starts a new wizard draft on the first step.
func CreateDraft(ctx context.Context, db *gorm.DB, userID string) (*domain.CourseDraft, error) {
	now := time.Now().UTC()
	d := &domain.CourseDraft{
		ID:        uuid.NewString(),
		UserID:    userID,
		Step:      0,
		Materials: datatypes.NewJSONType(domain.LearningMaterials{}),
		Status:    domain.DraftStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(d).Error; err != nil {
		return nil, err
	}
	return d, nil
}

// GetDraft loads a draft owned by userID, PDF bytes included.
func GetDraft(ctx context.Context, db *gorm.DB, id, userID string) (*domain.CourseDraft, error) {
	var d domain.CourseDraft
	if err := db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// SaveDraft writes every column of d back, zero values included.
func SaveDraft(ctx context.Context, db *gorm.DB, d *domain.CourseDraft) error {
	d.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Save(d).Error
}

// MarkDraftSubmitted moves an open draft to submitted. ErrNotFound means no
// open draft matched, including one another request has just submitted.
func MarkDraftSubmitted(ctx context.Context, db *gorm.DB, id, userID string) error {
	res := db.WithContext(ctx).Model(&domain.CourseDraft{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, domain.DraftStatusDraft).
		Updates(map[string]any{"status": domain.DraftStatusSubmitted, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateCourse persists a generated course. ID and timestamps are assigned
// when unset.
func CreateCourse(ctx context.Context, db *gorm.DB, c *domain.Course) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	return db.WithContext(ctx).Create(c).Error
}

// ListCourses returns the user's courses, most recent first.
func ListCourses(ctx context.Context, db *gorm.DB, userID string) ([]domain.Course, error) {
	var out []domain.Course
	err := db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at desc").Find(&out).Error
	return out, err
}

// GetCourse loads a course owned by userID.
func GetCourse(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Course, error) {
	var c domain.Course
	if err := db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateTopicSet persists a batch of generated topics.
func CreateTopicSet(ctx context.Context, db *gorm.DB, set *domain.TopicSet) error {
	if set.ID == "" {
		set.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	set.CreatedAt, set.UpdatedAt = now, now
	return db.WithContext(ctx).Create(set).Error
}

// GetTopicSet loads a topic set owned by userID.
func GetTopicSet(ctx context.Context, db *gorm.DB, id, userID string) (*domain.TopicSet, error) {
	var s domain.TopicSet
	if err := db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// ListTopicSets returns the user's topic sets, most recent first.
func ListTopicSets(ctx context.Context, db *gorm.DB, userID string) ([]domain.TopicSet, error) {
	var out []domain.TopicSet
	err := db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at desc").Find(&out).Error
	return out, err
}

// AppendTopicContents stores generated contents for a set, continuing the
// set's position sequence.
func AppendTopicContents(ctx context.Context, db *gorm.DB, setID string, items []domain.TopicContent) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var next int64
		if err := tx.Model(&domain.TopicContent{}).Where("topic_set_id = ?", setID).Count(&next).Error; err != nil {
			return err
		}
		now := time.Now().UTC()
		for i := range items {
			items[i].ID = uuid.NewString()
			items[i].TopicSetID = setID
			items[i].Position = int(next) + i
			items[i].CreatedAt = now
		}
		return tx.Create(&items).Error
	})
}

// ListTopicContents returns the contents of a set in generation order.
func ListTopicContents(ctx context.Context, db *gorm.DB, setID string) ([]domain.TopicContent, error) {
	var out []domain.TopicContent
	err := db.WithContext(ctx).Where("topic_set_id = ?", setID).Order("position ASC").Find(&out).Error
	return out, err
}
