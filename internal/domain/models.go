// Package domain defines the persistence models for the tutoring backend:
// chats and their messages, staged file attachments, feedback, the course
// wizard and generated topics, and the account dashboard records. These types
// are mapped with GORM and form the core data layer shared by the repository
// and service layers.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Chat modes understood by the upstream chat API.
const (
	ModeStudy          = "study"
	ModeReason         = "reason"
	ModeQuiz           = "quiz"
	ModeHomeworkHelper = "homeworkhelper"
)

// ValidMode reports whether m is one of the supported chat modes.
func ValidMode(m string) bool {
	switch m {
	case ModeStudy, ModeReason, ModeQuiz, ModeHomeworkHelper:
		return true
	}
	return false
}

// Chat is a tutoring conversation. Its title is derived from the first
// prompt while it still holds a placeholder, Mode is the mode of the latest
// exchange, and UpdatedAt moves with every send so lists show the active
// conversation first.
type Chat struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string         `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_user_chats,priority:1"`
	Title     string         `json:"title"      gorm:"type:varchar(255);not null;default:'New chat'"`
	Mode      string         `json:"mode"       gorm:"type:varchar(32);not null;default:'study'"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"index:idx_user_chats,priority:2"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Chat.
func (Chat) TableName() string { return "chats" }

// Message is a single utterance within a chat. Messages are immutable once
// written and the list only grows. Failed marks an assistant message that
// stands in for an upstream error.
type Message struct {
	ID          string         `json:"id"          gorm:"type:char(36);primaryKey"`
	ChatID      string         `json:"chat_id"     gorm:"type:char(36);not null;index:idx_chat_msgs,priority:1"`
	Role        string         `json:"role"        gorm:"type:varchar(16);not null;check:role IN ('user','assistant','system')"`
	Mode        string         `json:"mode"        gorm:"type:varchar(32);not null;default:'study'"`
	Content     string         `json:"content"     gorm:"type:text;not null"`
	Failed      bool           `json:"failed"      gorm:"not null;default:false"`
	Attachments []Attachment   `json:"attachments,omitempty" gorm:"foreignKey:MessageID;references:ID"`
	CreatedAt   time.Time      `json:"created_at"  gorm:"index:idx_chat_msgs,priority:2"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"           gorm:"index"`

	Chat Chat `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Attachment is an uploaded file together with its preview metadata. While
// MessageID is nil the attachment is staged on the chat (a file preview); on
// send it is bound to the user message that carried it and its analysis
// result is filled in.
type Attachment struct {
	ID          string    `json:"id"            gorm:"type:char(36);primaryKey"`
	ChatID      string    `json:"chat_id"       gorm:"type:char(36);not null;index:idx_chat_attachments,priority:1"`
	UserID      string    `json:"user_id"       gorm:"type:varchar(64);not null;index"`
	MessageID   *string   `json:"message_id,omitempty" gorm:"type:char(36);index"`
	Name        string    `json:"name"          gorm:"type:varchar(255);not null"`
	Size        int64     `json:"size"          gorm:"not null"`
	ContentType string    `json:"type"          gorm:"type:varchar(128);not null"`
	Data        []byte    `json:"-"             gorm:"type:blob"`
	Summary     string    `json:"summary,omitempty"  gorm:"type:text"`
	Analysis    string    `json:"analysis,omitempty" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"    gorm:"index:idx_chat_attachments,priority:2"`

	Chat Chat `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Attachment.
func (Attachment) TableName() string { return "attachments" }

// Feedback is a student's thumbs-up or thumbs-down on a tutor reply, with an
// optional free-text remark. One rating per (message, user).
type Feedback struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	MessageID string         `json:"message_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_feedback_message_user"`
	UserID    string         `json:"user_id"    gorm:"type:varchar(64);not null;index;uniqueIndex:ux_feedback_message_user"`
	Value     int            `json:"value"      gorm:"not null;check:value IN (-1,1)"`
	Comment   string         `json:"comment,omitempty" gorm:"type:text"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`

	Message Message `json:"-" gorm:"foreignKey:MessageID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Feedback.
func (Feedback) TableName() string { return "feedback" }
