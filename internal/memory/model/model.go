// Package model holds the GORM-mapped persistence types for the memory
// engine: Story (scoping container), Message (extraction input), and
// Memory (extraction output).
package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// EmbeddingDimension is the fixed vector width every Memory embedding and
// every LLM gateway embedding call must agree on.
const EmbeddingDimension = 1536

// ContentType distinguishes a user turn from the assistant's reply.
type ContentType string

const (
	ContentTypeQuery    ContentType = "query"
	ContentTypeResponse ContentType = "response"
)

// Action records which mutation last produced a Memory row.
type Action string

const (
	ActionAdd    Action = "ADD"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Story scopes a run of messages to a user and to the handler that knows
// how to render them to plain text.
type Story struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID    string    `json:"user_id" gorm:"type:varchar(128);not null;index"`
	Name      string    `json:"name" gorm:"type:varchar(255)"`
	Handler   string    `json:"handler" gorm:"type:varchar(64);not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for Story.
func (Story) TableName() string {
	return "story"
}

// Message is one conversational turn awaiting extraction. Content is
// opaque JSON whose shape is defined by the story's handler; it is never
// mutated after insert except for the extracted flag.
type Message struct {
	ID          int64       `json:"id" gorm:"primaryKey;autoIncrement"`
	StoryID     int64       `json:"story_id" gorm:"not null;index;index:idx_story_extracted,priority:1"`
	ContentType ContentType `json:"content_type" gorm:"type:varchar(16);not null"`
	Content     []byte      `json:"content" gorm:"type:jsonb;not null"`
	Extracted   bool        `json:"extracted" gorm:"not null;default:false;index;index:idx_story_extracted,priority:2"`
	CreatedAt   time.Time   `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time   `json:"updated_at" gorm:"autoUpdateTime"`

	Story *Story `json:"-" gorm:"foreignKey:StoryID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for Message.
func (Message) TableName() string {
	return "message"
}

// Memory is a persistent, embedded fact owned by a single user.
type Memory struct {
	ID           int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID       string         `json:"user_id" gorm:"type:varchar(128);not null;index"`
	Content      string         `json:"content" gorm:"type:text"`
	PrevContent  *string        `json:"prev_content,omitempty" gorm:"column:previous_content;type:text"`
	Category     string         `json:"category" gorm:"type:varchar(64)"`
	Importance   float64        `json:"importance"`
	Confidence   float64        `json:"confidence"`
	Action       Action         `json:"action" gorm:"type:varchar(16);not null"`
	Embedding    pgvector.Vector `json:"-" gorm:"type:vector(1536)"`
	CreatedAt    time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName specifies the table name for Memory.
func (Memory) TableName() string {
	return "memory"
}
