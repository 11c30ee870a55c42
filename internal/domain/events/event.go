package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Event struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string         `gorm:"not null" json:"name"`
	Description string         `json:"description,omitempty"`
	StartTime   *time.Time     `json:"start_time,omitempty"`
	EndTime     *time.Time     `json:"end_time,omitempty"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Event) TableName() string { return "event" }

func (e *Event) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Participation links a user to an event with event-scoped goals.
type Participation struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID             uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_participation_user_event" json:"user_id"`
	EventID            uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_participation_user_event" json:"event_id"`
	OnboardingID       *uuid.UUID     `gorm:"type:uuid" json:"onboarding_id,omitempty"`
	ContextData        datatypes.JSON `gorm:"column:context_data" json:"context_data"`
	CompletenessScore  float64        `gorm:"not null;default:0" json:"completeness_score"`
	JoinedAt           time.Time      `gorm:"not null" json:"joined_at"`
	EmbeddingUpdatedAt *time.Time     `json:"embedding_updated_at,omitempty"`
	CreatedAt          time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Event *Event `gorm:"foreignKey:EventID" json:"event,omitempty"`
}

func (Participation) TableName() string { return "event_participation" }

func (p *Participation) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.JoinedAt.IsZero() {
		p.JoinedAt = time.Now().UTC()
	}
	return nil
}

type Goals struct {
	LookingFor []string `json:"looking_for"`
	Offering   []string `json:"offering"`
}

// ContextDocument is the event-scoped part of a user's onboarding.
type ContextDocument struct {
	EventID string `json:"event_id"`
	Goals   Goals  `json:"goals"`
}

func NewContextDocument(eventID uuid.UUID) ContextDocument {
	return ContextDocument{EventID: eventID.String(), Goals: Goals{LookingFor: []string{}, Offering: []string{}}}
}

func (p *Participation) Context() (ContextDocument, error) {
	doc := NewContextDocument(p.EventID)
	if len(p.ContextData) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(p.ContextData, &doc); err != nil {
		return ContextDocument{}, err
	}
	if doc.Goals.LookingFor == nil {
		doc.Goals.LookingFor = []string{}
	}
	if doc.Goals.Offering == nil {
		doc.Goals.Offering = []string{}
	}
	doc.EventID = p.EventID.String()
	return doc, nil
}

func (p *Participation) SetContext(doc ContextDocument) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	p.ContextData = datatypes.JSON(raw)
	return nil
}
