package profile

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Profile is the persisted row holding one user's profile document.
type Profile struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID             uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	Data               datatypes.JSON `gorm:"column:data;not null" json:"data"`
	CompletenessScore  float64        `gorm:"column:completeness_score;not null;default:0" json:"completeness_score"`
	EmbeddingUpdatedAt *time.Time     `gorm:"column:embedding_updated_at;index" json:"embedding_updated_at,omitempty"`
	CreatedAt          time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Profile) TableName() string { return "profile" }

func (p *Profile) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Document decodes the stored JSON. A row with empty data yields an empty document.
func (p *Profile) Document() (Document, error) {
	if p == nil || len(p.Data) == 0 {
		return NewDocument(), nil
	}
	return ParseDocument(p.Data)
}

func (p *Profile) SetDocument(doc Document) error {
	raw, err := doc.MarshalJSONBytes()
	if err != nil {
		return err
	}
	p.Data = datatypes.JSON(raw)
	return nil
}
