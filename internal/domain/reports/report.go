package reports

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	VisibilityPublic   = "public"
	VisibilityPrivate  = "private"
	VisibilityUnlisted = "unlisted"
)

// Report is a first-person narrative submitted by an author. The service only reads
// reports; creation and editing belong to the submission flow.
type Report struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	AuthorID uuid.UUID `gorm:"type:uuid;column:author_id;not null;index" json:"author_id"`
	Category string    `gorm:"column:category;not null;index:idx_report_category_visibility,priority:1" json:"category"`
	Title    string    `gorm:"column:title;not null" json:"title"`
	Body     string    `gorm:"column:body;type:text;not null" json:"body"`
	// []string, compared case-insensitively
	Tags         datatypes.JSON `gorm:"column:tags;type:jsonb" json:"tags"`
	Latitude     *float64       `gorm:"column:latitude" json:"latitude,omitempty"`
	Longitude    *float64       `gorm:"column:longitude" json:"longitude,omitempty"`
	LocationText string         `gorm:"column:location_text" json:"location_text,omitempty"`
	WitnessCount *int           `gorm:"column:witness_count" json:"witness_count,omitempty"`
	OccurredAt   time.Time      `gorm:"column:occurred_at;not null;index" json:"occurred_at"`
	Visibility   string         `gorm:"column:visibility;not null;default:'public';index:idx_report_category_visibility,priority:2" json:"visibility"`
	// Semantic embedding of title+body; null until the report has been embedded.
	Embedding *Vector        `gorm:"column:embedding;type:vector(1536)" json:"-"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Report) TableName() string { return "report" }

func (r *Report) HasLocation() bool {
	return r != nil && r.Latitude != nil && r.Longitude != nil
}

// SearchText is the text fed to the embedding service and the extractor.
func (r *Report) SearchText() string {
	if r == nil {
		return ""
	}
	if r.Title == "" {
		return r.Body
	}
	return r.Title + "\n\n" + r.Body
}
