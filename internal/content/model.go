package content

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Resource names a content collection. The values double as REST path segments.
type Resource string

const (
	ResourceHighlights    Resource = "highlights"
	ResourcePressReleases Resource = "press-release"
	ResourceSubscribers   Resource = "subscribers"
	ResourceCategories    Resource = "categories"
)

// Sequenced reports whether records of the resource carry a seq number.
func (r Resource) Sequenced() bool {
	switch r {
	case ResourceHighlights, ResourcePressReleases, ResourceSubscribers:
		return true
	default:
		return false
	}
}

func (r Resource) table() string {
	switch r {
	case ResourceHighlights:
		return "highlights"
	case ResourcePressReleases:
		return "press_releases"
	case ResourceSubscribers:
		return "subscribers"
	case ResourceCategories:
		return "categories"
	default:
		return ""
	}
}

// Status is the editorial state of a highlight.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusRejected  Status = "rejected"
)

// ParseStatus accepts the three known states, case-insensitively.
func ParseStatus(raw string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusDraft:
		return StatusDraft, true
	case StatusPublished:
		return StatusPublished, true
	case StatusRejected:
		return StatusRejected, true
	default:
		return "", false
	}
}

// Highlight is a news or event item shown on the public site.
type Highlight struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Seq          int64     `gorm:"not null;uniqueIndex:idx_highlights_seq" json:"seq"`
	Title        string    `gorm:"size:512;not null" json:"title"`
	SDG          []string  `gorm:"type:text;serializer:json" json:"sdg"`
	CategoryID   *string   `gorm:"size:36;index" json:"category,omitempty"`
	CategoryName string    `gorm:"-" json:"categoryName,omitempty"`
	Date         string    `gorm:"size:32" json:"date,omitempty"`
	Location     string    `gorm:"size:512" json:"location,omitempty"`
	Images       []string  `gorm:"type:text;serializer:json" json:"images"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	Status       Status    `gorm:"size:16;not null;default:draft;index" json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (Highlight) TableName() string { return "highlights" }

func (h *Highlight) BeforeCreate(*gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}

// PressRelease links to coverage published elsewhere.
type PressRelease struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Seq       int64     `gorm:"not null;uniqueIndex:idx_press_releases_seq" json:"seq"`
	Title     string    `gorm:"size:512;not null" json:"title"`
	Publisher string    `gorm:"size:255;not null;index" json:"publisher"`
	Date      string    `gorm:"size:32;not null" json:"date"`
	Link      string    `gorm:"size:2048;not null" json:"link"`
	Image     string    `gorm:"size:2048" json:"image,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (PressRelease) TableName() string { return "press_releases" }

func (p *PressRelease) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Subscriber is a newsletter address.
type Subscriber struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Seq       int64     `gorm:"not null;uniqueIndex:idx_subscribers_seq" json:"seq"`
	Email     string    `gorm:"size:320;not null;uniqueIndex:idx_subscribers_email" json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Subscriber) TableName() string { return "subscribers" }

func (s *Subscriber) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// Category groups highlights.
type Category struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:255;not null;uniqueIndex:idx_categories_name" json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Category) TableName() string { return "categories" }

func (c *Category) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// SequenceCounter holds the last seq handed out for a resource.
type SequenceCounter struct {
	Resource  string `gorm:"primaryKey;size:64"`
	Value     int64  `gorm:"not null"`
	UpdatedAt time.Time
}

func (SequenceCounter) TableName() string { return "sequence_counters" }
