package client

import (
	"time"

	"parkadmin/app/internal/listing"
)

// Record is the subset of fields the command line tool shows for any collection.
type Record struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	Title     string    `json:"title"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Publisher string    `json:"publisher"`
	Location  string    `json:"location"`
	Date      string    `json:"date"`
	Status    string    `json:"status"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Label is the record's display string.
func (r Record) Label() string {
	switch {
	case r.Title != "":
		return r.Title
	case r.Email != "":
		return r.Email
	default:
		return r.Name
	}
}

// Row projects the record for the filter pipeline with the search fields of resource.
func (r Record) Row(resource string) listing.Row {
	row := listing.Row{
		Seq:       r.Seq,
		Title:     r.Label(),
		Date:      r.Date,
		Status:    r.Status,
		Category:  r.Category,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}

	switch resource {
	case "highlights":
		row.Search = []string{r.Location}
	case "press-release":
		row.Search = []string{r.Publisher}
	case "subscribers":
		if row.Date == "" && !r.CreatedAt.IsZero() {
			row.Date = r.CreatedAt.Format(time.RFC3339Nano)
		}
	}
	return row
}
