package content

import (
	"context"

	"github.com/sirupsen/logrus"

	"parkadmin/app/internal/apperr"
	"parkadmin/app/internal/listing"
)

// HighlightInput carries the fields of a create or edit. Nil fields are left unchanged on
// edit. SDG and Images are expected to be normalised already.
type HighlightInput struct {
	Title    *string
	SDG      *[]string
	Category *string
	Date     *string
	Location *string
	Images   *[]string
	Content  *string
	Status   *string
}

func highlightRow(h Highlight) listing.Row {
	category := ""
	if h.CategoryID != nil {
		category = *h.CategoryID
	}

	return listing.Row{
		Seq:       h.Seq,
		Title:     h.Title,
		Search:    []string{h.Location},
		Date:      h.Date,
		Status:    string(h.Status),
		Category:  category,
		CreatedAt: h.CreatedAt,
		UpdatedAt: h.UpdatedAt,
	}
}

func (s *service) ListHighlights(ctx context.Context, q Query) (ListResult[Highlight], error) {
	var highlights []Highlight
	if err := s.repo.FindAll(ctx, &highlights, "seq DESC"); err != nil {
		return ListResult[Highlight]{}, s.fail(nil, err, "Fetching highlights failed, please try again later")
	}

	result := listRecords(highlights, highlightRow, s.anchor(q), listing.DefaultSort)
	if err := s.attachCategoryNames(ctx, result.Items); err != nil {
		return ListResult[Highlight]{}, s.fail(nil, err, "Fetching highlights failed, please try again later")
	}

	return result, nil
}

func (s *service) GetHighlight(ctx context.Context, id string) (*Highlight, error) {
	parsed, err := parseID(id, "highlight")
	if err != nil {
		return nil, err
	}

	var highlight Highlight
	found, err := s.repo.FindByID(ctx, &highlight, parsed)
	if err != nil {
		return nil, s.fail(logrus.Fields{"id": parsed}, err, "Failed to get highlight details")
	}
	if !found {
		return nil, apperr.NotFound("Highlight not found")
	}

	items := []Highlight{highlight}
	if err := s.attachCategoryNames(ctx, items); err != nil {
		return nil, s.fail(logrus.Fields{"id": parsed}, err, "Failed to get highlight details")
	}

	return &items[0], nil
}

// CreateHighlight uploads the images first and then writes the record with the URLs that
// made it. If the write fails the fresh uploads are discarded again.
func (s *service) CreateHighlight(ctx context.Context, in HighlightInput) (WriteResult[Highlight], error) {
	highlight := Highlight{Status: StatusDraft, SDG: []string{}, Images: []string{}}
	if err := s.applyHighlight(ctx, &highlight, in); err != nil {
		return WriteResult[Highlight]{}, err
	}

	var sources []string
	if in.Images != nil {
		sources = *in.Images
	}
	if len(sources) > s.maxImages {
		return WriteResult[Highlight]{}, apperr.Validationf("A highlight can have at most %d images", s.maxImages)
	}

	urls, created, warnings := s.storeImages(ctx, sources)
	highlight.Images = nonNil(urls)

	err := s.repo.CreateSequenced(ctx, ResourceHighlights, &highlight, func(seq int64) { highlight.Seq = seq })
	if err != nil {
		s.discardCreated(ctx, created)
		return WriteResult[Highlight]{}, s.fail(logrus.Fields{"title": highlight.Title}, err, "Failed to create highlight, please try again later")
	}
	s.recorder.SequenceAllocated(string(ResourceHighlights))

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"id":       highlight.ID,
			"seq":      highlight.Seq,
			"images":   len(highlight.Images),
			"warnings": len(warnings),
		}).Info("highlight created")
	}

	return WriteResult[Highlight]{Record: highlight, Warnings: warnings}, nil
}

// UpdateHighlight applies the provided fields. The seq never changes. Images dropped by the
// edit are discarded after the write commits.
func (s *service) UpdateHighlight(ctx context.Context, id string, in HighlightInput) (WriteResult[Highlight], error) {
	existing, err := s.GetHighlight(ctx, id)
	if err != nil {
		return WriteResult[Highlight]{}, err
	}

	updated := *existing
	if err := s.applyHighlight(ctx, &updated, in); err != nil {
		return WriteResult[Highlight]{}, err
	}

	var created, warnings, stale []string
	if in.Images != nil {
		if len(*in.Images) > s.maxImages {
			return WriteResult[Highlight]{}, apperr.Validationf("A highlight can have at most %d images", s.maxImages)
		}

		var urls []string
		urls, created, warnings = s.storeImages(ctx, *in.Images)
		updated.Images = nonNil(urls)
		stale = difference(existing.Images, updated.Images)
	}

	updated.ID = existing.ID
	updated.Seq = existing.Seq
	updated.CreatedAt = existing.CreatedAt

	found, err := s.repo.Update(ctx, &updated, existing.ID)
	if err != nil {
		s.discardCreated(ctx, created)
		return WriteResult[Highlight]{}, s.fail(logrus.Fields{"id": existing.ID}, err, "Failed to update highlight")
	}
	if !found {
		s.discardCreated(ctx, created)
		return WriteResult[Highlight]{}, apperr.NotFound("Highlight not found")
	}

	warnings = append(warnings, s.runHooks(ctx, Event{
		Kind:     EventUpdated,
		Resource: ResourceHighlights,
		IDs:      []string{updated.ID},
		Images:   stale,
	})...)

	return WriteResult[Highlight]{Record: updated, Warnings: warnings}, nil
}

func (s *service) UpdateHighlightStatus(ctx context.Context, id, status string) (*Highlight, error) {
	parsedStatus, ok := ParseStatus(status)
	if !ok {
		return nil, apperr.Validation("Invalid status value")
	}

	parsed, err := parseID(id, "highlight")
	if err != nil {
		return nil, err
	}

	found, err := s.repo.UpdateColumns(ctx, &Highlight{}, parsed, map[string]any{"status": parsedStatus})
	if err != nil {
		return nil, s.fail(logrus.Fields{"id": parsed}, err, "Failed to update status, please try again later")
	}
	if !found {
		return nil, apperr.NotFound("Highlight not found")
	}

	return s.GetHighlight(ctx, parsed)
}

func (s *service) DeleteHighlights(ctx context.Context, ids []string) (DeleteResult, error) {
	return deleteRecords(ctx, s, ResourceHighlights, "highlight", ids,
		func(h Highlight) string { return h.ID },
		func(h Highlight) []string { return h.Images },
		func(ctx context.Context, ids []string) (int64, error) {
			return s.repo.DeleteByIDs(ctx, &Highlight{}, ids)
		},
	)
}

// applyHighlight copies the provided fields onto h and validates the result. Images are
// handled by the caller.
func (s *service) applyHighlight(ctx context.Context, h *Highlight, in HighlightInput) error {
	if in.Title != nil {
		h.Title = trimmed(in.Title)
	}
	if h.Title == "" {
		return apperr.Validation("Title is required")
	}

	if in.Content != nil {
		h.Content = s.sanitizer.Sanitize(*in.Content)
	}
	if h.Content == "" {
		return apperr.Validation("Content is required")
	}

	if in.SDG != nil {
		h.SDG = nonNil(dedupe(append([]string(nil), *in.SDG...)))
	}

	if in.Location != nil {
		h.Location = trimmed(in.Location)
	}

	if in.Date != nil {
		date, err := normalizeDate(trimmed(in.Date))
		if err != nil {
			return err
		}
		h.Date = date
	}

	if in.Status != nil && trimmed(in.Status) != "" {
		status, ok := ParseStatus(*in.Status)
		if !ok {
			return apperr.Validation("Invalid status value")
		}
		h.Status = status
	}

	if in.Category != nil {
		if err := s.applyCategory(ctx, h, trimmed(in.Category)); err != nil {
			return err
		}
	}

	return nil
}

func (s *service) applyCategory(ctx context.Context, h *Highlight, raw string) error {
	if raw == "" {
		h.CategoryID = nil
		h.CategoryName = ""
		return nil
	}

	id, err := parseID(raw, "category")
	if err != nil {
		return err
	}

	var category Category
	found, err := s.repo.FindByID(ctx, &category, id)
	if err != nil {
		return s.fail(logrus.Fields{"category": id}, err, "Failed to check category")
	}
	if !found {
		return apperr.Validation("Category not found")
	}

	h.CategoryID = &category.ID
	h.CategoryName = category.Name
	return nil
}

func (s *service) attachCategoryNames(ctx context.Context, highlights []Highlight) error {
	var ids []string
	for _, h := range highlights {
		if h.CategoryID != nil {
			ids = append(ids, *h.CategoryID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	names, err := s.repo.CategoryNames(ctx, dedupe(ids))
	if err != nil {
		return err
	}
	for i := range highlights {
		if id := highlights[i].CategoryID; id != nil {
			highlights[i].CategoryName = names[*id]
		}
	}
	return nil
}

// normalizeDate stores dates as YYYY-MM-DD. Empty clears the date.
func normalizeDate(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	t, _, ok := listing.ParseDate(raw)
	if !ok {
		return "", apperr.Validation("Invalid date, expected YYYY-MM-DD")
	}
	return t.Format("2006-01-02"), nil
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
