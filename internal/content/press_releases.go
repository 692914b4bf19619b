package content

import (
	"context"
	"net/url"

	"github.com/sirupsen/logrus"

	"parkadmin/app/internal/apperr"
	"parkadmin/app/internal/listing"
)

// PressReleaseInput carries the fields of a create or edit. Nil fields are left unchanged
// on edit; an empty Image clears it.
type PressReleaseInput struct {
	Title     *string
	Publisher *string
	Date      *string
	Link      *string
	Image     *string
}

func pressReleaseRow(p PressRelease) listing.Row {
	return listing.Row{
		Seq:       p.Seq,
		Title:     p.Title,
		Search:    []string{p.Publisher},
		Date:      p.Date,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func (s *service) ListPressReleases(ctx context.Context, q Query) (ListResult[PressRelease], error) {
	var releases []PressRelease
	if err := s.repo.FindAll(ctx, &releases, "seq DESC"); err != nil {
		return ListResult[PressRelease]{}, s.fail(nil, err, "Fetching press releases failed, please try again later")
	}

	return listRecords(releases, pressReleaseRow, s.anchor(q), listing.DefaultSort), nil
}

func (s *service) GetPressRelease(ctx context.Context, id string) (*PressRelease, error) {
	parsed, err := parseID(id, "press release")
	if err != nil {
		return nil, err
	}

	var release PressRelease
	found, err := s.repo.FindByID(ctx, &release, parsed)
	if err != nil {
		return nil, s.fail(logrus.Fields{"id": parsed}, err, "Failed to get press release details")
	}
	if !found {
		return nil, apperr.NotFound("Press release not found")
	}

	return &release, nil
}

// CreatePressRelease writes the record first and attaches the image afterwards, so an image
// failure only costs the image.
func (s *service) CreatePressRelease(ctx context.Context, in PressReleaseInput) (WriteResult[PressRelease], error) {
	var release PressRelease
	if err := applyPressRelease(&release, in); err != nil {
		return WriteResult[PressRelease]{}, err
	}

	err := s.repo.CreateSequenced(ctx, ResourcePressReleases, &release, func(seq int64) { release.Seq = seq })
	if err != nil {
		return WriteResult[PressRelease]{}, s.fail(logrus.Fields{"title": release.Title}, err, "Failed to create press release, please try again later")
	}
	s.recorder.SequenceAllocated(string(ResourcePressReleases))

	var warnings []string
	if source := trimmed(in.Image); source != "" {
		urls, created, storeWarnings := s.storeImages(ctx, []string{source})
		warnings = append(warnings, storeWarnings...)

		if len(urls) == 1 {
			found, err := s.repo.UpdateColumns(ctx, &PressRelease{}, release.ID, map[string]any{"image": urls[0]})
			switch {
			case err != nil:
				s.recordError(logrus.Fields{"id": release.ID}, err, "attaching image to press release")
				s.discardCreated(ctx, created)
				warnings = append(warnings, "The image could not be attached to the press release")
			case !found:
				s.discardCreated(ctx, created)
				warnings = append(warnings, "The press release was deleted before its image was attached")
			default:
				release.Image = urls[0]
			}
		}
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"id":       release.ID,
			"seq":      release.Seq,
			"warnings": len(warnings),
		}).Info("press release created")
	}

	return WriteResult[PressRelease]{Record: release, Warnings: warnings}, nil
}

// UpdatePressRelease applies the provided fields. A replaced or cleared image is discarded
// after the write commits.
func (s *service) UpdatePressRelease(ctx context.Context, id string, in PressReleaseInput) (WriteResult[PressRelease], error) {
	existing, err := s.GetPressRelease(ctx, id)
	if err != nil {
		return WriteResult[PressRelease]{}, err
	}

	updated := *existing
	if err := applyPressRelease(&updated, in); err != nil {
		return WriteResult[PressRelease]{}, err
	}

	var created, warnings []string
	if in.Image != nil {
		source := trimmed(in.Image)
		switch {
		case source == existing.Image:
		case source == "":
			updated.Image = ""
		default:
			var urls []string
			urls, created, warnings = s.storeImages(ctx, []string{source})
			if len(urls) == 1 {
				updated.Image = urls[0]
			}
		}
	}

	updated.ID = existing.ID
	updated.Seq = existing.Seq
	updated.CreatedAt = existing.CreatedAt

	found, err := s.repo.Update(ctx, &updated, existing.ID)
	if err != nil {
		s.discardCreated(ctx, created)
		return WriteResult[PressRelease]{}, s.fail(logrus.Fields{"id": existing.ID}, err, "Failed to update press release")
	}
	if !found {
		s.discardCreated(ctx, created)
		return WriteResult[PressRelease]{}, apperr.NotFound("Press release not found")
	}

	var stale []string
	if existing.Image != "" && existing.Image != updated.Image {
		stale = []string{existing.Image}
	}
	warnings = append(warnings, s.runHooks(ctx, Event{
		Kind:     EventUpdated,
		Resource: ResourcePressReleases,
		IDs:      []string{updated.ID},
		Images:   stale,
	})...)

	return WriteResult[PressRelease]{Record: updated, Warnings: warnings}, nil
}

func (s *service) DeletePressReleases(ctx context.Context, ids []string) (DeleteResult, error) {
	return deleteRecords(ctx, s, ResourcePressReleases, "press release", ids,
		func(p PressRelease) string { return p.ID },
		func(p PressRelease) []string {
			if p.Image == "" {
				return nil
			}
			return []string{p.Image}
		},
		func(ctx context.Context, ids []string) (int64, error) {
			return s.repo.DeleteByIDs(ctx, &PressRelease{}, ids)
		},
	)
}

func applyPressRelease(p *PressRelease, in PressReleaseInput) error {
	if in.Title != nil {
		p.Title = trimmed(in.Title)
	}
	if in.Publisher != nil {
		p.Publisher = trimmed(in.Publisher)
	}
	if in.Link != nil {
		p.Link = trimmed(in.Link)
	}
	if in.Date != nil {
		date, err := normalizeDate(trimmed(in.Date))
		if err != nil {
			return err
		}
		p.Date = date
	}

	if p.Title == "" || p.Publisher == "" || p.Date == "" || p.Link == "" {
		return apperr.Validation("Missing required fields: title, publisher, date, and link are required")
	}

	link, err := url.Parse(p.Link)
	if err != nil || (link.Scheme != "http" && link.Scheme != "https") || link.Host == "" {
		return apperr.Validation("Link must be an http or https URL")
	}

	return nil
}
