package content

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"parkadmin/app/internal/apperr"
	"parkadmin/app/internal/listing"
)

var categorySort = listing.Sort{Field: listing.FieldTitle, Order: listing.Asc}

func categoryRow(c Category) listing.Row {
	return listing.Row{
		Title:     c.Name,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func (s *service) ListCategories(ctx context.Context, q Query) (ListResult[Category], error) {
	var categories []Category
	if err := s.repo.FindAll(ctx, &categories, "name ASC"); err != nil {
		return ListResult[Category]{}, s.fail(nil, err, "Fetching categories failed, please try again later")
	}

	return listRecords(categories, categoryRow, s.anchor(q), categorySort), nil
}

func (s *service) GetCategory(ctx context.Context, id string) (*Category, error) {
	parsed, err := parseID(id, "category")
	if err != nil {
		return nil, err
	}

	var category Category
	found, err := s.repo.FindByID(ctx, &category, parsed)
	if err != nil {
		return nil, s.fail(logrus.Fields{"id": parsed}, err, "Failed to get category")
	}
	if !found {
		return nil, apperr.NotFound("Category not found")
	}

	return &category, nil
}

func (s *service) CreateCategory(ctx context.Context, name string) (*Category, error) {
	trimmedName, err := s.checkCategoryName(ctx, name, "")
	if err != nil {
		return nil, err
	}

	category := Category{Name: trimmedName}
	if err := s.repo.Create(ctx, &category); err != nil {
		if eris.Is(err, ErrDuplicate) {
			return nil, apperr.Conflict("Category already exists")
		}
		return nil, s.fail(nil, err, "Failed to create category")
	}

	return &category, nil
}

func (s *service) UpdateCategory(ctx context.Context, id, name string) (*Category, error) {
	existing, err := s.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}

	trimmedName, err := s.checkCategoryName(ctx, name, existing.ID)
	if err != nil {
		return nil, err
	}

	updated := *existing
	updated.Name = trimmedName
	found, err := s.repo.Update(ctx, &updated, existing.ID)
	if err != nil {
		if eris.Is(err, ErrDuplicate) {
			return nil, apperr.Conflict("Category already exists")
		}
		return nil, s.fail(logrus.Fields{"id": existing.ID}, err, "Failed to update category")
	}
	if !found {
		return nil, apperr.NotFound("Category not found")
	}

	return &updated, nil
}

// DeleteCategories removes the categories and clears them from every highlight.
func (s *service) DeleteCategories(ctx context.Context, ids []string) (DeleteResult, error) {
	return deleteRecords(ctx, s, ResourceCategories, "category", ids,
		func(c Category) string { return c.ID },
		nil,
		s.repo.DeleteCategories,
	)
}

func (s *service) checkCategoryName(ctx context.Context, name, excludeID string) (string, error) {
	trimmedName := strings.TrimSpace(name)
	if trimmedName == "" {
		return "", apperr.Validation("Category name is required")
	}

	exists, err := s.repo.Exists(ctx, &Category{}, "name", trimmedName, excludeID)
	if err != nil {
		return "", s.fail(nil, err, "Failed to check category")
	}
	if exists {
		return "", apperr.Conflict("Category already exists")
	}

	return trimmedName, nil
}
