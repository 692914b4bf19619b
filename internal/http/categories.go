package http

import (
	"context"
	stdhttp "net/http"

	"github.com/danielgtaylor/huma/v2"

	"parkadmin/app/internal/auth"
	"parkadmin/app/internal/content"
)

type categoryBody struct {
	_    struct{} `json:"-" additionalProperties:"true"`
	Name string   `json:"name" maxLength:"255"`
}

type categoryInput struct {
	Body categoryBody
}

type categoryUpdateInput struct {
	ID   string `path:"id"`
	Body categoryBody
}

type categoryOutput struct {
	Body content.Category
}

type categoryWriteOutput struct {
	Status int
	Body   struct {
		Message  string           `json:"message"`
		Category content.Category `json:"category"`
	}
}

func newCategoryWriteOutput(status int, message string, category *content.Category) *categoryWriteOutput {
	out := &categoryWriteOutput{Status: status}
	out.Body.Message = message
	out.Body.Category = *category
	return out
}

func (s *Server) registerCategoryRoutes() {
	base := apiPrefix + "/categories"
	tag := "categories"

	huma.Get(s.api, base, s.listCategoriesHandler, operation("list-categories", "List categories", auth.AccessPublic, tag))
	huma.Get(s.api, base+"/{id}", s.getCategoryHandler, operation("get-category", "Fetch a category", auth.AccessPublic, tag))
	huma.Post(s.api, base, s.createCategoryHandler, operation("create-category", "Create a category", auth.AccessEditor, tag))
	huma.Patch(s.api, base+"/{id}", s.updateCategoryHandler, operation("update-category", "Rename a category", auth.AccessEditor, tag))
	huma.Delete(s.api, base+"/{id}", s.deleteCategoriesHandler, operation("delete-categories", "Delete one or more categories", auth.AccessEditor, tag))
}

func (s *Server) listCategoriesHandler(ctx context.Context, input *listInput) (*listOutput[content.Category], error) {
	result, err := s.content.ListCategories(ctx, input.query())
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "listing categories")
	}
	return newListOutput(result), nil
}

func (s *Server) getCategoryHandler(ctx context.Context, input *idInput) (*categoryOutput, error) {
	category, err := s.content.GetCategory(ctx, input.ID)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "fetching category")
	}
	return &categoryOutput{Body: *category}, nil
}

func (s *Server) createCategoryHandler(ctx context.Context, input *categoryInput) (*categoryWriteOutput, error) {
	category, err := s.content.CreateCategory(ctx, input.Body.Name)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "creating category")
	}
	return newCategoryWriteOutput(stdhttp.StatusCreated, "Category created successfully", category), nil
}

func (s *Server) updateCategoryHandler(ctx context.Context, input *categoryUpdateInput) (*categoryWriteOutput, error) {
	category, err := s.content.UpdateCategory(ctx, input.ID, input.Body.Name)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "updating category")
	}
	return newCategoryWriteOutput(stdhttp.StatusOK, "Category updated successfully", category), nil
}

func (s *Server) deleteCategoriesHandler(ctx context.Context, input *idInput) (*deleteOutput, error) {
	result, err := s.content.DeleteCategories(ctx, content.SplitIDs(input.ID))
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "deleting categories")
	}
	return newDeleteOutput("category(ies)", result), nil
}
