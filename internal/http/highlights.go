package http

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"parkadmin/app/internal/apperr"
	"parkadmin/app/internal/auth"
	"parkadmin/app/internal/content"
	"parkadmin/app/internal/http/templates"
)

const previewExcerptLength = 240

// highlightBody accepts every shape the admin frontend has historically sent for sdg,
// images and category.
type highlightBody struct {
	_        struct{}      `json:"-" additionalProperties:"true"`
	Seq      *int64        `json:"seq,omitempty" doc:"Ignored; the server assigns sequence numbers"`
	Title    *string       `json:"title,omitempty"`
	SDG      any           `json:"sdg,omitempty"`
	Category categoryField `json:"category,omitempty"`
	Date     *string       `json:"date,omitempty"`
	Location *string       `json:"location,omitempty"`
	Images   any           `json:"images,omitempty"`
	Content  *string       `json:"content,omitempty"`
	Status   *string       `json:"status,omitempty"`
}

func (b *highlightBody) input() (content.HighlightInput, error) {
	in := content.HighlightInput{
		Title:    b.Title,
		Date:     b.Date,
		Location: b.Location,
		Content:  b.Content,
		Status:   b.Status,
	}

	if b.SDG != nil {
		tags, err := content.NormalizeTags(b.SDG)
		if err != nil {
			return in, err
		}
		in.SDG = &tags
	}
	if b.Images != nil {
		images, err := content.NormalizeImages(b.Images)
		if err != nil {
			return in, err
		}
		in.Images = &images
	}
	if b.Category.Set {
		var category string
		if b.Category.Value != nil {
			ref, err := categoryReference(b.Category.Value)
			if err != nil {
				return in, err
			}
			category = ref
		}
		in.Category = &category
	}

	return in, nil
}

// categoryField records whether category was present in the body, so an explicit null
// clears the category while an absent field leaves it alone.
type categoryField struct {
	Set   bool
	Value any
}

func (c *categoryField) UnmarshalJSON(data []byte) error {
	c.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		c.Value = nil
		return nil
	}
	return json.Unmarshal(data, &c.Value)
}

func (categoryField) Schema(huma.Registry) *huma.Schema {
	return &huma.Schema{Description: "Category id, embedded category object, or null to clear"}
}

// categoryReference reads a category given as an id or as an embedded category object.
func categoryReference(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v), nil
	case map[string]any:
		for _, key := range []string{"id", "_id", "value"} {
			if id, ok := v[key].(string); ok {
				return strings.TrimSpace(id), nil
			}
		}
	}
	return "", apperr.Validation("Invalid category reference")
}

type highlightInput struct {
	Body highlightBody
}

type highlightUpdateInput struct {
	ID   string `path:"id"`
	Body highlightBody
}

type highlightStatusInput struct {
	ID   string `path:"id"`
	Body struct {
		Status string `json:"status" enum:"draft,published,rejected"`
	}
}

type highlightOutput struct {
	Body content.Highlight
}

type highlightWriteOutput struct {
	Status int
	Body   struct {
		Message   string            `json:"message"`
		Highlight content.Highlight `json:"highlight"`
		Warning   string            `json:"warning,omitempty"`
	}
}

func newHighlightWriteOutput(status int, message string, result content.WriteResult[content.Highlight]) *highlightWriteOutput {
	out := &highlightWriteOutput{Status: status}
	out.Body.Message = message
	out.Body.Highlight = result.Record
	out.Body.Warning = joinWarnings(result.Warnings)
	return out
}

func (s *Server) registerHighlightRoutes() {
	base := apiPrefix + "/highlights"
	tag := "highlights"

	huma.Get(s.api, base, s.listHighlightsHandler, operation("list-highlights", "List highlights", auth.AccessPublic, tag))
	s.registerNextSeqRoute(content.ResourceHighlights)
	huma.Get(s.api, base+"/{id}", s.getHighlightHandler, operation("get-highlight", "Fetch a highlight", auth.AccessPublic, tag))
	huma.Get(s.api, base+"/{id}/preview", s.previewHighlightHandler, operation("preview-highlight", "Render a highlight preview", auth.AccessPublic, tag), htmlOperation)
	huma.Post(s.api, base, s.createHighlightHandler, operation("create-highlight", "Create a highlight", auth.AccessEditor, tag))
	huma.Patch(s.api, base+"/{id}", s.updateHighlightHandler, operation("update-highlight", "Edit a highlight", auth.AccessEditor, tag))
	huma.Patch(s.api, base+"/{id}/status", s.updateHighlightStatusHandler, operation("update-highlight-status", "Change a highlight's status", auth.AccessEditor, tag))
	huma.Delete(s.api, base+"/{id}", s.deleteHighlightsHandler, operation("delete-highlights", "Delete one or more highlights", auth.AccessEditor, tag))
}

func (s *Server) listHighlightsHandler(ctx context.Context, input *listInput) (*listOutput[content.Highlight], error) {
	result, err := s.content.ListHighlights(ctx, input.query())
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "listing highlights")
	}
	return newListOutput(result), nil
}

func (s *Server) getHighlightHandler(ctx context.Context, input *idInput) (*highlightOutput, error) {
	highlight, err := s.content.GetHighlight(ctx, input.ID)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "fetching highlight")
	}
	return &highlightOutput{Body: *highlight}, nil
}

func (s *Server) createHighlightHandler(ctx context.Context, input *highlightInput) (*highlightWriteOutput, error) {
	in, err := input.Body.input()
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "reading highlight body")
	}

	result, err := s.content.CreateHighlight(ctx, in)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "creating highlight")
	}
	return newHighlightWriteOutput(stdhttp.StatusCreated, "Highlight created successfully", result), nil
}

func (s *Server) updateHighlightHandler(ctx context.Context, input *highlightUpdateInput) (*highlightWriteOutput, error) {
	in, err := input.Body.input()
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "reading highlight body")
	}

	result, err := s.content.UpdateHighlight(ctx, input.ID, in)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "updating highlight")
	}
	return newHighlightWriteOutput(stdhttp.StatusOK, "Highlight updated successfully", result), nil
}

func (s *Server) updateHighlightStatusHandler(ctx context.Context, input *highlightStatusInput) (*highlightWriteOutput, error) {
	highlight, err := s.content.UpdateHighlightStatus(ctx, input.ID, input.Body.Status)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "updating highlight status")
	}
	return newHighlightWriteOutput(stdhttp.StatusOK, "Highlight status updated successfully", content.WriteResult[content.Highlight]{Record: *highlight}), nil
}

func (s *Server) deleteHighlightsHandler(ctx context.Context, input *idInput) (*deleteOutput, error) {
	result, err := s.content.DeleteHighlights(ctx, content.SplitIDs(input.ID))
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "deleting highlights")
	}
	return newDeleteOutput("highlight(s)", result), nil
}

func (s *Server) previewHighlightHandler(ctx context.Context, input *idInput) (*htmlResponse, error) {
	highlight, err := s.content.GetHighlight(ctx, input.ID)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "fetching highlight preview")
	}

	return s.renderHTML(ctx, templates.HighlightPreview(templates.PreviewPageData{
		Title:    highlight.Title,
		Seq:      highlight.Seq,
		Status:   string(highlight.Status),
		Category: highlight.CategoryName,
		Date:     highlight.Date,
		Location: highlight.Location,
		SDG:      highlight.SDG,
		Images:   highlight.Images,
		Excerpt:  content.Excerpt(highlight.Content, previewExcerptLength),
		HTML:     highlight.Content,
	}))
}
