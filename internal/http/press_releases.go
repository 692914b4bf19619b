package http

import (
	"context"
	stdhttp "net/http"

	"github.com/danielgtaylor/huma/v2"

	"parkadmin/app/internal/auth"
	"parkadmin/app/internal/content"
)

type pressReleaseBody struct {
	_         struct{} `json:"-" additionalProperties:"true"`
	Seq       *int64   `json:"seq,omitempty" doc:"Ignored; the server assigns sequence numbers"`
	Title     *string  `json:"title,omitempty"`
	Publisher *string  `json:"publisher,omitempty"`
	Date      *string  `json:"date,omitempty"`
	Link      *string  `json:"link,omitempty"`
	Image     any      `json:"image,omitempty" doc:"Data URI, URL, or an object with a url field"`
}

func (b *pressReleaseBody) input() (content.PressReleaseInput, error) {
	in := content.PressReleaseInput{
		Title:     b.Title,
		Publisher: b.Publisher,
		Date:      b.Date,
		Link:      b.Link,
	}

	if b.Image != nil {
		images, err := content.NormalizeImages(b.Image)
		if err != nil {
			return in, err
		}
		image := ""
		if len(images) > 0 {
			image = images[0]
		}
		in.Image = &image
	}

	return in, nil
}

type pressReleaseInput struct {
	Body pressReleaseBody
}

type pressReleaseUpdateInput struct {
	ID   string `path:"id"`
	Body pressReleaseBody
}

type pressReleaseOutput struct {
	Body content.PressRelease
}

type pressReleaseWriteOutput struct {
	Status int
	Body   struct {
		Message      string               `json:"message"`
		PressRelease content.PressRelease `json:"pressRelease"`
		Warning      string               `json:"warning,omitempty"`
	}
}

func newPressReleaseWriteOutput(status int, message string, result content.WriteResult[content.PressRelease]) *pressReleaseWriteOutput {
	out := &pressReleaseWriteOutput{Status: status}
	out.Body.Message = message
	out.Body.PressRelease = result.Record
	out.Body.Warning = joinWarnings(result.Warnings)
	return out
}

func (s *Server) registerPressReleaseRoutes() {
	base := apiPrefix + "/" + string(content.ResourcePressReleases)
	tag := "press-releases"

	huma.Get(s.api, base, s.listPressReleasesHandler, operation("list-press-releases", "List press releases", auth.AccessPublic, tag))
	s.registerNextSeqRoute(content.ResourcePressReleases)
	huma.Get(s.api, base+"/{id}", s.getPressReleaseHandler, operation("get-press-release", "Fetch a press release", auth.AccessPublic, tag))
	huma.Post(s.api, base, s.createPressReleaseHandler, operation("create-press-release", "Create a press release", auth.AccessEditor, tag))
	huma.Patch(s.api, base+"/{id}", s.updatePressReleaseHandler, operation("update-press-release", "Edit a press release", auth.AccessEditor, tag))
	huma.Delete(s.api, base+"/{id}", s.deletePressReleasesHandler, operation("delete-press-releases", "Delete one or more press releases", auth.AccessEditor, tag))
}

func (s *Server) listPressReleasesHandler(ctx context.Context, input *listInput) (*listOutput[content.PressRelease], error) {
	result, err := s.content.ListPressReleases(ctx, input.query())
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "listing press releases")
	}
	return newListOutput(result), nil
}

func (s *Server) getPressReleaseHandler(ctx context.Context, input *idInput) (*pressReleaseOutput, error) {
	release, err := s.content.GetPressRelease(ctx, input.ID)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "fetching press release")
	}
	return &pressReleaseOutput{Body: *release}, nil
}

func (s *Server) createPressReleaseHandler(ctx context.Context, input *pressReleaseInput) (*pressReleaseWriteOutput, error) {
	in, err := input.Body.input()
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "reading press release body")
	}

	result, err := s.content.CreatePressRelease(ctx, in)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "creating press release")
	}
	return newPressReleaseWriteOutput(stdhttp.StatusCreated, "Press release created successfully", result), nil
}

func (s *Server) updatePressReleaseHandler(ctx context.Context, input *pressReleaseUpdateInput) (*pressReleaseWriteOutput, error) {
	in, err := input.Body.input()
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "reading press release body")
	}

	result, err := s.content.UpdatePressRelease(ctx, input.ID, in)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "updating press release")
	}
	return newPressReleaseWriteOutput(stdhttp.StatusOK, "Press release updated successfully", result), nil
}

func (s *Server) deletePressReleasesHandler(ctx context.Context, input *idInput) (*deleteOutput, error) {
	result, err := s.content.DeletePressReleases(ctx, content.SplitIDs(input.ID))
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "deleting press releases")
	}
	return newDeleteOutput("press release(s)", result), nil
}
