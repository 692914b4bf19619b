package http

import (
	"bytes"
	"context"
	stdhttp "net/http"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/danielgtaylor/huma/v2"

	"parkadmin/app/internal/auth"
	"parkadmin/app/internal/content"
	"parkadmin/app/internal/listing"
)

const htmlContentType = "text/html; charset=utf-8"

type htmlResponse struct {
	Status      int
	ContentType string `header:"Content-Type"`
	Body        []byte
}

func (s *Server) renderHTML(ctx context.Context, component templ.Component) (*htmlResponse, error) {
	var buf bytes.Buffer
	if err := component.Render(ctx, &buf); err != nil {
		return nil, s.toHTTPError(ctx, err, "rendering page")
	}
	return &htmlResponse{Status: stdhttp.StatusOK, ContentType: htmlContentType, Body: buf.Bytes()}, nil
}

type idInput struct {
	ID string `path:"id"`
}

// listInput carries the query parameters the admin frontend sends with list requests.
type listInput struct {
	Q         string `query:"q"`
	TitleLike string `query:"title_like"`
	EmailLike string `query:"email_like"`
	NameLike  string `query:"name_like"`
	Status    string `query:"status"`
	Category  string `query:"category"`
	StartDate string `query:"start_date"`
	EndDate   string `query:"end_date"`
	Period    string `query:"period"`
	Sort      string `query:"_sort"`
	Order     string `query:"_order"`
	Start     int    `query:"_start"`
	End       int    `query:"_end"`
}

func (in *listInput) query() content.Query {
	q := content.Query{
		Criteria: listing.Criteria{
			Search:    firstNonEmpty(in.Q, in.TitleLike, in.EmailLike, in.NameLike),
			StartDate: in.StartDate,
			EndDate:   in.EndDate,
			Status:    in.Status,
			Category:  in.Category,
			Period:    listing.ParsePeriod(in.Period),
		},
		Window: listing.Window{Start: in.Start, End: in.End},
	}
	if strings.TrimSpace(in.Sort) != "" {
		q.Sort = listing.ParseSort(in.Sort, in.Order)
	}
	return q
}

type listOutput[T any] struct {
	TotalCount int `header:"X-Total-Count"`
	Body       []T
}

func newListOutput[T any](result content.ListResult[T]) *listOutput[T] {
	items := result.Items
	if items == nil {
		items = []T{}
	}
	return &listOutput[T]{TotalCount: result.Total, Body: items}
}

type deleteOutput struct {
	Body struct {
		Message  string   `json:"message"`
		Deleted  []string `json:"deleted"`
		Missing  []string `json:"missing"`
		Warnings []string `json:"warnings"`
	}
}

func newDeleteOutput(label string, result content.DeleteResult) *deleteOutput {
	out := &deleteOutput{}
	out.Body.Message = strconv.Itoa(len(result.Deleted)) + " " + label + " deleted successfully"
	out.Body.Deleted = nonNil(result.Deleted)
	out.Body.Missing = nonNil(result.Missing)
	out.Body.Warnings = nonNil(result.Warnings)
	return out
}

type nextSeqOutput struct {
	Body struct {
		Resource string `json:"resource"`
		Seq      int64  `json:"seq"`
	}
}

func (s *Server) registerNextSeqRoute(resource content.Resource) {
	huma.Get(s.api, apiPrefix+"/"+string(resource)+"/next-seq", func(ctx context.Context, _ *struct{}) (*nextSeqOutput, error) {
		seq, err := s.content.NextSeq(ctx, resource)
		if err != nil {
			return nil, s.toHTTPError(ctx, err, "reading next sequence number")
		}

		out := &nextSeqOutput{}
		out.Body.Resource = string(resource)
		out.Body.Seq = seq
		return out, nil
	}, operation("next-seq-"+string(resource), "Preview the next sequence number", auth.AccessEditor, string(resource)))
}

type healthResponse struct {
	Status int
	Body   struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
}

func (s *Server) registerHealthRoute() {
	huma.Get(s.api, "/healthz", s.healthHandler, operation("health", "Health check", auth.AccessPublic, "system"))
}

func (s *Server) healthHandler(ctx context.Context, _ *struct{}) (*healthResponse, error) {
	resp := &healthResponse{Status: stdhttp.StatusOK}
	resp.Body.Status = "ok"
	resp.Body.Database = "ok"

	if err := s.content.Ping(ctx); err != nil {
		s.recordError(ctx, err, "pinging database", nil)
		resp.Body.Status = "degraded"
		resp.Body.Database = "error"
		resp.Status = stdhttp.StatusServiceUnavailable
	}

	return resp, nil
}

// operation names the route, records the access level the auth middleware enforces and
// documents the error statuses.
func operation(id, summary string, access auth.Access, tag string) func(op *huma.Operation) {
	return func(op *huma.Operation) {
		op.OperationID = id
		op.Summary = summary
		if tag != "" {
			op.Tags = []string{tag}
		}
		if op.Metadata == nil {
			op.Metadata = map[string]any{}
		}
		op.Metadata[accessMetadata] = access

		op.Errors = []int{stdhttp.StatusBadRequest, stdhttp.StatusInternalServerError}
		if access != auth.AccessPublic {
			op.Errors = append(op.Errors, stdhttp.StatusUnauthorized, stdhttp.StatusForbidden)
		}
	}
}

func htmlOperation(op *huma.Operation) {
	if op.Responses == nil {
		op.Responses = map[string]*huma.Response{}
	}
	op.Responses[strconv.Itoa(stdhttp.StatusOK)] = &huma.Response{
		Description: stdhttp.StatusText(stdhttp.StatusOK),
		Content: map[string]*huma.MediaType{
			htmlContentType: {Schema: &huma.Schema{Type: "string"}},
		},
	}
}

func joinWarnings(warnings []string) string {
	return strings.Join(warnings, "; ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
