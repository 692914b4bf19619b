package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

const previewStyles = `body{font-family:system-ui,sans-serif;max-width:760px;margin:2rem auto;padding:0 1rem;color:#1d2a1f}` +
	`header p{color:#5b6b5e;margin:.25rem 0}.status{text-transform:uppercase;font-size:.75rem;letter-spacing:.05em}` +
	`.tags span{display:inline-block;background:#e3efe5;border-radius:4px;padding:.1rem .5rem;margin:0 .25rem .25rem 0}` +
	`figure{margin:1rem 0}figure img{max-width:100%;height:auto}`

// HighlightPreview renders a standalone page showing a highlight the way the public site
// lays it out.
func HighlightPreview(data PreviewPageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var b strings.Builder
		b.WriteString("<!DOCTYPE html><html lang=\"en\"><head><meta charset=\"utf-8\">")
		b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">")
		fmt.Fprintf(&b, "<title>%s • Preview</title>", templ.EscapeString(data.Title))
		if data.Excerpt != "" {
			fmt.Fprintf(&b, "<meta name=\"description\" content=\"%s\">", templ.EscapeString(data.Excerpt))
		}
		fmt.Fprintf(&b, "<style>%s</style></head><body><article><header>", previewStyles)
		fmt.Fprintf(&b, "<p class=\"status\">#%d · %s</p>", data.Seq, templ.EscapeString(data.Status))
		fmt.Fprintf(&b, "<h1>%s</h1>", templ.EscapeString(data.Title))

		var meta []string
		for _, value := range []string{data.Date, data.Location, data.Category} {
			if value != "" {
				meta = append(meta, templ.EscapeString(value))
			}
		}
		if len(meta) > 0 {
			fmt.Fprintf(&b, "<p>%s</p>", strings.Join(meta, " · "))
		}

		if len(data.SDG) > 0 {
			b.WriteString("<p class=\"tags\">")
			for _, tag := range data.SDG {
				fmt.Fprintf(&b, "<span>%s</span>", templ.EscapeString(tag))
			}
			b.WriteString("</p>")
		}
		b.WriteString("</header>")

		for i, src := range data.Images {
			if !strings.HasPrefix(src, "https://") && !strings.HasPrefix(src, "http://") {
				continue
			}
			fmt.Fprintf(&b, "<figure><img src=\"%s\" alt=\"%s image %d\" loading=\"lazy\"></figure>",
				templ.EscapeString(src), templ.EscapeString(data.Title), i+1)
		}

		// HTML was sanitized when the highlight was saved.
		b.WriteString(data.HTML)
		b.WriteString("</article></body></html>")

		_, err := io.WriteString(w, b.String())
		return err
	})
}
