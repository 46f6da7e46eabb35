package templates

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// EnvelopeData is the content wrapped by Envelope.
type EnvelopeData struct {
	Title     string
	Body      string
	Priority  string
	ActionURL string
}

// Envelope renders a minimal HTML document around a plain-text body. Text is
// escaped and line breaks become <br>.
func Envelope(d EnvelopeData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"><title>`)
		b.WriteString(templ.EscapeString(d.Title))
		b.WriteString(`</title></head><body style="font-family:Arial,sans-serif;color:#222">`)
		b.WriteString(`<div style="max-width:600px;margin:0 auto;padding:16px">`)
		b.WriteString(`<h2 style="margin:0 0 12px">`)
		b.WriteString(templ.EscapeString(d.Title))
		b.WriteString(`</h2>`)
		if d.Priority == "high" || d.Priority == "urgent" {
			b.WriteString(`<p style="color:#c0392b;font-weight:bold">`)
			b.WriteString(templ.EscapeString(strings.ToUpper(d.Priority)))
			b.WriteString(`</p>`)
		}
		b.WriteString(`<div style="line-height:1.5">`)
		for i, line := range strings.Split(d.Body, "\n") {
			if i > 0 {
				b.WriteString("<br>")
			}
			b.WriteString(templ.EscapeString(line))
		}
		b.WriteString(`</div>`)
		if d.ActionURL != "" {
			b.WriteString(`<p><a href="`)
			b.WriteString(templ.EscapeString(string(templ.URL(d.ActionURL))))
			b.WriteString(`">View details</a></p>`)
		}
		b.WriteString(`</div></body></html>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}
