// Package templates renders the HTML pages and HTMX fragments of the
// recombinant forms.
package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/recombinant/internal/core"
	"github.com/JonMunkholm/recombinant/internal/schema"
)

// Locale carries the display language of a page.
type Locale struct {
	Lang      string
	Translate schema.Translator
}

func (l Locale) text(v schema.Localized) string {
	return v.In(l.Lang, l.Translate)
}

// htmlWriter writes escaped markup and keeps the first write error.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *htmlWriter) rawf(format string, args ...any) {
	if h.err == nil {
		_, h.err = fmt.Fprintf(h.w, format, args...)
	}
}

func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *htmlWriter) render(ctx context.Context, c templ.Component) {
	if h.err == nil {
		h.err = c.Render(ctx, h.w)
	}
}

func component(fn func(ctx context.Context, h *htmlWriter)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		fn(ctx, h)
		return h.err
	})
}

// Page wraps body in the HTML document.
func Page(title string, body templ.Component) templ.Component {
	return component(func(ctx context.Context, h *htmlWriter) {
		h.raw(`<!DOCTYPE html><html><head><meta charset="utf-8"><title>`)
		h.text(title)
		h.raw(`</title><script src="https://unpkg.com/htmx.org@1.9.12"></script></head><body><main id="content">`)
		h.render(ctx, body)
		h.raw(`</main></body></html>`)
	})
}

// ErrorAlert is the error fragment swapped in by HTMX requests.
func ErrorAlert(message, action, code string) templ.Component {
	return component(func(_ context.Context, h *htmlWriter) {
		h.raw(`<div class="alert alert-danger" role="alert"><p>`)
		h.text(message)
		h.raw(`</p>`)
		if action != "" {
			h.raw(`<p class="action">`)
			h.text(action)
			h.raw(`</p>`)
		}
		if code != "" {
			h.raw(`<small>Code: `)
			h.text(code)
			h.raw(`</small>`)
		}
		h.raw(`</div>`)
	})
}

// Flash is a one-line success notice.
func Flash(message string) templ.Component {
	return component(func(_ context.Context, h *htmlWriter) {
		h.raw(`<div class="alert alert-success" role="status">`)
		h.text(message)
		h.raw(`</div>`)
	})
}

func errorList(h *htmlWriter, errs []string) {
	if len(errs) == 0 {
		return
	}
	h.raw(`<div class="alert alert-danger" role="alert"><ul>`)
	for _, e := range errs {
		h.raw(`<li>`)
		h.text(e)
		h.raw(`</li>`)
	}
	h.raw(`</ul></div>`)
}

// Preview renders the resource page: upload form, template links, the
// bulk-delete form and the first records of the table.
func Preview(p *core.Preview, lc Locale) templ.Component {
	return component(func(ctx context.Context, h *htmlWriter) {
		c := p.Chromo
		h.raw(`<h1>`)
		h.text(lc.text(c.Title))
		h.raw(` <small>`)
		h.text(p.Organization.Title)
		h.raw(`</small></h1>`)

		errorList(h, p.Errors)

		h.rawf(`<form method="post" enctype="multipart/form-data" action="/recombinant/upload/%s">`, templ.EscapeString(p.Dataset.ID))
		h.raw(`<input type="file" name="xls_update" accept=".xlsx">`)
		h.raw(`<button type="submit" name="validate" value="1">Check for errors</button>`)
		h.raw(`<button type="submit" name="upload" value="1">Submit</button></form>`)

		h.rawf(`<p><a href="/recombinant-template/%s/%s/%s">Download template</a> `,
			templ.EscapeString(c.DatasetType), templ.EscapeString(lc.Lang), templ.EscapeString(p.Organization.Name))
		h.rawf(`<a href="/recombinant-dictionary/%s?lang=%s">Data dictionary</a></p>`,
			templ.EscapeString(c.DatasetType), templ.EscapeString(lc.Lang))

		if len(c.PrimaryKey) > 0 {
			h.render(ctx, DeleteForm(p.Dataset.ID, p.Resource.ID, "", nil))
		}

		fields := c.ImportFields()
		h.rawf(`<p>%d records</p><table><thead><tr>`, p.Total)
		for _, f := range fields {
			h.raw(`<th>`)
			h.text(lc.text(f.Label))
			h.raw(`</th>`)
		}
		h.raw(`</tr></thead><tbody>`)
		for _, rec := range p.Records {
			h.raw(`<tr>`)
			for _, f := range fields {
				h.raw(`<td>`)
				if v := rec[f.DatastoreID]; v != nil {
					h.text(fmt.Sprint(v))
				}
				h.raw(`</td>`)
			}
			h.raw(`</tr>`)
		}
		h.raw(`</tbody></table>`)
	})
}

// UploadDone reports an accepted upload.
func UploadDone(res *core.UploadResult) templ.Component {
	return component(func(ctx context.Context, h *htmlWriter) {
		msg := "Your file was successfully uploaded into the central system."
		if res.DryRun {
			msg = "No errors found."
		}
		h.render(ctx, Flash(msg))
		h.raw(`<ul>`)
		for _, s := range res.Sheets {
			h.raw(`<li>`)
			h.text(s.Sheet)
			h.rawf(`: %d</li>`, s.Records)
		}
		h.raw(`</ul>`)
	})
}

// DeleteForm is the bulk-delete input form.
func DeleteForm(datasetID, resourceID, text string, errs []string) templ.Component {
	return component(func(_ context.Context, h *htmlWriter) {
		h.rawf(`<form id="bulk-delete" method="post" action="/recombinant/delete/%s/%s" hx-post="/recombinant/delete/%s/%s" hx-target="this" hx-swap="outerHTML">`,
			templ.EscapeString(datasetID), templ.EscapeString(resourceID),
			templ.EscapeString(datasetID), templ.EscapeString(resourceID))
		errorList(h, errs)
		h.raw(`<label for="bulk-delete-text">Primary keys of the records to delete, one per line</label>`)
		h.raw(`<textarea id="bulk-delete-text" name="bulk-delete" rows="8">`)
		h.text(text)
		h.raw(`</textarea><button type="submit">Delete</button></form>`)
	})
}

// DeleteOutcome renders the next step of the bulk-delete flow.
func DeleteOutcome(datasetID, resourceID string, out *core.DeleteOutcome) templ.Component {
	return component(func(ctx context.Context, h *htmlWriter) {
		switch out.State {
		case core.StateConfirming:
			h.rawf(`<form id="bulk-delete" method="post" action="/recombinant/delete/%s/%s" hx-post="/recombinant/delete/%s/%s" hx-target="this" hx-swap="outerHTML">`,
				templ.EscapeString(datasetID), templ.EscapeString(resourceID),
				templ.EscapeString(datasetID), templ.EscapeString(resourceID))
			h.rawf(`<p>Delete %d records?</p><pre>`, len(out.Accepted))
			h.text(out.Pending)
			h.raw(`</pre><input type="hidden" name="bulk-delete" value="`)
			h.text(out.Pending)
			h.raw(`"><button type="submit" name="confirm" value="1">Confirm</button>`)
			h.raw(`<button type="submit" name="cancel" value="1">Cancel</button></form>`)
		case core.StateDeleted:
			h.render(ctx, Flash(out.Message()))
			if len(out.Failed) > 0 {
				lines := make([]string, len(out.Failed))
				for i, f := range out.Failed {
					lines[i] = f.Line + ": " + f.Message
				}
				errorList(h, lines)
			}
		default:
			h.render(ctx, DeleteForm(datasetID, resourceID, out.Pending, out.Errors))
		}
	})
}
