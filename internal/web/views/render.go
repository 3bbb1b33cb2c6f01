// Package views renders the portal's HTML pages as templ components.
package views

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/a-h/templ"
)

// writer accumulates the first write error so page functions can emit
// markup without checking every call.
type writer struct {
	out io.Writer
	err error
}

func (w *writer) raw(parts ...string) {
	for _, s := range parts {
		if w.err != nil {
			return
		}
		_, w.err = io.WriteString(w.out, s)
	}
}

// text writes s HTML-escaped.
func (w *writer) text(s string) { w.raw(templ.EscapeString(s)) }

func (w *writer) attr(name, value string) {
	w.raw(" ", name, `="`, templ.EscapeString(value), `"`)
}

// href writes an href attribute, replacing unsafe URLs.
func (w *writer) href(u string) { w.attr("href", string(templ.URL(u))) }

func (w *writer) src(u string) { w.attr("src", string(templ.URL(u))) }

func (w *writer) elem(tag, class, content string) {
	w.raw("<", tag)
	if class != "" {
		w.attr("class", class)
	}
	w.raw(">")
	w.text(content)
	w.raw("</", tag, ">")
}

func (w *writer) link(u, label string) {
	w.raw("<a")
	w.href(u)
	w.raw(">")
	w.text(label)
	w.raw("</a>")
}

func (w *writer) component(ctx context.Context, c templ.Component) {
	if w.err != nil || c == nil {
		return
	}
	w.err = c.Render(ctx, w.out)
}

func (w *writer) hidden(name, value string) {
	w.raw(`<input type="hidden"`)
	w.attr("name", name)
	w.attr("value", value)
	w.raw(">")
}

func (w *writer) input(typ, name, label, value string, required bool) {
	w.raw(`<label>`)
	w.text(label)
	w.raw(`<input`)
	w.attr("type", typ)
	w.attr("name", name)
	w.attr("value", value)
	if required {
		w.raw(" required")
	}
	w.raw(`></label>`)
}

func (w *writer) textarea(name, label, value string, rows int) {
	w.raw(`<label>`)
	w.text(label)
	w.raw(`<textarea`)
	w.attr("name", name)
	w.attr("rows", strconv.Itoa(rows))
	w.raw(">")
	w.text(value)
	w.raw(`</textarea></label>`)
}

// Option is one choice of a select element.
type Option struct {
	Value    string
	Label    string
	Selected bool
}

func (w *writer) selectBox(name, label string, multiple bool, opts []Option) {
	w.raw(`<label>`)
	w.text(label)
	w.raw(`<select`)
	w.attr("name", name)
	if multiple {
		w.raw(" multiple")
	}
	w.raw(">")
	for _, o := range opts {
		w.raw("<option")
		w.attr("value", o.Value)
		if o.Selected {
			w.raw(" selected")
		}
		w.raw(">")
		w.text(o.Label)
		w.raw("</option>")
	}
	w.raw(`</select></label>`)
}

func (w *writer) checkbox(name, label string, checked bool) {
	w.raw(`<label class="inline"><input type="checkbox" value="true"`)
	w.attr("name", name)
	if checked {
		w.raw(" checked")
	}
	w.raw(">")
	w.text(label)
	w.raw(`</label>`)
}

// form opens a POST form carrying the CSRF field.
func (w *writer) form(action, csrfField string, multipart bool) {
	w.raw(`<form method="post"`)
	w.attr("action", string(templ.URL(action)))
	if multipart {
		w.raw(` enctype="multipart/form-data"`)
	}
	w.raw(">", csrfField)
}

func (w *writer) submit(label string) {
	w.raw(`<button type="submit">`)
	w.text(label)
	w.raw(`</button></form>`)
}

func component(fn func(ctx context.Context, w *writer)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{out: out}
		fn(ctx, w)
		return w.err
	})
}

func itoa(n int) string { return strconv.Itoa(n) }

func date(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func dateRange(start, end *time.Time) string {
	switch {
	case start != nil && end != nil:
		return date(start) + " to " + date(end)
	case start != nil:
		return "from " + date(start)
	case end != nil:
		return "until " + date(end)
	}
	return ""
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}
