package views

import (
	"context"

	"github.com/a-h/templ"
)

// Page is the data every page shares.
type Page struct {
	Title     string
	Theme     string
	CSRFField string // rendered hidden input from gorilla/csrf
	Admin     string
	Student   string
	Flash     string
	FlashKind string // "ok" or "error"
}

const styles = `
:root{--bg:#fff;--fg:#1f2328;--muted:#656d76;--line:#d0d7de;--accent:#0969da;--bad:#cf222e;--good:#1a7f37}
[data-theme=dark]{--bg:#0d1117;--fg:#e6edf3;--muted:#8d96a0;--line:#30363d;--accent:#4493f8;--bad:#f85149;--good:#3fb950}
@media (prefers-color-scheme:dark){[data-theme=system]{--bg:#0d1117;--fg:#e6edf3;--muted:#8d96a0;--line:#30363d;--accent:#4493f8}}
body{font-family:system-ui,sans-serif;background:var(--bg);color:var(--fg);margin:0}
header{display:flex;gap:1rem;align-items:center;padding:.75rem 1.5rem;border-bottom:1px solid var(--line)}
header nav{display:flex;gap:1rem;flex:1}
main{max-width:1100px;margin:1.5rem auto;padding:0 1.5rem}
a{color:var(--accent)}
table{border-collapse:collapse;width:100%;margin:1rem 0}
th,td{border-bottom:1px solid var(--line);padding:.4rem .5rem;text-align:left;vertical-align:top}
label{display:block;margin:.5rem 0}label.inline{display:inline-block;margin-right:1rem}
input,select,textarea{display:block;width:100%;max-width:32rem;padding:.35rem;margin-top:.2rem}
label.inline input{display:inline;width:auto}
.muted{color:var(--muted)}.alert{padding:.75rem;border:1px solid var(--line);border-radius:6px;margin:1rem 0}
.alert.error{border-color:var(--bad)}.alert.ok{border-color:var(--good)}
.badge{font-size:.8rem;padding:.1rem .45rem;border:1px solid var(--line);border-radius:1rem}
.done{text-decoration:line-through;color:var(--muted)}
progress{width:100%}
`

// Layout wraps body in the page chrome.
func Layout(p Page, body templ.Component) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		theme := p.Theme
		if theme == "" {
			theme = "system"
		}
		w.raw(`<!DOCTYPE html><html lang="en"`)
		w.attr("data-theme", theme)
		w.raw(`><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>`)
		w.text(p.Title)
		w.raw(`</title><style>`, styles, `</style></head><body><header><strong>Bootcamp</strong><nav>`)
		switch {
		case p.Admin != "":
			w.link("/admin", "Cohorts")
			w.link("/admin/students", "Students")
			w.link("/admin/invites", "Invite codes")
			w.link("/admin/audit", "Audit log")
		case p.Student != "":
			w.link("/learn", "My curriculum")
		}
		w.raw(`</nav>`)
		themeForm(w, p)
		if p.Admin != "" || p.Student != "" {
			w.form("/logout", p.CSRFField, false)
			w.submit("Sign out")
		}
		w.raw(`</header><main>`)
		if p.Flash != "" {
			kind := p.FlashKind
			if kind == "" {
				kind = "ok"
			}
			w.raw(`<div`)
			w.attr("class", "alert "+kind)
			w.raw(`>`)
			w.text(p.Flash)
			w.raw(`</div>`)
		}
		w.component(ctx, body)
		w.raw(`</main></body></html>`)
	})
}

func themeForm(w *writer, p Page) {
	w.form("/theme", p.CSRFField, false)
	w.raw(`<select name="theme" onchange="this.form.submit()">`)
	for _, t := range []string{"system", "light", "dark"} {
		w.raw(`<option`)
		w.attr("value", t)
		if t == p.Theme || (p.Theme == "" && t == "system") {
			w.raw(" selected")
		}
		w.raw(">")
		w.text(t)
		w.raw(`</option>`)
	}
	w.raw(`</select><noscript><button type="submit">Set theme</button></noscript></form>`)
}

// ErrorAlert is the inline error fragment returned to HTMX requests.
func ErrorAlert(message, action, code string) templ.Component {
	return component(func(_ context.Context, w *writer) {
		w.raw(`<div class="alert error" role="alert"><strong>`)
		w.text(message)
		w.raw(`</strong>`)
		if action != "" {
			w.raw(` `)
			w.text(action)
		}
		if code != "" {
			w.raw(` <span class="muted">(`)
			w.text(code)
			w.raw(`)</span>`)
		}
		w.raw(`</div>`)
	})
}

// ErrorPage is a full page for an error.
func ErrorPage(message, action, code string) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		w.elem("h1", "", "Something went wrong")
		w.component(ctx, ErrorAlert(message, action, code))
		w.raw(`<p>`)
		w.link("/", "Back to start")
		w.raw(`</p>`)
	})
}

// Login is the admin sign-in form.
func Login(p Page, next, errMsg string) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		w.elem("h1", "", "Admin sign in")
		if errMsg != "" {
			w.component(ctx, ErrorAlert(errMsg, "", ""))
		}
		w.form("/login", p.CSRFField, false)
		w.hidden("next", next)
		w.input("text", "username", "User", "admin", true)
		w.input("password", "password", "Password", "", true)
		w.submit("Sign in")
	})
}
