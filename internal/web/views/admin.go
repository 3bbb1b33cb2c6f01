package views

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/bootcamp/internal/core"
)

func cohortStatusOptions(selected core.CohortStatus) []Option {
	var opts []Option
	for _, s := range []core.CohortStatus{core.CohortActive, core.CohortDraft, core.CohortArchived} {
		opts = append(opts, Option{Value: string(s), Label: string(s), Selected: s == selected})
	}
	return opts
}

func accessLevelOptions(selected core.AccessLevel, allowEmpty bool) []Option {
	var opts []Option
	if allowEmpty {
		opts = append(opts, Option{Value: "", Label: "(none)", Selected: selected == ""})
	}
	for _, a := range core.AccessLevels {
		opts = append(opts, Option{Value: string(a), Label: a.Label(), Selected: a == selected})
	}
	return opts
}

func cohortOptions(cohorts []core.Cohort, selected []string, blank string) []Option {
	sel := make(map[string]bool, len(selected))
	for _, id := range selected {
		sel[id] = true
	}
	var opts []Option
	if blank != "" {
		opts = append(opts, Option{Value: "", Label: blank})
	}
	for _, c := range cohorts {
		opts = append(opts, Option{Value: c.ID, Label: c.Name, Selected: sel[c.ID]})
	}
	return opts
}

// Dashboard lists cohorts and offers the create form.
func Dashboard(p Page, cohorts []core.CohortSummary) templ.Component {
	return component(func(_ context.Context, w *writer) {
		w.elem("h1", "", "Cohorts")
		if len(cohorts) == 0 {
			w.elem("p", "muted", "No cohorts yet.")
		} else {
			w.raw(`<table><thead><tr><th>Name</th><th>Status</th><th>Dates</th><th>Weeks</th><th>Students</th></tr></thead><tbody>`)
			for _, c := range cohorts {
				w.raw(`<tr><td>`)
				w.link("/admin/cohorts/"+c.ID, c.Name)
				w.raw(`<div class="muted">`)
				w.text(c.Slug)
				w.raw(`</div></td><td><span class="badge">`)
				w.text(string(c.Status))
				w.raw(`</span></td><td>`)
				w.text(dateRange(c.StartDate, c.EndDate))
				w.raw(`</td><td>`, itoa(c.Weeks), `</td><td>`, itoa(c.Students), `</td></tr>`)
			}
			w.raw(`</tbody></table>`)
		}

		w.elem("h2", "", "New cohort")
		w.form("/admin/cohorts", p.CSRFField, false)
		w.input("text", "name", "Name", "", true)
		w.input("text", "slug", "Slug (optional)", "", false)
		w.selectBox("status", "Status", false, cohortStatusOptions(core.CohortDraft))
		w.input("date", "startDate", "Start date", "", false)
		w.input("date", "endDate", "End date", "", false)
		w.input("text", "productKey", "Product key", "", false)
		w.textarea("description", "Description", "", 3)
		w.submit("Create cohort")
	})
}

// CohortDetail is the data for one cohort's admin page.
type CohortDetail struct {
	Cohort            core.Cohort
	Tree              core.CurriculumTree
	Invites           []core.InviteView
	Students          []core.Student
	Cohorts           []core.Cohort
	CopySource        string
	ExcludeRecordings bool
	CopyPreview       *core.CopyPreview
	ImportPreview     *core.CurriculumPreview
	ImportCSV         string
}

// CohortPage renders a cohort: curriculum tree, import, copy and roster.
func CohortPage(p Page, d CohortDetail) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		c := d.Cohort
		w.elem("h1", "", c.Name)
		w.raw(`<p class="muted">`)
		w.text(c.Slug + " · " + string(c.Status))
		w.raw(` · `)
		w.link("/api/cohorts/"+c.ID+"/export.csv", "Export CSV")
		w.raw(` · `)
		w.link("/api/cohorts/"+c.ID+"/export.pdf", "Export PDF")
		w.raw(`</p>`)

		w.component(ctx, CurriculumTable(d.Tree))

		w.elem("h2", "", "Import curriculum CSV")
		w.raw(`<p class="muted">Columns: week, lesson, title, type, url, description. `)
		w.link("/api/importers/curriculum/sample", "Download sample")
		w.raw(`</p>`)
		if d.ImportPreview != nil {
			pv := d.ImportPreview
			w.raw(`<div class="alert ok">`)
			w.text(fmt.Sprintf("Ready to add %d weeks, %d lessons and %d items after the %d existing weeks.",
				pv.Weeks, pv.Lessons, pv.Items, pv.ExistingWeeks))
			w.raw(`</div>`)
			w.form("/admin/cohorts/"+c.ID+"/import", p.CSRFField, false)
			w.hidden("csv", d.ImportCSV)
			w.submit("Start import")
		}
		w.form("/admin/cohorts/"+c.ID+"/import/preview", p.CSRFField, true)
		w.raw(`<label>CSV file<input type="file" name="file" accept=".csv,text/csv"></label>`)
		w.textarea("csv", "Or paste CSV", "", 6)
		w.submit("Preview")

		w.elem("h2", "", "Copy curriculum from another cohort")
		var sources []core.Cohort
		for _, o := range d.Cohorts {
			if o.ID != c.ID {
				sources = append(sources, o)
			}
		}
		if d.CopyPreview != nil {
			pv := d.CopyPreview
			w.raw(`<div class="alert ok">`)
			w.text(fmt.Sprintf("Will copy %d weeks, %d lessons, %d items and %d action items. Skipping %d lessons and %d items.",
				pv.Weeks, pv.Lessons, pv.Items, pv.ActionItems, pv.SkippedLessons, pv.SkippedItems))
			w.raw(`</div>`)
			w.form("/admin/cohorts/"+c.ID+"/copy", p.CSRFField, false)
			w.hidden("sourceCohortId", d.CopySource)
			if d.ExcludeRecordings {
				w.hidden("excludeRecordings", "true")
			}
			w.submit("Copy now")
		}
		w.form("/admin/cohorts/"+c.ID+"/copy/preview", p.CSRFField, false)
		w.selectBox("sourceCohortId", "Source cohort", false, cohortOptions(sources, []string{d.CopySource}, ""))
		w.checkbox("excludeRecordings", "Exclude recordings", d.ExcludeRecordings)
		w.submit("Preview copy")

		w.elem("h2", "", "Invite codes")
		w.component(ctx, inviteTable(p, d.Invites, nil))
		w.raw(`<p>`)
		w.link("/admin/invites?cohort="+c.ID, "Manage invite codes")
		w.raw(`</p>`)

		w.elem("h2", "", fmt.Sprintf("Students (%d)", len(d.Students)))
		w.raw(`<ul>`)
		for _, st := range d.Students {
			w.raw(`<li>`)
			w.link("/admin/students/"+st.ID, st.Email)
			if st.Name != "" {
				w.raw(` `)
				w.elem("span", "muted", st.Name)
			}
			w.raw(`</li>`)
		}
		w.raw(`</ul>`)

		w.elem("h2", "", "Delete cohort")
		w.elem("p", "muted", "Deletes all weeks, lessons, content, action items, enrollments and invite codes of this cohort.")
		w.form("/admin/cohorts/"+c.ID+"/delete", p.CSRFField, false)
		w.checkbox("confirm", "I understand this cannot be undone", false)
		w.submit("Delete cohort")
	})
}

// CurriculumTable renders a curriculum tree as nested lists.
func CurriculumTable(tree core.CurriculumTree) templ.Component {
	return component(func(_ context.Context, w *writer) {
		if len(tree.Weeks) == 0 {
			w.elem("p", "muted", "No curriculum yet.")
			return
		}
		for _, wk := range tree.Weeks {
			w.elem("h3", "", wk.Title)
			w.raw(`<ul>`)
			for _, l := range wk.Lessons {
				w.raw(`<li><strong>`)
				w.text(l.Title)
				w.raw(`</strong><ul>`)
				for _, it := range l.Items {
					w.raw(`<li><span class="badge">`)
					w.text(string(it.Type))
					w.raw(`</span> `)
					if it.EmbedURL != "" {
						w.link(it.EmbedURL, it.Title)
					} else {
						w.text(it.Title)
					}
					w.raw(`</li>`)
				}
				w.raw(`</ul></li>`)
			}
			for _, a := range wk.ActionItems {
				w.raw(`<li>☐ `)
				w.text(a.Title)
				if a.DueLabel != "" {
					w.raw(` `)
					w.elem("span", "muted", "("+a.DueLabel+")")
				}
				w.raw(`</li>`)
			}
			w.raw(`</ul>`)
		}
	})
}

// Job shows a running or finished import. While running, the page listens
// to the progress stream and reloads when the job ends.
func Job(p Page, progress core.JobProgress, result *core.JobResult, back string) templ.Component {
	return component(func(_ context.Context, w *writer) {
		w.elem("h1", "", "Import "+string(progress.Kind))
		if result == nil {
			w.raw(`<p id="label">`)
			w.text(fmt.Sprintf("%s: %d of %d", progress.Phase, progress.Current, progress.Total))
			w.raw(`</p><progress id="bar" max="100"`)
			w.attr("value", itoa(progress.Percent()))
			w.raw(`></progress><script>`)
			w.raw(`(function(){var es=new EventSource(`, jsString("/api/imports/"+progress.JobID+"/progress"), `);`)
			w.raw(`es.addEventListener("progress",function(e){var p=JSON.parse(e.data);document.getElementById("bar").value=p.total?Math.floor(p.current*100/p.total):0;document.getElementById("label").textContent=p.phase+": "+p.current+" of "+p.total;});`)
			w.raw(`es.addEventListener("complete",function(){es.close();location.reload();});})();`)
			w.raw(`</script>`)
		} else {
			jobResult(w, result)
		}
		w.raw(`<p>`)
		w.link(back, "Back")
		w.raw(`</p>`)
	})
}

func jsString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '"' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '<' || r == '>' || r == '&' || r < 0x20:
			fmt.Fprintf(&b, `\u%04x`, r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func jobResult(w *writer, r *core.JobResult) {
	if r.Error != "" {
		w.raw(`<div class="alert error">`)
		w.text(r.Error)
		w.raw(`</div>`)
	}
	w.raw(`<table><tbody>`)
	row := func(k, v string) {
		w.raw(`<tr><th>`)
		w.text(k)
		w.raw(`</th><td>`)
		w.text(v)
		w.raw(`</td></tr>`)
	}
	switch {
	case r.Curriculum != nil:
		c := r.Curriculum
		row("Weeks created", itoa(c.WeeksCreated))
		row("Lessons created", itoa(c.LessonsCreated))
		row("Items created", itoa(c.ItemsCreated))
		row("Skipped", itoa(c.Skipped))
		for _, f := range c.Failed {
			row(fmt.Sprintf("Failed (line %d)", f.Line), f.Title+": "+f.Reason)
		}
	case r.Students != nil:
		s := r.Students
		row("Created", itoa(s.Created))
		row("Skipped", itoa(s.Skipped))
		for _, f := range s.Failed {
			row("Failed", f.Email+": "+f.Reason)
		}
		for _, f := range s.EnrollFailed {
			row("Enrollment failed", f.Email+": "+f.Reason)
		}
	case r.Copy != nil:
		c := r.Copy
		row("Weeks", itoa(c.Weeks))
		row("Lessons", itoa(c.Lessons))
		row("Items", itoa(c.Items))
		row("Action items", itoa(c.ActionItems))
	}
	row("Duration", r.Duration.Round(1e6).String())
	w.raw(`</tbody></table>`)
}

// StudentsData is the roster page.
type StudentsData struct {
	Students          []core.StudentWithCohorts
	Cohorts           []core.Cohort
	Preview           *core.StudentImportPreview
	ImportCSV         string
	CohortID          string
	IncludeDuplicates bool
}

// Students lists the roster with the import form.
func Students(p Page, d StudentsData) templ.Component {
	return component(func(_ context.Context, w *writer) {
		names := make(map[string]string, len(d.Cohorts))
		for _, c := range d.Cohorts {
			names[c.ID] = c.Name
		}

		w.elem("h1", "", fmt.Sprintf("Students (%d)", len(d.Students)))
		w.raw(`<table><thead><tr><th>Email</th><th>Name</th><th>Access</th><th>Status</th><th>Cohorts</th></tr></thead><tbody>`)
		for _, st := range d.Students {
			w.raw(`<tr><td>`)
			w.link("/admin/students/"+st.ID, st.Email)
			w.raw(`</td><td>`)
			w.text(st.Name)
			w.raw(`</td><td>`)
			w.text(st.AccessLevel.Label())
			w.raw(`</td><td>`)
			w.text(st.Status.Label())
			w.raw(`</td><td>`)
			var cs []string
			for _, id := range st.CohortIDs {
				cs = append(cs, names[id])
			}
			w.text(strings.Join(cs, ", "))
			w.raw(`</td></tr>`)
		}
		w.raw(`</tbody></table>`)

		w.elem("h2", "", "Add student")
		w.form("/admin/students", p.CSRFField, false)
		w.input("email", "email", "Email", "", true)
		w.input("text", "name", "Name", "", false)
		w.input("text", "company", "Company", "", false)
		w.selectBox("accessLevel", "Access level", false, accessLevelOptions(core.DefaultAccessLevel, false))
		w.selectBox("cohortIds", "Cohorts", true, cohortOptions(d.Cohorts, nil, ""))
		w.submit("Add student")

		w.elem("h2", "", "Import students CSV")
		w.raw(`<p class="muted">Columns: email, name, company, purchase_date, access_level, status, notes. `)
		w.link("/api/importers/students/sample", "Download sample")
		w.raw(`</p>`)
		if d.Preview != nil {
			w.raw(`<div class="alert ok">`)
			w.text(fmt.Sprintf("%d new, %d already on file.", d.Preview.New, d.Preview.Duplicates))
			w.raw(`</div><table><thead><tr><th>Line</th><th>Email</th><th>Name</th><th></th></tr></thead><tbody>`)
			for _, r := range d.Preview.Rows {
				w.raw(`<tr><td>`, itoa(r.Line), `</td><td>`)
				w.text(r.Email)
				w.raw(`</td><td>`)
				w.text(r.Name)
				w.raw(`</td><td>`)
				if r.Duplicate {
					w.elem("span", "badge", "duplicate")
				}
				w.raw(`</td></tr>`)
			}
			w.raw(`</tbody></table>`)
			w.form("/admin/students/import", p.CSRFField, false)
			w.hidden("csv", d.ImportCSV)
			w.hidden("cohortId", d.CohortID)
			if d.IncludeDuplicates {
				w.hidden("includeDuplicates", "true")
			}
			w.submit("Start import")
		}
		w.form("/admin/students/import/preview", p.CSRFField, true)
		w.raw(`<label>CSV file<input type="file" name="file" accept=".csv,text/csv"></label>`)
		w.textarea("csv", "Or paste CSV", "", 6)
		w.selectBox("cohortId", "Enroll into", false, cohortOptions(d.Cohorts, []string{d.CohortID}, "(no cohort)"))
		w.checkbox("includeDuplicates", "Include duplicates", d.IncludeDuplicates)
		w.submit("Preview")
	})
}

// StudentEditData is one student's edit page.
type StudentEditData struct {
	Student core.StudentWithCohorts
	Cohorts []core.Cohort
	Credits []core.ToolCredit
	Survey  core.Survey
}

// StudentEdit is the student profile form with the cohort multi-select.
// Nothing is saved until the form is submitted.
func StudentEdit(p Page, d StudentEditData) templ.Component {
	return component(func(_ context.Context, w *writer) {
		st := d.Student
		w.elem("h1", "", st.Email)
		w.form("/admin/students/"+st.ID, p.CSRFField, false)
		w.input("email", "email", "Email", st.Email, true)
		w.input("text", "name", "Name", st.Name, false)
		w.input("text", "company", "Company", st.Company, false)
		w.input("date", "purchaseDate", "Purchase date", date(st.PurchaseDate), false)
		w.selectBox("accessLevel", "Access level", false, accessLevelOptions(st.AccessLevel, false))
		var statuses []Option
		for _, s := range core.StudentStatuses {
			statuses = append(statuses, Option{Value: string(s), Label: s.Label(), Selected: s == st.Status})
		}
		w.selectBox("status", "Status", false, statuses)
		w.checkbox("slackInvited", "Slack invited", st.SlackInvited)
		w.checkbox("calendarAdded", "Calendar added", st.CalendarAdded)
		w.textarea("notes", "Notes", st.Notes, 3)
		w.selectBox("cohortIds", "Cohorts", true, cohortOptions(d.Cohorts, st.CohortIDs, ""))
		w.hidden("syncCohorts", "true")
		w.submit("Save")

		w.elem("h2", "", "AI tool credits")
		w.raw(`<table><tbody>`)
		for _, c := range d.Credits {
			w.raw(`<tr><td>`)
			w.text(c.ToolSlug)
			w.raw(`</td><td>`, itoa(c.Credits), `</td></tr>`)
		}
		w.raw(`</tbody></table>`)
		w.form("/admin/students/"+st.ID+"/credits", p.CSRFField, false)
		w.input("text", "toolSlug", "Tool", "", true)
		w.input("number", "credits", "Credits", "", true)
		w.submit("Grant credits")

		if d.Survey.CompletedAt != nil {
			w.elem("h2", "", "Onboarding survey")
			w.raw(`<table><tbody>`)
			for _, kv := range [][2]string{
				{"Business", d.Survey.BusinessName}, {"Role", d.Survey.Role}, {"Industry", d.Survey.Industry},
				{"Team size", d.Survey.TeamSize}, {"Revenue", d.Survey.RevenueRange}, {"Goals", d.Survey.Goals},
				{"Biggest challenge", d.Survey.BiggestChallenge}, {"How heard", d.Survey.HowHeard},
			} {
				w.raw(`<tr><th>`)
				w.text(kv[0])
				w.raw(`</th><td>`)
				w.text(kv[1])
				w.raw(`</td></tr>`)
			}
			w.raw(`</tbody></table>`)
		}

		w.form("/admin/students/"+st.ID+"/delete", p.CSRFField, false)
		w.submit("Delete student")
	})
}

// InvitesData is the invite code page.
type InvitesData struct {
	Invites  []core.InviteView
	Cohorts  []core.Cohort
	CohortID string
	Configs  []core.EnrollmentConfig
	BaseURL  string
}

// Invites lists codes with their derived status and the create form.
func Invites(p Page, d InvitesData) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		names := make(map[string]string, len(d.Cohorts))
		for _, c := range d.Cohorts {
			names[c.ID] = c.Name
		}
		w.elem("h1", "", "Invite codes")
		w.component(ctx, inviteTable(p, d.Invites, names))

		w.elem("h2", "", "New invite code")
		w.form("/admin/invites", p.CSRFField, false)
		w.selectBox("cohortId", "Cohort", false, cohortOptions(d.Cohorts, []string{d.CohortID}, ""))
		w.input("text", "code", "Code (blank to generate)", "", false)
		w.input("text", "label", "Label", "", false)
		w.input("number", "maxUses", "Max uses", "", false)
		w.input("date", "expiresAt", "Expires", "", false)
		w.selectBox("accessLevel", "Access level granted", false, accessLevelOptions("", true))
		w.input("text", "toolGrants", "Tool credits (tool:credits, comma separated)", "", false)
		w.submit("Create code")

		w.elem("h2", "", "Product links")
		w.raw(`<table><thead><tr><th>Product key</th><th>Invite code</th><th>Join link</th></tr></thead><tbody>`)
		codes := make(map[string]string, len(d.Invites))
		for _, iv := range d.Invites {
			codes[iv.ID] = iv.Code
		}
		for _, c := range d.Configs {
			w.raw(`<tr><td>`)
			w.text(c.ProductKey)
			w.raw(`</td><td>`)
			w.text(codes[c.InviteCodeID])
			w.raw(`</td><td><code>`)
			w.text(core.JoinLink(d.BaseURL, c.ProductKey))
			w.raw(`</code></td></tr>`)
		}
		w.raw(`</tbody></table>`)
	})
}

func inviteTable(p Page, invites []core.InviteView, cohortNames map[string]string) templ.Component {
	return component(func(_ context.Context, w *writer) {
		if len(invites) == 0 {
			w.elem("p", "muted", "No invite codes.")
			return
		}
		w.raw(`<table><thead><tr><th>Code</th>`)
		if cohortNames != nil {
			w.raw(`<th>Cohort</th>`)
		}
		w.raw(`<th>Status</th><th>Uses</th><th>Expires</th><th>Link</th><th></th></tr></thead><tbody>`)
		for _, iv := range invites {
			w.raw(`<tr><td><strong>`)
			w.text(iv.Code)
			w.raw(`</strong><div class="muted">`)
			w.text(iv.Label)
			w.raw(`</div></td>`)
			if cohortNames != nil {
				w.raw(`<td>`)
				w.text(cohortNames[iv.CohortID])
				w.raw(`</td>`)
			}
			w.raw(`<td><span class="badge">`)
			w.text(string(iv.DisplayStatus))
			w.raw(`</span></td><td>`)
			uses := itoa(iv.UseCount)
			if iv.MaxUses != nil {
				uses += " / " + itoa(*iv.MaxUses)
			}
			w.text(uses)
			w.raw(`</td><td>`)
			w.text(date(iv.ExpiresAt))
			w.raw(`</td><td><code>`)
			w.text(iv.RegisterLink)
			w.raw(`</code></td><td>`)
			w.form("/admin/invites/"+iv.ID+"/toggle", p.CSRFField, false)
			if iv.Status == core.InviteDisabled {
				w.submit("Enable")
			} else {
				w.submit("Disable")
			}
			w.raw(`</td></tr>`)
		}
		w.raw(`</tbody></table>`)
	})
}

// AuditLog lists audit entries, newest first.
func AuditLog(p Page, entries []core.AuditEntry, filter core.AuditFilter) templ.Component {
	return component(func(_ context.Context, w *writer) {
		w.elem("h1", "", "Audit log")
		w.raw(`<form method="get" action="/admin/audit">`)
		w.input("text", "action", "Action", string(filter.Action), false)
		w.input("text", "cohortId", "Cohort id", filter.CohortID, false)
		w.raw(`<button type="submit">Filter</button></form>`)
		w.raw(`<table><thead><tr><th>When</th><th>Action</th><th>Severity</th><th>Subject</th><th>Actor</th><th>Summary</th></tr></thead><tbody>`)
		for _, e := range entries {
			w.raw(`<tr><td>`)
			w.text(stamp(e.CreatedAt))
			w.raw(`</td><td>`)
			w.text(string(e.Action))
			w.raw(`</td><td>`)
			w.text(string(e.Severity))
			w.raw(`</td><td>`)
			w.text(e.Subject)
			w.raw(`</td><td>`)
			w.text(e.Actor)
			w.raw(`<div class="muted">`)
			w.text(e.IPAddress)
			w.raw(`</div></td><td>`)
			w.text(e.Summary)
			w.raw(`</td></tr>`)
		}
		w.raw(`</tbody></table>`)
		if filter.Limit > 0 && len(entries) == filter.Limit {
			q := url.Values{}
			q.Set("action", string(filter.Action))
			q.Set("cohortId", filter.CohortID)
			q.Set("offset", itoa(filter.Offset+filter.Limit))
			w.link("/admin/audit?"+q.Encode(), "Older entries")
		}
	})
}
