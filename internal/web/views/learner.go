package views

import (
	"context"
	"fmt"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/bootcamp/internal/core"
	"github.com/JonMunkholm/bootcamp/internal/htmlsanitize"
)

// RegisterData is the invite registration page.
type RegisterData struct {
	Code       string
	CohortID   string
	CohortName string
	Status     core.InviteDisplayStatus // "" when the code is unknown
	Email      string
	Name       string
	Error      string
}

// Register asks for an email against an invite code.
func Register(p Page, d RegisterData) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		if d.CohortName != "" {
			w.elem("h1", "", "Join "+d.CohortName)
		} else {
			w.elem("h1", "", "Join the bootcamp")
		}
		if d.Error != "" {
			w.component(ctx, ErrorAlert(d.Error, "", ""))
		}
		if d.Code != "" && d.Status != "" && d.Status != core.DisplayActive {
			w.raw(`<div class="alert error">This invite code is no longer available (`)
			w.text(string(d.Status))
			w.raw(`). Ask your program contact for a new link.</div>`)
			return
		}
		w.form("/bootcamp/register", p.CSRFField, false)
		w.input("text", "code", "Invite code", d.Code, true)
		w.input("email", "email", "Email", d.Email, true)
		w.input("text", "name", "Name", d.Name, false)
		w.submit("Register")
	})
}

// OnboardingData is one wizard page.
type OnboardingData struct {
	View core.OnboardingView
	Back core.OnboardingStep
	Next core.OnboardingStep
}

// Onboarding renders the current wizard step.
func Onboarding(p Page, d OnboardingData) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		v := d.View
		cfg := core.OnboardingConfig{}
		if v.Cohort.Onboarding != nil {
			cfg = *v.Cohort.Onboarding
		}
		base := "/onboarding/" + v.Cohort.ID

		w.raw(`<p class="muted">`)
		w.text(fmt.Sprintf("Step %d of %d", v.Index+1, len(v.Steps)))
		w.raw(`</p>`)

		switch v.Current {
		case core.StepWelcome:
			title := cfg.WelcomeTitle
			if title == "" {
				title = "Welcome to " + v.Cohort.Name
			}
			w.elem("h1", "", title)
			w.raw(htmlsanitize.Render(cfg.WelcomeBody))

		case core.StepVideo:
			w.elem("h1", "", "Watch this first")
			if cfg.VideoURL != "" {
				w.raw(`<iframe width="100%" height="420" allowfullscreen frameborder="0"`)
				w.src(core.NormalizeURL(cfg.VideoURL))
				w.raw(`></iframe>`)
			}

		case core.StepSurvey:
			w.elem("h1", "", "Tell us about your business")
			sv := v.Survey
			w.form(base+"/survey", p.CSRFField, false)
			w.hidden("step", string(v.Current))
			w.input("text", "businessName", "Business name", sv.BusinessName, false)
			w.input("text", "role", "Your role", sv.Role, false)
			w.input("text", "industry", "Industry", sv.Industry, false)
			w.input("text", "teamSize", "Team size", sv.TeamSize, false)
			w.input("text", "revenueRange", "Revenue range", sv.RevenueRange, false)
			w.textarea("goals", "Goals for the program", sv.Goals, 3)
			w.textarea("biggestChallenge", "Biggest challenge", sv.BiggestChallenge, 3)
			w.input("text", "howHeard", "How did you hear about us?", sv.HowHeard, false)
			if cfg.CalcomQualifyField != "" && sv.Answer(cfg.CalcomQualifyField) == "" {
				w.input("text", "answer_"+cfg.CalcomQualifyField, cfg.CalcomQualifyField, "", false)
			}
			w.submit("Save and continue")
			return

		case core.StepBooking:
			w.elem("h1", "", "Book your kickoff call")
			if v.Booking.Qualified {
				w.raw(`<iframe width="100%" height="640" frameborder="0"`)
				w.src(v.Booking.EmbedURL)
				w.raw(`></iframe>`)
			} else {
				w.elem("p", "", v.Booking.Message)
			}

		case core.StepComplete:
			w.elem("h1", "", "You're all set")
			if v.Completed {
				w.elem("p", "", "Onboarding complete.")
				w.link("/learn/"+v.Cohort.ID, "Go to the curriculum")
				return
			}
			w.form(base+"/complete", p.CSRFField, false)
			w.submit("Finish onboarding")
			return
		}

		w.raw(`<p>`)
		if d.Back != "" {
			w.link(base+"?step="+string(d.Back), "Back")
			w.raw(` `)
		}
		if d.Next != "" {
			w.link(base+"?step="+string(d.Next), "Continue")
		}
		w.raw(`</p>`)
	})
}

// LearnIndex lists the learner's cohorts.
// LearnIndexData lists a learner's cohorts. Current is highlighted when
// it is one of them.
type LearnIndexData struct {
	Cohorts      []core.Cohort
	Current      string
	SupportEmail string
}

func LearnIndex(p Page, d LearnIndexData) templ.Component {
	return component(func(_ context.Context, w *writer) {
		w.elem("h1", "", "Your programs")
		if len(d.Cohorts) == 0 {
			w.elem("p", "muted", "You are not enrolled in any cohort yet.")
		} else {
			w.raw(`<ul>`)
			for _, c := range d.Cohorts {
				if c.ID == d.Current {
					w.raw(`<li class="current">`)
				} else {
					w.raw(`<li>`)
				}
				label := c.SidebarLabel
				if label == "" {
					label = c.Name
				}
				w.link("/learn/"+c.ID, label)
				w.raw(`</li>`)
			}
			w.raw(`</ul>`)
		}
		if d.SupportEmail != "" {
			w.raw(`<p class="muted">Questions? `)
			w.link("mailto:"+d.SupportEmail, d.SupportEmail)
			w.raw(`</p>`)
		}
	})
}

// LearnData is a cohort's curriculum for a learner.
type LearnData struct {
	Cohort    core.Cohort
	Tree      core.CurriculumTree
	Completed map[string]bool
	Credits   map[string]int
}

// Learn renders the curriculum with completion toggles.
func Learn(p Page, d LearnData) templ.Component {
	return component(func(_ context.Context, w *writer) {
		w.elem("h1", "", d.Cohort.Name)
		total, done := 0, 0
		for _, wk := range d.Tree.Weeks {
			for _, l := range wk.Lessons {
				total += len(l.Items)
				for _, it := range l.Items {
					if d.Completed[it.ID] {
						done++
					}
				}
			}
		}
		w.raw(`<p class="muted">`)
		w.text(fmt.Sprintf("%d of %d items complete", done, total))
		w.raw(`</p>`)

		for _, wk := range d.Tree.Weeks {
			w.elem("h2", "", wk.Title)
			if wk.Description != "" {
				w.elem("p", "muted", wk.Description)
			}
			for _, l := range wk.Lessons {
				w.elem("h3", "", l.Title)
				for _, it := range l.Items {
					learnItem(w, p, d, it)
				}
			}
			if len(wk.ActionItems) > 0 {
				w.elem("h3", "", "Action items")
				w.raw(`<ul>`)
				for _, a := range wk.ActionItems {
					w.raw(`<li>`)
					w.text(a.Title)
					if a.DueLabel != "" {
						w.raw(` `)
						w.elem("span", "muted", "("+a.DueLabel+")")
					}
					w.raw(`</li>`)
				}
				w.raw(`</ul>`)
			}
		}
	})
}

func learnItem(w *writer, p Page, d LearnData, it core.ContentItem) {
	done := d.Completed[it.ID]
	w.raw(`<section>`)
	class := ""
	if done {
		class = "done"
	}
	w.elem("h4", class, it.Title)
	if it.Description != "" {
		w.elem("p", "muted", it.Description)
	}

	switch it.Type {
	case core.ContentVideo, core.ContentSlideDeck, core.ContentGuide, core.ContentClayTable:
		if it.EmbedURL != "" {
			w.raw(`<iframe width="100%" height="420" allowfullscreen frameborder="0"`)
			w.src(it.EmbedURL)
			w.raw(`></iframe>`)
		}
	case core.ContentText:
		w.raw(htmlsanitize.Render(it.TextBody))
		if it.EmbedURL != "" {
			w.link(it.EmbedURL, "Open link")
		}
	case core.ContentAITool:
		w.raw(`<p>Tool: <code>`)
		w.text(it.AIToolSlug)
		w.raw(`</code>`)
		if n, ok := d.Credits[it.AIToolSlug]; ok {
			w.text(fmt.Sprintf(" · %d credits", n))
		}
		w.raw(`</p>`)
	case core.ContentCredentials:
		if c := it.Credentials; c != nil {
			w.raw(`<table><tbody>`)
			for _, kv := range [][2]string{{"Username", c.Username}, {"Password", c.Password}, {"Notes", c.Notes}} {
				if kv[1] == "" {
					continue
				}
				w.raw(`<tr><th>`)
				w.text(kv[0])
				w.raw(`</th><td><code>`)
				w.text(kv[1])
				w.raw(`</code></td></tr>`)
			}
			w.raw(`</tbody></table>`)
			if c.LoginURL != "" {
				w.link(c.LoginURL, "Sign in")
			}
		}
	default:
		if it.EmbedURL != "" {
			w.raw(`<p>`)
			w.link(it.EmbedURL, "Open "+it.Title)
			w.raw(`</p>`)
		}
	}

	w.form("/learn/items/"+it.ID+"/complete", p.CSRFField, false)
	w.hidden("cohortId", d.Cohort.ID)
	if done {
		w.hidden("done", "false")
		w.submit("Mark incomplete")
	} else {
		w.hidden("done", "true")
		w.submit("Mark complete")
	}
	w.raw(`</section>`)
}
