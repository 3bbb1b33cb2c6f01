package core

import "strings"

// DefaultOnboardingSteps is used when a cohort has no onboarding config.
var DefaultOnboardingSteps = []OnboardingStep{StepWelcome, StepSurvey, StepComplete}

var knownSteps = map[OnboardingStep]bool{
	StepWelcome: true, StepVideo: true, StepSurvey: true, StepBooking: true, StepComplete: true,
}

// EffectiveSteps filters a config's steps down to the ones the wizard
// shows: unknown names, repeats and steps whose feature is switched off
// are dropped. A nil config gets DefaultOnboardingSteps.
func EffectiveSteps(cfg *OnboardingConfig) []OnboardingStep {
	if cfg == nil {
		return append([]OnboardingStep(nil), DefaultOnboardingSteps...)
	}

	seen := map[OnboardingStep]bool{}
	steps := make([]OnboardingStep, 0, len(cfg.Steps))
	for _, raw := range cfg.Steps {
		step := OnboardingStep(strings.ToLower(strings.TrimSpace(string(raw))))
		switch {
		case !knownSteps[step], seen[step]:
			continue
		case step == StepSurvey && !cfg.SurveyEnabled:
			continue
		case step == StepBooking && !cfg.BookingEnabled:
			continue
		case step == StepVideo && cfg.VideoURL == "":
			continue
		}
		seen[step] = true
		steps = append(steps, step)
	}

	if len(steps) == 0 {
		return append([]OnboardingStep(nil), DefaultOnboardingSteps...)
	}
	return steps
}

// Wizard walks a linear list of onboarding steps by index. There is no
// branching; Next and Back clamp at the ends.
type Wizard struct {
	steps []OnboardingStep
	index int
}

// NewWizard builds a wizard for the cohort's onboarding config.
func NewWizard(cfg *OnboardingConfig) *Wizard {
	return &Wizard{steps: EffectiveSteps(cfg)}
}

// Steps returns the steps in order.
func (w *Wizard) Steps() []OnboardingStep { return w.steps }

// Index is the 0-based position of the current step.
func (w *Wizard) Index() int { return w.index }

// Current returns the current step.
func (w *Wizard) Current() OnboardingStep { return w.steps[w.index] }

// IsFirst reports whether Back would not move.
func (w *Wizard) IsFirst() bool { return w.index == 0 }

// IsLast reports whether Next would not move.
func (w *Wizard) IsLast() bool { return w.index == len(w.steps)-1 }

// Next advances one step. It returns false at the last step.
func (w *Wizard) Next() bool {
	if w.IsLast() {
		return false
	}
	w.index++
	return true
}

// Back moves back one step. It returns false at the first step.
func (w *Wizard) Back() bool {
	if w.IsFirst() {
		return false
	}
	w.index--
	return true
}

// Goto jumps to index i, clamped into range.
func (w *Wizard) Goto(i int) {
	switch {
	case i < 0:
		w.index = 0
	case i >= len(w.steps):
		w.index = len(w.steps) - 1
	default:
		w.index = i
	}
}

// GotoStep jumps to the named step. It returns false if the step is not in
// the sequence.
func (w *Wizard) GotoStep(step OnboardingStep) bool {
	for i, s := range w.steps {
		if s == step {
			w.index = i
			return true
		}
	}
	return false
}

// QualifiesForBooking evaluates the booking rule: the survey answer for
// CalcomQualifyField must be one of CalcomQualifyValues (trimmed,
// case-insensitive). An empty value list qualifies everyone.
func QualifiesForBooking(cfg OnboardingConfig, survey *Survey) bool {
	if len(cfg.CalcomQualifyValues) == 0 {
		return true
	}
	if survey == nil || strings.TrimSpace(cfg.CalcomQualifyField) == "" {
		return false
	}

	answer := strings.TrimSpace(survey.Answer(cfg.CalcomQualifyField))
	if answer == "" {
		return false
	}
	for _, v := range cfg.CalcomQualifyValues {
		if strings.EqualFold(strings.TrimSpace(v), answer) {
			return true
		}
	}
	return false
}

// BookingContent is what the booking step renders.
type BookingContent struct {
	Qualified bool   `json:"qualified"`
	EmbedURL  string `json:"embedUrl,omitempty"`
	Message   string `json:"message"`
}

// NoCallNeededMessage is shown to students who do not qualify for a call.
const NoCallNeededMessage = "Thanks! You're all set. No call is needed right now; we'll see you in the first session."

// Booking returns the booking step's content for a student's survey.
func Booking(cfg OnboardingConfig, survey *Survey) BookingContent {
	if QualifiesForBooking(cfg, survey) && cfg.CalcomURL != "" {
		return BookingContent{
			Qualified: true,
			EmbedURL:  NormalizeURL(cfg.CalcomURL),
			Message:   "Pick a time for your onboarding call.",
		}
	}
	return BookingContent{Message: NoCallNeededMessage}
}
