// Package core holds the portal's domain model and business logic: the
// curriculum and student CSV importers, the cross-cohort curriculum copy,
// enrollment reconciliation, invite-code state and the onboarding wizard.
// It has no HTTP or SQL dependencies; storage is reached through the
// interfaces in store.go.
package core

import (
	"strings"
	"time"
)

// CohortStatus is the lifecycle state of a cohort.
type CohortStatus string

const (
	CohortActive   CohortStatus = "active"
	CohortDraft    CohortStatus = "draft"
	CohortArchived CohortStatus = "archived"
)

// ContentType is the kind of a lesson content item. The set is closed.
type ContentType string

const (
	ContentVideo        ContentType = "video"
	ContentSlideDeck    ContentType = "slide_deck"
	ContentGuide        ContentType = "guide"
	ContentClayTable    ContentType = "clay_table"
	ContentAITool       ContentType = "ai_tool"
	ContentText         ContentType = "text"
	ContentExternalLink ContentType = "external_link"
	ContentCredentials  ContentType = "credentials"
	ContentSOPLink      ContentType = "sop_link"
)

// ContentTypes lists every valid content type in display order.
var ContentTypes = []ContentType{
	ContentVideo, ContentSlideDeck, ContentGuide, ContentClayTable, ContentAITool,
	ContentText, ContentExternalLink, ContentCredentials, ContentSOPLink,
}

// ParseContentType accepts a content type key case-insensitively, with spaces
// and hyphens treated as underscores ("Slide Deck" and "slide-deck" both
// resolve to slide_deck).
func ParseContentType(s string) (ContentType, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	for _, ct := range ContentTypes {
		if string(ct) == key {
			return ct, true
		}
	}
	return "", false
}

// HasURL reports whether items of this type are rendered from embed_url.
func (t ContentType) HasURL() bool {
	switch t {
	case ContentText, ContentAITool, ContentCredentials:
		return false
	}
	return true
}

// AccessLevel is a student's product tier.
type AccessLevel string

const (
	AccessFullAccess     AccessLevel = "full_access"
	AccessSprintAITools  AccessLevel = "sprint_ai_tools"
	AccessCurriculumOnly AccessLevel = "curriculum_only"
	AccessLeadMagnet     AccessLevel = "lead_magnet"
)

// AccessLevels lists every access level, highest tier first.
var AccessLevels = []AccessLevel{AccessFullAccess, AccessSprintAITools, AccessCurriculumOnly, AccessLeadMagnet}

var accessLevelLabels = map[AccessLevel]string{
	AccessFullAccess:     "Full Access",
	AccessSprintAITools:  "Sprint + AI Tools",
	AccessCurriculumOnly: "Curriculum Only",
	AccessLeadMagnet:     "Lead Magnet",
}

// Label returns the display name shown in tables and CSV templates.
func (a AccessLevel) Label() string {
	if l, ok := accessLevelLabels[a]; ok {
		return l
	}
	return string(a)
}

// ParseAccessLevel accepts a key or a display label, case-insensitively.
func ParseAccessLevel(s string) (AccessLevel, bool) {
	s = strings.TrimSpace(s)
	for _, a := range AccessLevels {
		if strings.EqualFold(s, string(a)) || strings.EqualFold(s, a.Label()) {
			return a, true
		}
	}
	return "", false
}

// StudentStatus is where a student is in the program.
type StudentStatus string

const (
	StudentOnboarding StudentStatus = "onboarding"
	StudentActive     StudentStatus = "active"
	StudentCompleted  StudentStatus = "completed"
	StudentPaused     StudentStatus = "paused"
	StudentChurned    StudentStatus = "churned"
)

// StudentStatuses lists every student status.
var StudentStatuses = []StudentStatus{StudentOnboarding, StudentActive, StudentCompleted, StudentPaused, StudentChurned}

// Label returns the capitalized status name.
func (s StudentStatus) Label() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// ParseStudentStatus accepts a status key or label, case-insensitively.
func ParseStudentStatus(s string) (StudentStatus, bool) {
	s = strings.TrimSpace(s)
	for _, st := range StudentStatuses {
		if strings.EqualFold(s, string(st)) {
			return st, true
		}
	}
	return "", false
}

// OnboardingStep is one page of the learner onboarding wizard.
type OnboardingStep string

const (
	StepWelcome  OnboardingStep = "welcome"
	StepVideo    OnboardingStep = "video"
	StepSurvey   OnboardingStep = "survey"
	StepBooking  OnboardingStep = "booking"
	StepComplete OnboardingStep = "complete"
)

// OnboardingConfig is the per-cohort wizard configuration stored as JSON.
type OnboardingConfig struct {
	Steps               []OnboardingStep `json:"steps"`
	WelcomeTitle        string           `json:"welcomeTitle,omitempty"`
	WelcomeBody         string           `json:"welcomeBody,omitempty"`
	VideoURL            string           `json:"videoUrl,omitempty"`
	SurveyEnabled       bool             `json:"surveyEnabled"`
	BookingEnabled      bool             `json:"bookingEnabled"`
	CalcomURL           string           `json:"calcomUrl,omitempty"`
	CalcomQualifyField  string           `json:"calcomQualifyField,omitempty"`
	CalcomQualifyValues []string         `json:"calcomQualifyValues,omitempty"`
}

// Cohort is one run of the program.
type Cohort struct {
	ID               string            `json:"id"`
	Name             string            `json:"name" validate:"notblank,max=200"`
	Slug             string            `json:"slug" validate:"required,slug,max=100"`
	Description      string            `json:"description,omitempty"`
	Status           CohortStatus      `json:"status" validate:"required,oneof=active draft archived"`
	StartDate        *time.Time        `json:"startDate,omitempty"`
	EndDate          *time.Time        `json:"endDate,omitempty"`
	Icon             string            `json:"icon,omitempty"`
	SidebarLabel     string            `json:"sidebarLabel,omitempty"`
	SortOrder        int               `json:"sortOrder"`
	ProductKey       string            `json:"productKey,omitempty"`
	PaymentProductID string            `json:"paymentProductId,omitempty"`
	Onboarding       *OnboardingConfig `json:"onboarding,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
}

// Week groups lessons and action items within a cohort.
type Week struct {
	ID          string `json:"id"`
	CohortID    string `json:"cohortId" validate:"required"`
	Title       string `json:"title" validate:"notblank,max=300"`
	Description string `json:"description,omitempty"`
	SortOrder   int    `json:"sortOrder" validate:"gte=0"`
}

// Lesson groups content items within a week.
type Lesson struct {
	ID          string `json:"id"`
	WeekID      string `json:"weekId" validate:"required"`
	Title       string `json:"title" validate:"notblank,max=300"`
	Description string `json:"description,omitempty"`
	SortOrder   int    `json:"sortOrder" validate:"gte=0"`
}

// Credentials is the payload of a credentials content item.
type Credentials struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	LoginURL string `json:"loginUrl,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// ContentItem is one piece of lesson material.
type ContentItem struct {
	ID          string       `json:"id"`
	LessonID    string       `json:"lessonId" validate:"required"`
	Type        ContentType  `json:"type" validate:"contenttype"`
	Title       string       `json:"title" validate:"notblank,max=300"`
	Description string       `json:"description,omitempty"`
	SortOrder   int          `json:"sortOrder" validate:"gte=0"`
	EmbedURL    string       `json:"embedUrl,omitempty"`
	AIToolSlug  string       `json:"aiToolSlug,omitempty"`
	TextBody    string       `json:"textBody,omitempty"`
	Credentials *Credentials `json:"credentials,omitempty"`
}

// ActionItem is a to-do attached to a week.
type ActionItem struct {
	ID          string `json:"id"`
	WeekID      string `json:"weekId" validate:"required"`
	Title       string `json:"title" validate:"notblank,max=300"`
	Description string `json:"description,omitempty"`
	SortOrder   int    `json:"sortOrder" validate:"gte=0"`
	Assignee    string `json:"assignee,omitempty"`
	DueLabel    string `json:"dueLabel,omitempty"`
}

// Student is a learner. Email is unique case-insensitively.
type Student struct {
	ID            string        `json:"id"`
	Email         string        `json:"email" validate:"required,email,max=320"`
	Name          string        `json:"name,omitempty"`
	Company       string        `json:"company,omitempty"`
	PurchaseDate  *time.Time    `json:"purchaseDate,omitempty"`
	AccessLevel   AccessLevel   `json:"accessLevel" validate:"accesslevel"`
	Status        StudentStatus `json:"status" validate:"studentstatus"`
	Notes         string        `json:"notes,omitempty"`
	SlackInvited  bool          `json:"slackInvited"`
	CalendarAdded bool          `json:"calendarAdded"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// Enrollment links a student to a cohort.
type Enrollment struct {
	ID                    string      `json:"id"`
	StudentID             string      `json:"studentId"`
	CohortID              string      `json:"cohortId"`
	JoinedAt              time.Time   `json:"joinedAt"`
	OnboardingCompletedAt *time.Time  `json:"onboardingCompletedAt,omitempty"`
	AccessLevel           AccessLevel `json:"accessLevel,omitempty"`
}

// ToolGrant is a credit allotment for one AI tool carried by an invite code.
type ToolGrant struct {
	ToolSlug string `json:"toolSlug" validate:"notblank"`
	Credits  int    `json:"credits" validate:"gt=0"`
}

// InviteStatus is the stored status of an invite code. Expired and Maxed
// Out are derived; see InviteCode.DisplayStatus.
type InviteStatus string

const (
	InviteActive   InviteStatus = "active"
	InviteDisabled InviteStatus = "disabled"
)

// InviteCode admits students into a cohort.
type InviteCode struct {
	ID          string       `json:"id"`
	Code        string       `json:"code" validate:"required,min=4,max=32,alphanum"`
	CohortID    string       `json:"cohortId" validate:"required"`
	Label       string       `json:"label,omitempty"`
	Status      InviteStatus `json:"status" validate:"oneof=active disabled"`
	MaxUses     *int         `json:"maxUses,omitempty" validate:"omitempty,gt=0"`
	UseCount    int          `json:"useCount"`
	ExpiresAt   *time.Time   `json:"expiresAt,omitempty"`
	AccessLevel AccessLevel  `json:"accessLevel,omitempty" validate:"omitempty,accesslevel"`
	ToolGrants  []ToolGrant  `json:"toolGrants,omitempty" validate:"dive"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// Survey holds a student's onboarding answers. Answers carries extra
// key/value pairs the qualification rule may look at.
type Survey struct {
	StudentID        string            `json:"studentId"`
	BusinessName     string            `json:"businessName,omitempty"`
	Role             string            `json:"role,omitempty"`
	Industry         string            `json:"industry,omitempty"`
	TeamSize         string            `json:"teamSize,omitempty"`
	RevenueRange     string            `json:"revenueRange,omitempty"`
	Goals            string            `json:"goals,omitempty"`
	BiggestChallenge string            `json:"biggestChallenge,omitempty"`
	HowHeard         string            `json:"howHeard,omitempty"`
	Answers          map[string]string `json:"answers,omitempty"`
	CompletedAt      *time.Time        `json:"completedAt,omitempty"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// Answer returns the survey value for a field name. Named fields are
// matched by their JSON name, case-insensitively; anything else is looked
// up in Answers.
func (s Survey) Answer(field string) string {
	switch strings.ToLower(strings.TrimSpace(field)) {
	case "businessname", "business_name":
		return s.BusinessName
	case "role":
		return s.Role
	case "industry":
		return s.Industry
	case "teamsize", "team_size":
		return s.TeamSize
	case "revenuerange", "revenue_range":
		return s.RevenueRange
	case "goals":
		return s.Goals
	case "biggestchallenge", "biggest_challenge":
		return s.BiggestChallenge
	case "howheard", "how_heard":
		return s.HowHeard
	}
	for k, v := range s.Answers {
		if strings.EqualFold(k, strings.TrimSpace(field)) {
			return v
		}
	}
	return ""
}

// ToolCredit is a student's balance for one AI tool.
type ToolCredit struct {
	StudentID string    `json:"studentId"`
	ToolSlug  string    `json:"toolSlug"`
	Credits   int       `json:"credits"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EnrollmentConfig maps a product key to the invite code used by the
// /bootcamp/join redirect.
type EnrollmentConfig struct {
	ProductKey   string    `json:"productKey" validate:"notblank"`
	InviteCodeID string    `json:"inviteCodeId" validate:"required"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Setting is one site-wide key/value pair.
type Setting struct {
	Key   string `json:"key" validate:"notblank"`
	Value string `json:"value"`
}

// Well-known setting keys.
const (
	SettingSupportEmail    = "support_email"
	SettingDefaultCohortID = "default_cohort_id"
	SettingBookingURL      = "booking_url"
)

// FieldType is the expected data type of a CSV column.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldDate
	FieldURL
	FieldEmail
)

// FieldSpec describes one CSV column an importer understands.
type FieldSpec struct {
	Name       string
	Type       FieldType
	Required   bool
	EnumValues []string
	Help       string
}

// HeaderIndex maps lowercased column names to their position in a row.
type HeaderIndex map[string]int
