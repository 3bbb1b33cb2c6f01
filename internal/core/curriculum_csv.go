package core

import (
	"fmt"
	"strings"
)

// CurriculumColumns are the columns the curriculum importer understands.
var CurriculumColumns = []FieldSpec{
	{Name: "week", Type: FieldText, Required: true, Help: "Week title; rows with the same value share a week"},
	{Name: "lesson", Type: FieldText, Required: true, Help: "Lesson title; rows with the same value share a lesson within the week"},
	{Name: "title", Type: FieldText, Required: true, Help: "Content item title"},
	{Name: "type", Type: FieldEnum, EnumValues: contentTypeNames(), Help: "Content type; inferred from url when blank"},
	{Name: "url", Type: FieldURL, Help: "Link or embed URL; for ai_tool rows, the tool slug (stored lower-case)"},
	{Name: "description", Type: FieldText, Help: "Item description; body of text items"},
}

func contentTypeNames() []string {
	names := make([]string, len(ContentTypes))
	for i, ct := range ContentTypes {
		names[i] = string(ct)
	}
	return names
}

// SampleCurriculumCSV is the downloadable template: 2 weeks, 3 lessons and
// 6 content items.
const SampleCurriculumCSV = `week,lesson,title,type,url,description
Week 1: Foundations,Welcome,Kickoff recording,,https://www.youtube.com/watch?v=dQw4w9WgXcQ,Recording of the live kickoff call
Week 1: Foundations,Welcome,Program overview,,gamma.app/docs/Program-Overview-k3j2h1,Slides from the kickoff
Week 1: Foundations,Welcome,How to use this portal,text,,"Start with the lessons in order, then work through the action items."
Week 1: Foundations,Prompting basics,Prompt patterns walkthrough,,https://www.loom.com/share/a1b2c3d4e5,Short screen recording
Week 2: Automation,Building a lead list,Lead list table,,https://app.clay.com/workspaces/1/tables/2,Template table to duplicate
Week 2: Automation,Building a lead list,Reference docs,,https://docs.example.com/automation,"Further reading, including API limits"
`

// ContentDraft is one content item parsed from a CSV row.
type ContentDraft struct {
	Line        int         `json:"line"`
	Type        ContentType `json:"type"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	URL         string      `json:"url,omitempty"`
	TextBody    string      `json:"textBody,omitempty"`
	AIToolSlug  string      `json:"aiToolSlug,omitempty"`
}

// LessonDraft is a lesson with its items in file order.
type LessonDraft struct {
	Title string         `json:"title"`
	Items []ContentDraft `json:"items"`
}

// WeekDraft is a week with its lessons in first-seen order.
type WeekDraft struct {
	Title   string        `json:"title"`
	Lessons []LessonDraft `json:"lessons"`
}

// CurriculumPlan is the parsed, grouped contents of a curriculum CSV.
type CurriculumPlan struct {
	Weeks []WeekDraft `json:"weeks"`
}

// Counts returns the number of weeks, lessons and content items in the plan.
func (p CurriculumPlan) Counts() (weeks, lessons, items int) {
	weeks = len(p.Weeks)
	for _, w := range p.Weeks {
		lessons += len(w.Lessons)
		for _, l := range w.Lessons {
			items += len(l.Items)
		}
	}
	return weeks, lessons, items
}

// Total is the number of creation calls an import of the plan makes.
func (p CurriculumPlan) Total() int {
	w, l, i := p.Counts()
	return w + l + i
}

// ParseCurriculumCSV parses and groups a curriculum file. Any validation
// problem fails the whole file; no partial plan is returned.
func ParseCurriculumCSV(text string) (CurriculumPlan, error) {
	table, err := readCSVTable(text, CurriculumColumns)
	if err != nil {
		return CurriculumPlan{}, err
	}

	var (
		plan      CurriculumPlan
		weekIdx   = map[string]int{}
		lessonIdx = map[string]map[string]int{}
	)

	for _, row := range table.Rows {
		week := table.Header.Get(row.Cells, "week")
		lesson := table.Header.Get(row.Cells, "lesson")
		title := table.Header.Get(row.Cells, "title")

		for _, req := range []struct{ name, value string }{
			{"week", week}, {"lesson", lesson}, {"title", title},
		} {
			if req.value == "" {
				return CurriculumPlan{}, rowError(row.Line, req.name, "required field is empty")
			}
		}

		item, err := contentDraftFromRow(table.Header, row, title)
		if err != nil {
			return CurriculumPlan{}, err
		}

		wi, ok := weekIdx[week]
		if !ok {
			wi = len(plan.Weeks)
			weekIdx[week] = wi
			lessonIdx[week] = map[string]int{}
			plan.Weeks = append(plan.Weeks, WeekDraft{Title: week})
		}

		li, ok := lessonIdx[week][lesson]
		if !ok {
			li = len(plan.Weeks[wi].Lessons)
			lessonIdx[week][lesson] = li
			plan.Weeks[wi].Lessons = append(plan.Weeks[wi].Lessons, LessonDraft{Title: lesson})
		}

		l := &plan.Weeks[wi].Lessons[li]
		l.Items = append(l.Items, item)
	}

	if len(plan.Weeks) == 0 {
		return CurriculumPlan{}, &ValidationError{Message: "file has no data rows"}
	}
	return plan, nil
}

func contentDraftFromRow(h HeaderIndex, row csvRow, title string) (ContentDraft, error) {
	rawType := h.Get(row.Cells, "type")
	rawURL := h.Get(row.Cells, "url")
	description := h.Get(row.Cells, "description")

	item := ContentDraft{Line: row.Line, Title: title, Description: description}

	if rawType != "" {
		ct, ok := ParseContentType(rawType)
		if !ok {
			return ContentDraft{}, rowError(row.Line, "type", "invalid content type %q (allowed: %s)",
				rawType, strings.Join(contentTypeNames(), ", "))
		}
		item.Type = ct
	} else {
		item.Type = InferContentType(rawURL)
	}

	switch item.Type {
	case ContentText:
		item.TextBody = description
		if item.TextBody == "" {
			item.TextBody = title
		}
		// A text row may still carry a reference link.
		item.URL = NormalizeURL(rawURL)
	case ContentAITool:
		// The url column carries the tool slug.
		item.AIToolSlug = strings.ToLower(rawURL)
	case ContentCredentials:
		item.URL = NormalizeURL(rawURL)
	default:
		item.URL = NormalizeURL(rawURL)
	}

	return item, nil
}

// ContentItem converts the draft into a storable item under lessonID.
func (d ContentDraft) ContentItem(lessonID string, sortOrder int) ContentItem {
	item := ContentItem{
		LessonID:    lessonID,
		Type:        d.Type,
		Title:       d.Title,
		Description: d.Description,
		SortOrder:   sortOrder,
		EmbedURL:    d.URL,
		AIToolSlug:  d.AIToolSlug,
		TextBody:    d.TextBody,
	}
	if d.Type == ContentCredentials && d.URL != "" {
		item.Credentials = &Credentials{LoginURL: d.URL}
		item.EmbedURL = ""
	}
	return item
}

// String summarizes the plan for logs and CLI output.
func (p CurriculumPlan) String() string {
	w, l, i := p.Counts()
	return fmt.Sprintf("%d weeks, %d lessons, %d items", w, l, i)
}
