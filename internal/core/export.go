package core

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
)

// CurriculumCSV renders a curriculum tree in the importer's format, one row
// per content item, with explicit types. Importing the output into an empty
// cohort rebuilds the same weeks, lessons and items. Weeks and lessons
// without items have no row, and action items are not part of the format.
func CurriculumCSV(tree CurriculumTree) string {
	var b strings.Builder

	header := make([]string, len(CurriculumColumns))
	for i, c := range CurriculumColumns {
		header[i] = c.Name
	}
	b.WriteString(JoinCSVLine(header))
	b.WriteByte('\n')

	for _, w := range tree.Weeks {
		for _, l := range w.Lessons {
			for _, it := range l.Items {
				b.WriteString(JoinCSVLine([]string{
					oneLine(w.Title),
					oneLine(l.Title),
					oneLine(it.Title),
					string(it.Type),
					exportURL(it),
					oneLine(exportDescription(it)),
				}))
				b.WriteByte('\n')
			}
		}
	}
	return b.String()
}

func exportURL(it ContentItem) string {
	switch it.Type {
	case ContentAITool:
		return it.AIToolSlug
	case ContentCredentials:
		if it.Credentials != nil {
			return it.Credentials.LoginURL
		}
	}
	return it.EmbedURL
}

func exportDescription(it ContentItem) string {
	if it.Type == ContentText && it.Description == "" && it.TextBody != it.Title {
		return it.TextBody
	}
	return it.Description
}

// oneLine folds line breaks; the CSV format is one record per line.
func oneLine(s string) string {
	return strings.Join(strings.Fields(strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)), " ")
}

// CurriculumPDF renders a printable outline of a cohort's curriculum.
func CurriculumPDF(cohort Cohort, tree CurriculumTree) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(cohort.Name+" curriculum", true)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 10, tr(cohort.Name), "", "", false)
	if cohort.StartDate != nil {
		pdf.SetFont("Helvetica", "", 10)
		dates := cohort.StartDate.Format("Jan 2, 2006")
		if cohort.EndDate != nil {
			dates += " - " + cohort.EndDate.Format("Jan 2, 2006")
		}
		pdf.Cell(0, 6, tr(dates))
		pdf.Ln(8)
	}
	pdf.Ln(4)

	if len(tree.Weeks) == 0 {
		pdf.SetFont("Helvetica", "I", 12)
		pdf.Cell(0, 8, "No curriculum yet.")
	}

	for _, w := range tree.Weeks {
		pdf.SetFont("Helvetica", "B", 14)
		pdf.MultiCell(0, 8, tr(w.Title), "", "", false)
		pdf.Ln(1)

		for _, l := range w.Lessons {
			pdf.SetFont("Helvetica", "B", 11)
			pdf.MultiCell(0, 7, tr("    "+l.Title), "", "", false)

			pdf.SetFont("Helvetica", "", 10)
			if len(l.Items) == 0 {
				pdf.Cell(0, 6, "        - (no content)")
				pdf.Ln(6)
			}
			for _, it := range l.Items {
				line := fmt.Sprintf("        - [%s] %s", contentTypeLabel(it.Type), it.Title)
				pdf.MultiCell(0, 6, tr(line), "", "", false)
			}
		}

		if len(w.ActionItems) > 0 {
			pdf.SetFont("Helvetica", "I", 10)
			pdf.Cell(0, 6, "    Action items")
			pdf.Ln(6)
			for _, a := range w.ActionItems {
				line := "        [ ] " + a.Title
				if a.DueLabel != "" {
					line += " (" + a.DueLabel + ")"
				}
				pdf.MultiCell(0, 6, tr(line), "", "", false)
			}
		}
		pdf.Ln(4)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func contentTypeLabel(t ContentType) string {
	s := strings.ReplaceAll(string(t), "_", " ")
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ExportCurriculumCSV loads a cohort and renders it as CSV.
func (s *Service) ExportCurriculumCSV(ctx context.Context, cohortID string) (Cohort, string, error) {
	cohort, err := s.store.GetCohort(ctx, cohortID)
	if err != nil {
		return Cohort{}, "", err
	}
	tree, err := LoadCurriculum(ctx, s.store, cohortID)
	if err != nil {
		return Cohort{}, "", err
	}
	return cohort, CurriculumCSV(tree), nil
}

// ExportCurriculumPDF loads a cohort and renders its outline as PDF.
func (s *Service) ExportCurriculumPDF(ctx context.Context, cohortID string) (Cohort, []byte, error) {
	cohort, err := s.store.GetCohort(ctx, cohortID)
	if err != nil {
		return Cohort{}, nil, err
	}
	tree, err := LoadCurriculum(ctx, s.store, cohortID)
	if err != nil {
		return Cohort{}, nil, err
	}
	pdf, err := CurriculumPDF(cohort, tree)
	return cohort, pdf, err
}
