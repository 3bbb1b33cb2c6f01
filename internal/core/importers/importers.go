// Package importers registers the portal's CSV importers with the core
// registry. Import it for its side effects.
package importers

import (
	"context"

	"github.com/JonMunkholm/bootcamp/internal/core"
)

func init() {
	registerCurriculum()
	registerStudents()
}

func registerCurriculum() {
	core.Register(core.ImporterDefinition{
		Info: core.ImporterInfo{
			Key:            "curriculum",
			Label:          "Curriculum",
			Description:    "Weeks, lessons and content items for one cohort. Rows sharing a week and lesson title are grouped; new weeks are added after existing ones.",
			SampleFilename: "curriculum-sample.csv",
			NeedsCohort:    true,
		},
		FieldSpecs: core.CurriculumColumns,
		SampleCSV:  core.SampleCurriculumCSV,
		Preview: func(ctx context.Context, s *core.Service, req core.ImportRequest) (any, error) {
			return s.PreviewCurriculumImport(ctx, req.CohortID, req.CSV)
		},
		Start: func(ctx context.Context, s *core.Service, req core.ImportRequest) (string, error) {
			return s.StartCurriculumImport(ctx, req.CohortID, req.CSV)
		},
	})
}

func registerStudents() {
	core.Register(core.ImporterDefinition{
		Info: core.ImporterInfo{
			Key:            "students",
			Label:          "Students",
			Description:    "Student roster. Emails already on file are skipped unless duplicates are included; a cohort, when chosen, enrolls every created student.",
			SampleFilename: "students-sample.csv",
		},
		FieldSpecs: core.StudentColumns,
		SampleCSV:  core.SampleStudentCSV,
		Preview: func(ctx context.Context, s *core.Service, req core.ImportRequest) (any, error) {
			return s.PreviewStudentImport(ctx, req.CSV)
		},
		Start: func(ctx context.Context, s *core.Service, req core.ImportRequest) (string, error) {
			return s.StartStudentImport(ctx, req.CSV, core.StudentImportOptions{
				CohortID:          req.CohortID,
				IncludeDuplicates: req.IncludeDuplicates,
			})
		},
	})
}
