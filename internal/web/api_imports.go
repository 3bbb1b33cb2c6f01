package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/bootcamp/internal/core"
	"github.com/JonMunkholm/bootcamp/internal/logging"
)

// startResponse is returned when a background import is accepted.
type startResponse struct {
	JobID       string `json:"jobId"`
	ProgressURL string `json:"progressUrl"`
	ResultURL   string `json:"resultUrl"`
}

func accepted(w http.ResponseWriter, jobID string) {
	writeJSONStatus(w, http.StatusAccepted, startResponse{
		JobID:       jobID,
		ProgressURL: "/api/imports/" + jobID + "/progress",
		ResultURL:   "/api/imports/" + jobID + "/result",
	})
}

func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.service.ImportStatus())
}

func (s *Server) handleListImporters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.service.ListImporters())
}

// handleImporterSample downloads an importer's sample CSV.
func (s *Server) handleImporterSample(w http.ResponseWriter, r *http.Request) {
	def, ok := core.GetImporter(chi.URLParam(r, "kind"))
	if !ok {
		s.fail(w, r, fmt.Errorf("importer %q: %w", chi.URLParam(r, "kind"), core.ErrNotFound))
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, def.Info.SampleFilename))
	w.Write([]byte(def.SampleCSV))
}

// importRequest reads an import from a JSON body ({"cohortId", "csv",
// "includeDuplicates"}) or from a form upload with the same field names
// and a "file" part.
func (s *Server) importRequest(w http.ResponseWriter, r *http.Request) (core.ImportRequest, error) {
	var req core.ImportRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		maxSize := s.service.Config().MaxFileSize
		if err := decodeJSONLimit(w, r, &req, maxSize+1<<20); err != nil {
			return req, err
		}
		text, err := core.ReadCSVInput(strings.NewReader(req.CSV), maxSize)
		req.CSV = text
		return req, err
	}

	text, err := s.readCSVForm(w, r)
	if err != nil {
		return req, err
	}
	req.CSV = text
	req.CohortID = formString(r, "cohortId")
	req.IncludeDuplicates = formBool(r, "includeDuplicates")
	return req, nil
}

func (s *Server) previewImport(w http.ResponseWriter, r *http.Request, kind, cohortID string) {
	req, err := s.importRequest(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if cohortID != "" {
		req.CohortID = cohortID
	}
	preview, err := s.service.PreviewImport(r.Context(), kind, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, preview)
}

func (s *Server) startImport(w http.ResponseWriter, r *http.Request, kind, cohortID string) {
	req, err := s.importRequest(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if cohortID != "" {
		req.CohortID = cohortID
	}
	jobID, err := s.service.StartImport(r.Context(), kind, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	accepted(w, jobID)
}

func (s *Server) handleImportPreview(w http.ResponseWriter, r *http.Request) {
	s.previewImport(w, r, chi.URLParam(r, "kind"), "")
}

func (s *Server) handleImportStart(w http.ResponseWriter, r *http.Request) {
	s.startImport(w, r, chi.URLParam(r, "kind"), "")
}

func (s *Server) handleCurriculumPreview(w http.ResponseWriter, r *http.Request) {
	s.previewImport(w, r, "curriculum", chi.URLParam(r, "cohortID"))
}

func (s *Server) handleCurriculumStart(w http.ResponseWriter, r *http.Request) {
	s.startImport(w, r, "curriculum", chi.URLParam(r, "cohortID"))
}

func (s *Server) handleStudentImportPreview(w http.ResponseWriter, r *http.Request) {
	s.previewImport(w, r, "students", "")
}

func (s *Server) handleStudentImportStart(w http.ResponseWriter, r *http.Request) {
	s.startImport(w, r, "students", "")
}

func (s *Server) copyOptions(w http.ResponseWriter, r *http.Request) (core.CopyOptions, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return copyOptionsFromForm(r), nil
	}
	var opts core.CopyOptions
	if err := decodeJSON(w, r, &opts); err != nil {
		return opts, err
	}
	opts.TargetCohortID = chi.URLParam(r, "cohortID")
	return opts, nil
}

func (s *Server) handleCopyPreview(w http.ResponseWriter, r *http.Request) {
	opts, err := s.copyOptions(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	preview, err := s.service.PreviewCurriculumCopy(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, preview)
}

func (s *Server) handleCopyStart(w http.ResponseWriter, r *http.Request) {
	opts, err := s.copyOptions(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	jobID, err := s.service.StartCurriculumCopy(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	accepted(w, jobID)
}

// handleImportProgress streams job progress as Server-Sent Events. The
// event id is the percentage done, so a reconnecting client that sends
// lastEventId (or the Last-Event-ID header) skips updates it has seen.
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	lastEventIDStr := r.URL.Query().Get("lastEventId")
	if lastEventIDStr == "" {
		lastEventIDStr = r.Header.Get("Last-Event-ID")
	}
	lastEventID, _ := strconv.Atoi(lastEventIDStr)

	progressCh, err := s.service.SubscribeProgress(jobID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	log := logging.WithFields(r.Context(), "import_id", jobID)

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				fmt.Fprint(w, "event: complete\ndata: {}\n\n")
				rc.Flush()
				return
			}

			percent := progress.Percent()
			if lastEventIDStr != "" && percent <= lastEventID && !progress.Phase.Done() {
				continue
			}

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", percent, data)
			if err := rc.Flush(); err != nil {
				log.Debug("progress stream closed", "error", err)
				return
			}

		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleImportProgressSnapshot(w http.ResponseWriter, r *http.Request) {
	progress, err := s.service.GetJobProgress(chi.URLParam(r, "jobID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, progress)
}

// handleImportResult returns a finished job's result. While the job runs
// it answers 202 with the current progress, unless wait=true asks it to
// block until the job ends or the request times out.
func (s *Server) handleImportResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	progress, err := s.service.GetJobProgress(jobID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !progress.Phase.Done() && r.URL.Query().Get("wait") != "true" {
		writeJSONStatus(w, http.StatusAccepted, progress)
		return
	}
	result, err := s.service.GetJobResult(r.Context(), jobID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (s *Server) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	if err := s.service.CancelJob(chi.URLParam(r, "jobID")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"status": "cancelled"})
}
