package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/recombinant/internal/core"
	"github.com/JonMunkholm/recombinant/internal/logging"
	"github.com/JonMunkholm/recombinant/internal/web/templates"
)

// multipartMemory is how much of a multipart form is kept in memory
// before parts spill to temporary files.
const multipartMemory = 32 << 20

// uploadResponse is the JSON form of an accepted upload.
type uploadResponse struct {
	ID      string          `json:"id"`
	DryRun  bool            `json:"dry_run"`
	Records int             `json:"records"`
	Sheets  []sheetResponse `json:"sheets"`
}

type sheetResponse struct {
	Sheet      string `json:"sheet"`
	Resource   string `json:"resource_name"`
	ResourceID string `json:"resource_id"`
	Method     string `json:"method"`
	Records    int    `json:"records"`
}

// handleUpload accepts a filled template. The validate button runs the
// whole upload as a dry run. A rejected workbook brings the resource page
// back with the reason above the form.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	datasetID := chi.URLParam(r, "id")

	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.respondError(w, r, formError(err, maxSize))
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := core.UploadRequest{
		DatasetID: datasetID,
		DryRun:    r.FormValue("validate") != "",
	}
	f, header, err := r.FormFile("xls_update")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		// Upload rejects the missing file with the form message.
	case err != nil:
		s.respondError(w, r, err)
		return
	default:
		defer f.Close()
		req.File = f
		req.FileName = header.Filename
	}

	res, err := s.service.Upload(ctx, req)
	if err != nil {
		var bad *core.BadInputData
		if !errors.As(err, &bad) || wantsJSON(r) || isHTMX(r) {
			s.respondError(w, r, err)
			return
		}
		p, perr := s.service.PreviewWithErrors(ctx, datasetID, bad.Message)
		if perr != nil {
			logging.FromContext(ctx).Warn("reload resource page", "dataset", datasetID, "error", perr)
			s.respondError(w, r, err)
			return
		}
		s.renderPreview(w, r, p, http.StatusBadRequest)
		return
	}

	if wantsJSON(r) {
		resp := uploadResponse{
			ID:      res.ID.String(),
			DryRun:  res.DryRun,
			Records: res.Records,
			Sheets:  make([]sheetResponse, len(res.Sheets)),
		}
		for i, sh := range res.Sheets {
			resp.Sheets[i] = sheetResponse{
				Sheet:      sh.Sheet,
				Resource:   sh.ResourceName,
				ResourceID: sh.ResourceID,
				Method:     sh.Method,
				Records:    sh.Records,
			}
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}
	s.renderHTML(w, r, http.StatusOK, "Upload", templates.UploadDone(res))
}

// formError classifies a multipart parsing failure. The size limit stays
// visible when the multipart reader hides the *http.MaxBytesError behind
// its own error.
func formError(err error, limit int64) error {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return err
	case strings.Contains(err.Error(), "request body too large"):
		return &http.MaxBytesError{Limit: limit}
	default:
		return &core.BadInputData{Message: "You must provide a valid file", Err: err}
	}
}

// deleteResponse is the JSON form of a bulk-delete step.
type deleteResponse struct {
	State    core.DeleteState  `json:"state"`
	Errors   []string          `json:"errors,omitempty"`
	Pending  string            `json:"pending,omitempty"`
	Accepted []string          `json:"accepted,omitempty"`
	Deleted  int               `json:"deleted"`
	Failed   map[string]string `json:"failed,omitempty"`
}

// handleDelete drives the bulk-delete forms: the first post resolves the
// pasted keys and asks for confirmation, confirm deletes, cancel goes
// back to the input form.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "id")
	resourceID := chi.URLParam(r, "resource_id")

	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, &core.BadInputData{Message: "Invalid form", Err: err})
		return
	}

	action := core.DeletePreview
	switch {
	case r.PostForm.Get("confirm") != "":
		action = core.DeleteConfirm
	case r.PostForm.Get("cancel") != "":
		action = core.DeleteCancel
	}

	out, err := s.service.BulkDelete(r.Context(), core.DeleteRequest{
		DatasetID:  datasetID,
		ResourceID: resourceID,
		Text:       r.PostForm.Get("bulk-delete"),
		Action:     action,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if wantsJSON(r) {
		resp := deleteResponse{
			State:    out.State,
			Errors:   out.Errors,
			Pending:  out.Pending,
			Accepted: out.Accepted,
			Deleted:  out.Deleted,
		}
		if len(out.Failed) > 0 {
			resp.Failed = make(map[string]string, len(out.Failed))
			for _, f := range out.Failed {
				resp.Failed[f.Line] = f.Message
			}
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}
	s.renderHTML(w, r, http.StatusOK, "Delete records", templates.DeleteOutcome(datasetID, resourceID, out))
}
