package web

import (
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/recombinant/internal/core"
	"github.com/JonMunkholm/recombinant/internal/logging"
)

// handleTemplate serves the upload template of one organization. A POST
// from the resource page pre-fills it with the selected records.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	req := core.TemplateRequest{
		DatasetType: chi.URLParam(r, "dataset_type"),
		Lang:        chi.URLParam(r, "lang"),
		OwnerOrg:    chi.URLParam(r, "owner_org"),
	}

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			s.respondError(w, r, &core.BadInputData{Message: "Invalid form", Err: err})
			return
		}
		if keys := r.PostForm["bulk-template"]; len(keys) > 0 {
			req.Selection = &core.Selection{
				ResourceName: r.PostForm.Get("resource_name"),
				Keys:         keys,
			}
		}
	}

	d, err := s.service.Template(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeDownload(w, r, d, true)
}

// handleDictionary serves the data dictionary workbook of a dataset type.
func (s *Server) handleDictionary(w http.ResponseWriter, r *http.Request) {
	d, err := s.service.DataDictionary(r.Context(), chi.URLParam(r, "dataset_type"), r.URL.Query().Get("lang"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeDownload(w, r, d, true)
}

// handleSchema serves the JSON schema export of a dataset type.
func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	d, err := s.service.SchemaExport(chi.URLParam(r, "dataset_type"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeDownload(w, r, d, false)
}

// writeDownload writes a generated file, as an attachment or inline.
func writeDownload(w http.ResponseWriter, r *http.Request, d *core.Download, attachment bool) {
	disposition := "inline"
	if attachment {
		disposition = "attachment"
	}
	contentType := d.ContentType
	if strings.HasPrefix(contentType, "application/json") && !strings.Contains(contentType, "charset") {
		contentType += "; charset=utf-8"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": d.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(d.Body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(d.Body); err != nil {
		logging.FromContext(r.Context()).Warn("write download", "filename", d.Filename, "error", err)
	}
}
