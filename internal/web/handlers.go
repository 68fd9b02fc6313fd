package web

import (
	"net/http"
	"net/url"
	"slices"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/recombinant/internal/core"
	"github.com/JonMunkholm/recombinant/internal/logging"
	"github.com/JonMunkholm/recombinant/internal/web/templates"
)

// previewResponse is the JSON form of the resource page.
type previewResponse struct {
	DatasetID    string           `json:"dataset_id"`
	DatasetType  string           `json:"dataset_type"`
	ResourceName string           `json:"resource_name"`
	ResourceID   string           `json:"resource_id"`
	Organization string           `json:"organization"`
	Total        int              `json:"total"`
	Records      []map[string]any `json:"records"`
	Errors       []string         `json:"errors,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleTypeRedirect sends /recombinant/{resource_name} to the page of
// the first organization the user can read.
func (s *Server) handleTypeRedirect(w http.ResponseWriter, r *http.Request) {
	resourceName := chi.URLParam(r, "resource_name")

	owner, err := s.service.FirstOrganization(r.Context(), resourceName)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	target := "/recombinant/" + url.PathEscape(resourceName) + "/" + url.PathEscape(owner)
	http.Redirect(w, r, target, http.StatusFound)
}

// handlePreview renders the resource page of one organization, creating
// its dataset on first visit.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	p, err := s.service.Preview(r.Context(),
		chi.URLParam(r, "resource_name"), chi.URLParam(r, "owner_org"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.renderPreview(w, r, p, http.StatusOK)
}

func (s *Server) renderPreview(w http.ResponseWriter, r *http.Request, p *core.Preview, status int) {
	if wantsJSON(r) {
		writeJSON(w, status, previewResponse{
			DatasetID:    p.Dataset.ID,
			DatasetType:  p.Chromo.DatasetType,
			ResourceName: p.Chromo.ResourceName,
			ResourceID:   p.Resource.ID,
			Organization: p.Organization.Name,
			Total:        p.Total,
			Records:      p.Records,
			Errors:       p.Errors,
		})
		return
	}

	lc := s.requestLocale(r)
	body := templates.Preview(p, lc)
	s.renderHTML(w, r, status, p.Chromo.Title.In(lc.Lang, lc.Translate), body)
}

// requestLocale picks the page language from ?lang=, falling back to the
// default locale.
func (s *Server) requestLocale(r *http.Request) templates.Locale {
	locales := s.service.Locales()
	lang := r.URL.Query().Get("lang")
	if !slices.Contains(locales, lang) {
		lang = locales[0]
	}
	return templates.Locale{Lang: lang, Translate: s.service.Translator()}
}

// renderHTML writes body as an HTMX fragment, or wrapped in the page
// layout for regular navigation.
func (s *Server) renderHTML(w http.ResponseWriter, r *http.Request, status int, title string, body templ.Component) {
	c := body
	if !isHTMX(r) {
		c = templates.Page(title, body)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render error", "path", r.URL.Path, "error", err)
	}
}
