package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/recombinant/internal/archive"
	"github.com/JonMunkholm/recombinant/internal/ckan"
	"github.com/JonMunkholm/recombinant/internal/history"
	"github.com/JonMunkholm/recombinant/internal/logging"
	"github.com/JonMunkholm/recombinant/internal/metrics"
	"github.com/JonMunkholm/recombinant/internal/schema"
)

// DefaultContactEmail receives workbooks that cannot be processed.
const DefaultContactEmail = "open-ouvert@tbs-sct.gc.ca"

// ActionAPI is the part of the CKAN action interface used by the service.
// *ckan.Client satisfies it.
type ActionAPI interface {
	PackageShow(ctx context.Context, id string) (*ckan.Dataset, error)
	OrganizationShow(ctx context.Context, id string) (*ckan.Organization, error)
	OrganizationListForUser(ctx context.Context, permission string) ([]ckan.Organization, error)
	ResourceShow(ctx context.Context, id string) (*ckan.Resource, error)
	RecombinantShow(ctx context.Context, datasetType, owner string) (*ckan.RecombinantDataset, error)
	RecombinantCreate(ctx context.Context, datasetType, owner string) error
	DatastoreSearch(ctx context.Context, p ckan.SearchParams) (*ckan.SearchResult, error)
	DatastoreUpsert(ctx context.Context, p ckan.UpsertParams) error
	DatastoreDelete(ctx context.Context, p ckan.DeleteParams) error
}

// Options configures a Service. Zero values select defaults.
type Options struct {
	ContactEmail string
	Debug        bool     // return raw decode failures instead of the generic message
	Locales      []string // offered languages, first is the default
	Translate    schema.Translator

	History history.Store
	Archive archive.Store // nil disables archiving of rejected workbooks
	Metrics *metrics.Metrics
}

// Service implements uploads, bulk deletes and generated downloads over
// the action API. It holds no mutable state.
type Service struct {
	api      ActionAPI
	registry *schema.Registry
	opts     Options
}

// NewService creates a Service.
func NewService(api ActionAPI, registry *schema.Registry, opts Options) *Service {
	if opts.ContactEmail == "" {
		opts.ContactEmail = DefaultContactEmail
	}
	if len(opts.Locales) == 0 {
		opts.Locales = []string{"en", "fr"}
	}
	if opts.Translate == nil {
		opts.Translate = schema.Identity
	}
	if opts.History == nil {
		opts.History = history.Nop{}
	}
	return &Service{api: api, registry: registry, opts: opts}
}

// Registry returns the schema registry.
func (s *Service) Registry() *schema.Registry {
	return s.registry
}

// Locales returns the offered languages.
func (s *Service) Locales() []string {
	return s.opts.Locales
}

// Translator returns the translation function used for plain texts.
func (s *Service) Translator() schema.Translator {
	return s.opts.Translate
}

// record stores a history entry. Failures are logged and otherwise ignored
// so that history never fails the operation it describes.
func (s *Service) record(ctx context.Context, e history.Entry) {
	req := RequesterFromContext(ctx)
	e.IPAddress = req.IPAddress
	e.UserAgent = req.UserAgent
	e.CreatedAt = time.Now().UTC()

	if err := s.opts.History.Record(ctx, e); err != nil {
		logging.FromContext(ctx).Warn("history entry not recorded",
			"action", e.Action,
			"dataset", e.DatasetID,
			"error", err,
		)
	}
}

// ownerName is the organization name a dataset's worksheets are labelled with.
func ownerName(d *ckan.Dataset) string {
	if d.Organization != nil && d.Organization.Name != "" {
		return d.Organization.Name
	}
	return d.OwnerOrg
}
