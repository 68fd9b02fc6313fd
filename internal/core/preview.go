package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/recombinant/internal/ckan"
	"github.com/JonMunkholm/recombinant/internal/schema"
)

// PreviewLimit is the number of existing records shown on the resource page.
var PreviewLimit = 100

// ErrNoOrganizations means the user cannot read any organization.
var ErrNoOrganizations = errors.New("no organizations found")

// Preview is the resource page of one organization's table.
type Preview struct {
	Chromo       *schema.Chromo
	Dataset      *ckan.RecombinantDataset
	Resource     ckan.RecombinantResource
	Organization *ckan.Organization
	Records      []map[string]any
	Total        int
	Errors       []string // upload errors to show above the table
}

// Preview loads the resource page, creating the organization's dataset on
// first visit.
func (s *Service) Preview(ctx context.Context, resourceName, owner string) (*Preview, error) {
	chromo, err := s.registry.Chromo(resourceName)
	if err != nil {
		return nil, err
	}

	dataset, err := s.api.RecombinantShow(ctx, chromo.DatasetType, owner)
	if ckan.IsNotFound(err) {
		if err := s.api.RecombinantCreate(ctx, chromo.DatasetType, owner); err != nil {
			return nil, fmt.Errorf("create dataset: %w", err)
		}
		dataset, err = s.api.RecombinantShow(ctx, chromo.DatasetType, owner)
	}
	if err != nil {
		return nil, err
	}

	org, err := s.api.OrganizationShow(ctx, owner)
	if err != nil {
		return nil, err
	}

	res, ok := dataset.Resource(resourceName)
	if !ok {
		return nil, fmt.Errorf("resource %q: %w", resourceName, schema.ErrNotFound)
	}

	p := &Preview{Chromo: chromo, Dataset: dataset, Resource: res, Organization: org}

	found, err := s.api.DatastoreSearch(ctx, ckan.SearchParams{ResourceID: res.ID, Limit: PreviewLimit})
	switch {
	case ckan.IsNotFound(err):
		// table not created yet
	case err != nil:
		return nil, err
	default:
		p.Records = found.Records
		p.Total = found.Total
	}
	return p, nil
}

// PreviewWithErrors shows the page of a dataset's first resource after a
// rejected upload.
func (s *Service) PreviewWithErrors(ctx context.Context, datasetID string, errs ...string) (*Preview, error) {
	pkg, err := s.api.PackageShow(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	if len(pkg.Resources) == 0 {
		return nil, fmt.Errorf("dataset %q has no resources: %w", datasetID, schema.ErrNotFound)
	}
	org, err := s.api.OrganizationShow(ctx, pkg.OwnerOrg)
	if err != nil {
		return nil, err
	}

	p, err := s.Preview(ctx, pkg.Resources[0].Name, org.Name)
	if err != nil {
		return nil, err
	}
	p.Errors = errs
	return p, nil
}

// FirstOrganization returns the first organization the user can read, for
// redirecting from a resource name to its page.
func (s *Service) FirstOrganization(ctx context.Context, resourceName string) (string, error) {
	orgs, err := s.api.OrganizationListForUser(ctx, "read")
	if err != nil {
		return "", err
	}
	if len(orgs) == 0 {
		return "", ErrNoOrganizations
	}
	if _, err := s.registry.Chromo(resourceName); err != nil {
		return "", err
	}
	return orgs[0].Name, nil
}
