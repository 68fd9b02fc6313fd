package ckan

import (
	"context"
	"fmt"
)

func (c *Client) PackageShow(ctx context.Context, id string) (*Dataset, error) {
	var d Dataset
	if err := c.Call(ctx, "package_show", map[string]any{"id": id}, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// PackageSearch runs a Solr query against the package index.
func (c *Client) PackageSearch(ctx context.Context, q string, rows int) (*PackageSearchResult, error) {
	var res PackageSearchResult
	if err := c.Call(ctx, "package_search", map[string]any{"q": q, "rows": rows}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DatasetPurge removes a dataset and all its resources permanently.
func (c *Client) DatasetPurge(ctx context.Context, id string) error {
	return c.Call(ctx, "dataset_purge", map[string]any{"id": id}, nil)
}

func (c *Client) OrganizationShow(ctx context.Context, id string) (*Organization, error) {
	var o Organization
	params := map[string]any{"id": id, "include_datasets": false}
	if err := c.Call(ctx, "organization_show", params, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// OrganizationList returns the names of all organizations.
func (c *Client) OrganizationList(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.Call(ctx, "organization_list", map[string]any{}, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// OrganizationListForUser returns the organizations on which the calling
// user holds permission.
func (c *Client) OrganizationListForUser(ctx context.Context, permission string) ([]Organization, error) {
	var orgs []Organization
	if err := c.Call(ctx, "organization_list_for_user", map[string]any{"permission": permission}, &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

func (c *Client) ResourceShow(ctx context.Context, id string) (*Resource, error) {
	var r Resource
	if err := c.Call(ctx, "resource_show", map[string]any{"id": id}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) DatastoreSearch(ctx context.Context, p SearchParams) (*SearchResult, error) {
	var res SearchResult
	if err := c.Call(ctx, "datastore_search", p, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) DatastoreUpsert(ctx context.Context, p UpsertParams) error {
	if p.Method == "" {
		p.Method = MethodUpsert
	}
	return c.Call(ctx, "datastore_upsert", p, nil)
}

func (c *Client) DatastoreDelete(ctx context.Context, p DeleteParams) error {
	if p.ResourceID == "" {
		return fmt.Errorf("datastore_delete: resource id required")
	}
	return c.Call(ctx, "datastore_delete", p, nil)
}

func recombinantParams(datasetType, owner string) map[string]any {
	return map[string]any{"dataset_type": datasetType, "owner_org": owner}
}

// RecombinantShow returns the dataset of datasetType owned by owner.
func (c *Client) RecombinantShow(ctx context.Context, datasetType, owner string) (*RecombinantDataset, error) {
	var d RecombinantDataset
	if err := c.Call(ctx, "recombinant_show", recombinantParams(datasetType, owner), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// RecombinantCreate creates the dataset and its datastore tables.
func (c *Client) RecombinantCreate(ctx context.Context, datasetType, owner string) error {
	return c.Call(ctx, "recombinant_create", recombinantParams(datasetType, owner), nil)
}

// RecombinantUpdate brings an existing dataset in line with its schema.
func (c *Client) RecombinantUpdate(ctx context.Context, datasetType, owner string) error {
	return c.Call(ctx, "recombinant_update", recombinantParams(datasetType, owner), nil)
}
