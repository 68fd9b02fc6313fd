package ckan

// Organization is a CKAN organization.
type Organization struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Title string `json:"title"`
}

// Resource is a CKAN resource.
type Resource struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	PackageID       string `json:"package_id,omitempty"`
	DatastoreActive bool   `json:"datastore_active,omitempty"`
}

// Dataset is a CKAN package.
type Dataset struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Type         string        `json:"type"`
	OwnerOrg     string        `json:"owner_org"`
	Organization *Organization `json:"organization,omitempty"`
	Resources    []Resource    `json:"resources"`
}

// ResourceIDs maps resource names to ids.
func (d *Dataset) ResourceIDs() map[string]string {
	ids := make(map[string]string, len(d.Resources))
	for _, r := range d.Resources {
		ids[r.Name] = r.ID
	}
	return ids
}

// RecombinantResource is one resource of a recombinant dataset as reported
// by recombinant_show.
type RecombinantResource struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	DatastoreRows    int    `json:"datastore_rows"`
	DatastoreCorrect bool   `json:"datastore_correct"`
	MetadataCorrect  bool   `json:"metadata_correct"`
	Error            string `json:"error,omitempty"`
}

// RecombinantDataset is the dataset of one (dataset type, organization) pair.
type RecombinantDataset struct {
	ID              string                `json:"id"`
	Name            string                `json:"name"`
	DatasetType     string                `json:"dataset_type"`
	OwnerOrg        string                `json:"owner_org"`
	MetadataCorrect bool                  `json:"metadata_correct"`
	AllCorrect      bool                  `json:"all_correct"`
	Error           string                `json:"error,omitempty"`
	Resources       []RecombinantResource `json:"resources"`
}

// Resource returns the resource with the given name.
func (d *RecombinantDataset) Resource(name string) (RecombinantResource, bool) {
	for _, r := range d.Resources {
		if r.Name == name {
			return r, true
		}
	}
	return RecombinantResource{}, false
}

// DatastoreCorrect reports whether every resource's table matches its schema.
func (d *RecombinantDataset) DatastoreCorrect() bool {
	for _, r := range d.Resources {
		if !r.DatastoreCorrect {
			return false
		}
	}
	return true
}

// SearchParams are the arguments of datastore_search.
type SearchParams struct {
	ResourceID string         `json:"resource_id"`
	Filters    map[string]any `json:"filters,omitempty"`
	Limit      int            `json:"limit,omitempty"`
	Offset     int            `json:"offset,omitempty"`
}

// DatastoreField describes one column of a datastore table.
type DatastoreField struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// SearchResult is the result of datastore_search.
type SearchResult struct {
	Records []map[string]any `json:"records"`
	Fields  []DatastoreField `json:"fields"`
	Total   int              `json:"total"`
}

// Write methods of datastore_upsert.
const (
	MethodUpsert = "upsert"
	MethodInsert = "insert"
	MethodUpdate = "update"
)

// UpsertParams are the arguments of datastore_upsert.
type UpsertParams struct {
	ResourceID string           `json:"resource_id"`
	Method     string           `json:"method"`
	Records    []map[string]any `json:"records"`
	DryRun     bool             `json:"dry_run,omitempty"`
}

// DeleteParams are the arguments of datastore_delete. With no filters the
// whole table is removed.
type DeleteParams struct {
	ResourceID string         `json:"resource_id"`
	Filters    map[string]any `json:"filters,omitempty"`
	Force      bool           `json:"force,omitempty"`
}

// PackageSearchResult is the result of package_search.
type PackageSearchResult struct {
	Count   int       `json:"count"`
	Results []Dataset `json:"results"`
}
