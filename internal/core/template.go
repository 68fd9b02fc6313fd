package core

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/recombinant/internal/ckan"
	"github.com/JonMunkholm/recombinant/internal/history"
	"github.com/JonMunkholm/recombinant/internal/schema"
	"github.com/JonMunkholm/recombinant/internal/xls"
)

// Content types of generated downloads.
const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeJSON = "application/json"
)

// Download is a generated file.
type Download struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Selection picks existing records to pre-fill a template with. Each key
// holds the primary key values of one record separated by commas.
type Selection struct {
	ResourceName string
	Keys         []string
}

// TemplateRequest asks for the upload template of one organization.
type TemplateRequest struct {
	DatasetType string
	Lang        string
	OwnerOrg    string
	Selection   *Selection // nil for a blank template
}

func (s *Service) locale(lang string) xls.Locale {
	return xls.Locale{Lang: lang, Translate: s.opts.Translate}
}

// Template builds the upload workbook of a (dataset type, organization)
// pair, optionally filled with selected records.
func (s *Service) Template(ctx context.Context, req TemplateRequest) (*Download, error) {
	if !slices.Contains(s.opts.Locales, req.Lang) {
		return nil, fmt.Errorf("language %q: %w", req.Lang, schema.ErrNotFound)
	}

	dataset, err := s.api.RecombinantShow(ctx, req.DatasetType, req.OwnerOrg)
	if err != nil {
		return nil, err
	}
	org, err := s.api.OrganizationShow(ctx, req.OwnerOrg)
	if err != nil {
		return nil, err
	}
	geno, err := s.registry.Geno(req.DatasetType)
	if err != nil {
		return nil, err
	}

	book, err := xls.BuildTemplate(geno, org.Name, s.locale(req.Lang))
	if err != nil {
		return nil, fmt.Errorf("build template: %w", err)
	}
	defer book.Close()

	if req.Selection != nil {
		if err := s.appendSelection(ctx, book, dataset, req.Selection); err != nil {
			return nil, err
		}
	}

	body, err := xls.WriteTo(book)
	if err != nil {
		return nil, fmt.Errorf("write template: %w", err)
	}

	owner := dataset.OwnerOrg
	if owner == "" {
		owner = req.OwnerOrg
	}
	s.opts.Metrics.Download("template", req.DatasetType)
	s.record(ctx, history.Entry{
		Action:       history.ActionTemplate,
		DatasetID:    dataset.ID,
		DatasetType:  req.DatasetType,
		Organization: org.Name,
	})

	return &Download{
		Filename:    fmt.Sprintf("%s_%s_%s.xlsx", owner, req.Lang, req.DatasetType),
		ContentType: ContentTypeXLSX,
		Body:        body,
	}, nil
}

func (s *Service) appendSelection(ctx context.Context, book *excelize.File, dataset *ckan.RecombinantDataset, sel *Selection) error {
	res, ok := dataset.Resource(sel.ResourceName)
	if !ok {
		return fmt.Errorf("resource %q: %w", sel.ResourceName, schema.ErrNotFound)
	}
	chromo, err := s.registry.Chromo(res.Name)
	if err != nil {
		return err
	}

	var records []map[string]any
	for _, keys := range sel.Keys {
		parts := strings.Split(keys, ",")
		filters := make(map[string]any, len(chromo.PrimaryKey))
		for i, id := range chromo.PrimaryKey {
			if i < len(parts) {
				filters[id] = parts[i]
			}
		}
		result, err := s.api.DatastoreSearch(ctx, ckan.SearchParams{ResourceID: res.ID, Filters: filters})
		if err != nil {
			return err
		}
		records = append(records, result.Records...)
	}

	if _, err := xls.AppendRecords(book, records, chromo); err != nil {
		return fmt.Errorf("append records: %w", err)
	}
	return nil
}

// DataDictionary builds the schema reference workbook of a dataset type.
func (s *Service) DataDictionary(ctx context.Context, datasetType, lang string) (*Download, error) {
	geno, err := s.registry.Geno(datasetType)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(s.opts.Locales, lang) {
		lang = s.opts.Locales[0]
	}

	book, err := xls.BuildDataDictionary(geno, s.locale(lang))
	if err != nil {
		return nil, fmt.Errorf("build data dictionary: %w", err)
	}
	defer book.Close()

	body, err := xls.WriteTo(book)
	if err != nil {
		return nil, fmt.Errorf("write data dictionary: %w", err)
	}
	s.opts.Metrics.Download("dictionary", datasetType)

	return &Download{
		Filename:    fmt.Sprintf("%s_%s_dictionary.xlsx", datasetType, lang),
		ContentType: ContentTypeXLSX,
		Body:        body,
	}, nil
}
