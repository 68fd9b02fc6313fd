package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/JonMunkholm/recombinant/internal/archive"
	"github.com/JonMunkholm/recombinant/internal/ckan"
	"github.com/JonMunkholm/recombinant/internal/history"
	"github.com/JonMunkholm/recombinant/internal/logging"
	"github.com/JonMunkholm/recombinant/internal/metrics"
	"github.com/JonMunkholm/recombinant/internal/schema"
	"github.com/JonMunkholm/recombinant/internal/xls"
)

// UploadRequest is one submitted workbook.
type UploadRequest struct {
	DatasetID string
	FileName  string
	File      io.Reader
	DryRun    bool // validate only
}

// SheetResult describes one worksheet that was accepted.
type SheetResult struct {
	Sheet        string
	ResourceName string
	ResourceID   string
	Method       string
	Records      int
}

// UploadResult is the outcome of an accepted upload.
type UploadResult struct {
	ID           uuid.UUID
	DatasetID    string
	DatasetType  string
	Organization string
	Sheets       []SheetResult
	Records      int
	DryRun       bool
}

// SheetNames returns the names of the accepted worksheets.
func (r *UploadResult) SheetNames() []string {
	names := make([]string, len(r.Sheets))
	for i, s := range r.Sheets {
		names[i] = s.Sheet
	}
	return names
}

// SheetSource is a forward-only sequence of decoded worksheets.
// *xls.SheetReader satisfies it.
type SheetSource interface {
	Next() bool
	Sheet() xls.Sheet
	Err() error
}

// batch is one normalized worksheet waiting to be written.
type batch struct {
	sheet   string
	chromo  *schema.Chromo
	resID   string
	method  string
	records []Record
}

func (b batch) rows() []map[string]any {
	rows := make([]map[string]any, len(b.records))
	for i, r := range b.records {
		rows[i] = r.Values
	}
	return rows
}

// Upload reads a workbook and writes its records to the dataset's
// datastore tables. Rejections are *BadInputData; failures of the action
// API other than validation errors are returned as they are.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	dataset, err := s.api.PackageShow(ctx, req.DatasetID)
	if err != nil {
		return nil, err
	}

	entry := history.Entry{
		Action:       history.ActionUpload,
		DatasetID:    dataset.ID,
		DatasetType:  dataset.Type,
		Organization: ownerName(dataset),
	}
	if req.DryRun {
		entry.Action = history.ActionValidate
	}

	result, data, err := s.upload(ctx, dataset, req)
	if err != nil {
		var bad *BadInputData
		var de *xls.DecodeError
		switch {
		case errors.As(err, &de):
			entry.ArchiveKey = s.archiveRejected(ctx, dataset, req.FileName, data, de)
			s.opts.Metrics.Upload(dataset.Type, metrics.OutcomeRejected, req.DryRun)
		case errors.As(err, &bad):
			s.opts.Metrics.Upload(dataset.Type, metrics.OutcomeRejected, req.DryRun)
		default:
			s.opts.Metrics.Upload(dataset.Type, metrics.OutcomeError, req.DryRun)
		}
		entry.Error = err.Error()
		s.record(ctx, entry)
		return nil, err
	}

	s.opts.Metrics.Upload(dataset.Type, metrics.OutcomeAccepted, req.DryRun)
	if !req.DryRun {
		for _, sh := range result.Sheets {
			s.opts.Metrics.RecordsSubmitted(sh.ResourceName, sh.Records)
		}
	}
	entry.ID = result.ID
	entry.Sheets = result.SheetNames()
	entry.Records = result.Records
	s.record(ctx, entry)

	logging.FromContext(ctx).Info("upload accepted",
		"dataset", dataset.ID,
		"sheets", len(result.Sheets),
		"records", result.Records,
		"dry_run", req.DryRun,
	)
	return result, nil
}

func (s *Service) upload(ctx context.Context, dataset *ckan.Dataset, req UploadRequest) (*UploadResult, []byte, error) {
	if req.File == nil {
		return nil, nil, badInput("You must provide a valid file")
	}
	data, err := io.ReadAll(req.File)
	if err != nil {
		return nil, nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, nil, badInput("You must provide a valid file")
	}

	r, err := xls.Open(bytes.NewReader(data))
	if err != nil {
		return nil, data, s.decodeFailure(err)
	}
	defer r.Close()

	result, err := s.Reconcile(ctx, dataset, r, req.DryRun)
	return result, data, err
}

// Reconcile matches each worksheet of src against the dataset, normalizes
// its rows and writes them. Every worksheet is checked before anything is
// written. When more than one worksheet holds records, each batch is first
// submitted as a dry run so that a rejection in a later worksheet leaves
// the earlier tables untouched.
func (s *Service) Reconcile(ctx context.Context, dataset *ckan.Dataset, src SheetSource, dryRun bool) (*UploadResult, error) {
	owner := ownerName(dataset)
	resourceIDs := dataset.ResourceIDs()

	var batches []batch
	total := 0
	for src.Next() {
		b, err := s.prepare(src.Sheet(), dataset, owner, resourceIDs)
		if err != nil {
			return nil, err
		}
		total += len(b.records)
		if len(b.records) > 0 {
			batches = append(batches, b)
		}
	}
	if err := src.Err(); err != nil {
		return nil, s.decodeFailure(err)
	}
	if total == 0 {
		return nil, badInput("The template uploaded is empty")
	}

	if len(batches) > 1 && !dryRun {
		for _, b := range batches {
			if err := s.submit(ctx, b, true); err != nil {
				return nil, err
			}
		}
	}
	for _, b := range batches {
		if err := s.submit(ctx, b, dryRun); err != nil {
			return nil, err
		}
	}

	result := &UploadResult{
		ID:           uuid.New(),
		DatasetID:    dataset.ID,
		DatasetType:  dataset.Type,
		Organization: owner,
		Records:      total,
		DryRun:       dryRun,
	}
	for _, b := range batches {
		result.Sheets = append(result.Sheets, SheetResult{
			Sheet:        b.sheet,
			ResourceName: b.chromo.ResourceName,
			ResourceID:   b.resID,
			Method:       b.method,
			Records:      len(b.records),
		})
	}
	return result, nil
}

// prepare checks one worksheet against the dataset and normalizes its rows.
func (s *Service) prepare(sheet xls.Sheet, dataset *ckan.Dataset, owner string, resourceIDs map[string]string) (batch, error) {
	chromo, err := s.registry.ChromoBySheet(sheet.Name)
	resID, ok := "", false
	if err == nil {
		resID, ok = resourceIDs[chromo.ResourceName]
	}
	if !ok {
		return batch{}, badInput(
			`Invalid file for this data type. Sheet must be labeled "%s", but you supplied a sheet labeled "%s"`,
			strings.Join(s.expectedSheets(dataset), `"/"`), sheet.Name)
	}

	if sheet.Organization != owner {
		return batch{}, badInput(
			"Invalid sheet for this organization. Sheet must be labeled for %s, but you supplied a sheet for %s",
			owner, sheet.Organization)
	}

	if !slices.Equal(sheet.Columns, chromo.ImportColumns()) {
		return batch{}, badInput(
			"This template is out of date. Please try copying your data into the latest version of the template and uploading again. If this problem continues, send your Excel file to %s so we may investigate.",
			s.opts.ContactEmail)
	}

	records, err := Normalize(sheet.Name, sheet.Rows, chromo.ImportFields(), chromo.PrimaryKey, chromo.ChoicePolicies(), sheet.Date1904)
	if err != nil {
		return batch{}, &BadInputData{Message: err.Error(), Err: err}
	}

	method := ckan.MethodInsert
	if len(chromo.PrimaryKey) > 0 {
		method = ckan.MethodUpsert
	}
	return batch{sheet: sheet.Name, chromo: chromo, resID: resID, method: method, records: records}, nil
}

func (s *Service) submit(ctx context.Context, b batch, dryRun bool) error {
	err := s.api.DatastoreUpsert(ctx, ckan.UpsertParams{
		ResourceID: b.resID,
		Method:     b.method,
		Records:    b.rows(),
		DryRun:     dryRun,
	})
	if err != nil {
		return translateUpsertError(b.sheet, b.records, err)
	}
	return nil
}

// expectedSheets lists the worksheet names the dataset accepts, sorted.
func (s *Service) expectedSheets(dataset *ckan.Dataset) []string {
	names := make([]string, 0, len(dataset.Resources))
	for _, r := range dataset.Resources {
		if c, err := s.registry.Chromo(r.Name); err == nil {
			names = append(names, c.SheetName())
		} else {
			names = append(names, r.Name)
		}
	}
	sort.Strings(names)
	return names
}

// decodeFailure hides workbook decoding errors behind a generic message
// unless debug mode is on.
func (s *Service) decodeFailure(err error) error {
	if s.opts.Debug {
		return err
	}
	return &BadInputData{
		Message: fmt.Sprintf("The server encountered a problem processing the file uploaded. Please try copying your data into the latest version of the template and uploading again. If this problem continues, send your Excel file to %s so we may investigate.", s.opts.ContactEmail),
		Err:     err,
	}
}

// archiveRejected keeps a copy of an unreadable workbook and returns its key.
func (s *Service) archiveRejected(ctx context.Context, dataset *ckan.Dataset, fileName string, data []byte, de *xls.DecodeError) string {
	if s.opts.Archive == nil || len(data) == 0 {
		return ""
	}
	logger := logging.FromContext(ctx)

	key := archive.RejectedKey(dataset.ID)
	_, err := s.opts.Archive.Put(ctx, key, bytes.NewReader(data), archive.PutOptions{
		ContentType: archive.ContentTypeXLSX,
		Metadata: map[string]string{
			"dataset":   dataset.ID,
			"file-name": fileName,
			"sheet":     de.Sheet,
		},
	})
	if err != nil {
		logger.Warn("rejected workbook not archived", "dataset", dataset.ID, "error", err)
		return ""
	}
	logger.Info("rejected workbook archived", "dataset", dataset.ID, "key", key, "cause", de.Err)
	return key
}
