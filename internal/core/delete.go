package core

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/JonMunkholm/recombinant/internal/ckan"
	"github.com/JonMunkholm/recombinant/internal/history"
	"github.com/JonMunkholm/recombinant/internal/logging"
)

// DeleteAction is the button pressed on the bulk-delete forms.
type DeleteAction string

const (
	DeletePreview DeleteAction = "preview" // resolve lines and ask for confirmation
	DeleteConfirm DeleteAction = "confirm"
	DeleteCancel  DeleteAction = "cancel"
)

// DeleteState is where the form flow goes next.
type DeleteState string

const (
	StateEditing    DeleteState = "editing"    // show the input form again
	StateConfirming DeleteState = "confirming" // show the confirmation form
	StateDeleted    DeleteState = "deleted"
)

// DeleteRequest is one submission of the bulk-delete form.
type DeleteRequest struct {
	DatasetID  string
	ResourceID string
	Text       string // pasted primary keys, one record per line
	Action     DeleteAction
}

// DeleteFailure is an accepted line whose record could not be deleted.
type DeleteFailure struct {
	Line    string
	Message string
}

// DeleteOutcome is the result of one bulk-delete step.
type DeleteOutcome struct {
	State    DeleteState
	Errors   []string
	Pending  string   // text for the input or confirmation form
	Accepted []string // lines that resolved to exactly one record
	Deleted  int
	Failed   []DeleteFailure

	Dataset      *ckan.RecombinantDataset
	Resource     *ckan.Resource
	Organization *ckan.Organization
}

// Message is the flash message shown after a confirmed delete.
func (o *DeleteOutcome) Message() string {
	return fmt.Sprintf("%d deleted.", o.Deleted)
}

// BulkDelete resolves pasted primary keys to records and, on confirm,
// deletes them. Every line must resolve to exactly one record before
// anything is deleted. The first line that does not resolve sends the
// form back with that line first, followed by the lines not yet looked
// at and then the lines already accepted.
func (s *Service) BulkDelete(ctx context.Context, req DeleteRequest) (*DeleteOutcome, error) {
	pkg, err := s.api.PackageShow(ctx, req.DatasetID)
	if err != nil {
		return nil, err
	}
	res, err := s.api.ResourceShow(ctx, req.ResourceID)
	if err != nil {
		return nil, err
	}
	org, err := s.api.OrganizationShow(ctx, pkg.OwnerOrg)
	if err != nil {
		return nil, err
	}
	dataset, err := s.api.RecombinantShow(ctx, pkg.Type, org.Name)
	if err != nil {
		return nil, err
	}

	out := &DeleteOutcome{Dataset: dataset, Resource: res, Organization: org}
	editing := func(pending, msg string) *DeleteOutcome {
		out.State = StateEditing
		out.Pending = pending
		out.Errors = []string{msg}
		return out
	}

	if strings.TrimSpace(req.Text) == "" {
		return editing("", "Required field"), nil
	}

	chromo, err := s.registry.Chromo(res.Name)
	if err != nil {
		return nil, err
	}
	pk := chromo.PrimaryKey

	lines := strings.Split(req.Text, "\n")
	var accepted []string
	var filters []map[string]any

	for i, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		fail := func(msg string) *DeleteOutcome {
			pending := make([]string, 0, len(lines)-i+len(accepted))
			pending = append(pending, line)
			for _, rest := range lines[i+1:] {
				pending = append(pending, strings.TrimRight(rest, "\r"))
			}
			pending = append(pending, accepted...)
			rerr := &RecordResolutionError{Line: line, Message: msg}
			return editing(strings.Join(pending, "\n"), rerr.Error())
		}

		sep := ","
		if strings.Contains(line, "\t") {
			sep = "\t"
		}
		fields := strings.Split(line, sep)
		if len(fields) != len(pk) {
			return fail(fmt.Sprintf("Wrong number of fields, expected %d", len(pk))), nil
		}

		filter := make(map[string]any, len(pk))
		for j, id := range pk {
			fields[j] = strings.TrimSpace(fields[j])
			filter[id] = fields[j]
		}

		found, err := s.api.DatastoreSearch(ctx, ckan.SearchParams{
			ResourceID: req.ResourceID,
			Filters:    filter,
			Limit:      2,
		})
		if err != nil {
			if ckan.IsValidation(err) {
				return fail("Invalid fields"), nil
			}
			return nil, err
		}
		switch {
		case len(found.Records) == 0:
			return fail(fmt.Sprintf(`No matching records found "%s"`, strings.Join(fields, `", "`))), nil
		case len(found.Records) > 1:
			return fail("Multiple matching records found"), nil
		}

		if !slices.Contains(accepted, line) {
			accepted = append(accepted, line)
			filters = append(filters, filter)
		}
	}

	if len(accepted) == 0 {
		return editing("", "Required field"), nil
	}
	out.Accepted = accepted

	switch req.Action {
	case DeleteCancel:
		out.State = StateEditing
		out.Pending = strings.Join(accepted, "\n")
		return out, nil
	case DeleteConfirm:
	default:
		out.State = StateConfirming
		out.Pending = strings.Join(accepted, "\n")
		return out, nil
	}

	logger := logging.FromContext(ctx)
	for i, f := range filters {
		err := s.api.DatastoreDelete(ctx, ckan.DeleteParams{ResourceID: req.ResourceID, Filters: f})
		if err != nil {
			if ckan.IsNotFound(err) {
				out.Failed = append(out.Failed, DeleteFailure{Line: accepted[i], Message: "Record no longer exists"})
				continue
			}
			return nil, err
		}
		out.Deleted++
	}
	out.State = StateDeleted

	if len(out.Failed) > 0 {
		logger.Warn("bulk delete skipped vanished records", "resource", req.ResourceID, "skipped", len(out.Failed))
	}
	logger.Info("bulk delete", "resource", req.ResourceID, "deleted", out.Deleted)

	s.opts.Metrics.RecordsDeleted(res.Name, out.Deleted)
	s.record(ctx, history.Entry{
		Action:       history.ActionBulkDelete,
		DatasetID:    pkg.ID,
		DatasetType:  pkg.Type,
		Organization: org.Name,
		Sheets:       []string{res.Name},
		Records:      out.Deleted,
	})
	return out, nil
}
