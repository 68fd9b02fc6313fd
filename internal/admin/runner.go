// Package admin implements the table management commands: creating and
// destroying the recombinant datasets of every organization, loading
// workbooks without the web form, and combining all organizations' records
// into one CSV.
package admin

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/recombinant/internal/ckan"
	"github.com/JonMunkholm/recombinant/internal/core"
	"github.com/JonMunkholm/recombinant/internal/schema"
	"github.com/JonMunkholm/recombinant/internal/xls"
)

// RecordsPerOrganization caps the records read from one datastore table.
const RecordsPerOrganization = 1000000

// DefaultConcurrency is the number of organizations queried at once.
const DefaultConcurrency = 8

var (
	ErrAllWithTypes = errors.New("--all-types makes no sense with dataset types listed")
	ErrNoTypes      = errors.New("please specify dataset types or use -a/--all-types option")
)

// API is the part of the action API used by the commands.
type API interface {
	core.ActionAPI
	OrganizationList(ctx context.Context) ([]string, error)
	RecombinantUpdate(ctx context.Context, datasetType, owner string) error
	PackageSearch(ctx context.Context, q string, rows int) (*ckan.PackageSearchResult, error)
	DatasetPurge(ctx context.Context, id string) error
}

// Runner executes the commands against one portal.
type Runner struct {
	API      API
	Registry *schema.Registry
	Service  *core.Service // writes loaded workbooks

	// Orgs are the organization names to work on. When empty, every
	// organization of the portal is used.
	Orgs []string

	Out         io.Writer
	Lang        string // language of combine column labels
	Translate   schema.Translator
	Concurrency int

	once    sync.Once
	orgsErr error
}

func (r *Runner) out() io.Writer {
	if r.Out == nil {
		return os.Stdout
	}
	return r.Out
}

func (r *Runner) limit() int {
	if r.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return r.Concurrency
}

func (r *Runner) organizations(ctx context.Context) ([]string, error) {
	r.once.Do(func() {
		if len(r.Orgs) > 0 {
			return
		}
		r.Orgs, r.orgsErr = r.API.OrganizationList(ctx)
		if r.orgsErr != nil {
			r.orgsErr = fmt.Errorf("list organizations: %w", r.orgsErr)
		}
	})
	return r.Orgs, r.orgsErr
}

// expandTypes resolves the dataset type arguments of create, destroy and
// combine.
func (r *Runner) expandTypes(types []string, all bool) ([]*schema.Geno, error) {
	switch {
	case all && len(types) > 0:
		return nil, ErrAllWithTypes
	case all:
		types = r.Registry.DatasetTypes()
	case len(types) == 0:
		return nil, ErrNoTypes
	}

	genos := make([]*schema.Geno, 0, len(types))
	for _, t := range types {
		g, err := r.Registry.Geno(t)
		if err != nil {
			return nil, err
		}
		genos = append(genos, g)
	}
	return genos, nil
}

// packages returns the recombinant datasets of datasetType that exist, in
// organization order.
func (r *Runner) packages(ctx context.Context, datasetType string, orgs []string) ([]*ckan.RecombinantDataset, error) {
	found := make([]*ckan.RecombinantDataset, len(orgs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.limit())
	for i, org := range orgs {
		g.Go(func() error {
			d, err := r.API.RecombinantShow(ctx, datasetType, org)
			switch {
			case ckan.IsNotFound(err):
				return nil
			case err != nil:
				return fmt.Errorf("%s/%s: %w", datasetType, org, err)
			}
			if d.OwnerOrg == "" {
				d.OwnerOrg = org
			}
			found[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pkgs := found[:0]
	for _, d := range found {
		if d != nil {
			pkgs = append(pkgs, d)
		}
	}
	return pkgs, nil
}

// Create creates the missing datasets of each type and updates the ones
// whose metadata or tables are out of date.
func (r *Runner) Create(ctx context.Context, types []string, all bool) error {
	genos, err := r.expandTypes(types, all)
	if err != nil {
		return err
	}
	orgs, err := r.organizations(ctx)
	if err != nil {
		return err
	}

	for _, geno := range genos {
		dtype := geno.DatasetType
		pkgs, err := r.packages(ctx, dtype, orgs)
		if err != nil {
			return err
		}
		existing := make(map[string]*ckan.RecombinantDataset, len(pkgs))
		for _, p := range pkgs {
			existing[p.OwnerOrg] = p
		}

		for _, org := range orgs {
			p, ok := existing[org]
			switch {
			case ok && p.AllCorrect:
				continue
			case ok:
				fmt.Fprintln(r.out(), dtype, org, "updating")
				err = r.API.RecombinantUpdate(ctx, dtype, org)
			default:
				fmt.Fprintln(r.out(), dtype, org)
				err = r.API.RecombinantCreate(ctx, dtype, org)
			}
			if err != nil {
				return fmt.Errorf("%s/%s: %w", dtype, org, err)
			}
		}
	}
	return nil
}

// Destroy removes the datastore tables and purges the datasets of each
// type in every organization.
func (r *Runner) Destroy(ctx context.Context, types []string, all bool) error {
	genos, err := r.expandTypes(types, all)
	if err != nil {
		return err
	}
	orgs, err := r.organizations(ctx)
	if err != nil {
		return err
	}

	for _, geno := range genos {
		pkgs, err := r.packages(ctx, geno.DatasetType, orgs)
		if err != nil {
			return err
		}
		for _, p := range pkgs {
			for _, res := range p.Resources {
				err := r.API.DatastoreDelete(ctx, ckan.DeleteParams{ResourceID: res.ID, Force: true})
				if err != nil && !ckan.IsNotFound(err) {
					return fmt.Errorf("delete table %s: %w", res.ID, err)
				}
			}
			id := p.Name
			if id == "" {
				id = p.ID
			}
			if err := r.API.DatasetPurge(ctx, id); err != nil {
				return fmt.Errorf("purge %s: %w", id, err)
			}
			slog.Info("dataset purged", "dataset", id, "dataset_type", geno.DatasetType)
		}
	}
	return nil
}

// LoadXLS writes filled templates straight into their datasets. A
// workbook whose sheet or organization is unknown is skipped with a
// warning; a rejected workbook stops the run.
func (r *Runner) LoadXLS(ctx context.Context, files ...string) error {
	for _, name := range files {
		if err := r.loadOne(ctx, name); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func (r *Runner) loadOne(ctx context.Context, name string) error {
	data, err := os.ReadFile(name)
	if err != nil {
		return err
	}
	book, err := xls.Open(bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer book.Close()

	if !book.Next() {
		if err := book.Err(); err != nil {
			return err
		}
		slog.Warn("workbook has no sheets", "file", name)
		return nil
	}
	first := book.Sheet()

	chromo, err := r.Registry.ChromoBySheet(first.Name)
	if err != nil {
		slog.Warn("sheet name not found in tables", "file", name, "sheet", first.Name)
		return nil
	}

	orgs, err := r.organizations(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(orgs, first.Organization) {
		slog.Warn("organization name not found", "file", name, "organization", first.Organization)
		return nil
	}

	org, err := r.API.OrganizationShow(ctx, first.Organization)
	if err != nil {
		return err
	}
	found, err := r.API.PackageSearch(ctx,
		fmt.Sprintf("type:%s AND owner_org:%s", chromo.DatasetType, org.ID), 10)
	if err != nil {
		return err
	}
	if len(found.Results) != 1 {
		slog.Warn("unexpected number of packages", "expected", 1, "received", len(found.Results))
	}
	if len(found.Results) == 0 {
		slog.Warn("no recombinant tables found, try creating them first", "dataset_type", chromo.DatasetType)
		return nil
	}
	dataset := found.Results[0]
	if dataset.Organization == nil {
		dataset.Organization = org
	}

	res, err := r.Service.Reconcile(ctx, &dataset, &replay{first: first, rest: book}, false)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out(), name, humanize.Comma(int64(res.Records)))
	return nil
}

// replay yields an already read sheet before the remaining ones.
type replay struct {
	first   xls.Sheet
	rest    core.SheetSource
	started bool
	onRest  bool
}

func (p *replay) Next() bool {
	if !p.started {
		p.started = true
		return true
	}
	p.onRest = true
	return p.rest.Next()
}

func (p *replay) Sheet() xls.Sheet {
	if !p.onRest {
		return p.first
	}
	return p.rest.Sheet()
}

func (p *replay) Err() error { return p.rest.Err() }

// Combine writes the records of every organization to w as CSV, one
// header per resource: the field labels followed by "Org id" and "Org".
// Records missing any column are left out.
func (r *Runner) Combine(ctx context.Context, w io.Writer, types []string, all bool) error {
	genos, err := r.expandTypes(types, all)
	if err != nil {
		return err
	}
	orgs, err := r.organizations(ctx)
	if err != nil {
		return err
	}

	out := csv.NewWriter(w)
	for _, geno := range genos {
		pkgs, err := r.packages(ctx, geno.DatasetType, orgs)
		if err != nil {
			return err
		}
		titles, err := r.orgTitles(ctx, pkgs)
		if err != nil {
			return err
		}

		for _, chromo := range geno.Resources {
			if err := r.combineResource(ctx, out, chromo, pkgs, titles); err != nil {
				return err
			}
		}
	}
	out.Flush()
	return out.Error()
}

func (r *Runner) combineResource(ctx context.Context, out *csv.Writer, chromo *schema.Chromo, pkgs []*ckan.RecombinantDataset, titles map[string]string) error {
	header := make([]string, 0, len(chromo.Fields)+2)
	for _, f := range chromo.Fields {
		header = append(header, f.Label.In(r.lang(), r.Translate))
	}
	header = append(header, "Org id", "Org")
	if err := out.Write(header); err != nil {
		return err
	}

	for _, p := range pkgs {
		res, ok := p.Resource(chromo.ResourceName)
		if !ok {
			continue
		}
		found, err := r.API.DatastoreSearch(ctx, ckan.SearchParams{ResourceID: res.ID, Limit: RecordsPerOrganization})
		if ckan.IsNotFound(err) {
			slog.Warn("resource not found", "resource", res.ID)
			continue
		}
		if err != nil {
			return fmt.Errorf("search %s: %w", res.ID, err)
		}

		for _, rec := range found.Records {
			row, ok := combinedRow(rec, chromo.Fields)
			if !ok {
				continue
			}
			row = append(row, p.OwnerOrg, titles[p.OwnerOrg])
			if err := out.Write(row); err != nil {
				return err
			}
		}
	}
	return nil
}

func combinedRow(rec map[string]any, fields []schema.Field) ([]string, bool) {
	row := make([]string, 0, len(fields)+2)
	for _, f := range fields {
		v, ok := rec[f.DatastoreID]
		if !ok {
			return nil, false
		}
		if v == nil {
			row = append(row, "")
			continue
		}
		row = append(row, fmt.Sprint(v))
	}
	return row, true
}

func (r *Runner) orgTitles(ctx context.Context, pkgs []*ckan.RecombinantDataset) (map[string]string, error) {
	titles := make([]string, len(pkgs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.limit())
	for i, p := range pkgs {
		g.Go(func() error {
			org, err := r.API.OrganizationShow(ctx, p.OwnerOrg)
			if err != nil {
				return fmt.Errorf("organization %s: %w", p.OwnerOrg, err)
			}
			titles[i] = org.Title
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byName := make(map[string]string, len(pkgs))
	for i, p := range pkgs {
		byName[p.OwnerOrg] = titles[i]
	}
	return byName, nil
}

func (r *Runner) lang() string {
	if r.Lang == "" {
		return "en"
	}
	return r.Lang
}

// TargetDatasets prints the target datasets on one line.
func (r *Runner) TargetDatasets() {
	fmt.Fprintln(r.out(), strings.Join(r.Registry.TargetDatasets(), " "))
}

// DatasetTypes prints the dataset types of each target dataset, all
// targets when none are given.
func (r *Runner) DatasetTypes(targets ...string) {
	if len(targets) == 0 {
		targets = r.Registry.TargetDatasets()
	}
	for _, t := range targets {
		fmt.Fprintln(r.out(), t+": "+strings.Join(r.Registry.DatasetTypes(t), " "))
	}
}
