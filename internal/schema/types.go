// Package schema holds the recombinant table descriptors.
//
// A geno describes one dataset type and groups its chromos. A chromo
// describes one resource: one worksheet in the Excel template and one
// datastore table per organization. Descriptors are loaded once at startup
// and never mutated afterwards.
package schema

import (
	"slices"
)

// DatastoreType values understood by the normalizer.
const (
	TypeText      = "text"
	TypeTextList  = "_text"
	TypeInt       = "int"
	TypeYear      = "year"
	TypeNumeric   = "numeric"
	TypeMoney     = "money"
	TypeDate      = "date"
	TypeTimestamp = "timestamp"
	TypeBoolean   = "boolean"
)

// Obligation tags exported in the schema and data dictionary.
const (
	ObligationMandatory   = "mandatory"
	ObligationConditional = "conditional"
	ObligationOptional    = "optional"
)

// ChoicePolicy controls how cell values are matched against a field's choices.
type ChoicePolicy int

const (
	ChoiceNone     ChoicePolicy = iota // field has no choices
	ChoiceStrict                       // value must equal a choice key
	ChoiceFullText                     // value may also be "key: label" or part of a label
)

// Choice is one enumerated value of a field.
type Choice struct {
	Key   string
	Label Localized
}

// Choices keeps declaration order, which is also the order used in
// drop-down lists and in the schema export.
type Choices []Choice

// Keys returns the choice keys in declared order.
func (c Choices) Keys() []string {
	keys := make([]string, len(c))
	for i, ch := range c {
		keys[i] = ch.Key
	}
	return keys
}

// Field describes one datastore column.
type Field struct {
	DatastoreID          string    `yaml:"datastore_id"`
	Label                Localized `yaml:"label"`
	Description          Localized `yaml:"description"`
	Validation           Localized `yaml:"validation"`
	DatastoreType        string    `yaml:"datastore_type"`
	Choices              Choices   `yaml:"choices"`
	ChoicesFile          string    `yaml:"choices_file"`
	ExcelRequired        bool      `yaml:"excel_required"`
	ExcelRequiredFormula string    `yaml:"excel_required_formula"`
	ExcelFullTextChoices bool      `yaml:"excel_full_text_choices"`

	// Pointers so that an absent key can default to true.
	VisibleToPublicFlag       *bool `yaml:"visible_to_public"`
	ImportTemplateIncludeFlag *bool `yaml:"import_template_include"`
}

// VisibleToPublic reports whether the field appears in the public schema export.
func (f Field) VisibleToPublic() bool {
	return f.VisibleToPublicFlag == nil || *f.VisibleToPublicFlag
}

// ImportTemplateInclude reports whether the field is a column of the upload template.
func (f Field) ImportTemplateInclude() bool {
	return f.ImportTemplateIncludeFlag == nil || *f.ImportTemplateIncludeFlag
}

// HasChoices reports whether the field is constrained to an enumeration.
func (f Field) HasChoices() bool {
	return len(f.Choices) > 0 || f.ChoicesFile != ""
}

// ChoicePolicy returns how the field's choices are matched.
func (f Field) ChoicePolicy() ChoicePolicy {
	switch {
	case !f.HasChoices():
		return ChoiceNone
	case f.ExcelFullTextChoices:
		return ChoiceFullText
	default:
		return ChoiceStrict
	}
}

// Examples carries an optional example record for the schema export.
type Examples struct {
	Record map[string]any `yaml:"record"`
}

// Chromo describes one resource of a dataset type.
type Chromo struct {
	ResourceName string     `yaml:"resource_name"`
	Title        Localized  `yaml:"title"`
	XLSSheetName string     `yaml:"xls_sheet_name"`
	PrimaryKey   StringList `yaml:"datastore_primary_key"`
	Fields       []Field    `yaml:"fields"`
	Examples     *Examples  `yaml:"examples"`

	// DatasetType is filled in from the owning geno.
	DatasetType string `yaml:"-"`
}

// SheetName is the worksheet name used in templates.
func (c *Chromo) SheetName() string {
	if c.XLSSheetName != "" {
		return c.XLSSheetName
	}
	return c.ResourceName
}

// ImportFields returns the fields that are columns of the upload template, in order.
func (c *Chromo) ImportFields() []Field {
	fields := make([]Field, 0, len(c.Fields))
	for _, f := range c.Fields {
		if f.ImportTemplateInclude() {
			fields = append(fields, f)
		}
	}
	return fields
}

// ImportColumns returns the datastore ids of ImportFields.
func (c *Chromo) ImportColumns() []string {
	fields := c.ImportFields()
	ids := make([]string, len(fields))
	for i, f := range fields {
		ids[i] = f.DatastoreID
	}
	return ids
}

// Field returns the field with the given datastore id.
func (c *Chromo) Field(id string) (Field, bool) {
	for _, f := range c.Fields {
		if f.DatastoreID == id {
			return f, true
		}
	}
	return Field{}, false
}

// PrimaryKeyFields returns the key fields in key order.
func (c *Chromo) PrimaryKeyFields() []Field {
	fields := make([]Field, 0, len(c.PrimaryKey))
	for _, id := range c.PrimaryKey {
		if f, ok := c.Field(id); ok {
			fields = append(fields, f)
		}
	}
	return fields
}

// IsPrimaryKey reports whether id is part of the primary key.
func (c *Chromo) IsPrimaryKey(id string) bool {
	return slices.Contains(c.PrimaryKey, id)
}

// ChoicePolicies maps datastore ids of choice fields to their policy.
func (c *Chromo) ChoicePolicies() map[string]ChoicePolicy {
	policies := make(map[string]ChoicePolicy)
	for _, f := range c.Fields {
		if p := f.ChoicePolicy(); p != ChoiceNone {
			policies[f.DatastoreID] = p
		}
	}
	return policies
}

// Obligation derives the obligation tag of a field.
func (c *Chromo) Obligation(f Field) string {
	switch {
	case c.IsPrimaryKey(f.DatastoreID), f.ExcelRequired:
		return ObligationMandatory
	case f.ExcelRequiredFormula != "":
		return ObligationConditional
	default:
		return ObligationOptional
	}
}

// Geno describes one dataset type.
type Geno struct {
	DatasetType   string            `yaml:"dataset_type"`
	TargetDataset string            `yaml:"target_dataset"`
	Title         Localized         `yaml:"title"`
	Notes         Localized         `yaml:"notes"`
	FrontMatter   map[string]string `yaml:"front_matter"`
	Resources     []*Chromo         `yaml:"resources"`
}

// ResourceNames returns the resource names of the geno's chromos, in order.
func (g *Geno) ResourceNames() []string {
	names := make([]string, len(g.Resources))
	for i, c := range g.Resources {
		names[i] = c.ResourceName
	}
	return names
}
