package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/JonMunkholm/recombinant/internal/schema"
)

// orderedMap is a JSON object that keeps insertion order.
type orderedMap struct {
	keys   []string
	values map[string]any
}

func newOrderedMap() *orderedMap {
	return &orderedMap{values: make(map[string]any)}
}

func (m *orderedMap) Set(key string, v any) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

func (m *orderedMap) Len() int { return len(m.keys) }

func (m *orderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := enc.Encode(k); err != nil {
			return nil, err
		}
		buf.Truncate(buf.Len() - 1) // Encode appends a newline
		buf.WriteByte(':')
		if err := enc.Encode(m.values[k]); err != nil {
			return nil, err
		}
		buf.Truncate(buf.Len() - 1)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// SchemaExport renders the machine readable schema of a dataset type.
// Fields hidden from the public are left out.
func (s *Service) SchemaExport(datasetType string) (*Download, error) {
	geno, err := s.registry.Geno(datasetType)
	if err != nil {
		return nil, err
	}

	doc := s.schemaDocument(geno)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	s.opts.Metrics.Download("schema", datasetType)

	return &Download{
		Filename:    datasetType + ".json",
		ContentType: ContentTypeJSON,
		Body:        bytes.TrimRight(buf.Bytes(), "\n"),
	}, nil
}

func (s *Service) schemaDocument(geno *schema.Geno) *orderedMap {
	doc := newOrderedMap()
	doc.Set("dataset_type", geno.DatasetType)
	doc.Set("title", s.perLocale(geno.Title))
	doc.Set("notes", s.perLocale(geno.Notes))

	if len(geno.FrontMatter) > 0 {
		fm := newOrderedMap()
		langs := make([]string, 0, len(geno.FrontMatter))
		for lang := range geno.FrontMatter {
			langs = append(langs, lang)
		}
		sort.Strings(langs)
		for _, lang := range langs {
			fm.Set(lang, geno.FrontMatter[lang])
		}
		doc.Set("front_matter", fm)
	}

	resources := make([]*orderedMap, 0, len(geno.Resources))
	for _, chromo := range geno.Resources {
		resources = append(resources, s.resourceDocument(chromo))
	}
	doc.Set("resources", resources)
	return doc
}

func (s *Service) resourceDocument(chromo *schema.Chromo) *orderedMap {
	res := newOrderedMap()
	res.Set("resource_name", chromo.ResourceName)
	res.Set("title", s.perLocale(chromo.Title))

	pk := []string(chromo.PrimaryKey)
	if pk == nil {
		pk = []string{}
	}
	res.Set("primary_key", pk)

	fields := make([]*orderedMap, 0, len(chromo.Fields))
	for _, f := range chromo.Fields {
		if !f.VisibleToPublic() {
			continue
		}
		fld := newOrderedMap()
		fld.Set("id", f.DatastoreID)
		for _, t := range []struct {
			key string
			val schema.Localized
		}{{"label", f.Label}, {"description", f.Description}, {"validation", f.Validation}} {
			if !t.val.IsZero() {
				fld.Set(t.key, s.perLocale(t.val))
			}
		}
		fld.Set("obligation", chromo.Obligation(f))
		fld.Set("datastore_type", f.DatastoreType)

		if len(f.Choices) > 0 {
			choices := newOrderedMap()
			for _, c := range f.Choices {
				choices.Set(c.Key, s.perLocale(c.Label))
			}
			fld.Set("choices", choices)
		}
		fields = append(fields, fld)
	}
	res.Set("fields", fields)

	if chromo.Examples != nil && chromo.Examples.Record != nil {
		example := newOrderedMap()
		for _, f := range chromo.Fields {
			if v, ok := chromo.Examples.Record[f.DatastoreID]; ok {
				example.Set(f.DatastoreID, v)
			}
		}
		res.Set("example_record", example)
	}
	return res
}

// perLocale renders a localized text as {lang: text}. Texts given per
// language in the descriptor are kept as written, others are translated
// into every offered language.
func (s *Service) perLocale(l schema.Localized) *orderedMap {
	m := newOrderedMap()
	if l.Explicit() {
		for _, lang := range l.Langs() {
			m.Set(lang, l.ByLang[lang])
		}
		return m
	}
	for _, lang := range s.opts.Locales {
		m.Set(lang, l.In(lang, s.opts.Translate))
	}
	return m
}
