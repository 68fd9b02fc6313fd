package schema

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Translator looks up the translation of msgid for lang.
type Translator func(lang, msgid string) string

// Identity returns msgid unchanged.
func Identity(_, msgid string) string { return msgid }

// Localized is either a translatable message id or an explicit per-language
// mapping, as written in the table descriptors.
type Localized struct {
	Text   string
	ByLang map[string]string
}

// Text builds a Localized from a plain message id.
func Text(s string) Localized { return Localized{Text: s} }

// IsZero reports whether nothing was declared.
func (l Localized) IsZero() bool {
	return l.Text == "" && len(l.ByLang) == 0
}

// Explicit reports whether the descriptor gave a per-language mapping.
func (l Localized) Explicit() bool { return len(l.ByLang) > 0 }

// In resolves the value for lang. Explicit mappings fall back to English,
// then to the first language in sorted order.
func (l Localized) In(lang string, tr Translator) string {
	if len(l.ByLang) > 0 {
		if s, ok := l.ByLang[lang]; ok {
			return s
		}
		if s, ok := l.ByLang["en"]; ok {
			return s
		}
		return l.ByLang[l.Langs()[0]]
	}
	if tr == nil || l.Text == "" {
		return l.Text
	}
	return tr(lang, l.Text)
}

// Langs returns the explicit languages in sorted order.
func (l Localized) Langs() []string {
	langs := make([]string, 0, len(l.ByLang))
	for k := range l.ByLang {
		langs = append(langs, k)
	}
	sort.Strings(langs)
	return langs
}

// Matches reports whether s is a case-insensitive substring of any rendering
// of the value.
func (l Localized) Matches(s string) bool {
	needle := strings.ToLower(s)
	if l.Text != "" && strings.Contains(strings.ToLower(l.Text), needle) {
		return true
	}
	for _, v := range l.ByLang {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}

func (l *Localized) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		l.Text = node.Value
		return nil
	case yaml.MappingNode:
		m := make(map[string]string, len(node.Content)/2)
		if err := node.Decode(&m); err != nil {
			return err
		}
		l.ByLang = m
		return nil
	default:
		return fmt.Errorf("line %d: expected string or language mapping", node.Line)
	}
}

// UnmarshalYAML keeps the declaration order of a choices mapping.
func (c *Choices) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: choices must be a mapping", node.Line)
	}
	out := make(Choices, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var label Localized
		if err := node.Content[i+1].Decode(&label); err != nil {
			return fmt.Errorf("choice %q: %w", node.Content[i].Value, err)
		}
		out = append(out, Choice{Key: node.Content[i].Value, Label: label})
	}
	*c = out
	return nil
}

// StringList accepts a YAML sequence or a single whitespace separated string.
type StringList []string

func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = strings.Fields(node.Value)
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	default:
		return fmt.Errorf("line %d: expected string or list", node.Line)
	}
}
