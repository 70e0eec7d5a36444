package schema

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

// FieldDefinition describes one named extraction target.
type FieldDefinition struct {
	Name            string                 `json:"name"`
	Description     string                 `json:"description"`
	FieldType       constants.FieldType    `json:"field_type"`
	Patterns        []string               `json:"patterns"`
	AIPrompt        string                 `json:"ai_prompt"`
	Required        bool                   `json:"required"`
	ValidationRules map[string]interface{} `json:"validation_rules,omitempty"`

	compiled []*regexp.Regexp
}

// CompiledPatterns returns the field's patterns compiled case-insensitively.
// Patterns that failed to compile are absent.
func (d *FieldDefinition) CompiledPatterns() []*regexp.Regexp {
	return d.compiled
}

func (d *FieldDefinition) compilePatterns(logger *slog.Logger) {
	d.compiled = d.compiled[:0]
	for _, pattern := range d.Patterns {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			logger.Warn("schema.pattern.invalid", "field", d.Name, "pattern", pattern, "error", err)
			continue
		}
		d.compiled = append(d.compiled, re)
	}
}

// Store is an insertion-ordered collection of field definitions.
// It has no internal locking; callers embedding it in a concurrent host
// must serialize access themselves.
type Store struct {
	order  []string
	fields map[string]*FieldDefinition
	logger *slog.Logger
}

// NewStore creates an empty field schema store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		fields: make(map[string]*FieldDefinition),
		logger: logger,
	}
}

// Get returns the definition for name.
func (s *Store) Get(name string) (*FieldDefinition, bool) {
	def, ok := s.fields[name]
	return def, ok
}

// All returns every definition in insertion order.
func (s *Store) All() []*FieldDefinition {
	result := make([]*FieldDefinition, 0, len(s.order))
	for _, name := range s.order {
		result = append(result, s.fields[name])
	}
	return result
}

// Names returns all field names in insertion order.
func (s *Store) Names() []string {
	result := make([]string, len(s.order))
	copy(result, s.order)
	return result
}

// RequiredNames returns the names of required fields in insertion order.
func (s *Store) RequiredNames() []string {
	var result []string
	for _, name := range s.order {
		if s.fields[name].Required {
			result = append(result, name)
		}
	}
	return result
}

// Len returns the number of definitions in the store.
func (s *Store) Len() int {
	return len(s.order)
}

// Add inserts a definition. It returns false only when the name is empty or
// whitespace. An existing name is overwritten silently after a warning;
// callers that must not overwrite check existence first.
func (s *Store) Add(def FieldDefinition) bool {
	if strings.TrimSpace(def.Name) == "" {
		s.logger.Error("schema.add.failed", "reason", "field name is empty")
		return false
	}

	if _, exists := s.fields[def.Name]; exists {
		s.logger.Warn("schema.add.overwrite", "field", def.Name)
	} else {
		s.order = append(s.order, def.Name)
	}

	def.compilePatterns(s.logger)
	s.fields[def.Name] = &def
	s.logger.Info("schema.add.ok", "field", def.Name)
	return true
}

// Remove deletes a definition by name. It returns false when absent.
func (s *Store) Remove(name string) bool {
	if _, exists := s.fields[name]; !exists {
		s.logger.Warn("schema.remove.missing", "field", name)
		return false
	}

	delete(s.fields, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.logger.Info("schema.remove.ok", "field", name)
	return true
}
