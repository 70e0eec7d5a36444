package schema

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

type configFile struct {
	Version   string          `json:"version"`
	CreatedAt string          `json:"created_at"`
	Fields    json.RawMessage `json:"fields"`
}

// Load reads a `{"fields": {...}}` document from path. Any read or parse
// error is logged and leaves the in-memory store unchanged. Field order in
// the document becomes the store's insertion order.
func (s *Store) Load(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("schema.load.missing", "path", path)
		} else {
			s.logger.Error("schema.load.failed", "path", path, "error", err)
		}
		return
	}

	var cfg configFile
	if err := json.Unmarshal(data, &cfg); err != nil {
		s.logger.Error("schema.load.failed", "path", path, "error", err)
		return
	}
	if len(cfg.Fields) == 0 {
		s.logger.Info("schema.load.empty", "path", path)
		return
	}

	defs, err := decodeOrderedFields(cfg.Fields)
	if err != nil {
		s.logger.Error("schema.load.failed", "path", path, "error", err)
		return
	}

	for _, def := range defs {
		s.Add(def)
	}
	s.logger.Info("schema.load.ok", "path", path, "count", len(defs))
}

// decodeOrderedFields parses the fields object preserving document order,
// which encoding/json's map decoding would discard.
func decodeOrderedFields(raw json.RawMessage) ([]FieldDefinition, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil { // opening brace
		return nil, err
	}

	var defs []FieldDefinition
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, _ := keyTok.(string)

		var def FieldDefinition
		if err := dec.Decode(&def); err != nil {
			return nil, err
		}
		if def.Name == "" {
			def.Name = name
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Save writes the store to path with a version stamp and timestamp,
// overwriting any existing file. It returns false on I/O error.
func (s *Store) Save(path string) bool {
	fields, err := s.marshalOrderedFields()
	if err != nil {
		s.logger.Error("schema.save.failed", "path", path, "error", err)
		return false
	}

	doc, err := json.MarshalIndent(configFile{
		Version:   "1.0",
		CreatedAt: time.Now().Format(time.RFC3339),
		Fields:    fields,
	}, "", "  ")
	if err != nil {
		s.logger.Error("schema.save.failed", "path", path, "error", err)
		return false
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.logger.Error("schema.save.failed", "path", path, "error", err)
			return false
		}
	}
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		s.logger.Error("schema.save.failed", "path", path, "error", err)
		return false
	}

	s.logger.Info("schema.save.ok", "path", path, "count", s.Len())
	return true
}

func (s *Store) marshalOrderedFields() (json.RawMessage, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range s.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(s.fields[name])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Open loads the store at path, seeding the given defaults when the file is
// missing, unparseable, or empty.
func Open(path string, defaults []FieldDefinition, logger *slog.Logger) *Store {
	s := NewStore(logger)
	s.Load(path)
	if s.Len() == 0 {
		for _, def := range defaults {
			s.Add(def)
		}
		s.logger.Info("schema.seeded", "path", path, "count", s.Len())
	}
	return s
}
