package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/ercanvas/pkg/diagram"
	"github.com/matzehuels/ercanvas/pkg/errors"
)

// RequiredKeys are the top-level keys every model file must contain.
var RequiredKeys = []string{"caseStudy", "entities", "relationships"}

// ReadModel decodes and validates a model from r. ReadModel does not close r.
func ReadModel(r io.Reader) (diagram.Model, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return diagram.Model{}, fmt.Errorf("read: %w", err)
	}
	return ParseModel(data)
}

// ParseModel decodes and validates a model from data.
func ParseModel(data []byte) (diagram.Model, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return diagram.Model{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "model file is not a JSON object")
	}
	for _, k := range RequiredKeys {
		v, ok := raw[k]
		if !ok || string(v) == "null" {
			return diagram.Model{}, errors.New(errors.ErrCodeInvalidModel, "model file is missing %q", k)
		}
	}

	var m diagram.Model
	if err := json.Unmarshal(data, &m); err != nil {
		return diagram.Model{}, errors.Wrap(errors.ErrCodeInvalidModel, err, "decode model")
	}
	m = normalize(m)
	if err := m.Validate(); err != nil {
		return diagram.Model{}, err
	}
	return m, nil
}

// ImportModel reads a model file at path.
func ImportModel(path string) (diagram.Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return diagram.Model{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadModel(f)
}

// normalize fills absent collections so re-export produces [] rather than
// null, and lowercases attribute names the way the editor does.
func normalize(m diagram.Model) diagram.Model {
	if m.Entities == nil {
		m.Entities = []diagram.Entity{}
	}
	if m.Relationships == nil {
		m.Relationships = []diagram.Relationship{}
	}
	for i := range m.Entities {
		e := &m.Entities[i]
		if e.Attributes == nil {
			e.Attributes = []diagram.Attribute{}
		}
		for j := range e.Attributes {
			e.Attributes[j].Name = diagram.NormalizeAttributeName(e.Attributes[j].Name)
		}
	}
	return m
}
