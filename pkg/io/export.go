package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/ercanvas/pkg/diagram"
)

// WriteModel encodes m as indented JSON and writes it to w.
// The output can be re-imported with [ReadModel].
func WriteModel(w io.Writer, m diagram.Model) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(normalize(m.Clone())); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportModel writes m to a JSON file at path.
// This is a convenience wrapper around [WriteModel] for file-based output.
func ExportModel(path string, m diagram.Model) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteModel(f, m)
}
