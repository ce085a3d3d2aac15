package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"imgapi/internal/model"
)

// EditBuffer holds the user-editable copy of a response body. The stored
// record is never modified through it.
type EditBuffer struct {
	original string
	text     string
	err      error
}

// PrettyJSON indents raw with two spaces, keeping key order and escaping as received
func PrettyJSON(raw []byte) (string, error) {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return "", err
	}
	return out.String(), nil
}

// NewEditBuffer seeds a buffer with the pretty-printed body of rec
func NewEditBuffer(rec *model.ResponseRecord) (*EditBuffer, error) {
	pretty, err := PrettyJSON(rec.Response)
	if err != nil {
		return nil, err
	}
	return &EditBuffer{original: pretty, text: pretty}, nil
}

// Set replaces the buffer text and revalidates it
func (b *EditBuffer) Set(text string) error {
	b.text = text
	b.err = nil

	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		b.err = &model.EditValidationError{Err: err}
	}
	return b.err
}

// Reset restores the seeded text
func (b *EditBuffer) Reset() {
	b.text = b.original
	b.err = nil
}

// Text returns the current buffer contents
func (b *EditBuffer) Text() string {
	return b.text
}

// Modified reports whether the buffer differs from its seed
func (b *EditBuffer) Modified() bool {
	return b.text != b.original
}

// Err returns the validation error of the current text, if any
func (b *EditBuffer) Err() error {
	return b.err
}

// CanExport is true iff the current text is valid JSON
func (b *EditBuffer) CanExport() bool {
	return b.err == nil
}

// ValidateSchema checks the buffer against a JSON Schema document.
// It reports violations only; export stays governed by CanExport.
func (b *EditBuffer) ValidateSchema(schema []byte) ([]string, error) {
	if b.err != nil {
		return nil, b.err
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewStringLoader(b.text),
	)
	if err != nil {
		return nil, fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}

	var violations []string
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return violations, nil
}

// Lines returns the buffer split into lines, for numbered display
func (b *EditBuffer) Lines() []string {
	return strings.Split(b.text, "\n")
}
