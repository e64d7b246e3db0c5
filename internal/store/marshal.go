package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/relbridge/internal/extension"
)

// marshalDeclaration converts a declaration to JSON TEXT for storage.
// HTML escaping is disabled so descriptions are stored as written.
func marshalDeclaration(d *extension.Declaration) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(d); err != nil {
		return "", fmt.Errorf("marshal declaration %s: %w", d.Key(), err)
	}
	// Encoder adds a trailing newline
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalDeclaration parses a stored declaration body.
func unmarshalDeclaration(data string) (extension.Declaration, error) {
	var d extension.Declaration
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return extension.Declaration{}, fmt.Errorf("unmarshal declaration: %w", err)
	}
	return d, nil
}
