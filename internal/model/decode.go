package model

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
)

// Input formats accepted by DecodeInvoice
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// FormatFromPath guesses the input format from a file extension
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// DecodeInvoice reads an invoice document in JSON or YAML form.
// YAML is converted to JSON first so both share the same field names and
// decimal literals reach the decoder unchanged.
func DecodeInvoice(r io.Reader, format string) (*Invoice, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, NewParseError(format, "content", "failed to read content", err)
	}

	if format == FormatYAML {
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, NewParseError(format, "yaml", "failed to parse YAML", err)
		}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var inv Invoice
	if err := dec.Decode(&inv); err != nil {
		return nil, NewParseError(format, "json", "failed to decode invoice", err)
	}

	if inv.Profile != "" {
		p, err := ParseProfile(string(inv.Profile))
		if err != nil {
			return nil, NewParseError(format, "profile", "unknown profile", err)
		}
		inv.Profile = p
	}

	return &inv, nil
}
