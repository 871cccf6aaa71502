package remap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/studiowebux/keyclash/internal/types"
)

// DocumentVersion is written into every export
const DocumentVersion = "1"

// Document is the portable export/import format
type Document struct {
	Version    string                `json:"version" yaml:"version"`
	ExportedAt time.Time             `json:"exportedAt" yaml:"exportedAt"`
	Rules      []types.RemappingRule `json:"rules" yaml:"rules"`
}

// Format is a document encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, yaml or yml
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json", "jsonc":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported format %q (expected json or yaml)", s)
}

// EncodeDocument serializes doc
func EncodeDocument(doc Document, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(doc)
	case FormatJSON, "":
		return json.MarshalIndent(doc, "", "  ")
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

// DecodeDocument reads a document in JSON (comments and trailing commas
// allowed) or YAML. A bare list of rules is accepted too.
func DecodeDocument(data []byte) (Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Document{}, fmt.Errorf("empty document")
	}

	var doc Document
	switch trimmed[0] {
	case '{', '[', '/':
		js := jsonc.ToJSON(trimmed)
		js = bytes.TrimSpace(js)
		if len(js) > 0 && js[0] == '[' {
			if err := json.Unmarshal(js, &doc.Rules); err != nil {
				return Document{}, fmt.Errorf("invalid rule list: %w", err)
			}
			return doc, nil
		}
		if err := json.Unmarshal(js, &doc); err != nil {
			return Document{}, fmt.Errorf("invalid rule document: %w", err)
		}
		return doc, nil
	}

	var node yaml.Node
	if err := yaml.Unmarshal(trimmed, &node); err != nil {
		return Document{}, fmt.Errorf("invalid rule document: %w", err)
	}
	if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
		if err := node.Decode(&doc.Rules); err != nil {
			return Document{}, fmt.Errorf("invalid rule list: %w", err)
		}
		return doc, nil
	}
	if err := node.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("invalid rule document: %w", err)
	}
	return doc, nil
}
