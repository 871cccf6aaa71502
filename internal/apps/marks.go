package apps

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/studiowebux/keyclash/internal/store"
)

// MarksKey is the blob key user-marked application ids are stored under
const MarksKey = "apps.marked"

// LoadMarks reads the user-marked ids. A missing key is an empty set.
func LoadMarks(s store.BlobStore) (map[string]bool, error) {
	marked := make(map[string]bool)

	data, err := s.Get(MarksKey)
	if errors.Is(err, store.ErrNotFound) {
		return marked, nil
	}
	if err != nil {
		return marked, fmt.Errorf("failed to load marked apps: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return marked, fmt.Errorf("invalid marked apps format: %w", err)
	}
	for _, id := range ids {
		marked[id] = true
	}
	return marked, nil
}

// SaveMarks writes the user-marked ids of the index
func SaveMarks(s store.BlobStore, x *Index) error {
	data, err := json.Marshal(x.Marked())
	if err != nil {
		return fmt.Errorf("failed to encode marked apps: %w", err)
	}
	if err := s.Set(MarksKey, data); err != nil {
		return fmt.Errorf("failed to save marked apps: %w", err)
	}
	return nil
}

// LoadCandidates reads a candidate list from a .json, .jsonc, .yaml or .yml file
func LoadCandidates(path string) ([]Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &candidates)
	default:
		err = json.Unmarshal(jsonc.ToJSON(data), &candidates)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid candidate list format: %w", err)
	}
	return candidates, nil
}
