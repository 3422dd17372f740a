// Package loader decodes payload files and loads dashboards from a mod
// directory.
package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrEmpty is returned for blank input.
var ErrEmpty = errors.New("empty input")

// LoadData decodes input, detecting the format. It understands multi-document
// YAML, newline-delimited JSON, TOML, JSON and single YAML documents, and
// returns one element per document.
func LoadData(input string) ([]any, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmpty
	}
	if strings.Contains(input, "\n---") || strings.HasPrefix(input, "---") {
		return loadMultiDocYAML(input)
	}
	if lines := strings.Split(input, "\n"); len(lines) > 1 && isLikelyNDJSON(lines) {
		return loadNDJSON(input)
	}
	// TOML [section] headers look like JSON arrays, so check TOML first. A
	// false positive falls through to the other decoders.
	if isLikelyTOML(input) {
		if v, err := loadTOML(input); err == nil {
			return []any{v}, nil
		}
	}
	if strings.HasPrefix(input, "{") || strings.HasPrefix(input, "[") {
		if v, err := loadJSON(input); err == nil {
			return []any{v}, nil
		}
	}
	v, err := loadYAML(input)
	if err != nil {
		return nil, err
	}
	return []any{v}, nil
}

// LoadRoot decodes input into a single value. Multi-document input becomes a
// list.
func LoadRoot(input string) (any, error) {
	docs, err := LoadData(input)
	if err != nil {
		return nil, err
	}
	if len(docs) == 1 {
		return docs[0], nil
	}
	return docs, nil
}

// LoadFile decodes a file. A known extension picks the decoder; anything
// else is detected from content.
func LoadFile(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	v, err := Decode(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// Decode decodes data using the format implied by ext (".json", ".yaml",
// ".yml", ".toml", ".ndjson", ".jsonl"). When that decoder fails, or the
// extension is unknown, the format is detected from content.
func Decode(data []byte, ext string) (any, error) {
	input := strings.TrimSpace(string(data))
	if input == "" {
		return nil, ErrEmpty
	}
	v, err := decodeAs(input, ext)
	if err == nil {
		return v, nil
	}
	if fallback, ferr := LoadRoot(input); ferr == nil {
		return fallback, nil
	}
	return nil, err
}

func decodeAs(input, ext string) (any, error) {
	switch strings.ToLower(ext) {
	case ".json":
		return loadJSON(input)
	case ".yaml", ".yml":
		if strings.Contains(input, "\n---") || strings.HasPrefix(input, "---") {
			docs, err := loadMultiDocYAML(input)
			if err != nil || len(docs) != 1 {
				return docs, err
			}
			return docs[0], nil
		}
		return loadYAML(input)
	case ".toml":
		return loadTOML(input)
	case ".ndjson", ".jsonl":
		docs, err := loadNDJSON(input)
		return docs, err
	default:
		return LoadRoot(input)
	}
}

func loadJSON(input string) (any, error) {
	var data any
	if err := json.Unmarshal([]byte(input), &data); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return data, nil
}

func loadYAML(input string) (any, error) {
	var data any
	if err := yaml.Unmarshal([]byte(input), &data); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	return data, nil
}

func loadTOML(input string) (any, error) {
	var data map[string]any
	if err := toml.Unmarshal([]byte(input), &data); err != nil {
		return nil, fmt.Errorf("invalid TOML: %w", err)
	}
	return data, nil
}

func loadMultiDocYAML(input string) ([]any, error) {
	var docs []any
	dec := yaml.NewDecoder(strings.NewReader(input))
	for {
		var doc any
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("invalid multi-document YAML: %w", err)
		}
		if doc != nil {
			docs = append(docs, doc)
		}
	}
	if len(docs) == 0 {
		return nil, errors.New("no documents found in multi-document YAML")
	}
	return docs, nil
}

// loadNDJSON decodes one JSON value per line. Lines that are not JSON are
// kept as strings.
func loadNDJSON(input string) ([]any, error) {
	lines := strings.Split(input, "\n")
	out := make([]any, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var obj any
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			out = append(out, line)
			continue
		}
		out = append(out, obj)
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}

// isLikelyNDJSON requires more than one non-empty line and a majority that
// start like JSON values. YAML lists ("- a") do not qualify.
func isLikelyNDJSON(lines []string) bool {
	jsonCount, nonEmpty := 0, 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		nonEmpty++
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			jsonCount++
		}
	}
	return nonEmpty > 1 && jsonCount > nonEmpty/2
}

var (
	tomlSection  = regexp.MustCompile(`^\s*\[{1,2}(?:[a-zA-Z_][a-zA-Z0-9_-]*|"[^"]+"|'[^']+')+(?:\.(?:[a-zA-Z_][a-zA-Z0-9_-]*|"[^"]+"|'[^']+'))*\]{1,2}\s*$`)
	tomlKeyValue = regexp.MustCompile(`^\s*(?:[a-zA-Z_][a-zA-Z0-9_-]*|"[^"]+"|'[^']+')+(?:\.(?:[a-zA-Z_][a-zA-Z0-9_-]*|"[^"]+"|'[^']+'))*\s*=\s*.+$`)
)

// isLikelyTOML matches [section] headers, or a majority of key = value lines.
func isLikelyTOML(input string) bool {
	sections, pairs, nonEmpty := 0, 0, 0
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		nonEmpty++
		if tomlSection.MatchString(line) {
			sections++
		}
		if tomlKeyValue.MatchString(line) {
			pairs++
		}
	}
	return sections > 0 || (nonEmpty > 0 && pairs > nonEmpty/2)
}
