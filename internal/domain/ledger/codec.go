package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"workhours/internal/platform/metrics"
)

// maxUnwrap bounds how many layers of JSON string wrapping are peeled off a
// stored projects value. Two covers the double-encoding written by the old
// application.
const maxUnwrap = 2

var errMalformedProjects = errors.New("malformed projects value")

// EncodeProjects always produces a single-level JSON array.
func EncodeProjects(entries []ProjectEntry) []byte {
	if len(entries) == 0 {
		return []byte("[]")
	}
	out, err := json.Marshal(entries)
	if err != nil {
		return []byte("[]")
	}
	return out
}

// ParseProjects decodes a stored projects value: an array, a single object,
// null or empty, or any of those wrapped in up to two JSON strings.
func ParseProjects(raw []byte) ([]ProjectEntry, error) {
	current := bytes.TrimSpace(raw)
	for level := 0; ; level++ {
		if len(current) == 0 || bytes.Equal(current, []byte("null")) {
			return []ProjectEntry{}, nil
		}
		switch current[0] {
		case '[':
			return parseArray(current)
		case '{':
			entry, err := parseEntry(current)
			if err != nil {
				return nil, err
			}
			return []ProjectEntry{entry}, nil
		case '"':
			if level >= maxUnwrap {
				return nil, fmt.Errorf("%w: nested deeper than %d levels", errMalformedProjects, maxUnwrap)
			}
			var inner string
			if err := json.Unmarshal(current, &inner); err != nil {
				return nil, fmt.Errorf("%w: %v", errMalformedProjects, err)
			}
			current = bytes.TrimSpace([]byte(inner))
		default:
			return nil, errMalformedProjects
		}
	}
}

func parseArray(raw []byte) ([]ProjectEntry, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedProjects, err)
	}
	out := make([]ProjectEntry, 0, len(elements))
	for _, element := range elements {
		element = bytes.TrimSpace(element)
		if len(element) == 0 || bytes.Equal(element, []byte("null")) {
			continue
		}
		// Some rows carry each entry as its own JSON string.
		if element[0] == '"' {
			var inner string
			if err := json.Unmarshal(element, &inner); err != nil {
				return nil, fmt.Errorf("%w: %v", errMalformedProjects, err)
			}
			element = bytes.TrimSpace([]byte(inner))
		}
		entry, err := parseEntry(element)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

func parseEntry(raw []byte) (ProjectEntry, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ProjectEntry{}, fmt.Errorf("%w: %v", errMalformedProjects, err)
	}
	return ProjectEntry{
		Name:        stringField(fields["name"]),
		Location:    stringField(fields["location"]),
		Hours:       ParseHours(fields["hours"]),
		Description: stringField(fields["description"]),
	}, nil
}

func stringField(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return formatHours(v)
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(v)
	}
}

// DecodeStored never fails: a value that cannot be decoded is logged against
// its record and read as an empty list.
func DecodeStored(recordID int64, raw []byte) []ProjectEntry {
	entries, err := ParseProjects(raw)
	if err != nil {
		metrics.RecordProjectDecodeFailure()
		slog.Warn("stored projects could not be decoded", "recordId", recordID, "err", err)
		return []ProjectEntry{}
	}
	return entries
}
