package ledger

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const defaultEntryDescription = "N/A"

var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// ParseHours coerces a submitted hours value to a non-negative number. Text is
// read up to the first non-numeric character ("7.5h" is 7.5); anything
// unreadable, negative or non-finite becomes 0.
func ParseHours(value any) float64 {
	var out float64
	switch v := value.(type) {
	case float64:
		out = v
	case float32:
		out = float64(v)
	case int:
		out = float64(v)
	case int64:
		out = float64(v)
	case json.Number:
		out, _ = strconv.ParseFloat(leadingNumber.FindString(string(v)), 64)
	case string:
		out, _ = strconv.ParseFloat(leadingNumber.FindString(strings.TrimSpace(v)), 64)
	default:
		return 0
	}
	if math.IsNaN(out) || math.IsInf(out, 0) || out < 0 {
		return 0
	}
	return out
}

// Derive computes the total hours and the combined "name: description"
// summary of projects.
func Derive(projects []ProjectEntry) (float64, string) {
	total := 0.0
	parts := make([]string, 0, len(projects))
	for _, p := range projects {
		total += p.Hours
		parts = append(parts, p.Name+": "+p.Description)
	}
	return total, strings.Join(parts, "; ")
}

// Merge appends incoming after existing, keeping both orders.
func Merge(existing, incoming []ProjectEntry) []ProjectEntry {
	out := make([]ProjectEntry, 0, len(existing)+len(incoming))
	out = append(out, existing...)
	return append(out, incoming...)
}

// FilterNamed drops entries whose name is blank.
func FilterNamed(entries []ProjectEntry) []ProjectEntry {
	out := make([]ProjectEntry, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.Name) == "" {
			continue
		}
		out = append(out, e)
	}
	return out
}

// ApplyProjects replaces the record's projects and recomputes the derived fields.
func (r *Record) ApplyProjects(projects []ProjectEntry) {
	r.Projects = projects
	r.HoursWorked, r.Description = Derive(projects)
}

// NormalizeSubmission turns client input into project entries. Every entry
// must be named; hours are coerced; a missing description reads "N/A".
func NormalizeSubmission(inputs []EntryInput) ([]ProjectEntry, error) {
	if len(inputs) == 0 {
		return nil, &ValidationError{Field: "entries", Message: "at least one project entry is required"}
	}
	out := make([]ProjectEntry, 0, len(inputs))
	for i, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return nil, &ValidationError{Field: "entries[" + strconv.Itoa(i) + "].name", Message: "project name is required"}
		}
		description := strings.TrimSpace(in.Description)
		if description == "" {
			description = defaultEntryDescription
		}
		out = append(out, ProjectEntry{
			Name:        name,
			Location:    strings.TrimSpace(in.Location),
			Hours:       ParseHours(in.Hours),
			Description: description,
		})
	}
	return out, nil
}

// NormalizeEdit prepares a replacement list: blank-named entries are dropped
// and the description defaults to empty.
func NormalizeEdit(inputs []EntryInput) []ProjectEntry {
	out := make([]ProjectEntry, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, ProjectEntry{
			Name:        strings.TrimSpace(in.Name),
			Location:    strings.TrimSpace(in.Location),
			Hours:       ParseHours(in.Hours),
			Description: strings.TrimSpace(in.Description),
		})
	}
	return FilterNamed(out)
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}
