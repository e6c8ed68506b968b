package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"workhours/internal/domain/ledger"
)

const noProjects = "No projects logged."

type Row struct {
	EmployeeID   string
	EmployeeName string
	Date         time.Time
	ProjectLines string
	HoursWorked  float64
	Description  string
	Signature    string
}

type EmployeeSection struct {
	EmployeeID string
	Name       string
	Rows       []Row
	Total      float64
}

type Report struct {
	Start      time.Time
	End        time.Time
	Employees  []EmployeeSection
	GrandTotal float64
}

func (r Report) Empty() bool {
	return len(r.Employees) == 0
}

func (r Report) RowCount() int {
	n := 0
	for _, emp := range r.Employees {
		n += len(emp.Rows)
	}
	return n
}

// Aggregate keeps the records dated within [start, end], groups them by
// employee in first-seen order and totals hours per employee and overall.
// Employees without records in the window do not appear.
func Aggregate(start, end time.Time, records []ledger.Record) Report {
	out := Report{Start: start, End: end}
	index := map[string]int{}
	for _, rec := range records {
		if rec.Date.Before(start) || rec.Date.After(end) {
			continue
		}
		i, ok := index[rec.EmployeeID]
		if !ok {
			name := rec.EmployeeName
			if name == "" {
				name = rec.EmployeeID
			}
			out.Employees = append(out.Employees, EmployeeSection{EmployeeID: rec.EmployeeID, Name: name})
			i = len(out.Employees) - 1
			index[rec.EmployeeID] = i
		}
		section := &out.Employees[i]
		description := rec.Description
		if description == "" {
			description = "N/A"
		}
		section.Rows = append(section.Rows, Row{
			EmployeeID:   rec.EmployeeID,
			EmployeeName: section.Name,
			Date:         rec.Date,
			ProjectLines: ProjectLines(rec.Projects),
			HoursWorked:  rec.HoursWorked,
			Description:  description,
			Signature:    rec.Signature,
		})
		section.Total += rec.HoursWorked
		out.GrandTotal += rec.HoursWorked
	}
	return out
}

// ProjectLines renders one "- name (hours hrs) @ location" line per entry.
func ProjectLines(projects []ledger.ProjectEntry) string {
	if len(projects) == 0 {
		return noProjects
	}
	lines := make([]string, 0, len(projects))
	for i, p := range projects {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			name = fmt.Sprintf("Unnamed-%d", i)
		}
		hours := "N/A"
		if p.Hours != 0 {
			hours = strconv.FormatFloat(p.Hours, 'f', -1, 64)
		}
		location := p.Location
		if location == "" {
			location = "Unknown"
		}
		lines = append(lines, fmt.Sprintf("- %s (%s hrs) @ %s", name, hours, location))
	}
	return strings.Join(lines, "\n")
}
