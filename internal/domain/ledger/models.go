package ledger

import (
	"encoding/json"
	"time"
)

type ProjectEntry struct {
	Name        string  `json:"name"`
	Location    string  `json:"location"`
	Hours       float64 `json:"hours"`
	Description string  `json:"description"`
}

// Record is one employee's one day of logged work. HoursWorked and
// Description are always derived from Projects.
type Record struct {
	ID           int64          `json:"id"`
	EmployeeID   string         `json:"employeeId"`
	EmployeeName string         `json:"employeeName,omitempty"`
	Date         time.Time      `json:"-"`
	Projects     []ProjectEntry `json:"projects"`
	HoursWorked  float64        `json:"hoursWorked"`
	Description  string         `json:"description"`
	Signature    string         `json:"signature,omitempty"`
	Version      int            `json:"version"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// DateString renders the calendar date as YYYY-MM-DD.
func (r Record) DateString() string {
	return r.Date.Format("2006-01-02")
}

func (r Record) MarshalJSON() ([]byte, error) {
	type alias Record
	return json.Marshal(struct {
		alias
		Date string `json:"date"`
	}{alias: alias(r), Date: r.DateString()})
}

// EntryInput is a project entry as submitted by a client. Hours arrives as a
// number or as form text and is coerced with ParseHours.
type EntryInput struct {
	Name        string `json:"name"`
	Location    string `json:"location"`
	Hours       any    `json:"hours"`
	Description string `json:"description"`
}

type SubmitInput struct {
	EmployeeID string
	Date       time.Time
	Entries    []EntryInput
	// Signature is a data:image/...;base64 URL from the signature pad.
	Signature string
}

type SubmitResult struct {
	Record  Record `json:"record"`
	Created bool   `json:"created"`
}

type EditResult struct {
	Record  *Record `json:"record,omitempty"`
	Deleted bool    `json:"deleted"`
}

// EmployeeHours groups one employee's records for the admin overview.
type EmployeeHours struct {
	EmployeeID   string   `json:"employeeId"`
	EmployeeName string   `json:"employeeName"`
	TotalHours   float64  `json:"totalHours"`
	Records      []Record `json:"records"`
}
