package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"workhours/internal/domain/ledger"
	"workhours/internal/platform/clock"
	"workhours/internal/platform/email"
	"workhours/internal/platform/imaging"
	"workhours/internal/platform/metrics"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	subjectPrefix   = "Weekly Work Hours Report"
	emptyWeekBody   = "No work hours were logged this week."
	attachedBody    = "Weekly report attached."

	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerCLI      = "cli"
)

type RecordSource interface {
	ListBetween(ctx context.Context, start, end time.Time) ([]ledger.Record, error)
}

type SignatureSource interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

type Service struct {
	Records    RecordSource
	Signatures SignatureSource
	Mailer     email.Mailer
	From       string
	Recipient  string
	Location   *time.Location
	Clock      clock.Clock
}

func NewService(records RecordSource, signatures SignatureSource, mailer email.Mailer, from, recipient string, loc *time.Location, clk clock.Clock) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if clk == nil {
		clk = clock.System{Location: loc}
	}
	return &Service{
		Records:    records,
		Signatures: signatures,
		Mailer:     mailer,
		From:       from,
		Recipient:  recipient,
		Location:   loc,
		Clock:      clk,
	}
}

// Workbook is a rendered weekly report.
type Workbook struct {
	Label    string
	Filename string
	Report   Report
	Data     []byte
}

// Outcome summarises one weekly send.
type Outcome struct {
	Label     string    `json:"label"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Employees int       `json:"employees"`
	Rows      int       `json:"rows"`
	Hours     float64   `json:"totalHours"`
	Sent      bool      `json:"sent"`
	Empty     bool      `json:"empty"`
}

// Build aggregates the records dated start..end and renders the workbook.
func (s *Service) Build(ctx context.Context, start, end time.Time) (Workbook, error) {
	start, end = clock.DateOnly(start), clock.DateOnly(end)
	records, err := s.Records.ListBetween(ctx, start, end)
	if err != nil {
		return Workbook{}, &ledger.DependencyError{Op: "list weekly records", Err: err}
	}
	rep := Aggregate(start, end, records)
	label := Label(start, end)

	data, err := BuildWorkbook(rep, s.thumbnails(ctx, rep))
	if err != nil {
		return Workbook{}, &ledger.DependencyError{Op: "render workbook", Err: err}
	}
	return Workbook{Label: label, Filename: label + ".xlsx", Report: rep, Data: data}, nil
}

// BuildWeekOf renders the Monday..Friday week that contains day.
func (s *Service) BuildWeekOf(ctx context.Context, day time.Time) (Workbook, error) {
	start, end := WindowContaining(day)
	return s.Build(ctx, start, end)
}

// SendWeekly emails the report for the previous working week.
func (s *Service) SendWeekly(ctx context.Context, trigger string) (Outcome, error) {
	start, end := WeeklyWindow(s.Clock.Now(), s.Location)
	return s.send(ctx, trigger, start, end)
}

// SendWeekOf emails the report for the week containing day.
func (s *Service) SendWeekOf(ctx context.Context, trigger string, day time.Time) (Outcome, error) {
	start, end := WindowContaining(day)
	return s.send(ctx, trigger, start, end)
}

func (s *Service) send(ctx context.Context, trigger string, start, end time.Time) (Outcome, error) {
	outcome, err := s.deliver(ctx, start, end)
	status := "sent"
	switch {
	case err != nil:
		status = "failed"
		slog.Error("weekly report failed", "trigger", trigger, "label", outcome.Label, "err", err)
	case outcome.Empty:
		status = "empty"
	}
	metrics.RecordReportRun(trigger, status)
	if err == nil {
		slog.Info("weekly report sent", "trigger", trigger, "label", outcome.Label, "employees", outcome.Employees, "rows", outcome.Rows)
	}
	return outcome, err
}

func (s *Service) deliver(ctx context.Context, start, end time.Time) (Outcome, error) {
	if s.Recipient == "" {
		return Outcome{Label: Label(start, end)}, &ledger.DependencyError{Op: "send weekly report", Err: errors.New("no report recipient configured")}
	}

	wb, err := s.Build(ctx, start, end)
	if err != nil {
		return Outcome{Label: Label(start, end)}, err
	}
	outcome := Outcome{
		Label:     wb.Label,
		Start:     wb.Report.Start,
		End:       wb.Report.End,
		Employees: len(wb.Report.Employees),
		Rows:      wb.Report.RowCount(),
		Hours:     wb.Report.GrandTotal,
		Empty:     wb.Report.Empty(),
	}

	msg := email.Message{
		From:    s.From,
		To:      []string{s.Recipient},
		Subject: subjectPrefix,
		Body:    emptyWeekBody,
	}
	if !outcome.Empty {
		msg.Subject = fmt.Sprintf("%s: %s", subjectPrefix, wb.Label)
		msg.Body = attachedBody
		msg.Attachments = []email.Attachment{{Filename: wb.Filename, ContentType: xlsxContentType, Data: wb.Data}}
	}
	if err := s.Mailer.Send(ctx, msg); err != nil {
		return outcome, &ledger.DependencyError{Op: "send weekly report", Err: err}
	}
	outcome.Sent = true
	return outcome, nil
}

// thumbnails loads each distinct signature once. A signature that cannot be
// read or decoded is left out and the row falls back to text.
func (s *Service) thumbnails(ctx context.Context, rep Report) map[string][]byte {
	out := map[string][]byte{}
	if s.Signatures == nil {
		return out
	}
	seen := map[string]bool{}
	for _, emp := range rep.Employees {
		for _, row := range emp.Rows {
			key := row.Signature
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			raw, err := s.Signatures.Get(ctx, key)
			if err != nil {
				slog.Warn("signature unavailable for report", "key", key, "employeeId", row.EmployeeID, "err", err)
				continue
			}
			thumb, err := imaging.Thumbnail(raw, thumbnailWidth, thumbnailHeight)
			if err != nil {
				slog.Warn("signature not renderable", "key", key, "employeeId", row.EmployeeID, "err", err)
				continue
			}
			out[key] = thumb
		}
	}
	return out
}
