package inspection

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"workhours/internal/domain/ledger"
	"workhours/internal/platform/clock"
	"workhours/internal/platform/email"
	"workhours/internal/platform/imaging"
)

const reportBody = "Attached is the requested service report along with uploaded pictures."

var photoExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true}

// Upload is one file posted with a form.
type Upload struct {
	Field    string
	Filename string
	Data     []byte
}

type Result struct {
	TemplateID  string `json:"templateId"`
	Subject     string `json:"subject"`
	Attachments int    `json:"attachments"`
}

type Service struct {
	Catalog   *Catalog
	Mailer    email.Mailer
	From      string
	Recipient string
	Clock     clock.Clock
}

func NewService(catalog *Catalog, mailer email.Mailer, from, recipient string, clk clock.Clock) *Service {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{Catalog: catalog, Mailer: mailer, From: from, Recipient: recipient, Clock: clk}
}

func (s *Service) Templates() []Template {
	return s.Catalog.List()
}

// Submit validates a posted form, renders it to PDF and emails the PDF with
// any photos to the report recipient. Nothing is sent unless every step
// before delivery succeeded.
func (s *Service) Submit(ctx context.Context, actor ledger.Actor, templateID string, values map[string][]string, uploads []Upload) (Result, error) {
	if !actor.Authenticated() {
		return Result{}, ledger.ErrNotAuthenticated
	}
	tpl, err := s.Catalog.Get(templateID)
	if err != nil {
		return Result{}, err
	}

	form, err := s.buildForm(tpl, values)
	if err != nil {
		return Result{}, err
	}
	form.SubmittedBy = actor.EmployeeID

	attachments, err := photoAttachments(tpl, uploads)
	if err != nil {
		return Result{}, err
	}
	for _, att := range attachments {
		form.PhotoNames = append(form.PhotoNames, att.Filename)
	}

	pdf, err := RenderPDF(form)
	if err != nil {
		return Result{}, &ledger.DependencyError{Op: "render inspection pdf", Err: err}
	}
	if s.Recipient == "" {
		return Result{}, &ledger.DependencyError{Op: "send inspection report", Err: fmt.Errorf("no report recipient configured")}
	}

	name := strings.NewReplacer("/", "_", "\\", "_").Replace(tpl.Subject)
	msg := email.Message{
		From:    s.From,
		To:      []string{s.Recipient},
		Subject: tpl.Subject,
		Body:    reportBody,
		Attachments: append([]email.Attachment{{
			Filename:    name + ".pdf",
			ContentType: "application/pdf",
			Data:        pdf,
		}}, attachments...),
	}
	if err := s.Mailer.Send(ctx, msg); err != nil {
		return Result{}, &ledger.DependencyError{Op: "send inspection report", Err: err}
	}
	slog.Info("inspection report sent", "template", tpl.ID, "employeeId", actor.EmployeeID, "attachments", len(msg.Attachments))
	return Result{TemplateID: tpl.ID, Subject: tpl.Subject, Attachments: len(msg.Attachments)}, nil
}

func (s *Service) buildForm(tpl Template, values map[string][]string) (Form, error) {
	form := Form{
		Template:    tpl,
		Values:      map[string]string{},
		Checked:     map[string]bool{},
		SubmittedAt: s.Clock.Now(),
	}
	for _, field := range tpl.Fields {
		value := strings.TrimSpace(first(values[field.Name]))
		if field.Required && value == "" {
			return Form{}, &ledger.ValidationError{Field: field.Name, Message: field.Label + " is required"}
		}
		form.Values[field.Name] = value
	}
	boxes := append([]Checkbox{}, tpl.Checkboxes...)
	for _, section := range tpl.Sections {
		boxes = append(boxes, section.Checkboxes()...)
	}
	for _, box := range boxes {
		form.Checked[box.Name] = Checked(first(values[box.Name]))
	}
	return form, nil
}

// Checked reports whether a posted checkbox value means ticked. Browsers send
// "on" for a ticked box without an explicit value.
func Checked(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// photoAttachments validates uploads and returns them in the template's slot
// order, whatever order they arrived in.
func photoAttachments(tpl Template, uploads []Upload) ([]email.Attachment, error) {
	bySlot := map[string]email.Attachment{}
	seen := map[string]bool{}
	for _, up := range uploads {
		if len(up.Data) == 0 {
			continue
		}
		if !tpl.AllowsPhoto(up.Field) {
			return nil, &ledger.ValidationError{Field: up.Field, Message: "this form does not accept that upload"}
		}
		if seen[up.Field] {
			return nil, &ledger.ValidationError{Field: up.Field, Message: "only one photo per slot"}
		}
		seen[up.Field] = true

		ext := strings.ToLower(filepath.Ext(up.Filename))
		if !photoExtensions[ext] {
			return nil, &ledger.ValidationError{Field: up.Field, Message: "only image files are allowed (jpg, jpeg, png, gif)"}
		}
		contentType, _, err := imaging.Detect(up.Data)
		if err != nil {
			return nil, &ledger.ValidationError{Field: up.Field, Message: "only image files are allowed (jpg, jpeg, png, gif)"}
		}
		filename := filepath.Base(up.Filename)
		if filename == "." || filename == string(filepath.Separator) {
			filename = up.Field + ext
		}
		bySlot[up.Field] = email.Attachment{
			Filename:    up.Field + "-" + filename,
			ContentType: contentType,
			Data:        up.Data,
		}
	}
	var out []email.Attachment
	for _, slot := range tpl.Photos {
		if att, ok := bySlot[slot]; ok {
			out = append(out, att)
		}
	}
	return out, nil
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
