package ledger

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"workhours/internal/domain/audit"
	"workhours/internal/platform/clock"
	"workhours/internal/platform/filestore"
	"workhours/internal/platform/imaging"
	"workhours/internal/platform/metrics"
)

// maxAttempts bounds the re-read and re-merge loop run when a concurrent
// writer changed the same record.
const maxAttempts = 3

type SignatureStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

type Service struct {
	Store      StoreAPI
	Employees  EmployeeDirectory
	Signatures SignatureStore
	Audit      audit.Recorder
	Guard      Guard
	Clock      clock.Clock
}

func NewService(store StoreAPI, employees EmployeeDirectory, signatures SignatureStore, auditor audit.Recorder, guard Guard, clk clock.Clock) *Service {
	if auditor == nil {
		auditor = audit.LogOnly{}
	}
	if clk == nil {
		clk = clock.System{Location: guard.Location}
	}
	return &Service{
		Store:      store,
		Employees:  employees,
		Signatures: signatures,
		Audit:      auditor,
		Guard:      guard,
		Clock:      clk,
	}
}

// Submit records hours for one day. The first submission for an employee and
// date creates the record; later ones append their entries to it. Employees
// submit for themselves within the logging window; administrators may log for
// any existing employee at any time.
func (s *Service) Submit(ctx context.Context, actor Actor, in SubmitInput) (SubmitResult, error) {
	if !actor.Authenticated() {
		return SubmitResult{}, ErrNotAuthenticated
	}

	target := actor.EmployeeID
	onBehalf := false
	if in.EmployeeID != "" && in.EmployeeID != actor.EmployeeID {
		if !actor.IsAdmin() {
			return SubmitResult{}, ErrForbidden
		}
		target = in.EmployeeID
		onBehalf = true
	}
	if in.Date.IsZero() {
		return SubmitResult{}, &ValidationError{Field: "date", Message: "date is required"}
	}
	date := clock.DateOnly(in.Date)

	if !onBehalf {
		if err := s.Guard.Check(date, s.Clock.Now()); err != nil {
			metrics.RecordSubmission(metrics.SubmissionRejected)
			return SubmitResult{}, err
		}
	}

	entries, err := NormalizeSubmission(in.Entries)
	if err != nil {
		metrics.RecordSubmission(metrics.SubmissionRejected)
		return SubmitResult{}, err
	}

	var signature []byte
	var signatureType string
	if in.Signature != "" {
		signature, signatureType, err = imaging.DecodeDataURL(in.Signature)
		if err != nil {
			return SubmitResult{}, &ValidationError{Field: "signature", Message: "signature must be a png, jpg or gif data url"}
		}
	}

	exists, err := s.Employees.Exists(ctx, target)
	if err != nil {
		return SubmitResult{}, dependency("find employee", err)
	}
	if !exists {
		return SubmitResult{}, ErrEmployeeNotFound
	}

	signatureKey := ""
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		existing, found, err := s.Store.FindByEmployeeDate(ctx, target, date)
		if err != nil {
			return SubmitResult{}, dependency("find work hours", err)
		}

		if !found {
			if signature != nil && signatureKey == "" {
				signatureKey, err = s.storeSignature(ctx, target, signature, signatureType)
				if err != nil {
					return SubmitResult{}, err
				}
			}
			rec := Record{EmployeeID: target, Date: date, Signature: signatureKey}
			rec.ApplyProjects(entries)
			created, err := s.Store.Create(ctx, rec)
			if err != nil {
				// The signature only belongs to a newly created record.
				s.discardSignature(ctx, signatureKey)
				signatureKey = ""
			}
			if errors.Is(err, ErrConflict) {
				slog.Info("work hours created concurrently, merging", "employeeId", target, "date", date.Format("2006-01-02"), "attempt", attempt)
				continue
			}
			if err != nil {
				return SubmitResult{}, dependency("create work hours", err)
			}
			s.afterSubmit(ctx, target, metrics.SubmissionCreated)
			return SubmitResult{Record: created, Created: true}, nil
		}

		existing.ApplyProjects(Merge(existing.Projects, entries))
		updated, err := s.Store.Update(ctx, existing)
		if errors.Is(err, ErrConflict) {
			slog.Info("work hours changed concurrently, retrying merge", "recordId", existing.ID, "attempt", attempt)
			continue
		}
		if err != nil {
			return SubmitResult{}, dependency("update work hours", err)
		}
		s.afterSubmit(ctx, target, metrics.SubmissionMerged)
		return SubmitResult{Record: updated}, nil
	}
	return SubmitResult{}, ErrConflict
}

func (s *Service) storeSignature(ctx context.Context, employeeID string, data []byte, contentType string) (string, error) {
	if s.Signatures == nil {
		return "", dependency("store signature", errors.New("no signature store configured"))
	}
	_, ext, err := imaging.Detect(data)
	if err != nil {
		return "", &ValidationError{Field: "signature", Message: err.Error()}
	}
	key := filestore.NewKey("signatures", employeeID, ext)
	if err := s.Signatures.Put(ctx, key, data, contentType); err != nil {
		return "", dependency("store signature", err)
	}
	return key, nil
}

func (s *Service) discardSignature(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.Signatures.Delete(context.WithoutCancel(ctx), key); err != nil {
		slog.Warn("orphaned signature not removed", "key", key, "err", err)
	}
}

func (s *Service) afterSubmit(ctx context.Context, employeeID, outcome string) {
	metrics.RecordSubmission(outcome)
	if err := s.Employees.TouchLastLogged(ctx, employeeID, s.Clock.Now()); err != nil {
		slog.Warn("update last logged failed", "employeeId", employeeID, "err", err)
	}
}

// Get returns a record the actor may see. Absent and inaccessible records
// look the same to non-administrators.
func (s *Service) Get(ctx context.Context, actor Actor, id int64) (Record, error) {
	if !actor.Authenticated() {
		return Record{}, ErrNotAuthenticated
	}
	rec, found, err := s.Store.FindByID(ctx, id)
	if err != nil {
		return Record{}, dependency("find work hours", err)
	}
	if !found {
		return Record{}, notFoundFor(actor)
	}
	if !CanAccess(actor, rec.EmployeeID) {
		return Record{}, ErrForbidden
	}
	return rec, nil
}

// Edit replaces a record's projects wholesale. Blank-named entries are
// dropped; an empty result deletes the record. A non-zero expectedVersion must
// match the stored version.
func (s *Service) Edit(ctx context.Context, actor Actor, id int64, inputs []EntryInput, expectedVersion int) (EditResult, error) {
	projects := NormalizeEdit(inputs)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		rec, err := s.Get(ctx, actor, id)
		if err != nil {
			return EditResult{}, err
		}
		if expectedVersion != 0 && rec.Version != expectedVersion {
			return EditResult{}, ErrConflict
		}

		if len(projects) == 0 {
			err := s.Store.DeleteVersion(ctx, id, rec.Version)
			if errors.Is(err, ErrConflict) {
				if expectedVersion != 0 {
					return EditResult{}, ErrConflict
				}
				continue
			}
			if err != nil {
				return EditResult{}, dependency("delete work hours", err)
			}
			s.record(ctx, actor, audit.ActionHoursDelete, id, rec, nil)
			return EditResult{Deleted: true}, nil
		}

		before := rec
		rec.ApplyProjects(projects)
		updated, err := s.Store.Update(ctx, rec)
		if errors.Is(err, ErrConflict) {
			if expectedVersion != 0 {
				return EditResult{}, ErrConflict
			}
			continue
		}
		if err != nil {
			return EditResult{}, dependency("update work hours", err)
		}
		s.record(ctx, actor, audit.ActionHoursEdit, id, before, updated)
		return EditResult{Record: &updated}, nil
	}
	return EditResult{}, ErrConflict
}

func (s *Service) Delete(ctx context.Context, actor Actor, id int64) error {
	rec, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	deleted, err := s.Store.Delete(ctx, id)
	if err != nil {
		return dependency("delete work hours", err)
	}
	if !deleted {
		return notFoundFor(actor)
	}
	s.record(ctx, actor, audit.ActionHoursDelete, id, rec, nil)
	return nil
}

// List pages through one employee's records, newest date first. Non-admins
// may only list their own.
func (s *Service) List(ctx context.Context, actor Actor, employeeID string, page, pageSize int) ([]Record, int, error) {
	if !actor.Authenticated() {
		return nil, 0, ErrNotAuthenticated
	}
	if employeeID == "" {
		employeeID = actor.EmployeeID
	}
	if !CanAccess(actor, employeeID) {
		return nil, 0, ErrForbidden
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	total, err := s.Store.CountByEmployee(ctx, employeeID)
	if err != nil {
		return nil, 0, dependency("count work hours", err)
	}
	records, err := s.Store.ListByEmployee(ctx, employeeID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, dependency("list work hours", err)
	}
	return records, total, nil
}

// AdminListAll returns every record grouped by employee.
func (s *Service) AdminListAll(ctx context.Context, actor Actor) ([]EmployeeHours, error) {
	if !actor.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	records, err := s.Store.ListAll(ctx)
	if err != nil {
		return nil, dependency("list work hours", err)
	}
	return GroupByEmployee(records), nil
}

// GroupByEmployee keeps the first-seen employee order of records.
func GroupByEmployee(records []Record) []EmployeeHours {
	out := []EmployeeHours{}
	index := map[string]int{}
	for _, rec := range records {
		i, ok := index[rec.EmployeeID]
		if !ok {
			name := rec.EmployeeName
			if name == "" {
				name = rec.EmployeeID
			}
			out = append(out, EmployeeHours{EmployeeID: rec.EmployeeID, EmployeeName: name})
			i = len(out) - 1
			index[rec.EmployeeID] = i
		}
		out[i].Records = append(out[i].Records, rec)
		out[i].TotalHours += rec.HoursWorked
	}
	return out
}

func (s *Service) DeleteAll(ctx context.Context, actor Actor) (int64, error) {
	if !actor.Authenticated() {
		return 0, ErrNotAuthenticated
	}
	if !actor.IsAdmin() {
		return 0, ErrForbidden
	}
	count, err := s.Store.DeleteAll(ctx)
	if err != nil {
		return 0, dependency("delete all work hours", err)
	}
	s.record(ctx, actor, audit.ActionHoursDeleteAll, 0, nil, map[string]int64{"deleted": count})
	return count, nil
}

type RepairSummary struct {
	Scanned     int     `json:"scanned"`
	Rewritten   int     `json:"rewritten"`
	Undecodable []int64 `json:"undecodable"`
}

// RepairProjects rewrites every stored projects value in the canonical
// single-level encoding and recomputes the derived fields. Rows that cannot
// be decoded are reported and left untouched.
func (s *Service) RepairProjects(ctx context.Context) (RepairSummary, error) {
	rows, err := s.Store.ListRaw(ctx)
	if err != nil {
		return RepairSummary{}, dependency("list work hours", err)
	}
	summary := RepairSummary{Scanned: len(rows), Undecodable: []int64{}}
	for _, row := range rows {
		entries, err := ParseProjects(row.Projects)
		if err != nil {
			slog.Warn("repair skipped undecodable projects", "recordId", row.ID, "err", err)
			summary.Undecodable = append(summary.Undecodable, row.ID)
			continue
		}
		canonical := EncodeProjects(entries)
		hours, description := Derive(entries)
		if string(canonical) == string(row.Projects) && hours == row.HoursWorked && description == row.Description {
			continue
		}
		if err := s.Store.RewriteProjects(ctx, row.ID, canonical, hours, description); err != nil {
			return summary, dependency("rewrite work hours", err)
		}
		summary.Rewritten++
		slog.Info("repaired projects", "recordId", row.ID)
	}
	s.record(ctx, Actor{EmployeeID: "system"}, audit.ActionHoursRepair, 0, nil, summary)
	return summary, nil
}

func (s *Service) record(ctx context.Context, actor Actor, action string, id int64, before, after any) {
	entityID := ""
	if id != 0 {
		entityID = strconv.FormatInt(id, 10)
	}
	err := s.Audit.Record(ctx, audit.Entry{
		ActorID:    actor.EmployeeID,
		Action:     action,
		EntityType: audit.EntityWorkHours,
		EntityID:   entityID,
		Before:     before,
		After:      after,
	})
	if err != nil {
		slog.Warn("audit record failed", "action", action, "entityId", entityID, "err", err)
	}
}

func notFoundFor(actor Actor) error {
	if actor.IsAdmin() {
		return ErrNotFound
	}
	return ErrForbidden
}
