package employee

import (
	"context"
	"log/slog"

	"workhours/internal/domain/audit"
	"workhours/internal/domain/ledger"
)

type Service struct {
	Store StoreAPI
	Audit audit.Recorder
}

func NewService(store StoreAPI, auditor audit.Recorder) *Service {
	if auditor == nil {
		auditor = audit.LogOnly{}
	}
	return &Service{Store: store, Audit: auditor}
}

// Get applies the same ownership rule as ledger records: administrators see
// every profile, employees only their own.
func (s *Service) Get(ctx context.Context, actor ledger.Actor, id string) (Employee, error) {
	if !actor.Authenticated() {
		return Employee{}, ledger.ErrNotAuthenticated
	}
	if !ledger.CanAccess(actor, id) {
		return Employee{}, ledger.ErrForbidden
	}
	emp, found, err := s.Store.Get(ctx, id)
	if err != nil {
		return Employee{}, &ledger.DependencyError{Op: "find employee", Err: err}
	}
	if !found {
		return Employee{}, ErrNotFound
	}
	return emp, nil
}

func (s *Service) List(ctx context.Context, actor ledger.Actor) ([]Employee, error) {
	if !actor.Authenticated() {
		return nil, ledger.ErrNotAuthenticated
	}
	if !actor.IsAdmin() {
		return nil, ledger.ErrForbidden
	}
	list, err := s.Store.List(ctx)
	if err != nil {
		return nil, &ledger.DependencyError{Op: "list employees", Err: err}
	}
	if list == nil {
		list = []Employee{}
	}
	return list, nil
}

func (s *Service) UpdateProfile(ctx context.Context, actor ledger.Actor, id string, profile Profile) (Employee, error) {
	before, err := s.Get(ctx, actor, id)
	if err != nil {
		return Employee{}, err
	}
	updated, err := s.Store.UpdateProfile(ctx, id, profile)
	if err != nil {
		return Employee{}, &ledger.DependencyError{Op: "update employee", Err: err}
	}
	if !updated {
		return Employee{}, ErrNotFound
	}
	after, err := s.Get(ctx, actor, id)
	if err != nil {
		return Employee{}, err
	}
	if err := s.Audit.Record(ctx, audit.Entry{
		ActorID:    actor.EmployeeID,
		Action:     audit.ActionProfileUpdate,
		EntityType: audit.EntityEmployee,
		EntityID:   id,
		Before:     before,
		After:      after,
	}); err != nil {
		slog.Warn("audit record failed", "action", audit.ActionProfileUpdate, "employeeId", id, "err", err)
	}
	return after, nil
}

// Provision creates the employee row if it does not exist yet.
func (s *Service) Provision(ctx context.Context, emp Employee) error {
	if emp.Name == "" {
		emp.Name = emp.ID
	}
	return s.Store.Ensure(ctx, emp)
}
