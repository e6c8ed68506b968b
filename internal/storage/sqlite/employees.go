package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"workhours/internal/domain/employee"
	"workhours/internal/domain/ledger"
)

var (
	_ employee.StoreAPI        = (*EmployeeStore)(nil)
	_ ledger.EmployeeDirectory = (*EmployeeStore)(nil)
)

type EmployeeStore struct {
	db *sql.DB
}

const selectEmployee = `
    SELECT id, name,
           COALESCE(full_name, ''),
           dob,
           COALESCE(email, ''),
           COALESCE(pronouns, ''),
           COALESCE(department, ''),
           COALESCE(title, ''),
           COALESCE(tshirt_size, ''),
           COALESCE(emergency_contact_name, ''),
           COALESCE(emergency_contact_phone, ''),
           COALESCE(signature, ''),
           last_logged
    FROM employees`

func scanEmployee(row scanner) (employee.Employee, error) {
	var emp employee.Employee
	var dob, lastLogged sql.NullString
	if err := row.Scan(
		&emp.ID, &emp.Name, &emp.FullName, &dob, &emp.Email, &emp.Pronouns,
		&emp.Department, &emp.Title, &emp.TShirtSize, &emp.EmergencyContactName,
		&emp.EmergencyContactPhone, &emp.Signature, &lastLogged,
	); err != nil {
		return employee.Employee{}, err
	}
	if dob.Valid && dob.String != "" {
		parsed, err := time.Parse(dateLayout, dob.String)
		if err != nil {
			return employee.Employee{}, err
		}
		emp.DateOfBirth = &parsed
	}
	var err error
	emp.LastLogged, err = parseNullTime(lastLogged)
	return emp, err
}

func (s *EmployeeStore) Get(ctx context.Context, id string) (employee.Employee, bool, error) {
	emp, err := scanEmployee(s.db.QueryRowContext(ctx, selectEmployee+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return employee.Employee{}, false, nil
	}
	if err != nil {
		return employee.Employee{}, false, err
	}
	return emp, true, nil
}

func (s *EmployeeStore) List(ctx context.Context) ([]employee.Employee, error) {
	rows, err := s.db.QueryContext(ctx, selectEmployee+" ORDER BY COALESCE(NULLIF(full_name, ''), name), id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []employee.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, emp)
	}
	return out, rows.Err()
}

func (s *EmployeeStore) Ensure(ctx context.Context, emp employee.Employee) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, name, full_name, email)
		VALUES (?, ?, NULLIF(?, ''), NULLIF(?, ''))
		ON CONFLICT (id) DO NOTHING
	`, emp.ID, emp.Name, emp.FullName, emp.Email)
	return err
}

func (s *EmployeeStore) UpdateProfile(ctx context.Context, id string, p employee.Profile) (bool, error) {
	var dob any
	if p.DateOfBirth != nil {
		dob = p.DateOfBirth.Format(dateLayout)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE employees
		SET full_name = ?, dob = ?, email = ?, pronouns = ?, department = ?, title = ?,
		    tshirt_size = ?, emergency_contact_name = ?, emergency_contact_phone = ?
		WHERE id = ?
	`, p.FullName, dob, p.Email, p.Pronouns, p.Department, p.Title,
		p.TShirtSize, p.EmergencyContactName, p.EmergencyContactPhone, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *EmployeeStore) TouchLastLogged(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, "UPDATE employees SET last_logged = ? WHERE id = ?", formatTime(at), id)
	return err
}

func (s *EmployeeStore) Exists(ctx context.Context, id string) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM employees WHERE id = ?", id).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
