package employee

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"workhours/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
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

func scanEmployee(row pgx.Row) (Employee, error) {
	var emp Employee
	err := row.Scan(
		&emp.ID, &emp.Name, &emp.FullName, &emp.DateOfBirth, &emp.Email, &emp.Pronouns,
		&emp.Department, &emp.Title, &emp.TShirtSize, &emp.EmergencyContactName,
		&emp.EmergencyContactPhone, &emp.Signature, &emp.LastLogged,
	)
	return emp, err
}

func (s *Store) Get(ctx context.Context, id string) (Employee, bool, error) {
	emp, err := scanEmployee(s.DB.QueryRow(ctx, selectEmployee+" WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, false, nil
	}
	if err != nil {
		return Employee{}, false, err
	}
	return emp, true, nil
}

func (s *Store) List(ctx context.Context) ([]Employee, error) {
	rows, err := s.DB.Query(ctx, selectEmployee+" ORDER BY COALESCE(NULLIF(full_name, ''), name), id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, emp)
	}
	return out, rows.Err()
}

func (s *Store) Ensure(ctx context.Context, emp Employee) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO employees (id, name, full_name, email)
    VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
    ON CONFLICT (id) DO NOTHING
  `, emp.ID, emp.Name, emp.FullName, emp.Email)
	return err
}

func (s *Store) UpdateProfile(ctx context.Context, id string, p Profile) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE employees
    SET full_name = $1, dob = $2, email = $3, pronouns = $4, department = $5, title = $6,
        tshirt_size = $7, emergency_contact_name = $8, emergency_contact_phone = $9
    WHERE id = $10
  `, p.FullName, p.DateOfBirth, p.Email, p.Pronouns, p.Department, p.Title,
		p.TShirtSize, p.EmergencyContactName, p.EmergencyContactPhone, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) TouchLastLogged(ctx context.Context, id string, at time.Time) error {
	_, err := s.DB.Exec(ctx, "UPDATE employees SET last_logged = $1 WHERE id = $2", at, id)
	return err
}

func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var count int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM employees WHERE id = $1", id).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
