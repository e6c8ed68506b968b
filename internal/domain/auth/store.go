package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"workhours/internal/platform/querier"
)

type User struct {
	Username     string
	PasswordHash string
	Role         string
	EmployeeID   string
	MFAEnabled   bool
	MFASecret    []byte
}

type UserStore interface {
	FindUser(ctx context.Context, username string) (User, bool, error)
	CreateUser(ctx context.Context, user User) error
	SetMFA(ctx context.Context, username string, secret []byte, enabled bool) error
}

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) FindUser(ctx context.Context, username string) (User, bool, error) {
	var out User
	err := s.DB.QueryRow(ctx, `
    SELECT username, password_hash, role, employee_id, mfa_enabled, mfa_secret_enc
    FROM users
    WHERE username = $1
  `, username).Scan(&out.Username, &out.PasswordHash, &out.Role, &out.EmployeeID, &out.MFAEnabled, &out.MFASecret)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, err
	}
	return out, true, nil
}

func (s *Store) CreateUser(ctx context.Context, user User) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO users (username, password_hash, role, employee_id)
    VALUES ($1,$2,$3,$4)
  `, user.Username, user.PasswordHash, user.Role, user.EmployeeID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrUserExists
	}
	return err
}

func (s *Store) SetMFA(ctx context.Context, username string, secret []byte, enabled bool) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE users SET mfa_secret_enc = $1, mfa_enabled = $2 WHERE username = $3
  `, secret, enabled, username)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMFANotSetUp
	}
	return nil
}
