package server

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"workhours/internal/domain/auth"
	"workhours/internal/domain/employee"
)

// seedAdmin makes sure the configured administrator can log in. An existing
// user of that name is left as it is.
func (a *App) seedAdmin(ctx context.Context) error {
	username := strings.TrimSpace(a.Config.SeedAdminUsername)
	if username == "" || a.Config.SeedAdminPassword == "" {
		return nil
	}
	if err := a.Employees.Provision(ctx, employee.Employee{ID: username, Name: username, FullName: username}); err != nil {
		return err
	}
	_, err := a.Auth.CreateUser(ctx, auth.CreateUserInput{
		Username:   username,
		Password:   a.Config.SeedAdminPassword,
		Role:       auth.RoleAdmin,
		EmployeeID: username,
	})
	if errors.Is(err, auth.ErrUserExists) {
		return nil
	}
	if err != nil {
		return err
	}
	slog.Info("seeded admin user", "username", username)
	return nil
}
