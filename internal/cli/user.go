package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"workhours/internal/domain/auth"
	"workhours/internal/domain/employee"
	"workhours/internal/platform/config"
)

func newUserCommand(load func() config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage logins",
	}
	cmd.AddCommand(newUserCreateCommand(load))
	return cmd
}

func newUserCreateCommand(load func() config.Config) *cobra.Command {
	var username, password, role, employeeID, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a login and the employee it records hours for",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			username = strings.TrimSpace(username)
			if username == "" || password == "" {
				return errors.New("--username and --password are required")
			}
			if !auth.ValidRole(role) {
				return auth.ErrInvalidRole
			}
			if employeeID == "" {
				employeeID = username
			}

			ctx := cmd.Context()
			app, err := openApp(ctx, load)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Employees.Provision(ctx, employee.Employee{ID: employeeID, Name: name}); err != nil {
				return fmt.Errorf("provision employee: %w", err)
			}
			user, err := app.Auth.CreateUser(ctx, auth.CreateUserInput{
				Username:   username,
				Password:   password,
				Role:       role,
				EmployeeID: employeeID,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s user %q for employee %q\n", user.Role, user.Username, user.EmployeeID)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.Flags().StringVar(&role, "role", auth.RoleUser, "admin or user")
	cmd.Flags().StringVar(&employeeID, "employee-id", "", "employee id (defaults to the username)")
	cmd.Flags().StringVar(&name, "name", "", "employee display name")
	return cmd
}
