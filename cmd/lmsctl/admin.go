package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/somosuni/lms-backend/internal/model"
	"github.com/somosuni/lms-backend/internal/repository"
	"github.com/somosuni/lms-backend/internal/service"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Interactively create an admin user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := connect(ctx, false)
		if err != nil {
			return err
		}
		defer e.Close()

		adminService := newAdminService(e)
		if err := adminService.SyncPermissions(ctx); err != nil {
			return fmt.Errorf("sync permissions: %w", err)
		}

		admin, err := promptAdmin(ctx, cmd, adminService)
		if err != nil {
			return err
		}

		if err := adminService.Create(ctx, admin); err != nil {
			if errors.Is(err, repository.ErrDuplicateEmail) {
				return fmt.Errorf("an admin with email %s already exists", admin.Email)
			}
			return fmt.Errorf("create admin: %w", err)
		}

		cmd.Printf("\nSuccess! Admin '%s' (%s) created with ID: %d\n", admin.Name, admin.Email, admin.ID)
		return nil
	},
}

var syncPermissionsCmd = &cobra.Command{
	Use:   "sync-permissions",
	Short: "Register every permission code and grant all of them to super_admin",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := connect(ctx, false)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := newAdminService(e).SyncPermissions(ctx); err != nil {
			return err
		}
		cmd.Printf("Synced %d permissions to role %s\n", len(model.AllPermissions), model.RoleSuperAdmin)
		return nil
	},
}

func newAdminService(e *env) *service.AdminService {
	// Only password hashing is used here, so the auth service needs no Redis.
	authService := service.NewAuthService(e.cfg, nil)
	return service.NewAdminService(
		repository.NewAdminRepository(e.pool),
		repository.NewRoleRepository(e.pool),
		authService,
	)
}

// ─── CLI Input ─────────────────────────────────────────────────────

func promptAdmin(ctx context.Context, cmd *cobra.Command, adminService *service.AdminService) (*model.Admin, error) {
	reader := bufio.NewReader(cmd.InOrStdin())
	cmd.Println("=== Create New Admin User ===")

	name := prompt(cmd, reader, "Enter Name: ")
	if name == "" {
		return nil, errors.New("name is required")
	}

	email := prompt(cmd, reader, "Enter Email: ")
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.New("a valid email is required")
	}

	var password string
	if stdinIsTerminal() {
		cmd.Print("Enter Password: ")
		bytePassword, err := term.ReadPassword(int(syscall.Stdin))
		cmd.Println() // Newline after password input
		if err != nil {
			return nil, fmt.Errorf("read password: %w", err)
		}
		password = string(bytePassword)
	} else {
		password = prompt(cmd, reader, "Enter Password: ")
	}
	if len(password) < 6 {
		return nil, errors.New("password must be at least 6 characters")
	}

	roles, err := adminService.ListRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	if len(roles) == 0 {
		return nil, errors.New("no roles found; run `lmsctl migrate up` first")
	}
	for _, r := range roles {
		cmd.Printf("  [%d] %s\n", r.ID, r.Name)
	}

	roleID := roles[0].ID
	if raw := prompt(cmd, reader, fmt.Sprintf("Enter Role ID (default %d): ", roleID)); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.New("role ID must be a number")
		}
		roleID = p
	}

	return &model.Admin{
		Email:        email,
		Name:         name,
		PasswordHash: password, // hashed by AdminService.Create
		RoleID:       roleID,
	}, nil
}

func prompt(cmd *cobra.Command, reader *bufio.Reader, label string) string {
	cmd.Print(label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

// stdinIsTerminal is false when input is piped, in which case ReadPassword cannot hide input.
func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
