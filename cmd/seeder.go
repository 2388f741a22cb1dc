package cmd

import (
	"errors"
	"fmt"
	"log"

	roleDatamodel "github.com/frahmantamala/expense-reporting/internal/core/datamodel/role"
	userDatamodel "github.com/frahmantamala/expense-reporting/internal/core/datamodel/user"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const seedPassword = "password123"

type seedRole struct {
	Name        string
	Description string
	CanSubmit   bool
	CanApprove  bool
	CanProcess  bool
	IsAdmin     bool
}

type seedUser struct {
	Email   string
	Name    string
	Role    string
	Manager string
}

var seedRoles = []seedRole{
	{Name: "Employee", Description: "Submits expense reports", CanSubmit: true},
	{Name: "Manager", Description: "Approves reports of direct reports", CanSubmit: true, CanApprove: true},
	{Name: "Accountant", Description: "Validates and pays approved reports", CanProcess: true},
	{Name: "Admin", Description: "Full access", CanSubmit: true, CanApprove: true, CanProcess: true, IsAdmin: true},
}

// Managers are listed before their reports so the manager id resolves.
var seedUsers = []seedUser{
	{Email: "admin@example.com", Name: "Ada Admin", Role: "Admin"},
	{Email: "manager@example.com", Name: "Morgan Manager", Role: "Manager"},
	{Email: "accountant@example.com", Name: "Avery Accountant", Role: "Accountant"},
	{Email: "employee@example.com", Name: "Emery Employee", Role: "Employee", Manager: "manager@example.com"},
	{Email: "lead@example.com", Name: "Lee Lead", Role: "Employee"},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the four default roles and a set of demo users for development and testing.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		gormDB, err := initGorm(db)
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), cfg.Security.BCryptCost)
		if err != nil {
			log.Fatalf("failed to hash seed password: %v", err)
		}

		err = gormDB.WithContext(cmd.Context()).Transaction(func(tx *gorm.DB) error {
			if clearData {
				if err := clearSeedData(tx); err != nil {
					return err
				}
			}
			roleIDs, err := seedRolesInto(tx)
			if err != nil {
				return err
			}
			return seedUsersInto(tx, roleIDs, string(hash))
		})
		if err != nil {
			log.Fatalf("seed failed: %v", err)
		}

		fmt.Printf("Seeded %d roles and %d users (password %q)\n", len(seedRoles), len(seedUsers), seedPassword)
	},
}

func clearSeedData(tx *gorm.DB) error {
	for _, table := range []string{"approval_steps", "attachments", "line_items", "expense_reports", "users", "roles"} {
		if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	fmt.Println("Cleared existing data")
	return nil
}

func seedRolesInto(tx *gorm.DB) (map[string]int64, error) {
	ids := make(map[string]int64, len(seedRoles))
	for _, r := range seedRoles {
		var existing roleDatamodel.Role
		err := tx.Where("name = ?", r.Name).First(&existing).Error
		if err == nil {
			ids[r.Name] = existing.ID
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("lookup role %s: %w", r.Name, err)
		}

		desc := r.Description
		row := roleDatamodel.Role{
			Name:        r.Name,
			Description: &desc,
			CanSubmit:   r.CanSubmit,
			CanApprove:  r.CanApprove,
			CanProcess:  r.CanProcess,
			IsAdmin:     r.IsAdmin,
		}
		if err := tx.Create(&row).Error; err != nil {
			return nil, fmt.Errorf("insert role %s: %w", r.Name, err)
		}
		ids[r.Name] = row.ID
		fmt.Println("Seeded role:", r.Name)
	}
	return ids, nil
}

func seedUsersInto(tx *gorm.DB, roleIDs map[string]int64, passwordHash string) error {
	userIDs := make(map[string]int64, len(seedUsers))
	for _, u := range seedUsers {
		var existing userDatamodel.User
		err := tx.Where("email = ?", u.Email).First(&existing).Error
		if err == nil {
			userIDs[u.Email] = existing.ID
			fmt.Println("user already exists:", u.Email)
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("lookup user %s: %w", u.Email, err)
		}

		row := userDatamodel.User{
			Email:        u.Email,
			Name:         u.Name,
			PasswordHash: passwordHash,
			RoleID:       roleIDs[u.Role],
			IsActive:     true,
		}
		if u.Manager != "" {
			managerID, ok := userIDs[u.Manager]
			if !ok {
				return fmt.Errorf("manager %s of %s is not seeded", u.Manager, u.Email)
			}
			row.ManagerID = &managerID
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert user %s: %w", u.Email, err)
		}
		userIDs[u.Email] = row.ID
		fmt.Println("Seeded user:", u.Email)
	}
	return nil
}
