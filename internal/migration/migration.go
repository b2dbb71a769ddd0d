package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/seqdesk/internal/audit/domain"
	authdomain "github.com/smallbiznis/seqdesk/internal/auth/domain"
	backupdomain "github.com/smallbiznis/seqdesk/internal/backup/domain"
	catalogdomain "github.com/smallbiznis/seqdesk/internal/catalog/domain"
	chargeslipdomain "github.com/smallbiznis/seqdesk/internal/chargeslip/domain"
	clientdomain "github.com/smallbiznis/seqdesk/internal/client/domain"
	inquirydomain "github.com/smallbiznis/seqdesk/internal/inquiry/domain"
	projectdomain "github.com/smallbiznis/seqdesk/internal/project/domain"
	quotationdomain "github.com/smallbiznis/seqdesk/internal/quotation/domain"
	referencedomain "github.com/smallbiznis/seqdesk/internal/reference/domain"
	"gorm.io/gorm"
)

//go:embed sql/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "sql"

// Models lists every table the service owns, in dependency order.
func Models() []any {
	return []any{
		&catalogdomain.ServiceDefinition{},
		&clientdomain.Client{},
		&projectdomain.Project{},
		&projectdomain.TeamMember{},
		&inquirydomain.Inquiry{},
		&quotationdomain.Quotation{},
		&quotationdomain.Line{},
		&chargeslipdomain.ChargeSlip{},
		&chargeslipdomain.Line{},
		&referencedomain.Sequence{},
		&authdomain.AdminUser{},
		&auditdomain.AuditLog{},
		&backupdomain.BackupRun{},
	}
}

// Run brings the schema up to date. Postgres uses the versioned SQL files;
// the other dialects are development targets and use AutoMigrate.
func Run(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}

	if conn.Dialector.Name() != "postgres" {
		if err := conn.AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		// MySQL has no partial indexes; billing there relies on the row lock.
		if conn.Dialector.Name() == "sqlite" {
			if err := conn.Exec(chargeslipdomain.OpenQuotationIndexSQL).Error; err != nil {
				return fmt.Errorf("create billing index: %w", err)
			}
		}
		return nil
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Closing the migrator would close the shared *sql.DB.

	return nil
}
