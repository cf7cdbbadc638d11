package directory

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/greeting-personalizer/internal/greeting"
)

// SchemaVersion is the latest schema version this package knows.
const SchemaVersion = 2

// Migration is one forward-only schema change.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries ...string) error {
	for _, q := range queries {
		if _, err := tx.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "users and holidays",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS users (
					id INTEGER PRIMARY KEY,
					name TEXT NOT NULL,
					user_type TEXT NOT NULL CHECK (user_type IN ('client', 'employee')),
					gender TEXT,
					birth_date TEXT,
					company TEXT,
					position TEXT,
					interests TEXT,
					telegram_chat_id TEXT,
					referral_code TEXT UNIQUE
				)`,
				`CREATE TABLE IF NOT EXISTS holidays (
					id INTEGER PRIMARY KEY,
					holiday_name TEXT NOT NULL,
					date_fixed TEXT NOT NULL,
					audience TEXT NOT NULL DEFAULT 'all',
					category TEXT NOT NULL,
					description TEXT,
					UNIQUE (holiday_name, date_fixed)
				)`,
				`CREATE INDEX IF NOT EXISTS idx_users_birth_date ON users(birth_date)`,
				`CREATE INDEX IF NOT EXISTS idx_users_chat_id ON users(telegram_chat_id)`,
				`CREATE INDEX IF NOT EXISTS idx_holidays_date_fixed ON holidays(date_fixed)`,
			)
		},
	},
	{
		Version:     2,
		Description: "client segment and preferred tone",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`ALTER TABLE users ADD COLUMN segment TEXT`,
				`ALTER TABLE users ADD COLUMN tone TEXT`,
			)
		},
	},
}

// Migrate applies pending migrations, tracking progress in PRAGMA user_version.
func (s *Store) Migrate(ctx context.Context) error {
	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		if err := m.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", m.Version, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}

		s.logger.Info("applied directory migration",
			zap.Int("version", m.Version),
			zap.String("description", m.Description))
	}

	var final int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&final); err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}
	if final != SchemaVersion {
		return fmt.Errorf("directory schema version mismatch: expected %d, got %d", SchemaVersion, final)
	}
	return nil
}

// DefaultHolidays is the bank's built-in calendar.
var DefaultHolidays = []Holiday{
	{Name: "Новый год", DateFixed: "01-01", Audience: AudienceAll, Category: greeting.NewYear, Description: "Поздравление для всех клиентов и сотрудников"},
	{Name: "Международный женский день", DateFixed: "03-08", Audience: AudienceWomen, Category: greeting.WomensDay, Description: "Поздравление для женщин"},
	{Name: "День российского предпринимательства", DateFixed: "05-26", Audience: AudienceClients, Category: greeting.ProfessionalHoliday, Description: "Поздравление для клиентов"},
	{Name: "День экономиста", DateFixed: "06-30", Audience: AudienceClients, Category: greeting.ProfessionalHoliday, Description: "Поздравление для клиентов"},
	{Name: "День финансиста", DateFixed: "09-08", Audience: AudienceClients, Category: greeting.ProfessionalHoliday, Description: "Поздравление для клиентов"},
	{Name: "День бухгалтера", DateFixed: "11-21", Audience: AudienceClients, Category: greeting.ProfessionalHoliday, Description: "Поздравление для клиентов"},
	{Name: "День банковского работника", DateFixed: "12-02", Audience: AudienceClients, Category: greeting.ProfessionalHoliday, Description: "Поздравление для клиентов"},
}

// Seed inserts DefaultHolidays. Holidays already present are left alone.
func (s *Store) Seed(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, h := range DefaultHolidays {
		if _, err := insertHoliday(ctx, tx, h, true); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed: %w", err)
	}
	return nil
}
