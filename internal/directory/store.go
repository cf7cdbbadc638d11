package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/jonathan/greeting-personalizer/internal/greeting"
	"github.com/jonathan/greeting-personalizer/internal/logging"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("directory: not found")

// Store is the SQLite-backed directory.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the database at path and applies pending
// migrations.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("directory path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, logger: logging.OrNop(logger)}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const userColumns = `id, name, user_type, gender, birth_date, company, position, segment, tone, interests, telegram_chat_id, referral_code`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (User, error) {
	var u User
	var gender, birth, company, position, segment, tone, interests, chatID, referral sql.NullString
	err := row.Scan(&u.ID, &u.Name, &u.UserType, &gender, &birth, &company, &position,
		&segment, &tone, &interests, &chatID, &referral)
	if err != nil {
		return User{}, err
	}
	u.Gender = gender.String
	u.BirthDate = birth.String
	u.Company = company.String
	u.Position = position.String
	u.Segment = greeting.ClientSegment(segment.String)
	u.Tone = greeting.Tone(tone.String)
	u.Interests = splitInterests(interests.String)
	u.TelegramChatID = chatID.String
	u.ReferralCode = referral.String
	return u, nil
}

func nullable(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

func validateUser(u User) error {
	if strings.TrimSpace(u.Name) == "" {
		return errors.New("user name is required")
	}
	if u.UserType != UserClient && u.UserType != UserEmployee {
		return fmt.Errorf("user_type must be %q or %q, got %q", UserClient, UserEmployee, u.UserType)
	}
	if u.BirthDate != "" {
		if _, err := time.Parse("2006-01-02", u.BirthDate); err != nil {
			return fmt.Errorf("birth_date must be YYYY-MM-DD, got %q", u.BirthDate)
		}
	}
	return nil
}

// AddUser inserts u and returns its id.
func (s *Store) AddUser(ctx context.Context, u User) (int64, error) {
	return insertUser(ctx, s.db, u)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertUser(ctx context.Context, db execer, u User) (int64, error) {
	if err := validateUser(u); err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO users (name, user_type, gender, birth_date, company, position, segment, tone,
			interests, telegram_chat_id, referral_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(u.Name), string(u.UserType), nullable(u.Gender), nullable(u.BirthDate),
		nullable(u.Company), nullable(u.Position), nullable(string(u.Segment)), nullable(string(u.Tone)),
		nullable(joinInterests(u.Interests)), nullable(u.TelegramChatID), nullable(u.ReferralCode))
	if err != nil {
		return 0, fmt.Errorf("failed to insert user %q: %w", u.Name, err)
	}
	return res.LastInsertId()
}

// ImportUsers inserts users in a single transaction and returns how many
// were written. Any invalid user aborts the whole import.
func (s *Store) ImportUsers(ctx context.Context, users []User) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	for i, u := range users {
		if _, err := insertUser(ctx, tx, u); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("user %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit import: %w", err)
	}
	s.logger.Info("users imported", zap.Int("count", len(users)))
	return len(users), nil
}

// GetUser returns the user with id, or ErrNotFound.
func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// ListUsers returns every user ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	return s.queryUsers(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
}

func (s *Store) queryUsers(ctx context.Context, query string, args ...any) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UsersByBirthday returns users born on day.month of any year.
func (s *Store) UsersByBirthday(ctx context.Context, day, month int) ([]User, error) {
	dd, mm, err := monthDay(day, month)
	if err != nil {
		return nil, err
	}
	return s.queryUsers(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE birth_date IS NOT NULL
		  AND SUBSTR(birth_date, 6, 2) = ?
		  AND SUBSTR(birth_date, 9, 2) = ?
		ORDER BY id`, mm, dd)
}

// AddHoliday inserts h and returns its id. A holiday with the same name and
// date is rejected.
func (s *Store) AddHoliday(ctx context.Context, h Holiday) (int64, error) {
	return insertHoliday(ctx, s.db, h, false)
}

func insertHoliday(ctx context.Context, db execer, h Holiday, ignoreExisting bool) (int64, error) {
	if strings.TrimSpace(h.Name) == "" {
		return 0, errors.New("holiday name is required")
	}
	if _, err := time.Parse("01-02", h.DateFixed); err != nil {
		return 0, fmt.Errorf("date_fixed must be MM-DD, got %q", h.DateFixed)
	}
	if !h.Audience.Valid() {
		return 0, fmt.Errorf("unknown audience %q", h.Audience)
	}
	if !h.Category.Valid() {
		return 0, fmt.Errorf("unknown category %q", h.Category)
	}

	verb := "INSERT"
	if ignoreExisting {
		verb = "INSERT OR IGNORE"
	}
	res, err := db.ExecContext(ctx, verb+` INTO holidays (holiday_name, date_fixed, audience, category, description)
		VALUES (?, ?, ?, ?, ?)`,
		h.Name, h.DateFixed, string(h.Audience), string(h.Category), nullable(h.Description))
	if err != nil {
		return 0, fmt.Errorf("failed to insert holiday %q: %w", h.Name, err)
	}
	return res.LastInsertId()
}

func scanHoliday(row scanner) (Holiday, error) {
	var (
		h    Holiday
		desc sql.NullString
	)
	if err := row.Scan(&h.ID, &h.Name, &h.DateFixed, &h.Audience, &h.Category, &desc); err != nil {
		return Holiday{}, err
	}
	h.Description = desc.String
	return h, nil
}

func (s *Store) queryHolidays(ctx context.Context, query string, args ...any) ([]Holiday, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}
	defer rows.Close()

	var holidays []Holiday
	for rows.Next() {
		h, err := scanHoliday(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holiday: %w", err)
		}
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

const holidayColumns = `id, holiday_name, date_fixed, audience, category, description`

// ListHolidays returns the calendar ordered by date.
func (s *Store) ListHolidays(ctx context.Context) ([]Holiday, error) {
	return s.queryHolidays(ctx, `SELECT `+holidayColumns+` FROM holidays ORDER BY date_fixed, id`)
}

// HolidaysByDate returns holidays fixed on day.month.
func (s *Store) HolidaysByDate(ctx context.Context, day, month int) ([]Holiday, error) {
	dd, mm, err := monthDay(day, month)
	if err != nil {
		return nil, err
	}
	return s.queryHolidays(ctx, `SELECT `+holidayColumns+` FROM holidays WHERE date_fixed = ? ORDER BY id`, mm+"-"+dd)
}

// UsersForHoliday returns the activated users in h's audience.
func (s *Store) UsersForHoliday(ctx context.Context, h Holiday) ([]User, error) {
	users, err := s.queryUsers(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE telegram_chat_id IS NOT NULL AND telegram_chat_id != ''
		ORDER BY id`)
	if err != nil {
		return nil, err
	}

	var out []User
	for _, u := range users {
		if InAudience(u, h.Audience) {
			out = append(out, u)
		}
	}
	return out, nil
}

var itInterests = []string{"кибербезопасность", "технологии", "гаджеты"}

// InAudience reports whether u belongs to audience a.
func InAudience(u User, a Audience) bool {
	switch a {
	case AudienceAll:
		return true
	case AudienceMen:
		return strings.EqualFold(u.Gender, "male")
	case AudienceWomen:
		return strings.EqualFold(u.Gender, "female")
	case AudienceEmployees:
		return u.UserType == UserEmployee
	case AudienceClients:
		return u.UserType == UserClient
	case AudienceIT:
		joined := joinInterests(u.Interests)
		if strings.Contains(strings.ToUpper(joined), "IT") {
			return true
		}
		lower := strings.ToLower(joined)
		for _, kw := range itInterests {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

// Celebrations collects birthdays and holiday recipients for date.
func (s *Store) Celebrations(ctx context.Context, date time.Time) (*Celebrations, error) {
	day, month := date.Day(), int(date.Month())

	birthdays, err := s.UsersByBirthday(ctx, day, month)
	if err != nil {
		return nil, err
	}
	holidays, err := s.HolidaysByDate(ctx, day, month)
	if err != nil {
		return nil, err
	}

	out := &Celebrations{Date: EventDate(date), Birthdays: birthdays}
	for _, h := range holidays {
		users, err := s.UsersForHoliday(ctx, h)
		if err != nil {
			return nil, fmt.Errorf("holiday %q: %w", h.Name, err)
		}
		out.Holidays = append(out.Holidays, HolidayRecipients{Holiday: h, Users: users})
	}

	s.logger.Debug("celebrations loaded",
		zap.String("date", out.Date),
		zap.Int("birthdays", len(out.Birthdays)),
		zap.Int("holidays", len(out.Holidays)))
	return out, nil
}
