package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Duhfx/LembrAI/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

// Storage stores every timestamp in UTC. sqlite compares datetime text
// lexicographically, so writes and query bounds must agree on one zone.
type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// An in-memory database exists per connection; keep the pool at one so
	// every query sees the same tables.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			phone TEXT UNIQUE NOT NULL,
			name TEXT DEFAULT '',
			plan_type TEXT NOT NULL DEFAULT 'FREE',
			first_contact_sent INTEGER DEFAULT 0,
			feed_token TEXT UNIQUE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS reminders (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			message TEXT NOT NULL,
			event_at DATETIME NOT NULL,
			notify_at DATETIME NOT NULL,
			advance_minutes INTEGER DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'PENDING',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			reminder_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'PENDING',
			error TEXT DEFAULT '',
			sent_at DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (reminder_id) REFERENCES reminders(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_user_id ON reminders(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_status_notify ON reminders(status, notify_at)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_reminder ON notifications(reminder_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// Ignore "duplicate column" errors for ALTER TABLE
			if !strings.Contains(err.Error(), "duplicate column") {
				return fmt.Errorf("exec migration: %w", err)
			}
		}
	}
	return nil
}

// === Users ===

func (s *Storage) CreateUser(u *domain.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.FeedToken == "" {
		u.FeedToken = uuid.NewString()
	}
	if u.PlanType == "" {
		u.PlanType = domain.PlanFree
	}
	u.CreatedAt = time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO users (id, phone, name, plan_type, first_contact_sent, feed_token, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Phone, u.Name, u.PlanType, u.FirstContactSent, u.FeedToken, u.CreatedAt,
	)
	return err
}

func (s *Storage) GetUserByPhone(phone string) (*domain.User, error) {
	u := &domain.User{}
	err := s.db.QueryRow(
		`SELECT id, phone, name, plan_type, first_contact_sent, feed_token, created_at FROM users WHERE phone = ?`,
		phone,
	).Scan(&u.ID, &u.Phone, &u.Name, &u.PlanType, &u.FirstContactSent, &u.FeedToken, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

func (s *Storage) GetUserByID(id string) (*domain.User, error) {
	u := &domain.User{}
	err := s.db.QueryRow(
		`SELECT id, phone, name, plan_type, first_contact_sent, feed_token, created_at FROM users WHERE id = ?`,
		id,
	).Scan(&u.ID, &u.Phone, &u.Name, &u.PlanType, &u.FirstContactSent, &u.FeedToken, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

func (s *Storage) GetUserByFeedToken(token string) (*domain.User, error) {
	u := &domain.User{}
	err := s.db.QueryRow(
		`SELECT id, phone, name, plan_type, first_contact_sent, feed_token, created_at FROM users WHERE feed_token = ?`,
		token,
	).Scan(&u.ID, &u.Phone, &u.Name, &u.PlanType, &u.FirstContactSent, &u.FeedToken, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// MarkFirstContactSent flips the welcome flag. It reports true only for the
// caller that actually flipped it, so the welcome goes out exactly once even
// if two messages from a new user race.
func (s *Storage) MarkFirstContactSent(userID string) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE users SET first_contact_sent = 1 WHERE id = ? AND first_contact_sent = 0`,
		userID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Storage) UpdateUserPlan(userID string, plan domain.PlanType) error {
	_, err := s.db.Exec(`UPDATE users SET plan_type = ? WHERE id = ?`, plan, userID)
	return err
}

// === Reminders ===

const reminderColumns = `id, user_id, message, event_at, notify_at, advance_minutes, status, created_at`

func (s *Storage) scanReminder(row interface{ Scan(...any) error }) (*domain.Reminder, error) {
	r := &domain.Reminder{}
	err := row.Scan(&r.ID, &r.UserID, &r.Message, &r.EventAt, &r.NotifyAt, &r.AdvanceMinutes, &r.Status, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Storage) CreateReminder(r *domain.Reminder) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = domain.ReminderPending
	}
	r.CreatedAt = time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO reminders (id, user_id, message, event_at, notify_at, advance_minutes, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.Message, r.EventAt.UTC(), r.NotifyAt.UTC(), r.AdvanceMinutes, r.Status, r.CreatedAt,
	)
	return err
}

func (s *Storage) GetReminder(id string) (*domain.Reminder, error) {
	r, err := s.scanReminder(s.db.QueryRow(
		`SELECT `+reminderColumns+` FROM reminders WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

func (s *Storage) listReminders(query string, args ...any) ([]*domain.Reminder, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []*domain.Reminder
	for rows.Next() {
		r, err := s.scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

// ListPendingByUser returns a user's pending reminders ordered by notify time.
func (s *Storage) ListPendingByUser(userID string) ([]*domain.Reminder, error) {
	return s.listReminders(
		`SELECT `+reminderColumns+` FROM reminders
		 WHERE user_id = ? AND status = 'PENDING' ORDER BY notify_at ASC`,
		userID,
	)
}

// ListByUserAndPeriod returns pending reminders whose event time falls inside
// [start, end], capped at 50 rows so a listing never floods the chat.
func (s *Storage) ListByUserAndPeriod(userID string, start, end time.Time) ([]*domain.Reminder, error) {
	return s.listReminders(
		`SELECT `+reminderColumns+` FROM reminders
		 WHERE user_id = ? AND status = 'PENDING' AND event_at >= ? AND event_at <= ?
		 ORDER BY event_at ASC LIMIT 50`,
		userID, start.UTC(), end.UTC(),
	)
}

// SearchPendingByKeyword does a case-insensitive substring match on the
// reminder message.
func (s *Storage) SearchPendingByKeyword(userID, keyword string) ([]*domain.Reminder, error) {
	reminders, err := s.ListPendingByUser(userID)
	if err != nil {
		return nil, err
	}
	normalized := strings.ToLower(strings.TrimSpace(keyword))
	var matched []*domain.Reminder
	for _, r := range reminders {
		if strings.Contains(strings.ToLower(r.Message), normalized) {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

// ListDueReminders returns pending reminders with notify_at in the half-open
// window (now-back, now]. Anything older than the back window is abandoned.
func (s *Storage) ListDueReminders(now time.Time, back time.Duration) ([]*domain.Reminder, error) {
	now = now.UTC()
	return s.listReminders(
		`SELECT `+reminderColumns+` FROM reminders
		 WHERE status = 'PENDING' AND notify_at > ? AND notify_at <= ?
		 ORDER BY notify_at ASC`,
		now.Add(-back), now,
	)
}

// ClaimReminder atomically flips a reminder from PENDING to SENT. It reports
// false when the row was no longer PENDING, which is the dedup signal for
// concurrent sweeps, not an error.
func (s *Storage) ClaimReminder(id string) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE reminders SET status = 'SENT' WHERE id = ? AND status = 'PENDING'`,
		id,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CancelReminder moves a pending reminder to CANCELLED. Reports false when
// the reminder had already left PENDING.
func (s *Storage) CancelReminder(id string) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE reminders SET status = 'CANCELLED' WHERE id = ? AND status = 'PENDING'`,
		id,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Storage) CountPendingByUser(userID string) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM reminders WHERE user_id = ? AND status = 'PENDING'`,
		userID,
	).Scan(&count)
	return count, err
}

// CountCreatedSince counts all reminders (any status) created at or after the
// given moment; used for the calendar-month quota.
func (s *Storage) CountCreatedSince(userID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM reminders WHERE user_id = ? AND created_at >= ?`,
		userID, since.UTC(),
	).Scan(&count)
	return count, err
}

// === Notifications ===

func (s *Storage) CreateNotification(n *domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Status == "" {
		n.Status = domain.NotificationPending
	}
	n.CreatedAt = time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO notifications (id, reminder_id, status, error, created_at) VALUES (?, ?, ?, ?, ?)`,
		n.ID, n.ReminderID, n.Status, n.Error, n.CreatedAt,
	)
	return err
}

func (s *Storage) UpdateNotificationStatus(id string, status domain.NotificationStatus, errText string) error {
	if status == domain.NotificationSent {
		_, err := s.db.Exec(
			`UPDATE notifications SET status = ?, error = ?, sent_at = ? WHERE id = ?`,
			status, errText, time.Now().UTC(), id,
		)
		return err
	}
	_, err := s.db.Exec(
		`UPDATE notifications SET status = ?, error = ? WHERE id = ?`,
		status, errText, id,
	)
	return err
}

func (s *Storage) ListNotificationsByReminder(reminderID string) ([]*domain.Notification, error) {
	rows, err := s.db.Query(
		`SELECT id, reminder_id, status, error, sent_at, created_at
		 FROM notifications WHERE reminder_id = ? ORDER BY created_at ASC`,
		reminderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*domain.Notification
	for rows.Next() {
		n := &domain.Notification{}
		if err := rows.Scan(&n.ID, &n.ReminderID, &n.Status, &n.Error, &n.SentAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}
