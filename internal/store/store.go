// Package store is the persistence collaborator: it round-trips the alarm,
// calendar event, and notification records through SQLite so a restart
// restores the registries and the notification history. The encoding is the
// store's concern alone; nothing here leaks into the scheduling core.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tartampluch/go-reminder/internal/config"
	"github.com/tartampluch/go-reminder/internal/model"
)

//go:embed schema.sql
var schemaSQL string

const (
	metaKeyLastTick = "last_tick"

	// timeLayout preserves sub-second precision and the UTC offset.
	timeLayout = time.RFC3339Nano
)

// Store provides durable storage backed by SQLite.
// WAL mode allows presentation-layer reads during a flush.
type Store struct {
	db *sql.DB
}

// State is the full snapshot that round-trips through the store.
type State struct {
	Alarms        []model.Alarm
	Events        []model.CalendarEvent
	Notifications []model.Notification
	LastTick      time.Time
}

// Open creates or opens the database at the given path and applies the
// schema. Safe to call on an existing database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrStoreOpen, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", config.ErrStoreOpen, err)
	}

	// SQLite supports a single writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", config.ErrStoreSchema, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", config.ErrStoreSchema, err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save rewrites the full snapshot inside one transaction. Either the whole
// new state lands on disk or none of it does.
func (s *Store) Save(ctx context.Context, state State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"alarms", "events", "notifications"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}

	for _, a := range state.Alarms {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO alarms (id, hour, minute, weekdays, label, auto_dismiss, duration_ns, active, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.TimeOfDay.Hour, a.TimeOfDay.Minute, encodeWeekdays(a.Weekdays),
			a.Label, boolToInt(a.AutoDismiss), int64(a.Duration), boolToInt(a.Active),
			a.CreatedAt.Format(timeLayout),
		)
		if err != nil {
			return err
		}
	}

	for _, e := range state.Events {
		rule, err := encodeRule(e.Recurrence)
		if err != nil {
			return err
		}
		var offset any
		if e.ReminderOffset != nil {
			offset = int64(*e.ReminderOffset)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO events (id, title, description, start_at, end_at, category, recurrence, reminder_offset, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Title, e.Description,
			e.Start.Format(timeLayout), e.End.Format(timeLayout),
			e.Category, rule, offset, e.CreatedAt.Format(timeLayout),
		)
		if err != nil {
			return err
		}
	}

	for _, n := range state.Notifications {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO notifications (id, kind, source_id, title, message, created_at, read)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			n.ID, string(n.Kind), n.SourceID, n.Title, n.Message,
			n.CreatedAt.Format(timeLayout), boolToInt(n.Read),
		)
		if err != nil {
			return err
		}
	}

	if !state.LastTick.IsZero() {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO meta (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			metaKeyLastTick, state.LastTick.Format(timeLayout),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Load reads the full snapshot back.
func (s *Store) Load(ctx context.Context) (State, error) {
	var state State

	alarms, err := s.loadAlarms(ctx)
	if err != nil {
		return state, err
	}
	events, err := s.loadEvents(ctx)
	if err != nil {
		return state, err
	}
	notifications, err := s.loadNotifications(ctx)
	if err != nil {
		return state, err
	}

	state.Alarms = alarms
	state.Events = events
	state.Notifications = notifications

	var raw string
	err = s.db.QueryRowContext(ctx,
		`SELECT value FROM meta WHERE key = ?`, metaKeyLastTick).Scan(&raw)
	switch {
	case err == sql.ErrNoRows:
		// First run; the dispatcher starts with an unbounded window.
	case err != nil:
		return state, err
	default:
		t, err := time.Parse(timeLayout, raw)
		if err != nil {
			return state, fmt.Errorf("%s: %w", config.ErrStoreScan, err)
		}
		state.LastTick = t
	}

	return state, nil
}

func (s *Store) loadAlarms(ctx context.Context) ([]model.Alarm, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, hour, minute, weekdays, label, auto_dismiss, duration_ns, active, created_at FROM alarms`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Alarm
	for rows.Next() {
		var (
			a                     model.Alarm
			weekdays, createdAt   string
			autoDismiss, active   int
			durationNS            int64
		)
		if err := rows.Scan(&a.ID, &a.TimeOfDay.Hour, &a.TimeOfDay.Minute, &weekdays,
			&a.Label, &autoDismiss, &durationNS, &active, &createdAt); err != nil {
			return nil, fmt.Errorf("%s: %w", config.ErrStoreScan, err)
		}
		a.Weekdays, err = decodeWeekdays(weekdays)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", config.ErrStoreScan, err)
		}
		a.AutoDismiss = autoDismiss != 0
		a.Duration = time.Duration(durationNS)
		a.Active = active != 0
		if a.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("%s: %w", config.ErrStoreScan, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) loadEvents(ctx context.Context) ([]model.CalendarEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, start_at, end_at, category, recurrence, reminder_offset, created_at FROM events`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CalendarEvent
	for rows.Next() {
		var (
			e                          model.CalendarEvent
			startAt, endAt, createdAt  string
			rule                       sql.NullString
			offset                     sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &startAt, &endAt,
			&e.Category, &rule, &offset, &createdAt); err != nil {
			return nil, fmt.Errorf("%s: %w", config.ErrStoreScan, err)
		}
		if e.Start, err = time.Parse(timeLayout, startAt); err != nil {
			return nil, fmt.Errorf("%s: %w", config.ErrStoreScan, err)
		}
		if e.End, err = time.Parse(timeLayout, endAt); err != nil {
			return nil, fmt.Errorf("%s: %w", config.ErrStoreScan, err)
		}
		if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("%s: %w", config.ErrStoreScan, err)
		}
		if e.Recurrence, err = decodeRule(rule); err != nil {
			return nil, fmt.Errorf("%s: %w", config.ErrStoreScan, err)
		}
		if offset.Valid {
			d := time.Duration(offset.Int64)
			e.ReminderOffset = &d
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) loadNotifications(ctx context.Context) ([]model.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, source_id, title, message, created_at, read FROM notifications ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var (
			n                model.Notification
			kind, createdAt  string
			read             int
		)
		if err := rows.Scan(&n.ID, &kind, &n.SourceID, &n.Title, &n.Message, &createdAt, &read); err != nil {
			return nil, fmt.Errorf("%s: %w", config.ErrStoreScan, err)
		}
		n.Kind = model.SourceKind(kind)
		n.Read = read != 0
		if n.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("%s: %w", config.ErrStoreScan, err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func encodeWeekdays(days []time.Weekday) string {
	if len(days) == 0 {
		return ""
	}
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(int(d)))
	}
	return strings.Join(parts, ",")
}

func decodeWeekdays(raw string) ([]time.Weekday, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]time.Weekday, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		out = append(out, time.Weekday(n))
	}
	return out, nil
}

func encodeRule(rule *model.RecurrenceRule) (any, error) {
	if rule == nil {
		return nil, nil
	}
	data, err := json.Marshal(rule)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func decodeRule(raw sql.NullString) (*model.RecurrenceRule, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var rule model.RecurrenceRule
	if err := json.Unmarshal([]byte(raw.String), &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
