package download

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// HistoryStore persists finished tasks in SQLite, one row per bv.
type HistoryStore struct {
	db *sql.DB
}

// NewHistoryStore creates a history store.
func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// HistoryFilter specifies criteria for listing history.
type HistoryFilter struct {
	Status *Status
	Source string
	Limit  int // 0 means no limit
}

const selectHistory = `SELECT bv, title, source, file_type, output_file, status, error_msg, added_at, finished_at FROM task_history `

// Record upserts a finished task.
// Returns ErrNotFinished if t has not reached a terminal status.
func (s *HistoryStore) Record(ctx context.Context, t Task) error {
	if !t.Status.IsTerminal() {
		return fmt.Errorf("record %s (%s): %w", t.BV, t.Status, ErrNotFinished)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_history (bv, title, source, file_type, output_file, status, error_msg, added_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(bv) DO UPDATE SET
			title = excluded.title,
			source = excluded.source,
			file_type = excluded.file_type,
			output_file = excluded.output_file,
			status = excluded.status,
			error_msg = excluded.error_msg,
			added_at = excluded.added_at,
			finished_at = excluded.finished_at`,
		t.BV, t.Title, t.Source, t.FileType, t.OutputFile, t.Status, t.ErrorMsg, t.AddedAt, t.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("record task %s: %w", t.BV, err)
	}
	return nil
}

// Get retrieves a finished task by bv.
// Returns ErrNotFound if the task is not in the history.
func (s *HistoryStore) Get(ctx context.Context, bv string) (*Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, selectHistory+`WHERE bv = ?`, bv))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get task %s: %w", bv, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", bv, err)
	}
	return t, nil
}

// List returns finished tasks, most recently finished first.
func (s *HistoryStore) List(ctx context.Context, f HistoryFilter) ([]*Task, error) {
	var conditions []string
	var args []any

	if f.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *f.Status)
	}
	if f.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, f.Source)
	}

	query := selectHistory
	if len(conditions) > 0 {
		query += "WHERE " + strings.Join(conditions, " AND ") + " "
	}
	query += "ORDER BY finished_at DESC, bv"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		results = append(results, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return results, nil
}

// Clear removes every row and returns how many were deleted.
func (s *HistoryStore) Clear(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM task_history`)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*Task, error) {
	t := &Task{}
	if err := row.Scan(&t.BV, &t.Title, &t.Source, &t.FileType, &t.OutputFile, &t.Status, &t.ErrorMsg, &t.AddedAt, &t.FinishedAt); err != nil {
		return nil, err
	}
	return t, nil
}
