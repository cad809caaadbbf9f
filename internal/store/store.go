// Package store reads and writes project inputs in a SQLite database. It
// stores work items and dependency edges only; computed dates are never
// written back.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/joshharrison/ganttloom/internal/cpm"
	"github.com/joshharrison/ganttloom/internal/dates"
	"github.com/joshharrison/ganttloom/internal/project"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Store wraps a SQLite handle.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dsn and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite path is required")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite prefers a single writer; this also keeps ":memory:" on one
	// connection so every query sees the same database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the tables if they do not exist. Open calls it.
func (s *Store) Migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, string(b)); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// LoadProject reads every work item (in insertion order) and dependency.
func (s *Store) LoadProject(ctx context.Context) (*project.Project, error) {
	items, err := s.workItems(ctx)
	if err != nil {
		return nil, err
	}
	deps, err := s.dependencies(ctx)
	if err != nil {
		return nil, err
	}
	return &project.Project{WorkItems: items, Dependencies: deps}, nil
}

func (s *Store) workItems(ctx context.Context) ([]cpm.WorkItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, status, start_date, end_date, actual_start_date, actual_end_date,
		       duration_days, start_after, start_before
		FROM work_items ORDER BY position, rowid`)
	if err != nil {
		return nil, fmt.Errorf("query work items: %w", err)
	}
	defer rows.Close()

	var items []cpm.WorkItem
	for rows.Next() {
		var (
			wi                                 cpm.WorkItem
			status                             string
			start, end, actualStart, actualEnd sql.NullString
			after, before                      sql.NullString
			duration                           sql.NullInt64
		)
		if err := rows.Scan(&wi.ID, &wi.Title, &status, &start, &end, &actualStart, &actualEnd,
			&duration, &after, &before); err != nil {
			return nil, fmt.Errorf("scan work item: %w", err)
		}
		wi.Status = cpm.Status(status)
		if duration.Valid {
			n := int(duration.Int64)
			wi.DurationDays = &n
		}
		for _, f := range []struct {
			col *sql.NullString
			dst **dates.Date
		}{
			{&start, &wi.StartDate},
			{&end, &wi.EndDate},
			{&actualStart, &wi.ActualStartDate},
			{&actualEnd, &wi.ActualEndDate},
			{&after, &wi.StartAfter},
			{&before, &wi.StartBefore},
		} {
			if *f.dst, err = parseNullDate(*f.col); err != nil {
				return nil, fmt.Errorf("work item %s: %w", wi.ID, err)
			}
		}
		items = append(items, wi)
	}
	return items, rows.Err()
}

func (s *Store) dependencies(ctx context.Context) ([]cpm.Dependency, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT predecessor_id, successor_id, dependency_type, lead_lag_days
		FROM dependencies ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query dependencies: %w", err)
	}
	defer rows.Close()

	var deps []cpm.Dependency
	for rows.Next() {
		var (
			dep cpm.Dependency
			typ string
		)
		if err := rows.Scan(&dep.PredecessorID, &dep.SuccessorID, &typ, &dep.LeadLagDays); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		dep.DependencyType = cpm.DependencyType(typ)
		deps = append(deps, dep)
	}
	return deps, rows.Err()
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// InsertWorkItem adds or replaces a work item. A replaced item keeps its
// original position.
func (s *Store) InsertWorkItem(ctx context.Context, wi cpm.WorkItem) error {
	return insertWorkItem(ctx, s.db, wi)
}

func insertWorkItem(ctx context.Context, ex execer, wi cpm.WorkItem) error {
	status := wi.Status
	if status == "" {
		status = cpm.StatusNotStarted
	}
	var duration any
	if wi.DurationDays != nil {
		duration = *wi.DurationDays
	}
	_, err := ex.ExecContext(ctx, `
		INSERT INTO work_items(id, title, status, start_date, end_date, actual_start_date, actual_end_date,
		                       duration_days, start_after, start_before, position)
		VALUES(?,?,?,?,?,?,?,?,?,?, (SELECT COALESCE(MAX(position), 0) + 1 FROM work_items))
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, status=excluded.status,
			start_date=excluded.start_date, end_date=excluded.end_date,
			actual_start_date=excluded.actual_start_date, actual_end_date=excluded.actual_end_date,
			duration_days=excluded.duration_days,
			start_after=excluded.start_after, start_before=excluded.start_before`,
		wi.ID, wi.Title, string(status),
		nullDate(wi.StartDate), nullDate(wi.EndDate),
		nullDate(wi.ActualStartDate), nullDate(wi.ActualEndDate),
		duration, nullDate(wi.StartAfter), nullDate(wi.StartBefore),
	)
	if err != nil {
		return fmt.Errorf("insert work item %s: %w", wi.ID, err)
	}
	return nil
}

// AddDependency records an edge. It reports false when an identical edge
// already exists.
func (s *Store) AddDependency(ctx context.Context, dep cpm.Dependency, reason string) (bool, error) {
	return addDependency(ctx, s.db, dep, reason)
}

func addDependency(ctx context.Context, ex execer, dep cpm.Dependency, reason string) (bool, error) {
	if _, err := cpm.ParseDependencyType(dep.DependencyType); err != nil {
		return false, err
	}
	typ := dep.DependencyType
	if typ == "" {
		typ = cpm.FinishToStart
	}
	res, err := ex.ExecContext(ctx, `
		INSERT OR IGNORE INTO dependencies(predecessor_id, successor_id, dependency_type, lead_lag_days, reason)
		VALUES(?,?,?,?,?)`,
		dep.PredecessorID, dep.SuccessorID, string(typ), dep.LeadLagDays, reason,
	)
	if err != nil {
		return false, fmt.Errorf("add dependency %s -> %s: %w", dep.PredecessorID, dep.SuccessorID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Import writes every work item and dependency of p in one transaction.
func (s *Store) Import(ctx context.Context, p *project.Project) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	for _, wi := range p.WorkItems {
		if err := insertWorkItem(ctx, tx, wi); err != nil {
			return err
		}
	}
	for _, dep := range p.Dependencies {
		if _, err := addDependency(ctx, tx, dep, ""); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func parseNullDate(ns sql.NullString) (*dates.Date, error) {
	if !ns.Valid || strings.TrimSpace(ns.String) == "" {
		return nil, nil
	}
	d, err := dates.Parse(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nullDate(d *dates.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}
