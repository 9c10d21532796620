package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx via database/sql
	"github.com/jmoiron/sqlx"
)

// SQLHandle implements Handle directly against PostgreSQL, for
// self-hosted deployments that skip the REST gateway. Queries are built
// from the same generic table operations the REST handle serves.
type SQLHandle struct {
	db *sqlx.DB
}

// SQLFactory produces SQLHandles for the pool. Each handle owns its own
// small connection pool so a wholesale rebuild replaces real connections.
type SQLFactory struct {
	DSN      string
	MaxConns int
}

// New opens a handle. sqlx.Open does not dial, so a bad DSN surfaces as
// per-call failures, matching the REST factory's behavior.
func (f *SQLFactory) New() (Handle, error) {
	db, err := sqlx.Open("pgx", f.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	maxConns := f.MaxConns
	if maxConns <= 0 {
		maxConns = 2
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	return &SQLHandle{db: db}, nil
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Select returns rows matching filter, ordered by orderBy when set.
func (h *SQLHandle) Select(ctx context.Context, table string, filter Filter, orderBy string) ([]Row, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}

	where, args, err := buildWhere(filter)
	if err != nil {
		return nil, err
	}

	query := "SELECT * FROM " + table + where
	if orderBy != "" {
		clause, err := buildOrder(orderBy)
		if err != nil {
			return nil, err
		}
		query += " ORDER BY " + clause
	}

	rows, err := h.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		row := make(Row)
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	return out, nil
}

// Upsert inserts row, updating all non-key columns on conflict.
func (h *SQLHandle) Upsert(ctx context.Context, table string, row Row, conflictKey string) error {
	if err := checkIdent(table); err != nil {
		return err
	}
	if err := checkIdent(conflictKey); err != nil {
		return err
	}

	cols := sortedColumns(row)
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	updates := make([]string, 0, len(cols))

	for i, col := range cols {
		if err := checkIdent(col); err != nil {
			return err
		}
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = sqlValue(row[col])
		if col != conflictKey {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		table,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		conflictKey,
		strings.Join(updates, ", "),
	)

	if _, err := h.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	return nil
}

// Insert bulk-inserts rows in one statement. Column set is taken from the
// first row; all rows must share it.
func (h *SQLHandle) Insert(ctx context.Context, table string, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	if err := checkIdent(table); err != nil {
		return err
	}

	cols := sortedColumns(rows[0])
	for _, col := range cols {
		if err := checkIdent(col); err != nil {
			return err
		}
	}

	var (
		values []string
		args   []any
	)
	for i, row := range rows {
		placeholders := make([]string, len(cols))
		for j, col := range cols {
			placeholders[j] = fmt.Sprintf("$%d", i*len(cols)+j+1)
			args = append(args, sqlValue(row[col]))
		}
		values = append(values, "("+strings.Join(placeholders, ", ")+")")
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES %s",
		table,
		strings.Join(cols, ", "),
		strings.Join(values, ", "),
	)

	if _, err := h.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

// Delete removes all rows matching filter.
func (h *SQLHandle) Delete(ctx context.Context, table string, filter Filter) error {
	if err := checkIdent(table); err != nil {
		return err
	}

	where, args, err := buildWhere(filter)
	if err != nil {
		return err
	}

	if _, err := h.db.ExecContext(ctx, "DELETE FROM "+table+where, args...); err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return nil
}

// Ping checks database connectivity.
func (h *SQLHandle) Ping(ctx context.Context) error {
	return h.db.PingContext(ctx)
}

// Close closes the handle's connection pool.
func (h *SQLHandle) Close() error {
	return h.db.Close()
}

func buildWhere(filter Filter) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}

	cols := sortedColumns(Row(filter))
	conds := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		if err := checkIdent(col); err != nil {
			return "", nil, err
		}
		conds[i] = fmt.Sprintf("%s = $%d", col, i+1)
		args[i] = filter[col]
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func buildOrder(orderBy string) (string, error) {
	parts := strings.Fields(orderBy)
	if len(parts) == 0 || len(parts) > 2 {
		return "", fmt.Errorf("invalid order clause %q", orderBy)
	}
	if err := checkIdent(parts[0]); err != nil {
		return "", err
	}

	dir := "ASC"
	if len(parts) == 2 {
		switch strings.ToLower(parts[1]) {
		case "asc":
		case "desc":
			dir = "DESC"
		default:
			return "", fmt.Errorf("invalid order direction %q", parts[1])
		}
	}
	return parts[0] + " " + dir, nil
}

// sqlValue adapts generic row values for the driver. Slices are stored as
// JSON so the same rows work for both handle implementations.
func sqlValue(v any) any {
	switch v.(type) {
	case []string, []any:
		data, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return data
	default:
		return v
	}
}

// sortedColumns keeps generated statements deterministic.
func sortedColumns(row Row) []string {
	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

func checkIdent(s string) error {
	if !identPattern.MatchString(s) {
		return fmt.Errorf("invalid identifier %q", s)
	}
	return nil
}
