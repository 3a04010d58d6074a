// Package query runs one SQL statement on a connection it takes ownership of
// and returns the complete result as a Table.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"maps"
	"slices"
)

// QueryError wraps a failure while preparing, running or reading a
// statement.
type QueryError struct {
	SQL string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query: executing statement: %v", e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Recorder is told the outcome of each statement ("ok" or "error").
type Recorder interface {
	Query(status string)
}

// Executor runs statements.
type Executor struct {
	recorder Recorder
	logger   *slog.Logger
}

// NewExecutor returns an Executor. recorder may be nil.
func NewExecutor(recorder Recorder, logger *slog.Logger) *Executor {
	return &Executor{recorder: recorder, logger: logger}
}

// WithLogger returns a copy of e that logs to logger.
func (e *Executor) WithLogger(logger *slog.Logger) *Executor {
	c := *e
	c.logger = logger

	return &c
}

// Execute runs sqlText with params bound by name and returns every row.
// conn is closed before Execute returns, whatever the outcome.
func (e *Executor) Execute(ctx context.Context, conn *sql.Conn, sqlText string, params map[string]any) (_ *Table, err error) {
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			e.logger.Debug("closing connection", slog.String("error", cerr.Error()))
		}

		e.record(err)
	}()

	args := namedArgs(params)

	e.logger.Debug("querying database", slog.Int("params", len(args)))

	rows, err := conn.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, &QueryError{SQL: sqlText, Err: err}
	}
	defer rows.Close()

	table, err := materialize(rows)
	if err != nil {
		return nil, &QueryError{SQL: sqlText, Err: err}
	}

	e.logger.Debug("query complete",
		slog.Int("columns", len(table.Columns)),
		slog.Int("rows", table.Len()),
	)

	return table, nil
}

func (e *Executor) record(err error) {
	if e.recorder == nil {
		return
	}

	if err != nil {
		e.recorder.Query("error")
		return
	}

	e.recorder.Query("ok")
}

// namedArgs binds params as sql.Named in key order.
func namedArgs(params map[string]any) []any {
	keys := slices.Sorted(maps.Keys(params))

	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = sql.Named(k, params[k])
	}

	return args
}

func materialize(rows *sql.Rows) (*Table, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("reading column metadata: %w", err)
	}

	table := &Table{Columns: make([]Column, len(types)), Rows: [][]any{}}
	for i, ct := range types {
		table.Columns[i] = Column{Name: ct.Name(), DatabaseType: ct.DatabaseTypeName()}
	}

	for rows.Next() {
		values := make([]any, len(types))
		ptrs := make([]any, len(types))

		for i := range values {
			ptrs[i] = &values[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row %d: %w", table.Len()+1, err)
		}

		table.Rows = append(table.Rows, values)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}

	return table, nil
}
