package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nlqgate/nlqgate/internal/nl2sql"
	"github.com/nlqgate/nlqgate/internal/observability"
	"github.com/nlqgate/nlqgate/internal/sqlguard"
)

const DefaultTimeout = 30 * time.Second

// Guard is the validation step every execution runs first.
type Guard interface {
	Validate(ctx context.Context, query string) sqlguard.Verdict
	ValidateStatement(ctx context.Context, stmt nl2sql.Statement) sqlguard.Verdict
}

type Config struct {
	Timeout    time.Duration
	ReadOnlyTx bool
	// MaxRows caps materialized rows; zero means unlimited.
	MaxRows int
}

type Executor struct {
	db     *sql.DB
	guard  Guard
	cfg    Config
	logger *slog.Logger
}

func NewExecutor(db *sql.DB, guard Guard, cfg Config, logger *slog.Logger) (*Executor, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	if guard == nil {
		return nil, fmt.Errorf("query guard is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRows < 0 {
		cfg.MaxRows = 0
	}
	return &Executor{db: db, guard: guard, cfg: cfg, logger: logger}, nil
}

// Execute validates and runs caller-authored SQL.
func (e *Executor) Execute(ctx context.Context, sqlText string) Result {
	verdict := e.guard.Validate(ctx, sqlText)
	if !verdict.Admitted {
		return rejected(sqlText, verdict)
	}
	return e.run(ctx, stripTrailingSemicolons(sqlText), nil, sqlText)
}

// ExecuteStatement validates and runs a synthesized statement with its
// arguments bound as parameters.
func (e *Executor) ExecuteStatement(ctx context.Context, stmt nl2sql.Statement) Result {
	display := stmt.Render()
	verdict := e.guard.ValidateStatement(ctx, stmt)
	if !verdict.Admitted {
		return rejected(display, verdict)
	}
	return e.run(ctx, stmt.SQL, stmt.Args, display)
}

func rejected(display string, verdict sqlguard.Verdict) Result {
	return Result{
		Successful:  false,
		Error:       "Query validation failed: " + verdict.Reason,
		Rows:        []Row{},
		ExecutedSQL: display,
		Verdict:     verdict,
	}
}

func (e *Executor) run(parent context.Context, sqlText string, args []any, display string) Result {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, e.cfg.Timeout)
	defer cancel()

	columns, rows, truncated, err := e.query(ctx, sqlText, args)
	elapsed := time.Since(start)
	result := Result{
		ExecutedSQL: display,
		Rows:        []Row{},
		Duration:    elapsed,
		DurationMs:  elapsed.Milliseconds(),
		Verdict:     sqlguard.Verdict{Admitted: true},
	}

	if err != nil {
		outcome := "failure"
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded) && parent.Err() == nil:
			outcome = "timeout"
			result.TimedOut = true
			result.Error = fmt.Sprintf("query exceeded the %s execution timeout", e.cfg.Timeout)
		case parent.Err() != nil:
			result.Error = "query was cancelled"
		default:
			result.Error = "Database error: " + observability.Redact(err.Error())
		}
		observability.ObserveQueryExecution(outcome, elapsed)
		if e.logger != nil {
			e.logger.ErrorContext(parent, "query execution failed",
				slog.String("trace_id", observability.TraceIDFromContext(parent)),
				slog.String("outcome", outcome),
				slog.String("sql", display),
				slog.String("error", observability.Redact(err.Error())),
				slog.String("duration", elapsed.String()),
			)
		}
		return result
	}

	result.Successful = true
	result.Columns = columns
	result.Rows = rows
	result.RowCount = len(rows)
	result.Truncated = truncated
	observability.ObserveQueryExecution("success", elapsed)
	if e.logger != nil {
		e.logger.DebugContext(parent, "query executed",
			slog.String("trace_id", observability.TraceIDFromContext(parent)),
			slog.Int("rows", result.RowCount),
			slog.Bool("truncated", truncated),
			slog.String("duration", elapsed.String()),
		)
	}
	return result
}

// query runs on a dedicated connection inside a transaction that is always
// rolled back. The connection goes back to the pool on every path.
func (e *Executor) query(ctx context.Context, sqlText string, args []any) ([]string, []Row, bool, error) {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, nil, false, fmt.Errorf("acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: e.cfg.ReadOnlyTx})
	if err != nil {
		return nil, nil, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, nil, false, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, false, fmt.Errorf("query columns: %w", err)
	}

	out := make([]Row, 0)
	truncated := false
	for rows.Next() {
		if e.cfg.MaxRows > 0 && len(out) >= e.cfg.MaxRows {
			truncated = true
			break
		}
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, nil, false, fmt.Errorf("scan row: %w", err)
		}
		row := make(Row, len(columns))
		for i, column := range columns {
			row[i] = Cell{Column: column, Value: normalizeValue(values[i])}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, false, fmt.Errorf("iterate rows: %w", err)
	}
	return columns, out, truncated, nil
}

func normalizeValue(value any) any {
	switch typed := value.(type) {
	case []byte:
		return string(typed)
	default:
		return typed
	}
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
