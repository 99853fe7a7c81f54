// Package sqlguard decides whether a candidate SQL string may reach the
// database. Every check is an independent function; Validate runs them in a
// fixed order and stops at the first rejection.
package sqlguard

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/nlqgate/nlqgate/internal/nl2sql"
	"github.com/nlqgate/nlqgate/internal/observability"
)

type Check string

const (
	CheckNonEmpty   Check = "non_empty"
	CheckDenylist   Check = "denylist"
	CheckShape      Check = "select_only"
	CheckAllowlist  Check = "table_allowlist"
	CheckSuspicious Check = "suspicious_construct"
	CheckInjection  Check = "injection_heuristic"
	CheckDryRun     Check = "dry_run"
)

// Verdict is an atomic admit or reject. Check names the failing check when
// Admitted is false.
type Verdict struct {
	Admitted bool   `json:"admitted"`
	Check    Check  `json:"check,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

func admit() Verdict { return Verdict{Admitted: true} }

func reject(check Check, reason string) Verdict {
	return Verdict{Admitted: false, Check: check, Reason: reason}
}

// AllowedTables is the fixed set of tables validated SQL may reference. It is
// maintained by hand and never derived from introspection.
var AllowedTables = []string{"Assets", "Users", "AssetHistories", "MaintenanceRecords", "RefreshTokens"}

// Preparer submits a statement for parsing without executing it. *sql.DB and
// *sql.Conn satisfy it.
type Preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

type Options struct {
	// DryRun enables the prepare check. It is skipped when no Preparer is set.
	DryRun        bool
	DryRunTimeout time.Duration
	Logger        *slog.Logger
}

type Validator struct {
	preparer      Preparer
	dryRun        bool
	dryRunTimeout time.Duration
	logger        *slog.Logger
}

func NewValidator(preparer Preparer, opts Options) *Validator {
	timeout := opts.DryRunTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Validator{
		preparer:      preparer,
		dryRun:        opts.DryRun && preparer != nil,
		dryRunTimeout: timeout,
		logger:        opts.Logger,
	}
}

// Validate runs all seven checks against caller-authored SQL. The denylist
// is a plain substring scan, so a forbidden keyword anywhere, including inside
// a literal or an identifier, rejects the query.
func (v *Validator) Validate(ctx context.Context, query string) Verdict {
	verdict := CheckStatic(query)
	if verdict.Admitted {
		verdict = v.checkDryRun(ctx, query)
	}
	v.observe(ctx, verdict, query)
	return verdict
}

// ValidateStatement runs all seven checks against a synthesized statement.
// The statement text comes from fixed templates with values bound as
// parameters, so the denylist pass matches whole words only.
func (v *Validator) ValidateStatement(ctx context.Context, stmt nl2sql.Statement) Verdict {
	verdict := runChecks(stmt.SQL, []func(string) Verdict{
		CheckNonEmptyQuery,
		CheckDenylistWords,
		CheckSelectShape,
		CheckTableAllowlist,
		CheckSuspiciousConstructs,
		CheckInjectionHeuristics,
	})
	if verdict.Admitted {
		verdict = v.checkDryRun(ctx, stmt.SQL)
	}
	v.observe(ctx, verdict, stmt.SQL)
	return verdict
}

// CheckStatic runs checks one through six. It performs no I/O.
func CheckStatic(query string) Verdict {
	return runChecks(query, []func(string) Verdict{
		CheckNonEmptyQuery,
		CheckDenylistSubstrings,
		CheckSelectShape,
		CheckTableAllowlist,
		CheckSuspiciousConstructs,
		CheckInjectionHeuristics,
	})
}

func runChecks(query string, checks []func(string) Verdict) Verdict {
	for _, check := range checks {
		if verdict := check(query); !verdict.Admitted {
			return verdict
		}
	}
	return admit()
}

func (v *Validator) checkDryRun(ctx context.Context, query string) Verdict {
	if !v.dryRun {
		return admit()
	}
	ctx, cancel := context.WithTimeout(ctx, v.dryRunTimeout)
	defer cancel()

	stmt, err := v.preparer.PrepareContext(ctx, query)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return reject(CheckDryRun, "syntax check did not complete in time")
		}
		return reject(CheckDryRun, "query failed syntax validation: "+observability.Redact(err.Error()))
	}
	_ = stmt.Close()
	return admit()
}

func (v *Validator) observe(ctx context.Context, verdict Verdict, query string) {
	if verdict.Admitted {
		return
	}
	observability.IncrementValidationRejection(string(verdict.Check))
	if v.logger == nil {
		return
	}
	v.logger.WarnContext(ctx, "query rejected",
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.String("check", string(verdict.Check)),
		slog.String("reason", verdict.Reason),
		slog.String("sql", truncate(query, 512)),
	)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func isAllowedTable(name string) bool {
	for _, allowed := range AllowedTables {
		if strings.EqualFold(allowed, name) {
			return true
		}
	}
	return false
}
