package query

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/nlqgate/nlqgate/internal/nl2sql"
	"github.com/nlqgate/nlqgate/internal/sqlguard"
)

// DuckDB stands in for the relational backend. It rejects read-only
// transactions, so these tests run with ReadOnlyTx disabled.
func openDuckDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("open duckdb: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	statements := []string{
		`CREATE TABLE Users (Id INTEGER PRIMARY KEY, Username VARCHAR, Email VARCHAR, FirstName VARCHAR, LastName VARCHAR)`,
		`CREATE TABLE Assets (Id INTEGER PRIMARY KEY, Name VARCHAR, AssetTag VARCHAR, Category VARCHAR, Brand VARCHAR,
			PurchasePrice DOUBLE, Status VARCHAR, Location VARCHAR, CreatedAt TIMESTAMP, AssignedToUserId INTEGER)`,
		`INSERT INTO Users VALUES (1, 'jdoe', 'jdoe@example.com', 'Jane', 'Doe')`,
		`INSERT INTO Assets VALUES
			(1, 'ThinkPad X1', 'LT001', 'laptop', 'lenovo', 1500.00, 'Available', 'HQ', NOW(), NULL),
			(2, 'XPS 13', 'LT002', 'laptop', 'dell', 1200.50, 'Assigned', 'Remote', NOW(), 1),
			(3, 'UltraSharp', 'MN001', 'monitor', 'dell', 400.00, 'Available', 'HQ', NOW(), NULL)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(context.Background(), stmt); err != nil {
			t.Fatalf("seed duckdb: %v", err)
		}
	}
	return db
}

func TestDuckDBExecuteSynthesizedCount(t *testing.T) {
	db := openDuckDB(t)
	guard := sqlguard.NewValidator(db, sqlguard.Options{DryRun: true})
	exec := newTestExecutor(t, db, guard, Config{})

	stmt, ok := nl2sql.Synthesize(nl2sql.Classify("how many laptops do we have"))
	if !ok {
		t.Fatal("Synthesize() returned false")
	}
	result := exec.ExecuteStatement(context.Background(), stmt)
	if !result.Successful {
		t.Fatalf("ExecuteStatement() error = %q", result.Error)
	}
	value, ok := result.Scalar()
	if !ok || value != int64(2) {
		t.Fatalf("Scalar() = %#v (%T)", value, value)
	}
}

func TestDuckDBExecuteSynthesizedJoin(t *testing.T) {
	db := openDuckDB(t)
	exec := newTestExecutor(t, db, sqlguard.NewValidator(db, sqlguard.Options{DryRun: true}), Config{})

	stmt, _ := nl2sql.Synthesize(nl2sql.Classify("list users and their assets"))
	result := exec.ExecuteStatement(context.Background(), stmt)
	if !result.Successful {
		t.Fatalf("ExecuteStatement() error = %q", result.Error)
	}
	if result.RowCount != 3 {
		t.Fatalf("RowCount = %d", result.RowCount)
	}
	assigned := 0
	for _, row := range result.Rows {
		if row.String("Username", "") == "jdoe" {
			assigned++
		}
	}
	if assigned != 1 {
		t.Fatalf("rows joined to jdoe = %d", assigned)
	}
}

func TestDuckDBExecuteAdHocEmptyResult(t *testing.T) {
	db := openDuckDB(t)
	exec := newTestExecutor(t, db, sqlguard.NewValidator(db, sqlguard.Options{DryRun: true}), Config{})

	result := exec.Execute(context.Background(), "SELECT Name FROM Assets WHERE Status = 'Retired'")
	if !result.Successful || result.RowCount != 0 {
		t.Fatalf("result = %#v", result)
	}
	if db.Stats().InUse != 0 {
		t.Fatalf("connections in use = %d", db.Stats().InUse)
	}
}

func TestDuckDBDryRunRejectsUnknownColumn(t *testing.T) {
	db := openDuckDB(t)
	exec := newTestExecutor(t, db, sqlguard.NewValidator(db, sqlguard.Options{DryRun: true}), Config{})

	result := exec.Execute(context.Background(), "SELECT Nmae FROM Assets")
	if result.Successful || !result.Rejected() || result.Verdict.Check != sqlguard.CheckDryRun {
		t.Fatalf("result = %#v", result)
	}
}

func TestDuckDBExecutionFailureWithoutDryRun(t *testing.T) {
	db := openDuckDB(t)
	exec := newTestExecutor(t, db, sqlguard.NewValidator(db, sqlguard.Options{DryRun: false}), Config{})

	result := exec.Execute(context.Background(), "SELECT Nmae FROM Assets")
	if result.Successful || result.Rejected() {
		t.Fatalf("result = %#v", result)
	}
	if result.Error == "" {
		t.Fatal("expected backend error message")
	}
}
