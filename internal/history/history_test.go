package history

import (
	"context"
	"errors"
	"testing"
	"time"

	pq "github.com/lib/pq"

	"visawatch/internal/config"
	"visawatch/pkg/types"
)

func TestNilJournalIsNoOp(t *testing.T) {
	var j *Journal
	ctx := context.Background()
	if err := j.RecordCheck(ctx, CheckRecord{CheckedAt: time.Now()}); err != nil {
		t.Fatalf("expected nil journal to drop checks, got %v", err)
	}
	if err := j.RecordAttempt(ctx, AttemptRecord{Date: types.Date{Year: 2026, Month: 6, Day: 15}}); err != nil {
		t.Fatalf("expected nil journal to drop attempts, got %v", err)
	}
	recent, err := j.RecentAttempts(ctx, 3)
	if err != nil || recent != nil {
		t.Fatalf("expected nil journal to report no attempts, got %v, %v", recent, err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("expected nil journal close to succeed, got %v", err)
	}
}

func TestOpenDisabledYieldsNil(t *testing.T) {
	j, err := Open(config.HistoryConfig{Enabled: false})
	if err != nil {
		t.Fatalf("expected no error for disabled history, got %v", err)
	}
	if j != nil {
		t.Fatal("expected nil journal for disabled history")
	}
}

func TestOpenRequiresDriverAndDSN(t *testing.T) {
	if _, err := Open(config.HistoryConfig{Enabled: true}); err == nil {
		t.Fatal("expected an error when driver and dsn are missing")
	}
}

func TestIsUndefinedTableErr(t *testing.T) {
	if !isUndefinedTableErr(&pq.Error{Code: "42P01"}) {
		t.Fatal("expected pq undefined-table code to match")
	}
	if !isUndefinedTableErr(errors.New(`pq: relation "checks" does not exist`)) {
		t.Fatal("expected undefined-relation message to match")
	}
	if isUndefinedTableErr(errors.New("connection refused")) {
		t.Fatal("expected unrelated error not to match")
	}
}

func TestShouldAttemptCreateDatabase(t *testing.T) {
	if shouldAttemptCreateDatabase("mysql", &pq.Error{Code: "3D000"}) {
		t.Fatal("expected non-postgres driver to be rejected")
	}
	if !shouldAttemptCreateDatabase("postgres", &pq.Error{Code: "3D000"}) {
		t.Fatal("expected missing-database code to qualify")
	}
	if shouldAttemptCreateDatabase("postgres", &pq.Error{Code: "28P01"}) {
		t.Fatal("expected auth failure not to qualify")
	}
}
