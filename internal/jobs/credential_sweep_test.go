package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/docuforge/docuforge/internal/db/repositories"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newCredRepoForSweep(t *testing.T) (*repositories.CredentialRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return repositories.NewCredentialRepository(sqlx.NewDb(db, "sqlmock")), mock
}

// ---------------------------------------------------------------------------
// NewCredentialSweep — construction and interval defaulting
// ---------------------------------------------------------------------------

func TestNewCredentialSweep_DefaultInterval(t *testing.T) {
	s := NewCredentialSweep(nil, 0)
	if s == nil {
		t.Fatal("NewCredentialSweep returned nil")
	}
	if s.interval != time.Hour {
		t.Errorf("interval = %v, want 1h", s.interval)
	}
}

func TestNewCredentialSweep_NegativeInterval_DefaultsHour(t *testing.T) {
	s := NewCredentialSweep(nil, -5*time.Minute)
	if s.interval != time.Hour {
		t.Errorf("interval = %v, want 1h", s.interval)
	}
}

func TestNewCredentialSweep_CustomInterval(t *testing.T) {
	s := NewCredentialSweep(nil, 15*time.Minute)
	if s.interval != 15*time.Minute {
		t.Errorf("interval = %v, want 15m", s.interval)
	}
}

// ---------------------------------------------------------------------------
// runSweep
// ---------------------------------------------------------------------------

func TestRunSweep_DeactivatesExpired(t *testing.T) {
	repo, mock := newCredRepoForSweep(t)
	mock.ExpectExec("UPDATE provider_credentials.*expires_at <= NOW").
		WillReturnResult(sqlmock.NewResult(0, 2))

	s := NewCredentialSweep(repo, time.Hour)
	s.runSweep(context.Background())

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRunSweep_NothingExpired(t *testing.T) {
	repo, mock := newCredRepoForSweep(t)
	mock.ExpectExec("UPDATE provider_credentials.*expires_at <= NOW").
		WillReturnResult(sqlmock.NewResult(0, 0))

	s := NewCredentialSweep(repo, time.Hour)
	s.runSweep(context.Background())

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRunSweep_DBErrorDoesNotPanic(t *testing.T) {
	repo, mock := newCredRepoForSweep(t)
	mock.ExpectExec("UPDATE provider_credentials").
		WillReturnError(errors.New("db down"))

	s := NewCredentialSweep(repo, time.Hour)
	s.runSweep(context.Background()) // must not panic
}

// ---------------------------------------------------------------------------
// Start / Stop lifecycle
// ---------------------------------------------------------------------------

func TestCredentialSweep_StopExitsLoop(t *testing.T) {
	repo, mock := newCredRepoForSweep(t)
	// Initial sweep on startup.
	mock.ExpectExec("UPDATE provider_credentials").
		WillReturnResult(sqlmock.NewResult(0, 0))

	s := NewCredentialSweep(repo, time.Hour)

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	s.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not exit after Stop")
	}
}

func TestCredentialSweep_ContextCancelExitsLoop(t *testing.T) {
	repo, mock := newCredRepoForSweep(t)
	mock.ExpectExec("UPDATE provider_credentials").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx, cancel := context.WithCancel(context.Background())
	s := NewCredentialSweep(repo, time.Hour)

	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not exit after context cancellation")
	}
}
