// AngelaMos | 2026
// repository_test.go

package audit

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func TestRepositoryWrite(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	repo := NewRepository(sqlx.NewDb(db, "pgx"))
	e := Failure(EventLogin, "", "ghost", "unknown_user")
	e.ID = "entry-1"
	e.CreatedAt = time.Now().UTC()

	mock.ExpectExec("INSERT INTO auth_logs").
		WithArgs("entry-1", nil, "ghost", "login", "failure",
			"unknown_user", "", "", e.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Write(context.Background(), e); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRepositoryListByAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	repo := NewRepository(sqlx.NewDb(db, "pgx"))
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "account_id", "username", "event", "outcome", "reason",
		"ip_address", "user_agent", "created_at",
	}).AddRow("e1", "acc-1", "alice", "login", "success", "", "1.2.3.4", "ua", now)

	mock.ExpectQuery("SELECT (.+) FROM auth_logs").
		WithArgs("acc-1", 100).
		WillReturnRows(rows)

	entries, err := repo.ListByAccount(context.Background(), "acc-1", 0)
	if err != nil {
		t.Fatalf("ListByAccount: %v", err)
	}
	if len(entries) != 1 || entries[0].Event != EventLogin || *entries[0].AccountID != "acc-1" {
		t.Fatalf("entries = %+v", entries)
	}
}
