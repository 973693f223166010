package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/taskboard/internal/common"
	"github.com/dmitrijs2005/taskboard/internal/dbx"
	"github.com/dmitrijs2005/taskboard/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

var now = time.Date(2025, 4, 10, 8, 0, 0, 0, time.UTC)

func newRepoWithMock(t *testing.T) (*SQLRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewSQLRepository(db, dbx.Postgres), mock, db
}

const (
	insertQ   = `(?s)^\s*INSERT\s+INTO\s+refresh_tokens\s*\(id,\s*user_id,\s*token_hash,\s*expires_at,\s*created_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)\s*$`
	selectQ   = `(?s)^\s*SELECT\s+id,\s*user_id,\s*token_hash,\s*expires_at,\s*created_at,\s*revoked_at,\s*replaced_by_token_hash\s+FROM\s+refresh_tokens\s+WHERE\s+token_hash\s*=\s*\$1\s*$`
	revokeQ   = `(?s)^\s*UPDATE\s+refresh_tokens\s+SET\s+revoked_at\s*=\s*\$1\s+WHERE\s+token_hash\s*=\s*\$2\s+AND\s+revoked_at\s+IS\s+NULL\s*$`
	replacedQ = `(?s)^\s*UPDATE\s+refresh_tokens\s+SET\s+revoked_at\s*=\s*\$1,\s*replaced_by_token_hash\s*=\s*\$2\s+WHERE\s+token_hash\s*=\s*\$3\s+AND\s+user_id\s*=\s*\$4\s+AND\s+revoked_at\s+IS\s+NULL\s+AND\s+expires_at\s*>=\s*\$5\s*$`
)

func record() *models.RefreshToken {
	return &models.RefreshToken{ID: "rt-1", UserID: "u1", TokenHash: "h1", ExpiresAt: now.Add(7 * 24 * time.Hour), CreatedAt: now}
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rec := record()
	mock.ExpectExec(insertQ).
		WithArgs("rt-1", "u1", "h1", rec.ExpiresAt, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_Duplicate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(insertQ).WillReturnError(&pgconn.PgError{Code: "23505"})

	if err := repo.Create(context.Background(), record()); !errors.Is(err, common.ErrConflict) {
		t.Fatalf("want common.ErrConflict, got %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(insertQ).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), record())
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFindByHash_Active(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	expires := now.Add(time.Hour)
	rows := sqlmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at", "created_at", "revoked_at", "replaced_by_token_hash"}).
		AddRow("rt-1", "u1", "h1", expires, now, nil, nil)
	mock.ExpectQuery(selectQ).WithArgs("h1").WillReturnRows(rows)

	got, err := repo.FindByHash(context.Background(), "h1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UserID != "u1" || !got.ExpiresAt.Equal(expires) || got.RevokedAt != nil || got.ReplacedByTokenHash != nil {
		t.Fatalf("unexpected row: %+v", got)
	}
	if !got.IsActive(now) {
		t.Fatalf("record should be active")
	}
}

func TestFindByHash_Rotated(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	revoked := now.Add(-time.Minute)
	rows := sqlmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at", "created_at", "revoked_at", "replaced_by_token_hash"}).
		AddRow("rt-1", "u1", "h1", now.Add(time.Hour), now.Add(-time.Hour), revoked, "h2")
	mock.ExpectQuery(selectQ).WithArgs("h1").WillReturnRows(rows)

	got, err := repo.FindByHash(context.Background(), "h1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.RevokedAt == nil || !got.RevokedAt.Equal(revoked) || got.ReplacedByTokenHash == nil || *got.ReplacedByTokenHash != "h2" {
		t.Fatalf("unexpected row: %+v", got)
	}
	if !got.IsRotated() || got.IsActive(now) {
		t.Fatalf("record should be rotated and inactive")
	}
}

func TestFindByHash_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(selectQ).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByHash(context.Background(), "missing")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestFindByHash_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(selectQ).WithArgs("h1").WillReturnError(errors.New("db err"))

	_, err := repo.FindByHash(context.Background(), "h1")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestRevoke(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(revokeQ).WithArgs(now, "h1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(revokeQ).WithArgs(now, "h1").WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo.Revoke(context.Background(), "h1", now)
	if err != nil || n != 1 {
		t.Fatalf("first revoke: n=%d err=%v", n, err)
	}
	n, err = repo.Revoke(context.Background(), "h1", now)
	if err != nil || n != 0 {
		t.Fatalf("second revoke: n=%d err=%v", n, err)
	}
}

func TestRevoke_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(revokeQ).WithArgs(now, "h1").WillReturnError(errors.New("db err"))

	_, err := repo.Revoke(context.Background(), "h1", now)
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestMarkReplaced(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(replacedQ).WithArgs(now, "h2", "h1", "u1", now).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(replacedQ).WithArgs(now, "h3", "h1", "u1", now).WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo.MarkReplaced(context.Background(), "u1", "h1", "h2", now)
	if err != nil || n != 1 {
		t.Fatalf("winner: n=%d err=%v", n, err)
	}
	n, err = repo.MarkReplaced(context.Background(), "u1", "h1", "h3", now)
	if err != nil || n != 0 {
		t.Fatalf("loser: n=%d err=%v", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMarkReplaced_MySQL(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	defer db.Close()
	repo := NewSQLRepository(db, dbx.MySQL)

	mock.ExpectExec(`(?s)SET\s+revoked_at\s*=\s*\?,\s*replaced_by_token_hash\s*=\s*\?\s+WHERE\s+token_hash\s*=\s*\?\s+AND\s+user_id\s*=\s*\?.*expires_at\s*>=\s*\?`).
		WithArgs(now, "h2", "h1", "u1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if _, err := repo.MarkReplaced(context.Background(), "u1", "h1", "h2", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
