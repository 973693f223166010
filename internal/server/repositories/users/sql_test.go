package users

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

var created = time.Date(2025, 2, 1, 9, 30, 0, 0, time.UTC)

func newRepoWithMock(t *testing.T, dialect dbx.Dialect) (*SQLRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewSQLRepository(db, dialect), mock, db
}

const insertQ = `(?s)^INSERT\s+INTO\s+users\s*\(id,\s*email,\s*password_hash,\s*display_name,\s*created_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)\s*$`

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, dbx.Postgres)
	defer db.Close()

	mock.ExpectExec(insertQ).
		WithArgs("u-1", "alice@example.com", "$argon2id$...", sql.NullString{String: "Alice", Valid: true}, created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	u := &models.User{ID: "u-1", Email: "alice@example.com", PasswordHash: "$argon2id$...", DisplayName: "Alice", CreatedAt: created}
	got, err := repo.Create(context.Background(), u)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got != u {
		t.Fatalf("expected the same user back, got %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_EmptyDisplayNameIsNull(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, dbx.Postgres)
	defer db.Close()

	mock.ExpectExec(insertQ).
		WithArgs("u-1", "bob@example.com", "h", sql.NullString{}, created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if _, err := repo.Create(context.Background(), &models.User{ID: "u-1", Email: "bob@example.com", PasswordHash: "h", CreatedAt: created}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
}

func TestCreate_Duplicate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, dbx.Postgres)
	defer db.Close()

	mock.ExpectExec(insertQ).WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), &models.User{ID: "u-1", Email: "alice@example.com"})
	if !errors.Is(err, common.ErrConflict) {
		t.Fatalf("want common.ErrConflict, got %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, dbx.Postgres)
	defer db.Close()

	mock.ExpectExec(insertQ).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{ID: "u-1", Email: "alice@example.com"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestCreate_MySQLPlaceholders(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, dbx.MySQL)
	defer db.Close()

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+users\b.*VALUES\s*\(\?,\s*\?,\s*\?,\s*\?,\s*\?\)\s*$`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if _, err := repo.Create(context.Background(), &models.User{ID: "u-1", Email: "a@b.c"}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
}

func TestGetByEmail_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, dbx.Postgres)
	defer db.Close()

	q := `(?s)^SELECT\s+id,\s*email,\s*password_hash,\s*display_name,\s*created_at\s+FROM\s+users\s+WHERE\s+email\s*=\s*\$1\s*$`

	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "display_name", "created_at"}).
		AddRow("u-1", "alice@example.com", "hash", nil, created)
	mock.ExpectQuery(q).WithArgs("alice@example.com").WillReturnRows(rows)

	got, err := repo.GetByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("GetByEmail error: %v", err)
	}
	if got.ID != "u-1" || got.PasswordHash != "hash" || got.DisplayName != "" || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestGetByEmail_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, dbx.Postgres)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+email`).WithArgs("nobody@example.com").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "nobody@example.com")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestGetByID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, dbx.SQLite)
	defer db.Close()

	q := `(?s)^SELECT\s+id,.*FROM\s+users\s+WHERE\s+id\s*=\s*\?\s*$`

	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "display_name", "created_at"}).
		AddRow("u-9", "carol@example.com", "hash", "Carol", created)
	mock.ExpectQuery(q).WithArgs("u-9").WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), "u-9")
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if got.Email != "carol@example.com" || got.DisplayName != "Carol" {
		t.Fatalf("unexpected user: %+v", got)
	}

	mock.ExpectQuery(q).WithArgs("missing").WillReturnError(errors.New("conn reset"))
	_, err = repo.GetByID(context.Background(), "missing")
	if err == nil || !regexp.MustCompile(`db error: .*conn reset`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}
