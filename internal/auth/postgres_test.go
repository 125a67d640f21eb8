package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func userColumns() []string {
	return []string{"id", "name", "email", "password_hash", "avatar", "type", "role", "status", "created_at", "updated_at"}
}

func TestPGStoreFindByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("select id, name, email, password_hash.*from users where email=").
		WithArgs("jane@gmail.com").
		WillReturnRows(sqlmock.NewRows(userColumns()).
			AddRow("01X", "Jane", "jane@gmail.com", "hash", "", "User", "Finance", "accepted", now, now))

	store := NewPGStore(db)
	u, err := store.FindByEmail(context.Background(), "jane@gmail.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if u.ID != "01X" || u.Role != RoleFinance || u.Status != StatusAccepted {
		t.Fatalf("unexpected user: %+v", u)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGStoreFindNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select id, name, email, password_hash.*from users where id=").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	store := NewPGStore(db)
	if _, err := store.Find(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGStoreCreateAssignsID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("insert into users").
		WithArgs(sqlmock.AnyArg(), "Jane", "jane@gmail.com", "hash", "", "User", "HR", "pending").
		WillReturnResult(sqlmock.NewResult(1, 1))

	store := NewPGStore(db)
	u := &User{Name: "Jane", Email: "jane@gmail.com", PasswordHash: "hash", Type: TypeUser, Role: RoleHR, Status: StatusPending}
	if err := store.Create(context.Background(), u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.ID == "" {
		t.Fatal("expected generated id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGStoreUpdateNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("update users set").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewPGStore(db)
	u := &User{ID: "missing", Type: TypeUser, Role: RoleHR, Status: StatusPending}
	if err := store.Update(context.Background(), u); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGStoreDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("delete from users where id=").
		WithArgs("01X").
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewPGStore(db)
	if err := store.Delete(context.Background(), "01X"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}
