package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockStore(t *testing.T) (*GormStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, PreferSimpleProtocol: true}),
		&gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("gorm open: %v", err)
	}
	return NewGormStore(db), mock
}

func TestGormStoreGetUser(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "role", "role_id", "is_active", "channels", "macrosetores"}).
			AddRow(int64(7), "Ana", "ana@educhat.local", "atendente", int64(3), true, []byte(`["whatsapp"]`), []byte(`[]`)))

	u, err := store.GetUser(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if u == nil || u.ID != 7 || u.Role != "atendente" {
		t.Fatalf("unexpected user %+v", u)
	}
	if u.RoleID == nil || *u.RoleID != 3 {
		t.Fatalf("role id = %v", u.RoleID)
	}
	if !u.Channels.Contains("whatsapp") || len(u.Macrosetores) != 0 {
		t.Fatalf("scope lists %+v / %+v", u.Channels, u.Macrosetores)
	}
}

func TestGormStoreGetUserMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	u, err := store.GetUser(context.Background(), 99)
	if err != nil {
		t.Fatalf("missing user must not error, got %v", err)
	}
	if u != nil {
		t.Fatalf("got %+v, want nil", u)
	}
}

func TestGormStoreGetUserError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnError(errors.New("connection refused"))

	if _, err := store.GetUser(context.Background(), 7); err == nil {
		t.Fatal("infrastructure failure must propagate")
	}
}

func TestGormStoreRoleHasPermission(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "role_permissions" JOIN permissions`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))

	ok, err := store.RoleHasPermission(context.Background(), 3, "conversa:ver")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("active join row should grant")
	}

	mock.ExpectQuery(`SELECT count\(\*\) FROM "role_permissions" JOIN permissions`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))

	ok, err = store.RoleHasPermission(context.Background(), 3, "permissao:gerenciar")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("no join row but granted")
	}
}

func TestGormStoreFindCustomRule(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM "custom_rules" JOIN permissions`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "permission_id", "conditions", "is_active"}).
			AddRow(int64(11), int64(7), int64(2), []byte(`{"channels":["email"]}`), true))

	rule, err := store.FindCustomRule(context.Background(), 7, "conversa:ver")
	if err != nil {
		t.Fatal(err)
	}
	if rule == nil || rule.ID != 11 || rule.UserID != 7 {
		t.Fatalf("unexpected rule %+v", rule)
	}

	mock.ExpectQuery(`FROM "custom_rules" JOIN permissions`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rule, err = store.FindCustomRule(context.Background(), 7, "relatorio:exportar")
	if err != nil {
		t.Fatalf("missing rule must not error, got %v", err)
	}
	if rule != nil {
		t.Fatalf("got %+v, want nil", rule)
	}
}
