package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/lib/pq"
)

// 各Postgresリポジトリがインターフェースを満たすことを検証
func TestPostgresRepos_ImplementInterfaces(t *testing.T) {
	var _ AuthUserRepository = (*PostgresAuthUserRepo)(nil)
	var _ UserRepository = (*PostgresUserRepo)(nil)
	var _ SessionRepository = (*PostgresSessionRepo)(nil)
	var _ StoreRepository = (*PostgresStoreRepo)(nil)
	var _ OrderRepository = (*PostgresOrderRepo)(nil)
	var _ InvoiceRepository = (*PostgresInvoiceRepo)(nil)
	var _ ProjectRepository = (*PostgresProjectRepo)(nil)
	var _ WarrantyRepository = (*PostgresWarrantyRepo)(nil)
	var _ NotificationRepository = (*PostgresNotificationRepo)(nil)
	var _ MedusaRepository = (*PgxMedusaRepo)(nil)
}

func TestNewRepos_Initialize(t *testing.T) {
	if NewPostgresAuthUserRepo(nil) == nil {
		t.Error("NewPostgresAuthUserRepo returned nil")
	}
	if NewPostgresSessionRepo(nil) == nil {
		t.Error("NewPostgresSessionRepo returned nil")
	}
	if NewPostgresOrderRepo(nil) == nil {
		t.Error("NewPostgresOrderRepo returned nil")
	}
	if NewPgxMedusaRepo(nil) == nil {
		t.Error("NewPgxMedusaRepo returned nil")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unique violation", &pq.Error{Code: "23505"}, true},
		{"wrapped unique violation", fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), true},
		{"foreign key violation", &pq.Error{Code: "23503"}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.want {
				t.Errorf("isUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClampPage(t *testing.T) {
	tests := []struct {
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{0, 0, 20, 0},
		{50, 10, 50, 10},
		{1000, -5, 20, 0},
		{-1, 3, 20, 3},
	}
	for _, tt := range tests {
		l, o := clampPage(tt.limit, tt.offset)
		if l != tt.wantLimit || o != tt.wantOffset {
			t.Errorf("clampPage(%d, %d) = (%d, %d), want (%d, %d)", tt.limit, tt.offset, l, o, tt.wantLimit, tt.wantOffset)
		}
	}
}

type fakeResult struct {
	rows int64
	err  error
}

func (f fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (f fakeResult) RowsAffected() (int64, error) { return f.rows, f.err }

func TestExpectOneRow(t *testing.T) {
	var _ sql.Result = fakeResult{}

	if err := expectOneRow(fakeResult{rows: 1}); err != nil {
		t.Errorf("expected nil for 1 row, got %v", err)
	}
	if err := expectOneRow(fakeResult{rows: 0}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for 0 rows, got %v", err)
	}
	if err := expectOneRow(fakeResult{err: errors.New("driver")}); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("expected wrapped driver error, got %v", err)
	}
}

func TestNewMedusaID_HasPrefixAndIsUnique(t *testing.T) {
	a := NewMedusaID("prod")
	b := NewMedusaID("prod")
	if !strings.HasPrefix(a, "prod_") {
		t.Errorf("id %q should start with prod_", a)
	}
	if strings.Contains(a, "-") {
		t.Errorf("id %q should not contain hyphens", a)
	}
	if a == b {
		t.Error("ids should be unique")
	}
}
