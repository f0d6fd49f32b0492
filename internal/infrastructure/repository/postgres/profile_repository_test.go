package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/onurdev/diagnosys/internal/core/domain"
)

func newProfileRepoWithMock(t *testing.T) (*ProfileRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	repo := NewProfileRepository(db)
	return repo, mock, func() { _ = db.Close() }
}

func TestProfileGetReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newProfileRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT user_id, allergies, updated_at").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestProfileGetServesSecondReadFromCache(t *testing.T) {
	repo, mock, done := newProfileRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"user_id", "allergies", "updated_at"}).
		AddRow("u-1", []byte(`["penicillin","aspirin"]`), time.Now().UTC())
	mock.ExpectQuery("SELECT user_id, allergies, updated_at").
		WithArgs("u-1").
		WillReturnRows(rows)

	first, err := repo.Get(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(first.Allergies) != 2 || first.Allergies[0] != "penicillin" {
		t.Fatalf("unexpected allergies: %v", first.Allergies)
	}

	// No second query expectation registered; a DB round-trip would fail here.
	second, err := repo.Get(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("cached Get() error = %v", err)
	}
	if len(second.Allergies) != 2 {
		t.Fatalf("unexpected cached allergies: %v", second.Allergies)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestProfileCacheExpires(t *testing.T) {
	repo, mock, done := newProfileRepoWithMock(t)
	defer done()

	current := time.Now()
	repo.now = func() time.Time { return current }

	rows := sqlmock.NewRows([]string{"user_id", "allergies", "updated_at"}).
		AddRow("u-1", []byte(`["ibuprofen"]`), time.Now().UTC())
	mock.ExpectQuery("SELECT user_id, allergies, updated_at").
		WithArgs("u-1").
		WillReturnRows(rows)

	if _, err := repo.Get(context.Background(), "u-1"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	current = current.Add(profileCacheTTL + time.Second)
	refreshed := sqlmock.NewRows([]string{"user_id", "allergies", "updated_at"}).
		AddRow("u-1", []byte(`["ibuprofen","codeine"]`), time.Now().UTC())
	mock.ExpectQuery("SELECT user_id, allergies, updated_at").
		WithArgs("u-1").
		WillReturnRows(refreshed)

	profile, err := repo.Get(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("Get() after expiry error = %v", err)
	}
	if len(profile.Allergies) != 2 {
		t.Fatalf("expected refreshed allergies, got %v", profile.Allergies)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestProfileUpsertInvalidatesCache(t *testing.T) {
	repo, mock, done := newProfileRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"user_id", "allergies", "updated_at"}).
		AddRow("u-1", []byte(`["aspirin"]`), time.Now().UTC())
	mock.ExpectQuery("SELECT user_id, allergies, updated_at").
		WithArgs("u-1").
		WillReturnRows(rows)
	if _, err := repo.Get(context.Background(), "u-1"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	mock.ExpectExec("INSERT INTO profiles").
		WithArgs("u-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	err := repo.Upsert(context.Background(), &domain.Profile{
		UserID:    "u-1",
		Allergies: []string{"aspirin", "sulfa"},
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	refreshed := sqlmock.NewRows([]string{"user_id", "allergies", "updated_at"}).
		AddRow("u-1", []byte(`["aspirin","sulfa"]`), time.Now().UTC())
	mock.ExpectQuery("SELECT user_id, allergies, updated_at").
		WithArgs("u-1").
		WillReturnRows(refreshed)

	profile, err := repo.Get(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("Get() after upsert error = %v", err)
	}
	if len(profile.Allergies) != 2 {
		t.Fatalf("expected cache invalidation to force re-read, got %v", profile.Allergies)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
