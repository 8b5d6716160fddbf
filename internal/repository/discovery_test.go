//nolint:testpackage // Testing internal repository requires same package access
package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/camphubhq/pipeline/internal/logger"
	"github.com/camphubhq/pipeline/internal/models"
)

func TestDiscoveryRepository_Create(t *testing.T) {
	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	defer db.Close()

	repo := NewDiscoveryRepository(db, logger.NewNopLogger())
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO discovered_sources").
		WithArgs(
			sqlmock.AnyArg(), // generated id
			"https://campwild.example.com",
			"campwild.example.com",
			"Camp Wild",
			"Outdoor adventure camps for kids",
			"summer camps seattle",
			models.DiscoveryPendingAnalysis,
			sqlmock.AnyArg(), // created_at
			sqlmock.AnyArg(), // updated_at
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ds := &models.DiscoveredSource{
		URL:            "https://campwild.example.com",
		Domain:         "campwild.example.com",
		Title:          "Camp Wild",
		Snippet:        "Outdoor adventure camps for kids",
		DiscoveryQuery: "summer camps seattle",
		Status:         models.DiscoveryPendingAnalysis,
	}
	if err := repo.Create(ctx, ds); err != nil {
		t.Errorf("Create() error = %v", err)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unmet expectations: %v", expectErr)
	}
}

/// The guarded UPDATE keeps concurrent reviews from double-applying: only
// the caller that observes the expected current status wins.
func TestDiscoveryRepository_UpdateStatus_Guarded(t *testing.T) {
	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	defer db.Close()

	repo := NewDiscoveryRepository(db, logger.NewNopLogger())
	ctx := context.Background()

	mock.ExpectExec("UPDATE discovered_sources").
		WithArgs("ds-1", models.DiscoveryPendingReview, models.DiscoveryApproved,
			"reviewer@camphub", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(ctx, "ds-1",
		models.DiscoveryPendingReview, models.DiscoveryApproved, "reviewer@camphub")
	if err != nil {
		t.Errorf("UpdateStatus() error = %v", err)
	}

	// Second apply sees a different current status and affects no rows.
	mock.ExpectExec("UPDATE discovered_sources").
		WithArgs("ds-1", models.DiscoveryPendingReview, models.DiscoveryApproved,
			"reviewer@camphub", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.UpdateStatus(ctx, "ds-1",
		models.DiscoveryPendingReview, models.DiscoveryApproved, "reviewer@camphub")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateStatus() error = %v, want ErrNotFound", err)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unmet expectations: %v", expectErr)
	}
}

// Machine transitions carry no reviewer: reviewed_at stays NULL while
// updated_at still receives a timestamp.
func TestDiscoveryRepository_UpdateStatus_NoReviewer(t *testing.T) {
	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	defer db.Close()

	repo := NewDiscoveryRepository(db, logger.NewNopLogger())

	mock.ExpectExec("UPDATE discovered_sources").
		WithArgs("ds-1", models.DiscoveryPendingAnalysis, models.DiscoveryDuplicate,
			"", nil, notNilArg{}).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "ds-1",
		models.DiscoveryPendingAnalysis, models.DiscoveryDuplicate, "")
	if err != nil {
		t.Errorf("UpdateStatus() error = %v", err)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unmet expectations: %v", expectErr)
	}
}

// notNilArg matches any non-NULL bound value.
type notNilArg struct{}

func (notNilArg) Match(v driver.Value) bool {
	return v != nil
}

func TestDiscoveryRepository_SaveAnalysis(t *testing.T) {
	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	defer db.Close()

	repo := NewDiscoveryRepository(db, logger.NewNopLogger())

	analysis := &models.SiteAnalysis{
		IsLikelyCampSite: true,
		Confidence:       0.87,
	}

	mock.ExpectExec("UPDATE discovered_sources").
		WithArgs("ds-1", analysis, models.DiscoveryPendingReview,
			sqlmock.AnyArg(), models.DiscoveryPendingAnalysis).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveAnalysis(context.Background(), "ds-1", analysis, models.DiscoveryPendingReview)
	if err != nil {
		t.Errorf("SaveAnalysis() error = %v", err)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unmet expectations: %v", expectErr)
	}
}

func TestDiscoveryRepository_ExistsNonTerminalForDomain(t *testing.T) {
	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	defer db.Close()

	repo := NewDiscoveryRepository(db, logger.NewNopLogger())

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("campwild.example.com",
			models.DiscoveryPendingAnalysis,
			models.DiscoveryPendingReview,
			models.DiscoveryApproved,
		).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	exists, err := repo.ExistsNonTerminalForDomain(context.Background(), "campwild.example.com")
	if err != nil {
		t.Errorf("ExistsNonTerminalForDomain() error = %v", err)
	}
	if exists {
		t.Error("ExistsNonTerminalForDomain() = true, want false")
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unmet expectations: %v", expectErr)
	}
}
