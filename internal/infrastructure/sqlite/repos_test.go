package sqlite_test

import (
	"testing"

	"github.com/tommyanhnguyen/house-price-pipeline/internal/domain"
	"github.com/tommyanhnguyen/house-price-pipeline/internal/domain/ledgertest"
	"github.com/tommyanhnguyen/house-price-pipeline/internal/domain/runrepotest"
	"github.com/tommyanhnguyen/house-price-pipeline/internal/infrastructure/sqlite"
)

func TestLedgerRepo(t *testing.T) {
	ledgertest.Run(t, func(t *testing.T) domain.ReleaseLedger {
		return &sqlite.LedgerRepo{DB: sqlite.OpenTestDB(t)}
	})
}

func TestRunRepo(t *testing.T) {
	runrepotest.Run(t, func(t *testing.T) domain.RunRepository {
		return &sqlite.RunRepo{DB: sqlite.OpenTestDB(t)}
	})
}
