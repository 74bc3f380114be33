package main

import (
	"errors"
	"testing"

	"github.com/tommyanhnguyen/house-price-pipeline/internal/domain"
)

// A non-committed run must exit nonzero through the error return, not
// os.Exit, so deferred cleanup (worker shutdown, database close) runs.
func TestReleaseErr(t *testing.T) {
	if err := releaseErr(domain.RunStatusCommitted); err != nil {
		t.Errorf("releaseErr(committed) = %v, want nil", err)
	}
	for _, status := range []domain.RunStatus{
		domain.RunStatusFailed,
		domain.RunStatusRolledBack,
	} {
		if err := releaseErr(status); !errors.Is(err, errNotCommitted) {
			t.Errorf("releaseErr(%s) = %v, want errNotCommitted", status, err)
		}
	}
}
