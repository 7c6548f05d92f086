package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestSlotTakenRecognizesExclusionViolation(t *testing.T) {
	exclusion := &pgconn.PgError{Code: exclusionViolation, ConstraintName: "appointments_no_overlap"}
	if !slotTaken(exclusion) {
		t.Error("exclusion violation not recognized")
	}
	if !slotTaken(fmt.Errorf("insert appointment: %w", exclusion)) {
		t.Error("wrapped exclusion violation not recognized")
	}

	if slotTaken(&pgconn.PgError{Code: "23505"}) {
		t.Error("unique violation misread as an occupied slot")
	}
	if slotTaken(errors.New("connection refused")) {
		t.Error("plain error misread as an occupied slot")
	}
	if slotTaken(nil) {
		t.Error("nil error misread as an occupied slot")
	}
}
