package repository

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCountActiveAtSlotQueryReleasesTerminalRows(t *testing.T) {
	if !strings.Contains(countActiveAtSlotQuery, "status NOT IN ('cancelled', 'completed')") {
		t.Fatalf("capacity count must exclude cancelled and completed rows:\n%s", countActiveAtSlotQuery)
	}
	if !strings.Contains(countActiveAtSlotQuery, "id <> $3") {
		t.Fatalf("capacity count must support excluding the rescheduled row:\n%s", countActiveAtSlotQuery)
	}
}

func TestDuplicateQueryOnlyReleasesCancelledRows(t *testing.T) {
	if !strings.Contains(countDuplicateForEmailQuery, "status <> 'cancelled'") {
		t.Fatalf("duplicate check must count completed rows:\n%s", countDuplicateForEmailQuery)
	}
	if strings.Contains(countDuplicateForEmailQuery, "completed") {
		t.Fatalf("duplicate check must not exclude completed rows:\n%s", countDuplicateForEmailQuery)
	}
}

// The scan targets use *string for notes and *int for vehicle_year; the
// schema has to agree or bookings without notes fail at insert time.
func TestMigrationColumnTypesMatchScanTargets(t *testing.T) {
	appointments := readMigration(t, "00001_create_appointments.sql")
	if !strings.Contains(appointments, "notes TEXT,") {
		t.Fatalf("notes must be a nullable TEXT column:\n%s", appointments)
	}
	if strings.Contains(appointments, "notes TEXT NOT NULL") {
		t.Fatalf("notes must allow NULL for bookings without notes:\n%s", appointments)
	}
	if !strings.Contains(appointments, "vehicle_year INT,") {
		t.Fatalf("vehicle_year must be INT to scan into *int:\n%s", appointments)
	}

	orders := readMigration(t, "00002_create_repair_orders_estimates.sql")
	if !strings.Contains(orders, "vehicle_year INT,") {
		t.Fatalf("repair_orders.vehicle_year must be INT to scan into *int:\n%s", orders)
	}
}

func readMigration(t *testing.T, name string) string {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("..", "..", "..", "migrations", name))
	if err != nil {
		t.Fatalf("read migration %s: %v", name, err)
	}
	return string(raw)
}

func TestManagementTokenQueryRejectsExpiredAndTerminal(t *testing.T) {
	for _, fragment := range []string{
		"cancel_token = $1",
		"cancel_token_expires > now()",
		"status NOT IN ('cancelled', 'completed')",
	} {
		if !strings.Contains(getByManagementTokenQuery, fragment) {
			t.Fatalf("token lookup missing %q:\n%s", fragment, getByManagementTokenQuery)
		}
	}
}
