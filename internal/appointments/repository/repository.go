// Package repository provides PostgreSQL persistence for appointments.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tireshop_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	msgInvalidLink = "invalid or expired link"
	msgSlotFull    = "this time slot is fully booked, please pick another time"
	msgDuplicate   = "an appointment already exists for this email at that time"
)

// Appointment is the persisted booking row.
type Appointment struct {
	ID              int64
	ReferenceNumber string
	Service         string
	PreferredDate   time.Time
	PreferredTime   string
	CustomerName    string
	CustomerPhone   string
	CustomerEmail   string
	Language        string
	VehicleYear     *int
	VehicleMake     *string
	VehicleModel    *string
	VehicleVIN      *string
	Notes           *string
	Status          string
	CancelToken     *string
	CancelTokenExp  *time.Time
	CancelReason    *string

	// Side-channel fields, written only by the side-effect coordinator.
	GoogleEventID      *string
	CalendarSyncStatus string
	PaymentID          *string
	PaymentStatus      *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

const appointmentColumns = `id, reference_number, service, preferred_date, preferred_time,
	customer_name, customer_phone, customer_email, language,
	vehicle_year, vehicle_make, vehicle_model, vehicle_vin, notes,
	status, cancel_token, cancel_token_expires, cancel_reason,
	google_event_id, calendar_sync_status, payment_id, payment_status,
	created_at, updated_at`

// countActiveAtSlotQuery counts non-terminal appointments holding a slot.
// Terminal rows (cancelled, completed) release their capacity.
const countActiveAtSlotQuery = `SELECT COUNT(*) FROM appointments
	WHERE preferred_date = $1 AND preferred_time = $2
	AND status NOT IN ('cancelled', 'completed')
	AND ($3::bigint IS NULL OR id <> $3)`

// countDuplicateForEmailQuery enforces the one-booking-per-email-per-slot
// rule. Completed rows still count here; only cancelled rows are released.
const countDuplicateForEmailQuery = `SELECT COUNT(*) FROM appointments
	WHERE customer_email = $1 AND preferred_date = $2 AND preferred_time = $3
	AND status <> 'cancelled'`

// getByManagementTokenQuery resolves a live capability. Expired tokens and
// terminal rows fall through to no-rows, indistinguishable from a wrong value.
const getByManagementTokenQuery = `SELECT ` + appointmentColumns + `
	FROM appointments
	WHERE cancel_token = $1
	AND cancel_token_expires > now()
	AND status NOT IN ('cancelled', 'completed')`

// Repository provides appointment persistence on a pgx pool.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new appointments repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID, &a.ReferenceNumber, &a.Service, &a.PreferredDate, &a.PreferredTime,
		&a.CustomerName, &a.CustomerPhone, &a.CustomerEmail, &a.Language,
		&a.VehicleYear, &a.VehicleMake, &a.VehicleModel, &a.VehicleVIN, &a.Notes,
		&a.Status, &a.CancelToken, &a.CancelTokenExp, &a.CancelReason,
		&a.GoogleEventID, &a.CalendarSyncStatus, &a.PaymentID, &a.PaymentStatus,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// lockSlot serializes all capacity decisions for one (date, time) pair for
// the remainder of the transaction, closing the count-then-insert race.
func lockSlot(ctx context.Context, tx pgx.Tx, date time.Time, slotTime string) error {
	key := date.Format("2006-01-02") + "|" + slotTime
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("failed to lock slot: %w", err)
	}
	return nil
}

// CreateWithSlotGuard inserts a new appointment after re-checking the
// duplicate and capacity rules under the slot lock. The evaluation order
// (duplicate before capacity) keeps error messages deterministic.
func (r *Repository) CreateWithSlotGuard(ctx context.Context, a *Appointment, capacity int) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin booking transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := lockSlot(ctx, tx, a.PreferredDate, a.PreferredTime); err != nil {
		return nil, err
	}

	var duplicates int
	err = tx.QueryRow(ctx, countDuplicateForEmailQuery,
		a.CustomerEmail, a.PreferredDate, a.PreferredTime,
	).Scan(&duplicates)
	if err != nil {
		return nil, fmt.Errorf("failed to check duplicate booking: %w", err)
	}
	if duplicates > 0 {
		return nil, apperr.Conflict(msgDuplicate)
	}

	var occupied int
	err = tx.QueryRow(ctx, countActiveAtSlotQuery,
		a.PreferredDate, a.PreferredTime, nil,
	).Scan(&occupied)
	if err != nil {
		return nil, fmt.Errorf("failed to count slot occupancy: %w", err)
	}
	if occupied >= capacity {
		return nil, apperr.Conflict(msgSlotFull)
	}

	saved, err := scanAppointment(tx.QueryRow(ctx, `
		INSERT INTO appointments
			(reference_number, service, preferred_date, preferred_time,
			customer_name, customer_phone, customer_email, language,
			vehicle_year, vehicle_make, vehicle_model, vehicle_vin, notes,
			status, calendar_sync_status)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 'new', 'pending')
		RETURNING `+appointmentColumns,
		a.ReferenceNumber, a.Service, a.PreferredDate, a.PreferredTime,
		a.CustomerName, a.CustomerPhone, a.CustomerEmail, a.Language,
		a.VehicleYear, a.VehicleMake, a.VehicleModel, a.VehicleVIN, a.Notes,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit booking: %w", err)
	}

	return saved, nil
}

// RescheduleWithSlotGuard moves an appointment to a new slot after
// re-checking capacity under the slot lock, excluding the appointment's own
// row from the count. The old management token is replaced and any prior
// confirmation is discarded.
func (r *Repository) RescheduleWithSlotGuard(ctx context.Context, id int64, newDate time.Time, newTime string, newToken string, newTokenExpires time.Time, capacity int) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin reschedule transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := lockSlot(ctx, tx, newDate, newTime); err != nil {
		return nil, err
	}

	var occupied int
	err = tx.QueryRow(ctx, countActiveAtSlotQuery, newDate, newTime, id).Scan(&occupied)
	if err != nil {
		return nil, fmt.Errorf("failed to count slot occupancy: %w", err)
	}
	if occupied >= capacity {
		return nil, apperr.Conflict(msgSlotFull)
	}

	saved, err := scanAppointment(tx.QueryRow(ctx, `
		UPDATE appointments
		SET preferred_date = $2, preferred_time = $3, status = 'new',
			cancel_token = $4, cancel_token_expires = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns,
		id, newDate, newTime, newToken, newTokenExpires,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound(msgInvalidLink)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reschedule appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit reschedule: %w", err)
	}

	return saved, nil
}

// GetByManagementToken resolves a live management capability to its
// appointment. Every failure mode maps to the same generic not-found error.
func (r *Repository) GetByManagementToken(ctx context.Context, tokenValue string) (*Appointment, error) {
	saved, err := scanAppointment(r.pool.QueryRow(ctx, getByManagementTokenQuery, tokenValue))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound(msgInvalidLink)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve management token: %w", err)
	}
	return saved, nil
}

// GetByID fetches an appointment row.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	saved, err := scanAppointment(r.pool.QueryRow(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("appointment not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return saved, nil
}

// ReferenceExists reports whether a reference number is already taken.
func (r *Repository) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM appointments WHERE reference_number = $1)`,
		reference,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check reference uniqueness: %w", err)
	}
	return exists, nil
}

// SetManagementToken stores a freshly minted capability on the row.
func (r *Repository) SetManagementToken(ctx context.Context, id int64, tokenValue string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET cancel_token = $2, cancel_token_expires = $3, updated_at = now()
		WHERE id = $1`,
		id, tokenValue, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to set management token: %w", err)
	}
	return nil
}

// Cancel marks the appointment cancelled and clears the capability so the
// same link cannot be replayed.
func (r *Repository) Cancel(ctx context.Context, id int64, reason *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET status = 'cancelled', cancel_token = NULL, cancel_token_expires = NULL,
			cancel_reason = $2, updated_at = now()
		WHERE id = $1`,
		id, reason,
	)
	if err != nil {
		return fmt.Errorf("failed to cancel appointment: %w", err)
	}
	return nil
}

// CountActiveAtSlot counts non-terminal appointments at a slot, optionally
// excluding one row. Used by the public availability endpoint; booking and
// reschedule re-check under the slot lock.
func (r *Repository) CountActiveAtSlot(ctx context.Context, date time.Time, slotTime string, excludeID *int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, countActiveAtSlotQuery, date, slotTime, excludeID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count slot occupancy: %w", err)
	}
	return count, nil
}

// CountBySlotForDate returns the non-terminal occupancy per slot time for
// one day, keyed by the HH:MM slot string. Slots with no rows are absent.
func (r *Repository) CountBySlotForDate(ctx context.Context, date time.Time) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT preferred_time, COUNT(*)
		FROM appointments
		WHERE preferred_date = $1
		AND status NOT IN ('cancelled', 'completed')
		GROUP BY preferred_time`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count day occupancy: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var slot string
		var count int
		if err := rows.Scan(&slot, &count); err != nil {
			return nil, fmt.Errorf("failed to scan day occupancy: %w", err)
		}
		counts[slot] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate day occupancy: %w", err)
	}

	return counts, nil
}

// SetCalendarSync records the outcome of a calendar side effect so later
// transitions can tell "no event exists" from "sync previously failed".
func (r *Repository) SetCalendarSync(ctx context.Context, id int64, eventID *string, status string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET google_event_id = $2, calendar_sync_status = $3, updated_at = now()
		WHERE id = $1`,
		id, eventID, status,
	)
	if err != nil {
		return fmt.Errorf("failed to set calendar sync state: %w", err)
	}
	return nil
}

// SetPayment records the outcome of the optional payment side effect.
func (r *Repository) SetPayment(ctx context.Context, id int64, paymentID *string, status string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET payment_id = $2, payment_status = $3, updated_at = now()
		WHERE id = $1`,
		id, paymentID, status,
	)
	if err != nil {
		return fmt.Errorf("failed to set payment state: %w", err)
	}
	return nil
}

// TransitionStatus performs a conditional status transition and reports
// whether a row actually moved.
func (r *Repository) TransitionStatus(ctx context.Context, id int64, from, to string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`,
		id, from, to,
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition appointment status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// List returns appointments within an optional date range and status filter,
// newest slot first.
func (r *Repository) List(ctx context.Context, fromDate, toDate *time.Time, status string) ([]Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE 1=1`
	args := []interface{}{}
	argIndex := 1

	if fromDate != nil {
		query += fmt.Sprintf(" AND preferred_date >= $%d", argIndex)
		args = append(args, *fromDate)
		argIndex++
	}
	if toDate != nil {
		query += fmt.Sprintf(" AND preferred_date <= $%d", argIndex)
		args = append(args, *toDate)
		argIndex++
	}
	if status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, status)
		argIndex++
	}

	query += " ORDER BY preferred_date DESC, preferred_time DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	items := make([]Appointment, 0)
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(
			&a.ID, &a.ReferenceNumber, &a.Service, &a.PreferredDate, &a.PreferredTime,
			&a.CustomerName, &a.CustomerPhone, &a.CustomerEmail, &a.Language,
			&a.VehicleYear, &a.VehicleMake, &a.VehicleModel, &a.VehicleVIN, &a.Notes,
			&a.Status, &a.CancelToken, &a.CancelTokenExp, &a.CancelReason,
			&a.GoogleEventID, &a.CalendarSyncStatus, &a.PaymentID, &a.PaymentStatus,
			&a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate appointments: %w", err)
	}

	return items, nil
}
