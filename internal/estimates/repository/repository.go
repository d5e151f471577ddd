// Package repository provides PostgreSQL persistence for repair orders,
// estimates and their line items.
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

const msgInvalidLink = "invalid or expired link"

// RepairOrder is the persisted work order a customer approved an estimate for.
type RepairOrder struct {
	ID            int64
	OrderNumber   string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Language      string
	VehicleYear   *int
	VehicleMake   *string
	VehicleModel  *string
	VehicleVIN    *string
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Estimate is the persisted estimate row, joined with its repair order.
type Estimate struct {
	ID                  int64
	RepairOrderID       int64
	EstimateNumber      string
	Status              string
	SubtotalCents       int64
	TaxRateBps          int64
	TaxAmountCents      int64
	TotalCents          int64
	ValidUntil          *time.Time
	ApprovalToken       *string
	CustomerViewedAt    *time.Time
	CustomerRespondedAt *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time

	Order RepairOrder
}

// Item is one estimate line item.
type Item struct {
	ID             int64
	EstimateID     int64
	ItemType       string
	Description    string
	Quantity       float64
	UnitPriceCents int64
	TotalCents     int64
	IsApproved     bool
	SortOrder      int
}

const estimateJoinColumns = `e.id, e.repair_order_id, e.estimate_number, e.status,
	e.subtotal_cents, e.tax_rate_bps, e.tax_amount_cents, e.total_cents,
	e.valid_until, e.approval_token, e.customer_viewed_at, e.customer_responded_at,
	e.created_at, e.updated_at,
	r.id, r.order_number, r.customer_name, r.customer_email, r.customer_phone,
	r.language, r.vehicle_year, r.vehicle_make, r.vehicle_model, r.vehicle_vin,
	r.status, r.created_at, r.updated_at`

// getByApprovalTokenQuery resolves an approval link. Superseded estimates
// fall through to no-rows like a wrong token; expiry is decided in the
// service so the customer gets a distinct 410.
const getByApprovalTokenQuery = `SELECT ` + estimateJoinColumns + `
	FROM estimates e
	JOIN repair_orders r ON r.id = e.repair_order_id
	WHERE e.approval_token = $1
	AND e.status <> 'superseded'`

// Repository provides estimate persistence on a pgx pool.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new estimates repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanEstimate(row pgx.Row) (*Estimate, error) {
	var e Estimate
	err := row.Scan(
		&e.ID, &e.RepairOrderID, &e.EstimateNumber, &e.Status,
		&e.SubtotalCents, &e.TaxRateBps, &e.TaxAmountCents, &e.TotalCents,
		&e.ValidUntil, &e.ApprovalToken, &e.CustomerViewedAt, &e.CustomerRespondedAt,
		&e.CreatedAt, &e.UpdatedAt,
		&e.Order.ID, &e.Order.OrderNumber, &e.Order.CustomerName, &e.Order.CustomerEmail,
		&e.Order.CustomerPhone, &e.Order.Language, &e.Order.VehicleYear, &e.Order.VehicleMake,
		&e.Order.VehicleModel, &e.Order.VehicleVIN, &e.Order.Status,
		&e.Order.CreatedAt, &e.Order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// CreateWithItems inserts a repair order, its estimate and the line items in
// one transaction. The estimate starts in draft with precomputed totals.
func (r *Repository) CreateWithItems(ctx context.Context, order *RepairOrder, estimate *Estimate, items []Item) (*Estimate, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin estimate transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var orderID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO repair_orders
			(order_number, customer_name, customer_email, customer_phone, language,
			vehicle_year, vehicle_make, vehicle_model, vehicle_vin, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'open')
		RETURNING id`,
		order.OrderNumber, order.CustomerName, order.CustomerEmail, order.CustomerPhone,
		order.Language, order.VehicleYear, order.VehicleMake, order.VehicleModel, order.VehicleVIN,
	).Scan(&orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert repair order: %w", err)
	}

	var estimateID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO estimates
			(repair_order_id, estimate_number, status,
			subtotal_cents, tax_rate_bps, tax_amount_cents, total_cents)
		VALUES ($1, $2, 'draft', $3, $4, $5, $6)
		RETURNING id`,
		orderID, estimate.EstimateNumber,
		estimate.SubtotalCents, estimate.TaxRateBps, estimate.TaxAmountCents, estimate.TotalCents,
	).Scan(&estimateID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert estimate: %w", err)
	}

	for i, item := range items {
		_, err = tx.Exec(ctx, `
			INSERT INTO estimate_items
				(estimate_id, item_type, description, quantity,
				unit_price_cents, total_cents, is_approved, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, true, $7)`,
			estimateID, item.ItemType, item.Description, item.Quantity,
			item.UnitPriceCents, item.TotalCents, i,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert estimate item: %w", err)
		}
	}

	saved, err := scanEstimate(tx.QueryRow(ctx, `SELECT `+estimateJoinColumns+`
		FROM estimates e JOIN repair_orders r ON r.id = e.repair_order_id
		WHERE e.id = $1`, estimateID))
	if err != nil {
		return nil, fmt.Errorf("failed to reload estimate: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit estimate: %w", err)
	}

	return saved, nil
}

// GetByApprovalToken resolves an approval link to its estimate.
func (r *Repository) GetByApprovalToken(ctx context.Context, tokenValue string) (*Estimate, error) {
	e, err := scanEstimate(r.pool.QueryRow(ctx, getByApprovalTokenQuery, tokenValue))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound(msgInvalidLink)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve approval token: %w", err)
	}
	return e, nil
}

// GetByID fetches an estimate with its repair order.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Estimate, error) {
	e, err := scanEstimate(r.pool.QueryRow(ctx, `SELECT `+estimateJoinColumns+`
		FROM estimates e JOIN repair_orders r ON r.id = e.repair_order_id
		WHERE e.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("estimate not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get estimate: %w", err)
	}
	return e, nil
}

// GetItems returns the line items in display order.
func (r *Repository) GetItems(ctx context.Context, estimateID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, estimate_id, item_type, description, quantity,
			unit_price_cents, total_cents, is_approved, sort_order
		FROM estimate_items
		WHERE estimate_id = $1
		ORDER BY sort_order`,
		estimateID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list estimate items: %w", err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var it Item
		if err := rows.Scan(
			&it.ID, &it.EstimateID, &it.ItemType, &it.Description, &it.Quantity,
			&it.UnitPriceCents, &it.TotalCents, &it.IsApproved, &it.SortOrder,
		); err != nil {
			return nil, fmt.Errorf("failed to scan estimate item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate estimate items: %w", err)
	}

	return items, nil
}

// MarkViewed stamps the first customer view and moves sent to viewed.
// Later views leave both untouched.
func (r *Repository) MarkViewed(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE estimates
		SET customer_viewed_at = COALESCE(customer_viewed_at, now()),
			status = CASE WHEN status = 'sent' THEN 'viewed' ELSE status END,
			updated_at = now()
		WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark estimate viewed: %w", err)
	}
	return nil
}

// MarkExpired flips a still-open estimate to expired. Reports whether the
// row actually moved, so concurrent flips are harmless.
func (r *Repository) MarkExpired(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE estimates
		SET status = 'expired', updated_at = now()
		WHERE id = $1 AND status IN ('sent', 'viewed')`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to expire estimate: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Send stamps the approval token and deadline and moves draft to sent.
func (r *Repository) Send(ctx context.Context, id int64, tokenValue string, validUntil time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE estimates
		SET status = 'sent', approval_token = $2, valid_until = $3, updated_at = now()
		WHERE id = $1 AND status = 'draft'`,
		id, tokenValue, validUntil,
	)
	if err != nil {
		return false, fmt.Errorf("failed to send estimate: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkSuperseded retires an estimate that has not been responded to.
func (r *Repository) MarkSuperseded(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE estimates
		SET status = 'superseded', updated_at = now()
		WHERE id = $1 AND status IN ('draft', 'sent', 'viewed', 'expired')`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to supersede estimate: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// FinalizeResponse records the per-item decisions and the recomputed totals
// in one transaction. The status condition makes the response single-shot:
// a second submission finds no row to move and reports a conflict upstream.
func (r *Repository) FinalizeResponse(ctx context.Context, id int64, approvals map[int64]bool, status string, subtotalCents, taxAmountCents, totalCents int64) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin response transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, `
		UPDATE estimates
		SET status = $2, subtotal_cents = $3, tax_amount_cents = $4, total_cents = $5,
			customer_responded_at = now(), updated_at = now()
		WHERE id = $1 AND status IN ('sent', 'viewed')`,
		id, status, subtotalCents, taxAmountCents, totalCents,
	)
	if err != nil {
		return false, fmt.Errorf("failed to finalize estimate response: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	for itemID, approved := range approvals {
		_, err = tx.Exec(ctx, `
			UPDATE estimate_items SET is_approved = $2
			WHERE id = $1 AND estimate_id = $3`,
			itemID, approved, id,
		)
		if err != nil {
			return false, fmt.Errorf("failed to record item decision: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit estimate response: %w", err)
	}

	return true, nil
}

// TransitionRepairOrder performs a conditional repair order status change.
func (r *Repository) TransitionRepairOrder(ctx context.Context, id int64, from, to string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE repair_orders
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`,
		id, from, to,
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition repair order: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// OrderNumberExists reports whether an order number is already taken.
func (r *Repository) OrderNumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM repair_orders WHERE order_number = $1)`, number,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check order number uniqueness: %w", err)
	}
	return exists, nil
}

// EstimateNumberExists reports whether an estimate number is already taken.
func (r *Repository) EstimateNumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM estimates WHERE estimate_number = $1)`, number,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check estimate number uniqueness: %w", err)
	}
	return exists, nil
}

// List returns estimates for the back office, newest first.
func (r *Repository) List(ctx context.Context, status string) ([]Estimate, error) {
	query := `SELECT ` + estimateJoinColumns + `
		FROM estimates e JOIN repair_orders r ON r.id = e.repair_order_id`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE e.status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY e.created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list estimates: %w", err)
	}
	defer rows.Close()

	out := make([]Estimate, 0)
	for rows.Next() {
		var e Estimate
		if err := rows.Scan(
			&e.ID, &e.RepairOrderID, &e.EstimateNumber, &e.Status,
			&e.SubtotalCents, &e.TaxRateBps, &e.TaxAmountCents, &e.TotalCents,
			&e.ValidUntil, &e.ApprovalToken, &e.CustomerViewedAt, &e.CustomerRespondedAt,
			&e.CreatedAt, &e.UpdatedAt,
			&e.Order.ID, &e.Order.OrderNumber, &e.Order.CustomerName, &e.Order.CustomerEmail,
			&e.Order.CustomerPhone, &e.Order.Language, &e.Order.VehicleYear, &e.Order.VehicleMake,
			&e.Order.VehicleModel, &e.Order.VehicleVIN, &e.Order.Status,
			&e.Order.CreatedAt, &e.Order.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan estimate: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate estimates: %w", err)
	}

	return out, nil
}
