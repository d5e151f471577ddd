// Package transport defines the request/response DTOs for the estimates module.
package transport

// EstimateStatus is the lifecycle state of an estimate.
type EstimateStatus string

const (
	// StatusDraft is set on creation, before the estimate is sent.
	StatusDraft EstimateStatus = "draft"
	// StatusSent means the approval link was emailed to the customer.
	StatusSent EstimateStatus = "sent"
	// StatusViewed means the customer opened the estimate at least once.
	StatusViewed EstimateStatus = "viewed"
	// StatusApproved means every line item was approved.
	StatusApproved EstimateStatus = "approved"
	// StatusPartial means some line items were approved and some declined.
	StatusPartial EstimateStatus = "partial"
	// StatusDeclined means every line item was declined.
	StatusDeclined EstimateStatus = "declined"
	// StatusExpired means the valid-until instant passed before a response.
	StatusExpired EstimateStatus = "expired"
	// StatusSuperseded means a newer estimate replaced this one.
	StatusSuperseded EstimateStatus = "superseded"
)

// CanRespond reports whether a customer response is still accepted.
// Expiry is checked separately against valid_until.
func (s EstimateStatus) CanRespond() bool {
	return s == StatusSent || s == StatusViewed
}

// Repair order statuses relevant to the estimate flow.
const (
	RepairOrderOpen            = "open"
	RepairOrderPendingApproval = "pending_approval"
	RepairOrderApproved        = "approved"
	RepairOrderInProgress      = "in_progress"
	RepairOrderCompleted       = "completed"
	RepairOrderCancelled       = "cancelled"
)

// Line item types. Discounts carry a negative unit price.
const (
	ItemLabor    = "labor"
	ItemParts    = "parts"
	ItemTire     = "tire"
	ItemFee      = "fee"
	ItemDiscount = "discount"
	ItemSublet   = "sublet"
)

// EstimateItemResponse is one line of the customer-facing estimate view.
type EstimateItemResponse struct {
	ID             int64   `json:"id"`
	ItemType       string  `json:"item_type"`
	Description    string  `json:"description"`
	Quantity       float64 `json:"quantity"`
	UnitPriceCents int64   `json:"unit_price_cents"`
	TotalCents     int64   `json:"total_cents"`
	IsApproved     bool    `json:"is_approved"`
}

// EstimateResponse is the customer-facing estimate view fetched by token.
type EstimateResponse struct {
	EstimateNumber string                 `json:"estimate_number"`
	Status         string                 `json:"status"`
	CustomerName   string                 `json:"customer_name"`
	VehicleLabel   string                 `json:"vehicle,omitempty"`
	Items          []EstimateItemResponse `json:"items"`
	SubtotalCents  int64                  `json:"subtotal_cents"`
	TaxRateBps     int64                  `json:"tax_rate_bps"`
	TaxAmountCents int64                  `json:"tax_amount_cents"`
	TotalCents     int64                  `json:"total_cents"`
	ValidUntil     string                 `json:"valid_until"`
	CanRespond     bool                   `json:"can_respond"`
}

// ItemDecision is one customer approval decision.
type ItemDecision struct {
	ItemID   int64 `json:"item_id" validate:"required"`
	Approved bool  `json:"approved"`
}

// RespondRequest carries the customer's per-item decisions. At least one
// line item must be decided; omitted items keep their prior approval state
// (default approved).
type RespondRequest struct {
	Decisions []ItemDecision `json:"decisions" validate:"required,min=1,dive"`
}

// RespondResponse confirms the recorded decision.
type RespondResponse struct {
	EstimateNumber     string `json:"estimate_number"`
	Status             string `json:"status"`
	ApprovedCount      int    `json:"approved_count"`
	DeclinedCount      int    `json:"declined_count"`
	ApprovedTotalCents int64  `json:"approved_total_cents"`
	TaxAmountCents     int64  `json:"tax_amount_cents"`
	TotalCents         int64  `json:"total_cents"`
}

// CreateEstimateItem is one line of the admin create payload.
type CreateEstimateItem struct {
	ItemType       string  `json:"item_type" validate:"required,oneof=labor parts tire fee discount sublet"`
	Description    string  `json:"description" validate:"required,max=300"`
	Quantity       float64 `json:"quantity" validate:"required,gt=0"`
	UnitPriceCents int64   `json:"unit_price_cents" validate:"required"`
}

// CreateEstimateRequest creates a repair order with its first estimate.
type CreateEstimateRequest struct {
	CustomerName  string  `json:"customer_name" validate:"required,min=2,max=120"`
	CustomerEmail string  `json:"customer_email" validate:"required,email"`
	CustomerPhone string  `json:"customer_phone" validate:"required,min=7,max=30"`
	Language      string  `json:"language" validate:"required,oneof=english spanish"`
	VehicleYear   *int    `json:"vehicle_year,omitempty" validate:"omitempty,min=1950,max=2030"`
	VehicleMake   *string `json:"vehicle_make,omitempty" validate:"omitempty,max=60"`
	VehicleModel  *string `json:"vehicle_model,omitempty" validate:"omitempty,max=60"`
	VehicleVIN    *string `json:"vehicle_vin,omitempty" validate:"omitempty,vin"`

	TaxRateBps int64                `json:"tax_rate_bps" validate:"min=0,max=3000"`
	Items      []CreateEstimateItem `json:"items" validate:"required,min=1,dive"`
}

// AdminEstimateResponse is the back-office projection of an estimate.
type AdminEstimateResponse struct {
	ID                 int64                  `json:"id"`
	RepairOrderID      int64                  `json:"repair_order_id"`
	OrderNumber        string                 `json:"order_number"`
	EstimateNumber     string                 `json:"estimate_number"`
	Status             string                 `json:"status"`
	CustomerName       string                 `json:"customer_name"`
	CustomerEmail      string                 `json:"customer_email"`
	Items              []EstimateItemResponse `json:"items"`
	SubtotalCents      int64                  `json:"subtotal_cents"`
	TaxRateBps         int64                  `json:"tax_rate_bps"`
	TaxAmountCents     int64                  `json:"tax_amount_cents"`
	TotalCents         int64                  `json:"total_cents"`
	ValidUntil         *string                `json:"valid_until,omitempty"`
	CustomerViewedAt   *string                `json:"customer_viewed_at,omitempty"`
	CustomerResponded  *string                `json:"customer_responded_at,omitempty"`
	RepairOrderStatus  string                 `json:"repair_order_status"`
}

// SendEstimateResponse confirms the estimate was sent.
type SendEstimateResponse struct {
	EstimateNumber string `json:"estimate_number"`
	Status         string `json:"status"`
	ValidUntil     string `json:"valid_until"`
}
