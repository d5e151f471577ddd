// Package service contains the estimate lifecycle and approval logic.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tireshop_backend/internal/estimates/repository"
	"tireshop_backend/internal/estimates/transport"
	"tireshop_backend/internal/events"
	"tireshop_backend/internal/token"
	"tireshop_backend/platform/apperr"
	"tireshop_backend/platform/logger"
	"tireshop_backend/platform/phone"
	"tireshop_backend/platform/sanitize"
)

const (
	numberAttempts = 10
	orderPrefix    = "RO-"
	estimatePrefix = "EST-"
)

// ApprovalTokenTTL is how long a sent estimate stays open for a response.
// valid_until is set from this at send time.
const ApprovalTokenTTL = 14 * 24 * time.Hour

// Store is the persistence surface the service depends on.
type Store interface {
	CreateWithItems(ctx context.Context, order *repository.RepairOrder, estimate *repository.Estimate, items []repository.Item) (*repository.Estimate, error)
	GetByApprovalToken(ctx context.Context, tokenValue string) (*repository.Estimate, error)
	GetByID(ctx context.Context, id int64) (*repository.Estimate, error)
	GetItems(ctx context.Context, estimateID int64) ([]repository.Item, error)
	MarkViewed(ctx context.Context, id int64) error
	MarkExpired(ctx context.Context, id int64) (bool, error)
	Send(ctx context.Context, id int64, tokenValue string, validUntil time.Time) (bool, error)
	MarkSuperseded(ctx context.Context, id int64) (bool, error)
	FinalizeResponse(ctx context.Context, id int64, approvals map[int64]bool, status string, subtotalCents, taxAmountCents, totalCents int64) (bool, error)
	TransitionRepairOrder(ctx context.Context, id int64, from, to string) (bool, error)
	OrderNumberExists(ctx context.Context, number string) (bool, error)
	EstimateNumberExists(ctx context.Context, number string) (bool, error)
	List(ctx context.Context, status string) ([]repository.Estimate, error)
}

// Service orchestrates estimate creation, sending and customer responses.
type Service struct {
	repo Store
	bus  events.Bus
	log  *logger.Logger
	now  func() time.Time
}

// New creates the estimates service.
func New(repo Store, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, log: log, now: time.Now}
}

// GetPublic resolves an approval link to the customer-facing view. Opening
// an estimate past valid_until flips it to expired and reports 410; the
// first successful view stamps customer_viewed_at.
func (s *Service) GetPublic(ctx context.Context, tokenValue string) (*transport.EstimateResponse, error) {
	e, err := s.repo.GetByApprovalToken(ctx, tokenValue)
	if err != nil {
		return nil, err
	}

	status := transport.EstimateStatus(e.Status)
	if status.CanRespond() && e.ValidUntil != nil && s.now().After(*e.ValidUntil) {
		if _, err := s.repo.MarkExpired(ctx, e.ID); err != nil {
			return nil, err
		}
		return nil, apperr.Gone("this estimate has expired, please contact the shop for a new one")
	}
	if status == transport.StatusExpired {
		return nil, apperr.Gone("this estimate has expired, please contact the shop for a new one")
	}

	if status == transport.StatusSent || e.CustomerViewedAt == nil {
		if err := s.repo.MarkViewed(ctx, e.ID); err != nil {
			return nil, err
		}
		if status == transport.StatusSent {
			status = transport.StatusViewed
		}
	}

	items, err := s.repo.GetItems(ctx, e.ID)
	if err != nil {
		return nil, err
	}

	return publicView(e, status, items), nil
}

// Respond records the customer's per-item decisions. Every line item must be
// decided exactly once; the recomputed totals cover approved lines only.
func (s *Service) Respond(ctx context.Context, tokenValue string, req transport.RespondRequest) (*transport.RespondResponse, error) {
	e, err := s.repo.GetByApprovalToken(ctx, tokenValue)
	if err != nil {
		return nil, err
	}

	status := transport.EstimateStatus(e.Status)
	if status.CanRespond() && e.ValidUntil != nil && s.now().After(*e.ValidUntil) {
		if _, err := s.repo.MarkExpired(ctx, e.ID); err != nil {
			return nil, err
		}
		return nil, apperr.Gone("this estimate has expired, please contact the shop for a new one")
	}
	if status == transport.StatusExpired {
		return nil, apperr.Gone("this estimate has expired, please contact the shop for a new one")
	}
	if !status.CanRespond() {
		return nil, apperr.Conflict("this estimate has already been responded to")
	}

	items, err := s.repo.GetItems(ctx, e.ID)
	if err != nil {
		return nil, err
	}

	approvals, err := matchDecisions(items, req.Decisions)
	if err != nil {
		return nil, err
	}

	totals, approved, declined := ComputeApprovedTotals(items, approvals, e.TaxRateBps)
	finalStatus := DeriveStatus(approved, declined)

	moved, err := s.repo.FinalizeResponse(ctx, e.ID, approvals, string(finalStatus),
		totals.SubtotalCents, totals.TaxAmountCents, totals.TotalCents)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, apperr.Conflict("this estimate has already been responded to")
	}

	if finalStatus == transport.StatusApproved || finalStatus == transport.StatusPartial {
		s.advanceRepairOrder(ctx, e.RepairOrderID)
	}

	s.bus.Publish(ctx, events.EstimateResponded{
		BaseEvent:          events.NewBaseEvent(),
		EstimateID:         e.ID,
		EstimateNumber:     e.EstimateNumber,
		Status:             string(finalStatus),
		ApprovedCount:      approved,
		DeclinedCount:      declined,
		ApprovedTotalCents: totals.SubtotalCents,
		CustomerName:       e.Order.CustomerName,
		CustomerEmail:      e.Order.CustomerEmail,
		CustomerPhone:      e.Order.CustomerPhone,
		Language:           e.Order.Language,
	})

	s.log.EstimateEvent("estimate_responded", e.EstimateNumber, string(finalStatus))

	return &transport.RespondResponse{
		EstimateNumber:     e.EstimateNumber,
		Status:             string(finalStatus),
		ApprovedCount:      approved,
		DeclinedCount:      declined,
		ApprovedTotalCents: totals.SubtotalCents,
		TaxAmountCents:     totals.TaxAmountCents,
		TotalCents:         totals.TotalCents,
	}, nil
}

// advanceRepairOrder moves the order forward after an approval. The
// transition is explicit and one-way; an order not in pending_approval is
// left alone.
func (s *Service) advanceRepairOrder(ctx context.Context, orderID int64) {
	moved, err := s.repo.TransitionRepairOrder(ctx, orderID,
		transport.RepairOrderPendingApproval, transport.RepairOrderApproved)
	if err != nil {
		s.log.SideEffectFailure("advance_repair_order", err)
		return
	}
	if !moved {
		s.log.Warn("repair order not advanced", "repair_order_id", orderID)
	}
}

// matchDecisions validates that each decision names a known line item at
// most once. Items the customer does not mention are simply not in the
// returned map; they keep their stored approval state.
func matchDecisions(items []repository.Item, decisions []transport.ItemDecision) (map[int64]bool, error) {
	known := make(map[int64]bool, len(items))
	for _, it := range items {
		known[it.ID] = true
	}

	approvals := make(map[int64]bool, len(decisions))
	for _, d := range decisions {
		if !known[d.ItemID] {
			return nil, apperr.Validation(fmt.Sprintf("unknown line item %d", d.ItemID))
		}
		if _, dup := approvals[d.ItemID]; dup {
			return nil, apperr.Validation(fmt.Sprintf("line item %d decided twice", d.ItemID))
		}
		approvals[d.ItemID] = d.Approved
	}
	return approvals, nil
}

// Create builds a repair order with its first estimate in draft.
func (s *Service) Create(ctx context.Context, req transport.CreateEstimateRequest) (*transport.AdminEstimateResponse, error) {
	orderNumber, err := s.uniqueNumber(ctx, orderPrefix, s.repo.OrderNumberExists)
	if err != nil {
		return nil, err
	}
	estimateNumber, err := s.uniqueNumber(ctx, estimatePrefix, s.repo.EstimateNumberExists)
	if err != nil {
		return nil, err
	}

	items := make([]repository.Item, 0, len(req.Items))
	for _, in := range req.Items {
		items = append(items, repository.Item{
			ItemType:       in.ItemType,
			Description:    sanitize.Text(in.Description),
			Quantity:       in.Quantity,
			UnitPriceCents: in.UnitPriceCents,
			TotalCents:     ItemTotalCents(in.Quantity, in.UnitPriceCents),
			IsApproved:     true,
		})
	}
	totals := ComputeTotals(items, req.TaxRateBps)

	order := &repository.RepairOrder{
		OrderNumber:   orderNumber,
		CustomerName:  sanitize.Text(req.CustomerName),
		CustomerEmail: sanitize.Text(req.CustomerEmail),
		CustomerPhone: phone.NormalizeE164(req.CustomerPhone),
		Language:      req.Language,
		VehicleYear:   req.VehicleYear,
		VehicleMake:   sanitize.TextPtr(req.VehicleMake),
		VehicleModel:  sanitize.TextPtr(req.VehicleModel),
		VehicleVIN:    req.VehicleVIN,
	}
	estimate := &repository.Estimate{
		EstimateNumber: estimateNumber,
		TaxRateBps:     req.TaxRateBps,
		SubtotalCents:  totals.SubtotalCents,
		TaxAmountCents: totals.TaxAmountCents,
		TotalCents:     totals.TotalCents,
	}

	saved, err := s.repo.CreateWithItems(ctx, order, estimate, items)
	if err != nil {
		return nil, err
	}

	savedItems, err := s.repo.GetItems(ctx, saved.ID)
	if err != nil {
		return nil, err
	}

	s.log.EstimateEvent("estimate_created", saved.EstimateNumber, saved.Status)

	return adminView(saved, savedItems), nil
}

// Send mints the approval token, sets the response deadline and emails the
// customer via the estimates.sent event.
func (s *Service) Send(ctx context.Context, id int64) (*transport.SendEstimateResponse, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	approval, err := token.NewCapability(token.PurposeEstimateApproval, ApprovalTokenTTL)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to generate approval token", err)
	}

	moved, err := s.repo.Send(ctx, e.ID, approval.Value, approval.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, apperr.Conflict("estimate cannot be sent from its current status")
	}

	// A freshly sent estimate puts the order in front of the customer.
	if _, err := s.repo.TransitionRepairOrder(ctx, e.RepairOrderID,
		transport.RepairOrderOpen, transport.RepairOrderPendingApproval); err != nil {
		s.log.SideEffectFailure("pend_repair_order", err)
	}

	s.bus.Publish(ctx, events.EstimateSent{
		BaseEvent:      events.NewBaseEvent(),
		EstimateID:     e.ID,
		EstimateNumber: e.EstimateNumber,
		CustomerName:   e.Order.CustomerName,
		CustomerEmail:  e.Order.CustomerEmail,
		Language:       e.Order.Language,
		TotalCents:     e.TotalCents,
		ValidUntil:     approval.ExpiresAt.Format(time.RFC3339),
		ApprovalToken:  approval.Value,
	})

	s.log.EstimateEvent("estimate_sent", e.EstimateNumber, string(transport.StatusSent))

	return &transport.SendEstimateResponse{
		EstimateNumber: e.EstimateNumber,
		Status:         string(transport.StatusSent),
		ValidUntil:     approval.ExpiresAt.Format(time.RFC3339),
	}, nil
}

// Supersede retires an estimate that was replaced by a newer one.
func (s *Service) Supersede(ctx context.Context, id int64) error {
	moved, err := s.repo.MarkSuperseded(ctx, id)
	if err != nil {
		return err
	}
	if !moved {
		return apperr.Conflict("estimate cannot be superseded after a customer response")
	}
	return nil
}

// AdminList returns estimates for the back office.
func (s *Service) AdminList(ctx context.Context, status string) ([]transport.AdminEstimateResponse, error) {
	rows, err := s.repo.List(ctx, status)
	if err != nil {
		return nil, err
	}
	out := make([]transport.AdminEstimateResponse, 0, len(rows))
	for i := range rows {
		items, err := s.repo.GetItems(ctx, rows[i].ID)
		if err != nil {
			return nil, err
		}
		out = append(out, *adminView(&rows[i], items))
	}
	return out, nil
}

// AdminGet returns one estimate with its items.
func (s *Service) AdminGet(ctx context.Context, id int64) (*transport.AdminEstimateResponse, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.GetItems(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	return adminView(e, items), nil
}

func (s *Service) uniqueNumber(ctx context.Context, prefix string, exists func(context.Context, string) (bool, error)) (string, error) {
	for i := 0; i < numberAttempts; i++ {
		code, err := token.NewCode(prefix)
		if err != nil {
			return "", apperr.Wrap(apperr.KindInternal, "failed to generate number", err)
		}
		taken, err := exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", apperr.Internal("could not allocate a unique number")
}

func itemViews(items []repository.Item) []transport.EstimateItemResponse {
	out := make([]transport.EstimateItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, transport.EstimateItemResponse{
			ID:             it.ID,
			ItemType:       it.ItemType,
			Description:    it.Description,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
			TotalCents:     it.TotalCents,
			IsApproved:     it.IsApproved,
		})
	}
	return out
}

func vehicleLabel(o repository.RepairOrder) string {
	parts := make([]string, 0, 3)
	if o.VehicleYear != nil {
		parts = append(parts, fmt.Sprintf("%d", *o.VehicleYear))
	}
	if o.VehicleMake != nil {
		parts = append(parts, *o.VehicleMake)
	}
	if o.VehicleModel != nil {
		parts = append(parts, *o.VehicleModel)
	}
	return strings.Join(parts, " ")
}

func publicView(e *repository.Estimate, status transport.EstimateStatus, items []repository.Item) *transport.EstimateResponse {
	validUntil := ""
	if e.ValidUntil != nil {
		validUntil = e.ValidUntil.Format(time.RFC3339)
	}
	return &transport.EstimateResponse{
		EstimateNumber: e.EstimateNumber,
		Status:         string(status),
		CustomerName:   e.Order.CustomerName,
		VehicleLabel:   vehicleLabel(e.Order),
		Items:          itemViews(items),
		SubtotalCents:  e.SubtotalCents,
		TaxRateBps:     e.TaxRateBps,
		TaxAmountCents: e.TaxAmountCents,
		TotalCents:     e.TotalCents,
		ValidUntil:     validUntil,
		CanRespond:     status.CanRespond(),
	}
}

func adminView(e *repository.Estimate, items []repository.Item) *transport.AdminEstimateResponse {
	resp := &transport.AdminEstimateResponse{
		ID:                e.ID,
		RepairOrderID:     e.RepairOrderID,
		OrderNumber:       e.Order.OrderNumber,
		EstimateNumber:    e.EstimateNumber,
		Status:            e.Status,
		CustomerName:      e.Order.CustomerName,
		CustomerEmail:     e.Order.CustomerEmail,
		Items:             itemViews(items),
		SubtotalCents:     e.SubtotalCents,
		TaxRateBps:        e.TaxRateBps,
		TaxAmountCents:    e.TaxAmountCents,
		TotalCents:        e.TotalCents,
		RepairOrderStatus: e.Order.Status,
	}
	if e.ValidUntil != nil {
		v := e.ValidUntil.Format(time.RFC3339)
		resp.ValidUntil = &v
	}
	if e.CustomerViewedAt != nil {
		v := e.CustomerViewedAt.Format(time.RFC3339)
		resp.CustomerViewedAt = &v
	}
	if e.CustomerRespondedAt != nil {
		v := e.CustomerRespondedAt.Format(time.RFC3339)
		resp.CustomerResponded = &v
	}
	return resp
}
