package service

import (
	"context"
	"testing"
	"time"

	"tireshop_backend/internal/estimates/repository"
	"tireshop_backend/internal/estimates/transport"
	"tireshop_backend/internal/events"
	"tireshop_backend/platform/apperr"
	"tireshop_backend/platform/logger"
)

type fakeStore struct {
	orders    map[int64]*repository.RepairOrder
	estimates map[int64]*repository.Estimate
	items     map[int64][]repository.Item
	nextID    int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders:    make(map[int64]*repository.RepairOrder),
		estimates: make(map[int64]*repository.Estimate),
		items:     make(map[int64][]repository.Item),
	}
}

func (f *fakeStore) CreateWithItems(_ context.Context, order *repository.RepairOrder, estimate *repository.Estimate, items []repository.Item) (*repository.Estimate, error) {
	f.nextID++
	o := *order
	o.ID = f.nextID
	o.Status = transport.RepairOrderOpen
	f.orders[o.ID] = &o

	f.nextID++
	e := *estimate
	e.ID = f.nextID
	e.RepairOrderID = o.ID
	e.Status = string(transport.StatusDraft)
	e.Order = o
	f.estimates[e.ID] = &e

	stored := make([]repository.Item, 0, len(items))
	for i, it := range items {
		f.nextID++
		it.ID = f.nextID
		it.EstimateID = e.ID
		it.SortOrder = i
		stored = append(stored, it)
	}
	f.items[e.ID] = stored
	return f.get(e.ID), nil
}

// get returns the estimate with its order join refreshed.
func (f *fakeStore) get(id int64) *repository.Estimate {
	e := f.estimates[id]
	e.Order = *f.orders[e.RepairOrderID]
	return e
}

func (f *fakeStore) GetByApprovalToken(_ context.Context, tokenValue string) (*repository.Estimate, error) {
	for id, e := range f.estimates {
		if e.ApprovalToken != nil && *e.ApprovalToken == tokenValue && e.Status != string(transport.StatusSuperseded) {
			return f.get(id), nil
		}
	}
	return nil, apperr.NotFound("invalid or expired link")
}

func (f *fakeStore) GetByID(_ context.Context, id int64) (*repository.Estimate, error) {
	if _, ok := f.estimates[id]; !ok {
		return nil, apperr.NotFound("estimate not found")
	}
	return f.get(id), nil
}

func (f *fakeStore) GetItems(_ context.Context, estimateID int64) ([]repository.Item, error) {
	return f.items[estimateID], nil
}

func (f *fakeStore) MarkViewed(_ context.Context, id int64) error {
	e := f.estimates[id]
	if e.CustomerViewedAt == nil {
		now := time.Now()
		e.CustomerViewedAt = &now
	}
	if e.Status == string(transport.StatusSent) {
		e.Status = string(transport.StatusViewed)
	}
	return nil
}

func (f *fakeStore) MarkExpired(_ context.Context, id int64) (bool, error) {
	e := f.estimates[id]
	if e.Status == string(transport.StatusSent) || e.Status == string(transport.StatusViewed) {
		e.Status = string(transport.StatusExpired)
		return true, nil
	}
	return false, nil
}

func (f *fakeStore) Send(_ context.Context, id int64, tokenValue string, validUntil time.Time) (bool, error) {
	e := f.estimates[id]
	if e.Status != string(transport.StatusDraft) {
		return false, nil
	}
	e.Status = string(transport.StatusSent)
	e.ApprovalToken = &tokenValue
	e.ValidUntil = &validUntil
	return true, nil
}

func (f *fakeStore) MarkSuperseded(_ context.Context, id int64) (bool, error) {
	e := f.estimates[id]
	switch e.Status {
	case string(transport.StatusDraft), string(transport.StatusSent),
		string(transport.StatusViewed), string(transport.StatusExpired):
		e.Status = string(transport.StatusSuperseded)
		return true, nil
	}
	return false, nil
}

func (f *fakeStore) FinalizeResponse(_ context.Context, id int64, approvals map[int64]bool, status string, subtotalCents, taxAmountCents, totalCents int64) (bool, error) {
	e := f.estimates[id]
	if e.Status != string(transport.StatusSent) && e.Status != string(transport.StatusViewed) {
		return false, nil
	}
	e.Status = status
	e.SubtotalCents = subtotalCents
	e.TaxAmountCents = taxAmountCents
	e.TotalCents = totalCents
	now := time.Now()
	e.CustomerRespondedAt = &now
	for i := range f.items[id] {
		if decided, ok := approvals[f.items[id][i].ID]; ok {
			f.items[id][i].IsApproved = decided
		}
	}
	return true, nil
}

func (f *fakeStore) TransitionRepairOrder(_ context.Context, id int64, from, to string) (bool, error) {
	o, ok := f.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (f *fakeStore) OrderNumberExists(context.Context, string) (bool, error)    { return false, nil }
func (f *fakeStore) EstimateNumberExists(context.Context, string) (bool, error) { return false, nil }

func (f *fakeStore) List(_ context.Context, _ string) ([]repository.Estimate, error) {
	out := make([]repository.Estimate, 0, len(f.estimates))
	for id := range f.estimates {
		out = append(out, *f.get(id))
	}
	return out, nil
}

type recordingBus struct {
	published []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.published = append(b.published, event)
}
func (b *recordingBus) PublishSync(_ context.Context, event events.Event) error {
	b.published = append(b.published, event)
	return nil
}
func (b *recordingBus) Subscribe(string, events.Handler) {}

func createRequest() transport.CreateEstimateRequest {
	return transport.CreateEstimateRequest{
		CustomerName:  "James Carter",
		CustomerEmail: "james@example.com",
		CustomerPhone: "(555) 876-5432",
		Language:      "english",
		TaxRateBps:    1000,
		Items: []transport.CreateEstimateItem{
			{ItemType: transport.ItemLabor, Description: "Brake pad replacement", Quantity: 1, UnitPriceCents: 10000},
			{ItemType: transport.ItemParts, Description: "Front pads", Quantity: 1, UnitPriceCents: 5000},
			{ItemType: transport.ItemFee, Description: "Shop supplies", Quantity: 1, UnitPriceCents: 2500},
		},
	}
}

// sentEstimate creates and sends an estimate, returning the service, store,
// bus and approval token.
func sentEstimate(t *testing.T) (*Service, *fakeStore, *recordingBus, string) {
	t.Helper()
	store := newFakeStore()
	bus := &recordingBus{}
	svc := New(store, bus, logger.New("development"))

	created, err := svc.Create(context.Background(), createRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Send(context.Background(), created.ID); err != nil {
		t.Fatalf("Send: %v", err)
	}
	return svc, store, bus, *store.estimates[created.ID].ApprovalToken
}

func decisions(store *fakeStore, estimateID int64, approve map[int]bool) []transport.ItemDecision {
	out := make([]transport.ItemDecision, 0)
	for i, it := range store.items[estimateID] {
		out = append(out, transport.ItemDecision{ItemID: it.ID, Approved: approve[i]})
	}
	return out
}

func soleEstimateID(store *fakeStore) int64 {
	for id := range store.estimates {
		return id
	}
	return 0
}

func TestCreateComputesTotals(t *testing.T) {
	store := newFakeStore()
	svc := New(store, &recordingBus{}, logger.New("development"))

	resp, err := svc.Create(context.Background(), createRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if resp.Status != string(transport.StatusDraft) {
		t.Fatalf("status = %q, want draft", resp.Status)
	}
	if resp.SubtotalCents != 17500 || resp.TaxAmountCents != 1750 || resp.TotalCents != 19250 {
		t.Fatalf("totals = %d/%d/%d", resp.SubtotalCents, resp.TaxAmountCents, resp.TotalCents)
	}
}

func TestSendMintsTokenAndPendsOrder(t *testing.T) {
	_, store, bus, tokenValue := sentEstimate(t)

	if len(tokenValue) != 64 {
		t.Fatalf("approval token length = %d, want 64", len(tokenValue))
	}
	id := soleEstimateID(store)
	order := store.orders[store.estimates[id].RepairOrderID]
	if order.Status != transport.RepairOrderPendingApproval {
		t.Fatalf("order status = %q, want pending_approval", order.Status)
	}

	sent, ok := bus.published[len(bus.published)-1].(events.EstimateSent)
	if !ok {
		t.Fatalf("last event is %T", bus.published[len(bus.published)-1])
	}
	if sent.ApprovalToken != tokenValue {
		t.Fatal("sent event must carry the approval token")
	}
}

func TestSendTwiceConflicts(t *testing.T) {
	svc, store, _, _ := sentEstimate(t)
	_, err := svc.Send(context.Background(), soleEstimateID(store))
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("second send err = %v, want conflict", err)
	}
}

func TestGetPublicStampsFirstView(t *testing.T) {
	svc, store, _, tokenValue := sentEstimate(t)

	resp, err := svc.GetPublic(context.Background(), tokenValue)
	if err != nil {
		t.Fatalf("GetPublic: %v", err)
	}
	if resp.Status != string(transport.StatusViewed) {
		t.Fatalf("status = %q, want viewed", resp.Status)
	}
	if !resp.CanRespond {
		t.Fatal("viewed estimate must still accept a response")
	}

	id := soleEstimateID(store)
	first := store.estimates[id].CustomerViewedAt
	if first == nil {
		t.Fatal("first view must stamp customer_viewed_at")
	}

	if _, err := svc.GetPublic(context.Background(), tokenValue); err != nil {
		t.Fatalf("second view: %v", err)
	}
	if store.estimates[id].CustomerViewedAt != first {
		t.Fatal("second view must not restamp customer_viewed_at")
	}
}

func TestGetPublicExpiresLazily(t *testing.T) {
	svc, store, _, tokenValue := sentEstimate(t)
	svc.now = func() time.Time { return time.Now().Add(ApprovalTokenTTL + time.Hour) }

	_, err := svc.GetPublic(context.Background(), tokenValue)
	if !apperr.Is(err, apperr.KindGone) {
		t.Fatalf("expired view err = %v, want gone", err)
	}
	if store.estimates[soleEstimateID(store)].Status != string(transport.StatusExpired) {
		t.Fatal("expired view must flip the status")
	}

	// Responding after expiry is equally gone.
	_, err = svc.Respond(context.Background(), tokenValue, transport.RespondRequest{})
	if !apperr.Is(err, apperr.KindGone) {
		t.Fatalf("expired respond err = %v, want gone", err)
	}
}

func TestRespondAllApproved(t *testing.T) {
	svc, store, bus, tokenValue := sentEstimate(t)
	id := soleEstimateID(store)

	resp, err := svc.Respond(context.Background(), tokenValue, transport.RespondRequest{
		Decisions: decisions(store, id, map[int]bool{0: true, 1: true, 2: true}),
	})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if resp.Status != string(transport.StatusApproved) {
		t.Fatalf("status = %q, want approved", resp.Status)
	}
	if resp.TotalCents != 19250 {
		t.Fatalf("total = %d, want 19250", resp.TotalCents)
	}

	order := store.orders[store.estimates[id].RepairOrderID]
	if order.Status != transport.RepairOrderApproved {
		t.Fatalf("order status = %q, want approved", order.Status)
	}

	responded := bus.published[len(bus.published)-1].(events.EstimateResponded)
	if responded.ApprovedCount != 3 || responded.DeclinedCount != 0 {
		t.Fatalf("event counts = %d/%d", responded.ApprovedCount, responded.DeclinedCount)
	}
}

func TestRespondPartialRecomputesApprovedOnly(t *testing.T) {
	svc, store, _, tokenValue := sentEstimate(t)
	id := soleEstimateID(store)

	resp, err := svc.Respond(context.Background(), tokenValue, transport.RespondRequest{
		Decisions: decisions(store, id, map[int]bool{0: true, 1: true, 2: false}),
	})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if resp.Status != string(transport.StatusPartial) {
		t.Fatalf("status = %q, want partial", resp.Status)
	}
	if resp.ApprovedTotalCents != 15000 || resp.TaxAmountCents != 1500 || resp.TotalCents != 16500 {
		t.Fatalf("totals = %d/%d/%d", resp.ApprovedTotalCents, resp.TaxAmountCents, resp.TotalCents)
	}

	// Partial approval still moves the order forward.
	order := store.orders[store.estimates[id].RepairOrderID]
	if order.Status != transport.RepairOrderApproved {
		t.Fatalf("order status = %q, want approved", order.Status)
	}
}

func TestRespondAllDeclinedLeavesOrderPending(t *testing.T) {
	svc, store, _, tokenValue := sentEstimate(t)
	id := soleEstimateID(store)

	resp, err := svc.Respond(context.Background(), tokenValue, transport.RespondRequest{
		Decisions: decisions(store, id, map[int]bool{}),
	})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if resp.Status != string(transport.StatusDeclined) {
		t.Fatalf("status = %q, want declined", resp.Status)
	}
	order := store.orders[store.estimates[id].RepairOrderID]
	if order.Status != transport.RepairOrderPendingApproval {
		t.Fatalf("order status = %q, want pending_approval", order.Status)
	}
}

// Items the customer does not mention keep their default-approved state
// and their value stays in the recomputed totals.
func TestRespondOmittedItemsKeepPriorApproval(t *testing.T) {
	svc, store, _, tokenValue := sentEstimate(t)
	id := soleEstimateID(store)

	// Decline only the middle line (5000); the other two are not mentioned.
	resp, err := svc.Respond(context.Background(), tokenValue, transport.RespondRequest{
		Decisions: []transport.ItemDecision{
			{ItemID: store.items[id][1].ID, Approved: false},
		},
	})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}

	if resp.Status != string(transport.StatusPartial) {
		t.Fatalf("status = %q, want partial", resp.Status)
	}
	if resp.ApprovedCount != 2 || resp.DeclinedCount != 1 {
		t.Fatalf("counts = %d/%d, want 2 approved / 1 declined", resp.ApprovedCount, resp.DeclinedCount)
	}
	if resp.ApprovedTotalCents != 12500 || resp.TaxAmountCents != 1250 || resp.TotalCents != 13750 {
		t.Fatalf("totals = %d/%d/%d, want 12500/1250/13750",
			resp.ApprovedTotalCents, resp.TaxAmountCents, resp.TotalCents)
	}

	wantApproved := []bool{true, false, true}
	for i, it := range store.items[id] {
		if it.IsApproved != wantApproved[i] {
			t.Errorf("item %d IsApproved = %v, want %v", i, it.IsApproved, wantApproved[i])
		}
	}
}

func TestRespondRejectsDuplicateAndUnknownItems(t *testing.T) {
	svc, store, _, tokenValue := sentEstimate(t)
	id := soleEstimateID(store)
	all := decisions(store, id, map[int]bool{0: true, 1: true, 2: true})

	_, err := svc.Respond(context.Background(), tokenValue, transport.RespondRequest{
		Decisions: append(all[:2], transport.ItemDecision{ItemID: all[0].ItemID, Approved: false}),
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("duplicate decision err = %v, want validation", err)
	}

	_, err = svc.Respond(context.Background(), tokenValue, transport.RespondRequest{
		Decisions: append(all[:2], transport.ItemDecision{ItemID: 99999, Approved: true}),
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("unknown item err = %v, want validation", err)
	}
}

func TestRespondIsSingleShot(t *testing.T) {
	svc, store, _, tokenValue := sentEstimate(t)
	id := soleEstimateID(store)
	all := decisions(store, id, map[int]bool{0: true, 1: true, 2: true})

	if _, err := svc.Respond(context.Background(), tokenValue, transport.RespondRequest{Decisions: all}); err != nil {
		t.Fatalf("first respond: %v", err)
	}
	_, err := svc.Respond(context.Background(), tokenValue, transport.RespondRequest{Decisions: all})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("second respond err = %v, want conflict", err)
	}
}

func TestSupersedeAfterResponseConflicts(t *testing.T) {
	svc, store, _, tokenValue := sentEstimate(t)
	id := soleEstimateID(store)

	if err := svc.Supersede(context.Background(), id); err != nil {
		t.Fatalf("supersede before response: %v", err)
	}
	// The superseded estimate's link resolves to nothing.
	_, err := svc.GetPublic(context.Background(), tokenValue)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("superseded view err = %v, want not found", err)
	}

	svc2, store2, _, token2 := sentEstimate(t)
	id2 := soleEstimateID(store2)
	all := decisions(store2, id2, map[int]bool{0: true, 1: true, 2: true})
	if _, err := svc2.Respond(context.Background(), token2, transport.RespondRequest{Decisions: all}); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if err := svc2.Supersede(context.Background(), id2); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("supersede after response err = %v, want conflict", err)
	}
}
