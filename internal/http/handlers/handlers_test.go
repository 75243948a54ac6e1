package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"homeserve/internal/http/middleware"
	"homeserve/internal/infra"
	"homeserve/internal/modules/booking"
	"homeserve/internal/modules/matching"
	"homeserve/internal/modules/provider"
	"homeserve/internal/types"
)

type tokenTable map[string]*infra.FirebaseToken

func (t tokenTable) VerifyIDToken(_ context.Context, idToken string) (*infra.FirebaseToken, error) {
	if tok, ok := t[idToken]; ok {
		return tok, nil
	}
	return nil, errors.New("unknown token")
}

var tokens = tokenTable{
	"admin":    {UID: "admin-1", Claims: map[string]any{"role": "admin"}},
	"provider": {UID: "prov-1", Claims: map[string]any{"role": "provider"}},
	"customer": {UID: "cust-1", Claims: map[string]any{}},
}

type stubMatching struct {
	mu          sync.Mutex
	query       matching.Query
	assignCmd   matching.AssignCommand
	results     []matching.MatchResult
	err         error
	assigned    *booking.Booking
	forBookings []types.ID
}

func (s *stubMatching) FindCandidates(_ context.Context, q matching.Query) ([]matching.MatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = q
	return s.results, s.err
}

func (s *stubMatching) FindCandidatesForBooking(_ context.Context, id types.ID) ([]matching.MatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forBookings = append(s.forBookings, id)
	return s.results, s.err
}

func (s *stubMatching) Assign(_ context.Context, cmd matching.AssignCommand) (*booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignCmd = cmd
	return s.assigned, s.err
}

type stubSubscriptions struct {
	calls []string
	plan  provider.Plan
	renew provider.RenewCommand
	err   error
}

func (s *stubSubscriptions) Renew(_ context.Context, cmd provider.RenewCommand) error {
	s.calls = append(s.calls, "renew")
	s.renew = cmd
	return s.err
}

func (s *stubSubscriptions) Cancel(_ context.Context, id types.ID) error {
	s.calls = append(s.calls, "cancel:"+string(id))
	return s.err
}

func (s *stubSubscriptions) MarkPastDue(_ context.Context, id types.ID) error {
	s.calls = append(s.calls, "past_due:"+string(id))
	return s.err
}

func (s *stubSubscriptions) SetPlanLimit(_ context.Context, p provider.Plan) error {
	s.plan = p
	return s.err
}

type stubBookings struct {
	created booking.CreateCommand
	cancel  booking.CancelCommand
	actions []string
	b       *booking.Booking
	err     error
}

func (s *stubBookings) Create(_ context.Context, cmd booking.CreateCommand) (types.ID, error) {
	s.created = cmd
	return "b-new", s.err
}

func (s *stubBookings) Get(_ context.Context, id types.ID) (*booking.Booking, error) {
	if s.b == nil {
		return nil, booking.ErrNotFound
	}
	return s.b, nil
}

func (s *stubBookings) Accept(_ context.Context, cmd booking.AcceptCommand) error {
	s.actions = append(s.actions, fmt.Sprintf("accept:%s:%s", cmd.BookingID, cmd.ProviderID))
	return s.err
}

func (s *stubBookings) Reject(_ context.Context, cmd booking.RejectCommand) error {
	s.actions = append(s.actions, fmt.Sprintf("reject:%s:%s", cmd.BookingID, cmd.ProviderID))
	return s.err
}

func (s *stubBookings) Complete(_ context.Context, cmd booking.CompleteCommand) error {
	s.actions = append(s.actions, fmt.Sprintf("complete:%s:%s", cmd.BookingID, cmd.ProviderID))
	return s.err
}

func (s *stubBookings) Cancel(_ context.Context, cmd booking.CancelCommand) error {
	s.cancel = cmd
	return s.err
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Auth(tokens))
	return r
}

func do(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestCandidatesParsesSkills(t *testing.T) {
	meters := 2100
	m := &stubMatching{results: []matching.MatchResult{{
		Provider:       &provider.Provider{ID: "p1", Skills: []string{"plumbing"}, Tier: provider.TierPro},
		DistanceMeters: &meters,
		MatchedBy:      "distance",
		IsEligible:     true,
		BookingLimit:   20,
	}}}
	r := newEngine()
	h := NewAdminHandler(m, &stubSubscriptions{})
	r.GET("/candidates", h.Candidates)

	w := do(t, r, http.MethodGet, "/candidates?location=Baker+Street&skill=plumbing,+electrical&skill=painting", "admin", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if m.query.Location != "Baker Street" {
		t.Fatalf("unexpected location %q", m.query.Location)
	}
	want := []string{"plumbing", "electrical", "painting"}
	if fmt.Sprint(m.query.Skills) != fmt.Sprint(want) {
		t.Fatalf("skills: got %v want %v", m.query.Skills, want)
	}
	var out struct {
		Candidates []candidateResponse `json:"candidates"`
	}
	decode(t, w, &out)
	if len(out.Candidates) != 1 || out.Candidates[0].ProviderID != "p1" || *out.Candidates[0].DistanceMeters != 2100 {
		t.Fatalf("unexpected body %+v", out)
	}
	if out.Candidates[0].BookingLimit != 20 || out.Candidates[0].SubscriptionTier != "pro" {
		t.Fatalf("unexpected plan fields %+v", out.Candidates[0])
	}
}

func TestCandidatesRequiresLocation(t *testing.T) {
	r := newEngine()
	r.GET("/candidates", NewAdminHandler(&stubMatching{}, &stubSubscriptions{}).Candidates)
	w := do(t, r, http.MethodGet, "/candidates?location=++", "admin", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAssignErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: monthly limit of 5 reached", matching.ErrIneligible), http.StatusConflict, "ineligible"},
		{fmt.Errorf("%w: 80000m away", matching.ErrOutOfRange), http.StatusConflict, "out_of_range"},
		{matching.ErrScheduleConflict, http.StatusConflict, "schedule_conflict"},
		{matching.ErrInvalidState, http.StatusConflict, "invalid_state"},
		{matching.ErrNotFound, http.StatusNotFound, "not_found"},
		{matching.ErrBadRequest, http.StatusBadRequest, "bad_request"},
		{matching.ErrPersistence, http.StatusServiceUnavailable, "persistence"},
	}
	for _, tc := range cases {
		m := &stubMatching{err: tc.err}
		r := newEngine()
		r.POST("/bookings/:id/assign", NewAdminHandler(m, &stubSubscriptions{}).Assign)
		w := do(t, r, http.MethodPost, "/bookings/b1/assign", "admin", map[string]string{"provider_id": "p1"})
		if w.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, w.Code)
		}
		var out errorResponse
		decode(t, w, &out)
		if out.Code != matching.ErrorCode(tc.err) || out.Code != tc.code {
			t.Fatalf("%v: unexpected code %q", tc.err, out.Code)
		}
	}
}

func TestAssignPassesActor(t *testing.T) {
	pid := types.ID("p1")
	m := &stubMatching{assigned: &booking.Booking{ID: "b1", CustomerID: "c1", ProviderID: &pid, Status: booking.StatusAssigned}}
	r := newEngine()
	r.POST("/bookings/:id/assign", NewAdminHandler(m, &stubSubscriptions{}).Assign)
	w := do(t, r, http.MethodPost, "/bookings/b1/assign", "admin", map[string]string{"provider_id": "p1"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if m.assignCmd.BookingID != "b1" || m.assignCmd.ProviderID != "p1" {
		t.Fatalf("unexpected command %+v", m.assignCmd)
	}
	if m.assignCmd.ActorID == nil || *m.assignCmd.ActorID != "admin-1" {
		t.Fatalf("expected admin actor, got %v", m.assignCmd.ActorID)
	}
	var out bookingResponse
	decode(t, w, &out)
	if out.Status != "assigned" || out.ProviderID == nil || *out.ProviderID != "p1" {
		t.Fatalf("unexpected body %+v", out)
	}

	w = do(t, r, http.MethodPost, "/bookings/b1/assign", "admin", map[string]string{"provider_id": ""})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty provider, got %d", w.Code)
	}
}

func TestSubscriptionActions(t *testing.T) {
	subs := &stubSubscriptions{}
	r := newEngine()
	h := NewAdminHandler(&stubMatching{}, subs)
	r.POST("/providers/:id/subscription", h.Subscription)
	r.PUT("/plans/:tier", h.SetPlan)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, body := range []map[string]any{
		{"action": "renew", "tier": "elite", "start_date": start},
		{"action": "cancel"},
		{"action": "past_due"},
	} {
		if w := do(t, r, http.MethodPost, "/providers/p9/subscription", "admin", body); w.Code != http.StatusOK {
			t.Fatalf("%v: expected 200, got %d", body["action"], w.Code)
		}
	}
	if fmt.Sprint(subs.calls) != "[renew cancel:p9 past_due:p9]" {
		t.Fatalf("unexpected calls %v", subs.calls)
	}
	if subs.renew.Tier != provider.TierElite || subs.renew.StartDate == nil || !subs.renew.StartDate.Equal(start) {
		t.Fatalf("unexpected renew command %+v", subs.renew)
	}

	if w := do(t, r, http.MethodPost, "/providers/p9/subscription", "admin", map[string]any{"action": "upgrade"}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown action, got %d", w.Code)
	}
	if w := do(t, r, http.MethodPost, "/providers/p9/subscription", "admin", map[string]any{}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without action, got %d", w.Code)
	}
	subs.err = provider.ErrNotFound
	if w := do(t, r, http.MethodPost, "/providers/p9/subscription", "admin", map[string]any{"action": "cancel"}); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	subs.err = nil

	if w := do(t, r, http.MethodPut, "/plans/pro", "admin", map[string]any{"monthly_booking_limit": 0}); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if subs.plan.Tier != provider.TierPro || subs.plan.MonthlyBookingLimit != 0 {
		t.Fatalf("unexpected plan %+v", subs.plan)
	}
	if w := do(t, r, http.MethodPut, "/plans/pro", "admin", map[string]any{}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without limit, got %d", w.Code)
	}
}

func TestBookingCreateUsesCaller(t *testing.T) {
	svc := &stubBookings{}
	r := newEngine()
	r.POST("/bookings", NewBookingHandler(svc).Create)
	when := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	w := do(t, r, http.MethodPost, "/bookings", "customer", map[string]any{
		"location":       "221B Baker Street",
		"required_skill": "plumbing",
		"scheduled_time": when,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if svc.created.CustomerID != "cust-1" || svc.created.Location != "221B Baker Street" || !svc.created.ScheduledTime.Equal(when) {
		t.Fatalf("unexpected command %+v", svc.created)
	}

	svc.created = booking.CreateCommand{}
	for _, body := range []map[string]any{
		{"location": "", "scheduled_time": when},
		{"location": "Pune"},
	} {
		if w := do(t, r, http.MethodPost, "/bookings", "customer", body); w.Code != http.StatusBadRequest {
			t.Fatalf("%v: expected 400, got %d", body, w.Code)
		}
	}
	if svc.created.CustomerID != "" {
		t.Fatalf("service called for incomplete request: %+v", svc.created)
	}

	svc.err = booking.ErrBadRequest
	if w := do(t, r, http.MethodPost, "/bookings", "customer", map[string]any{"location": "Pune", "scheduled_time": when}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 from service, got %d", w.Code)
	}
}

func TestBookingGetVisibility(t *testing.T) {
	pid := types.ID("prov-1")
	svc := &stubBookings{b: &booking.Booking{ID: "b1", CustomerID: "cust-1", ProviderID: &pid, Status: booking.StatusAssigned}}
	r := newEngine()
	r.GET("/bookings/:id", NewBookingHandler(svc).Get)

	for _, tok := range []string{"customer", "provider", "admin"} {
		if w := do(t, r, http.MethodGet, "/bookings/b1", tok, nil); w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", tok, w.Code)
		}
	}
	other := types.ID("prov-2")
	svc.b.ProviderID = &other
	if w := do(t, r, http.MethodGet, "/bookings/b1", "provider", nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for unrelated provider, got %d", w.Code)
	}
	svc.b = nil
	if w := do(t, r, http.MethodGet, "/bookings/b1", "admin", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestBookingCancelActor(t *testing.T) {
	cases := map[string]string{
		"customer": booking.ActorCustomer,
		"provider": booking.ActorProvider,
		"admin":    booking.ActorAdmin,
	}
	for tok, actor := range cases {
		svc := &stubBookings{}
		r := newEngine()
		r.POST("/bookings/:id/cancel", NewBookingHandler(svc).Cancel)
		if w := do(t, r, http.MethodPost, "/bookings/b1/cancel", tok, nil); w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", tok, w.Code)
		}
		if svc.cancel.ActorType != actor || svc.cancel.ActorID == nil || *svc.cancel.ActorID != types.ID(tokens[tok].UID) {
			t.Fatalf("%s: unexpected command %+v", tok, svc.cancel)
		}
	}

	svc := &stubBookings{err: booking.ErrForbidden}
	r := newEngine()
	r.POST("/bookings/:id/cancel", NewBookingHandler(svc).Cancel)
	if w := do(t, r, http.MethodPost, "/bookings/b1/cancel", "customer", nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestProviderActions(t *testing.T) {
	svc := &stubBookings{}
	r := newEngine()
	h := NewBookingHandler(svc)
	r.POST("/bookings/:id/accept", h.Accept)
	r.POST("/bookings/:id/reject", h.Reject)
	r.POST("/bookings/:id/complete", h.Complete)

	for _, action := range []string{"accept", "reject", "complete"} {
		if w := do(t, r, http.MethodPost, "/bookings/b1/"+action, "provider", nil); w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", action, w.Code)
		}
	}
	want := "[accept:b1:prov-1 reject:b1:prov-1 complete:b1:prov-1]"
	if fmt.Sprint(svc.actions) != want {
		t.Fatalf("unexpected actions %v", svc.actions)
	}

	svc.err = booking.ErrInvalidState
	if w := do(t, r, http.MethodPost, "/bookings/b1/complete", "provider", nil); w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestIsValidID(t *testing.T) {
	for _, id := range []string{"abc123", "0f5e2c1d9a7b4e3f8c6d5a4b3c2d1e0f", "Uid_with-dash"} {
		if !isValidID(id) {
			t.Fatalf("expected %q valid", id)
		}
	}
	for _, id := range []string{"", "has space", "semi;colon", string(make([]byte, 200))} {
		if isValidID(id) {
			t.Fatalf("expected %q invalid", id)
		}
	}
}
