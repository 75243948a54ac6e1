// README: Admin handlers for candidate lists, assignment, plans and subscriptions.
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"homeserve/internal/http/middleware"
	"homeserve/internal/modules/booking"
	"homeserve/internal/modules/matching"
	"homeserve/internal/modules/provider"
	"homeserve/internal/types"
)

type MatchingService interface {
	FindCandidates(ctx context.Context, q matching.Query) ([]matching.MatchResult, error)
	FindCandidatesForBooking(ctx context.Context, bookingID types.ID) ([]matching.MatchResult, error)
	Assign(ctx context.Context, cmd matching.AssignCommand) (*booking.Booking, error)
}

type SubscriptionService interface {
	Renew(ctx context.Context, cmd provider.RenewCommand) error
	Cancel(ctx context.Context, id types.ID) error
	MarkPastDue(ctx context.Context, id types.ID) error
	SetPlanLimit(ctx context.Context, p provider.Plan) error
}

type AdminHandler struct {
	matching      MatchingService
	subscriptions SubscriptionService
}

func NewAdminHandler(m MatchingService, subs SubscriptionService) *AdminHandler {
	return &AdminHandler{matching: m, subscriptions: subs}
}

// Candidates handles GET /api/admin/candidates?location=&skill=. skill may repeat or be
// comma separated.
func (h *AdminHandler) Candidates(c *gin.Context) {
	loc := strings.TrimSpace(c.Query("location"))
	if loc == "" {
		writeError(c, http.StatusBadRequest, "missing location")
		return
	}
	var skills []string
	for _, v := range c.QueryArray("skill") {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				skills = append(skills, s)
			}
		}
	}
	res, err := h.matching.FindCandidates(c.Request.Context(), matching.Query{Location: loc, Skills: skills})
	if err != nil {
		writeMatchingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"candidates": toCandidates(res)})
}

func (h *AdminHandler) BookingCandidates(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid booking id")
		return
	}
	res, err := h.matching.FindCandidatesForBooking(c.Request.Context(), types.ID(id))
	if err != nil {
		writeMatchingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"booking_id": id, "candidates": toCandidates(res)})
}

type assignReq struct {
	ProviderID string `json:"provider_id" binding:"required"`
}

func (h *AdminHandler) Assign(c *gin.Context) {
	id := c.Param("id")
	var req assignReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "provider_id is required")
		return
	}
	if !isValidID(id) || !isValidID(req.ProviderID) {
		writeError(c, http.StatusBadRequest, "invalid booking or provider id")
		return
	}
	actor := types.ID(middleware.CallerUID(c))
	b, err := h.matching.Assign(c.Request.Context(), matching.AssignCommand{
		BookingID:  types.ID(id),
		ProviderID: types.ID(req.ProviderID),
		ActorID:    &actor,
	})
	if err != nil {
		writeMatchingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toBooking(b))
}

type planReq struct {
	MonthlyBookingLimit *int `json:"monthly_booking_limit" binding:"required"`
}

func (h *AdminHandler) SetPlan(c *gin.Context) {
	var req planReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "monthly_booking_limit is required")
		return
	}
	plan := provider.Plan{Tier: provider.Tier(c.Param("tier")), MonthlyBookingLimit: *req.MonthlyBookingLimit}
	if err := h.subscriptions.SetPlanLimit(c.Request.Context(), plan); err != nil {
		writeProviderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"tier": plan.Tier, "monthly_booking_limit": plan.MonthlyBookingLimit})
}

type subscriptionReq struct {
	Action    string     `json:"action" binding:"required"`
	Tier      string     `json:"tier"`
	StartDate *time.Time `json:"start_date"`
}

// Subscription applies a renewal-handler action: renew, cancel or past_due.
func (h *AdminHandler) Subscription(c *gin.Context) {
	id := c.Param("id")
	var req subscriptionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "action is required")
		return
	}
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid provider id")
		return
	}
	ctx := c.Request.Context()
	var err error
	switch req.Action {
	case "renew":
		err = h.subscriptions.Renew(ctx, provider.RenewCommand{
			ProviderID: types.ID(id),
			Tier:       provider.Tier(req.Tier),
			StartDate:  req.StartDate,
		})
	case "cancel":
		err = h.subscriptions.Cancel(ctx, types.ID(id))
	case "past_due":
		err = h.subscriptions.MarkPastDue(ctx, types.ID(id))
	default:
		writeError(c, http.StatusBadRequest, "action must be renew, cancel or past_due")
		return
	}
	if err != nil {
		writeProviderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"provider_id": id, "action": req.Action})
}
