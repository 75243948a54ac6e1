// README: Booking handlers for customers and assigned providers.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"homeserve/internal/http/middleware"
	"homeserve/internal/modules/booking"
	"homeserve/internal/types"
)

type BookingService interface {
	Create(ctx context.Context, cmd booking.CreateCommand) (types.ID, error)
	Get(ctx context.Context, id types.ID) (*booking.Booking, error)
	Accept(ctx context.Context, cmd booking.AcceptCommand) error
	Reject(ctx context.Context, cmd booking.RejectCommand) error
	Complete(ctx context.Context, cmd booking.CompleteCommand) error
	Cancel(ctx context.Context, cmd booking.CancelCommand) error
}

type BookingHandler struct {
	booking BookingService
}

func NewBookingHandler(svc BookingService) *BookingHandler {
	return &BookingHandler{booking: svc}
}

type createBookingReq struct {
	Location      string    `json:"location" binding:"required"`
	RequiredSkill string    `json:"required_skill"`
	ScheduledTime time.Time `json:"scheduled_time" binding:"required"`
}

// Create books a service for the calling customer.
func (h *BookingHandler) Create(c *gin.Context) {
	var req createBookingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "location and scheduled_time are required")
		return
	}
	id, err := h.booking.Create(c.Request.Context(), booking.CreateCommand{
		CustomerID:    types.ID(middleware.CallerUID(c)),
		Location:      req.Location,
		RequiredSkill: req.RequiredSkill,
		ScheduledTime: req.ScheduledTime,
	})
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"booking_id": id, "status": booking.StatusPending})
}

func (h *BookingHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid booking id")
		return
	}
	b, err := h.booking.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeBookingError(c, err)
		return
	}
	uid := types.ID(middleware.CallerUID(c))
	isProvider := b.ProviderID != nil && *b.ProviderID == uid
	if middleware.CallerRole(c) != middleware.RoleAdmin && b.CustomerID != uid && !isProvider {
		writeError(c, http.StatusForbidden, "forbidden")
		return
	}
	writeJSON(c, http.StatusOK, toBooking(b))
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid booking id")
		return
	}
	uid := types.ID(middleware.CallerUID(c))
	actor := booking.ActorCustomer
	switch middleware.CallerRole(c) {
	case middleware.RoleAdmin:
		actor = booking.ActorAdmin
	case middleware.RoleProvider:
		actor = booking.ActorProvider
	}
	err := h.booking.Cancel(c.Request.Context(), booking.CancelCommand{
		BookingID: types.ID(id),
		ActorType: actor,
		ActorID:   &uid,
	})
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"booking_id": id, "status": booking.StatusCancelled})
}

// Accept, Reject and Complete act as the calling provider.

func (h *BookingHandler) Accept(c *gin.Context) {
	h.providerAction(c, booking.StatusInProgress, func(ctx context.Context, bid, pid types.ID) error {
		return h.booking.Accept(ctx, booking.AcceptCommand{BookingID: bid, ProviderID: pid})
	})
}

func (h *BookingHandler) Reject(c *gin.Context) {
	h.providerAction(c, booking.StatusRejected, func(ctx context.Context, bid, pid types.ID) error {
		return h.booking.Reject(ctx, booking.RejectCommand{BookingID: bid, ProviderID: pid})
	})
}

func (h *BookingHandler) Complete(c *gin.Context) {
	h.providerAction(c, booking.StatusCompleted, func(ctx context.Context, bid, pid types.ID) error {
		return h.booking.Complete(ctx, booking.CompleteCommand{BookingID: bid, ProviderID: pid})
	})
}

func (h *BookingHandler) providerAction(c *gin.Context, to booking.Status, fn func(ctx context.Context, bid, pid types.ID) error) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid booking id")
		return
	}
	pid := types.ID(middleware.CallerUID(c))
	if err := fn(c.Request.Context(), types.ID(id), pid); err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"booking_id": id, "status": to})
}
