package api

import (
	"errors"
	"net/http"

	"parkwise/internal/domain/slot"
	resdto "parkwise/internal/handler/dto/response"
	"parkwise/internal/handler/httperr"
	"parkwise/internal/handler/middleware"
	"parkwise/internal/usecase/commands"
	"parkwise/internal/usecase/queries"

	"github.com/gin-gonic/gin"
)

const (
	msgLimitReached   = "You can only have one active reservation at a time."
	msgNotOwner       = "You can only cancel your own reservation."
	msgDeliveryFailed = "Failed to send confirmation email. Please check your email address."
)

type SlotHandler struct {
	cmds commands.ReservationCommands
	q    queries.LotQueries
}

func NewSlotHandler(cmds commands.ReservationCommands, q queries.LotQueries) *SlotHandler {
	return &SlotHandler{cmds: cmds, q: q}
}

// @Summary Get lot
// @Description Current slots, maintenance placeholders, feed health and the caller's reservations
// @Tags lot
// @Security BearerAuth
// @Produce json
// @Success 200 {object} resdto.LotResponse
// @Failure 401 {object} httperr.Response
// @Failure 503 {object} httperr.Response
// @Router /lot [get]
func (h *SlotHandler) GetLot(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		httperr.Unauthorized(c, commands.ErrAuthRequired)
		return
	}

	view, err := h.q.Lot(c.Request.Context(), identity)
	if err != nil {
		abortWithCommandError(c, err)
		return
	}

	res, err := resdto.FromLotView(view)
	if err != nil {
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal server error", nil)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary List own reservations
// @Tags reservations
// @Security BearerAuth
// @Produce json
// @Success 200 {array} resdto.SlotResponse
// @Failure 401 {object} httperr.Response
// @Router /reservations [get]
func (h *SlotHandler) GetReservations(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		httperr.Unauthorized(c, commands.ErrAuthRequired)
		return
	}

	views, err := h.q.Reservations(c.Request.Context(), identity)
	if err != nil {
		abortWithCommandError(c, err)
		return
	}

	res, err := resdto.FromSlotViews(views)
	if err != nil {
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal server error", nil)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary Reserve slot
// @Description Reserves an available slot and sends the confirmation email
// @Tags reservations
// @Security BearerAuth
// @Produce json
// @Param id path string true "Slot ID"
// @Success 201 {object} resdto.ReservationResponse
// @Failure 400 {object} httperr.Response
// @Failure 401 {object} httperr.Response
// @Failure 404 {object} httperr.Response
// @Failure 409 {object} httperr.Response
// @Failure 502 {object} httperr.Response
// @Router /slots/{id}/reservation [post]
func (h *SlotHandler) Reserve(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		httperr.Unauthorized(c, commands.ErrAuthRequired)
		return
	}
	id, err := slot.NewID(c.Param("id"))
	if err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid slot id", nil)
		return
	}

	result, err := h.cmds.Reserve(c.Request.Context(), identity, id)
	if err != nil {
		abortWithCommandError(c, err)
		return
	}

	res, err := resdto.FromReserveResult(result)
	if err != nil {
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal server error", nil)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// @Summary Cancel reservation
// @Tags reservations
// @Security BearerAuth
// @Param id path string true "Slot ID"
// @Success 204 "No Content"
// @Failure 401 {object} httperr.Response
// @Failure 403 {object} httperr.Response
// @Failure 404 {object} httperr.Response
// @Router /slots/{id}/reservation [delete]
func (h *SlotHandler) Cancel(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		httperr.Unauthorized(c, commands.ErrAuthRequired)
		return
	}
	id, err := slot.NewID(c.Param("id"))
	if err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid slot id", nil)
		return
	}

	if err := h.cmds.Cancel(c.Request.Context(), identity, id); err != nil {
		abortWithCommandError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func abortWithCommandError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, commands.ErrAuthRequired):
		httperr.AbortWithKind(c, http.StatusUnauthorized, err, "Please log in to reserve a parking slot.", "auth_required")
	case errors.Is(err, commands.ErrNotOwner):
		httperr.AbortWithKind(c, http.StatusForbidden, err, msgNotOwner, "not_owner")
	case errors.Is(err, commands.ErrSlotNotFound):
		httperr.AbortWithKind(c, http.StatusNotFound, err, "Parking slot not found.", "slot_not_found")
	case errors.Is(err, commands.ErrLimitReached):
		httperr.AbortWithKind(c, http.StatusConflict, err, msgLimitReached, "limit_reached")
	case errors.Is(err, commands.ErrDeliveryFailed):
		reason, _ := commands.DeliveryReason(err)
		httperr.AbortWithError(c, http.StatusBadGateway, err, msgDeliveryFailed, httperr.Detail{Kind: "delivery_failed", Reason: string(reason)})
	case errors.Is(err, commands.ErrSubscriptionFailed):
		httperr.AbortWithKind(c, http.StatusServiceUnavailable, err, "Live slot updates are unavailable.", "subscription_failed")
	case errors.Is(err, commands.ErrPersistenceFailed):
		httperr.AbortWithKind(c, http.StatusInternalServerError, err, "Failed to update the parking slot. Please try again.", "persistence_failed")
	default:
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal server error", nil)
	}
}
