package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/memento/internal/models"
	"github.com/your-org/memento/internal/storage"
	"github.com/your-org/memento/pkg/dto"
)

type EventHandler struct {
	store *storage.PostgresStore
}

func NewEventHandler(store *storage.PostgresStore) *EventHandler {
	return &EventHandler{store: store}
}

func (h *EventHandler) Create(c *gin.Context) {
	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ev := &models.Event{
		Name:      req.Name,
		Location:  req.Location,
		CreatedBy: req.CreatedBy,
	}
	if req.StartsAt != nil {
		t, err := time.Parse(time.RFC3339, *req.StartsAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "starts_at must be RFC3339"})
			return
		}
		ev.StartsAt = &t
	}
	if req.EndsAt != nil {
		t, err := time.Parse(time.RFC3339, *req.EndsAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ends_at must be RFC3339"})
			return
		}
		ev.EndsAt = &t
	}
	if ev.StartsAt != nil && ev.EndsAt != nil && !ev.EndsAt.After(*ev.StartsAt) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ends_at must be after starts_at"})
		return
	}

	if err := h.store.CreateEvent(c.Request.Context(), ev); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create event"})
		return
	}

	c.JSON(http.StatusCreated, eventResponse(ev))
}

func (h *EventHandler) List(c *gin.Context) {
	events, err := h.store.ListEvents(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list events"})
		return
	}

	resp := dto.EventListResponse{Events: make([]dto.EventResponse, 0, len(events)), Total: len(events)}
	for i := range events {
		resp.Events = append(resp.Events, eventResponse(&events[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *EventHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	ev, err := h.store.GetEvent(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get event"})
		return
	}
	if ev == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}
	c.JSON(http.StatusOK, eventResponse(ev))
}

// Join adds the user to the event and creates their consent record with
// both flags off.
func (h *EventHandler) Join(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	var req dto.MembershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ev, err := h.store.GetEvent(c.Request.Context(), eventID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get event"})
		return
	}
	if ev == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}

	consent, err := h.store.JoinEvent(c.Request.Context(), eventID, req.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to join event"})
		return
	}
	c.JSON(http.StatusCreated, consentResponse(consent))
}

// Leave removes the membership and its consent record; the only path
// that deletes consent.
func (h *EventHandler) Leave(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	var req dto.MembershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.LeaveEvent(c.Request.Context(), eventID, req.UserID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to leave event"})
		return
	}
	c.Status(http.StatusNoContent)
}

func eventResponse(ev *models.Event) dto.EventResponse {
	resp := dto.EventResponse{
		ID:             ev.ID,
		Name:           ev.Name,
		Location:       ev.Location,
		IsActive:       ev.IsActive,
		IndexingStatus: string(ev.IndexingStatus),
		CreatedBy:      ev.CreatedBy,
		CreatedAt:      ev.CreatedAt.Format(time.RFC3339),
	}
	if ev.StartsAt != nil {
		resp.StartsAt = ev.StartsAt.Format(time.RFC3339)
	}
	if ev.EndsAt != nil {
		resp.EndsAt = ev.EndsAt.Format(time.RFC3339)
	}
	return resp
}
