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

type ConsentHandler struct {
	store *storage.PostgresStore
}

func NewConsentHandler(store *storage.PostgresStore) *ConsentHandler {
	return &ConsentHandler{store: store}
}

func (h *ConsentHandler) Get(c *gin.Context) {
	eventID, userID, ok := consentIDs(c)
	if !ok {
		return
	}

	consent, err := h.store.GetConsent(c.Request.Context(), eventID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get consent"})
		return
	}
	if consent == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "consent not found, user has not joined this event"})
		return
	}
	c.JSON(http.StatusOK, consentResponse(consent))
}

// Update applies a partial consent change. Revocation takes effect in
// storage immediately; any already-indexed faces are handled by the
// reconciler's eviction policy.
func (h *ConsentHandler) Update(c *gin.Context) {
	eventID, userID, ok := consentIDs(c)
	if !ok {
		return
	}

	var req dto.UpdateConsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.AllowProfileDisplay == nil && req.AllowRecognition == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one consent flag must be provided"})
		return
	}

	consent, err := h.store.UpdateConsent(c.Request.Context(), eventID, userID, models.ConsentUpdate{
		AllowProfileDisplay: req.AllowProfileDisplay,
		AllowRecognition:    req.AllowRecognition,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update consent"})
		return
	}
	if consent == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "consent not found, user has not joined this event"})
		return
	}
	c.JSON(http.StatusOK, consentResponse(consent))
}

// ListForUser returns the user's consent records across all events.
func (h *ConsentHandler) ListForUser(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	consents, err := h.store.ListUserConsents(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list consents"})
		return
	}

	resp := make([]dto.ConsentResponse, 0, len(consents))
	for i := range consents {
		resp = append(resp, consentResponse(&consents[i]))
	}
	c.JSON(http.StatusOK, gin.H{"consents": resp, "total": len(resp)})
}

func consentIDs(c *gin.Context) (eventID, userID uuid.UUID, ok bool) {
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return uuid.Nil, uuid.Nil, false
	}
	userID, err = uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return uuid.Nil, uuid.Nil, false
	}
	return eventID, userID, true
}

func consentResponse(consent *models.Consent) dto.ConsentResponse {
	resp := dto.ConsentResponse{
		EventID:             consent.EventID,
		UserID:              consent.UserID,
		AllowProfileDisplay: consent.AllowProfileDisplay,
		AllowRecognition:    consent.AllowRecognition,
		UpdatedAt:           consent.UpdatedAt.Format(time.RFC3339),
	}
	if consent.ConsentedAt != nil {
		resp.ConsentedAt = consent.ConsentedAt.Format(time.RFC3339)
	}
	if consent.RevokedAt != nil {
		resp.RevokedAt = consent.RevokedAt.Format(time.RFC3339)
	}
	return resp
}
