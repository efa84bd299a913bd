package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/memento/internal/faceindex"
	"github.com/your-org/memento/internal/recognition"
	"github.com/your-org/memento/pkg/dto"
)

type RecognitionHandler struct {
	svc *recognition.Service
}

func NewRecognitionHandler(svc *recognition.Service) *RecognitionHandler {
	return &RecognitionHandler{svc: svc}
}

// Identify processes a camera frame and returns identified users.
func (h *RecognitionHandler) Identify(c *gin.Context) {
	var req dto.IdentifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.svc.Identify(c.Request.Context(), req.ImageBase64, req.EventID, req.MaxFaces, req.Threshold)
	if err != nil {
		writeRecognitionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.IdentifyResponse{
		Matches:          result.Matches,
		FacesDetected:    result.FacesDetected,
		ProcessingTimeMs: result.ProcessingTimeMs,
		EventID:          result.EventID,
	})
}

// Register enrolls a user's face for recognition.
func (h *RecognitionHandler) Register(c *gin.Context) {
	var req dto.RegisterFaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reg, err := h.svc.Register(c.Request.Context(), req.UserID, req.ImageBase64)
	if err != nil {
		if errors.Is(err, faceindex.ErrNoFaceDetected) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "no face detected in the image, please provide a clear photo of your face",
			})
			return
		}
		writeRecognitionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.RegisterFaceResponse{
		FaceID:      reg.FaceID,
		UserID:      reg.UserID,
		Confidence:  reg.Confidence,
		BoundingBox: reg.BoundingBox,
		IndexedAt:   reg.IndexedAt.Format(time.RFC3339),
	})
}

// Deregister removes all indexed faces for a user.
func (h *RecognitionHandler) Deregister(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	deleted, err := h.svc.Deregister(c.Request.Context(), userID)
	if err != nil {
		writeRecognitionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.DeregisterResponse{
		DeletedCount: deleted,
		UserID:       userID,
	})
}

// Detect runs face detection without identity matching.
func (h *RecognitionHandler) Detect(c *gin.Context) {
	var req dto.DetectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	faces, err := h.svc.DetectOnly(c.Request.Context(), req.ImageBase64, req.IncludeAttributes)
	if err != nil {
		writeRecognitionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.DetectResponse{
		Faces:     faces,
		FaceCount: len(faces),
	})
}

// Stats reports default collection metadata.
func (h *RecognitionHandler) Stats(c *gin.Context) {
	info, err := h.svc.CollectionStats(c.Request.Context())
	if err != nil {
		if errors.Is(err, faceindex.ErrCollectionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "face collection not found, it will be created when the first face is indexed",
			})
			return
		}
		writeRecognitionError(c, err)
		return
	}

	resp := dto.CollectionStatsResponse{
		CollectionID: info.CollectionID,
		FaceCount:    info.FaceCount,
		ModelVersion: info.ModelVersion,
		ARN:          info.ARN,
	}
	if info.CreatedAt != nil {
		resp.CreatedAt = info.CreatedAt.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

// writeRecognitionError maps the recognition error taxonomy to HTTP
// statuses: client input faults are 4xx, backend faults are a single
// opaque 502 with detail kept in logs only.
func writeRecognitionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, faceindex.ErrInvalidImage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image payload"})
	case errors.Is(err, faceindex.ErrNoFaceDetected):
		c.JSON(http.StatusBadRequest, gin.H{"error": "no face detected in image"})
	case errors.Is(err, faceindex.ErrCollectionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "face collection not found"})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": "recognition service error"})
	}
}
