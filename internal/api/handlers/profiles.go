package handlers

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/memento/internal/models"
	"github.com/your-org/memento/internal/storage"
	"github.com/your-org/memento/pkg/dto"
)

const maxPhotoSize = 10 << 20 // 10 MiB

var allowedPhotoExts = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

type ProfileHandler struct {
	store   *storage.PostgresStore
	objects *storage.MinIOStore
}

func NewProfileHandler(store *storage.PostgresStore, objects *storage.MinIOStore) *ProfileHandler {
	return &ProfileHandler{store: store, objects: objects}
}

func (h *ProfileHandler) Create(c *gin.Context) {
	var req dto.CreateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p := &models.Profile{
		UserID:   req.UserID,
		FullName: req.FullName,
		Headline: req.Headline,
	}
	if err := h.store.CreateProfile(c.Request.Context(), p); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create profile"})
		return
	}
	c.JSON(http.StatusCreated, profileResponse(p))
}

func (h *ProfileHandler) Get(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	p, err := h.store.GetProfile(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get profile"})
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}
	c.JSON(http.StatusOK, profileResponse(p))
}

// UploadPhoto stores a profile photo in object storage and records its
// key on the profile. The photo becomes index-eligible on the next
// reconciliation pass for any event the user has consented to.
func (h *ProfileHandler) UploadPhoto(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	p, err := h.store.GetProfile(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get profile"})
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}

	file, header, err := c.Request.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
		return
	}
	defer file.Close()

	if header.Size > maxPhotoSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "photo exceeds size limit"})
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	contentType, ok := allowedPhotoExts[ext]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo must be a jpeg or png"})
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxPhotoSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read photo"})
		return
	}

	key := storage.PhotoKey(userID, header.Filename)
	if err := h.objects.PutObject(c.Request.Context(), key, data, contentType); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store photo"})
		return
	}
	if err := h.store.SetPhotoPath(c.Request.Context(), userID, key); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": userID, "photo_path": key})
}

func profileResponse(p *models.Profile) dto.ProfileResponse {
	resp := dto.ProfileResponse{
		UserID:    p.UserID,
		FullName:  p.FullName,
		Headline:  p.Headline,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
		UpdatedAt: p.UpdatedAt.Format(time.RFC3339),
	}
	if p.PhotoPath != nil {
		resp.PhotoPath = *p.PhotoPath
	}
	return resp
}
