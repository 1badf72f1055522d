package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"localmart/api/internal/middleware"
	"localmart/api/internal/models"
	"localmart/api/internal/repository"
	"localmart/api/internal/service"
)

type listingRequest struct {
	Name        string  `json:"name" binding:"required"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Address     string  `json:"address" binding:"required"`
	City        string  `json:"city" binding:"required"`
	State       string  `json:"state" binding:"required"`
	Pincode     string  `json:"pincode"`
	Phone       string  `json:"phone"`
	Whatsapp    string  `json:"whatsapp"`
	Lat         float64 `json:"lat" binding:"required"`
	Lng         float64 `json:"lng" binding:"required"`
}

func (r listingRequest) toInput() service.ListingInput {
	return service.ListingInput{
		Name:        r.Name,
		Category:    r.Category,
		Description: r.Description,
		Address:     r.Address,
		City:        r.City,
		State:       r.State,
		Pincode:     r.Pincode,
		Phone:       r.Phone,
		Whatsapp:    r.Whatsapp,
		Location:    models.Point{Lat: r.Lat, Lng: r.Lng},
	}
}

func (h HandlerSet) CreateListing(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req listingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	listing, err := h.listings.Create(c.Request.Context(), user, req.toInput())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrListingExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrRoleMismatch):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		default:
			h.log.Error().Err(err).Str("owner_id", user.ID).Msg("listing creation failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create listing"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"listing": toListingResponse(listing)})
}

func (h HandlerSet) UpdateListing(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req listingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	listing, err := h.listings.Update(c.Request.Context(), user, c.Param("id"), req.toInput())
	if err != nil {
		h.respondListingError(c, err, "listing update failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"listing": toListingResponse(listing)})
}

func (h HandlerSet) DeleteListing(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.listings.Delete(c.Request.Context(), user, c.Param("id")); err != nil {
		h.respondListingError(c, err, "listing deletion failed")
		return
	}

	c.Status(http.StatusNoContent)
}

// UploadListingImage accepts a multipart form with an "image" file and a
// "slot" field of logo or banner.
func (h HandlerSet) UploadListingImage(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	slot := c.PostForm("slot")
	if slot == "" {
		slot = "logo"
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read image"})
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	url, err := h.listings.UploadImage(c.Request.Context(), user, c.Param("id"), slot, file, fileHeader.Size, contentType)
	if err != nil {
		if errors.Is(err, service.ErrNotOwner) || errors.Is(err, repository.ErrListingNotFound) {
			h.respondListingError(c, err, "image upload failed")
			return
		}
		h.log.Error().Err(err).Str("listing_id", c.Param("id")).Msg("image upload failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url, "slot": slot})
}

func (h HandlerSet) respondListingError(c *gin.Context, err error, logMsg string) {
	switch {
	case errors.Is(err, repository.ErrListingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "listing not found"})
	case errors.Is(err, service.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "not the listing owner"})
	default:
		h.log.Error().Err(err).Str("listing_id", c.Param("id")).Msg(logMsg)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "request failed"})
	}
}
