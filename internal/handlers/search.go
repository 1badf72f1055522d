package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"localmart/api/internal/models"
	"localmart/api/internal/repository"
	"localmart/api/internal/service"
)

type listingResponse struct {
	ID             string   `json:"id"`
	Kind           string   `json:"kind"`
	Name           string   `json:"name"`
	Category       string   `json:"category,omitempty"`
	Description    string   `json:"description,omitempty"`
	Address        string   `json:"address,omitempty"`
	City           string   `json:"city,omitempty"`
	State          string   `json:"state,omitempty"`
	Pincode        string   `json:"pincode,omitempty"`
	Phone          string   `json:"phone,omitempty"`
	Whatsapp       string   `json:"whatsapp,omitempty"`
	LogoURL        *string  `json:"logoUrl,omitempty"`
	BannerURL      *string  `json:"bannerUrl,omitempty"`
	Lat            float64  `json:"lat"`
	Lng            float64  `json:"lng"`
	Rating         float64  `json:"rating"`
	TotalReviews   int      `json:"totalReviews"`
	DistanceMeters *float64 `json:"distanceMeters,omitempty"`
}

func toListingResponse(listing models.Listing) listingResponse {
	return listingResponse{
		ID:             listing.ID,
		Kind:           string(listing.Kind),
		Name:           listing.Name,
		Category:       listing.Category,
		Description:    listing.Description,
		Address:        listing.Address,
		City:           listing.City,
		State:          listing.State,
		Pincode:        listing.Pincode,
		Phone:          listing.Phone,
		Whatsapp:       listing.Whatsapp,
		LogoURL:        listing.LogoURL,
		BannerURL:      listing.BannerURL,
		Lat:            listing.Location.Lat,
		Lng:            listing.Location.Lng,
		Rating:         listing.Rating,
		TotalReviews:   listing.TotalReviews,
		DistanceMeters: listing.DistanceMeters,
	}
}

// Search is the public discovery endpoint. With lat/lng it walks the radius
// ladder; without them it is a plain filter query and radiusUsed reports
// "unbounded".
func (h HandlerSet) Search(c *gin.Context) {
	var origin *models.Point
	latStr, lngStr := c.Query("lat"), c.Query("lng")
	if latStr != "" && lngStr != "" {
		lat, latErr := strconv.ParseFloat(latStr, 64)
		lng, lngErr := strconv.ParseFloat(lngStr, 64)
		if latErr != nil || lngErr != nil {
			// Unparseable coordinates degrade to the filter path; discovery
			// stays available.
			h.log.Warn().Str("lat", latStr).Str("lng", lngStr).Msg("unparseable search coordinates")
		} else {
			origin = &models.Point{Lat: lat, Lng: lng}
		}
	}

	filters := repository.SearchFilters{
		City:     c.Query("city"),
		State:    c.Query("state"),
		Category: c.Query("category"),
		Search:   c.Query("search"),
	}
	if kindStr := c.Query("kind"); kindStr != "" {
		kind := models.ListingKind(kindStr)
		if !kind.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid kind"})
			return
		}
		filters.Kind = &kind
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	result, err := h.searchService.Search(c.Request.Context(), service.SearchInput{
		Origin:       origin,
		Filters:      filters,
		SortByRating: c.Query("sort") == "rating",
		Page:         page,
		Limit:        limit,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("search failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	results := make([]listingResponse, 0, len(result.Listings))
	for _, listing := range result.Listings {
		results = append(results, toListingResponse(listing))
	}

	var radiusUsed any = "unbounded"
	if result.RadiusKm != nil {
		radiusUsed = *result.RadiusKm
	}

	c.JSON(http.StatusOK, gin.H{
		"results":    results,
		"radiusUsed": radiusUsed,
		"page":       result.Page,
		"limit":      result.Limit,
	})
}

// GetListing serves a direct fetch through the visibility gate: an expired
// listing yields only its id and name, which is distinct from not-found.
func (h HandlerSet) GetListing(c *gin.Context) {
	gated, err := h.listings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "listing not found"})
			return
		}
		h.log.Error().Err(err).Str("listing_id", c.Param("id")).Msg("listing fetch failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch listing"})
		return
	}

	if gated.Expired {
		c.JSON(http.StatusOK, gin.H{
			"listing": gin.H{
				"id":                 gated.Listing.ID,
				"name":               gated.Listing.Name,
				"subscriptionActive": false,
			},
			"expired": true,
			"message": "This listing is temporarily unavailable due to an expired subscription",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"listing": toListingResponse(gated.Listing),
		"expired": false,
	})
}
