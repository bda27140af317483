package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"food-share-server/models"
)

// RegisterListingRoutes registers food listing routes. protect guards writes.
func (h *Handler) RegisterListingRoutes(rg *gin.RouterGroup, protect gin.HandlerFunc) {
	rg.GET("", h.listListings)
	rg.GET("/:id", h.getListing)
	rg.POST("", protect, h.createListing)
	rg.PUT("/:id", protect, h.updateListing)
	rg.DELETE("/:id", protect, h.deleteListing)
	rg.POST("/:id/rate", protect, h.rateListing)
}

// listListings serves ?id=, ?donorId= and ?status=. status=available
// only returns unexpired listings, by soonest pickup unless a donor is given.
func (h *Handler) listListings(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := queryUint(c, "id")
	if !ok {
		return
	}
	if id != 0 {
		listing, err := h.Listings.Get(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, listing)
		return
	}

	donorID, ok := queryUint(c, "donorId")
	if !ok {
		return
	}

	status := models.ListingStatus(c.Query("status"))
	if status != "" && !models.IsValidListingStatus(status) {
		respondFail(c, http.StatusBadRequest, "Invalid status")
		return
	}

	var (
		listings []models.FoodListing
		err      error
	)
	if status == models.ListingStatusAvailable && donorID == 0 {
		listings, err = h.Listings.ListAvailable(ctx, time.Now())
	} else {
		filter := models.ListingFilter{Status: status, DonorID: donorID}
		if status == models.ListingStatusAvailable {
			filter.UnexpiredAt = time.Now()
		}
		listings, err = h.Listings.List(ctx, filter)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, listings)
}

func (h *Handler) getListing(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	listing, err := h.Listings.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, listing)
}

func (h *Handler) createListing(c *gin.Context) {
	var req models.ListingCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "Invalid request data: "+err.Error())
		return
	}
	if !h.authorizeUser(c, req.DonorID) {
		return
	}

	listing, err := h.Listings.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, listing)
}

// loadOwnedListing fetches a listing and checks the caller is its donor
func (h *Handler) loadOwnedListing(c *gin.Context) (*models.FoodListing, bool) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil, false
	}

	listing, err := h.Listings.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if !h.authorizeUser(c, listing.DonorID) {
		return nil, false
	}
	return listing, true
}

func (h *Handler) updateListing(c *gin.Context) {
	listing, ok := h.loadOwnedListing(c)
	if !ok {
		return
	}

	var req models.ListingUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "Invalid request data: "+err.Error())
		return
	}

	updated, err := h.Listings.Update(c.Request.Context(), listing.ID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, updated)
}

func (h *Handler) deleteListing(c *gin.Context) {
	listing, ok := h.loadOwnedListing(c)
	if !ok {
		return
	}

	if err := h.Listings.Delete(c.Request.Context(), listing.ID); err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"id": listing.ID, "deleted": true})
}

func (h *Handler) rateListing(c *gin.Context) {
	listing, ok := h.loadOwnedListing(c)
	if !ok {
		return
	}

	rating, err := h.AI.RateListing(c.Request.Context(), listing)
	if err != nil {
		respondError(c, err)
		return
	}

	updated, err := h.Listings.SetAIRating(c.Request.Context(), listing.ID, rating.Rating)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{
		"listing":  updated,
		"rating":   rating.Rating,
		"feedback": rating.Feedback,
		"source":   rating.Source,
	})
}

// RegisterSearchRoutes registers listing search
func (h *Handler) RegisterSearchRoutes(rg *gin.RouterGroup) {
	rg.GET("/search", h.search)
}

func (h *Handler) search(c *gin.Context) {
	listings, err := h.Listings.Search(c.Request.Context(), c.Query("q"), c.Query("foodType"), time.Now())
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, listings)
}
