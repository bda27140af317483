package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"food-share-server/middleware"
	"food-share-server/models"
)

// RegisterClaimRoutes registers claim routes. protect guards writes.
func (h *Handler) RegisterClaimRoutes(rg *gin.RouterGroup, protect gin.HandlerFunc) {
	rg.GET("", h.listClaims)
	rg.GET("/:id", h.getClaim)
	rg.POST("", protect, h.createClaim)
	rg.PUT("/:id", protect, h.updateClaim)
}

func (h *Handler) listClaims(c *gin.Context) {
	listingID, ok := queryUint(c, "listingId")
	if !ok {
		return
	}
	receiverID, ok := queryUint(c, "receiverId")
	if !ok {
		return
	}

	status := models.ClaimStatus(c.Query("status"))
	claims, err := h.Claims.List(c.Request.Context(), models.ClaimFilter{
		ListingID:  listingID,
		ReceiverID: receiverID,
		Status:     status,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, claims)
}

func (h *Handler) getClaim(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	claim, err := h.Claims.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, claim)
}

func (h *Handler) createClaim(c *gin.Context) {
	var req models.ClaimCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "Invalid request data: "+err.Error())
		return
	}

	if req.ReceiverID == 0 {
		tokenUser, ok := middleware.CurrentUserID(c)
		if !ok {
			respondFail(c, http.StatusBadRequest, "receiverId is required")
			return
		}
		req.ReceiverID = tokenUser
	}
	if !h.authorizeUser(c, req.ReceiverID) {
		return
	}

	claim, err := h.Claims.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, claim)
}

// updateClaim confirms or rejects a claim. Only the listing's donor may decide.
func (h *Handler) updateClaim(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.ClaimUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "Invalid request data: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	claim, err := h.Claims.Get(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	listing, err := h.Listings.Get(ctx, claim.ListingID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !h.authorizeUser(c, listing.DonorID) {
		return
	}

	updated, err := h.Claims.Update(ctx, id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, updated)
}
