package routes

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// RegisterStatsRoutes registers aggregate counters
func (h *Handler) RegisterStatsRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", h.stats)
}

func (h *Handler) stats(c *gin.Context) {
	userID, ok := queryUint(c, "userId")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if userID == 0 {
		stats, err := h.Stats.Global(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, stats)
		return
	}

	stats, err := h.Stats.ForUser(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, stats)
}

// RegisterPlacesRoutes registers address autocomplete
func (h *Handler) RegisterPlacesRoutes(rg *gin.RouterGroup) {
	rg.GET("/places/autocomplete", h.autocomplete)
}

func (h *Handler) autocomplete(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))

	suggestions, err := h.Places.Autocomplete(c.Request.Context(), c.Query("input"), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, suggestions)
}

// UploadRequest carries a base64 image, optionally as a data URL
type UploadRequest struct {
	Image string `json:"image" binding:"required"`
}

// RegisterUploadRoutes registers image upload
func (h *Handler) RegisterUploadRoutes(rg *gin.RouterGroup, protect gin.HandlerFunc) {
	rg.POST("/upload", protect, h.upload)
}

func (h *Handler) upload(c *gin.Context) {
	var req UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "Invalid request data: "+err.Error())
		return
	}

	result, err := h.Upload.Upload(c.Request.Context(), req.Image)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, result)
}

// RegisterSeedRoutes registers the demo data reset
func (h *Handler) RegisterSeedRoutes(rg *gin.RouterGroup) {
	rg.POST("/seed", h.seed)
}

func (h *Handler) seed(c *gin.Context) {
	if !h.cfg.Server.SeedEnabled {
		respondFail(c, http.StatusForbidden, "Seeding is disabled")
		return
	}

	result, err := h.Seed.Seed(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, result)
}
