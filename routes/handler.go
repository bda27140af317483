package routes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"food-share-server/config"
	applog "food-share-server/logger"
	"food-share-server/middleware"
	"food-share-server/realtime"
	"food-share-server/services"
)

// Services bundles everything the HTTP layer calls into
type Services struct {
	Users         *services.UserService
	Tokens        *services.TokenService
	Listings      *services.ListingService
	Claims        *services.ClaimService
	Notifications *services.NotificationService
	Stats         *services.StatsService
	Seed          *services.SeedService
	Upload        *services.UploadService
	Places        *services.PlacesService
	AI            *services.AIService
	Hub           *realtime.Hub
}

type Handler struct {
	cfg *config.Config
	Services

	upgrader websocket.Upgrader
}

func NewHandler(cfg *config.Config, svc Services) *Handler {
	h := &Handler{cfg: cfg, Services: svc}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondFail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   message,
	})
}

// respondError maps service errors onto HTTP statuses
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		respondFail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrListingUnavailable),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrInvalidLocation),
		errors.Is(err, services.ErrInvalidType),
		errors.Is(err, services.ErrInvalidRole),
		errors.Is(err, services.ErrInvalidImage):
		respondFail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrClaimResolved),
		errors.Is(err, services.ErrEmailTaken):
		respondFail(c, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrInvalidToken):
		respondFail(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrAIUnavailable):
		applog.Log.WithError(err).Error("❌ AI rating failed")
		respondFail(c, http.StatusInternalServerError, services.ErrAIUnavailable.Error())
	default:
		applog.Log.WithError(err).WithField("path", c.FullPath()).Error("❌ Internal error")
		respondFail(c, http.StatusInternalServerError, "Internal server error")
	}
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondFail(c, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// queryUint reads an optional positive integer query parameter. Absent
// parameters yield 0; malformed ones answer 400.
func queryUint(c *gin.Context, name string) (uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		respondFail(c, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return uint(v), true
}

// authorizeUser enforces that a token holder only acts as themselves.
// Requests without a token pass unless AUTH_REQUIRED is set.
func (h *Handler) authorizeUser(c *gin.Context, userID uint) bool {
	tokenUser, ok := middleware.CurrentUserID(c)
	if !ok {
		if h.cfg.Server.AuthRequired {
			respondFail(c, http.StatusUnauthorized, "Authorization required")
			return false
		}
		return true
	}
	if tokenUser != userID {
		respondFail(c, http.StatusForbidden, "Not allowed to act on behalf of another user")
		return false
	}
	return true
}

// resolveUserID returns the userId query parameter, falling back to the token user.
func (h *Handler) resolveUserID(c *gin.Context) (uint, bool) {
	userID, ok := queryUint(c, "userId")
	if !ok {
		return 0, false
	}
	if userID == 0 {
		tokenUser, ok := middleware.CurrentUserID(c)
		if !ok {
			respondFail(c, http.StatusBadRequest, "userId is required")
			return 0, false
		}
		return tokenUser, true
	}
	if !h.authorizeUser(c, userID) {
		return 0, false
	}
	return userID, true
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.Server.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
