package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"food-share-server/middleware"
	"food-share-server/models"
)

// RegisterAuthRoutes registers authentication routes
func (h *Handler) RegisterAuthRoutes(rg *gin.RouterGroup) {
	rg.POST("/register", h.register)
	rg.POST("/login", h.login)
	rg.GET("/me", middleware.AuthMiddleware(h.Tokens), h.me)
}

func (h *Handler) register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "Invalid request data: "+err.Error())
		return
	}

	session, err := h.Users.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, session)
}

func (h *Handler) login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "Invalid request data: "+err.Error())
		return
	}

	session, err := h.Users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, session)
}

func (h *Handler) me(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)

	user, err := h.Users.Get(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, user)
}

// RegisterUserRoutes registers user lookup routes
func (h *Handler) RegisterUserRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id", h.getUser)
}

func (h *Handler) getUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	user, err := h.Users.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, user)
}
