package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/avdeev/chatline/internal/auth"
	"github.com/avdeev/chatline/internal/domain"
	"github.com/avdeev/chatline/internal/store"
)

type signupRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password"`
}

func (api *API) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if len(req.Password) < domain.MinPasswordLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 6 characters"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	user, err := domain.NewUser(req.Email, req.FullName, hash)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := api.Users.Create(user); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email already exists"})
			return
		}
		log.Error().Err(err).Str("module", "adapters.http").Msg("signup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	token, err := api.Tokens.Issue(user.ID, user.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	api.setAuthCookie(c, token)
	c.JSON(http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (api *API) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := api.Users.FindByEmail(req.Email)
	if err != nil || !auth.VerifyPassword(req.Password, user.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := api.Tokens.Issue(user.ID, user.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	api.setAuthCookie(c, token)
	c.JSON(http.StatusOK, user)
}

func (api *API) Logout(c *gin.Context) {
	api.clearAuthCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (api *API) Check(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

type updateProfileRequest struct {
	ProfilePic string `json:"profilePic" binding:"required"`
}

func (api *API) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "profile pic is required"})
		return
	}
	user := currentUser(c)
	if err := api.Users.UpdateProfilePic(user.ID, req.ProfilePic); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("profile update failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	user.ProfilePic = req.ProfilePic
	c.JSON(http.StatusOK, user)
}
