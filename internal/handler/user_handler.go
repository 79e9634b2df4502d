package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/p2p-balance-ledger/internal/middleware"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/models"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/users"
)

// UserService is what UserHandler needs from the user collaborator.
type UserService interface {
	Signup(ctx context.Context, in users.SignupInput) (string, error)
	Signin(ctx context.Context, username, password string) (string, error)
	Update(ctx context.Context, userID string, in users.ProfileUpdate) error
	Bulk(ctx context.Context, filter string) ([]users.UserView, error)
}

type UserHandler struct {
	users  UserService
	logger *zap.Logger
}

type SignupRequest struct {
	Username  string `json:"username" validate:"required,min=5,email"`
	Password  string `json:"password" validate:"required,min=5"`
	FirstName string `json:"firstname" validate:"required,min=5"`
	LastName  string `json:"lastname" validate:"required,min=5"`
}

type SigninRequest struct {
	Username string `json:"username" validate:"required,min=5,email"`
	Password string `json:"password" validate:"required,min=5"`
}

type UpdateRequest struct {
	Password  *string `json:"password" validate:"omitempty,min=1"`
	FirstName *string `json:"firstname" validate:"omitempty,min=1"`
	LastName  *string `json:"lastname" validate:"omitempty,min=1"`
}

func NewUserHandler(svc UserService, logger *zap.Logger) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{users: svc, logger: logger}
}

func (h *UserHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	token, err := h.users.Signup(c.Request.Context(), users.SignupInput{
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		if errors.Is(err, models.ErrUserExists) {
			middleware.RespondWithError(c, http.StatusConflict, "User already exists")
			return
		}
		h.logger.Error("signup failed", zap.Error(err))
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to create user")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"msg":   "User created successfully",
		"token": token,
	})
}

func (h *UserHandler) Signin(c *gin.Context) {
	var req SigninRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	token, err := h.users.Signin(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			middleware.RespondWithError(c, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		h.logger.Error("signin failed", zap.Error(err))
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to sign in")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"msg":   "Login successful",
		"token": token,
	})
}

func (h *UserHandler) Update(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	err := h.users.Update(c.Request.Context(), userID, users.ProfileUpdate{
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			middleware.RespondWithError(c, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error("profile update failed", zap.String("user_id", userID), zap.Error(err))
		middleware.RespondWithError(c, http.StatusInternalServerError, "An error occurred while updating")
		return
	}

	c.JSON(http.StatusOK, gin.H{"msg": "Updated successfully"})
}

func (h *UserHandler) Bulk(c *gin.Context) {
	views, err := h.users.Bulk(c.Request.Context(), c.Query("filter"))
	if err != nil {
		h.logger.Error("user search failed", zap.Error(err))
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to search users")
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": views})
}
