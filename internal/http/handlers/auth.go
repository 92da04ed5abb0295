package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/http/middlewares"
	"github.com/geocoder89/taskhub/internal/services"
	"github.com/gin-gonic/gin"
)

type AuthService interface {
	Signup(ctx context.Context, email, password string) (user.User, error)
	Login(ctx context.Context, email, password string) (services.LoginResult, error)
	CurrentUser(ctx context.Context, userID string) (user.User, error)
}

type AuthHandler struct {
	svc AuthService
}

func NewAuthHandler(svc AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type LoginResponse struct {
	User        user.User `json:"user"`
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (h *AuthHandler) SignUp(ctx *gin.Context) {
	var req user.SignUpRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// hashing takes most of this budget
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 5*time.Second)
	defer cancel()

	u, err := h.svc.Signup(cctx, req.Email, req.Password)
	if err != nil {
		RespondServiceError(ctx, err, "User not found")
		return
	}

	ctx.JSON(http.StatusCreated, u)
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 5*time.Second)
	defer cancel()

	res, err := h.svc.Login(cctx, req.Email, req.Password)
	if err != nil {
		RespondServiceError(ctx, err, "User not found")
		return
	}

	ctx.JSON(http.StatusOK, LoginResponse{
		User:        res.User,
		AccessToken: res.AccessToken,
		TokenType:   "bearer",
		ExpiresAt:   res.ExpiresAt,
	})
}

// Logout is an acknowledgement only. Tokens stay valid until they expire;
// the client is expected to drop its copy.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *AuthHandler) Me(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	u, err := h.svc.CurrentUser(cctx, userID)
	if err != nil {
		RespondServiceError(ctx, err, "User not found")
		return
	}

	ctx.JSON(http.StatusOK, u)
}
