package handler

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/booking"
	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/utils"
)

// UserStore is the user persistence the auth endpoints need.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id uint64) (*model.User, error)
}

// TokenRevoker records access tokens ended by logout.
type TokenRevoker interface {
	Revoke(ctx context.Context, userID uint64, tokenID string, exp time.Time) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  UserStore
	Tokens TokenRevoker
}

func NewAuthHandler(cfg config.Config, u UserStore, tokens TokenRevoker) *AuthHandler {
	if u == nil || tokens == nil {
		panic("nil store passed to NewAuthHandler")
	}
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: tokens}
}

// ----- DTOs -----

type registerReq struct {
	Name                 string  `json:"name"`
	Email                string  `json:"email"`
	Password             string  `json:"password"`
	PasswordConfirmation string  `json:"password_confirmation"`
	Phone                *string `json:"phone"`
	Role                 string  `json:"role"` // customer | organizer
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type authResp struct {
	User   userResp  `json:"user"`
	Access tokenPart `json:"access"`
}

// Register creates a customer or organizer account and returns an access
// token immediately.  Admin accounts cannot be self registered.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid body")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return errorJSON(c, http.StatusBadRequest, "name, email and password are required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid email")
	}
	if err := utils.CheckPassword(req.Password); err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	if req.PasswordConfirmation != "" && req.PasswordConfirmation != req.Password {
		return errorJSON(c, http.StatusBadRequest, "password confirmation does not match")
	}

	role := model.RoleCustomer
	if r := strings.ToLower(strings.TrimSpace(req.Role)); r != "" {
		parsed, err := model.ParseRole(r)
		if err != nil || parsed == model.RoleAdmin {
			return errorJSON(c, http.StatusBadRequest, "role must be customer or organizer")
		}
		role = parsed
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return respond(c, err)
	}
	u := &model.User{Name: req.Name, Email: req.Email, PasswordHash: hash, Phone: req.Phone, Role: role}
	if err := h.Users.Create(ctx, u); err != nil {
		return respond(c, err)
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "issue access failed")
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "User registered successfully.",
		"data": authResp{
			User:   toUserResp(u),
			Access: tokenPart{Token: access.Token, Expires: access.Exp},
		},
	})
}

// Login verifies the credentials and returns a new access token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return errorJSON(c, http.StatusBadRequest, "email/password required")
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			return errorJSON(c, http.StatusUnauthorized, "invalid credentials")
		}
		return respond(c, err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return errorJSON(c, http.StatusUnauthorized, "invalid credentials")
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "issue access failed")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Login successful.",
		"data": authResp{
			User:   toUserResp(u),
			Access: tokenPart{Token: access.Token, Expires: access.Exp},
		},
	})
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, id.UserID)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": toUserResp(u)})
}

// Logout revokes the access token that authenticated the request.  Other
// tokens of the same user stay valid.
func (h *AuthHandler) Logout(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return unauthorized(c)
	}
	tokenID, exp, ok := middleware.Token(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Tokens.Revoke(ctx, id.UserID, tokenID, exp); err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Logged out successfully.", "data": nil})
}
