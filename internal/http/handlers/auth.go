package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/todotask/internal/auth"
	"github.com/geocoder89/todotask/internal/domain/user"
	"github.com/geocoder89/todotask/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

// Accounts is what the auth routes need from the service layer.
type Accounts interface {
	Register(ctx context.Context, email, password string) (user.User, error)
	Login(ctx context.Context, email, password string) (auth.TokenPair, error)
	User(ctx context.Context, id int64) (user.User, error)
}

type AuthHandler struct {
	accounts Accounts
	log      *slog.Logger
	timeout  time.Duration
}

func NewAuthHandler(accounts Accounts, log *slog.Logger, timeout time.Duration) *AuthHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &AuthHandler{
		accounts: accounts,
		log:      log,
		timeout:  timeout,
	}
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req user.RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	u, err := h.accounts.Register(cctx, *req.Email, *req.Password)

	if err != nil {
		RespondDomainError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusCreated, u.Public())
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	pair, err := h.accounts.Login(cctx, *req.Email, *req.Password)

	if err != nil {
		RespondDomainError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, pair)
}

// Me returns the account behind the bearer token. Requires RequireAuth.
func (h *AuthHandler) Me(ctx *gin.Context) {
	id, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondError(ctx, http.StatusUnauthorized, "not_authenticated", "Not authenticated", nil)
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	u, err := h.accounts.User(cctx, id)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondDomainError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, u.Public())
}
