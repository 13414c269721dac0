package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/postcraft/internal/auth"
	"github.com/suPer8Hu/postcraft/internal/common"
	"github.com/suPer8Hu/postcraft/internal/httpapi/middleware"
)

type registerReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Register(c *gin.Context) {
	var req registerReq
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.Auth.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingFields):
			common.Fail(c, http.StatusBadRequest, 10002, err.Error())
		case errors.Is(err, auth.ErrUserExists):
			common.Fail(c, http.StatusBadRequest, 10003, err.Error())
		default:
			log.Printf("[Auth] register failed err=%v", err)
			common.Fail(c, http.StatusInternalServerError, 50001, "failed to create user")
		}
		return
	}
	common.Created(c, u)
}

type loginReq struct {
	// Username also accepts the email address.
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if !bindJSON(c, &req) {
		return
	}
	pair, err := h.Auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrBadCredentials):
			common.Fail(c, http.StatusUnauthorized, 40102, err.Error())
		case errors.Is(err, auth.ErrInactiveUser):
			common.Fail(c, http.StatusForbidden, 40301, err.Error())
		default:
			log.Printf("[Auth] login failed err=%v", err)
			common.Fail(c, http.StatusInternalServerError, 50001, "login failed")
		}
		return
	}
	common.OK(c, pair)
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (h *Handler) Refresh(c *gin.Context) {
	var req refreshReq
	if !bindJSON(c, &req) {
		return
	}
	pair, err := h.Auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrInactiveUser) {
			common.Fail(c, http.StatusForbidden, 40301, err.Error())
			return
		}
		common.Fail(c, http.StatusUnauthorized, 40103, "invalid refresh token")
		return
	}
	common.OK(c, pair)
}

func (h *Handler) Me(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	u, err := h.Auth.User(c.Request.Context(), uid)
	if err != nil {
		storeFailed(c, "Auth", "user", err)
		return
	}
	common.OK(c, u)
}

type logoutReq struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handler) Logout(c *gin.Context) {
	var req logoutReq
	_ = c.ShouldBindJSON(&req) // body is optional

	claims, _ := c.Get(middleware.ClaimsKey)
	access, _ := claims.(*auth.Claims)
	if err := h.Auth.Logout(c.Request.Context(), access, req.RefreshToken); err != nil {
		if errors.Is(err, auth.ErrRevocationDisabled) {
			common.Fail(c, http.StatusServiceUnavailable, 50301, err.Error())
			return
		}
		log.Printf("[Auth] logout failed err=%v", err)
		common.Fail(c, http.StatusInternalServerError, 50001, "logout failed")
		return
	}
	common.OK(c, gin.H{"logged_out": true})
}
