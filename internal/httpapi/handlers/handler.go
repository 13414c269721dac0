package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/postcraft/internal/ai"
	"github.com/suPer8Hu/postcraft/internal/auth"
	"github.com/suPer8Hu/postcraft/internal/common"
	"github.com/suPer8Hu/postcraft/internal/credential"
	"github.com/suPer8Hu/postcraft/internal/generation"
	"github.com/suPer8Hu/postcraft/internal/httpapi/middleware"
	"github.com/suPer8Hu/postcraft/internal/importer"
	"github.com/suPer8Hu/postcraft/internal/media"
	"github.com/suPer8Hu/postcraft/internal/modelconfig"
	"github.com/suPer8Hu/postcraft/internal/persona"
	"github.com/suPer8Hu/postcraft/internal/post"
	"github.com/suPer8Hu/postcraft/internal/prompt"
	"github.com/suPer8Hu/postcraft/internal/template"
	"gorm.io/gorm"
)

// Handler carries every service the HTTP surface talks to. Jobs and Media
// may be nil when RabbitMQ or object storage are not configured.
type Handler struct {
	Auth        *auth.Service
	Prompts     *prompt.Service
	Templates   *template.Service
	Persona     *persona.Service
	Models      *modelconfig.Service
	Credentials *credential.Service
	Gen         *generation.Orchestrator
	Jobs        *generation.JobService
	Posts       *post.Service
	Importer    *importer.Importer
	Registry    *ai.Registry
	Media       media.Store

	MaxUploadBytes int64
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}

// mustUser writes the 401 envelope when the auth middleware did not run.
func mustUser(c *gin.Context) (uint64, bool) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
	}
	return uid, ok
}

func idParam(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid "+name)
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return false
	}
	return true
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) ||
		errors.Is(err, template.ErrNotFound) ||
		errors.Is(err, modelconfig.ErrNotFound) ||
		errors.Is(err, credential.ErrNotFound) ||
		errors.Is(err, generation.ErrJobNotFound)
}

// storeFailed answers the common tail of a CRUD call: 404 for missing or
// foreign rows, 500 otherwise.
func storeFailed(c *gin.Context, tag, what string, err error) {
	if isNotFound(err) {
		common.Fail(c, http.StatusNotFound, 40401, what+" not found")
		return
	}
	log.Printf("[%s] request_id=%s err=%v", tag, c.GetString(middleware.RequestIDKey), err)
	common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
}

// failureStatus maps a generation failure kind onto an HTTP status and app code.
func failureStatus(kind ai.FailureKind) (int, int) {
	switch kind {
	case ai.FailurePrecondition:
		return http.StatusBadRequest, 40010
	case ai.FailureProvider:
		return http.StatusBadGateway, 50201
	default:
		return http.StatusInternalServerError, 50001
	}
}
