package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/postcraft/internal/common"
	"github.com/suPer8Hu/postcraft/internal/persona"
)

func (h *Handler) PersonaCategories(c *gin.Context) {
	common.OK(c, h.Persona.Categories())
}

func (h *Handler) InitializePersona(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	recs, err := h.Persona.Initialize(c.Request.Context(), uid)
	if err != nil {
		storeFailed(c, "Persona", "customer info", err)
		return
	}
	common.OK(c, recs)
}

func (h *Handler) ListPersona(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	recs, err := h.Persona.List(c.Request.Context(), uid)
	if err != nil {
		storeFailed(c, "Persona", "customer info", err)
		return
	}
	common.OK(c, recs)
}

func (h *Handler) GetPersona(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	rec, err := h.Persona.Get(c.Request.Context(), uid, c.Param("category"))
	if err != nil {
		if errors.Is(err, persona.ErrInvalidCategory) {
			common.Fail(c, http.StatusBadRequest, 10002, err.Error())
			return
		}
		storeFailed(c, "Persona", "customer info", err)
		return
	}
	common.OK(c, rec)
}

type replacePersonaReq struct {
	Details     []persona.Pair `json:"details"`
	Description *string        `json:"description"`
}

func (h *Handler) ReplacePersona(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	var req replacePersonaReq
	if !bindJSON(c, &req) {
		return
	}
	rec, err := h.Persona.Replace(c.Request.Context(), uid, c.Param("category"), req.Details, req.Description)
	if err != nil {
		if errors.Is(err, persona.ErrInvalidCategory) {
			common.Fail(c, http.StatusBadRequest, 10002, err.Error())
			return
		}
		storeFailed(c, "Persona", "customer info", err)
		return
	}
	common.OK(c, rec)
}
