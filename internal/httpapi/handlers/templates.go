package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/postcraft/internal/common"
	"github.com/suPer8Hu/postcraft/internal/template"
)

func templateFailed(c *gin.Context, err error) {
	if errors.Is(err, template.ErrInvalidCategory) || errors.Is(err, template.ErrMissingFields) {
		common.Fail(c, http.StatusBadRequest, 10002, err.Error())
		return
	}
	storeFailed(c, "Template", "template", err)
}

func (h *Handler) CreateTemplate(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	var in template.Input
	if !bindJSON(c, &in) {
		return
	}
	t, err := h.Templates.Create(c.Request.Context(), uid, in)
	if err != nil {
		templateFailed(c, err)
		return
	}
	common.Created(c, t)
}

func (h *Handler) ListTemplates(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	skip, limit := common.Page(c)
	f := template.ListFilter{
		Category: template.Category(c.Query("category")),
		Tag:      c.Query("tag"),
		Search:   c.Query("search"),
		Skip:     skip,
		Limit:    limit,
	}
	if f.Category != "" && !f.Category.Valid() {
		common.Fail(c, http.StatusBadRequest, 10002, template.ErrInvalidCategory.Error())
		return
	}
	items, total, err := h.Templates.List(c.Request.Context(), uid, f)
	if err != nil {
		templateFailed(c, err)
		return
	}
	common.OK(c, common.List[template.Template]{Items: items, Total: total, Skip: skip, Limit: limit})
}

func (h *Handler) TemplateTags(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	tags, err := h.Templates.Tags(c.Request.Context(), uid)
	if err != nil {
		templateFailed(c, err)
		return
	}
	common.OK(c, tags)
}

func (h *Handler) GetTemplate(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	t, err := h.Templates.Get(c.Request.Context(), uid, id)
	if err != nil {
		templateFailed(c, err)
		return
	}
	common.OK(c, t)
}

func (h *Handler) UpdateTemplate(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in template.Input
	if !bindJSON(c, &in) {
		return
	}
	t, err := h.Templates.Update(c.Request.Context(), uid, id, in)
	if err != nil {
		templateFailed(c, err)
		return
	}
	common.OK(c, t)
}

func (h *Handler) DeleteTemplate(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Templates.Delete(c.Request.Context(), uid, id); err != nil {
		templateFailed(c, err)
		return
	}
	common.OK(c, gin.H{"deleted": id})
}
