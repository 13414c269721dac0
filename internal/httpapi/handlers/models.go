package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/postcraft/internal/ai"
	"github.com/suPer8Hu/postcraft/internal/common"
	"github.com/suPer8Hu/postcraft/internal/modelconfig"
)

func modelFailed(c *gin.Context, err error) {
	switch {
	case errors.Is(err, modelconfig.ErrInvalidType), errors.Is(err, modelconfig.ErrUnknownModel):
		common.Fail(c, http.StatusBadRequest, 10002, err.Error())
	case errors.Is(err, modelconfig.ErrAlreadyExists):
		common.Fail(c, http.StatusConflict, 40901, err.Error())
	default:
		storeFailed(c, "ModelConfig", "model configuration", err)
	}
}

func (h *Handler) CreateModelConfig(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	var in modelconfig.CreateInput
	if !bindJSON(c, &in) {
		return
	}
	m, err := h.Models.Create(c.Request.Context(), uid, in)
	if err != nil {
		modelFailed(c, err)
		return
	}
	common.Created(c, m)
}

func (h *Handler) ListModelConfigs(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	skip, limit := common.Page(c)
	modelType := c.Query("model_type")
	if modelType != "" && !ai.Capability(modelType).Valid() {
		common.Fail(c, http.StatusBadRequest, 10002, modelconfig.ErrInvalidType.Error())
		return
	}
	items, total, err := h.Models.List(c.Request.Context(), uid, modelType, skip, limit)
	if err != nil {
		modelFailed(c, err)
		return
	}
	common.OK(c, common.List[modelconfig.ModelConfig]{Items: items, Total: total, Skip: skip, Limit: limit})
}

func (h *Handler) GetModelConfig(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	m, err := h.Models.FindByIDAndUser(c.Request.Context(), id, uid)
	if err != nil {
		modelFailed(c, err)
		return
	}
	common.OK(c, m)
}

func (h *Handler) UpdateModelConfig(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in modelconfig.UpdateInput
	if !bindJSON(c, &in) {
		return
	}
	m, err := h.Models.Update(c.Request.Context(), uid, id, in)
	if err != nil {
		modelFailed(c, err)
		return
	}
	common.OK(c, m)
}

func (h *Handler) DeleteModelConfig(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Models.Delete(c.Request.Context(), uid, id); err != nil {
		modelFailed(c, err)
		return
	}
	common.OK(c, gin.H{"deleted": id})
}

func (h *Handler) ProviderCatalogue(c *gin.Context) {
	common.OK(c, h.Models.Catalogue())
}
