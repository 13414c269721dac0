package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/postcraft/internal/ai"
	"github.com/suPer8Hu/postcraft/internal/common"
	"github.com/suPer8Hu/postcraft/internal/credential"
)

type setCredentialReq struct {
	Key         string  `json:"key"`
	Value       string  `json:"value"`
	Description *string `json:"description"`
}

// SetCredential creates or replaces a credential. PUT /credentials/:key takes
// the key from the path, POST /credentials from the body.
func (h *Handler) SetCredential(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	var req setCredentialReq
	if !bindJSON(c, &req) {
		return
	}
	if k := c.Param("key"); k != "" {
		req.Key = k
	}
	v, err := h.Credentials.Set(c.Request.Context(), uid, req.Key, req.Value, req.Description)
	if err != nil {
		if errors.Is(err, credential.ErrKeyRequired) {
			common.Fail(c, http.StatusBadRequest, 10002, err.Error())
			return
		}
		storeFailed(c, "Credential", "credential", err)
		return
	}
	common.OK(c, v)
}

func (h *Handler) ListCredentials(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	vs, err := h.Credentials.List(c.Request.Context(), uid)
	if err != nil {
		storeFailed(c, "Credential", "credential", err)
		return
	}
	common.OK(c, vs)
}

func (h *Handler) GetCredential(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	v, err := h.Credentials.Get(c.Request.Context(), uid, c.Param("key"))
	if err != nil {
		storeFailed(c, "Credential", "credential", err)
		return
	}
	common.OK(c, v)
}

func (h *Handler) DeleteCredential(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	key := c.Param("key")
	if err := h.Credentials.Delete(c.Request.Context(), uid, key); err != nil {
		storeFailed(c, "Credential", "credential", err)
		return
	}
	common.OK(c, gin.H{"deleted": key})
}

type validateCredentialReq struct {
	Key        string        `json:"key" binding:"required"`
	Provider   string        `json:"provider" binding:"required"`
	Capability ai.Capability `json:"capability"`
	ModelID    string        `json:"model_id"`
}

// ValidateCredential asks the provider whether the stored key works. A
// rejected key is still a 200 with valid=false.
func (h *Handler) ValidateCredential(c *gin.Context) {
	uid, ok := mustUser(c)
	if !ok {
		return
	}
	var req validateCredentialReq
	if !bindJSON(c, &req) {
		return
	}
	if req.Capability == "" {
		req.Capability = ai.CapabilityText
	}
	if !req.Capability.Valid() {
		common.Fail(c, http.StatusBadRequest, 10002, "capability must be one of: text, image, vision")
		return
	}
	err := h.Credentials.Validate(c.Request.Context(), uid, req.Key, req.Capability, req.Provider, req.ModelID)
	switch {
	case err == nil:
		common.OK(c, gin.H{"valid": true})
	case errors.Is(err, credential.ErrNotFound):
		common.Fail(c, http.StatusNotFound, 40401, "credential not found")
	case errors.Is(err, credential.ErrUnknownTarget):
		common.Fail(c, http.StatusBadRequest, 10002, err.Error())
	default:
		log.Printf("[Credential] validate provider=%s key=%s err=%v", req.Provider, req.Key, err)
		common.OK(c, gin.H{"valid": false, "error": err.Error()})
	}
}
