package handlers

import (
	"github.com/suPer8Hu/postcraft/internal/ai"
	"github.com/suPer8Hu/postcraft/internal/auth"
	"github.com/suPer8Hu/postcraft/internal/config"
	"github.com/suPer8Hu/postcraft/internal/credential"
	"github.com/suPer8Hu/postcraft/internal/generation"
	"github.com/suPer8Hu/postcraft/internal/importer"
	"github.com/suPer8Hu/postcraft/internal/media"
	"github.com/suPer8Hu/postcraft/internal/metrics"
	"github.com/suPer8Hu/postcraft/internal/modelconfig"
	"github.com/suPer8Hu/postcraft/internal/persona"
	"github.com/suPer8Hu/postcraft/internal/post"
	"github.com/suPer8Hu/postcraft/internal/prompt"
	"github.com/suPer8Hu/postcraft/internal/template"
	"gorm.io/gorm"
)

// Infra is the optional outside world. Any field may be nil: no revoker
// disables logout, no publisher disables async jobs, no store disables uploads.
type Infra struct {
	Revoker   auth.Revoker
	Publisher generation.Publisher
	Media     media.Store
	Metrics   *metrics.Recorder
}

func NewHandler(db *gorm.DB, cfg config.Config, reg *ai.Registry, infra Infra) (*Handler, error) {
	cipher, err := credential.NewCipher(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	maxUpload := int64(cfg.MaxUploadMB) << 20

	promptRepo := prompt.NewRepo(db)
	personaSvc := persona.NewService(persona.NewRepo(db))
	gen := generation.NewGormOrchestrator(db, reg, cipher, infra.Metrics)

	h := &Handler{
		Auth:        auth.NewService(db, infra.Revoker, cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		Prompts:     prompt.NewService(promptRepo),
		Templates:   template.NewService(template.NewRepo(db)),
		Persona:     personaSvc,
		Models:      modelconfig.NewService(modelconfig.NewRepo(db), reg),
		Credentials: credential.NewService(credential.NewRepo(db), cipher, reg),
		Gen:         gen,
		Posts:       post.NewService(post.NewRepo(db), infra.Media, maxUpload),
		Importer: importer.New(promptRepo, promptRepo, personaSvc,
			importer.Policy{SuccessRatio: cfg.ImportSuccessRatio}),
		Registry: reg,
		Media:    infra.Media,

		MaxUploadBytes: maxUpload,
	}
	if infra.Publisher != nil {
		h.Jobs = generation.NewJobService(generation.NewJobRepo(db), gen, promptRepo, infra.Publisher, infra.Metrics)
	}
	return h, nil
}
