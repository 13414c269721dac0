package generation

import (
	"github.com/suPer8Hu/postcraft/internal/ai"
	"github.com/suPer8Hu/postcraft/internal/credential"
	"github.com/suPer8Hu/postcraft/internal/metrics"
	"github.com/suPer8Hu/postcraft/internal/modelconfig"
	"github.com/suPer8Hu/postcraft/internal/persona"
	"github.com/suPer8Hu/postcraft/internal/prompt"
	"github.com/suPer8Hu/postcraft/internal/template"
	"gorm.io/gorm"
)

// NewGormOrchestrator wires an Orchestrator to the gorm backed stores. The
// API server and the worker share it.
func NewGormOrchestrator(db *gorm.DB, reg *ai.Registry, cipher *credential.Cipher, rec *metrics.Recorder) *Orchestrator {
	return NewOrchestrator(reg, Deps{
		Prompts:     prompt.NewRepo(db),
		Models:      modelconfig.NewService(modelconfig.NewRepo(db), reg),
		Credentials: credential.NewService(credential.NewRepo(db), cipher, reg),
		Persona:     persona.NewEngine(persona.NewRepo(db)),
		Templates:   template.NewService(template.NewRepo(db)),
		Metrics:     rec,
	})
}
