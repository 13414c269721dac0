package db

import (
	"github.com/suPer8Hu/postcraft/internal/credential"
	"github.com/suPer8Hu/postcraft/internal/generation"
	"github.com/suPer8Hu/postcraft/internal/modelconfig"
	"github.com/suPer8Hu/postcraft/internal/models"
	"github.com/suPer8Hu/postcraft/internal/persona"
	"github.com/suPer8Hu/postcraft/internal/post"
	"github.com/suPer8Hu/postcraft/internal/prompt"
	"github.com/suPer8Hu/postcraft/internal/template"
	"gorm.io/gorm"
)

// Models lists every table postcraft owns, in dependency order.
func Models() []any {
	return []any{
		&models.User{},
		&prompt.Tag{},
		&prompt.Prompt{},
		&persona.Record{},
		&template.Template{},
		&modelconfig.ModelConfig{},
		&credential.Credential{},
		&post.Post{},
		&generation.Job{},
	}
}

func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(Models()...)
}
