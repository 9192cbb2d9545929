package service

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/keeper-crm/keeper-back/internal/config"
)

var (
	Module = fx.Provide(
		NewAuth,
		NewJoinManager,
		NewTags,
		NewContacts,
		NewInteractions,
		NewReminders,
		newImporter,
	)
)

func newImporter(g *gorm.DB, l *zap.SugaredLogger, cfg *config.Config) *Importer {
	return NewImporter(g, l, cfg.ImportBatchSize)
}
