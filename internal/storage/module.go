package storage

import (
	"go.uber.org/fx"
)

var (
	Module = fx.Provide(
		NewFileStore,
		func(fs *FileStore) Store { return fs },
	)
)
