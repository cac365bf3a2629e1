// Package sqlite registers the SQLite dialector for the gorm run repository.
package sqlite

import (
	"errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lamina3d/lamina/pkg/slicer/core/config"
	gormrepo "github.com/lamina3d/lamina/pkg/slicer/infrastructure/repository/gorm"
)

// init registers the SQLite dialector factory.
func init() {
	gormrepo.RegisterDialector("sqlite", func(cfg config.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Database == "" {
			return nil, errors.New("sqlite database path cannot be empty")
		}
		// The SQLite dialector takes the file path (or :memory:) directly.
		return sqlite.Open(cfg.Database), nil
	})
}
