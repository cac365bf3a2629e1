// Package postgres registers the PostgreSQL dialector for the gorm run
// repository.
package postgres

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/lamina3d/lamina/pkg/slicer/core/config"
	gormrepo "github.com/lamina3d/lamina/pkg/slicer/infrastructure/repository/gorm"
)

// init registers the PostgreSQL dialector factory.
func init() {
	gormrepo.RegisterDialector("postgres", func(cfg config.DatabaseConfig) (gorm.Dialector, error) {
		return postgres.Open(connectionString(cfg)), nil
	})
}

// connectionString builds the DSN expected by gorm.io/driver/postgres.
func connectionString(c config.DatabaseConfig) string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}
