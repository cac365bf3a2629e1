// Package mysql registers the MySQL dialector for the gorm run repository.
package mysql

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/lamina3d/lamina/pkg/slicer/core/config"
	gormrepo "github.com/lamina3d/lamina/pkg/slicer/infrastructure/repository/gorm"
)

// init registers the MySQL dialector factory.
func init() {
	gormrepo.RegisterDialector("mysql", func(cfg config.DatabaseConfig) (gorm.Dialector, error) {
		return mysql.Open(connectionString(cfg)), nil
	})
}

// connectionString builds the DSN expected by gorm.io/driver/mysql:
// user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=Local
func connectionString(c config.DatabaseConfig) string {
	var authPart string
	if c.User != "" {
		authPart = c.User
		if c.Password != "" {
			authPart = fmt.Sprintf("%s:%s", c.User, c.Password)
		}
		authPart += "@"
	}
	return fmt.Sprintf("%stcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		authPart, c.Host, c.Port, c.Database)
}
