package postgres

import (
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func openPostgres(dsn string) (*gorm.DB, error) {
	return gorm.Open(pgdriver.New(pgdriver.Config{DSN: dsn, PreferSimpleProtocol: true}), &gorm.Config{})
}
