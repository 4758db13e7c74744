package db

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormschema "gorm.io/gorm/schema"

	"github.com/ds-ai96/SRP/common/log"
	"github.com/ds-ai96/SRP/config"
)

type DB struct {
	db     *gorm.DB
	logger log.Logger
}

func NewDB(conf *config.Config, logger log.Logger) (*DB, error) {
	db, err := gorm.Open(mysql.Open(conf.Database.Broker), &gorm.Config{
		NamingStrategy: gormschema.NamingStrategy{
			SingularTable: true,
		},
	})
	if err != nil {
		return nil, err
	}
	return &DB{db: db, logger: logger}, nil
}
