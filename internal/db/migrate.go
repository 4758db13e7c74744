package db

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/ds-ai96/SRP/schema"
)

func (d *DB) Migrate() error {
	d.db.Set("gorm:table_options", "ENGINE=InnoDB")

	m := gormigrate.New(d.db, &gormigrate.Options{UseTransaction: false}, []*gormigrate.Migration{
		{
			ID: "create-task",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&schema.Task{})
			},
		},
		{
			ID: "create-epoch-stat",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&schema.EpochStat{})
			},
		},
	})

	return errors.Wrap(m.Migrate(), "migrate database")
}
