// Package ctrl holds the broker's business logic between the HTTP
// handlers and the database.
package ctrl

import (
	"github.com/ds-ai96/SRP/common/log"
	"github.com/ds-ai96/SRP/config"
	"github.com/ds-ai96/SRP/internal/db"
)

type Ctrl struct {
	db     *db.DB
	config *config.Config
	logger log.Logger
}

func New(database *db.DB, cfg *config.Config, logger log.Logger) *Ctrl {
	return &Ctrl{
		db:     database,
		config: cfg,
		logger: logger,
	}
}

// WorkRoot exposes the task working directory root for health reporting.
func (c *Ctrl) WorkRoot() string {
	return c.config.Paths.WorkRoot
}
