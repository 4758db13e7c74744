// Package handler exposes the broker's HTTP surface.
package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ds-ai96/SRP/common/errors"
	"github.com/ds-ai96/SRP/common/log"
	"github.com/ds-ai96/SRP/internal/ctrl"
	"github.com/ds-ai96/SRP/internal/monitor"
)

type Handler struct {
	ctrl   *ctrl.Ctrl
	logger log.Logger
}

func New(ctrl *ctrl.Ctrl, logger log.Logger) *Handler {
	return &Handler{
		ctrl:   ctrl,
		logger: logger,
	}
}

func (h *Handler) Register(r *gin.Engine) {
	group := r.Group("/v1")

	group.POST("/task", h.CreateTask)
	group.GET("/task", h.ListTasks)
	group.GET("/task/:id", h.GetTask)
	group.DELETE("/task/:id", h.CancelTask)
	group.GET("/task/:id/log", h.GetLog)
	group.GET("/task/:id/epochs", h.GetEpochStats)
	group.GET("/task/:id/report", h.GetReport)

	group.POST("/recipe", h.CreateRecipe)
	group.GET("/recipe/:id", h.GetRecipe)

	group.GET("/arch", h.ListArchitectures)
	group.GET("/health", h.Health)

	r.GET("/metrics", monitor.PrometheusHandler())
}

func handleBrokerError(ctx *gin.Context, err error, context string) {
	info := "Broker"
	if context != "" {
		info += (": " + context)
	}
	errors.Response(ctx, errors.Wrap(err, info))
}
