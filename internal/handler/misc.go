package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ds-ai96/SRP/internal/arch"
	"github.com/ds-ai96/SRP/internal/monitor"
)

// listArchitectures
//
//	@Description  List the model architectures the broker can train
//	@ID			listArchitectures
//	@Tags		arch
//	@Router		/arch [get]
//	@Success	200	{object}	[]arch.Architecture
func (h *Handler) ListArchitectures(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, arch.List())
}

// health
//
//	@Description  Broker liveness plus a host resource snapshot
//	@ID			health
//	@Tags		health
//	@Router		/health [get]
//	@Success	200	{object}	monitor.HostSnapshot
func (h *Handler) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"host":   monitor.Snapshot(h.ctrl.WorkRoot()),
	})
}
