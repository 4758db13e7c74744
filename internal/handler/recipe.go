package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ds-ai96/SRP/internal/recipe"
)

// createRecipe
//
//	@Description  Submit a multi-stage pruning recipe; one task is
//	created per stage and chained stages wait for their parents
//	@ID			createRecipe
//	@Tags		recipe
//	@Router		/recipe [post]
//	@Param		body	body	recipe.Recipe	true	"recipe"
//	@Success	201	{object}	[]schema.Task
func (h *Handler) CreateRecipe(ctx *gin.Context) {
	var r recipe.Recipe
	if err := r.Bind(ctx); err != nil {
		handleBrokerError(ctx, err, "bind recipe")
		return
	}

	tasks, err := h.ctrl.CreateRecipe(&r)
	if err != nil {
		handleBrokerError(ctx, err, "create recipe")
		return
	}

	ctx.JSON(http.StatusCreated, tasks)
}

// getRecipe
//
//	@Description  List the stage tasks of a recipe
//	@ID			getRecipe
//	@Tags		recipe
//	@Router		/recipe/{id} [get]
//	@Param		id	path	string	true	"recipe ID"
//	@Success	200	{object}	[]schema.Task
func (h *Handler) GetRecipe(ctx *gin.Context) {
	tasks, err := h.ctrl.GetRecipeTasks(ctx.Param("id"))
	if err != nil {
		handleBrokerError(ctx, err, "get recipe")
		return
	}

	ctx.JSON(http.StatusOK, tasks)
}
