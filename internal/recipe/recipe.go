// Package recipe models multi-stage pruning plans: named stages chained
// by checkpoint dependencies, validated as a DAG.
package recipe

import (
	"github.com/dominikbraun/graph"
	"github.com/gin-gonic/gin"

	"github.com/ds-ai96/SRP/common/errors"
	"github.com/ds-ai96/SRP/internal/launch"
)

// Stage is one pruning stage of a recipe. DependsOn names the stages
// whose best checkpoints this stage starts from; for a single parent
// that checkpoint becomes the stage's pretrained model.
type Stage struct {
	Name      string          `json:"name" binding:"required"`
	Schedule  launch.Schedule `json:"schedule"`
	Params    string          `json:"params,omitempty"`
	GPUs      string          `json:"gpus,omitempty"`
	DependsOn []string        `json:"dependsOn,omitempty"`
}

type Recipe struct {
	Name    string  `json:"name" binding:"required"`
	UserTag string  `json:"userTag,omitempty"`
	DataDir string  `json:"dataDir" binding:"required"`
	Arch    string  `json:"architecture" binding:"required"`
	Stages  []Stage `json:"stages" binding:"required,min=1"`
}

func (r *Recipe) Bind(ctx *gin.Context) error {
	return ctx.ShouldBindJSON(r)
}

// Order validates the stage graph and returns the stages in an
// execution order where every stage follows its dependencies. Unknown
// dependencies, duplicate names and cycles are rejected.
func (r *Recipe) Order() ([]Stage, error) {
	byName := make(map[string]Stage, len(r.Stages))
	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())

	for _, stage := range r.Stages {
		if _, dup := byName[stage.Name]; dup {
			return nil, errors.Errorf("duplicate stage %q", stage.Name)
		}
		byName[stage.Name] = stage
		if err := g.AddVertex(stage.Name); err != nil {
			return nil, errors.Wrapf(err, "add stage %q", stage.Name)
		}
	}

	for _, stage := range r.Stages {
		for _, dep := range stage.DependsOn {
			if _, ok := byName[dep]; !ok {
				return nil, errors.Errorf("stage %q depends on unknown stage %q", stage.Name, dep)
			}
			if err := g.AddEdge(dep, stage.Name); err != nil {
				return nil, errors.Wrapf(err, "edge %s -> %s", dep, stage.Name)
			}
		}
	}

	order, err := graph.TopologicalSort(g)
	if err != nil {
		return nil, errors.Wrap(err, "sort stages")
	}

	stages := make([]Stage, 0, len(order))
	for _, name := range order {
		stages = append(stages, byName[name])
	}
	return stages, nil
}
