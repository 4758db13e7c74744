package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ds-ai96/SRP/internal/arch"
	"github.com/ds-ai96/SRP/internal/recipe"
	"github.com/ds-ai96/SRP/schema"
)

var recipeCmd = &cobra.Command{
	Use:   "recipe <recipe.json>",
	Short: "Submit a multi-stage pruning recipe",
	Long: `Recipe submits a JSON file describing chained pruning stages.
Each stage becomes a task; stages that depend on others start from the
parent's best checkpoint once it finishes.

Example:
  srpctl recipe recipes/iwslt-3stage.json`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading recipe file: %v\n", err)
			os.Exit(1)
		}

		var r recipe.Recipe
		if err := json.Unmarshal(data, &r); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing recipe: %v\n", err)
			os.Exit(1)
		}

		var tasks []schema.Task
		resp, err := call(http.MethodPost, "/v1/recipe", &r, &tasks)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error submitting recipe: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(resp)
			return
		}

		fmt.Printf("Recipe %s submitted with %d stages\n", r.Name, len(tasks))
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STAGE\tTASK ID\tWAITING FOR")
		for _, t := range tasks {
			waiting := t.WaitingFor
			if waiting == "" {
				waiting = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", t.StageName, t.ID, waiting)
		}
		w.Flush()
	},
}

var archsCmd = &cobra.Command{
	Use:   "archs",
	Short: "List the architectures the broker can train",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		var archs []arch.Architecture
		data, err := call(http.MethodGet, "/v1/arch", nil, &archs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(data)
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tENC\tDEC\tEMBED\tFFN\tHEADS")
		for _, a := range archs {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\n",
				a.Name, a.EncoderLayers, a.DecoderLayers, a.EmbedDim, a.FFNDim, a.Heads)
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(recipeCmd, archsCmd)
}
