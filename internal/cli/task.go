package cli

import (
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ds-ai96/SRP/schema"
)

var (
	submitUserTag  string
	submitGPUs     string
	submitPriority int
	submitParams   string

	listState   string
	listUserTag string
)

var submitCmd = &cobra.Command{
	Use:   "submit <data-bin-dir> <architecture>",
	Short: "Submit a training task",
	Long: `Submit queues one structured-pruning training run.

The first argument is the preprocessed data-bin directory on the broker
host, the second the model architecture (see "srpctl archs").
Hyperparameters beyond the broker defaults go in a JSON file passed
with --params.

Examples:
  srpctl submit /data/iwslt14-bin spt_iwslt_de_en
  srpctl submit /data/iwslt14-bin spt_iwslt_de_en --params run.json --gpus 0,1`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		task := schema.Task{
			DataDir:      args[0],
			Architecture: args[1],
			UserTag:      submitUserTag,
			GPUs:         submitGPUs,
			Priority:     submitPriority,
		}

		if submitParams != "" {
			data, err := os.ReadFile(submitParams)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading params file: %v\n", err)
				os.Exit(1)
			}
			task.TrainingParams = string(data)
		} else {
			task.TrainingParams = "{}"
		}

		var created schema.Task
		data, err := call(http.MethodPost, "/v1/task", &task, &created)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error submitting task: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			printJSON(data)
			return
		}
		fmt.Printf("Task %s submitted\n", created.ID)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [task-id]",
	Short: "Show one task, or list tasks",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 1 {
			var task schema.Task
			data, err := call(http.MethodGet, "/v1/task/"+args[0], nil, &task)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if jsonOutput {
				printJSON(data)
				return
			}
			printTask(&task)
			return
		}

		query := ""
		if listState != "" || listUserTag != "" {
			query = fmt.Sprintf("?state=%s&userTag=%s", listState, listUserTag)
		}

		var tasks []schema.Task
		data, err := call(http.MethodGet, "/v1/task"+query, nil, &tasks)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(data)
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tARCH\tSTAGE\tPROGRESS\tBEST\tTEST BLEU")
		for _, t := range tasks {
			stage := t.StageName
			if stage == "" {
				stage = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%.2f\n",
				t.ID, t.Architecture, stage, t.Progress, t.BestMetric, t.TestBLEU)
		}
		w.Flush()
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs <task-id>",
	Short: "Print the progress log of a task",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := call(http.MethodGet, "/v1/task/"+args[0]+"/log", nil, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(string(data))
	},
}

var epochsCmd = &cobra.Command{
	Use:   "epochs <task-id>",
	Short: "Print the per-epoch statistics of a task",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var stats []schema.EpochStat
		data, err := call(http.MethodGet, "/v1/task/"+args[0]+"/epochs", nil, &stats)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(data)
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "EPOCH\tPHASE\tLOSS\tBLEU\tLR\tUPDATES\tPARAMS\tPRUNED")
		for _, s := range stats {
			pruned := ""
			if s.Pruned {
				pruned = "yes"
			}
			fmt.Fprintf(w, "%d\t%s\t%.3f\t%.2f\t%.6f\t%d\t%d\t%s\n",
				s.Epoch, s.Phase, s.ValidLoss, s.ValidBLEU, s.LR, s.NumUpdates, s.Params, pruned)
		}
		w.Flush()
	},
}

var reportCmd = &cobra.Command{
	Use:   "report <task-id>",
	Short: "Print the evaluation report of a delivered task",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := call(http.MethodGet, "/v1/task/"+args[0]+"/report", nil, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		printJSON(data)
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Cancel a task that has not finished",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if _, err := call(http.MethodDelete, "/v1/task/"+args[0], nil, nil); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Task canceled")
	},
}

func printTask(t *schema.Task) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "ID\t%s\n", t.ID)
	fmt.Fprintf(w, "Architecture\t%s\n", t.Architecture)
	fmt.Fprintf(w, "Progress\t%s\n", t.Progress)
	if t.RecipeID != "" {
		fmt.Fprintf(w, "Recipe\t%s (stage %s)\n", t.RecipeID, t.StageName)
	}
	if t.Error != "" {
		fmt.Fprintf(w, "Error\t%s\n", t.Error)
	}
	fmt.Fprintf(w, "Best metric\t%.3f\n", t.BestMetric)
	if t.TestBLEU > 0 {
		fmt.Fprintf(w, "Test BLEU\t%.2f\n", t.TestBLEU)
	}
	if t.ParamsBefore > 0 {
		fmt.Fprintf(w, "Params\t%d -> %d\n", t.ParamsBefore, t.ParamsAfter)
		fmt.Fprintf(w, "FLOPs\t%.3g -> %.3g\n", t.FlopsBefore, t.FlopsAfter)
	}
	w.Flush()
}

func init() {
	submitCmd.Flags().StringVar(&submitUserTag, "user", "", "user tag")
	submitCmd.Flags().StringVar(&submitGPUs, "gpus", "", `GPU indices, e.g. "0,1", or "cpu"`)
	submitCmd.Flags().IntVar(&submitPriority, "priority", 0, "scheduling priority")
	submitCmd.Flags().StringVar(&submitParams, "params", "", "JSON file with training params")

	statusCmd.Flags().StringVar(&listState, "state", "", "filter by progress state")
	statusCmd.Flags().StringVar(&listUserTag, "user", "", "filter by user tag")

	rootCmd.AddCommand(submitCmd, statusCmd, logsCmd, epochsCmd, reportCmd, cancelCmd)
}
