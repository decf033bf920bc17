package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// NewRootCmd создаёт корневую команду CLI с подкомандами submit, get и wait.
func NewRootCmd(version string) *cobra.Command {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "knapsack",
		Short:         "Knapsack CLI: submit problems and fetch solutions",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:6543", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *Client { return NewClient(apiURL) }
	outputFn := func() *Output {
		return newOutputTo(jsonOutput, rootCmd.OutOrStdout(), rootCmd.ErrOrStderr())
	}

	rootCmd.AddCommand(
		NewSubmitCmd(clientFn, outputFn),
		NewGetCmd(clientFn, outputFn),
		NewWaitCmd(clientFn, outputFn),
	)

	return rootCmd
}

// NewSubmitCmd создаёт команду отправки задачи.
func NewSubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var capacity uint
	var weights, values []uint
	var file string
	var wait bool
	var interval, timeout time.Duration

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a knapsack problem",
		Example: `  knapsack submit --capacity 10 --weights 5,4,6,3 --values 10,40,30,50
  knapsack submit --file problem.json --wait`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			var p Problem
			if file != "" {
				loaded, err := readProblem(file, cmd.InOrStdin())
				if err != nil {
					return err
				}
				p = loaded
			} else {
				if !cmd.Flags().Changed("capacity") {
					return fmt.Errorf("either --capacity or --file is required")
				}
				var err error
				if p, err = problemFromFlags(capacity, weights, values); err != nil {
					return err
				}
			}

			task, err := client.Submit(cmd.Context(), p)
			if err != nil {
				return err
			}
			out.Success(fmt.Sprintf("Task submitted: %s", task.ID))

			if wait {
				task, err = client.Wait(cmd.Context(), task.ID, interval, timeout)
				if err != nil {
					return err
				}
			}

			out.Task(task)
			return nil
		},
	}

	cmd.Flags().UintVar(&capacity, "capacity", 0, "Knapsack capacity")
	cmd.Flags().UintSliceVar(&weights, "weights", nil, "Item weights, comma separated")
	cmd.Flags().UintSliceVar(&values, "values", nil, "Item values, comma separated")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read problem JSON from file (- for stdin)")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait until the task is completed or failed")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Polling interval for --wait")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Maximum time to wait (0 = no limit)")
	cmd.MarkFlagsMutuallyExclusive("file", "capacity")

	return cmd
}

// NewGetCmd создаёт команду получения task.
func NewGetCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "get TASK_ID",
		Short: "Show task status and solution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := clientFn().GetTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			outputFn().Task(task)
			return nil
		},
	}
}

// NewWaitCmd создаёт команду ожидания завершения task.
func NewWaitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var interval, timeout time.Duration

	cmd := &cobra.Command{
		Use:   "wait TASK_ID",
		Short: "Poll a task until it is completed or failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := clientFn().Wait(cmd.Context(), args[0], interval, timeout)
			if err != nil {
				return err
			}
			outputFn().Task(task)
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Polling interval")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Maximum time to wait (0 = no limit)")

	return cmd
}

func problemFromFlags(capacity uint, weights, values []uint) (Problem, error) {
	if len(weights) != len(values) {
		return Problem{}, fmt.Errorf("--weights and --values must have the same length (%d != %d)", len(weights), len(values))
	}
	c, err := toUint32(capacity, "capacity")
	if err != nil {
		return Problem{}, err
	}

	p := Problem{
		Capacity: c,
		Weights:  make([]uint32, len(weights)),
		Values:   make([]uint32, len(values)),
	}
	for i := range weights {
		if p.Weights[i], err = toUint32(weights[i], "weight"); err != nil {
			return Problem{}, err
		}
		if p.Values[i], err = toUint32(values[i], "value"); err != nil {
			return Problem{}, err
		}
	}
	return p, nil
}

func toUint32(v uint, name string) (uint32, error) {
	if uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("%s %d does not fit in 32 bits", name, v)
	}
	return uint32(v), nil
}

func readProblem(path string, stdin io.Reader) (Problem, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return Problem{}, fmt.Errorf("open problem file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var p Problem
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return Problem{}, fmt.Errorf("decode problem: %w", err)
	}
	return p, nil
}
