package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// NewRunCmd создаёт группу команд для управления runs.
//
// run local выполняет файл flow в процессе CLI, остальные
// подкоманды работают через API.
func NewRunCmd(clientFn func() *Client, localFn func() *Local, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start and inspect runs",
	}

	cmd.AddCommand(
		newRunListCmd(clientFn, outputFn),
		newRunStartCmd(clientFn, outputFn),
		newRunShowCmd(clientFn, outputFn),
		newRunEventsCmd(clientFn, outputFn),
		newRunLocalCmd(localFn, outputFn),
	)

	return cmd
}

func newRunListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List run IDs known to the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			ids, err := client.ListRuns(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([][]string, len(ids))
			for i, id := range ids {
				rows[i] = []string{id}
			}

			out.Print([]string{"RUN_ID"}, rows, ids)
			return nil
		},
	}
}

func newRunStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var inline bool
	var inputs []string
	var vars []string
	var idempotencyKey string
	var traceID string

	cmd := &cobra.Command{
		Use:   "start FLOW_ID",
		Short: "Start a run of a stored flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := CreateRunRequest{
				Mode:           "queued",
				IdempotencyKey: idempotencyKey,
				TraceID:        traceID,
			}
			if inline {
				req.Mode = "inline"
			}

			var err error
			if req.Input, err = parseKeyValues(inputs); err != nil {
				return err
			}
			if req.Variables, err = parseKeyValues(vars); err != nil {
				return err
			}

			run, err := client.CreateRun(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run %s: %s", run.RunID, run.State()))
			printRun(out, run)
			return nil
		},
	}

	cmd.Flags().BoolVar(&inline, "inline", false, "Execute on the API server and wait for the result")
	cmd.Flags().StringArrayVar(&inputs, "input", nil, "Input values as KEY=VALUE (repeatable)")
	cmd.Flags().StringArrayVar(&vars, "var", nil, "Variables as KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Reuse an existing request with this key")
	cmd.Flags().StringVar(&traceID, "trace-id", "", "Trace ID for logs and events")

	return cmd
}

func newRunShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show run status and node results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			printRun(out, run)
			return nil
		},
	}
}

func newRunEventsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "events RUN_ID",
		Short: "Show the execution log of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			events, err := client.ListRunEvents(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			rows := make([][]string, len(events))
			for i, e := range events {
				rows[i] = []string{
					strconv.Itoa(e.Sequence), string(e.Type), e.NodeID,
					e.OccurredAt.Format(time.RFC3339Nano),
				}
			}

			out.Print([]string{"SEQ", "TYPE", "NODE", "AT"}, rows, events)
			return nil
		},
	}
}

func printRun(out *Output, run *RunResponse) {
	if out.JSONMode() {
		out.JSON(run)
		return
	}

	nodeRuns := run.NodeRuns
	if run.Run != nil {
		nodeRuns = run.Run.NodeRuns
	}
	if len(nodeRuns) == 0 {
		flowID := ""
		if run.Request != nil {
			flowID = run.Request.FlowID
		}
		out.Table([]string{"RUN_ID", "FLOW_ID", "STATUS"}, [][]string{{run.RunID, flowID, run.State()}})
		return
	}

	rows := make([][]string, len(nodeRuns))
	for i, nr := range nodeRuns {
		rows[i] = []string{
			nr.NodeID, string(nr.Status), strconv.Itoa(nr.Retries),
			nr.FinishedAt.Sub(nr.StartedAt).String(), nr.ErrorCode,
		}
	}
	out.Table([]string{"NODE", "STATUS", "RETRIES", "DURATION", "ERROR"}, rows)
}

// parseKeyValues разбирает пары KEY=VALUE.
// Значение, которое читается как JSON (true, 42, {"a":1}), декодируется,
// остальное остаётся строкой.
func parseKeyValues(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	result := make(map[string]any, len(pairs))
	for _, kv := range pairs {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid input format %q, expected KEY=VALUE", kv)
		}

		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err == nil {
			result[key] = decoded
		} else {
			result[key] = value
		}
	}
	return result, nil
}
