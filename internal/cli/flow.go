package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shaiso/flowgen/internal/engine"
)

// NewFlowCmd создаёт группу команд для управления flows на сервере.
func NewFlowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Manage flows stored on the API server",
	}

	cmd.AddCommand(
		newFlowListCmd(clientFn, outputFn),
		newFlowImportCmd(clientFn, outputFn),
		newFlowShowCmd(clientFn, outputFn),
		newFlowDeleteCmd(clientFn, outputFn),
		newFlowExportCmd(clientFn, outputFn),
		newFlowValidateCmd(clientFn, outputFn),
	)

	return cmd
}

func newFlowListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all flows",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			flows, err := client.ListFlows(cmd.Context())
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "NODES", "EDGES"}
			rows := make([][]string, len(flows))
			for i, f := range flows {
				rows[i] = []string{f.ID, f.Name, strconv.Itoa(f.NodeCount), strconv.Itoa(f.EdgeCount)}
			}

			out.Print(headers, rows, flows)
			return nil
		},
	}
}

func newFlowImportCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var create bool

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Upload a flow document (JSON or YAML)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := readDocument(cmd, args[0])
			if err != nil {
				return err
			}

			resp, err := client.ImportFlow(cmd.Context(), data, create)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Flow saved: %s", resp.Flow.ID))
			printFlowSummary(out, resp)
			return nil
		},
	}

	cmd.Flags().BoolVar(&create, "create", false, "Fail if a flow with the same ID exists")

	return cmd
}

func newFlowShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show flow nodes and validation state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			resp, err := client.GetFlow(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if out.JSONMode() {
				out.JSON(resp)
				return nil
			}

			rows := make([][]string, len(resp.Flow.Nodes))
			for i, n := range resp.Flow.Nodes {
				rows[i] = []string{n.ID, n.NodeType, n.Label}
			}
			out.Table([]string{"NODE", "TYPE", "LABEL"}, rows)

			if !resp.Valid {
				out.Success("Flow is invalid:")
				printValidationErrors(out, resp.Validation)
			}
			return nil
		},
	}
}

func newFlowDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteFlow(cmd.Context(), args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Flow deleted: %s", args[0]))
			return nil
		},
	}
}

func newFlowExportCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var format string
	var outPath string

	cmd := &cobra.Command{
		Use:   "export ID",
		Short: "Download a flow document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			f, err := engine.ParseFormat(format)
			if err != nil {
				return err
			}

			data, err := client.ExportFlow(cmd.Context(), args[0], f)
			if err != nil {
				return err
			}

			return writeDocument(out, outPath, data)
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "Document format (json, yaml)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write to file instead of stdout")

	return cmd
}

func newFlowValidateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate ID",
		Short: "Validate a stored flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			result, err := client.ValidateFlow(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if out.JSONMode() {
				out.JSON(result)
			} else {
				printValidationErrors(out, result.Errors)
			}
			if !result.Valid {
				return fmt.Errorf("flow %s is invalid: %d error(s)", args[0], len(result.Errors))
			}
			out.Success(fmt.Sprintf("Flow %s is valid", args[0]))
			return nil
		},
	}
}

func printFlowSummary(out *Output, resp *FlowResponse) {
	migrated := ""
	if resp.Migration != nil && len(resp.Migration.Applied) > 0 {
		migrated = resp.Migration.From + " → " + resp.Migration.To
	}
	out.Print(
		[]string{"ID", "NAME", "NODES", "EDGES", "VALID", "MIGRATED"},
		[][]string{{
			resp.Flow.ID, resp.Flow.Name,
			strconv.Itoa(len(resp.Flow.Nodes)), strconv.Itoa(len(resp.Flow.Edges)),
			strconv.FormatBool(resp.Valid), migrated,
		}},
		resp,
	)
}

func printValidationErrors(out *Output, errs []engine.ValidationError) {
	if len(errs) == 0 {
		return
	}
	rows := make([][]string, len(errs))
	for i, e := range errs {
		rows[i] = []string{string(e.Code), e.SubjectID, e.Message}
	}
	out.Table([]string{"CODE", "SUBJECT", "MESSAGE"}, rows)
}

// readDocument читает файл; "-" означает stdin.
func readDocument(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// writeDocument пишет документ в файл или в stdout.
func writeDocument(out *Output, path string, data []byte) error {
	if path == "" {
		out.Raw(data)
		return nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	out.Success(fmt.Sprintf("Written: %s", path))
	return nil
}
