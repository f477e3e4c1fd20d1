package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shaiso/flowgen/internal/domain"
	"github.com/shaiso/flowgen/internal/engine"
	"github.com/shaiso/flowgen/internal/graph"
	"github.com/shaiso/flowgen/internal/orchestrator"
	"github.com/shaiso/flowgen/internal/registry"
	"github.com/shaiso/flowgen/internal/repo"
	"github.com/shaiso/flowgen/internal/tools"
)

// DefaultFlowFile — файл flow для локальных команд по умолчанию.
const DefaultFlowFile = "flow.json"

// Local — окружение локальных команд: реестр определений и движок
// в процессе CLI, без сервера и базы.
type Local struct {
	Definitions *registry.Registry
	Tools       *tools.Registry
	AllowCycles bool
	Logger      *slog.Logger
}

// NewLocal создаёт окружение со встроенными определениями и инструментами.
func NewLocal(allowCycles bool, logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{
		Definitions: registry.NewDefault(),
		Tools:       tools.DefaultRegistry(),
		AllowCycles: allowCycles,
		Logger:      logger,
	}
}

// Engine создаёт движок, пишущий журнал в runs.
func (l *Local) Engine(runs orchestrator.RunRepository) *orchestrator.Engine {
	return orchestrator.New(orchestrator.Config{
		Definitions: l.Definitions,
		Executor:    tools.NewNodeExecutor(l.Definitions, l.Tools, l.Logger),
		Repository:  runs,
		AllowCycles: l.AllowCycles,
		Logger:      l.Logger,
	})
}

// Load читает и разбирает документ flow (с миграцией и проверкой схемы).
func (l *Local) Load(cmd *cobra.Command, path string) (*engine.ParseResult, error) {
	data, err := readDocument(cmd, path)
	if err != nil {
		return nil, err
	}
	parsed, err := engine.ParseFlow(data, l.Definitions)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return parsed, nil
}

// Validate выполняет структурную проверку.
func (l *Local) Validate(flow *domain.Flow) []engine.ValidationError {
	return engine.ValidateFlow(flow, l.Definitions, engine.ValidateOptions{AllowCycles: l.AllowCycles})
}

// NewLocalCmds возвращает команды, работающие с файлами без сервера.
func NewLocalCmds(localFn func() *Local, outputFn func() *Output) []*cobra.Command {
	return []*cobra.Command{
		newInitCmd(outputFn),
		newValidateCmd(localFn, outputFn),
		newMigrateCmd(outputFn),
		newExportCmd(localFn, outputFn),
		newPlanCmd(localFn, outputFn),
		newDefinitionsCmd(localFn, outputFn),
	}
}

func fileArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return DefaultFlowFile
}

func newInitCmd(outputFn func() *Output) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [FILE]",
		Short: "Write the example flow to a file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			store := repo.NewFileFlowRepo(fileArg(args))

			existing, err := store.Load()
			if err != nil && !force {
				return err
			}
			if existing != nil && !force {
				return fmt.Errorf("%s already contains flow %q (use --force to overwrite)", store.Path(), existing.ID)
			}

			flow := graph.DefaultFlow()
			if err := store.Save(&flow); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Flow %s written to %s", flow.ID, store.Path()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}

func newValidateCmd(localFn func() *Local, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [FILE]",
		Short: "Parse, migrate and validate a flow document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			local := localFn()
			out := outputFn()
			path := fileArg(args)

			parsed, err := local.Load(cmd, path)
			if err != nil {
				return err
			}

			errs := local.Validate(parsed.Flow)
			if out.JSONMode() {
				if errs == nil {
					errs = []engine.ValidationError{}
				}
				out.JSON(ValidateResponse{Valid: len(errs) == 0, Errors: errs})
			} else {
				printValidationErrors(out, errs)
			}

			if len(parsed.Migration.Applied) > 0 {
				out.Success(fmt.Sprintf("Migrated %s → %s", parsed.Migration.From, parsed.Migration.To))
			}
			if len(errs) > 0 {
				return fmt.Errorf("%s is invalid: %d error(s)", path, len(errs))
			}
			out.Success(fmt.Sprintf("%s is valid", path))
			return nil
		},
	}
}

func newMigrateCmd(outputFn func() *Output) *cobra.Command {
	var format string
	var outPath string

	cmd := &cobra.Command{
		Use:   "migrate [FILE]",
		Short: "Upgrade a flow document to the current schema version",
		Long: "Runs the migration pipeline without checking the schema. " +
			"Documents that are already current are printed unchanged.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			f, err := engine.ParseFormat(format)
			if err != nil {
				return err
			}

			data, err := readDocument(cmd, fileArg(args))
			if err != nil {
				return err
			}

			doc, report, err := engine.MigrateDocument(data, engine.DefaultPipeline())
			if err != nil {
				return err
			}

			encoded, err := encodeDocument(doc, f)
			if err != nil {
				return err
			}

			switch {
			case report.Current:
				out.Success("Document is already at version " + report.To)
			case len(report.Applied) > 0:
				out.Success(fmt.Sprintf("Migrated %s → %s (%s)", report.From, report.To, strings.Join(report.Applied, ", ")))
			default:
				out.Success(fmt.Sprintf("No migration path from version %q", report.From))
			}
			return writeDocument(out, outPath, encoded)
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "Output format (json, yaml)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write to file instead of stdout")

	return cmd
}

func newExportCmd(localFn func() *Local, outputFn func() *Output) *cobra.Command {
	var format string
	var outPath string

	cmd := &cobra.Command{
		Use:   "export [FILE]",
		Short: "Convert a flow document to JSON or YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			local := localFn()
			out := outputFn()

			f, err := engine.ParseFormat(format)
			if err != nil {
				return err
			}

			parsed, err := local.Load(cmd, fileArg(args))
			if err != nil {
				return err
			}

			data, err := engine.MarshalFlow(parsed.Flow, f)
			if err != nil {
				return err
			}
			return writeDocument(out, outPath, data)
		},
	}

	cmd.Flags().StringVar(&format, "format", "yaml", "Output format (json, yaml)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write to file instead of stdout")

	return cmd
}

// PlanStep — шаг плана выполнения.
type PlanStep struct {
	Step      int      `json:"step"`
	NodeID    string   `json:"nodeId"`
	NodeType  string   `json:"nodeType"`
	DependsOn []string `json:"dependsOn"`
}

func newPlanCmd(localFn func() *Local, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "plan [FILE]",
		Short: "Show the order in which the engine would run nodes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			local := localFn()
			out := outputFn()

			parsed, err := local.Load(cmd, fileArg(args))
			if err != nil {
				return err
			}
			flow := parsed.Flow

			if errs := local.Validate(flow); len(errs) > 0 {
				printValidationErrors(out, errs)
				return engine.ValidationErrors(errs)
			}

			g := engine.BuildSchedulingGraph(flow)
			order, ok := g.TopologicalOrder()
			if !ok {
				return errors.New("flow has a cycle: no complete execution order")
			}

			steps := make([]PlanStep, len(order))
			rows := make([][]string, len(order))
			for i, id := range order {
				deps := engine.Upstream(flow, id)
				steps[i] = PlanStep{Step: i + 1, NodeID: id, NodeType: g.NodesByID[id].NodeType, DependsOn: deps}
				rows[i] = []string{strconv.Itoa(i + 1), id, steps[i].NodeType, strings.Join(deps, ", ")}
			}

			out.Print([]string{"STEP", "NODE", "TYPE", "DEPENDS_ON"}, rows, steps)
			return nil
		},
	}
}

func newDefinitionsCmd(localFn func() *Local, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "definitions",
		Short: "List built-in node types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			defs := localFn().Definitions.List()

			rows := make([][]string, len(defs))
			for i, d := range defs {
				rows[i] = []string{
					d.Type, string(d.RuntimeKind), d.Category,
					strings.Join(d.OutputPortNames(), ","), d.Version,
				}
			}

			out.Print([]string{"TYPE", "KIND", "CATEGORY", "OUTPUTS", "VERSION"}, rows, defs)
			return nil
		},
	}
}

func newRunLocalCmd(localFn func() *Local, outputFn func() *Output) *cobra.Command {
	var inputs []string
	var vars []string
	var showEvents bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "local [FILE]",
		Short: "Execute a flow file in-process",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			local := localFn()
			out := outputFn()

			parsed, err := local.Load(cmd, fileArg(args))
			if err != nil {
				return err
			}

			execCtx := domain.ExecutionContext{}
			if execCtx.Input, err = parseKeyValues(inputs); err != nil {
				return err
			}
			if execCtx.Variables, err = parseKeyValues(vars); err != nil {
				return err
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			runs := repo.NewMemoryRunRepo()
			result := local.Engine(runs).Run(ctx, parsed.Flow, execCtx)

			if out.JSONMode() {
				out.JSON(result)
			} else {
				printRun(out, &RunResponse{RunID: result.RunID, Status: string(result.Status), NodeRuns: result.NodeRuns})
			}

			if showEvents {
				events, err := runs.EventsByRunID(ctx, result.RunID)
				if err != nil {
					return err
				}
				printEvents(out, events)
			}

			out.Success(fmt.Sprintf("Run %s: %s in %dms", result.RunID, result.Status, result.Metrics.DurationMs))
			if result.Status.IsSuccess() {
				return nil
			}
			if result.Error != nil {
				return result.Error
			}
			return fmt.Errorf("run finished with status %s", result.Status)
		},
	}

	cmd.Flags().StringArrayVar(&inputs, "input", nil, "Input values as KEY=VALUE (repeatable)")
	cmd.Flags().StringArrayVar(&vars, "var", nil, "Variables as KEY=VALUE (repeatable)")
	cmd.Flags().BoolVar(&showEvents, "events", false, "Print the execution log")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Cancel the run after this duration")

	return cmd
}

func printEvents(out *Output, events []domain.ExecutionEvent) {
	if out.JSONMode() {
		out.JSON(events)
		return
	}
	rows := make([][]string, len(events))
	for i, e := range events {
		rows[i] = []string{strconv.Itoa(e.Sequence), string(e.Type), e.NodeID}
	}
	out.Table([]string{"SEQ", "TYPE", "NODE"}, rows)
}

func encodeDocument(doc any, format engine.Format) ([]byte, error) {
	if format == engine.FormatYAML {
		return yaml.Marshal(doc)
	}
	return json.MarshalIndent(doc, "", "  ")
}
