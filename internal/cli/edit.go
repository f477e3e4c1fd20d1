package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/flowgen/internal/domain"
	"github.com/shaiso/flowgen/internal/graph"
	"github.com/shaiso/flowgen/internal/repo"
)

// NewEditCmds возвращает команды редактирования файла flow:
// node add/rm, edge add/rm и clear.
//
// Каждая команда читает flow через FileFlowRepo, применяет одну
// операцию из пакета graph и записывает результат обратно.
func NewEditCmds(localFn func() *Local, outputFn func() *Output) []*cobra.Command {
	nodeCmd := &cobra.Command{
		Use:   "node",
		Short: "Add or remove nodes in a flow file",
	}
	nodeCmd.AddCommand(
		newNodeAddCmd(localFn, outputFn),
		newNodeRemoveCmd(outputFn),
	)

	edgeCmd := &cobra.Command{
		Use:   "edge",
		Short: "Add or remove edges in a flow file",
	}
	edgeCmd.AddCommand(
		newEdgeAddCmd(outputFn),
		newEdgeRemoveCmd(outputFn),
	)

	return []*cobra.Command{nodeCmd, edgeCmd, newClearCmd(outputFn)}
}

// editFlow загружает flow, применяет edit и сохраняет результат.
// Файл должен существовать.
func editFlow(path string, edit func(flow domain.Flow) (domain.Flow, error)) (*domain.Flow, error) {
	store := repo.NewFileFlowRepo(path)

	flow, err := store.Load()
	if err != nil {
		return nil, err
	}
	if flow == nil {
		return nil, fmt.Errorf("%s does not exist (run flowgen init first)", path)
	}

	updated, err := edit(*flow)
	if err != nil {
		return nil, err
	}
	if err := store.Save(&updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func hasNode(flow domain.Flow, nodeID string) bool {
	for _, n := range flow.Nodes {
		if n.ID == nodeID {
			return true
		}
	}
	return false
}

func newNodeAddCmd(localFn func() *Local, outputFn func() *Output) *cobra.Command {
	var path string
	var nodeID string
	var label string

	cmd := &cobra.Command{
		Use:   "add TYPE",
		Short: "Append a node of the given type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			local := localFn()
			out := outputFn()
			nodeType := args[0]

			if !local.Definitions.Has(nodeType) {
				return fmt.Errorf("unknown node type %q (known: %s)",
					nodeType, strings.Join(local.Definitions.Types(), ", "))
			}

			var added string
			_, err := editFlow(path, func(flow domain.Flow) (domain.Flow, error) {
				if nodeID != "" && hasNode(flow, nodeID) {
					return flow, fmt.Errorf("node %q already exists", nodeID)
				}

				updated, id := graph.CreateNode(flow, nodeType)
				last := &updated.Nodes[len(updated.Nodes)-1]
				if nodeID != "" {
					last.ID = nodeID
					id = nodeID
				}
				if label != "" {
					last.Label = label
				}
				added = id
				return updated, nil
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Node added: %s", added))
			out.Print([]string{"NODE_ID", "TYPE"}, [][]string{{added, nodeType}},
				map[string]string{"nodeId": added, "nodeType": nodeType})
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "file", "f", DefaultFlowFile, "Flow file")
	cmd.Flags().StringVar(&nodeID, "id", "", "Node ID (generated when empty)")
	cmd.Flags().StringVar(&label, "label", "", "Node label")

	return cmd
}

func newNodeRemoveCmd(outputFn func() *Output) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "rm ID",
		Short: "Remove a node and every edge attached to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			nodeID := args[0]
			removedEdges := 0

			_, err := editFlow(path, func(flow domain.Flow) (domain.Flow, error) {
				if !hasNode(flow, nodeID) {
					return flow, fmt.Errorf("node %q not found", nodeID)
				}
				updated := graph.DeleteNode(flow, nodeID)
				removedEdges = len(flow.Edges) - len(updated.Edges)
				return updated, nil
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Node removed: %s (%d edge(s))", nodeID, removedEdges))
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "file", "f", DefaultFlowFile, "Flow file")

	return cmd
}

func newEdgeAddCmd(outputFn func() *Output) *cobra.Command {
	var path string
	var edgeID string
	var branch string

	cmd := &cobra.Command{
		Use:   "add SOURCE TARGET",
		Short: "Connect two nodes",
		Long: "Self-loops and repeated source/target pairs are not added. " +
			"Use --branch for outgoing edges of decision nodes.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			source, target := args[0], args[1]
			var added *domain.FlowEdge

			_, err := editFlow(path, func(flow domain.Flow) (domain.Flow, error) {
				for _, id := range []string{source, target} {
					if !hasNode(flow, id) {
						return flow, fmt.Errorf("node %q not found", id)
					}
				}

				var updated domain.Flow
				if branch != "" {
					updated = graph.ConnectBranch(flow, source, target, branch)
				} else {
					updated = graph.ConnectNodes(flow, edgeID, source, target)
				}
				if len(updated.Edges) == len(flow.Edges) {
					return flow, nil
				}

				edge := &updated.Edges[len(updated.Edges)-1]
				if edgeID != "" {
					edge.ID = edgeID
				}
				added = edge
				return updated, nil
			})
			if err != nil {
				return err
			}

			if added == nil {
				out.Success(fmt.Sprintf("Edge %s → %s not added: self-loop or duplicate", source, target))
				return nil
			}

			out.Success(fmt.Sprintf("Edge added: %s", added.ID))
			out.Print([]string{"EDGE_ID", "SOURCE", "TARGET", "BRANCH"},
				[][]string{{added.ID, added.SourceNodeID, added.TargetNodeID, added.Branch}}, added)
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "file", "f", DefaultFlowFile, "Flow file")
	cmd.Flags().StringVar(&edgeID, "id", "", "Edge ID (generated when empty)")
	cmd.Flags().StringVar(&branch, "branch", "", "Branch label (true, false or a port name)")

	return cmd
}

func newEdgeRemoveCmd(outputFn func() *Output) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "rm ID",
		Short: "Remove an edge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			edgeID := args[0]

			_, err := editFlow(path, func(flow domain.Flow) (domain.Flow, error) {
				updated := graph.DeleteEdge(flow, edgeID)
				if len(updated.Edges) == len(flow.Edges) {
					return flow, fmt.Errorf("edge %q not found", edgeID)
				}
				return updated, nil
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Edge removed: %s", edgeID))
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "file", "f", DefaultFlowFile, "Flow file")

	return cmd
}

func newClearCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [FILE]",
		Short: "Delete a flow file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			store := repo.NewFileFlowRepo(fileArg(args))

			if err := store.Clear(); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Removed %s", store.Path()))
			return nil
		},
	}
}
