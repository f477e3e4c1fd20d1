package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/flowgen/internal/api"
	"github.com/shaiso/flowgen/internal/domain"
	"github.com/shaiso/flowgen/internal/graph"
	"github.com/shaiso/flowgen/internal/orchestrator"
	"github.com/shaiso/flowgen/internal/registry"
	"github.com/shaiso/flowgen/internal/repo"
	"github.com/shaiso/flowgen/internal/tools"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	root := NewRootCmd("test")
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFlow(t *testing.T, flow domain.Flow) string {
	t.Helper()

	data, err := json.Marshal(flow)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "flow.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()

	defs := registry.NewDefault()
	runs := repo.NewMemoryRunRepo()
	eng := orchestrator.New(orchestrator.Config{
		Definitions: defs,
		Executor:    tools.NewNodeExecutor(defs, tools.DefaultRegistry(), nil),
		Repository:  runs,
	})
	h := api.NewHandler(api.Config{
		Flows:       repo.NewMemoryFlowRepo(),
		Runs:        runs,
		Requests:    repo.NewMemoryRequestRepo(),
		Schedules:   repo.NewMemoryScheduleRepo(),
		Engine:      eng,
		Definitions: defs,
	})

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// --- Local commands ---

func TestInitValidatePlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flows", "example.json")

	_, stderr, err := execute(t, "init", path)
	require.NoError(t, err)
	assert.Contains(t, stderr, graph.DefaultFlowID)

	_, _, err = execute(t, "init", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already contains")

	_, _, err = execute(t, "init", path, "--force")
	require.NoError(t, err)

	_, stderr, err = execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, stderr, "is valid")

	stdout, _, err := execute(t, "plan", path, "--json")
	require.NoError(t, err)

	var steps []PlanStep
	require.NoError(t, json.Unmarshal([]byte(stdout), &steps))

	ids := make([]string, len(steps))
	for i, s := range steps {
		ids[i] = s.NodeID
	}
	assert.Equal(t, []string{"start", "action-1", "decision-1", "end-ok", "end-ko"}, ids)
	assert.Equal(t, []string{"decision-1"}, steps[3].DependsOn)
	assert.Empty(t, steps[0].DependsOn)
}

func TestEditCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.json")
	store := repo.NewFileFlowRepo(path)

	_, _, err := execute(t, "node", "rm", "start", "-f", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	_, _, err = execute(t, "init", path)
	require.NoError(t, err)

	// node add
	stdout, _, err := execute(t, "node", "add", "action", "-f", path, "--id", "notify", "--label", "Notify")
	require.NoError(t, err)
	assert.Contains(t, stdout, "notify")

	flow, err := store.Load()
	require.NoError(t, err)
	require.Len(t, flow.Nodes, 6)
	assert.Equal(t, "notify", flow.Nodes[5].ID)
	assert.Equal(t, "Notify", flow.Nodes[5].Label)
	assert.Equal(t, "action", flow.Nodes[5].NodeType)

	_, _, err = execute(t, "node", "add", "action", "-f", path, "--id", "notify")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = execute(t, "node", "add", "no-such-type", "-f", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown node type")

	// edge add: новое ребро, повтор и петля
	_, _, err = execute(t, "edge", "add", "notify", "end-ok", "-f", path, "--id", "edge-notify")
	require.NoError(t, err)

	_, stderr, err := execute(t, "edge", "add", "notify", "end-ok", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, stderr, "not added")

	_, stderr, err = execute(t, "edge", "add", "notify", "notify", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, stderr, "not added")

	_, _, err = execute(t, "edge", "add", "notify", "missing", "-f", path)
	require.Error(t, err)

	flow, err = store.Load()
	require.NoError(t, err)
	require.Len(t, flow.Edges, 5)
	assert.Equal(t, "edge-notify", flow.Edges[4].ID)

	// ветка решения
	_, _, err = execute(t, "edge", "add", "decision-1", "notify", "-f", path, "--branch", "true")
	require.NoError(t, err)
	flow, err = store.Load()
	require.NoError(t, err)
	require.Len(t, flow.Edges, 6)
	assert.Equal(t, "true", flow.Edges[5].Branch)

	// edge rm
	_, _, err = execute(t, "edge", "rm", "edge-notify", "-f", path)
	require.NoError(t, err)
	_, _, err = execute(t, "edge", "rm", "edge-notify", "-f", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	// node rm снимает все рёбра узла
	_, stderr, err = execute(t, "node", "rm", "decision-1", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, stderr, "4 edge(s)")

	flow, err = store.Load()
	require.NoError(t, err)
	assert.Len(t, flow.Nodes, 5)
	for _, e := range flow.Edges {
		assert.NotEqual(t, "decision-1", e.SourceNodeID)
		assert.NotEqual(t, "decision-1", e.TargetNodeID)
	}

	// clear
	_, _, err = execute(t, "clear", path)
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	_, _, err = execute(t, "clear", path)
	require.NoError(t, err)
}

func TestValidate_Invalid(t *testing.T) {
	flow := graph.DefaultFlow()
	flow.Edges = flow.Edges[:3]
	path := writeFlow(t, flow)

	stdout, _, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is invalid")
	assert.Contains(t, stdout, "INCOMPLETE_DECISION_BRANCHES")

	stdout, _, err = execute(t, "validate", path, "--json")
	require.Error(t, err)

	var result ValidateResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)
}

func TestValidate_SchemaError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"x","nodes":[]}`), 0o644))

	_, _, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

func TestMigrate_Legacy(t *testing.T) {
	flow := graph.DefaultFlow()
	flow.SchemaVersion = "0.9.0"
	path := writeFlow(t, flow)

	stdout, stderr, err := execute(t, "migrate", path)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Migrated 0.9.0 → 1.0.0")

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	assert.Equal(t, domain.FlowSchemaVersion, doc["schemaVersion"])

	_, stderr, err = execute(t, "migrate", writeFlow(t, graph.DefaultFlow()))
	require.NoError(t, err)
	assert.Contains(t, stderr, "already at version")
}

func TestExport_YAML(t *testing.T) {
	path := writeFlow(t, graph.DefaultFlow())
	outPath := filepath.Join(t.TempDir(), "flow.yaml")

	stdout, _, err := execute(t, "export", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "id: "+graph.DefaultFlowID)

	_, _, err = execute(t, "export", path, "--out", outPath)
	require.NoError(t, err)

	// YAML-документ снова проходит validate
	_, stderr, err := execute(t, "validate", outPath)
	require.NoError(t, err)
	assert.Contains(t, stderr, "is valid")
}

func TestDefinitions(t *testing.T) {
	stdout, _, err := execute(t, "definitions")
	require.NoError(t, err)
	assert.Contains(t, stdout, "decision")
	assert.Contains(t, stdout, "branch")
}

func TestRunLocal(t *testing.T) {
	path := writeFlow(t, graph.DefaultFlow())

	stdout, stderr, err := execute(t, "run", "local", path, "--input", "approved=true", "--json")
	require.NoError(t, err)
	assert.Contains(t, stderr, "success")

	var result orchestrator.Result
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.Equal(t, domain.ExecutionStatusSuccess, result.Status)
	assert.Len(t, result.NodeRuns, 5)

	decision, ok := result.Outputs["decision-1"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "true", decision["branch"])

	stdout, _, err = execute(t, "run", "local", path, "--events")
	require.NoError(t, err)
	assert.Contains(t, stdout, "RUN_STARTED")
	assert.Contains(t, stdout, "RUN_FINISHED")
}

func TestRunLocal_Failure(t *testing.T) {
	flow := graph.DefaultFlow()
	flow.Nodes[1].Config = map[string]any{"toolName": "missing-tool"}
	path := writeFlow(t, flow)

	stdout, _, err := execute(t, "run", "local", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOOL_NOT_FOUND")
	assert.Contains(t, stdout, "failed")
}

func TestParseKeyValues(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]any
		wantErr bool
	}{
		{name: "empty", pairs: nil, want: nil},
		{name: "string", pairs: []string{"name=alice"}, want: map[string]any{"name": "alice"}},
		{name: "json values", pairs: []string{"ok=true", "n=42", `obj={"a":1}`},
			want: map[string]any{"ok": true, "n": float64(42), "obj": map[string]any{"a": float64(1)}}},
		{name: "value with equals", pairs: []string{"q=a=b"}, want: map[string]any{"q": "a=b"}},
		{name: "missing equals", pairs: []string{"novalue"}, wantErr: true},
		{name: "empty key", pairs: []string{"=x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseKeyValues(tt.pairs)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// --- Remote commands ---

func TestRemoteFlowLifecycle(t *testing.T) {
	srv := newAPIServer(t)
	path := writeFlow(t, graph.DefaultFlow())

	stdout, _, err := execute(t, "--api-url", srv.URL, "flow", "import", path, "--create")
	require.NoError(t, err)
	assert.Contains(t, stdout, graph.DefaultFlowID)

	_, _, err = execute(t, "--api-url", srv.URL, "flow", "import", path, "--create")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)

	stdout, _, err = execute(t, "--api-url", srv.URL, "--json", "flow", "list")
	require.NoError(t, err)
	var flows []FlowSummary
	require.NoError(t, json.Unmarshal([]byte(stdout), &flows))
	require.Len(t, flows, 1)
	assert.Equal(t, 5, flows[0].NodeCount)

	stdout, _, err = execute(t, "--api-url", srv.URL, "flow", "export", graph.DefaultFlowID, "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, stdout, "nodeType: decision")

	_, stderr, err := execute(t, "--api-url", srv.URL, "flow", "validate", graph.DefaultFlowID)
	require.NoError(t, err)
	assert.Contains(t, stderr, "is valid")

	_, _, err = execute(t, "--api-url", srv.URL, "flow", "delete", graph.DefaultFlowID)
	require.NoError(t, err)

	_, _, err = execute(t, "--api-url", srv.URL, "flow", "show", graph.DefaultFlowID)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestRemoteRuns(t *testing.T) {
	srv := newAPIServer(t)
	_, _, err := execute(t, "--api-url", srv.URL, "flow", "import", writeFlow(t, graph.DefaultFlow()))
	require.NoError(t, err)

	// inline: ответ после завершения run
	stdout, _, err := execute(t, "--api-url", srv.URL, "--json",
		"run", "start", graph.DefaultFlowID, "--inline", "--input", "approved=false")
	require.NoError(t, err)

	var run RunResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &run))
	assert.Equal(t, "success", run.State())
	require.NotEmpty(t, run.RunID)

	stdout, _, err = execute(t, "--api-url", srv.URL, "--json", "run", "events", run.RunID)
	require.NoError(t, err)
	var events []domain.ExecutionEvent
	require.NoError(t, json.Unmarshal([]byte(stdout), &events))
	require.NotEmpty(t, events)
	assert.Equal(t, domain.EventRunStarted, events[0].Type)
	assert.Equal(t, domain.EventRunFinished, events[len(events)-1].Type)

	stdout, _, err = execute(t, "--api-url", srv.URL, "run", "show", run.RunID)
	require.NoError(t, err)
	assert.Contains(t, stdout, "decision-1")

	stdout, _, err = execute(t, "--api-url", srv.URL, "run", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, run.RunID)

	// queued: заявка ждёт воркера
	_, stderr, err := execute(t, "--api-url", srv.URL, "run", "start", graph.DefaultFlowID, "--idempotency-key", "k-1")
	require.NoError(t, err)
	assert.Contains(t, stderr, string(domain.RequestStatusPending))
}

func TestRemoteSchedules(t *testing.T) {
	srv := newAPIServer(t)
	_, _, err := execute(t, "--api-url", srv.URL, "flow", "import", writeFlow(t, graph.DefaultFlow()))
	require.NoError(t, err)

	stdout, _, err := execute(t, "--api-url", srv.URL, "--json",
		"schedule", "create", graph.DefaultFlowID, "--name", "hourly", "--interval", "3600")
	require.NoError(t, err)

	var created domain.Schedule
	require.NoError(t, json.Unmarshal([]byte(stdout), &created))
	assert.True(t, created.Enabled)
	require.NotNil(t, created.NextDueAt)
	id := created.ID.String()

	stdout, _, err = execute(t, "--api-url", srv.URL, "schedule", "list", "--flow-id", graph.DefaultFlowID)
	require.NoError(t, err)
	assert.Contains(t, stdout, id)
	assert.Contains(t, stdout, "3600s")

	_, _, err = execute(t, "--api-url", srv.URL, "schedule", "disable", id)
	require.NoError(t, err)

	stdout, _, err = execute(t, "--api-url", srv.URL, "--json", "schedule", "show", id)
	require.NoError(t, err)
	var shown domain.Schedule
	require.NoError(t, json.Unmarshal([]byte(stdout), &shown))
	assert.False(t, shown.Enabled)

	_, _, err = execute(t, "--api-url", srv.URL, "schedule", "update", id, "--cron", "0 9 * * *")
	require.NoError(t, err)

	_, _, err = execute(t, "--api-url", srv.URL, "schedule", "delete", id)
	require.NoError(t, err)

	_, _, err = execute(t, "--api-url", srv.URL, "schedule", "show", id)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "NOT_FOUND"))
}
