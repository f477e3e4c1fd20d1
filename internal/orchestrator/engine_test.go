package orchestrator

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shaiso/flowgen/internal/domain"
	"github.com/shaiso/flowgen/internal/telemetry"
)

// recordingRepo — RunRepository в памяти для тестов.
type recordingRepo struct {
	mu        sync.Mutex
	events    []domain.ExecutionEvent
	snapshots map[string]domain.FlowRun
	failWith  error
}

func newRecordingRepo() *recordingRepo {
	return &recordingRepo{snapshots: make(map[string]domain.FlowRun)}
}

func (r *recordingRepo) AppendEvent(_ context.Context, e domain.ExecutionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	r.events = append(r.events, e)
	return nil
}

func (r *recordingRepo) SaveRunSnapshot(_ context.Context, run domain.FlowRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	r.snapshots[run.RunID] = run
	return nil
}

func (r *recordingRepo) EventsByRunID(_ context.Context, runID string) ([]domain.ExecutionEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ExecutionEvent
	for _, e := range r.events {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *recordingRepo) RunSnapshot(_ context.Context, runID string) (*domain.FlowRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.snapshots[runID]
	if !ok {
		return nil, errors.New("not found")
	}
	return &run, nil
}

func (r *recordingRepo) ListRunIDs(context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.snapshots))
	for id := range r.snapshots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *recordingRepo) eventTypes() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]domain.EventType, len(r.events))
	for i, e := range r.events {
		types[i] = e.Type
	}
	return types
}

// countingExecutor считает вызовы и делегирует fn.
type countingExecutor struct {
	calls  atomic.Int32
	refuse bool
	fn     func(attempt int, req NodeRequest) (*NodeOutcome, error)
}

func (c *countingExecutor) CanExecute(*domain.FlowNode) bool { return !c.refuse }

func (c *countingExecutor) Execute(_ context.Context, req NodeRequest) (*NodeOutcome, error) {
	n := int(c.calls.Add(1))
	return c.fn(n, req)
}

func echoExecutor() *countingExecutor {
	return &countingExecutor{fn: func(_ int, req NodeRequest) (*NodeOutcome, error) {
		return &NodeOutcome{Outputs: map[string]any{"nodeId": req.Node.ID}}, nil
	}}
}

func actionNode(id string, meta map[string]string) domain.FlowNode {
	return domain.FlowNode{ID: id, Label: id, NodeType: "action", Version: "1.0.0", Metadata: meta}
}

// linearFlow — n1 → n2 (оба action).
func linearFlow(meta map[string]string) *domain.Flow {
	return &domain.Flow{
		ID:            "linear",
		Name:          "Linear",
		SchemaVersion: domain.FlowSchemaVersion,
		Nodes:         []domain.FlowNode{actionNode("n1", nil), actionNode("n2", meta)},
		Edges:         []domain.FlowEdge{{ID: "e1", SourceNodeID: "n1", TargetNodeID: "n2"}},
	}
}

func newTestEngine(exec NodeExecutor, repo RunRepository) *Engine {
	return New(Config{Executor: exec, Repository: repo})
}

func TestRun_ValidationErrorNeverDispatches(t *testing.T) {
	exec := echoExecutor()
	repo := newRecordingRepo()

	flow := linearFlow(nil)
	flow.Edges = append(flow.Edges, domain.FlowEdge{ID: "bad", SourceNodeID: "ghost", TargetNodeID: "n1"})

	res := newTestEngine(exec, repo).Run(context.Background(), flow, domain.ExecutionContext{RunID: "run-v"})

	if res.Status != domain.ExecutionStatusValidationError {
		t.Fatalf("expected validation_error, got %s", res.Status)
	}
	if res.Error == nil || res.Error.Code != CodeFlowValidation {
		t.Fatalf("expected FLOW_VALIDATION_ERROR, got %+v", res.Error)
	}
	if exec.calls.Load() != 0 {
		t.Errorf("executor must not be invoked, got %d calls", exec.calls.Load())
	}

	got := repo.eventTypes()
	if len(got) != 2 || got[0] != domain.EventRunStarted || got[1] != domain.EventRunFinished {
		t.Errorf("unexpected events: %v", got)
	}
	if snap, err := repo.RunSnapshot(context.Background(), "run-v"); err != nil || snap.Status != domain.ExecutionStatusValidationError {
		t.Errorf("expected validation_error snapshot, got %+v, %v", snap, err)
	}
}

func TestRun_ValidationMessagesJoined(t *testing.T) {
	flow := linearFlow(nil)
	flow.Edges = append(flow.Edges,
		domain.FlowEdge{ID: "x1", SourceNodeID: "ghost", TargetNodeID: "n1"},
		domain.FlowEdge{ID: "x2", SourceNodeID: "n1", TargetNodeID: "phantom"},
	)

	res := newTestEngine(echoExecutor(), nil).Run(context.Background(), flow, domain.ExecutionContext{})

	want := `Edge "x1" references source node "ghost" that does not exist.; ` +
		`Edge "x2" references target node "phantom" that does not exist.`
	if res.Error == nil || res.Error.Message != want {
		t.Errorf("expected joined message %q, got %+v", want, res.Error)
	}
}

func TestRun_DuplicateNodeIDRejected(t *testing.T) {
	exec := echoExecutor()
	repo := newRecordingRepo()

	flow := &domain.Flow{
		ID:            "dup",
		Name:          "Dup",
		SchemaVersion: domain.FlowSchemaVersion,
		Nodes:         []domain.FlowNode{actionNode("a", nil), actionNode("a", nil)},
	}

	res := newTestEngine(exec, repo).Run(context.Background(), flow, domain.ExecutionContext{RunID: "run-dup"})

	if res.Status != domain.ExecutionStatusValidationError {
		t.Fatalf("expected validation_error, got %s", res.Status)
	}
	if res.Error == nil || res.Error.Code != CodeFlowValidation {
		t.Fatalf("expected FLOW_VALIDATION_ERROR, got %+v", res.Error)
	}
	if exec.calls.Load() != 0 {
		t.Errorf("executor must not be invoked, got %d calls", exec.calls.Load())
	}
}

func TestRun_SnapshotIsolatedFromResult(t *testing.T) {
	repo := newRecordingRepo()

	res := newTestEngine(echoExecutor(), repo).Run(context.Background(), linearFlow(nil), domain.ExecutionContext{RunID: "run-iso"})
	if res.Status != domain.ExecutionStatusSuccess {
		t.Fatalf("expected success, got %s", res.Status)
	}

	res.Outputs["injected"] = true
	delete(res.Outputs, "n1")
	res.NodeRuns[0].Status = domain.NodeRunStatusFailed

	snap, err := repo.RunSnapshot(context.Background(), "run-iso")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if _, ok := snap.Outputs["injected"]; ok {
		t.Error("result mutation leaked into stored outputs")
	}
	if _, ok := snap.Outputs["n1"]; !ok {
		t.Error("stored outputs lost n1 after result mutation")
	}
	if snap.NodeRuns[0].Status != domain.NodeRunStatusSuccess {
		t.Errorf("result mutation leaked into stored node runs: %s", snap.NodeRuns[0].Status)
	}
}

func TestRun_LinearSuccess(t *testing.T) {
	exec := echoExecutor()
	repo := newRecordingRepo()

	res := newTestEngine(exec, repo).Run(context.Background(), linearFlow(nil), domain.ExecutionContext{RunID: "run-1", TraceID: "trace-1"})

	if res.Status != domain.ExecutionStatusSuccess {
		t.Fatalf("expected success, got %s (%+v)", res.Status, res.Error)
	}
	if res.Error != nil {
		t.Errorf("expected no error, got %+v", res.Error)
	}
	if len(res.Outputs) != 2 {
		t.Fatalf("expected 2 outputs, got %v", res.Outputs)
	}
	for _, id := range []string{"n1", "n2"} {
		out, ok := res.Outputs[id].(map[string]any)
		if !ok || out["nodeId"] != id {
			t.Errorf("unexpected output for %s: %v", id, res.Outputs[id])
		}
	}
	if res.Metrics.NodeExecutions != 2 {
		t.Errorf("expected 2 node executions, got %d", res.Metrics.NodeExecutions)
	}
	if res.RunID != "run-1" {
		t.Errorf("expected run id run-1, got %s", res.RunID)
	}

	// Журнал событий
	want := []domain.EventType{
		domain.EventRunStarted,
		domain.EventNodeStarted, domain.EventNodeSucceeded,
		domain.EventNodeStarted, domain.EventNodeSucceeded,
		domain.EventRunFinished,
	}
	events, _ := repo.EventsByRunID(context.Background(), "run-1")
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(events))
	}
	for i, e := range events {
		if e.Type != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, e.Type, want[i])
		}
		if e.Sequence != i+1 {
			t.Errorf("event[%d] sequence = %d, want %d", i, e.Sequence, i+1)
		}
	}
	if events[0].Payload["flowId"] != "linear" || events[0].Payload["nodeCount"] != 2 || events[0].Payload["traceId"] != "trace-1" {
		t.Errorf("unexpected RUN_STARTED payload: %v", events[0].Payload)
	}
	if events[1].NodeID != "n1" || events[3].NodeID != "n2" {
		t.Errorf("unexpected node order: %s, %s", events[1].NodeID, events[3].NodeID)
	}

	// Снимок
	snap, err := repo.RunSnapshot(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Status != domain.ExecutionStatusSuccess || snap.FlowID != "linear" || len(snap.NodeRuns) != 2 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestRun_UpstreamOutputsPassed(t *testing.T) {
	var seen map[string]any
	exec := &countingExecutor{fn: func(_ int, req NodeRequest) (*NodeOutcome, error) {
		if req.Node.ID == "n2" {
			seen = req.UpstreamOutputs
		}
		return &NodeOutcome{Outputs: map[string]any{"from": req.Node.ID}}, nil
	}}

	newTestEngine(exec, nil).Run(context.Background(), linearFlow(nil), domain.ExecutionContext{})

	up, ok := seen["n1"].(map[string]any)
	if !ok || up["from"] != "n1" {
		t.Errorf("expected n1 output upstream of n2, got %v", seen)
	}
}

func TestRun_NilOutputsBecomeEmpty(t *testing.T) {
	exec := &countingExecutor{fn: func(int, NodeRequest) (*NodeOutcome, error) { return nil, nil }}

	res := newTestEngine(exec, nil).Run(context.Background(), linearFlow(nil), domain.ExecutionContext{})

	out, ok := res.Outputs["n1"].(map[string]any)
	if !ok || len(out) != 0 {
		t.Errorf("expected empty outputs, got %v", res.Outputs["n1"])
	}
}

func TestRun_RetryThenSuccess(t *testing.T) {
	exec := &countingExecutor{fn: func(attempt int, req NodeRequest) (*NodeOutcome, error) {
		if attempt < 3 {
			return nil, &ExecutionError{Code: "TRANSIENT", Message: "try again", Recoverable: true}
		}
		return &NodeOutcome{Outputs: map[string]any{"ok": true}}, nil
	}}

	flow := &domain.Flow{
		ID: "retry", Name: "retry", SchemaVersion: domain.FlowSchemaVersion,
		Nodes: []domain.FlowNode{actionNode("n", map[string]string{
			domain.MetaRetryMax:       "2",
			domain.MetaRetryBackoffMs: "1",
		})},
	}

	res := newTestEngine(exec, nil).Run(context.Background(), flow, domain.ExecutionContext{})

	if res.Status != domain.ExecutionStatusSuccess {
		t.Fatalf("expected success, got %s (%+v)", res.Status, res.Error)
	}
	if res.Metrics.Retries != 2 {
		t.Errorf("expected 2 retries, got %d", res.Metrics.Retries)
	}
	if exec.calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", exec.calls.Load())
	}
	if res.NodeRuns[0].Retries != 2 {
		t.Errorf("expected node run retries 2, got %d", res.NodeRuns[0].Retries)
	}
}

func TestRun_RetryBudgetExhausted(t *testing.T) {
	exec := &countingExecutor{fn: func(int, NodeRequest) (*NodeOutcome, error) {
		return nil, &ExecutionError{Code: "TRANSIENT", Message: "still down", Recoverable: true}
	}}

	flow := &domain.Flow{
		ID: "retry", Name: "retry", SchemaVersion: domain.FlowSchemaVersion,
		Nodes: []domain.FlowNode{actionNode("n", map[string]string{domain.MetaRetryMax: "1"})},
	}

	res := newTestEngine(exec, nil).Run(context.Background(), flow, domain.ExecutionContext{})

	if res.Status != domain.ExecutionStatusFailed {
		t.Fatalf("expected failed, got %s", res.Status)
	}
	if exec.calls.Load() != 2 || res.Metrics.Retries != 1 {
		t.Errorf("expected 2 calls and 1 retry, got %d calls, %d retries", exec.calls.Load(), res.Metrics.Retries)
	}
}

func TestRun_Timeout(t *testing.T) {
	exec := &countingExecutor{fn: func(int, NodeRequest) (*NodeOutcome, error) {
		time.Sleep(30 * time.Millisecond)
		return &NodeOutcome{}, nil
	}}

	flow := &domain.Flow{
		ID: "slow", Name: "slow", SchemaVersion: domain.FlowSchemaVersion,
		Nodes: []domain.FlowNode{actionNode("slow", map[string]string{
			domain.MetaTimeoutMs: "10",
			domain.MetaRetryMax:  "3",
		})},
	}

	res := newTestEngine(exec, nil).Run(context.Background(), flow, domain.ExecutionContext{})

	if res.Status != domain.ExecutionStatusTimeout {
		t.Fatalf("expected timeout, got %s", res.Status)
	}
	if res.Error == nil || res.Error.Code != CodeNodeTimeout {
		t.Fatalf("expected NODE_TIMEOUT, got %+v", res.Error)
	}
	if res.Error.Message != "Node execution timed out (10ms)." {
		t.Errorf("unexpected message: %s", res.Error.Message)
	}
	if res.Metrics.TimedOutNodes != 1 {
		t.Errorf("expected 1 timed out node, got %d", res.Metrics.TimedOutNodes)
	}
	// Таймаут невосстанавливаем: повторов нет даже при retryMax
	if exec.calls.Load() != 1 {
		t.Errorf("expected a single attempt, got %d", exec.calls.Load())
	}
	if nr := res.NodeRuns[0]; !nr.TimedOut || nr.Status != domain.NodeRunStatusTimeout {
		t.Errorf("unexpected node run: %+v", nr)
	}
}

func TestRun_RecoverableWithoutBudgetFails(t *testing.T) {
	exec := &countingExecutor{fn: func(int, NodeRequest) (*NodeOutcome, error) {
		return nil, &ExecutionError{Code: "UPSTREAM_BUSY", Message: "busy", Recoverable: true}
	}}

	res := newTestEngine(exec, nil).Run(context.Background(), linearFlow(nil), domain.ExecutionContext{})

	if res.Status != domain.ExecutionStatusFailed {
		t.Fatalf("expected failed, got %s", res.Status)
	}
	if res.Metrics.Retries != 0 {
		t.Errorf("expected 0 retries, got %d", res.Metrics.Retries)
	}
	if res.Error.Code != "UPSTREAM_BUSY" {
		t.Errorf("expected code to be surfaced unchanged, got %s", res.Error.Code)
	}
	if res.Error.NodeID != "n1" {
		t.Errorf("expected node id n1, got %s", res.Error.NodeID)
	}
}

func TestRun_FailFast(t *testing.T) {
	// a и b независимы; a падает — b не должен запускаться
	exec := &countingExecutor{fn: func(_ int, req NodeRequest) (*NodeOutcome, error) {
		if req.Node.ID == "a" {
			return nil, errors.New("boom")
		}
		return &NodeOutcome{}, nil
	}}
	repo := newRecordingRepo()

	flow := &domain.Flow{
		ID: "ff", Name: "ff", SchemaVersion: domain.FlowSchemaVersion,
		Nodes: []domain.FlowNode{actionNode("a", nil), actionNode("b", nil)},
	}

	res := newTestEngine(exec, repo).Run(context.Background(), flow, domain.ExecutionContext{})

	if res.Status != domain.ExecutionStatusFailed || res.Error.Code != CodeNodeExecution {
		t.Fatalf("expected failed NODE_EXECUTION_ERROR, got %s %+v", res.Status, res.Error)
	}
	if res.Error.Message != "boom" || res.Error.Recoverable {
		t.Errorf("unexpected normalized error: %+v", res.Error)
	}
	if exec.calls.Load() != 1 {
		t.Errorf("b must not run after a failed, got %d calls", exec.calls.Load())
	}

	want := []domain.EventType{domain.EventRunStarted, domain.EventNodeStarted, domain.EventNodeFailed, domain.EventRunFinished}
	got := repo.eventTypes()
	if len(got) != len(want) {
		t.Fatalf("unexpected events: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestRun_ExecutorNotFound(t *testing.T) {
	exec := echoExecutor()
	exec.refuse = true

	res := newTestEngine(exec, nil).Run(context.Background(), linearFlow(nil), domain.ExecutionContext{})

	if res.Status != domain.ExecutionStatusFailed || res.Error.Code != CodeExecutorNotFound {
		t.Fatalf("expected NODE_EXECUTOR_NOT_FOUND, got %s %+v", res.Status, res.Error)
	}
	if exec.calls.Load() != 0 {
		t.Error("Execute must not be called when CanExecute is false")
	}
	if res.NodeRuns[0].Retries != 0 {
		t.Errorf("expected 0 retries, got %d", res.NodeRuns[0].Retries)
	}
}

func TestRun_NilExecutor(t *testing.T) {
	res := New(Config{}).Run(context.Background(), linearFlow(nil), domain.ExecutionContext{})
	if res.Error == nil || res.Error.Code != CodeExecutorNotFound {
		t.Fatalf("expected NODE_EXECUTOR_NOT_FOUND, got %+v", res.Error)
	}
}

func TestRun_CycleAllowedFailsAtScheduling(t *testing.T) {
	exec := echoExecutor()
	flow := &domain.Flow{
		ID: "cycle", Name: "cycle", SchemaVersion: domain.FlowSchemaVersion,
		Nodes: []domain.FlowNode{actionNode("A", nil), actionNode("B", nil)},
		Edges: []domain.FlowEdge{
			{ID: "1", SourceNodeID: "A", TargetNodeID: "B"},
			{ID: "2", SourceNodeID: "B", TargetNodeID: "A"},
		},
	}

	// Без AllowCycles — CYCLE_DETECTED на валидации
	res := newTestEngine(exec, nil).Run(context.Background(), flow, domain.ExecutionContext{})
	if res.Status != domain.ExecutionStatusValidationError {
		t.Fatalf("expected validation_error, got %s", res.Status)
	}

	// С AllowCycles — FLOW_SCHEDULING_ERROR, без зависания
	done := make(chan *Result, 1)
	go func() {
		done <- New(Config{Executor: exec, AllowCycles: true}).Run(context.Background(), flow, domain.ExecutionContext{})
	}()

	select {
	case res = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run with a cycle must not hang")
	}

	if res.Status != domain.ExecutionStatusFailed || res.Error.Code != CodeFlowScheduling {
		t.Fatalf("expected FLOW_SCHEDULING_ERROR, got %s %+v", res.Status, res.Error)
	}
	if exec.calls.Load() != 0 {
		t.Errorf("no node should be ready in a pure cycle, got %d calls", exec.calls.Load())
	}
}

func TestRun_CheckpointReuse(t *testing.T) {
	exec := echoExecutor()
	store := NewCheckpointStore()
	store.Save(Checkpoint{NodeID: "n2", Outputs: map[string]any{"cached": true}, IdempotencyKey: "k"})

	res := newTestEngine(exec, nil).RunWithCheckpoints(context.Background(),
		linearFlow(map[string]string{domain.MetaIdempotencyKey: "k"}), domain.ExecutionContext{}, store)

	if res.Status != domain.ExecutionStatusSuccess {
		t.Fatalf("expected success, got %s", res.Status)
	}
	if exec.calls.Load() != 1 {
		t.Errorf("only n1 should be executed, got %d calls", exec.calls.Load())
	}
	if res.Metrics.NodeExecutions != 1 {
		t.Errorf("checkpoint reuse must not count as execution, got %d", res.Metrics.NodeExecutions)
	}
	if out := res.Outputs["n2"].(map[string]any); out["cached"] != true {
		t.Errorf("expected cached outputs, got %v", out)
	}
}

func TestRun_CheckpointSavedAfterSuccess(t *testing.T) {
	store := NewCheckpointStore()

	newTestEngine(echoExecutor(), nil).RunWithCheckpoints(context.Background(), linearFlow(nil), domain.ExecutionContext{}, store)

	cp, ok := store.Get("n2")
	if !ok || cp.Outputs["nodeId"] != "n2" || cp.ExecutedAt.IsZero() {
		t.Errorf("expected checkpoint for n2, got %+v", cp)
	}
}

func TestRun_ExecutorPanicIsNormalized(t *testing.T) {
	exec := &countingExecutor{fn: func(int, NodeRequest) (*NodeOutcome, error) {
		panic("kaboom")
	}}

	res := newTestEngine(exec, nil).Run(context.Background(), linearFlow(nil), domain.ExecutionContext{})

	if res.Status != domain.ExecutionStatusFailed || res.Error.Code != CodeNodeExecution {
		t.Fatalf("expected NODE_EXECUTION_ERROR, got %s %+v", res.Status, res.Error)
	}
}

func TestRun_RepositoryFailureDoesNotAbort(t *testing.T) {
	repo := newRecordingRepo()
	repo.failWith = errors.New("disk full")
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())

	res := New(Config{Executor: echoExecutor(), Repository: repo, Metrics: metrics}).
		Run(context.Background(), linearFlow(nil), domain.ExecutionContext{})

	if res.Status != domain.ExecutionStatusSuccess {
		t.Errorf("repository errors must not change the run result, got %s", res.Status)
	}
}

func TestRun_NilFlow(t *testing.T) {
	res := newTestEngine(echoExecutor(), nil).Run(context.Background(), nil, domain.ExecutionContext{})
	if res.Status != domain.ExecutionStatusValidationError {
		t.Errorf("expected validation_error, got %s", res.Status)
	}
}

func TestRun_GeneratesRunAndTraceIDs(t *testing.T) {
	repo := newRecordingRepo()
	res := newTestEngine(echoExecutor(), repo).Run(context.Background(), linearFlow(nil), domain.ExecutionContext{})

	if res.RunID == "" {
		t.Fatal("expected generated run id")
	}
	snap, err := repo.RunSnapshot(context.Background(), res.RunID)
	if err != nil || snap.TraceID == "" {
		t.Errorf("expected snapshot with trace id, got %+v, %v", snap, err)
	}
}

func TestRun_DispatchOrderIsFIFO(t *testing.T) {
	// s → a, s → b, a → c, b → c; очередь: s, a, b, c
	var order []string
	var mu sync.Mutex
	exec := &countingExecutor{fn: func(_ int, req NodeRequest) (*NodeOutcome, error) {
		mu.Lock()
		order = append(order, req.Node.ID)
		mu.Unlock()
		return &NodeOutcome{}, nil
	}}

	flow := &domain.Flow{
		ID: "diamond", Name: "diamond", SchemaVersion: domain.FlowSchemaVersion,
		Nodes: []domain.FlowNode{actionNode("s", nil), actionNode("a", nil), actionNode("b", nil), actionNode("c", nil)},
		Edges: []domain.FlowEdge{
			{ID: "1", SourceNodeID: "s", TargetNodeID: "a"},
			{ID: "2", SourceNodeID: "s", TargetNodeID: "b"},
			{ID: "3", SourceNodeID: "a", TargetNodeID: "c"},
			{ID: "4", SourceNodeID: "b", TargetNodeID: "c"},
		},
	}

	res := newTestEngine(exec, nil).Run(context.Background(), flow, domain.ExecutionContext{})
	if res.Status != domain.ExecutionStatusSuccess {
		t.Fatalf("expected success, got %s", res.Status)
	}

	want := []string{"s", "a", "b", "c"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("unexpected order: %v", order)
		}
	}
	for i, nr := range res.NodeRuns {
		if nr.NodeID != want[i] {
			t.Errorf("node run %d = %s, want %s", i, nr.NodeID, want[i])
		}
	}
}
