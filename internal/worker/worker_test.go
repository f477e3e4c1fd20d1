package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/flowgen/internal/domain"
	"github.com/shaiso/flowgen/internal/graph"
	"github.com/shaiso/flowgen/internal/mq"
	"github.com/shaiso/flowgen/internal/orchestrator"
	"github.com/shaiso/flowgen/internal/registry"
	"github.com/shaiso/flowgen/internal/repo"
	"github.com/shaiso/flowgen/internal/tools"
)

type fixture struct {
	requests *repo.MemoryRequestRepo
	flows    *repo.MemoryFlowRepo
	runs     *repo.MemoryRunRepo
	worker   *Worker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	defs := registry.NewDefault()
	f := &fixture{
		requests: repo.NewMemoryRequestRepo(),
		flows:    repo.NewMemoryFlowRepo(),
		runs:     repo.NewMemoryRunRepo(),
	}
	eng := orchestrator.New(orchestrator.Config{
		Definitions: defs,
		Executor:    tools.NewNodeExecutor(defs, tools.DefaultRegistry(), nil),
		Repository:  f.runs,
	})
	f.worker = New(Config{
		Requests:    f.requests,
		Flows:       f.flows,
		Runs:        f.runs,
		Engine:      eng,
		Definitions: defs,
	})
	return f
}

func (f *fixture) addRequest(t *testing.T, flowID string, input map[string]any) *domain.RunRequest {
	t.Helper()
	req := &domain.RunRequest{
		ID:        uuid.NewString(),
		FlowID:    flowID,
		Status:    domain.RequestStatusPending,
		Input:     input,
		TraceID:   uuid.NewString(),
		CreatedAt: time.Now(),
	}
	if err := f.requests.Create(context.Background(), req); err != nil {
		t.Fatalf("create request: %v", err)
	}
	return req
}

func (f *fixture) saveDefaultFlow(t *testing.T) domain.Flow {
	t.Helper()
	flow := graph.DefaultFlow()
	if err := f.flows.Save(context.Background(), &flow); err != nil {
		t.Fatalf("save flow: %v", err)
	}
	return flow
}

func TestProcessRequest_Success(t *testing.T) {
	f := newFixture(t)
	flow := f.saveDefaultFlow(t)
	req := f.addRequest(t, flow.ID, map[string]any{"approved": true})

	result, err := f.worker.ProcessRequest(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("ProcessRequest: %v", err)
	}
	if result.Status != domain.ExecutionStatusSuccess {
		t.Fatalf("status = %s, error = %+v", result.Status, result.Error)
	}
	if result.RunID != req.ID {
		t.Errorf("run id = %s, want request id %s", result.RunID, req.ID)
	}

	stored, _ := f.requests.GetByID(context.Background(), req.ID)
	if stored.Status != domain.RequestStatusDone {
		t.Errorf("request status = %s, want DONE", stored.Status)
	}
	if stored.StartedAt == nil || stored.FinishedAt == nil {
		t.Error("request timestamps not set")
	}

	snapshot, err := f.runs.RunSnapshot(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("RunSnapshot: %v", err)
	}
	if snapshot.FlowID != flow.ID || snapshot.TraceID != req.TraceID {
		t.Errorf("snapshot = %+v", snapshot)
	}

	decision, ok := result.Outputs["decision-1"].(map[string]any)
	if !ok || decision["branch"] != "true" {
		t.Errorf("decision output = %v", result.Outputs["decision-1"])
	}
}

func TestProcessRequest_MigratesLegacyFlow(t *testing.T) {
	f := newFixture(t)
	flow := graph.DefaultFlow()
	flow.SchemaVersion = "0.9.0"
	flow.Nodes[1].Version = ""
	if err := f.flows.Save(context.Background(), &flow); err != nil {
		t.Fatalf("save flow: %v", err)
	}
	req := f.addRequest(t, flow.ID, map[string]any{"approved": false})

	result, err := f.worker.ProcessRequest(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("ProcessRequest: %v", err)
	}
	if result.Status != domain.ExecutionStatusSuccess {
		t.Fatalf("status = %s, error = %+v", result.Status, result.Error)
	}
}

func TestProcessRequest_FlowNotFound(t *testing.T) {
	f := newFixture(t)
	req := f.addRequest(t, "missing", nil)

	result, err := f.worker.ProcessRequest(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("ProcessRequest: %v", err)
	}
	if result.Status != domain.ExecutionStatusValidationError {
		t.Errorf("status = %s, want validation_error", result.Status)
	}
	if !errors.Is(result.Error, ErrFlowNotFound) {
		t.Errorf("error = %v, want ErrFlowNotFound", result.Error)
	}

	snapshot, err := f.runs.RunSnapshot(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("RunSnapshot: %v", err)
	}
	if snapshot.ErrorCode != orchestrator.CodeFlowValidation {
		t.Errorf("snapshot error code = %s", snapshot.ErrorCode)
	}

	stored, _ := f.requests.GetByID(context.Background(), req.ID)
	if stored.Status != domain.RequestStatusDone {
		t.Errorf("request status = %s, want DONE", stored.Status)
	}
}

func TestProcessRequest_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.worker.ProcessRequest(context.Background(), "nope")
	if !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("err = %v, want ErrRequestNotFound", err)
	}
}

func TestProcessRequest_NotPending(t *testing.T) {
	f := newFixture(t)
	flow := f.saveDefaultFlow(t)
	req := f.addRequest(t, flow.ID, nil)

	if _, err := f.worker.ProcessRequest(context.Background(), req.ID); err != nil {
		t.Fatalf("first ProcessRequest: %v", err)
	}
	_, err := f.worker.ProcessRequest(context.Background(), req.ID)
	if !errors.Is(err, ErrRequestNotPending) {
		t.Fatalf("err = %v, want ErrRequestNotPending", err)
	}
}

func TestPoll_ProcessesPending(t *testing.T) {
	f := newFixture(t)
	flow := f.saveDefaultFlow(t)
	f.addRequest(t, flow.ID, nil)
	f.addRequest(t, flow.ID, nil)

	if n := f.worker.Poll(context.Background()); n != 2 {
		t.Fatalf("Poll handled %d, want 2", n)
	}
	if n := f.worker.Poll(context.Background()); n != 0 {
		t.Errorf("second Poll handled %d, want 0", n)
	}

	ids, _ := f.runs.ListRunIDs(context.Background())
	if len(ids) != 2 {
		t.Errorf("runs = %d, want 2", len(ids))
	}
}

func TestHandleRunRequested(t *testing.T) {
	f := newFixture(t)
	flow := f.saveDefaultFlow(t)
	req := f.addRequest(t, flow.ID, nil)

	delivery := func(requestID string) *mq.Delivery {
		msg := mq.NewMessage(mq.MessageTypeRunRequested, map[string]any{
			"request_id": requestID,
			"flow_id":    flow.ID,
		})
		return &mq.Delivery{Message: *msg}
	}

	if err := f.worker.handleRunRequested(context.Background(), delivery(req.ID)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	// повторная доставка подтверждается
	if err := f.worker.handleRunRequested(context.Background(), delivery(req.ID)); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	// неизвестная заявка отбрасывается без requeue
	err := f.worker.handleRunRequested(context.Background(), delivery("unknown"))
	if !errors.Is(err, mq.ErrDrop) {
		t.Fatalf("err = %v, want ErrDrop", err)
	}
}

func TestWorker_StartStopPolls(t *testing.T) {
	f := newFixture(t)
	flow := f.saveDefaultFlow(t)
	req := f.addRequest(t, flow.ID, nil)

	f.worker.pollInterval = 10 * time.Millisecond
	if err := f.worker.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		stored, _ := f.requests.GetByID(context.Background(), req.ID)
		if stored.Status == domain.RequestStatusDone {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	f.worker.Stop()
	if !f.worker.IsStopped() {
		t.Error("worker not stopped")
	}
	stored, _ := f.requests.GetByID(context.Background(), req.ID)
	if stored.Status != domain.RequestStatusDone {
		t.Errorf("request status = %s, want DONE", stored.Status)
	}
}
