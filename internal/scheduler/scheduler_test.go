package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/flowgen/internal/domain"
	"github.com/shaiso/flowgen/internal/graph"
	"github.com/shaiso/flowgen/internal/repo"
)

type recordingPublisher struct {
	published []string
	err       error
}

func (p *recordingPublisher) PublishRunRequested(_ context.Context, req *domain.RunRequest) error {
	p.published = append(p.published, req.ID)
	return p.err
}

type fixture struct {
	schedules *repo.MemoryScheduleRepo
	requests  *repo.MemoryRequestRepo
	publisher *recordingPublisher
	sched     *Scheduler
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	flows := repo.NewMemoryFlowRepo()
	flow := graph.DefaultFlow()
	if err := flows.Save(context.Background(), &flow); err != nil {
		t.Fatalf("save flow: %v", err)
	}

	f := &fixture{
		schedules: repo.NewMemoryScheduleRepo(),
		requests:  repo.NewMemoryRequestRepo(),
		publisher: &recordingPublisher{},
		now:       time.Date(2026, 3, 2, 9, 0, 30, 0, time.UTC),
	}
	f.sched = New(Config{
		Schedules: f.schedules,
		Requests:  f.requests,
		Flows:     flows,
		Publisher: f.publisher,
	})
	f.sched.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) addSchedule(t *testing.T, mutate func(*domain.Schedule)) *domain.Schedule {
	t.Helper()
	due := f.now.Add(-30 * time.Second)
	s := &domain.Schedule{
		ID:          uuid.New(),
		FlowID:      graph.DefaultFlowID,
		IntervalSec: 60,
		Timezone:    "UTC",
		Enabled:     true,
		NextDueAt:   &due,
		Input:       map[string]any{"approved": true},
		CreatedAt:   f.now,
	}
	if mutate != nil {
		mutate(s)
	}
	if err := f.schedules.Create(context.Background(), s); err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	return s
}

func TestTick_CreatesRequestAndAdvances(t *testing.T) {
	f := newFixture(t)
	s := f.addSchedule(t, nil)
	dueAt := *s.NextDueAt

	created, err := f.sched.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}

	req, err := f.requests.GetByIdempotencyKey(context.Background(), IdempotencyKey(s, dueAt))
	if err != nil {
		t.Fatalf("request by key: %v", err)
	}
	if req.Status != domain.RequestStatusPending || req.FlowID != graph.DefaultFlowID {
		t.Errorf("request = %+v", req)
	}
	if req.ScheduleID != s.ID.String() || req.Input["approved"] != true {
		t.Errorf("request = %+v", req)
	}
	if len(f.publisher.published) != 1 || f.publisher.published[0] != req.ID {
		t.Errorf("published = %v", f.publisher.published)
	}

	updated, _ := f.schedules.GetByID(context.Background(), s.ID)
	if want := f.now.Add(time.Minute); !updated.NextDueAt.Equal(want) {
		t.Errorf("nextDueAt = %v, want %v", updated.NextDueAt, want)
	}
	if updated.LastRunID != req.ID {
		t.Errorf("lastRunId = %s, want %s", updated.LastRunID, req.ID)
	}
}

func TestTick_Idempotent(t *testing.T) {
	f := newFixture(t)
	s := f.addSchedule(t, nil)

	// заявка на этот due уже есть (например, предыдущий тик упал на Update)
	existing := domain.NewRunRequest(s.FlowID, nil)
	existing.IdempotencyKey = IdempotencyKey(s, *s.NextDueAt)
	if err := f.requests.Create(context.Background(), existing); err != nil {
		t.Fatalf("create: %v", err)
	}

	created, err := f.sched.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if created != 0 {
		t.Errorf("created = %d, want 0", created)
	}
	if len(f.publisher.published) != 0 {
		t.Errorf("published = %v, want none", f.publisher.published)
	}

	updated, _ := f.schedules.GetByID(context.Background(), s.ID)
	if updated.LastRunID != existing.ID {
		t.Errorf("lastRunId = %s, want %s", updated.LastRunID, existing.ID)
	}
}

func TestTick_SkipsDisabledAndFuture(t *testing.T) {
	f := newFixture(t)
	f.addSchedule(t, func(s *domain.Schedule) { s.Enabled = false })
	f.addSchedule(t, func(s *domain.Schedule) {
		next := f.now.Add(time.Hour)
		s.NextDueAt = &next
	})

	created, err := f.sched.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if created != 0 {
		t.Errorf("created = %d, want 0", created)
	}
}

func TestTick_MissingFlowSkipped(t *testing.T) {
	f := newFixture(t)
	s := f.addSchedule(t, func(s *domain.Schedule) { s.FlowID = "missing" })

	created, err := f.sched.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if created != 0 {
		t.Errorf("created = %d, want 0", created)
	}
	unchanged, _ := f.schedules.GetByID(context.Background(), s.ID)
	if !unchanged.NextDueAt.Equal(*s.NextDueAt) {
		t.Error("nextDueAt advanced for a schedule with missing flow")
	}
}

func TestTick_PublishErrorNotFatal(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")
	s := f.addSchedule(t, nil)

	created, err := f.sched.Tick(context.Background())
	if err != nil || created != 1 {
		t.Fatalf("Tick = %d, %v", created, err)
	}
	updated, _ := f.schedules.GetByID(context.Background(), s.ID)
	if !updated.NextDueAt.After(f.now) {
		t.Error("nextDueAt not advanced")
	}
}

type fakeLeader struct {
	acquire  bool
	attempts int
	released bool
}

func (l *fakeLeader) TryAcquire(context.Context) (bool, error) {
	l.attempts++
	return l.acquire, nil
}

func (l *fakeLeader) Release(context.Context) error {
	l.released = true
	return nil
}

func TestRun_FollowerDoesNotTick(t *testing.T) {
	f := newFixture(t)
	f.addSchedule(t, nil)
	leader := &fakeLeader{acquire: false}
	f.sched.leader = leader
	f.sched.tick = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = f.sched.Run(ctx)

	if leader.attempts == 0 {
		t.Error("leadership never attempted")
	}
	if len(f.publisher.published) != 0 {
		t.Errorf("follower published %v", f.publisher.published)
	}
	if leader.released {
		t.Error("follower released a lock it never held")
	}
}

func TestRun_LeaderTicksAndReleases(t *testing.T) {
	f := newFixture(t)
	f.addSchedule(t, nil)
	leader := &fakeLeader{acquire: true}
	f.sched.leader = leader
	f.sched.tick = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = f.sched.Run(ctx)

	if len(f.publisher.published) != 1 {
		t.Errorf("published = %v, want 1 request", f.publisher.published)
	}
	if !leader.released {
		t.Error("leadership not released on shutdown")
	}
}
