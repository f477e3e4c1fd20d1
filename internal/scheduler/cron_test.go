package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/shaiso/flowgen/internal/domain"
)

func TestCalculateNextDue(t *testing.T) {
	from := time.Date(2026, 3, 2, 10, 15, 0, 0, time.UTC)

	tests := []struct {
		name  string
		sched domain.Schedule
		want  time.Time
	}{
		{
			name:  "interval",
			sched: domain.Schedule{IntervalSec: 90},
			want:  from.Add(90 * time.Second),
		},
		{
			name:  "cron daily",
			sched: domain.Schedule{CronExpr: "0 9 * * *", Timezone: "UTC"},
			want:  time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "cron in timezone",
			sched: domain.Schedule{CronExpr: "0 12 * * *", Timezone: "Europe/Moscow"},
			want:  time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "invalid timezone falls back to UTC",
			sched: domain.Schedule{CronExpr: "30 10 * * *", Timezone: "Mars/Olympus"},
			want:  time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC),
		},
		{
			name:  "cron wins over interval",
			sched: domain.Schedule{CronExpr: "*/5 * * * *", IntervalSec: 3600},
			want:  time.Date(2026, 3, 2, 10, 20, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateNextDue(&tt.sched, from)
			if err != nil {
				t.Fatalf("CalculateNextDue: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("location = %v, want UTC", got.Location())
			}
		})
	}
}

func TestCalculateNextDue_Errors(t *testing.T) {
	if _, err := CalculateNextDue(&domain.Schedule{}, time.Now()); !errors.Is(err, ErrNoCadence) {
		t.Errorf("err = %v, want ErrNoCadence", err)
	}
	if _, err := CalculateNextDue(&domain.Schedule{CronExpr: "not a cron"}, time.Now()); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		name    string
		sched   domain.Schedule
		wantErr bool
	}{
		{"cron", domain.Schedule{FlowID: "f", CronExpr: "0 * * * *"}, false},
		{"interval", domain.Schedule{FlowID: "f", IntervalSec: 10, Timezone: "UTC"}, false},
		{"no flow", domain.Schedule{IntervalSec: 10}, true},
		{"no cadence", domain.Schedule{FlowID: "f"}, true},
		{"bad cron", domain.Schedule{FlowID: "f", CronExpr: "61 * * * *"}, true},
		{"six fields", domain.Schedule{FlowID: "f", CronExpr: "0 0 * * * *"}, true},
		{"negative interval", domain.Schedule{FlowID: "f", IntervalSec: -1}, true},
		{"bad timezone", domain.Schedule{FlowID: "f", IntervalSec: 10, Timezone: "Nowhere/City"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchedule(&tt.sched)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
