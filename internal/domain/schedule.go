package domain

import (
	"time"

	"github.com/google/uuid"
)

// Schedule — расписание автоматического запуска flow.
//
// Schedule позволяет запускать flow:
// - По cron-выражению: "0 9 * * *" (каждый день в 9:00)
// - По интервалу: каждые N секунд
//
// Scheduler проверяет NextDueAt и создаёт RunRequest, когда время подошло.
type Schedule struct {
	ID     uuid.UUID `json:"id"`
	FlowID string    `json:"flowId"`
	Name   string    `json:"name,omitempty"`

	// CronExpr — cron-выражение из 5 полей.
	// Если задан, IntervalSec игнорируется.
	CronExpr string `json:"cronExpr,omitempty"`

	// IntervalSec — интервал в секундах между запусками.
	IntervalSec int `json:"intervalSec,omitempty"`

	// Timezone — часовой пояс для cron. По умолчанию "UTC".
	Timezone string `json:"timezone"`

	Enabled bool `json:"enabled"`

	// NextDueAt — время следующего запуска.
	NextDueAt *time.Time `json:"nextDueAt,omitempty"`

	LastRunAt *time.Time `json:"lastRunAt,omitempty"`
	LastRunID string     `json:"lastRunId,omitempty"`

	// Input — входные данные для каждого созданного run.
	Input map[string]any `json:"input,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsCron возвращает true, если расписание использует cron-выражение.
func (s *Schedule) IsCron() bool {
	return s.CronExpr != ""
}

// IsInterval возвращает true, если расписание использует интервал.
func (s *Schedule) IsInterval() bool {
	return s.CronExpr == "" && s.IntervalSec > 0
}

// IsDue проверяет, пора ли запускать.
func (s *Schedule) IsDue(now time.Time) bool {
	if !s.Enabled || s.NextDueAt == nil {
		return false
	}
	return !now.Before(*s.NextDueAt)
}

// RecordRun записывает информацию о запуске.
func (s *Schedule) RecordRun(runID string, nextDue time.Time) {
	now := time.Now()
	s.LastRunAt = &now
	s.LastRunID = runID
	s.NextDueAt = &nextDue
	s.UpdatedAt = now
}
