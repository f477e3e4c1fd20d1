package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/flowgen/internal/domain"
)

// ErrNoCadence — у расписания нет ни cron, ни интервала.
var ErrNoCadence = errors.New("schedule has neither cronExpr nor intervalSec")

// cronParser — стандартные 5 полей, без секунд.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// CalculateNextDue вычисляет следующее время запуска после from.
//
// Cron считается в часовом поясе расписания (невалидный пояс → UTC),
// интервал просто прибавляется к from. Результат всегда в UTC.
func CalculateNextDue(sched *domain.Schedule, from time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(sched.Timezone)
	if err != nil {
		loc = time.UTC
	}
	fromInTz := from.In(loc)

	switch {
	case sched.IsCron():
		schedule, err := cronParser.Parse(sched.CronExpr)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse cron expression %q: %w", sched.CronExpr, err)
		}
		return schedule.Next(fromInTz).UTC(), nil
	case sched.IsInterval():
		return fromInTz.Add(time.Duration(sched.IntervalSec) * time.Second).UTC(), nil
	default:
		return time.Time{}, ErrNoCadence
	}
}

// ValidateCronExpr проверяет cron-выражение.
func ValidateCronExpr(cronExpr string) error {
	if _, err := cronParser.Parse(cronExpr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return nil
}

// ValidateSchedule проверяет расписание перед сохранением.
func ValidateSchedule(sched *domain.Schedule) error {
	if sched.FlowID == "" {
		return errors.New("flowId is required")
	}
	if sched.IntervalSec < 0 {
		return errors.New("intervalSec must not be negative")
	}
	if sched.IsCron() {
		if err := ValidateCronExpr(sched.CronExpr); err != nil {
			return err
		}
	} else if !sched.IsInterval() {
		return ErrNoCadence
	}
	if sched.Timezone != "" {
		if _, err := time.LoadLocation(sched.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", sched.Timezone, err)
		}
	}
	return nil
}

// CalculateInitialNextDue вычисляет первый запуск нового расписания.
func CalculateInitialNextDue(sched *domain.Schedule) (time.Time, error) {
	return CalculateNextDue(sched, time.Now())
}
