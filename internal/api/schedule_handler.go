package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/flowgen/internal/domain"
	"github.com/shaiso/flowgen/internal/repo"
	"github.com/shaiso/flowgen/internal/scheduler"
)

// ListSchedules возвращает список schedules с фильтрацией.
// GET /api/v1/schedules?flow_id=...&enabled=...&limit=...&offset=...
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repo.ScheduleFilter{
		FlowID: q.Get("flow_id"),
		Limit:  parseIntDefault(q.Get("limit"), 50),
		Offset: parseIntDefault(q.Get("offset"), 0),
	}
	if enabledStr := q.Get("enabled"); enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			BadRequest(w, "invalid enabled")
			return
		}
		filter.Enabled = &enabled
	}

	schedules, err := h.schedules.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}
	if schedules == nil {
		schedules = []domain.Schedule{}
	}

	List(w, schedules, len(schedules))
}

// CreateSchedule создаёт schedule для flow.
// POST /api/v1/flows/{id}/schedules
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	flowID := r.PathValue("id")

	var req CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	_, err := h.flows.Get(r.Context(), flowID)
	if HandleRepoError(w, h.logger, err, "flow not found") {
		return
	}

	timezone := req.Timezone
	if timezone == "" {
		timezone = "UTC"
	}

	now := time.Now().UTC()
	schedule := &domain.Schedule{
		ID:          uuid.New(),
		FlowID:      flowID,
		Name:        req.Name,
		CronExpr:    req.CronExpr,
		IntervalSec: req.IntervalSec,
		Timezone:    timezone,
		Enabled:     req.Enabled,
		Input:       req.Input,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.resetNextDue(schedule); err != nil {
		BadRequest(w, err.Error())
		return
	}

	if err := h.schedules.Create(r.Context(), schedule); HandleRepoError(w, h.logger, err, "") {
		return
	}

	Created(w, schedule)
}

// GetSchedule возвращает schedule по ID.
// GET /api/v1/schedules/{id}
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleID(w, r)
	if !ok {
		return
	}

	schedule, err := h.schedules.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	Success(w, schedule)
}

// UpdateSchedule частично обновляет schedule.
// Смена cron, интервала или пояса пересчитывает nextDueAt.
// PUT /api/v1/schedules/{id}
func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleID(w, r)
	if !ok {
		return
	}

	var req UpdateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	schedule, err := h.schedules.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	cadenceChanged := req.CronExpr != nil || req.IntervalSec != nil || req.Timezone != nil

	if req.Name != nil {
		schedule.Name = *req.Name
	}
	if req.CronExpr != nil {
		schedule.CronExpr = *req.CronExpr
	}
	if req.IntervalSec != nil {
		schedule.IntervalSec = *req.IntervalSec
	}
	if req.Timezone != nil {
		schedule.Timezone = *req.Timezone
	}
	if req.Input != nil {
		schedule.Input = *req.Input
	}

	if cadenceChanged {
		if err := h.resetNextDue(schedule); err != nil {
			BadRequest(w, err.Error())
			return
		}
	}
	schedule.UpdatedAt = time.Now().UTC()

	if err := h.schedules.Update(r.Context(), schedule); HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	Success(w, schedule)
}

// DeleteSchedule удаляет schedule.
// DELETE /api/v1/schedules/{id}
func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleID(w, r)
	if !ok {
		return
	}

	if err := h.schedules.Delete(r.Context(), id); HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	NoContent(w)
}

// SetScheduleEnabled включает или выключает schedule.
// При включении nextDueAt считается заново от текущего момента,
// пропущенные за время простоя запуски не догоняются.
// PUT /api/v1/schedules/{id}/enabled
func (h *Handler) SetScheduleEnabled(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleID(w, r)
	if !ok {
		return
	}

	var req SetEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	schedule, err := h.schedules.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	if req.Enabled && !schedule.Enabled {
		if err := h.resetNextDue(schedule); err != nil {
			InvalidState(w, err.Error())
			return
		}
	}
	schedule.Enabled = req.Enabled
	schedule.UpdatedAt = time.Now().UTC()

	if err := h.schedules.Update(r.Context(), schedule); HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	Success(w, schedule)
}

func (h *Handler) resetNextDue(schedule *domain.Schedule) error {
	if err := scheduler.ValidateSchedule(schedule); err != nil {
		return err
	}
	next, err := scheduler.CalculateInitialNextDue(schedule)
	if err != nil {
		return err
	}
	schedule.NextDueAt = &next
	return nil
}

func scheduleID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return uuid.Nil, false
	}
	return id, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
