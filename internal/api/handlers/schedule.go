package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/mlefebvre/suggestarr/internal/models"
	"github.com/mlefebvre/suggestarr/internal/scheduler"
)

// ScheduleHandler manages persisted schedules and the live cron runner
type ScheduleHandler struct {
	db     *models.Database
	sched  *scheduler.Scheduler
	logger *logrus.Logger
}

// NewScheduleHandler creates a new schedule handler
func NewScheduleHandler(db *models.Database, sched *scheduler.Scheduler, logger *logrus.Logger) *ScheduleHandler {
	return &ScheduleHandler{db: db, sched: sched, logger: logger}
}

type schedulePayload struct {
	JobID     string  `json:"job_id"`
	FuncName  string  `json:"func_name"`
	SearchID  *uint64 `json:"search_id"`
	Year      string  `json:"year"`
	Month     string  `json:"month"`
	Day       string  `json:"day"`
	Hour      string  `json:"hour"`
	Minute    string  `json:"minute"`
	DayOfWeek string  `json:"day_of_week"`
	Enabled   *bool   `json:"enabled"`
	Kwargs    string  `json:"kwargs"`
}

func (p *schedulePayload) apply(s *models.Schedule) {
	if p.JobID != "" {
		s.JobID = p.JobID
	}
	if p.FuncName != "" {
		s.FuncName = p.FuncName
	}
	if p.SearchID != nil {
		s.SearchID = p.SearchID
	}
	if p.Year != "" {
		s.Year = p.Year
	}
	if p.Month != "" {
		s.Month = p.Month
	}
	if p.Day != "" {
		s.Day = p.Day
	}
	if p.Hour != "" {
		s.Hour = p.Hour
	}
	if p.Minute != "" {
		s.Minute = p.Minute
	}
	if p.DayOfWeek != "" {
		s.DayOfWeek = p.DayOfWeek
	}
	if p.Enabled != nil {
		s.Enabled = *p.Enabled
	}
	if p.Kwargs != "" {
		s.Kwargs = p.Kwargs
	}
}

// List returns every schedule row
func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.db.GetAllSchedules()
	if err != nil {
		h.logger.WithError(err).Error("Failed to read schedules")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if schedules == nil {
		schedules = []*models.Schedule{}
	}
	writeJSON(w, http.StatusOK, schedules)
}

// Create stores a schedule and reloads the cron runner
func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload schedulePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.JobID == "" || payload.FuncName == "" {
		writeError(w, http.StatusBadRequest, "job_id and func_name are required")
		return
	}
	if _, err := h.db.GetScheduleByJobID(payload.JobID); err == nil {
		writeError(w, http.StatusConflict, "job_id already exists")
		return
	}

	schedule := &models.Schedule{
		Year: "*", Month: "*", Day: "*", Hour: "*", Minute: "*", DayOfWeek: "*",
		Enabled: true,
	}
	payload.apply(schedule)

	if err := h.db.CreateSchedule(schedule); err != nil {
		h.logger.WithError(err).Error("Failed to create schedule")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.reload()
	writeJSON(w, http.StatusCreated, schedule)
}

// Update modifies a schedule and reloads the cron runner
func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	schedule, err := h.db.GetScheduleByID(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "schedule not found")
		return
	}

	var payload schedulePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	payload.apply(schedule)

	if err := h.db.UpdateSchedule(schedule); err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.reload()
	writeJSON(w, http.StatusOK, schedule)
}

// Delete removes a schedule and reloads the cron runner
func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.db.DeleteSchedule(id); err != nil {
		writeError(w, http.StatusNotFound, "schedule not found")
		return
	}
	h.reload()
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// Trigger fires a schedule's job immediately
func (h *ScheduleHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	if err := h.sched.TriggerJob(jobID); err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"triggered": true})
}

func (h *ScheduleHandler) reload() {
	if err := h.sched.LoadSchedules(); err != nil {
		h.logger.WithError(err).Error("Failed to reload schedules")
	}
}
